// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Identity      IdentityConfig      `yaml:"identity"`
	Definitions   DefinitionsConfig   `yaml:"definitions"`
	Tickets       TicketsConfig       `yaml:"tickets"`
	Engine        EngineConfig        `yaml:"engine"`
	Encryption    EncryptionConfig    `yaml:"encryption"`
	Audit         AuditConfig         `yaml:"audit"`
	Attachments   AttachmentsConfig   `yaml:"attachments"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig describes Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// IdentityConfig describes JWT and identity provider settings.
type IdentityConfig struct {
	Issuer         string            `yaml:"issuer"`
	Audience       string            `yaml:"audience"`
	JWKSURL        string            `yaml:"jwks_url"`
	JWKSCacheTTL   time.Duration     `yaml:"jwks_cache_ttl"`
	Algorithms     []string          `yaml:"algorithms"`
	ClaimPaths     map[string]string `yaml:"claim_paths"`
	AllowAnonymous bool              `yaml:"allow_anonymous"`
}

// DefinitionsConfig describes where to find process definition YAML files.
type DefinitionsConfig struct {
	Directories     []string `yaml:"directories"`
	HotReload       bool     `yaml:"hot_reload"`
	StrictChecksums bool     `yaml:"strict_checksums"`
}

// TicketsConfig describes request ticket settings.
type TicketsConfig struct {
	Store TicketStoreConfig `yaml:"store"`
	TTL   time.Duration     `yaml:"ttl"`
}

// TicketStoreConfig describes ticket persistence settings. Driver is one of
// "memory", "redis", or "postgres".
type TicketStoreConfig struct {
	Driver          string        `yaml:"driver"`
	AddrEnv         string        `yaml:"addr_env"`
	DB              int           `yaml:"db"`
	DSNEnv          string        `yaml:"dsn_env"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// EngineConfig describes process engine settings.
type EngineConfig struct {
	Mode    string        `yaml:"mode"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// EncryptionConfig describes restricted-field encryption settings. The key is
// never placed in the config file; KeyEnv names the environment variable that
// holds it, base64-encoded.
type EncryptionConfig struct {
	KeyEnv string `yaml:"key_env"`
}

// AuditConfig describes restricted-value access tracking settings. Sink is
// "log" or "postgres".
type AuditConfig struct {
	Sink   string `yaml:"sink"`
	DSNEnv string `yaml:"dsn_env"`
}

// AttachmentsConfig describes uploaded file settings.
type AttachmentsConfig struct {
	Directory    string `yaml:"directory"`
	MaxSizeBytes int64  `yaml:"max_size_bytes"`
	LinkVersion  string `yaml:"link_version"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Tracing  TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled           bool    `yaml:"enabled"`
	Exporter          string  `yaml:"exporter"`
	Endpoint          string  `yaml:"endpoint"`
	SamplingRate      float64 `yaml:"sampling_rate"`
	ForceSampleErrors bool    `yaml:"force_sample_errors"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			HandlerTimeout:  25 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Authorization", "Content-Type",
					"X-Correlation-Id"},
				MaxAge: 86400,
			},
		},
		Identity: IdentityConfig{
			JWKSCacheTTL: 1 * time.Hour,
			Algorithms:   []string{"RS256"},
			ClaimPaths: map[string]string{
				"subject_id": "sub",
				"email":      "email",
				"roles":      "roles",
			},
		},
		Definitions: DefinitionsConfig{
			Directories:     []string{"/definitions"},
			StrictChecksums: true,
		},
		Tickets: TicketsConfig{
			Store: TicketStoreConfig{
				Driver:          "memory",
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
			TTL: 24 * time.Hour,
		},
		Engine: EngineConfig{
			Mode:    "embedded",
			Timeout: 10 * time.Second,
		},
		Encryption: EncryptionConfig{
			KeyEnv: "FORMFLOW_ENCRYPTION_KEY",
		},
		Audit: AuditConfig{
			Sink: "log",
		},
		Attachments: AttachmentsConfig{
			Directory:    "/attachments",
			MaxSizeBytes: 10 << 20,
			LinkVersion:  "v1",
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if !c.Identity.AllowAnonymous {
		if c.Identity.Issuer == "" {
			errs = append(errs, "identity.issuer is required")
		}
		if c.Identity.JWKSURL == "" {
			errs = append(errs, "identity.jwks_url is required")
		}
		if c.Identity.Audience == "" {
			errs = append(errs, "identity.audience is required")
		}
	}
	if len(c.Definitions.Directories) == 0 {
		errs = append(errs, "definitions.directories must name at least one directory")
	}
	switch c.Tickets.Store.Driver {
	case "memory":
	case "redis":
		if c.Tickets.Store.AddrEnv == "" {
			errs = append(errs, "tickets.store.addr_env is required for the redis driver")
		}
	case "postgres":
		if c.Tickets.Store.DSNEnv == "" {
			errs = append(errs, "tickets.store.dsn_env is required for the postgres driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("tickets.store.driver %q is not one of memory, redis, postgres", c.Tickets.Store.Driver))
	}
	if c.Tickets.TTL <= 0 {
		errs = append(errs, "tickets.ttl must be positive")
	}
	switch c.Audit.Sink {
	case "log":
	case "postgres":
		if c.Audit.DSNEnv == "" {
			errs = append(errs, "audit.dsn_env is required for the postgres sink")
		}
	default:
		errs = append(errs, fmt.Sprintf("audit.sink %q is not one of log, postgres", c.Audit.Sink))
	}
	switch c.Engine.Mode {
	case "embedded":
	case "remote":
		if c.Engine.BaseURL == "" {
			errs = append(errs, "engine.base_url is required for remote mode")
		}
	default:
		errs = append(errs, fmt.Sprintf("engine.mode %q is not one of embedded, remote", c.Engine.Mode))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads FORMFLOW_* environment variables and overrides
// config values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FORMFLOW_SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FORMFLOW_IDENTITY_ISSUER"); v != "" {
		cfg.Identity.Issuer = v
	}
	if v := os.Getenv("FORMFLOW_IDENTITY_JWKS_URL"); v != "" {
		cfg.Identity.JWKSURL = v
	}
	if v := os.Getenv("FORMFLOW_IDENTITY_AUDIENCE"); v != "" {
		cfg.Identity.Audience = v
	}
	if v := os.Getenv("FORMFLOW_TICKETS_STORE_DRIVER"); v != "" {
		cfg.Tickets.Store.Driver = v
	}
	if v := os.Getenv("FORMFLOW_AUDIT_SINK"); v != "" {
		cfg.Audit.Sink = v
	}
	if v := os.Getenv("FORMFLOW_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
}
