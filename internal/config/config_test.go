package config

import (
	"testing"
	"time"
)

func TestLoad_valid(t *testing.T) {
	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 15s", cfg.Server.ReadTimeout)
	}
	if cfg.Identity.Issuer != "https://auth.example.com" {
		t.Errorf("Identity.Issuer = %q", cfg.Identity.Issuer)
	}
	if cfg.Identity.Audience != "formflow" {
		t.Errorf("Identity.Audience = %q", cfg.Identity.Audience)
	}
	if len(cfg.Identity.Algorithms) != 2 {
		t.Errorf("Identity.Algorithms = %v, want 2 entries", cfg.Identity.Algorithms)
	}
	if !cfg.Definitions.HotReload {
		t.Error("Definitions.HotReload = false, want true")
	}
	if cfg.Tickets.Store.Driver != "redis" {
		t.Errorf("Tickets.Store.Driver = %q, want redis", cfg.Tickets.Store.Driver)
	}
	if cfg.Tickets.Store.DB != 2 {
		t.Errorf("Tickets.Store.DB = %d, want 2", cfg.Tickets.Store.DB)
	}
	if cfg.Tickets.TTL != 6*time.Hour {
		t.Errorf("Tickets.TTL = %v, want 6h", cfg.Tickets.TTL)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.Observability.LogLevel)
	}
}

func TestLoad_missing_file(t *testing.T) {
	_, err := Load("testdata/nonexistent.yaml")
	if err == nil {
		t.Fatal("Load() with missing file should return error")
	}
}

func TestLoad_missing_identity(t *testing.T) {
	_, err := Load("testdata/missing_identity.yaml")
	if err == nil {
		t.Fatal("Load() with missing identity should return error")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Server.Port != 8080 {
		t.Errorf("default Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Tickets.Store.Driver != "memory" {
		t.Errorf("default Tickets.Store.Driver = %q, want memory", cfg.Tickets.Store.Driver)
	}
	if cfg.Tickets.TTL != 24*time.Hour {
		t.Errorf("default Tickets.TTL = %v, want 24h", cfg.Tickets.TTL)
	}
	if cfg.Encryption.KeyEnv != "FORMFLOW_ENCRYPTION_KEY" {
		t.Errorf("default Encryption.KeyEnv = %q", cfg.Encryption.KeyEnv)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("default LogLevel = %q, want info", cfg.Observability.LogLevel)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FORMFLOW_SERVER_PORT", "3000")
	t.Setenv("FORMFLOW_IDENTITY_ISSUER", "https://env-issuer.com")
	t.Setenv("FORMFLOW_OBSERVABILITY_LOG_LEVEL", "error")

	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000 (env override)", cfg.Server.Port)
	}
	if cfg.Identity.Issuer != "https://env-issuer.com" {
		t.Errorf("Identity.Issuer = %q, want env override", cfg.Identity.Issuer)
	}
	if cfg.Observability.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want error (env override)", cfg.Observability.LogLevel)
	}
}

func TestValidate_invalid_port(t *testing.T) {
	cfg := Defaults()
	cfg.Identity.AllowAnonymous = true
	cfg.Server.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() with port 0 should return error")
	}
}

func TestValidate_store_drivers(t *testing.T) {
	base := func() *Config {
		cfg := Defaults()
		cfg.Identity.AllowAnonymous = true
		return cfg
	}

	cfg := base()
	cfg.Tickets.Store.Driver = "redis"
	if err := cfg.Validate(); err == nil {
		t.Error("redis driver without addr_env should fail validation")
	}
	cfg.Tickets.Store.AddrEnv = "FORMFLOW_REDIS_ADDR"
	if err := cfg.Validate(); err != nil {
		t.Errorf("redis driver with addr_env should validate, got %v", err)
	}

	cfg = base()
	cfg.Tickets.Store.Driver = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Error("postgres driver without dsn_env should fail validation")
	}
	cfg.Tickets.Store.DSNEnv = "FORMFLOW_TICKETS_DSN"
	if err := cfg.Validate(); err != nil {
		t.Errorf("postgres driver with dsn_env should validate, got %v", err)
	}

	cfg = base()
	cfg.Tickets.Store.Driver = "cassandra"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown driver should fail validation")
	}
}

func TestValidate_engine_mode(t *testing.T) {
	cfg := Defaults()
	cfg.Identity.AllowAnonymous = true
	cfg.Engine.Mode = "remote"
	if err := cfg.Validate(); err == nil {
		t.Error("remote engine without base_url should fail validation")
	}
	cfg.Engine.BaseURL = "https://engine.internal"
	if err := cfg.Validate(); err != nil {
		t.Errorf("remote engine with base_url should validate, got %v", err)
	}
}
