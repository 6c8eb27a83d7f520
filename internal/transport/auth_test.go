package transport

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/formflow/formflow/internal/config"
)

const testKid = "test-key"

func newSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	return key
}

func newJWKSServer(t *testing.T, key *rsa.PrivateKey) *httptest.Server {
	t.Helper()
	jwks := map[string]any{
		"keys": []map[string]any{{
			"kid": testKid,
			"kty": "RSA",
			"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func identityConfig(jwksURL string) config.IdentityConfig {
	return config.IdentityConfig{
		Issuer:       "https://id.example.com",
		Audience:     "formflow",
		JWKSURL:      jwksURL,
		JWKSCacheTTL: time.Hour,
		Algorithms:   []string{"RS256"},
	}
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKid
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss": "https://id.example.com",
		"aud": "formflow",
		"sub": "alice",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
}

func authMiddleware(t *testing.T, cfg config.IdentityConfig) func(http.Handler) http.Handler {
	t.Helper()
	jwks := NewJWKSClient(cfg.JWKSURL, cfg.JWKSCacheTTL, nil)
	return JWTAuthenticator(cfg, jwks)
}

func TestJWTAuthenticator_ValidToken(t *testing.T) {
	key := newSigningKey(t)
	srv := newJWKSServer(t, key)
	cfg := identityConfig(srv.URL)

	var subject string
	h := authMiddleware(t, cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject = claimString(ClaimsFrom(r.Context()), "sub")
	}))

	r := httptest.NewRequest("GET", "/forms/onboarding", nil)
	r.Header.Set("Authorization", "Bearer "+signToken(t, key, validClaims()))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if subject != "alice" {
		t.Errorf("sub claim = %s, want alice", subject)
	}
}

func TestJWTAuthenticator_Rejections(t *testing.T) {
	key := newSigningKey(t)
	srv := newJWKSServer(t, key)
	cfg := identityConfig(srv.URL)
	foreignKey := newSigningKey(t)

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name: "expired token",
			token: func(t *testing.T) string {
				claims := validClaims()
				claims["exp"] = time.Now().Add(-time.Hour).Unix()
				return signToken(t, key, claims)
			},
		},
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				claims := validClaims()
				claims["iss"] = "https://rogue.example.com"
				return signToken(t, key, claims)
			},
		},
		{
			name: "wrong audience",
			token: func(t *testing.T) string {
				claims := validClaims()
				claims["aud"] = "other-api"
				return signToken(t, key, claims)
			},
		},
		{
			name: "foreign signing key",
			token: func(t *testing.T) string {
				return signToken(t, foreignKey, validClaims())
			},
		},
		{
			name: "garbage token",
			token: func(t *testing.T) string {
				return "not.a.jwt"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := authMiddleware(t, cfg)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Error("request reached downstream handler")
			}))

			r := httptest.NewRequest("GET", "/forms/onboarding", nil)
			r.Header.Set("Authorization", "Bearer "+tt.token(t))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestJWTAuthenticator_MissingHeader(t *testing.T) {
	key := newSigningKey(t)
	srv := newJWKSServer(t, key)
	cfg := identityConfig(srv.URL)

	h := authMiddleware(t, cfg)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("request reached downstream handler")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/forms/onboarding", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestJWTAuthenticator_AnonymousBypass(t *testing.T) {
	key := newSigningKey(t)
	srv := newJWKSServer(t, key)
	cfg := identityConfig(srv.URL)
	cfg.AllowAnonymous = true

	var claims map[string]any
	reached := false
	h := authMiddleware(t, cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		claims = ClaimsFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/forms/onboarding", nil))

	if !reached {
		t.Fatal("anonymous request did not reach handler")
	}
	if claims != nil {
		t.Error("anonymous request carries claims")
	}

	// A presented token is still fully verified even with anonymous allowed.
	r := httptest.NewRequest("GET", "/forms/onboarding", nil)
	r.Header.Set("Authorization", "Bearer not.a.jwt")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", rec.Code)
	}
}

func TestJWKSClient_CachesKeys(t *testing.T) {
	key := newSigningKey(t)
	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches++
		json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]any{{
				"kid": testKid,
				"kty": "RSA",
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			}},
		})
	}))
	defer srv.Close()

	client := NewJWKSClient(srv.URL, time.Hour, nil)
	for i := 0; i < 3; i++ {
		if _, err := client.GetKey(testKid); err != nil {
			t.Fatalf("GetKey() error = %v", err)
		}
	}
	if fetches != 1 {
		t.Errorf("JWKS fetched %d times, want 1", fetches)
	}
}
