package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/formflow/formflow/internal/config"
	"github.com/formflow/formflow/internal/observability"
	"github.com/formflow/formflow/model"
)

func TestCorrelationID_GeneratesWhenAbsent(t *testing.T) {
	var seen string
	h := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.CorrelationIDFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if seen == "" {
		t.Error("no correlation id in context")
	}
	if rec.Header().Get("X-Correlation-Id") != seen {
		t.Errorf("response header = %s, context = %s", rec.Header().Get("X-Correlation-Id"), seen)
	}
}

func TestCorrelationID_PropagatesHeader(t *testing.T) {
	var seen string
	h := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.CorrelationIDFrom(r.Context())
	}))

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Correlation-Id", "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), r)

	if seen != "abc-123" {
		t.Errorf("correlation id = %s, want abc-123", seen)
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %s, want %s", header, got, want)
		}
	}
}

func TestBuildPrincipal_FromClaims(t *testing.T) {
	var principal *model.Entity
	h := BuildPrincipal(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal = model.PrincipalFrom(r.Context())
	}))

	r := httptest.NewRequest("GET", "/", nil)
	r = r.WithContext(WithClaims(r.Context(), map[string]any{
		"sub":   "alice",
		"name":  "Alice Li",
		"roles": []any{"clerk", "reviewer"},
	}))
	h.ServeHTTP(httptest.NewRecorder(), r)

	if principal == nil || principal.ID != "alice" {
		t.Fatalf("principal = %+v, want alice", principal)
	}
	if principal.Type != model.EntityUser {
		t.Errorf("Type = %s, want %s", principal.Type, model.EntityUser)
	}
	if principal.DisplayName != "Alice Li" {
		t.Errorf("DisplayName = %s", principal.DisplayName)
	}
	if len(principal.Roles) != 2 || principal.Roles[0] != "clerk" {
		t.Errorf("Roles = %v", principal.Roles)
	}
}

func TestBuildPrincipal_Anonymous(t *testing.T) {
	var principal *model.Entity
	h := BuildPrincipal(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal = model.PrincipalFrom(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if principal == nil || !principal.IsAnonymous() {
		t.Errorf("principal = %+v, want anonymous", principal)
	}
}

func TestBuildPrincipal_CustomClaimPaths(t *testing.T) {
	var principal *model.Entity
	paths := map[string]string{"subject_id": "uid"}
	h := BuildPrincipal(paths)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal = model.PrincipalFrom(r.Context())
	}))

	r := httptest.NewRequest("GET", "/", nil)
	r = r.WithContext(WithClaims(r.Context(), map[string]any{"uid": "u-77"}))
	h.ServeHTTP(httptest.NewRecorder(), r)

	if principal == nil || principal.ID != "u-77" {
		t.Errorf("principal = %+v, want u-77", principal)
	}
}

func TestHandlerTimeout_SetsDeadline(t *testing.T) {
	var hasDeadline bool
	h := HandlerTimeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if !hasDeadline {
		t.Error("no deadline set on request context")
	}
}

func TestHandlerTimeout_ZeroIsPassthrough(t *testing.T) {
	var hasDeadline bool
	h := HandlerTimeout(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if hasDeadline {
		t.Error("deadline set despite zero timeout")
	}
}

func TestCORS_AllowedOrigin(t *testing.T) {
	cfg := config.CORSConfig{
		AllowedOrigins: []string{"https://app.example.com"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization"},
		MaxAge:         600,
	}
	h := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Errorf("Allow-Origin = %s", rec.Header().Get("Access-Control-Allow-Origin"))
	}

	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("disallowed origin was echoed")
	}
}

func TestCORS_Preflight(t *testing.T) {
	cfg := config.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}}
	h := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("preflight reached downstream handler")
	}))

	r := httptest.NewRequest(http.MethodOptions, "/", nil)
	r.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}
