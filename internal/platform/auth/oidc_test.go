package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func discoveryServer(t *testing.T, doc func(base string) map[string]string) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(doc(srv.URL))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDiscoverJWKS(t *testing.T) {
	srv := discoveryServer(t, func(base string) map[string]string {
		return map[string]string{"issuer": base, "jwks_uri": base + "/keys"}
	})
	got, err := discoverJWKS(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	if got != srv.URL+"/keys" {
		t.Errorf("jwks uri = %q", got)
	}
}

func TestDiscoverJWKS_IssuerMismatch(t *testing.T) {
	srv := discoveryServer(t, func(base string) map[string]string {
		return map[string]string{"issuer": "https://elsewhere.example", "jwks_uri": base + "/keys"}
	})
	if _, err := discoverJWKS(srv.URL); err == nil {
		t.Error("expected mismatched issuer to be rejected")
	}
}

func TestDiscoverJWKS_MissingKeys(t *testing.T) {
	srv := discoveryServer(t, func(base string) map[string]string {
		return map[string]string{"issuer": base}
	})
	if _, err := discoverJWKS(srv.URL); err == nil {
		t.Error("expected error without jwks_uri")
	}
}
