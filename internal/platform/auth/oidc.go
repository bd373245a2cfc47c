package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// discovery is the subset of the OpenID Connect discovery document used to
// locate the identity provider's signing keys.
type discovery struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

var discoveryClient = &http.Client{Timeout: 10 * time.Second}

// discoverJWKS resolves the JWKS endpoint advertised by issuer. The issuer in
// the document must match the configured one.
func discoverJWKS(issuer string) (string, error) {
	issuer = strings.TrimRight(issuer, "/")
	resp, err := discoveryClient.Get(issuer + "/.well-known/openid-configuration")
	if err != nil {
		return "", fmt.Errorf("oidc discovery: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oidc discovery: status %d", resp.StatusCode)
	}

	var doc discovery
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("oidc discovery: decode: %w", err)
	}
	if doc.JWKSURI == "" {
		return "", errors.New("oidc discovery: no jwks_uri")
	}
	if doc.Issuer != "" && strings.TrimRight(doc.Issuer, "/") != issuer {
		return "", fmt.Errorf("oidc discovery: issuer %q does not match %q", doc.Issuer, issuer)
	}
	return doc.JWKSURI, nil
}
