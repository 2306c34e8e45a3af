// Package oauthx obtains bearer tokens for network-transport upstreams
// that require OAuth 2.0 client-credentials authentication.
package oauthx

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Exchanger wraps an OAuth 2.0 client-credentials flow and caches the
// resulting token, refreshing it automatically once it nears
// expiration (oauth2.TokenSource already handles that).
type Exchanger struct {
	mu     sync.Mutex
	source oauth2.TokenSource
}

// New builds an Exchanger for the given OIDC issuer's token endpoint.
// tokenURL is typically "<issuerURL>/protocol/openid-connect/token" or
// whatever the provider's discovery document advertises.
func New(tokenURL, clientID, clientSecret string, scopes []string) *Exchanger {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}
	return &Exchanger{source: cfg.TokenSource(context.Background())}
}

// Token returns a valid bearer token, refreshing it if expired.
func (e *Exchanger) Token(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tok, err := e.source.Token()
	if err != nil {
		return "", fmt.Errorf("oauth token exchange: %w", err)
	}
	return tok.AccessToken, nil
}
