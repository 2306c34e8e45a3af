package supervisor

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Authenticator issues and verifies HMAC-signed control tokens, gating
// every supervisor request on top of the TCP listener's own bind
// address (expected to be loopback-only in production).
type Authenticator struct {
	secret []byte
}

type claims struct {
	jwt.RegisteredClaims
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// IssueToken mints a token valid for ttl, for use by the dashboard's
// control-forwarding path.
func (a *Authenticator) IssueToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing control token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates tokenStr, rejecting expired or
// wrong-algorithm tokens.
func (a *Authenticator) Verify(tokenStr string) error {
	if tokenStr == "" {
		return fmt.Errorf("missing token")
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return fmt.Errorf("invalid control token: %w", err)
	}
	if !parsed.Valid {
		return fmt.Errorf("invalid control token")
	}
	return nil
}
