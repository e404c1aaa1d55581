package credential

import (
	"time"

	"golang.org/x/oauth2"
)

// ServiceIdentity is the service account used to sign token assertions.
// It is read once at startup and never mutated.
type ServiceIdentity struct {
	Issuer     string
	PrivateKey string // PEM, PKCS#1 or PKCS#8
	Audience   string // token endpoint
	Scope      string
}

// AccessToken is a bearer credential for the push gateway. Only the
// Exchanger issues non-zero values.
type AccessToken struct {
	value     string
	expiresAt time.Time
}

func (t AccessToken) Value() string        { return t.value }
func (t AccessToken) ExpiresAt() time.Time { return t.expiresAt }

// Valid reports whether the token can still be presented at now.
func (t AccessToken) Valid(now time.Time) bool {
	return t.value != "" && now.Before(t.expiresAt)
}

// OAuth2 converts the token for use with golang.org/x/oauth2 transports.
func (t AccessToken) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken: t.value,
		TokenType:   "Bearer",
		Expiry:      t.expiresAt,
	}
}
