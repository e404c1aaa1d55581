package credential

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Youssaou51/Bright/internal/logging"
	"github.com/Youssaou51/Bright/internal/metrics"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	// GrantTypeJWTBearer is the RFC 7523 grant used for the exchange.
	GrantTypeJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// AssertionLifetime is the exp-iat span of every signed assertion.
	AssertionLifetime = time.Hour

	// DefaultTokenLifetime applies when the token response omits expires_in.
	// It also caps a longer expires_in.
	DefaultTokenLifetime = 3600 * time.Second

	maxResponseBody = 1 << 20
)

// Exchanger turns a ServiceIdentity into short-lived access tokens and caches
// the current one until it expires. It is safe for concurrent use.
type Exchanger struct {
	identity   ServiceIdentity
	key        *rsa.PrivateKey
	httpClient *http.Client
	now        func() time.Time
	log        zerolog.Logger

	mu     sync.Mutex
	cached AccessToken

	flight singleflight.Group
}

// Option configures an Exchanger.
type Option func(*Exchanger)

// WithHTTPClient sets the client used for the token request.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Exchanger) { e.httpClient = c }
}

// WithTimeout bounds each token request.
func WithTimeout(d time.Duration) Option {
	return func(e *Exchanger) { e.httpClient = &http.Client{Timeout: d} }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Exchanger) { e.now = now }
}

// NewExchanger parses the identity's private key and returns an Exchanger
// with an empty cache.
func NewExchanger(identity ServiceIdentity, opts ...Option) (*Exchanger, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(identity.PrivateKey))
	if err != nil {
		return nil, &AuthError{Op: "parse_key", Err: err}
	}

	e := &Exchanger{
		identity:   identity,
		key:        key,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
		log:        logging.Component("auth"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// GetAccessToken returns the cached token while it is valid. Otherwise it
// signs a new assertion and exchanges it; concurrent callers share a single
// in-flight exchange.
func (e *Exchanger) GetAccessToken(ctx context.Context) (AccessToken, error) {
	if tok, ok := e.current(); ok {
		return tok, nil
	}

	v, err, shared := e.flight.Do("access_token", func() (any, error) {
		// A flight that finished just before this one may have filled the cache.
		if tok, ok := e.current(); ok {
			return tok, nil
		}
		tok, err := e.exchange(context.WithoutCancel(ctx))
		if err != nil {
			metrics.IncTokenExchange(false)
			return AccessToken{}, err
		}
		metrics.IncTokenExchange(true)

		e.mu.Lock()
		e.cached = tok
		e.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		e.log.Error().Err(err).Bool("shared", shared).Msg("access token exchange failed")
		return AccessToken{}, err
	}
	return v.(AccessToken), nil
}

// TokenSource exposes the cache as an oauth2.TokenSource.
func (e *Exchanger) TokenSource() oauth2.TokenSource {
	return &cacheTokenSource{exchanger: e}
}

func (e *Exchanger) current() (AccessToken, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cached.Valid(e.now()) {
		return e.cached, true
	}
	return AccessToken{}, false
}

// SignAssertion builds and signs the RS256 JWT presented to the token
// endpoint, issued at now.
func (e *Exchanger) SignAssertion(now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iss":   e.identity.Issuer,
		"scope": e.identity.Scope,
		"aud":   e.identity.Audience,
		"iat":   now.Unix(),
		"exp":   now.Add(AssertionLifetime).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(e.key)
	if err != nil {
		return "", &AuthError{Op: "sign", Err: err}
	}
	return signed, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (e *Exchanger) exchange(ctx context.Context) (AccessToken, error) {
	issuedAt := e.now()
	assertion, err := e.SignAssertion(issuedAt)
	if err != nil {
		return AccessToken{}, err
	}

	form := url.Values{
		"grant_type": {GrantTypeJWTBearer},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.identity.Audience, strings.NewReader(form.Encode()))
	if err != nil {
		return AccessToken{}, &AuthError{Op: "exchange", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return AccessToken{}, &AuthError{Op: "exchange", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return AccessToken{}, &AuthError{Op: "exchange", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return AccessToken{}, &AuthError{Op: "exchange", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return AccessToken{}, &AuthError{Op: "decode", Err: err}
	}
	if tr.AccessToken == "" {
		return AccessToken{}, &AuthError{Op: "decode", Err: fmt.Errorf("response has no access_token")}
	}

	lifetime := DefaultTokenLifetime
	if tr.ExpiresIn > 0 {
		lifetime = min(time.Duration(tr.ExpiresIn)*time.Second, DefaultTokenLifetime)
	}
	tok := AccessToken{value: tr.AccessToken, expiresAt: issuedAt.Add(lifetime)}

	e.log.Info().Time("expires_at", tok.expiresAt).Msg("obtained access token")
	return tok, nil
}

type cacheTokenSource struct {
	exchanger *Exchanger
}

func (s *cacheTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.exchanger.GetAccessToken(context.Background())
	if err != nil {
		return nil, err
	}
	return tok.OAuth2(), nil
}
