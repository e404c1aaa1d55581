package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Youssaou51/Bright/pkg/credential"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
)

const (
	defaultTokenURI    = "https://oauth2.googleapis.com/token"
	defaultFCMScope    = "https://www.googleapis.com/auth/firebase.messaging"
	defaultFCMEndpoint = "https://fcm.googleapis.com/v1/projects"
)

// Push transports understood by PUSH_TRANSPORT.
const (
	TransportHTTP = "http"
	TransportSDK  = "sdk"
)

// Recipient sources understood by RECIPIENT_SOURCE.
const (
	SourceDatabase = "database"
	SourceSupabase = "supabase"
)

type Config struct {
	Port     string
	LogLevel string

	Identity    credential.ServiceIdentity
	ProjectID   string
	FCMEndpoint string

	PushTransport     string
	HTTPTimeout       time.Duration
	FanoutConcurrency int
	PruneStaleTokens  bool

	RecipientSource string
	DBDriver        string
	DatabaseURL     string
	RecipientTable  string

	SupabaseURL        string
	SupabaseServiceKey string

	WebhookSecret string

	GoogleProjectID    string
	PubSubSubscription string
	GoogleCredentials  string
}

// ConfigError reports a missing or invalid setting. It is fatal at startup.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// serviceAccountFile is the subset of a Google service-account JSON key we need.
type serviceAccountFile struct {
	ProjectID   string `json:"project_id"`
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
	TokenURI    string `json:"token_uri"`
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	httpTimeout := 10 * time.Second
	if v := os.Getenv("HTTP_TIMEOUT"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			return nil, &ConfigError{Field: "HTTP_TIMEOUT", Reason: fmt.Sprintf("invalid duration %q", v)}
		}
		httpTimeout = parsed
	}

	concurrency := 10
	if v := os.Getenv("FANOUT_CONCURRENCY"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, &ConfigError{Field: "FANOUT_CONCURRENCY", Reason: fmt.Sprintf("must be a positive integer, got %q", v)}
		}
		concurrency = parsed
	}

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		FCMEndpoint:        strings.TrimRight(getEnv("FCM_ENDPOINT", defaultFCMEndpoint), "/"),
		PushTransport:      strings.ToLower(getEnv("PUSH_TRANSPORT", TransportHTTP)),
		HTTPTimeout:        httpTimeout,
		FanoutConcurrency:  concurrency,
		PruneStaleTokens:   getBool("PRUNE_STALE_TOKENS"),
		RecipientSource:    strings.ToLower(getEnv("RECIPIENT_SOURCE", SourceDatabase)),
		DBDriver:           strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RecipientTable:     getEnv("RECIPIENT_TABLE", "users"),
		SupabaseURL:        strings.TrimRight(getEnv("SUPABASE_URL", os.Getenv("MY_SUPABASE_URL")), "/"),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", os.Getenv("MY_SUPABASE_SERVICE_ROLE_KEY")),
		WebhookSecret:      getEnv("WEBHOOK_SECRET", ""),
		GoogleProjectID:    getEnv("GOOGLE_PROJECT_ID", ""),
		PubSubSubscription: getEnv("PUBSUB_SUBSCRIPTION", ""),
		GoogleCredentials:  getEnv("GOOGLE_CREDENTIALS", ""),
	}

	if err := cfg.loadIdentity(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadIdentity reads the service account from FIREBASE_CREDENTIALS, then lets
// discrete env vars override individual fields.
func (c *Config) loadIdentity() error {
	var sa serviceAccountFile
	if path := os.Getenv("FIREBASE_CREDENTIALS"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return &ConfigError{Field: "FIREBASE_CREDENTIALS", Reason: err.Error()}
		}
		if err := json.Unmarshal(raw, &sa); err != nil {
			return &ConfigError{Field: "FIREBASE_CREDENTIALS", Reason: fmt.Sprintf("invalid service account JSON: %v", err)}
		}
	}

	c.Identity = credential.ServiceIdentity{
		Issuer:     getEnv("FIREBASE_CLIENT_EMAIL", sa.ClientEmail),
		PrivateKey: normalizePEM(getEnv("FIREBASE_PRIVATE_KEY", sa.PrivateKey)),
		Audience:   getEnv("TOKEN_URI", firstNonEmpty(sa.TokenURI, defaultTokenURI)),
		Scope:      getEnv("FCM_SCOPE", defaultFCMScope),
	}
	c.ProjectID = getEnv("FIREBASE_PROJECT_ID", sa.ProjectID)
	return nil
}

func (c *Config) validate() error {
	if c.Identity.Issuer == "" {
		return &ConfigError{Field: "FIREBASE_CLIENT_EMAIL", Reason: "service account issuer is required"}
	}
	if c.Identity.PrivateKey == "" {
		return &ConfigError{Field: "FIREBASE_PRIVATE_KEY", Reason: "service account private key is required"}
	}
	if _, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(c.Identity.PrivateKey)); err != nil {
		return &ConfigError{Field: "FIREBASE_PRIVATE_KEY", Reason: fmt.Sprintf("unusable RSA key: %v", err)}
	}
	if c.ProjectID == "" {
		return &ConfigError{Field: "FIREBASE_PROJECT_ID", Reason: "project id is required"}
	}

	switch c.PushTransport {
	case TransportHTTP, TransportSDK:
	default:
		return &ConfigError{Field: "PUSH_TRANSPORT", Reason: fmt.Sprintf("unknown transport %q", c.PushTransport)}
	}

	switch c.RecipientSource {
	case SourceDatabase:
		if c.DatabaseURL == "" {
			return &ConfigError{Field: "DATABASE_URL", Reason: "required when RECIPIENT_SOURCE=database"}
		}
		if c.DBDriver != "postgres" && c.DBDriver != "sqlite" {
			return &ConfigError{Field: "DB_DRIVER", Reason: fmt.Sprintf("unknown driver %q", c.DBDriver)}
		}
	case SourceSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return &ConfigError{Field: "SUPABASE_URL", Reason: "SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required when RECIPIENT_SOURCE=supabase"}
		}
	default:
		return &ConfigError{Field: "RECIPIENT_SOURCE", Reason: fmt.Sprintf("unknown source %q", c.RecipientSource)}
	}

	if c.PubSubSubscription != "" && c.GoogleProjectID == "" {
		return &ConfigError{Field: "GOOGLE_PROJECT_ID", Reason: "required when PUBSUB_SUBSCRIPTION is set"}
	}
	return nil
}

// normalizePEM turns escaped newlines from single-line env values back into
// real ones so the PEM block can be decoded.
func normalizePEM(key string) string {
	if strings.Contains(key, `\n`) {
		key = strings.ReplaceAll(key, `\n`, "\n")
	}
	return strings.TrimSpace(key)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
