package config

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
}

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "LOG_LEVEL", "FIREBASE_CREDENTIALS", "FIREBASE_CLIENT_EMAIL", "FIREBASE_PRIVATE_KEY",
		"FIREBASE_PROJECT_ID", "TOKEN_URI", "FCM_SCOPE", "FCM_ENDPOINT", "PUSH_TRANSPORT", "HTTP_TIMEOUT",
		"FANOUT_CONCURRENCY", "PRUNE_STALE_TOKENS", "RECIPIENT_SOURCE", "DB_DRIVER", "DATABASE_URL",
		"RECIPIENT_TABLE", "SUPABASE_URL", "MY_SUPABASE_URL", "SUPABASE_SERVICE_ROLE_KEY",
		"MY_SUPABASE_SERVICE_ROLE_KEY", "WEBHOOK_SECRET", "GOOGLE_PROJECT_ID", "PUBSUB_SUBSCRIPTION",
		"GOOGLE_CREDENTIALS",
	} {
		t.Setenv(k, "")
	}
}

func setValidEnv(t *testing.T) string {
	t.Helper()
	clearEnv(t)
	key := testKeyPEM(t)
	t.Setenv("FIREBASE_CLIENT_EMAIL", "notifier@bright.iam.gserviceaccount.com")
	t.Setenv("FIREBASE_PRIVATE_KEY", key)
	t.Setenv("FIREBASE_PROJECT_ID", "bright-future")
	t.Setenv("DATABASE_URL", "postgres://localhost/bright")
	return key
}

func TestLoadDefaults(t *testing.T) {
	setValidEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.Identity.Audience != defaultTokenURI {
		t.Errorf("Audience = %q, want %q", cfg.Identity.Audience, defaultTokenURI)
	}
	if cfg.Identity.Scope != defaultFCMScope {
		t.Errorf("Scope = %q, want %q", cfg.Identity.Scope, defaultFCMScope)
	}
	if cfg.FCMEndpoint != defaultFCMEndpoint {
		t.Errorf("FCMEndpoint = %q", cfg.FCMEndpoint)
	}
	if cfg.PushTransport != TransportHTTP || cfg.RecipientSource != SourceDatabase {
		t.Errorf("transport/source = %q/%q", cfg.PushTransport, cfg.RecipientSource)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("HTTPTimeout = %v, want 10s", cfg.HTTPTimeout)
	}
	if cfg.FanoutConcurrency != 10 {
		t.Errorf("FanoutConcurrency = %d, want 10", cfg.FanoutConcurrency)
	}
	if cfg.RecipientTable != "users" {
		t.Errorf("RecipientTable = %q, want users", cfg.RecipientTable)
	}
	if cfg.PruneStaleTokens {
		t.Error("PruneStaleTokens should default to false")
	}
}

func TestLoadEscapedPrivateKey(t *testing.T) {
	key := setValidEnv(t)
	t.Setenv("FIREBASE_PRIVATE_KEY", strings.ReplaceAll(key, "\n", `\n`))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Identity.PrivateKey != strings.TrimSpace(key) {
		t.Error("escaped newlines were not restored")
	}
}

func TestLoadServiceAccountFile(t *testing.T) {
	key := setValidEnv(t)
	t.Setenv("FIREBASE_CLIENT_EMAIL", "")
	t.Setenv("FIREBASE_PRIVATE_KEY", "")
	t.Setenv("FIREBASE_PROJECT_ID", "")

	raw, _ := json.Marshal(serviceAccountFile{
		ProjectID:   "from-file",
		PrivateKey:  key,
		ClientEmail: "file@from-file.iam.gserviceaccount.com",
		TokenURI:    "https://example.test/token",
	})
	path := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FIREBASE_CREDENTIALS", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ProjectID != "from-file" {
		t.Errorf("ProjectID = %q", cfg.ProjectID)
	}
	if cfg.Identity.Issuer != "file@from-file.iam.gserviceaccount.com" {
		t.Errorf("Issuer = %q", cfg.Identity.Issuer)
	}
	if cfg.Identity.Audience != "https://example.test/token" {
		t.Errorf("Audience = %q", cfg.Identity.Audience)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{"missing issuer", map[string]string{"FIREBASE_CLIENT_EMAIL": ""}, "FIREBASE_CLIENT_EMAIL"},
		{"missing key", map[string]string{"FIREBASE_PRIVATE_KEY": ""}, "FIREBASE_PRIVATE_KEY"},
		{"garbage key", map[string]string{"FIREBASE_PRIVATE_KEY": "not a pem"}, "FIREBASE_PRIVATE_KEY"},
		{"missing project", map[string]string{"FIREBASE_PROJECT_ID": ""}, "FIREBASE_PROJECT_ID"},
		{"bad transport", map[string]string{"PUSH_TRANSPORT": "carrier-pigeon"}, "PUSH_TRANSPORT"},
		{"bad timeout", map[string]string{"HTTP_TIMEOUT": "soon"}, "HTTP_TIMEOUT"},
		{"bad concurrency", map[string]string{"FANOUT_CONCURRENCY": "0"}, "FANOUT_CONCURRENCY"},
		{"missing database url", map[string]string{"DATABASE_URL": ""}, "DATABASE_URL"},
		{"bad driver", map[string]string{"DB_DRIVER": "oracle"}, "DB_DRIVER"},
		{"supabase without key", map[string]string{"RECIPIENT_SOURCE": "supabase", "SUPABASE_URL": "https://x.supabase.co"}, "SUPABASE_URL"},
		{"pubsub without project", map[string]string{"PUBSUB_SUBSCRIPTION": "rows-sub"}, "GOOGLE_PROJECT_ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setValidEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Load() error = %v, want *ConfigError", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.field)
			}
		})
	}
}

func TestLoadSupabaseFallbackEnv(t *testing.T) {
	setValidEnv(t)
	t.Setenv("RECIPIENT_SOURCE", "supabase")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("MY_SUPABASE_URL", "https://bright.supabase.co/")
	t.Setenv("MY_SUPABASE_SERVICE_ROLE_KEY", "service-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SupabaseURL != "https://bright.supabase.co" {
		t.Errorf("SupabaseURL = %q", cfg.SupabaseURL)
	}
	if cfg.SupabaseServiceKey != "service-key" {
		t.Errorf("SupabaseServiceKey = %q", cfg.SupabaseServiceKey)
	}
}
