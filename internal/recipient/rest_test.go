package recipient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"
)

type restCall struct {
	Method string
	Path   string
	Query  map[string]string
	APIKey string
	Auth   string
	Body   string
}

func newSupabase(t *testing.T, status int, body string) (*httptest.Server, chan restCall) {
	t.Helper()
	calls := make(chan restCall, 4)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		q := map[string]string{}
		for k := range r.URL.Query() {
			q[k] = r.URL.Query().Get(k)
		}
		calls <- restCall{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  q,
			APIKey: r.Header.Get("apikey"),
			Auth:   r.Header.Get("Authorization"),
			Body:   string(raw),
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts, calls
}

func TestRESTStoreTokensExcept(t *testing.T) {
	t.Parallel()

	ts, calls := newSupabase(t, http.StatusOK, `[{"fcm_token":"t1"},{"fcm_token":null},{"fcm_token":""},{"fcm_token":"t2"}]`)
	store := NewRESTStore(ts.URL, "service-key", "profiles", 5*time.Second)

	tokens, err := store.TokensExcept(t.Context(), "42")
	if err != nil {
		t.Fatalf("TokensExcept() error = %v", err)
	}
	if !slices.Equal(tokens, []string{"t1", "t2"}) {
		t.Errorf("tokens = %v, want [t1 t2]", tokens)
	}

	call := <-calls
	if call.Method != http.MethodGet || call.Path != "/rest/v1/profiles" {
		t.Errorf("request = %s %s", call.Method, call.Path)
	}
	if call.Query["id"] != "neq.42" || call.Query["select"] != "fcm_token" {
		t.Errorf("query = %v", call.Query)
	}
	if call.APIKey != "service-key" || call.Auth != "Bearer service-key" {
		t.Errorf("auth headers = %q / %q", call.APIKey, call.Auth)
	}
}

func TestRESTStoreErrorStatus(t *testing.T) {
	t.Parallel()

	ts, _ := newSupabase(t, http.StatusUnauthorized, `{"message":"Invalid API key"}`)
	store := NewRESTStore(ts.URL, "wrong", "users", 5*time.Second)

	if _, err := store.TokensExcept(t.Context(), "42"); err == nil {
		t.Fatal("expected an error for a 401 response")
	}
}

func TestRESTStoreClearToken(t *testing.T) {
	t.Parallel()

	ts, calls := newSupabase(t, http.StatusNoContent, "")
	store := NewRESTStore(ts.URL, "service-key", "users", 5*time.Second)

	if err := store.ClearToken(t.Context(), "stale"); err != nil {
		t.Fatalf("ClearToken() error = %v", err)
	}

	call := <-calls
	if call.Method != http.MethodPatch {
		t.Errorf("method = %s", call.Method)
	}
	if call.Query["fcm_token"] != "eq.stale" {
		t.Errorf("query = %v", call.Query)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(call.Body), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if v, ok := body["fcm_token"]; !ok || v != nil {
		t.Errorf("body = %v, want fcm_token:null", body)
	}
}

func TestRESTStoreTokensWithoutAuthor(t *testing.T) {
	t.Parallel()

	ts, calls := newSupabase(t, http.StatusOK, `[]`)
	store := NewRESTStore(ts.URL, "service-key", "users", 5*time.Second)

	if _, err := store.TokensExcept(t.Context(), ""); err != nil {
		t.Fatalf("TokensExcept() error = %v", err)
	}
	if call := <-calls; call.Query["id"] != "" {
		t.Errorf("id filter = %q, want none", call.Query["id"])
	}
}
