package recipient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// RESTStore reads device tokens through the Supabase PostgREST API using the
// service-role key.
type RESTStore struct {
	httpClient *http.Client
	baseURL    string
	serviceKey string
	table      string
}

// NewRESTStore creates a store for <baseURL>/rest/v1/<table>.
func NewRESTStore(baseURL, serviceKey, table string, timeout time.Duration) *RESTStore {
	return &RESTStore{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		serviceKey: serviceKey,
		table:      table,
	}
}

type tokenRow struct {
	FCMToken *string `json:"fcm_token"`
}

// TokensExcept returns the device tokens of every user other than userID.
func (s *RESTStore) TokensExcept(ctx context.Context, userID string) ([]string, error) {
	q := url.Values{}
	q.Set("select", "fcm_token")
	if userID != "" {
		q.Set("id", "neq."+userID)
	}
	q.Set("fcm_token", "not.is.null")

	resp, err := s.do(ctx, http.MethodGet, q, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rows []tokenRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode %s rows: %w", s.table, err)
	}

	tokens := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.FCMToken != nil && *r.FCMToken != "" {
			tokens = append(tokens, *r.FCMToken)
		}
	}
	return tokens, nil
}

// ClearToken nulls the fcm_token column wherever it equals token.
func (s *RESTStore) ClearToken(ctx context.Context, token string) error {
	q := url.Values{}
	q.Set("fcm_token", "eq."+token)

	resp, err := s.do(ctx, http.MethodPatch, q, map[string]any{"fcm_token": nil})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (s *RESTStore) do(ctx context.Context, method string, query url.Values, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", s.baseURL, url.PathEscape(s.table), query.Encode())
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=minimal")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("supabase %s %s: %w", method, s.table, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, fmt.Errorf("supabase %s %s: status=%d, body=%s", method, s.table, resp.StatusCode, string(raw))
	}
	return resp, nil
}
