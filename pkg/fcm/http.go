package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Youssaou51/Bright/internal/logging"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const maxErrorBody = 64 << 10

// HTTPSender posts messages to the FCM HTTP v1 API, authorizing every request
// with a bearer token from the supplied token source.
type HTTPSender struct {
	httpClient *http.Client
	sendURL    string
	log        zerolog.Logger
}

// NewHTTPSender builds a sender for <endpoint>/<projectID>/messages:send.
// timeout bounds each request.
func NewHTTPSender(endpoint, projectID string, ts oauth2.TokenSource, timeout time.Duration) *HTTPSender {
	client := oauth2.NewClient(context.Background(), ts)
	client.Timeout = timeout
	return &HTTPSender{
		httpClient: client,
		sendURL:    fmt.Sprintf("%s/%s/messages:send", endpoint, projectID),
		log:        logging.Component("fcm"),
	}
}

type sendRequest struct {
	Message wireMessage `json:"message"`
}

type wireMessage struct {
	Token        string            `json:"token"`
	Notification wireNotification  `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type wireNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

// Send pushes a single message. Any non-2xx response or transport failure is
// returned as *SendError.
func (s *HTTPSender) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(sendRequest{Message: wireMessage{
		Token: msg.Token,
		Notification: wireNotification{
			Title: msg.Title,
			Body:  msg.Body,
			Sound: msg.Sound,
		},
		Data: msg.Data,
	}})
	if err != nil {
		return &SendError{Token: msg.Token, Err: fmt.Errorf("failed to encode message: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.sendURL, bytes.NewReader(payload))
	if err != nil {
		return &SendError{Token: msg.Token, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &SendError{Token: msg.Token, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		s.log.Debug().Str("token", logging.ShortToken(msg.Token)).Msg("message sent")
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	sendErr := &SendError{Token: msg.Token, StatusCode: resp.StatusCode, Body: string(body)}
	var parsed errorResponse
	if json.Unmarshal(body, &parsed) == nil {
		sendErr.ErrorCode = parsed.Error.Status
		for _, d := range parsed.Error.Details {
			if d.ErrorCode != "" {
				sendErr.ErrorCode = d.ErrorCode
				break
			}
		}
	}
	return sendErr
}
