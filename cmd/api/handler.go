package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Youssaou51/Bright/internal/logging"
	"github.com/Youssaou51/Bright/internal/metrics"
	"github.com/Youssaou51/Bright/internal/notification"
	"github.com/Youssaou51/Bright/pkg/credential"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const actionTestFirebase = "test_firebase"

type EventDispatcher interface {
	Dispatch(ctx context.Context, event notification.ChangeEvent) (notification.Result, error)
}

type TokenProvider interface {
	GetAccessToken(ctx context.Context) (credential.AccessToken, error)
}

type Handler struct {
	dispatcher    EventDispatcher
	tokens        TokenProvider
	webhookSecret string
	log           zerolog.Logger
}

// NewHandler wires the trigger endpoint. An empty webhookSecret leaves
// /api/notify open.
func NewHandler(dispatcher EventDispatcher, tokens TokenProvider, webhookSecret string) *Handler {
	return &Handler{
		dispatcher:    dispatcher,
		tokens:        tokens,
		webhookSecret: webhookSecret,
		log:           logging.Component("api"),
	}
}

func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.log))
	SetupRoutes(r, h)
	return r
}

// Notify handles a database change trigger or an operator action.
func (h *Handler) Notify(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		invalidRequest(c, "could not read body")
		return
	}

	var payload notification.Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		invalidRequest(c, "body is not valid JSON")
		return
	}

	switch payload.Action {
	case "":
	case actionTestFirebase:
		h.testFirebase(c)
		return
	default:
		invalidRequest(c, "unknown action "+payload.Action)
		return
	}

	event, err := notification.NewChangeEvent(payload.Table, payload.Record)
	if err != nil {
		invalidRequest(c, err.Error())
		return
	}

	res, err := h.dispatcher.Dispatch(c.Request.Context(), event)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorKind(err), "message": err.Error()})
		return
	}

	body := gin.H{
		"status":      "ok",
		"dispatch_id": res.DispatchID,
		"attempted":   res.Attempted,
		"succeeded":   res.Succeeded,
		"failed":      res.Failed,
	}
	if res.Skipped != "" {
		body["skipped"] = res.Skipped
	}
	c.JSON(http.StatusOK, body)
}

// testFirebase only checks that the service account can obtain a token.
func (h *Handler) testFirebase(c *gin.Context) {
	tok, err := h.tokens.GetAccessToken(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("test_firebase: token exchange failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "auth_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"token_obtained": true,
		"expires_at":     tok.ExpiresAt(),
	})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "stats": metrics.GetSnapshot()})
}

func errorKind(err error) string {
	var authErr *credential.AuthError
	var lookupErr *notification.LookupError
	switch {
	case errors.As(err, &authErr):
		return "auth_error"
	case errors.As(err, &lookupErr):
		return "lookup_error"
	default:
		return "dispatch_error"
	}
}

func invalidRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": msg})
}
