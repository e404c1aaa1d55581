package fcm

import (
	"context"
	"fmt"

	"github.com/Youssaou51/Bright/internal/logging"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

// SDKSender wraps the Firebase Admin SDK messaging client. It authenticates
// through the same token source as HTTPSender, so it shares the token cache.
type SDKSender struct {
	messagingClient *messaging.Client
	log             zerolog.Logger
}

// NewSDKSender creates a messaging client for projectID.
func NewSDKSender(ctx context.Context, projectID string, ts oauth2.TokenSource) (*SDKSender, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	log := logging.Component("fcm")
	log.Info().Str("project", projectID).Msg("SDK client initialized")
	return &SDKSender{
		messagingClient: messagingClient,
		log:             log,
	}, nil
}

// Send pushes a single message through the SDK.
func (c *SDKSender) Send(ctx context.Context, msg Message) error {
	response, err := c.messagingClient.Send(ctx, buildSDKMessage(msg))
	if err != nil {
		sendErr := &SendError{Token: msg.Token, Err: err}
		if messaging.IsUnregistered(err) {
			sendErr.ErrorCode = "UNREGISTERED"
		}
		return sendErr
	}

	c.log.Debug().Str("token", logging.ShortToken(msg.Token)).Str("response", response).Msg("message sent")
	return nil
}

// buildSDKMessage places the sound where each platform expects it, since the
// v1 notification object has no sound field.
func buildSDKMessage(msg Message) *messaging.Message {
	message := &messaging.Message{
		Token: msg.Token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
	}
	if msg.Sound != "" {
		message.Android = &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{Sound: msg.Sound},
		}
		message.APNS = &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{Aps: &messaging.Aps{Sound: msg.Sound}},
		}
	}
	return message
}
