package notification

import (
	"context"
	"fmt"

	"github.com/Youssaou51/Bright/internal/logging"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// EventDispatcher is the part of Dispatcher the subscriber needs.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event ChangeEvent) (Result, error)
}

// Subscriber feeds {table, record} messages from a Pub/Sub subscription into
// a dispatcher.
type Subscriber struct {
	pubsubClient *pubsub.Client
	dispatcher   EventDispatcher
	subName      string
	log          zerolog.Logger
}

func NewSubscriber(ctx context.Context, projectID, subName, credentialsFile string, dispatcher EventDispatcher) (*Subscriber, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	return &Subscriber{
		pubsubClient: client,
		dispatcher:   dispatcher,
		subName:      subName,
		log:          logging.Component("pubsub"),
	}, nil
}

// Start blocks receiving messages until ctx is cancelled.
func (s *Subscriber) Start(ctx context.Context) error {
	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check subscription %s: %w", s.subName, err)
	}
	if !exists {
		return fmt.Errorf("subscription %s does not exist", s.subName)
	}

	s.log.Info().Str("subscription", s.subName).Msg("listening for change events")
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if s.process(ctx, msg.ID, msg.Data) {
			msg.Ack()
		} else {
			msg.Nack()
		}
	})
	if err != nil {
		return fmt.Errorf("error receiving messages: %w", err)
	}
	return nil
}

// process dispatches one message and reports whether it should be acked.
// Malformed payloads are acked so they are not redelivered forever; auth and
// lookup failures are nacked for redelivery.
func (s *Subscriber) process(ctx context.Context, id string, data []byte) bool {
	event, err := DecodeEvent(data)
	if err != nil {
		s.log.Warn().Err(err).Str("message_id", id).Msg("dropping malformed message")
		return true
	}

	res, err := s.dispatcher.Dispatch(ctx, event)
	if err != nil {
		s.log.Error().Err(err).Str("message_id", id).Msg("dispatch failed, message will be redelivered")
		return false
	}

	s.log.Debug().
		Str("message_id", id).
		Int("attempted", res.Attempted).
		Int("failed", res.Failed).
		Msg("message handled")
	return true
}

func (s *Subscriber) Close() error {
	return s.pubsubClient.Close()
}
