package notification

import (
	"context"

	"github.com/Youssaou51/Bright/internal/logging"
	"github.com/Youssaou51/Bright/internal/metrics"
	"github.com/Youssaou51/Bright/pkg/credential"
	"github.com/Youssaou51/Bright/pkg/fcm"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Skip reasons reported in Result.Skipped.
const (
	SkipUnmatchedTable = "unmatched_table"
	SkipNoRecipients   = "no_recipients"
)

// RecipientLookup returns the device tokens of every user except one.
type RecipientLookup interface {
	TokensExcept(ctx context.Context, userID string) ([]string, error)
}

// TokenPruner forgets a device token the gateway no longer accepts.
type TokenPruner interface {
	ClearToken(ctx context.Context, token string) error
}

// TokenProvider hands out gateway access tokens.
type TokenProvider interface {
	GetAccessToken(ctx context.Context) (credential.AccessToken, error)
}

// Sender delivers one push message.
type Sender interface {
	Send(ctx context.Context, msg fcm.Message) error
}

// Result summarizes one dispatch.
type Result struct {
	DispatchID   string   `json:"dispatch_id"`
	Attempted    int      `json:"attempted"`
	Succeeded    int      `json:"succeeded"`
	Failed       int      `json:"failed"`
	FailedTokens []string `json:"-"`
	Skipped      string   `json:"skipped,omitempty"`
}

// Dispatcher fans a change event out to every recipient but its author.
type Dispatcher struct {
	recipients  RecipientLookup
	tokens      TokenProvider
	sender      Sender
	pruner      TokenPruner
	concurrency int
	log         zerolog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithConcurrency caps the number of sends in flight per dispatch.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithPruner clears tokens that the gateway reports as unregistered.
func WithPruner(p TokenPruner) Option {
	return func(d *Dispatcher) { d.pruner = p }
}

func NewDispatcher(recipients RecipientLookup, tokens TokenProvider, sender Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		recipients:  recipients,
		tokens:      tokens,
		sender:      sender,
		concurrency: 10,
		log:         logging.Component("dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch sends the event's notification to every recipient. Individual
// send failures are counted in the Result; only a failed recipient lookup or
// a missing access token fails the call. Cancellation of ctx is ignored once
// the dispatch has started.
func (d *Dispatcher) Dispatch(ctx context.Context, event ChangeEvent) (Result, error) {
	ctx = context.WithoutCancel(ctx)
	res := Result{DispatchID: uuid.NewString()}
	log := d.log.With().
		Str("dispatch_id", res.DispatchID).
		Str("table", event.TableName).
		Str("record_id", event.Record.ID.String()).
		Logger()

	content, ok := ContentFor(event)
	if !ok {
		log.Info().Msg("no notification for table")
		res.Skipped = SkipUnmatchedTable
		metrics.IncDispatch(SkipUnmatchedTable)
		return res, nil
	}

	raw, err := d.recipients.TokensExcept(ctx, event.Record.UserID.String())
	if err != nil {
		log.Error().Err(err).Msg("recipient lookup failed")
		metrics.IncDispatch("lookup_error")
		return res, &DispatchError{DispatchID: res.DispatchID, Err: &LookupError{Err: err}}
	}

	tokens := RecipientSet(raw)
	if len(tokens) == 0 {
		log.Info().Msg("no tokens found")
		res.Skipped = SkipNoRecipients
		metrics.IncDispatch(SkipNoRecipients)
		return res, nil
	}

	// Fetched up front so an auth failure aborts before any send. Senders read
	// the same cached token through the exchanger's TokenSource.
	if _, err := d.tokens.GetAccessToken(ctx); err != nil {
		log.Error().Err(err).Msg("no access token, dispatch aborted")
		metrics.IncDispatch("auth_error")
		return res, &DispatchError{DispatchID: res.DispatchID, Err: err}
	}

	errs := d.fanOut(ctx, tokens, content)

	res.Attempted = len(tokens)
	for i, sendErr := range errs {
		if sendErr == nil {
			res.Succeeded++
			metrics.IncSend(true)
			continue
		}
		res.Failed++
		res.FailedTokens = append(res.FailedTokens, tokens[i])
		metrics.IncSend(false)
		log.Warn().Err(sendErr).Str("token", logging.ShortToken(tokens[i])).Msg("push send failed")

		if d.pruner != nil && fcm.IsUnregistered(sendErr) {
			d.prune(ctx, log, tokens[i])
		}
	}

	log.Info().
		Int("attempted", res.Attempted).
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Msg("dispatch complete")
	metrics.IncDispatch("sent")
	return res, nil
}

// fanOut sends to every token and returns one error slot per token. Sends
// never report errors to the group, so a failure cannot cancel its siblings.
func (d *Dispatcher) fanOut(ctx context.Context, tokens []string, content Content) []error {
	errs := make([]error, len(tokens))

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, token := range tokens {
		g.Go(func() error {
			errs[i] = d.sender.Send(ctx, content.Message(token))
			return nil
		})
	}
	_ = g.Wait()

	return errs
}

func (d *Dispatcher) prune(ctx context.Context, log zerolog.Logger, token string) {
	if err := d.pruner.ClearToken(ctx, token); err != nil {
		log.Warn().Err(err).Str("token", logging.ShortToken(token)).Msg("failed to clear stale token")
		return
	}
	metrics.IncPruned()
	log.Info().Str("token", logging.ShortToken(token)).Msg("cleared stale token")
}
