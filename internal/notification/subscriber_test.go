package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/Youssaou51/Bright/internal/logging"
)

type stubDispatcher struct {
	err    error
	events []ChangeEvent
}

func (s *stubDispatcher) Dispatch(_ context.Context, event ChangeEvent) (Result, error) {
	s.events = append(s.events, event)
	return Result{Attempted: 1, Succeeded: 1}, s.err
}

func TestSubscriberProcess(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		data        string
		dispatchErr error
		wantAck     bool
		wantCalls   int
	}{
		{
			name:      "valid message",
			data:      `{"table":"posts","record":{"id":1,"user_id":2,"username":"a","caption":"b"}}`,
			wantAck:   true,
			wantCalls: 1,
		},
		{
			name:      "malformed message is dropped",
			data:      `not json`,
			wantAck:   true,
			wantCalls: 0,
		},
		{
			name:      "missing record is dropped",
			data:      `{"table":"posts"}`,
			wantAck:   true,
			wantCalls: 0,
		},
		{
			name:        "dispatch failure is redelivered",
			data:        `{"table":"posts","record":{"id":1}}`,
			dispatchErr: &DispatchError{DispatchID: "d1", Err: &LookupError{Err: errors.New("db down")}},
			wantAck:     false,
			wantCalls:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stub := &stubDispatcher{err: tt.dispatchErr}
			s := &Subscriber{dispatcher: stub, subName: "rows-sub", log: logging.Component("pubsub")}

			if got := s.process(t.Context(), "msg-1", []byte(tt.data)); got != tt.wantAck {
				t.Errorf("process() ack = %v, want %v", got, tt.wantAck)
			}
			if len(stub.events) != tt.wantCalls {
				t.Errorf("dispatch calls = %d, want %d", len(stub.events), tt.wantCalls)
			}
		})
	}
}
