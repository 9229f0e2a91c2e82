package notification

import (
	"context"
	"errors"
	"fmt"
	"testing"

	accountdomain "mailsync-backend/internal/account/domain"
	syncusecase "mailsync-backend/internal/sync/usecase"

	"github.com/rs/zerolog"
)

type handlerFunc func(ctx context.Context, data []byte) error

func (f handlerFunc) HandleNotification(ctx context.Context, data []byte) error { return f(ctx, data) }

func TestProcessAckDecision(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantAck bool
	}{
		{"queued", nil, true},
		{"unknown mailbox", accountdomain.ErrAccountNotFound, true},
		{"malformed", fmt.Errorf("%w: bad json", syncusecase.ErrInvalidNotification), true},
		{"queue down", errors.New("redis: connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []byte
			s := &Service{
				handler: handlerFunc(func(ctx context.Context, data []byte) error {
					got = data
					return tt.err
				}),
				log: zerolog.Nop(),
			}
			if ack := s.process(context.Background(), "1", []byte("payload")); ack != tt.wantAck {
				t.Errorf("ack = %v, want %v", ack, tt.wantAck)
			}
			if string(got) != "payload" {
				t.Errorf("handler got %q", got)
			}
		})
	}
}

func TestShortName(t *testing.T) {
	tests := map[string]string{
		"projects/p/topics/gmail-updates": "gmail-updates",
		"gmail-updates":                   "gmail-updates",
		"":                                "",
	}
	for in, want := range tests {
		if got := shortName(in); got != want {
			t.Errorf("shortName(%q) = %q, want %q", in, got, want)
		}
	}
}
