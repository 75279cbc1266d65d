package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type stubNotifier struct {
	ok   bool
	sent []string
}

func (n *stubNotifier) Send(_ context.Context, to, _, _ string) bool {
	n.sent = append(n.sent, to)
	return n.ok
}

type stubPurger struct {
	at  time.Time
	err error
}

func (p *stubPurger) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	p.at = now
	return 3, p.err
}

func message(values map[string]interface{}) redis.XMessage {
	return redis.XMessage{ID: "1-0", Values: values}
}

func TestProcessorNotify(t *testing.T) {
	ctx := context.Background()

	for _, delivered := range []bool{true, false} {
		notifier := &stubNotifier{ok: delivered}
		p := NewProcessor(notifier, nil, zerolog.Nop())

		err := p.Handle(ctx, message(map[string]interface{}{"type": "notify", "to": "a@x.com", "subject": "s", "body": "b"}))
		if err != nil {
			t.Fatalf("delivered=%v: Handle = %v", delivered, err)
		}
		if len(notifier.sent) != 1 || notifier.sent[0] != "a@x.com" {
			t.Errorf("sent = %v", notifier.sent)
		}
	}

	notifier := &stubNotifier{ok: true}
	p := NewProcessor(notifier, nil, zerolog.Nop())
	if err := p.Handle(ctx, message(map[string]interface{}{"type": "notify"})); err != nil {
		t.Fatalf("Handle without recipient = %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Error("message sent without recipient")
	}
}

func TestProcessorPurge(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	purger := &stubPurger{}
	p := NewProcessor(&stubNotifier{}, purger, zerolog.Nop())
	p.now = func() time.Time { return now }

	if err := p.Handle(ctx, message(map[string]interface{}{"type": "purge"})); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !purger.at.Equal(now) {
		t.Errorf("purged at %v", purger.at)
	}

	purger.err = errors.New("db down")
	if err := p.Handle(ctx, message(map[string]interface{}{"type": "purge"})); err == nil {
		t.Error("purge failure should be returned so the entry stays pending")
	}
}

func TestProcessorUnknownTask(t *testing.T) {
	p := NewProcessor(&stubNotifier{}, nil, zerolog.Nop())
	if err := p.Handle(context.Background(), message(map[string]interface{}{"type": "thumbnail"})); err != nil {
		t.Errorf("unknown task = %v", err)
	}
}
