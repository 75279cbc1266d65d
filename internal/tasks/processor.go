package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/notify"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/queue"
)

type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Processor executes tasks read from the worker stream.
type Processor struct {
	notifier notify.Notifier
	purger   Purger
	now      func() time.Time
	logger   zerolog.Logger
}

func NewProcessor(notifier notify.Notifier, purger Purger, logger zerolog.Logger) *Processor {
	return &Processor{
		notifier: notifier,
		purger:   purger,
		now:      time.Now,
		logger:   logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	task, err := queue.DecodeTask(msg)
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch task.Type {
	case queue.TaskNotify:
		return p.handleNotify(ctx, task)
	case queue.TaskPurge:
		return p.handlePurge(ctx)
	default:
		p.logger.Warn().Str("type", task.Type).Str("message_id", msg.ID).Msg("unknown task type")
		return nil
	}
}

// Undelivered mail is logged and acknowledged. A 2FA code is only useful
// for minutes, so redelivering it later is pointless.
func (p *Processor) handleNotify(ctx context.Context, task queue.Task) error {
	if task.To == "" {
		p.logger.Warn().Msg("notify task without recipient dropped")
		return nil
	}
	if !p.notifier.Send(ctx, task.To, task.Subject, task.Body) {
		p.logger.Warn().Str("to", task.To).Msg("notify task not delivered")
	}
	return nil
}

func (p *Processor) handlePurge(ctx context.Context) error {
	if p.purger == nil {
		p.logger.Warn().Msg("purge task received without a credential store")
		return nil
	}
	n, err := p.purger.PurgeExpired(ctx, p.now())
	if err != nil {
		return fmt.Errorf("purge expired secrets: %w", err)
	}
	p.logger.Info().Int64("accounts", n).Msg("expired secrets purged")
	return nil
}
