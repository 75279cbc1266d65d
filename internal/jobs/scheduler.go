package jobs

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/queue"
)

// Scheduler enqueues periodic maintenance tasks for the worker.
type Scheduler struct {
	cron   *cron.Cron
	queue  redis.UniversalClient
	stream string
	log    zerolog.Logger
}

func NewScheduler(client redis.UniversalClient, stream string, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:   c,
		queue:  client,
		stream: stream,
		log:    log,
	}
}

// Start registers the purge task on purgeSchedule, a six-field cron spec.
func (s *Scheduler) Start(purgeSchedule string) error {
	if s.queue == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(purgeSchedule, s.EnqueuePurge); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info().Str("schedule", purgeSchedule).Msg("purge job scheduled")
	return nil
}

// Stop waits up to five seconds for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) EnqueuePurge() {
	if s.queue == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := queue.Enqueue(ctx, s.queue, s.stream, queue.Task{Type: queue.TaskPurge}); err != nil {
		s.log.Error().Err(err).Msg("enqueue purge failed")
	}
}
