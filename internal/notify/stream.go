package notify

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/queue"
)

// StreamNotifier hands messages to the worker through a Redis stream.
// Send reports true once the entry is enqueued.
type StreamNotifier struct {
	client redis.UniversalClient
	stream string
	log    zerolog.Logger
}

func NewStreamNotifier(client redis.UniversalClient, stream string, log zerolog.Logger) *StreamNotifier {
	return &StreamNotifier{client: client, stream: stream, log: log}
}

func (n *StreamNotifier) Send(ctx context.Context, to, subject, body string) bool {
	id, err := queue.Enqueue(ctx, n.client, n.stream, queue.Task{
		Type:    queue.TaskNotify,
		To:      to,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		n.log.Error().Err(err).Str("to", to).Msg("enqueue notification failed")
		return false
	}
	n.log.Debug().Str("message_id", id).Str("to", to).Msg("notification enqueued")
	return true
}
