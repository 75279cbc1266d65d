package jobs

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/queue"
)

func TestEnqueuePurge(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewScheduler(client, "tasks", zerolog.Nop())
	s.EnqueuePurge()

	msgs, err := client.XRange(context.Background(), "tasks", "-", "+").Result()
	if err != nil {
		t.Fatalf("XRange: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d entries", len(msgs))
	}
	task, err := queue.DecodeTask(msgs[0])
	if err != nil || task.Type != queue.TaskPurge {
		t.Fatalf("task = %+v, %v", task, err)
	}
}

func TestStartValidatesSchedule(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewScheduler(client, "tasks", zerolog.Nop())
	if err := s.Start("every now and then"); err == nil {
		t.Fatal("expected error for invalid schedule")
	}

	s = NewScheduler(client, "tasks", zerolog.Nop())
	if err := s.Start("0 */15 * * * *"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()

	if err := NewScheduler(nil, "tasks", zerolog.Nop()).Start("not parsed"); err != nil {
		t.Errorf("scheduler without redis = %v", err)
	}
}
