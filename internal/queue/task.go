package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	TaskNotify = "notify"
	TaskPurge  = "purge"
)

// MaxStreamLen bounds the stream when the worker is down. Notify entries
// carry codes and reset links, so they must not accumulate.
const MaxStreamLen = 10000

// Task is the flat payload carried by a stream entry. Only the fields of
// its Type are set.
type Task struct {
	Type    string `json:"type"`
	To      string `json:"to,omitempty"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
}

func (t Task) values() map[string]any {
	values := map[string]any{"type": t.Type}
	if t.To != "" {
		values["to"] = t.To
	}
	if t.Subject != "" {
		values["subject"] = t.Subject
	}
	if t.Body != "" {
		values["body"] = t.Body
	}
	return values
}

func Enqueue(ctx context.Context, client redis.UniversalClient, stream string, task Task) (string, error) {
	id, err := client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: MaxStreamLen,
		Approx: true,
		Values: task.values(),
	}).Result()
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", task.Type, err)
	}
	return id, nil
}

func DecodeTask(msg redis.XMessage) (Task, error) {
	bytes, err := json.Marshal(msg.Values)
	if err != nil {
		return Task{}, err
	}
	var task Task
	if err := json.Unmarshal(bytes, &task); err != nil {
		return Task{}, err
	}
	return task, nil
}
