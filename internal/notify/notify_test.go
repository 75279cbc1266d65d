package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/config"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/queue"
)

func TestTemplates(t *testing.T) {
	code := TwoFactorCode("123456", 10*time.Minute)
	if !strings.Contains(code.Body, "123456") || !strings.Contains(code.Body, "10 minutes") {
		t.Errorf("2FA body = %q", code.Body)
	}

	reset := PasswordReset("https://api.example.com/reset-password?token=abc", time.Hour)
	if !strings.Contains(reset.Body, "token=abc") || !strings.Contains(reset.Body, "60 minutes") {
		t.Errorf("reset body = %q", reset.Body)
	}
}

func TestSMTPNotifierUnconfiguredReportsFalse(t *testing.T) {
	n := NewSMTPNotifier(config.MailConfig{Host: "smtp.example.com", Port: 587}, zerolog.Nop())
	if n.Configured() {
		t.Fatal("notifier without credentials reports configured")
	}
	if n.Send(context.Background(), "a@x.com", "hi", "body") {
		t.Error("unconfigured notifier reported delivery")
	}
}

func TestSMTPNotifierCompose(t *testing.T) {
	n := NewSMTPNotifier(config.MailConfig{FromName: "Dreambox Interactive", FromAddress: "no-reply@example.com"}, zerolog.Nop())
	msg := string(n.compose("a@x.com", "Code", "line one\nline two"))

	for _, want := range []string{
		"From: \"Dreambox Interactive\" <no-reply@example.com>\r\n",
		"To: a@x.com\r\n",
		"Subject: Code\r\n",
		"\r\n\r\nline one\r\nline two\r\n",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestStreamNotifierEnqueues(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	n := NewStreamNotifier(client, "dreambox:tasks", zerolog.Nop())
	if !n.Send(ctx, "a@x.com", "Code", "123456") {
		t.Fatal("Send reported failure")
	}

	msgs, err := client.XRange(ctx, "dreambox:tasks", "-", "+").Result()
	if err != nil {
		t.Fatalf("XRange: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d entries, want 1", len(msgs))
	}
	task, err := queue.DecodeTask(msgs[0])
	if err != nil {
		t.Fatalf("DecodeTask: %v", err)
	}
	want := queue.Task{Type: queue.TaskNotify, To: "a@x.com", Subject: "Code", Body: "123456"}
	if task != want {
		t.Errorf("task = %+v, want %+v", task, want)
	}

	mr.Close()
	if n.Send(ctx, "a@x.com", "Code", "123456") {
		t.Error("Send reported success with redis down")
	}
}
