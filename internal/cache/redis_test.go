package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/config"
)

func TestNewRedisClient(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	addr := mr.Addr()

	client, err := NewRedisClient(context.Background(), config.RedisConfig{Addr: " " + addr + " "})
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	if err := client.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, _ := mr.Get("k"); got != "v" {
		t.Errorf("stored %q", got)
	}
	_ = client.Close()

	mr.Close()
	if _, err := NewRedisClient(context.Background(), config.RedisConfig{Addr: addr}); err == nil {
		t.Error("expected error when redis is down")
	}
	if _, err := NewRedisClient(context.Background(), config.RedisConfig{Addr: " , "}); err == nil {
		t.Error("expected error without address")
	}
}

func TestSplitAddrs(t *testing.T) {
	got := splitAddrs("a:6379, b:6379,,")
	if len(got) != 2 || got[0] != "a:6379" || got[1] != "b:6379" {
		t.Errorf("splitAddrs = %v", got)
	}
}
