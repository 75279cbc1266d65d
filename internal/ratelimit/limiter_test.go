package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, rules map[Scope]Rule) (*miniredis.Miniredis, *Limiter) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, New(client, Config{Rules: rules})
}

func TestHitLimitsAfterBudget(t *testing.T) {
	ctx := context.Background()
	_, l := newTestLimiter(t, map[Scope]Rule{
		ScopeTwoFactor: {MaxAttempts: 3, Window: time.Minute},
	})

	for i := 0; i < 3; i++ {
		if err := l.Hit(ctx, ScopeTwoFactor, "acct"); err != nil {
			t.Fatalf("hit %d: %v", i, err)
		}
	}
	if err := l.Check(ctx, ScopeTwoFactor, "acct"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Check = %v, want ErrRateLimited", err)
	}
	if err := l.Hit(ctx, ScopeTwoFactor, "acct"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Hit = %v, want ErrRateLimited", err)
	}
	if err := l.Check(ctx, ScopeTwoFactor, "other"); err != nil {
		t.Fatalf("other subject limited: %v", err)
	}
}

func TestWindowExpires(t *testing.T) {
	ctx := context.Background()
	mr, l := newTestLimiter(t, map[Scope]Rule{
		ScopeLogin: {MaxAttempts: 1, Window: time.Minute},
	})

	_ = l.Hit(ctx, ScopeLogin, "a@x.com")
	if err := l.Check(ctx, ScopeLogin, "a@x.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Check = %v, want ErrRateLimited", err)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := l.Check(ctx, ScopeLogin, "a@x.com"); err != nil {
		t.Fatalf("Check after window = %v", err)
	}
}

func TestResetClearsCounter(t *testing.T) {
	ctx := context.Background()
	_, l := newTestLimiter(t, map[Scope]Rule{
		ScopeLogin: {MaxAttempts: 1, Window: time.Minute},
	})

	_ = l.Hit(ctx, ScopeLogin, "a@x.com")
	if err := l.Reset(ctx, ScopeLogin, "a@x.com"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := l.Check(ctx, ScopeLogin, "a@x.com"); err != nil {
		t.Fatalf("Check after reset = %v", err)
	}
}

func TestDisabledLimiterNeverLimits(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		l    *Limiter
	}{
		{"nil limiter", nil},
		{"nil client", New(nil, Config{Rules: map[Scope]Rule{ScopeLogin: {MaxAttempts: 1, Window: time.Minute}}})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				if err := tc.l.Hit(ctx, ScopeLogin, "a@x.com"); err != nil {
					t.Fatalf("Hit: %v", err)
				}
			}
			if err := tc.l.Check(ctx, ScopeLogin, "a@x.com"); err != nil {
				t.Fatalf("Check: %v", err)
			}
		})
	}

	_, l := newTestLimiter(t, nil)
	for i := 0; i < 5; i++ {
		if err := l.Hit(ctx, ScopePasswordReset, "a@x.com"); err != nil {
			t.Fatalf("unconfigured scope limited: %v", err)
		}
	}
}
