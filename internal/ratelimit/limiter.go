package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimited      = errors.New("rate limited")
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Scope names a counted action. Each scope keeps its own counters.
type Scope string

const (
	ScopeLogin         Scope = "login"
	ScopeTwoFactor     Scope = "twofa"
	ScopePasswordReset Scope = "reset"
)

type Rule struct {
	MaxAttempts int
	Window      time.Duration
}

type Config struct {
	Prefix string
	Rules  map[Scope]Rule
}

// Limiter keeps fixed-window attempt counters in Redis. A nil client, or a
// scope without a rule, never limits.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "dreambox:rl"
	}
	return &Limiter{redis: redisClient, config: cfg}
}

// Check reports ErrRateLimited when subject has exhausted its budget in
// scope, without counting an attempt.
func (l *Limiter) Check(ctx context.Context, scope Scope, subject string) error {
	rule, ok := l.rule(scope)
	if !ok {
		return nil
	}

	count, err := l.redis.Get(ctx, l.key(scope, subject)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(rule.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Hit counts one attempt and reports ErrRateLimited once the budget is
// exceeded.
func (l *Limiter) Hit(ctx context.Context, scope Scope, subject string) error {
	rule, ok := l.rule(scope)
	if !ok {
		return nil
	}

	key := l.key(scope, subject)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	// Fixed window: the TTL is set by the first hit only.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, rule.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	if count > int64(rule.MaxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) Reset(ctx context.Context, scope Scope, subject string) error {
	if _, ok := l.rule(scope); !ok {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(scope, subject)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) rule(scope Scope) (Rule, bool) {
	if l == nil || l.redis == nil {
		return Rule{}, false
	}
	rule, ok := l.config.Rules[scope]
	if !ok || rule.MaxAttempts <= 0 || rule.Window <= 0 {
		return Rule{}, false
	}
	return rule, true
}

func (l *Limiter) key(scope Scope, subject string) string {
	return l.config.Prefix + ":" + string(scope) + ":" + subject
}
