package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/access"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/ratelimit"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/repository"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/security"
)

const (
	testTwoFactorTTL = 10 * time.Minute
	testResetTTL     = 60 * time.Minute
	testSessionTTL   = 24 * time.Hour
)

type sentMessage struct {
	To      string
	Subject string
	Body    string
}

type fakeNotifier struct {
	mu   sync.Mutex
	fail bool
	sent []sentMessage
}

func (f *fakeNotifier) Send(_ context.Context, to, subject, body string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return false
	}
	f.sent = append(f.sent, sentMessage{To: to, Subject: subject, Body: body})
	return true
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeNotifier) last(t *testing.T) sentMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("no message sent")
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeNotifier) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	store    *repository.MemoryStore
	notifier *fakeNotifier
	clock    *testClock
	hasher   *security.PasswordHasher
	resolver *access.Resolver
	auth     *AuthService
	admin    *AdminService
}

func newHarness(t *testing.T, limiter *ratelimit.Limiter, admins ...string) *harness {
	t.Helper()

	log := zerolog.Nop()
	h := &harness{
		store:    repository.NewMemoryStore(),
		notifier: &fakeNotifier{},
		clock:    newTestClock(),
		hasher:   security.NewPasswordHasher(security.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1}, 128),
		resolver: access.NewResolver(access.DefaultMatrix(), nil, access.NewAllowlist(admins...)),
	}

	tokens := security.NewSessionTokens("test-signing-key", testSessionTTL).WithClock(h.clock.Now)
	twofa := NewTwoFactorManager(h.store, h.notifier, testTwoFactorTTL, 6, log).WithClock(h.clock.Now)
	resets := NewResetManager(h.store, h.notifier, testResetTTL, "https://api.example.com/", log).WithClock(h.clock.Now)

	h.auth = NewAuthService(h.store, h.hasher, tokens, h.resolver, twofa, resets, limiter, log)
	h.admin = NewAdminService(h.store, h.resolver, log)
	return h
}

// codeFrom extracts the 2FA code from a notification body.
func codeFrom(t *testing.T, msg sentMessage) string {
	t.Helper()
	const marker = "Your login code is: "
	i := strings.Index(msg.Body, marker)
	if i < 0 {
		t.Fatalf("no code in %q", msg.Body)
	}
	rest := msg.Body[i+len(marker):]
	if j := strings.IndexByte(rest, '\n'); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

// tokenFrom extracts the reset token from a notification body.
func tokenFrom(t *testing.T, msg sentMessage) string {
	t.Helper()
	const marker = "/reset-password?token="
	i := strings.Index(msg.Body, marker)
	if i < 0 {
		t.Fatalf("no reset link in %q", msg.Body)
	}
	rest := msg.Body[i+len(marker):]
	if j := strings.IndexByte(rest, '\n'); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

func (h *harness) signup(t *testing.T, email, password string) string {
	t.Helper()
	account, err := h.auth.Signup(context.Background(), email, password)
	if err != nil {
		t.Fatalf("Signup(%s): %v", email, err)
	}
	return account.ID
}

// loginCode logs in and returns the delivered 2FA code.
func (h *harness) loginCode(t *testing.T, email, password string) string {
	t.Helper()
	challenge, err := h.auth.Login(context.Background(), email, password, "203.0.113.7")
	if err != nil {
		t.Fatalf("Login(%s): %v", email, err)
	}
	if !challenge.Delivered {
		t.Fatal("challenge not delivered")
	}
	return codeFrom(t, h.notifier.last(t))
}
