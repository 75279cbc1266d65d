package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/access"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/config"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/handlers"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/repository"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/security"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/service"
)

type silentNotifier struct{}

func (silentNotifier) Send(_ context.Context, _, _, _ string) bool { return false }

func TestServerRoutes(t *testing.T) {
	log := zerolog.Nop()
	cfg := &config.AppConfig{Environment: "test", HTTP: config.HTTPConfig{Host: "127.0.0.1", Port: 0}}

	store := repository.NewMemoryStore()
	resolver := access.NewResolver(nil, nil, nil)
	auth := service.NewAuthService(
		store,
		security.NewPasswordHasher(security.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1}, 0),
		security.NewSessionTokens("k", time.Hour),
		resolver,
		service.NewTwoFactorManager(store, silentNotifier{}, time.Minute, 6, log),
		service.NewResetManager(store, silentNotifier{}, time.Hour, "", log),
		nil, log,
	)
	srv := NewHTTPServer(cfg, log, handlers.NewHandlerSet(log, cfg.Environment, auth, service.NewAdminService(store, resolver, log)))

	cases := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/api/healthz", http.StatusOK},
		{http.MethodGet, "/api/v1/nowhere", http.StatusNotFound},
		{http.MethodGet, "/api/v1/auth/login", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/admin/pending", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		if w.Code != tc.status {
			t.Errorf("%s %s = %d, want %d", tc.method, tc.path, w.Code, tc.status)
		}
		if w.Header().Get("X-Request-Id") == "" {
			t.Errorf("%s %s: missing request id", tc.method, tc.path)
		}
	}
}
