package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/models"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/notify"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/repository"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/security"
)

// ResetManager issues and consumes password reset tokens. Only the SHA-256
// digest of a token is stored.
type ResetManager struct {
	store    AccountStore
	notifier notify.Notifier
	ttl      time.Duration
	apiBase  string
	now      func() time.Time
	log      zerolog.Logger
}

func NewResetManager(store AccountStore, notifier notify.Notifier, ttl time.Duration, apiBase string, log zerolog.Logger) *ResetManager {
	return &ResetManager{
		store:    store,
		notifier: notifier,
		ttl:      ttl,
		apiBase:  strings.TrimRight(apiBase, "/"),
		now:      time.Now,
		log:      log,
	}
}

func (m *ResetManager) WithClock(now func() time.Time) *ResetManager {
	m.now = now
	return m
}

func (m *ResetManager) Issue(ctx context.Context, accountID, email string) error {
	token, digest, err := security.NewResetToken()
	if err != nil {
		return err
	}
	expiresAt := m.now().UTC().Add(m.ttl)

	if err := m.store.SetPasswordReset(ctx, accountID, digest, expiresAt); err != nil {
		return fmt.Errorf("store reset token: %w", notFound(err))
	}

	msg := notify.PasswordReset(m.link(token), m.ttl)
	if !m.notifier.Send(ctx, email, msg.Subject, msg.Body) {
		m.log.Warn().Str("account_id", accountID).Msg("password reset link not delivered")
		return ErrDeliveryFailed
	}
	return nil
}

func (m *ResetManager) link(token string) string {
	return m.apiBase + "/reset-password?token=" + url.QueryEscape(token)
}

// Consume redeems token and stores newPasswordHash in the same step. An
// expired token is cleared and rejected.
func (m *ResetManager) Consume(ctx context.Context, token, newPasswordHash string) (string, error) {
	if token == "" {
		return "", ErrResetTokenInvalid
	}
	now := m.now()
	accountID, err := m.store.ConsumePasswordReset(ctx, security.HashToken(token), newPasswordHash,
		func(secret models.Secret) (bool, error) {
			return checkResetToken(secret, now)
		},
	)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return "", ErrResetTokenInvalid
	}
	if err != nil {
		return "", err
	}
	return accountID, nil
}

// checkResetToken clears the token whatever the outcome: a matched token is
// either redeemed now or unusable.
func checkResetToken(secret models.Secret, now time.Time) (bool, error) {
	if secret.ExpiresAt == nil {
		return true, ErrResetTokenInvalid
	}
	if now.After(*secret.ExpiresAt) {
		return true, ErrResetTokenExpired
	}
	return true, nil
}
