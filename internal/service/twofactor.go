package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/models"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/notify"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/security"
)

// Challenge describes an issued 2FA code. The code itself stays in the
// store and the notifier.
type Challenge struct {
	AccountID string
	ExpiresAt time.Time
	Delivered bool
}

type TwoFactorManager struct {
	store    AccountStore
	notifier notify.Notifier
	ttl      time.Duration
	digits   int
	now      func() time.Time
	log      zerolog.Logger
}

func NewTwoFactorManager(store AccountStore, notifier notify.Notifier, ttl time.Duration, digits int, log zerolog.Logger) *TwoFactorManager {
	return &TwoFactorManager{
		store:    store,
		notifier: notifier,
		ttl:      ttl,
		digits:   digits,
		now:      time.Now,
		log:      log,
	}
}

func (m *TwoFactorManager) WithClock(now func() time.Time) *TwoFactorManager {
	m.now = now
	return m
}

// Issue stores a fresh code for the account, replacing any outstanding one,
// and hands it to the notifier. A failed delivery is not an error.
func (m *TwoFactorManager) Issue(ctx context.Context, account models.Account) (Challenge, error) {
	code, err := security.NewNumericCode(m.digits)
	if err != nil {
		return Challenge{}, err
	}
	expiresAt := m.now().UTC().Add(m.ttl)

	if err := m.store.SetTwoFactor(ctx, account.ID, code, expiresAt); err != nil {
		return Challenge{}, fmt.Errorf("store 2fa code: %w", notFound(err))
	}

	msg := notify.TwoFactorCode(code, m.ttl)
	delivered := m.notifier.Send(ctx, account.Email, msg.Subject, msg.Body)
	if !delivered {
		m.log.Warn().Str("account_id", account.ID).Msg("2fa code not delivered")
	}

	return Challenge{AccountID: account.ID, ExpiresAt: expiresAt, Delivered: delivered}, nil
}

// Verify consumes the outstanding code. Expired codes are cleared, a wrong
// code leaves the challenge in place.
func (m *TwoFactorManager) Verify(ctx context.Context, accountID, code string) error {
	now := m.now()
	err := m.store.ConsumeTwoFactor(ctx, accountID, func(secret models.Secret) (bool, error) {
		return checkChallenge(secret, code, now)
	})
	return notFound(err)
}

func checkChallenge(secret models.Secret, code string, now time.Time) (bool, error) {
	if !secret.Outstanding() {
		return false, ErrChallengeNotInitialized
	}
	if secret.ExpiresAt == nil {
		return true, ErrChallengeNotInitialized
	}
	if now.After(*secret.ExpiresAt) {
		return true, ErrChallengeExpired
	}
	if subtle.ConstantTimeCompare([]byte(secret.Value), []byte(code)) != 1 {
		return false, ErrChallengeMismatch
	}
	return true, nil
}

// IsChallengeError reports whether err is one of the 2FA outcome errors.
func IsChallengeError(err error) bool {
	return errors.Is(err, ErrChallengeNotInitialized) ||
		errors.Is(err, ErrChallengeExpired) ||
		errors.Is(err, ErrChallengeMismatch)
}
