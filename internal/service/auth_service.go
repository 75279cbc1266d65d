package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/access"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/ids"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/models"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/ratelimit"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/repository"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/security"
)

type AuthService struct {
	store    AccountStore
	hasher   *security.PasswordHasher
	tokens   *security.SessionTokens
	resolver *access.Resolver
	twofa    *TwoFactorManager
	resets   *ResetManager
	limiter  *ratelimit.Limiter
	log      zerolog.Logger

	dummyOnce   sync.Once
	dummyDigest string
}

func NewAuthService(
	store AccountStore,
	hasher *security.PasswordHasher,
	tokens *security.SessionTokens,
	resolver *access.Resolver,
	twofa *TwoFactorManager,
	resets *ResetManager,
	limiter *ratelimit.Limiter,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		resolver: resolver,
		twofa:    twofa,
		resets:   resets,
		limiter:  limiter,
		log:      log,
	}
}

// Identity is an authenticated account with its resolved capabilities.
type Identity struct {
	Account      models.Account
	Capabilities access.Set
}

func (i Identity) Can(c access.Capability) bool {
	return i.Capabilities.Has(c)
}

type SessionToken struct {
	AccessToken string
	ExpiresAt   time.Time
}

func (s *AuthService) Signup(ctx context.Context, email, password string) (models.Account, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return models.Account{}, err
	}
	if password == "" {
		return models.Account{}, fmt.Errorf("%w: password required", ErrInvalidInput)
	}

	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return models.Account{}, ErrAlreadyRegistered
	} else if !errors.Is(err, repository.ErrAccountNotFound) {
		return models.Account{}, err
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return models.Account{}, err
	}

	accountType := models.AccountTypePartner
	if s.resolver.IsAllowlisted(email) {
		accountType = models.AccountTypeAdministrator
	}

	account := models.Account{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: passwordHash,
		Type:         accountType,
	}
	if err := s.store.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return models.Account{}, ErrAlreadyRegistered
		}
		return models.Account{}, err
	}

	s.log.Info().Str("account_id", account.ID).Str("account_type", string(accountType)).Msg("account created")
	return s.store.GetByID(ctx, account.ID)
}

// Login checks credentials and issues a 2FA challenge. It never returns a
// session token.
func (s *AuthService) Login(ctx context.Context, email, password, clientIP string) (Challenge, error) {
	email = models.NormalizeEmail(email)
	if email == "" || password == "" {
		return Challenge{}, ErrInvalidCredentials
	}
	if err := s.limiter.Check(ctx, ratelimit.ScopeLogin, email); err != nil {
		return Challenge{}, err
	}

	account, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			s.verifyDummy(password)
			return Challenge{}, s.failLogin(ctx, email, clientIP, "unknown email")
		}
		return Challenge{}, err
	}

	ok, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil && !errors.Is(err, security.ErrPasswordTooLong) {
		s.log.Warn().Err(err).Str("account_id", account.ID).Msg("stored password digest unusable")
	}
	if err != nil || !ok {
		return Challenge{}, s.failLogin(ctx, email, clientIP, "password mismatch")
	}

	if err := s.limiter.Reset(ctx, ratelimit.ScopeLogin, email); err != nil {
		s.log.Warn().Err(err).Msg("reset login counter failed")
	}
	s.upgradeDigest(ctx, account, password)

	return s.twofa.Issue(ctx, account)
}

// verifyDummy spends the same hashing work on an unknown email as on a
// known one, so response time does not reveal which emails exist.
func (s *AuthService) verifyDummy(password string) {
	s.dummyOnce.Do(func() {
		filler, err := security.NewUnusablePassword()
		if err == nil {
			s.dummyDigest, err = s.hasher.Hash(filler)
		}
		if err != nil {
			s.log.Warn().Err(err).Msg("prepare dummy digest failed")
		}
	})
	if s.dummyDigest != "" {
		_, _ = s.hasher.Verify(password, s.dummyDigest)
	}
}

func (s *AuthService) failLogin(ctx context.Context, email, clientIP, reason string) error {
	s.log.Info().Str("ip", clientIP).Str("reason", reason).Msg("login rejected")
	if err := s.limiter.Hit(ctx, ratelimit.ScopeLogin, email); errors.Is(err, ratelimit.ErrRateLimited) {
		return err
	} else if err != nil {
		s.log.Warn().Err(err).Msg("count login failure failed")
	}
	return ErrInvalidCredentials
}

func (s *AuthService) upgradeDigest(ctx context.Context, account models.Account, password string) {
	if !s.hasher.NeedsRehash(account.PasswordHash) {
		return
	}
	digest, err := s.hasher.Hash(password)
	if err == nil {
		err = s.store.UpdatePasswordHash(ctx, account.ID, digest)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("account_id", account.ID).Msg("password digest upgrade failed")
		return
	}
	s.log.Info().Str("account_id", account.ID).Msg("password digest upgraded")
}

// VerifyTwoFactor counts attempts per email before the lookup, so unknown
// emails run into the limit exactly like registered ones.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, email, code string) (SessionToken, error) {
	email = models.NormalizeEmail(email)
	if err := s.limiter.Hit(ctx, ratelimit.ScopeTwoFactor, email); errors.Is(err, ratelimit.ErrRateLimited) {
		return SessionToken{}, err
	} else if err != nil {
		s.log.Warn().Err(err).Msg("count 2fa attempt failed")
	}

	account, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return SessionToken{}, ErrChallengeNotInitialized
		}
		return SessionToken{}, err
	}

	if err := s.twofa.Verify(ctx, account.ID, code); err != nil {
		if IsChallengeError(err) {
			s.log.Info().Str("account_id", account.ID).Err(err).Msg("2fa verification rejected")
		}
		return SessionToken{}, err
	}
	if err := s.limiter.Reset(ctx, ratelimit.ScopeTwoFactor, email); err != nil {
		s.log.Warn().Err(err).Msg("reset 2fa counter failed")
	}

	token, expiresAt, err := s.tokens.Issue(account.ID)
	if err != nil {
		return SessionToken{}, err
	}
	s.log.Info().Str("account_id", account.ID).Msg("session issued")
	return SessionToken{AccessToken: token, ExpiresAt: expiresAt}, nil
}

// Authenticate verifies a session token and resolves the account behind it.
func (s *AuthService) Authenticate(ctx context.Context, token string) (Identity, error) {
	accountID, err := s.tokens.Verify(token)
	if err != nil {
		return Identity{}, err
	}

	account, err := s.store.GetByID(ctx, accountID)
	if err != nil {
		return Identity{}, notFound(err)
	}

	if account.Type.IsAdministrator() && !s.resolver.IsAllowlisted(account.Email) {
		s.log.Warn().Str("account_id", account.ID).Msg("administrator account outside the admin allowlist")
	}

	return Identity{
		Account:      account,
		Capabilities: s.resolver.Resolve(account.Type, account.Email),
	}, nil
}

// GetOrCreatePending returns the id of the account for email, creating a
// pending account with an unusable password when none exists.
func (s *AuthService) GetOrCreatePending(ctx context.Context, email string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", err
	}
	return s.getOrCreate(ctx, email, models.AccountTypePending)
}

func (s *AuthService) getOrCreate(ctx context.Context, email string, accountType models.AccountType) (string, error) {
	if account, err := s.store.FindByEmail(ctx, email); err == nil {
		return account.ID, nil
	} else if !errors.Is(err, repository.ErrAccountNotFound) {
		return "", err
	}

	temporary, err := security.NewUnusablePassword()
	if err != nil {
		return "", err
	}
	passwordHash, err := s.hasher.Hash(temporary)
	if err != nil {
		return "", err
	}

	account := models.Account{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: passwordHash,
		Type:         accountType,
	}
	if err := s.store.Create(ctx, account); err != nil {
		if !errors.Is(err, repository.ErrEmailTaken) {
			return "", err
		}
		// Lost a race with a concurrent create for the same email.
		existing, err := s.store.FindByEmail(ctx, email)
		if err != nil {
			return "", err
		}
		return existing.ID, nil
	}

	s.log.Info().Str("account_id", account.ID).Str("account_type", string(accountType)).Msg("account created")
	return account.ID, nil
}

// RequestPasswordReset sends a reset link. Unknown emails succeed silently;
// an unknown email on the admin allowlist gets an administrator account
// first.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil
	}
	if err := s.limiter.Hit(ctx, ratelimit.ScopePasswordReset, email); errors.Is(err, ratelimit.ErrRateLimited) {
		return err
	} else if err != nil {
		s.log.Warn().Err(err).Msg("count reset request failed")
	}

	account, err := s.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrAccountNotFound):
		if !s.resolver.IsAllowlisted(email) {
			return nil
		}
		id, err := s.getOrCreate(ctx, email, models.AccountTypeAdministrator)
		if err != nil {
			return err
		}
		s.log.Info().Str("account_id", id).Msg("administrator account bootstrapped from allowlist")
		account = models.Account{ID: id, Email: email}
	default:
		return err
	}

	return s.resets.Issue(ctx, account.ID, account.Email)
}

// ResetPassword hashes the new password before redeeming the token, so an
// unacceptable password leaves the token usable.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: password required", ErrInvalidInput)
	}
	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	accountID, err := s.resets.Consume(ctx, token, passwordHash)
	if err != nil {
		return err
	}
	s.log.Info().Str("account_id", accountID).Msg("password reset")
	return nil
}

// LeadSubmission is a survey filled in by a prospective partner.
type LeadSubmission struct {
	Email         string
	Details       map[string]string
	PreferredTime string
}

// CaptureLead records a lead and its meeting request against a pending
// account for the email, then mails that account a link to set its
// password. Submissions share the reset request budget, since each one
// replaces the account's outstanding reset token.
func (s *AuthService) CaptureLead(ctx context.Context, lead LeadSubmission) (string, error) {
	email, err := normalizeEmail(lead.Email)
	if err != nil {
		return "", err
	}
	if err := s.limiter.Hit(ctx, ratelimit.ScopePasswordReset, email); errors.Is(err, ratelimit.ErrRateLimited) {
		return "", err
	} else if err != nil {
		s.log.Warn().Err(err).Msg("count lead submission failed")
	}

	accountID, err := s.getOrCreate(ctx, email, models.AccountTypePending)
	if err != nil {
		return "", err
	}
	if err := s.store.RecordLead(ctx, accountID, lead.Details); err != nil {
		return "", fmt.Errorf("record lead: %w", err)
	}
	if err := s.store.RecordBooking(ctx, accountID, strings.TrimSpace(lead.PreferredTime)); err != nil {
		return "", fmt.Errorf("record booking: %w", err)
	}
	if err := s.resets.Issue(ctx, accountID, email); err != nil {
		return accountID, err
	}
	return accountID, nil
}

func normalizeEmail(email string) (string, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return "", fmt.Errorf("%w: email required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	return email, nil
}
