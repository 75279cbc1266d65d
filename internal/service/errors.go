package service

import (
	"errors"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/repository"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyRegistered  = errors.New("email already registered")
	ErrAccountNotFound    = errors.New("account not found")

	ErrChallengeNotInitialized = errors.New("2fa not initialized")
	ErrChallengeExpired        = errors.New("2fa code expired")
	ErrChallengeMismatch       = errors.New("invalid 2fa code")

	ErrResetTokenInvalid = errors.New("invalid reset token")
	ErrResetTokenExpired = errors.New("reset token expired")
	ErrDeliveryFailed    = errors.New("message delivery failed")

	ErrForbidden           = errors.New("forbidden")
	ErrForbiddenTransition = errors.New("account type transition not allowed")
	ErrProtectedAccount    = errors.New("account is protected")
	ErrInvalidAccountType  = errors.New("invalid account type")
)

func notFound(err error) error {
	if errors.Is(err, repository.ErrAccountNotFound) {
		return ErrAccountNotFound
	}
	return err
}
