package service

import (
	"context"
	"time"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/models"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/repository"
)

// AccountStore is the credential store. repository.AccountRepository and
// repository.MemoryStore both satisfy it.
type AccountStore interface {
	Create(ctx context.Context, account models.Account) error
	FindByEmail(ctx context.Context, email string) (models.Account, error)
	GetByID(ctx context.Context, id string) (models.Account, error)
	ListByType(ctx context.Context, accountType models.AccountType, limit int) ([]models.Account, error)
	Search(ctx context.Context, emailFragment string, limit int) ([]models.Account, error)
	CountByType(ctx context.Context) (map[models.AccountType]int, error)

	UpdatePasswordHash(ctx context.Context, id string, hash string) error
	UpdateAccountType(ctx context.Context, id string, accountType models.AccountType) error

	SetTwoFactor(ctx context.Context, id string, code string, expiresAt time.Time) error
	ConsumeTwoFactor(ctx context.Context, id string, check repository.SecretCheck) error
	SetPasswordReset(ctx context.Context, id string, tokenHash string, expiresAt time.Time) error
	ConsumePasswordReset(ctx context.Context, tokenHash string, newPasswordHash string, check repository.SecretCheck) (string, error)

	DeleteCascade(ctx context.Context, id string) error
	RecordLead(ctx context.Context, accountID string, details map[string]string) error
	RecordBooking(ctx context.Context, accountID string, preferredTime string) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

var (
	_ AccountStore = (*repository.AccountRepository)(nil)
	_ AccountStore = (*repository.MemoryStore)(nil)
)
