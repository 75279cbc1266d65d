package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/access"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/models"
	"github.com/UnixDeveloperIsCool/Dreambox/internal/repository"
)

const defaultListLimit = 200

// AdminService backs the account management API. Every call checks the
// actor for can_admin.
type AdminService struct {
	store    AccountStore
	resolver *access.Resolver
	log      zerolog.Logger
}

func NewAdminService(store AccountStore, resolver *access.Resolver, log zerolog.Logger) *AdminService {
	return &AdminService{store: store, resolver: resolver, log: log}
}

type Roles struct {
	Matrix          access.Matrix
	Overrides       access.Overrides
	AssignableTypes []models.AccountType
}

type Stats struct {
	Total           int
	Pending         int
	ByType          map[models.AccountType]int
	AllowlistSize   int
	AllowlistSource string
}

// SetAccountType changes the type of another, unprotected account. The
// administrator type can never be assigned here, whoever asks.
func (s *AdminService) SetAccountType(ctx context.Context, actor Identity, targetID string, rawType string) (models.Account, error) {
	accountType, err := models.ParseAccountType(rawType)
	if err != nil {
		return models.Account{}, ErrInvalidAccountType
	}
	if accountType.IsAdministrator() {
		s.log.Warn().Str("actor_id", actor.Account.ID).Str("target_id", targetID).Msg("administrator transition refused")
		return models.Account{}, ErrForbiddenTransition
	}

	target, err := s.protectedTarget(ctx, actor, targetID)
	if err != nil {
		return models.Account{}, err
	}

	if err := s.store.UpdateAccountType(ctx, target.ID, accountType); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			// The row vanished or became an administrator since it was read.
			return models.Account{}, ErrProtectedAccount
		}
		return models.Account{}, err
	}

	s.log.Info().
		Str("actor_id", actor.Account.ID).
		Str("target_id", target.ID).
		Str("from", string(target.Type)).
		Str("to", string(accountType)).
		Msg("account type changed")
	return s.store.GetByID(ctx, target.ID)
}

// DeleteAccount removes an unprotected account and everything it owns.
func (s *AdminService) DeleteAccount(ctx context.Context, actor Identity, targetID string) error {
	target, err := s.protectedTarget(ctx, actor, targetID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteCascade(ctx, target.ID); err != nil {
		return notFound(err)
	}

	s.log.Info().Str("actor_id", actor.Account.ID).Str("target_id", target.ID).Msg("account deleted")
	return nil
}

func (s *AdminService) protectedTarget(ctx context.Context, actor Identity, targetID string) (models.Account, error) {
	if !actor.Can(access.CapAdmin) {
		return models.Account{}, ErrForbidden
	}
	target, err := s.store.GetByID(ctx, targetID)
	if err != nil {
		return models.Account{}, notFound(err)
	}
	if target.ID == actor.Account.ID || s.resolver.IsProtected(target.Type, target.Email) {
		return models.Account{}, ErrProtectedAccount
	}
	return target, nil
}

// IsProtected reports whether SetAccountType and DeleteAccount refuse
// account for every actor.
func (s *AdminService) IsProtected(account models.Account) bool {
	return s.resolver.IsProtected(account.Type, account.Email)
}

func (s *AdminService) ListPending(ctx context.Context, actor Identity) ([]models.Account, error) {
	if !actor.Can(access.CapAdmin) {
		return nil, ErrForbidden
	}
	return s.store.ListByType(ctx, models.AccountTypePending, defaultListLimit)
}

func (s *AdminService) Search(ctx context.Context, actor Identity, query string) ([]models.Account, error) {
	if !actor.Can(access.CapAdmin) {
		return nil, ErrForbidden
	}
	return s.store.Search(ctx, strings.TrimSpace(query), defaultListLimit)
}

func (s *AdminService) Roles(actor Identity) (Roles, error) {
	if !actor.Can(access.CapAdmin) {
		return Roles{}, ErrForbidden
	}
	return Roles{
		Matrix:          s.resolver.Matrix(),
		Overrides:       s.resolver.Overrides(),
		AssignableTypes: models.AssignableAccountTypes(),
	}, nil
}

func (s *AdminService) Stats(ctx context.Context, actor Identity) (Stats, error) {
	if !actor.Can(access.CapAdmin) {
		return Stats{}, ErrForbidden
	}
	counts, err := s.store.CountByType(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		ByType:          counts,
		Pending:         counts[models.AccountTypePending],
		AllowlistSize:   s.resolver.Allowlist().Len(),
		AllowlistSource: s.resolver.Allowlist().Source(),
	}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}
