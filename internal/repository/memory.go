package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/models"
)

// Lead is a captured lead submission held by MemoryStore.
type Lead struct {
	AccountID string
	Details   map[string]string
	CreatedAt time.Time
}

// Booking is a meeting request held by MemoryStore.
type Booking struct {
	AccountID     string
	PreferredTime string
	Status        string
	CreatedAt     time.Time
}

// MemoryStore keeps accounts in process memory. It backs tests and local
// runs without Postgres. A single mutex serializes every operation, which
// gives consume operations the same exactly-once behaviour as row locks.
type MemoryStore struct {
	mu       sync.Mutex
	now      func() time.Time
	accounts map[string]models.Account
	byEmail  map[string]string
	leads    []Lead
	bookings []Booking
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:      time.Now,
		accounts: make(map[string]models.Account),
		byEmail:  make(map[string]string),
	}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Create(_ context.Context, account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account.Email = models.NormalizeEmail(account.Email)
	if _, taken := s.byEmail[account.Email]; taken {
		return ErrEmailTaken
	}
	now := s.now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now
	s.accounts[account.ID] = account
	s.byEmail[account.Email] = account.ID
	return nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[models.NormalizeEmail(email)]
	if !ok {
		return models.Account{}, ErrAccountNotFound
	}
	return s.accounts[id], nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return models.Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (s *MemoryStore) ListByType(_ context.Context, accountType models.AccountType, limit int) ([]models.Account, error) {
	return s.filter(limit, func(a models.Account) bool { return a.Type == accountType }), nil
}

func (s *MemoryStore) Search(_ context.Context, emailFragment string, limit int) ([]models.Account, error) {
	fragment := models.NormalizeEmail(emailFragment)
	return s.filter(limit, func(a models.Account) bool { return strings.Contains(a.Email, fragment) }), nil
}

func (s *MemoryStore) filter(limit int, keep func(models.Account) bool) []models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Account
	for _, a := range s.accounts {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Email < out[j].Email
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *MemoryStore) CountByType(context.Context) (map[models.AccountType]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[models.AccountType]int)
	for _, a := range s.accounts {
		counts[a.Type]++
	}
	return counts, nil
}

func (s *MemoryStore) UpdatePasswordHash(_ context.Context, id string, hash string) error {
	return s.update(id, func(a *models.Account) bool {
		a.PasswordHash = hash
		return true
	})
}

func (s *MemoryStore) UpdateAccountType(_ context.Context, id string, accountType models.AccountType) error {
	return s.update(id, func(a *models.Account) bool {
		if a.Type.IsAdministrator() {
			return false
		}
		a.Type = accountType
		return true
	})
}

func (s *MemoryStore) SetTwoFactor(_ context.Context, id string, code string, expiresAt time.Time) error {
	return s.update(id, func(a *models.Account) bool {
		a.TwoFactor = models.Secret{Value: code, ExpiresAt: &expiresAt}
		return true
	})
}

func (s *MemoryStore) ConsumeTwoFactor(_ context.Context, id string, check SecretCheck) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	clear, err := check(account.TwoFactor)
	if clear {
		account.TwoFactor = models.Secret{}
		account.UpdatedAt = s.now().UTC()
		s.accounts[id] = account
	}
	return err
}

func (s *MemoryStore) SetPasswordReset(_ context.Context, id string, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Token hashes are unique across accounts, mirroring the column
	// constraint.
	for otherID, other := range s.accounts {
		if otherID != id && other.PasswordReset.Value == tokenHash {
			other.PasswordReset = models.Secret{}
			s.accounts[otherID] = other
		}
	}
	return s.updateLocked(id, func(a *models.Account) bool {
		a.PasswordReset = models.Secret{Value: tokenHash, ExpiresAt: &expiresAt}
		return true
	})
}

func (s *MemoryStore) ConsumePasswordReset(_ context.Context, tokenHash string, newPasswordHash string, check SecretCheck) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tokenHash == "" {
		return "", ErrAccountNotFound
	}
	for id, account := range s.accounts {
		if account.PasswordReset.Value != tokenHash {
			continue
		}
		clear, err := check(account.PasswordReset)
		if clear {
			account.PasswordReset = models.Secret{}
			account.UpdatedAt = s.now().UTC()
		}
		if err == nil {
			account.PasswordHash = newPasswordHash
		}
		s.accounts[id] = account
		if err != nil {
			return "", err
		}
		return id, nil
	}
	return "", ErrAccountNotFound
}

func (s *MemoryStore) DeleteCascade(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	delete(s.accounts, id)
	delete(s.byEmail, account.Email)

	kept := s.leads[:0]
	for _, l := range s.leads {
		if l.AccountID != id {
			kept = append(kept, l)
		}
	}
	s.leads = kept

	keptBookings := s.bookings[:0]
	for _, b := range s.bookings {
		if b.AccountID != id {
			keptBookings = append(keptBookings, b)
		}
	}
	s.bookings = keptBookings
	return nil
}

func (s *MemoryStore) RecordLead(_ context.Context, accountID string, details map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[accountID]; !ok {
		return ErrAccountNotFound
	}
	copied := make(map[string]string, len(details))
	for k, v := range details {
		copied[k] = v
	}
	s.leads = append(s.leads, Lead{AccountID: accountID, Details: copied, CreatedAt: s.now().UTC()})
	return nil
}

// Leads returns the captured submissions for accountID.
func (s *MemoryStore) Leads(accountID string) []Lead {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Lead
	for _, l := range s.leads {
		if l.AccountID == accountID {
			out = append(out, l)
		}
	}
	return out
}

func (s *MemoryStore) RecordBooking(_ context.Context, accountID string, preferredTime string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[accountID]; !ok {
		return ErrAccountNotFound
	}
	s.bookings = append(s.bookings, Booking{
		AccountID:     accountID,
		PreferredTime: preferredTime,
		Status:        "requested",
		CreatedAt:     s.now().UTC(),
	})
	return nil
}

// Bookings returns the meeting requests for accountID.
func (s *MemoryStore) Bookings(accountID string) []Booking {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Booking
	for _, b := range s.bookings {
		if b.AccountID == accountID {
			out = append(out, b)
		}
	}
	return out
}

func (s *MemoryStore) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for id, a := range s.accounts {
		touched := false
		if a.TwoFactor.ExpiresAt != nil && a.TwoFactor.ExpiresAt.Before(now) {
			a.TwoFactor = models.Secret{}
			touched = true
		}
		if a.PasswordReset.ExpiresAt != nil && a.PasswordReset.ExpiresAt.Before(now) {
			a.PasswordReset = models.Secret{}
			touched = true
		}
		if touched {
			s.accounts[id] = a
			purged++
		}
	}
	return purged, nil
}

func (s *MemoryStore) update(id string, mutate func(*models.Account) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(id, mutate)
}

func (s *MemoryStore) updateLocked(id string, mutate func(*models.Account) bool) error {
	account, ok := s.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	if !mutate(&account) {
		return ErrAccountNotFound
	}
	account.UpdatedAt = s.now().UTC()
	s.accounts[id] = account
	return nil
}
