package models

import (
	"errors"
	"strings"
	"time"
)

type AccountType string

const (
	AccountTypePending         AccountType = "AccountPending"
	AccountTypePartner         AccountType = "PartnerAccount"
	AccountTypeBusiness        AccountType = "BusinessAccount"
	AccountTypeBrandSpecialist AccountType = "BrandSpecialistAccount"
	AccountTypeBrandPartner    AccountType = "BrandPartnerAccount"
	AccountTypeBrand           AccountType = "BrandAccount"
	AccountTypeAdministrator   AccountType = "AdministratorDreamboxInteractiveAccount"
)

var ErrUnknownAccountType = errors.New("unknown account type")

var accountTypes = []AccountType{
	AccountTypePending,
	AccountTypePartner,
	AccountTypeBusiness,
	AccountTypeBrandSpecialist,
	AccountTypeBrandPartner,
	AccountTypeBrand,
	AccountTypeAdministrator,
}

// AccountTypes lists every account type, lowest privilege first.
func AccountTypes() []AccountType {
	out := make([]AccountType, len(accountTypes))
	copy(out, accountTypes)
	return out
}

// AssignableAccountTypes lists the types an administrator may assign through
// the account management API. Administrator is never assignable.
func AssignableAccountTypes() []AccountType {
	out := make([]AccountType, 0, len(accountTypes)-1)
	for _, t := range accountTypes {
		if t != AccountTypeAdministrator {
			out = append(out, t)
		}
	}
	return out
}

func ParseAccountType(s string) (AccountType, error) {
	s = strings.TrimSpace(s)
	for _, t := range accountTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", ErrUnknownAccountType
}

func (t AccountType) Valid() bool {
	_, err := ParseAccountType(string(t))
	return err == nil
}

func (t AccountType) IsAdministrator() bool {
	return t == AccountTypeAdministrator
}

// Secret is a volatile credential stored on the account row: a 2FA code or
// the digest of a password reset token. Value and ExpiresAt are written and
// cleared together.
type Secret struct {
	Value     string
	ExpiresAt *time.Time
}

func (s Secret) Outstanding() bool {
	return s.Value != ""
}

type Account struct {
	ID              string
	Email           string
	PasswordHash    string
	Type            AccountType
	IsEmailVerified bool
	TwoFactor       Secret
	PasswordReset   Secret
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NormalizeEmail is applied to every email before it is stored or looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
