package access

import (
	"github.com/UnixDeveloperIsCool/Dreambox/internal/models"
)

// Resolver turns an account into its capability set. Allowlist membership is
// checked before the account type everywhere.
type Resolver struct {
	matrix    Matrix
	overrides Overrides
	admins    *Allowlist
}

func NewResolver(matrix Matrix, overrides Overrides, admins *Allowlist) *Resolver {
	if matrix == nil {
		matrix = DefaultMatrix()
	}
	if admins == nil {
		admins = NewAllowlist()
	}
	return &Resolver{matrix: matrix, overrides: overrides, admins: admins}
}

func (r *Resolver) Resolve(accountType models.AccountType, email string) Set {
	if r.admins.Contains(email) {
		return FullSet()
	}
	return r.matrix[accountType]
}

func (r *Resolver) Allowed(accountType models.AccountType, email string, c Capability) bool {
	return r.Resolve(accountType, email).Has(c)
}

func (r *Resolver) IsAllowlisted(email string) bool {
	return r.admins.Contains(email)
}

// IsProtected reports whether an account is shielded from account-type
// changes and deletion through the management API.
func (r *Resolver) IsProtected(accountType models.AccountType, email string) bool {
	return r.admins.Contains(email) || accountType.IsAdministrator()
}

func (r *Resolver) Allowlist() *Allowlist {
	return r.admins
}

// Matrix returns a copy of the merged matrix.
func (r *Resolver) Matrix() Matrix {
	out := make(Matrix, len(r.matrix))
	for t, s := range r.matrix {
		out[t] = s
	}
	return out
}

func (r *Resolver) Overrides() Overrides {
	return r.overrides
}
