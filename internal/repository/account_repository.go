package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/UnixDeveloperIsCool/Dreambox/internal/models"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailTaken      = errors.New("email already registered")
)

// SecretCheck inspects an outstanding secret while its row is locked. When
// clear is true the secret is removed in the same transaction, whatever err
// is.
type SecretCheck func(secret models.Secret) (clear bool, err error)

const uniqueViolation = "23505"

const accountColumns = `
	id, email, password_hash, account_type, is_email_verified,
	twofa_code, twofa_expires_at, password_reset_token_hash, password_reset_expires_at,
	created_at, updated_at`

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func (r *AccountRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *AccountRepository) Create(ctx context.Context, account models.Account) error {
	const query = `
		INSERT INTO accounts (
			id, email, password_hash, account_type, is_email_verified, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		account.ID,
		models.NormalizeEmail(account.Email),
		account.PasswordHash,
		account.Type,
		account.IsEmailVerified,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrEmailTaken
	}
	return err
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, models.NormalizeEmail(email)))
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, id))
}

func (r *AccountRepository) ListByType(ctx context.Context, accountType models.AccountType, limit int) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_type = $1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, query, accountType, limit)
}

func (r *AccountRepository) Search(ctx context.Context, emailFragment string, limit int) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email LIKE '%' || $1 || '%' ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, query, models.NormalizeEmail(emailFragment), limit)
}

func (r *AccountRepository) list(ctx context.Context, query string, args ...any) ([]models.Account, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (r *AccountRepository) CountByType(ctx context.Context) (map[models.AccountType]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT account_type, COUNT(*) FROM accounts GROUP BY account_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.AccountType]int)
	for rows.Next() {
		var (
			accountType models.AccountType
			n           int
		)
		if err := rows.Scan(&accountType, &n); err != nil {
			return nil, err
		}
		counts[accountType] = n
	}
	return counts, rows.Err()
}

func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, id string, hash string) error {
	const query = `UPDATE accounts SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, query, id, hash)
}

// UpdateAccountType never touches administrator rows.
func (r *AccountRepository) UpdateAccountType(ctx context.Context, id string, accountType models.AccountType) error {
	const query = `
		UPDATE accounts SET account_type = $2, updated_at = NOW()
		WHERE id = $1 AND account_type <> $3
	`
	return r.execOne(ctx, query, id, accountType, models.AccountTypeAdministrator)
}

// SetTwoFactor replaces any outstanding challenge.
func (r *AccountRepository) SetTwoFactor(ctx context.Context, id string, code string, expiresAt time.Time) error {
	const query = `
		UPDATE accounts SET twofa_code = $2, twofa_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, code, expiresAt)
}

func (r *AccountRepository) ConsumeTwoFactor(ctx context.Context, id string, check SecretCheck) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var secret models.Secret
		var code *string
		err := tx.QueryRow(ctx,
			`SELECT twofa_code, twofa_expires_at FROM accounts WHERE id = $1 FOR UPDATE`, id,
		).Scan(&code, &secret.ExpiresAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccountNotFound
		}
		if err != nil {
			return err
		}
		if code != nil {
			secret.Value = *code
		}

		clear, checkErr := check(secret)
		if clear {
			if _, err := tx.Exec(ctx,
				`UPDATE accounts SET twofa_code = NULL, twofa_expires_at = NULL, updated_at = NOW() WHERE id = $1`, id,
			); err != nil {
				return err
			}
		}
		if checkErr != nil {
			return commitWith(ctx, tx, checkErr)
		}
		return nil
	})
}

// SetPasswordReset replaces any outstanding reset token.
func (r *AccountRepository) SetPasswordReset(ctx context.Context, id string, tokenHash string, expiresAt time.Time) error {
	const query = `
		UPDATE accounts SET password_reset_token_hash = $2, password_reset_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, tokenHash, expiresAt)
}

// ConsumePasswordReset locks the account holding tokenHash, runs check and,
// when check passes, clears the token and stores newPasswordHash in one
// transaction.
func (r *AccountRepository) ConsumePasswordReset(ctx context.Context, tokenHash string, newPasswordHash string, check SecretCheck) (string, error) {
	var accountID string
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		secret := models.Secret{Value: tokenHash}
		err := tx.QueryRow(ctx,
			`SELECT id, password_reset_expires_at FROM accounts WHERE password_reset_token_hash = $1 FOR UPDATE`, tokenHash,
		).Scan(&accountID, &secret.ExpiresAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccountNotFound
		}
		if err != nil {
			return err
		}

		clear, checkErr := check(secret)
		if clear {
			if _, err := tx.Exec(ctx,
				`UPDATE accounts SET password_reset_token_hash = NULL, password_reset_expires_at = NULL, updated_at = NOW() WHERE id = $1`, accountID,
			); err != nil {
				return err
			}
		}
		if checkErr != nil {
			return commitWith(ctx, tx, checkErr)
		}

		_, err = tx.Exec(ctx,
			`UPDATE accounts SET password_hash = $2, updated_at = NOW() WHERE id = $1`, accountID, newPasswordHash,
		)
		return err
	})
	if err != nil {
		return "", err
	}
	return accountID, nil
}

// DeleteCascade removes the account and everything it owns. Any failure
// rolls the whole deletion back.
func (r *AccountRepository) DeleteCascade(ctx context.Context, id string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		statements := []string{
			`DELETE FROM campaigns WHERE brand_id IN (SELECT id FROM brands WHERE owner_account_id = $1)`,
			`DELETE FROM brands WHERE owner_account_id = $1`,
			`DELETE FROM games WHERE owner_account_id = $1`,
			`DELETE FROM lead_submissions WHERE account_id = $1`,
			`DELETE FROM bookings WHERE account_id = $1`,
		}
		for _, stmt := range statements {
			if _, err := tx.Exec(ctx, stmt, id); err != nil {
				return fmt.Errorf("cascade: %w", err)
			}
		}

		cmd, err := tx.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrAccountNotFound
		}
		return nil
	})
}

func (r *AccountRepository) RecordLead(ctx context.Context, accountID string, details map[string]string) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encode lead: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO lead_submissions (account_id, payload, created_at) VALUES ($1, $2, NOW())`,
		accountID, payload,
	)
	return err
}

// RecordBooking stores a meeting request raised with a lead submission.
func (r *AccountRepository) RecordBooking(ctx context.Context, accountID string, preferredTime string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO bookings (account_id, preferred_time, status, created_at) VALUES ($1, $2, 'requested', NOW())`,
		accountID, preferredTime,
	)
	return err
}

// PurgeExpired clears 2FA codes and reset tokens whose window has passed.
func (r *AccountRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		UPDATE accounts SET
			twofa_code = CASE WHEN twofa_expires_at < $1 THEN NULL ELSE twofa_code END,
			twofa_expires_at = CASE WHEN twofa_expires_at < $1 THEN NULL ELSE twofa_expires_at END,
			password_reset_token_hash = CASE WHEN password_reset_expires_at < $1 THEN NULL ELSE password_reset_token_hash END,
			password_reset_expires_at = CASE WHEN password_reset_expires_at < $1 THEN NULL ELSE password_reset_expires_at END
		WHERE twofa_expires_at < $1 OR password_reset_expires_at < $1
	`
	cmd, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *AccountRepository) execOne(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// commitWith commits tx and reports checkErr to the caller. pgx.BeginFunc
// rolls back on any returned error, so the commit happens here.
func commitWith(ctx context.Context, tx pgx.Tx, checkErr error) error {
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	return checkErr
}

func scanAccount(row pgx.Row) (models.Account, error) {
	var (
		account   models.Account
		twofa     *string
		resetHash *string
	)
	if err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.Type,
		&account.IsEmailVerified,
		&twofa,
		&account.TwoFactor.ExpiresAt,
		&resetHash,
		&account.PasswordReset.ExpiresAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, ErrAccountNotFound
		}
		return models.Account{}, err
	}
	if twofa != nil {
		account.TwoFactor.Value = *twofa
	}
	if resetHash != nil {
		account.PasswordReset.Value = *resetHash
	}
	return account, nil
}
