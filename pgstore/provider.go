// Package pgstore implements the engine's UserProvider on PostgreSQL via
// pgx. It is one possible account backend; the engine itself never talks to
// the database directly.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	authcore "github.com/halcyondev/authcore"
	"github.com/halcyondev/authcore/twofactor"
)

// Schema is the DDL the provider expects. Apply it with your migration
// tooling; the provider never creates tables on its own.
const Schema = `
CREATE TABLE IF NOT EXISTS auth_users (
    id             TEXT PRIMARY KEY,
    identifier     TEXT NOT NULL UNIQUE,
    email          TEXT NOT NULL,
    password_hash  TEXT NOT NULL,
    role           TEXT NOT NULL DEFAULT 'member',
    status         TEXT NOT NULL DEFAULT 'active',
    email_verified BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS auth_two_factor (
    user_id      TEXT PRIMARY KEY REFERENCES auth_users (id) ON DELETE CASCADE,
    secret       TEXT NOT NULL,
    enabled      BOOLEAN NOT NULL DEFAULT FALSE,
    last_counter BIGINT NOT NULL DEFAULT 0,
    backup_codes BYTEA[] NOT NULL DEFAULT '{}'
);
`

// Provider is a PostgreSQL-backed [authcore.UserProvider].
type Provider struct {
	pool *pgxpool.Pool
}

// New wraps an existing connection pool. The pool's lifecycle stays with the
// caller.
func New(pool *pgxpool.Pool) *Provider {
	return &Provider{pool: pool}
}

// Connect opens a pool for the DSN and wraps it.
func Connect(ctx context.Context, dsn string) (*Provider, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Provider{pool: pool}, nil
}

// Close releases the underlying pool.
func (p *Provider) Close() { p.pool.Close() }

const userColumns = `id, identifier, email, password_hash, role, status, email_verified`

func (p *Provider) GetUserByIdentifier(ctx context.Context, identifier string) (*authcore.UserRecord, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM auth_users WHERE identifier = $1`, identifier)
	return scanUser(row)
}

func (p *Provider) GetUserByID(ctx context.Context, id string) (*authcore.UserRecord, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM auth_users WHERE id = $1`, id)
	return scanUser(row)
}

// CreateUser inserts an account. Not part of the UserProvider interface but
// every host ends up needing it.
func (p *Provider) CreateUser(ctx context.Context, u authcore.UserRecord) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO auth_users (id, identifier, email, password_hash, role, status, email_verified)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Identifier, u.Email, u.PasswordHash, u.Role, string(u.Status), u.EmailVerified)
	return err
}

func (p *Provider) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE auth_users SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update password hash: no user %s", id)
	}
	return nil
}

func (p *Provider) MarkEmailVerified(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE auth_users SET email_verified = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark email verified: no user %s", id)
	}
	return nil
}

func (p *Provider) GetTwoFactor(ctx context.Context, id string) (*authcore.TwoFactorRecord, error) {
	var (
		rec     authcore.TwoFactorRecord
		digests [][]byte
	)
	err := p.pool.QueryRow(ctx,
		`SELECT secret, enabled, last_counter, backup_codes FROM auth_two_factor WHERE user_id = $1`, id).
		Scan(&rec.Secret, &rec.Enabled, &rec.LastCounter, &digests)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rec.BackupCodes = make([]twofactor.BackupCode, 0, len(digests))
	for _, d := range digests {
		var code twofactor.BackupCode
		if len(d) != len(code.Hash) {
			return nil, fmt.Errorf("backup code digest has %d bytes", len(d))
		}
		copy(code.Hash[:], d)
		rec.BackupCodes = append(rec.BackupCodes, code)
	}
	return &rec, nil
}

func (p *Provider) SaveTwoFactor(ctx context.Context, id string, rec *authcore.TwoFactorRecord) error {
	digests := make([][]byte, len(rec.BackupCodes))
	for i, code := range rec.BackupCodes {
		digests[i] = append([]byte(nil), code.Hash[:]...)
	}

	_, err := p.pool.Exec(ctx,
		`INSERT INTO auth_two_factor (user_id, secret, enabled, last_counter, backup_codes)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE
		 SET secret = EXCLUDED.secret,
		     enabled = EXCLUDED.enabled,
		     last_counter = EXCLUDED.last_counter,
		     backup_codes = EXCLUDED.backup_codes`,
		id, rec.Secret, rec.Enabled, rec.LastCounter, digests)
	return err
}

func (p *Provider) DeleteTwoFactor(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM auth_two_factor WHERE user_id = $1`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*authcore.UserRecord, error) {
	var (
		u      authcore.UserRecord
		status string
	)
	err := row.Scan(&u.ID, &u.Identifier, &u.Email, &u.PasswordHash, &u.Role, &status, &u.EmailVerified)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Status = authcore.AccountStatus(status)
	return &u, nil
}
