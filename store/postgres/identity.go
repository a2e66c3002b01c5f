// Package postgres implements the durable identity adapter on pgx.
package postgres

import (
	"context"
	"errors"
	"time"

	campusauth "github.com/campuskit/campusauth"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Schema is the identities table DDL, applied by the caller's migration
// tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS identities (
	id                  UUID PRIMARY KEY,
	email               TEXT NOT NULL UNIQUE,
	role                TEXT NOT NULL DEFAULT '',
	tenant_id           TEXT NOT NULL DEFAULT '',
	password_hash       TEXT NOT NULL DEFAULT '',
	verified            BOOLEAN NOT NULL DEFAULT FALSE,
	status              SMALLINT NOT NULL DEFAULT 0,
	must_reset_password BOOLEAN NOT NULL DEFAULT FALSE,
	temporary_password  BOOLEAN NOT NULL DEFAULT FALSE,
	full_name           TEXT NOT NULL DEFAULT '',
	contact             TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_login_at       TIMESTAMPTZ
);
`

// IdentityStore satisfies campusauth.CredentialStore against Postgres.
type IdentityStore struct {
	pool *pgxpool.Pool
}

func NewIdentityStore(pool *pgxpool.Pool) *IdentityStore {
	return &IdentityStore{pool: pool}
}

const identityColumns = `id, email, role, tenant_id, password_hash, verified, status,
	must_reset_password, temporary_password, full_name, contact, created_at, last_login_at`

func (s *IdentityStore) FindByEmail(ctx context.Context, email string) (*campusauth.Identity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE email = $1`, email)
	return scanIdentity(row)
}

func (s *IdentityStore) FindByID(ctx context.Context, id string) (*campusauth.Identity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = $1`, id)
	return scanIdentity(row)
}

func (s *IdentityStore) Create(ctx context.Context, identity *campusauth.Identity) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO identities (id, email, role, tenant_id, password_hash, verified, status,
			must_reset_password, temporary_password, full_name, contact, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		identity.ID,
		identity.Email,
		identity.Role,
		identity.TenantID,
		identity.PasswordHash,
		identity.Verified,
		int16(identity.Status),
		identity.MustResetPassword,
		identity.TemporaryPassword,
		identity.FullName,
		identity.Contact,
		identity.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return campusauth.ErrEmailAlreadyRegistered
		}
		return err
	}
	return nil
}

func (s *IdentityStore) Update(ctx context.Context, identity *campusauth.Identity) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE identities SET
			email = $2, role = $3, tenant_id = $4, password_hash = $5, verified = $6,
			status = $7, must_reset_password = $8, temporary_password = $9,
			full_name = $10, contact = $11
		 WHERE id = $1`,
		identity.ID,
		identity.Email,
		identity.Role,
		identity.TenantID,
		identity.PasswordHash,
		identity.Verified,
		int16(identity.Status),
		identity.MustResetPassword,
		identity.TemporaryPassword,
		identity.FullName,
		identity.Contact,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return campusauth.ErrIdentityNotFound
	}
	return nil
}

func (s *IdentityStore) RecordLogin(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE identities SET last_login_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return campusauth.ErrIdentityNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (*campusauth.Identity, error) {
	var (
		identity  campusauth.Identity
		status    int16
		lastLogin *time.Time
	)
	err := row.Scan(
		&identity.ID,
		&identity.Email,
		&identity.Role,
		&identity.TenantID,
		&identity.PasswordHash,
		&identity.Verified,
		&status,
		&identity.MustResetPassword,
		&identity.TemporaryPassword,
		&identity.FullName,
		&identity.Contact,
		&identity.CreatedAt,
		&lastLogin,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, campusauth.ErrIdentityNotFound
	}
	if err != nil {
		return nil, err
	}

	identity.Status = campusauth.IdentityStatus(status)
	if lastLogin != nil {
		identity.LastLoginAt = *lastLogin
	}
	return &identity, nil
}
