// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memberwall Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/memberwall/memberwall/internal/auth"
)

// Table names per role. They are constants, never caller input.
const (
	standardTable = "standard_principals"
	elevatedTable = "elevated_principals"
)

const principalColumns = `id, username, email, password_hash, created_at, updated_at`

// PrincipalRepository implements auth.IdentityStore with one table per role.
type PrincipalRepository struct {
	db DB
}

// NewPrincipalRepository creates a new PrincipalRepository.
func NewPrincipalRepository(db DB) *PrincipalRepository {
	return &PrincipalRepository{db: db}
}

func tableFor(role auth.Role) (string, error) {
	switch role {
	case auth.RoleStandard:
		return standardTable, nil
	case auth.RoleElevated:
		return elevatedTable, nil
	default:
		return "", oops.Code("PRINCIPAL_UNKNOWN_ROLE").With("role", role.String()).Errorf("unknown role")
	}
}

// FindByEmail returns the earliest created principal with email.
func (r *PrincipalRepository) FindByEmail(ctx context.Context, role auth.Role, email string) (*auth.Credentials, error) {
	table, err := tableFor(role)
	if err != nil {
		return nil, err
	}

	var c auth.Credentials
	err = conn(ctx, r.db).QueryRow(ctx, `
		SELECT username, email, password_hash
		FROM `+table+`
		WHERE email = $1
		ORDER BY created_at, username
		LIMIT 1
	`, email).Scan(&c.Username, &c.Email, &c.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PRINCIPAL_NOT_FOUND").
			With("role", role.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PRINCIPAL_QUERY_FAILED").
			With("operation", "find principal by email").
			With("role", role.String()).
			Wrap(err)
	}
	return &c, nil
}

// FindByUsername returns the principal with username. Inside a transaction
// the row is locked until commit.
func (r *PrincipalRepository) FindByUsername(ctx context.Context, role auth.Role, username string) (*auth.Principal, error) {
	table, err := tableFor(role)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + principalColumns + ` FROM ` + table + ` WHERE username = $1`
	if inTx(ctx) {
		query += ` FOR UPDATE`
	}

	p, err := scanPrincipal(conn(ctx, r.db).QueryRow(ctx, query, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PRINCIPAL_NOT_FOUND").
			With("role", role.String()).
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PRINCIPAL_QUERY_FAILED").
			With("operation", "find principal by username").
			With("role", role.String()).
			With("username", username).
			Wrap(err)
	}
	p.Role = role
	return p, nil
}

// Insert stores principal in the role's table.
func (r *PrincipalRepository) Insert(ctx context.Context, role auth.Role, principal *auth.Principal) error {
	table, err := tableFor(role)
	if err != nil {
		return err
	}

	_, err = conn(ctx, r.db).Exec(ctx, `
		INSERT INTO `+table+` (`+principalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		principal.ID.String(),
		principal.Username,
		principal.Email,
		principal.PasswordHash,
		principal.CreatedAt,
		principal.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return oops.Code(auth.CodeDuplicateIdentity).
			With("role", role.String()).
			With("username", principal.Username).
			Wrap(auth.ErrDuplicateIdentity)
	}
	if err != nil {
		return oops.Code("PRINCIPAL_INSERT_FAILED").
			With("operation", "insert principal").
			With("role", role.String()).
			With("username", principal.Username).
			Wrap(err)
	}
	return nil
}

// Update applies patch. Nil patch fields keep their stored values.
func (r *PrincipalRepository) Update(ctx context.Context, role auth.Role, username string, patch auth.PrincipalPatch) error {
	table, err := tableFor(role)
	if err != nil {
		return err
	}

	result, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE `+table+`
		SET email = COALESCE($2, email),
		    password_hash = COALESCE($3, password_hash),
		    updated_at = $4
		WHERE username = $1
	`, username, patch.Email, patch.PasswordHash, time.Now().UTC())
	if err != nil {
		return oops.Code("PRINCIPAL_UPDATE_FAILED").
			With("operation", "update principal").
			With("role", role.String()).
			With("username", username).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PRINCIPAL_NOT_FOUND").
			With("role", role.String()).
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Remove deletes the principal with username from the role's table.
func (r *PrincipalRepository) Remove(ctx context.Context, role auth.Role, username string) error {
	table, err := tableFor(role)
	if err != nil {
		return err
	}

	result, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM `+table+` WHERE username = $1`, username)
	if err != nil {
		return oops.Code("PRINCIPAL_DELETE_FAILED").
			With("operation", "delete principal").
			With("role", role.String()).
			With("username", username).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PRINCIPAL_NOT_FOUND").
			With("role", role.String()).
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// ListAll returns every principal in the role's table ordered by username.
func (r *PrincipalRepository) ListAll(ctx context.Context, role auth.Role) ([]*auth.Principal, error) {
	table, err := tableFor(role)
	if err != nil {
		return nil, err
	}

	rows, err := conn(ctx, r.db).Query(ctx, `SELECT `+principalColumns+` FROM `+table+` ORDER BY username`)
	if err != nil {
		return nil, oops.Code("PRINCIPAL_QUERY_FAILED").
			With("operation", "list principals").
			With("role", role.String()).
			Wrap(err)
	}
	defer rows.Close()

	var principals []*auth.Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, oops.Code("PRINCIPAL_SCAN_FAILED").
				With("operation", "scan principal row").
				Wrap(err)
		}
		p.Role = role
		principals = append(principals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("PRINCIPAL_ROWS_ERROR").
			With("operation", "iterate principal rows").
			Wrap(err)
	}
	return principals, nil
}

func scanPrincipal(row pgx.Row) (*auth.Principal, error) {
	var (
		p     auth.Principal
		idStr string
	)
	if err := row.Scan(&idStr, &p.Username, &p.Email, &p.PasswordHash, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.With("operation", "parse principal id").With("id", idStr).Wrap(err)
	}
	p.ID = id
	return &p, nil
}

var _ auth.IdentityStore = (*PrincipalRepository)(nil)
