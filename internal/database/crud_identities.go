// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

/*
crud_identities.go - Identity and user persistence

A successful redemption writes exactly one identity and one user row per
provisioned server, in a single transaction. Partial local state never
exists: either the whole bundle commits or nothing does.
*/

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/portarius/internal/models"
)

// CreateIdentityWithUsers persists an identity and its user rows in one
// transaction.
func (db *DB) CreateIdentityWithUsers(ctx context.Context, identity *models.Identity, users []models.User) error {
	if identity.ID == "" {
		identity.ID = uuid.New().String()
	}
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now().UTC()
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO identities (id, username, email, created_at) VALUES (?, ?, ?, ?)`,
		identity.ID, identity.Username, identity.Email, identity.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}

	for i := range users {
		user := &users[i]
		if user.ID == "" {
			user.ID = uuid.New().String()
		}
		user.IdentityID = identity.ID
		if user.CreatedAt.IsZero() {
			user.CreatedAt = identity.CreatedAt
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, identity_id, media_server_id, external_user_id, username, email, enabled, expires_at, invitation_id, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			user.ID, user.IdentityID, user.MediaServerID, user.ExternalUserID,
			user.Username, user.Email, user.Enabled, user.ExpiresAt, user.InvitationID, user.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit identity: %w", err)
	}
	identity.Users = users
	return nil
}

// GetIdentity retrieves an identity with its user rows.
func (db *DB) GetIdentity(ctx context.Context, id string) (*models.Identity, error) {
	var identity models.Identity
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, username, email, created_at FROM identities WHERE id = ?`, id,
	).Scan(&identity.ID, &identity.Username, &identity.Email, &identity.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}

	users, err := db.listUsers(ctx, `WHERE identity_id = ?`, id)
	if err != nil {
		return nil, err
	}
	identity.Users = users
	return &identity, nil
}

// ListIdentities retrieves all identities with their user rows.
func (db *DB) ListIdentities(ctx context.Context) ([]models.Identity, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, username, email, created_at FROM identities ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var identities []models.Identity
	for rows.Next() {
		var identity models.Identity
		if err := rows.Scan(&identity.ID, &identity.Username, &identity.Email, &identity.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range identities {
		users, err := db.listUsers(ctx, `WHERE identity_id = ?`, identities[i].ID)
		if err != nil {
			return nil, err
		}
		identities[i].Users = users
	}
	return identities, nil
}

// GetUser retrieves a single user row.
func (db *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	users, err := db.listUsers(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrUserNotFound
	}
	return &users[0], nil
}

// SetUserEnabled updates the local enabled flag of a user row.
func (db *DB) SetUserEnabled(ctx context.Context, id string, enabled bool) error {
	result, err := db.conn.ExecContext(ctx, `UPDATE users SET enabled = ? WHERE id = ?`, enabled, id)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteUser removes a user row. When it was the identity's last user, the
// identity row goes with it. Callers delete the external account first.
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var identityID string
	err = tx.QueryRowContext(ctx, `SELECT identity_id FROM users WHERE id = ?`, id).Scan(&identityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	var remaining int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE identity_id = ?`, identityID).Scan(&remaining); err != nil {
		return fmt.Errorf("failed to count remaining users: %w", err)
	}
	if remaining == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM identities WHERE id = ?`, identityID); err != nil {
			return fmt.Errorf("failed to delete empty identity: %w", err)
		}
	}

	return tx.Commit()
}

// ListExpiredUsers returns enabled user rows whose expires_at has passed.
func (db *DB) ListExpiredUsers(ctx context.Context, now time.Time) ([]models.User, error) {
	return db.listUsers(ctx, `WHERE expires_at IS NOT NULL AND expires_at <= ? AND enabled`, now)
}

func (db *DB) listUsers(ctx context.Context, where string, args ...any) ([]models.User, error) {
	query := `SELECT id, identity_id, media_server_id, external_user_id, username, email, enabled, expires_at, invitation_id, created_at
		FROM users ` + where + ` ORDER BY created_at, id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.IdentityID, &user.MediaServerID, &user.ExternalUserID,
			&user.Username, &user.Email, &user.Enabled, &user.ExpiresAt, &user.InvitationID, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
