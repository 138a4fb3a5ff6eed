// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

/*
crud_invitations.go - Invitation persistence

Invitations reference their target servers and allowed libraries through
join tables so one invitation can provision several backends. The permission
override bundle is stored as a JSON document; it is small, read whole, and
never queried by key.

RedeemInvitation is the single mutating entry point for use_count. The
increment predicate re-checks every validity condition, so two racing
redemptions of a nearly-exhausted code cannot push use_count past max_uses:
the loser's UPDATE matches zero rows.
*/

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/portarius/internal/models"
)

// CreateInvitation stores a new invitation with its server and library
// associations. serverIDs and libraryIDs reference existing rows.
func (db *DB) CreateInvitation(ctx context.Context, inv *models.Invitation, serverIDs, libraryIDs []string) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	inv.UpdatedAt = inv.CreatedAt

	permissions, err := marshalPermissions(inv.Permissions)
	if err != nil {
		return err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT INTO invitations (
		id, code, enabled, expires_at, max_uses, use_count, duration_days, permissions, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := tx.ExecContext(ctx, query,
		inv.ID, inv.Code, inv.Enabled, inv.ExpiresAt, inv.MaxUses, inv.UseCount,
		inv.DurationDays, permissions, inv.CreatedAt, inv.UpdatedAt,
	); err != nil {
		if isUniqueConstraintError(err) {
			return ErrCodeConflict
		}
		return fmt.Errorf("failed to create invitation: %w", err)
	}

	if err := insertInvitationLinks(ctx, tx, inv.ID, serverIDs, libraryIDs); err != nil {
		return err
	}

	return tx.Commit()
}

// GetInvitationByCode retrieves an invitation by its code, hydrating target
// servers and allowed libraries.
func (db *DB) GetInvitationByCode(ctx context.Context, code string) (*models.Invitation, error) {
	return db.getInvitation(ctx, `WHERE code = ?`, code)
}

// GetInvitation retrieves an invitation by ID.
func (db *DB) GetInvitation(ctx context.Context, id string) (*models.Invitation, error) {
	return db.getInvitation(ctx, `WHERE id = ?`, id)
}

func (db *DB) getInvitation(ctx context.Context, where string, arg any) (*models.Invitation, error) {
	query := `SELECT id, code, enabled, expires_at, max_uses, use_count, duration_days, permissions, created_at, updated_at
		FROM invitations ` + where

	inv, err := scanInvitation(db.conn.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	if err := db.hydrateInvitation(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// ListInvitations retrieves all invitations with their associations.
func (db *DB) ListInvitations(ctx context.Context) ([]models.Invitation, error) {
	query := `SELECT id, code, enabled, expires_at, max_uses, use_count, duration_days, permissions, created_at, updated_at
		FROM invitations ORDER BY created_at DESC, id`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var invitations []models.Invitation
	for rows.Next() {
		inv, err := scanInvitationRow(rows)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range invitations {
		if err := db.hydrateInvitation(ctx, &invitations[i]); err != nil {
			return nil, err
		}
	}
	return invitations, nil
}

// UpdateInvitation updates an invitation's mutable fields and replaces its
// associations. use_count is deliberately not touched here.
func (db *DB) UpdateInvitation(ctx context.Context, inv *models.Invitation, serverIDs, libraryIDs []string) error {
	inv.UpdatedAt = time.Now().UTC()

	permissions, err := marshalPermissions(inv.Permissions)
	if err != nil {
		return err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `UPDATE invitations
		SET enabled = ?, expires_at = ?, max_uses = ?, duration_days = ?, permissions = ?, updated_at = ?
		WHERE id = ?`

	result, err := tx.ExecContext(ctx, query,
		inv.Enabled, inv.ExpiresAt, inv.MaxUses, inv.DurationDays, permissions, inv.UpdatedAt, inv.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update invitation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrInvitationNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM invitation_servers WHERE invitation_id = ?`, inv.ID); err != nil {
		return fmt.Errorf("failed to clear invitation servers: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM invitation_libraries WHERE invitation_id = ?`, inv.ID); err != nil {
		return fmt.Errorf("failed to clear invitation libraries: %w", err)
	}
	if err := insertInvitationLinks(ctx, tx, inv.ID, serverIDs, libraryIDs); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteInvitation removes an invitation and its associations.
func (db *DB) DeleteInvitation(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `DELETE FROM invitations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete invitation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrInvitationNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM invitation_servers WHERE invitation_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete invitation server links: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM invitation_libraries WHERE invitation_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete invitation library links: %w", err)
	}

	return tx.Commit()
}

// RedeemInvitation atomically increments use_count, re-checking every
// validity condition inside the UPDATE predicate. Zero matched rows means a
// condition failed between validation and redemption; callers re-read the
// invitation for the specific reason.
func (db *DB) RedeemInvitation(ctx context.Context, id string, now time.Time) error {
	query := `UPDATE invitations
		SET use_count = use_count + 1, updated_at = ?
		WHERE id = ?
		  AND enabled
		  AND (expires_at IS NULL OR expires_at > ?)
		  AND (max_uses IS NULL OR use_count < max_uses)`

	result, err := db.conn.ExecContext(ctx, query, now, id, now)
	if err != nil {
		return fmt.Errorf("failed to redeem invitation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrInvitationExhausted
	}
	return nil
}

// hydrateInvitation loads the servers and libraries join rows.
func (db *DB) hydrateInvitation(ctx context.Context, inv *models.Invitation) error {
	serverQuery := `SELECT ms.id, ms.name, ms.server_type, ms.url, ms.api_key, ms.enabled, ms.created_at, ms.updated_at
		FROM media_servers ms
		JOIN invitation_servers isv ON isv.media_server_id = ms.id
		WHERE isv.invitation_id = ?
		ORDER BY ms.created_at, ms.id`

	rows, err := db.conn.QueryContext(ctx, serverQuery, inv.ID)
	if err != nil {
		return fmt.Errorf("failed to load invitation servers: %w", err)
	}
	inv.Servers = inv.Servers[:0]
	for rows.Next() {
		server, err := scanMediaServerRow(rows)
		if err != nil {
			_ = rows.Close()
			return err
		}
		inv.Servers = append(inv.Servers, *server)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	libraryQuery := `SELECT l.id, l.media_server_id, l.external_id, l.name, l.enabled, l.created_at
		FROM libraries l
		JOIN invitation_libraries il ON il.library_id = l.id
		WHERE il.invitation_id = ?
		ORDER BY l.name, l.id`

	libRows, err := db.conn.QueryContext(ctx, libraryQuery, inv.ID)
	if err != nil {
		return fmt.Errorf("failed to load invitation libraries: %w", err)
	}
	defer func() { _ = libRows.Close() }()

	inv.Libraries = inv.Libraries[:0]
	for libRows.Next() {
		var lib models.Library
		if err := libRows.Scan(&lib.ID, &lib.MediaServerID, &lib.ExternalID, &lib.Name, &lib.Enabled, &lib.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan invitation library: %w", err)
		}
		inv.Libraries = append(inv.Libraries, lib)
	}
	return libRows.Err()
}

func insertInvitationLinks(ctx context.Context, tx *sql.Tx, invitationID string, serverIDs, libraryIDs []string) error {
	for _, serverID := range serverIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO invitation_servers (invitation_id, media_server_id) VALUES (?, ?)`,
			invitationID, serverID,
		); err != nil {
			return fmt.Errorf("failed to link invitation server: %w", err)
		}
	}
	for _, libraryID := range libraryIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO invitation_libraries (invitation_id, library_id) VALUES (?, ?)`,
			invitationID, libraryID,
		); err != nil {
			return fmt.Errorf("failed to link invitation library: %w", err)
		}
	}
	return nil
}

func marshalPermissions(permissions map[string]bool) (string, error) {
	if permissions == nil {
		return "{}", nil
	}
	data, err := json.Marshal(permissions)
	if err != nil {
		return "", fmt.Errorf("failed to marshal permissions: %w", err)
	}
	return string(data), nil
}

func scanInvitation(row *sql.Row) (*models.Invitation, error) {
	inv, err := scanInvitationRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvitationNotFound
	}
	return inv, err
}

func scanInvitationRow(s rowScanner) (*models.Invitation, error) {
	var inv models.Invitation
	var permissions string
	err := s.Scan(&inv.ID, &inv.Code, &inv.Enabled, &inv.ExpiresAt, &inv.MaxUses,
		&inv.UseCount, &inv.DurationDays, &permissions, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("failed to scan invitation: %w", err)
	}
	if permissions != "" && permissions != "{}" {
		if err := json.Unmarshal([]byte(permissions), &inv.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	}
	return &inv, nil
}
