// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

/*
admins.go - Administrator accounts

CreateFirstAdmin combines an in-process mutex with a conditional INSERT.
The mutex serializes concurrent requests inside one process; the INSERT's
NOT EXISTS predicate closes the race across multiple worker processes
sharing the same database file, which no in-process lock can reach.
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

// CreateFirstAdmin creates the initial admin account if and only if no admin
// exists yet. Returns ErrAdminExists when another request or process won.
func (db *DB) CreateFirstAdmin(ctx context.Context, admin *models.Admin) error {
	db.adminBootstrapMu.Lock()
	defer db.adminBootstrapMu.Unlock()

	if admin.ID == "" {
		admin.ID = uuid.New().String()
	}
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO admins (id, username, password_hash, created_at)
		SELECT ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM admins)`

	result, err := db.conn.ExecContext(ctx, query,
		admin.ID, admin.Username, admin.PasswordHash, admin.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create first admin: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrAdminExists
	}
	return nil
}

// GetAdminByUsername retrieves an admin account for login.
func (db *DB) GetAdminByUsername(ctx context.Context, username string) (*models.Admin, error) {
	var admin models.Admin
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM admins WHERE username = ?`, username,
	).Scan(&admin.ID, &admin.Username, &admin.PasswordHash, &admin.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	return &admin, nil
}

// CountAdmins reports how many admin accounts exist. The setup flow uses it
// to decide whether to show the bootstrap form.
func (db *DB) CountAdmins(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return count, nil
}
