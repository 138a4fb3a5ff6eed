// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

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

// CreateMediaServer creates a new media server configuration in the database.
func (db *DB) CreateMediaServer(ctx context.Context, server *models.MediaServer) error {
	if server.ID == "" {
		server.ID = uuid.New().String()
	}
	if server.CreatedAt.IsZero() {
		server.CreatedAt = time.Now().UTC()
	}
	server.UpdatedAt = server.CreatedAt

	query := `INSERT INTO media_servers (
		id, name, server_type, url, api_key, enabled, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.conn.ExecContext(ctx, query,
		server.ID, server.Name, string(server.ServerType), server.URL, server.APIKey,
		server.Enabled, server.CreatedAt, server.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create media server: %w", err)
	}
	return nil
}

// GetMediaServer retrieves a media server by ID, including its library
// catalog.
func (db *DB) GetMediaServer(ctx context.Context, id string) (*models.MediaServer, error) {
	query := `SELECT id, name, server_type, url, api_key, enabled, created_at, updated_at
		FROM media_servers WHERE id = ?`

	server, err := scanMediaServer(db.conn.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	libraries, err := db.ListLibraries(ctx, server.ID)
	if err != nil {
		return nil, err
	}
	server.Libraries = libraries
	return server, nil
}

// ListMediaServers retrieves all media servers ordered by creation time.
func (db *DB) ListMediaServers(ctx context.Context) ([]models.MediaServer, error) {
	query := `SELECT id, name, server_type, url, api_key, enabled, created_at, updated_at
		FROM media_servers ORDER BY created_at, id`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list media servers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var servers []models.MediaServer
	for rows.Next() {
		server, err := scanMediaServerRow(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, *server)
	}
	return servers, rows.Err()
}

// UpdateMediaServer updates a media server's mutable fields.
func (db *DB) UpdateMediaServer(ctx context.Context, server *models.MediaServer) error {
	server.UpdatedAt = time.Now().UTC()

	query := `UPDATE media_servers
		SET name = ?, url = ?, api_key = ?, enabled = ?, updated_at = ?
		WHERE id = ?`

	result, err := db.conn.ExecContext(ctx, query,
		server.Name, server.URL, server.APIKey, server.Enabled, server.UpdatedAt, server.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update media server: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrServerNotFound
	}
	return nil
}

// DeleteMediaServer removes a media server, its library catalog and its
// invitation associations in one transaction. Users provisioned on the
// server are kept; deleting their external accounts is an explicit admin
// action.
func (db *DB) DeleteMediaServer(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `DELETE FROM media_servers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete media server: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrServerNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM invitation_libraries WHERE library_id IN (SELECT id FROM libraries WHERE media_server_id = ?)`, id); err != nil {
		return fmt.Errorf("failed to delete invitation library links: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM libraries WHERE media_server_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete libraries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM invitation_servers WHERE media_server_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete invitation server links: %w", err)
	}

	return tx.Commit()
}

// ReplaceLibraries replaces a server's library catalog with the given set,
// preserving the enabled flag of libraries that survive the sync.
func (db *DB) ReplaceLibraries(ctx context.Context, serverID string, libraries []models.Library) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Remember enabled flags keyed by external ID before wiping.
	enabledByExternal := make(map[string]bool)
	rows, err := tx.QueryContext(ctx, `SELECT external_id, enabled FROM libraries WHERE media_server_id = ?`, serverID)
	if err != nil {
		return fmt.Errorf("failed to read existing libraries: %w", err)
	}
	for rows.Next() {
		var externalID string
		var enabled bool
		if err := rows.Scan(&externalID, &enabled); err != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to scan library: %w", err)
		}
		enabledByExternal[externalID] = enabled
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM invitation_libraries WHERE library_id IN (SELECT id FROM libraries WHERE media_server_id = ?)`, serverID); err != nil {
		return fmt.Errorf("failed to delete invitation library links: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM libraries WHERE media_server_id = ?`, serverID); err != nil {
		return fmt.Errorf("failed to delete libraries: %w", err)
	}

	now := time.Now().UTC()
	for i := range libraries {
		lib := &libraries[i]
		if lib.ID == "" {
			lib.ID = uuid.New().String()
		}
		lib.MediaServerID = serverID
		if lib.CreatedAt.IsZero() {
			lib.CreatedAt = now
		}
		if enabled, ok := enabledByExternal[lib.ExternalID]; ok {
			lib.Enabled = enabled
		} else {
			lib.Enabled = true
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO libraries (id, media_server_id, external_id, name, enabled, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			lib.ID, lib.MediaServerID, lib.ExternalID, lib.Name, lib.Enabled, lib.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert library: %w", err)
		}
	}

	return tx.Commit()
}

// ListLibraries retrieves a server's library catalog.
func (db *DB) ListLibraries(ctx context.Context, serverID string) ([]models.Library, error) {
	query := `SELECT id, media_server_id, external_id, name, enabled, created_at
		FROM libraries WHERE media_server_id = ? ORDER BY name, id`

	rows, err := db.conn.QueryContext(ctx, query, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list libraries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var libraries []models.Library
	for rows.Next() {
		var lib models.Library
		if err := rows.Scan(&lib.ID, &lib.MediaServerID, &lib.ExternalID, &lib.Name, &lib.Enabled, &lib.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan library: %w", err)
		}
		libraries = append(libraries, lib)
	}
	return libraries, rows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMediaServer(row *sql.Row) (*models.MediaServer, error) {
	server, err := scanMediaServerRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrServerNotFound
	}
	return server, err
}

func scanMediaServerRow(s rowScanner) (*models.MediaServer, error) {
	var server models.MediaServer
	var serverType string
	err := s.Scan(&server.ID, &server.Name, &serverType, &server.URL, &server.APIKey,
		&server.Enabled, &server.CreatedAt, &server.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrServerNotFound
		}
		return nil, fmt.Errorf("failed to scan media server: %w", err)
	}
	server.ServerType = models.ServerType(serverType)
	return &server, nil
}
