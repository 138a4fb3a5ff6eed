// Portarius - Media Server Invitations and Account Provisioning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portarius

/*
database_schema.go - Database Schema Management

Tables:
  - media_servers: configured Plex/Jellyfin/Emby backends
  - libraries: per-server library catalog, synced from the provider
  - invitations: invitation codes with expiry/use-count/permission state
  - invitation_servers: which servers an invitation provisions
  - invitation_libraries: optional per-server library restriction
  - identities: one local identity per redeemed invitation
  - users: one row per external account an identity owns
  - admins: local administrator accounts

Schema Strategy (Pre-Release):
All columns are defined in the initial CREATE TABLE statement. This provides
a single source of truth and keeps startup free of migration machinery.
*/

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables and indexes
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

// tableCreationQueries returns the table creation SQL statements
func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS media_servers (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			server_type TEXT NOT NULL,
			url TEXT NOT NULL,
			api_key TEXT NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS libraries (
			id UUID PRIMARY KEY,
			media_server_id UUID NOT NULL,
			external_id TEXT NOT NULL,
			name TEXT NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (media_server_id, external_id)
		)`,

		`CREATE TABLE IF NOT EXISTS invitations (
			id UUID PRIMARY KEY,
			code TEXT NOT NULL UNIQUE,
			enabled BOOLEAN NOT NULL DEFAULT true,
			expires_at TIMESTAMP,
			max_uses INTEGER,
			use_count INTEGER NOT NULL DEFAULT 0,
			duration_days INTEGER,
			permissions TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS invitation_servers (
			invitation_id UUID NOT NULL,
			media_server_id UUID NOT NULL,
			PRIMARY KEY (invitation_id, media_server_id)
		)`,

		`CREATE TABLE IF NOT EXISTS invitation_libraries (
			invitation_id UUID NOT NULL,
			library_id UUID NOT NULL,
			PRIMARY KEY (invitation_id, library_id)
		)`,

		`CREATE TABLE IF NOT EXISTS identities (
			id UUID PRIMARY KEY,
			username TEXT NOT NULL,
			email TEXT,
			created_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			identity_id UUID NOT NULL,
			media_server_id UUID NOT NULL,
			external_user_id TEXT NOT NULL,
			username TEXT NOT NULL,
			email TEXT,
			enabled BOOLEAN NOT NULL DEFAULT true,
			expires_at TIMESTAMP,
			invitation_id TEXT,
			created_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS admins (
			id UUID PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_invitations_code ON invitations (code)`,
		`CREATE INDEX IF NOT EXISTS idx_libraries_server ON libraries (media_server_id)`,
		`CREATE INDEX IF NOT EXISTS idx_users_identity ON users (identity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_users_server ON users (media_server_id)`,
		`CREATE INDEX IF NOT EXISTS idx_users_expires ON users (expires_at)`,
	}
}
