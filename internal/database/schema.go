package database

import "database/sql"

// User IDs start at 0 and are assigned by the identity column, so the
// next-ID-then-insert step is a single atomic statement.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id integer GENERATED BY DEFAULT AS IDENTITY (MINVALUE 0 START WITH 0) PRIMARY KEY,
		username text NOT NULL UNIQUE,
		password text NOT NULL,
		salt text NOT NULL,
		iterations integer NOT NULL,
		key_size integer NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS apps (
		appid integer PRIMARY KEY,
		name text NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS authorized_apps (
		owner_user_id integer NOT NULL REFERENCES users (id),
		request_token_digest text NOT NULL,
		access_token_digest text NOT NULL,
		access_token text NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_authorized_apps_request_token
		ON authorized_apps (request_token_digest)`,
	`CREATE INDEX IF NOT EXISTS idx_authorized_apps_access_token
		ON authorized_apps (access_token_digest)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id integer GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		owner_user_id integer NOT NULL,
		amount double precision NOT NULL,
		description text NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_owner
		ON transactions (owner_user_id)`,
	`INSERT INTO apps (appid, name) VALUES (1, 'Wondough Checkout')
		ON CONFLICT (appid) DO NOTHING`,
}

// EnsureSchema creates the tables, indexes and seed rows if they are missing.
func EnsureSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
