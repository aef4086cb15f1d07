package sqlstore

import (
	"context"
	"fmt"
)

// schema creates the forum tables. Unique constraints mirror tables.Unique.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL DEFAULT '',
		email_verified BOOLEAN NOT NULL DEFAULT FALSE,
		password BYTEA NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		author_id TEXT NOT NULL,
		author_name TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		created TIMESTAMPTZ NOT NULL,
		likes BIGINT NOT NULL DEFAULT 0,
		dislikes BIGINT NOT NULL DEFAULT 0,
		comment_count BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id TEXT PRIMARY KEY,
		post_id TEXT NOT NULL,
		parent_id TEXT NOT NULL DEFAULT '',
		author_id TEXT NOT NULL,
		author_name TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL,
		depth BIGINT NOT NULL DEFAULT 0,
		created TIMESTAMPTZ NOT NULL,
		likes BIGINT NOT NULL DEFAULT 0,
		dislikes BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS votes (
		user_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		target_type TEXT NOT NULL,
		value BIGINT NOT NULL,
		UNIQUE (user_id, target_id, target_type)
	)`,
	`CREATE TABLE IF NOT EXISTS saves (
		user_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		target_type TEXT NOT NULL,
		created TIMESTAMPTZ NOT NULL,
		UNIQUE (user_id, target_id, target_type)
	)`,
	`CREATE TABLE IF NOT EXISTS awards (
		id TEXT PRIMARY KEY,
		target_id TEXT NOT NULL,
		target_type TEXT NOT NULL,
		granter_id TEXT NOT NULL,
		type TEXT NOT NULL,
		created TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		karma BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS submissions (
		user_id TEXT NOT NULL,
		challenge_id TEXT NOT NULL,
		status TEXT NOT NULL,
		photo_ref TEXT NOT NULL DEFAULT '',
		reviews_done BIGINT NOT NULL DEFAULT 0,
		mean DOUBLE PRECISION NOT NULL DEFAULT 0,
		created TIMESTAMPTZ NOT NULL,
		UNIQUE (user_id, challenge_id)
	)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		user_id TEXT NOT NULL,
		challenge_id TEXT NOT NULL,
		reviewer_id TEXT NOT NULL,
		score BIGINT NOT NULL,
		seq BIGINT NOT NULL,
		created TIMESTAMPTZ NOT NULL,
		UNIQUE (user_id, challenge_id, reviewer_id),
		UNIQUE (user_id, challenge_id, seq)
	)`,
}

// Migrate creates any missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: migrate: %w", err)
		}
	}
	return nil
}
