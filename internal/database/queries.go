package database

// Schema bookkeeping queries
const (
	CreateSchemaMigrationsQuery = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`

	SelectAppliedMigrationsQuery = `SELECT version FROM schema_migrations`

	InsertSchemaMigrationQuery = `INSERT INTO schema_migrations (version, name) VALUES (?, ?)`
)

// Post queries
const (
	DeleteAllPostsQuery = `DELETE FROM posts`

	InsertPostQuery = `
		INSERT INTO posts (
			id, date, text, author, forwarded_from, reply_to,
			image_count, file_count, has_video, body
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	SelectPostBodyByIDQuery = `SELECT body FROM posts WHERE id = ?`

	SelectPostBodiesQuery = `
		SELECT body FROM posts
		ORDER BY id ASC
		LIMIT ? OFFSET ?
	`

	CountPostsQuery = `SELECT COUNT(*) FROM posts`

	SelectRepliesToPostQuery = `SELECT id FROM posts WHERE reply_to = ? ORDER BY id ASC`
)

// Run queries
const (
	InsertRunQuery = `INSERT INTO runs (run_id, post_count) VALUES (?, ?)`

	SelectLatestRunQuery = `
		SELECT run_id, post_count, finished_at FROM runs
		ORDER BY finished_at DESC, rowid DESC
		LIMIT 1
	`
)
