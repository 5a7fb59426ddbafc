// Package database stores a queryable copy of the converted posts in SQLite.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tgblog/internal/constants"
	"tgblog/internal/errors"
	"tgblog/internal/migrations"
	"tgblog/internal/models"
	"tgblog/internal/retry"

	_ "github.com/mattn/go-sqlite3"
)

// Run describes the conversion that last replaced the archive.
type Run struct {
	ID         string
	PostCount  int
	FinishedAt time.Time
}

type Database struct {
	db      *sql.DB
	backoff *retry.Backoff
}

// New opens or creates the archive at dbPath and applies pending migrations.
// Opening is retried while another process holds the database lock.
func New(ctx context.Context, dbPath string, backoff *retry.Backoff) (*Database, error) {
	if dbPath == "" || strings.ContainsRune(dbPath, '\x00') {
		return nil, errors.New(errors.ErrCodeInvalidInput, "invalid database path")
	}
	if backoff == nil {
		backoff = retry.NewBackoff(retry.DefaultBackoffConfig())
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, constants.DefaultDirectoryPermissions); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseConnection, "failed to create database directory")
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseConnection, "failed to open database")
	}
	db.SetMaxOpenConns(1)

	d := &Database{db: db, backoff: backoff}

	err = backoff.RetryWithPredicate(ctx, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		return d.migrate(ctx)
	}, isRetryableDBError)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize database: %w (close error: %v)", err, closeErr)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseMigration, "failed to initialize database")
	}

	return d, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, CreateSchemaMigrationsQuery); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := d.db.QueryContext(ctx, SelectAppliedMigrationsQuery)
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	all, err := migrations.All()
	if err != nil {
		return err
	}
	for _, m := range all {
		if applied[m.Version] {
			continue
		}
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to apply migration %s: %w", m.Name, err)
		}
		if _, err := tx.ExecContext(ctx, InsertSchemaMigrationQuery, m.Version, m.Name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// ReplacePosts swaps the archive's contents for posts in one transaction and
// records the run.
func (d *Database) ReplacePosts(ctx context.Context, runID string, posts []models.Post) error {
	return d.backoff.RetryWithPredicate(ctx, func(ctx context.Context) error {
		return d.replacePosts(ctx, runID, posts)
	}, isRetryableDBError)
}

func (d *Database) replacePosts(ctx context.Context, runID string, posts []models.Post) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return dbError("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, DeleteAllPostsQuery); err != nil {
		return dbError("clear posts", err)
	}

	stmt, err := tx.PrepareContext(ctx, InsertPostQuery)
	if err != nil {
		return dbError("prepare insert", err)
	}
	defer stmt.Close()

	for i := range posts {
		p := &posts[i]
		body, err := json.Marshal(p)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to encode post")
		}

		var replyTo *int64
		if p.Reply != nil {
			replyTo = &p.Reply.ID
		}

		if _, err := stmt.ExecContext(ctx,
			p.ID,
			p.Date,
			p.Text,
			p.Author,
			p.ForwardedFrom,
			replyTo,
			len(p.Images),
			len(p.Files),
			p.Video != nil,
			string(body),
		); err != nil {
			return dbError("insert post", err).WithContext(constants.LogFieldPostID, p.ID)
		}
	}

	if runID != "" {
		if _, err := tx.ExecContext(ctx, InsertRunQuery, runID, len(posts)); err != nil {
			return dbError("record run", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return dbError("commit", err)
	}
	return nil
}

// GetPost returns the post with the given id, or a NOT_FOUND error.
func (d *Database) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	var body string
	err := d.db.QueryRowContext(ctx, SelectPostBodyByIDQuery, id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("post", fmt.Sprintf("%d", id))
	}
	if err != nil {
		return nil, errors.NewDatabaseError("get post", err)
	}
	return decodePost(body)
}

// ListPosts returns up to limit posts ordered by id, skipping offset.
func (d *Database) ListPosts(ctx context.Context, offset, limit int) ([]models.Post, error) {
	if limit <= 0 {
		return []models.Post{}, nil
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := d.db.QueryContext(ctx, SelectPostBodiesQuery, limit, offset)
	if err != nil {
		return nil, errors.NewDatabaseError("list posts", err)
	}
	defer rows.Close()

	posts := make([]models.Post, 0, limit)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, errors.NewDatabaseError("scan post", err)
		}
		p, err := decodePost(body)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError("list posts", err)
	}
	return posts, nil
}

// CountPosts returns the number of archived posts.
func (d *Database) CountPosts(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, CountPostsQuery).Scan(&n); err != nil {
		return 0, errors.NewDatabaseError("count posts", err)
	}
	return n, nil
}

// GetReplies returns the ids of posts that reply to id.
func (d *Database) GetReplies(ctx context.Context, id int64) ([]int64, error) {
	rows, err := d.db.QueryContext(ctx, SelectRepliesToPostQuery, id)
	if err != nil {
		return nil, errors.NewDatabaseError("get replies", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var reply int64
		if err := rows.Scan(&reply); err != nil {
			return nil, errors.NewDatabaseError("scan reply", err)
		}
		ids = append(ids, reply)
	}
	return ids, rows.Err()
}

// LatestRun returns the most recent recorded run, or nil when none exists.
func (d *Database) LatestRun(ctx context.Context) (*Run, error) {
	var run Run
	err := d.db.QueryRowContext(ctx, SelectLatestRunQuery).Scan(&run.ID, &run.PostCount, &run.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewDatabaseError("latest run", err)
	}
	return &run, nil
}

func decodePost(body string) (*models.Post, error) {
	var p models.Post
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseQuery, "failed to decode archived post")
	}
	return &p, nil
}
