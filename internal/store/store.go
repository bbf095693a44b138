package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ibeckermayer/feedrelay/internal/types"
)

// ErrNotFound is returned by Get when no record has the id.
var ErrNotFound = errors.New("record not found")

// Store persists relayed records in SQLite, keyed by status id.
type Store struct {
	db      *sql.DB
	version uint
}

// Open opens (creating if needed) the database at dbPath and migrates it.
func Open(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)

	version, err := runMigrations(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, version: version}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Version returns the applied schema version.
func (s *Store) Version() uint {
	return s.version
}

// SaveRecords upserts records in one transaction. Authors are upserted by
// username; records are overwritten by id.
func (s *Store) SaveRecords(ctx context.Context, records []types.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, r := range records {
		var userID int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO users (username, followers)
			VALUES (?, ?)
			ON CONFLICT(username) DO UPDATE SET
				followers = MAX(users.followers, excluded.followers)
			RETURNING id
		`, r.User.Username, r.User.Followers).Scan(&userID)
		if err != nil {
			return fmt.Errorf("failed to save user %q: %w", r.User.Username, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO tweets (tweet_id, user_id, text, likes, retweets, views,
				replies, bookmarks, link, profile_image, is_repost, reposted_by,
				created_at, received_at, sent_by_user)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(tweet_id) DO UPDATE SET
				user_id = excluded.user_id,
				text = excluded.text,
				likes = excluded.likes,
				retweets = excluded.retweets,
				views = excluded.views,
				replies = excluded.replies,
				bookmarks = excluded.bookmarks,
				link = excluded.link,
				profile_image = excluded.profile_image,
				is_repost = excluded.is_repost,
				reposted_by = excluded.reposted_by,
				created_at = excluded.created_at,
				sent_by_user = excluded.sent_by_user
		`, r.ID, userID, r.Text, r.Likes, r.Retweets, r.Views,
			r.Replies, r.Bookmarks, r.Link, r.ProfileImage, r.IsRepost, r.RepostedBy,
			r.CreatedAt.UTC(), now, r.SentByUser)
		if err != nil {
			return fmt.Errorf("failed to save record %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}
	return nil
}

// IDs returns every stored status id.
func (s *Store) IDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tweet_id FROM tweets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Get returns the stored record with id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (types.Record, error) {
	var r types.Record
	err := s.db.QueryRowContext(ctx, `
		SELECT t.tweet_id, u.username, u.followers, t.text, t.likes, t.retweets,
			t.views, t.replies, t.bookmarks, t.link, t.profile_image,
			t.is_repost, t.reposted_by, t.created_at, t.sent_by_user
		FROM tweets t
		JOIN users u ON u.id = t.user_id
		WHERE t.tweet_id = ?
	`, id).Scan(
		&r.ID, &r.User.Username, &r.User.Followers, &r.Text, &r.Likes, &r.Retweets,
		&r.Views, &r.Replies, &r.Bookmarks, &r.Link, &r.ProfileImage,
		&r.IsRepost, &r.RepostedBy, &r.CreatedAt, &r.SentByUser,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Record{}, ErrNotFound
	}
	if err != nil {
		return types.Record{}, fmt.Errorf("failed to get record %s: %w", id, err)
	}
	return r, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tweets`).Scan(&n)
	return n, err
}
