// Package account persists registered users in Postgres. The API layer only
// sees the narrow interface it declares; this is the production implementation.
package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dverbeek/lecturecast/internal/model"
)

var (
	ErrNotFound   = errors.New("account not found")
	ErrEmailTaken = errors.New("email already registered")
)

// maxHistoryEntries caps the embedded per-account upload history.
const maxHistoryEntries = 20

// Store wraps all SQL used for account records.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// EnsureSchema creates the accounts table if needed. Keeping the migration in
// code keeps the service self-contained so docker-compose can bootstrap
// everything.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	name TEXT NOT NULL,
	avatar TEXT,
	preferences JSONB NOT NULL,
	upload_history JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL,
	last_login TIMESTAMPTZ NOT NULL
);`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Ping checks database connectivity for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Create inserts a new account. Emails are stored lowercased, so uniqueness is
// case-insensitive.
func (s *Store) Create(ctx context.Context, acc *model.Account) error {
	prefs, err := json.Marshal(acc.Preferences)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	history, err := json.Marshal(historyOrEmpty(acc.UploadHistory))
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO accounts (id, email, password_hash, name, avatar, preferences, upload_history, created_at, last_login)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, acc.ID, model.NormalizeEmail(acc.Email), acc.PasswordHash, acc.Name, acc.Avatar, prefs, history, acc.CreatedAt, acc.LastLogin)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetByEmail returns the account registered under the (case-insensitive) email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	return s.get(ctx, `WHERE email=$1`, model.NormalizeEmail(email))
}

// GetByID returns an account by identifier.
func (s *Store) GetByID(ctx context.Context, id string) (*model.Account, error) {
	return s.get(ctx, `WHERE id=$1`, id)
}

func (s *Store) get(ctx context.Context, where string, arg any) (*model.Account, error) {
	var (
		acc     model.Account
		prefs   []byte
		history []byte
	)
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, name, avatar, preferences, upload_history, created_at, last_login
		FROM accounts `+where, arg)
	if err := row.Scan(&acc.ID, &acc.Email, &acc.PasswordHash, &acc.Name, &acc.Avatar, &prefs, &history, &acc.CreatedAt, &acc.LastLogin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select account: %w", err)
	}
	if err := json.Unmarshal(prefs, &acc.Preferences); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	if err := json.Unmarshal(history, &acc.UploadHistory); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return &acc, nil
}

// Save persists the mutable parts of an account record.
func (s *Store) Save(ctx context.Context, acc *model.Account) error {
	prefs, err := json.Marshal(acc.Preferences)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	history, err := json.Marshal(historyOrEmpty(acc.UploadHistory))
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts
		SET name=$1, avatar=$2, preferences=$3, upload_history=$4, last_login=$5
		WHERE id=$6
	`, acc.Name, acc.Avatar, prefs, history, acc.LastLogin, acc.ID)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendHistory prepends an upload entry to the account's embedded history,
// truncating to the most recent entries.
func (s *Store) AppendHistory(ctx context.Context, id string, entry model.UploadHistoryEntry) error {
	acc, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	acc.UploadHistory = PrependHistory(acc.UploadHistory, entry)
	return s.Save(ctx, acc)
}

// PrependHistory front-inserts entry and enforces the per-account cap.
func PrependHistory(history []model.UploadHistoryEntry, entry model.UploadHistoryEntry) []model.UploadHistoryEntry {
	out := append([]model.UploadHistoryEntry{entry}, history...)
	if len(out) > maxHistoryEntries {
		out = out[:maxHistoryEntries]
	}
	return out
}

func historyOrEmpty(history []model.UploadHistoryEntry) []model.UploadHistoryEntry {
	if history == nil {
		return []model.UploadHistoryEntry{}
	}
	return history
}
