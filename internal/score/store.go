// internal/score/store.go
//
// SQL-backed persistence for user accounts and score records.
// Responsibilities:
//   - User registration (bcrypt hash, case-insensitive username uniqueness).
//   - Credential verification with a uniform failure (no user enumeration).
//   - Append-only score inserts.
//   - Leaderboard reads: full re-sort by (score desc, time_left desc) with
//     positional 1-based ranks. Ties get consecutive ranks, not equal ones.

package score

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUsernameTaken is returned by CreateUser when the username exists.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrInvalidCredentials covers both unknown-user and wrong-password so
	// callers cannot distinguish them.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrNotFound is returned for missing user lookups by id.
	ErrNotFound = errors.New("user not found")
)

// User matches the users table shape. Rows are immutable after creation.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Record is one append-only score row.
type Record struct {
	UserID   string
	Score    int
	TimeLeft int
}

// Entry is a derived leaderboard row; it is computed on read, never stored.
type Entry struct {
	Rank     int    `json:"rank"`
	Player   string `json:"player"`
	Score    int    `json:"score"`
	TimeLeft int    `json:"time_left"`
}

// Store wraps the database handle.
type Store struct{ db *sql.DB }

// NewStore constructs a Store over an opened database.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// CreateUser hashes the password and inserts a new user row, returning the
// new user id. A pre-insert probe catches most duplicates; the UNIQUE
// constraint catches the rest and is translated to ErrUsernameTaken.
func (s *Store) CreateUser(ctx context.Context, username, password string) (string, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM users WHERE lower(username)=lower(?)`, username).Scan(&exists)
	if err == nil {
		return "", ErrUsernameTaken
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("check username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?,?,?,?)`,
		id, username, string(hash), now); err != nil {
		if isUniqueViolation(err) {
			return "", ErrUsernameTaken
		}
		return "", fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

// Authenticate verifies a username/password pair and returns the user id.
// Unknown username and wrong password both yield ErrInvalidCredentials.
func (s *Store) Authenticate(ctx context.Context, username, password string) (string, error) {
	var id, hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, password_hash FROM users WHERE lower(username)=lower(?)`, username).
		Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("lookup user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}
	return id, nil
}

// FindUserByID loads a user row by id.
func (s *Store) FindUserByID(ctx context.Context, id string) (*User, error) {
	var u User
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE id=?`, id).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &u, nil
}

// SaveScore appends one score row. The user id is stored as given; existence
// is not validated here.
func (s *Store) SaveScore(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scores (user_id, score, time_left, created_at) VALUES (?,?,?,?)`,
		rec.UserID, rec.Score, rec.TimeLeft, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert score: %w", err)
	}
	return nil
}

// Leaderboard returns every score joined with its player, ordered by score
// descending then time_left descending, with rank assigned by row position.
func (s *Store) Leaderboard(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.username, s.score, s.time_left
		FROM scores s
		JOIN users u ON u.id = s.user_id
		ORDER BY s.score DESC, s.time_left DESC`)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Player, &e.Score, &e.TimeLeft); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		e.Rank = len(out) + 1
		out = append(out, e)
	}
	return out, rows.Err()
}

// isUniqueViolation reports whether err is a sqlite UNIQUE constraint error.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
