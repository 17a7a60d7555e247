package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/wondough/bank/internal/models"
)

// UserService owns the user credential records. IDs are assigned by the
// database identity column (starting at 0), so concurrent registrations can
// never race on the next ID.
type UserService struct {
	db *sql.DB
}

func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db}
}

const uniqueViolation = "23505"

// CreateUser inserts a new user record and returns its assigned ID. A
// duplicate username is not an error: it returns created=false and the store
// is left untouched. Any other failure is a storage error.
func (s *UserService) CreateUser(ctx context.Context, username, passwordHash, salt string, iterations, keySize int) (int, bool, error) {
	var id int
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (username, password, salt, iterations, key_size)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		username, passwordHash, salt, iterations, keySize).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("creating user %q: %w", username, err)
	}
	return id, true, nil
}

// LookupUser returns the full credential record for a username, including the
// hash parameters needed to verify and rehash the password. Case-sensitive
// exact match; ErrNotFound when absent.
func (s *UserService) LookupUser(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password, salt, iterations, key_size FROM users WHERE username = $1`,
		username).Scan(&user.ID, &user.Username, &user.Password, &user.Salt, &user.Iterations, &user.KeySize)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("looking up user %q: %w", username, err)
	}
	return user, nil
}

// FindUserID resolves a username to its ID without loading credentials.
func (s *UserService) FindUserID(ctx context.Context, username string) (int, error) {
	var id int
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM users WHERE username = $1`, username).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("finding user %q: %w", username, err)
	}
	return id, nil
}

// UpdateCredentials overwrites the stored hash and its cost parameters. Used
// to migrate a user to the current hashing policy after a successful login.
// Returns ErrNotFound rather than silently updating nothing.
func (s *UserService) UpdateCredentials(ctx context.Context, username string, iterations, keySize int, newPasswordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET iterations = $1, key_size = $2, password = $3 WHERE username = $4`,
		iterations, keySize, newPasswordHash, username)
	if err != nil {
		return fmt.Errorf("updating credentials for %q: %w", username, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating credentials for %q: %w", username, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// LookupAppDisplayName returns the display name of a registered application.
// Pass-through metadata for the page-rendering layer.
func (s *UserService) LookupAppDisplayName(ctx context.Context, appID int) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM apps WHERE appid = $1`, appID).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("looking up app %d: %w", appID, err)
	}
	return name, nil
}
