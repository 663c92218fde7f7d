// Package repository holds the SQL for users, sections and notes. Functions
// take a db.Querier so the caller decides whether they run on a pooled
// client or inside a transaction. Absence is reported as nil or false,
// never as an error.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tulisin/db"
	"tulisin/models"
)

// now is the server clock for created_at/updated_at. Truncated to the
// precision of DATETIME(6) so values read back compare equal.
var now = func() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

const userColumns = "id, name, email, password_hash, created_at, updated_at"

type CreateUserParams struct {
	Name         string
	Email        string
	PasswordHash string
}

func CreateUser(ctx context.Context, q db.Querier, p CreateUserParams) (*models.User, error) {
	ts := now()
	user := &models.User{
		ID:           uuid.NewString(),
		Name:         p.Name,
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.ID, user.Name, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func FindUserByEmail(ctx context.Context, q db.Querier, email string) (*models.User, error) {
	return findUser(ctx, q, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
}

func FindUserByID(ctx context.Context, q db.Querier, id string) (*models.User, error) {
	return findUser(ctx, q, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

func EmailExists(ctx context.Context, q db.Querier, email string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM users WHERE email = ? LIMIT 1", email).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return true, nil
}

func findUser(ctx context.Context, q db.Querier, query string, arg string) (*models.User, error) {
	user := &models.User{}
	err := q.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}
