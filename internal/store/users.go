package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// User is a stored account. PasswordHash is the salted PBKDF2 encoding, never
// the plain password.
type User struct {
	ID           int64
	Username     string
	Email        *string
	LoginID      string
	PasswordHash string
}

func (s *Store) CreateUser(ctx context.Context, username string, email *string, loginID, passwordHash string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, login_id, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id, username, email, login_id, password_hash`,
		username, email, loginID, passwordHash,
	).Scan(&u.ID, &u.Username, &u.Email, &u.LoginID, &u.PasswordHash)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (User, error) {
	return s.getUserWhere(ctx, `id = $1`, id)
}

func (s *Store) GetUserByLoginID(ctx context.Context, loginID string) (User, error) {
	return s.getUserWhere(ctx, `login_id = $1`, loginID)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUserWhere(ctx, `email = $1`, email)
}

func (s *Store) getUserWhere(ctx context.Context, where string, arg any) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, email, login_id, password_hash FROM users WHERE `+where,
		arg,
	).Scan(&u.ID, &u.Username, &u.Email, &u.LoginID, &u.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, fmt.Errorf("user: %w", ErrNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context, skip, limit int) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, username, email, login_id, password_hash
		FROM users ORDER BY id OFFSET $1 LIMIT $2`,
		skip, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.LoginID, &u.PasswordHash); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// UpdateUser applies the non-nil fields and returns the updated row.
func (s *Store) UpdateUser(ctx context.Context, id int64, username, email, passwordHash *string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		UPDATE users SET
			username = COALESCE($2, username),
			email = COALESCE($3, email),
			password_hash = COALESCE($4, password_hash)
		WHERE id = $1
		RETURNING id, username, email, login_id, password_hash`,
		id, username, email, passwordHash,
	).Scan(&u.ID, &u.Username, &u.Email, &u.LoginID, &u.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil
}
