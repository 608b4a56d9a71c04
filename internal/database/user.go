package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/yudh/internal/auth"
	"github.com/jason-s-yu/yudh/internal/models"
)

// ErrInvalidCredentials is returned by AuthenticateUser on a bad email or password.
var ErrInvalidCredentials = errors.New("invalid credentials")

const userColumns = `id, COALESCE(email, ''), password, username, is_ephemeral, elo_1v1, phi_1v1, sigma_1v1`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Password, &u.Username,
		&u.IsEphemeral,
		&u.Elo1v1, &u.Phi1v1, &u.Sigma1v1,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a user. A registered user's password is hashed first; guests
// are stored without email or password.
func CreateUser(ctx context.Context, user *models.User) error {
	if DB == nil {
		return ErrNoDatabase
	}
	if user.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate user id: %w", err)
		}
		user.ID = id
	}

	var email *string
	if !user.IsEphemeral {
		hash, err := auth.HashPassword(user.Password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		user.Password = hash
		email = &user.Email
	}

	q := `INSERT INTO users (id, email, password, username, is_ephemeral)
	      VALUES ($1, $2, $3, $4, $5)
	      RETURNING elo_1v1, phi_1v1, sigma_1v1`

	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, q,
			user.ID, email, user.Password, user.Username, user.IsEphemeral,
		).Scan(&user.Elo1v1, &user.Phi1v1, &user.Sigma1v1)
	})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if DB == nil {
		return nil, ErrNoDatabase
	}
	return scanUser(DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email))
}

func GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if DB == nil {
		return nil, ErrNoDatabase
	}
	return scanUser(DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

// AuthenticateUser checks an email/password pair and returns a session token.
func AuthenticateUser(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := GetUserByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("user lookup: %w", err)
	}

	match, err := auth.ComparePassword(password, user.Password)
	if err != nil || !match {
		return nil, "", ErrInvalidCredentials
	}

	token, err := auth.CreateJWT(user.ID, user.Username)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create jwt: %w", err)
	}
	return user, token, nil
}
