package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/yudh/internal/auth"
	"github.com/jason-s-yu/yudh/internal/models"
)

// ClaimGuest turns a guest into a registered user, keeping its id and rating.
func ClaimGuest(ctx context.Context, u *models.User) error {
	if DB == nil {
		return ErrNoDatabase
	}
	hashed, err := auth.HashPassword(u.Password)
	if err != nil {
		return err
	}

	q := `UPDATE users SET email = $1, password = $2, username = $3, is_ephemeral = FALSE
	      WHERE id = $4 AND is_ephemeral`
	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, e := tx.Exec(ctx, q, u.Email, hashed, u.Username, u.ID)
		if e != nil {
			return e
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to claim guest user: %w", err)
	}
	u.Password = hashed
	u.IsEphemeral = false
	return nil
}
