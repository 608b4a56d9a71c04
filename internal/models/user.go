package models

import "github.com/google/uuid"

type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email,omitempty"`
	Password string    `json:"password,omitempty"`
	Username string    `json:"username"`

	IsEphemeral bool `json:"is_ephemeral"`

	// Glicko2 for 1v1 duels, stored on the Elo scale
	Elo1v1   int     `json:"elo_1v1"`
	Phi1v1   float64 `json:"phi_1v1"`
	Sigma1v1 float64 `json:"sigma_1v1"`
}
