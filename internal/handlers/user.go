package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jason-s-yu/yudh/internal/auth"
	"github.com/jason-s-yu/yudh/internal/database"
	"github.com/jason-s-yu/yudh/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	authCookie = "auth_token"
	guestName  = "Guest"
)

func setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
	})
}

// EnsureGuest returns the caller's identity from the auth cookie. Callers without a
// valid token get a new guest identity and a fresh cookie. Guests are stored in the
// database only when one is configured.
func EnsureGuest(w http.ResponseWriter, r *http.Request) (auth.Claims, error) {
	if token := extractCookieToken(r.Header.Get("Cookie"), authCookie); token != "" {
		claims, err := auth.AuthenticateJWT(token)
		if err == nil {
			return claims, nil
		}
		logrus.WithError(err).Debug("discarding invalid auth token")
	}

	guest := models.User{
		ID:          uuid.New(),
		Username:    guestName,
		IsEphemeral: true,
	}
	if database.Enabled() {
		if err := database.CreateUser(r.Context(), &guest); err != nil {
			return auth.Claims{}, fmt.Errorf("failed to create guest user: %w", err)
		}
	}

	token, err := auth.CreateJWT(guest.ID, guest.Username)
	if err != nil {
		return auth.Claims{}, fmt.Errorf("failed to create guest JWT: %w", err)
	}
	setAuthCookie(w, token)
	return auth.Claims{UserID: guest.ID, Username: guest.Username}, nil
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func requireDatabase(w http.ResponseWriter) bool {
	if !database.Enabled() {
		http.Error(w, "accounts are not available", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func decodeCredentials(w http.ResponseWriter, r *http.Request, needUsername bool) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return req, false
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || req.Password == "" || (needUsername && req.Username == "") {
		http.Error(w, "email, password and username are required", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// CreateUserHandler registers an account.
func CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !requireDatabase(w) {
		return
	}
	req, ok := decodeCredentials(w, r, true)
	if !ok {
		return
	}

	user := models.User{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
	}
	if err := database.CreateUser(r.Context(), &user); err != nil {
		if isUniqueViolation(err) {
			http.Error(w, "email already exists", http.StatusConflict)
			return
		}
		logrus.WithError(err).Error("failed to create user")
		http.Error(w, "error creating user", http.StatusInternalServerError)
		return
	}
	user.Password = ""
	writeJSON(w, http.StatusCreated, user)
}

// LoginHandler exchanges an email and password for a session token. The token is
// returned in the body and set as the auth cookie.
//
// Request payload:
//
//	{
//	  "email": "someone@example.com",
//	  "password": "password"
//	}
func LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !requireDatabase(w) {
		return
	}
	req, ok := decodeCredentials(w, r, false)
	if !ok {
		return
	}

	user, token, err := database.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, database.ErrInvalidCredentials) {
			logrus.WithError(err).Error("failed to authenticate user")
		}
		http.Error(w, "authentication failed", http.StatusForbidden)
		return
	}

	setAuthCookie(w, token)
	user.Password = ""
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

// ClaimGuestHandler turns the caller's guest identity into a registered account.
func ClaimGuestHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !requireDatabase(w) {
		return
	}
	claims, err := auth.AuthenticateJWT(extractCookieToken(r.Header.Get("Cookie"), authCookie))
	if err != nil {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}
	req, ok := decodeCredentials(w, r, true)
	if !ok {
		return
	}

	u := &models.User{ID: claims.UserID, Email: req.Email, Password: req.Password, Username: req.Username}
	if err := database.ClaimGuest(context.WithoutCancel(r.Context()), u); err != nil {
		if isUniqueViolation(err) {
			http.Error(w, "email already exists", http.StatusConflict)
			return
		}
		http.Error(w, "failed to claim guest user", http.StatusBadRequest)
		return
	}

	token, err := auth.CreateJWT(u.ID, u.Username)
	if err != nil {
		http.Error(w, "failed to create token", http.StatusInternalServerError)
		return
	}
	setAuthCookie(w, token)
	u.Password = ""
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: u})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
