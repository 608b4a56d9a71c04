// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrNotInitialized is returned when tokens are used before Init.
var ErrNotInitialized = errors.New("auth: signing keys not initialized")

var (
	keyMu      sync.RWMutex
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	tokenTTL   time.Duration
)

// Claims is the identity carried by a session token.
type Claims struct {
	UserID   uuid.UUID
	Username string
}

// Init generates a fresh ed25519 key pair. ttl <= 0 issues tokens without expiry.
func Init(ttl time.Duration) error {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	setKeys(priv, pub, ttl)
	return nil
}

// InitFromPath reads raw ed25519 keys from disk.
func InitFromPath(privatePath, publicPath string, ttl time.Duration) error {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid ed25519 key sizes %d/%d", len(privateKeyData), len(publicKeyData))
	}
	setKeys(ed25519.PrivateKey(privateKeyData), ed25519.PublicKey(publicKeyData), ttl)
	return nil
}

func setKeys(priv ed25519.PrivateKey, pub ed25519.PublicKey, ttl time.Duration) {
	keyMu.Lock()
	defer keyMu.Unlock()
	privateKey, publicKey, tokenTTL = priv, pub, ttl
}

// CreateJWT signs a token with "sub" = userID and "name" = username.
func CreateJWT(userID uuid.UUID, username string) (string, error) {
	keyMu.RLock()
	priv, ttl := privateKey, tokenTTL
	keyMu.RUnlock()
	if priv == nil {
		return "", ErrNotInitialized
	}

	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"name": username,
		"iat":  time.Now().Unix(),
	}
	if ttl > 0 {
		claims["exp"] = time.Now().Add(ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(priv)
}

// AuthenticateJWT verifies a token and returns its claims.
func AuthenticateJWT(tokenString string) (Claims, error) {
	keyMu.RLock()
	pub := publicKey
	keyMu.RUnlock()
	if pub == nil {
		return Claims{}, ErrNotInitialized
	}

	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return pub, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return Claims{}, fmt.Errorf("invalid token")
	}

	mc, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("invalid jwt claims")
	}
	sub, ok := mc["sub"].(string)
	if !ok {
		return Claims{}, fmt.Errorf("missing sub in jwt")
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return Claims{}, fmt.Errorf("invalid sub in jwt: %w", err)
	}
	name, _ := mc["name"].(string)
	return Claims{UserID: id, Username: name}, nil
}
