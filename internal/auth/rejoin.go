// internal/auth/rejoin.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// privateKey and publicKey sign and verify rejoin tokens. They live for the process
// lifetime, matching the in-memory rooms the tokens point at.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// tokenTTL is how long a rejoin token stays valid (0 => never expires).
	tokenTTL time.Duration
)

var ErrNotInitialized = errors.New("rejoin token keys not initialised")

// ParseTokenTTL reads a TOKEN_EXPIRE_TIME style value. "never", "0" and "" mean no expiry.
func ParseTokenTTL(v string) (time.Duration, error) {
	if v == "never" || v == "0" || v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}

// Init generates a fresh ed25519 key pair and sets the token lifetime.
func Init(ttl time.Duration) error {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	publicKey, privateKey = pub, priv
	tokenTTL = ttl
	return nil
}

// rejoinClaims ties a token to one player of one room.
type rejoinClaims struct {
	RoomID string `json:"room"`
	jwt.RegisteredClaims
}

// CreateRejoinToken signs a token with "sub" = playerID and "room" = roomID.
func CreateRejoinToken(roomID, playerID uuid.UUID) (string, error) {
	if privateKey == nil {
		return "", ErrNotInitialized
	}
	now := time.Now()
	claims := rejoinClaims{
		RoomID: roomID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  playerID.String(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if tokenTTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(tokenTTL))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// ParseRejoinToken verifies a token and returns the room and player it names.
func ParseRejoinToken(tokenString string) (roomID, playerID uuid.UUID, err error) {
	if publicKey == nil {
		return uuid.Nil, uuid.Nil, ErrNotInitialized
	}
	claims := &rejoinClaims{}
	t, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid token")
	}

	roomID, err = uuid.Parse(claims.RoomID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("malformed room in token: %w", err)
	}
	playerID, err = uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("malformed sub in token: %w", err)
	}
	return roomID, playerID, nil
}

// RejoinTokens exposes the package level signer to callers that take it as a dependency.
type RejoinTokens struct{}

func (RejoinTokens) Issue(roomID, playerID uuid.UUID) (string, error) {
	return CreateRejoinToken(roomID, playerID)
}

func (RejoinTokens) Verify(token string) (uuid.UUID, uuid.UUID, error) {
	return ParseRejoinToken(token)
}
