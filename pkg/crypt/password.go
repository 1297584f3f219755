package crypt

import (
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const DefaultCost = 10

type Hasher struct {
	cost int
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost}
}

func (h *Hasher) Hash(password string) (string, error) {
	passwordBytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("generating encoded password: %w", err)
	}
	return base64.StdEncoding.EncodeToString(passwordBytes), nil
}

// Verify reports whether password matches encoded. Malformed hashes never
// match.
func (h *Hasher) Verify(password, encoded string) bool {
	passwordBytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(passwordBytes) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(passwordBytes, []byte(password)) == nil
}
