// Package apikey creates and checks the bearer keys used by the HTTP API.
package apikey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kiranshivaraju/synthgen/pkg/models"
)

const (
	// Prefix starts every raw key so leaked keys are easy to recognize.
	Prefix = "sg_"
	// PrefixLen is how many leading characters are stored in clear for lookup.
	PrefixLen = 8

	secretBytes = 24
)

var ErrMalformed = errors.New("malformed api key")

// Generate returns a new raw key and its storable record. The raw key is
// never persisted; show it once.
func Generate(name string, now time.Time) (string, *models.APIKey, error) {
	if strings.TrimSpace(name) == "" {
		return "", nil, fmt.Errorf("api key name is required")
	}

	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("generate key material: %w", err)
	}
	raw := Prefix + hex.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash api key: %w", err)
	}

	now = now.UTC()
	return raw, &models.APIKey{
		ID:        uuid.New(),
		Name:      name,
		KeyHash:   string(hash),
		KeyPrefix: raw[:PrefixLen],
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// PrefixOf returns the lookup prefix of a raw key.
func PrefixOf(raw string) (string, error) {
	if len(raw) <= PrefixLen || !strings.HasPrefix(raw, Prefix) {
		return "", ErrMalformed
	}
	return raw[:PrefixLen], nil
}

// Verify reports whether raw matches the stored bcrypt hash.
func Verify(hash, raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}
