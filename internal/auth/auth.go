// Package auth issues and resolves agent API keys.
//
// Keys are bearer secrets shown once at registration; only a SHA-256 derived
// key is stored, so resolving a key is an indexed point lookup rather than a
// per-agent comparison.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/fixd/internal/store"
)

// keyPrefix marks fixd agent keys so leaked secrets are recognizable in
// scanner output.
const keyPrefix = "ask_"

// ErrInvalidKey is returned for unknown or malformed API keys.
var ErrInvalidKey = errors.New("invalid API key")

// GenerateKey returns a fresh API key and its stored derived key.
func GenerateKey() (key, keyHash string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generating key material: %w", err)
	}
	key = keyPrefix + base64.RawURLEncoding.EncodeToString(raw)
	return key, HashKey(key), nil
}

// HashKey derives the stored form of an API key.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Resolver authenticates API keys against the agent store.
type Resolver struct {
	store store.Store
}

// NewResolver creates a key resolver.
func NewResolver(st store.Store) *Resolver {
	return &Resolver{store: st}
}

// Resolve returns the agent owning the key, or ErrInvalidKey.
func (r *Resolver) Resolve(ctx context.Context, key string) (*store.Agent, error) {
	if !strings.HasPrefix(key, keyPrefix) {
		return nil, ErrInvalidKey
	}
	agent, err := r.store.GetAgentByKeyHash(ctx, HashKey(key))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("resolving API key: %w", err)
	}
	return agent, nil
}
