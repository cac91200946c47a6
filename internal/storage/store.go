// ABOUTME: Failure-tolerant typed access to persisted client state
// ABOUTME: Credential, cart and cookie helpers that log instead of returning errors

package storage

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/markalston/storefront-client/internal/models"
)

// Persisted keys
const (
	KeyAuthToken      = "authToken"
	KeyUserID         = "userId"
	KeyCurrentUser    = "currentUser"
	KeyCartItems      = "cartItems"
	KeyRecentSearches = "recentSearches"
	KeyCookies        = "cookies"
)

const opTimeout = 3 * time.Second

// Store is the only reader and writer of persisted state.
// No method returns an error: a failing backend reads as absent.
type Store struct {
	kv KV
}

// New creates a store over the given backend
func New(kv KV) *Store {
	return &Store{kv: kv}
}

// GetJSON decodes key into v and reports whether a usable value was found
func (s *Store) GetJSON(key string, v interface{}) bool {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		slog.Warn("Storage read failed", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		slog.Warn("Discarding unreadable stored value", "key", key, "error", err)
		return false
	}
	return true
}

// SetJSON encodes v under key. It reports success for callers that care.
func (s *Store) SetJSON(key string, v interface{}) bool {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Storage encode failed", "key", key, "error", err)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := s.kv.Set(ctx, key, data); err != nil {
		slog.Warn("Storage write failed", "key", key, "error", err)
		return false
	}
	return true
}

// Delete removes key
func (s *Store) Delete(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := s.kv.Delete(ctx, key); err != nil {
		slog.Warn("Storage delete failed", "key", key, "error", err)
		return false
	}
	return true
}

// Has reports whether key holds a value
func (s *Store) Has(key string) bool {
	var raw json.RawMessage
	return s.GetJSON(key, &raw)
}

// SaveCredential persists the credential together with the identity it belongs to
func (s *Store) SaveCredential(credential string, identity models.Identity) {
	s.SetJSON(KeyAuthToken, credential)
	s.SetJSON(KeyUserID, strconv.FormatInt(identity.ID, 10))
	s.SetJSON(KeyCurrentUser, identity)
}

// LoadCredential returns the stored credential and identity.
// Both are absent unless the token and the profile are readable.
func (s *Store) LoadCredential() (string, *models.Identity) {
	var credential string
	if !s.GetJSON(KeyAuthToken, &credential) || credential == "" {
		return "", nil
	}

	var identity models.Identity
	if !s.GetJSON(KeyCurrentUser, &identity) || identity.ID == 0 {
		var rawID string
		if !s.GetJSON(KeyUserID, &rawID) {
			return "", nil
		}
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil || id == 0 {
			return "", nil
		}
		identity = models.Identity{ID: id, Role: models.RoleCustomer}
	}
	if identity.Role == "" {
		identity.Role = models.RoleCustomer
	}
	return credential, &identity
}

// ClearCredential removes the credential and identity keys
func (s *Store) ClearCredential() {
	s.Delete(KeyAuthToken)
	s.Delete(KeyUserID)
	s.Delete(KeyCurrentUser)
}

// LoadCartLines returns the device-local cart in insertion order
func (s *Store) LoadCartLines() []models.LocalCartLine {
	var lines []models.LocalCartLine
	if !s.GetJSON(KeyCartItems, &lines) {
		return []models.LocalCartLine{}
	}
	return lines
}

// SaveCartLines persists the full local cart
func (s *Store) SaveCartLines(lines []models.LocalCartLine) bool {
	return s.SetJSON(KeyCartItems, lines)
}

// ClearCartLines removes the local cart key entirely
func (s *Store) ClearCartLines() bool {
	return s.Delete(KeyCartItems)
}

type storedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path,omitempty"`
	Domain  string    `json:"domain,omitempty"`
	Expires time.Time `json:"expires,omitempty"`
}

// LoadCookies returns persisted, unexpired cookies
func (s *Store) LoadCookies() []*http.Cookie {
	var stored []storedCookie
	if !s.GetJSON(KeyCookies, &stored) {
		return nil
	}

	now := time.Now()
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		if !c.Expires.IsZero() && now.After(c.Expires) {
			continue
		}
		cookies = append(cookies, &http.Cookie{
			Name:    c.Name,
			Value:   c.Value,
			Path:    c.Path,
			Domain:  c.Domain,
			Expires: c.Expires,
		})
	}
	return cookies
}

// SaveCookies persists cookies so the anti-forgery token survives restarts
func (s *Store) SaveCookies(cookies []*http.Cookie) {
	stored := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		stored = append(stored, storedCookie{
			Name:    c.Name,
			Value:   c.Value,
			Path:    c.Path,
			Domain:  c.Domain,
			Expires: c.Expires,
		})
	}
	s.SetJSON(KeyCookies, stored)
}
