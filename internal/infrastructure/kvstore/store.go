// Package kvstore is the durable key-value layer that stands in for the
// browser's localStorage and sessionStorage. Every shopper session owns a
// slice of the keyspace; a few registries (users, provider order index) are global.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when the key has never been written or was deleted.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is implemented by the memory, redis and gorm backends.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	// Keys lists every key starting with prefix, in lexical order.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Storage key names, kept identical to the ones the storefront pages used.
const (
	KeyCart            = "vaarahiCart"
	KeyLegacyCart      = "cart"
	KeyCoupon          = "vaarahiCoupon"
	KeyCartLocked      = "vaarahiCartLocked"
	KeyCurrentUser     = "vaarahiCurrentUser"
	KeyCompletedOrders = "vaarahiCompletedOrders"
	KeyPaymentInfo     = "vaarahiPaymentInfo"
	KeyPaymentHistory  = "vaarahiPaymentHistory"
	KeyWishlist        = "wishlistItems"
	KeyUsers           = "vaarahiUsers"
)

// Keyspace builds namespaced keys.
type Keyspace struct {
	Prefix string
}

// NewKeyspace returns a keyspace rooted at prefix ("vaarahi" when empty).
func NewKeyspace(prefix string) Keyspace {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "vaarahi"
	}
	return Keyspace{Prefix: prefix}
}

// Session returns the key holding name for one shopper session.
func (k Keyspace) Session(sessionID, name string) string {
	return k.SessionPrefix() + sessionID + ":" + name
}

// SessionPrefix is the common prefix of all per-session keys.
func (k Keyspace) SessionPrefix() string {
	return k.Prefix + ":session:"
}

// Global returns a key outside any session.
func (k Keyspace) Global(name string) string {
	return k.Prefix + ":" + name
}

// ProviderOrder indexes a payment provider's order id back to its session.
func (k Keyspace) ProviderOrder(providerOrderID string) string {
	return k.Global("payment:order:" + providerOrderID)
}

// SplitSession is the inverse of Session.
func (k Keyspace) SplitSession(key string) (sessionID, name string, ok bool) {
	rest, found := strings.CutPrefix(key, k.SessionPrefix())
	if !found {
		return "", "", false
	}
	sessionID, name, ok = strings.Cut(rest, ":")
	if !ok || sessionID == "" || name == "" {
		return "", "", false
	}
	return sessionID, name, true
}

// GetJSON decodes the value stored under key into dest.
// A missing key returns ErrNotFound; a value that is not valid JSON is
// reported as a *CorruptValueError so callers can reset it.
func GetJSON(ctx context.Context, s Store, key string, dest interface{}) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return &CorruptValueError{Key: key, Err: err}
	}
	return nil
}

// SetJSON encodes value and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}

// CorruptValueError reports a stored value that could not be decoded.
type CorruptValueError struct {
	Key string
	Err error
}

func (e *CorruptValueError) Error() string {
	return fmt.Sprintf("kvstore: corrupt value at %s: %v", e.Key, e.Err)
}

func (e *CorruptValueError) Unwrap() error { return e.Err }
