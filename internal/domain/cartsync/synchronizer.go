// Package cartsync keeps the legacy "cart" representation consistent with
// the primary "vaarahiCart" one. Older pages and clients still read and write
// the legacy shape, so every primary change is mirrored to it and anything
// found only on the legacy side is folded back in.
package cartsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/vaarahi/storefront/internal/domain/cart"
	"github.com/vaarahi/storefront/internal/infrastructure/kvstore"
)

// LegacyItem is the shape stored under the legacy key. Prices carry a "$" prefix.
type LegacyItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Image    string `json:"image,omitempty"`
	Quantity int    `json:"quantity"`
}

// Action describes what a reconciliation did.
type Action string

const (
	ActionNone                Action = "none"
	ActionMerged              Action = "merged"
	ActionPropagatedToLegacy  Action = "propagated_to_legacy"
	ActionPropagatedToPrimary Action = "propagated_to_primary"
)

// Result reports one reconciliation.
type Result struct {
	SessionID string
	Action    Action
	Changed   bool
	Items     []cart.LineItem
}

// ChangeFunc is notified after a reconciliation changed stored data.
type ChangeFunc func(ctx context.Context, r Result)

// Synchronizer reconciles the two cart representations.
type Synchronizer struct {
	kv   kvstore.Store
	keys kvstore.Keyspace
	log  logrus.FieldLogger

	mu       sync.Mutex
	sessions map[string]*sync.Mutex
	onChange []ChangeFunc
}

// New creates a synchronizer.
func New(kv kvstore.Store, keys kvstore.Keyspace, log logrus.FieldLogger) *Synchronizer {
	return &Synchronizer{
		kv:       kv,
		keys:     keys,
		log:      log.WithField("component", "cartsync"),
		sessions: make(map[string]*sync.Mutex),
	}
}

// OnChange registers fn to be called after data was rewritten.
func (s *Synchronizer) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

// Reconcile merges the representations for one session. When both hold
// items, legacy lines missing from the primary cart are appended and shared
// lines take the larger of the two quantities; quantities are never summed.
// When only one side holds items it is copied to the other. Running it again
// without new writes changes nothing.
func (s *Synchronizer) Reconcile(ctx context.Context, sessionID string) (Result, error) {
	result, err := s.reconcileLocked(ctx, sessionID)
	if err != nil {
		return result, err
	}
	if result.Changed {
		s.notify(ctx, result)
	}
	return result, nil
}

func (s *Synchronizer) reconcileLocked(ctx context.Context, sessionID string) (Result, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	result := Result{SessionID: sessionID, Action: ActionNone}

	primaryKey := s.keys.Session(sessionID, kvstore.KeyCart)
	legacyKey := s.keys.Session(sessionID, kvstore.KeyLegacyCart)

	primaryRaw, primary, err := s.read(ctx, primaryKey)
	if err != nil {
		return result, err
	}
	legacyRaw, legacy, err := s.read(ctx, legacyKey)
	if err != nil {
		return result, err
	}

	var merged []cart.LineItem
	switch {
	case len(primary) > 0 && len(legacy) > 0:
		merged = Merge(primary, legacy)
		result.Action = ActionMerged
	case len(primary) > 0:
		merged = primary
		result.Action = ActionPropagatedToLegacy
	case len(legacy) > 0:
		merged = legacy
		result.Action = ActionPropagatedToPrimary
	default:
		return result, nil
	}
	result.Items = merged

	primaryOut, err := encodePrimary(merged)
	if err != nil {
		return result, err
	}
	legacyOut, err := json.Marshal(ToLegacy(merged))
	if err != nil {
		return result, fmt.Errorf("failed to encode legacy cart: %w", err)
	}

	if string(primaryOut) != primaryRaw {
		if err := s.kv.Set(ctx, primaryKey, string(primaryOut)); err != nil {
			return result, fmt.Errorf("failed to write primary cart: %w", err)
		}
		result.Changed = true
	}
	if string(legacyOut) != legacyRaw {
		if err := s.kv.Set(ctx, legacyKey, string(legacyOut)); err != nil {
			return result, fmt.Errorf("failed to write legacy cart: %w", err)
		}
		result.Changed = true
	}

	if !result.Changed {
		result.Action = ActionNone
	} else {
		s.log.WithFields(logrus.Fields{
			"session_id": sessionID,
			"action":     result.Action,
			"items":      len(merged),
		}).Info("Cart representations reconciled")
	}
	return result, nil
}

// Mirror writes items to the legacy key. It is attached to every live cart
// store so the legacy copy follows each mutation.
func (s *Synchronizer) Mirror(ctx context.Context, sessionID string, items []cart.LineItem) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	key := s.keys.Session(sessionID, kvstore.KeyLegacyCart)
	out, err := json.Marshal(ToLegacy(items))
	if err != nil {
		return fmt.Errorf("failed to encode legacy cart: %w", err)
	}

	current, err := s.kv.Get(ctx, key)
	if err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		return fmt.Errorf("failed to read legacy cart: %w", err)
	}
	if current == string(out) {
		return nil
	}
	if err := s.kv.Set(ctx, key, string(out)); err != nil {
		return fmt.Errorf("failed to write legacy cart: %w", err)
	}
	return nil
}

// Listener adapts Mirror to cart store events.
func (s *Synchronizer) Listener() cart.Listener {
	return func(ctx context.Context, e cart.Event) {
		switch e.Kind {
		case cart.EventLocked, cart.EventUnlocked, cart.EventCouponApplied, cart.EventCouponRemoved:
			return
		}
		if err := s.Mirror(ctx, e.SessionID, e.Items); err != nil {
			s.log.WithError(err).WithField("session_id", e.SessionID).Error("Failed to mirror cart to legacy key")
		}
	}
}

// Attach wires the synchronizer to a cart service: sessions are reconciled
// before their cart is first loaded, mutations are mirrored to the legacy
// key, and live carts reload after a reconciliation rewrote them.
func (s *Synchronizer) Attach(carts *cart.Service) {
	carts.BeforeOpen(func(ctx context.Context, sessionID string) error {
		_, err := s.Reconcile(ctx, sessionID)
		return err
	})
	carts.Subscribe(s.Listener())
	s.OnChange(func(ctx context.Context, r Result) {
		if err := carts.Reload(ctx, r.SessionID); err != nil {
			s.log.WithError(err).WithField("session_id", r.SessionID).Warn("Failed to reload cart after sync")
		}
	})
}

// ReadLegacy returns the legacy representation for a session.
func (s *Synchronizer) ReadLegacy(ctx context.Context, sessionID string) ([]LegacyItem, error) {
	_, items, err := s.read(ctx, s.keys.Session(sessionID, kvstore.KeyLegacyCart))
	if err != nil {
		return nil, err
	}
	return ToLegacy(items), nil
}

// WriteLegacy stores items as an older client would and reconciles immediately.
func (s *Synchronizer) WriteLegacy(ctx context.Context, sessionID string, items []LegacyItem) (Result, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode legacy cart: %w", err)
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	err = s.kv.Set(ctx, s.keys.Session(sessionID, kvstore.KeyLegacyCart), string(data))
	lock.Unlock()
	if err != nil {
		return Result{}, fmt.Errorf("failed to write legacy cart: %w", err)
	}

	return s.Reconcile(ctx, sessionID)
}

// read loads and canonicalizes one representation. Missing or unreadable
// data counts as an empty cart.
func (s *Synchronizer) read(ctx context.Context, key string) (string, []cart.LineItem, error) {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	items, dropped, err := cart.DecodeItems([]byte(raw))
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("Treating unreadable cart as empty")
		return raw, nil, nil
	}
	if dropped > 0 {
		s.log.WithFields(logrus.Fields{"key": key, "dropped": dropped}).Warn("Skipped malformed cart entries")
	}
	return raw, cart.Consolidate(items), nil
}

func (s *Synchronizer) notify(ctx context.Context, r Result) {
	s.mu.Lock()
	fns := append([]ChangeFunc(nil), s.onChange...)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ctx, r)
	}
}

func (s *Synchronizer) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.sessions[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.sessions[sessionID] = l
	}
	return l
}

// Merge folds legacy into primary using max-quantity-wins.
func Merge(primary, legacy []cart.LineItem) []cart.LineItem {
	merged := make([]cart.LineItem, len(primary))
	copy(merged, primary)

	index := make(map[string]int, len(merged))
	for i, item := range merged {
		index[cart.NormalizeID(item.ID)] = i
	}

	for _, item := range legacy {
		key := cart.NormalizeID(item.ID)
		if i, ok := index[key]; ok {
			if item.Quantity > merged[i].Quantity {
				merged[i].Quantity = item.Quantity
			}
			continue
		}
		index[key] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

// ToLegacy converts primary lines to the legacy shape.
func ToLegacy(items []cart.LineItem) []LegacyItem {
	out := make([]LegacyItem, len(items))
	for i, item := range items {
		id := item.ProductID
		if id == "" {
			id = item.ID
		}
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		out[i] = LegacyItem{
			ID:       id,
			Name:     item.Name,
			Price:    legacyPrice(item.Price),
			Image:    item.Image,
			Quantity: qty,
		}
	}
	return out
}

func legacyPrice(price float64) string {
	return "$" + strconv.FormatFloat(price, 'f', -1, 64)
}

func encodePrimary(items []cart.LineItem) ([]byte, error) {
	stored := make([]cart.LineItem, len(items))
	for i, item := range items {
		item.ProductID = item.ID
		stored[i] = item
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to encode primary cart: %w", err)
	}
	return data, nil
}
