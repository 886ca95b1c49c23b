// internal/domain/cart/store.go
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/vaarahi/storefront/internal/domain/pricing"
	"github.com/vaarahi/storefront/internal/infrastructure/kvstore"
)

// EventKind names a cart change.
type EventKind string

const (
	EventItemAdded       EventKind = "item_added"
	EventItemRemoved     EventKind = "item_removed"
	EventQuantityUpdated EventKind = "quantity_updated"
	EventCleared         EventKind = "cleared"
	EventCouponApplied   EventKind = "coupon_applied"
	EventCouponRemoved   EventKind = "coupon_removed"
	EventLocked          EventKind = "locked"
	EventUnlocked        EventKind = "unlocked"
	EventReloaded        EventKind = "reloaded"
)

// Event is published after a change has been persisted.
type Event struct {
	Kind      EventKind
	SessionID string
	Items     []LineItem
	Item      *LineItem
	Locked    bool
}

// Listener receives cart events. Listeners run while the store is held and
// must not call back into the same Store.
type Listener func(ctx context.Context, e Event)

// DataCorruptionError describes persisted cart data that had to be discarded.
type DataCorruptionError struct {
	Key string
	Err error
}

func (e *DataCorruptionError) Error() string {
	return fmt.Sprintf("corrupt cart data at %s: %v", e.Key, e.Err)
}

func (e *DataCorruptionError) Unwrap() error { return e.Err }

// Store is the single authoritative cart for one shopper session. Every
// mutation is written through to the key-value store before it returns.
type Store struct {
	mu        sync.Mutex
	sessionID string
	kv        kvstore.Store
	keys      kvstore.Keyspace
	log       logrus.FieldLogger

	items     []LineItem
	coupon    *pricing.Coupon
	locked    bool
	listeners []Listener
}

// NewStore creates an empty store; call Load to read persisted state.
func NewStore(sessionID string, kv kvstore.Store, keys kvstore.Keyspace, log logrus.FieldLogger) *Store {
	return &Store{
		sessionID: sessionID,
		kv:        kv,
		keys:      keys,
		log:       log.WithField("session_id", sessionID),
		items:     []LineItem{},
	}
}

// SessionID returns the owning session.
func (s *Store) SessionID() string {
	return s.sessionID
}

// Subscribe registers a listener for subsequent events.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// Load replaces in-memory state with what is persisted. Missing data means
// an empty cart. Corrupt data is reset and re-persisted, never returned as
// an error.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.loadItems(ctx)
	if err != nil {
		return err
	}
	s.items = items
	s.coupon = s.loadCoupon(ctx)

	locked, err := s.kv.Get(ctx, s.key(kvstore.KeyCartLocked))
	switch {
	case err == nil:
		s.locked = locked == "true"
	case errors.Is(err, kvstore.ErrNotFound):
		s.locked = false
	default:
		return fmt.Errorf("failed to read cart lock: %w", err)
	}
	return nil
}

// Reload re-reads persisted state and notifies listeners.
func (s *Store) Reload(ctx context.Context) error {
	if err := s.Load(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit(ctx, Event{Kind: EventReloaded})
	return nil
}

func (s *Store) loadItems(ctx context.Context) ([]LineItem, error) {
	key := s.key(kvstore.KeyCart)
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return []LineItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}

	items, dropped, err := DecodeItems([]byte(raw))
	if err != nil {
		s.log.WithError(&DataCorruptionError{Key: key, Err: err}).Warn("Resetting unreadable cart")
		if err := s.persistItems(ctx, []LineItem{}); err != nil {
			return nil, err
		}
		return []LineItem{}, nil
	}

	consolidated := Consolidate(items)
	if dropped > 0 || len(consolidated) != len(items) {
		s.log.WithFields(logrus.Fields{
			"dropped": dropped,
			"merged":  len(items) - len(consolidated),
		}).Warn("Cleaned malformed cart entries")
		if err := s.persistItems(ctx, consolidated); err != nil {
			return nil, err
		}
	}
	return consolidated, nil
}

func (s *Store) loadCoupon(ctx context.Context) *pricing.Coupon {
	key := s.key(kvstore.KeyCoupon)
	var c pricing.Coupon
	err := kvstore.GetJSON(ctx, s.kv, key, &c)
	if err == nil {
		if active, lookupErr := pricing.LookupCoupon(c.Code); lookupErr == nil {
			return &active
		}
		err = pricing.ErrInvalidCoupon
	}
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil
	}

	s.log.WithError(err).Warn("Discarding stored coupon")
	if delErr := s.kv.Delete(ctx, key); delErr != nil {
		s.log.WithError(delErr).Error("Failed to delete stored coupon")
	}
	return nil
}

// Items returns a copy of the current lines.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

// Count is the sum of quantities, shown in the cart badge.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return countOf(s.items)
}

// Coupon returns the active coupon or nil.
func (s *Store) Coupon() *pricing.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coupon == nil {
		return nil
	}
	c := *s.coupon
	return &c
}

// Locked reports whether a checkout holds the cart.
func (s *Store) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// Totals recomputes pricing from the current items and coupon.
func (s *Store) Totals() pricing.Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.Calculate(pricingLines(s.items), s.coupon)
}

// Snapshot returns items, coupon and totals from a single point in time.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var coupon *pricing.Coupon
	if s.coupon != nil {
		c := *s.coupon
		coupon = &c
	}
	return Snapshot{
		SessionID: s.sessionID,
		Items:     cloneItems(s.items),
		Count:     countOf(s.items),
		Coupon:    coupon,
		Totals:    pricing.Calculate(pricingLines(s.items), s.coupon),
		Locked:    s.locked,
	}
}

// AddItem adds quantity units of item, merging into an existing line with the
// same normalized id. A quantity below 1 counts as 1.
func (s *Store) AddItem(ctx context.Context, item LineItem, quantity int) error {
	if err := ValidateItem(item); err != nil {
		s.log.WithError(err).WithField("item_id", item.ID).Warn("Rejected cart item")
		return err
	}
	if quantity < 1 {
		quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := NormalizeID(item.ID)
	next := cloneItems(s.items)

	var added LineItem
	merged := false
	for i := range next {
		if NormalizeID(next[i].ID) == id {
			next[i].Quantity += quantity
			added = next[i]
			merged = true
			break
		}
	}
	if !merged {
		added = LineItem{
			ID:        id,
			ProductID: id,
			Name:      item.Name,
			Price:     item.Price,
			Image:     item.Image,
			Quantity:  quantity,
		}
		next = append(next, added)
	}

	if err := s.commitItems(ctx, next); err != nil {
		return err
	}
	s.emit(ctx, Event{Kind: EventItemAdded, Item: &added})
	return nil
}

// RemoveItem deletes the line at index. Out of range is a no-op.
func (s *Store) RemoveItem(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.items) {
		return nil
	}

	removed := s.items[index]
	next := make([]LineItem, 0, len(s.items)-1)
	next = append(next, s.items[:index]...)
	next = append(next, s.items[index+1:]...)

	if err := s.commitItems(ctx, next); err != nil {
		return err
	}
	s.emit(ctx, Event{Kind: EventItemRemoved, Item: &removed})
	return nil
}

// UpdateQuantity sets the quantity of the line at index, clamped to at least 1.
// Out of range is a no-op.
func (s *Store) UpdateQuantity(ctx context.Context, index, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.items) {
		return nil
	}
	if quantity < 1 {
		quantity = 1
	}

	next := cloneItems(s.items)
	next[index].Quantity = quantity

	if err := s.commitItems(ctx, next); err != nil {
		return err
	}
	updated := next[index]
	s.emit(ctx, Event{Kind: EventQuantityUpdated, Item: &updated})
	return nil
}

// Clear empties the cart. The coupon is left in place.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.commitItems(ctx, []LineItem{}); err != nil {
		return err
	}
	s.emit(ctx, Event{Kind: EventCleared})
	return nil
}

// ApplyCoupon activates code if it is on the allow-list. Applying the active
// code again changes nothing.
func (s *Store) ApplyCoupon(ctx context.Context, code string) (pricing.Coupon, error) {
	coupon, err := pricing.LookupCoupon(code)
	if err != nil {
		return pricing.Coupon{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.coupon != nil && s.coupon.Code == coupon.Code {
		return coupon, nil
	}
	if err := kvstore.SetJSON(ctx, s.kv, s.key(kvstore.KeyCoupon), coupon); err != nil {
		return pricing.Coupon{}, fmt.Errorf("failed to persist coupon: %w", err)
	}
	s.coupon = &coupon
	s.emit(ctx, Event{Kind: EventCouponApplied})
	return coupon, nil
}

// RemoveCoupon deactivates the current coupon, if any.
func (s *Store) RemoveCoupon(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.coupon == nil {
		return nil
	}
	if err := s.kv.Delete(ctx, s.key(kvstore.KeyCoupon)); err != nil {
		return fmt.Errorf("failed to remove coupon: %w", err)
	}
	s.coupon = nil
	s.emit(ctx, Event{Kind: EventCouponRemoved})
	return nil
}

// Lock marks the cart as held by an in-flight checkout.
func (s *Store) Lock(ctx context.Context) error {
	return s.setLocked(ctx, true)
}

// Unlock releases the checkout hold.
func (s *Store) Unlock(ctx context.Context) error {
	return s.setLocked(ctx, false)
}

func (s *Store) setLocked(ctx context.Context, locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.key(kvstore.KeyCartLocked)
	var err error
	if locked {
		err = s.kv.Set(ctx, key, "true")
	} else {
		err = s.kv.Delete(ctx, key)
	}
	if err != nil {
		return fmt.Errorf("failed to update cart lock: %w", err)
	}

	s.locked = locked
	kind := EventUnlocked
	if locked {
		kind = EventLocked
	}
	s.emit(ctx, Event{Kind: kind})
	return nil
}

// commitItems persists next and only then makes it current.
func (s *Store) commitItems(ctx context.Context, next []LineItem) error {
	if err := s.persistItems(ctx, next); err != nil {
		return err
	}
	s.items = next
	return nil
}

func (s *Store) persistItems(ctx context.Context, items []LineItem) error {
	stored := make([]LineItem, len(items))
	for i, item := range items {
		item.ProductID = item.ID
		stored[i] = item
	}
	if err := kvstore.SetJSON(ctx, s.kv, s.key(kvstore.KeyCart), stored); err != nil {
		return fmt.Errorf("failed to persist cart: %w", err)
	}
	return nil
}

func (s *Store) emit(ctx context.Context, e Event) {
	e.SessionID = s.sessionID
	e.Items = cloneItems(s.items)
	e.Locked = s.locked
	for _, l := range s.listeners {
		l(ctx, e)
	}
}

func (s *Store) key(name string) string {
	return s.keys.Session(s.sessionID, name)
}

func countOf(items []LineItem) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}
