package wishlist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vaarahi/storefront/internal/domain/cart"
	"github.com/vaarahi/storefront/internal/domain/pricing"
	"github.com/vaarahi/storefront/internal/infrastructure/kvstore"
	"github.com/vaarahi/storefront/internal/pkg/notify"
)

// Service handles wishlist business logic
type Service struct {
	kv       kvstore.Store
	keys     kvstore.Keyspace
	carts    *cart.Service
	notifier notify.Notifier
	log      logrus.FieldLogger
	now      func() time.Time

	mu sync.Mutex
}

// NewService creates a new wishlist service
func NewService(kv kvstore.Store, keys kvstore.Keyspace, carts *cart.Service, notifier notify.Notifier, log logrus.FieldLogger) *Service {
	return &Service{
		kv:       kv,
		keys:     keys,
		carts:    carts,
		notifier: notifier,
		log:      log.WithField("component", "wishlist"),
		now:      time.Now,
	}
}

// GetWishlist returns the saved items with a summary.
func (s *Service) GetWishlist(ctx context.Context, sessionID string) (*Response, error) {
	items, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &Response{
		Items:   items,
		Count:   len(items),
		Summary: s.summarize(items),
	}, nil
}

// AddToWishlist saves item unless a product with the same normalized id is
// already present.
func (s *Service) AddToWishlist(ctx context.Context, sessionID string, item Item) (*Item, error) {
	if err := cart.ValidateItem(cart.LineItem{ID: item.ID, Price: item.Price}); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	id := cart.NormalizeID(item.ID)
	for _, existing := range items {
		if cart.NormalizeID(existing.ID) == id {
			s.notify(sessionID, notify.Info(existing.Name+" is already in your wishlist."))
			return nil, ErrAlreadyInWishlist
		}
	}

	item.ID = id
	item.AddedAt = s.now().UTC()
	items = append(items, item)
	if err := s.save(ctx, sessionID, items); err != nil {
		return nil, err
	}

	s.notify(sessionID, notify.Success(item.Name+" added to wishlist!"))
	return &item, nil
}

// RemoveFromWishlist deletes the item at index.
func (s *Service) RemoveFromWishlist(ctx context.Context, sessionID string, index int) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(items) {
		return nil, ErrItemNotFound
	}

	removed := items[index]
	items = append(items[:index:index], items[index+1:]...)
	if err := s.save(ctx, sessionID, items); err != nil {
		return nil, err
	}

	s.notify(sessionID, notify.Info(removed.Name+" removed from wishlist."))
	return &removed, nil
}

// ClearWishlist removes all saved items.
func (s *Service) ClearWishlist(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, s.keys.Session(sessionID, kvstore.KeyWishlist)); err != nil {
		return fmt.Errorf("failed to clear wishlist: %w", err)
	}
	return nil
}

// GetWishlistCount returns the number of saved items.
func (s *Service) GetWishlistCount(ctx context.Context, sessionID string) (int, error) {
	items, err := s.load(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// IsInWishlist checks if a product is saved.
func (s *Service) IsInWishlist(ctx context.Context, sessionID, productID string) (bool, error) {
	items, err := s.load(ctx, sessionID)
	if err != nil {
		return false, err
	}
	id := cart.NormalizeID(productID)
	for _, item := range items {
		if cart.NormalizeID(item.ID) == id {
			return true, nil
		}
	}
	return false, nil
}

// MoveToCart adds the item at index to the cart and removes it from the
// wishlist. A locked cart leaves the wishlist untouched.
func (s *Service) MoveToCart(ctx context.Context, sessionID string, index, quantity int) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(items) {
		return nil, ErrItemNotFound
	}
	item := items[index]

	store, err := s.carts.Open(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to open cart: %w", err)
	}
	if store.Locked() {
		return nil, cart.ErrCartLocked
	}
	if err := store.AddItem(ctx, cart.LineItem{
		ID:    item.ID,
		Name:  item.Name,
		Price: item.Price,
		Image: item.Image,
	}, quantity); err != nil {
		return nil, fmt.Errorf("failed to move item to cart: %w", err)
	}

	items = append(items[:index:index], items[index+1:]...)
	if err := s.save(ctx, sessionID, items); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"item_id":    item.ID,
	}).Info("Moved wishlist item to cart")
	s.notify(sessionID, notify.Success(item.Name+" moved to cart!"))
	return &item, nil
}

func (s *Service) summarize(items []Item) Summary {
	total := decimal.Zero
	recent := 0
	weekAgo := s.now().AddDate(0, 0, -7)
	for _, item := range items {
		total = total.Add(decimal.NewFromFloat(item.Price))
		if item.AddedAt.After(weekAgo) {
			recent++
		}
	}

	average := decimal.Zero
	if len(items) > 0 {
		average = total.Div(decimal.NewFromInt(int64(len(items))))
	}
	return Summary{
		TotalItems:    len(items),
		TotalValue:    pricing.Format(total),
		AveragePrice:  pricing.Format(average),
		RecentlyAdded: recent,
	}
}

// load reads the list. Unreadable data is treated as an empty wishlist.
func (s *Service) load(ctx context.Context, sessionID string) ([]Item, error) {
	var items []Item
	err := kvstore.GetJSON(ctx, s.kv, s.keys.Session(sessionID, kvstore.KeyWishlist), &items)
	if errors.Is(err, kvstore.ErrNotFound) {
		return []Item{}, nil
	}
	var corrupt *kvstore.CorruptValueError
	if errors.As(err, &corrupt) {
		s.log.WithField("session_id", sessionID).WithError(err).Warn("Corrupt wishlist, starting over")
		return []Item{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load wishlist: %w", err)
	}
	return items, nil
}

func (s *Service) save(ctx context.Context, sessionID string, items []Item) error {
	if err := kvstore.SetJSON(ctx, s.kv, s.keys.Session(sessionID, kvstore.KeyWishlist), items); err != nil {
		return fmt.Errorf("failed to save wishlist: %w", err)
	}
	return nil
}

func (s *Service) notify(sessionID string, n notify.Notification) {
	if s.notifier != nil {
		s.notifier.Notify(sessionID, n)
	}
}
