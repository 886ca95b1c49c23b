// internal/domain/cart/service.go
package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vaarahi/storefront/internal/infrastructure/kvstore"
	"golang.org/x/sync/singleflight"
)

// OpenHook runs before a session's store is loaded for the first time.
type OpenHook func(ctx context.Context, sessionID string) error

// Service keeps one live Store per session.
type Service struct {
	kv   kvstore.Store
	keys kvstore.Keyspace
	log  logrus.FieldLogger

	mu         sync.Mutex
	stores     map[string]*entry
	sfg        singleflight.Group
	listeners  []Listener
	beforeOpen []OpenHook
}

type entry struct {
	store    *Store
	lastUsed time.Time
}

// NewService creates a new cart service
func NewService(kv kvstore.Store, keys kvstore.Keyspace, log logrus.FieldLogger) *Service {
	return &Service{
		kv:     kv,
		keys:   keys,
		log:    log.WithField("component", "cart"),
		stores: make(map[string]*entry),
	}
}

// Subscribe attaches l to every store opened from now on.
func (s *Service) Subscribe(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// BeforeOpen registers a hook that runs ahead of the initial load.
func (s *Service) BeforeOpen(h OpenHook) {
	s.mu.Lock()
	s.beforeOpen = append(s.beforeOpen, h)
	s.mu.Unlock()
}

// Open returns the live store for sessionID, loading it on first use.
// Concurrent first opens of one session share a single load.
func (s *Service) Open(ctx context.Context, sessionID string) (*Store, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID required for cart")
	}

	if st := s.lookup(sessionID); st != nil {
		return st, nil
	}

	v, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {
		if st := s.lookup(sessionID); st != nil {
			return st, nil
		}

		s.mu.Lock()
		hooks := append([]OpenHook(nil), s.beforeOpen...)
		listeners := append([]Listener(nil), s.listeners...)
		s.mu.Unlock()

		for _, h := range hooks {
			if err := h(ctx, sessionID); err != nil {
				s.log.WithError(err).WithField("session_id", sessionID).Warn("Cart open hook failed")
			}
		}

		st := NewStore(sessionID, s.kv, s.keys, s.log)
		if err := st.Load(ctx); err != nil {
			return nil, fmt.Errorf("failed to load cart: %w", err)
		}
		for _, l := range listeners {
			st.Subscribe(l)
		}

		s.mu.Lock()
		s.stores[sessionID] = &entry{store: st, lastUsed: time.Now()}
		s.mu.Unlock()
		return st, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Store), nil
}

// Reload makes a live store pick up changes written behind its back.
// Sessions without a live store are left alone; they load fresh on next Open.
func (s *Service) Reload(ctx context.Context, sessionID string) error {
	st := s.lookup(sessionID)
	if st == nil {
		return nil
	}
	return st.Reload(ctx)
}

// Sweep drops stores idle for longer than maxIdle and returns how many were dropped.
func (s *Service) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for id, e := range s.stores {
		if e.lastUsed.Before(cutoff) {
			delete(s.stores, id)
			dropped++
		}
	}
	return dropped
}

// Live returns the number of stores held in memory.
func (s *Service) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stores)
}

func (s *Service) lookup(sessionID string) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.stores[sessionID]
	if !ok {
		return nil
	}
	e.lastUsed = time.Now()
	return e.store
}
