// ABOUTME: Order history with a session-scoped cache
// ABOUTME: Shares concurrent fetches and drops cached lists on every session change

package orders

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/markalston/storefront-client/internal/cache"
	"github.com/markalston/storefront-client/internal/gateway"
	"github.com/markalston/storefront-client/internal/models"
	"github.com/markalston/storefront-client/internal/session"
)

// DefaultTTL is how long a fetched order list is served from memory
const DefaultTTL = 30 * time.Second

// Service lists and cancels the current user's orders.
// Cache keys carry the session generation, so a list fetched under one
// session is never served under another.
type Service struct {
	cache   *cache.Cache[[]models.Order]
	sfGroup singleflight.Group

	mu     sync.Mutex
	gen    uint64
	client *gateway.Client
	userID int64
}

// New creates a service with the given cache lifetime
func New(ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{cache: cache.New[[]models.Order](ttl)}
}

// Close stops the cache sweep
func (s *Service) Close() {
	s.cache.Close()
}

// SessionChanged implements session.Listener
func (s *Service) SessionChanged(_ context.Context, ev session.Event) {
	s.mu.Lock()
	s.gen++
	s.client = ev.Client
	s.userID = 0
	if ev.Identity != nil {
		s.userID = ev.Identity.ID
	}
	s.mu.Unlock()

	s.cache.Flush()
	slog.Debug("Order cache flushed", "event", ev.Kind)
}

// List returns the user's orders, newest first as the server sends them.
// A fetch that completes after the session changed is handed back to its
// caller but not cached.
func (s *Service) List(ctx context.Context) ([]models.Order, error) {
	gen, client, userID := s.current()
	if userID == 0 || client == nil {
		return nil, session.ErrNotAuthenticated
	}

	key := cacheKey(gen, userID)
	if orders, ok := s.cache.Get(key); ok {
		return append([]models.Order(nil), orders...), nil
	}

	v, err, shared := s.sfGroup.Do(key, func() (interface{}, error) {
		orders, err := client.Orders(ctx, userID)
		if err != nil {
			return nil, err
		}
		if g, _, _ := s.current(); g == gen {
			s.cache.Set(key, orders)
		} else {
			slog.Debug("Session changed during order fetch; not caching", "user_id", userID)
		}
		return orders, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("Order fetch shared", "user_id", userID)
	}
	return append([]models.Order(nil), v.([]models.Order)...), nil
}

// Cancel cancels an order and forgets the cached list
func (s *Service) Cancel(ctx context.Context, orderID int64) (models.Order, error) {
	gen, client, userID := s.current()
	if userID == 0 || client == nil {
		return models.Order{}, session.ErrNotAuthenticated
	}

	order, err := client.CancelOrder(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}
	s.cache.Clear(cacheKey(gen, userID))
	slog.Info("Order cancelled", "order_id", orderID)
	return order, nil
}

// Invalidate forgets the cached list for the current session
func (s *Service) Invalidate() {
	gen, _, userID := s.current()
	s.cache.Clear(cacheKey(gen, userID))
}

func (s *Service) current() (uint64, *gateway.Client, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen, s.client, s.userID
}

func cacheKey(gen uint64, userID int64) string {
	return fmt.Sprintf("%d:%d", gen, userID)
}
