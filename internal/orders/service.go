package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"measurehub_backend/platform/logger"
)

const cacheKeyPrefix = "orders:order:"

// Service is a read-through cache in front of the order client. Cache
// failures degrade to direct lookups; they never fail a request.
type Service struct {
	client *Client
	cache  *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewService creates the order service. cache may be nil to disable caching.
func NewService(client *Client, cache *redis.Client, ttl time.Duration, log *logger.Logger) *Service {
	return &Service{client: client, cache: cache, ttl: ttl, log: log}
}

// GetOrder returns the order for a code, consulting the cache first. An
// unknown code and an unconfigured client both yield (nil, nil).
func (s *Service) GetOrder(ctx context.Context, code string) (*Order, error) {
	if code == "" || s.client == nil {
		return nil, nil
	}

	key := cacheKeyPrefix + code
	if cached, ok := s.cacheGet(ctx, key); ok {
		return cached, nil
	}

	order, err := s.client.GetOrder(ctx, code)
	if err != nil {
		return nil, err
	}
	if order != nil {
		s.cacheSet(ctx, key, order)
	}
	return order, nil
}

func (s *Service) cacheGet(ctx context.Context, key string) (*Order, bool) {
	if s.cache == nil {
		return nil, false
	}

	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.log.Warn("order cache read failed", "key", key, "error", err.Error())
		}
		return nil, false
	}

	var order Order
	if err := json.Unmarshal(raw, &order); err != nil {
		s.log.Warn("order cache entry corrupt, dropping", "key", key)
		s.cache.Del(ctx, key)
		return nil, false
	}
	return &order, true
}

func (s *Service) cacheSet(ctx context.Context, key string, order *Order) {
	if s.cache == nil {
		return
	}

	raw, err := json.Marshal(order)
	if err != nil {
		s.log.Warn("order cache encode failed", "key", key, "error", err.Error())
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		s.log.Warn("order cache write failed", "key", key, "error", err.Error())
	}
}
