package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedService decorates a Service with a Redis cache over risk-status
// lookups. The remote admin API is rate limited, and a user re-submitting
// the same order id within a short window should not cost a second
// remote round trip. All other calls pass through untouched.
type CachedService struct {
	Service

	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedService wraps inner with a risk-status cache.
func NewCachedService(inner Service, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedService {
	return &CachedService{Service: inner, client: client, ttl: ttl, logger: logger}
}

func riskCacheKey(orderID string) string {
	return "commerce:risk:" + orderID
}

// OrderRiskAndFinancialStatus serves from cache when possible. Cache
// failures degrade to the remote lookup; they are never surfaced.
func (s *CachedService) OrderRiskAndFinancialStatus(ctx context.Context, orderID string) (*RiskStatus, error) {
	if s.client != nil {
		raw, err := s.client.Get(ctx, riskCacheKey(orderID)).Bytes()
		if err == nil {
			var cached RiskStatus
			if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
				return &cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("risk cache read failed", zap.String("order_id", orderID), zap.Error(err))
		}
	}

	status, err := s.Service.OrderRiskAndFinancialStatus(ctx, orderID)
	if err != nil || status == nil {
		return status, err
	}

	if s.client != nil {
		if raw, jsonErr := json.Marshal(status); jsonErr == nil {
			if err := s.client.Set(ctx, riskCacheKey(orderID), raw, s.ttl).Err(); err != nil {
				s.logger.Warn("risk cache write failed", zap.String("order_id", orderID), zap.Error(err))
			}
		}
	}
	return status, nil
}

// InvalidateRisk drops the cached entry, used after a local cancellation
// so the next lookup sees fresh state.
func (s *CachedService) InvalidateRisk(ctx context.Context, orderID string) {
	if s.client == nil {
		return
	}
	if err := s.client.Del(ctx, riskCacheKey(orderID)).Err(); err != nil {
		s.logger.Warn("risk cache invalidation failed", zap.String("order_id", orderID), zap.Error(err))
	}
}
