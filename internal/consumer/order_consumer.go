// Package consumer tears carts down after checkout: when the order service
// publishes a placed order, the buyer's persisted cart is emptied so the
// next cart view starts clean.
package consumer

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/jaideep-27/spargen-project/internal/cache"
	"github.com/jaideep-27/spargen-project/internal/repository"
)

type OrderConsumer struct {
	repo   repository.CartRepository
	cache  cache.CartCache
	reader *kafka.Reader
	logger *zap.Logger
}

func NewOrderConsumer(repo repository.CartRepository, cartCache cache.CartCache, logger *zap.Logger, brokers ...string) *OrderConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    "orders-placed",
		GroupID:  "cart-service-consumer",
		MaxBytes: 10e6, // 10MB
	})
	return &OrderConsumer{
		repo:   repo,
		cache:  cartCache,
		reader: reader,
		logger: logger,
	}
}

func (c *OrderConsumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.consumeAndClearCart(ctx)
	}
}

func (c *OrderConsumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Warn("failed to close kafka reader", zap.Error(err))
	}
}

func (c *OrderConsumer) consumeAndClearCart(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("failed to read order event", zap.Error(err))
		}
		return
	}

	var payload struct {
		UserID  string `json:"user_id"`
		OrderID string `json:"order_id"`
	}
	if err := json.Unmarshal(m.Value, &payload); err != nil {
		c.logger.Warn("failed to parse order event", zap.Error(err))
		return
	}
	if payload.UserID == "" {
		c.logger.Warn("order event missing user_id")
		return
	}

	if _, err := c.repo.ClearCart(ctx, payload.UserID); err != nil {
		c.logger.Warn("failed to clear cart after order",
			zap.String("user_id", payload.UserID),
			zap.String("order_id", payload.OrderID),
			zap.Error(err))
		return
	}

	if err := c.cache.Delete(ctx, payload.UserID); err != nil {
		c.logger.Warn("failed to invalidate cart cache after order",
			zap.String("user_id", payload.UserID), zap.Error(err))
	}

	c.logger.Info("cart cleared after order",
		zap.String("user_id", payload.UserID),
		zap.String("order_id", payload.OrderID))
}
