package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// Invalidator drops cached entitlement decisions of a provider.
type Invalidator interface {
	Invalidate(ctx context.Context, providerID string, features ...string) error
}

// SubscriptionChanged handles billing subscription changes by forgetting the provider's cached
// decisions for features. Malformed payloads are logged and skipped.
func SubscriptionChanged(logger *slog.Logger, cache Invalidator, features ...string) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			ProviderID string `json:"provider_id"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
			return nil
		}
		if payload.ProviderID == "" {
			logger.Error("missing required event fields", "topic", msg.Topic)
			return nil
		}
		if err := cache.Invalidate(ctx, payload.ProviderID, features...); err != nil {
			return err
		}
		logger.Info("entitlement cache invalidated", "provider_id", payload.ProviderID)
		return nil
	}
}
