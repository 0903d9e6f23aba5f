package credit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// AlertSink receives credit alerts. Emission is fire-and-forget: it
// runs after the triggering transaction commits and must never block
// or fail it.
type AlertSink interface {
	Emit(ctx context.Context, alert Alert)
}

// LogAlertSink writes alerts to the structured log.
type LogAlertSink struct {
	logger *slog.Logger
}

// NewLogAlertSink builds LogAlertSink.
func NewLogAlertSink(logger *slog.Logger) *LogAlertSink {
	return &LogAlertSink{logger: logger}
}

// Emit logs the alert.
func (s *LogAlertSink) Emit(_ context.Context, alert Alert) {
	s.logger.Warn("credit alert",
		slog.Int64("customer_id", alert.CustomerID),
		slog.String("kind", alert.Kind),
		slog.String("message", alert.Message))
}

// RedisAlertSink publishes alerts on a Redis channel for external
// consumers, falling back to the log on publish failure.
type RedisAlertSink struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisAlertSink builds RedisAlertSink.
func NewRedisAlertSink(client *redis.Client, channel string, logger *slog.Logger) *RedisAlertSink {
	return &RedisAlertSink{client: client, channel: channel, logger: logger}
}

// Emit publishes the alert as JSON.
func (s *RedisAlertSink) Emit(ctx context.Context, alert Alert) {
	payload, err := json.Marshal(alert)
	if err == nil {
		err = s.client.Publish(ctx, s.channel, payload).Err()
	}
	if err != nil {
		s.logger.Warn("credit alert publish failed",
			slog.Int64("customer_id", alert.CustomerID),
			slog.String("kind", alert.Kind),
			slog.Any("error", err))
	}
}
