package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KindOrphanAccount is sent when a provider account was created but the
	// local grant could not be committed.
	KindOrphanAccount = "orphan_account"
	// KindBanDivergence is sent when the provider and local ban state disagree.
	KindBanDivergence = "ban_divergence"
	// KindAutoBan is sent when an account is banned because its owner left the group.
	KindAutoBan = "auto_ban"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
	Fields      map[string]string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger. Orphaned accounts and ban
// divergence are logged at error level, everything else at warn.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	attrs := []any{"kind", message.Kind, "destination", message.Destination, "body", message.Body}
	for k, v := range message.Fields {
		attrs = append(attrs, k, v)
	}
	level := slog.LevelWarn
	switch message.Kind {
	case KindOrphanAccount, KindBanDivergence:
		level = slog.LevelError
	}
	n.logger.Log(ctx, level, "notification", attrs...)
	return nil
}

// DefaultStream is the Redis stream the chat gateway reads operator alerts from.
const DefaultStream = "embygate:notifications"

// RedisNotifier appends notifications to a capped Redis stream.
type RedisNotifier struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

// NewRedisNotifier builds a stream notifier. An empty stream uses DefaultStream.
func NewRedisNotifier(client redis.Cmdable, stream string) *RedisNotifier {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisNotifier{client: client, stream: stream, maxLen: 10000}
}

// Send XADDs the message.
func (n *RedisNotifier) Send(ctx context.Context, message Message) error {
	values := map[string]any{
		"kind":        message.Kind,
		"destination": message.Destination,
		"body":        message.Body,
		"at":          time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range message.Fields {
		values["field:"+k] = v
	}
	err := n.client.XAdd(ctx, &redis.XAddArgs{Stream: n.stream, MaxLen: n.maxLen, Values: values}).Err()
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Multi fans a message out to every notifier and joins their errors.
type Multi []Notifier

// Send delivers to all notifiers even when some fail.
func (m Multi) Send(ctx context.Context, message Message) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
