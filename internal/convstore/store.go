// Package convstore keeps short-lived conversation state in Redis:
// disposable handlers, subscribed handlers, and namespaced custom data.
package convstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrDisabled = errors.New("convstore: store disabled")

type Registration struct {
	Handler string
	Events  []string
}

// Scope selects which identities a custom data key is bound to.
type Scope int

const (
	ScopeUser Scope = iota
	ScopeChat
	ScopeUserChat
)

type Store struct {
	log *slog.Logger
	rdb *redis.Client
}

// NewStore returns nil when client is nil; callers treat a nil store
// as the stateful-chat feature being disabled.
func NewStore(log *slog.Logger, client *redis.Client) *Store {
	if client == nil {
		return nil
	}
	return &Store{
		log: log.With(slog.String("service", "convstore")),
		rdb: client,
	}
}

func (s *Store) Enabled() bool { return s != nil }

func baseKey(userID, chatID int64) string {
	return fmt.Sprintf("stateful_chat:user:%d:chat:%d", userID, chatID)
}

func disposableNameKey(userID, chatID int64) string {
	return baseKey(userID, chatID) + ":disposable_handler:name"
}

func disposableEventsKey(userID, chatID int64) string {
	return baseKey(userID, chatID) + ":disposable_handler:events"
}

func subscribedIndexKey(userID, chatID int64) string {
	return baseKey(userID, chatID) + ":subscribed_handlers"
}

func subscribedEventsKey(userID, chatID int64, handler string) string {
	return fmt.Sprintf("%s:subscribed_handler:%s:events", baseKey(userID, chatID), handler)
}

func dataKey(scope Scope, userID, chatID int64, key string) string {
	switch scope {
	case ScopeUser:
		return fmt.Sprintf("stateful_chat:user:%d:data:%s", userID, key)
	case ScopeChat:
		return fmt.Sprintf("stateful_chat:chat:%d:data:%s", chatID, key)
	default:
		return baseKey(userID, chatID) + ":data:" + key
	}
}

// SetDisposable replaces any existing disposable registration for
// (user, chat). The old event set is deleted, not merged into.
func (s *Store) SetDisposable(ctx context.Context, userID, chatID int64, handler string, events []string, ttl time.Duration) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	if len(events) == 0 {
		return errors.New("convstore: disposable handler needs at least one event")
	}
	nameKey := disposableNameKey(userID, chatID)
	eventsKey := disposableEventsKey(userID, chatID)

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, nameKey, handler, ttl)
	pipe.Del(ctx, eventsKey)
	pipe.SAdd(ctx, eventsKey, toAny(events)...)
	if ttl > 0 {
		pipe.Expire(ctx, eventsKey, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set disposable handler: %w", err)
	}
	return nil
}

func (s *Store) GetDisposable(ctx context.Context, userID, chatID int64) (Registration, bool, error) {
	if !s.Enabled() {
		return Registration{}, false, ErrDisabled
	}
	handler, err := s.rdb.Get(ctx, disposableNameKey(userID, chatID)).Result()
	if errors.Is(err, redis.Nil) {
		return Registration{}, false, nil
	}
	if err != nil {
		return Registration{}, false, fmt.Errorf("get disposable handler: %w", err)
	}
	events, err := s.rdb.SMembers(ctx, disposableEventsKey(userID, chatID)).Result()
	if err != nil {
		return Registration{}, false, fmt.Errorf("get disposable events: %w", err)
	}
	return Registration{Handler: handler, Events: events}, true, nil
}

func (s *Store) ClearDisposable(ctx context.Context, userID, chatID int64) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, disposableNameKey(userID, chatID))
	pipe.Del(ctx, disposableEventsKey(userID, chatID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("clear disposable handler: %w", err)
	}
	return nil
}

// Subscribe registers handler for every matching event in (user, chat).
// Re-subscribing replaces the previous event set.
func (s *Store) Subscribe(ctx context.Context, userID, chatID int64, handler string, events []string, ttl time.Duration) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	if len(events) == 0 {
		return errors.New("convstore: subscribed handler needs at least one event")
	}
	eventsKey := subscribedEventsKey(userID, chatID, handler)

	pipe := s.rdb.TxPipeline()
	pipe.SAdd(ctx, subscribedIndexKey(userID, chatID), handler)
	pipe.Del(ctx, eventsKey)
	pipe.SAdd(ctx, eventsKey, toAny(events)...)
	if ttl > 0 {
		pipe.Expire(ctx, eventsKey, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("subscribe handler: %w", err)
	}
	return nil
}

func (s *Store) Unsubscribe(ctx context.Context, userID, chatID int64, handler string) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	pipe := s.rdb.TxPipeline()
	pipe.SRem(ctx, subscribedIndexKey(userID, chatID), handler)
	pipe.Del(ctx, subscribedEventsKey(userID, chatID, handler))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("unsubscribe handler: %w", err)
	}
	return nil
}

// ListSubscribed returns the live subscribed registrations. An index
// entry whose event set expired is already unsubscribed; it is removed
// here and omitted from the result. Order is not significant.
func (s *Store) ListSubscribed(ctx context.Context, userID, chatID int64) ([]Registration, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	indexKey := subscribedIndexKey(userID, chatID)
	handlers, err := s.rdb.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list subscribed handlers: %w", err)
	}

	var out []Registration
	for _, handler := range handlers {
		events, err := s.rdb.SMembers(ctx, subscribedEventsKey(userID, chatID, handler)).Result()
		if err != nil {
			return nil, fmt.Errorf("get subscribed events: %w", err)
		}
		if len(events) == 0 {
			pipe := s.rdb.TxPipeline()
			pipe.SRem(ctx, indexKey, handler)
			pipe.Del(ctx, subscribedEventsKey(userID, chatID, handler))
			if _, err := pipe.Exec(ctx); err != nil {
				s.log.Warn("gc of dangling subscription failed",
					slog.String("handler", handler), slog.Any("error", err))
			}
			continue
		}
		out = append(out, Registration{Handler: handler, Events: events})
	}
	return out, nil
}

func (s *Store) SetData(ctx context.Context, scope Scope, userID, chatID int64, key, value string, ttl time.Duration) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	if err := s.rdb.Set(ctx, dataKey(scope, userID, chatID, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("set data %q: %w", key, err)
	}
	return nil
}

func (s *Store) GetData(ctx context.Context, scope Scope, userID, chatID int64, key string) (string, bool, error) {
	if !s.Enabled() {
		return "", false, ErrDisabled
	}
	value, err := s.rdb.Get(ctx, dataKey(scope, userID, chatID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get data %q: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) DeleteData(ctx context.Context, scope Scope, userID, chatID int64, key string) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	if err := s.rdb.Del(ctx, dataKey(scope, userID, chatID, key)).Err(); err != nil {
		return fmt.Errorf("delete data %q: %w", key, err)
	}
	return nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
