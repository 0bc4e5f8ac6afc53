package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// ErrQuotaExceeded indicates a write would exceed the modelled storage quota.
var ErrQuotaExceeded = errors.New("store: quota exceeded")

// ChangeChannel is the pub/sub channel carrying change notifications for
// every mutating write, so other processes sharing the same storage can
// resynchronize their in-memory views.
const ChangeChannel = "tillworks.changes"

// DefaultQuotaBytes models the 5 MiB quota browsers commonly grant to
// local storage. It is configurable because real platform quotas vary.
const DefaultQuotaBytes int64 = 5 * 1024 * 1024

// ChangeEvent describes a single key mutation.
type ChangeEvent struct {
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Removed bool   `json:"removed,omitempty"`
}

// PersistenceError reports a failed storage write. Callers must not assume
// state changed when they receive one.
type PersistenceError struct {
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: write %q: %v", e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// StorageInfo is a usage estimate over the key space. It sums key and value
// byte lengths against the configured quota; it is not an authoritative
// platform quota query.
type StorageInfo struct {
	UsedBytes      int64   `json:"usedBytes"`
	TotalBytes     int64   `json:"totalBytes"`
	AvailableBytes int64   `json:"availableBytes"`
	UsedPercent    float64 `json:"usedPercent"`
}

// Config groups optional Store settings.
type Config struct {
	// QuotaBytes caps the modelled storage size; zero means DefaultQuotaBytes.
	QuotaBytes int64
	// OnRepair is invoked whenever a self-healing read rewrites a key,
	// so callers can observe corruption recovery.
	OnRepair func(key string, cause error)
}

// Store is a thin adapter over a shared key-value medium: typed get/set with
// JSON serialization, default-value self-healing on read, and a change
// broadcast on every write.
type Store struct {
	client   *redis.Client
	logger   *slog.Logger
	quota    int64
	onRepair func(key string, cause error)
}

// New wires a Store over the given client.
func New(client *redis.Client, logger *slog.Logger, cfg Config) *Store {
	quota := cfg.QuotaBytes
	if quota <= 0 {
		quota = DefaultQuotaBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, logger: logger, quota: quota, onRepair: cfg.OnRepair}
}

// GetRaw returns the stored text for key. The second result is false when
// the key is absent.
func (s *Store) GetRaw(ctx context.Context, key string) (string, bool, error) {
	raw, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: read %q: %w", key, err)
	}
	return raw, true, nil
}

// SetRaw persists value under key and broadcasts the change.
func (s *Store) SetRaw(ctx context.Context, key, value string) error {
	if err := s.checkQuota(ctx, map[string]string{key: value}); err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return &PersistenceError{Key: key, Err: err}
	}
	s.broadcast(ctx, ChangeEvent{Key: key, Value: value})
	return nil
}

// SetManyRaw persists several keys as a single logical unit and broadcasts
// one change per key once the pipeline has committed.
func (s *Store) SetManyRaw(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	if err := s.checkQuota(ctx, values); err != nil {
		return err
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, value := range values {
			pipe.Set(ctx, key, value, 0)
		}
		return nil
	})
	if err != nil {
		return &PersistenceError{Key: firstKey(values), Err: err}
	}
	for key, value := range values {
		s.broadcast(ctx, ChangeEvent{Key: key, Value: value})
	}
	return nil
}

// Remove deletes key and broadcasts a notification with no new value.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return &PersistenceError{Key: key, Err: err}
	}
	s.broadcast(ctx, ChangeEvent{Key: key, Removed: true})
	return nil
}

// Subscribe starts listening for change notifications. Messages published by
// this same process are delivered too; reloads triggered by them must be
// idempotent. The returned func stops the subscription.
func (s *Store) Subscribe(ctx context.Context) (<-chan ChangeEvent, func()) {
	sub := s.client.Subscribe(ctx, ChangeChannel)
	out := make(chan ChangeEvent, 16)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var ev ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				s.logger.Warn("store: dropping malformed change event", slog.Any("error", err))
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, func() { _ = sub.Close() }
}

// Keys lists every stored key.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, "*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("store: scan keys: %w", err)
	}
	return keys, nil
}

// UsedBytes estimates current usage as the sum of key and value lengths.
func (s *Store) UsedBytes(ctx context.Context) (int64, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return 0, err
	}
	var used int64
	for _, key := range keys {
		size, err := s.client.StrLen(ctx, key).Result()
		if err != nil && err != redis.Nil {
			return 0, fmt.Errorf("store: size %q: %w", key, err)
		}
		used += int64(len(key)) + size
	}
	return used, nil
}

// Info reports the usage estimate against the configured quota.
func (s *Store) Info(ctx context.Context) (StorageInfo, error) {
	used, err := s.UsedBytes(ctx)
	if err != nil {
		return StorageInfo{}, err
	}
	info := StorageInfo{
		UsedBytes:      used,
		TotalBytes:     s.quota,
		AvailableBytes: s.quota - used,
	}
	if info.AvailableBytes < 0 {
		info.AvailableBytes = 0
	}
	if s.quota > 0 {
		info.UsedPercent = float64(used) / float64(s.quota) * 100
	}
	return info, nil
}

func (s *Store) checkQuota(ctx context.Context, pending map[string]string) error {
	used, err := s.UsedBytes(ctx)
	if err != nil {
		// The quota model is advisory; an unreadable key space should not
		// block writes.
		s.logger.Warn("store: quota estimate unavailable", slog.Any("error", err))
		return nil
	}
	projected := used
	for key, value := range pending {
		current, err := s.client.StrLen(ctx, key).Result()
		if err != nil && err != redis.Nil {
			current = 0
		}
		exists, _ := s.client.Exists(ctx, key).Result()
		if exists == 0 {
			projected += int64(len(key))
		}
		projected += int64(len(value)) - current
	}
	if projected > s.quota {
		return &PersistenceError{Key: firstKey(pending), Err: ErrQuotaExceeded}
	}
	return nil
}

func (s *Store) broadcast(ctx context.Context, ev ChangeEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Warn("store: encode change event", slog.String("key", ev.Key), slog.Any("error", err))
		return
	}
	if err := s.client.Publish(ctx, ChangeChannel, payload).Err(); err != nil {
		// Notification delivery is best effort; the write itself succeeded.
		s.logger.Warn("store: broadcast change", slog.String("key", ev.Key), slog.Any("error", err))
	}
}

func (s *Store) repair(ctx context.Context, key, value string, cause error) {
	s.logger.Warn("store: self-healing corrupt or missing key",
		slog.String("key", key), slog.Any("cause", cause))
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		s.logger.Warn("store: self-heal write failed", slog.String("key", key), slog.Any("error", err))
		return
	}
	s.broadcast(ctx, ChangeEvent{Key: key, Value: value})
	if s.onRepair != nil {
		s.onRepair(key, cause)
	}
}

func firstKey(m map[string]string) string {
	for k := range m {
		return k
	}
	return ""
}
