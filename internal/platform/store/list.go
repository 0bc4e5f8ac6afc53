package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// GetList reads the sequence stored under key. A missing key, a value that
// is not a JSON sequence, or a parse failure all self-heal: the default is
// written back, the repair hook fires, and the default is returned. Read
// errors from the medium itself return the default without rewriting.
func GetList[T any](ctx context.Context, s *Store, key string, def []T) []T {
	raw, ok, err := s.GetRaw(ctx, key)
	if err != nil {
		s.logger.Warn("store: read failed, serving default", "key", key, "error", err)
		return def
	}
	if !ok {
		s.repair(ctx, key, marshalList(def), nil)
		return def
	}
	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.repair(ctx, key, marshalList(def), err)
		return def
	}
	if items == nil && raw != "[]" {
		// Stored value parsed but was not a sequence (e.g. "null").
		s.repair(ctx, key, marshalList(def), fmt.Errorf("value under %q is not a sequence", key))
		return def
	}
	return items
}

// SetList serializes items to JSON and persists them under key.
func SetList[T any](ctx context.Context, s *Store, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return &PersistenceError{Key: key, Err: err}
	}
	return s.SetRaw(ctx, key, string(payload))
}

// MarshalList is the serialized form SetList would persist, for callers that
// batch several collections into one SetManyRaw unit.
func MarshalList[T any](items []T) (string, error) {
	if items == nil {
		items = []T{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// GetInt reads a single integer key (e.g. a document counter), self-healing
// to def when absent or unparseable.
func (s *Store) GetInt(ctx context.Context, key string, def int64) int64 {
	raw, ok, err := s.GetRaw(ctx, key)
	if err != nil {
		s.logger.Warn("store: read failed, serving default", "key", key, "error", err)
		return def
	}
	if !ok {
		s.repair(ctx, key, strconv.FormatInt(def, 10), nil)
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.repair(ctx, key, strconv.FormatInt(def, 10), err)
		return def
	}
	return n
}

// SetInt persists a single integer key.
func (s *Store) SetInt(ctx context.Context, key string, n int64) error {
	return s.SetRaw(ctx, key, strconv.FormatInt(n, 10))
}

func marshalList[T any](items []T) string {
	if items == nil {
		items = []T{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(payload)
}
