package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// GetJSON decodes the JSON value at key into dst. found is false when the key is absent.
func GetJSON(ctx context.Context, s Store, key string, dst any) (found bool, err error) {
	raw, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v as JSON and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

// AddCounter adds delta to the decimal counter at key. Stores implementing
// Incrementer do so atomically; others fall back to read-modify-write.
func AddCounter(ctx context.Context, s Store, key string, delta int64) (int64, error) {
	if inc, ok := s.(Incrementer); ok {
		return inc.IncrBy(ctx, key, delta)
	}
	raw, _, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	cur, _ := ParseCounter(raw)
	cur += delta
	if err := s.Set(ctx, key, []byte(strconv.FormatInt(cur, 10))); err != nil {
		return 0, err
	}
	return cur, nil
}

// ParseCounter parses a stored counter. JSON numbers with a fractional part are truncated.
func ParseCounter(raw []byte) (int64, error) {
	if v, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("counter %q: %w", raw, err)
	}
	return int64(f), nil
}
