// Package script holds the server-side scripts executed against Valkey.
package script

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/valkey-io/valkey-go"
	"golang.org/x/sync/singleflight"
)

// compareAndUpdateSource sets a hash field when it is absent or when the new
// value beats the stored one under the requested comparator. Returns 1 when the
// field was written and 0 otherwise.
const compareAndUpdateSource = `
local key = KEYS[1]
local field = ARGV[1]
local value = ARGV[2]
local op = ARGV[3]
local current = redis.call('hget', key, field)
if not current then
  redis.call('hset', key, field, value)
  return 1
end
if op == '>' then
  if tonumber(value) > tonumber(current) then
    redis.call('hset', key, field, value)
    return 1
  end
elseif op == '<' then
  if tonumber(value) < tonumber(current) then
    redis.call('hset', key, field, value)
    return 1
  end
end
return 0
`

// Comparator selects the direction of the ratchet.
type Comparator string

const (
	// Greater keeps the maximum value seen.
	Greater Comparator = ">"
	// Less keeps the minimum value seen.
	Less Comparator = "<"
)

// Valid reports whether the comparator is understood by the script.
func (c Comparator) Valid() bool {
	return c == Greater || c == Less
}

// CompareAndUpdate runs the conditional hash update atomically on the server.
// The script identifier is resolved on first use and reused afterwards.
type CompareAndUpdate struct {
	client valkey.Client
	group  singleflight.Group

	mu  sync.RWMutex
	sha string
}

// NewCompareAndUpdate binds the script to a client.
func NewCompareAndUpdate(client valkey.Client) *CompareAndUpdate {
	return &CompareAndUpdate{client: client}
}

// SHA returns the script identifier, registering the script when needed.
func (s *CompareAndUpdate) SHA(ctx context.Context) (string, error) {
	s.mu.RLock()
	sha := s.sha
	s.mu.RUnlock()
	if sha != "" {
		return sha, nil
	}
	return s.register(ctx)
}

// Reload registers the script again after the server dropped it. The
// identifier is a digest of the source so the cached value stays valid.
func (s *CompareAndUpdate) Reload(ctx context.Context) error {
	_, err := s.register(ctx)
	return err
}

func (s *CompareAndUpdate) register(ctx context.Context) (string, error) {
	v, err, _ := s.group.Do("load", func() (any, error) {
		sha, err := s.client.Do(ctx, s.client.B().ScriptLoad().Script(compareAndUpdateSource).Build()).ToString()
		if err != nil {
			return "", fmt.Errorf("load compare-and-update script: %w", err)
		}
		s.mu.Lock()
		if s.sha == "" {
			s.sha = sha
		}
		s.mu.Unlock()
		return sha, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Command builds one script invocation so callers can batch it with other
// commands. The sha must come from SHA.
func (s *CompareAndUpdate) Command(sha, key, field string, value float64, cmp Comparator) valkey.Completed {
	return s.client.B().Evalsha().Sha1(sha).Numkeys(1).Key(key).
		Arg(field, strconv.FormatFloat(value, 'f', -1, 64), string(cmp)).
		Build()
}

// UpdateIfComparedTo writes value into field when the field is absent or when
// value compares favourably with the stored number. It reports whether the
// field was written.
func (s *CompareAndUpdate) UpdateIfComparedTo(ctx context.Context, key, field string, value float64, cmp Comparator) (bool, error) {
	if !cmp.Valid() {
		return false, fmt.Errorf("unsupported comparator %q", cmp)
	}
	sha, err := s.SHA(ctx)
	if err != nil {
		return false, err
	}
	updated, err := s.invoke(ctx, sha, key, field, value, cmp)
	if IsNoScript(err) {
		if err := s.Reload(ctx); err != nil {
			return false, err
		}
		updated, err = s.invoke(ctx, sha, key, field, value, cmp)
	}
	return updated, err
}

// UpdateIfGreater is UpdateIfComparedTo with Greater.
func (s *CompareAndUpdate) UpdateIfGreater(ctx context.Context, key, field string, value float64) (bool, error) {
	return s.UpdateIfComparedTo(ctx, key, field, value, Greater)
}

// UpdateIfLess is UpdateIfComparedTo with Less.
func (s *CompareAndUpdate) UpdateIfLess(ctx context.Context, key, field string, value float64) (bool, error) {
	return s.UpdateIfComparedTo(ctx, key, field, value, Less)
}

func (s *CompareAndUpdate) invoke(ctx context.Context, sha, key, field string, value float64, cmp Comparator) (bool, error) {
	n, err := s.client.Do(ctx, s.Command(sha, key, field, value, cmp)).AsInt64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// IsNoScript reports whether the server no longer knows the script.
func IsNoScript(err error) bool {
	if verr, ok := valkey.IsValkeyErr(err); ok {
		return verr.IsNoScript()
	}
	return false
}
