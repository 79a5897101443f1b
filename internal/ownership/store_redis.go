package ownership

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	id "chimera/pkg/domain"
	"chimera/pkg/platform/sentinel"
)

const defaultKeyPrefix = "chimera"

// Each script keeps the owners hash and the per-holder sets in step. Every
// key a script touches arrives through KEYS and shares one hash tag, so the
// scripts stay within a single cluster slot.
var (
	createScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 0 then
	return 0
end
redis.call('SADD', KEYS[2], ARGV[1])
return 1`)

	burnScript = redis.NewScript(`
local owner = redis.call('HGET', KEYS[1], ARGV[1])
if not owner then
	return 0
end
if owner ~= ARGV[2] then
	return -1
end
redis.call('HDEL', KEYS[1], ARGV[1])
redis.call('SREM', KEYS[2], ARGV[1])
return 1`)

	transferScript = redis.NewScript(`
local owner = redis.call('HGET', KEYS[1], ARGV[1])
if not owner then
	return -1
end
if owner ~= ARGV[2] then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
redis.call('SREM', KEYS[2], ARGV[1])
redis.call('SADD', KEYS[3], ARGV[1])
return 1`)
)

// RedisStore keeps holders in a Redis hash so every registry instance sees
// the same ownership state.
type RedisStore struct {
	client         redis.UniversalClient
	ownersKey      string
	holdingsPrefix string
}

type RedisOption func(*RedisStore)

// WithKeyPrefix namespaces the hash and holding sets, e.g. per environment.
// "chimera" yields the keys {chimera}:owners and {chimera}:holdings:<addr>.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.setPrefix(prefix)
	}
}

func NewRedis(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client}
	s.setPrefix(defaultKeyPrefix)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) setPrefix(prefix string) {
	prefix = strings.Trim(prefix, ":")
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	tag := "{" + prefix + "}"
	s.ownersKey = tag + ":owners"
	s.holdingsPrefix = tag + ":holdings:"
}

func (s *RedisStore) OwnerOf(ctx context.Context, recordID id.RecordID) (id.Address, error) {
	owner, err := s.client.HGet(ctx, s.ownersKey, recordID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("owner of %s: %w", recordID, err)
	}
	return id.Address(owner), nil
}

func (s *RedisStore) Create(ctx context.Context, recordID id.RecordID, owner id.Address) error {
	created, err := createScript.Run(ctx, s.client,
		[]string{s.ownersKey, s.holdingsKey(owner)},
		recordID.String(), owner.String(),
	).Int()
	if err != nil {
		return fmt.Errorf("create owner of %s: %w", recordID, err)
	}
	if created == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

// Burn removes the record's holder. The holder is read first so the script
// can name its holdings set in KEYS; a holder that changes in between is
// reported as a conflict.
func (s *RedisStore) Burn(ctx context.Context, recordID id.RecordID) error {
	owner, err := s.OwnerOf(ctx, recordID)
	if err != nil {
		return err
	}
	burned, err := burnScript.Run(ctx, s.client,
		[]string{s.ownersKey, s.holdingsKey(owner)},
		recordID.String(), owner.String(),
	).Int()
	if err != nil {
		return fmt.Errorf("burn %s: %w", recordID, err)
	}
	switch burned {
	case 0:
		return sentinel.ErrNotFound
	case -1:
		return sentinel.ErrConflict
	}
	return nil
}

func (s *RedisStore) Transfer(ctx context.Context, recordID id.RecordID, from, to id.Address) error {
	result, err := transferScript.Run(ctx, s.client,
		[]string{s.ownersKey, s.holdingsKey(from), s.holdingsKey(to)},
		recordID.String(), from.String(), to.String(),
	).Int()
	if err != nil {
		return fmt.Errorf("transfer %s: %w", recordID, err)
	}
	switch result {
	case -1:
		return sentinel.ErrNotFound
	case 0:
		return sentinel.ErrInvalidState
	}
	return nil
}

// Holdings returns the ids held by owner, in no particular order.
func (s *RedisStore) Holdings(ctx context.Context, owner id.Address) ([]id.RecordID, error) {
	members, err := s.client.SMembers(ctx, s.holdingsKey(owner)).Result()
	if err != nil {
		return nil, fmt.Errorf("holdings of %s: %w", owner, err)
	}
	out := make([]id.RecordID, 0, len(members))
	for _, m := range members {
		n, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("holdings of %s: malformed member %q", owner, m)
		}
		out = append(out, id.RecordID(n))
	}
	return out, nil
}

func (s *RedisStore) holdingsKey(owner id.Address) string {
	return s.holdingsPrefix + owner.String()
}
