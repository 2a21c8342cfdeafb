package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/bankapp/internal/cryptox"
	"github.com/redis/go-redis/v9"
)

// Each session is a hash: "data" holds the sealed session, "last_seen" and
// "expires_at" are unix nanoseconds kept outside the seal so Touch can move
// them without reading the payload.
const (
	fieldData      = "data"
	fieldLastSeen  = "last_seen"
	fieldExpiresAt = "expires_at"
)

// createScript replaces whatever was stored under the key.
var createScript = redis.NewScript(`
redis.call("DEL", KEYS[1])
redis.call("HSET", KEYS[1], "data", ARGV[1], "last_seen", ARGV[2], "expires_at", ARGV[3])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return 1
`)

// updateScript writes only when the key still exists.
var updateScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "data", ARGV[1], "last_seen", ARGV[2], "expires_at", ARGV[3])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return 1
`)

// touchScript moves the expiry of an existing key.
var touchScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "last_seen", ARGV[1], "expires_at", ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return 1
`)

// RedisStore keeps sessions in Redis, sealed with AES-GCM so the store never
// sees session contents in clear.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	key    []byte
}

// NewRedisStore builds a store writing keys "<prefix>:<id>". sealKey must be
// a valid AES key.
func NewRedisStore(client redis.UniversalClient, prefix string, sealKey []byte) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: strings.TrimSuffix(prefix, ":"),
		key:    sealKey,
	}
}

func (r *RedisStore) redisKey(id string) string {
	return fmt.Sprintf("%s:%s", r.prefix, id)
}

func ttlMillis(ttl time.Duration) int64 {
	if ms := ttl.Milliseconds(); ms > 0 {
		return ms
	}
	return 1
}

func parseNanos(v string) (time.Time, bool) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, n).UTC(), true
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	fields, err := r.client.HGetAll(ctx, r.redisKey(id)).Result()
	if err != nil {
		return nil, err
	}
	data, ok := fields[fieldData]
	if !ok {
		return nil, ErrNotFound
	}

	s := &Session{}
	if err := cryptox.OpenJSON([]byte(data), r.key, s); err != nil {
		// unreadable payloads (rotated secret) behave like a logout
		return nil, ErrNotFound
	}
	if t, ok := parseNanos(fields[fieldLastSeen]); ok {
		s.LastSeen = t
	}
	if t, ok := parseNanos(fields[fieldExpiresAt]); ok {
		s.ExpiresAt = t
	}
	s.ID = id
	return s, nil
}

func (r *RedisStore) write(ctx context.Context, script *redis.Script, s *Session, ttl time.Duration) (bool, error) {
	b, err := cryptox.SealJSON(s, r.key)
	if err != nil {
		return false, err
	}
	n, err := script.Run(ctx, r.client, []string{r.redisKey(s.ID)},
		b, s.LastSeen.UnixNano(), s.ExpiresAt.UnixNano(), ttlMillis(ttl)).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RedisStore) Create(ctx context.Context, s *Session, ttl time.Duration) error {
	_, err := r.write(ctx, createScript, s, ttl)
	return err
}

func (r *RedisStore) Update(ctx context.Context, s *Session, ttl time.Duration) error {
	ok, err := r.write(ctx, updateScript, s, ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (r *RedisStore) Touch(ctx context.Context, id string, now time.Time, ttl time.Duration) error {
	n, err := touchScript.Run(ctx, r.client, []string{r.redisKey(id)},
		now.UnixNano(), now.Add(ttl).UnixNano(), ttlMillis(ttl)).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.redisKey(id)).Err()
}
