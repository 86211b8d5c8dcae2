package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store against a real Redis server via
// redis/go-redis/v9, the client the teacher repo already depended on.
type RedisStore struct {
	client *redis.Client
}

// Options configures the underlying connection pool.
type Options struct {
	URL          string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
}

// NewRedisStore parses a redis:// URL and layers the configured pool
// settings on top, the way the teacher's database connectors apply
// pool tuning after parsing a DSN.
func NewRedisStore(ctx context.Context, opts Options) (*RedisStore, error) {
	parsed, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("store: parse redis url: %w", err)
	}

	if opts.Password != "" {
		parsed.Password = opts.Password
	}
	if opts.DB != 0 {
		parsed.DB = opts.DB
	}
	if opts.PoolSize > 0 {
		parsed.PoolSize = opts.PoolSize
	}
	if opts.MinIdleConns > 0 {
		parsed.MinIdleConns = opts.MinIdleConns
	}
	if opts.MaxRetries > 0 {
		parsed.MaxRetries = opts.MaxRetries
	}

	client := redis.NewClient(parsed)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("store: ping redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) HashSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return s.client.HSet(ctx, key, toAnyMap(fields)).Err()
}

func (s *RedisStore) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.client.HGetAll(ctx, key).Result()
}

func (s *RedisStore) HashGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := s.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) HashIncrByFloat(ctx context.Context, key, field string, amount float64) (float64, error) {
	return s.client.HIncrByFloat(ctx, key, field, amount).Result()
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}

func (s *RedisStore) ListPushLeft(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	return s.client.LPush(ctx, key, toAnySlice(values)...).Err()
}

func (s *RedisStore) ListLen(ctx context.Context, key string) (int64, error) {
	return s.client.LLen(ctx, key).Result()
}

func (s *RedisStore) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return s.client.LRange(ctx, key, start, stop).Result()
}

func (s *RedisStore) BlockingPopLeft(ctx context.Context, timeout time.Duration, keys ...string) (string, string, bool, error) {
	res, err := s.client.BLPop(ctx, timeout, keys...).Result()
	if errors.Is(err, redis.Nil) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}
	if len(res) != 2 {
		return "", "", false, fmt.Errorf("store: unexpected BLPOP reply length %d", len(res))
	}
	return res[0], res[1], true, nil
}

func (s *RedisStore) SortedSetAdd(ctx context.Context, key string, members ...ZMember) error {
	if len(members) == 0 {
		return nil
	}
	zs := make([]redis.Z, len(members))
	for i, m := range members {
		zs[i] = redis.Z{Score: m.Score, Member: m.Member}
	}
	return s.client.ZAdd(ctx, key, zs...).Err()
}

func (s *RedisStore) SortedSetRangeByScore(ctx context.Context, key string, min, max float64, limit int64) ([]string, error) {
	return s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   formatScore(min),
		Max:   formatScore(max),
		Count: limit,
	}).Result()
}

func (s *RedisStore) SortedSetRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return s.client.ZRem(ctx, key, toAnySlice(members)...).Err()
}

func (s *RedisStore) SortedSetCard(ctx context.Context, key string) (int64, error) {
	return s.client.ZCard(ctx, key).Result()
}

func (s *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	return s.client.Keys(ctx, pattern).Result()
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

func (s *RedisStore) Publish(ctx context.Context, channel, message string) error {
	return s.client.Publish(ctx, channel, message).Err()
}

// Subscribe opens a Redis Pub/Sub subscription and translates it into
// a Subscription, decoupling callers from go-redis's own *PubSub type.
func (s *RedisStore) Subscribe(ctx context.Context, channel string) Subscription {
	ps := s.client.Subscribe(ctx, channel)
	out := make(chan string, 64)
	go func() {
		defer close(out)
		redisCh := ps.Channel()
		for msg := range redisCh {
			select {
			case out <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return &redisSubscription{ps: ps, c: out}
}

type redisSubscription struct {
	ps *redis.PubSub
	c  chan string
}

func (r *redisSubscription) C() <-chan string { return r.c }
func (r *redisSubscription) Close() error     { return r.ps.Close() }

func (s *RedisStore) Pipeline(ctx context.Context, fn func(p Pipeliner)) error {
	pipe := s.client.Pipeline()
	fn(&redisPipeliner{pipe: pipe})
	_, err := pipe.Exec(ctx)
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

type redisPipeliner struct {
	pipe redis.Pipeliner
}

func (p *redisPipeliner) ListPushLeft(key string, values ...string) {
	if len(values) == 0 {
		return
	}
	p.pipe.LPush(context.Background(), key, toAnySlice(values)...)
}

func (p *redisPipeliner) SortedSetAdd(key string, members ...ZMember) {
	zs := make([]redis.Z, len(members))
	for i, m := range members {
		zs[i] = redis.Z{Score: m.Score, Member: m.Member}
	}
	p.pipe.ZAdd(context.Background(), key, zs...)
}

func (p *redisPipeliner) SortedSetRem(key string, members ...string) {
	if len(members) == 0 {
		return
	}
	p.pipe.ZRem(context.Background(), key, toAnySlice(members)...)
}

func (p *redisPipeliner) HashSet(key string, fields map[string]string) {
	if len(fields) == 0 {
		return
	}
	p.pipe.HSet(context.Background(), key, toAnyMap(fields))
}

func (p *redisPipeliner) HashIncrByFloat(key, field string, amount float64) {
	p.pipe.HIncrByFloat(context.Background(), key, field, amount)
}

func toAnySlice(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func toAnyMap(fields map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func formatScore(f float64) string {
	if f == 0 {
		return "0"
	}
	return fmt.Sprintf("%f", f)
}
