package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Fake is an in-memory Store used by the queue, worker, and metrics test
// suites so they exercise real Store semantics without a live Redis.
type Fake struct {
	mu      sync.Mutex
	hashes  map[string]map[string]string
	lists   map[string][]string // left-to-right, index 0 is the head pushed most recently via LPUSH semantics below
	zsets   map[string]map[string]float64
	counter map[string]int64
	subs    map[string][]chan string

	popSignal chan struct{}
}

// NewFake constructs an empty fake store.
func NewFake() *Fake {
	return &Fake{
		hashes:    make(map[string]map[string]string),
		lists:     make(map[string][]string),
		zsets:     make(map[string]map[string]float64),
		counter:   make(map[string]int64),
		subs:      make(map[string][]chan string),
		popSignal: make(chan struct{}, 1),
	}
}

// Publish fans a message out to every channel-local subscriber, mirroring
// Redis Pub/Sub's at-most-once, fire-and-forget delivery.
func (f *Fake) Publish(ctx context.Context, channel, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.subs[channel] {
		select {
		case c <- message:
		default:
		}
	}
	return nil
}

// Subscribe registers a channel-local subscriber. Close removes it.
func (f *Fake) Subscribe(ctx context.Context, channel string) Subscription {
	c := make(chan string, 64)
	f.mu.Lock()
	f.subs[channel] = append(f.subs[channel], c)
	f.mu.Unlock()
	return &fakeSubscription{f: f, channel: channel, c: c}
}

type fakeSubscription struct {
	f       *Fake
	channel string
	c       chan string
	once    sync.Once
}

func (s *fakeSubscription) C() <-chan string { return s.c }

func (s *fakeSubscription) Close() error {
	s.once.Do(func() {
		s.f.mu.Lock()
		defer s.f.mu.Unlock()
		subs := s.f.subs[s.channel]
		for i, c := range subs {
			if c == s.c {
				s.f.subs[s.channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(s.c)
	})
	return nil
}

func (f *Fake) notify() {
	select {
	case f.popSignal <- struct{}{}:
	default:
	}
}

func (f *Fake) Ping(ctx context.Context) error { return nil }
func (f *Fake) Close() error                   { return nil }

func (f *Fake) HashSet(ctx context.Context, key string, fields map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (f *Fake) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string)
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *Fake) HashGet(ctx context.Context, key, field string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		return "", false, nil
	}
	v, ok := h[field]
	return v, ok, nil
}

func (f *Fake) HashIncrByFloat(ctx context.Context, key, field string, amount float64) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	cur := parseFloatOrZero(h[field])
	cur += amount
	h[field] = formatFloat(cur)
	return cur, nil
}

func (f *Fake) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}

func (f *Fake) ListPushLeft(ctx context.Context, key string, values ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range values {
		f.lists[key] = append([]string{v}, f.lists[key]...)
	}
	f.notify()
	return nil
}

func (f *Fake) ListLen(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.lists[key])), nil
}

func (f *Fake) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.lists[key]
	n := int64(len(l))
	s, e := normalizeRange(start, stop, n)
	if s > e {
		return []string{}, nil
	}
	out := make([]string, e-s+1)
	copy(out, l[s:e+1])
	return out, nil
}

// BlockingPopLeft polls the given keys in order (matching BLPOP's
// first-key-wins semantics) until a value is available or timeout elapses.
func (f *Fake) BlockingPopLeft(ctx context.Context, timeout time.Duration, keys ...string) (string, string, bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		if v, k, ok := f.tryPopLeft(keys); ok {
			return k, v, true, nil
		}
		if timeout <= 0 || time.Now().After(deadline) {
			return "", "", false, nil
		}
		select {
		case <-ctx.Done():
			return "", "", false, ctx.Err()
		case <-f.popSignal:
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (f *Fake) tryPopLeft(keys []string) (value string, key string, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		l := f.lists[k]
		if len(l) == 0 {
			continue
		}
		v := l[0]
		f.lists[k] = l[1:]
		return v, k, true
	}
	return "", "", false
}

func (f *Fake) SortedSetAdd(ctx context.Context, key string, members ...ZMember) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	z, ok := f.zsets[key]
	if !ok {
		z = make(map[string]float64)
		f.zsets[key] = z
	}
	for _, m := range members {
		z[m.Member] = m.Score
	}
	return nil
}

func (f *Fake) SortedSetRangeByScore(ctx context.Context, key string, min, max float64, limit int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	type pair struct {
		member string
		score  float64
	}
	var pairs []pair
	for m, s := range f.zsets[key] {
		if s >= min && s <= max {
			pairs = append(pairs, pair{m, s})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].score < pairs[j].score })
	if limit > 0 && int64(len(pairs)) > limit {
		pairs = pairs[:limit]
	}
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.member
	}
	return out, nil
}

func (f *Fake) SortedSetRem(ctx context.Context, key string, members ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	z, ok := f.zsets[key]
	if !ok {
		return nil
	}
	for _, m := range members {
		delete(z, m)
	}
	return nil
}

func (f *Fake) SortedSetCard(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.zsets[key])), nil
}

func (f *Fake) Keys(ctx context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k := range f.hashes {
		if globMatch(pattern, k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *Fake) Incr(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counter[key]++
	return f.counter[key], nil
}

func (f *Fake) Pipeline(ctx context.Context, fn func(p Pipeliner)) error {
	p := &fakePipeliner{f: f}
	fn(p)
	return p.flush(ctx)
}

type fakeOp func(ctx context.Context, f *Fake) error

type fakePipeliner struct {
	f   *Fake
	ops []fakeOp
}

func (p *fakePipeliner) ListPushLeft(key string, values ...string) {
	p.ops = append(p.ops, func(ctx context.Context, f *Fake) error {
		return f.ListPushLeft(ctx, key, values...)
	})
}

func (p *fakePipeliner) SortedSetAdd(key string, members ...ZMember) {
	p.ops = append(p.ops, func(ctx context.Context, f *Fake) error {
		return f.SortedSetAdd(ctx, key, members...)
	})
}

func (p *fakePipeliner) SortedSetRem(key string, members ...string) {
	p.ops = append(p.ops, func(ctx context.Context, f *Fake) error {
		return f.SortedSetRem(ctx, key, members...)
	})
}

func (p *fakePipeliner) HashSet(key string, fields map[string]string) {
	p.ops = append(p.ops, func(ctx context.Context, f *Fake) error {
		return f.HashSet(ctx, key, fields)
	})
}

func (p *fakePipeliner) HashIncrByFloat(key, field string, amount float64) {
	p.ops = append(p.ops, func(ctx context.Context, f *Fake) error {
		_, err := f.HashIncrByFloat(ctx, key, field, amount)
		return err
	})
}

func (p *fakePipeliner) flush(ctx context.Context) error {
	for _, op := range p.ops {
		if err := op(ctx, p.f); err != nil {
			return err
		}
	}
	return nil
}

func normalizeRange(start, stop, n int64) (int64, int64) {
	if n == 0 {
		return 0, -1
	}
	if start < 0 {
		start = n + start
	}
	if stop < 0 {
		stop = n + stop
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	return start, stop
}

func globMatch(pattern, s string) bool {
	if pattern == "*" {
		return true
	}
	if len(pattern) > 0 && pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(s) >= len(prefix) && s[:len(prefix)] == prefix
	}
	return pattern == s
}
