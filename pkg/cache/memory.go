package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type entry struct {
	key      string
	data     []byte
	expireAt time.Time
}

func (e *entry) live(now time.Time) bool { return now.Before(e.expireAt) }

// MemoryCache is a process-local Service for development and tests. Entries
// are kept in recency order; when MaxSize is reached the least recently used
// one is dropped. MaxSize 0 means unbounded.
type MemoryCache struct {
	mu      sync.Mutex
	index   map[string]*list.Element
	order   *list.List // front is most recent
	maxSize int
	ttl     time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
		DefaultTTL:      24 * time.Hour,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		index:   make(map[string]*list.Element),
		order:   list.New(),
		maxSize: cfg.MaxSize,
		ttl:     cfg.DefaultTTL,
		stop:    make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		go mc.sweep(cfg.CleanupInterval)
	}
	return mc
}

// lookup returns the live entry for key, dropping it if expired. Callers hold mu.
func (mc *MemoryCache) lookup(key string, now time.Time) (*list.Element, bool) {
	el, ok := mc.index[key]
	if !ok {
		return nil, false
	}
	if !el.Value.(*entry).live(now) {
		mc.removeElement(el)
		return nil, false
	}
	return el, true
}

func (mc *MemoryCache) removeElement(el *list.Element) {
	mc.order.Remove(el)
	delete(mc.index, el.Value.(*entry).key)
}

// put stores data under key as the most recent entry. Callers hold mu.
func (mc *MemoryCache) put(key string, data []byte, expireAt time.Time) {
	if el, ok := mc.index[key]; ok {
		e := el.Value.(*entry)
		e.data, e.expireAt = data, expireAt
		mc.order.MoveToFront(el)
		return
	}
	if mc.maxSize > 0 && mc.order.Len() >= mc.maxSize {
		if last := mc.order.Back(); last != nil {
			mc.removeElement(last)
		}
	}
	mc.index[key] = mc.order.PushFront(&entry{key: key, data: data, expireAt: expireAt})
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if expiration <= 0 {
		expiration = mc.ttl
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.put(key, data, time.Now().Add(expiration))
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	el, ok := mc.lookup(key, time.Now())
	if !ok {
		mc.mu.Unlock()
		return ErrCacheMiss
	}
	mc.order.MoveToFront(el)
	data := el.Value.(*entry).data
	mc.mu.Unlock()

	return decode(data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		if el, ok := mc.index[key]; ok {
			mc.removeElement(el)
		}
	}
	return nil
}

// Exists reports whether any of keys is present.
func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := time.Now()
	for _, key := range keys {
		if _, ok := mc.lookup(key, now); ok {
			return true, nil
		}
	}
	return false, nil
}

func (mc *MemoryCache) MGet(_ context.Context, keys ...string) (map[string]string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := time.Now()
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if el, ok := mc.lookup(key, now); ok {
			out[key] = string(el.Value.(*entry).data)
		}
	}
	return out, nil
}

// TryLock stores key for ttl unless a live entry already holds it.
func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := time.Now()
	if _, held := mc.lookup(key, now); held {
		return false, nil
	}
	mc.put(key, []byte("locked"), now.Add(ttl))
	return true, nil
}

func (mc *MemoryCache) Unlock(ctx context.Context, key string) error {
	return mc.Delete(ctx, key)
}

// Len reports the number of stored entries, expired ones included.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.order.Len()
}

func (mc *MemoryCache) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			mc.mu.Lock()
			now := time.Now()
			for el := mc.order.Back(); el != nil; {
				prev := el.Prev()
				if !el.Value.(*entry).live(now) {
					mc.removeElement(el)
				}
				el = prev
			}
			mc.mu.Unlock()
		case <-mc.stop:
			return
		}
	}
}

// Close stops the sweeper.
func (mc *MemoryCache) Close() error {
	mc.stopOnce.Do(func() { close(mc.stop) })
	return nil
}
