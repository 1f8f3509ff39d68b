package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryItem struct {
	data     []byte
	expireAt time.Time
}

func (m memoryItem) expired(now time.Time) bool {
	return !m.expireAt.IsZero() && now.After(m.expireAt)
}

type memoryLock struct {
	token    string
	expireAt time.Time
}

// MemoryCache implements Service in process with LRU eviction. Locks live
// outside the LRU so they are never evicted.
type MemoryCache struct {
	items *LRU[string, memoryItem]

	lockMu sync.Mutex
	locks  map[string]memoryLock

	now       func() time.Time
	stop      chan struct{}
	closeOnce sync.Once
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{MaxSize: 1000, CleanupInterval: 5 * time.Minute}
	for _, opt := range opts {
		opt(cfg)
	}
	mc := &MemoryCache{
		items: NewLRU[string, memoryItem](cfg.MaxSize),
		locks: make(map[string]memoryLock),
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		go mc.cleanup(cfg.CleanupInterval)
	}
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	item := memoryItem{data: data}
	if expiration > 0 {
		item.expireAt = mc.now().Add(expiration)
	}
	mc.items.Add(key, item)
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	item, ok := mc.items.Get(key)
	if !ok {
		return ErrCacheMiss
	}
	if item.expired(mc.now()) {
		mc.items.Remove(key)
		return ErrCacheMiss
	}
	return decode(item.data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		mc.items.Remove(k)
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	now := mc.now()
	for _, k := range keys {
		if item, ok := mc.items.Peek(k); ok && !item.expired(now) {
			return true, nil
		}
	}
	return false, nil
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	mc.lockMu.Lock()
	defer mc.lockMu.Unlock()
	now := mc.now()
	if l, ok := mc.locks[key]; ok && now.Before(l.expireAt) {
		return "", false, nil
	}
	token := uuid.NewString()
	mc.locks[key] = memoryLock{token: token, expireAt: now.Add(ttl)}
	return token, true, nil
}

func (mc *MemoryCache) Unlock(_ context.Context, key, token string) error {
	mc.lockMu.Lock()
	defer mc.lockMu.Unlock()
	l, ok := mc.locks[key]
	if !ok || l.token != token {
		return ErrNotLocked
	}
	delete(mc.locks, key)
	return nil
}

func (mc *MemoryCache) cleanup(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-mc.stop:
			return
		case <-t.C:
			now := mc.now()
			mc.items.RemoveIf(func(_ string, v memoryItem) bool { return v.expired(now) })
			mc.lockMu.Lock()
			for k, l := range mc.locks {
				if !now.Before(l.expireAt) {
					delete(mc.locks, k)
				}
			}
			mc.lockMu.Unlock()
		}
	}
}

// Close stops the cleanup goroutine.
func (mc *MemoryCache) Close() error {
	mc.closeOnce.Do(func() { close(mc.stop) })
	return nil
}
