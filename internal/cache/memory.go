package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type memoryItem struct {
	data      []byte
	expiresAt time.Time
}

func (it memoryItem) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && now.After(it.expiresAt)
}

// MemoryProvider 进程内缓存，未配置Redis时使用
type MemoryProvider struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{items: map[string]memoryItem{}, now: time.Now}
}

func (p *MemoryProvider) Get(_ context.Context, key string, dest any) error {
	if p == nil {
		return fmt.Errorf("cache provider is nil")
	}
	p.mu.Lock()
	item, ok := p.items[key]
	if ok && item.expired(p.now()) {
		delete(p.items, key)
		ok = false
	}
	p.mu.Unlock()
	if !ok || len(item.data) == 0 {
		return ErrMiss
	}
	return json.Unmarshal(item.data, dest)
}

func (p *MemoryProvider) Set(_ context.Context, key string, value any, expiration time.Duration) error {
	if p == nil {
		return fmt.Errorf("cache provider is nil")
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.items[key] = memoryItem{data: b, expiresAt: p.expiry(expiration)}
	p.sweepLocked()
	p.mu.Unlock()
	return nil
}

func (p *MemoryProvider) SetNX(_ context.Context, key string, value any, expiration time.Duration) (bool, error) {
	if p == nil {
		return false, fmt.Errorf("cache provider is nil")
	}
	b, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if item, ok := p.items[key]; ok && !item.expired(p.now()) {
		return false, nil
	}
	p.items[key] = memoryItem{data: b, expiresAt: p.expiry(expiration)}
	return true, nil
}

func (p *MemoryProvider) Delete(_ context.Context, key string) error {
	if p == nil {
		return fmt.Errorf("cache provider is nil")
	}
	p.mu.Lock()
	delete(p.items, key)
	p.mu.Unlock()
	return nil
}

func (p *MemoryProvider) CompareAndDelete(_ context.Context, key string, value any) (bool, error) {
	if p == nil {
		return false, fmt.Errorf("cache provider is nil")
	}
	b, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.matchLocked(key, b) {
		return false, nil
	}
	delete(p.items, key)
	return true, nil
}

func (p *MemoryProvider) CompareAndExpire(_ context.Context, key string, value any, expiration time.Duration) (bool, error) {
	if p == nil {
		return false, fmt.Errorf("cache provider is nil")
	}
	b, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.matchLocked(key, b) {
		return false, nil
	}
	item := p.items[key]
	item.expiresAt = p.expiry(expiration)
	p.items[key] = item
	return true, nil
}

func (p *MemoryProvider) matchLocked(key string, data []byte) bool {
	item, ok := p.items[key]
	if !ok {
		return false
	}
	if item.expired(p.now()) {
		delete(p.items, key)
		return false
	}
	return bytes.Equal(item.data, data)
}

func (p *MemoryProvider) Close() error {
	return nil
}

// Len 未过期的条目数
func (p *MemoryProvider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sweepLocked()
	return len(p.items)
}

func (p *MemoryProvider) expiry(expiration time.Duration) time.Time {
	if expiration <= 0 {
		return time.Time{}
	}
	return p.now().Add(expiration)
}

func (p *MemoryProvider) sweepLocked() {
	now := p.now()
	for k, it := range p.items {
		if it.expired(now) {
			delete(p.items, k)
		}
	}
}
