// Package session хранит снимки аккаунтов авторизованных пользователей.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mmeshcher/forum-coins/internal/model"
)

// DefaultTTL задает время жизни снимка в кеше.
const DefaultTTL = 24 * time.Hour

// ErrMiss возвращается, если снимка нет в кеше или он устарел.
var ErrMiss = errors.New("session cache miss")

// Cache описывает хранилище снимков аккаунтов.
type Cache interface {
	Get(ctx context.Context, accountID int64) (*model.AccountSnapshot, error)
	Set(ctx context.Context, snap model.AccountSnapshot) error
	Delete(ctx context.Context, accountID int64) error
}

type memoryEntry struct {
	snap      model.AccountSnapshot
	expiresAt time.Time
}

// MemoryCache хранит снимки в памяти процесса.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[int64]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache создаёт кеш в памяти с указанным временем жизни записей.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		entries: make(map[int64]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get возвращает снимок, если он есть и не устарел.
func (c *MemoryCache) Get(_ context.Context, accountID int64) (*model.AccountSnapshot, error) {
	c.mu.RLock()
	e, ok := c.entries[accountID]
	c.mu.RUnlock()

	if !ok || !c.now().Before(e.expiresAt) {
		return nil, ErrMiss
	}

	snap := e.snap
	return &snap, nil
}

// Set сохраняет снимок аккаунта.
func (c *MemoryCache) Set(_ context.Context, snap model.AccountSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[snap.ID] = memoryEntry{snap: snap, expiresAt: c.now().Add(c.ttl)}
	return nil
}

// Delete удаляет снимок аккаунта.
func (c *MemoryCache) Delete(_ context.Context, accountID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, accountID)
	return nil
}
