package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/casefile-labs/bwc-pipeline/internal/domain/entities"
)

// MemoryRunCache is the in-process fallback run cache, used when Redis
// is not configured (single-instance deployments, tests)
type MemoryRunCache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[uuid.UUID]*memoryItem
}

type memoryItem struct {
	payload    []byte
	expireTime time.Time
}

// NewMemoryRunCache creates an in-memory run cache
func NewMemoryRunCache(ttl time.Duration) *MemoryRunCache {
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	cache := &MemoryRunCache{
		ttl:   ttl,
		items: make(map[uuid.UUID]*memoryItem),
	}

	go cache.cleanupExpired()

	return cache
}

// SetRun stores a run snapshot with expiration
func (mc *MemoryRunCache) SetRun(_ context.Context, run *entities.AnalysisRun) {
	data, err := json.Marshal(run)
	if err != nil {
		return
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.items[run.ID] = &memoryItem{
		payload:    data,
		expireTime: time.Now().Add(mc.ttl),
	}
}

// GetRun retrieves a cached run snapshot if it has not expired
func (mc *MemoryRunCache) GetRun(_ context.Context, runID uuid.UUID) (*entities.AnalysisRun, bool) {
	mc.mu.RLock()
	item, exists := mc.items[runID]
	mc.mu.RUnlock()

	if !exists || time.Now().After(item.expireTime) {
		return nil, false
	}

	var run entities.AnalysisRun
	if err := json.Unmarshal(item.payload, &run); err != nil {
		return nil, false
	}
	return &run, true
}

// InvalidateRun removes the cached snapshot
func (mc *MemoryRunCache) InvalidateRun(_ context.Context, runID uuid.UUID) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	delete(mc.items, runID)
}

// cleanupExpired periodically removes expired items
func (mc *MemoryRunCache) cleanupExpired() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		mc.mu.Lock()
		now := time.Now()
		for key, item := range mc.items {
			if now.After(item.expireTime) {
				delete(mc.items, key)
			}
		}
		mc.mu.Unlock()
	}
}
