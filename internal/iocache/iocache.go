// Package iocache persists execution history and derived data.
package iocache

import (
	"sync"

	"github.com/huangsam/retest/internal/contract"
)

// CacheStoreManager manages the derived-data cache and the history store.
type CacheStoreManager struct {
	sync.RWMutex // Protects the store pointers during initialization
	derived      contract.CacheStore
	history      contract.HistoryStore
}

var _ contract.CacheManager = &CacheStoreManager{} // Compile-time check

// NewCacheStoreManager wraps already opened stores. Either may be nil.
func NewCacheStoreManager(derived contract.CacheStore, history contract.HistoryStore) *CacheStoreManager {
	return &CacheStoreManager{derived: derived, history: history}
}

// GetDerivedStore returns the derived-data CacheStore.
func (mgr *CacheStoreManager) GetDerivedStore() contract.CacheStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.derived
}

// GetHistoryStore returns the execution HistoryStore.
func (mgr *CacheStoreManager) GetHistoryStore() contract.HistoryStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.history
}
