// Package iocache persists history lookups and analysis runs in SQL stores.
package iocache

import (
	"sync"

	"github.com/huangsam/codepulse/internal/contract"
)

// CacheStoreManager manages the history cache and the run store.
type CacheStoreManager struct {
	sync.RWMutex // Protects the store pointers during initialization
	history      *CacheStoreImpl
	runs         *RunStoreImpl
}

var _ contract.CacheManager = &CacheStoreManager{} // Compile-time check

// GetHistoryStore returns the history CacheStore, or nil when caching is off.
func (mgr *CacheStoreManager) GetHistoryStore() contract.CacheStore {
	mgr.RLock()
	defer mgr.RUnlock()
	if mgr.history == nil {
		return nil
	}
	return mgr.history
}

// GetRunStore returns the RunStore, or nil when run tracking is off.
func (mgr *CacheStoreManager) GetRunStore() contract.RunStore {
	mgr.RLock()
	defer mgr.RUnlock()
	if mgr.runs == nil {
		return nil
	}
	return mgr.runs
}
