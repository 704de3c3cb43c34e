package iocache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/huangsam/codepulse/schema"
)

// Manager is the process-wide store manager used by the commands.
var (
	Manager   = &CacheStoreManager{}
	initOnce  sync.Once
	closeOnce sync.Once
)

// InitStores opens the history cache and the run store. An empty backend
// leaves that store unset. The none backend disables the history cache.
func InitStores(cacheBackend schema.DatabaseBackend, cacheConnStr string, runBackend schema.DatabaseBackend, runConnStr string) error {
	var initErr error
	initOnce.Do(func() {
		history, runs, err := openStores(cacheBackend, cacheConnStr, runBackend, runConnStr)
		if err != nil {
			initErr = err
			return
		}
		Manager.Lock()
		defer Manager.Unlock()
		Manager.history = history
		Manager.runs = runs
	})
	return initErr
}

// openStores opens both stores, closing the first when the second fails.
func openStores(cacheBackend schema.DatabaseBackend, cacheConnStr string, runBackend schema.DatabaseBackend, runConnStr string) (*CacheStoreImpl, *RunStoreImpl, error) {
	var history *CacheStoreImpl
	if cacheBackend != "" && cacheBackend != schema.NoneBackend {
		store, err := NewCacheStore(historyTable, cacheBackend, cacheConnStr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize history cache: %w", err)
		}
		history = store
	}

	var runs *RunStoreImpl
	if runBackend != "" {
		store, err := NewRunStore(runBackend, runConnStr)
		if err != nil {
			if history != nil {
				_ = history.Close()
			}
			return nil, nil, fmt.Errorf("failed to initialize run store: %w", err)
		}
		runs = store
	}
	return history, runs, nil
}

// CloseStores should be called on application shutdown.
func CloseStores() {
	closeOnce.Do(func() {
		Manager.Lock()
		defer Manager.Unlock()
		if Manager.history != nil {
			_ = Manager.history.Close()
		}
		if Manager.runs != nil {
			_ = Manager.runs.Close()
		}
	})
}

// ClearHistory deletes every history cache entry.
func ClearHistory() error {
	Manager.RLock()
	defer Manager.RUnlock()
	if Manager.history == nil {
		return errors.New("history cache is not enabled")
	}
	return Manager.history.Clear()
}

// ClearRuns deletes every recorded run and its node metrics.
func ClearRuns() error {
	Manager.RLock()
	defer Manager.RUnlock()
	if Manager.runs == nil {
		return errors.New("run tracking is not enabled")
	}
	return Manager.runs.Clear()
}
