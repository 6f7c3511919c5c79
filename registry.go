package gostashsquirrel

import (
	"errors"
	"sync"
)

var (
	registryMu sync.RWMutex
	defaultMgr *Manager
)

// ErrNoDefault is returned by Default before SetDefault has been called.
var ErrNoDefault = errors.New("no default cache configured")

// SetDefault installs m as the process-wide default cache. Passing nil clears
// it. There is no implicit construction: Default fails until a manager is
// installed explicitly.
func SetDefault(m *Manager) {
	registryMu.Lock()
	defaultMgr = m
	registryMu.Unlock()
}

// Default returns the process-wide default cache.
func Default() (*Manager, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if defaultMgr == nil {
		return nil, ErrNoDefault
	}
	return defaultMgr, nil
}
