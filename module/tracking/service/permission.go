package service

import "sync"

// PermissionRegistry tracks the latest location permission reported for
// each session. Sessions without a report are treated as not granted.
type PermissionRegistry struct {
	mu      sync.RWMutex
	granted map[string]bool
}

func NewPermissionRegistry() *PermissionRegistry {
	return &PermissionRegistry{granted: make(map[string]bool)}
}

func (r *PermissionRegistry) HasLocationPermission(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.granted[sessionID]
}

func (r *PermissionRegistry) Set(sessionID string, granted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.granted[sessionID] = granted
}

func (r *PermissionRegistry) Grant(sessionID string) { r.Set(sessionID, true) }

func (r *PermissionRegistry) Revoke(sessionID string) { r.Set(sessionID, false) }

func (r *PermissionRegistry) Forget(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.granted, sessionID)
}
