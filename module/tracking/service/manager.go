package service

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/domain"
)

// finishedStatuses bounds how many stopped sessions stay queryable.
const finishedStatuses = 1024

type permissionForgetter interface {
	Forget(sessionID string)
}

// Manager keeps the sessions started through the session gate, one per
// session id. A session leaves the manager as soon as it stops; only its
// final status is remembered, for a bounded number of sessions.
type Manager struct {
	deps   SessionDeps
	perms  permissionForgetter
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	finished *lru.Cache[string, domain.SessionStatus]
}

func NewManager(deps SessionDeps, perms permissionForgetter) *Manager {
	finished, _ := lru.New[string, domain.SessionStatus](finishedStatuses)
	return &Manager{
		deps:     deps,
		perms:    perms,
		logger:   deps.Logger.Named("manager"),
		sessions: make(map[string]*Session),
		finished: finished,
	}
}

// Start begins tracking sessionID for userID. A session that already
// stopped is replaced by a fresh one.
func (m *Manager) Start(ctx context.Context, sessionID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[sessionID]; ok && existing.State() == StateTracking {
		return fmt.Errorf("start session %s: %w", sessionID, domain.ErrSessionActive)
	}

	sess := NewSession(m.deps, userID)
	sess.OnStop(func(reason error) {
		m.logger.Warn("session stopped unexpectedly",
			zap.String("session_id", sessionID),
			zap.Error(reason),
		)
		m.retire(sessionID, sess)
	})
	if err := sess.Start(ctx, sessionID); err != nil {
		return err
	}
	m.sessions[sessionID] = sess
	m.finished.Remove(sessionID)
	return nil
}

// Stop stops a tracking session. Stopping a session that already finished
// is a no-op.
func (m *Manager) Stop(sessionID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	done := m.finished.Contains(sessionID)
	m.mu.Unlock()

	if !ok {
		if done {
			return nil
		}
		return fmt.Errorf("session %s: %w", sessionID, domain.ErrSessionNotFound)
	}
	sess.Stop()
	m.retire(sessionID, sess)
	return nil
}

func (m *Manager) Status(sessionID string) (*domain.SessionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[sessionID]; ok {
		status := statusOf(sessionID, sess)
		return &status, nil
	}
	if status, ok := m.finished.Get(sessionID); ok {
		return &status, nil
	}
	return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrSessionNotFound)
}

// StopAll stops every session and waits for issued sink writes to finish.
func (m *Manager) StopAll() {
	m.mu.Lock()
	sessions := make(map[string]*Session, len(m.sessions))
	for id, sess := range m.sessions {
		sessions[id] = sess
	}
	m.mu.Unlock()

	for id, sess := range sessions {
		sess.Stop()
		m.retire(id, sess)
	}
	m.deps.Dispatcher.Flush()
}

// Active is the number of sessions currently held.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// retire drops a stopped session and its permission entry, keeping its
// final status. A session already replaced under the same id is left alone.
func (m *Manager) retire(sessionID string, sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessions[sessionID] != sess {
		return
	}
	delete(m.sessions, sessionID)
	m.finished.Add(sessionID, statusOf(sessionID, sess))
	m.perms.Forget(sessionID)
}

func statusOf(sessionID string, sess *Session) domain.SessionStatus {
	status := domain.SessionStatus{
		SessionID:      sessionID,
		UserID:         sess.userID,
		State:          sess.State().String(),
		DistanceMeters: sess.Distance(),
	}
	if reason := sess.Err(); reason != nil {
		status.StopReason = reason.Error()
	}
	return status
}
