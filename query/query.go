// Package query implements the Query Manager: the registry of in-flight
// query handles used to resolve a cancellation request back to a
// session, and to support "cancel the most recent" when the caller did
// not retain the query id.
package query

import (
	"sync"

	"github.com/qoredb/core/model"
)

// Manager tracks three indices over live query handles: active maps a
// QueryId to the session it runs on, bySession groups a session's live
// QueryIds, and lastBySession remembers the most recently registered
// QueryId per session.
type Manager struct {
	mu            sync.RWMutex
	active        map[model.QueryId]model.SessionId
	bySession     map[model.SessionId]map[model.QueryId]struct{}
	lastBySession map[model.SessionId]model.QueryId
}

// NewManager builds an empty Query Manager.
func NewManager() *Manager {
	return &Manager{
		active:        make(map[model.QueryId]model.SessionId),
		bySession:     make(map[model.SessionId]map[model.QueryId]struct{}),
		lastBySession: make(map[model.SessionId]model.QueryId),
	}
}

// Register mints a fresh QueryId for session and installs it in all
// three indices.
func (m *Manager) Register(session model.SessionId) model.QueryId {
	id := model.NewQueryId()
	m.mu.Lock()
	m.insertLocked(session, id)
	m.mu.Unlock()
	return id
}

// RegisterWithID installs an explicit QueryId for session, rejecting it
// if that id is already in use by a live query.
func (m *Manager) RegisterWithID(session model.SessionId, id model.QueryId) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.active[id]; exists {
		return model.NewError(model.KindExecutionError, "query id already in use: "+id.String())
	}
	m.insertLocked(session, id)
	return nil
}

func (m *Manager) insertLocked(session model.SessionId, id model.QueryId) {
	m.active[id] = session
	set, ok := m.bySession[session]
	if !ok {
		set = make(map[model.QueryId]struct{})
		m.bySession[session] = set
	}
	set[id] = struct{}{}
	m.lastBySession[session] = id
}

// Finish removes id from all three indices. It is a no-op if id is not
// currently registered.
func (m *Manager) Finish(id model.QueryId) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.active[id]
	if !ok {
		return
	}
	delete(m.active, id)

	if set, ok := m.bySession[session]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(m.bySession, session)
		}
	}

	if m.lastBySession[session] == id {
		delete(m.lastBySession, session)
	}
}

// SessionFor resolves the session a live query handle belongs to.
func (m *Manager) SessionFor(id model.QueryId) (model.SessionId, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.active[id]
	return session, ok
}

// LastForSession returns the most recently registered QueryId for
// session, supporting "cancel the most recent" when the caller did not
// retain the id.
func (m *Manager) LastForSession(session model.SessionId) (model.QueryId, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.lastBySession[session]
	return id, ok
}

// ActiveForSession returns a snapshot of every live QueryId on session.
func (m *Manager) ActiveForSession(session model.SessionId) []model.QueryId {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.bySession[session]
	out := make([]model.QueryId, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
