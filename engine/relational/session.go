package relational

import (
	"database/sql"
	"sync"

	"github.com/qoredb/core/model"
)

// activeQuery pairs the server-side backend/connection identifier with
// nothing else — removing the entry never closes the connection.
type activeQuery struct {
	backendID int64
}

// sessionState is the per-session internal record backing a connected
// driver session. It holds its own connection pool, never shared across
// sessions, and at most one dedicated transaction connection.
//
// txMu and queriesMu are separate on purpose: cancel() must never block
// behind an in-flight execute() that is holding the transaction
// connection. cancel() only ever touches queriesMu and a fresh pool
// connection of its own.
type sessionState struct {
	pool *sql.DB
	cfg  model.ConnectionConfig

	txMu   sync.Mutex
	txConn *sql.Conn

	queriesMu     sync.RWMutex
	activeQueries map[model.QueryId]activeQuery
}

func newSessionState(pool *sql.DB, cfg model.ConnectionConfig) *sessionState {
	return &sessionState{
		pool:          pool,
		cfg:           cfg,
		activeQueries: make(map[model.QueryId]activeQuery),
	}
}

func (s *sessionState) registerQuery(id model.QueryId, backendID int64) {
	s.queriesMu.Lock()
	s.activeQueries[id] = activeQuery{backendID: backendID}
	s.queriesMu.Unlock()
}

func (s *sessionState) finishQuery(id model.QueryId) {
	s.queriesMu.Lock()
	delete(s.activeQueries, id)
	s.queriesMu.Unlock()
}

func (s *sessionState) lookupQuery(id model.QueryId) (activeQuery, bool) {
	s.queriesMu.RLock()
	defer s.queriesMu.RUnlock()
	aq, ok := s.activeQueries[id]
	return aq, ok
}

// allQueryIDs snapshots every currently-registered query id, for a
// cancel-all call.
func (s *sessionState) allQueryIDs() []model.QueryId {
	s.queriesMu.RLock()
	defer s.queriesMu.RUnlock()
	ids := make([]model.QueryId, 0, len(s.activeQueries))
	for id := range s.activeQueries {
		ids = append(ids, id)
	}
	return ids
}

func (s *sessionState) hasTransaction() bool {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.txConn != nil
}
