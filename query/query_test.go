package query

import (
	"testing"

	"github.com/qoredb/core/model"
)

func TestRegister_MintsIDAndTracksSession(t *testing.T) {
	m := NewManager()
	session := model.NewSessionId()

	id := m.Register(session)
	if id.IsZero() {
		t.Fatalf("expected non-zero query id")
	}

	got, ok := m.SessionFor(id)
	if !ok || got != session {
		t.Errorf("SessionFor: got %v, %v", got, ok)
	}

	last, ok := m.LastForSession(session)
	if !ok || last != id {
		t.Errorf("LastForSession: got %v, %v", last, ok)
	}
}

func TestRegisterWithID_RejectsDuplicate(t *testing.T) {
	m := NewManager()
	session := model.NewSessionId()
	id := model.NewQueryId()

	if err := m.RegisterWithID(session, id); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := m.RegisterWithID(session, id); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestFinish_RemovesAllThreeIndices(t *testing.T) {
	m := NewManager()
	session := model.NewSessionId()
	id := m.Register(session)

	m.Finish(id)

	if _, ok := m.SessionFor(id); ok {
		t.Errorf("expected SessionFor to fail after finish")
	}
	if _, ok := m.LastForSession(session); ok {
		t.Errorf("expected LastForSession to fail after finish")
	}
	if active := m.ActiveForSession(session); len(active) != 0 {
		t.Errorf("expected no active queries after finish, got %v", active)
	}
}

func TestFinish_UnknownIDIsNoOp(t *testing.T) {
	m := NewManager()
	m.Finish(model.NewQueryId())
}

func TestLastForSession_TracksMostRecent(t *testing.T) {
	m := NewManager()
	session := model.NewSessionId()

	first := m.Register(session)
	second := m.Register(session)

	last, ok := m.LastForSession(session)
	if !ok || last != second {
		t.Errorf("expected last to be the most recently registered id, got %v", last)
	}

	m.Finish(second)
	// Finishing the last-registered query clears last_by_session even
	// though an earlier query on the same session is still active.
	if _, ok := m.LastForSession(session); ok {
		t.Errorf("expected no last-for-session after finishing the most recent id")
	}

	active := m.ActiveForSession(session)
	if len(active) != 1 || active[0] != first {
		t.Errorf("expected first query to remain active, got %v", active)
	}
}

func TestActiveForSession_MultipleQueries(t *testing.T) {
	m := NewManager()
	sessionA := model.NewSessionId()
	sessionB := model.NewSessionId()

	idA1 := m.Register(sessionA)
	idA2 := m.Register(sessionA)
	m.Register(sessionB)

	active := m.ActiveForSession(sessionA)
	if len(active) != 2 {
		t.Fatalf("expected 2 active queries for sessionA, got %d", len(active))
	}
	seen := map[model.QueryId]bool{}
	for _, id := range active {
		seen[id] = true
	}
	if !seen[idA1] || !seen[idA2] {
		t.Errorf("expected both idA1 and idA2 in active set, got %v", active)
	}
}
