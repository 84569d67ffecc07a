package model

import "github.com/google/uuid"

// SessionId identifies a single ActiveSession. Equality is identity, not
// content: two sessions never share an id even if opened against the same
// ConnectionConfig.
type SessionId uuid.UUID

// NewSessionId mints a fresh random SessionId.
func NewSessionId() SessionId {
	return SessionId(uuid.New())
}

func (id SessionId) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether id is the zero value, used by callers that
// accept an optional session id.
func (id SessionId) IsZero() bool {
	return id == SessionId{}
}

// ParseSessionId parses a SessionId from its canonical string form, used
// when a caller supplies a session_id on the external boundary.
func ParseSessionId(s string) (SessionId, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return SessionId{}, err
	}
	return SessionId(u), nil
}

// QueryId identifies a single in-flight or completed query handle.
type QueryId uuid.UUID

// NewQueryId mints a fresh random QueryId.
func NewQueryId() QueryId {
	return QueryId(uuid.New())
}

func (id QueryId) String() string {
	return uuid.UUID(id).String()
}

func (id QueryId) IsZero() bool {
	return id == QueryId{}
}

// ParseQueryId parses a QueryId from its canonical string form, used when a
// caller supplies an explicit query_id to register_with_id.
func ParseQueryId(s string) (QueryId, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return QueryId{}, err
	}
	return QueryId(u), nil
}
