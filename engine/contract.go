// Package engine defines the polymorphic contract every database driver
// (relational-pooled or document-oriented) implements, plus the registry
// that looks drivers up by tag.
package engine

import (
	"context"

	"github.com/qoredb/core/model"
)

// CancelSupport describes how much a driver can do about an in-flight
// query once cancel() is called.
type CancelSupport string

const (
	CancelNone       CancelSupport = "none"
	CancelBestEffort CancelSupport = "best-effort"
	CancelServerSide CancelSupport = "server-side"
)

// Capabilities is a driver's static, config-independent feature record.
type Capabilities struct {
	SupportsTransactions bool
	SupportsMutations    bool
	CancelSupport        CancelSupport
}

// Driver is the uniform operation surface every engine implementation
// must provide. Callers never branch on driver identity:
// every method here must be implemented, even if only to return
// model.KindNotSupported for a capability a given engine lacks.
type Driver interface {
	// DriverId returns the stable short tag used by registry lookup and
	// classifier dialect selection, e.g. "postgres", "mysql", "mongodb".
	DriverId() string

	Capabilities() Capabilities

	// TestConnection succeeds iff credentials and reachability allow at
	// least one round trip. It releases all resources before returning,
	// regardless of outcome.
	TestConnection(ctx context.Context, cfg model.ConnectionConfig) error

	// Connect verifies reachability, warms the pool to at least one
	// connection, and returns a fresh SessionId for the caller to key all
	// further operations on.
	Connect(ctx context.Context, cfg model.ConnectionConfig) (model.SessionId, error)

	// Disconnect drains the pool and clears in-flight queries for
	// session, returning only once server resources are released (best
	// effort). Disconnecting an unknown session is a no-op.
	Disconnect(ctx context.Context, session model.SessionId) error

	ListNamespaces(ctx context.Context, session model.SessionId) ([]model.Namespace, error)
	ListCollections(ctx context.Context, session model.SessionId, ns model.Namespace) ([]model.Collection, error)
	DescribeTable(ctx context.Context, session model.SessionId, ns model.Namespace, table string) (model.TableSchema, error)
	PreviewTable(ctx context.Context, session model.SessionId, ns model.Namespace, table string, limit int) (model.QueryResult, error)

	// Execute runs query on session: on the session's active transaction
	// connection if one exists, otherwise on a connection acquired from
	// the pool for the duration of the call. Implementations must record
	// a cancellation handle for queryID before the first server round
	// trip and remove it before returning.
	Execute(ctx context.Context, session model.SessionId, query string, queryID model.QueryId) (model.QueryResult, error)

	InsertRow(ctx context.Context, session model.SessionId, table string, data model.RowData) (model.QueryResult, error)
	UpdateRow(ctx context.Context, session model.SessionId, table string, pk model.RowData, data model.RowData) (model.QueryResult, error)
	DeleteRow(ctx context.Context, session model.SessionId, table string, pk model.RowData) (model.QueryResult, error)

	BeginTransaction(ctx context.Context, session model.SessionId) error
	Commit(ctx context.Context, session model.SessionId) error
	Rollback(ctx context.Context, session model.SessionId) error

	// Cancel cancels queryID if non-zero, or every handle registered for
	// session otherwise.
	Cancel(ctx context.Context, session model.SessionId, queryID model.QueryId) error
}
