package relational

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/qoredb/core/engine"
	"github.com/qoredb/core/model"
)

const (
	// DefaultPoolSize bounds each session's own connection pool.
	DefaultPoolSize = 5

	// DefaultAcquireTimeout bounds how long execute waits for a pool
	// connection when no transaction is active on the session.
	DefaultAcquireTimeout = 5 * time.Second
)

// Base implements engine.Driver for any relational.Dialect. MySQLDriver
// and PostgresDriver are thin wrappers that supply a Dialect and embed
// *Base.
type Base struct {
	dialect        Dialect
	acquireTimeout time.Duration
	poolSize       int

	mu       sync.RWMutex
	sessions map[model.SessionId]*sessionState
}

// NewBase constructs the shared relational driver machinery for dialect.
func NewBase(dialect Dialect) *Base {
	return &Base{
		dialect:        dialect,
		acquireTimeout: DefaultAcquireTimeout,
		poolSize:       DefaultPoolSize,
		sessions:       make(map[model.SessionId]*sessionState),
	}
}

func (b *Base) DriverId() string { return b.dialect.DriverId() }

func (b *Base) Capabilities() engine.Capabilities {
	return engine.Capabilities{
		SupportsTransactions: true,
		SupportsMutations:    true,
		CancelSupport:        engine.CancelServerSide,
	}
}

func (b *Base) session(id model.SessionId) (*sessionState, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st, ok := b.sessions[id]
	if !ok {
		return nil, model.NewError(model.KindSessionNotFound, "session not found: "+id.String())
	}
	return st, nil
}

func (b *Base) openPool(cfg model.ConnectionConfig) (*sql.DB, error) {
	dsn, err := b.dialect.BuildDSN(cfg)
	if err != nil {
		return nil, model.Wrap(model.KindConnectionFailed, "invalid connection config", err)
	}
	db, err := sql.Open(b.dialect.SQLDriverName(), dsn)
	if err != nil {
		return nil, model.Wrap(model.KindConnectionFailed, "failed to open connection", err)
	}
	db.SetMaxOpenConns(b.poolSize)
	db.SetMaxIdleConns(b.poolSize)
	return db, nil
}

// TestConnection succeeds iff at least one round trip succeeds, and
// releases every resource before returning.
func (b *Base) TestConnection(ctx context.Context, cfg model.ConnectionConfig) error {
	db, err := b.openPool(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		if ctx.Err() != nil {
			return model.NewTimeout("test_connection timed out", 0)
		}
		return model.Wrap(model.KindConnectionFailed, "ping failed", err)
	}
	return nil
}

// Connect warms the pool to at least one connection and registers a new
// session keyed by a fresh SessionId.
func (b *Base) Connect(ctx context.Context, cfg model.ConnectionConfig) (model.SessionId, error) {
	db, err := b.openPool(cfg)
	if err != nil {
		return model.SessionId{}, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		if ctx.Err() != nil {
			return model.SessionId{}, model.NewTimeout("connect timed out", 0)
		}
		return model.SessionId{}, model.Wrap(model.KindConnectionFailed, "ping failed", err)
	}

	id := model.NewSessionId()
	st := newSessionState(db, cfg)

	b.mu.Lock()
	b.sessions[id] = st
	b.mu.Unlock()

	return id, nil
}

// Disconnect drains the pool and clears in-flight queries for session.
// Disconnecting an unknown session is a no-op.
func (b *Base) Disconnect(ctx context.Context, session model.SessionId) error {
	b.mu.Lock()
	st, ok := b.sessions[session]
	if ok {
		delete(b.sessions, session)
	}
	b.mu.Unlock()
	if !ok {
		return nil
	}

	st.txMu.Lock()
	if st.txConn != nil {
		st.txConn.Close()
		st.txConn = nil
	}
	st.txMu.Unlock()

	st.queriesMu.Lock()
	st.activeQueries = nil
	st.queriesMu.Unlock()

	return st.pool.Close()
}

// acquireConn returns the connection execute should run on: the
// session's transaction connection if one is active (txMu stays held
// until release is called, serializing concurrent executes against it),
// or a fresh pool connection bound by the acquire timeout.
func (b *Base) acquireConn(ctx context.Context, st *sessionState) (conn *sql.Conn, release func(), usingTx bool, err error) {
	st.txMu.Lock()
	if st.txConn != nil {
		return st.txConn, st.txMu.Unlock, true, nil
	}
	st.txMu.Unlock()

	acquireCtx, cancel := context.WithTimeout(ctx, b.acquireTimeout)
	defer cancel()
	conn, err = st.pool.Conn(acquireCtx)
	if err != nil {
		if acquireCtx.Err() != nil {
			return nil, nil, false, model.NewTimeout("timed out acquiring a pool connection", b.acquireTimeout)
		}
		return nil, nil, false, model.Wrap(model.KindConnectionFailed, "failed to acquire pool connection", err)
	}
	return conn, func() { conn.Close() }, false, nil
}

var rowReturningKeywords = []string{"SELECT", "WITH", "SHOW", "EXPLAIN", "DESCRIBE"}

// isRowReturning heuristically classifies query by its leading keyword,
// choosing between a fetch-all path and an execute-and-count path.
func isRowReturning(query string) bool {
	trimmed := strings.TrimSpace(query)
	upper := strings.ToUpper(trimmed)
	for _, kw := range rowReturningKeywords {
		if strings.HasPrefix(upper, kw) {
			return true
		}
	}
	return false
}

func (b *Base) fetchRows(ctx context.Context, runner interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}, stmt string, args []any) (model.QueryResult, error) {
	start := time.Now()
	rows, err := runner.QueryContext(ctx, stmt, args...)
	if err != nil {
		return model.QueryResult{}, classifyExecError(ctx, err)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return model.QueryResult{}, model.Wrap(model.KindExecutionError, "failed to read column metadata", err)
	}
	columns := make([]model.Column, len(colTypes))
	for i, ct := range colTypes {
		nullable, _ := ct.Nullable()
		columns[i] = model.Column{Name: ct.Name(), DataType: ct.DatabaseTypeName(), Nullable: nullable}
	}

	var result []model.Row
	for rows.Next() {
		raw := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return model.QueryResult{}, model.Wrap(model.KindExecutionError, "row scan failed", err)
		}
		row := make(model.Row, len(columns))
		for i, v := range raw {
			row[i] = convertScanned(v)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return model.QueryResult{}, model.Wrap(model.KindExecutionError, "row iteration failed", err)
	}

	return model.QueryResult{
		Columns:    columns,
		Rows:       result,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

func (b *Base) execAndCount(ctx context.Context, runner interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, stmt string, args []any) (model.QueryResult, error) {
	start := time.Now()
	res, err := runner.ExecContext(ctx, stmt, args...)
	if err != nil {
		return model.QueryResult{}, classifyExecError(ctx, err)
	}
	n, _ := res.RowsAffected()
	return model.QueryResult{AffectedCount: &n, DurationMs: time.Since(start).Milliseconds()}, nil
}

func classifyExecError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return model.NewTimeout("statement timed out", 0)
	}
	if isSyntaxError(err) {
		return model.Wrap(model.KindSyntaxError, "server reported a SQL syntax error", err)
	}
	return model.Wrap(model.KindExecutionError, "statement execution failed", err)
}

// execWithArgs runs a statement generated by the mutation helpers: never
// row-returning, always exec-and-count.
func (b *Base) execWithArgs(ctx context.Context, st *sessionState, stmt string, args []any) (model.QueryResult, error) {
	conn, release, _, err := b.acquireConn(ctx, st)
	if err != nil {
		return model.QueryResult{}, err
	}
	defer release()
	return b.execAndCount(ctx, conn, stmt, args)
}

// Execute runs an ad-hoc query, recording a server-side cancellation
// handle before the first round trip and clearing it on return,
// regardless of outcome.
func (b *Base) Execute(ctx context.Context, session model.SessionId, query string, queryID model.QueryId) (model.QueryResult, error) {
	st, err := b.session(session)
	if err != nil {
		return model.QueryResult{}, err
	}

	conn, release, _, err := b.acquireConn(ctx, st)
	if err != nil {
		return model.QueryResult{}, err
	}
	defer release()

	var backendID int64
	if err := conn.QueryRowContext(ctx, b.dialect.CaptureBackendIDStmt()).Scan(&backendID); err == nil {
		st.registerQuery(queryID, backendID)
		defer st.finishQuery(queryID)
	}

	if isRowReturning(query) {
		return b.fetchRows(ctx, conn, query, nil)
	}
	return b.execAndCount(ctx, conn, query, nil)
}

// BeginTransaction starts a dedicated transaction connection for
// session. A second call while one is active fails with TransactionConflict.
func (b *Base) BeginTransaction(ctx context.Context, session model.SessionId) error {
	st, err := b.session(session)
	if err != nil {
		return err
	}

	st.txMu.Lock()
	defer st.txMu.Unlock()
	if st.txConn != nil {
		return model.NewError(model.KindTransactionError, "TransactionConflict: a transaction is already active on this session")
	}

	conn, err := st.pool.Conn(ctx)
	if err != nil {
		return model.Wrap(model.KindConnectionFailed, "failed to open transaction connection", err)
	}
	if _, err := conn.ExecContext(ctx, "BEGIN"); err != nil {
		conn.Close()
		return model.Wrap(model.KindTransactionError, "failed to begin transaction", err)
	}
	st.txConn = conn
	return nil
}

func (b *Base) endTransaction(ctx context.Context, session model.SessionId, stmt string) error {
	st, err := b.session(session)
	if err != nil {
		return err
	}

	st.txMu.Lock()
	defer st.txMu.Unlock()
	if st.txConn == nil {
		return model.NewError(model.KindTransactionError, "NoActiveTransaction: no transaction is active on this session")
	}

	_, execErr := st.txConn.ExecContext(ctx, stmt)
	closeErr := st.txConn.Close()
	st.txConn = nil

	if execErr != nil {
		return model.Wrap(model.KindTransactionError, fmt.Sprintf("failed to %s transaction", strings.ToLower(stmt)), execErr)
	}
	if closeErr != nil {
		return model.Wrap(model.KindTransactionError, "failed to release transaction connection", closeErr)
	}
	return nil
}

func (b *Base) Commit(ctx context.Context, session model.SessionId) error {
	return b.endTransaction(ctx, session, "COMMIT")
}

func (b *Base) Rollback(ctx context.Context, session model.SessionId) error {
	return b.endTransaction(ctx, session, "ROLLBACK")
}

// Cancel never acquires txMu: it only reads activeQueries (its own
// mutex) and borrows a fresh pool connection, so it can never block
// behind an in-flight execute holding the transaction connection.
func (b *Base) Cancel(ctx context.Context, session model.SessionId, queryID model.QueryId) error {
	st, err := b.session(session)
	if err != nil {
		return err
	}

	var targets []model.QueryId
	if !queryID.IsZero() {
		if _, ok := st.lookupQuery(queryID); !ok {
			return model.NewError(model.KindExecutionError, "Query not found")
		}
		targets = []model.QueryId{queryID}
	} else {
		targets = st.allQueryIDs()
		if len(targets) == 0 {
			return model.NewError(model.KindExecutionError, "No active queries to cancel")
		}
	}

	conn, err := st.pool.Conn(ctx)
	if err != nil {
		return model.Wrap(model.KindConnectionFailed, "failed to open cancellation connection", err)
	}
	defer conn.Close()

	for _, id := range targets {
		aq, ok := st.lookupQuery(id)
		if !ok {
			continue
		}
		stmt, args := b.dialect.CancelStmt(aq.backendID)
		if _, err := conn.ExecContext(ctx, stmt, args...); err != nil {
			return model.Wrap(model.KindExecutionError, "cancel statement failed", err)
		}
		st.finishQuery(id)
	}
	return nil
}
