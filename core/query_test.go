package core

import (
	"context"
	"errors"
	"testing"

	"github.com/qoredb/core/engine"
	"github.com/qoredb/core/model"
	"github.com/qoredb/core/query"
	"github.com/qoredb/core/safety"
	"github.com/qoredb/core/session"
	"github.com/qoredb/core/vault"
)

type fakeDriver struct {
	tag         string
	executed    []string
	cancelled   []model.QueryId
	executeErr  error
}

func (f *fakeDriver) DriverId() string { return f.tag }
func (f *fakeDriver) Capabilities() engine.Capabilities {
	return engine.Capabilities{SupportsTransactions: true, SupportsMutations: true, CancelSupport: engine.CancelServerSide}
}
func (f *fakeDriver) TestConnection(ctx context.Context, cfg model.ConnectionConfig) error {
	return nil
}
func (f *fakeDriver) Connect(ctx context.Context, cfg model.ConnectionConfig) (model.SessionId, error) {
	return model.NewSessionId(), nil
}
func (f *fakeDriver) Disconnect(ctx context.Context, session model.SessionId) error { return nil }
func (f *fakeDriver) ListNamespaces(ctx context.Context, session model.SessionId) ([]model.Namespace, error) {
	return nil, nil
}
func (f *fakeDriver) ListCollections(ctx context.Context, session model.SessionId, ns model.Namespace) ([]model.Collection, error) {
	return nil, nil
}
func (f *fakeDriver) DescribeTable(ctx context.Context, session model.SessionId, ns model.Namespace, table string) (model.TableSchema, error) {
	return model.TableSchema{}, nil
}
func (f *fakeDriver) PreviewTable(ctx context.Context, session model.SessionId, ns model.Namespace, table string, limit int) (model.QueryResult, error) {
	return model.QueryResult{}, nil
}
func (f *fakeDriver) Execute(ctx context.Context, session model.SessionId, queryText string, queryID model.QueryId) (model.QueryResult, error) {
	f.executed = append(f.executed, queryText)
	if f.executeErr != nil {
		return model.QueryResult{}, f.executeErr
	}
	return model.QueryResult{}, nil
}
func (f *fakeDriver) InsertRow(ctx context.Context, session model.SessionId, table string, data model.RowData) (model.QueryResult, error) {
	return model.QueryResult{}, nil
}
func (f *fakeDriver) UpdateRow(ctx context.Context, session model.SessionId, table string, pk, data model.RowData) (model.QueryResult, error) {
	return model.QueryResult{}, nil
}
func (f *fakeDriver) DeleteRow(ctx context.Context, session model.SessionId, table string, pk model.RowData) (model.QueryResult, error) {
	return model.QueryResult{}, nil
}
func (f *fakeDriver) BeginTransaction(ctx context.Context, session model.SessionId) error { return nil }
func (f *fakeDriver) Commit(ctx context.Context, session model.SessionId) error           { return nil }
func (f *fakeDriver) Rollback(ctx context.Context, session model.SessionId) error         { return nil }
func (f *fakeDriver) Cancel(ctx context.Context, session model.SessionId, queryID model.QueryId) error {
	f.cancelled = append(f.cancelled, queryID)
	return nil
}

// newTestCore builds a Core wired to a single fake driver, entirely
// under a scratch directory so vault/policy state never touches a real
// per-user config directory.
func newTestCore(t *testing.T, drv engine.Driver, policy safety.Policy) (*Core, model.SessionId) {
	t.Helper()
	dir := t.TempDir()

	reg := engine.NewRegistry()
	reg.Register(drv)

	policyStore, err := safety.NewStore(dir + "/config.json")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := policyStore.Set(policy); err != nil {
		t.Fatalf("Set policy: %v", err)
	}

	secretStore, err := vault.NewFileSecretStore(dir)
	if err != nil {
		t.Fatalf("NewFileSecretStore: %v", err)
	}
	lock, err := vault.NewLock(secretStore)
	if err != nil {
		t.Fatalf("NewLock: %v", err)
	}
	storage, err := vault.NewStorage(secretStore, lock)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}

	sessions := session.NewManager(reg, dir+"/known_hosts")
	queries := query.NewManager()

	c := New(reg, sessions, queries, policyStore, lock, storage, secretStore, nil)

	id, err := c.Connect(context.Background(), model.ConnectionConfig{
		DriverTag: drv.DriverId(), Host: "db", Username: "alice", Database: "app",
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return c, id
}

func TestExecuteQuery_AllowsReadOnlySelect(t *testing.T) {
	drv := &fakeDriver{tag: "postgres"}
	c, id := newTestCore(t, drv, safety.DefaultPolicy())

	_, queryID, err := c.ExecuteQuery(context.Background(), id, "SELECT 1", false, nil, 0)
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if queryID.IsZero() {
		t.Fatal("expected a non-zero query id")
	}
	if len(drv.executed) != 1 || drv.executed[0] != "SELECT 1" {
		t.Fatalf("expected the driver to receive the query text, got %v", drv.executed)
	}
}

func TestExecuteQuery_BlocksDangerousStatementOnProductionWithoutAcknowledgement(t *testing.T) {
	drv := &fakeDriver{tag: "postgres"}
	dir := t.TempDir()
	reg := engine.NewRegistry()
	reg.Register(drv)
	policyStore, err := safety.NewStore(dir + "/config.json")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	secretStore, err := vault.NewFileSecretStore(dir)
	if err != nil {
		t.Fatalf("NewFileSecretStore: %v", err)
	}
	lock, err := vault.NewLock(secretStore)
	if err != nil {
		t.Fatalf("NewLock: %v", err)
	}
	storage, err := vault.NewStorage(secretStore, lock)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	sessions := session.NewManager(reg, dir+"/known_hosts")
	c := New(reg, sessions, query.NewManager(), policyStore, lock, storage, secretStore, nil)

	id, err := c.Connect(context.Background(), model.ConnectionConfig{
		DriverTag: "postgres", Host: "db", Username: "alice", Database: "app",
		Environment: model.EnvProduction,
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	_, _, err = c.ExecuteQuery(context.Background(), id, "DROP TABLE users", false, nil, 0)
	if model.KindOf(err) != model.KindPolicyBlocked {
		t.Fatalf("expected PolicyBlocked, got %v", err)
	}
	if len(drv.executed) != 0 {
		t.Fatalf("driver should never have been called, got %v", drv.executed)
	}
}

func TestExecuteQuery_UnknownSession(t *testing.T) {
	drv := &fakeDriver{tag: "postgres"}
	c, _ := newTestCore(t, drv, safety.DefaultPolicy())

	_, _, err := c.ExecuteQuery(context.Background(), model.NewSessionId(), "SELECT 1", false, nil, 0)
	if model.KindOf(err) != model.KindSessionNotFound {
		t.Fatalf("expected SessionNotFound, got %v", err)
	}
}

func TestCancelQuery_ImplicitLastQuery(t *testing.T) {
	drv := &fakeDriver{tag: "postgres"}
	c, id := newTestCore(t, drv, safety.DefaultPolicy())

	// Two live handles on the session: a query that has already returned
	// from ExecuteQuery is finished and no longer cancellable.
	first := c.queries.Register(id)
	second := c.queries.Register(id)

	if err := c.CancelQuery(context.Background(), id, nil); err != nil {
		t.Fatalf("CancelQuery: %v", err)
	}
	if len(drv.cancelled) != 1 || drv.cancelled[0] != second {
		t.Fatalf("expected the most recent query id to be cancelled, got %v want %v (not %v)", drv.cancelled, second, first)
	}
}

func TestCancelQuery_NoQueryToCancel(t *testing.T) {
	drv := &fakeDriver{tag: "postgres"}
	c, id := newTestCore(t, drv, safety.DefaultPolicy())

	err := c.CancelQuery(context.Background(), id, nil)
	var ce *model.CoreError
	if !errors.As(err, &ce) {
		t.Fatalf("expected a *model.CoreError, got %v", err)
	}
	if ce.Kind != model.KindExecutionError {
		t.Fatalf("expected ExecutionError, got %v", ce.Kind)
	}
	if ce.Message != "No active queries to cancel" {
		t.Fatalf("expected the spec's literal message, got %q", ce.Message)
	}
}

func TestSupportsTransactionsAndMutations(t *testing.T) {
	drv := &fakeDriver{tag: "postgres"}
	c, id := newTestCore(t, drv, safety.DefaultPolicy())

	tx, err := c.SupportsTransactions(id)
	if err != nil || !tx {
		t.Fatalf("SupportsTransactions = %v, %v", tx, err)
	}
	mut, err := c.SupportsMutations(id)
	if err != nil || !mut {
		t.Fatalf("SupportsMutations = %v, %v", mut, err)
	}
}
