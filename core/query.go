package core

import (
	"context"
	"time"

	"github.com/qoredb/core/model"
	"github.com/qoredb/core/safety"
)

func isDocumentDriver(driverTag string) bool {
	return driverTag == "mongodb"
}

func classify(driverTag, query string) safety.Classification {
	if isDocumentDriver(driverTag) {
		return safety.ClassifyDocument(query)
	}
	return safety.Classify(driverTag, query)
}

// ExecuteQuery runs the policy gate, registers a query handle, and
// delegates to the session's driver. acknowledgedDangerous answers the
// caller's acknowledged_dangerous flag; explicitQueryID, when non-nil,
// is used instead of minting a fresh id (register_with_id semantics);
// timeout, when non-zero, bounds the call beyond ctx's own deadline.
func (c *Core) ExecuteQuery(ctx context.Context, sessionID model.SessionId, queryText string, acknowledgedDangerous bool, explicitQueryID *model.QueryId, timeout time.Duration) (model.QueryResult, model.QueryId, error) {
	drv, sess, err := c.sessions.GetDriver(sessionID)
	if err != nil {
		return model.QueryResult{}, model.QueryId{}, err
	}

	decision := safety.Gate(
		classify(sess.DriverTag, queryText),
		sess.Config.ReadOnly,
		sess.Config.Environment == model.EnvProduction,
		acknowledgedDangerous,
		c.policy.Get(),
	)
	if !decision.Allowed {
		return model.QueryResult{}, model.QueryId{}, model.NewError(model.KindPolicyBlocked, decision.Reason)
	}

	var queryID model.QueryId
	if explicitQueryID != nil {
		if err := c.queries.RegisterWithID(sessionID, *explicitQueryID); err != nil {
			return model.QueryResult{}, model.QueryId{}, err
		}
		queryID = *explicitQueryID
	} else {
		queryID = c.queries.Register(sessionID)
	}
	defer c.queries.Finish(queryID)

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := drv.Execute(ctx, sessionID, queryText, queryID)
	if err != nil {
		if ctx.Err() != nil {
			return model.QueryResult{}, queryID, model.NewTimeout("execute_query timed out", time.Since(start))
		}
		return model.QueryResult{}, queryID, err
	}
	return result, queryID, nil
}

// CancelQuery cancels queryID, or the session's most recently registered
// query when queryID is nil.
func (c *Core) CancelQuery(ctx context.Context, sessionID model.SessionId, queryID *model.QueryId) error {
	drv, _, err := c.sessions.GetDriver(sessionID)
	if err != nil {
		return err
	}

	var target model.QueryId
	if queryID != nil {
		target = *queryID
	} else {
		last, ok := c.queries.LastForSession(sessionID)
		if !ok {
			return model.NewError(model.KindExecutionError, "No active queries to cancel")
		}
		target = last
	}
	return drv.Cancel(ctx, sessionID, target)
}

func (c *Core) ListNamespaces(ctx context.Context, sessionID model.SessionId) ([]model.Namespace, error) {
	drv, _, err := c.sessions.GetDriver(sessionID)
	if err != nil {
		return nil, err
	}
	return drv.ListNamespaces(ctx, sessionID)
}

func (c *Core) ListCollections(ctx context.Context, sessionID model.SessionId, ns model.Namespace) ([]model.Collection, error) {
	drv, _, err := c.sessions.GetDriver(sessionID)
	if err != nil {
		return nil, err
	}
	return drv.ListCollections(ctx, sessionID, ns)
}

func (c *Core) DescribeTable(ctx context.Context, sessionID model.SessionId, ns model.Namespace, table string) (model.TableSchema, error) {
	drv, _, err := c.sessions.GetDriver(sessionID)
	if err != nil {
		return model.TableSchema{}, err
	}
	return drv.DescribeTable(ctx, sessionID, ns, table)
}

func (c *Core) PreviewTable(ctx context.Context, sessionID model.SessionId, ns model.Namespace, table string, limit int) (model.QueryResult, error) {
	drv, _, err := c.sessions.GetDriver(sessionID)
	if err != nil {
		return model.QueryResult{}, err
	}
	return drv.PreviewTable(ctx, sessionID, ns, table, limit)
}

func (c *Core) BeginTransaction(ctx context.Context, sessionID model.SessionId) error {
	drv, _, err := c.sessions.GetDriver(sessionID)
	if err != nil {
		return err
	}
	return drv.BeginTransaction(ctx, sessionID)
}

func (c *Core) CommitTransaction(ctx context.Context, sessionID model.SessionId) error {
	drv, _, err := c.sessions.GetDriver(sessionID)
	if err != nil {
		return err
	}
	return drv.Commit(ctx, sessionID)
}

func (c *Core) RollbackTransaction(ctx context.Context, sessionID model.SessionId) error {
	drv, _, err := c.sessions.GetDriver(sessionID)
	if err != nil {
		return err
	}
	return drv.Rollback(ctx, sessionID)
}

func (c *Core) SupportsTransactions(sessionID model.SessionId) (bool, error) {
	drv, _, err := c.sessions.GetDriver(sessionID)
	if err != nil {
		return false, err
	}
	return drv.Capabilities().SupportsTransactions, nil
}

func (c *Core) InsertRow(ctx context.Context, sessionID model.SessionId, table string, data model.RowData) (model.QueryResult, error) {
	drv, _, err := c.sessions.GetDriver(sessionID)
	if err != nil {
		return model.QueryResult{}, err
	}
	return drv.InsertRow(ctx, sessionID, table, data)
}

func (c *Core) UpdateRow(ctx context.Context, sessionID model.SessionId, table string, pk, data model.RowData) (model.QueryResult, error) {
	drv, _, err := c.sessions.GetDriver(sessionID)
	if err != nil {
		return model.QueryResult{}, err
	}
	return drv.UpdateRow(ctx, sessionID, table, pk, data)
}

func (c *Core) DeleteRow(ctx context.Context, sessionID model.SessionId, table string, pk model.RowData) (model.QueryResult, error) {
	drv, _, err := c.sessions.GetDriver(sessionID)
	if err != nil {
		return model.QueryResult{}, err
	}
	return drv.DeleteRow(ctx, sessionID, table, pk)
}

func (c *Core) SupportsMutations(sessionID model.SessionId) (bool, error) {
	drv, _, err := c.sessions.GetDriver(sessionID)
	if err != nil {
		return false, err
	}
	return drv.Capabilities().SupportsMutations, nil
}
