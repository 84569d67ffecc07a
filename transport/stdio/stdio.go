package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/qoredb/core/core"
	"github.com/qoredb/core/internal/corelog"
	"github.com/qoredb/core/model"
	"github.com/qoredb/core/safety"
)

// request is one line of input: an operation name, an opaque id the
// caller chose to correlate the matching response, and op-specific
// params. Transport handlers never throw — every outcome, including a
// malformed request, resolves to a response envelope.
type request struct {
	ID     string          `json:"id"`
	Op     string          `json:"op"`
	Token  string          `json:"token"`
	Params json.RawMessage `json:"params"`
}

// response pairs a request's id with the envelope every operation
// resolves to.
type response struct {
	ID string `json:"id"`
	core.Envelope
}

// Server dispatches newline-delimited JSON requests to a core.Core and
// writes back newline-delimited JSON responses. It holds no business
// logic of its own: every handler below is a one-line call into Core.
type Server struct {
	core *core.Core
	auth *auth
	log  *corelog.Logger
}

// New builds a Server over c. The returned token must be surfaced to
// the companion process out-of-band (stderr, a pipe, a local socket
// handshake) before Run starts consuming stdin, since every request,
// the first included, must carry it.
func New(c *core.Core, log *corelog.Logger) (*Server, string, error) {
	a, err := newAuth()
	if err != nil {
		return nil, "", err
	}
	token, err := a.mint()
	if err != nil {
		return nil, "", err
	}
	return &Server{core: c, auth: a, log: log}, token, nil
}

// Run reads one JSON request per line from r until EOF or ctx is
// cancelled, writing one JSON response per line to w. It never returns
// a transport-level error for a malformed or unauthenticated request:
// those become a failed envelope on the wire.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		resp := s.handleLine(ctx, line)
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("stdio: failed to write response: %w", err)
		}
	}
	return scanner.Err()
}

func (s *Server) handleLine(ctx context.Context, line []byte) response {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		return response{Envelope: core.Err("invalid request: " + err.Error())}
	}
	if !s.auth.verify(req.Token) {
		return response{ID: req.ID, Envelope: core.Err("unauthorized: missing or invalid token")}
	}

	payload, err := s.dispatch(ctx, req.Op, req.Params)
	if s.log != nil {
		if err != nil {
			s.log.Warn("op=%s id=%s failed: %v", req.Op, req.ID, err)
		} else {
			s.log.Debug("op=%s id=%s ok", req.Op, req.ID)
		}
	}
	return response{ID: req.ID, Envelope: core.FromError(payload, err)}
}

func (s *Server) dispatch(ctx context.Context, op string, params json.RawMessage) (any, error) {
	switch op {
	case "test_connection":
		return handleTestConnection(ctx, s.core, params)
	case "test_saved_connection":
		return handleTestSavedConnection(ctx, s.core, params)
	case "connect":
		return handleConnect(ctx, s.core, params)
	case "connect_saved_connection":
		return handleConnectSavedConnection(ctx, s.core, params)
	case "disconnect":
		return handleDisconnect(ctx, s.core, params)
	case "list_sessions":
		return s.core.ListSessions(), nil

	case "execute_query":
		return handleExecuteQuery(ctx, s.core, params)
	case "cancel_query":
		return handleCancelQuery(ctx, s.core, params)
	case "list_namespaces":
		return handleListNamespaces(ctx, s.core, params)
	case "list_collections":
		return handleListCollections(ctx, s.core, params)
	case "describe_table":
		return handleDescribeTable(ctx, s.core, params)
	case "preview_table":
		return handlePreviewTable(ctx, s.core, params)

	case "begin_transaction":
		return handleSessionOnly(ctx, params, s.core.BeginTransaction)
	case "commit_transaction":
		return handleSessionOnly(ctx, params, s.core.CommitTransaction)
	case "rollback_transaction":
		return handleSessionOnly(ctx, params, s.core.RollbackTransaction)
	case "supports_transactions":
		return handleSupportsTransactions(s.core, params)

	case "insert_row":
		return handleInsertRow(ctx, s.core, params)
	case "update_row":
		return handleUpdateRow(ctx, s.core, params)
	case "delete_row":
		return handleDeleteRow(ctx, s.core, params)
	case "supports_mutations":
		return handleSupportsMutations(s.core, params)

	case "get_vault_status":
		return s.core.GetVaultStatus()
	case "setup_master_password":
		return nil, handleWithStringField(params, "password", s.core.SetupMasterPassword)
	case "unlock_vault":
		return handleUnlockVault(s.core, params)
	case "lock_vault":
		s.core.LockVault()
		return nil, nil
	case "save_connection":
		return handleSaveConnection(s.core, params)
	case "list_saved_connections":
		return handleListSavedConnections(s.core, params)
	case "delete_saved_connection":
		return handleDeleteSavedConnection(s.core, params)

	case "get_safety_policy":
		return policyToWire(s.core.Policy()), nil
	case "set_safety_policy":
		return handleSetSafetyPolicy(s.core, params)

	default:
		return nil, model.NewError(model.KindNotSupported, "unknown operation: "+op)
	}
}

func decodeParams(params json.RawMessage, v any) error {
	if len(params) == 0 {
		return model.NewError(model.KindInternal, "missing params")
	}
	if err := json.Unmarshal(params, v); err != nil {
		return model.Wrap(model.KindInternal, "invalid params", err)
	}
	return nil
}

func handleTestConnection(ctx context.Context, c *core.Core, params json.RawMessage) (any, error) {
	var w connectionConfigWire
	if err := decodeParams(params, &w); err != nil {
		return nil, err
	}
	cfg, err := w.toModel()
	if err != nil {
		return nil, err
	}
	if err := c.TestConnection(ctx, cfg); err != nil {
		return nil, err
	}
	return nil, nil
}

type savedRef struct {
	ProjectID string `json:"project_id"`
	ID        string `json:"id"`
}

func handleTestSavedConnection(ctx context.Context, c *core.Core, params json.RawMessage) (any, error) {
	var ref savedRef
	if err := decodeParams(params, &ref); err != nil {
		return nil, err
	}
	if err := c.TestSavedConnection(ctx, ref.ProjectID, model.ConnectionId(ref.ID)); err != nil {
		return nil, err
	}
	return nil, nil
}

func handleConnect(ctx context.Context, c *core.Core, params json.RawMessage) (any, error) {
	var w connectionConfigWire
	if err := decodeParams(params, &w); err != nil {
		return nil, err
	}
	cfg, err := w.toModel()
	if err != nil {
		return nil, err
	}
	id, err := c.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return map[string]string{"session_id": id.String()}, nil
}

func handleConnectSavedConnection(ctx context.Context, c *core.Core, params json.RawMessage) (any, error) {
	var ref savedRef
	if err := decodeParams(params, &ref); err != nil {
		return nil, err
	}
	id, err := c.ConnectSavedConnection(ctx, ref.ProjectID, model.ConnectionId(ref.ID))
	if err != nil {
		return nil, err
	}
	return map[string]string{"session_id": id.String()}, nil
}

type sessionRef struct {
	SessionID string `json:"session_id"`
}

func parseSessionRef(params json.RawMessage) (model.SessionId, error) {
	var ref sessionRef
	if err := decodeParams(params, &ref); err != nil {
		return model.SessionId{}, err
	}
	id, err := model.ParseSessionId(ref.SessionID)
	if err != nil {
		return model.SessionId{}, model.Wrap(model.KindInternal, "invalid session_id", err)
	}
	return id, nil
}

func handleDisconnect(ctx context.Context, c *core.Core, params json.RawMessage) (any, error) {
	id, err := parseSessionRef(params)
	if err != nil {
		return nil, err
	}
	return nil, c.Disconnect(ctx, id)
}

func handleSessionOnly(ctx context.Context, params json.RawMessage, fn func(context.Context, model.SessionId) error) (any, error) {
	id, err := parseSessionRef(params)
	if err != nil {
		return nil, err
	}
	return nil, fn(ctx, id)
}

type executeQueryRequest struct {
	SessionID             string `json:"session_id"`
	Query                  string `json:"query"`
	AcknowledgedDangerous  bool   `json:"acknowledged_dangerous,omitempty"`
	QueryID                string `json:"query_id,omitempty"`
	TimeoutMs              int64  `json:"timeout_ms,omitempty"`
}

func handleExecuteQuery(ctx context.Context, c *core.Core, params json.RawMessage) (any, error) {
	var req executeQueryRequest
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	sessionID, err := model.ParseSessionId(req.SessionID)
	if err != nil {
		return nil, model.Wrap(model.KindInternal, "invalid session_id", err)
	}

	var explicitID *model.QueryId
	if req.QueryID != "" {
		qid, err := model.ParseQueryId(req.QueryID)
		if err != nil {
			return nil, model.Wrap(model.KindInternal, "invalid query_id", err)
		}
		explicitID = &qid
	}

	var timeout time.Duration
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}

	result, queryID, err := c.ExecuteQuery(ctx, sessionID, req.Query, req.AcknowledgedDangerous, explicitID, timeout)
	out := map[string]any{"query_id": queryID.String()}
	for k, v := range queryResultToWire(result) {
		out[k] = v
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

type cancelQueryRequest struct {
	SessionID string `json:"session_id"`
	QueryID   string `json:"query_id,omitempty"`
}

func handleCancelQuery(ctx context.Context, c *core.Core, params json.RawMessage) (any, error) {
	var req cancelQueryRequest
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	sessionID, err := model.ParseSessionId(req.SessionID)
	if err != nil {
		return nil, model.Wrap(model.KindInternal, "invalid session_id", err)
	}
	var target *model.QueryId
	if req.QueryID != "" {
		qid, err := model.ParseQueryId(req.QueryID)
		if err != nil {
			return nil, model.Wrap(model.KindInternal, "invalid query_id", err)
		}
		target = &qid
	}
	return nil, c.CancelQuery(ctx, sessionID, target)
}

func handleListNamespaces(ctx context.Context, c *core.Core, params json.RawMessage) (any, error) {
	id, err := parseSessionRef(params)
	if err != nil {
		return nil, err
	}
	namespaces, err := c.ListNamespaces(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]namespaceWire, len(namespaces))
	for i, ns := range namespaces {
		out[i] = namespaceToWire(ns)
	}
	return map[string]any{"namespaces": out}, nil
}

type namespaceRequest struct {
	SessionID string        `json:"session_id"`
	Namespace namespaceWire `json:"namespace"`
}

func handleListCollections(ctx context.Context, c *core.Core, params json.RawMessage) (any, error) {
	var req namespaceRequest
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	id, err := model.ParseSessionId(req.SessionID)
	if err != nil {
		return nil, model.Wrap(model.KindInternal, "invalid session_id", err)
	}
	collections, err := c.ListCollections(ctx, id, req.Namespace.toModel())
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(collections))
	for i, col := range collections {
		out[i] = collectionToWire(col)
	}
	return map[string]any{"collections": out}, nil
}

type tableRequest struct {
	SessionID string        `json:"session_id"`
	Namespace namespaceWire `json:"namespace"`
	Table     string        `json:"table"`
	Limit     int           `json:"limit,omitempty"`
}

func handleDescribeTable(ctx context.Context, c *core.Core, params json.RawMessage) (any, error) {
	var req tableRequest
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	id, err := model.ParseSessionId(req.SessionID)
	if err != nil {
		return nil, model.Wrap(model.KindInternal, "invalid session_id", err)
	}
	schema, err := c.DescribeTable(ctx, id, req.Namespace.toModel(), req.Table)
	if err != nil {
		return nil, err
	}
	return tableSchemaToWire(schema), nil
}

func handlePreviewTable(ctx context.Context, c *core.Core, params json.RawMessage) (any, error) {
	var req tableRequest
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	id, err := model.ParseSessionId(req.SessionID)
	if err != nil {
		return nil, model.Wrap(model.KindInternal, "invalid session_id", err)
	}
	result, err := c.PreviewTable(ctx, id, req.Namespace.toModel(), req.Table, req.Limit)
	if err != nil {
		return nil, err
	}
	return queryResultToWire(result), nil
}

func handleSupportsTransactions(c *core.Core, params json.RawMessage) (any, error) {
	id, err := parseSessionRef(params)
	if err != nil {
		return nil, err
	}
	supported, err := c.SupportsTransactions(id)
	if err != nil {
		return nil, err
	}
	return map[string]bool{"supported": supported}, nil
}

func handleSupportsMutations(c *core.Core, params json.RawMessage) (any, error) {
	id, err := parseSessionRef(params)
	if err != nil {
		return nil, err
	}
	supported, err := c.SupportsMutations(id)
	if err != nil {
		return nil, err
	}
	return map[string]bool{"supported": supported}, nil
}

type rowRequest struct {
	SessionID string                   `json:"session_id"`
	Table     string                   `json:"table"`
	PK        map[string]model.Value   `json:"pk,omitempty"`
	Data      map[string]model.Value   `json:"data,omitempty"`
}

func handleInsertRow(ctx context.Context, c *core.Core, params json.RawMessage) (any, error) {
	var req rowRequest
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	id, err := model.ParseSessionId(req.SessionID)
	if err != nil {
		return nil, model.Wrap(model.KindInternal, "invalid session_id", err)
	}
	result, err := c.InsertRow(ctx, id, req.Table, rowDataFromWire(req.Data))
	if err != nil {
		return nil, err
	}
	return queryResultToWire(result), nil
}

func handleUpdateRow(ctx context.Context, c *core.Core, params json.RawMessage) (any, error) {
	var req rowRequest
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	id, err := model.ParseSessionId(req.SessionID)
	if err != nil {
		return nil, model.Wrap(model.KindInternal, "invalid session_id", err)
	}
	result, err := c.UpdateRow(ctx, id, req.Table, rowDataFromWire(req.PK), rowDataFromWire(req.Data))
	if err != nil {
		return nil, err
	}
	return queryResultToWire(result), nil
}

func handleDeleteRow(ctx context.Context, c *core.Core, params json.RawMessage) (any, error) {
	var req rowRequest
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	id, err := model.ParseSessionId(req.SessionID)
	if err != nil {
		return nil, model.Wrap(model.KindInternal, "invalid session_id", err)
	}
	result, err := c.DeleteRow(ctx, id, req.Table, rowDataFromWire(req.PK))
	if err != nil {
		return nil, err
	}
	return queryResultToWire(result), nil
}

func handleWithStringField(params json.RawMessage, field string, fn func(string) error) error {
	var m map[string]string
	if err := decodeParams(params, &m); err != nil {
		return err
	}
	return fn(m[field])
}

func handleUnlockVault(c *core.Core, params json.RawMessage) (any, error) {
	var m map[string]string
	if err := decodeParams(params, &m); err != nil {
		return nil, err
	}
	ok, err := c.UnlockVault(m["password"])
	if err != nil {
		return nil, err
	}
	return map[string]bool{"unlocked": ok}, nil
}

type saveConnectionRequest struct {
	Metadata    savedConnectionWire   `json:"metadata"`
	Credentials storedCredentialsWire `json:"credentials"`
}

func handleSaveConnection(c *core.Core, params json.RawMessage) (any, error) {
	var req saveConnectionRequest
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	if err := c.SaveConnection(req.Metadata.toModel(), req.Credentials.toVault()); err != nil {
		return nil, err
	}
	return nil, nil
}

func handleListSavedConnections(c *core.Core, params json.RawMessage) (any, error) {
	var m map[string]string
	if err := decodeParams(params, &m); err != nil {
		return nil, err
	}
	conns, err := c.ListSavedConnections(m["project_id"])
	if err != nil {
		return nil, err
	}
	out := make([]savedConnectionWire, len(conns))
	for i, sc := range conns {
		out[i] = savedConnectionFromModel(sc)
	}
	return map[string]any{"connections": out}, nil
}

func handleDeleteSavedConnection(c *core.Core, params json.RawMessage) (any, error) {
	var ref savedRef
	if err := decodeParams(params, &ref); err != nil {
		return nil, err
	}
	return nil, c.DeleteSavedConnection(ref.ProjectID, model.ConnectionId(ref.ID))
}

type setSafetyPolicyRequest struct {
	ProdRequireConfirmation bool `json:"prod_require_confirmation"`
	ProdBlockDangerousSQL   bool `json:"prod_block_dangerous_sql"`
}

func handleSetSafetyPolicy(c *core.Core, params json.RawMessage) (any, error) {
	var req setSafetyPolicyRequest
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	p := safety.Policy{
		ProdRequireConfirmation: req.ProdRequireConfirmation,
		ProdBlockDangerousSQL:   req.ProdBlockDangerousSQL,
	}
	if err := c.SetPolicy(p); err != nil {
		return nil, err
	}
	return policyToWire(p), nil
}
