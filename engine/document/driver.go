// Package document implements the document-store variant of the Driver
// contract: JSON-shaped query dispatch over a MongoDB-compatible client.
package document

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/qoredb/core/engine"
	"github.com/qoredb/core/model"
)

const (
	// MaxFindResults bounds how many documents find mode ever returns.
	MaxFindResults = 1000

	// SchemaSampleSize bounds how many documents describe_table samples
	// when inferring a shape.
	SchemaSampleSize = 100
)

type session struct {
	client *mongo.Client
	cfg    model.ConnectionConfig
}

// Driver implements engine.Driver for MongoDB-family document stores.
type Driver struct {
	mu       sync.RWMutex
	sessions map[model.SessionId]*session
}

// New returns the Driver implementation for the "mongodb" tag.
func New() *Driver {
	return &Driver{sessions: make(map[model.SessionId]*session)}
}

func (d *Driver) DriverId() string { return "mongodb" }

func (d *Driver) Capabilities() engine.Capabilities {
	return engine.Capabilities{
		SupportsTransactions: false,
		SupportsMutations:    true,
		CancelSupport:        engine.CancelNone,
	}
}

func buildURI(cfg model.ConnectionConfig) string {
	scheme := "mongodb"
	auth := ""
	if cfg.Username != "" {
		auth = cfg.Username + ":" + cfg.Password + "@"
	}
	return fmt.Sprintf("%s://%s%s:%d/%s", scheme, auth, cfg.Host, cfg.Port, cfg.Database)
}

func (d *Driver) dial(ctx context.Context, cfg model.ConnectionConfig) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(buildURI(cfg))
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, model.Wrap(model.KindConnectionFailed, "failed to dial mongodb", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		if ctx.Err() != nil {
			return nil, model.NewTimeout("mongodb ping timed out", 0)
		}
		return nil, model.Wrap(model.KindConnectionFailed, "mongodb ping failed", err)
	}
	return client, nil
}

func (d *Driver) TestConnection(ctx context.Context, cfg model.ConnectionConfig) error {
	client, err := d.dial(ctx, cfg)
	if err != nil {
		return err
	}
	return client.Disconnect(context.Background())
}

func (d *Driver) Connect(ctx context.Context, cfg model.ConnectionConfig) (model.SessionId, error) {
	client, err := d.dial(ctx, cfg)
	if err != nil {
		return model.SessionId{}, err
	}
	id := model.NewSessionId()
	d.mu.Lock()
	d.sessions[id] = &session{client: client, cfg: cfg}
	d.mu.Unlock()
	return id, nil
}

func (d *Driver) Disconnect(ctx context.Context, sessionID model.SessionId) error {
	d.mu.Lock()
	s, ok := d.sessions[sessionID]
	if ok {
		delete(d.sessions, sessionID)
	}
	d.mu.Unlock()
	if !ok {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (d *Driver) session(id model.SessionId) (*session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.sessions[id]
	if !ok {
		return nil, model.NewError(model.KindSessionNotFound, "session not found: "+id.String())
	}
	return s, nil
}

// BeginTransaction, Commit, and Rollback report NotSupported rather than
// pretending: MongoDB session transactions are out of scope for this
// driver.
func (d *Driver) BeginTransaction(ctx context.Context, sessionID model.SessionId) error {
	return model.NewError(model.KindNotSupported, "document driver does not support transactions")
}

func (d *Driver) Commit(ctx context.Context, sessionID model.SessionId) error {
	return model.NewError(model.KindNotSupported, "document driver does not support transactions")
}

func (d *Driver) Rollback(ctx context.Context, sessionID model.SessionId) error {
	return model.NewError(model.KindNotSupported, "document driver does not support transactions")
}

// Cancel is a no-op that still succeeds when the session exists.
func (d *Driver) Cancel(ctx context.Context, sessionID model.SessionId, queryID model.QueryId) error {
	_, err := d.session(sessionID)
	return err
}
