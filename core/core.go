// Package core wires the Session Manager, Query Manager, SQL Safety
// Classifier, Safety Policy, Vault Lock, and Vault Storage into the
// complete operation surface a transport (stdio, an embedding host)
// dispatches against.
package core

import (
	"context"

	"github.com/qoredb/core/engine"
	"github.com/qoredb/core/internal/corelog"
	"github.com/qoredb/core/internal/corepath"
	"github.com/qoredb/core/model"
	"github.com/qoredb/core/query"
	"github.com/qoredb/core/safety"
	"github.com/qoredb/core/session"
	"github.com/qoredb/core/vault"
)

// Core is the embedded backend: every transport sits on top of exactly
// one of these.
type Core struct {
	registry    *engine.Registry
	sessions    *session.Manager
	queries     *query.Manager
	policy      *safety.Store
	lock        *vault.Lock
	storage     *vault.Storage
	secretStore vault.SecretStore
	log         *corelog.Logger
}

// New builds a Core from its already-constructed components. Use Bootstrap
// to build one with the standard per-user config directory layout.
func New(registry *engine.Registry, sessions *session.Manager, queries *query.Manager, policy *safety.Store, lock *vault.Lock, storage *vault.Storage, secretStore vault.SecretStore, log *corelog.Logger) *Core {
	return &Core{registry: registry, sessions: sessions, queries: queries, policy: policy, lock: lock, storage: storage, secretStore: secretStore, log: log}
}

// Bootstrap builds the registry, preloads the safety policy, constructs
// the vault lock (auto-unlocking if no master password exists), and
// returns a ready-to-use Core, following the startup sequence every
// transport is expected to run exactly once.
func Bootstrap(registry *engine.Registry) (*Core, error) {
	configDir, err := corepath.ConfigDir()
	if err != nil {
		return nil, model.Wrap(model.KindInternal, "failed to resolve config directory", err)
	}
	configPath, err := corepath.ConfigFilePath()
	if err != nil {
		return nil, model.Wrap(model.KindInternal, "failed to resolve config file path", err)
	}
	knownHosts, err := corepath.KnownHostsPath()
	if err != nil {
		return nil, model.Wrap(model.KindInternal, "failed to resolve known_hosts path", err)
	}

	policyStore, err := safety.NewStore(configPath)
	if err != nil {
		return nil, err
	}

	secretStore, err := vault.NewFileSecretStore(configDir)
	if err != nil {
		return nil, model.Wrap(model.KindInternal, "failed to open secret store", err)
	}
	lock, err := vault.NewLock(secretStore)
	if err != nil {
		return nil, err
	}
	storage, err := vault.NewStorage(secretStore, lock)
	if err != nil {
		return nil, err
	}

	log, err := corelog.NewDefault()
	if err != nil {
		return nil, model.Wrap(model.KindInternal, "failed to open log file", err)
	}

	sessions := session.NewManager(registry, knownHosts)
	queries := query.NewManager()

	return New(registry, sessions, queries, policyStore, lock, storage, secretStore, log), nil
}

// Log returns the Core's logger, for a transport that wants to log
// alongside the same daily-rotating file Core itself writes to.
func (c *Core) Log() *corelog.Logger {
	return c.log
}

// Policy returns the current safety policy, for an operator diagnostic
// that wants to print it without going through the stdio transport.
func (c *Core) Policy() safety.Policy {
	return c.policy.Get()
}

// SetPolicy replaces the safety policy, persisting it the same way
// set_safety_policy over the stdio transport would.
func (c *Core) SetPolicy(p safety.Policy) error {
	return c.policy.Set(p)
}

// SessionSummary is list_sessions' element shape.
type SessionSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// TestConnection verifies reachability without opening a session.
func (c *Core) TestConnection(ctx context.Context, cfg model.ConnectionConfig) error {
	return c.sessions.TestConnection(ctx, cfg)
}

// TestSavedConnection loads a saved connection's metadata and
// credentials from the vault and tests it without opening a session.
func (c *Core) TestSavedConnection(ctx context.Context, projectID string, id model.ConnectionId) error {
	cfg, err := c.loadSavedConnection(projectID, id)
	if err != nil {
		return err
	}
	return c.sessions.TestConnection(ctx, cfg)
}

// Connect opens a new session against cfg.
func (c *Core) Connect(ctx context.Context, cfg model.ConnectionConfig) (model.SessionId, error) {
	return c.sessions.Connect(ctx, cfg)
}

// ConnectSavedConnection loads a saved connection and connects it. With
// the vault locked this fails with the fixed "Vault is locked" message
// before any credential is ever read.
func (c *Core) ConnectSavedConnection(ctx context.Context, projectID string, id model.ConnectionId) (model.SessionId, error) {
	cfg, err := c.loadSavedConnection(projectID, id)
	if err != nil {
		return model.SessionId{}, err
	}
	return c.sessions.Connect(ctx, cfg)
}

func (c *Core) loadSavedConnection(projectID string, id model.ConnectionId) (model.ConnectionConfig, error) {
	if !c.lock.IsUnlocked() {
		return model.ConnectionConfig{}, model.NewError(model.KindPolicyBlocked, "Vault is locked")
	}
	meta, err := c.storage.GetMetadata(projectID, id)
	if err != nil {
		return model.ConnectionConfig{}, err
	}
	creds, err := c.storage.GetCredentials(projectID, id)
	if err != nil {
		return model.ConnectionConfig{}, err
	}
	return vault.ToConnectionConfig(meta, creds)
}

// Disconnect closes session.
func (c *Core) Disconnect(ctx context.Context, sessionID model.SessionId) error {
	return c.sessions.Disconnect(ctx, sessionID)
}

// ListSessions returns every open session's id and display name.
func (c *Core) ListSessions() []SessionSummary {
	active := c.sessions.List()
	out := make([]SessionSummary, 0, len(active))
	for _, s := range active {
		out = append(out, SessionSummary{ID: s.ID.String(), DisplayName: s.DisplayName})
	}
	return out
}
