// Package session implements the Session Manager: the single
// authoritative map from SessionId to an ActiveSession, plus the tunnel
// lifecycle and deadline wrapping that sit in front of a driver's own
// connect/disconnect.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qoredb/core/engine"
	"github.com/qoredb/core/model"
	"github.com/qoredb/core/tunnel"
)

const (
	testConnectionDeadline = 10 * time.Second
	connectDeadline        = 15 * time.Second
)

// ActiveSession is the Session Manager's record of one open session.
type ActiveSession struct {
	ID          model.SessionId
	DriverTag   string
	Config      model.ConnectionConfig
	Tunnel      *tunnel.Tunnel
	DisplayName string
}

// Manager owns the SessionId -> ActiveSession map and the registry used
// to resolve a driver tag to a Driver.
type Manager struct {
	registry *engine.Registry

	mu       sync.RWMutex
	sessions map[model.SessionId]*ActiveSession

	knownHostsPath string
}

// NewManager builds an empty session manager backed by registry.
// knownHostsPath is the app-owned ssh known_hosts file used for every
// tunneled session.
func NewManager(registry *engine.Registry, knownHostsPath string) *Manager {
	return &Manager{
		registry:       registry,
		sessions:       make(map[model.SessionId]*ActiveSession),
		knownHostsPath: knownHostsPath,
	}
}

// TestConnection verifies reachability without keeping a session open,
// tearing down any tunnel it opens before returning.
func (m *Manager) TestConnection(ctx context.Context, cfg model.ConnectionConfig) error {
	ctx, cancel := context.WithTimeout(ctx, testConnectionDeadline)
	defer cancel()

	drv, err := m.registry.Get(cfg.DriverTag)
	if err != nil {
		return err
	}

	effectiveCfg, t, err := m.openTunnelIfNeeded(ctx, cfg)
	if err != nil {
		return err
	}
	if t != nil {
		defer t.Close()
	}

	start := time.Now()
	err = drv.TestConnection(ctx, effectiveCfg)
	if err != nil {
		if ctx.Err() != nil {
			return model.NewTimeout("test_connection timed out", time.Since(start))
		}
		return err
	}
	return nil
}

// Connect opens a new session: resolves the driver, opens a tunnel if
// configured, connects the driver, and installs the ActiveSession. If
// the driver connect fails, any tunnel opened for this call is torn
// down before Connect returns.
func (m *Manager) Connect(ctx context.Context, cfg model.ConnectionConfig) (model.SessionId, error) {
	ctx, cancel := context.WithTimeout(ctx, connectDeadline)
	defer cancel()

	drv, err := m.registry.Get(cfg.DriverTag)
	if err != nil {
		return model.SessionId{}, err
	}

	effectiveCfg, t, err := m.openTunnelIfNeeded(ctx, cfg)
	if err != nil {
		return model.SessionId{}, err
	}

	start := time.Now()
	id, err := drv.Connect(ctx, effectiveCfg)
	if err != nil {
		if t != nil {
			t.Close()
		}
		if ctx.Err() != nil {
			return model.SessionId{}, model.NewTimeout("connect timed out", time.Since(start))
		}
		return model.SessionId{}, err
	}

	sess := &ActiveSession{
		ID:          id,
		DriverTag:   cfg.DriverTag,
		Config:      cfg,
		Tunnel:      t,
		DisplayName: displayName(cfg, t != nil),
	}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	return id, nil
}

// openTunnelIfNeeded opens an SSH tunnel for cfg.Tunnel if present and
// returns a rewritten ConnectionConfig pointing at the tunnel's loopback
// address, along with the Tunnel so the caller can tear it down on
// failure or at disconnect. Returns (cfg, nil, nil) when no tunnel is
// configured.
func (m *Manager) openTunnelIfNeeded(ctx context.Context, cfg model.ConnectionConfig) (model.ConnectionConfig, *tunnel.Tunnel, error) {
	if cfg.Tunnel == nil {
		return cfg, nil, nil
	}

	knownHosts := cfg.Tunnel.KnownHostsPath
	if knownHosts == "" {
		knownHosts = m.knownHostsPath
	}

	t, err := tunnel.Open(ctx, *cfg.Tunnel, cfg.Host, cfg.Port, knownHosts)
	if err != nil {
		return model.ConnectionConfig{}, nil, err
	}

	rewritten := cfg
	rewritten.Host = "127.0.0.1"
	rewritten.Port = t.LocalPort()
	return rewritten, t, nil
}

// Disconnect removes the session from the map before touching the
// driver or the tunnel, so no concurrent caller can observe a half-dead
// session.
func (m *Manager) Disconnect(ctx context.Context, id model.SessionId) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}

	drv, err := m.registry.Get(sess.DriverTag)
	if err == nil {
		_ = drv.Disconnect(ctx, id)
	}
	if sess.Tunnel != nil {
		sess.Tunnel.Close()
	}
	return nil
}

// GetDriver is a pure lookup: it never touches the network, so
// read-only callers never serialize behind a writer.
func (m *Manager) GetDriver(id model.SessionId) (engine.Driver, *ActiveSession, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, nil, model.NewError(model.KindSessionNotFound, "session not found: "+id.String())
	}
	drv, err := m.registry.Get(sess.DriverTag)
	if err != nil {
		return nil, nil, err
	}
	return drv, sess, nil
}

// IsReadOnly reports the session's read-only config flag.
func (m *Manager) IsReadOnly(id model.SessionId) (bool, error) {
	_, sess, err := m.GetDriver(id)
	if err != nil {
		return false, err
	}
	return sess.Config.ReadOnly, nil
}

// IsProduction reports whether the session's configured environment is
// production.
func (m *Manager) IsProduction(id model.SessionId) (bool, error) {
	_, sess, err := m.GetDriver(id)
	if err != nil {
		return false, err
	}
	return sess.Config.Environment == model.EnvProduction, nil
}

// List returns a snapshot of every active session.
func (m *Manager) List() []*ActiveSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ActiveSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// displayName builds the "user@host:database[ (SSH)]" convention.
func displayName(cfg model.ConnectionConfig, tunneled bool) string {
	name := fmt.Sprintf("%s@%s:%s", cfg.Username, cfg.Host, cfg.Database)
	if tunneled {
		name += " (SSH)"
	}
	return name
}
