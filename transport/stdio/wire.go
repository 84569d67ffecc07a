// Package stdio implements the one transport this module ships: a
// newline-delimited JSON-RPC loop over stdin/stdout that exercises every
// operation core.Core exposes, so the whole tree is buildable and
// testable end-to-end without a real UI shell. Every handler here is a
// one-line call into core.Core; no business logic lives in this package.
package stdio

import (
	"github.com/qoredb/core/model"
	"github.com/qoredb/core/safety"
	"github.com/qoredb/core/vault"
)

// connectionConfigWire is the JSON-tagged mirror of model.ConnectionConfig.
// model.ConnectionConfig carries no json tags and is never handed to
// encoding/json directly, since encoding it would emit its Password
// field, which must never serialize outward; this wire type is the one place
// a caller is allowed to hand a plaintext password in, on the way into
// connect/test_connection.
type connectionConfigWire struct {
	DriverTag   string          `json:"driver_tag"`
	Host        string          `json:"host"`
	Port        int             `json:"port"`
	Username    string          `json:"username"`
	Password    string          `json:"password"`
	Database    string          `json:"database,omitempty"`
	SSL         bool            `json:"ssl"`
	Environment string          `json:"environment"`
	ReadOnly    bool            `json:"read_only"`
	Tunnel      *tunnelCfgWire  `json:"tunnel,omitempty"`
}

type sshKeyAuthWire struct {
	PrivateKeyPath string `json:"private_key_path"`
	Passphrase     string `json:"passphrase,omitempty"`
}

type sshPasswordAuthWire struct {
	Password string `json:"password"`
}

type sshAuthWireIn struct {
	Password *sshPasswordAuthWire `json:"Password,omitempty"`
	Key      *sshKeyAuthWire      `json:"Key,omitempty"`
}

type proxyJumpWire struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
}

type tunnelCfgWire struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	Username          string        `json:"username"`
	Auth              sshAuthWireIn `json:"auth"`
	HostKeyPolicy     string        `json:"host_key_policy"`
	KnownHostsPath    string        `json:"known_hosts_path,omitempty"`
	ProxyJump         *proxyJumpWire `json:"proxy_jump,omitempty"`
	ConnectTimeout    int           `json:"connect_timeout_secs"`
	KeepaliveInterval int           `json:"keepalive_interval_secs"`
	KeepaliveCount    int           `json:"keepalive_count_max"`
}

func (w connectionConfigWire) toModel() (model.ConnectionConfig, error) {
	cfg := model.ConnectionConfig{
		DriverTag:   w.DriverTag,
		Host:        w.Host,
		Port:        w.Port,
		Username:    w.Username,
		Password:    w.Password,
		Database:    w.Database,
		SSL:         w.SSL,
		Environment: model.Environment(w.Environment),
		ReadOnly:    w.ReadOnly,
	}
	if w.Tunnel == nil {
		return cfg, nil
	}

	policy, ok := model.ParseHostKeyPolicy(w.Tunnel.HostKeyPolicy)
	if !ok {
		return model.ConnectionConfig{}, model.NewError(model.KindSshError, "unknown host key policy: "+w.Tunnel.HostKeyPolicy)
	}

	tunnel := &model.SshTunnelConfig{
		Host:              w.Tunnel.Host,
		Port:              w.Tunnel.Port,
		Username:          w.Tunnel.Username,
		HostKeyPolicy:     policy,
		KnownHostsPath:    w.Tunnel.KnownHostsPath,
		ConnectTimeout:    w.Tunnel.ConnectTimeout,
		KeepaliveInterval: w.Tunnel.KeepaliveInterval,
		KeepaliveCount:    w.Tunnel.KeepaliveCount,
	}
	if w.Tunnel.ProxyJump != nil {
		tunnel.ProxyJump = &model.ProxyJump{
			Host:     w.Tunnel.ProxyJump.Host,
			Port:     w.Tunnel.ProxyJump.Port,
			Username: w.Tunnel.ProxyJump.Username,
		}
	}

	switch {
	case w.Tunnel.Auth.Key != nil:
		tunnel.Auth = model.SshAuth{IsKey: true, Key: model.SshKeyAuth{
			PrivateKeyPath: w.Tunnel.Auth.Key.PrivateKeyPath,
			Passphrase:     w.Tunnel.Auth.Key.Passphrase,
		}}
	case w.Tunnel.Auth.Password != nil:
		tunnel.Auth = model.SshAuth{IsKey: false, Password: model.SshPasswordAuth{
			Password: w.Tunnel.Auth.Password.Password,
		}}
	default:
		return model.ConnectionConfig{}, model.NewError(model.KindSshError, "tunnel auth must name exactly one of \"Password\" or \"Key\"")
	}
	if err := tunnel.Validate(); err != nil {
		return model.ConnectionConfig{}, err
	}

	cfg.Tunnel = tunnel
	return cfg, nil
}

type namespaceWire struct {
	Database string `json:"database"`
	Schema   string `json:"schema,omitempty"`
}

func (w namespaceWire) toModel() model.Namespace {
	return model.Namespace{Database: w.Database, Schema: w.Schema}
}

func namespaceToWire(ns model.Namespace) namespaceWire {
	return namespaceWire{Database: ns.Database, Schema: ns.Schema}
}

func collectionToWire(c model.Collection) map[string]any {
	return map[string]any{
		"namespace": namespaceToWire(c.Namespace),
		"name":      c.Name,
		"kind":      string(c.Kind),
	}
}

func queryResultToWire(r model.QueryResult) map[string]any {
	return map[string]any{
		"columns":        r.Columns,
		"rows":           r.Rows,
		"affected_count": r.AffectedCount,
		"duration_ms":    r.DurationMs,
	}
}

func tableSchemaToWire(s model.TableSchema) map[string]any {
	return map[string]any{
		"columns":            s.Columns,
		"primary_key":        s.PrimaryKey,
		"row_count_estimate": s.RowCountEstimate,
	}
}

func rowDataFromWire(w map[string]model.Value) model.RowData {
	if w == nil {
		return model.RowData{}
	}
	return model.RowData(w)
}

func policyToWire(p safety.Policy) map[string]any {
	return map[string]any{
		"prod_require_confirmation": p.ProdRequireConfirmation,
		"prod_block_dangerous_sql":  p.ProdBlockDangerousSQL,
	}
}

type savedConnectionWire struct {
	ID          string            `json:"id"`
	ProjectID   string            `json:"project_id"`
	Name        string            `json:"name"`
	DriverTag   string            `json:"driver_tag"`
	Host        string            `json:"host"`
	Port        int               `json:"port"`
	Username    string            `json:"username"`
	Database    string            `json:"database,omitempty"`
	SSL         bool              `json:"ssl"`
	Environment string            `json:"environment"`
	ReadOnly    bool              `json:"read_only"`
	Tunnel      *model.SavedTunnel `json:"tunnel,omitempty"`
}

func (w savedConnectionWire) toModel() model.SavedConnection {
	return model.SavedConnection{
		ID:          model.ConnectionId(w.ID),
		ProjectID:   w.ProjectID,
		Name:        w.Name,
		DriverTag:   w.DriverTag,
		Host:        w.Host,
		Port:        w.Port,
		Username:    w.Username,
		Database:    w.Database,
		SSL:         w.SSL,
		Environment: model.Environment(w.Environment),
		ReadOnly:    w.ReadOnly,
		Tunnel:      w.Tunnel,
	}
}

func savedConnectionFromModel(s model.SavedConnection) savedConnectionWire {
	return savedConnectionWire{
		ID:          string(s.ID),
		ProjectID:   s.ProjectID,
		Name:        s.Name,
		DriverTag:   s.DriverTag,
		Host:        s.Host,
		Port:        s.Port,
		Username:    s.Username,
		Database:    s.Database,
		SSL:         s.SSL,
		Environment: string(s.Environment),
		ReadOnly:    s.ReadOnly,
		Tunnel:      s.Tunnel,
	}
}

type storedCredentialsWire struct {
	Password         string `json:"password"`
	SshPassword      string `json:"ssh_password,omitempty"`
	SshKeyPassphrase string `json:"ssh_key_passphrase,omitempty"`
}

func (w storedCredentialsWire) toVault() vault.StoredCredentials {
	return vault.StoredCredentials{
		Password:         w.Password,
		SshPassword:      w.SshPassword,
		SshKeyPassphrase: w.SshKeyPassphrase,
	}
}
