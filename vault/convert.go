package vault

import (
	"github.com/qoredb/core/model"
)

// ToConnectionConfig converts a saved connection's metadata and
// credentials into the ConnectionConfig a driver can open. Validation:
// key-based tunnel auth requires a private key path, password-based
// tunnel auth requires a stored ssh password, and the host key policy
// string must map onto the known enum.
func ToConnectionConfig(meta model.SavedConnection, creds StoredCredentials) (model.ConnectionConfig, error) {
	cfg := model.ConnectionConfig{
		DriverTag:   meta.DriverTag,
		Host:        meta.Host,
		Port:        meta.Port,
		Username:    meta.Username,
		Password:    creds.Password,
		Database:    meta.Database,
		SSL:         meta.SSL,
		Environment: meta.Environment,
		ReadOnly:    meta.ReadOnly,
	}

	if meta.Tunnel == nil {
		return cfg, nil
	}

	policy, ok := model.ParseHostKeyPolicy(meta.Tunnel.HostKeyPolicy)
	if !ok {
		return model.ConnectionConfig{}, model.NewError(model.KindSshError, "unknown host key policy: "+meta.Tunnel.HostKeyPolicy)
	}

	tunnel := &model.SshTunnelConfig{
		Host:              meta.Tunnel.Host,
		Port:              meta.Tunnel.Port,
		Username:          meta.Tunnel.Username,
		HostKeyPolicy:     policy,
		KnownHostsPath:    meta.Tunnel.KnownHostsPath,
		ProxyJump:         meta.Tunnel.ProxyJump,
		ConnectTimeout:    meta.Tunnel.ConnectTimeout,
		KeepaliveInterval: meta.Tunnel.KeepaliveInterval,
		KeepaliveCount:    meta.Tunnel.KeepaliveCount,
	}

	if meta.Tunnel.AuthIsKey {
		if meta.Tunnel.PrivateKeyPath == "" {
			return model.ConnectionConfig{}, model.NewError(model.KindSshError, "key-based ssh auth requires a private key path")
		}
		tunnel.Auth = model.SshAuth{IsKey: true, Key: model.SshKeyAuth{
			PrivateKeyPath: meta.Tunnel.PrivateKeyPath,
			Passphrase:     creds.SshKeyPassphrase,
		}}
	} else {
		if creds.SshPassword == "" {
			return model.ConnectionConfig{}, model.NewError(model.KindSshError, "password-based ssh auth requires a stored ssh password")
		}
		tunnel.Auth = model.SshAuth{IsKey: false, Password: model.SshPasswordAuth{Password: creds.SshPassword}}
	}

	cfg.Tunnel = tunnel
	return cfg, nil
}
