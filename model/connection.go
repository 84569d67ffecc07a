package model

import (
	"encoding/json"
	"fmt"
)

// Environment is where an operator says a connection lives. Production
// sessions are the only ones the Safety Policy's dangerous-statement
// rules apply to.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// HostKeyPolicy controls how the Tunnel Manager verifies the remote SSH
// host key.
type HostKeyPolicy string

const (
	HostKeyAcceptNew HostKeyPolicy = "accept-new"
	HostKeyStrict    HostKeyPolicy = "strict"
	HostKeyInsecure  HostKeyPolicy = "insecure"
)

// ParseHostKeyPolicy maps a persisted/external string 1:1 onto the enum,
// rejecting anything else.
func ParseHostKeyPolicy(s string) (HostKeyPolicy, bool) {
	switch HostKeyPolicy(s) {
	case HostKeyAcceptNew, HostKeyStrict, HostKeyInsecure:
		return HostKeyPolicy(s), true
	default:
		return "", false
	}
}

// SshKeyAuth is the key{path, passphrase} variant of SshAuth.
type SshKeyAuth struct {
	PrivateKeyPath string `json:"private_key_path"`
	Passphrase     string `json:"passphrase,omitempty"` // must be empty; non-empty is rejected at tunnel-build time
}

// SshPasswordAuth is the password variant of SshAuth.
type SshPasswordAuth struct {
	Password string `json:"password"`
}

// SshAuth is the tagged sum of supported SSH authentication methods.
// IsKey selects which field is meaningful. The externally-tagged JSON
// form is {"Password": {...}} / {"Key": {...}}; MarshalJSON/UnmarshalJSON
// implement that tagging since Go has no native sum type.
type SshAuth struct {
	IsKey    bool
	Password SshPasswordAuth
	Key      SshKeyAuth
}

type sshAuthWire struct {
	Password *SshPasswordAuth `json:"Password,omitempty"`
	Key      *SshKeyAuth      `json:"Key,omitempty"`
}

// MarshalJSON renders SshAuth as the externally-tagged enum the rest of
// the system persists: {"Password": {...}} or {"Key": {...}}.
func (a SshAuth) MarshalJSON() ([]byte, error) {
	if a.IsKey {
		return json.Marshal(sshAuthWire{Key: &a.Key})
	}
	return json.Marshal(sshAuthWire{Password: &a.Password})
}

// UnmarshalJSON accepts the externally-tagged enum form, rejecting a
// payload that names both or neither variant.
func (a *SshAuth) UnmarshalJSON(data []byte) error {
	var w sshAuthWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch {
	case w.Key != nil && w.Password == nil:
		a.IsKey = true
		a.Key = *w.Key
	case w.Password != nil && w.Key == nil:
		a.IsKey = false
		a.Password = *w.Password
	default:
		return fmt.Errorf("SshAuth: expected exactly one of \"Password\" or \"Key\"")
	}
	return nil
}

// ProxyJump is an optional -J style hop.
type ProxyJump struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
}

// SshTunnelConfig describes a local-port forwarder opened for the
// lifetime of one session.
type SshTunnelConfig struct {
	Host              string `json:"host"`
	Port              int    `json:"port"`
	Username          string `json:"username"`
	Auth              SshAuth `json:"auth"`
	HostKeyPolicy     HostKeyPolicy `json:"host_key_policy"`
	KnownHostsPath    string     `json:"known_hosts_path,omitempty"` // optional override of the app-owned default
	ProxyJump         *ProxyJump `json:"proxy_jump,omitempty"`
	ConnectTimeout    int        `json:"connect_timeout_secs"`
	KeepaliveInterval int        `json:"keepalive_interval_secs"`
	KeepaliveCount    int        `json:"keepalive_count_max"`
}

// Validate enforces the invariant that key-auth with a non-empty
// passphrase is rejected at tunnel-build time — no in-process passphrase
// handling exists, authentication is agent-only.
func (c SshTunnelConfig) Validate() error {
	if c.Auth.IsKey && c.Auth.Key.Passphrase != "" {
		return NewError(KindSshError, "key-based SSH auth with a passphrase is not supported; use an ssh-agent")
	}
	if _, ok := ParseHostKeyPolicy(string(c.HostKeyPolicy)); !ok {
		return NewError(KindSshError, "unknown host key policy: "+string(c.HostKeyPolicy))
	}
	return nil
}

// ConnectionConfig is the full set of parameters needed to open a
// session. Password is never serialized outward; callers that need to
// round-trip a config through JSON must do so via a type that omits it.
type ConnectionConfig struct {
	DriverTag  string
	Host       string
	Port       int
	Username   string
	Password   string
	Database   string // optional for some drivers
	SSL        bool
	Environment Environment
	ReadOnly   bool
	Tunnel     *SshTunnelConfig // optional
}

// Namespace is the hierarchical parent of collections/tables: a database,
// plus a schema for engines that expose one.
type Namespace struct {
	Database string
	Schema   string // empty when the engine has no schema concept
}

// CollectionKind enumerates what a Collection names.
type CollectionKind string

const (
	CollectionTable             CollectionKind = "table"
	CollectionView              CollectionKind = "view"
	CollectionMaterializedView  CollectionKind = "materialized-view"
	CollectionDocument          CollectionKind = "document-collection"
)

// Collection is one addressable object inside a Namespace.
type Collection struct {
	Namespace Namespace
	Name      string
	Kind      CollectionKind
}
