package model

// ConnectionId identifies a saved connection within a project.
type ConnectionId string

// SavedConnection is the non-secret half of a saved connection: what
// Vault Storage's metadata key holds. Passwords, ssh passwords, and key
// passphrases live in the credentials key instead, so metadata can be
// listed and policy-checked without unlocking access to secrets.
type SavedConnection struct {
	ID          ConnectionId `json:"id"`
	ProjectID   string       `json:"project_id"`
	Name        string       `json:"name"`
	DriverTag   string       `json:"driver_tag"`
	Host        string       `json:"host"`
	Port        int          `json:"port"`
	Username    string       `json:"username"`
	Database    string       `json:"database,omitempty"`
	SSL         bool         `json:"ssl"`
	Environment Environment  `json:"environment"`
	ReadOnly    bool         `json:"read_only"`
	Tunnel      *SavedTunnel `json:"tunnel,omitempty"`
}

// SavedTunnel is the non-secret half of an SshTunnelConfig: the ssh
// password or key passphrase, if any, lives in credentials instead.
type SavedTunnel struct {
	Host              string     `json:"host"`
	Port              int        `json:"port"`
	Username          string     `json:"username"`
	AuthIsKey         bool       `json:"auth_is_key"`
	PrivateKeyPath    string     `json:"private_key_path,omitempty"`
	HostKeyPolicy     string     `json:"host_key_policy"`
	KnownHostsPath    string     `json:"known_hosts_path,omitempty"`
	ProxyJump         *ProxyJump `json:"proxy_jump,omitempty"`
	ConnectTimeout    int        `json:"connect_timeout_secs"`
	KeepaliveInterval int        `json:"keepalive_interval_secs"`
	KeepaliveCount    int        `json:"keepalive_count_max"`
}
