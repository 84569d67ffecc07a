package tunnel

import (
	"strings"
	"testing"

	"github.com/qoredb/core/model"
)

func containsArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func TestBuildArgs_StrictPolicyAndProxyJump(t *testing.T) {
	cfg := model.SshTunnelConfig{
		Host:     "ssh.example.com",
		Port:     22,
		Username: "user",
		Auth: model.SshAuth{
			IsKey: true,
			Key:   model.SshKeyAuth{PrivateKeyPath: "id_ed25519"},
		},
		HostKeyPolicy:     model.HostKeyStrict,
		ProxyJump:         &model.ProxyJump{Host: "jump.example.com", Port: 22, Username: "jumpuser"},
		ConnectTimeout:    7,
		KeepaliveInterval: 11,
		KeepaliveCount:    2,
	}

	args, err := buildArgs(cfg, "/tmp/qoredb_known_hosts", 50000, "postgres", 5432)
	if err != nil {
		t.Fatalf("buildArgs: %v", err)
	}

	if !containsArg(args, "-N") {
		t.Errorf("missing -N")
	}
	if !containsArg(args, "StrictHostKeyChecking=yes") {
		t.Errorf("missing strict host key checking option, got %v", args)
	}
	if !containsArg(args, "UserKnownHostsFile=/tmp/qoredb_known_hosts") {
		t.Errorf("missing known hosts option, got %v", args)
	}
	if !containsArg(args, "-J") || !containsArg(args, "jumpuser@jump.example.com:22") {
		t.Errorf("missing proxy jump args, got %v", args)
	}
	if !containsArg(args, "-L") || !containsArg(args, "127.0.0.1:50000:postgres:5432") {
		t.Errorf("missing local forward spec, got %v", args)
	}
}

func TestBuildArgs_RejectsKeyPassphrase(t *testing.T) {
	cfg := model.SshTunnelConfig{
		Host:     "ssh.example.com",
		Port:     22,
		Username: "user",
		Auth: model.SshAuth{
			IsKey: true,
			Key:   model.SshKeyAuth{PrivateKeyPath: "id_ed25519", Passphrase: "secret"},
		},
		HostKeyPolicy: model.HostKeyAcceptNew,
	}

	_, err := buildArgs(cfg, "/tmp/qoredb_known_hosts", 50000, "postgres", 5432)
	if err == nil {
		t.Fatalf("expected passphrase to be rejected")
	}
	if !strings.Contains(err.Error(), "passphrase") {
		t.Errorf("expected error to mention passphrase, got: %v", err)
	}
}

func TestBuildArgs_RejectsPasswordAuth(t *testing.T) {
	cfg := model.SshTunnelConfig{
		Host:          "ssh.example.com",
		Port:          22,
		Username:      "user",
		Auth:          model.SshAuth{IsKey: false, Password: model.SshPasswordAuth{Password: "hunter2"}},
		HostKeyPolicy: model.HostKeyAcceptNew,
	}

	_, err := buildArgs(cfg, "/tmp/qoredb_known_hosts", 50000, "postgres", 5432)
	if err == nil {
		t.Fatalf("expected password auth to be rejected")
	}
}

func TestReserveEphemeralPort(t *testing.T) {
	port, err := reserveEphemeralPort()
	if err != nil {
		t.Fatalf("reserveEphemeralPort: %v", err)
	}
	if port <= 0 || port > 65535 {
		t.Errorf("unexpected port: %d", port)
	}
}
