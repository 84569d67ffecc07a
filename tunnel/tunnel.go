// Package tunnel manages SSH port-forwarding tunnels by shelling out to
// the system ssh binary, rather than linking an SSH client into the
// process. This keeps host-key handling, agent forwarding, and key
// format support identical to whatever OpenSSH the operator already
// trusts.
package tunnel

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/qoredb/core/model"
)

const (
	startupTimeout      = 5 * time.Second
	startupPollInterval = 50 * time.Millisecond
)

// Tunnel is a live SSH port forward: a local loopback port that proxies
// to remoteHost:remotePort through an ssh child process.
type Tunnel struct {
	localPort int
	cmd       *exec.Cmd
}

// LocalPort is the loopback port to point the database driver at.
func (t *Tunnel) LocalPort() int { return t.localPort }

// LocalAddr is "127.0.0.1:<LocalPort>".
func (t *Tunnel) LocalAddr() string { return fmt.Sprintf("127.0.0.1:%d", t.localPort) }

// Open spawns an ssh -N -L forwarder for remoteHost:remotePort and
// blocks until it is accepting connections, or until startupTimeout
// elapses. knownHostsPath is the app-owned known_hosts file (its parent
// directory is created if missing); the platform's global known_hosts is
// never consulted. The ssh child is not tied to ctx: it keeps running
// after Open returns, until Close kills it.
func Open(ctx context.Context, cfg model.SshTunnelConfig, remoteHost string, remotePort int, knownHostsPath string) (*Tunnel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ensureParentDir(knownHostsPath); err != nil {
		return nil, model.Wrap(model.KindSshError, "failed to create ssh config directory", err)
	}

	localPort, err := reserveEphemeralPort()
	if err != nil {
		return nil, model.Wrap(model.KindSshError, "failed to reserve local port", err)
	}

	args, err := buildArgs(cfg, knownHostsPath, localPort, remoteHost, remotePort)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command("ssh", args...)
	cmd.Stdin = nil
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, model.Wrap(model.KindSshError, "failed to spawn ssh process (is OpenSSH installed?)", err)
	}

	exited := make(chan struct{})
	go func() {
		cmd.Wait()
		close(exited)
	}()

	if err := waitReady(exited, localPort, &stderr); err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}

	return &Tunnel{localPort: localPort, cmd: cmd}, nil
}

// Close kills the ssh child, best-effort.
func (t *Tunnel) Close() error {
	if t.cmd == nil || t.cmd.Process == nil {
		return nil
	}
	_ = t.cmd.Process.Kill()
	_ = t.cmd.Wait()
	return nil
}

// reserveEphemeralPort binds a loopback listener on an OS-assigned port,
// reads the assigned port back, and releases the listener immediately so
// ssh can bind it. This accepts the classic port-steal race: nothing
// prevents another process from grabbing the port between release and
// ssh's bind.
func reserveEphemeralPort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	port := l.Addr().(*net.TCPAddr).Port
	if err := l.Close(); err != nil {
		return 0, err
	}
	return port, nil
}

// waitReady polls a loopback TCP connect to localPort until it succeeds,
// the deadline passes, or exited fires first (in which case stderr is
// surfaced).
func waitReady(exited <-chan struct{}, localPort int, stderr *bytes.Buffer) error {
	deadline := time.Now().Add(startupTimeout)
	addr := fmt.Sprintf("127.0.0.1:%d", localPort)

	for {
		select {
		case <-exited:
			msg := stderr.String()
			if msg == "" {
				msg = "no stderr output was captured"
			} else {
				msg = "stderr: " + msg
			}
			return model.NewError(model.KindSshError, fmt.Sprintf("ssh tunnel process exited. %s", msg))
		default:
		}

		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			conn.Close()
			return nil
		}

		if time.Now().After(deadline) {
			return model.NewError(model.KindSshError, fmt.Sprintf(
				"ssh tunnel did not become ready within %s; ensure the host key is trusted and the server supports the configured StrictHostKeyChecking mode", startupTimeout))
		}
		time.Sleep(startupPollInterval)
	}
}

func buildArgs(cfg model.SshTunnelConfig, knownHostsPath string, localPort int, remoteHost string, remotePort int) ([]string, error) {
	if !cfg.Auth.IsKey {
		return nil, model.NewError(model.KindSshError,
			"password authentication is not supported by the ssh tunnel backend; use SSH keys, preferably via ssh-agent")
	}
	if cfg.Auth.Key.Passphrase != "" {
		return nil, model.NewError(model.KindSshError,
			"key passphrase was provided but is not supported by the ssh tunnel backend; load the key into ssh-agent or use an unencrypted key")
	}

	strictHostKeyChecking := "accept-new"
	switch cfg.HostKeyPolicy {
	case model.HostKeyStrict:
		strictHostKeyChecking = "yes"
	case model.HostKeyInsecure:
		strictHostKeyChecking = "no"
	}

	args := []string{
		"-N",
		"-o", "BatchMode=yes",
		"-o", "ExitOnForwardFailure=yes",
		"-o", fmt.Sprintf("ConnectTimeout=%d", cfg.ConnectTimeout),
		"-o", fmt.Sprintf("ServerAliveInterval=%d", cfg.KeepaliveInterval),
		"-o", fmt.Sprintf("ServerAliveCountMax=%d", cfg.KeepaliveCount),
		"-o", "StrictHostKeyChecking=" + strictHostKeyChecking,
		"-o", "UserKnownHostsFile=" + knownHostsPath,
		"-o", "GlobalKnownHostsFile=" + nullDevicePath(),
		"-o", "IdentitiesOnly=yes",
		"-o", "PreferredAuthentications=publickey",
		"-i", cfg.Auth.Key.PrivateKeyPath,
		"-L", fmt.Sprintf("127.0.0.1:%d:%s:%d", localPort, remoteHost, remotePort),
		"-p", strconv.Itoa(cfg.Port),
	}

	if cfg.ProxyJump != nil {
		args = append(args, "-J", fmt.Sprintf("%s@%s:%d", cfg.ProxyJump.Username, cfg.ProxyJump.Host, cfg.ProxyJump.Port))
	}

	args = append(args, fmt.Sprintf("%s@%s", cfg.Username, cfg.Host))
	return args, nil
}

func nullDevicePath() string {
	if runtime.GOOS == "windows" {
		return "NUL"
	}
	return "/dev/null"
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o700)
}
