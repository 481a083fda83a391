package gather

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/de-tools/kmp-audit/pkg/models/domain"
	"github.com/de-tools/kmp-audit/pkg/services/config"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Executor runs a collector command on a host and returns its standard output.
// An empty host means the local machine.
type Executor interface {
	Run(ctx context.Context, host, command string) ([]byte, error)
}

// LocalExecutor runs commands through /bin/sh on this machine.
type LocalExecutor struct{}

func (LocalExecutor) Run(ctx context.Context, host, command string) ([]byte, error) {
	if host != "" {
		return nil, fmt.Errorf("local executor cannot reach host %s", host)
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second
	if err := cmd.Run(); err != nil {
		return nil, commandError(command, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// SSHExecutor opens one SSH connection per command to a host of the inventory.
// Nothing is shared between calls, so hosts fail independently.
type SSHExecutor struct {
	hosts       config.HostRegistry
	dialTimeout time.Duration
}

func NewSSHExecutor(hosts config.HostRegistry, dialTimeout time.Duration) *SSHExecutor {
	return &SSHExecutor{hosts: hosts, dialTimeout: dialTimeout}
}

func (e *SSHExecutor) Run(ctx context.Context, host, command string) ([]byte, error) {
	if host == "" {
		return LocalExecutor{}.Run(ctx, host, command)
	}
	profile, err := e.hosts.GetHost(ctx, host)
	if err != nil {
		return nil, err
	}
	cfg, err := clientConfig(profile, e.dialTimeout)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(profile.Address, strconv.Itoa(profile.Port))
	dialer := net.Dialer{Timeout: e.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	client := ssh.NewClient(c, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open session on %s: %w", addr, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		client.Close()
		return nil, ctx.Err()
	case err := <-done:
		if err != nil {
			return nil, commandError(command, err, stderr.String())
		}
		return stdout.Bytes(), nil
	}
}

func clientConfig(profile domain.HostProfile, timeout time.Duration) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if profile.KeyFile != "" {
		key, err := os.ReadFile(profile.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read key for %s: %w", profile.Name, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse key for %s: %w", profile.Name, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if profile.Password != "" {
		auth = append(auth, ssh.Password(profile.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("host %s has no credentials", profile.Name)
	}

	hostKey, err := hostKeyCallback(profile)
	if err != nil {
		return nil, err
	}
	return &ssh.ClientConfig{
		User:            profile.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}, nil
}

func hostKeyCallback(profile domain.HostProfile) (ssh.HostKeyCallback, error) {
	if profile.Insecure {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	path := profile.KnownHosts
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("host %s: no known_hosts configured: %w", profile.Name, err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts for %s: %w", profile.Name, err)
	}
	return cb, nil
}

func commandError(command string, err error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return fmt.Errorf("run %q: %w", command, err)
	}
	return fmt.Errorf("run %q: %w: %s", command, err, stderr)
}
