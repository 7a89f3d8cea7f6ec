// Package device implements the Transport port over a direct shell
// connection to the tablet, typically the USB link at root@10.11.99.1.
// Documents live under /home/root/.local/share/remarkable/xochitl as
// {uuid}.metadata, {uuid}.content and a {uuid}/ page directory.
package device

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/custodia-labs/slate/internal/logger"
)

// runner executes commands on the tablet. The indirection keeps the
// client testable without a live connection.
type runner interface {
	// run executes one command and returns its stdout.
	run(ctx context.Context, command string, timeout time.Duration) ([]byte, error)

	// close tears down the connection.
	close() error
}

// sshRunner runs commands over an SSH connection, dialed lazily so
// constructing a client never blocks.
type sshRunner struct {
	addr   string
	config *ssh.ClientConfig

	mu     sync.Mutex
	client *ssh.Client
}

const dialTimeout = 5 * time.Second

func newSSHRunner(host, user string, port int, auth []ssh.AuthMethod, hostKey ssh.HostKeyCallback) *sshRunner {
	if hostKey == nil {
		// The USB link is a point-to-point interface; trusting the
		// peer on first contact matches the stock tooling.
		hostKey = ssh.InsecureIgnoreHostKey()
	}
	return &sshRunner{
		addr: net.JoinHostPort(host, strconv.Itoa(port)),
		config: &ssh.ClientConfig{
			User:            user,
			Auth:            auth,
			HostKeyCallback: hostKey,
			Timeout:         dialTimeout,
		},
	}
}

// connect dials the tablet if no connection is live (caller holds lock).
func (r *sshRunner) connect() (*ssh.Client, error) {
	if r.client != nil {
		return r.client, nil
	}
	client, err := ssh.Dial("tcp", r.addr, r.config)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", r.addr, err)
	}
	logger.Debug("ssh connected to %s", r.addr)
	r.client = client
	return client, nil
}

// run executes one command in a fresh session. A dead connection is
// dropped so the next call redials.
func (r *sshRunner) run(ctx context.Context, command string, timeout time.Duration) ([]byte, error) {
	r.mu.Lock()
	client, err := r.connect()
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.mu.Unlock()

	session, err := client.NewSession()
	if err != nil {
		r.drop(client)
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := session.Output(command)
		done <- result{out, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("run %q: %w", command, res.err)
		}
		return res.out, nil
	case <-ctx.Done():
		session.Close()
		return nil, fmt.Errorf("run %q: %w", command, ctx.Err())
	}
}

// drop discards a connection after a session failure.
func (r *sshRunner) drop(client *ssh.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == client {
		r.client.Close()
		r.client = nil
	}
}

// close tears down the connection.
func (r *sshRunner) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}
