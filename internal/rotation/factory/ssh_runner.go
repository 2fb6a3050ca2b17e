package factory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/allisson/rotator/internal/rotation/domain"
)

// CommandRunner runs shell commands on a remote host.
type CommandRunner interface {
	// Run executes cmd with stdin attached and returns its captured output.
	Run(ctx context.Context, cmd string, stdin io.Reader) (stdout, stderr string, err error)
	Close() error
}

// SSHDialer opens a CommandRunner for a connection.
type SSHDialer func(ctx context.Context, conn domain.UnixConnection, timeout time.Duration) (CommandRunner, error)

// sshRunner runs commands over one SSH client connection.
type sshRunner struct {
	client *ssh.Client
}

// DialSSH connects with public key authentication and pins the host key.
func DialSSH(ctx context.Context, conn domain.UnixConnection, timeout time.Duration) (CommandRunner, error) {
	signer, err := ssh.ParsePrivateKey([]byte(conn.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("%w: private key: %v", domain.ErrInvalidConnection, err)
	}
	hostKey, _, _, _, err := ssh.ParseAuthorizedKey([]byte(conn.HostKey))
	if err != nil {
		return nil, fmt.Errorf("%w: host key: %v", domain.ErrInvalidConnection, err)
	}

	config := &ssh.ClientConfig{
		User:            conn.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.FixedHostKey(hostKey),
		Timeout:         timeout,
	}

	addr := conn.Address()
	dialer := net.Dialer{Timeout: timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, classifyTransport(unixAccountProvider, err)
	}

	c, chans, reqs, err := ssh.NewClientConn(netConn, addr, config)
	if err != nil {
		_ = netConn.Close()
		return nil, classifySSH(unixAccountProvider, err, "")
	}
	return &sshRunner{client: ssh.NewClient(c, chans, reqs)}, nil
}

func (r *sshRunner) Run(ctx context.Context, cmd string, stdin io.Reader) (string, string, error) {
	session, err := r.client.NewSession()
	if err != nil {
		return "", "", err
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if stdin != nil {
		session.Stdin = stdin
	}

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		<-done
		return stdout.String(), stderr.String(), ctx.Err()
	case err := <-done:
		return stdout.String(), stderr.String(), err
	}
}

func (r *sshRunner) Close() error {
	return r.client.Close()
}
