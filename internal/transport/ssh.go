package transport

import (
	"context"
	"fmt"
	"net"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/netops-tools/aclpush/internal/domain"
)

// SSHDialer opens CLI sessions to devices over SSH with password
// authentication.
type SSHDialer struct {
	// Port is the SSH port, 22 when zero.
	Port int
}

var _ Dialer = (*SSHDialer)(nil)

// NewSSHDialer creates an SSH dialer using the given port, 22 when zero.
func NewSSHDialer(port int) *SSHDialer {
	return &SSHDialer{Port: port}
}

// Dial connects to the device. Failures, including context timeouts, are
// returned as *domain.ConnectionError (wrapping *domain.TimeoutError when the
// deadline expired).
func (d *SSHDialer) Dial(ctx context.Context, device domain.Device) (Session, error) {
	port := d.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(device.Host, fmt.Sprintf("%d", port))

	cfg := &ssh.ClientConfig{
		User: device.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(device.Password),
			ssh.KeyboardInteractive(func(name, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = device.Password
				}
				return answers, nil
			}),
		},
		// Network devices rarely have stable host keys in inventory; the
		// transport trusts the management network.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec
	}

	netConn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	if err != nil {
		if timedOut(ctx, err) {
			return nil, &domain.ConnectionError{Host: device.Host, Err: &domain.TimeoutError{Host: device.Host, Op: "connect", Err: err}}
		}
		return nil, &domain.ConnectionError{Host: device.Host, Err: err}
	}

	conn, chans, reqs, err := ssh.NewClientConn(netConn, addr, cfg)
	if err != nil {
		netConn.Close()
		return nil, &domain.ConnectionError{Host: device.Host, Err: err}
	}

	return &sshSession{
		client: ssh.NewClient(conn, chans, reqs),
		device: device,
	}, nil
}

type sshSession struct {
	client *ssh.Client
	device domain.Device
}

// Send pushes the commands inside a configuration shell: enable (with the
// privileged-mode secret when set), configure terminal, the rendered lines,
// then end.
func (s *sshSession) Send(ctx context.Context, commands []string) error {
	if len(commands) == 0 {
		return nil
	}

	script := make([]string, 0, len(commands)+5)
	script = append(script, "terminal length 0")
	if s.device.Secret != "" {
		script = append(script, "enable", s.device.Secret)
	}
	script = append(script, "configure terminal")
	script = append(script, commands...)
	script = append(script, "end")

	if _, err := s.runShell(ctx, script); err != nil {
		if timedOut(ctx, err) {
			return &domain.TimeoutError{Host: s.device.Host, Op: "send", Err: err}
		}
		return &domain.CommandError{Host: s.device.Host, Command: commands[0], Err: err}
	}
	return nil
}

// RunningConfig reads the device's running configuration.
func (s *sshSession) RunningConfig(ctx context.Context) (string, error) {
	script := []string{"terminal length 0"}
	if s.device.Secret != "" {
		script = append(script, "enable", s.device.Secret)
	}
	script = append(script, "show running-config")

	out, err := s.runShell(ctx, script)
	if err != nil {
		if timedOut(ctx, err) {
			return "", &domain.TimeoutError{Host: s.device.Host, Op: "read running config", Err: err}
		}
		return "", &domain.ReadError{Host: s.device.Host, Err: err}
	}
	return out, nil
}

// runShell feeds lines into an interactive shell and returns its output.
// x/crypto/ssh does not support per-command cancellation directly; on context
// expiry the session is torn down and the wait unblocks.
func (s *sshSession) runShell(ctx context.Context, lines []string) (string, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("open ssh session: %w", err)
	}
	defer sess.Close()

	var out strings.Builder
	sess.Stdout = &out
	sess.Stderr = &out
	sess.Stdin = strings.NewReader(strings.Join(lines, "\n") + "\nexit\n")

	done := make(chan error, 1)
	go func() {
		done <- sess.Shell()
	}()

	var runErr error
	select {
	case runErr = <-done:
		if runErr == nil {
			runErr = waitCtx(ctx, sess)
		}
	case <-ctx.Done():
		sess.Close()
		<-done
		return "", ctx.Err()
	}
	if runErr != nil {
		return "", runErr
	}
	return out.String(), nil
}

func waitCtx(ctx context.Context, sess *ssh.Session) error {
	done := make(chan error, 1)
	go func() {
		done <- sess.Wait()
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		sess.Close()
		<-done
		return ctx.Err()
	}
}

// Close disconnects from the device.
func (s *sshSession) Close() error {
	return s.client.Close()
}
