package transport

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/netops-tools/aclpush/internal/domain"
)

// FileDialer is a shim implementation that keeps each device's configuration
// in a file under a directory, one file per host. It understands enough of
// the command dialect (access-list lines and "no access-list N") to support
// apply, verify, and rollback end to end without touching a real device.
type FileDialer struct {
	dir string
	mu  sync.Mutex
}

var _ Dialer = (*FileDialer)(nil)

// NewFileDialer creates a shim dialer rooted at dir.
func NewFileDialer(dir string) *FileDialer {
	return &FileDialer{dir: dir}
}

// Dial returns a session backed by the device's config file.
func (d *FileDialer) Dial(ctx context.Context, device domain.Device) (Session, error) {
	if device.Host == "" {
		return nil, &domain.ConnectionError{Host: device.Host, Err: fmt.Errorf("device has no host")}
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return nil, &domain.ConnectionError{Host: device.Host, Err: err}
	}
	return &fileSession{
		dialer: d,
		host:   device.Host,
		path:   filepath.Join(d.dir, device.Host+".cfg"),
	}, nil
}

type fileSession struct {
	dialer *FileDialer
	host   string
	path   string
}

// Send applies commands to the config file: "no access-list N" removes every
// entry of that ACL, access-list lines append if not already present, and
// anything else (mode changes, enable) is ignored.
func (s *fileSession) Send(ctx context.Context, commands []string) error {
	if len(commands) == 0 {
		return nil
	}

	s.dialer.mu.Lock()
	defer s.dialer.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return &domain.CommandError{Host: s.host, Command: commands[0], Err: err}
	}

	lines, err := s.readLines()
	if err != nil {
		return &domain.CommandError{Host: s.host, Command: commands[0], Err: err}
	}

	for _, cmd := range commands {
		switch {
		case strings.HasPrefix(cmd, "no access-list "):
			prefix := "access-list " + strings.TrimPrefix(cmd, "no access-list ") + " "
			lines = slices.DeleteFunc(lines, func(l string) bool {
				return strings.HasPrefix(l, prefix)
			})
		case strings.HasPrefix(cmd, "access-list "):
			if !slices.Contains(lines, cmd) {
				lines = append(lines, cmd)
			}
		}
	}

	if err := s.writeLines(lines); err != nil {
		return &domain.CommandError{Host: s.host, Command: commands[0], Err: err}
	}
	log.Printf("[FileShim] %s: applied %d command(s)", s.host, len(commands))
	return nil
}

// RunningConfig returns the config file contents; a missing file is an empty
// configuration.
func (s *fileSession) RunningConfig(ctx context.Context) (string, error) {
	s.dialer.mu.Lock()
	defer s.dialer.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", &domain.ReadError{Host: s.host, Err: err}
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", &domain.ReadError{Host: s.host, Err: err}
	}
	return string(data), nil
}

func (s *fileSession) Close() error { return nil }

func (s *fileSession) readLines() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var lines []string
	for _, l := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

func (s *fileSession) writeLines(lines []string) error {
	content := strings.Join(lines, "\n")
	if content != "" {
		content += "\n"
	}
	return os.WriteFile(s.path, []byte(content), 0o644)
}
