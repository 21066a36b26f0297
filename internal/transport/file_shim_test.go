package transport

import (
	"context"
	"strings"
	"testing"

	"github.com/netops-tools/aclpush/internal/domain"
)

func TestFileShim_ApplyAndRead(t *testing.T) {
	dialer := NewFileDialer(t.TempDir())
	ctx := context.Background()

	sess, err := dialer.Dial(ctx, domain.Device{Host: "sw1", Username: "admin"})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer sess.Close()

	commands := []string{
		"configure terminal",
		"access-list 100 permit tcp host 10.0.0.1 10.0.1.0 0.0.0.255 eq 80",
		"access-list 100 deny ip any any",
		"end",
	}
	if err := sess.Send(ctx, commands); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	cfg, err := sess.RunningConfig(ctx)
	if err != nil {
		t.Fatalf("RunningConfig failed: %v", err)
	}
	for _, line := range commands[1:3] {
		if !strings.Contains(cfg, line) {
			t.Errorf("expected config to contain %q, got:\n%s", line, cfg)
		}
	}
	if strings.Contains(cfg, "configure terminal") {
		t.Error("mode-change commands must not be stored in config")
	}
}

func TestFileShim_SendIsIdempotent(t *testing.T) {
	dialer := NewFileDialer(t.TempDir())
	ctx := context.Background()

	sess, _ := dialer.Dial(ctx, domain.Device{Host: "sw1"})
	line := "access-list 100 permit ip any any"
	_ = sess.Send(ctx, []string{line})
	_ = sess.Send(ctx, []string{line})

	cfg, _ := sess.RunningConfig(ctx)
	if strings.Count(cfg, line) != 1 {
		t.Errorf("expected exactly one copy of the line, got:\n%s", cfg)
	}
}

func TestFileShim_ClearACLAndRestoreRoundTrip(t *testing.T) {
	dialer := NewFileDialer(t.TempDir())
	ctx := context.Background()

	sess, _ := dialer.Dial(ctx, domain.Device{Host: "sw1"})
	original := []string{
		"access-list 100 permit tcp host 10.0.0.1 10.0.1.0 0.0.0.255 eq 80",
		"access-list 110 permit icmp any any",
	}
	if err := sess.Send(ctx, original); err != nil {
		t.Fatalf("seeding config failed: %v", err)
	}
	before, _ := sess.RunningConfig(ctx)

	// A failed apply added extra ACL 100 entries; rollback clears the ACL
	// and replays the backup.
	_ = sess.Send(ctx, []string{"access-list 100 deny ip any any"})
	restore := append([]string{"no access-list 100"}, original[0])
	if err := sess.Send(ctx, restore); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	after, _ := sess.RunningConfig(ctx)
	if after != before {
		t.Errorf("round trip mismatch:\nbefore:\n%s\nafter:\n%s", before, after)
	}
	// ACL 110 untouched throughout.
	if !strings.Contains(after, original[1]) {
		t.Error("unrelated ACL was lost during rollback")
	}
}

func TestFileShim_SessionsShareState(t *testing.T) {
	dialer := NewFileDialer(t.TempDir())
	ctx := context.Background()

	first, _ := dialer.Dial(ctx, domain.Device{Host: "sw1"})
	_ = first.Send(ctx, []string{"access-list 100 permit ip any any"})
	first.Close()

	second, _ := dialer.Dial(ctx, domain.Device{Host: "sw1"})
	cfg, _ := second.RunningConfig(ctx)
	if !strings.Contains(cfg, "access-list 100 permit ip any any") {
		t.Error("config did not persist across sessions")
	}
}

func TestFileShim_EmptySendIsNoOp(t *testing.T) {
	dialer := NewFileDialer(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sess, err := dialer.Dial(context.Background(), domain.Device{Host: "sw1"})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer sess.Close()

	// No commands means nothing to report, even on a dead context.
	if err := sess.Send(ctx, nil); err != nil {
		t.Errorf("empty Send returned %v", err)
	}
	if err := sess.Send(ctx, []string{}); err != nil {
		t.Errorf("empty Send returned %v", err)
	}
}
