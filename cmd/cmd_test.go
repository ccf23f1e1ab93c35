package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PolarWolf314/git-credential-keepassxc/internal/audit"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/keepassxc"
	"github.com/PolarWolf314/git-credential-keepassxc/internal/keepassxc/keepassxctest"
)

// run executes the root command with args and stdin, returning stdout and
// stderr.
func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	RootCmd.SetArgs(args)
	RootCmd.SetIn(strings.NewReader(stdin))
	RootCmd.SetOut(&stdout)
	RootCmd.SetErr(&stderr)
	err := Execute(context.Background())
	return stdout.String(), stderr.String(), err
}

func setupTest(t *testing.T) (*keepassxctest.Server, string) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	ResetGlobalState()
	t.Cleanup(ResetGlobalState)

	srv := keepassxctest.NewServer()
	SetDialer(srv.Dial)
	return srv, filepath.Join(t.TempDir(), "config.toml")
}

func TestCredentialRoundTrip(t *testing.T) {
	srv, config := setupTest(t)

	_, stderr, err := run(t, "", "configure", "--config", config)
	if err != nil {
		t.Fatalf("configure failed: %v", err)
	}
	if !strings.Contains(stderr, "✓ Associated database 'database-1' with group 'Git'") {
		t.Errorf("unexpected configure output: %q", stderr)
	}

	request := "protocol=https\nhost=example.com\npath=repo.git\nusername=alice\npassword=secret\n\n"
	if _, _, err := run(t, request, "store", "--config", config); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if n := len(srv.RequestsFor(keepassxc.ActionSetLogin)); n != 1 {
		t.Fatalf("expected 1 set-login request, got %d", n)
	}

	srv.Update(func(s *keepassxctest.Server) {
		s.Entries["https://example.com/repo.git"] = []keepassxc.LoginEntry{{Login: "alice", Password: "secret", UUID: "1"}}
	})
	stdout, _, err := run(t, "protocol=https\nhost=example.com\npath=repo.git\n\n", "get", "--config", config)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	want := "protocol=https\nhost=example.com\npath=repo.git\nusername=alice\npassword=secret\n"
	if stdout != want {
		t.Errorf("get output = %q, want %q", stdout, want)
	}
}

func TestGetWithoutConfiguration(t *testing.T) {
	_, config := setupTest(t)

	stdout, _, err := run(t, "protocol=https\nhost=example.com\n\n", "get", "--config", config)
	if err == nil {
		t.Fatal("expected get to fail without configuration")
	}
	if stdout != "" {
		t.Errorf("nothing may be written to stdout on failure, got %q", stdout)
	}
}

func TestEraseIsUnsupported(t *testing.T) {
	_, config := setupTest(t)

	_, _, err := run(t, "protocol=https\nhost=example.com\n\n", "erase", "--config", config)
	if err == nil || !strings.Contains(err.Error(), "erasing") {
		t.Fatalf("expected unsupported erase, got %v", err)
	}
}

func TestCallerCommands(t *testing.T) {
	_, config := setupTest(t)

	if _, _, err := run(t, "", "caller", "add", "/usr/bin/git", "--uid", "1000", "--config", config); err != nil {
		t.Fatalf("caller add failed: %v", err)
	}
	stdout, _, err := run(t, "", "caller", "list", "--config", config)
	if err != nil {
		t.Fatalf("caller list failed: %v", err)
	}
	if stdout != "/usr/bin/git uid=1000\n" {
		t.Errorf("unexpected caller list: %q", stdout)
	}

	_, stderr, err := run(t, "", "caller", "clear", "--config", config)
	if err != nil {
		t.Fatalf("caller clear failed: %v", err)
	}
	if !strings.Contains(stderr, "Removed 1 caller(s)") {
		t.Errorf("unexpected clear output: %q", stderr)
	}
}

func TestEncryptAndLog(t *testing.T) {
	_, config := setupTest(t)
	keyFile := filepath.Join(t.TempDir(), "store.key")

	if _, _, err := run(t, "", "configure", "--config", config); err != nil {
		t.Fatalf("configure failed: %v", err)
	}
	_, stderr, err := run(t, "", "encrypt", "key-file:"+keyFile, "--config", config)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if !strings.Contains(stderr, "Encrypted 1 entries") {
		t.Errorf("unexpected encrypt output: %q", stderr)
	}
	if _, _, err := run(t, "", "decrypt", "--config", config); err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}

	stdout, _, err := run(t, "", "log", "--json", "--config", config)
	if err != nil {
		t.Fatalf("log failed: %v", err)
	}
	var entries []audit.Entry
	if err := json.Unmarshal([]byte(stdout), &entries); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	var ops []string
	for _, e := range entries {
		ops = append(ops, e.Operation)
	}
	if strings.Join(ops, ",") != "configure,encrypt,decrypt" {
		t.Errorf("unexpected operations %v", ops)
	}
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/alice")

	tests := []struct {
		in, want string
	}{
		{"~/keys/git.key", "/home/alice/keys/git.key"},
		{"key-file:~/keys/git.key", "key-file:/home/alice/keys/git.key"},
		{"key-file:/etc/git.key", "key-file:/etc/git.key"},
		{"challenge-response:2", "challenge-response:2"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := expandHome(tt.in); got != tt.want {
			t.Errorf("expandHome(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
