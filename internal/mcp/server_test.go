package mcp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nvandessel/elisalab/internal/config"
)

// newTestServer builds a server whose audit log and run ledger live in a
// temp directory.
func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	stateDir := t.TempDir()

	settings := config.Default()
	settings.Logging.Level = "debug"

	server, err := NewServer(&Config{
		Name:     "test-server",
		Version:  "v1.0.0",
		Settings: settings,
		StateDir: stateDir,
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { server.Close() })
	return server, stateDir
}

func TestNewServer(t *testing.T) {
	server, stateDir := newTestServer(t)

	if server.server == nil {
		t.Error("Server.server is nil")
	}
	if server.settings == nil {
		t.Error("Server.settings is nil")
	}
	if len(server.toolLimiters) == 0 {
		t.Error("expected tool limiters to be configured")
	}
	if server.auditLogger == nil {
		t.Error("expected audit logger with a state dir")
	}
	if _, err := os.Stat(filepath.Join(stateDir, "audit.jsonl")); err != nil {
		t.Errorf("audit.jsonl not created: %v", err)
	}
}

func TestNewServer_Defaults(t *testing.T) {
	server, err := NewServer(&Config{Name: "elisalab", Version: "dev"})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	if server.settings.Fit.Kind != "4pl" {
		t.Errorf("expected default fit kind 4pl, got %q", server.settings.Fit.Kind)
	}
	if server.auditLogger != nil || server.ledger != nil {
		t.Error("expected no audit log or ledger without a state dir")
	}
}
