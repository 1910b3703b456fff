package mcp

import (
	"context"
	"log/slog"
	"os"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/elisalab/internal/config"
	"github.com/nvandessel/elisalab/internal/logging"
	"github.com/nvandessel/elisalab/internal/ratelimit"
)

// Server wraps the MCP SDK server and provides elisalab tools.
type Server struct {
	server       *sdk.Server
	settings     *config.ElisaConfig
	logger       *slog.Logger
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
	ledger       *logging.RunLedger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "elisalab")
	Version string // Server version

	// Settings supplies defaults for omitted tool arguments. Nil uses
	// config.Default().
	Settings *config.ElisaConfig

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger

	// StateDir holds audit.jsonl and runs.jsonl. Empty disables both.
	StateDir string
}

// NewServer creates a new MCP server with elisalab tools.
func NewServer(cfg *Config) (*Server, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		settings:     settings,
		logger:       logger,
		toolLimiters: ratelimit.NewToolLimiters(),
	}
	if cfg.StateDir != "" {
		s.auditLogger = NewAuditLogger(cfg.StateDir)
		s.ledger = logging.NewRunLedger(cfg.StateDir, settings.Logging.Level)
	}

	s.registerTools()

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})

	s.Close()

	return err
}

// Close releases the audit log and run ledger.
func (s *Server) Close() error {
	s.ledger.Close()
	return s.auditLogger.Close()
}
