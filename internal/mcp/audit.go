package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nvandessel/elisalab/internal/logging"
)

// AuditEntry represents a single audit log entry for an MCP tool invocation.
// It records argument shapes, never raw signal data.
type AuditEntry struct {
	Timestamp  time.Time         `json:"timestamp"`
	Tool       string            `json:"tool"`
	DurationMs int64             `json:"duration_ms"`
	Status     string            `json:"status"` // "success" or "error"
	Error      string            `json:"error,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
}

// AuditLogger appends audit entries to dir/audit.jsonl. It is safe for
// concurrent use. A nil AuditLogger is safe to use; all methods are no-ops
// on nil receiver.
type AuditLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewAuditLogger opens dir/audit.jsonl for append, creating dir if needed.
// If the file cannot be opened, a warning is printed to stderr and nil is
// returned (non-fatal).
func NewAuditLogger(dir string) *AuditLogger {
	if err := os.MkdirAll(dir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot create audit log directory %s: %v\n", dir, err)
		return nil
	}

	path := filepath.Join(dir, "audit.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot open audit log %s: %v\n", path, err)
		return nil
	}

	return &AuditLogger{file: f}
}

// Log appends entry as a single JSON line. Safe to call on nil receiver.
func (a *AuditLogger) Log(entry AuditEntry) {
	if a == nil || a.file == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return // silently skip malformed entries
	}

	data = append(data, '\n')
	_, _ = a.file.Write(data)
}

// Close closes the audit log file. Safe to call on nil receiver.
func (a *AuditLogger) Close() error {
	if a == nil || a.file == nil {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.file.Close()
	a.file = nil
	return err
}

// sanitizeToolParams reduces tool arguments to loggable metadata.
//
// Scalars that describe the request (kind, seed, preset, ...) are logged by
// value. Slices are logged by length only so plate data never lands in the
// audit trail. Anything else is dropped. A "_param_count" key is always
// included.
func sanitizeToolParams(params map[string]any) map[string]string {
	if params == nil {
		return nil
	}

	safeValueParams := map[string]bool{
		"kind":           true,
		"fit_kind":       true,
		"seed":           true,
		"preset":         true,
		"format":         true,
		"levels":         true,
		"replicates":     true,
		"subtract_blank": true,
		"multiplier":     true,
	}

	result := make(map[string]string)
	for key, val := range params {
		switch v := val.(type) {
		case []float64:
			result[key] = fmt.Sprintf("len=%d", len(v))
		case []string:
			result[key] = fmt.Sprintf("len=%d", len(v))
		case []WellInput:
			result[key] = fmt.Sprintf("len=%d", len(v))
		default:
			if safeValueParams[key] {
				result[key] = fmt.Sprintf("%v", val)
			}
		}
	}

	result["_param_count"] = fmt.Sprintf("%d", len(params))

	return result
}

// auditTool logs a tool invocation to the audit log and, at trace level,
// to the operational logger.
func (s *Server) auditTool(toolName string, start time.Time, err error, params map[string]string) {
	status := "success"
	errMsg := ""
	if err != nil {
		status = "error"
		errMsg = err.Error()
	}

	entry := AuditEntry{
		Timestamp:  start,
		Tool:       toolName,
		DurationMs: time.Since(start).Milliseconds(),
		Status:     status,
		Error:      errMsg,
		Params:     params,
	}
	s.auditLogger.Log(entry)
	s.logger.Log(context.Background(), logging.LevelTrace, "tool call",
		"tool", toolName, "status", status, "duration_ms", entry.DurationMs, "params", params)
}
