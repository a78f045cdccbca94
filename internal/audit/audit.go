package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Log appends one JSON line per event to <base>/audit.log. Every command
// invocation gets its own run ID so interrupted runs can be correlated with
// whatever they left applied.
type Log struct {
	file    *os.File
	runID   uuid.UUID
	command string
}

// Open starts an audit log for one command invocation.
func Open(baseDir, command string) (*Log, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(baseDir, "audit.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &Log{file: f, runID: uuid.New(), command: command}, nil
}

func (l *Log) RunID() uuid.UUID { return l.runID }

// Record writes one event. Audit failures are returned but callers treat
// them as non-fatal; the schema change itself matters more.
func (l *Log) Record(event string, fields map[string]any) error {
	entry := map[string]any{
		"time":    time.Now().UTC().Format(time.RFC3339),
		"run_id":  l.runID.String(),
		"command": l.command,
		"event":   event,
	}
	for k, v := range fields {
		entry[k] = v
	}
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	if _, err := l.file.Write(append(body, '\n')); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}

func (l *Log) Close() error { return l.file.Close() }
