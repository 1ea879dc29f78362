package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Journal appends task output lines to plain text logs under the data
// directory. The report, heartbeat, restock and reminder tasks each write
// to their own file.
type Journal struct {
	mu  sync.Mutex
	dir string
}

// NewJournal creates a journal rooted at dir, creating it if needed.
func NewJournal(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Journal{dir: dir}, nil
}

// Append adds one line to the named log file.
func (j *Journal) Append(name, line string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	path := filepath.Join(j.dir, name)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintln(f, line); err != nil {
		return fmt.Errorf("append to %s: %w", name, err)
	}
	return f.Sync()
}

// Dir returns the journal's data directory.
func (j *Journal) Dir() string { return j.dir }
