package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"DealsScanner/internal/ports"
)

// FileStore keeps the ledger as a JSON object of identifier -> ISO-8601 timestamp.
type FileStore struct {
	path   string
	logger *slog.Logger
}

var _ ports.LedgerStore = (*FileStore)(nil)

// NewFileStore makes sure the parent directory exists and is writable.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("ledger file path is empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir %s: %w", dir, err)
	}

	probe, err := os.CreateTemp(dir, ".ledger-probe-*")
	if err != nil {
		return nil, fmt.Errorf("ledger dir %s is not writable: %w", dir, err)
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())

	return &FileStore{path: path, logger: logger}, nil
}

// Path is the ledger file location.
func (s *FileStore) Path() string { return s.path }

// Load reads the file. A missing file is an empty ledger; entries with bad timestamps are skipped.
func (s *FileStore) Load(_ context.Context) (map[string]time.Time, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]time.Time{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", s.path, err)
	}

	var stored map[string]string
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode ledger %s: %w", s.path, err)
	}

	entries := make(map[string]time.Time, len(stored))
	for id, value := range stored {
		at, err := parseTimestamp(value)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("skip ledger entry", "id", id, "error", err)
			}
			continue
		}
		entries[id] = at
	}
	return entries, nil
}

// Save atomically replaces the file with the full snapshot.
func (s *FileStore) Save(_ context.Context, entries map[string]time.Time) error {
	stored := make(map[string]string, len(entries))
	for id, at := range entries {
		stored[id] = formatTimestamp(at)
	}

	payload, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".ledger-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp ledger: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace ledger %s: %w", s.path, err)
	}
	return nil
}
