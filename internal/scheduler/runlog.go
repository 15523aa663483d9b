package scheduler

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"sales-data-guard/internal/snapshot"
)

// RunLog persists one JSON line per snapshot run so scheduled activity can
// be audited after the fact. Appends are serialized; a damaged line is
// skipped on read rather than failing the whole history.
type RunLog struct {
	path string
	mu   sync.Mutex
}

// NewRunLog creates a run log writing to the given path. Parent directories
// are created as needed.
func NewRunLog(path string) (*RunLog, error) {
	if path == "" {
		return nil, snapshot.NewConfigurationError("run log path is required", nil)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, snapshot.NewStorageError("failed to create run log directory", err)
		}
	}
	return &RunLog{path: path}, nil
}

// Append writes one run record as a JSON line.
func (rl *RunLog) Append(record RunRecord) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return snapshot.NewStorageError("failed to marshal run record", err)
	}

	file, err := os.OpenFile(rl.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return snapshot.NewStorageError("failed to open run log", err)
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return snapshot.NewStorageError("failed to append run record", err)
	}
	return nil
}

// ReadAll returns every readable run record in append order.
func (rl *RunLog) ReadAll() ([]RunRecord, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	file, err := os.Open(rl.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, snapshot.NewStorageError("failed to open run log", err)
	}
	defer file.Close()

	var records []RunRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record RunRecord
		if err := json.Unmarshal(line, &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, snapshot.NewStorageError("failed to read run log", err)
	}
	return records, nil
}
