// Package results persists run outcomes as append-only JSONL so every
// run can be audited and replayed long after the estate is gone.
package results

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yairfalse/sweeper/types"
)

// Entry is one line in a run log. Sequence numbers are per-run and
// strictly increasing so replay can detect truncation.
type Entry struct {
	Timestamp time.Time             `json:"timestamp"`
	Sequence  int64                 `json:"sequence"`
	RunID     string                `json:"run_id"`
	Account   string                `json:"account,omitempty"`
	Result    types.OperationResult `json:"result"`
}

// Log writes one run's results. Each account gets its own file under
// <dir>/runs/<runID>/, plus a consolidated run.jsonl across accounts.
type Log struct {
	mu       sync.Mutex
	runID    string
	dir      string
	sequence int64
	combined *bufio.Writer
	file     *os.File
	accounts map[string]*accountFile
}

type accountFile struct {
	file   *os.File
	writer *bufio.Writer
}

// Open creates the run directory and the consolidated log.
func Open(dataDir, runID string) (*Log, error) {
	dir := filepath.Join(dataDir, "runs", runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	path := filepath.Join(dir, "run.jsonl")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) // #nosec G302 G304
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}

	return &Log{
		runID:    runID,
		dir:      dir,
		combined: bufio.NewWriter(file),
		file:     file,
		accounts: make(map[string]*accountFile),
	}, nil
}

// Append records one operation result under its account.
func (l *Log) Append(account string, result types.OperationResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sequence++
	entry := Entry{
		Timestamp: time.Now().UTC(),
		Sequence:  l.sequence,
		RunID:     l.runID,
		Account:   account,
		Result:    result,
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	if err := l.writeLine(l.combined, l.file, line); err != nil {
		return err
	}

	acct, err := l.accountWriter(account)
	if err != nil {
		return err
	}
	return l.writeLine(acct.writer, acct.file, line)
}

// AppendAll records a batch in order.
func (l *Log) AppendAll(account string, results []types.OperationResult) error {
	for _, result := range results {
		if err := l.Append(account, result); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and closes every open file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	if err := l.combined.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := l.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	for _, acct := range l.accounts {
		if err := acct.writer.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := acct.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (l *Log) accountWriter(account string) (*accountFile, error) {
	if acct, ok := l.accounts[account]; ok {
		return acct, nil
	}

	path := filepath.Join(l.dir, account+".jsonl")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) // #nosec G302 G304
	if err != nil {
		return nil, fmt.Errorf("failed to open account log: %w", err)
	}

	acct := &accountFile{file: file, writer: bufio.NewWriter(file)}
	l.accounts[account] = acct
	return acct, nil
}

// writeLine appends one JSONL line and syncs. Durability over speed:
// a crashed run must not lose the deletes it already issued.
func (l *Log) writeLine(w *bufio.Writer, f *os.File, line []byte) error {
	if _, err := w.Write(line); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}
	if err := w.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return f.Sync()
}

// Replay streams every entry of a recorded run through handler in
// sequence order.
func Replay(dataDir, runID string, handler func(*Entry) error) error {
	path := filepath.Join(dataDir, "runs", runID, "run.jsonl")
	file, err := os.Open(path) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to open run log: %w", err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return fmt.Errorf("failed to unmarshal entry: %w", err)
		}
		if err := handler(&entry); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// ListRuns returns recorded run IDs, oldest first.
func ListRuns(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(dataDir, "runs"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var runs []string
	for _, entry := range entries {
		if entry.IsDir() {
			runs = append(runs, entry.Name())
		}
	}
	return runs, nil
}

// Summarize folds a recorded run back into a RunRecord. The mode
// argument is a fallback; entries that carry a mode win.
func Summarize(dataDir, runID string, mode types.Mode) (*types.RunRecord, error) {
	record := &types.RunRecord{
		RunID:  runID,
		Mode:   mode,
		Counts: make(map[types.Outcome]int),
	}

	seen := map[string]bool{}
	err := Replay(dataDir, runID, func(entry *Entry) error {
		record.Observe(entry.Result)
		if entry.Result.Mode != "" {
			record.Mode = entry.Result.Mode
		}
		if entry.Account != "" && !seen[entry.Account] {
			seen[entry.Account] = true
			record.AccountScope = append(record.AccountScope, entry.Account)
		}
		if record.StartedAt.IsZero() || entry.Timestamp.Before(record.StartedAt) {
			record.StartedAt = entry.Timestamp
		}
		if entry.Timestamp.After(record.FinishedAt) {
			record.FinishedAt = entry.Timestamp
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}
