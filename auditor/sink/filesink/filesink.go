// Package filesink persists anomaly records to an append-only text file.
package filesink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/screwyprof/bondaudit/auditor"
)

var (
	ErrOpenFailed   = errors.New("failed to open anomaly file")
	ErrWriteFailed  = errors.New("failed to write anomaly record")
	ErrMalformedLog = errors.New("malformed anomaly file")
)

const (
	headerPrefix = "# state: "
	fileMode     = 0o644
)

// FileName names the anomaly file for a chain at a block height.
// Runs against the same pinned state share one file.
func FileName(chain string, height uint64) string {
	return fmt.Sprintf("%s-%d.data", strings.ToLower(chain), height)
}

// Sink appends anomaly records to a single file. It never truncates.
type Sink struct {
	mu   sync.Mutex
	file *os.File
}

// Open opens or creates dir/name for appending. A provenance header naming
// state is written only when the file is empty.
func Open(dir, name string, state auditor.State) (*Sink, error) {
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, fileMode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenFailed, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %w", ErrOpenFailed, err)
	}

	s := &Sink{file: f}
	if info.Size() == 0 {
		header := fmt.Sprintf("%s%s height: %d\n", headerPrefix, state.Hash.Hex(), state.Number)
		if err := s.write(header); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	return s, nil
}

// Path returns the file the sink writes to
func (s *Sink) Path() string {
	return s.file.Name()
}

// Append writes record in a single write and syncs it to disk.
// A local write is not interrupted by cancellation.
func (s *Sink) Append(_ context.Context, record auditor.AnomalyRecord) error {
	return s.write(FormatRecord(record))
}

func (s *Sink) write(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := io.WriteString(s.file, text); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// Close closes the underlying file
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// FormatRecord renders record in the anomaly file layout
func FormatRecord(record auditor.AnomalyRecord) string {
	var b strings.Builder

	b.WriteString(string(record.Kind) + ":\n")
	b.WriteString("controller: " + record.Controller.Hex() + "\n")
	b.WriteString("stash: " + record.Stash.Hex() + "\n")
	if record.Kind == auditor.KindDouble {
		b.WriteString("controller_ledger: " + record.ControllerLedger.String() + "\n")
		b.WriteString("stash_ledger: " + record.StashLedger.String() + "\n")
	}

	return b.String()
}

// Entry is one record read back from an anomaly file. Ledgers are kept as
// rendered text.
type Entry struct {
	Kind             auditor.RecordKind
	Controller       string
	Stash            string
	ControllerLedger string
	StashLedger      string
}

// ParseRecords reads every record from an anomaly file, skipping header lines
func ParseRecords(r io.Reader) ([]Entry, error) {
	var (
		entries []Entry
		current *Entry
		line    int
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line++
		text := scanner.Text()

		switch {
		case text == "" || strings.HasPrefix(text, "#"):
			continue
		case text == string(auditor.KindDouble)+":" || text == string(auditor.KindNone)+":":
			entries = append(entries, Entry{Kind: auditor.RecordKind(strings.TrimSuffix(text, ":"))})
			current = &entries[len(entries)-1]
			continue
		}

		if current == nil {
			return nil, fmt.Errorf("%w: line %d: field outside a record", ErrMalformedLog, line)
		}

		label, value, ok := strings.Cut(text, ": ")
		if !ok {
			return nil, fmt.Errorf("%w: line %d: %q", ErrMalformedLog, line, text)
		}

		switch label {
		case "controller":
			current.Controller = value
		case "stash":
			current.Stash = value
		case "controller_ledger":
			current.ControllerLedger = value
		case "stash_ledger":
			current.StashLedger = value
		default:
			return nil, fmt.Errorf("%w: line %d: unknown field %q", ErrMalformedLog, line, label)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedLog, err)
	}

	return entries, nil
}
