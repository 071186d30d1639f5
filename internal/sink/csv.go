package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/nerrad567/powertag-monitor/internal/powertag"
)

const (
	csvDirPermissions  = 0750
	csvFilePermissions = 0640
)

// CSVSink appends one line per row to a CSV file.
//
// Columns are Tag, Timestamp (unix seconds) and then one column per
// register key in schema order. Null values are empty cells and the text
// sentinel is written as "Unknown". Each row is flushed before Append
// returns.
type CSVSink struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *csv.Writer
	keys   []string
}

// OpenCSV opens (or creates) path for appending. The header is written
// when the file is new or empty. An existing header is not checked against
// keys.
func OpenCSV(path string, keys []string) (*CSVSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, csvDirPermissions); err != nil {
			return nil, fmt.Errorf("creating csv directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, csvFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("opening csv log: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("stat csv log: %w", err)
	}

	s := &CSVSink{
		path:   path,
		file:   f,
		writer: csv.NewWriter(f),
		keys:   append([]string(nil), keys...),
	}

	if info.Size() == 0 {
		if err := s.writeRecord(append([]string{"Tag", "Timestamp"}, keys...)); err != nil {
			f.Close() //nolint:errcheck // Best effort cleanup on error path
			return nil, fmt.Errorf("writing csv header: %w", err)
		}
	}

	return s, nil
}

// Name implements Sink.
func (s *CSVSink) Name() string { return "csv" }

// Path returns the file being written.
func (s *CSVSink) Path() string { return s.path }

// Append implements Sink. Values are looked up by the keys the sink was
// opened with so columns never shift.
func (s *CSVSink) Append(_ context.Context, row powertag.Row) error {
	record := make([]string, 0, len(s.keys)+2)
	record = append(record, row.Tag, strconv.FormatInt(row.Timestamp.Unix(), 10))
	for _, key := range s.keys {
		record = append(record, row.Get(key).String())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return ErrClosed
	}
	if err := s.writeRecord(record); err != nil {
		return fmt.Errorf("writing csv row: %w", err)
	}
	return nil
}

// writeRecord writes and flushes one record. Callers hold mu or own s.
func (s *CSVSink) writeRecord(record []string) error {
	if err := s.writer.Write(record); err != nil {
		return err
	}
	s.writer.Flush()
	return s.writer.Error()
}

// Close flushes and closes the file. Closing twice is a no-op.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	s.writer.Flush()
	flushErr := s.writer.Error()
	closeErr := s.file.Close()
	s.file = nil

	if flushErr != nil {
		return fmt.Errorf("flushing csv log: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing csv log: %w", closeErr)
	}
	return nil
}
