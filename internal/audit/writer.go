// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package audit

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"
)

// =============================================================================
// CATEGORIES
// =============================================================================

// Audit categories written to the category column.
const (
	CategoryProcessStart = "PROCESS_START"
	CategoryProcessEnd   = "PROCESS_END"
	CategoryWindow       = "WINDOW"
	CategorySessionStart = "SESSION_START"
	CategorySessionExt   = "SESSION_EXTEND"
	CategorySessionEnd   = "SESSION_END"
	CategoryAdmin        = "ADMIN"
	CategoryMaintenance  = "MAINTENANCE"
	CategoryPolicy       = "POLICY"
)

// Header is the first line of every audit file.
var Header = []string{"timestamp", "category", "sessionId", "message"}

const (
	timestampLayout = "2006-01-02 15:04:05"
	fileDateLayout  = "20060102"
)

// ErrEmptyCategory is returned when Record is called without a category.
var ErrEmptyCategory = errors.New("audit category is empty")

// =============================================================================
// SINK
// =============================================================================

// Sink accepts audit records.
type Sink interface {
	Record(sessionID int64, category, message string) error
}

// =============================================================================
// WRITER
// =============================================================================

// Writer appends audit records to one CSV file per local day.
type Writer struct {
	dir string
	now func() time.Time

	mu sync.Mutex
}

// NewWriter creates a writer for dir. Nothing is created until the first record.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// Dir returns the audit directory.
func (w *Writer) Dir() string {
	return w.dir
}

// FileFor returns the audit file holding records of the given day.
func (w *Writer) FileFor(day time.Time) string {
	return filepath.Join(w.dir, "audit-"+day.Format(fileDateLayout)+".csv")
}

// Record appends one line. Session id 0 means no session.
func (w *Writer) Record(sessionID int64, category, message string) error {
	if category == "" {
		return ErrEmptyCategory
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	path := w.FileFor(now)

	if err := os.MkdirAll(w.dir, 0700); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open audit file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat audit file: %w", err)
	}

	cw := csv.NewWriter(f)
	cw.UseCRLF = runtime.GOOS == "windows"

	if info.Size() == 0 {
		if err := cw.Write(Header); err != nil {
			return fmt.Errorf("failed to write audit header: %w", err)
		}
	}

	record := []string{
		now.Format(timestampLayout),
		category,
		strconv.FormatInt(sessionID, 10),
		message,
	}
	if err := cw.Write(record); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush audit record: %w", err)
	}
	return nil
}

// =============================================================================
// READING
// =============================================================================

// Entry is one parsed audit line.
type Entry struct {
	Timestamp time.Time
	Category  string
	SessionID int64
	Message   string
}

// ReadDay returns the records of the given day in file order. A day without
// a file yields no entries.
func (w *Writer) ReadDay(day time.Time) ([]Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.Open(w.FileFor(day))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}
	defer f.Close()

	return readEntries(bufio.NewReader(f))
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	var entries []Entry
	for line := 0; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return entries, fmt.Errorf("malformed audit line %d: %w", line+1, err)
		}
		if line == 0 && rec[0] == Header[0] {
			continue
		}

		ts, err := time.ParseInLocation(timestampLayout, rec[0], time.Local)
		if err != nil {
			return entries, fmt.Errorf("bad timestamp on audit line %d: %w", line+1, err)
		}
		sid, err := strconv.ParseInt(rec[2], 10, 64)
		if err != nil {
			return entries, fmt.Errorf("bad session id on audit line %d: %w", line+1, err)
		}
		entries = append(entries, Entry{
			Timestamp: ts,
			Category:  rec[1],
			SessionID: sid,
			Message:   rec[3],
		})
	}
}
