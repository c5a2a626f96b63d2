// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package audit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/publicpc/internal/model"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.Split(strings.TrimRight(text, "\n"), "\n")
}

func TestWriter_HeaderWrittenOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	w := NewWriter(dir)
	day := time.Date(2025, 4, 2, 13, 5, 9, 0, time.Local)
	w.now = fixedClock(day)

	require.NoError(t, w.Record(3, CategorySessionStart, "Kim"))
	require.NoError(t, w.Record(3, CategorySessionEnd, "manual"))

	path := filepath.Join(dir, "audit-20250402.csv")
	assert.Equal(t, path, w.FileFor(day))

	lines := readLines(t, path)
	require.Len(t, lines, 3)
	assert.Equal(t, "timestamp,category,sessionId,message", lines[0])
	assert.Equal(t, "2025-04-02 13:05:09,SESSION_START,3,Kim", lines[1])
	assert.Equal(t, "2025-04-02 13:05:09,SESSION_END,3,manual", lines[2])
}

func TestWriter_EscapesMessages(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	day := time.Date(2025, 4, 2, 8, 0, 0, 0, time.Local)
	w.now = fixedClock(day)

	require.NoError(t, w.Record(1, CategoryWindow, `notepad.exe|say "hi", friend`))

	lines := readLines(t, w.FileFor(day))
	assert.Equal(t, `2025-04-02 08:00:00,WINDOW,1,"notepad.exe|say ""hi"", friend"`, lines[1])

	entries, err := w.ReadDay(day)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, `notepad.exe|say "hi", friend`, entries[0].Message)
	assert.Equal(t, int64(1), entries[0].SessionID)
	assert.True(t, entries[0].Timestamp.Equal(day))
}

func TestWriter_DailyFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	first := time.Date(2025, 4, 2, 23, 59, 59, 0, time.Local)
	w.now = fixedClock(first)
	require.NoError(t, w.Record(1, CategoryAdmin, "login"))

	second := first.Add(2 * time.Second)
	w.now = fixedClock(second)
	require.NoError(t, w.Record(1, CategoryAdmin, "logout"))

	assert.Len(t, readLines(t, w.FileFor(first)), 2)
	assert.Len(t, readLines(t, w.FileFor(second)), 2)
}

func TestWriter_ConcurrentRecords(t *testing.T) {
	w := NewWriter(t.TempDir())
	day := time.Now()
	w.now = fixedClock(day)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, w.Record(int64(i), CategoryProcessEnd, "game.exe|C:\\game.exe|blocked"))
		}(i)
	}
	wg.Wait()

	entries, err := w.ReadDay(day)
	require.NoError(t, err)
	assert.Len(t, entries, 50)
}

func TestWriter_Rejections(t *testing.T) {
	w := NewWriter(t.TempDir())
	assert.True(t, errors.Is(w.Record(1, "", "x"), ErrEmptyCategory))

	entries, err := w.ReadDay(time.Date(2001, 1, 1, 0, 0, 0, 0, time.Local))
	assert.NoError(t, err)
	assert.Empty(t, entries)
}

// =============================================================================
// TRAIL
// =============================================================================

type fakeSink struct {
	mu      sync.Mutex
	err     error
	records []string
}

func (s *fakeSink) Record(sessionID int64, category, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, category+":"+message)
	return nil
}

type fakeRows struct {
	err     error
	process []model.ProcessLog
	window  []model.WindowLog
}

func (r *fakeRows) InsertProcessLog(_ context.Context, l *model.ProcessLog) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.process = append(r.process, *l)
	return int64(len(r.process)), nil
}

func (r *fakeRows) InsertWindowLog(_ context.Context, l *model.WindowLog) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.window = append(r.window, *l)
	return int64(len(r.window)), nil
}

func TestTrail_ProcessEnd(t *testing.T) {
	sink := &fakeSink{}
	rows := &fakeRows{}
	trail := NewTrail(sink, rows, nil)

	require.NoError(t, trail.ProcessEnd(context.Background(), 9, "game.exe", `C:\game.exe`, model.ProcessBlocked))

	require.Len(t, sink.records, 1)
	assert.Equal(t, `PROCESS_END:game.exe|C:\game.exe|blocked`, sink.records[0])
	require.Len(t, rows.process, 1)
	assert.Equal(t, int64(9), rows.process[0].SessionID)
	assert.Equal(t, model.ProcessBlocked, rows.process[0].EndReason)
	assert.NotNil(t, rows.process[0].EndedAt)
}

func TestTrail_SinkFailureIsReturned(t *testing.T) {
	sink := &fakeSink{err: errors.New("disk full")}
	rows := &fakeRows{}
	errlog := NewErrorLog(filepath.Join(t.TempDir(), "error.log"))
	trail := NewTrail(sink, rows, errlog)

	err := trail.ProcessEnd(context.Background(), 1, "x.exe", `C:\x.exe`, model.ProcessBlocked)
	require.Error(t, err)
	assert.Empty(t, rows.process, "no row when the audit record was not written")

	data, readErr := os.ReadFile(errlog.Path())
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "disk full")
}

func TestTrail_RowFailureIsContained(t *testing.T) {
	sink := &fakeSink{}
	rows := &fakeRows{err: errors.New("database is locked")}
	trail := NewTrail(sink, rows, nil)

	assert.NoError(t, trail.ProcessStart(context.Background(), 2, "Word", `C:\winword.exe`))
	assert.NoError(t, trail.WindowChange(context.Background(), 2, "winword.exe", "Report.docx"))
	assert.Len(t, sink.records, 2)
}

func TestTrail_WithoutRows(t *testing.T) {
	sink := &fakeSink{}
	trail := NewTrail(sink, nil, nil)

	require.NoError(t, trail.Event(0, CategoryMaintenance, "entered"))
	assert.Equal(t, []string{"MAINTENANCE:entered"}, sink.records)
}

// =============================================================================
// ERROR LOG
// =============================================================================

func TestErrorLog_Report(t *testing.T) {
	path := filepath.Join(t.TempDir(), "error.log")
	l := NewErrorLog(path)
	l.now = fixedClock(time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local))

	id := l.Report("process-enforcer", errors.New("access denied"))
	require.NotEmpty(t, id)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "====\n2025-01-02 03:04:05\n"))
	assert.Contains(t, text, "Incident: "+id)
	assert.Contains(t, text, "Source: process-enforcer")
	assert.Contains(t, text, "access denied")

	assert.Empty(t, l.Report("noop", nil))
}

func TestErrorLog_RecoverSwallowsPanic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "error.log")
	l := NewErrorLog(path)

	func() {
		defer l.Recover("window-tracker")
		panic("boom")
	}()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "panic: boom")
	assert.Contains(t, string(data), "Source: window-tracker")
}

func TestErrorLog_NilIsSafe(t *testing.T) {
	var l *ErrorLog
	assert.NotEmpty(t, l.Report("x", errors.New("y")))
	assert.NotPanics(t, func() {
		defer l.Recover("x")
		panic("z")
	})
}
