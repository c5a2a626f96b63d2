// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package monitor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/publicpc/internal/audit"
	"github.com/jeranaias/publicpc/internal/model"
	"github.com/jeranaias/publicpc/internal/platform"
	"github.com/jeranaias/publicpc/internal/policy"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeProcs struct {
	mu         sync.Mutex
	procs      []platform.Process
	paths      map[int]string
	listErr    error
	killErr    error
	terminated []int
}

func (f *fakeProcs) Processes() ([]platform.Process, error) {
	return f.procs, f.listErr
}

func (f *fakeProcs) ExecutablePath(pid int) (string, error) {
	p, ok := f.paths[pid]
	if !ok {
		return "", errors.New("access denied")
	}
	return p, nil
}

func (f *fakeProcs) Terminate(pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = append(f.terminated, pid)
	return f.killErr
}

type endCall struct {
	sessionID int64
	name      string
	path      string
	reason    string
}

type fakeAudit struct {
	mu     sync.Mutex
	ends   []endCall
	starts []endCall
	err    error
}

func (f *fakeAudit) ProcessEnd(_ context.Context, sid int64, name, path, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.ends = append(f.ends, endCall{sid, name, path, reason})
	return nil
}

func (f *fakeAudit) ProcessStart(_ context.Context, sid int64, name, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, endCall{sid, name, path, model.ProcessRunning})
	return f.err
}

func root(parts ...string) string {
	return filepath.Join(append([]string{string(filepath.Separator)}, parts...)...)
}

var (
	notepad = root("apps", "Notepad.exe")
	game    = root("games", "game.exe")
	svchost = root("os", "system", "svchost.exe")
)

func enforcedPolicy() *policy.Policy {
	p := policy.Default()
	p.SetMode(policy.ModeEnforced)
	p.KillDisallowedProcess = true
	p.AllowedPrograms = []policy.AllowedProgram{{DisplayName: "Notepad", ExecutablePath: strings.ToUpper(notepad)}}
	return p
}

func newEnforcer(procs *fakeProcs, rec EndRecorder, pol *policy.Policy, sess *model.Session) *Enforcer {
	return NewEnforcer(EnforcerConfig{
		Processes: procs,
		Guard:     platform.NewPathGuard(root("os")),
		Audit:     rec,
		Policy:    func() *policy.Policy { return pol },
		Session:   func() *model.Session { return sess },
	})
}

func standardProcs() *fakeProcs {
	return &fakeProcs{
		procs: []platform.Process{
			{PID: 10, Name: "Notepad.exe"},
			{PID: 11, Name: "game.exe"},
			{PID: 12, Name: "svchost.exe"},
			{PID: 13, Name: "locked.exe"},
			{PID: os.Getpid(), Name: "publicpc"},
		},
		paths: map[int]string{
			10:          notepad,
			11:          game,
			12:          svchost,
			os.Getpid(): root("games", "publicpc.exe"),
		},
	}
}

// =============================================================================
// ENFORCER
// =============================================================================

func TestEnforcerBlocksOnlyDisallowed(t *testing.T) {
	procs := standardProcs()
	rec := &fakeAudit{}
	e := newEnforcer(procs, rec, enforcedPolicy(), &model.Session{ID: 42})

	res, err := e.Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{11}, procs.terminated)
	require.Len(t, rec.ends, 1)
	assert.Equal(t, endCall{42, "game", game, model.ProcessBlocked}, rec.ends[0])

	assert.Equal(t, 4, res.Scanned, "own process is not scanned")
	assert.Equal(t, 1, res.Allowed)
	assert.Equal(t, 1, res.Protected)
	assert.Equal(t, 1, res.Unresolved)
	assert.Equal(t, 1, res.Blocked)
}

func TestEnforcerSkips(t *testing.T) {
	tests := []struct {
		name string
		pol  func() *policy.Policy
		sess *model.Session
	}{
		{"no session", enforcedPolicy, nil},
		{"kill disabled", func() *policy.Policy {
			p := enforcedPolicy()
			p.KillDisallowedProcess = false
			return p
		}, &model.Session{ID: 1}},
		{"unrestricted", func() *policy.Policy {
			p := enforcedPolicy()
			p.SetMode(policy.ModeUnrestricted)
			return p
		}, &model.Session{ID: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			procs := standardProcs()
			rec := &fakeAudit{}
			_, err := newEnforcer(procs, rec, tt.pol(), tt.sess).Scan(context.Background())
			require.NoError(t, err)
			assert.Empty(t, procs.terminated)
			assert.Empty(t, rec.ends)
		})
	}
}

func TestEnforcerAuditBeforeKill(t *testing.T) {
	procs := standardProcs()
	rec := &fakeAudit{err: errors.New("disk full")}
	res, err := newEnforcer(procs, rec, enforcedPolicy(), &model.Session{ID: 1}).Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, procs.terminated, "no kill without an audit record")
	assert.Equal(t, 1, res.Unaudited)
}

func TestEnforcerSwallowsKillFailure(t *testing.T) {
	procs := standardProcs()
	procs.paths[13] = root("games", "other.exe")
	procs.killErr = errors.New("already exited")
	rec := &fakeAudit{}

	res, err := newEnforcer(procs, rec, enforcedPolicy(), &model.Session{ID: 1}).Scan(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{11, 13}, procs.terminated)
	assert.Equal(t, 2, res.KillFailed)
	assert.Len(t, rec.ends, 2)
}

type reportRecorder struct{ sources []string }

func (r *reportRecorder) Report(source string, err error) string {
	r.sources = append(r.sources, source)
	return "id"
}

func TestEnforcerTickReportsListFailure(t *testing.T) {
	procs := &fakeProcs{listErr: errors.New("snapshot failed")}
	reports := &reportRecorder{}
	pol := enforcedPolicy()
	e := NewEnforcer(EnforcerConfig{
		Processes: procs,
		Audit:     &fakeAudit{},
		Errors:    reports,
		Policy:    func() *policy.Policy { return pol },
		Session:   func() *model.Session { return &model.Session{ID: 1} },
	})

	e.Tick(context.Background())
	e.Tick(context.Background())
	assert.Equal(t, []string{"monitor.enforcer", "monitor.enforcer"}, reports.sources)
}

// A blocked process lands in the daily audit file exactly once, tagged with
// the session id.
func TestEnforcerWritesAuditFile(t *testing.T) {
	dir := t.TempDir()
	w := audit.NewWriter(dir)
	trail := audit.NewTrail(w, nil, nil)
	procs := standardProcs()

	_, err := newEnforcer(procs, trail, enforcedPolicy(), &model.Session{ID: 7}).Scan(context.Background())
	require.NoError(t, err)

	entries, err := w.ReadDay(time.Now())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.CategoryProcessEnd, entries[0].Category)
	assert.Equal(t, int64(7), entries[0].SessionID)
	assert.Contains(t, entries[0].Message, model.ProcessBlocked)
	assert.Equal(t, []int{11}, procs.terminated)
}

// =============================================================================
// TRACKER
// =============================================================================

type fakeWindows struct {
	window platform.Window
	ok     bool
	err    error
	names  map[int]string
}

func (f *fakeWindows) Foreground() (platform.Window, bool, error) {
	return f.window, f.ok, f.err
}

func (f *fakeWindows) ProcessName(pid int) (string, error) {
	n, ok := f.names[pid]
	if !ok {
		return "", errors.New("gone")
	}
	return n, nil
}

func TestTrackerEmitsOnlyOnChange(t *testing.T) {
	src := &fakeWindows{ok: true, names: map[int]string{1: "notepad", 2: "chrome"}}
	var changes []Change
	tr := NewTracker(src, func(_ context.Context, c Change) { changes = append(changes, c) })
	ctx := context.Background()

	src.window = platform.Window{PID: 1, Title: "a.txt - Notepad"}
	tr.Tick(ctx)
	tr.Tick(ctx)
	tr.Tick(ctx)
	require.Len(t, changes, 1)
	assert.Equal(t, Change{PID: 1, ProcessName: "notepad", Title: "a.txt - Notepad"}, changes[0])

	src.window = platform.Window{PID: 2, Title: "News"}
	tr.Tick(ctx)
	src.window = platform.Window{PID: 1, Title: "a.txt - Notepad"}
	tr.Tick(ctx)
	assert.Len(t, changes, 3)
	assert.Equal(t, "a.txt - Notepad", tr.LastTitle())
}

func TestTrackerSkipsUnreadable(t *testing.T) {
	src := &fakeWindows{names: map[int]string{1: "notepad"}}
	tr := NewTracker(src, nil)

	_, ok := tr.Sample()
	assert.False(t, ok, "no foreground window")

	src.ok = true
	src.window = platform.Window{PID: 9, Title: "closing"}
	_, ok = tr.Sample()
	assert.False(t, ok, "owner process gone")
	assert.Empty(t, tr.LastTitle())

	src.err = errors.New("desktop switch")
	_, ok = tr.Sample()
	assert.False(t, ok)
}

// =============================================================================
// LAUNCHER
// =============================================================================

func TestCommand(t *testing.T) {
	cmd, err := Command(policy.AllowedProgram{
		DisplayName:    "Writer",
		ExecutablePath: root("apps", "writer", "writer.exe"),
		Arguments:      `--profile "public user" -n`,
	})
	require.NoError(t, err)
	assert.Equal(t, root("apps", "writer"), cmd.Dir)
	assert.Equal(t, []string{"--profile", "public user", "-n"}, cmd.Args[1:])

	_, err = Command(policy.AllowedProgram{ExecutablePath: notepad, Arguments: `"unterminated`})
	assert.ErrorIs(t, err, ErrBadArguments)
}

func TestLaunch(t *testing.T) {
	rec := &fakeAudit{}
	pol := enforcedPolicy()
	pol.AllowedPrograms[0].Arguments = "new.txt"
	l := NewLauncher(rec, func() *policy.Policy { return pol })

	var started *exec.Cmd
	l.start = func(cmd *exec.Cmd) error {
		started = cmd
		return nil
	}

	err := l.Launch(context.Background(), 3, policy.AllowedProgram{ExecutablePath: notepad})
	require.NoError(t, err)
	require.NotNil(t, started)
	assert.Equal(t, []string{"new.txt"}, started.Args[1:])
	require.Len(t, rec.starts, 1)
	assert.Equal(t, endCall{3, "Notepad", pol.AllowedPrograms[0].ExecutablePath, model.ProcessRunning}, rec.starts[0])

	err = l.Launch(context.Background(), 3, policy.AllowedProgram{ExecutablePath: game})
	assert.ErrorIs(t, err, ErrNotAllowed)

	l.start = func(*exec.Cmd) error { return errors.New("not found") }
	assert.Error(t, l.Launch(context.Background(), 3, policy.AllowedProgram{ExecutablePath: notepad}))
	assert.Len(t, rec.starts, 1)
}
