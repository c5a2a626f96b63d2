// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/publicpc/internal/admin"
	"github.com/jeranaias/publicpc/internal/audit"
	"github.com/jeranaias/publicpc/internal/config"
	"github.com/jeranaias/publicpc/internal/model"
	"github.com/jeranaias/publicpc/internal/policy"
)

// =============================================================================
// PARSING
// =============================================================================

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantCmd Command
		check   func(t *testing.T, a Args)
	}{
		{"default", nil, CmdRun, nil},
		{"sessions limit", []string{"sessions", "--limit", "5"}, CmdSessions, func(t *testing.T, a Args) {
			assert.Equal(t, "5", a.Options["limit"])
		}},
		{"json logs", []string{"--json", "logs", "--hours=2"}, CmdLogs, func(t *testing.T, a Args) {
			assert.True(t, a.JSON)
			assert.Equal(t, "2", a.Options["hours"])
		}},
		{"policy mode", []string{"policy", "mode", "admin-only"}, CmdPolicy, func(t *testing.T, a Args) {
			assert.Equal(t, "mode", a.Subcommand)
			assert.Equal(t, []string{"admin-only"}, a.Raw)
		}},
		{"allow add", []string{"allow", "add", "Browser", "/usr/bin/b", "--", "--kiosk"}, CmdAllow, func(t *testing.T, a Args) {
			assert.Equal(t, "add", a.Subcommand)
			assert.Equal(t, []string{"Browser", "/usr/bin/b", "--kiosk"}, a.Raw)
		}},
		{"config path", []string{"--config", "/tmp/c.toml", "audit", "--date", "20250101"}, CmdAudit, func(t *testing.T, a Args) {
			assert.Equal(t, "/tmp/c.toml", a.ConfigPath)
			assert.Equal(t, "20250101", a.Options["date"])
		}},
		{"passwd", []string{"passwd"}, CmdPasswd, nil},
		{"version", []string{"--version"}, CmdVersion, nil},
		{"help", []string{"-h"}, CmdHelp, nil},
		{"unknown", []string{"bogus"}, CmdUnknown, func(t *testing.T, a Args) {
			assert.Equal(t, "bogus", a.Name)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args := ParseArgs(tt.args)
			assert.Equal(t, tt.wantCmd, cmd)
			if tt.check != nil {
				tt.check(t, args)
			}
		})
	}
}

func TestIntOption(t *testing.T) {
	_, args := ParseArgs([]string{"sessions", "--limit", "x"})
	_, err := args.intOption("limit", 10)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	n, err := args.intOption("missing", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitUsageError, GetExitCode(NewValidationError("f", "v", "bad")))
	assert.Equal(t, ExitNotFoundError, GetExitCode(ErrNotFound("program", "x")))
	assert.Equal(t, ExitUsageError, GetExitCode(requireTTY(-1, "enter the password")))
	assert.Equal(t, ExitAuthError, GetExitCode(fmt.Errorf("wrap: %w", admin.ErrIncorrectSecret)))
	assert.Equal(t, ExitConfigError, GetExitCode(config.ValidateErrors{{Field: "a", Message: "b"}}))
	assert.Equal(t, ExitGeneralError, GetExitCode(errors.New("boom")))
}

// =============================================================================
// HELPERS
// =============================================================================

func newTestWorkstation(t *testing.T) *workstation {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Station.Name = "PC-TEST"
	w, err := openWorkstationWith(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func opts(pairs ...string) map[string]string {
	m := make(map[string]string)
	for i := 0; i+1 < len(pairs); i += 2 {
		m[pairs[i]] = pairs[i+1]
	}
	return m
}

type scriptedPrompter struct {
	admin.StaticPrompter
	next string
}

func (s scriptedPrompter) NewSecret(context.Context) (string, error) {
	return s.next, nil
}

func decodeData(t *testing.T, buf *bytes.Buffer, v any) {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

// =============================================================================
// POLICY COMMANDS
// =============================================================================

func TestPolicyChangeSetsUpAdministrator(t *testing.T) {
	w := newTestWorkstation(t)
	ctx := context.Background()
	var out bytes.Buffer

	args := Args{Subcommand: "mode", Raw: []string{"unrestricted"}, Options: opts()}
	require.NoError(t, runPolicyChange(ctx, w, args, admin.StaticPrompter{Secret: "pw"}, &out))
	assert.Contains(t, out.String(), "mode set to unrestricted")

	p, err := w.policies.Read()
	require.NoError(t, err)
	assert.Equal(t, policy.ModeUnrestricted, p.Mode())
	assert.True(t, policy.MatchSecret("pw", p.AdminPasswordHash))

	args.Raw = []string{"enforced"}
	err = runPolicyChange(ctx, w, args, admin.StaticPrompter{Secret: "nope"}, &out)
	require.ErrorIs(t, err, admin.ErrIncorrectSecret)

	p, err = w.policies.Read()
	require.NoError(t, err)
	assert.Equal(t, policy.ModeUnrestricted, p.Mode())

	entries, err := w.writer.ReadDay(time.Now())
	require.NoError(t, err)
	var categories []string
	for _, e := range entries {
		categories = append(categories, e.Category)
	}
	assert.Contains(t, categories, audit.CategoryPolicy)
	assert.Contains(t, categories, audit.CategoryAdmin)
}

func TestPolicyChangeThrottleSpansRuns(t *testing.T) {
	w := newTestWorkstation(t)
	w.cfg.Admin.AttemptBurst = 2
	w.cfg.Admin.AttemptRefillSecs = 3600
	ctx := context.Background()
	var out bytes.Buffer

	args := Args{Subcommand: "mode", Raw: []string{"unrestricted"}, Options: opts()}
	require.NoError(t, runPolicyChange(ctx, w, args, admin.StaticPrompter{Secret: "pw"}, &out))

	args.Raw = []string{"enforced"}
	for i := 0; i < 2; i++ {
		err := runPolicyChange(ctx, w, args, admin.StaticPrompter{Secret: "nope"}, &out)
		require.ErrorIs(t, err, admin.ErrIncorrectSecret)
	}

	err := runPolicyChange(ctx, w, args, admin.StaticPrompter{Secret: "pw"}, &out)
	require.ErrorIs(t, err, admin.ErrThrottled)
	assert.Equal(t, ExitAuthError, GetExitCode(err))

	p, err := w.policies.Read()
	require.NoError(t, err)
	assert.Equal(t, policy.ModeUnrestricted, p.Mode())
}

func TestPolicySet(t *testing.T) {
	w := newTestWorkstation(t)
	ctx := context.Background()
	pw := admin.StaticPrompter{Secret: "pw"}
	var out bytes.Buffer

	set := func(key, value string) error {
		return runPolicyChange(ctx, w, Args{Subcommand: "set", Raw: []string{key, value}, Options: opts()}, pw, &out)
	}

	require.NoError(t, set("max-minutes", "90"))
	require.NoError(t, set("kill-disallowed", "false"))

	p, err := w.policies.Read()
	require.NoError(t, err)
	assert.Equal(t, 90, p.MaxSessionMinutes)
	assert.False(t, p.KillDisallowedProcess)

	var verr *ValidationError
	assert.True(t, errors.As(set("colour", "red"), &verr))
	assert.True(t, errors.As(set("max-minutes", "-3"), &verr))
	assert.True(t, errors.As(set("allow-extensions", "maybe"), &verr))
}

func TestPolicyShowHidesHash(t *testing.T) {
	w := newTestWorkstation(t)
	p := policy.Default()
	p.AdminPasswordHash = policy.HashSecret("pw")
	require.NoError(t, w.policies.Save(p))

	var out bytes.Buffer
	require.NoError(t, runPolicyShow(w, Args{JSON: true, Options: opts()}, &out))
	assert.NotContains(t, out.String(), p.AdminPasswordHash)

	var data PolicyData
	decodeData(t, &out, &data)
	assert.True(t, data.AdminConfigured)
	assert.Equal(t, "enforced", data.Mode)
}

func TestAllowAddRemove(t *testing.T) {
	w := newTestWorkstation(t)
	ctx := context.Background()
	pw := admin.StaticPrompter{Secret: "pw"}
	var out bytes.Buffer

	add := Args{Subcommand: "add", Raw: []string{"Browser", "/usr/bin/browser", "--kiosk", "two words"}, Options: opts()}
	require.NoError(t, runAllowChange(ctx, w, add, pw, &out))

	p, err := w.policies.Read()
	require.NoError(t, err)
	require.Len(t, p.AllowedPrograms, 1)
	assert.Equal(t, "--kiosk 'two words'", p.AllowedPrograms[0].Arguments)

	mirrored, err := w.db.AllowedPrograms(ctx)
	require.NoError(t, err)
	assert.Len(t, mirrored, 1)

	err = runAllowChange(ctx, w, add, pw, &out)
	assert.ErrorIs(t, err, policy.ErrDuplicateProgram)

	remove := Args{Subcommand: "remove", Raw: []string{"/usr/bin/missing"}, Options: opts()}
	var nf *NotFoundError
	require.True(t, errors.As(runAllowChange(ctx, w, remove, pw, &out), &nf))

	remove.Raw = []string{"/usr/bin/browser"}
	require.NoError(t, runAllowChange(ctx, w, remove, pw, &out))
	p, err = w.policies.Read()
	require.NoError(t, err)
	assert.Empty(t, p.AllowedPrograms)

	out.Reset()
	require.NoError(t, runAllowList(w, Args{Options: opts()}, &out))
	assert.Contains(t, out.String(), "Allowed programs (0)")
}

func TestPasswd(t *testing.T) {
	w := newTestWorkstation(t)
	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, runPasswd(ctx, w, scriptedPrompter{StaticPrompter: admin.StaticPrompter{Secret: "first"}}, &out))
	assert.Contains(t, out.String(), "password set")

	require.NoError(t, runPasswd(ctx, w, scriptedPrompter{StaticPrompter: admin.StaticPrompter{Secret: "first"}, next: "second"}, &out))
	p, err := w.policies.Read()
	require.NoError(t, err)
	assert.True(t, policy.MatchSecret("second", p.AdminPasswordHash))

	err = runPasswd(ctx, w, scriptedPrompter{StaticPrompter: admin.StaticPrompter{Secret: "second"}, next: "  "}, &out)
	assert.ErrorIs(t, err, admin.ErrEmptySecret)
}

// =============================================================================
// REPORTS
// =============================================================================

func TestRunSessions(t *testing.T) {
	w := newTestWorkstation(t)
	ctx := context.Background()

	_, err := w.db.InsertSession(ctx, &model.Session{
		PCName: "PC-TEST", UserName: "Kim", UserID: "0102", Purpose: "research",
		StartTime: time.Now(), RequestedMinutes: 30, MaxExtensions: 2,
	})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runSessions(ctx, w, Args{Options: opts()}, &out))
	assert.Contains(t, out.String(), "Kim")
	assert.Contains(t, out.String(), "[OPEN]")
	assert.Contains(t, out.String(), "0/2")

	out.Reset()
	require.NoError(t, runSessions(ctx, w, Args{JSON: true, Options: opts("limit", "1")}, &out))
	var sessions []model.Session
	decodeData(t, &out, &sessions)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Kim", sessions[0].UserName)
}

func TestRunLogs(t *testing.T) {
	w := newTestWorkstation(t)
	ctx := context.Background()

	require.NoError(t, w.trail.ProcessStart(ctx, 1, "browser", "/usr/bin/browser"))
	require.NoError(t, w.trail.ProcessEnd(ctx, 1, "game", "/opt/game", model.ProcessBlocked))
	require.NoError(t, w.trail.WindowChange(ctx, 1, "browser", "News"))

	var out bytes.Buffer
	require.NoError(t, runLogs(ctx, w, Args{JSON: true, Options: opts("hours", "1")}, time.Now().Add(time.Minute), &out))
	var data LogsData
	decodeData(t, &out, &data)
	assert.Len(t, data.Processes, 2)
	require.Len(t, data.Windows, 1)
	assert.Equal(t, "News", data.Windows[0].WindowTitle)

	out.Reset()
	require.NoError(t, runLogs(ctx, w, Args{Options: opts()}, time.Now().Add(time.Minute), &out))
	assert.Contains(t, out.String(), "[BLOCKED]")
	assert.Contains(t, out.String(), "News")
}

func TestRunAudit(t *testing.T) {
	dir := t.TempDir()
	writer := audit.NewWriter(dir)
	require.NoError(t, writer.Record(3, audit.CategoryAdmin, "hello"))

	var out bytes.Buffer
	require.NoError(t, runAudit(writer, Args{Options: opts()}, time.Now(), &out))
	assert.Contains(t, out.String(), "hello")
	assert.Contains(t, out.String(), "1 entries")

	out.Reset()
	require.NoError(t, runAudit(writer, Args{Options: opts("date", "19990101")}, time.Now(), &out))
	assert.Contains(t, out.String(), "0 entries")

	var verr *ValidationError
	err := runAudit(writer, Args{Options: opts("date", "yesterday")}, time.Now(), &out)
	assert.True(t, errors.As(err, &verr))
}

// =============================================================================
// CONFIG AND PROMPTS
// =============================================================================

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	var out bytes.Buffer

	require.NoError(t, runConfigInit(path, Args{Options: opts()}, &out))
	cfg, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, config.ConfigVersion, cfg.Version)

	var cerr *CommandError
	require.True(t, errors.As(runConfigInit(path, Args{Options: opts()}, &out), &cerr))
	require.NoError(t, runConfigInit(path, Args{Options: opts("force", "true")}, &out))

	out.Reset()
	require.NoError(t, runConfigShow(cfg, path, Args{Options: opts()}, &out))
	assert.Contains(t, out.String(), "process_interval_secs")
}

func TestTermPrompter(t *testing.T) {
	answers := []string{"one", "one", "two", "three"}
	var out bytes.Buffer
	p := &TermPrompter{Out: &out, read: func(int) ([]byte, error) {
		a := answers[0]
		answers = answers[1:]
		return []byte(a + "\r\n"), nil
	}}
	ctx := context.Background()

	got, err := p.CaptureNewSecret(ctx)
	require.NoError(t, err)
	assert.Equal(t, "one", got)
	assert.Contains(t, out.String(), "No administrator password is set")

	_, err = p.NewSecret(ctx)
	assert.ErrorIs(t, err, ErrSecretMismatch)
	assert.ErrorIs(t, err, admin.ErrCancelled)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = p.PromptSecret(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequireTTY(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	err = requireTTY(int(r.Fd()), "enter the administrator password")
	assert.ErrorIs(t, err, ErrNoTTY)
	assert.Contains(t, err.Error(), "enter the administrator password")
}

func TestColorProfile(t *testing.T) {
	var out bytes.Buffer

	t.Setenv("CLICOLOR_FORCE", "")
	t.Setenv("NO_COLOR", "1")
	assert.Equal(t, termenv.Ascii, colorProfile(&out))

	t.Setenv("NO_COLOR", "")
	assert.Equal(t, termenv.Ascii, colorProfile(&out), "a buffer is not a terminal")

	t.Setenv("CLICOLOR_FORCE", "1")
	assert.Equal(t, termenv.ANSI, colorProfile(&out))
}
