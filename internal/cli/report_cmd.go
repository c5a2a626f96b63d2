// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jeranaias/publicpc/internal/audit"
	"github.com/jeranaias/publicpc/internal/model"
	"github.com/jeranaias/publicpc/internal/session"
)

// Default report sizes.
const (
	DefaultSessionLimit = 20
	DefaultLogHours     = 24

	timeLayout = "2006-01-02 15:04:05"
)

// =============================================================================
// SESSIONS
// =============================================================================

// HandleSessions lists the most recent sessions.
func HandleSessions(args Args) error {
	w, err := openWorkstation(args)
	if err != nil {
		return err
	}
	defer w.Close()
	return runSessions(context.Background(), w, args, os.Stdout)
}

func runSessions(ctx context.Context, w *workstation, args Args, out io.Writer) error {
	limit, err := args.intOption("limit", DefaultSessionLimit)
	if err != nil {
		return err
	}

	sessions, err := w.db.RecentSessions(ctx, limit)
	if err != nil {
		return NewCommandError("sessions", "list", "database query failed", err)
	}

	if args.JSON {
		return NewJSONResponse("sessions", sessions).Write(out)
	}

	fmt.Fprintln(out, TitleStyle.Render(fmt.Sprintf("Sessions (%d)", len(sessions))))
	if len(sessions) == 0 {
		fmt.Fprintln(out, DimStyle.Render("No sessions recorded."))
		return nil
	}

	fmt.Fprintf(out, "%s %s %s %s %s %s\n",
		column("ID", 6), column("User", 20), column("Started", 19),
		column("Length", 9), column("Ext", 5), "End")
	fmt.Fprintln(out, RenderSeparator(72))
	for _, s := range sessions {
		fmt.Fprintf(out, "%s %s %s %s %s %s\n",
			column(fmt.Sprint(s.ID), 6),
			column(s.UserName, 20),
			column(s.StartTime.Local().Format(timeLayout), 19),
			column(sessionLength(s), 9),
			column(fmt.Sprintf("%d/%d", s.ExtensionsUsed, s.MaxExtensions), 5),
			RenderStatus(sessionStatus(s)))
	}
	return nil
}

func sessionLength(s *model.Session) string {
	if s.IsOpen() {
		return fmt.Sprintf("%dm", s.RequestedMinutes)
	}
	return session.FormatDuration(s.Duration())
}

func sessionStatus(s *model.Session) string {
	if s.IsOpen() {
		return "open"
	}
	return s.EndReason
}

// =============================================================================
// LOGS
// =============================================================================

// LogsData is the --json output of the logs command.
type LogsData struct {
	From      time.Time          `json:"from"`
	To        time.Time          `json:"to"`
	Processes []model.ProcessLog `json:"processes"`
	Windows   []model.WindowLog  `json:"windows"`
}

// HandleLogs prints the process and window logs of the last hours.
func HandleLogs(args Args) error {
	w, err := openWorkstation(args)
	if err != nil {
		return err
	}
	defer w.Close()
	return runLogs(context.Background(), w, args, time.Now(), os.Stdout)
}

func runLogs(ctx context.Context, w *workstation, args Args, now time.Time, out io.Writer) error {
	hours, err := args.intOption("hours", DefaultLogHours)
	if err != nil {
		return err
	}

	data := LogsData{From: now.Add(-time.Duration(hours) * time.Hour), To: now}
	if data.Processes, err = w.db.ProcessLogs(ctx, data.From, data.To); err != nil {
		return NewCommandError("logs", "processes", "database query failed", err)
	}
	if data.Windows, err = w.db.WindowLogs(ctx, data.From, data.To); err != nil {
		return NewCommandError("logs", "windows", "database query failed", err)
	}

	if args.JSON {
		return NewJSONResponse("logs", data).Write(out)
	}

	width := terminalWidth()
	fmt.Fprintln(out, TitleStyle.Render(fmt.Sprintf("Processes (last %dh)", hours)))
	if len(data.Processes) == 0 {
		fmt.Fprintln(out, DimStyle.Render("None."))
	}
	for _, p := range data.Processes {
		fmt.Fprintf(out, "%s %s %s %s %s\n",
			column(p.StartedAt.Local().Format(timeLayout), 19),
			column(fmt.Sprint(p.SessionID), 5),
			RenderStatus(p.EndReason),
			column(p.ProcessName, 20),
			column(p.ExecutablePath, max(width-60, 10)))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, TitleStyle.Render(fmt.Sprintf("Windows (last %dh)", hours)))
	if len(data.Windows) == 0 {
		fmt.Fprintln(out, DimStyle.Render("None."))
	}
	for _, l := range data.Windows {
		fmt.Fprintf(out, "%s %s %s %s\n",
			column(l.ChangedAt.Local().Format(timeLayout), 19),
			column(fmt.Sprint(l.SessionID), 5),
			column(l.ProcessName, 20),
			column(l.WindowTitle, max(width-48, 10)))
	}
	return nil
}

// =============================================================================
// AUDIT
// =============================================================================

const auditDateLayout = "20060102"

// HandleAudit prints one day of the audit trail.
func HandleAudit(args Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	return runAudit(audit.NewWriter(cfg.AuditDir()), args, time.Now(), os.Stdout)
}

func runAudit(writer *audit.Writer, args Args, now time.Time, out io.Writer) error {
	day := now
	if raw, ok := args.Options["date"]; ok {
		parsed, err := time.ParseInLocation(auditDateLayout, raw, time.Local)
		if err != nil {
			return NewValidationErrorWithExample("--date", raw, "expected YYYYMMDD", "--date "+now.Format(auditDateLayout))
		}
		day = parsed
	}

	entries, err := writer.ReadDay(day)
	if err != nil {
		return NewCommandError("audit", "read", writer.FileFor(day), err)
	}

	if args.JSON {
		return NewJSONResponse("audit", entries).Write(out)
	}

	fmt.Fprintln(out, TitleStyle.Render("Audit "+day.Format("2006-01-02")))
	width := terminalWidth()
	for _, e := range entries {
		fmt.Fprintf(out, "%s %s %s %s\n",
			column(e.Timestamp.Format(timeLayout), 19),
			column(e.Category, 18),
			column(fmt.Sprint(e.SessionID), 5),
			column(e.Message, max(width-45, 10)))
	}
	fmt.Fprintln(out, DimStyle.Render(fmt.Sprintf("%d entries", len(entries))))
	return nil
}
