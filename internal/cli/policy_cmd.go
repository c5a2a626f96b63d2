// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/jeranaias/publicpc/internal/admin"
	"github.com/jeranaias/publicpc/internal/audit"
	"github.com/jeranaias/publicpc/internal/policy"
)

// secretPrompter is what the policy commands need from the terminal.
type secretPrompter interface {
	admin.Prompter
	NewSecret(ctx context.Context) (string, error)
}

// withAdmin opens the workstation and a terminal prompter for a command that
// changes the policy.
func withAdmin(args Args, fn func(ctx context.Context, w *workstation, p secretPrompter) error) error {
	if err := requireTTY(int(os.Stdin.Fd()), "enter the administrator password"); err != nil {
		return err
	}
	w, err := openWorkstation(args)
	if err != nil {
		return err
	}
	defer w.Close()
	return fn(context.Background(), w, NewTermPrompter())
}

// =============================================================================
// POLICY
// =============================================================================

// PolicyData is the --json output of policy show. The password hash is
// never printed.
type PolicyData struct {
	Mode                    string                  `json:"mode"`
	DefaultSessionMinutes   int                     `json:"defaultSessionMinutes"`
	MaxSessionMinutes       int                     `json:"maxSessionMinutes"`
	SessionExtensionMinutes int                     `json:"sessionExtensionMinutes"`
	MaxExtensionCount       int                     `json:"maxExtensionCount"`
	AllowExtensions         bool                    `json:"allowExtensions"`
	KillDisallowedProcess   bool                    `json:"killDisallowedProcess"`
	AllowedPrograms         []policy.AllowedProgram `json:"allowedPrograms"`
	AdminConfigured         bool                    `json:"adminConfigured"`
	Path                    string                  `json:"path"`
}

func newPolicyData(p *policy.Policy, path string) PolicyData {
	return PolicyData{
		Mode:                    p.Mode().String(),
		DefaultSessionMinutes:   p.DefaultSessionMinutes,
		MaxSessionMinutes:       p.MaxSessionMinutes,
		SessionExtensionMinutes: p.SessionExtensionMinutes,
		MaxExtensionCount:       p.MaxExtensionCount,
		AllowExtensions:         p.AllowExtensions,
		KillDisallowedProcess:   p.KillDisallowedProcess,
		AllowedPrograms:         p.AllowedPrograms,
		AdminConfigured:         p.HasAdminSecret(),
		Path:                    path,
	}
}

// HandlePolicy handles "policy show|mode|set".
func HandlePolicy(args Args) error {
	switch args.Subcommand {
	case "", "show":
		w, err := openWorkstation(args)
		if err != nil {
			return err
		}
		defer w.Close()
		return runPolicyShow(w, args, os.Stdout)
	case "mode", "set":
		return withAdmin(args, func(ctx context.Context, w *workstation, p secretPrompter) error {
			return runPolicyChange(ctx, w, args, p, os.Stdout)
		})
	default:
		return NewValidationErrorWithExample("policy subcommand", args.Subcommand, "unknown", "publicpc policy [show|mode|set]")
	}
}

func runPolicyShow(w *workstation, args Args, out io.Writer) error {
	p, err := w.policies.Load()
	if err != nil {
		return err
	}
	data := newPolicyData(p, w.policies.Path())
	if args.JSON {
		return NewJSONResponse("policy", data).Write(out)
	}

	fmt.Fprintln(out, TitleStyle.Render("Policy"))
	fmt.Fprintln(out, RenderLabel("Mode")+ValueStyle.Render(data.Mode))
	fmt.Fprintln(out, RenderLabel("Default minutes")+ValueStyle.Render(strconv.Itoa(data.DefaultSessionMinutes)))
	fmt.Fprintln(out, RenderLabel("Maximum minutes")+ValueStyle.Render(strconv.Itoa(data.MaxSessionMinutes)))
	fmt.Fprintln(out, RenderLabel("Extensions")+RenderFlag(data.AllowExtensions))
	fmt.Fprintln(out, RenderLabel("Extension minutes")+ValueStyle.Render(strconv.Itoa(data.SessionExtensionMinutes)))
	fmt.Fprintln(out, RenderLabel("Max extensions")+ValueStyle.Render(strconv.Itoa(data.MaxExtensionCount)))
	fmt.Fprintln(out, RenderLabel("Kill disallowed")+RenderFlag(data.KillDisallowedProcess))
	fmt.Fprintln(out, RenderLabel("Allowed programs")+ValueStyle.Render(strconv.Itoa(len(data.AllowedPrograms))))
	fmt.Fprintln(out, RenderLabel("Administrator")+RenderFlag(data.AdminConfigured))
	fmt.Fprintln(out, DimStyle.Render(data.Path))
	return nil
}

func runPolicyChange(ctx context.Context, w *workstation, args Args, p admin.Prompter, out io.Writer) error {
	var (
		what string
		edit func(*policy.Policy) error
	)

	switch args.Subcommand {
	case "mode":
		if len(args.Raw) != 1 {
			return ErrMissingArgument("mode", "publicpc policy mode enforced|admin-only|unrestricted")
		}
		m, err := policy.ParseMode(args.Raw[0])
		if err != nil {
			return NewValidationError("mode", args.Raw[0], err.Error())
		}
		what = "mode set to " + m.String()
		edit = func(pol *policy.Policy) error {
			pol.SetMode(m)
			return nil
		}

	case "set":
		if len(args.Raw) != 2 {
			return ErrMissingArgument("key and value", "publicpc policy set max-minutes 90")
		}
		key, value := strings.ToLower(args.Raw[0]), args.Raw[1]
		if err := setPolicyKey(policy.Default(), key, value); err != nil {
			return err
		}
		what = key + " set to " + value
		edit = func(pol *policy.Policy) error {
			return setPolicyKey(pol, key, value)
		}
	}

	saved, err := w.changePolicy(ctx, p, what, edit)
	if err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("policy", newPolicyData(saved, w.policies.Path())).Write(out)
	}
	fmt.Fprintf(out, "%s %s\n", RenderStatus("ok"), what)
	return nil
}

// setPolicyKey applies one "policy set" assignment.
func setPolicyKey(p *policy.Policy, key, value string) error {
	number := func(dst *int) error {
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return NewValidationError(key, value, "must be a whole number of zero or more")
		}
		*dst = n
		return nil
	}
	flag := func(dst *bool) error {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return NewValidationError(key, value, "must be true or false")
		}
		*dst = b
		return nil
	}

	switch key {
	case "default-minutes":
		return number(&p.DefaultSessionMinutes)
	case "max-minutes":
		return number(&p.MaxSessionMinutes)
	case "extension-minutes":
		return number(&p.SessionExtensionMinutes)
	case "max-extensions":
		return number(&p.MaxExtensionCount)
	case "allow-extensions":
		return flag(&p.AllowExtensions)
	case "kill-disallowed":
		return flag(&p.KillDisallowedProcess)
	default:
		return NewValidationErrorWithExample("policy key", key, "unknown", "default-minutes, max-minutes, extension-minutes, max-extensions, allow-extensions, kill-disallowed")
	}
}

// =============================================================================
// ALLOW-LIST
// =============================================================================

// HandleAllow handles "allow list|add|remove".
func HandleAllow(args Args) error {
	switch args.Subcommand {
	case "", "list", "ls":
		w, err := openWorkstation(args)
		if err != nil {
			return err
		}
		defer w.Close()
		return runAllowList(w, args, os.Stdout)
	case "add", "remove", "rm":
		return withAdmin(args, func(ctx context.Context, w *workstation, p secretPrompter) error {
			return runAllowChange(ctx, w, args, p, os.Stdout)
		})
	default:
		return NewValidationErrorWithExample("allow subcommand", args.Subcommand, "unknown", "publicpc allow [list|add|remove]")
	}
}

func runAllowList(w *workstation, args Args, out io.Writer) error {
	p, err := w.policies.Load()
	if err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("allow", p.AllowedPrograms).Write(out)
	}

	fmt.Fprintln(out, TitleStyle.Render(fmt.Sprintf("Allowed programs (%d)", len(p.AllowedPrograms))))
	width := terminalWidth()
	for _, prog := range p.AllowedPrograms {
		line := column(prog.DisplayName, 24) + " " + column(prog.ExecutablePath, max(width-26, 10))
		if prog.Arguments != "" {
			line += "\n" + strings.Repeat(" ", 25) + DimStyle.Render(prog.Arguments)
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func runAllowChange(ctx context.Context, w *workstation, args Args, p admin.Prompter, out io.Writer) error {
	var (
		what string
		edit func(*policy.Policy) error
	)

	switch args.Subcommand {
	case "add":
		if len(args.Raw) < 2 {
			return ErrMissingArgument("name and path", `publicpc allow add "Web Browser" C:\Apps\browser.exe -- --kiosk`)
		}
		prog := policy.AllowedProgram{
			DisplayName:    args.Raw[0],
			ExecutablePath: args.Raw[1],
			Arguments:      shellquote.Join(args.Raw[2:]...),
		}
		what = "allowed " + prog.ExecutablePath
		edit = func(pol *policy.Policy) error {
			return pol.AddProgram(prog)
		}

	default:
		if len(args.Raw) != 1 {
			return ErrMissingArgument("path", `publicpc allow remove C:\Apps\browser.exe`)
		}
		path := args.Raw[0]
		what = "removed " + path
		edit = func(pol *policy.Policy) error {
			if !pol.RemoveProgram(path) {
				return ErrNotFound("allowed program", path)
			}
			return nil
		}
	}

	if _, err := w.changePolicy(ctx, p, what, edit); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s %s\n", RenderStatus("ok"), what)
	return nil
}

// =============================================================================
// PASSWORD
// =============================================================================

// HandlePasswd sets the administrator password, or changes it after the
// current one has been entered.
func HandlePasswd(args Args) error {
	return withAdmin(args, func(ctx context.Context, w *workstation, p secretPrompter) error {
		return runPasswd(ctx, w, p, os.Stdout)
	})
}

func runPasswd(ctx context.Context, w *workstation, p secretPrompter, out io.Writer) error {
	creds, err := newPolicyCredentials(w.policies)
	if err != nil {
		return err
	}
	firstTime := creds.AdminHash() == ""

	gate, _, err := w.authenticate(ctx, p)
	if err != nil {
		return err
	}
	if firstTime {
		fmt.Fprintf(out, "%s administrator password set\n", RenderStatus("ok"))
		return nil
	}

	secret, err := p.NewSecret(ctx)
	if err != nil {
		return err
	}
	if err := gate.ChangeSecret(secret); err != nil {
		return err
	}
	_ = w.trail.Event(0, audit.CategoryAdmin, "administrator password changed")
	fmt.Fprintf(out, "%s administrator password changed\n", RenderStatus("ok"))
	return nil
}
