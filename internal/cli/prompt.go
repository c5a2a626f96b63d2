// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/jeranaias/publicpc/internal/admin"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrSecretMismatch is returned when the two entries of a new password differ.
	ErrSecretMismatch = errors.New("passwords do not match")

	// ErrNoTTY is returned when a password is needed but stdin is not a terminal.
	ErrNoTTY = errors.New("stdin is not a terminal")
)

// =============================================================================
// TERMINAL
// =============================================================================

// Table width bounds.
const (
	defaultTerminalWidth = 80
	minTerminalWidth     = 40
)

// terminalWidth returns the stdout width, or the default when unknown.
func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	switch {
	case err != nil || width <= 0:
		return defaultTerminalWidth
	case width < minTerminalWidth:
		return minTerminalWidth
	}
	return width
}

// colorProfile honours NO_COLOR and CLICOLOR_FORCE before probing w.
func colorProfile(w io.Writer) termenv.Profile {
	return termenv.NewOutput(w).EnvColorProfile()
}

// requireTTY fails unless fd is a terminal.
func requireTTY(fd int, operation string) error {
	if !term.IsTerminal(fd) {
		return fmt.Errorf("%w; cannot %s", ErrNoTTY, operation)
	}
	return nil
}

// =============================================================================
// PROMPTER
// =============================================================================

// TermPrompter reads the administrator password from the terminal without echo.
type TermPrompter struct {
	// In is the terminal file descriptor; zero means stdin.
	In int
	// Out receives the prompt text; nil means stderr.
	Out io.Writer

	// read is replaced in tests.
	read func(fd int) ([]byte, error)
}

// NewTermPrompter creates a prompter on stdin and stderr.
func NewTermPrompter() *TermPrompter {
	return &TermPrompter{In: int(os.Stdin.Fd()), Out: os.Stderr, read: term.ReadPassword}
}

// PromptSecret asks for the existing password.
func (p *TermPrompter) PromptSecret(ctx context.Context) (string, error) {
	return p.ask(ctx, "Administrator password: ")
}

// CaptureNewSecret runs first-time setup.
func (p *TermPrompter) CaptureNewSecret(ctx context.Context) (string, error) {
	p.println("No administrator password is set. Choose one now.")
	return p.NewSecret(ctx)
}

// NewSecret asks for a new password twice.
func (p *TermPrompter) NewSecret(ctx context.Context) (string, error) {
	first, err := p.ask(ctx, "New password: ")
	if err != nil || first == "" {
		return "", err
	}
	second, err := p.ask(ctx, "Repeat password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("%w: %w", admin.ErrCancelled, ErrSecretMismatch)
	}
	return first, nil
}

func (p *TermPrompter) ask(ctx context.Context, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	out := p.Out
	if out == nil {
		out = os.Stderr
	}
	read := p.read
	if read == nil {
		read = term.ReadPassword
	}

	fmt.Fprint(out, label)
	data, err := read(p.In)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func (p *TermPrompter) println(msg string) {
	if p.Out == nil {
		fmt.Fprintln(os.Stderr, msg)
		return
	}
	fmt.Fprintln(p.Out, msg)
}
