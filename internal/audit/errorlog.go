// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package audit

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrorLog appends contained failures to error.log. Writing never fails the
// caller: if the file cannot be written the entry goes to the standard logger.
// A nil *ErrorLog only uses the standard logger.
type ErrorLog struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

// NewErrorLog creates an error log at path.
func NewErrorLog(path string) *ErrorLog {
	return &ErrorLog{path: path, now: time.Now}
}

// Path returns the log location.
func (l *ErrorLog) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Report records err under source and returns the incident id.
func (l *ErrorLog) Report(source string, err error) string {
	if err == nil {
		return ""
	}
	return l.write(source, err.Error())
}

// Recovered records a recovered panic value with the current stack.
func (l *ErrorLog) Recovered(source string, r any) string {
	return l.write(source, fmt.Sprintf("panic: %v\n%s", r, debug.Stack()))
}

// Recover is deferred at task and transition boundaries. It swallows a panic
// after recording it.
func (l *ErrorLog) Recover(source string) {
	if r := recover(); r != nil {
		l.Recovered(source, r)
	}
}

func (l *ErrorLog) write(source, detail string) string {
	id := uuid.New().String()
	log.Printf("ERROR: [%s] %s: %s", id[:8], source, firstLine(detail))

	if l == nil || l.path == "" {
		return id
	}

	var b strings.Builder
	b.WriteString("====\n")
	b.WriteString(l.now().Format(timestampLayout))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Incident: %s\n", id)
	fmt.Fprintf(&b, "Source: %s\n", source)
	b.WriteString(strings.TrimRight(detail, "\n"))
	b.WriteString("\n")

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0700); err != nil {
		log.Printf("ERROR_LOG_FAILED: %v", err)
		return id
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		log.Printf("ERROR_LOG_FAILED: %v", err)
		return id
	}
	defer f.Close()

	if _, err := f.WriteString(b.String()); err != nil {
		log.Printf("ERROR_LOG_FAILED: %v", err)
	}
	return id
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
