// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAtomicWriteFile_CreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "policy.json")

	if err := AtomicWriteFile(path, []byte(`{"a":1}`), 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Errorf("content = %q", data)
	}
}

func TestAtomicWriteFile_ReplacesAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.json")

	if err := AtomicWriteFile(path, []byte("old"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := AtomicWriteFile(path, []byte("new"), 0600); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "new" {
		t.Errorf("content = %q, want new", data)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}
}

func TestBackupFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "publicpc.db")

	backup, err := BackupFile(path, ".corrupt.bak")
	if err != nil || backup != "" {
		t.Fatalf("missing source: got (%q, %v), want (\"\", nil)", backup, err)
	}

	if err := os.WriteFile(path, []byte("garbage"), 0600); err != nil {
		t.Fatal(err)
	}
	backup, err = BackupFile(path, ".corrupt.bak")
	if err != nil {
		t.Fatalf("BackupFile failed: %v", err)
	}
	if backup != path+".corrupt.bak" {
		t.Errorf("backup path = %q", backup)
	}
	data, _ := os.ReadFile(backup)
	if string(data) != "garbage" {
		t.Errorf("backup content = %q", data)
	}
}

func TestTruncateWidth_CountsWideRunes(t *testing.T) {
	if got := TruncateWidth("한글창제목", 7); got != "한글..." {
		t.Errorf("TruncateWidth = %q, want %q", got, "한글...")
	}
	if TruncateWidth("short", 10) != "short" {
		t.Error("short strings must be unchanged")
	}
}

func TestSingleLine(t *testing.T) {
	if got := SingleLine("a\r\nb\nc\rd"); got != "a b c d" {
		t.Errorf("SingleLine = %q", got)
	}
}
