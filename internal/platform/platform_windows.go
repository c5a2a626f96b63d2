// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build windows
// +build windows

package platform

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

const caseInsensitivePaths = true

var (
	user32                       = windows.NewLazySystemDLL("user32.dll")
	procGetForegroundWindow      = user32.NewProc("GetForegroundWindow")
	procGetWindowTextW           = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW     = user32.NewProc("GetWindowTextLengthW")
	procGetWindowThreadProcessID = user32.NewProc("GetWindowThreadProcessId")
)

// SystemRoots returns the Windows directory.
func SystemRoots() []string {
	dir, err := windows.GetSystemWindowsDirectory()
	if err != nil || dir == "" {
		return []string{`C:\Windows`}
	}
	return []string{dir}
}

// =============================================================================
// PROCESSES
// =============================================================================

type windowsProcesses struct{}

// NewProcessSource returns the process source of this machine.
func NewProcessSource() ProcessSource {
	return windowsProcesses{}
}

func (windowsProcesses) Processes() ([]Process, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot failed: %w", err)
	}
	defer windows.CloseHandle(snap)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	if err := windows.Process32First(snap, &entry); err != nil {
		return nil, fmt.Errorf("Process32First failed: %w", err)
	}

	var procs []Process
	for {
		procs = append(procs, Process{
			PID:  int(entry.ProcessID),
			Name: ShortName(windows.UTF16ToString(entry.ExeFile[:])),
		})
		if err := windows.Process32Next(snap, &entry); err != nil {
			if err == windows.ERROR_NO_MORE_FILES {
				break
			}
			return procs, fmt.Errorf("Process32Next failed: %w", err)
		}
	}
	return procs, nil
}

func (windowsProcesses) ExecutablePath(pid int) (string, error) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return "", err
	}
	defer windows.CloseHandle(h)

	buf := make([]uint16, windows.MAX_LONG_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return "", err
	}
	return windows.UTF16ToString(buf[:size]), nil
}

func (windowsProcesses) Terminate(pid int) error {
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return err
	}
	defer windows.CloseHandle(h)
	return windows.TerminateProcess(h, 1)
}

// =============================================================================
// FOREGROUND WINDOW
// =============================================================================

type windowsWindows struct {
	procs windowsProcesses
}

// NewWindowSource returns the foreground window source of this machine.
func NewWindowSource() WindowSource {
	return windowsWindows{}
}

func (ws windowsWindows) Foreground() (Window, bool, error) {
	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		return Window{}, false, nil
	}

	var pid uint32
	procGetWindowThreadProcessID.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
	if pid == 0 {
		return Window{}, false, nil
	}

	n, _, _ := procGetWindowTextLengthW.Call(hwnd)
	title := ""
	if n > 0 {
		buf := make([]uint16, n+1)
		got, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
		title = windows.UTF16ToString(buf[:got])
	}

	return Window{PID: int(pid), Title: title}, true, nil
}

func (ws windowsWindows) ProcessName(pid int) (string, error) {
	path, err := ws.procs.ExecutablePath(pid)
	if err == nil && path != "" {
		return ShortName(path), nil
	}

	procs, lerr := ws.procs.Processes()
	if lerr != nil {
		return "", lerr
	}
	for _, p := range procs {
		if p.PID == pid {
			return p.Name, nil
		}
	}
	return "", fmt.Errorf("process %d not found", pid)
}
