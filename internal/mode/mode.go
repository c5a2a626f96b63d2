// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mode

import (
	"errors"
	"fmt"
)

// Mode is the screen the workstation is showing.
type Mode int

const (
	Locked Mode = iota
	LoggingIn
	ActiveSession
	AdminPanel
	Maintenance
)

func (m Mode) String() string {
	switch m {
	case Locked:
		return "locked"
	case LoggingIn:
		return "logging-in"
	case ActiveSession:
		return "active-session"
	case AdminPanel:
		return "admin-panel"
	case Maintenance:
		return "maintenance"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Event drives a transition.
type Event int

const (
	EventRequestLogin Event = iota
	EventCancelLogin
	EventSessionStarted
	EventSessionEnded
	EventAdminOpened
	EventAdminClosed
	EventMaintenanceEntered
	EventMaintenanceResumed
	EventFailure
)

func (e Event) String() string {
	switch e {
	case EventRequestLogin:
		return "request-login"
	case EventCancelLogin:
		return "cancel-login"
	case EventSessionStarted:
		return "session-started"
	case EventSessionEnded:
		return "session-ended"
	case EventAdminOpened:
		return "admin-opened"
	case EventAdminClosed:
		return "admin-closed"
	case EventMaintenanceEntered:
		return "maintenance-entered"
	case EventMaintenanceResumed:
		return "maintenance-resumed"
	case EventFailure:
		return "failure"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrTransition is returned for an event that is not valid in the current mode.
	ErrTransition = errors.New("transition not allowed")

	// ErrAdminOnly is returned when a user login is requested on an
	// administrator-only workstation.
	ErrAdminOnly = errors.New("workstation is reserved for administrators")

	// ErrMaintenance is returned when a user login is requested during maintenance.
	ErrMaintenance = errors.New("workstation is under maintenance")
)

// TransitionError describes a rejected event.
type TransitionError struct {
	From  Mode
	Event Event
	// Reason is ErrAdminOnly, ErrMaintenance or nil.
	Reason error
}

func (e *TransitionError) Error() string {
	if e.Reason != nil {
		return fmt.Sprintf("%s in %s: %v", e.Event, e.From, e.Reason)
	}
	return fmt.Sprintf("%s in %s: %v", e.Event, e.From, ErrTransition)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrTransition || (e.Reason != nil && target == e.Reason)
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// State is the current mode plus the mode the admin panel returns to.
type State struct {
	Mode Mode
	// Return is only meaningful while Mode is AdminPanel.
	Return Mode
}

// Guards are the facts a transition may depend on.
type Guards struct {
	AdminOnly   bool
	Maintenance bool
	SessionOpen bool
}

// Next computes the state after ev. It has no side effects.
func Next(s State, ev Event, g Guards) (State, error) {
	reject := func(reason error) (State, error) {
		return s, &TransitionError{From: s.Mode, Event: ev, Reason: reason}
	}

	switch ev {
	case EventFailure:
		return State{Mode: Locked}, nil

	case EventRequestLogin:
		if s.Mode != Locked {
			return reject(nil)
		}
		if g.AdminOnly {
			return reject(ErrAdminOnly)
		}
		if g.Maintenance {
			return reject(ErrMaintenance)
		}
		return State{Mode: LoggingIn}, nil

	case EventCancelLogin:
		if s.Mode != LoggingIn {
			return reject(nil)
		}
		return State{Mode: Locked}, nil

	case EventSessionStarted:
		if s.Mode != LoggingIn {
			return reject(nil)
		}
		return State{Mode: ActiveSession}, nil

	case EventSessionEnded:
		switch s.Mode {
		case ActiveSession, Locked:
			return State{Mode: Locked}, nil
		case AdminPanel:
			if s.Return == ActiveSession {
				s.Return = Locked
			}
			return s, nil
		case Maintenance:
			return s, nil
		}
		return reject(nil)

	case EventAdminOpened:
		if s.Mode == AdminPanel {
			return reject(nil)
		}
		return State{Mode: AdminPanel, Return: s.Mode}, nil

	case EventAdminClosed:
		if s.Mode != AdminPanel {
			return reject(nil)
		}
		back := s.Return
		switch {
		case back == ActiveSession && !g.SessionOpen:
			back = Locked
		case back == LoggingIn && (g.AdminOnly || g.Maintenance):
			back = Locked
		case back == Maintenance && !g.Maintenance:
			back = resumeTarget(g)
		}
		return State{Mode: back}, nil

	case EventMaintenanceEntered:
		if s.Mode == Maintenance {
			return reject(nil)
		}
		return State{Mode: Maintenance}, nil

	case EventMaintenanceResumed:
		switch {
		case s.Mode == Maintenance:
			return State{Mode: resumeTarget(g)}, nil
		case s.Mode == AdminPanel && s.Return == Maintenance:
			return State{Mode: AdminPanel, Return: resumeTarget(g)}, nil
		}
		return reject(nil)
	}
	return reject(nil)
}

func resumeTarget(g Guards) Mode {
	if g.SessionOpen {
		return ActiveSession
	}
	return Locked
}
