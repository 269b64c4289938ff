// Package instance contains the compute instance types shared by the web layer
// and the provider façade.
// This is part of the Functional Core - all functions are pure with no I/O.
package instance

import (
	"time"
)

// =============================================================================
// Instance State
// =============================================================================

// State is the lifecycle state reported by the provider for an instance.
// The provider owns the lifecycle; this package only observes it.
type State string

const (
	StatePending      State = "pending"
	StateRunning      State = "running"
	StateStopping     State = "stopping"
	StateStopped      State = "stopped"
	StateShuttingDown State = "shutting-down"
	StateTerminated   State = "terminated"
	StateUnknown      State = "unknown"
)

// ParseState maps a provider state name onto State.
// Anything unrecognised, including the empty string, becomes StateUnknown.
func ParseState(name string) State {
	switch s := State(name); s {
	case StatePending, StateRunning, StateStopping, StateStopped, StateShuttingDown, StateTerminated:
		return s
	default:
		return StateUnknown
	}
}

// IsValid checks if the state is one of the known states.
func (s State) IsValid() bool {
	switch s {
	case StatePending, StateRunning, StateStopping, StateStopped, StateShuttingDown, StateTerminated, StateUnknown:
		return true
	default:
		return false
	}
}

// CanStart returns true if a start request makes sense for the state.
func (s State) CanStart() bool {
	return s == StateStopped
}

// CanStop returns true if a stop request makes sense for the state.
func (s State) CanStop() bool {
	return s == StatePending || s == StateRunning
}

// IsFinal returns true if no further transition can happen.
func (s State) IsFinal() bool {
	return s == StateTerminated
}

// =============================================================================
// Summary
// =============================================================================

// Summary is the normalized view of one provider instance.
// It is produced fresh on every describe call and never persisted.
type Summary struct {
	InstanceID   string `json:"instance_id" yaml:"instance_id"`
	Name         string `json:"name" yaml:"name"`
	InstanceType string `json:"instance_type" yaml:"instance_type"`
	State        State  `json:"state" yaml:"state"`
	PrivateIP    string `json:"private_ip,omitempty" yaml:"private_ip,omitempty"`
	LaunchTime   string `json:"launch_time" yaml:"launch_time"`
}

// LaunchTimeFormat is the layout used for Summary.LaunchTime.
const LaunchTimeFormat = time.RFC3339

// FormatLaunchTime renders a provider launch timestamp as RFC 3339 in UTC.
// A nil timestamp renders as the empty string.
func FormatLaunchTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(LaunchTimeFormat)
}

// ParseLaunchTime parses a Summary.LaunchTime value back into a time.
func ParseLaunchTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(LaunchTimeFormat, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// =============================================================================
// Tags
// =============================================================================

// NameTagKey is the tag key holding an instance's display name.
const NameTagKey = "Name"

// Tag is a provider key/value tag. Either side may be absent.
type Tag struct {
	Key   *string
	Value *string
}

// TagValue returns the value of the first tag whose key equals key exactly.
// Tag order is provider-defined, so with duplicate keys the first one wins.
func TagValue(tags []Tag, key string) string {
	for _, tag := range tags {
		if tag.Key != nil && *tag.Key == key {
			if tag.Value != nil {
				return *tag.Value
			}
			return ""
		}
	}
	return ""
}

// NameFromTags returns the value of the Name tag, or "" when there is none.
func NameFromTags(tags []Tag) string {
	return TagValue(tags, NameTagKey)
}

// =============================================================================
// Actions
// =============================================================================

// Action is a state change that can be requested from the provider.
type Action string

const (
	ActionStart Action = "start"
	ActionStop  Action = "stop"
)

// RequestedMessage returns the message reported when the provider accepts the action.
func (a Action) RequestedMessage() string {
	switch a {
	case ActionStart:
		return "Start requested"
	case ActionStop:
		return "Stop requested"
	default:
		return "Request accepted"
	}
}

// DryRunMessage is reported when the provider only validated a dry-run request.
const DryRunMessage = "DryRunOperation: request would have succeeded."

// ActionResult is the outcome of a start or stop request.
// It is consumed immediately by the caller, typically to render a flash message.
type ActionResult struct {
	Success      bool      `json:"success"`
	DryRun       bool      `json:"dry_run"`
	Message      string    `json:"message"`
	CurrentState string    `json:"current_state,omitempty"`
	ErrorKind    ErrorKind `json:"error_kind,omitempty"`
}

// Accepted builds the result for a request the provider executed.
// currentState may be empty when the response did not carry one.
func Accepted(action Action, dryRun bool, currentState string) ActionResult {
	return ActionResult{
		Success:      true,
		DryRun:       dryRun,
		Message:      action.RequestedMessage(),
		CurrentState: currentState,
	}
}

// DryRunAcknowledged builds the result for a validated-only dry-run request.
func DryRunAcknowledged() ActionResult {
	return ActionResult{
		Success:   true,
		DryRun:    true,
		Message:   DryRunMessage,
		ErrorKind: ErrorKindDryRunAck,
	}
}

// Failed builds the result for a request the provider rejected.
// The provider's error text is surfaced verbatim.
func Failed(dryRun bool, kind ErrorKind, message string) ActionResult {
	return ActionResult{
		Success:   false,
		DryRun:    dryRun,
		Message:   message,
		ErrorKind: kind,
	}
}
