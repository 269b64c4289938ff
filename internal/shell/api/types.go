package api

import (
	"github.com/artpar/instancedeck/internal/core/instance"
)

// =============================================================================
// Request Types
// =============================================================================

// ActionRequest is the optional request body for start and stop.
// A missing dry_run means dry-run.
type ActionRequest struct {
	DryRun *bool `json:"dry_run,omitempty"`
}

// =============================================================================
// Response Types
// =============================================================================

// InstanceListResponse is the response for listing instances.
type InstanceListResponse struct {
	Region    string             `json:"region"`
	Count     int                `json:"count"`
	Instances []instance.Summary `json:"instances"`
}

// ActionResponse is the response for start and stop.
type ActionResponse struct {
	InstanceID   string             `json:"instance_id"`
	Action       instance.Action    `json:"action"`
	Success      bool               `json:"success"`
	DryRun       bool               `json:"dry_run"`
	Message      string             `json:"message"`
	CurrentState string             `json:"current_state,omitempty"`
	ErrorKind    instance.ErrorKind `json:"error_kind,omitempty"`
}

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// ReadyResponse is the response for readiness check.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func newActionResponse(id string, action instance.Action, result instance.ActionResult) ActionResponse {
	return ActionResponse{
		InstanceID:   id,
		Action:       action,
		Success:      result.Success,
		DryRun:       result.DryRun,
		Message:      result.Message,
		CurrentState: result.CurrentState,
		ErrorKind:    result.ErrorKind,
	}
}
