package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/artpar/instancedeck/internal/core/instance"
	"github.com/artpar/instancedeck/internal/shell/api/middleware"
	"github.com/artpar/instancedeck/internal/shell/api/openapi"
)

// =============================================================================
// Instance API Handlers
// =============================================================================

func (h *Handler) handleListInstances(w http.ResponseWriter, r *http.Request) {
	ids := r.URL.Query()["id"]

	items := h.instances.Describe(r.Context(), ids)

	h.writeJSON(w, http.StatusOK, InstanceListResponse{
		Region:    h.instances.Region(),
		Count:     len(items),
		Instances: items,
	})
}

func (h *Handler) handleStartInstance(w http.ResponseWriter, r *http.Request) {
	h.handleInstanceAction(w, r, instance.ActionStart)
}

func (h *Handler) handleStopInstance(w http.ResponseWriter, r *http.Request) {
	h.handleInstanceAction(w, r, instance.ActionStop)
}

func (h *Handler) handleInstanceAction(w http.ResponseWriter, r *http.Request, action instance.Action) {
	id := chi.URLParam(r, "id")

	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	dryRun := h.resolveDryRun(req.DryRun)

	var result instance.ActionResult
	switch action {
	case instance.ActionStart:
		result = h.instances.Start(r.Context(), id, dryRun)
	case instance.ActionStop:
		result = h.instances.Stop(r.Context(), id, dryRun)
	}

	h.writeJSON(w, actionStatus(result), newActionResponse(id, action, result))
}

// actionStatus maps an action result onto an HTTP status.
func actionStatus(result instance.ActionResult) int {
	if result.Success {
		return http.StatusOK
	}
	switch result.ErrorKind {
	case instance.ErrorKindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

// =============================================================================
// API Document
// =============================================================================

func newAPIDocument(cfg Config) *openapi.Generator {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	g := openapi.NewGenerator(
		openapi.WithVersion(version),
		openapi.WithSessionCookie(cfg.SessionCookie),
		openapi.WithErrorModel(middleware.ErrorResponse{}),
	)

	g.Register(openapi.Route{
		Method:      http.MethodGet,
		Path:        "/api/v1/instances",
		OperationID: "listInstances",
		Summary:     "List instances",
		Tag:         "Instances",
		Query: []openapi.QueryParam{
			{Name: "id", Description: "Restrict the listing to these instance ids", Repeated: true},
		},
		Response: InstanceListResponse{},
		Errors:   []int{http.StatusUnauthorized},
	})

	for _, action := range []instance.Action{instance.ActionStart, instance.ActionStop} {
		name := string(action)
		g.Register(openapi.Route{
			Method:      http.MethodPost,
			Path:        "/api/v1/instances/{id}/" + name,
			OperationID: name + "Instance",
			Summary:     action.RequestedMessage() + " for an instance",
			Tag:         "Instances",
			Request:     ActionRequest{},
			Response:    ActionResponse{},
			Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
		})
	}

	g.Register(openapi.Route{
		Method:      http.MethodGet,
		Path:        "/api/v1/openapi.json",
		OperationID: "getOpenAPI",
		Summary:     "This document",
		Tag:         "Meta",
		Public:      true,
	})

	return g
}
