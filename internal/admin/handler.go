package admin

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opsdesk/opsdesk/internal/identity"
	"github.com/opsdesk/opsdesk/internal/platform/httpx"
	"github.com/opsdesk/opsdesk/internal/shared"
)

// Handler exposes the privileged RPC endpoint. Unlike the rest of the API
// it answers with the legacy {success,message}/{error} envelope that the
// administration screen consumes, not problem details.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers admin routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/manage-user", h.handleManageUser)
	r.Get("/users", h.handleListUsers)
}

type manageUserRequest struct {
	Action        string   `json:"action"`
	UserID        string   `json:"userId"`
	Role          *string  `json:"role"`
	FullName      *string  `json:"fullName"`
	DepartmentID  *string  `json:"departmentId"`
	DepartmentIDs []string `json:"departmentIds"`
}

type successEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error string `json:"error"`
}

func (h *Handler) handleManageUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		httpx.JSON(w, http.StatusUnauthorized, errorEnvelope{Error: "authentication required"})
		return
	}
	var req manageUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.JSON(w, http.StatusBadRequest, errorEnvelope{Error: "invalid request body"})
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		httpx.JSON(w, http.StatusBadRequest, errorEnvelope{Error: "userId must be a valid id"})
		return
	}

	ctx := r.Context()
	var message string
	switch req.Action {
	case "update":
		input := UpdateInput{FullName: req.FullName}
		if req.Role != nil {
			role := identity.Role(*req.Role)
			input.Role = &role
		}
		if req.DepartmentID != nil {
			id, parseErr := uuid.Parse(*req.DepartmentID)
			if parseErr != nil {
				httpx.JSON(w, http.StatusBadRequest, errorEnvelope{Error: "departmentId must be a valid id"})
				return
			}
			input.DepartmentID = &id
		}
		err = h.service.UpdateUser(ctx, principal, userID, input)
		message = "User updated successfully"
	case "delete":
		err = h.service.DeleteUser(ctx, principal, userID)
		message = "User deleted successfully"
	case "grant_department_access":
		var departmentID uuid.UUID
		departmentID, err = parseDepartmentID(req.DepartmentID)
		if err == nil {
			err = h.service.GrantDepartmentAccess(ctx, principal, userID, departmentID)
		}
		message = "Department access granted"
	case "revoke_department_access":
		var departmentID uuid.UUID
		departmentID, err = parseDepartmentID(req.DepartmentID)
		if err == nil {
			err = h.service.RevokeDepartmentAccess(ctx, principal, userID, departmentID)
		}
		message = "Department access revoked"
	case "update_department_access":
		ids := make([]uuid.UUID, 0, len(req.DepartmentIDs))
		for _, raw := range req.DepartmentIDs {
			id, parseErr := uuid.Parse(raw)
			if parseErr != nil {
				httpx.JSON(w, http.StatusBadRequest, errorEnvelope{Error: "departmentIds must be valid ids"})
				return
			}
			ids = append(ids, id)
		}
		err = h.service.UpdateDepartmentAccess(ctx, principal, userID, ids)
		message = "Department access updated"
	default:
		httpx.JSON(w, http.StatusBadRequest, errorEnvelope{Error: "unknown action"})
		return
	}

	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, successEnvelope{Success: true, Message: message})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		httpx.JSON(w, http.StatusUnauthorized, errorEnvelope{Error: "authentication required"})
		return
	}
	users, err := h.service.ListUsers(r.Context(), principal)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if users == nil {
		users = []UserSummary{}
	}
	httpx.JSON(w, http.StatusOK, users)
}

// respondError maps domain errors to the envelope contract. Duplicate
// grants surface as 400, not 409.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrUnauthenticated):
		httpx.JSON(w, http.StatusUnauthorized, errorEnvelope{Error: "authentication required"})
	case errors.Is(err, shared.ErrForbidden):
		httpx.JSON(w, http.StatusForbidden, errorEnvelope{Error: "insufficient permissions"})
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrConflict), errors.Is(err, shared.ErrNotFound):
		httpx.JSON(w, http.StatusBadRequest, errorEnvelope{Error: shared.UserSafeMessage(err)})
	default:
		if h.logger != nil {
			h.logger.Error("manage user", slog.Any("error", err))
		}
		httpx.JSON(w, http.StatusInternalServerError, errorEnvelope{Error: "internal error"})
	}
}

func parseDepartmentID(raw *string) (uuid.UUID, error) {
	if raw == nil {
		return uuid.Nil, fmt.Errorf("departmentId is required: %w", shared.ErrValidation)
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("departmentId must be a valid id: %w", shared.ErrValidation)
	}
	return id, nil
}
