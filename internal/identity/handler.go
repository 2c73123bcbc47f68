package identity

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/opsdesk/opsdesk/internal/platform/httpx"
	"github.com/opsdesk/opsdesk/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
}

// HandleLogin exchanges email/password for a bearer token.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	profile, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	token, expiresAt, err := h.service.IssueToken(profile.ID, profile.Email, time.Now())
	if err != nil {
		h.logger.Error("issue token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    profile.ID.String(),
		Email:     profile.Email,
		FullName:  profile.FullName,
	})
}

type meResponse struct {
	UserID             string   `json:"user_id"`
	Email              string   `json:"email"`
	FullName           string   `json:"full_name"`
	Role               Role     `json:"role"`
	PrimaryDepartment  *string  `json:"primary_department,omitempty"`
	GrantedDepartments []string `json:"granted_departments"`
}

// HandleMe echoes the resolved principal. Mounted behind the bearer middleware.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	resp := meResponse{
		UserID:             principal.UserID.String(),
		Email:              principal.Email,
		FullName:           principal.FullName,
		Role:               principal.Role,
		GrantedDepartments: make([]string, 0, len(principal.GrantedDepartments)),
	}
	if principal.PrimaryDepartment != nil {
		dept := principal.PrimaryDepartment.String()
		resp.PrimaryDepartment = &dept
	}
	for _, id := range principal.GrantedDepartments {
		resp.GrantedDepartments = append(resp.GrantedDepartments, id.String())
	}
	httpx.JSON(w, http.StatusOK, resp)
}
