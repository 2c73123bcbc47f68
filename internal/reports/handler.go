package reports

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/opsdesk/opsdesk/internal/identity"
	"github.com/opsdesk/opsdesk/internal/platform/httpx"
	"github.com/opsdesk/opsdesk/internal/shared"
)

// Handler exposes the report workflow over HTTP. All routes assume the
// bearer middleware has already placed a principal in the context.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers report routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/stats", h.handleStats)
	r.Route("/{reportID}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Post("/submit", h.transition(h.service.Submit))
		r.Post("/review", h.transition(h.service.SupervisorApprove))
		r.Post("/reject", h.transition(h.service.SupervisorReject))
		r.Post("/request-changes", h.transition(h.service.RequestChanges))
		r.Post("/approve", h.transition(h.service.ManagerApprove))
		r.Post("/final-reject", h.transition(h.service.ManagerReject))
		r.Post("/escalate", h.transition(h.service.ManagerEscalate))
		r.Get("/comments", h.handleListComments)
		r.Post("/comments", h.handleAddComment)
	})
}

type createRequest struct {
	Title        string   `json:"title" validate:"required,max=200"`
	Description  string   `json:"description"`
	Type         string   `json:"type" validate:"required"`
	Priority     string   `json:"priority" validate:"required"`
	DepartmentID string   `json:"department_id" validate:"required,uuid"`
	Attachments  []string `json:"attachments"`
}

type reportResponse struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Type         Type       `json:"type"`
	Priority     Priority   `json:"priority"`
	Status       Status     `json:"status"`
	DepartmentID string     `json:"department_id"`
	CreatedBy    string     `json:"created_by"`
	Attachments  []string   `json:"attachments"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toReportResponse(r Report) reportResponse {
	attachments := r.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	return reportResponse{
		ID:           r.ID.String(),
		Title:        r.Title,
		Description:  r.Description,
		Type:         r.Type,
		Priority:     r.Priority,
		Status:       r.Status,
		DepartmentID: r.DepartmentID.String(),
		CreatedBy:    r.CreatedBy.String(),
		Attachments:  attachments,
		SubmittedAt:  r.SubmittedAt,
		ResolvedAt:   r.ResolvedAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	departmentID, err := uuid.Parse(req.DepartmentID)
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	report, err := h.service.Create(r.Context(), principal, CreateInput{
		Title:        req.Title,
		Description:  req.Description,
		Type:         Type(req.Type),
		Priority:     Priority(req.Priority),
		DepartmentID: departmentID,
		Attachments:  req.Attachments,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toReportResponse(report))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "reportID"))
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	report, err := h.service.Get(r.Context(), principal, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReportResponse(report))
}

type listResponse struct {
	Reports    []reportResponse  `json:"reports"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	reports, pagination, err := h.service.List(r.Context(), principal, filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]reportResponse, 0, len(reports))
	for _, report := range reports {
		out = append(out, toReportResponse(report))
	}
	httpx.JSON(w, http.StatusOK, listResponse{Reports: out, Pagination: pagination})
}

func parseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	filter := Filter{
		Status:   Status(q.Get("status")),
		Type:     Type(q.Get("type")),
		Priority: Priority(q.Get("priority")),
	}
	if raw := q.Get("department_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return Filter{}, shared.ErrValidation
		}
		filter.DepartmentID = &id
	}
	if raw := q.Get("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Filter{}, shared.ErrValidation
		}
		filter.From = &ts
	}
	if raw := q.Get("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Filter{}, shared.ErrValidation
		}
		filter.To = &ts
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	return filter, nil
}

type transitionRequest struct {
	Note string `json:"note"`
}

// transition adapts a named workflow operation into an HTTP handler. The
// note is optional; approval operations fall back to their default message.
func (h *Handler) transition(op func(ctx context.Context, principal identity.Principal, id uuid.UUID, note string) (Report, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := identity.PrincipalFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "reportID"))
		if err != nil {
			httpx.RespondError(w, shared.ErrValidation)
			return
		}
		var req transitionRequest
		if r.ContentLength > 0 {
			if err := httpx.DecodeJSON(r, &req); err != nil {
				httpx.RespondError(w, shared.ErrValidation)
				return
			}
		}
		report, err := op(r.Context(), principal, id, req.Note)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, toReportResponse(report))
	}
}

type commentRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

type commentResponse struct {
	ID        string    `json:"id"`
	ReportID  string    `json:"report_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	Action    Status    `json:"action,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toCommentResponse(c Comment) commentResponse {
	return commentResponse{
		ID:        c.ID.String(),
		ReportID:  c.ReportID.String(),
		UserID:    c.UserID.String(),
		Content:   c.Content,
		Action:    c.Action,
		CreatedAt: c.CreatedAt,
	}
}

func (h *Handler) handleAddComment(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "reportID"))
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	var req commentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	comment, err := h.service.AddComment(r.Context(), principal, id, req.Content)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toCommentResponse(comment))
}

func (h *Handler) handleListComments(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "reportID"))
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	comments, err := h.service.ListComments(r.Context(), principal, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]commentResponse, 0, len(comments))
	for _, comment := range comments {
		out = append(out, toCommentResponse(comment))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	result, err := h.service.Stats(r.Context(), principal)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
