package fleet

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/opsdesk/opsdesk/internal/identity"
	"github.com/opsdesk/opsdesk/internal/platform/httpx"
	"github.com/opsdesk/opsdesk/internal/shared"
)

// Handler exposes fleet CRUD over HTTP.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validator: validator.New()}
}

// MountRoutes registers fleet routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Route("/{fleetID}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Patch("/", h.handleUpdate)
		r.Get("/issues", h.handleListIssues)
		r.Post("/issues", h.handleReportIssue)
		r.Patch("/issues/{issueID}", h.handleResolveIssue)
		r.Get("/maintenance", h.handleListMaintenance)
		r.Post("/maintenance", h.handleRecordMaintenance)
	})
}

type fleetResponse struct {
	ID                 string     `json:"id"`
	FleetNumber        string     `json:"fleet_number"`
	MachineType        string     `json:"machine_type"`
	Status             Status     `json:"status"`
	OperatorID         *uuid.UUID `json:"operator_id"`
	DepartmentID       string     `json:"department_id"`
	MachineHours       float64    `json:"machine_hours"`
	Condition          string     `json:"condition"`
	Remarks            string     `json:"remarks"`
	LastInspectionDate *time.Time `json:"last_inspection_date"`
	OpenIssues         int        `json:"open_issues"`
	LastMaintenance    *time.Time `json:"last_maintenance"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func toFleetResponse(f Fleet) fleetResponse {
	return fleetResponse{
		ID:                 f.ID.String(),
		FleetNumber:        f.FleetNumber,
		MachineType:        f.MachineType,
		Status:             f.Status,
		OperatorID:         f.OperatorID,
		DepartmentID:       f.DepartmentID.String(),
		MachineHours:       f.MachineHours,
		Condition:          f.Condition,
		Remarks:            f.Remarks,
		LastInspectionDate: f.LastInspectionDate,
		OpenIssues:         f.OpenIssues,
		LastMaintenance:    f.LastMaintenance,
		CreatedAt:          f.CreatedAt,
		UpdatedAt:          f.UpdatedAt,
	}
}

func principalOrFail(w http.ResponseWriter, r *http.Request) (identity.Principal, bool) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
	}
	return principal, ok
}

func fleetIDOrFail(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "fleetID"))
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return uuid.Nil, false
	}
	return id, true
}

type createFleetRequest struct {
	FleetNumber  string   `json:"fleet_number" validate:"required,max=50"`
	MachineType  string   `json:"machine_type" validate:"required,max=100"`
	Status       string   `json:"status"`
	DepartmentID string   `json:"department_id" validate:"required,uuid"`
	OperatorID   *string  `json:"operator_id"`
	MachineHours float64  `json:"machine_hours"`
	Condition    string   `json:"condition"`
	Remarks      string   `json:"remarks"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}
	var req createFleetRequest
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
	input := CreateInput{
		FleetNumber:  req.FleetNumber,
		MachineType:  req.MachineType,
		Status:       Status(req.Status),
		DepartmentID: departmentID,
		MachineHours: req.MachineHours,
		Condition:    req.Condition,
		Remarks:      req.Remarks,
	}
	if req.OperatorID != nil {
		operatorID, parseErr := uuid.Parse(*req.OperatorID)
		if parseErr != nil {
			httpx.RespondError(w, shared.ErrValidation)
			return
		}
		input.OperatorID = &operatorID
	}
	f, err := h.service.Create(r.Context(), principal, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toFleetResponse(f))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}
	fleets, err := h.service.List(r.Context(), principal)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]fleetResponse, 0, len(fleets))
	for _, f := range fleets {
		out = append(out, toFleetResponse(f))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}
	id, ok := fleetIDOrFail(w, r)
	if !ok {
		return
	}
	f, err := h.service.Get(r.Context(), principal, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toFleetResponse(f))
}

type updateFleetRequest struct {
	FleetNumber        *string    `json:"fleet_number"`
	MachineType        *string    `json:"machine_type"`
	Status             *string    `json:"status"`
	OperatorID         *string    `json:"operator_id"`
	MachineHours       *float64   `json:"machine_hours"`
	Condition          *string    `json:"condition"`
	Remarks            *string    `json:"remarks"`
	LastInspectionDate *time.Time `json:"last_inspection_date"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}
	id, ok := fleetIDOrFail(w, r)
	if !ok {
		return
	}
	var req updateFleetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	update := FleetUpdate{
		FleetNumber:        req.FleetNumber,
		MachineType:        req.MachineType,
		MachineHours:       req.MachineHours,
		Condition:          req.Condition,
		Remarks:            req.Remarks,
		LastInspectionDate: req.LastInspectionDate,
	}
	if req.Status != nil {
		status := Status(*req.Status)
		update.Status = &status
	}
	if req.OperatorID != nil {
		operatorID, err := uuid.Parse(*req.OperatorID)
		if err != nil {
			httpx.RespondError(w, shared.ErrValidation)
			return
		}
		update.OperatorID = &operatorID
	}
	f, err := h.service.Update(r.Context(), principal, id, update)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toFleetResponse(f))
}

type issueRequest struct {
	Description string `json:"description" validate:"required,max=2000"`
}

func (h *Handler) handleReportIssue(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}
	id, ok := fleetIDOrFail(w, r)
	if !ok {
		return
	}
	var req issueRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	issue, err := h.service.ReportIssue(r.Context(), principal, id, req.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, issue)
}

func (h *Handler) handleResolveIssue(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}
	id, ok := fleetIDOrFail(w, r)
	if !ok {
		return
	}
	issueID, err := uuid.Parse(chi.URLParam(r, "issueID"))
	if err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	issue, err := h.service.ResolveIssue(r.Context(), principal, id, issueID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, issue)
}

func (h *Handler) handleListIssues(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}
	id, ok := fleetIDOrFail(w, r)
	if !ok {
		return
	}
	issues, err := h.service.ListIssues(r.Context(), principal, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if issues == nil {
		issues = []Issue{}
	}
	httpx.JSON(w, http.StatusOK, issues)
}

type maintenanceRequest struct {
	MaintenanceDate *time.Time `json:"maintenance_date"`
	Description     string     `json:"description" validate:"required,max=2000"`
	PerformedBy     string     `json:"performed_by"`
	NextServiceDue  *time.Time `json:"next_service_due"`
	Remarks         string     `json:"remarks"`
}

func (h *Handler) handleRecordMaintenance(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}
	id, ok := fleetIDOrFail(w, r)
	if !ok {
		return
	}
	var req maintenanceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	input := MaintenanceInput{
		Description:    req.Description,
		PerformedBy:    req.PerformedBy,
		NextServiceDue: req.NextServiceDue,
		Remarks:        req.Remarks,
	}
	if req.MaintenanceDate != nil {
		input.MaintenanceDate = *req.MaintenanceDate
	}
	record, err := h.service.RecordMaintenance(r.Context(), principal, id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, record)
}

func (h *Handler) handleListMaintenance(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalOrFail(w, r)
	if !ok {
		return
	}
	id, ok := fleetIDOrFail(w, r)
	if !ok {
		return
	}
	records, err := h.service.ListMaintenance(r.Context(), principal, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if records == nil {
		records = []MaintenanceRecord{}
	}
	httpx.JSON(w, http.StatusOK, records)
}
