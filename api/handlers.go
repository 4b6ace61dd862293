/*
handlers.go - HTTP request handlers

PURPOSE:
  Implements the HTTP handlers for every REST endpoint. Each handler:
  1. Parses request parameters and body
  2. Calls an engine service
  3. Converts the result to a DTO
  4. Writes the JSON response

ARCHITECTURE:
  Handler holds one instance of every engine service, all built over the
  same SQLite store. The store also serves as the sales fact adapter and
  the branch/cashier directory, so a single process can be fed and queried
  without the journal subsystem.

ENDPOINTS (this file):
  Profiles:
    GET    /api/profiles                      - List weight profiles
    POST   /api/profiles                      - Create profile
    GET    /api/profiles/{id}                 - Get profile
    PUT    /api/profiles/{id}/default         - Make profile the default

  Targets:
    GET    /api/targets?year_month=           - List targets of a month
    POST   /api/targets                       - Create target (optionally generate)
    GET    /api/targets/{id}                  - Get target
    PUT    /api/targets/{id}                  - Update amount/profile/notes
    DELETE /api/targets/{id}                  - Delete target and allocations
    POST   /api/targets/{id}/generate         - (Re)generate daily allocations
    GET    /api/targets/{id}/allocations      - List daily allocations
    PUT    /api/allocations/{id}              - Override one day

  Analytics:
    GET    /api/branches/{id}/performance     - Monthly performance + projection
    GET    /api/branches/{id}/cashiers/leaderboard - Cashier ranking
    GET    /api/leaderboard                   - Branch achievement ranking
    GET    /api/leaderboard/competition       - Branch raw sales ranking
    GET    /api/alerts                        - Branch alert levels

  Snapshots:
    GET    /api/branches/{id}/snapshots              - Stored snapshots of a range
    POST   /api/branches/{id}/snapshots/refresh      - Recompute a range
    GET    /api/branches/{id}/snapshots/{date}       - Snapshot, recomputed when stale
    POST   /api/branches/{id}/snapshots/{date}/refresh - Recompute one day

  Sales journal and directory:
    POST   /api/sales                         - Record a sales fact
    GET    /api/branches, POST /api/branches  - Branch directory
    GET    /api/cashiers, POST /api/cashiers  - Cashier directory
    POST   /api/reference                     - Import a reference-data document
    POST   /api/reset                         - Reset database (dev only)

  Payout endpoints live in payouts.go.

ERROR HANDLING:
  Errors are classified by the model error taxonomy:
  - 400: Validation error (bad input)
  - 404: Record not found
  - 409: Duplicate record, illegal payout transition, concurrent regeneration
  - 422: Stored configuration cannot support the computation
  - 500: Internal error (logged)

SEE ALSO:
  - dto.go: Request/response types
  - payouts.go: Tier, award, rate and commission handlers
  - server.go: Router configuration
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ovenline/sales-targets/commission"
	"github.com/ovenline/sales-targets/config"
	"github.com/ovenline/sales-targets/factory"
	"github.com/ovenline/sales-targets/incentives"
	"github.com/ovenline/sales-targets/leaderboard"
	"github.com/ovenline/sales-targets/model"
	"github.com/ovenline/sales-targets/performance"
	"github.com/ovenline/sales-targets/snapshot"
	"github.com/ovenline/sales-targets/store/sqlite"
	"github.com/ovenline/sales-targets/targets"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       *sqlite.Store
	Profiles    *targets.ProfileService
	Targets     *targets.Manager
	Allocations *targets.Generator
	Performance *performance.Calculator
	Incentives  *incentives.Service
	Commission  *commission.Service
	Leaderboard *leaderboard.Service
	Snapshots   *snapshot.Cache

	// SnapshotMaxAge is the staleness bound for snapshot reads.
	SnapshotMaxAge time.Duration

	Log logrus.FieldLogger
	Now func() time.Time
}

// NewHandler builds every engine service over store.
func NewHandler(store *sqlite.Store, cfg *config.Config, log logrus.FieldLogger) *Handler {
	log = model.LoggerOrDiscard(log)
	perf := performance.NewCalculator(store, store, log)
	return &Handler{
		Store:          store,
		Profiles:       targets.NewProfileService(store, log),
		Targets:        targets.NewManager(store, log),
		Allocations:    targets.NewGenerator(store, cfg.RegenerateMode, log),
		Performance:    perf,
		Incentives:     incentives.NewService(store, perf, store, store, log),
		Commission:     commission.NewService(store, store, store, log),
		Leaderboard:    leaderboard.NewService(perf, store, store, store, cfg.Parallelism, log),
		Snapshots:      snapshot.NewCache(store, store, cfg.Parallelism, log),
		SnapshotMaxAge: cfg.SnapshotMaxAge,
		Log:            log,
		Now:            time.Now,
	}
}

// =============================================================================
// PROFILE HANDLERS
// =============================================================================

// ListProfiles returns all weight profiles.
// GET /api/profiles
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.Profiles.List(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list profiles", err)
		return
	}
	dtos := make([]ProfileDTO, len(profiles))
	for i, p := range profiles {
		dtos[i] = toProfileDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProfile stores a new weight profile.
// POST /api/profiles
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req factory.ProfileJSON
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	p, err := h.Profiles.Create(r.Context(), req.ProfileInput())
	if err != nil {
		h.fail(w, r, "Failed to create profile", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProfileDTO(*p))
}

// GetProfile returns a single profile.
// GET /api/profiles/{id}
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.Profiles.Get(r.Context(), model.ProfileID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to get profile", err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(*p))
}

// SetDefaultProfile makes the profile the only default.
// PUT /api/profiles/{id}/default
func (h *Handler) SetDefaultProfile(w http.ResponseWriter, r *http.Request) {
	id := model.ProfileID(chi.URLParam(r, "id"))
	if err := h.Profiles.SetDefault(r.Context(), id); err != nil {
		h.fail(w, r, "Failed to set default profile", err)
		return
	}
	p, err := h.Profiles.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Failed to get profile", err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(*p))
}

// =============================================================================
// TARGET HANDLERS
// =============================================================================

// ListTargets returns every target of a month.
// GET /api/targets?year_month=2025-02
func (h *Handler) ListTargets(w http.ResponseWriter, r *http.Request) {
	ym, err := monthParam(r)
	if err != nil {
		h.fail(w, r, "Invalid month", err)
		return
	}
	list, err := h.Targets.List(r.Context(), ym)
	if err != nil {
		h.fail(w, r, "Failed to list targets", err)
		return
	}
	dtos := make([]TargetDTO, len(list))
	for i, t := range list {
		dtos[i] = toTargetDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTarget creates a draft target. With "generate": true the daily
// allocations are generated in the same call and the target comes back active.
// POST /api/targets
func (h *Handler) CreateTarget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CreateTargetRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}

	t, err := h.Targets.Create(ctx, targets.TargetInput{
		BranchID:     model.BranchID(req.BranchID),
		YearMonth:    req.YearMonth,
		TargetAmount: req.TargetAmount,
		ProfileID:    model.ProfileID(req.ProfileID),
		Notes:        req.Notes,
		CreatedBy:    req.CreatedBy,
	})
	if err != nil {
		h.fail(w, r, "Failed to create target", err)
		return
	}

	if req.Generate {
		if _, err := h.Allocations.Generate(ctx, t.ID); err != nil {
			h.fail(w, r, "Target created but allocation failed", err)
			return
		}
		if t, err = h.Targets.Get(ctx, t.ID); err != nil {
			h.fail(w, r, "Failed to get target", err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, toTargetDTO(*t))
}

// GetTarget returns a single target.
// GET /api/targets/{id}
func (h *Handler) GetTarget(w http.ResponseWriter, r *http.Request) {
	t, err := h.Targets.Get(r.Context(), model.TargetID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to get target", err)
		return
	}
	writeJSON(w, http.StatusOK, toTargetDTO(*t))
}

// UpdateTarget changes amount, profile or notes. Allocations are untouched
// until the next generate call.
// PUT /api/targets/{id}
func (h *Handler) UpdateTarget(w http.ResponseWriter, r *http.Request) {
	var req UpdateTargetRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	upd := targets.TargetUpdate{TargetAmount: req.TargetAmount, Notes: req.Notes}
	if req.ProfileID != nil {
		pid := model.ProfileID(*req.ProfileID)
		upd.ProfileID = &pid
	}
	t, err := h.Targets.Update(r.Context(), model.TargetID(chi.URLParam(r, "id")), upd)
	if err != nil {
		h.fail(w, r, "Failed to update target", err)
		return
	}
	writeJSON(w, http.StatusOK, toTargetDTO(*t))
}

// DeleteTarget removes the target and its allocations.
// DELETE /api/targets/{id}
func (h *Handler) DeleteTarget(w http.ResponseWriter, r *http.Request) {
	if err := h.Targets.Delete(r.Context(), model.TargetID(chi.URLParam(r, "id"))); err != nil {
		h.fail(w, r, "Failed to delete target", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GenerateAllocations (re)generates the target's daily allocations. The body
// is optional; {"mode": "preserve_overrides"} keeps manually edited days.
// POST /api/targets/{id}/generate
func (h *Handler) GenerateAllocations(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := decodeOptional(r, &req); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	mode := h.Allocations.Mode
	if req.Mode != "" {
		mode = targets.RegenerateMode(req.Mode)
	}

	rows, err := h.Allocations.Regenerate(r.Context(), model.TargetID(chi.URLParam(r, "id")), mode)
	if err != nil {
		h.fail(w, r, "Failed to generate allocations", err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTOs(rows))
}

// ListAllocations returns the target's allocations in date order.
// GET /api/targets/{id}/allocations
func (h *Handler) ListAllocations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := h.Targets.Get(ctx, model.TargetID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to get target", err)
		return
	}
	rows, err := h.Allocations.List(ctx, t.ID)
	if err != nil {
		h.fail(w, r, "Failed to list allocations", err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTOs(rows))
}

// OverrideAllocation edits one day's allocation.
// PUT /api/allocations/{id}
func (h *Handler) OverrideAllocation(w http.ResponseWriter, r *http.Request) {
	var req OverrideRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	a, err := h.Allocations.Override(r.Context(), targets.OverrideInput{
		AllocationID: model.AllocationID(chi.URLParam(r, "id")),
		DailyTarget:  req.DailyTarget,
		IsHoliday:    req.IsHoliday,
		Reason:       req.Reason,
	})
	if err != nil {
		h.fail(w, r, "Failed to override allocation", err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTOs([]model.DailyAllocation{*a})[0])
}

// =============================================================================
// ANALYTICS HANDLERS
// =============================================================================

// GetPerformance returns a branch's monthly performance and projection.
// GET /api/branches/{id}/performance?year_month=2025-02&as_of=2025-02-15
func (h *Handler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	ym, err := monthParam(r)
	if err != nil {
		h.fail(w, r, "Invalid month", err)
		return
	}
	asOf, err := h.asOfParam(r)
	if err != nil {
		h.fail(w, r, "Invalid as_of date", err)
		return
	}
	perf, err := h.Performance.Monthly(r.Context(), model.BranchID(chi.URLParam(r, "id")), ym, asOf)
	if err != nil {
		h.fail(w, r, "Failed to compute performance", err)
		return
	}
	writeJSON(w, http.StatusOK, toPerformanceDTO(*perf))
}

// GetLeaderboard ranks branches with a target by achievement percent.
// GET /api/leaderboard?year_month=2025-02&as_of=2025-02-15
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ym, err := monthParam(r)
	if err != nil {
		h.fail(w, r, "Invalid month", err)
		return
	}
	asOf, err := h.asOfParam(r)
	if err != nil {
		h.fail(w, r, "Invalid as_of date", err)
		return
	}
	entries, err := h.Leaderboard.Branches(r.Context(), ym, asOf)
	if err != nil {
		h.fail(w, r, "Failed to rank branches", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// GetCompetition ranks every branch by raw sales over a period.
// GET /api/leaderboard/competition?start=2025-02-01&end=2025-02-28
func (h *Handler) GetCompetition(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r)
	if err != nil {
		h.fail(w, r, "Invalid period", err)
		return
	}
	entries, err := h.Leaderboard.Competition(r.Context(), period)
	if err != nil {
		h.fail(w, r, "Failed to rank branches", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// GetCashierLeaderboard ranks a branch's cashiers by sales.
// GET /api/branches/{id}/cashiers/leaderboard?start=...&end=...
func (h *Handler) GetCashierLeaderboard(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r)
	if err != nil {
		h.fail(w, r, "Invalid period", err)
		return
	}
	entries, err := h.Leaderboard.Cashiers(r.Context(), model.BranchID(chi.URLParam(r, "id")), period)
	if err != nil {
		h.fail(w, r, "Failed to rank cashiers", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// GetAlerts classifies every branch with a target.
// GET /api/alerts?year_month=2025-02&as_of=2025-02-15
func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	ym, err := monthParam(r)
	if err != nil {
		h.fail(w, r, "Invalid month", err)
		return
	}
	asOf, err := h.asOfParam(r)
	if err != nil {
		h.fail(w, r, "Invalid as_of date", err)
		return
	}
	alerts, err := h.Leaderboard.Alerts(r.Context(), ym, asOf)
	if err != nil {
		h.fail(w, r, "Failed to compute alerts", err)
		return
	}
	writeJSON(w, http.StatusOK, toAlertDTOs(alerts))
}

// =============================================================================
// SNAPSHOT HANDLERS
// =============================================================================

// GetSnapshot returns the day's snapshot, recomputing it when missing or
// older than the configured max age.
// GET /api/branches/{id}/snapshots/{date}
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	date, err := model.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		h.fail(w, r, "Invalid date", err)
		return
	}
	s, err := h.Snapshots.Get(r.Context(), model.BranchID(chi.URLParam(r, "id")), date, h.SnapshotMaxAge)
	if err != nil {
		h.fail(w, r, "Failed to get snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTO(*s))
}

// RefreshSnapshot recomputes one day.
// POST /api/branches/{id}/snapshots/{date}/refresh
func (h *Handler) RefreshSnapshot(w http.ResponseWriter, r *http.Request) {
	date, err := model.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		h.fail(w, r, "Invalid date", err)
		return
	}
	s, err := h.Snapshots.Refresh(r.Context(), model.BranchID(chi.URLParam(r, "id")), date)
	if err != nil {
		h.fail(w, r, "Failed to refresh snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTO(*s))
}

// ListSnapshots returns stored snapshots without recomputing.
// GET /api/branches/{id}/snapshots?start=...&end=...
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r)
	if err != nil {
		h.fail(w, r, "Invalid period", err)
		return
	}
	rows, err := h.Snapshots.List(r.Context(), model.BranchID(chi.URLParam(r, "id")), period)
	if err != nil {
		h.fail(w, r, "Failed to list snapshots", err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTOs(rows))
}

// RefreshSnapshots backfills a range of days.
// POST /api/branches/{id}/snapshots/refresh?start=...&end=...
func (h *Handler) RefreshSnapshots(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r)
	if err != nil {
		h.fail(w, r, "Invalid period", err)
		return
	}
	rows, err := h.Snapshots.RefreshRange(r.Context(), model.BranchID(chi.URLParam(r, "id")), period)
	if err != nil {
		h.fail(w, r, "Failed to refresh snapshots", err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTOs(rows))
}

// =============================================================================
// SALES JOURNAL AND DIRECTORY HANDLERS
// =============================================================================

// RecordSale stores a sales fact and refreshes that day's snapshot.
// POST /api/sales
func (h *Handler) RecordSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req SalesFactRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		h.fail(w, r, "Invalid date", err)
		return
	}
	if req.TotalSales.IsNegative() {
		h.fail(w, r, "Invalid request body", &model.InputError{Field: "totalSales", Reason: "must be at least 0"})
		return
	}

	fact := model.SalesFact{
		ID:               model.FactID(req.ID),
		BranchID:         model.BranchID(req.BranchID),
		CashierID:        model.CashierID(req.CashierID),
		Date:             date,
		Shift:            model.ShiftType(req.Shift),
		TotalSales:       req.TotalSales,
		TransactionCount: req.TransactionCount,
		Status:           model.JournalStatus(req.Status),
	}
	if err := h.Store.SaveFact(ctx, fact); err != nil {
		h.fail(w, r, "Failed to save sales fact", err)
		return
	}

	// The fact is stored either way; a failed refresh only leaves the
	// snapshot stale until its next read.
	if _, err := h.Snapshots.Refresh(ctx, fact.BranchID, fact.Date); err != nil {
		h.Log.WithError(err).WithField("fact_id", fact.ID).Warn("snapshot refresh after sale failed")
	}
	writeJSON(w, http.StatusCreated, req)
}

// ListBranches returns the branch directory.
// GET /api/branches
func (h *Handler) ListBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := h.Store.ListBranches(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list branches", err)
		return
	}
	dtos := make([]BranchDTO, len(branches))
	for i, b := range branches {
		dtos[i] = BranchDTO{ID: string(b.ID), Name: b.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveBranch creates or renames a branch.
// POST /api/branches
func (h *Handler) SaveBranch(w http.ResponseWriter, r *http.Request) {
	var req BranchDTO
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	if err := h.Store.SaveBranch(r.Context(), model.Branch{ID: model.BranchID(req.ID), Name: req.Name}); err != nil {
		h.fail(w, r, "Failed to save branch", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// ListCashiers returns cashiers, optionally of one branch.
// GET /api/cashiers?branch_id=...
func (h *Handler) ListCashiers(w http.ResponseWriter, r *http.Request) {
	cashiers, err := h.Store.ListCashiers(r.Context(), model.BranchID(r.URL.Query().Get("branch_id")))
	if err != nil {
		h.fail(w, r, "Failed to list cashiers", err)
		return
	}
	dtos := make([]CashierDTO, len(cashiers))
	for i, c := range cashiers {
		dtos[i] = CashierDTO{ID: string(c.ID), BranchID: string(c.BranchID), Name: c.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveCashier creates or updates a cashier.
// POST /api/cashiers
func (h *Handler) SaveCashier(w http.ResponseWriter, r *http.Request) {
	var req CashierDTO
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	c := model.Cashier{ID: model.CashierID(req.ID), BranchID: model.BranchID(req.BranchID), Name: req.Name}
	if err := h.Store.SaveCashier(r.Context(), c); err != nil {
		h.fail(w, r, "Failed to save cashier", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// ImportReference applies a reference-data document (see factory package).
// POST /api/reference
func (h *Handler) ImportReference(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.fail(w, r, "Failed to read body", err)
		return
	}
	rd, err := factory.Parse(body)
	if err != nil {
		h.fail(w, r, "Invalid reference data", err)
		return
	}
	sum, err := factory.Apply(r.Context(), h.Services(), rd)
	if err != nil {
		h.fail(w, r, "Failed to apply reference data", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"profiles": sum.Profiles,
		"tiers":    sum.Tiers,
		"rates":    sum.Rates,
		"branches": sum.Branches,
		"cashiers": sum.Cashiers,
	})
}

// Services exposes the handler's services as reference-data sinks.
func (h *Handler) Services() factory.Services {
	return factory.Services{
		Profiles:   h.Profiles,
		Incentives: h.Incentives,
		Commission: h.Commission,
		Directory:  h.Store,
		Log:        h.Log,
	}
}

// ResetDatabase clears all data. Development only.
// POST /api/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		h.fail(w, r, "Failed to reset database", err)
		return
	}
	h.Log.Warn("database reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// fail writes err with the status its category maps to. Unclassified errors
// are logged since the client cannot act on them.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		config.LogError(h.Log, "api", r.Method+" "+r.URL.Path, err, logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
		})
	}
	writeError(w, status, message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrDuplicate),
		errors.Is(err, model.ErrInvalidTransition),
		model.IsRetryable(err):
		return http.StatusConflict
	case model.IsConfigError(err):
		return http.StatusUnprocessableEntity
	case model.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into v and checks its validator tags.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var inputErr *model.InputError
		if errors.As(err, &inputErr) {
			return err
		}
		return &model.InputError{Field: "body", Reason: err.Error()}
	}
	return model.Validate(v)
}

// decodeOptional is decode for endpoints whose body may be empty.
func decodeOptional(r *http.Request, v any) error {
	err := decode(r, v)
	var inputErr *model.InputError
	if errors.As(err, &inputErr) && inputErr.Field == "body" && inputErr.Reason == io.EOF.Error() {
		return nil
	}
	return err
}

func monthParam(r *http.Request) (model.YearMonth, error) {
	raw := r.URL.Query().Get("year_month")
	if raw == "" {
		return model.YearMonth{}, &model.InputError{Field: "year_month", Reason: "is required"}
	}
	return model.ParseYearMonth(raw)
}

// asOfParam defaults to today.
func (h *Handler) asOfParam(r *http.Request) (model.Date, error) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return model.DateOf(h.Now()), nil
	}
	return model.ParseDate(raw)
}

func periodParam(r *http.Request) (model.DateRange, error) {
	q := r.URL.Query()
	from, err := model.ParseDate(q.Get("start"))
	if err != nil {
		return model.DateRange{}, err
	}
	to, err := model.ParseDate(q.Get("end"))
	if err != nil {
		return model.DateRange{}, err
	}
	period := model.DateRange{From: from, To: to}
	return period, period.Validate()
}

// optionalPeriod is periodParam when both bounds are given and nil when
// neither is.
func optionalPeriod(r *http.Request) (*model.DateRange, error) {
	q := r.URL.Query()
	if q.Get("start") == "" && q.Get("end") == "" {
		return nil, nil
	}
	period, err := periodParam(r)
	if err != nil {
		return nil, err
	}
	return &period, nil
}
