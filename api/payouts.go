package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ovenline/sales-targets/factory"
	"github.com/ovenline/sales-targets/model"
)

// =============================================================================
// INCENTIVE TIER HANDLERS
// =============================================================================
//
//   GET    /api/tiers
//   POST   /api/tiers
//   PUT    /api/tiers/{id}
//   DELETE /api/tiers/{id}

func (h *Handler) ListTiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.Incentives.ListTiers(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list tiers", err)
		return
	}
	dtos := make([]TierDTO, len(tiers))
	for i, t := range tiers {
		dtos[i] = toTierDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateTier(w http.ResponseWriter, r *http.Request) {
	var req factory.TierJSON
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	t, err := h.Incentives.CreateTier(r.Context(), req.TierInput())
	if err != nil {
		h.fail(w, r, "Failed to create tier", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTierDTO(*t))
}

func (h *Handler) UpdateTier(w http.ResponseWriter, r *http.Request) {
	var req factory.TierJSON
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	id := model.TierID(chi.URLParam(r, "id"))
	t, err := h.Incentives.UpdateTier(r.Context(), id, req.TierInput())
	if err != nil {
		h.fail(w, r, "Failed to update tier", err)
		return
	}
	writeJSON(w, http.StatusOK, toTierDTO(*t))
}

func (h *Handler) DeleteTier(w http.ResponseWriter, r *http.Request) {
	if err := h.Incentives.DeleteTier(r.Context(), model.TierID(chi.URLParam(r, "id"))); err != nil {
		h.fail(w, r, "Failed to delete tier", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// INCENTIVE AWARD HANDLERS
// =============================================================================

// EvaluateBranch awards a branch for a month.
// POST /api/awards/branch
func (h *Handler) EvaluateBranch(w http.ResponseWriter, r *http.Request) {
	var req EvaluateBranchRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	ym, err := model.ParseYearMonth(req.YearMonth)
	if err != nil {
		h.fail(w, r, "Invalid month", err)
		return
	}
	asOf := model.DateOf(h.Now())
	if req.AsOf != "" {
		if asOf, err = model.ParseDate(req.AsOf); err != nil {
			h.fail(w, r, "Invalid as_of date", err)
			return
		}
	}

	a, err := h.Incentives.EvaluateBranch(r.Context(), model.BranchID(req.BranchID), ym, asOf)
	if err != nil {
		h.fail(w, r, "Failed to evaluate branch", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAwardDTO(*a))
}

// EvaluateCashier awards a cashier against a caller-supplied target.
// POST /api/awards/cashier
func (h *Handler) EvaluateCashier(w http.ResponseWriter, r *http.Request) {
	var req EvaluateCashierRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	ym, err := model.ParseYearMonth(req.YearMonth)
	if err != nil {
		h.fail(w, r, "Invalid month", err)
		return
	}
	a, err := h.Incentives.EvaluateCashier(r.Context(), model.CashierID(req.CashierID), ym, req.TargetAmount)
	if err != nil {
		h.fail(w, r, "Failed to evaluate cashier", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAwardDTO(*a))
}

// ListAwards filters by branch_id, cashier_id, status and start/end.
// GET /api/awards
func (h *Handler) ListAwards(w http.ResponseWriter, r *http.Request) {
	period, err := optionalPeriod(r)
	if err != nil {
		h.fail(w, r, "Invalid period", err)
		return
	}
	q := r.URL.Query()
	awards, err := h.Incentives.List(r.Context(), model.AwardFilter{
		BranchID:  model.BranchID(q.Get("branch_id")),
		CashierID: model.CashierID(q.Get("cashier_id")),
		Status:    model.PayoutStatus(q.Get("status")),
		Period:    period,
	})
	if err != nil {
		h.fail(w, r, "Failed to list awards", err)
		return
	}
	dtos := make([]AwardDTO, len(awards))
	for i, a := range awards {
		dtos[i] = toAwardDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GET /api/awards/{id}
func (h *Handler) GetAward(w http.ResponseWriter, r *http.Request) {
	a, err := h.Incentives.Get(r.Context(), model.AwardID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to get award", err)
		return
	}
	writeJSON(w, http.StatusOK, toAwardDTO(*a))
}

// PUT /api/awards/{id}/adjust
func (h *Handler) AdjustAward(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	a, err := h.Incentives.Adjust(r.Context(), model.AwardID(chi.URLParam(r, "id")), req.FinalAmount, req.Notes)
	if err != nil {
		h.fail(w, r, "Failed to adjust award", err)
		return
	}
	writeJSON(w, http.StatusOK, toAwardDTO(*a))
}

// POST /api/awards/{id}/approve
func (h *Handler) ApproveAward(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	a, err := h.Incentives.Approve(r.Context(), model.AwardID(chi.URLParam(r, "id")), req.ApprovedBy)
	if err != nil {
		h.fail(w, r, "Failed to approve award", err)
		return
	}
	writeJSON(w, http.StatusOK, toAwardDTO(*a))
}

// POST /api/awards/{id}/pay
func (h *Handler) PayAward(w http.ResponseWriter, r *http.Request) {
	a, err := h.Incentives.Pay(r.Context(), model.AwardID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to pay award", err)
		return
	}
	writeJSON(w, http.StatusOK, toAwardDTO(*a))
}

// =============================================================================
// COMMISSION RATE HANDLERS
// =============================================================================

func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.Commission.ListRates(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to list rates", err)
		return
	}
	dtos := make([]RateDTO, len(rates))
	for i, rt := range rates {
		dtos[i] = toRateDTO(rt)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateRate(w http.ResponseWriter, r *http.Request) {
	var req factory.RateJSON
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	rt, err := h.Commission.CreateRate(r.Context(), req.RateInput())
	if err != nil {
		h.fail(w, r, "Failed to create rate", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRateDTO(*rt))
}

func (h *Handler) UpdateRate(w http.ResponseWriter, r *http.Request) {
	var req factory.RateJSON
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	rt, err := h.Commission.UpdateRate(r.Context(), model.RateID(chi.URLParam(r, "id")), req.RateInput())
	if err != nil {
		h.fail(w, r, "Failed to update rate", err)
		return
	}
	writeJSON(w, http.StatusOK, toRateDTO(*rt))
}

func (h *Handler) DeleteRate(w http.ResponseWriter, r *http.Request) {
	if err := h.Commission.DeleteRate(r.Context(), model.RateID(chi.URLParam(r, "id"))); err != nil {
		h.fail(w, r, "Failed to delete rate", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// COMMISSION CALCULATION HANDLERS
// =============================================================================

// CalculateCommission runs the calculator for one cashier or one branch.
// POST /api/commissions
func (h *Handler) CalculateCommission(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	if req.CashierID != "" && req.BranchID != "" {
		h.fail(w, r, "Invalid request body", &model.InputError{Field: "cashier_id", Reason: "give a cashier or a branch, not both"})
		return
	}
	from, err := model.ParseDate(req.PeriodStart)
	if err != nil {
		h.fail(w, r, "Invalid period", err)
		return
	}
	to, err := model.ParseDate(req.PeriodEnd)
	if err != nil {
		h.fail(w, r, "Invalid period", err)
		return
	}
	period := model.DateRange{From: from, To: to}
	if err := period.Validate(); err != nil {
		h.fail(w, r, "Invalid period", err)
		return
	}

	var c *model.CommissionCalculation
	if req.CashierID != "" {
		c, err = h.Commission.CalculateCashier(r.Context(), model.CashierID(req.CashierID), period)
	} else {
		c, err = h.Commission.CalculateBranch(r.Context(), model.BranchID(req.BranchID), period)
	}
	if err != nil {
		h.fail(w, r, "Failed to calculate commission", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCalculationDTO(*c))
}

// GET /api/commissions
func (h *Handler) ListCalculations(w http.ResponseWriter, r *http.Request) {
	period, err := optionalPeriod(r)
	if err != nil {
		h.fail(w, r, "Invalid period", err)
		return
	}
	q := r.URL.Query()
	calcs, err := h.Commission.List(r.Context(), model.CalculationFilter{
		BranchID:  model.BranchID(q.Get("branch_id")),
		CashierID: model.CashierID(q.Get("cashier_id")),
		Status:    model.PayoutStatus(q.Get("status")),
		Period:    period,
	})
	if err != nil {
		h.fail(w, r, "Failed to list commissions", err)
		return
	}
	dtos := make([]CalculationDTO, len(calcs))
	for i, c := range calcs {
		dtos[i] = toCalculationDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GET /api/commissions/{id}
func (h *Handler) GetCalculation(w http.ResponseWriter, r *http.Request) {
	c, err := h.Commission.Get(r.Context(), model.CalculationID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to get commission", err)
		return
	}
	writeJSON(w, http.StatusOK, toCalculationDTO(*c))
}

// PUT /api/commissions/{id}/adjust
func (h *Handler) AdjustCalculation(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	c, err := h.Commission.Adjust(r.Context(), model.CalculationID(chi.URLParam(r, "id")), req.FinalAmount)
	if err != nil {
		h.fail(w, r, "Failed to adjust commission", err)
		return
	}
	writeJSON(w, http.StatusOK, toCalculationDTO(*c))
}

// POST /api/commissions/{id}/approve
func (h *Handler) ApproveCalculation(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "Invalid request body", err)
		return
	}
	c, err := h.Commission.Approve(r.Context(), model.CalculationID(chi.URLParam(r, "id")), req.ApprovedBy)
	if err != nil {
		h.fail(w, r, "Failed to approve commission", err)
		return
	}
	writeJSON(w, http.StatusOK, toCalculationDTO(*c))
}

// POST /api/commissions/{id}/pay
func (h *Handler) PayCalculation(w http.ResponseWriter, r *http.Request) {
	c, err := h.Commission.Pay(r.Context(), model.CalculationID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, "Failed to pay commission", err)
		return
	}
	writeJSON(w, http.StatusOK, toCalculationDTO(*c))
}
