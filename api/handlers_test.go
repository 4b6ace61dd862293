/*
handlers_test.go - End-to-end tests for the HTTP layer

Tests run the real router over an in-memory SQLite store:
- Reference import, target creation and allocation generation
- Sales intake feeding performance, snapshots, leaderboard and alerts
- Award and commission lifecycles
- Error category to status code mapping
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ovenline/sales-targets/api"
	"github.com/ovenline/sales-targets/config"
	"github.com/ovenline/sales-targets/factory"
	"github.com/ovenline/sales-targets/store/sqlite"
	"github.com/ovenline/sales-targets/targets"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type env struct {
	t      *testing.T
	store  *sqlite.Store
	h      *api.Handler
	router http.Handler
}

var (
	today = time.Date(2025, time.February, 3, 10, 0, 0, 0, time.UTC)
	one   = decimal.NewFromInt(1)
)

func newEnv(t *testing.T) *env {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		RegenerateMode: targets.RegenerateReplace,
		Parallelism:    2,
		SnapshotMaxAge: time.Hour,
	}
	h := api.NewHandler(store, cfg, nil)
	h.Now = func() time.Time { return today }
	return &env{t: t, store: store, h: h, router: api.NewRouter(h, []string{"*"})}
}

func (e *env) call(method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(e.t, err)
		rdr = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeAs[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// seed imports the bakery defaults, one branch with one cashier and a
// generated 30,000 target for February 2025.
func (e *env) seed() api.TargetDTO {
	e.t.Helper()
	rec := e.call(http.MethodPost, "/api/reference", factory.BakeryDefaultsJSON())
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.call(http.MethodPost, "/api/branches", map[string]any{"id": "branch-1", "name": "Central"})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = e.call(http.MethodPost, "/api/cashiers", map[string]any{"id": "cashier-1", "branch_id": "branch-1", "name": "Ana"})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.call(http.MethodPost, "/api/targets", map[string]any{
		"branch_id":     "branch-1",
		"year_month":    "2025-02",
		"target_amount": 30000,
		"generate":      true,
	})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeAs[api.TargetDTO](e.t, rec)
}

func (e *env) sale(id, date, shift, status string, amount float64) {
	e.t.Helper()
	rec := e.call(http.MethodPost, "/api/sales", map[string]any{
		"id":                id,
		"branch_id":         "branch-1",
		"cashier_id":        "cashier-1",
		"date":              date,
		"shift":             shift,
		"total_sales":       amount,
		"transaction_count": 10,
		"status":            status,
	})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
}

// =============================================================================
// TARGET TESTS
// =============================================================================

func TestTargets_CreateAndGenerate(t *testing.T) {
	// GIVEN: Bakery defaults and a 30,000 February target created with generate
	// WHEN: Listing its allocations
	// THEN: 28 rows, weekend days double a weekday, sum is the target
	e := newEnv(t)
	target := e.seed()
	assert.Equal(t, "active", target.Status)
	assert.Equal(t, 1, target.AllocationVersion)

	rec := e.call(http.MethodGet, "/api/targets/"+target.ID+"/allocations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decodeAs[[]api.AllocationDTO](t, rec)
	require.Len(t, rows, 28)

	sum := decimal.Zero
	byDate := map[string]api.AllocationDTO{}
	for _, r := range rows {
		sum = sum.Add(r.DailyTarget)
		byDate[r.TargetDate.String()] = r
	}
	assert.Equal(t, "30000.00", sum.StringFixed(2))
	assert.Equal(t, "833.33", byDate["2025-02-03"].DailyTarget.StringFixed(2))
	assert.Equal(t, "monday", byDate["2025-02-03"].Weekday)
	assert.Equal(t, "1666.67", byDate["2025-02-07"].DailyTarget.StringFixed(2))
}

func TestTargets_OverrideThenPreserve(t *testing.T) {
	// GIVEN: A generated target with one day overridden
	// WHEN: Regenerating with preserve_overrides
	// THEN: The overridden day keeps its value, the month still sums to the
	//       target and the version moves on
	e := newEnv(t)
	target := e.seed()
	rows := decodeAs[[]api.AllocationDTO](t, e.call(http.MethodGet, "/api/targets/"+target.ID+"/allocations", nil))

	var monday api.AllocationDTO
	for _, r := range rows {
		if r.TargetDate.String() == "2025-02-03" {
			monday = r
		}
	}
	rec := e.call(http.MethodPut, "/api/allocations/"+monday.ID, map[string]any{
		"daily_target": 100, "is_holiday": true, "reason": "road works",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	edited := decodeAs[api.AllocationDTO](t, rec)
	assert.True(t, edited.IsManualOverride)
	assert.True(t, edited.IsHoliday)

	rec = e.call(http.MethodPost, "/api/targets/"+target.ID+"/generate", map[string]any{"mode": "preserve_overrides"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	regenerated := decodeAs[[]api.AllocationDTO](t, rec)
	sum := decimal.Zero
	for _, r := range regenerated {
		sum = sum.Add(r.DailyTarget)
		if r.TargetDate.String() == "2025-02-03" {
			assert.Equal(t, "100.00", r.DailyTarget.StringFixed(2))
			assert.Equal(t, "road works", r.OverrideReason)
		}
	}
	assert.Equal(t, "30000.00", sum.StringFixed(2), "other days absorb the rest of the target")

	got := decodeAs[api.TargetDTO](t, e.call(http.MethodGet, "/api/targets/"+target.ID, nil))
	assert.Equal(t, 2, got.AllocationVersion)
}

func TestTargets_GenerateWithEmptyBodyUsesConfiguredMode(t *testing.T) {
	e := newEnv(t)
	target := e.seed()

	rec := e.call(http.MethodPost, "/api/targets/"+target.ID+"/generate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decodeAs[[]api.AllocationDTO](t, rec), 28)
}

func TestTargets_ErrorStatuses(t *testing.T) {
	e := newEnv(t)
	target := e.seed()

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"duplicate branch and month", http.MethodPost, "/api/targets",
			map[string]any{"branch_id": "branch-1", "year_month": "2025-02", "target_amount": 1}, http.StatusConflict},
		{"zero amount", http.MethodPost, "/api/targets",
			map[string]any{"branch_id": "branch-2", "year_month": "2025-02", "target_amount": 0}, http.StatusBadRequest},
		{"bad month", http.MethodPost, "/api/targets",
			map[string]any{"branch_id": "branch-2", "year_month": "Feb 2025", "target_amount": 10}, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/targets",
			map[string]any{"branch_id": "branch-2", "year_month": "2025-02", "target_amount": 10, "colour": "red"}, http.StatusBadRequest},
		{"unknown target", http.MethodGet, "/api/targets/nope", nil, http.StatusNotFound},
		{"list without month", http.MethodGet, "/api/targets", nil, http.StatusBadRequest},
		{"unknown mode", http.MethodPost, "/api/targets/" + target.ID + "/generate",
			map[string]any{"mode": "merge"}, http.StatusBadRequest},
		{"unknown allocation", http.MethodPut, "/api/allocations/nope",
			map[string]any{"daily_target": 1}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := e.call(tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decodeAs[api.ErrorResponse](t, rec).Error)
		})
	}
}

func TestTargets_NoProfileIsUnprocessable(t *testing.T) {
	// GIVEN: No profiles at all
	// WHEN: Creating a target with generate
	// THEN: 422, the configuration has to be fixed first
	e := newEnv(t)
	rec := e.call(http.MethodPost, "/api/targets", map[string]any{
		"branch_id": "branch-1", "year_month": "2025-02", "target_amount": 1000, "generate": true,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
}

func TestProfiles_SetDefault(t *testing.T) {
	e := newEnv(t)
	e.seed()

	rec := e.call(http.MethodPost, "/api/profiles", factory.ProfileJSON{
		ID: "flat", Name: "Flat",
		Weights: factory.WeightsJSON{
			Sunday: one, Monday: one, Tuesday: one, Wednesday: one, Thursday: one, Friday: one, Saturday: one,
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.call(http.MethodPut, "/api/profiles/flat/default", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeAs[api.ProfileDTO](t, rec).IsDefault)

	profiles := decodeAs[[]api.ProfileDTO](t, e.call(http.MethodGet, "/api/profiles", nil))
	defaults := 0
	for _, p := range profiles {
		if p.IsDefault {
			defaults++
			assert.Equal(t, "flat", p.ID)
		}
	}
	assert.Equal(t, 1, defaults)

	assert.Equal(t, http.StatusNotFound, e.call(http.MethodPut, "/api/profiles/gone/default", nil).Code)
}

// =============================================================================
// ANALYTICS TESTS
// =============================================================================

func TestPerformance_CountsOnlyEligibleSales(t *testing.T) {
	// GIVEN: A posted sale and a draft sale on Monday Feb 3
	// WHEN: Reading performance as of that day
	// THEN: Only the posted sale counts
	e := newEnv(t)
	e.seed()
	e.sale("fact-1", "2025-02-03", "morning", "posted", 1000)
	e.sale("fact-2", "2025-02-03", "evening", "draft", 500)

	rec := e.call(http.MethodGet, "/api/branches/branch-1/performance?year_month=2025-02&as_of=2025-02-03", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	perf := decodeAs[api.PerformanceDTO](t, rec)

	assert.True(t, perf.HasTarget)
	assert.Equal(t, "1000.00", perf.AchievedAmount.StringFixed(2))
	assert.Equal(t, "3.33", perf.AchievementPercent.StringFixed(2))
	assert.Contains(t, rec.Body.String(), `"achievement_percent":"3.33"`, "percentages are rounded on the wire")
	assert.Equal(t, 3, perf.Projection.DaysPassed)
	assert.Len(t, perf.Days, 28)
}

func TestPerformance_NoTargetIsZeroNotError(t *testing.T) {
	e := newEnv(t)
	rec := e.call(http.MethodGet, "/api/branches/branch-9/performance?year_month=2025-02&as_of=2025-02-03", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	perf := decodeAs[api.PerformanceDTO](t, rec)
	assert.False(t, perf.HasTarget)
	assert.True(t, perf.AchievementPercent.IsZero())
}

func TestSnapshots_RecordedSaleRefreshesDay(t *testing.T) {
	// GIVEN: A posted sale on Monday Feb 3
	// WHEN: Reading that day's snapshot
	// THEN: It carries the sale and the day's allocation as target
	e := newEnv(t)
	e.seed()
	e.sale("fact-1", "2025-02-03", "morning", "posted", 1000)

	rec := e.call(http.MethodGet, "/api/branches/branch-1/snapshots/2025-02-03", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := decodeAs[api.SnapshotDTO](t, rec)
	assert.Equal(t, "1000.00", snap.TotalSales.StringFixed(2))
	assert.Equal(t, "1000.00", snap.MorningSales.StringFixed(2))
	assert.Equal(t, "833.33", snap.TargetAmount.StringFixed(2))
	assert.Equal(t, "166.67", snap.AchievementAmount.StringFixed(2))
	assert.Equal(t, 1, snap.CashierCount)

	rec = e.call(http.MethodPost, "/api/branches/branch-1/snapshots/refresh?start=2025-02-01&end=2025-02-07", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decodeAs[[]api.SnapshotDTO](t, rec), 7)

	rec = e.call(http.MethodGet, "/api/branches/branch-1/snapshots?start=2025-02-01&end=2025-02-28", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeAs[[]api.SnapshotDTO](t, rec), 7)

	assert.Equal(t, http.StatusBadRequest,
		e.call(http.MethodGet, "/api/branches/branch-1/snapshots?start=2025-02-07&end=2025-02-01", nil).Code)
}

func TestLeaderboardAndAlerts(t *testing.T) {
	e := newEnv(t)
	e.seed()
	e.sale("fact-1", "2025-02-03", "morning", "posted", 1000)

	rec := e.call(http.MethodGet, "/api/leaderboard?year_month=2025-02&as_of=2025-02-03", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	entries := decodeAs[[]api.EntryDTO](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "branch-1", entries[0].BranchID)
	assert.Equal(t, "Central", entries[0].BranchName)

	rec = e.call(http.MethodGet, "/api/alerts?year_month=2025-02&as_of=2025-02-03", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	alerts := decodeAs[[]api.AlertDTO](t, rec)
	require.Len(t, alerts, 1)
	assert.NotEmpty(t, alerts[0].Level)

	rec = e.call(http.MethodGet, "/api/branches/branch-1/cashiers/leaderboard?start=2025-02-01&end=2025-02-28", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cashiers := decodeAs[[]api.EntryDTO](t, rec)
	require.Len(t, cashiers, 1)
	assert.Equal(t, "cashier-1", cashiers[0].CashierID)
	assert.Equal(t, "1000.00", cashiers[0].AchievedAmount.StringFixed(2))

	rec = e.call(http.MethodGet, "/api/leaderboard/competition?start=2025-02-01&end=2025-02-28", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decodeAs[[]api.EntryDTO](t, rec), 1)
}

// =============================================================================
// PAYOUT TESTS
// =============================================================================

func TestAwards_CashierLifecycle(t *testing.T) {
	// GIVEN: A cashier who sold exactly their 1,000 target
	// WHEN: Evaluating, then walking the payout lifecycle
	// THEN: Gold pays 500 and transitions cannot be skipped
	e := newEnv(t)
	e.seed()
	e.sale("fact-1", "2025-02-03", "morning", "posted", 1000)

	rec := e.call(http.MethodPost, "/api/awards/cashier", map[string]any{
		"cashier_id": "cashier-1", "year_month": "2025-02", "target_amount": 1000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	award := decodeAs[api.AwardDTO](t, rec)
	assert.Equal(t, "gold", award.TierID)
	assert.Equal(t, "500.00", award.CalculatedReward.StringFixed(2))
	assert.Equal(t, "pending", award.Status)
	assert.Equal(t, "branch-1", award.BranchID)

	path := "/api/awards/" + award.ID
	assert.Equal(t, http.StatusConflict, e.call(http.MethodPost, path+"/pay", nil).Code)
	assert.Equal(t, http.StatusBadRequest, e.call(http.MethodPost, path+"/approve", map[string]any{"approved_by": ""}).Code)

	rec = e.call(http.MethodPut, path+"/adjust", map[string]any{"final_amount": 450, "notes": "shared with trainee"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "450.00", decodeAs[api.AwardDTO](t, rec).FinalReward.StringFixed(2))

	rec = e.call(http.MethodPost, path+"/approve", map[string]any{"approved_by": "manager-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "manager-1", decodeAs[api.AwardDTO](t, rec).ApprovedBy)

	assert.Equal(t, http.StatusConflict, e.call(http.MethodPut, path+"/adjust", map[string]any{"final_amount": 1}).Code)

	rec = e.call(http.MethodPost, path+"/pay", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	paid := decodeAs[api.AwardDTO](t, rec)
	assert.Equal(t, "paid", paid.Status)
	assert.NotEmpty(t, paid.PaidAt)

	list := decodeAs[[]api.AwardDTO](t, e.call(http.MethodGet, "/api/awards?status=paid&cashier_id=cashier-1", nil))
	assert.Len(t, list, 1)
}

func TestAwards_BranchWithoutTargetIsNotFound(t *testing.T) {
	e := newEnv(t)
	rec := e.call(http.MethodPost, "/api/awards/branch", map[string]any{
		"branch_id": "branch-9", "year_month": "2025-02", "as_of": "2025-02-10",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}

func TestCommissions_CashierBracket(t *testing.T) {
	// GIVEN: 1,000 of posted February sales and the standard brackets
	// WHEN: Calculating the cashier's February commission
	// THEN: The fixed base bracket pays 200 and the source facts are recorded
	e := newEnv(t)
	e.seed()
	e.sale("fact-1", "2025-02-03", "morning", "posted", 600)
	e.sale("fact-2", "2025-02-04", "evening", "approved", 400)
	e.sale("fact-3", "2025-02-04", "night", "rejected", 9999)

	rec := e.call(http.MethodPost, "/api/commissions", map[string]any{
		"cashier_id": "cashier-1", "period_start": "2025-02-01", "period_end": "2025-02-28",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	calc := decodeAs[api.CalculationDTO](t, rec)
	assert.Equal(t, "1000.00", calc.TotalSales.StringFixed(2))
	assert.Equal(t, "commission-base", calc.RateID)
	assert.Equal(t, "200.00", calc.CalculatedCommission.StringFixed(2))
	assert.Len(t, calc.SourceFactIDs, 2)

	got := decodeAs[api.CalculationDTO](t, e.call(http.MethodGet, "/api/commissions/"+calc.ID, nil))
	assert.Equal(t, calc.ID, got.ID)
}

func TestCommissions_RequestRejections(t *testing.T) {
	e := newEnv(t)
	e.seed()

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"neither subject", map[string]any{"period_start": "2025-02-01", "period_end": "2025-02-28"}, http.StatusBadRequest},
		{"both subjects", map[string]any{"cashier_id": "cashier-1", "branch_id": "branch-1",
			"period_start": "2025-02-01", "period_end": "2025-02-28"}, http.StatusBadRequest},
		{"inverted period", map[string]any{"branch_id": "branch-1",
			"period_start": "2025-02-28", "period_end": "2025-02-01"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := e.call(http.MethodPost, "/api/commissions", tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestCommissions_NoBracketIsUnprocessable(t *testing.T) {
	// GIVEN: Reference data without any commission rate
	// WHEN: Calculating
	// THEN: 422 and nothing is persisted
	e := newEnv(t)
	rec := e.call(http.MethodPost, "/api/reference", factory.WeekendHeavyProfileJSON("w", "Weekend", true))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	e.call(http.MethodPost, "/api/branches", map[string]any{"id": "branch-1", "name": "Central"})

	rec = e.call(http.MethodPost, "/api/commissions", map[string]any{
		"branch_id": "branch-1", "period_start": "2025-02-01", "period_end": "2025-02-28",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Empty(t, decodeAs[[]api.CalculationDTO](t, e.call(http.MethodGet, "/api/commissions", nil)))
}

// =============================================================================
// SCHEDULER AND ROUTER TESTS
// =============================================================================

func TestSnapshotScheduler_RunOnce(t *testing.T) {
	e := newEnv(t)
	e.seed()
	e.sale("fact-1", "2025-02-03", "morning", "posted", 1000)

	s := api.NewSnapshotScheduler(e.h, time.Minute)
	s.Now = func() time.Time { return today }
	assert.Equal(t, 1, s.RunOnce(context.Background()))

	// Just after midnight the previous day is refreshed too
	s.Now = func() time.Time { return time.Date(2025, time.February, 4, 0, 15, 0, 0, time.UTC) }
	assert.Equal(t, 2, s.RunOnce(context.Background()))

	assert.False(t, api.NewSnapshotScheduler(e.h, 0).Enabled)
}

func TestSnapshotScheduler_StartStopRestart(t *testing.T) {
	// GIVEN: An enabled scheduler with a long interval
	// WHEN: Starting it twice, stopping it, then starting and stopping again
	// THEN: Each start runs one immediate pass; a second Start is a no-op and
	//       a restarted loop stops cleanly

	e := newEnv(t)
	e.seed()

	var passes atomic.Int32
	s := api.NewSnapshotScheduler(e.h, time.Hour)
	s.Now = func() time.Time {
		passes.Add(1)
		return today
	}

	s.Start()
	s.Start()
	assert.True(t, s.Running())
	s.Stop()
	assert.False(t, s.Running())
	assert.Equal(t, int32(1), passes.Load())

	s.Start()
	assert.True(t, s.Running())
	s.Stop()
	assert.False(t, s.Running())
	assert.Equal(t, int32(2), passes.Load())

	disabled := api.NewSnapshotScheduler(e.h, 0)
	disabled.Start()
	assert.False(t, disabled.Running())
	disabled.Stop()
}

func TestRouter_Health(t *testing.T) {
	e := newEnv(t)
	rec := e.call(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
