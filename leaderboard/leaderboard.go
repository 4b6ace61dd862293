/*
Package leaderboard ranks branches and cashiers and raises achievement alerts.

RANKING:
  Entries are sorted descending by a key (achievement percent for the
  leaderboard, raw sales for the branch competition and cashier board) and
  ranked 1..N by position. Equal keys keep their input order (directory
  order, i.e. by id); there is no secondary key.

ALERTS (priority order):
  achievement >= 100            -> exceeding
  projected achievement >= 90   -> on_track
  projected achievement >= 70   -> warning
  otherwise                     -> critical

  Alerts are computed per request and never stored. Thresholds compare the
  exact percentages from the performance calculator; only messages round.

CONCURRENCY:
  Branches are evaluated in parallel with an errgroup bounded by Parallelism.
  Calculators do not share mutable state across branches.
*/
package leaderboard

import (
	"fmt"
	"sort"

	"github.com/ovenline/sales-targets/model"
	"github.com/ovenline/sales-targets/performance"
	"github.com/shopspring/decimal"
)

// =============================================================================
// RANKING
// =============================================================================

// Entry is one row of a leaderboard. Cashier fields are empty on branch boards.
type Entry struct {
	Rank                        int
	BranchID                    model.BranchID
	BranchName                  string
	CashierID                   model.CashierID
	CashierName                 string
	TargetAmount                decimal.Decimal
	AchievedAmount              decimal.Decimal
	AchievementPercent          decimal.Decimal
	ProjectedAchievementPercent decimal.Decimal
	Transactions                int

	// TierID and TierName name the incentive tier the branch currently
	// qualifies for, empty when none.
	TierID   model.TierID
	TierName string
}

// ByAchievement and BySales are the two ranking keys.
func ByAchievement(e Entry) decimal.Decimal { return e.AchievementPercent }
func BySales(e Entry) decimal.Decimal       { return e.AchievedAmount }

// Rank sorts entries descending by key and assigns 1-based ranks.
// The input slice is not modified.
func Rank(entries []Entry, key func(Entry) decimal.Decimal) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return key(out[i]).GreaterThan(key(out[j]))
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// =============================================================================
// ALERTS
// =============================================================================

type Level string

const (
	LevelExceeding Level = "exceeding"
	LevelOnTrack   Level = "on_track"
	LevelWarning   Level = "warning"
	LevelCritical  Level = "critical"
)

var (
	exceedingAt = decimal.NewFromInt(100)
	onTrackAt   = decimal.NewFromInt(90)
	warningAt   = decimal.NewFromInt(70)
)

type Alert struct {
	BranchID                    model.BranchID
	BranchName                  string
	Level                       Level
	AchievementPercent          decimal.Decimal
	ProjectedAchievementPercent decimal.Decimal
	Message                     string
}

// Classify buckets a branch's month by achievement and projection.
func Classify(perf performance.MonthlyPerformance) Alert {
	achieved := perf.AchievementPercent
	projected := perf.Projection.ProjectedAchievementPercent
	a := Alert{
		BranchID:                    perf.BranchID,
		AchievementPercent:          achieved,
		ProjectedAchievementPercent: projected,
	}
	switch {
	case achieved.GreaterThanOrEqual(exceedingAt):
		a.Level = LevelExceeding
		a.Message = fmt.Sprintf("Target exceeded: %s%% achieved", achieved.StringFixed(2))
	case projected.GreaterThanOrEqual(onTrackAt):
		a.Level = LevelOnTrack
		a.Message = fmt.Sprintf("On track: projected %s%% of target", projected.StringFixed(2))
	case projected.GreaterThanOrEqual(warningAt):
		a.Level = LevelWarning
		a.Message = fmt.Sprintf("Behind target: projected %s%% of target", projected.StringFixed(2))
	default:
		a.Level = LevelCritical
		a.Message = fmt.Sprintf("Critical: projected %s%% of target, %s%% achieved so far", projected.StringFixed(2), achieved.StringFixed(2))
	}
	return a
}
