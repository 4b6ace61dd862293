package model

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Bracket is a half-open range [Min, Max). A nil Max has no upper limit.
type Bracket struct {
	Min decimal.Decimal
	Max *decimal.Decimal
}

func (b Bracket) Contains(v decimal.Decimal) bool {
	if v.LessThan(b.Min) {
		return false
	}
	return b.Max == nil || v.LessThan(*b.Max)
}

// Bracketed is anything selectable by a bracket lookup.
type Bracketed interface {
	Bounds() Bracket
}

// SortByMin orders items by ascending lower bound, keeping input order for ties.
func SortByMin[T Bracketed](items []T) []T {
	sorted := make([]T, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Bounds().Min.LessThan(sorted[j].Bounds().Min)
	})
	return sorted
}

// LowestContaining returns the first item, by ascending lower bound, whose bracket contains v.
func LowestContaining[T Bracketed](items []T, v decimal.Decimal) (T, bool) {
	for _, it := range SortByMin(items) {
		if it.Bounds().Contains(v) {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// HighestContaining returns the item with the highest lower bound whose bracket contains v.
// Among equal lower bounds the earliest input item wins.
func HighestContaining[T Bracketed](items []T, v decimal.Decimal) (T, bool) {
	var (
		best  T
		found bool
	)
	for _, it := range SortByMin(items) {
		b := it.Bounds()
		if !b.Contains(v) {
			continue
		}
		if !found || b.Min.GreaterThan(best.Bounds().Min) {
			best, found = it, true
		}
	}
	return best, found
}
