package factory

import (
	"encoding/json"
)

// =============================================================================
// PRESET REFERENCE DATA
// =============================================================================
//
// These builders return JSON documents for common bakery setups. They build
// the JSON directly so a seed file and a preset go through the same Parse.

// WeekendHeavyProfileJSON returns a profile with Friday and Saturday weighted
// double, optionally marked default.
func WeekendHeavyProfileJSON(id, name string, isDefault bool) string {
	return profileDoc(id, name, "Friday and Saturday sell twice a weekday", isDefault,
		[7]float64{1, 1, 1, 1, 1, 2, 2})
}

// FlatProfileJSON returns a profile that spreads the month evenly.
func FlatProfileJSON(id, name string, isDefault bool) string {
	return profileDoc(id, name, "Every day weighs the same", isDefault,
		[7]float64{1, 1, 1, 1, 1, 1, 1})
}

// ClosedSundayProfileJSON returns a profile for branches that do not trade on
// Sundays.
func ClosedSundayProfileJSON(id, name string, isDefault bool) string {
	return profileDoc(id, name, "Closed on Sundays, Saturday strongest", isDefault,
		[7]float64{0, 1, 1, 1, 1, 1.5, 2})
}

// StandardTiersJSON returns a Silver/Gold ladder: Silver pays rate percent of
// the excess between 80 and 100 percent achievement, Gold pays a fixed bonus
// from 100 percent.
func StandardTiersJSON(silverRate, goldBonus float64) string {
	doc := map[string]interface{}{
		"incentive_tiers": []map[string]interface{}{
			{
				"id":                      "silver",
				"name":                    "Silver",
				"min_achievement_percent": 80,
				"max_achievement_percent": 100,
				"reward_type":             "percentage",
				"percentage_rate":         silverRate,
				"applicable_to":           "all",
				"sort_order":              1,
			},
			{
				"id":                      "gold",
				"name":                    "Gold",
				"min_achievement_percent": 100,
				"reward_type":             "fixed",
				"fixed_amount":            goldBonus,
				"applicable_to":           "all",
				"sort_order":              2,
			},
		},
	}
	b, _ := json.MarshalIndent(doc, "", "  ")
	return string(b)
}

// StandardCommissionJSON returns two cashier brackets: a fixed amount below
// threshold and rate percent of sales from threshold up.
func StandardCommissionJSON(threshold, fixedBelow, rateAbove float64) string {
	doc := map[string]interface{}{
		"commission_rates": []map[string]interface{}{
			{
				"id":               "commission-base",
				"name":             "Base",
				"min_sales_amount": 0,
				"max_sales_amount": threshold,
				"commission_type":  "fixed",
				"fixed_amount":     fixedBelow,
				"applicable_to":    "all",
			},
			{
				"id":               "commission-volume",
				"name":             "Volume",
				"min_sales_amount": threshold,
				"commission_type":  "percentage",
				"percentage_rate":  rateAbove,
				"applicable_to":    "all",
			},
		},
	}
	b, _ := json.MarshalIndent(doc, "", "  ")
	return string(b)
}

// BakeryDefaultsJSON combines a default weekend-heavy profile, the standard
// tier ladder and the standard commission brackets in one document.
func BakeryDefaultsJSON() string {
	var rd ReferenceData
	for _, part := range []string{
		WeekendHeavyProfileJSON("weekend-heavy", "Weekend heavy", true),
		StandardTiersJSON(10, 500),
		StandardCommissionJSON(50000, 200, 2),
	} {
		var p ReferenceData
		_ = json.Unmarshal([]byte(part), &p)
		rd.Profiles = append(rd.Profiles, p.Profiles...)
		rd.Tiers = append(rd.Tiers, p.Tiers...)
		rd.Rates = append(rd.Rates, p.Rates...)
	}
	b, _ := json.MarshalIndent(rd, "", "  ")
	return string(b)
}

func profileDoc(id, name, description string, isDefault bool, w [7]float64) string {
	doc := map[string]interface{}{
		"profiles": []map[string]interface{}{{
			"id":          id,
			"name":        name,
			"description": description,
			"is_default":  isDefault,
			"weights": map[string]interface{}{
				"sunday":    w[0],
				"monday":    w[1],
				"tuesday":   w[2],
				"wednesday": w[3],
				"thursday":  w[4],
				"friday":    w[5],
				"saturday":  w[6],
			},
		}},
	}
	b, _ := json.MarshalIndent(doc, "", "  ")
	return string(b)
}
