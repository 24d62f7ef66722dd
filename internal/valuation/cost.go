package valuation

import "dealflow-portal/internal/models"

// Renovation estimate fallback tiers, best first
const (
	TierAnalysis = "analysis"
	TierDerived  = "derived"
	TierDefault  = "default"
)

// CalculateTotalRenovationCost sums the cost of every selected renovation.
// Unselected or absent entries contribute zero. The result is ≥ 0 for
// non-negative inputs.
func CalculateTotalRenovationCost(selections models.RenovationSelections) float64 {
	var total float64
	for _, entry := range selections {
		if entry.Option == nil || !entry.Option.Selected {
			continue
		}
		total += entry.Option.Cost
	}
	return total
}

// SelectedRenovations returns the category keys of every selected entry, in
// selection order. Used to render selection summaries, not in cost math.
func SelectedRenovations(selections models.RenovationSelections) []string {
	var keys []string
	for _, entry := range selections {
		if entry.Option != nil && entry.Option.Selected {
			keys = append(keys, entry.Key)
		}
	}
	return keys
}

var renovationEstimateTiers = []moneyTier{
	{
		name: TierAnalysis,
		present: func(d *models.Deal) bool {
			return d.RenovationAnalysis != nil && d.RenovationAnalysis.TotalCost != nil
		},
		value: func(d *models.Deal) float64 { return *d.RenovationAnalysis.TotalCost },
	},
	{
		name: TierDerived,
		present: func(d *models.Deal) bool {
			return d.TargetSalePrice != nil && d.PurchasePrice != nil
		},
		value: func(d *models.Deal) float64 {
			spread := (*d.TargetSalePrice - *d.PurchasePrice) * RenovationSpreadRate
			if spread < 0 {
				return 0
			}
			return spread
		},
	},
}

// CalculateRenovationEstimate returns the best available renovation cost figure
// before any selections exist, degrading through three precision tiers: the AI
// renovation analysis total, then a share of the price spread, then a flat
// placeholder.
func CalculateRenovationEstimate(deal *models.Deal) float64 {
	estimate, _ := RenovationEstimate(deal)
	return estimate
}

// RenovationEstimate is CalculateRenovationEstimate plus the tier that
// produced the figure, for callers that need to message placeholders
// distinctly from computed values.
func RenovationEstimate(deal *models.Deal) (float64, string) {
	if deal != nil {
		for _, tier := range renovationEstimateTiers {
			if tier.present(deal) {
				return tier.value(deal), tier.name
			}
		}
	}
	return DefaultRenovationEstimate, TierDefault
}
