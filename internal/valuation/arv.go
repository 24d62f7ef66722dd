package valuation

import "dealflow-portal/internal/models"

// Base value fallback tiers, best first
const (
	TierEstimatedARV    = "estimated_arv"
	TierTargetSalePrice = "target_sale_price"
	TierCurrentPrice    = "current_price"
	TierNone            = "none"
)

// moneyTier is one step of an ordered fallback chain: the first tier whose
// predicate holds supplies the value.
type moneyTier struct {
	name    string
	present func(*models.Deal) bool
	value   func(*models.Deal) float64
}

var baseValueTiers = []moneyTier{
	{
		name: TierEstimatedARV,
		present: func(d *models.Deal) bool {
			return d.MarketAnalysis != nil && d.MarketAnalysis.Analysis.EstimatedARV != nil
		},
		value: func(d *models.Deal) float64 { return *d.MarketAnalysis.Analysis.EstimatedARV },
	},
	{
		name:    TierTargetSalePrice,
		present: func(d *models.Deal) bool { return d.TargetSalePrice != nil },
		value:   func(d *models.Deal) float64 { return *d.TargetSalePrice },
	},
	{
		name:    TierCurrentPrice,
		present: func(d *models.Deal) bool { return d.CurrentPrice != nil },
		value:   func(d *models.Deal) float64 { return *d.CurrentPrice },
	},
}

// BaseMarketValue resolves the pre-renovation market value for a deal through
// the fallback chain: AI-estimated ARV, then target sale price, then current
// price, then 0. The returned tier names which source supplied the value so
// presentation layers can message a placeholder differently from a real figure.
func BaseMarketValue(deal *models.Deal) (float64, string) {
	if deal == nil {
		return 0, TierNone
	}
	for _, tier := range baseValueTiers {
		if tier.present(deal) {
			return tier.value(deal), tier.name
		}
	}
	return 0, TierNone
}

// CalculateARV estimates the after-repair value: the base market value plus the
// value added by every selected renovation. Each category's percentage applies
// to the same unmodified base and the contributions are summed, never
// compounded, so iteration order does not affect the result.
//
// With no selections, or a zero/unknown base, the base is returned unchanged:
// no renovation uplift can be computed against a zero base.
func CalculateARV(deal *models.Deal) float64 {
	base, _ := BaseMarketValue(deal)
	if base == 0 || deal == nil || len(deal.RenovationSelections) == 0 {
		return base
	}

	var totalValueAdd float64
	for _, entry := range deal.RenovationSelections {
		if entry.Option == nil || !entry.Option.Selected {
			continue
		}
		totalValueAdd += base * (entry.Option.ValueAddPercent / 100)
	}

	return base + totalValueAdd
}
