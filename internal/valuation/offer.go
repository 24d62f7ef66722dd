package valuation

import "dealflow-portal/internal/models"

// CalculateOfferPrice recommends a purchase offer that leaves room for the
// renovation spend plus the selling-cost and margin reserves on the target
// sale price. A missing or zero target returns 0: "cannot compute", not an
// error. The result may be negative; a negative offer means the deal is not
// viable at the assumed target price and callers must show it as a loss
// rather than suppress it.
func CalculateOfferPrice(deal *models.Deal, renovationEstimate float64) float64 {
	var target float64
	if deal != nil && deal.TargetSalePrice != nil {
		target = *deal.TargetSalePrice
	}
	if target <= 0 {
		return 0
	}

	return target - renovationEstimate - (target * SellingCostRate) - (target * MarginRate)
}

// EstimateQuickProfit is the simplified card-level profit figure used before a
// full ARV exists. Renovation cost is RenovationSpreadRate of the price spread
// when both prices are known, else the flat default; profit is target minus
// purchase minus that cost.
//
// This deliberately uses a coarser information tier than CalculateOfferPrice
// and the two are not expected to agree.
func EstimateQuickProfit(deal *models.Deal) float64 {
	if deal == nil || deal.TargetSalePrice == nil || *deal.TargetSalePrice <= 0 {
		return 0
	}
	target := *deal.TargetSalePrice

	var purchase float64
	if deal.PurchasePrice != nil {
		purchase = *deal.PurchasePrice
	}

	renovationCost := float64(DefaultRenovationEstimate)
	if deal.PurchasePrice != nil {
		renovationCost = (target - purchase) * RenovationSpreadRate
		if renovationCost < 0 {
			renovationCost = 0
		}
	}

	return target - purchase - renovationCost
}
