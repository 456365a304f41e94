package subscription

// Plan identifies the pricing tier.
type Plan string

const (
	PlanFree  Plan = "Free"
	PlanBasic Plan = "Basic"
	PlanPro   Plan = "Pro"
)

// planPrices is the fixed plan catalogue. Prices are monthly, in the
// organization's currency (USD for billing transactions).
var planPrices = map[Plan]float64{
	PlanFree:  0,
	PlanBasic: 29,
	PlanPro:   99,
}

// ValidPlan reports whether p is in the catalogue.
func ValidPlan(p Plan) bool {
	_, ok := planPrices[p]
	return ok
}

// PriceFor returns the catalogue monthly price for a plan, 0 for unknown plans.
func PriceFor(p Plan) float64 {
	return planPrices[p]
}

// Paid reports whether p carries a non-zero monthly price.
func Paid(p Plan) bool {
	return planPrices[p] > 0
}
