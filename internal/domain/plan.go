package domain

// Plan is a fixed investment tier: how long the principal is held and the
// return rate paid at maturity.
type Plan struct {
	Code         string  `json:"code"`
	DurationDays int     `json:"duration_days"`
	ROI          float64 `json:"roi"` // fractional rate, e.g. 0.25 = 25%
}

// Plan codes
const (
	PlanSixMonths      = "6-months"
	PlanNineMonths     = "9-months"
	PlanTwelveMonths   = "12-months"
	PlanEighteenMonths = "18-months"
)

// planCatalog is the closed set of supported plans. Reference data only,
// compiled in; there is no plans collection.
var planCatalog = map[string]Plan{
	PlanSixMonths:      {Code: PlanSixMonths, DurationDays: 180, ROI: 0.25},
	PlanNineMonths:     {Code: PlanNineMonths, DurationDays: 270, ROI: 0.30},
	PlanTwelveMonths:   {Code: PlanTwelveMonths, DurationDays: 365, ROI: 0.50},
	PlanEighteenMonths: {Code: PlanEighteenMonths, DurationDays: 540, ROI: 0.75},
}

// LookupPlan resolves a plan code to its catalog entry.
func LookupPlan(code string) (Plan, error) {
	plan, ok := planCatalog[code]
	if !ok {
		return Plan{}, ErrInvalidPlan
	}
	return plan, nil
}

// Plans returns the catalog in a stable order for the public plans endpoint.
func Plans() []Plan {
	return []Plan{
		planCatalog[PlanSixMonths],
		planCatalog[PlanNineMonths],
		planCatalog[PlanTwelveMonths],
		planCatalog[PlanEighteenMonths],
	}
}
