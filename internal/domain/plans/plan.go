package plans

import "strings"

// Plan constants (single source of truth)
const (
	PlanFree  = "FREE"
	PlanPro   = "PRO"
	PlanUltra = "ULTRA"
)

// CreditGrant returns the monthly credit allotment for a plan.
// A renewal resets the balance to this value; it is not additive.
func CreditGrant(plan string) int {
	switch plan {
	case PlanUltra:
		return 1000
	case PlanPro:
		return 300
	default:
		return 100
	}
}

// Normalize maps arbitrary input to a known plan name, defaulting to FREE.
func Normalize(plan string) string {
	switch strings.ToUpper(strings.TrimSpace(plan)) {
	case PlanPro:
		return PlanPro
	case PlanUltra:
		return PlanUltra
	default:
		return PlanFree
	}
}
