package model

// PlanTier is the entitlement stored on the user's profile.
type PlanTier string

const (
	PlanFree PlanTier = "free"
	PlanPro  PlanTier = "pro"
)

// PlanForStatus returns the entitlement a subscription status implies.
// Only active and cancelled touch the plan; pending leaves it alone.
func PlanForStatus(s SubscriptionStatus) (PlanTier, bool) {
	switch s {
	case SubscriptionStatusActive:
		return PlanPro, true
	case SubscriptionStatusCancelled:
		return PlanFree, true
	default:
		return "", false
	}
}
