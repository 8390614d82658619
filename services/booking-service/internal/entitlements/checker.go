package entitlements

import "context"

// Checker answers whether a provider's plan includes a feature. An error means the answer is
// unknown, not a denial.
type Checker interface {
	CanUse(ctx context.Context, providerID string, feature string) (bool, error)
}

// Static answers every check the same way. It stands in when no entitlement service is
// configured.
type Static struct {
	Allowed bool
}

func (s Static) CanUse(context.Context, string, string) (bool, error) {
	return s.Allowed, nil
}
