package trigger

import "context"

// FallbackBranch is used when neither the integration nor the event names a branch
const FallbackBranch = "main"

// BranchLookup reports the branch an installed integration tracks for org/repo.
// Implementations are bound to a single tenant.
type BranchLookup interface {
	RepoBranch(ctx context.Context, org, repo string) (branch string, ok bool, err error)
}

// ResolveBranch picks the effective branch: the integration's declared branch,
// then the event's default branch, then fallback
func ResolveBranch(integrationBranch, eventDefault, fallback string) string {
	if integrationBranch != "" {
		return integrationBranch
	}
	if eventDefault != "" {
		return eventDefault
	}
	if fallback != "" {
		return fallback
	}
	return FallbackBranch
}
