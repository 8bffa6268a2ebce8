package integrations

import (
	"context"
	"strings"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
)

// BranchLookup answers trigger branch resolution from a tenant's GitHub
// integrations. Only integrations that declare a branch answer.
type BranchLookup struct {
	Integrations Manager
}

// RepoBranch implements trigger.BranchLookup
func (b BranchLookup) RepoBranch(ctx context.Context, org, repo string) (string, bool, error) {
	all, err := b.Integrations.ListIntegrations(ctx)
	if err != nil {
		return "", false, errors.Wrap(err, "failed to list integrations")
	}
	fullName := org + "/" + repo
	for _, in := range all {
		if in.Type != TypeGitHub || in.Metadata.Branch == "" {
			continue
		}
		if strings.EqualFold(in.Metadata.Repo, fullName) {
			return in.Metadata.Branch, true, nil
		}
	}
	return "", false, nil
}
