package trigger

import (
	"encoding/json"
	"strings"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
)

// RepoRef is a repository as it appears in installation payloads
type RepoRef struct {
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch,omitempty"`
}

// Account is the GitHub user or organization owning an installation
type Account struct {
	Login string `json:"login"`
}

// Installation identifies a GitHub App installation
type Installation struct {
	ID      int64   `json:"id"`
	Account Account `json:"account"`
}

// InstallationPayload covers installation and installation_repositories events
type InstallationPayload struct {
	Action              string       `json:"action"`
	Installation        Installation `json:"installation"`
	Repositories        []RepoRef    `json:"repositories,omitempty"`
	RepositoriesAdded   []RepoRef    `json:"repositories_added,omitempty"`
	RepositoriesRemoved []RepoRef    `json:"repositories_removed,omitempty"`
}

// Repository is the repository block of a push payload
type Repository struct {
	Name          string  `json:"name"`
	FullName      string  `json:"full_name"`
	DefaultBranch string  `json:"default_branch"`
	Owner         Account `json:"owner"`
}

// PushPayload is the subset of a push event the engine reads
type PushPayload struct {
	Ref        string     `json:"ref"`
	Repository Repository `json:"repository"`
}

// Branch returns the pushed branch, or "" for tag pushes
func (p PushPayload) Branch() string {
	if !strings.HasPrefix(p.Ref, branchRefPrefix) {
		return ""
	}
	return strings.TrimPrefix(p.Ref, branchRefPrefix)
}

// ToDefaultBranch reports whether the push targets the repository's default branch
func (p PushPayload) ToDefaultBranch() bool {
	return p.Repository.DefaultBranch != "" && p.Ref == branchRefPrefix+p.Repository.DefaultBranch
}

const branchRefPrefix = "refs/heads/"

// decodePayload converts an event payload of any shape into T
func decodePayload[T any](payload any) (T, error) {
	var out T
	if typed, ok := payload.(T); ok {
		return typed, nil
	}
	if ptr, ok := payload.(*T); ok && ptr != nil {
		return *ptr, nil
	}

	var raw []byte
	switch p := payload.(type) {
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	default:
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return out, errors.Wrap(err, "failed to marshal event payload")
		}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, errors.Wrap(err, "failed to decode event payload")
	}
	return out, nil
}
