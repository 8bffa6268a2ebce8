// Package jrn builds and matches Jolli Resource Names, the hierarchical
// identifiers trigger documents declare patterns against.
//
// A JRN looks like
//
//	jrn::path:/home/global/sources/github/<org>/<repo>/<branch>
//
// Segments are separated by ':' or '/'. Empty segments are significant:
// "jrn::" has an empty segment between its two colons.
package jrn

import "strings"

// SourcesPrefix is the fixed head of every GitHub source JRN
const SourcesPrefix = "jrn::path:/home/global/sources/github"

// Build returns the JRN for a GitHub org/repo/branch.
// The path stops at the first empty component, so an empty repo yields a
// shorter JRN rather than an empty placeholder segment.
func Build(org, repo, branch string) string {
	var b strings.Builder
	b.WriteString(SourcesPrefix)
	for _, part := range []string{org, repo, branch} {
		part = strings.Trim(part, "/")
		if part == "" {
			break
		}
		b.WriteByte('/')
		b.WriteString(part)
	}
	return b.String()
}

// SplitFullName splits a GitHub "owner/name" full name
func SplitFullName(fullName string) (org, repo string) {
	org, repo, _ = strings.Cut(strings.TrimSpace(fullName), "/")
	return org, repo
}
