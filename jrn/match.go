package jrn

import (
	"path"
	"strings"
)

// token is one segment together with the separator preceding it
type token struct {
	sep byte // 0 for the first segment
	seg string
}

func tokenize(s string) []token {
	tokens := make([]token, 0, 16)
	var sep byte
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ':' || s[i] == '/' {
			tokens = append(tokens, token{sep: sep, seg: s[start:i]})
			sep = s[i]
			start = i + 1
		}
	}
	return append(tokens, token{sep: sep, seg: s[start:]})
}

// Match reports whether value matches pattern.
//
//   - "*" matches exactly one segment, which may be empty
//   - "**" matches zero or more segments delimited by its own separator,
//     so ".../acme/**" never swallows a ":" segment
//   - any other segment matches literally, or as a path.Match glob when it
//     contains glob characters
//
// Separators must line up exactly.
func Match(pattern, value string) bool {
	return matchTokens(tokenize(pattern), tokenize(value))
}

func matchTokens(p, v []token) bool {
	for len(p) > 0 {
		if p[0].seg == "**" {
			rest := p[1:]
			if matchTokens(rest, v) {
				return true
			}
			for i := 1; i <= len(v); i++ {
				if v[i-1].sep != p[0].sep {
					break
				}
				if matchTokens(rest, v[i:]) {
					return true
				}
			}
			return false
		}

		if len(v) == 0 || p[0].sep != v[0].sep || !matchSegment(p[0].seg, v[0].seg) {
			return false
		}
		p, v = p[1:], v[1:]
	}
	return len(v) == 0
}

func matchSegment(pattern, seg string) bool {
	if pattern == "*" {
		return true
	}
	if !strings.ContainsAny(pattern, `*?[\`) {
		return pattern == seg
	}
	ok, err := path.Match(pattern, seg)
	return err == nil && ok
}
