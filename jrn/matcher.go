package jrn

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
)

// Verb is the kind of event a matcher reacts to
type Verb string

const (
	VerbCreated Verb = "CREATED"
	VerbRemoved Verb = "REMOVED"
	VerbGitPush Verb = "GIT_PUSH"
)

// ParseVerb normalizes and validates a verb string
func ParseVerb(s string) (Verb, error) {
	v := Verb(strings.ToUpper(strings.TrimSpace(s)))
	switch v {
	case VerbCreated, VerbRemoved, VerbGitPush:
		return v, nil
	default:
		return "", errors.NewInvalidRequestError("unknown verb %q", s)
	}
}

// TriggerMatcher is one {jrn, verb} pair declared in a document's front matter
type TriggerMatcher struct {
	JRN  string `yaml:"jrn" json:"jrn"`
	Verb Verb   `yaml:"verb" json:"verb"`
}

// Matches reports whether an event with this JRN and verb activates the matcher
func (m TriggerMatcher) Matches(value string, verb Verb) bool {
	return strings.EqualFold(string(m.Verb), string(verb)) && Match(m.JRN, value)
}

// TriggerMatchers is the normalized "on" field. It decodes from either a
// single mapping or a sequence of mappings.
type TriggerMatchers []TriggerMatcher

// UnmarshalYAML implements yaml.Unmarshaler
func (ms *TriggerMatchers) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		var m TriggerMatcher
		if err := node.Decode(&m); err != nil {
			return err
		}
		*ms = TriggerMatchers{m}
		return nil
	case yaml.SequenceNode:
		var list []TriggerMatcher
		if err := node.Decode(&list); err != nil {
			return err
		}
		*ms = list
		return nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*ms = nil
			return nil
		}
	}
	return errors.Newf("line %d: \"on\" must be a matcher or a list of matchers", node.Line)
}

// First returns the first matcher activated by the event.
// A document activates when any of its matchers match.
func (ms TriggerMatchers) First(value string, verb Verb) (TriggerMatcher, bool) {
	for _, m := range ms {
		if m.Matches(value, verb) {
			return m, true
		}
	}
	return TriggerMatcher{}, false
}
