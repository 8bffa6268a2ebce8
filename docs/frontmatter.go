package docs

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Finn-coder2026/jolli-demo-sub011/errors"
	"github.com/Finn-coder2026/jolli-demo-sub011/jrn"
)

const frontMatterDelimiter = "---"

// FrontMatter is the YAML header of a document
type FrontMatter struct {
	ArticleType string              `yaml:"article_type"`
	Title       string              `yaml:"title"`
	On          jrn.TriggerMatchers `yaml:"on"`
	Raw         map[string]any      `yaml:"-"`
}

// SplitFrontMatter separates a leading "---" block from the body.
// ok is false when the content has no front matter.
func SplitFrontMatter(content string) (header, body string, ok bool) {
	content = strings.TrimPrefix(content, "\ufeff")
	first, rest, found := strings.Cut(content, "\n")
	if !found || strings.TrimSpace(first) != frontMatterDelimiter {
		return "", content, false
	}

	lines := strings.SplitAfter(rest, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == frontMatterDelimiter {
			return strings.Join(lines[:i], ""), strings.Join(lines[i+1:], ""), true
		}
	}
	return "", content, false
}

// ParseFrontMatter decodes the front matter of content.
// Content without front matter yields an empty FrontMatter; malformed YAML or
// an unterminated header is an error.
func ParseFrontMatter(content string) (*FrontMatter, error) {
	header, _, ok := SplitFrontMatter(content)
	if !ok {
		if strings.HasPrefix(strings.TrimSpace(content), frontMatterDelimiter+"\n") {
			return nil, errors.New("front matter is not terminated")
		}
		return &FrontMatter{}, nil
	}

	var fm FrontMatter
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return nil, errors.Wrap(err, "failed to parse front matter")
	}
	if err := yaml.Unmarshal([]byte(header), &fm.Raw); err != nil {
		return nil, errors.Wrap(err, "failed to parse front matter")
	}
	return &fm, nil
}

// ArticleTypeOf returns the declared article type, or the default
func (fm *FrontMatter) ArticleTypeOf() string {
	if fm == nil || fm.ArticleType == "" {
		return ArticleTypeDefault
	}
	return fm.ArticleType
}
