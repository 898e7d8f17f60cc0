package categorization

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"newsroom/internal/core"
)

// Classifier assigns a category to a sender address by ordered substring match.
type Classifier struct {
	rules []Rule
}

// Shadow describes a rule that can never match because an earlier rule's
// key is contained in its own key.
type Shadow struct {
	Rule       Rule
	Index      int
	ShadowedBy Rule
	ByIndex    int
}

func (s Shadow) String() string {
	return fmt.Sprintf("rule %d (%q -> %s) is unreachable behind rule %d (%q -> %s)",
		s.Index, s.Rule.Key, s.Rule.Category, s.ByIndex, s.ShadowedBy.Key, s.ShadowedBy.Category)
}

// NewClassifier creates a classifier. Keys are compared lower-cased.
func NewClassifier(rules []Rule) *Classifier {
	normalized := make([]Rule, 0, len(rules))
	for _, r := range rules {
		normalized = append(normalized, Rule{
			Key:      strings.ToLower(strings.TrimSpace(r.Key)),
			Category: strings.TrimSpace(r.Category),
		})
	}
	return &Classifier{rules: normalized}
}

// NewDefaultClassifier creates a classifier over DefaultRules.
func NewDefaultClassifier() *Classifier {
	return NewClassifier(DefaultRules())
}

// Classify returns the category of the first rule whose key occurs in the
// sender address, or core.Uncategorized.
func (c *Classifier) Classify(from string) string {
	addr := strings.ToLower(ExtractAddress(from))
	for _, r := range c.rules {
		if containsAnyKeywords(addr, r.Key) {
			return r.Category
		}
	}
	return core.Uncategorized
}

// Rules returns a copy of the rules in match order.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Shadowed lists every rule that an earlier rule always wins against.
func (c *Classifier) Shadowed() []Shadow {
	var shadows []Shadow
	for j, later := range c.rules {
		for i := 0; i < j; i++ {
			if strings.Contains(later.Key, c.rules[i].Key) {
				shadows = append(shadows, Shadow{Rule: later, Index: j, ShadowedBy: c.rules[i], ByIndex: i})
				break
			}
		}
	}
	return shadows
}

// ExtractAddress returns the address between angle brackets when it holds
// an @, otherwise the whole trimmed input.
func ExtractAddress(from string) string {
	from = strings.TrimSpace(from)
	start := strings.Index(from, "<")
	end := strings.LastIndex(from, ">")
	if start >= 0 && end > start {
		if addr := strings.TrimSpace(from[start+1 : end]); strings.Contains(addr, "@") {
			return addr
		}
	}
	return from
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads an ordered rule list from a YAML file of the form
//
//	rules:
//	  - key: morningbrew
//	    category: Finance
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("rules file %s has no rules", path)
	}

	for i, r := range f.Rules {
		if strings.TrimSpace(r.Key) == "" || strings.TrimSpace(r.Category) == "" {
			return nil, fmt.Errorf("rules file %s: rule %d needs both key and category", path, i)
		}
	}
	return f.Rules, nil
}

// containsAnyKeywords checks if text contains any of the given keywords
func containsAnyKeywords(text string, keywords ...string) bool {
	for _, keyword := range keywords {
		if keyword != "" && strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
