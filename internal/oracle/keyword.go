package oracle

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const internalCategory = "internal"

// Keyword is a deterministic CategoryOracle driven by per-category syntax
// rules. It applies the same ranked rules the remote oracle is prompted with:
// internal syntax wins outright, otherwise a unique match wins, several
// matches are ambiguous and none is unknown.
type Keyword struct {
	rules []compiledRule
}

type compiledRule struct {
	category string
	keywords []string
	patterns []*regexp.Regexp
}

// NewKeyword compiles rules. Invalid patterns are skipped; Config.Validate
// reports them up front.
func NewKeyword(rules []CategoryRule) *Keyword {
	if rules == nil {
		rules = DefaultRules()
	}
	k := &Keyword{}
	for _, r := range rules {
		cr := compiledRule{category: strings.ToLower(r.Category)}
		for _, kw := range r.Keywords {
			cr.keywords = append(cr.keywords, strings.ToLower(kw))
		}
		for _, p := range r.Patterns {
			if re, err := regexp.Compile(p); err == nil {
				cr.patterns = append(cr.patterns, re)
			}
		}
		k.rules = append(k.rules, cr)
	}
	return k
}

// ClassifyCommand votes every active category whose rules match.
func (k *Keyword) ClassifyCommand(ctx context.Context, command string, active []string) (*Verdict, error) {
	text := strings.ToLower(strings.TrimSpace(command))
	allowed := make(map[string]bool, len(active))
	for _, a := range active {
		allowed[a] = true
	}

	matched := make(map[string]bool)
	for _, rule := range k.rules {
		if !allowed[rule.category] {
			continue
		}
		if matchesRule(text, rule) {
			matched[rule.category] = true
		}
	}

	// Internal syntax outranks every other category.
	if matched[internalCategory] {
		return &Verdict{
			Category:  internalCategory,
			Reasoning: "command matches internal command syntax",
		}, nil
	}

	names := make([]string, 0, len(matched))
	for name := range matched {
		names = append(names, name)
	}
	sort.Strings(names)

	switch len(names) {
	case 0:
		return &Verdict{
			Category:  "unknown",
			Reasoning: fmt.Sprintf("command does not match the syntax of any active category (%s)", strings.Join(active, ", ")),
		}, nil
	case 1:
		return &Verdict{Category: names[0]}, nil
	default:
		return &Verdict{
			Category:  "ambiguous",
			Reasoning: fmt.Sprintf("command plausibly matches %s", strings.Join(names, " and ")),
		}, nil
	}
}

// matchesRule checks the first word against keywords, then the patterns.
func matchesRule(text string, rule compiledRule) bool {
	if first := firstWord(text); first != "" {
		for _, kw := range rule.keywords {
			if first == kw {
				return true
			}
		}
	}
	for _, re := range rule.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// firstWord returns the leading word with surrounding punctuation removed.
func firstWord(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], ".,;:!?\"'()[]{}")
}
