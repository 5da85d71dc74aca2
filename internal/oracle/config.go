package oracle

import (
	"fmt"
	"regexp"
)

// Providers understood by New.
const (
	ProviderKeyword = "keyword"
	ProviderOpenAI  = "openai"
)

// Config holds oracle configuration.
type Config struct {
	// Provider selects the backend: keyword or openai.
	Provider string `yaml:"provider"`
	// APIKey authenticates against the openai provider.
	APIKey string `yaml:"api_key,omitempty"`
	// Model is the model name sent to the openai provider.
	Model string `yaml:"model"`
	// BaseURL is the Responses API endpoint.
	BaseURL string `yaml:"base_url"`
	// TimeoutSec bounds each oracle call.
	TimeoutSec int `yaml:"timeout_sec"`
	// Rules drive the keyword provider.
	Rules []CategoryRule `yaml:"rules"`
}

// CategoryRule marks a command as plausibly belonging to Category.
type CategoryRule struct {
	// Category the rule votes for.
	Category string `yaml:"category"`
	// Keywords match the command's first word.
	Keywords []string `yaml:"keywords"`
	// Patterns are regexes matched against the lowercased command.
	Patterns []string `yaml:"patterns,omitempty"`
}

// DefaultConfig returns the offline keyword configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider:   ProviderKeyword,
		Model:      "gpt-4o-mini",
		BaseURL:    "https://api.openai.com/v1/responses",
		TimeoutSec: 15,
		Rules:      DefaultRules(),
	}
}

// DefaultRules returns the built-in syntax rules per category.
func DefaultRules() []CategoryRule {
	return []CategoryRule{
		{
			Category: "internal",
			Patterns: []string{`^[a-z_][a-z0-9_]*\s*=\s*[^=]`},
		},
		{
			Category: "python",
			Keywords: []string{"print", "import", "from", "def", "class", "lambda", "pip", "len", "range", "del"},
			Patterns: []string{
				`^print\s*\(`,
				`^[a-z_][a-z0-9_]*\s*=\s*[^=]`,
				`^(def|class)\s+\w+`,
				`^for\s+\w+\s+in\s+`,
			},
		},
		{
			Category: "unix",
			Keywords: []string{"echo", "ls", "pwd", "cd", "cat", "grep", "whoami", "date", "mkdir", "rm", "touch", "chmod", "ps", "man", "head", "tail", "uname", "find", "export"},
			Patterns: []string{`\|\s*(grep|wc|sort|head|tail)\b`, `^\./`},
		},
		{
			Category: "windows",
			Keywords: []string{"echo", "dir", "cd", "cls", "ver", "type", "copy", "del", "ipconfig", "tasklist", "systeminfo"},
			Patterns: []string{`^[a-z]:\\`, `\\\w+\\`},
		},
		{
			Category: "sql",
			Keywords: []string{"select", "insert", "update", "delete", "create", "drop", "alter", "with", "pragma"},
			Patterns: []string{`^select\s`, `^insert\s+into\s`},
		},
		{
			Category: "excel",
			Patterns: []string{
				`^=`,
				`^(sum|average|count|countif|sumif|vlookup|hlookup|concatenate|round)\s*\(`,
			},
		},
		{
			Category: "typescript",
			Keywords: []string{"interface", "enum", "let", "const", "function"},
			Patterns: []string{
				`^console\.(log|error|warn|info)\s*\(`,
				`^(let|const|var)\s+\w+\s*(:\s*[\w\[\]<>]+)?\s*=`,
				`=>`,
			},
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderKeyword:
	case ProviderOpenAI:
		if c.BaseURL == "" {
			return fmt.Errorf("oracle base_url is required for provider %q", c.Provider)
		}
	default:
		return fmt.Errorf("invalid oracle provider %q, must be: keyword or openai", c.Provider)
	}
	if c.TimeoutSec < 1 {
		return fmt.Errorf("oracle timeout_sec must be at least 1")
	}
	for _, rule := range c.Rules {
		for _, p := range rule.Patterns {
			if _, err := regexp.Compile(p); err != nil {
				return fmt.Errorf("rule %s: invalid pattern %q: %w", rule.Category, p, err)
			}
		}
	}
	return nil
}
