package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultResponsesURL = "https://api.openai.com/v1/responses"

// OpenAI talks to the OpenAI Responses API. It implements both
// CategoryOracle and TextGenerator.
type OpenAI struct {
	apiKey    string
	model     string
	baseURL   string
	client    *http.Client
	maxBodyKB int64
	logger    *zap.Logger
}

// NewOpenAI builds a client from cfg. A nil logger disables logging.
func NewOpenAI(cfg *Config, logger *zap.Logger) *OpenAI {
	if logger == nil {
		logger = zap.NewNop()
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultResponsesURL
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &OpenAI{
		apiKey:    cfg.APIKey,
		model:     model,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: timeout},
		maxBodyKB: 1024,
		logger:    logger,
	}
}

// classificationPrompt ranks the decision rules given to the model.
func classificationPrompt(active []string) string {
	return "You classify a single command line typed into a multi-language console. " +
		"The active categories are: " + strings.Join(active, ", ") + ". " +
		"Rules, in order: " +
		"(1) if the command exactly matches a built-in internal command, answer internal; " +
		"(2) if its syntax is clearly valid for exactly one active category, answer that category; " +
		"(3) if it is plausibly valid for more than one active category, answer ambiguous and name them in reasoning; " +
		"(4) otherwise answer unknown. " +
		"Never answer a category that is not active. Return JSON only that matches the provided schema."
}

// ClassifyCommand asks the model for a category verdict.
func (c *OpenAI) ClassifyCommand(ctx context.Context, command string, active []string) (*Verdict, error) {
	enum := append(append([]string{}, active...), "ambiguous", "unknown")
	format := map[string]any{
		"type": "json_schema",
		"name": "command_category",
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"category":  map[string]any{"type": "string", "enum": enum},
				"reasoning": map[string]any{"type": "string"},
			},
			"required":             []string{"category", "reasoning"},
			"additionalProperties": false,
		},
	}

	text, err := c.respond(ctx, classificationPrompt(active), command, format)
	if err != nil {
		return nil, err
	}
	var v Verdict
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("oracle json parse error: %w", err)
	}
	return &v, nil
}

// Generate returns a plain-text answer to input.
func (c *OpenAI) Generate(ctx context.Context, input string) (string, error) {
	const system = "You are a concise assistant inside a developer console. Answer in plain text."
	text, err := c.respond(ctx, system, input, map[string]any{"type": "text"})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// respond sends one system+user exchange and returns the first output text.
func (c *OpenAI) respond(ctx context.Context, system, user string, format map[string]any) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", fmt.Errorf("oracle api_key is not set")
	}

	reqBody := map[string]any{
		"model": c.model,
		"input": []any{
			map[string]any{
				"role": "system",
				"content": []any{
					map[string]any{"type": "input_text", "text": system},
				},
			},
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{"type": "input_text", "text": user},
				},
			},
		},
		"text": map[string]any{"format": format},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("oracle request failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<12))
		return "", fmt.Errorf("oracle status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var parsed struct {
		Output []struct {
			Type    string `json:"type"`
			Content []struct {
				Type    string `json:"type"`
				Text    string `json:"text"`
				Refusal string `json:"refusal"`
			} `json:"content"`
		} `json:"output"`
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyKB*1024))
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", err
	}
	c.logger.Debug("oracle response",
		zap.String("model", c.model),
		zap.Duration("duration", time.Since(start)),
	)

	for _, out := range parsed.Output {
		if out.Type != "message" {
			continue
		}
		for _, item := range out.Content {
			if item.Type == "output_text" && strings.TrimSpace(item.Text) != "" {
				return item.Text, nil
			}
			if item.Type == "refusal" && strings.TrimSpace(item.Refusal) != "" {
				return "", fmt.Errorf("oracle refused: %s", item.Refusal)
			}
		}
	}
	return "", fmt.Errorf("oracle returned no usable output")
}

// New builds the category oracle and text generator selected by cfg.
func New(cfg *Config, logger *zap.Logger) (CategoryOracle, TextGenerator) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Provider == ProviderOpenAI {
		c := NewOpenAI(cfg, logger)
		return c, c
	}
	return NewKeyword(cfg.Rules), Offline{}
}
