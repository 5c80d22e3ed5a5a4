// Package llm provides an OpenAI-compatible chat completions client used to score scenes.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/listenupapp/listenup-companion/internal/errors"
	"github.com/listenupapp/listenup-companion/internal/ratelimit"
	"github.com/listenupapp/listenup-companion/internal/scene"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 20 * time.Second

	// maxErrorBody caps how much of a failed response body is kept in the error.
	maxErrorBody = 512
)

// ErrMissingAPIKey is returned by NewClient when no key is configured.
var ErrMissingAPIKey = errors.Configuration("scene scorer API key is not configured")

const systemPrompt = `You locate scenes in audiobook transcripts.
Given a transcript and a description, find the passage that best matches the description,
even if it is paraphrased. Reply with a single JSON object and nothing else:
{"found": true|false, "position_percent": <number 0-100, where the passage starts relative to the whole transcript>, "preview": "<the first sentence or two of the passage, quoted from the transcript>"}
If nothing matches, reply {"found": false, "position_percent": 0, "preview": ""}.`

// Config configures a Client.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	RPS        float64
	Burst      int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client scores scene descriptions against a transcript with a chat model.
type Client struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.KeyedRateLimiter
	logger      *slog.Logger
	baseURL     string
	apiKey      string
	model       string
}

var _ scene.Scorer = (*Client)(nil)

// NewClient creates a scorer client. A missing API key is a configuration error.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		httpClient:  cfg.HTTPClient,
		rateLimiter: ratelimit.New(cfg.RPS, cfg.Burst),
		logger:      cfg.Logger,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionsRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      chatMessage `json:"message"`
}

type chatCompletionsResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

// scoredMatch mirrors scene.Match but keeps fields optional so missing keys are detectable.
type scoredMatch struct {
	Found   *bool    `json:"found"`
	Percent *float64 `json:"position_percent"`
	Preview string   `json:"preview"`
}

// Locate implements scene.Scorer.
func (c *Client) Locate(ctx context.Context, corpus, query string) (scene.Match, error) {
	if err := c.rateLimiter.Wait(ctx, c.model); err != nil {
		return scene.Match{}, errors.SearchFailed(err, "scene scorer rate limit wait")
	}

	start := time.Now()
	content, err := c.complete(ctx, []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Description: %s\n\nTranscript:\n%s", query, corpus)},
	})
	if err != nil {
		return scene.Match{}, err
	}

	match, err := parseMatch(content)
	if err != nil {
		c.logger.Warn("scene scorer returned malformed answer",
			"model", c.model,
			"error", err,
		)
		return scene.Match{}, err
	}

	c.logger.Debug("scene scored",
		"model", c.model,
		"found", match.Found,
		"percent", match.Percent,
		"duration", time.Since(start),
	)
	return match, nil
}

// complete sends a chat completion request and returns the first choice's content.
func (c *Client) complete(ctx context.Context, messages []chatMessage) (string, error) {
	body, err := json.Marshal(chatCompletionsRequest{
		Model:          c.model,
		Messages:       messages,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "encode scorer request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "build scorer request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.SearchFailed(err, "scene scorer request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // Best effort for error message
		return "", errors.SearchFailed(
			fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b))),
			"scene scorer returned an error",
		)
	}

	var cr chatCompletionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", errors.SearchFailed(err, "decode scorer response")
	}
	if len(cr.Choices) == 0 {
		return "", errors.SearchFailed(nil, "scene scorer returned no choices")
	}

	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}

// parseMatch decodes the model's JSON answer, tolerating a surrounding code fence.
func parseMatch(content string) (scene.Match, error) {
	content = stripCodeFence(content)

	var sm scoredMatch
	if err := json.Unmarshal([]byte(content), &sm); err != nil {
		return scene.Match{}, errors.SearchFailed(err, "scene scorer answer is not valid JSON")
	}
	if sm.Found == nil {
		return scene.Match{}, errors.SearchFailed(nil, "scene scorer answer is missing \"found\"")
	}
	if !*sm.Found {
		return scene.Match{}, nil
	}
	if sm.Percent == nil {
		return scene.Match{}, errors.SearchFailed(nil, "scene scorer answer is missing \"position_percent\"")
	}
	if *sm.Percent < 0 || *sm.Percent > 100 {
		return scene.Match{}, errors.SearchFailed(nil, fmt.Sprintf("scene scorer position %v is outside 0-100", *sm.Percent))
	}

	return scene.Match{Found: true, Percent: *sm.Percent, Preview: sm.Preview}, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
