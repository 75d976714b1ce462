// Package openai writes articles through an OpenAI-compatible chat
// completions endpoint. It implements generator.ArticleWriter.
//
// Only the small part of the API the pipeline needs is modelled: one
// system message, one user message, JSON response format.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"github.com/sakif/tubescribe/internal/generator"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"

	temperature = 0.9
	maxTokens   = 8000

	// maxErrorBody caps how much of a failed response ends up in the error.
	maxErrorBody = 512
)

// Config configures New.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	Organization string
	Timeout      time.Duration
}

// Client is a generator.ArticleWriter. It is safe for concurrent use.
type Client struct {
	http    *http.Client
	baseURL string
	model   string
	org     string
	logger  zerolog.Logger
}

var _ generator.ArticleWriter = (*Client)(nil)

// New builds a Client. The API key is attached as a bearer token by an
// oauth2 transport layered over an otelhttp transport.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai: API key is required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	transport := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, transport)
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.APIKey,
		TokenType:   "Bearer",
	}))
	httpClient.Timeout = cfg.Timeout

	return &Client{
		http:    httpClient,
		baseURL: base,
		model:   model,
		org:     strings.TrimSpace(cfg.Organization),
		logger:  logger.With().Str("component", "openai").Logger(),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Write asks the model for an article about videoTitle, grounded in the
// transcript, and parses the reply with generator.ParseArticle.
func (c *Client) Write(ctx context.Context, videoTitle, transcript string) (generator.Article, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: generator.SystemPrompt},
			{Role: "user", Content: generator.UserPrompt(videoTitle, transcript)},
		},
		Temperature:    temperature,
		MaxTokens:      maxTokens,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return generator.Article{}, fmt.Errorf("openai: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return generator.Article{}, fmt.Errorf("openai: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.org != "" {
		req.Header.Set("OpenAI-Organization", c.org)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return generator.Article{}, fmt.Errorf("openai: calling chat completions: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return generator.Article{}, fmt.Errorf("openai: reading response: %w", err)
	}

	c.logger.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Int("bytes", len(body)).
		Msg("chat completion finished")

	if resp.StatusCode/100 != 2 {
		return generator.Article{}, fmt.Errorf("openai: status %d: %s", resp.StatusCode, truncate(body, maxErrorBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return generator.Article{}, fmt.Errorf("openai: decoding response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return generator.Article{}, errors.New("openai: response has no choices")
	}

	return generator.ParseArticle(parsed.Choices[0].Message.Content)
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
