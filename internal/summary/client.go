// Package summary asks an external text-generation service to describe a set of shifts.
package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"example.com/nannytracker/internal/domain"
	"example.com/nannytracker/internal/observability"
)

// FallbackText is returned whenever a summary cannot be produced.
const FallbackText = "Could not generate summary at this time."

const defaultURL = "https://api.openai.com/v1/responses"

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("summary service not configured")

// Config configures the responses endpoint.
type Config struct {
	URL        string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// Option configures optional behaviour for the Client.
type Option func(*Client)

// WithLogger overrides the logger used for summary failures.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithLocation sets the zone used when rendering shift times in the prompt.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		c.loc = loc
	}
}

// Client requests shift summaries.
type Client struct {
	cfg    Config
	logger *log.Logger
	loc    *time.Location
}

// NewClient constructs a Client.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = defaultURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gpt-4o-mini"
	}
	c := &Client{
		cfg:    cfg,
		logger: log.New(log.Writer(), "[summary] ", log.LstdFlags),
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Summarize never fails: errors are logged and replaced by FallbackText.
func (c *Client) Summarize(ctx context.Context, sessions []domain.Session) string {
	text, err := c.Generate(ctx, sessions)
	if err != nil {
		observability.RecordSummaryFailure()
		c.logger.Printf("summary failed: %v", err)
		return FallbackText
	}
	return text
}

// Generate performs the request and returns the generated text.
func (c *Client) Generate(ctx context.Context, sessions []domain.Session) (string, error) {
	apiKey := strings.TrimSpace(c.cfg.APIKey)
	if apiKey == "" {
		return "", ErrNotConfigured
	}

	requestBody, err := json.Marshal(map[string]any{
		"model": c.cfg.Model,
		"input": Prompt(sessions, c.loc),
	})
	if err != nil {
		return "", fmt.Errorf("marshal summary request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(requestBody))
	if err != nil {
		return "", fmt.Errorf("build summary request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("summary request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, err := io.ReadAll(io.LimitReader(res.Body, 4096))
		if err != nil {
			return "", fmt.Errorf("read summary error body: %w", err)
		}
		return "", fmt.Errorf("summary request status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		OutputText string `json:"output_text"`
		Output     []struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode summary response: %w", err)
	}
	if text := strings.TrimSpace(payload.OutputText); text != "" {
		return text, nil
	}
	for _, item := range payload.Output {
		for _, content := range item.Content {
			if text := strings.TrimSpace(content.Text); text != "" {
				return text, nil
			}
		}
	}
	return "", errors.New("summary response missing output text")
}

// Prompt renders the shifts as the instruction sent to the model.
func Prompt(sessions []domain.Session, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	var b strings.Builder
	b.WriteString("Summarize the following nanny shifts for the parents in two or three friendly sentences. ")
	b.WriteString("Mention total hours, any notes, and any shifts flagged as outside the home area.\n")
	if len(sessions) == 0 {
		b.WriteString("No shifts were recorded in this period.\n")
		return b.String()
	}
	for _, s := range sessions {
		start := s.StartTime.In(loc)
		fmt.Fprintf(&b, "- %s %s, %.2f hours", start.Format("Mon Jan 2"), start.Format("15:04"), float64(s.Minutes())/60)
		if s.IsOutOfBounds {
			b.WriteString(", flagged")
		}
		if s.Note != "" {
			fmt.Fprintf(&b, ", note: %q", s.Note)
		}
		b.WriteString("\n")
	}
	return b.String()
}
