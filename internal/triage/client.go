// Package triage classifies alert events into dispatch categories using
// Gemini, behind a circuit breaker that degrades to the default category
// rather than failing the alert.
package triage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/carebridge/carelink/pkg/circuitbreaker"
)

// Category is the dispatch category for an alert.
type Category string

const (
	CategorySOSEmergency     Category = "sos_emergency"
	CategoryMedicationMissed Category = "medication_missed"
	CategoryAppointment      Category = "appointment"
	CategoryGeneral          Category = "general"
)

// parseCategory maps a model response onto the fixed label set. Anything the
// model invents collapses to general.
func parseCategory(s string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategorySOSEmergency:
		return CategorySOSEmergency
	case CategoryMedicationMissed:
		return CategoryMedicationMissed
	case CategoryAppointment:
		return CategoryAppointment
	default:
		return CategoryGeneral
	}
}

const classifyPrompt = `You triage alerts from an elder-care medication app.
Classify the alert below into exactly one of these categories:
- sos_emergency: the patient pressed SOS or describes an urgent health problem
- medication_missed: a dose was not taken on schedule
- appointment: a follow-up visit or scheduling matter
- general: anything else

Respond with ONLY the category name, nothing else.

Alert:
%s`

// Config holds triage client configuration.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// DefaultConfig returns defaults.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:  apiKey,
		Model:   "gemini-1.5-flash",
		Timeout: 10 * time.Second,
	}
}

// Client classifies alerts. Safe for concurrent use.
type Client struct {
	model   *genai.GenerativeModel
	client  *genai.Client
	breaker *circuitbreaker.CircuitBreaker
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a triage client.
func New(ctx context.Context, cfg Config, breakers *circuitbreaker.Manager, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	gc, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	breaker, err := breakers.GetOrCreate("triage", circuitbreaker.DefaultConfig("triage"))
	if err != nil {
		gc.Close()
		return nil, err
	}

	return &Client{
		model:   gc.GenerativeModel(cfg.Model),
		client:  gc,
		breaker: breaker,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// Classify returns the dispatch category for the alert text. When the model
// is unreachable or the circuit is open, it returns CategoryGeneral so
// dispatch proceeds without triage.
func (c *Client) Classify(ctx context.Context, alertText string) Category {
	result, err := c.breaker.ExecuteWithFallback(ctx,
		func() (interface{}, error) {
			return c.classify(ctx, alertText)
		},
		func(err error) (interface{}, error) {
			return CategoryGeneral, nil
		})
	if err != nil {
		c.logger.Warn("triage classification failed, using default category",
			zap.Error(err))
		return CategoryGeneral
	}
	return result.(Category)
}

func (c *Client) classify(ctx context.Context, alertText string) (Category, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.model.GenerateContent(ctx, genai.Text(fmt.Sprintf(classifyPrompt, alertText)))
	if err != nil {
		return CategoryGeneral, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return CategoryGeneral, fmt.Errorf("empty triage response")
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return CategoryGeneral, fmt.Errorf("unexpected triage response type")
	}
	return parseCategory(string(text)), nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	return c.client.Close()
}
