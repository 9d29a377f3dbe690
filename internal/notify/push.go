// Package notify delivers caregiver notifications through the hospital's push
// gateway.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Notification is one message for a patient's caregivers.
type Notification struct {
	PatientID   string `json:"patient_id"`
	PatientName string `json:"patient_name,omitempty"`
	PhoneNumber string `json:"ph_number,omitempty"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Body        string `json:"body"`
}

// Config holds push gateway configuration.
type Config struct {
	// BaseURL of the gateway, e.g. http://push-gateway:8085.
	BaseURL string
	// APIKey sent as a bearer token. Optional in development.
	APIKey string
	// Timeout per delivery attempt.
	Timeout time.Duration
}

// DefaultConfig returns defaults.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Pusher sends notifications. Retries are the caller's concern; a single call
// is one delivery attempt.
type Pusher struct {
	config Config
	client *http.Client
	logger *zap.Logger
}

// NewPusher creates a pusher.
func NewPusher(cfg Config, logger *zap.Logger) *Pusher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Pusher{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Send delivers one notification.
func (p *Pusher) Send(ctx context.Context, n *Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.BaseURL+"/v1/notifications", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push gateway returned %d: %s", resp.StatusCode, string(body))
	}

	p.logger.Debug("notification delivered",
		zap.String("patient_id", n.PatientID),
		zap.String("category", n.Category))
	return nil
}
