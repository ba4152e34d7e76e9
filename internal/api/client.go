// internal/api/client.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bpsr-logs/livemeter/internal/model"
)

const (
	DefaultBaseURL      = "https://db.bptimer.com"
	DefaultHPReportPath = "/api/create-hp-report"
	DefaultTimeout      = 30 * time.Second
)

// Client posts crowdsourced HP reports to the backend.
type Client struct {
	baseURL      string
	hpReportPath string
	apiKey       string
	httpClient   *http.Client
}

// New creates a new API client. A zero timeout uses DefaultTimeout.
func New(baseURL, hpReportPath, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if hpReportPath != "" && !strings.HasPrefix(hpReportPath, "/") {
		hpReportPath = "/" + hpReportPath
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		hpReportPath: hpReportPath,
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// Endpoint returns the full HP report URL.
func (c *Client) Endpoint() string {
	return c.baseURL + c.hpReportPath
}

// CreateHPReport posts one HP report. Any non-2xx status is an error.
func (c *Client) CreateHPReport(ctx context.Context, report model.HPReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("hp report request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("hp report returned status %d", resp.StatusCode)
	}
	return nil
}
