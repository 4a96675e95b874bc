// Package remote is the HTTP client for the remote crisis store backend.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bissquit/crisiskit/internal/domain"
)

const defaultTimeout = 10 * time.Second

// Config holds remote client configuration.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // submissions per second, 0 disables limiting
	AuthToken string  // optional bearer token for the backend
}

// Client talks to the crisis store over HTTP.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a remote store client.
func NewClient(config Config) (*Client, error) {
	if strings.TrimSpace(config.BaseURL) == "" {
		return nil, fmt.Errorf("remote client: base URL is required")
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    limiter,
	}, nil
}

// SubmitResponse delivers one submission. Timeout semantics belong to this
// client: the queue imposes no per-item deadline of its own.
func (c *Client) SubmitResponse(ctx context.Context, payload domain.SubmissionPayload) (domain.StoredResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.StoredResponse{}, &RetryableError{Message: fmt.Sprintf("rate limiter: %v", err)}
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.StoredResponse{}, fmt.Errorf("marshal submission: %w", err)
	}

	endpoint := fmt.Sprintf("%s/incidents/%s/responses",
		strings.TrimRight(c.config.BaseURL, "/"), url.PathEscape(payload.IncidentID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.StoredResponse{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.StoredResponse{}, &RetryableError{Message: fmt.Sprintf("send request: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp, http.StatusCreated, http.StatusOK); err != nil {
		return domain.StoredResponse{}, err
	}

	var stored domain.StoredResponse
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		return domain.StoredResponse{}, fmt.Errorf("decode stored response: %w", err)
	}
	return stored, nil
}

// ListResponses returns the submissions already stored for an incident.
// Used by the duplicate guard, online only.
func (c *Client) ListResponses(ctx context.Context, incidentID string) ([]domain.StoredResponse, error) {
	endpoint := fmt.Sprintf("%s/incidents/%s/responses",
		strings.TrimRight(c.config.BaseURL, "/"), url.PathEscape(incidentID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RetryableError{Message: fmt.Sprintf("send request: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}

	responses := make([]domain.StoredResponse, 0)
	if err := json.NewDecoder(resp.Body).Decode(&responses); err != nil {
		return nil, fmt.Errorf("decode responses: %w", err)
	}
	return responses, nil
}

// Healthy reports whether the backend answers its health endpoint. Used as
// the connectivity probe.
func (c *Client) Healthy(ctx context.Context) bool {
	endpoint := strings.TrimRight(c.config.BaseURL, "/") + "/healthz"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (c *Client) authorize(req *http.Request) {
	if c.config.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.AuthToken)
	}
}

func checkStatus(resp *http.Response, accepted ...int) error {
	for _, code := range accepted {
		if resp.StatusCode == code {
			return nil
		}
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RetryableError{Code: resp.StatusCode, Message: "rate limited"}
	case resp.StatusCode >= 500:
		return &RetryableError{Code: resp.StatusCode, Message: fmt.Sprintf("server error: %s", string(body))}
	default:
		return &PermanentError{Code: resp.StatusCode, Message: fmt.Sprintf("rejected: %s", string(body))}
	}
}
