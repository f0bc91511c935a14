package pokeapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxPayloadBytes = 8 << 20

type Outcome string

const (
	OutcomeFound     Outcome = "found"
	OutcomeNotFound  Outcome = "not_found"
	OutcomeTransient Outcome = "transient_error"
)

// FetchResult is the tagged result of a single upstream lookup. Payload is set
// only for OutcomeFound and Detail only for OutcomeTransient.
type FetchResult struct {
	Outcome Outcome
	Payload []byte
	Detail  string
}

func Found(payload []byte) FetchResult {
	return FetchResult{Outcome: OutcomeFound, Payload: payload}
}

func NotFound() FetchResult {
	return FetchResult{Outcome: OutcomeNotFound}
}

func Transient(format string, args ...any) FetchResult {
	return FetchResult{Outcome: OutcomeTransient, Detail: fmt.Sprintf(format, args...)}
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: baseURL, client: client}, nil
}

// Fetch issues one GET for the species slug. It never retries and never
// returns an error: every failure is folded into the result.
func (c *Client) Fetch(ctx context.Context, slug string) FetchResult {
	endpoint := c.baseURL + "/pokemon/" + url.PathEscape(slug)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Transient("build request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Transient("network error: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return NotFound()
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return Transient("read response body: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Transient("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return Found(body)
}
