// Package apiclient loads the sales snapshot from the dashboard's REST backend.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("apiclient: resource not found")
	// ErrUnsuccessful is returned when the backend answers with success=false.
	ErrUnsuccessful = errors.New("apiclient: request unsuccessful")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Path   string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("apiclient: %s returned status %d", e.Path, e.Status)
}

func (e *StatusError) retryable() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// Config configures the client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

// Client wraps interactions with the sales REST API.
type Client struct {
	baseURL    string
	token      string
	retries    int
	backoff    time.Duration
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient constructs a new client. A nil httpClient uses a default one.
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		retries:    cfg.Retries,
		backoff:    cfg.Backoff,
		timeout:    cfg.Timeout,
		httpClient: httpClient,
		logger:     logger,
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// getJSON fetches path and decodes the envelope data into dest, retrying transport errors,
// 5xx and 429 responses with exponential backoff.
func (c *Client) getJSON(ctx context.Context, path string, dest any) error {
	var err error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			wait := c.backoff << (attempt - 1)
			c.logger.Warn("apiclient: retrying", slog.String("path", path), slog.Int("attempt", attempt), slog.Any("error", err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		err = c.fetch(ctx, path, dest)
		if err == nil || !retryable(ctx, err) {
			return err
		}
	}
	return err
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.retryable()
	}
	return !errors.Is(err, ErrUnsuccessful) && !errors.Is(err, ErrNotFound) && !isDecodeError(err)
}

type decodeError struct{ err error }

func (e decodeError) Error() string { return "apiclient: decode: " + e.err.Error() }
func (e decodeError) Unwrap() error { return e.err }

func isDecodeError(err error) bool {
	var d decodeError
	return errors.As(err, &d)
}

func (c *Client) fetch(ctx context.Context, path string, dest any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Path: path, Status: resp.StatusCode}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return decodeError{err: err}
	}
	if !env.Success {
		if env.Message != "" {
			return fmt.Errorf("%s: %w: %s", path, ErrUnsuccessful, env.Message)
		}
		return fmt.Errorf("%s: %w", path, ErrUnsuccessful)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return decodeError{err: err}
	}
	return nil
}
