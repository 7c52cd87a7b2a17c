package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
)

// ErrCircuitOpen is returned without calling the API while the breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// RejectedError is a 4xx answer from the API; the reading will never be accepted as sent
type RejectedError struct {
	StatusCode int
	Code       string   `json:"error"`
	Kind       string   `json:"kind"`
	Fields     []string `json:"fields"`
	Message    string   `json:"message"`
}

func (e *RejectedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API rejected reading (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API rejected reading (%d %s)", e.StatusCode, e.Code)
}

// SubmitReadingResponse is the API's answer to an accepted reading
type SubmitReadingResponse struct {
	Success      bool           `json:"success"`
	ResponseBody models.Readout `json:"response_body"`
}

// APIClient handles communication with the API Service
type APIClient struct {
	baseURL        string
	httpClient     *http.Client
	apiSecret      string
	circuitBreaker *CircuitBreaker
	maxRetries     int
	retryDelay     time.Duration
}

// NewAPIClient creates a new API client
func NewAPIClient(baseURL, apiSecret string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		apiSecret:      apiSecret,
		circuitBreaker: NewCircuitBreaker(5, 30*time.Second),
		maxRetries:     3,
		retryDelay:     1 * time.Second,
	}
}

// permanent marks an error that retrying cannot fix
type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// retryWithBackoff executes a function with exponential backoff retry logic
func (c *APIClient) retryWithBackoff(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if !c.circuitBreaker.canExecute() {
			return ErrCircuitOpen
		}

		err := operation()
		if err == nil {
			c.circuitBreaker.onSuccess()
			return nil
		}

		var perm permanent
		if errors.As(err, &perm) {
			// The API answered, so it is healthy
			c.circuitBreaker.onSuccess()
			return perm.err
		}

		lastErr = err
		c.circuitBreaker.onFailure()

		if attempt == c.maxRetries {
			break
		}

		delay := time.Duration(float64(c.retryDelay) * math.Pow(2, float64(attempt)))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// SubmitReading forwards one raw reading to /internal/sensor-data
func (c *APIClient) SubmitReading(ctx context.Context, deviceID string, payload map[string]any) (*models.Readout, error) {
	var result models.Readout

	err := c.retryWithBackoff(ctx, func() error {
		resp, err := c.makeRequest(ctx, http.MethodPost, "/internal/sensor-data", deviceID, payload)
		if err != nil {
			return fmt.Errorf("failed to submit reading: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			rejected := &RejectedError{StatusCode: resp.StatusCode}
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
			if err := json.Unmarshal(body, rejected); err != nil {
				rejected.Message = strings.TrimSpace(string(body))
			}
			return permanent{rejected}
		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}

		var response SubmitReadingResponse
		if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		if !response.Success {
			return fmt.Errorf("API did not accept the reading")
		}
		result = response.ResponseBody
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// makeRequest makes an HTTP request to the API Service
func (c *APIClient) makeRequest(ctx context.Context, method, path, deviceID string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, permanent{fmt.Errorf("failed to marshal request body: %w", err)}
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, permanent{fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Authorization", "Bearer "+c.apiSecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "plantai-ingestor")
	if deviceID != "" {
		req.Header.Set("X-Device-ID", deviceID)
	}

	return c.httpClient.Do(req)
}

// Health checks if the API Service is healthy
func (c *APIClient) Health(ctx context.Context) error {
	resp, err := c.makeRequest(ctx, http.MethodGet, "/health/live", "", nil)
	if err != nil {
		return fmt.Errorf("failed to check API health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API health check failed with status %d", resp.StatusCode)
	}
	return nil
}

// GetCircuitBreakerStatus returns the current circuit breaker status for monitoring
func (c *APIClient) GetCircuitBreakerStatus() map[string]interface{} {
	return c.circuitBreaker.Status()
}
