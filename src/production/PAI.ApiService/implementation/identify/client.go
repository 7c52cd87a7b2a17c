package identify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Prompt is sent with every identification request
const Prompt = `Identify the plant in this image. Describe the visible features you used, ` +
	`give the scientific and common names with your confidence level, and mention similar species if unsure. ` +
	`Then give care instructions: light, watering, soil, temperature and humidity, common issues, and toxicity warnings.`

// ErrNotConfigured is returned when no identification endpoint is set
var ErrNotConfigured = errors.New("plant identification is not configured")

// Request is the body posted to the identification endpoint
type Request struct {
	ImagePath string `json:"image_path"`
	Prompt    string `json:"prompt"`
}

// Response is what the identification endpoint returns
type Response struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Client forwards identification requests to an external model endpoint
type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Configured reports whether an endpoint was set
func (c *Client) Configured() bool {
	return c != nil && c.url != ""
}

// Identify asks the endpoint about the image at imagePath and returns its text
func (c *Client) Identify(ctx context.Context, imagePath, prompt string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if prompt == "" {
		prompt = Prompt
	}

	body, err := json.Marshal(Request{ImagePath: imagePath, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "plantai-api")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("identification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("identification endpoint returned status %d: %s", resp.StatusCode, string(msg))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("identification error: %s", out.Error)
	}
	return out.Text, nil
}
