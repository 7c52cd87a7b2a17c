package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
)

// ErrNoData means the API has not accepted any reading yet
var ErrNoData = errors.New("no sensor data yet")

// Fetcher reads the latest readout from the API service
type Fetcher struct {
	baseURL    string
	httpClient *http.Client
}

func NewFetcher(baseURL string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (f *Fetcher) Latest(ctx context.Context) (*models.Readout, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/response-body", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNoData
	default:
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var readout models.Readout
	if err := json.NewDecoder(resp.Body).Decode(&readout); err != nil {
		return nil, fmt.Errorf("decode readout: %w", err)
	}
	return &readout, nil
}
