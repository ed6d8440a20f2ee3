package server

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const healthPoll = 100 * time.Millisecond

// WaitForHealthy polls baseURL/health until it answers 200 OK or ctx ends.
func WaitForHealthy(ctx context.Context, baseURL string) error {
	client := &http.Client{Timeout: time.Second}
	url := baseURL + "/health"

	ticker := time.NewTicker(healthPoll)
	defer ticker.Stop()

	for {
		if healthy(ctx, client, url) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("server at %s not healthy: %w", baseURL, ctx.Err())
		case <-ticker.C:
		}
	}
}

func healthy(ctx context.Context, client *http.Client, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
