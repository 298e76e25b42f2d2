package launcher

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Readiness polling defaults.
const (
	DefaultStartupTimeout = 10 * time.Second
	DefaultPollInterval   = 200 * time.Millisecond
)

// WaitForServer polls url until it answers 200, the timeout elapses, or ctx
// is canceled. Connection errors during startup are expected and retried.
func WaitForServer(ctx context.Context, client *http.Client, url string, timeout, interval time.Duration) error {
	if client == nil {
		client = &http.Client{Timeout: time.Second}
	}
	if timeout <= 0 {
		timeout = DefaultStartupTimeout
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	deadline := time.Now().Add(timeout)
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("server at %s not ready within %s", url, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
