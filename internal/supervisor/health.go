package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// checkHealth reports the child as healthy if it's running and, when a
// health URL is configured, answers with 2xx.
func (s *Supervisor) checkHealth(ctx context.Context) (bool, error) {
	status := s.Status()
	if !status.Running {
		return false, nil
	}
	if s.healthURL == "" {
		return true, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, s.healthURL, nil)
	if err != nil {
		return false, fmt.Errorf("building health request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false, nil
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}
