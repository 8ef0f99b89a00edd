package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/antoniostano/tabula/internal/reliability"
)

const (
	httpRunnerAttempts    = 3
	httpRunnerBackoffBase = 250 * time.Millisecond
	httpRunnerBackoffCap  = 2 * time.Second
)

// HTTPRunner forwards queries to a backend HTTP endpoint.
type HTTPRunner struct {
	url    string
	client *http.Client
}

func NewHTTPRunner(url string) *HTTPRunner {
	return &HTTPRunner{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (r *HTTPRunner) Execute(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < httpRunnerAttempts; attempt++ {
		if attempt > 0 {
			wait := reliability.ExponentialBackoff(attempt-1, httpRunnerBackoffBase, httpRunnerBackoffCap)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}

		answer, retryable, err := r.once(ctx, payload)
		if err == nil {
			return answer, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
	}
	return "", lastErr
}

func (r *HTTPRunner) once(ctx context.Context, payload []byte) (answer string, retryable bool, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := r.client.Do(httpReq)
	if err != nil {
		return "", false, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return "", reliability.IsRetryableHTTPStatus(res.StatusCode),
			fmt.Errorf("backend http status %d: %s", res.StatusCode, string(body))
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", false, fmt.Errorf("read response: %w", err)
	}

	var obj struct {
		Answer string `json:"answer"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		// Plain-text backends are allowed; use the body as the answer.
		return strings.TrimSpace(string(body)), false, nil
	}
	if obj.Error != "" {
		return "", false, fmt.Errorf("backend error: %s", obj.Error)
	}
	return obj.Answer, false, nil
}
