package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/blackjack/internal/domain/model"
)

// httpClient wraps http.Client with the replay timeout.
type httpClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(baseURL string, timeout time.Duration) *httpClient {
	return &httpClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

func (c *httpClient) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// postJSON posts body and returns the status code and response bytes.
func (c *httpClient) postJSON(ctx context.Context, path string, body any) (int, []byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, out, nil
}

// analyzeFrame submits a frame to POST /frames/analyze.
func (c *httpClient) analyzeFrame(ctx context.Context, f model.Frame) (model.FrameResult, error) { //nolint:gocritic // hugeParam: frames travel by value
	status, body, err := c.postJSON(ctx, "/frames/analyze", f)
	if err != nil {
		return model.FrameResult{}, err
	}
	if status != http.StatusOK {
		return model.FrameResult{}, fmt.Errorf("analyze frame %s: status %d: %s", f.ID, status, bytes.TrimSpace(body))
	}

	var res model.FrameResult
	if err := json.Unmarshal(body, &res); err != nil {
		return model.FrameResult{}, fmt.Errorf("decode result for frame %s: %w", f.ID, err)
	}
	return res, nil
}

// queueFrame submits a frame to POST /frames and reports whether it was a duplicate.
func (c *httpClient) queueFrame(ctx context.Context, f model.Frame) (bool, error) { //nolint:gocritic // hugeParam: frames travel by value
	status, body, err := c.postJSON(ctx, "/frames", f)
	if err != nil {
		return false, err
	}

	switch status {
	case http.StatusAccepted:
		return false, nil
	case http.StatusOK:
		var ack ackResponse
		if err := json.Unmarshal(body, &ack); err != nil {
			return true, nil
		}
		return ack.Duplicate, nil
	default:
		return false, fmt.Errorf("queue frame %s: status %d: %s", f.ID, status, bytes.TrimSpace(body))
	}
}
