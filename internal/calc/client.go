// Package calc talks to the propagation service and turns its responses into
// display readouts and map updates.
package calc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxResponseBytes bounds how much of a propagation response is read.
const maxResponseBytes = 16 << 20

// ServiceError is a validation or computation error reported by the
// propagation service. Its message is shown to the user verbatim.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// TransportError covers failures to reach the service or to understand its
// reply: connection errors, non-JSON bodies and malformed success payloads.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "request failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client posts element sets to the propagation service.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a client for the service at url. A zero timeout leaves
// requests bounded only by their context.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Calculate sends both element lines and decodes the reply. Service-reported
// errors are returned as *ServiceError, everything else as *TransportError.
func (c *Client) Calculate(ctx context.Context, line1, line2 string) (*Result, error) {
	body, err := json.Marshal(calculateRequest{Line1: line1, Line2: line2})
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("encoding request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("reading response body: %w", err)}
	}
	if len(data) > maxResponseBytes {
		return nil, &TransportError{Err: fmt.Errorf("response exceeds %d byte limit", maxResponseBytes)}
	}

	var decoded calculateResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("invalid response (status %d): %w", resp.StatusCode, err)}
	}

	if decoded.Error != "" {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: decoded.Error}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Err: fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, c.url)}
	}

	result, err := decoded.result()
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("malformed response: %w", err)}
	}
	return result, nil
}
