// Package elements is the client side of the persistence service that stores
// named element sets.
package elements

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sudhakar086/nasa-python-sgp4/internal/metrics"
)

const maxResponseBytes = 4 << 20

// Record is a named element-set pair. IDs are assigned by the store.
type Record struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
}

// StoreError is a rejection reported by the persistence service.
type StoreError struct {
	StatusCode int
	Message    string
}

func (e *StoreError) Error() string {
	return e.Message
}

// Client performs list, save and delete against the persistence service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the collection at baseURL. Records are
// addressed as baseURL/{id}.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// List returns the stored records in store order.
func (c *Client) List(ctx context.Context) ([]Record, error) {
	var records []Record
	err := c.do(ctx, http.MethodGet, c.baseURL, nil, &records)
	record("list", err)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Save creates a record and returns it as the store assigned it.
func (c *Client) Save(ctx context.Context, name, line1, line2 string) (Record, error) {
	var rec Record
	err := c.do(ctx, http.MethodPost, c.baseURL, Record{Name: name, Line1: line1, Line2: line2}, &rec)
	record("save", err)
	return rec, err
}

// Delete removes the record with the given id.
func (c *Client) Delete(ctx context.Context, id int) error {
	err := c.do(ctx, http.MethodDelete, c.baseURL+"/"+strconv.Itoa(id), nil, nil)
	record("delete", err)
	return err
}

func (c *Client) do(ctx context.Context, method, url string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return fmt.Errorf("request failed: reading response body: %w", err)
	}
	if len(data) > maxResponseBytes {
		return fmt.Errorf("request failed: response from %s exceeds %d byte limit", url, maxResponseBytes)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return &StoreError{StatusCode: resp.StatusCode, Message: e.Error}
		}
		return fmt.Errorf("request failed: unexpected status code %d from %s", resp.StatusCode, url)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("request failed: invalid response: %w", err)
	}
	return nil
}

func record(op string, err error) {
	var storeErr *StoreError
	switch {
	case err == nil:
		metrics.RecordElementOp(op, "success")
	case errors.As(err, &storeErr):
		metrics.RecordElementOp(op, "rejected")
	default:
		metrics.RecordElementOp(op, "transport_error")
	}
}
