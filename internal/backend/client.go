package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/fleet-loads/internal/models"
	"github.com/example/fleet-loads/internal/observability"
)

// ErrMalformed wraps any response body that could not be decoded.
var ErrMalformed = errors.New("malformed backend response")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: backend returned %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.Status, e.Body)
}

// Client talks to the loads backend over HTTP.
type Client struct {
	Endpoint string
	Client   *http.Client
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		Endpoint: strings.TrimRight(endpoint, "/"),
		Client:   &http.Client{Timeout: timeout},
	}
}

// ListLoads fetches GET /loads. Every decoded load is validated so the store
// never holds an unknown status or a negative amount.
func (c *Client) ListLoads(ctx context.Context) (loads []models.Load, err error) {
	defer observe("list", time.Now(), &err)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint+"/loads", http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list loads: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus("list loads", resp); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&loads); err != nil {
		return nil, fmt.Errorf("list loads: %w: %v", ErrMalformed, err)
	}
	// the body must be exactly one array
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("list loads: %w: trailing data after array", ErrMalformed)
	}
	if loads == nil {
		return nil, fmt.Errorf("list loads: %w: null body", ErrMalformed)
	}
	for _, l := range loads {
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("list loads: %w: %v", ErrMalformed, err)
		}
	}
	return loads, nil
}

// AcceptLoad posts POST /loads/{id}/accept?vehicle_id=... The body is not
// used beyond checking that, when present, it is JSON.
func (c *Client) AcceptLoad(ctx context.Context, loadID, vehicleID string) (err error) {
	defer observe("accept", time.Now(), &err)

	u := fmt.Sprintf("%s/loads/%s/accept?%s", c.Endpoint, url.PathEscape(loadID), url.Values{"vehicle_id": {vehicleID}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("accept load %s: %w", loadID, err)
	}
	defer resp.Body.Close()
	if err := checkStatus("accept load", resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("accept load %s: %w: %v", loadID, ErrMalformed, err)
	}
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && !json.Valid(trimmed) {
		return fmt.Errorf("accept load %s: %w", loadID, ErrMalformed)
	}
	return nil
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}

func observe(op string, start time.Time, err *error) {
	result := "ok"
	if *err != nil {
		result = "error"
	}
	observability.BackendRequestDuration.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
}
