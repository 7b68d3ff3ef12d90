// Package client talks to a running vigil server.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lazypower/vigil/internal/server"
)

const (
	EnvURL           = "VIGIL_URL"
	DefaultServerURL = "http://127.0.0.1:37877"
	httpTimeout      = 10 * time.Second
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("server: %s (%s, status %d)", e.Message, e.Kind, e.Status)
	}
	return fmt.Sprintf("server: %s (status %d)", e.Message, e.Status)
}

// Client talks to the vigil server.
type Client struct {
	http      *http.Client
	serverURL string
}

// New creates a client for url. An empty url falls back to VIGIL_URL, then
// to http://127.0.0.1:37877.
func New(url string) *Client {
	if url == "" {
		url = os.Getenv(EnvURL)
	}
	if url == "" {
		url = DefaultServerURL
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: strings.TrimRight(url, "/"),
	}
}

func (c *Client) URL() string { return c.serverURL }

// Healthy checks if the server is reachable.
func (c *Client) Healthy() bool {
	resp, err := c.http.Get(c.serverURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Client) Safe() (*server.SafeResponse, error) {
	var out server.SafeResponse
	if err := c.get("/api/safe", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) LastActive(id common.Address) (*server.LivenessResponse, error) {
	var out server.LivenessResponse
	if err := c.get("/api/liveness/"+id.Hex(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Refresh(req server.RefreshRequest) (*server.LivenessResponse, error) {
	var out server.LivenessResponse
	if err := c.post("/api/liveness/refresh", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ExecTransaction(req server.TransactionRequest) (*server.TransactionResponse, error) {
	var out server.TransactionResponse
	if err := c.post("/api/transactions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Guardian() (*server.GuardianResponse, error) {
	var out server.GuardianResponse
	if err := c.get("/api/guardian", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Threshold(n int) (int, error) {
	var out server.ThresholdResponse
	if err := c.get(fmt.Sprintf("/api/guardian/threshold/%d", n), &out); err != nil {
		return 0, err
	}
	return out.Threshold, nil
}

func (c *Client) Inactive() ([]common.Address, error) {
	var out server.OwnersResponse
	if err := c.get("/api/guardian/inactive", &out); err != nil {
		return nil, err
	}
	return out.Owners, nil
}

// Plan returns the predecessor hints for removing owners in order.
func (c *Client) Plan(owners []common.Address) ([]common.Address, error) {
	var out server.PlanResponse
	if err := c.post("/api/guardian/plan", server.PlanRequest{Owners: owners}, &out); err != nil {
		return nil, err
	}
	return out.PreviousOwners, nil
}

func (c *Client) Remove(prevOwners, owners []common.Address) (*server.RemoveResponse, error) {
	var out server.RemoveResponse
	if err := c.post("/api/guardian/remove", server.RemoveRequest{PreviousOwners: prevOwners, Owners: owners}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Events(limit int) (*server.EventsResponse, error) {
	var out server.EventsResponse
	if err := c.get(fmt.Sprintf("/api/events?limit=%d", limit), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(path string, out any) error {
	resp, err := c.http.Get(c.serverURL + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return decodeResponse(resp, "GET "+path, out)
}

func (c *Client) post(path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	resp, err := c.http.Post(c.serverURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	return decodeResponse(resp, "POST "+path, out)
}

func decodeResponse(resp *http.Response, what string, out any) error {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", what, err)
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var body server.ErrorResponse
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			apiErr.Kind, apiErr.Message = body.Kind, body.Error
		}
		return apiErr
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response %s: %w", what, err)
	}
	return nil
}
