// Package e2e drives a running kanban-api over HTTP. Its tests skip unless
// KANBAN_API_BASE points at a reachable instance.
package e2e

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
)

// Client wraps http.Client with helpers for JSON requests.
type Client struct {
	BaseURL string
	Bearer  string
	HTTP    *http.Client
}

func New(baseURL, bearer string) *Client {
	return &Client{BaseURL: baseURL, Bearer: bearer, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

func (c *Client) GetJSON(path string, out any) (*http.Response, error) {
	return c.Do(http.MethodGet, path, nil, out)
}

func (c *Client) PostJSON(path string, body, out any) (*http.Response, error) {
	return c.Do(http.MethodPost, path, body, out)
}

func (c *Client) PutJSON(path string, body, out any) (*http.Response, error) {
	return c.Do(http.MethodPut, path, body, out)
}

func (c *Client) Delete(path string, out any) (*http.Response, error) {
	return c.Do(http.MethodDelete, path, nil, out)
}

// Do sends body as JSON (when non-nil) and decodes the response into out
// (when non-nil). The response body is always consumed.
func (c *Client) Do(method, path string, body, out any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.BaseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.Bearer)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return resp, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, err
	}
	if out != nil && len(data) > 0 {
		if err := sonic.Unmarshal(data, out); err != nil {
			return resp, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp, nil
}
