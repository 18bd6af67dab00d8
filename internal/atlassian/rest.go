// Package atlassian holds the request path shared by the Jira and Confluence
// REST clients of one Atlassian site: basic auth, JSON accept, status check
// and decoding.
package atlassian

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Ilia01/b4dash/internal/config"
)

type Client struct {
	HTTP *http.Client

	baseURL   string
	creds     config.Credentials
	statusErr error
}

// NewClient returns a client whose non-200 responses wrap statusErr.
func NewClient(baseURL string, creds config.Credentials, timeout time.Duration, statusErr error) *Client {
	return &Client{
		HTTP:      &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(baseURL, "/"),
		creds:     creds,
		statusErr: statusErr,
	}
}

func (c *Client) URL(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// GetJSON issues one authenticated GET and decodes a 200 body into v.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(path, query), nil)
	if err != nil {
		return err
	}
	c.applyAuth(req)
	return c.doJSON(req, v)
}

func (c *Client) applyAuth(req *http.Request) {
	req.SetBasicAuth(c.creds.Username, c.creds.Token)
	req.Header.Set("Accept", "application/json")
}

func (c *Client) doJSON(req *http.Request, v any) error {
	return c.do(req, func(body []byte) error {
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(body, v); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
		return nil
	})
}

func (c *Client) do(req *http.Request, handler func([]byte) error) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response (%d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w (%d): %s", c.statusErr, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if handler != nil {
		return handler(data)
	}
	return nil
}
