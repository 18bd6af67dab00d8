// Package wiki talks to the Confluence content REST API hosted on the same
// Atlassian site as the issue tracker.
package wiki

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/Ilia01/b4dash/internal/atlassian"
	"github.com/Ilia01/b4dash/internal/config"
	"github.com/Ilia01/b4dash/internal/models"
)

var ErrUnexpectedStatus = errors.New("wiki: unexpected status")

type Client struct {
	rest *atlassian.Client
}

func NewClient(baseURL string, creds config.Credentials, timeout time.Duration) *Client {
	return &Client{rest: atlassian.NewClient(baseURL, creds, timeout, ErrUnexpectedStatus)}
}

// SearchContent runs a CQL query against /wiki/rest/api/content/search.
func (c *Client) SearchContent(ctx context.Context, cql string, limit int) ([]models.WikiPage, error) {
	query := url.Values{}
	query.Set("cql", cql)
	query.Set("limit", strconv.Itoa(limit))

	var result struct {
		Results []models.WikiPage `json:"results"`
	}
	if err := c.rest.GetJSON(ctx, "/wiki/rest/api/content/search", query, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}
