package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Ilia01/b4dash/internal/atlassian"
	"github.com/Ilia01/b4dash/internal/config"
	"github.com/Ilia01/b4dash/internal/models"
)

// ErrUnexpectedStatus is returned for any non-200 response.
var ErrUnexpectedStatus = errors.New("jira: unexpected status")

// IssueFields is the field allowlist requested for dashboard issue records.
var IssueFields = []string{
	"summary", "status", "priority", "assignee", "created", "updated",
	"versions", "fixVersions", "labels",
}

// countLimit is the largest page the search endpoint serves when only ids are requested.
const countLimit = 5000

type Client struct {
	rest *atlassian.Client
}

func NewClient(baseURL string, creds config.Credentials, timeout time.Duration) *Client {
	return &Client{rest: atlassian.NewClient(baseURL, creds, timeout, ErrUnexpectedStatus)}
}

type searchResponse struct {
	Total  *int              `json:"total"`
	Issues []json.RawMessage `json:"issues"`
}

// decodeIssues maps each entry on its own. An entry that still cannot be
// decoded keeps its key with default fields; one without a readable key is
// dropped.
func decodeIssues(raw []json.RawMessage) []models.JiraIssue {
	issues := make([]models.JiraIssue, 0, len(raw))
	for _, entry := range raw {
		var issue models.JiraIssue
		if err := json.Unmarshal(entry, &issue); err != nil {
			var keyed struct {
				Key string `json:"key"`
			}
			if json.Unmarshal(entry, &keyed) != nil || keyed.Key == "" {
				continue
			}
			issue = models.JiraIssue{Key: keyed.Key}
		}
		issues = append(issues, issue)
	}
	return issues
}

// SearchIssues runs one JQL search and returns at most maxResults issues.
func (c *Client) SearchIssues(ctx context.Context, jql string, maxResults int) ([]models.JiraIssue, error) {
	query := url.Values{}
	query.Set("jql", jql)
	query.Set("maxResults", strconv.Itoa(maxResults))
	query.Set("fields", strings.Join(IssueFields, ","))

	var response searchResponse
	if err := c.rest.GetJSON(ctx, "/rest/api/3/search/jql", query, &response); err != nil {
		return nil, err
	}
	return decodeIssues(response.Issues), nil
}

// CountIssues returns how many issues match jql. The reported total is used
// when the endpoint provides one, otherwise the size of the returned page.
func (c *Client) CountIssues(ctx context.Context, jql string) (int, error) {
	query := url.Values{}
	query.Set("jql", jql)
	query.Set("maxResults", strconv.Itoa(countLimit))
	query.Set("fields", "id")

	var response searchResponse
	if err := c.rest.GetJSON(ctx, "/rest/api/3/search/jql", query, &response); err != nil {
		return 0, err
	}
	if response.Total != nil {
		return *response.Total, nil
	}
	return len(response.Issues), nil
}

func (c *Client) ProjectVersions(ctx context.Context, projectKey string) ([]models.JiraVersion, error) {
	path := fmt.Sprintf("/rest/api/3/project/%s/versions", url.PathEscape(projectKey))

	var versions []models.JiraVersion
	if err := c.rest.GetJSON(ctx, path, nil, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

func (c *Client) ActiveSprints(ctx context.Context, boardID int) ([]models.JiraSprint, error) {
	path := fmt.Sprintf("/rest/agile/1.0/board/%d/sprint", boardID)
	query := url.Values{}
	query.Set("state", "active")

	var response struct {
		Values []models.JiraSprint `json:"values"`
	}
	if err := c.rest.GetJSON(ctx, path, query, &response); err != nil {
		return nil, err
	}
	return response.Values, nil
}
