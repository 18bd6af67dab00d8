package dashboard

import (
	"github.com/Ilia01/b4dash/internal/models"
)

const (
	bugSummaryLimit    = 60
	ticketSummaryLimit = 55
)

type IssueRecord struct {
	Key             string `json:"key"`
	Summary         string `json:"summary"`
	Status          string `json:"status"`
	Priority        string `json:"priority"`
	Assignee        string `json:"assignee"`
	Created         string `json:"created"`
	Updated         string `json:"updated"`
	AffectedVersion string `json:"affected_version,omitempty"`
	URL             string `json:"url"`
}

// NewIssueRecord flattens an upstream issue. It never fails: absent fields
// fall back to the defaults applied by models.IssueFields.
func NewIssueRecord(issue models.JiraIssue, summaryLimit int, browseURL func(key string) string) IssueRecord {
	fields := issue.Fields
	return IssueRecord{
		Key:             issue.Key,
		Summary:         truncate(fields.Summary, summaryLimit),
		Status:          fields.StatusName(),
		Priority:        fields.PriorityName(),
		Assignee:        fields.AssigneeName(),
		Created:         fields.CreatedDate(),
		Updated:         fields.UpdatedDate(),
		AffectedVersion: fields.AffectedVersion(),
		URL:             browseURL(issue.Key),
	}
}

func NewIssueRecords(issues []models.JiraIssue, summaryLimit int, browseURL func(key string) string) []IssueRecord {
	records := make([]IssueRecord, 0, len(issues))
	for _, issue := range issues {
		records = append(records, NewIssueRecord(issue, summaryLimit, browseURL))
	}
	return records
}

// Tally counts records per status name.
func Tally(records []IssueRecord) map[string]int {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.Status]++
	}
	return counts
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
