package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// VelocityWeeks is the length of the trailing velocity window.
const VelocityWeeks = 8

const jqlDate = "2006-01-02"

// WeekRange is a half-open [Start, End) span of seven days.
type WeekRange struct {
	Start time.Time
	End   time.Time
}

func (w WeekRange) Label() string {
	year, week := w.Start.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// VelocityWindow returns weeks consecutive ranges ending with the range that
// contains now. Boundaries fall on now's weekday rather than on a fixed week
// start, so running on a different day of the week shifts every bucket.
func VelocityWindow(now time.Time, weeks int) []WeekRange {
	y, m, d := now.Date()
	end := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())

	window := make([]WeekRange, weeks)
	for i := weeks - 1; i >= 0; i-- {
		start := end.AddDate(0, 0, -7)
		window[i] = WeekRange{Start: start, End: end}
		end = start
	}
	return window
}

// VelocityQueries builds the JQL behind every velocity count.
type VelocityQueries struct {
	Label      string
	IssueTypes []string
	BugTypes   []string
	// Created counts skip items that have not been triaged yet.
	IssueCreatedExcluded []string
	BugCreatedExcluded   []string
	IssueBacklogExcluded []string
	BugBacklogExcluded   []string
}

func DefaultVelocityQueries(label string) VelocityQueries {
	return VelocityQueries{
		Label:                label,
		IssueTypes:           []string{"Story", "Task", "Sub-task"},
		BugTypes:             []string{"Bug"},
		IssueCreatedExcluded: []string{"Backlog", "To Triage"},
		BugCreatedExcluded:   []string{"Triage", "Rejected"},
		IssueBacklogExcluded: []string{"Backlog"},
		BugBacklogExcluded:   []string{"Rejected", "Duplicate"},
	}
}

func (q VelocityQueries) scope(types []string) string {
	return fmt.Sprintf("labels = %s AND issuetype in %s", quote(q.Label), jqlList(types))
}

func (q VelocityQueries) created(types, excluded []string, w WeekRange) string {
	jql := fmt.Sprintf("%s AND created >= %s AND created < %s",
		q.scope(types), quote(w.Start.Format(jqlDate)), quote(w.End.Format(jqlDate)))
	if len(excluded) > 0 {
		jql += " AND status not in " + jqlList(excluded)
	}
	return jql
}

func (q VelocityQueries) resolved(types []string, w WeekRange) string {
	return fmt.Sprintf("%s AND resolved >= %s AND resolved < %s",
		q.scope(types), quote(w.Start.Format(jqlDate)), quote(w.End.Format(jqlDate)))
}

// backlog counts items that existed and were still open at start.
func (q VelocityQueries) backlog(types, excluded []string, start time.Time) string {
	day := quote(start.Format(jqlDate))
	jql := fmt.Sprintf("%s AND created < %s AND (resolved is EMPTY OR resolved >= %s)", q.scope(types), day, day)
	if len(excluded) > 0 {
		jql += " AND status not in " + jqlList(excluded)
	}
	return jql
}

func (q VelocityQueries) IssuesCreated(w WeekRange) string {
	return q.created(q.IssueTypes, q.IssueCreatedExcluded, w)
}

func (q VelocityQueries) IssuesResolved(w WeekRange) string {
	return q.resolved(q.IssueTypes, w)
}

func (q VelocityQueries) BugsCreated(w WeekRange) string {
	return q.created(q.BugTypes, q.BugCreatedExcluded, w)
}

func (q VelocityQueries) BugsResolved(w WeekRange) string {
	return q.resolved(q.BugTypes, w)
}

func (q VelocityQueries) IssueBacklog(start time.Time) string {
	return q.backlog(q.IssueTypes, q.IssueBacklogExcluded, start)
}

func (q VelocityQueries) BugBacklog(start time.Time) string {
	return q.backlog(q.BugTypes, q.BugBacklogExcluded, start)
}

type VelocityWeek struct {
	Week           string `json:"week"`
	Start          string `json:"start"`
	End            string `json:"end"`
	IssuesCreated  int    `json:"issues_created"`
	IssuesResolved int    `json:"issues_resolved"`
	BugsCreated    int    `json:"bugs_created"`
	BugsResolved   int    `json:"bugs_resolved"`
}

type Velocity struct {
	Weeks               []VelocityWeek `json:"weeks"`
	InitialIssueBacklog int            `json:"initial_issue_backlog"`
	InitialBugBacklog   int            `json:"initial_bug_backlog"`
}

// Counter is the single tracker capability velocity needs.
type Counter interface {
	CountIssues(ctx context.Context, jql string) (int, error)
}

// ComputeVelocity issues every count query in sequence. A failed query counts
// as zero and is reported through onError.
func ComputeVelocity(ctx context.Context, counter Counter, q VelocityQueries, window []WeekRange, onError func(jql string, err error)) Velocity {
	count := func(jql string) int {
		n, err := counter.CountIssues(ctx, jql)
		if err != nil {
			if onError != nil {
				onError(jql, err)
			}
			return 0
		}
		return n
	}

	v := Velocity{Weeks: make([]VelocityWeek, 0, len(window))}
	for _, w := range window {
		v.Weeks = append(v.Weeks, VelocityWeek{
			Week:           w.Label(),
			Start:          w.Start.Format(jqlDate),
			End:            w.End.Format(jqlDate),
			IssuesCreated:  count(q.IssuesCreated(w)),
			IssuesResolved: count(q.IssuesResolved(w)),
			BugsCreated:    count(q.BugsCreated(w)),
			BugsResolved:   count(q.BugsResolved(w)),
		})
	}
	if len(window) > 0 {
		v.InitialIssueBacklog = count(q.IssueBacklog(window[0].Start))
		v.InitialBugBacklog = count(q.BugBacklog(window[0].Start))
	}
	return v
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func jqlList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = quote(v)
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}
