package dashboard

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ilia01/b4dash/internal/config"
	"github.com/Ilia01/b4dash/internal/models"
)

const (
	bugLimit          = 30
	ticketLimit       = 40
	planningPageLimit = 50
)

type Tracker interface {
	Counter
	SearchIssues(ctx context.Context, jql string, maxResults int) ([]models.JiraIssue, error)
	ProjectVersions(ctx context.Context, projectKey string) ([]models.JiraVersion, error)
	ActiveSprints(ctx context.Context, boardID int) ([]models.JiraSprint, error)
}

type Wiki interface {
	SearchContent(ctx context.Context, cql string, limit int) ([]models.WikiPage, error)
}

// Progress receives the human-readable lines printed during a run.
type Progress interface {
	Step(format string, args ...any)
	Detail(format string, args ...any)
}

type nopProgress struct{}

func (nopProgress) Step(string, ...any)   {}
func (nopProgress) Detail(string, ...any) {}

// Fetcher performs one sequential pass over every upstream call and
// assembles the snapshot. Upstream failures never abort a run: each failed
// call contributes an empty result.
type Fetcher struct {
	tracker  Tracker
	wiki     Wiki
	settings *config.Settings
	progress Progress
	log      zerolog.Logger
	now      func() time.Time
}

type Option func(*Fetcher)

func WithProgress(p Progress) Option {
	return func(f *Fetcher) { f.progress = p }
}

func WithLogger(log zerolog.Logger) Option {
	return func(f *Fetcher) { f.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

func NewFetcher(tracker Tracker, wiki Wiki, settings *config.Settings, opts ...Option) *Fetcher {
	f := &Fetcher{
		tracker:  tracker,
		wiki:     wiki,
		settings: settings,
		progress: nopProgress{},
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func BugsJQL(project string) string {
	return fmt.Sprintf(`project = %s AND (summary ~ "Beam4" OR summary ~ "B4") AND status not in (Done, Closed) ORDER BY created DESC`, project)
}

func TicketsJQL(project string) string {
	return fmt.Sprintf(`project = %s AND (summary ~ "B4" OR summary ~ "Beam4K") AND status not in (Done, Closed) ORDER BY priority ASC, updated DESC`, project)
}

func PlanningCQL(space, title string) string {
	return fmt.Sprintf(`space = %s AND type = page AND title ~ %s`, quote(space), quote(title))
}

func (f *Fetcher) Run(ctx context.Context) (*Snapshot, error) {
	s := f.settings
	now := f.now()

	f.progress.Step("Fetching %s bugs...", s.Jira.BugProject)
	bugs := NewIssueRecords(f.searchIssues(ctx, "bugs", BugsJQL(s.Jira.BugProject), bugLimit), bugSummaryLimit, f.browseURL)
	f.progress.Detail("Found %d bugs", len(bugs))

	f.progress.Step("Fetching %s tickets...", s.Jira.TicketProject)
	tickets := NewIssueRecords(f.searchIssues(ctx, "tickets", TicketsJQL(s.Jira.TicketProject), ticketLimit), ticketSummaryLimit, f.browseURL)
	f.progress.Detail("Found %d tickets", len(tickets))

	f.progress.Step("Fetching %s releases...", s.Jira.ReleaseProject)
	versions, err := f.tracker.ProjectVersions(ctx, s.Jira.ReleaseProject)
	f.soft("versions", err)
	releases := BuildReleases(versions, f.versionURL)
	f.progress.Detail("Found %d versions", len(versions))

	f.progress.Step("Fetching active sprint...")
	sprint := f.activeSprint(ctx)
	if sprint != nil {
		f.progress.Detail("Active sprint: %s", sprint.Name)
	} else {
		f.progress.Detail("No active sprint")
	}

	f.progress.Step("Resolving sprint planning page...")
	planning := f.planningPage(ctx)
	f.progress.Detail("Using %s", planning.Title)

	f.progress.Step("Computing %d-week velocity...", VelocityWeeks)
	velocity := ComputeVelocity(ctx, f.tracker, DefaultVelocityQueries(s.Jira.ProductLabel), VelocityWindow(now, VelocityWeeks), func(jql string, err error) {
		f.soft("count", err)
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Snapshot{
		Updated:        now.Format(time.RFC3339),
		Project:        s.Project,
		Milestones:     nonNil(s.Milestones),
		Priorities:     nonNil(s.Priorities),
		Bugs:           bugs,
		Tickets:        tickets,
		Releases:       releases,
		Sprint:         sprint,
		SprintPlanning: planning,
		Velocity:       velocity,
		Metrics:        NewMetrics(bugs, tickets),
		Links:          f.links(planning, sprint),
	}, nil
}

func (f *Fetcher) searchIssues(ctx context.Context, what, jql string, limit int) []models.JiraIssue {
	issues, err := f.tracker.SearchIssues(ctx, jql, limit)
	f.soft(what, err)
	return issues
}

func (f *Fetcher) activeSprint(ctx context.Context) *SprintRecord {
	sprints, err := f.tracker.ActiveSprints(ctx, f.settings.Jira.BoardID)
	f.soft("sprints", err)
	if len(sprints) == 0 {
		return nil
	}
	sp := sprints[0]
	return &SprintRecord{
		ID:        sp.ID,
		Name:      sp.Name,
		State:     sp.State,
		StartDate: datePart(sp.StartDate),
		EndDate:   datePart(sp.EndDate),
		Goal:      sp.Goal,
		URL:       f.sprintURL(sp.ID),
	}
}

func (f *Fetcher) planningPage(ctx context.Context) PlanningPage {
	w := f.settings.Wiki
	pages, err := f.wiki.SearchContent(ctx, PlanningCQL(w.Space, w.PlanningTitle), planningPageLimit)
	f.soft("planning pages", err)

	page, err := LatestPlanningPage(pages)
	if errors.Is(err, ErrNoPlanningPage) {
		week, _ := WorkWeek(w.PlanningFallback.Title)
		return PlanningPage{ID: w.PlanningFallback.ID, Title: w.PlanningFallback.Title, Week: week}
	}
	return page
}

func (f *Fetcher) links(planning PlanningPage, sprint *SprintRecord) map[string]string {
	links := maps.Clone(f.settings.Links)
	if links == nil {
		links = make(map[string]string)
	}
	links["jira_board"] = f.boardURL() + "/backlog"
	links["sprint_planning"] = f.settings.SiteURL(fmt.Sprintf("/wiki/spaces/%s/pages/%s", f.settings.Wiki.Space, planning.ID))
	if sprint != nil {
		links["active_sprint"] = sprint.URL
	}
	return links
}

func (f *Fetcher) browseURL(key string) string {
	return f.settings.SiteURL("/browse/" + key)
}

func (f *Fetcher) versionURL(id string) string {
	return f.settings.SiteURL(fmt.Sprintf("/projects/%s/versions/%s", f.settings.Jira.ReleaseProject, id))
}

func (f *Fetcher) boardURL() string {
	return f.settings.SiteURL(fmt.Sprintf("/jira/software/c/projects/%s/boards/%d", f.settings.Jira.TicketProject, f.settings.Jira.BoardID))
}

func (f *Fetcher) sprintURL(id int) string {
	return fmt.Sprintf("%s?sprint=%d", f.boardURL(), id)
}

func (f *Fetcher) soft(call string, err error) {
	if err == nil {
		return
	}
	f.log.Debug().Err(err).Str("call", call).Msg("upstream call failed, using empty result")
}

func datePart(ts string) string {
	if len(ts) < 10 {
		return ts
	}
	return ts[:10]
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return slices.Clone(s)
}
