package dashboard

import (
	"errors"
	"regexp"
	"strconv"

	"github.com/Ilia01/b4dash/internal/models"
)

var ErrNoPlanningPage = errors.New("no sprint planning page found")

var workWeekPattern = regexp.MustCompile(`WW\s?(\d+)`)

type PlanningPage struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Week  int    `json:"week"`
}

// WorkWeek extracts the number following the "WW" marker in a page title.
func WorkWeek(title string) (int, bool) {
	m := workWeekPattern.FindStringSubmatch(title)
	if m == nil {
		return 0, false
	}
	week, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return week, true
}

// LatestPlanningPage picks the page with the highest work week. Titles without
// a week marker are ignored. When several pages share the highest week the
// first one seen wins; upstream ordering is not guaranteed, so neither is
// the choice between them.
func LatestPlanningPage(pages []models.WikiPage) (PlanningPage, error) {
	var (
		latest PlanningPage
		found  bool
	)
	for _, p := range pages {
		week, ok := WorkWeek(p.Title)
		if !ok {
			continue
		}
		if !found || week > latest.Week {
			latest = PlanningPage{ID: p.ID, Title: p.Title, Week: week}
			found = true
		}
	}
	if !found {
		return PlanningPage{}, ErrNoPlanningPage
	}
	return latest, nil
}
