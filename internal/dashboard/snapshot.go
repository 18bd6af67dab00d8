package dashboard

import (
	"github.com/Ilia01/b4dash/internal/config"
)

// Snapshot is the whole dashboard.json document. Each fetch replaces it.
type Snapshot struct {
	Updated        string             `json:"updated"`
	Project        config.ProjectInfo `json:"project"`
	Milestones     []config.Milestone `json:"milestones"`
	Priorities     []config.Priority  `json:"priorities"`
	Bugs           []IssueRecord      `json:"bugs"`
	Tickets        []IssueRecord      `json:"tickets"`
	Releases       Releases           `json:"releases"`
	Sprint         *SprintRecord      `json:"sprint"`
	SprintPlanning PlanningPage       `json:"sprint_planning"`
	Velocity       Velocity           `json:"velocity"`
	Metrics        Metrics            `json:"metrics"`
	Links          map[string]string  `json:"links"`
}

type Metrics struct {
	TotalBugs    int            `json:"total_bugs"`
	TotalTickets int            `json:"total_tickets"`
	BugStatus    map[string]int `json:"bug_status"`
	TicketStatus map[string]int `json:"ticket_status"`
}

type SprintRecord struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	State     string `json:"state"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Goal      string `json:"goal"`
	URL       string `json:"url"`
}

func NewMetrics(bugs, tickets []IssueRecord) Metrics {
	return Metrics{
		TotalBugs:    len(bugs),
		TotalTickets: len(tickets),
		BugStatus:    Tally(bugs),
		TicketStatus: Tally(tickets),
	}
}
