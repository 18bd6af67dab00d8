package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from strings like "30s" or "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type MilestoneStatus string

const (
	MilestoneDone       MilestoneStatus = "done"
	MilestoneInProgress MilestoneStatus = "in_progress"
	MilestoneBlocked    MilestoneStatus = "blocked"
	MilestoneBacklog    MilestoneStatus = "backlog"
	MilestoneEmpty      MilestoneStatus = "empty"
)

func (s MilestoneStatus) Valid() bool {
	switch s {
	case MilestoneDone, MilestoneInProgress, MilestoneBlocked, MilestoneBacklog, MilestoneEmpty:
		return true
	}
	return false
}

type ProjectInfo struct {
	Name    string `toml:"name" yaml:"name" json:"name"`
	Phase   string `toml:"phase" yaml:"phase" json:"phase"`
	Blocker string `toml:"blocker" yaml:"blocker" json:"blocker"`
}

type Milestone struct {
	Name   string          `toml:"name" yaml:"name" json:"name"`
	Status MilestoneStatus `toml:"status" yaml:"status" json:"status"`
}

type Priority struct {
	Title  string `toml:"title" yaml:"title" json:"title"`
	Ticket string `toml:"ticket" yaml:"ticket" json:"ticket"`
}

type PlanningFallback struct {
	ID    string `toml:"id" yaml:"id"`
	Title string `toml:"title" yaml:"title"`
}

type JiraSettings struct {
	Site          string `toml:"site" yaml:"site"`
	BugProject    string `toml:"bug_project" yaml:"bug_project"`
	TicketProject string `toml:"ticket_project" yaml:"ticket_project"`
	// ReleaseProject owns the versions listed in the release tables.
	ReleaseProject string `toml:"release_project" yaml:"release_project"`
	BoardID        int    `toml:"board_id" yaml:"board_id"`
	ProductLabel   string `toml:"product_label" yaml:"product_label"`
}

type WikiSettings struct {
	Space            string           `toml:"space" yaml:"space"`
	PlanningTitle    string           `toml:"planning_title" yaml:"planning_title"`
	PlanningFallback PlanningFallback `toml:"planning_fallback" yaml:"planning_fallback"`
}

type Settings struct {
	Jira        JiraSettings      `toml:"jira" yaml:"jira"`
	Wiki        WikiSettings      `toml:"wiki" yaml:"wiki"`
	Output      string            `toml:"output" yaml:"output"`
	ServeDir    string            `toml:"serve_dir" yaml:"serve_dir"`
	Port        int               `toml:"port" yaml:"port"`
	Cron        string            `toml:"cron" yaml:"cron"`
	HTTPTimeout Duration          `toml:"http_timeout" yaml:"http_timeout"`
	Project     ProjectInfo       `toml:"project" yaml:"project"`
	Milestones  []Milestone       `toml:"milestones" yaml:"milestones"`
	Priorities  []Priority        `toml:"priorities" yaml:"priorities"`
	Links       map[string]string `toml:"links" yaml:"links"`
}

// DefaultSettings returns the built-in dashboard configuration. A settings file
// only overrides what it names.
func DefaultSettings() *Settings {
	return &Settings{
		Jira: JiraSettings{
			Site:           "https://getnexar.atlassian.net",
			BugProject:     "BR",
			TicketProject:  "FS",
			ReleaseProject: "FS",
			BoardID:        268,
			ProductLabel:   "B4",
		},
		Wiki: WikiSettings{
			Space:         "EMB",
			PlanningTitle: "Sprint Planning",
			PlanningFallback: PlanningFallback{
				ID:    "5143494660",
				Title: "B4 Sprint Planning WW51",
			},
		},
		Output:      filepath.Join("data", "dashboard.json"),
		ServeDir:    ".",
		Port:        8081,
		Cron:        "0 * * * *",
		HTTPTimeout: Duration{30 * time.Second},
		Project: ProjectInfo{
			Name:    "Beam4K (B4)",
			Phase:   "Field Test 3 / MVP Development",
			Blocker: "PVT sign-off waiting on Chicony samples",
		},
		Milestones: []Milestone{
			{Name: "DVT signoff", Status: MilestoneDone},
			{Name: "PVT 0.5", Status: MilestoneDone},
			{Name: "PVT 1.0", Status: MilestoneDone},
			{Name: "Initial FT", Status: MilestoneDone},
			{Name: "Field Test 2", Status: MilestoneDone},
			{Name: "Field Test 3", Status: MilestoneInProgress},
			{Name: "PVT sign-off", Status: MilestoneBlocked},
			{Name: "MVP", Status: MilestoneInProgress},
			{Name: "Full Product", Status: MilestoneBacklog},
		},
		Priorities: []Priority{
			{Title: "FT Readiness: OBD issue", Ticket: "TBD"},
			{Title: "FT Readiness: Support HWK (MCU)", Ticket: "FS-3051"},
			{Title: "MVP: Remote stream bugs", Ticket: "FS-3375"},
			{Title: "MVP: Encryption", Ticket: "FS-3283"},
			{Title: `MVP: HTTP Server "Teepee"`, Ticket: "FS-2677"},
		},
		Links: map[string]string{
			"release_plan":   "https://getnexar.atlassian.net/wiki/spaces/EMB/pages/4832722963",
			"br_bugs":        "https://getnexar.atlassian.net/jira/software/c/projects/BR/boards/287/backlog?issueParent=109691",
			"serial_numbers": "https://docs.google.com/spreadsheets/d/1ZAwoMznI-whqYJFvrwy9SrFTTNGQiMq62E_86qvR_sw/edit?gid=243956152#gid=243956152",
			"odm_export":     "https://drive.google.com/drive/folders/1lFlqGslitGcLlwvC3xXvD4WrOqcWQ6Fh",
			"slack_eng":      "https://app.slack.com/client/T02KEL8KX/C0824FCA2GM",
		},
	}
}

// LoadSettings overlays the settings file at path onto the defaults. An empty
// path means the default location, where a missing file is not an error.
func LoadSettings(path string) (*Settings, error) {
	settings := DefaultSettings()

	explicit := path != ""
	if !explicit {
		var err error
		if path, err = SettingsPath(); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return settings, nil
		}
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("parse settings %s: %w", path, err)
		}
	default:
		if _, err := toml.Decode(string(data), settings); err != nil {
			return nil, fmt.Errorf("parse settings %s: %w", path, err)
		}
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings %s: %w", path, err)
	}
	return settings, nil
}

func (s *Settings) Validate() error {
	var errs []error
	if strings.TrimSpace(s.Jira.Site) == "" {
		errs = append(errs, errors.New("jira.site is required"))
	}
	if s.Output == "" {
		errs = append(errs, errors.New("output is required"))
	}
	if s.Port <= 0 || s.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", s.Port))
	}
	for _, m := range s.Milestones {
		if !m.Status.Valid() {
			errs = append(errs, fmt.Errorf("milestone %q: unknown status %q", m.Name, m.Status))
		}
	}
	return errors.Join(errs...)
}

// SiteURL joins path onto the Atlassian site root.
func (s *Settings) SiteURL(path string) string {
	return strings.TrimRight(s.Jira.Site, "/") + path
}

// Save writes the settings as TOML to path, creating the parent directory.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
