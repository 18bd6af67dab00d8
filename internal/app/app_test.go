package app

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Ilia01/b4dash/internal/config"
	"github.com/Ilia01/b4dash/internal/dashboard"
	"github.com/Ilia01/b4dash/internal/models"
	"github.com/Ilia01/b4dash/internal/utils"
)

func init() {
	utils.DisableColor()
}

func TestFetchCommandInvokesHandler(t *testing.T) {
	resetFlags()
	called := false
	restore := swapFetchHandler(func(ctx context.Context, opts fetchOptions) error {
		called = true
		if opts.Output != "out/dash.json" {
			t.Fatalf("unexpected output: %s", opts.Output)
		}
		if ctx == nil {
			t.Fatalf("missing context")
		}
		return nil
	})
	defer restore()

	if _, err := executeCLI("fetch", "--output", "out/dash.json"); err != nil {
		t.Fatalf("fetch command failed: %v", err)
	}
	if !called {
		t.Fatalf("handler not called")
	}
}

func TestServeCommandFlags(t *testing.T) {
	resetFlags()
	restore := swapServeHandler(func(_ context.Context, opts serveOptions) error {
		if opts.Dir != "site" || opts.Port != 9000 || !opts.Open {
			t.Fatalf("flags not passed correctly: %+v", opts)
		}
		return nil
	})
	defer restore()

	if _, err := executeCLI("serve", "--dir", "site", "--port", "9000", "--open"); err != nil {
		t.Fatalf("serve command failed: %v", err)
	}
}

func TestScheduleCommandFlags(t *testing.T) {
	resetFlags()
	restore := swapScheduleHandler(func(_ context.Context, opts scheduleOptions) error {
		if opts.Cron != "*/15 * * * *" || !opts.Serve || !opts.Now {
			t.Fatalf("flags not passed correctly: %+v", opts)
		}
		return nil
	})
	defer restore()

	if _, err := executeCLI("schedule", "--cron", "*/15 * * * *", "--serve", "--now"); err != nil {
		t.Fatalf("schedule command failed: %v", err)
	}
}

func TestRejectsUnknownLogFormat(t *testing.T) {
	resetFlags()
	restore := swapFetchHandler(func(context.Context, fetchOptions) error {
		t.Fatalf("handler should not run")
		return nil
	})
	defer restore()

	if _, err := executeCLI("--log-format", "xml", "fetch"); err == nil {
		t.Fatalf("expected log format error")
	}
}

func TestConfigPathCommand(t *testing.T) {
	resetFlags()

	out, err := executeCLI("--credentials", "/tmp/creds.json", "--settings", "/tmp/dash.toml", "config", "path")
	if err != nil {
		t.Fatalf("config path failed: %v", err)
	}
	if !strings.Contains(out, "credentials: /tmp/creds.json") || !strings.Contains(out, "settings: /tmp/dash.toml") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestConfigInitWritesDefaults(t *testing.T) {
	resetFlags()
	path := filepath.Join(t.TempDir(), "settings.toml")

	if _, err := executeCLI("--settings", path, "config", "init"); err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	settings, err := config.LoadSettings(path)
	if err != nil {
		t.Fatalf("load written settings: %v", err)
	}
	if settings.Port != 8081 || settings.Jira.BoardID != 268 {
		t.Fatalf("unexpected settings: %+v", settings)
	}

	if _, err := executeCLI("--settings", path, "config", "init"); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	resetFlags()
	if _, err := executeCLI("--settings", path, "config", "init", "--force"); err != nil {
		t.Fatalf("forced init failed: %v", err)
	}
}

func TestFetchWithoutCredentialsExitsCleanly(t *testing.T) {
	resetFlags()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	credsPath := writeCredentials(t, dir, "", "")
	output := filepath.Join(dir, "data", "dashboard.json")
	restore := swapClientFactories(&fakeTracker{}, &fakeWiki{})
	defer restore()

	_, err := executeCLI("--credentials", credsPath, "--settings", filepath.Join(dir, "none.toml"), "fetch", "--output", output)
	if err == nil {
		t.Fatalf("expected explicit missing settings file to fail")
	}

	resetFlags()
	out, err := executeCLI("--credentials", credsPath, "fetch", "--output", output)
	if err != nil {
		t.Fatalf("fetch should not fail on empty credentials: %v", err)
	}
	if !strings.Contains(out, "Could not load credentials from "+credsPath) {
		t.Fatalf("missing credentials message: %s", out)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Fatalf("no snapshot expected, stat err: %v", err)
	}
}

func TestFetchMissingCredentialFileFails(t *testing.T) {
	resetFlags()
	t.Setenv("HOME", t.TempDir())

	_, err := executeCLI("--credentials", filepath.Join(t.TempDir(), "missing.json"), "fetch")
	if err == nil {
		t.Fatalf("expected error for missing credentials file")
	}
}

func TestFetchThenShow(t *testing.T) {
	resetFlags()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	credsPath := writeCredentials(t, dir, "dev@example.com", "secret-token")
	output := filepath.Join(dir, "data", "dashboard.json")

	tracker := &fakeTracker{
		issues: []models.JiraIssue{
			{Key: "BR-1", Fields: models.IssueFields{Summary: "B4 reboot loop", Status: &models.NamedField{Name: "Open"}}},
			{Key: "BR-2", Fields: models.IssueFields{Summary: "B4 LED stuck", Status: &models.NamedField{Name: "Open"}}},
		},
		versions: []models.JiraVersion{{ID: "1", Name: "B4 2.1.0", Released: true, ReleaseDate: "2025-11-30"}},
	}
	restore := swapClientFactories(tracker, &fakeWiki{})
	defer restore()

	out, err := executeCLI("--credentials", credsPath, "fetch", "--output", output)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !strings.Contains(out, "Data saved to: "+output) || !strings.Contains(out, "Total bugs: 2") {
		t.Fatalf("unexpected fetch output: %s", out)
	}
	if tracker.creds.Username != "dev@example.com" || tracker.timeout != 30*time.Second {
		t.Fatalf("client built with wrong inputs: %+v %s", tracker.creds, tracker.timeout)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var snapshot dashboard.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		t.Fatalf("parse snapshot: %v", err)
	}
	if snapshot.Metrics.TotalBugs != 2 || snapshot.Metrics.BugStatus["Open"] != 2 {
		t.Fatalf("unexpected metrics: %+v", snapshot.Metrics)
	}

	settingsPath := filepath.Join(dir, "settings.toml")
	settings := config.DefaultSettings()
	settings.Output = output
	if err := settings.Save(settingsPath); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	resetFlags()
	out, err = executeCLI("--settings", settingsPath, "show")
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	for _, want := range []string{"Beam4K (B4)", "Bug status", "Open", "B4 2.1.0"} {
		if !strings.Contains(out, want) {
			t.Fatalf("show output missing %q: %s", want, out)
		}
	}
}

func TestScheduleFetchesNowUntilCancelled(t *testing.T) {
	resetFlags()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	credentialsFile = writeCredentials(t, dir, "dev@example.com", "secret-token")

	settings := config.DefaultSettings()
	settings.Output = filepath.Join(dir, "data", "dashboard.json")
	settings.Cron = "0 0 1 1 *"
	settingsFile = filepath.Join(dir, "settings.toml")
	if err := settings.Save(settingsFile); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	restore := swapClientFactories(&fakeTracker{}, &fakeWiki{})
	defer restore()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := handleSchedule(ctx, scheduleOptions{Now: true}); err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	if _, err := os.Stat(settings.Output); err != nil {
		t.Fatalf("expected snapshot from the immediate fetch: %v", err)
	}
	if !strings.Contains(out.String(), "Next fetch at") || !strings.Contains(out.String(), "(0 0 1 1 *)") {
		t.Fatalf("unexpected schedule output: %s", out.String())
	}
}

func TestShowWithoutSnapshot(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	settings := config.DefaultSettings()
	settings.Output = filepath.Join(dir, "missing.json")
	settingsPath := filepath.Join(dir, "settings.toml")
	if err := settings.Save(settingsPath); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	_, err := executeCLI("--settings", settingsPath, "show")
	if err == nil || !strings.Contains(err.Error(), "b4dash fetch") {
		t.Fatalf("expected hint to fetch, got %v", err)
	}
}

func TestTallyRowsOrder(t *testing.T) {
	rows := tallyRows(map[string]int{"Open": 3, "Done": 1, "Blocked": 3})

	got := make([]string, len(rows))
	for i, r := range rows {
		got[i] = r[0]
	}
	if strings.Join(got, ",") != "Blocked,Open,Done" {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestScheduleTimeoutCoversVelocityQueries(t *testing.T) {
	settings := config.DefaultSettings()
	if got := scheduleTimeout(settings); got < 30*time.Second*40 {
		t.Fatalf("timeout too small: %s", got)
	}
	settings.HTTPTimeout = config.Duration{}
	if got := scheduleTimeout(settings); got <= 0 {
		t.Fatalf("expected default timeout, got %s", got)
	}
}

func executeCLI(args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(bytes.NewBuffer(nil))
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags() {
	verbose = false
	logLevel = "info"
	logFormat = "console"
	settingsFile = ""
	credentialsFile = ""
	projectPath = config.DefaultProjectPath
	fetchOpts = fetchOptions{}
	serveOpts = serveOptions{}
	scheduleOpts = scheduleOptions{}
	configInitForce = false
}

func writeCredentials(t *testing.T, dir, username, token string) string {
	t.Helper()
	env := map[string]string{}
	if username != "" {
		env["JIRA_USERNAME"] = username
	}
	if token != "" {
		env["JIRA_API_TOKEN"] = token
	}
	doc := map[string]any{
		"projects": map[string]any{
			config.DefaultProjectPath: map[string]any{
				"mcpServers": map[string]any{
					"atlassian": map[string]any{"env": env},
				},
			},
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal credentials: %v", err)
	}
	path := filepath.Join(dir, "claude.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}
	return path
}

type fakeTracker struct {
	issues   []models.JiraIssue
	versions []models.JiraVersion

	creds   config.Credentials
	timeout time.Duration
}

func (f *fakeTracker) SearchIssues(_ context.Context, jql string, _ int) ([]models.JiraIssue, error) {
	if strings.HasPrefix(jql, "project = BR") {
		return f.issues, nil
	}
	return nil, nil
}

func (f *fakeTracker) CountIssues(context.Context, string) (int, error) { return 1, nil }

func (f *fakeTracker) ProjectVersions(context.Context, string) ([]models.JiraVersion, error) {
	return f.versions, nil
}

func (f *fakeTracker) ActiveSprints(context.Context, int) ([]models.JiraSprint, error) {
	return nil, nil
}

type fakeWiki struct{}

func (fakeWiki) SearchContent(context.Context, string, int) ([]models.WikiPage, error) {
	return nil, nil
}

func swapFetchHandler(fn func(context.Context, fetchOptions) error) func() {
	orig := fetchHandler
	fetchHandler = fn
	return func() { fetchHandler = orig }
}

func swapServeHandler(fn func(context.Context, serveOptions) error) func() {
	orig := serveHandler
	serveHandler = fn
	return func() { serveHandler = orig }
}

func swapScheduleHandler(fn func(context.Context, scheduleOptions) error) func() {
	orig := scheduleHandler
	scheduleHandler = fn
	return func() { scheduleHandler = orig }
}

func swapClientFactories(tracker *fakeTracker, w dashboard.Wiki) func() {
	origTracker, origWiki := trackerFactory, wikiFactory
	trackerFactory = func(_ string, creds config.Credentials, timeout time.Duration) dashboard.Tracker {
		tracker.creds = creds
		tracker.timeout = timeout
		return tracker
	}
	wikiFactory = func(string, config.Credentials, time.Duration) dashboard.Wiki {
		return w
	}
	return func() {
		trackerFactory = origTracker
		wikiFactory = origWiki
	}
}
