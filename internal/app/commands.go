package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/Ilia01/b4dash/internal/config"
	"github.com/Ilia01/b4dash/internal/dashboard"
	"github.com/Ilia01/b4dash/internal/jira"
	"github.com/Ilia01/b4dash/internal/schedule"
	"github.com/Ilia01/b4dash/internal/server"
	"github.com/Ilia01/b4dash/internal/utils"
	"github.com/Ilia01/b4dash/internal/wiki"
)

type fetchOptions struct {
	Output string
}

type serveOptions struct {
	Dir  string
	Port int
	Open bool
}

type scheduleOptions struct {
	Cron  string
	Serve bool
	Now   bool
	Dir   string
	Port  int
}

var (
	trackerFactory = func(site string, creds config.Credentials, timeout time.Duration) dashboard.Tracker {
		return jira.NewClient(site, creds, timeout)
	}

	wikiFactory = func(site string, creds config.Credentials, timeout time.Duration) dashboard.Wiki {
		return wiki.NewClient(site, creds, timeout)
	}

	openURL = utils.OpenURL
)

func handleFetch(ctx context.Context, opts fetchOptions) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if opts.Output != "" {
		settings.Output = opts.Output
	}

	out := output()
	utils.Header(out, "B4 Dashboard Data Fetcher")

	creds, ok, err := loadCredentials(out)
	if err != nil || !ok {
		return err
	}

	_, err = runFetch(ctx, settings, creds, out)
	return err
}

// loadCredentials reports ok=false after telling the user when the file
// exists but lacks a username or token. That case is not an error.
func loadCredentials(out io.Writer) (config.Credentials, bool, error) {
	path, err := resolveCredentialsPath()
	if err != nil {
		return config.Credentials{}, false, err
	}

	creds, err := config.LoadCredentials(path, projectPath)
	if err != nil {
		return config.Credentials{}, false, err
	}
	if err := creds.Validate(); err != nil {
		utils.NewProgress(out).Warning("Error: Could not load credentials from %s", path)
		logger.Debug().Err(err).Str("path", path).Str("project", projectPath).Msg("credentials incomplete")
		return config.Credentials{}, false, nil
	}
	return creds, true, nil
}

func runFetch(ctx context.Context, settings *config.Settings, creds config.Credentials, out io.Writer) (*dashboard.Snapshot, error) {
	timeout := settings.HTTPTimeout.Duration
	progress := utils.NewProgress(out)

	fetcher := dashboard.NewFetcher(
		trackerFactory(settings.Jira.Site, creds, timeout),
		wikiFactory(settings.Jira.Site, creds, timeout),
		settings,
		dashboard.WithProgress(progress),
		dashboard.WithLogger(logger),
	)

	snapshot, err := fetcher.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	store := dashboard.NewStore(settings.Output)
	if err := store.Save(snapshot); err != nil {
		return nil, err
	}

	fmt.Fprintln(out)
	progress.Success("Data saved to: %s", store.Path())
	fmt.Fprintf(out, "Total bugs: %d\n", snapshot.Metrics.TotalBugs)
	fmt.Fprintf(out, "Total tickets: %d\n", snapshot.Metrics.TotalTickets)
	return snapshot, nil
}

func handleServe(ctx context.Context, opts serveOptions) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	applyServeOverrides(settings, opts.Dir, opts.Port)

	srv, addr, err := prepareServer(settings)
	if err != nil {
		return err
	}

	out := output()
	pageURL := fmt.Sprintf("http://localhost:%d", settings.Port)
	fmt.Fprintf(out, "Serving at %s\n", utils.Cyan(pageURL))
	fmt.Fprintf(out, "Directory: %s\n", utils.BrightWhite(settings.ServeDir))
	fmt.Fprintln(out, utils.Dim("Press Ctrl+C to stop"))

	if opts.Open {
		go func() {
			if err := openURL(pageURL); err != nil {
				logger.Warn().Err(err).Msg("could not open browser")
			}
		}()
	}

	return srv.Run(ctx, addr)
}

func applyServeOverrides(settings *config.Settings, dir string, port int) {
	if dir != "" {
		settings.ServeDir = dir
	}
	if port != 0 {
		settings.Port = port
	}
}

// prepareServer moves the process into the served directory, so relative
// snapshot paths written by a scheduled fetch land inside the served tree.
func prepareServer(settings *config.Settings) (*server.Server, string, error) {
	if settings.Port <= 0 || settings.Port > 65535 {
		return nil, "", fmt.Errorf("port %d out of range", settings.Port)
	}
	if settings.ServeDir != "" && settings.ServeDir != "." {
		if err := os.Chdir(settings.ServeDir); err != nil {
			return nil, "", fmt.Errorf("serve dir: %w", err)
		}
	}
	return server.New(".", logger), ":" + strconv.Itoa(settings.Port), nil
}

func handleSchedule(ctx context.Context, opts scheduleOptions) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if opts.Cron != "" {
		settings.Cron = opts.Cron
	}
	applyServeOverrides(settings, opts.Dir, opts.Port)

	out := output()
	creds, ok, err := loadCredentials(out)
	if err != nil || !ok {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	if opts.Serve {
		srv, addr, err := prepareServer(settings)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Serving at %s\n", utils.Cyan(fmt.Sprintf("http://localhost:%d", settings.Port)))
		go func() {
			serveErr <- srv.Run(ctx, addr)
			cancel()
		}()
	}

	fetch := func(ctx context.Context) error {
		_, err := runFetch(ctx, settings, creds, out)
		return err
	}

	runner := schedule.NewRunner(logger, schedule.WithTimeout(scheduleTimeout(settings)))
	if err := runner.Add(settings.Cron, "fetch", fetch); err != nil {
		return err
	}

	if opts.Now {
		if err := fetch(ctx); err != nil {
			logger.Error().Err(err).Msg("initial fetch failed")
		}
	}

	fmt.Fprintf(out, "Next fetch at %s (%s)\n", utils.BrightWhite(runner.Next().Format(time.RFC3339)), settings.Cron)
	runner.Run(ctx)

	if opts.Serve {
		return <-serveErr
	}
	return nil
}

// scheduleTimeout bounds one scheduled run: every velocity query may take up
// to the HTTP timeout, plus the handful of list calls.
func scheduleTimeout(settings *config.Settings) time.Duration {
	perCall := settings.HTTPTimeout.Duration
	if perCall <= 0 {
		return schedule.DefaultRunTimeout
	}
	return max(schedule.DefaultRunTimeout, perCall*time.Duration(dashboard.VelocityWeeks*4+8))
}

func handleShow() error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	snapshot, err := dashboard.NewStore(settings.Output).Load()
	if err != nil {
		if errors.Is(err, dashboard.ErrSnapshotNotFound) {
			return fmt.Errorf("%w; run `b4dash fetch` first", err)
		}
		return err
	}

	out := output()
	utils.Header(out, snapshot.Project.Name)
	fmt.Fprintf(out, "%s %s\n", utils.Bold("Phase:"), snapshot.Project.Phase)
	fmt.Fprintf(out, "%s %s\n", utils.Bold("Blocker:"), utils.Yellow(snapshot.Project.Blocker))
	fmt.Fprintf(out, "%s %s\n", utils.Bold("Updated:"), utils.Dim(snapshot.Updated))
	if snapshot.Sprint != nil {
		fmt.Fprintf(out, "%s %s (%s to %s)\n", utils.Bold("Sprint:"), snapshot.Sprint.Name, snapshot.Sprint.StartDate, snapshot.Sprint.EndDate)
	}
	fmt.Fprintf(out, "%s %s\n", utils.Bold("Planning:"), snapshot.SprintPlanning.Title)

	utils.Section(out, "Metrics")
	if err := utils.Table(out, []string{"", "Open"}, [][]string{
		{"Bugs", strconv.Itoa(snapshot.Metrics.TotalBugs)},
		{"Tickets", strconv.Itoa(snapshot.Metrics.TotalTickets)},
	}); err != nil {
		return err
	}

	utils.Section(out, "Bug status")
	if err := utils.Table(out, []string{"Status", "Count"}, tallyRows(snapshot.Metrics.BugStatus)); err != nil {
		return err
	}

	utils.Section(out, "Ticket status")
	if err := utils.Table(out, []string{"Status", "Count"}, tallyRows(snapshot.Metrics.TicketStatus)); err != nil {
		return err
	}

	var releases [][]string
	for _, r := range snapshot.Releases.Firmware {
		if r.Name == "" {
			continue
		}
		releases = append(releases, []string{r.Name, strconv.FormatBool(r.Released), r.ReleaseDate})
	}
	if len(releases) > 0 {
		utils.Section(out, "Firmware releases")
		if err := utils.Table(out, []string{"Name", "Released", "Date"}, releases); err != nil {
			return err
		}
	}
	return nil
}

// tallyRows orders a status tally by count, then name.
func tallyRows(counts map[string]int) [][]string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, strconv.Itoa(counts[k])})
	}
	return rows
}

func handleConfigShow() error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	credsPath, err := resolveCredentialsPath()
	if err != nil {
		return err
	}

	out := output()
	fmt.Fprintln(out, utils.Cyan(utils.Bold("Current Configuration")))
	fmt.Fprintln(out)

	fmt.Fprintln(out, utils.Bold("[credentials]"))
	fmt.Fprintf(out, "  %s %s\n", utils.Dim("file:"), utils.BrightWhite(credsPath))
	fmt.Fprintf(out, "  %s %s\n", utils.Dim("project:"), utils.BrightWhite(projectPath))
	creds, err := config.LoadCredentials(credsPath, projectPath)
	if err != nil {
		fmt.Fprintf(out, "  %s\n", utils.Yellow(err.Error()))
	} else {
		fmt.Fprintf(out, "  %s %s\n", utils.Dim("username:"), utils.BrightWhite(creds.Username))
		fmt.Fprintf(out, "  %s %s\n", utils.Dim("token:"), utils.Yellow(config.MaskToken(creds.Token)))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, utils.Bold("[jira]"))
	fmt.Fprintf(out, "  %s %s\n", utils.Dim("site:"), utils.BrightWhite(settings.Jira.Site))
	fmt.Fprintf(out, "  %s %s\n", utils.Dim("bug_project:"), utils.BrightWhite(settings.Jira.BugProject))
	fmt.Fprintf(out, "  %s %s\n", utils.Dim("ticket_project:"), utils.BrightWhite(settings.Jira.TicketProject))
	fmt.Fprintf(out, "  %s %s\n", utils.Dim("release_project:"), utils.BrightWhite(settings.Jira.ReleaseProject))
	fmt.Fprintf(out, "  %s %d\n", utils.Dim("board_id:"), settings.Jira.BoardID)

	fmt.Fprintln(out)
	fmt.Fprintln(out, utils.Bold("[wiki]"))
	fmt.Fprintf(out, "  %s %s\n", utils.Dim("space:"), utils.BrightWhite(settings.Wiki.Space))
	fmt.Fprintf(out, "  %s %s\n", utils.Dim("planning_title:"), utils.BrightWhite(settings.Wiki.PlanningTitle))

	fmt.Fprintln(out)
	fmt.Fprintln(out, utils.Bold("[dashboard]"))
	fmt.Fprintf(out, "  %s %s\n", utils.Dim("output:"), utils.BrightWhite(settings.Output))
	fmt.Fprintf(out, "  %s %s\n", utils.Dim("serve_dir:"), utils.BrightWhite(settings.ServeDir))
	fmt.Fprintf(out, "  %s %d\n", utils.Dim("port:"), settings.Port)
	fmt.Fprintf(out, "  %s %s\n", utils.Dim("cron:"), utils.BrightWhite(settings.Cron))
	fmt.Fprintf(out, "  %s %s\n", utils.Dim("http_timeout:"), settings.HTTPTimeout.Duration)
	return nil
}

func handleConfigPath() error {
	credsPath, err := resolveCredentialsPath()
	if err != nil {
		return err
	}
	settingsPath, err := resolveSettingsPath()
	if err != nil {
		return err
	}

	out := output()
	fmt.Fprintf(out, "credentials: %s\n", credsPath)
	fmt.Fprintf(out, "settings: %s\n", settingsPath)
	return nil
}

func handleConfigInit(force bool) error {
	path, err := resolveSettingsPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("settings file %s already exists (use --force to overwrite)", path)
	}

	if err := config.DefaultSettings().Save(path); err != nil {
		return err
	}

	fmt.Fprintln(output(), utils.Green(utils.Bold("Settings written!")))
	fmt.Fprintf(output(), "  Location: %s\n", utils.BrightWhite(path))
	return nil
}

func loadSettings() (*config.Settings, error) {
	return config.LoadSettings(settingsFile)
}

func resolveSettingsPath() (string, error) {
	if settingsFile != "" {
		return settingsFile, nil
	}
	return config.SettingsPath()
}

func resolveCredentialsPath() (string, error) {
	if credentialsFile != "" {
		return credentialsFile, nil
	}
	return config.CredentialsPath()
}
