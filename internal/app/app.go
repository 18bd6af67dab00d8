package app

import (
	"context"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Ilia01/b4dash/internal/config"
	"github.com/Ilia01/b4dash/internal/logging"
)

var (
	rootCmd = &cobra.Command{
		Use:           "b4dash",
		Short:         "Beam4K project status dashboard",
		Long:          "b4dash pulls bugs, tickets, releases and velocity from Jira and Confluence into data/dashboard.json and serves the dashboard page.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logLevel
			if verbose {
				level = "debug"
			}
			l, err := logging.New(cmd.ErrOrStderr(), level, logFormat)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
	}

	verbose         bool
	logLevel        string
	logFormat       string
	settingsFile    string
	credentialsFile string
	projectPath     string

	logger = zerolog.Nop()

	fetchHandler      = handleFetch
	serveHandler      = handleServe
	scheduleHandler   = handleSchedule
	showHandler       = handleShow
	configShowHandler = handleConfigShow
	configPathHandler = handleConfigPath
	configInitHandler = handleConfigInit
)

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// output is where handlers print user-facing text.
func output() io.Writer {
	return rootCmd.OutOrStdout()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", logging.FormatConsole, "Log format (console, json)")
	flags.StringVar(&settingsFile, "settings", "", "Dashboard settings file (.toml, .yaml); defaults to ~/.b4dash/settings.toml")
	flags.StringVar(&credentialsFile, "credentials", "", "Credentials file; defaults to ~/.claude.json")
	flags.StringVar(&projectPath, "project-path", config.DefaultProjectPath, "Project entry holding the Atlassian credentials")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(configCmd)
}

var fetchOpts fetchOptions

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch Jira and Confluence data into the dashboard snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return fetchHandler(cmd.Context(), fetchOpts)
	},
}

var serveOpts serveOptions

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard directory over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveHandler(cmd.Context(), serveOpts)
	},
}

var scheduleOpts scheduleOptions

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Fetch on a cron schedule until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return scheduleHandler(cmd.Context(), scheduleOpts)
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Summarize the last fetched snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return showHandler()
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display resolved settings and masked credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowHandler()
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show credential and settings paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configPathHandler()
	},
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default settings file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitHandler(configInitForce)
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOpts.Output, "output", "o", "", "Snapshot path (overrides settings)")

	serveCmd.Flags().StringVar(&serveOpts.Dir, "dir", "", "Directory to serve (overrides settings)")
	serveCmd.Flags().IntVarP(&serveOpts.Port, "port", "p", 0, "Port to listen on (overrides settings)")
	serveCmd.Flags().BoolVar(&serveOpts.Open, "open", false, "Open the dashboard in a browser")

	scheduleCmd.Flags().StringVar(&scheduleOpts.Cron, "cron", "", "Cron spec (overrides settings)")
	scheduleCmd.Flags().BoolVar(&scheduleOpts.Serve, "serve", false, "Also serve the dashboard")
	scheduleCmd.Flags().BoolVar(&scheduleOpts.Now, "now", false, "Fetch once immediately before the first tick")
	scheduleCmd.Flags().StringVar(&scheduleOpts.Dir, "dir", "", "Directory to serve with --serve")
	scheduleCmd.Flags().IntVarP(&scheduleOpts.Port, "port", "p", 0, "Port to listen on with --serve")

	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing settings file")

	configCmd.AddCommand(configShowCmd, configPathCmd, configInitCmd)
}
