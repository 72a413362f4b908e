package commands

import (
	"errors"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/remoterecord/internal/cli/ui"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "remoterecord",
		Short: "Bind local records to remote resources and reconcile them",
		Long: color.CyanString(`remoterecord - remote resource bindings

Handlers declared in remoterecord.yml describe where remote records live.
Local records hold only a remote id; attributes are fetched on demand,
and whole collections are reconciled against the remote side in one call.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to the project file (default ./remoterecord.yml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(newInitCommand(opts))
	rootCmd.AddCommand(newHandlersCommand(opts))
	rootCmd.AddCommand(newFetchCommand(opts))
	rootCmd.AddCommand(newSyncCommand(opts))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			fields := ui.NewFields(cmd.OutOrStdout(), color.NoColor)
			fields.Add("remoterecord version", Version)
			fields.Add("Git commit", GitCommit)
			fields.Add("Build date", BuildDate)
			fields.Add("Go version", goVer)
			fields.Render()
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		problem := ui.Problem{Title: err.Error()}
		var pe *problemError
		if errors.As(err, &pe) {
			problem = pe.problem
		}
		problem.Render(rootCmd.ErrOrStderr(), color.NoColor)
		return err
	}
	return nil
}
