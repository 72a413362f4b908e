package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conduit-lang/remoterecord/internal/cli/config"
)

type initOptions struct {
	handler string
	baseURL string
	path    string
	dialect string
	dbURL   string
	yes     bool
	force   bool
}

func newInitCommand(opts *globalOptions) *cobra.Command {
	in := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a project file declaring one handler",
		Long: `Write remoterecord.yml with a database and one HTTP handler. Values not
given as flags are prompted for unless --yes is set.`,
		Example: `  remoterecord init
  remoterecord init --handler Todo --base-url https://jsonplaceholder.typicode.com --path todos --yes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, opts, in)
		},
	}

	cmd.Flags().StringVar(&in.handler, "handler", "", "Handler name")
	cmd.Flags().StringVar(&in.baseURL, "base-url", "", "Base URL of the remote API")
	cmd.Flags().StringVar(&in.path, "path", "", "Collection path under the base URL")
	cmd.Flags().StringVar(&in.dialect, "dialect", "sqlite", "Database dialect (sqlite or postgres)")
	cmd.Flags().StringVar(&in.dbURL, "database-url", "", "Database URL (default remoterecord.db for sqlite)")
	cmd.Flags().BoolVarP(&in.yes, "yes", "y", false, "Do not prompt; fail when a value is missing")
	cmd.Flags().BoolVar(&in.force, "force", false, "Overwrite an existing project file")

	return cmd
}

func runInit(cmd *cobra.Command, opts *globalOptions, in *initOptions) error {
	target := opts.configPath
	if target == "" {
		target = config.FileName + ".yml"
	}
	if _, err := os.Stat(target); err == nil && !in.force {
		return fmt.Errorf("%s already exists; use --force to overwrite", target)
	}

	if !in.yes {
		if err := promptInit(in); err != nil {
			return err
		}
	}
	if in.handler == "" || in.baseURL == "" || in.path == "" {
		return errors.New("--handler, --base-url and --path are required with --yes")
	}
	if in.dbURL == "" {
		if in.dialect != "sqlite" {
			return fmt.Errorf("--database-url is required for %s", in.dialect)
		}
		in.dbURL = "remoterecord.db"
	}

	v := viper.New()
	v.Set("database.dialect", in.dialect)
	v.Set("database.url", in.dbURL)
	key := "handlers." + strings.ToLower(in.handler)
	v.Set(key+".base_url", strings.TrimRight(in.baseURL, "/"))
	v.Set(key+".path", strings.Trim(in.path, "/"))

	if err := v.WriteConfigAs(target); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}

	// Load validates what was just written.
	if _, err := config.Load(target); err != nil {
		return err
	}

	success := color.New(color.FgGreen, color.Bold)
	if opts.noColor {
		success.DisableColor()
	}
	success.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", target)
	fmt.Fprintf(cmd.OutOrStdout(), "  remoterecord sync %s\n", in.handler)
	return nil
}

func promptInit(in *initOptions) error {
	var questions []*survey.Question
	if in.handler == "" {
		questions = append(questions, &survey.Question{
			Name:     "handler",
			Prompt:   &survey.Input{Message: "Handler name:", Help: "Reference types named <Handler>Reference bind to it"},
			Validate: survey.Required,
		})
	}
	if in.baseURL == "" {
		questions = append(questions, &survey.Question{
			Name:     "baseURL",
			Prompt:   &survey.Input{Message: "API base URL:"},
			Validate: survey.Required,
		})
	}
	if in.path == "" {
		questions = append(questions, &survey.Question{
			Name:     "path",
			Prompt:   &survey.Input{Message: "Collection path:"},
			Validate: survey.Required,
		})
	}
	if len(questions) == 0 {
		return nil
	}

	answers := struct {
		Handler string `survey:"handler"`
		BaseURL string `survey:"baseURL"`
		Path    string `survey:"path"`
	}{in.handler, in.baseURL, in.path}
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	in.handler, in.baseURL, in.path = answers.Handler, answers.BaseURL, answers.Path
	return nil
}
