package main

import (
	"os"
	"path/filepath"

	clay "github.com/go-go-golems/clay/pkg"
	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds/logging"
	"github.com/go-go-golems/glazed/pkg/help"
	help_cmd "github.com/go-go-golems/glazed/pkg/help/cmd"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const appName = "chatwidget"

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "chatwidget is a terminal chat widget with image, audio and dictation input",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.InitLoggerFromCobra(cmd); err != nil {
			return err
		}
		if cmd.Name() != "run" || !isatty.IsTerminal(os.Stdout.Fd()) {
			return nil
		}
		// the alternate screen owns stdout and stderr while the widget runs
		if logFile, _ := cmd.Flags().GetString("log-file"); logFile == "" {
			return logToFile(filepath.Join(os.TempDir(), appName+".log"))
		}
		return nil
	},
}

// logToFile redirects the global logger; the file stays open until exit.
func logToFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return errors.Wrapf(err, "open log file %q", path)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: f, NoColor: true})
	return nil
}

func parserOptions() []cli.CobraOption {
	return []cli.CobraOption{
		cli.WithParserConfig(cli.CobraParserConfig{AppName: appName}),
	}
}

func main() {
	_ = godotenv.Load()

	err := clay.InitGlazed(appName, rootCmd)
	cobra.CheckErr(err)

	helpSystem := help.NewHelpSystem()
	help_cmd.SetupCobraRootCommand(helpSystem, rootCmd)

	runCommand, err := NewRunCommand()
	cobra.CheckErr(err)
	cobraRunCmd, err := cli.BuildCobraCommand(runCommand, parserOptions()...)
	cobra.CheckErr(err)
	rootCmd.AddCommand(cobraRunCmd)

	settingsCmd, err := newSettingsCommand()
	cobra.CheckErr(err)
	rootCmd.AddCommand(settingsCmd)

	cobra.CheckErr(rootCmd.Execute())
}
