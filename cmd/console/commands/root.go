package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/room4-2/OpenInterpret/config"
)

var (
	language string
	verbose  bool

	globalConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "console",
	Short: "OpenInterpret console",
	Long: `OpenInterpret console - live speech interpretation in the terminal.

Speak into the microphone and hear the translation on the speaker while
the transcript scrolls by. Without a target language the session only
transcribes.

Examples:
  # Interpret into French
  console run --language fr-FR

  # See which devices miniaudio picks up
  console devices`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		globalConfig = cfg
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(languagesCmd)
}

// getConfig returns the loaded configuration
func getConfig() *config.Config {
	return globalConfig
}
