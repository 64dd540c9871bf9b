package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tessro/tandem/internal/config"
	tandemerrors "github.com/tessro/tandem/internal/errors"
)

// ownsTerminal marks commands that draw on the whole terminal, so logs go
// to a file instead of stderr.
const ownsTerminal = "owns-terminal"

var (
	cfgFile string
	jsonOut bool
	verbose bool

	cfg      *config.Config
	closeLog func() error
)

var logger = zerolog.Nop()

var rootCmd = &cobra.Command{
	Use:   "tandem",
	Short: "A music player that keeps every device in one session",
	Long: `Tandem plays music on this device and keeps it in step with every other
device signed in to the same account: one device is prime and makes sound,
the rest follow along silently.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		return initLogger(cmd)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if closeLog != nil {
			return closeLog()
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.config/tandem/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initConfig() error {
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", tandemerrors.ErrInvalidConfig, err)
	}

	return nil
}

func initLogger(cmd *cobra.Command) error {
	_, owned := cmd.Annotations[ownsTerminal]
	l, closer, err := newLogger(cfg.Log, cfg.Data.Dir, verbose, owned, os.Stderr)
	if err != nil {
		return err
	}
	logger = l
	closeLog = closer
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, tandemerrors.Format(err))
		os.Exit(1)
	}
}
