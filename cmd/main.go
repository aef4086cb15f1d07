package main

import (
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ecoforum/pkg/config"
	"ecoforum/pkg/logger"
)

type rootOptions struct {
	EnvFile  string
	LogLevel string

	cfg *config.Config
	log *zap.SugaredLogger
}

func init() {
	rand.Seed(time.Now().UnixNano())
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "ecoforum",
		Short:        "Sustainability community forum",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var paths []string
			if opts.EnvFile != "" {
				paths = append(paths, opts.EnvFile)
			}
			cfg, err := config.FromEnvironment(paths...)
			if err != nil {
				return err
			}
			if opts.LogLevel != "" {
				cfg.LogLevel = opts.LogLevel
			}
			opts.cfg = cfg
			opts.log = logger.Run(cfg.LogLevel)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "path to a .env file (default ./.env when present)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level, overrides LOG_LEVEL (debug|info|warn|error|fatal)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newSeedCommand(opts))

	return cmd
}
