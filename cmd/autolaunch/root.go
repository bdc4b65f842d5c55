package main

import (
	"os"
	"strings"

	"github.com/jrsteele09/go-autolaunch/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// configPath overrides CONFIG_PATH when set.
var configPath string

var rootCmd = &cobra.Command{
	Use:   "autolaunch",
	Short: "Mount remote data files into an analysis session",
	Long: `autolaunch accepts a credential and a list of remote file references,
records them for the URL mount engine, mounts them under the session root and
picks an analysis notebook for the data. Expired credentials are refreshed
through the identity provider without remounting.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			return os.Setenv("CONFIG_PATH", configPath)
		}
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (overrides CONFIG_PATH)")
}

// setupLogging sets the global zerolog level and uses console output in DEV.
func setupLogging(c config.EnvConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.GetLogLevel()))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
