package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"project-tracker/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	v          *viper.Viper
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:          "tracker",
		Short:        "Project tracker status dashboard backend",
		Long:         "tracker serves read-only snapshots of agent activity and project progress for the status dashboard.",
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (yaml, toml or json)")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("sessions-source", config.SourceMock, "session source: mock, dir or http")
	flags.String("projects-file", "./public/projects.json", "project document path")

	bindFlag(opts.v, config.KeyLogLevel, flags.Lookup("log-level"))
	bindFlag(opts.v, config.KeySessionsSource, flags.Lookup("sessions-source"))
	bindFlag(opts.v, config.KeyProjectsFile, flags.Lookup("projects-file"))

	serveCmd := newServeCmd(opts)
	rootCmd.AddCommand(serveCmd, newSnapshotCmd(opts))

	// Running the bare binary serves.
	rootCmd.RunE = serveCmd.RunE
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())

	return rootCmd
}
