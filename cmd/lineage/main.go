package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/lineage/internal/config"
)

func main() {
	// A missing .env file is fine; real environment variables still apply.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "lineage",
		Short:         "Build a historical registry of declared settings across revisions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "lineage.yaml", "Config file path")

	var (
		revs       revisionFlags
		outputPath string
		eventsPath string
		withGraph  bool
		jsonReport bool
	)

	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract every revision and write the registry JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd.Context(), configPath, revs, outputPath, eventsPath, withGraph, jsonReport)
		},
	}
	revs.register(extractCmd)
	extractCmd.Flags().StringVar(&outputPath, "output", "", "Output path (default from config)")
	extractCmd.Flags().StringVar(&eventsPath, "events", "", "Append run events as JSON lines to this path")
	extractCmd.Flags().BoolVar(&withGraph, "graph", false, "Also export the registry to the configured graph store")
	extractCmd.Flags().BoolVar(&jsonReport, "json", false, "Output the run report as JSON")

	var versionRevs revisionFlags
	versionsCmd := &cobra.Command{
		Use:   "versions",
		Short: "Print the resolved revisions, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersions(cmd.Context(), cmd.OutOrStdout(), configPath, versionRevs)
		},
	}
	versionRevs.register(versionsCmd)

	var (
		inputPath string
		kind      string
		fromRev   string
		toRev     string
		jsonDiff  bool
	)
	diffCmd := &cobra.Command{
		Use:   "diff",
		Short: "Show what changed in one registry between two revisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd.OutOrStdout(), inputPath, kind, fromRev, toRev, jsonDiff)
		},
	}
	diffCmd.Flags().StringVar(&inputPath, "input", "settings.json", "Registry JSON path")
	diffCmd.Flags().StringVar(&kind, "kind", "settings", "Source kind")
	diffCmd.Flags().StringVar(&fromRev, "from", "", "Older revision")
	diffCmd.Flags().StringVar(&toRev, "to", "", "Newer revision")
	diffCmd.Flags().BoolVar(&jsonDiff, "json", false, "Output the diff as JSON")
	_ = diffCmd.MarkFlagRequired("from")
	_ = diffCmd.MarkFlagRequired("to")

	var showInput string
	showCmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show the lifecycle and current state of a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.OutOrStdout(), showInput, args[0])
		},
	}
	showCmd.Flags().StringVar(&showInput, "input", "settings.json", "Registry JSON path")

	var (
		serveInput string
		addr       string
		healthAddr string
	)
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a registry JSON over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, serveInput, addr, healthAddr)
		},
	}
	serveCmd.Flags().StringVar(&serveInput, "input", "", "Registry JSON path (default from config)")
	serveCmd.Flags().StringVar(&addr, "addr", "", "API listen address (default from config)")
	serveCmd.Flags().StringVar(&healthAddr, "health-addr", "", "Health listen address (default from config)")

	var (
		submitRevs   revisionFlags
		submitOutput string
		submitGraph  bool
	)
	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Run the extraction as a Temporal workflow and wait for it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd.Context(), cmd.OutOrStdout(), configPath, submitRevs, submitOutput, submitGraph)
		},
	}
	submitRevs.register(submitCmd)
	submitCmd.Flags().StringVar(&submitOutput, "output", "", "Output path on the worker (default from config)")
	submitCmd.Flags().BoolVar(&submitGraph, "graph", false, "Also export the registry to the worker's graph store")

	rootCmd.AddCommand(extractCmd, versionsCmd, diffCmd, showCmd, serveCmd, submitCmd)
	return rootCmd
}

// revisionFlags overrides the configured revision sources.
type revisionFlags struct {
	explicit  []string
	file      string
	changelog string
	minors    int
	channel   string
}

func (f *revisionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.explicit, "revision", nil, "Revision to include (repeatable)")
	cmd.Flags().StringVar(&f.file, "versions-file", "", "File with one revision per line")
	cmd.Flags().StringVar(&f.changelog, "changelog", "", "Changelog to derive release revisions from")
	cmd.Flags().IntVar(&f.minors, "minors", 0, "Limit changelog releases to the N most recent")
	cmd.Flags().StringVar(&f.channel, "channel", "", "Release channel: stable, lts or both")
}

// apply copies set flags over the configured values.
func (f revisionFlags) apply(rc *config.RevisionsConfig) {
	if len(f.explicit) > 0 {
		rc.Explicit = f.explicit
	}
	if f.file != "" {
		rc.File = f.file
	}
	if f.changelog != "" {
		rc.Changelog = f.changelog
	}
	if f.minors > 0 {
		rc.Minors = f.minors
	}
	if f.channel != "" {
		rc.Channel = f.channel
	}
}
