// Package main is the entry point for gemini-quota-switch.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/j-veylop/gemini-quota-switch/internal/config"
	"github.com/j-veylop/gemini-quota-switch/internal/logger"
	"github.com/j-veylop/gemini-quota-switch/internal/version"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           version.AppName,
		Short:         "Aggregate Gemini quota across profiles and switch to the best one",
		Long:          "Polls every profile in the collection directory, publishes a quota snapshot over HTTP and swaps the active profile on request.",
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(version.Info() + "\n")

	root.AddCommand(newServeCommand())
	root.AddCommand(newSwitchCommand())
	root.AddCommand(newTopCommand())
	root.AddCommand(newHistoryCommand())
	root.AddCommand(newSwitchesCommand())
	root.AddCommand(newVersionCommand())

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w\nRun '%s --help' for usage", err, cmd.CommandPath())
	})

	return root
}

// loadConfig reads configuration and applies the log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.SetLevel(cfg.LogLevel)
	return cfg, nil
}

// serverURL returns the explicit URL or the local server on the configured port.
func serverURL(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return "http://localhost:" + strconv.Itoa(cfg.Port), nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
}
