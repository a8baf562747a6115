package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/j-veylop/gemini-quota-switch/internal/server"
	"github.com/j-veylop/gemini-quota-switch/internal/ui/top"
)

const clientTimeout = 2 * time.Minute

func newSwitchCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "switch",
		Short: "Ask a running server to switch to the preferred profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			base, err := serverURL(addr)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), clientTimeout)
			defer cancel()

			res, err := server.NewClient(base).TrySwitch(ctx)
			if err != nil {
				return err
			}
			if res.Switched {
				fmt.Fprintf(cmd.OutOrStdout(), "switched to %s\n", res.ProfileID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "already on %s\n", res.ProfileID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "server", "s", "", "server base URL (default http://localhost:$PORT)")
	return cmd
}

func newTopCommand() *cobra.Command {
	var (
		addr     string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Live dashboard of a running server",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if interval <= 0 {
				return errors.New("--interval must be > 0")
			}
			if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
				return errors.New("interactive dashboard requires a TTY")
			}

			base, err := serverURL(addr)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return top.Run(ctx, server.NewClient(base), interval)
		},
	}

	cmd.Flags().StringVarP(&addr, "server", "s", "", "server base URL (default http://localhost:$PORT)")
	cmd.Flags().DurationVarP(&interval, "interval", "i", top.DefaultPollInterval, "stats poll interval")
	return cmd
}
