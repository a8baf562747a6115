package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/j-veylop/gemini-quota-switch/internal/db"
	"github.com/j-veylop/gemini-quota-switch/internal/models"
	"github.com/j-veylop/gemini-quota-switch/internal/server"
	"github.com/j-veylop/gemini-quota-switch/internal/services/projection"
	"github.com/j-veylop/gemini-quota-switch/internal/ui/components"
)

const (
	defaultChartWidth  = 60
	defaultChartHeight = 12
	maxHistoryDays     = 30
)

var errHistoryDisabled = errors.New("history is disabled (DATABASE_PATH is empty)")

func newHistoryCommand() *cobra.Command {
	var (
		addr   string
		family string
		days   int
		height int
	)

	cmd := &cobra.Command{
		Use:   "history <profile>",
		Short: "Chart a profile's remaining quota",
		Long:  "Render the recorded remaining percentage of one tier family as a terminal chart, from the local database or from a running server.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 || days > maxHistoryDays {
				return fmt.Errorf("--days must be between 1 and %d", maxHistoryDays)
			}
			width := chartWidth()

			if addr != "" {
				ctx, cancel := context.WithTimeout(cmd.Context(), clientTimeout)
				defer cancel()
				client := server.NewClient(addr)
				chart, err := client.HistoryChart(ctx, args[0], family, days, width, height)
				if err != nil {
					return err
				}
				proj, err := client.Projection(ctx, args[0], family)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), chart)
				fmt.Fprintln(cmd.OutOrStdout(), projection.Summary(proj))
				return nil
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openDatabase(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			now := time.Now()
			points, err := store.GetProfileHistory(args[0], family, now.Add(-time.Duration(days)*24*time.Hour))
			if err != nil {
				return err
			}

			caption := components.HistoryCaption(args[0], family, points)
			fmt.Fprintln(cmd.OutOrStdout(), components.RenderHistory(points, float64(cfg.Threshold), width, height, caption))
			fmt.Fprintln(cmd.OutOrStdout(), projection.Summary(projection.Calculate(args[0], family, points, now)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "server", "s", "", "read from a running server instead of the local database")
	cmd.Flags().StringVarP(&family, "family", "f", models.TopTier, "tier family to chart")
	cmd.Flags().IntVarP(&days, "days", "d", 1, "days of history to show")
	cmd.Flags().IntVar(&height, "height", defaultChartHeight, "chart height in rows")
	return cmd
}

func newSwitchesCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "switches",
		Short: "List recent switch attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 {
				return errors.New("--limit must be at least 1")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openDatabase(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			events, err := store.GetRecentSwitches(limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tFROM\tTO\tSWITCHED\tERROR")
			for _, e := range events {
				from := e.FromProfile
				if from == "" {
					from = "-"
				}
				errText := e.Error
				if errText == "" {
					errText = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
					e.Timestamp.Local().Format(time.DateTime),
					from,
					e.ToProfile,
					e.Switched,
					errText,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of events to show")
	return cmd
}

func openDatabase(path string) (*db.DB, error) {
	if path == "" {
		return nil, errHistoryDisabled
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no history database at %s: %w", path, err)
	}
	return db.New(path)
}

// chartWidth fits the chart to the terminal when stdout is one.
func chartWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultChartWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 20 {
		return defaultChartWidth
	}
	// asciigraph prints the axis labels to the left of the plot
	return min(w-10, 300)
}
