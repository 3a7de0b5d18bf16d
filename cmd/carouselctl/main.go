// Command carouselctl inspects a carousel database offline: it derives guide
// listings straight from the stored channels and lineups, without a running
// server. Derivation is deterministic, so the output matches what the live
// service would broadcast.
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/carousel-tv/carousel/internal/channel"
	"github.com/carousel-tv/carousel/internal/db"
	"github.com/carousel-tv/carousel/internal/guide"
	"github.com/carousel-tv/carousel/internal/logger"
	"github.com/carousel-tv/carousel/internal/schedule"
)

var (
	dbPath      string
	channelID   string
	gridDate    string
	gridHours   int
	gridWorkers int
)

func main() {
	logger.Init("error", false)

	root := &cobra.Command{
		Use:   "carouselctl",
		Short: "Inspect a carousel channel database offline",
		Long: "carouselctl derives program listings directly from a carousel database.\n" +
			"It needs no running server: schedules are a pure function of each\n" +
			"channel's lineup, seeds, and the clock.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "./data/carousel.db", "path to the carousel database")

	gridCmd := &cobra.Command{
		Use:   "grid",
		Short: "Print guide listings over a time window",
		RunE:  runGrid,
	}
	gridCmd.Flags().StringVar(&channelID, "channel", "", "limit output to one channel id")
	gridCmd.Flags().StringVar(&gridDate, "date", "", "window start date (YYYY-MM-DD, UTC; defaults to now)")
	gridCmd.Flags().IntVar(&gridHours, "hours", 6, "window length in hours")
	gridCmd.Flags().IntVar(&gridWorkers, "workers", 4, "concurrent channel derivations")

	nowCmd := &cobra.Command{
		Use:   "now",
		Short: "Print the current and next program of a channel",
		RunE:  runNow,
	}
	nowCmd.Flags().StringVar(&channelID, "channel", "", "channel id (required)")
	_ = nowCmd.MarkFlagRequired("channel")

	root.AddCommand(gridCmd, nowCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// openGuide opens the database and builds a guide service over it
func openGuide(workers int) (*guide.Service, func(), error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, nil, fmt.Errorf("database %s not found", dbPath)
	}

	database, err := db.New(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	repos := db.NewRepositories(database)
	resolver := channel.NewResolver(repos)
	svc := guide.NewService(resolver, workers)

	cleanup := func() { _ = database.Close() }
	return svc, cleanup, nil
}

func runGrid(cmd *cobra.Command, _ []string) error {
	if gridHours < 1 {
		return fmt.Errorf("--hours must be at least 1")
	}

	fromMs := time.Now().UnixMilli()
	if gridDate != "" {
		day, err := time.Parse("2006-01-02", gridDate)
		if err != nil {
			return fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", gridDate)
		}
		fromMs = day.UTC().UnixMilli()
	}
	toMs := fromMs + int64(gridHours)*time.Hour.Milliseconds()

	svc, cleanup, err := openGuide(gridWorkers)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	if channelID != "" {
		programs, err := svc.ChannelWindow(ctx, channelID, fromMs, toMs)
		if err != nil {
			return fmt.Errorf("failed to derive channel window: %w", err)
		}
		printListing(cmd, channelID, programs)
		return nil
	}

	listings, err := svc.Grid(ctx, fromMs, toMs)
	if err != nil {
		return fmt.Errorf("failed to derive grid: %w", err)
	}

	for _, listing := range listings {
		cmd.Printf("%s (%s)\n", listing.Name, listing.ChannelID)
		printListing(cmd, listing.ChannelID, listing.Programs)
		cmd.Println()
	}
	return nil
}

func runNow(cmd *cobra.Command, _ []string) error {
	svc, cleanup, err := openGuide(1)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	nowNext, err := svc.NowNext(ctx, channelID)
	if err != nil {
		return fmt.Errorf("failed to resolve now/next: %w", err)
	}

	cmd.Printf("now   %s  %s (%s remaining)\n",
		formatClock(nowNext.Now.StartMs),
		nowNext.Now.Item.Title,
		formatDuration(nowNext.Now.RemainingMs))
	cmd.Printf("next  %s  %s\n",
		formatClock(nowNext.Next.StartMs),
		nowNext.Next.Item.Title)
	return nil
}

// printListing renders programs as a start/end/title table
func printListing(cmd *cobra.Command, _ string, programs []schedule.Program) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "START\tEND\tTITLE\tDURATION")
	for _, prog := range programs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			formatClock(prog.StartMs),
			formatClock(prog.EndMs),
			prog.Item.Title,
			formatDuration(prog.Item.DurationMs))
	}
	_ = w.Flush()
}

func formatClock(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04")
}

func formatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	return d.Round(time.Second).String()
}
