package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"FearGreedTracker/internal/calculator"
	"FearGreedTracker/internal/export"
	"FearGreedTracker/internal/httpapi"
	"FearGreedTracker/internal/model"
	"FearGreedTracker/internal/reconciler"
	"FearGreedTracker/internal/report"
)

// initLookbackDays is the incremental window used when seeding an empty store.
const initLookbackDays = 365

// historyFiles are imported by init when present in the working directory.
var historyFiles = []string{"fear-greed.csv", "all_fng_csv.csv"}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run one update: sync, README, versioning and notification",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.scheduler(cmd.Context(), a.telegram()).RunUpdate(cmd.Context())
		if res != nil && res.Sync != nil {
			fmt.Println(report.FormatSync(*res.Sync))
		}
		return err
	},
}

var autoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Run updates on the configured cron schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		tn := a.telegram()
		sched := a.scheduler(ctx, tn)
		if err := sched.Register(a.cfg.Schedule.Cron); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
		a.log.Info().Time("next", sched.Next()).Msg("waiting for next run")

		if tn != nil {
			go tn.StartPolling(ctx, sched.HandleCommand)
			a.log.Info().Msg("telegram polling started")
		}

		var srv *httpapi.Server
		if a.cfg.HTTP.Listen != "" {
			srv = httpapi.NewServer(a.cfg.HTTP.Listen, a.store, a.runs, a.registry, a.log)
			go func() {
				if err := srv.Start(); err != nil {
					a.log.Error().Err(err).Msg("http server failed")
					cancel()
				}
			}()
		}

		if a.cfg.Schedule.RunOnStart {
			a.log.Info().Msg("run on start enabled, updating now")
			go sched.RunUpdate(ctx)
		}

		<-ctx.Done()
		a.log.Info().Msg("shutdown signal received, stopping")
		if srv != nil {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.log.Warn().Err(err).Msg("http shutdown failed")
			}
		}
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Import local history files, then sync the last year",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		for _, name := range historyFiles {
			if _, err := os.Stat(name); err != nil {
				continue
			}
			res, err := export.ImportCSV(ctx, a.store, name)
			if err != nil {
				a.log.Warn().Err(err).Str("file", name).Msg("import failed")
				continue
			}
			fmt.Printf("imported %s: %d rows, %d valid, %d skipped, %d changed\n", name, res.Rows, res.Valid, res.Skipped, res.Affected)
		}

		res, err := a.reconciler(initLookbackDays).Incremental(ctx)
		if err != nil {
			return err
		}
		fmt.Println(report.FormatSync(res))
		return printStatus(ctx, a)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print summary statistics and the category distribution",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return printStatus(cmd.Context(), a)
	},
}

func printStatus(ctx context.Context, a *app) error {
	summary, dist, err := calculator.Stats(ctx, a.store)
	if err != nil {
		return err
	}
	fmt.Print(report.FormatStatus(summary, dist))
	return nil
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent update runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.runs.Recent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no runs recorded")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tTOOK\tAFFECTED\tBACKUPS\tCOMMITTED\tRESULT")
		for _, r := range runs {
			result := r.Status
			if !r.OK() {
				result = "error: " + r.Error
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%t\t%s\n",
				r.StartedAt.In(a.loc).Format(time.DateTime),
				r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
				r.Affected, r.Backups, r.Committed, result)
		}
		return w.Flush()
	},
}

var (
	syncMode  string
	syncStart string
)

var syncCmd = &cobra.Command{
	Use:   "sync [dates...]",
	Short: "Synchronize the store (incremental, full or backfill)",
	Example: `  fngtracker sync
  fngtracker sync --mode full --start 2020-01-01
  fngtracker sync --mode backfill 2024-03-01 2024-03-04`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var req reconciler.Request
		switch strings.ToLower(syncMode) {
		case "incremental":
			req = reconciler.Incremental()
		case "full":
			start := syncStart
			if start == "" {
				start = a.cfg.Sync.FullStart
			}
			req = reconciler.Full(start)
		case "backfill":
			if len(args) == 0 {
				return errors.New("backfill needs at least one date")
			}
			return runBackfill(cmd.Context(), a.reconciler(0), cmd.OutOrStdout(), args)
		default:
			return fmt.Errorf("unknown mode %q", syncMode)
		}

		res, err := a.reconciler(0).Synchronize(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Println(report.FormatSync(res))
		return nil
	},
}

// runBackfill backfills dates and prints one line per failed date. Any
// failed date fails the command.
func runBackfill(ctx context.Context, r *reconciler.Reconciler, w io.Writer, dates []string) error {
	res, err := r.Backfill(ctx, dates)
	printBackfill(w, res)
	if err != nil {
		return err
	}
	if len(res.Errors) > 0 {
		return fmt.Errorf("%d of %d dates failed", len(res.Errors), len(res.Dates))
	}
	return nil
}

func printBackfill(w io.Writer, res reconciler.BackfillResult) {
	fmt.Fprintln(w, res.Status())
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  ! %v\n", e)
	}
}

var gapDays int

var fillGapsCmd = &cobra.Command{
	Use:   "fill-gaps",
	Short: "Backfill missing weekdays in the trailing window",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		days := gapDays
		if days <= 0 {
			days = a.cfg.Sync.GapDays
		}
		res, err := a.reconciler(0).FillGaps(cmd.Context(), days)
		if err != nil {
			return err
		}
		fmt.Print(report.FormatGaps(res.Before))
		if len(res.Before.Weekdays) == 0 {
			fmt.Println("no weekday gaps")
			return nil
		}
		printBackfill(cmd.OutOrStdout(), res.Backfill)
		fmt.Printf("weekday gaps: %d -> %d (filled %d)\n", len(res.Before.Weekdays), len(res.After.Weekdays), res.Filled())
		return nil
	},
}

var (
	exportStart string
	exportDir   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the series to CSV and Parquet",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		start := exportStart
		if start == "" {
			start = a.cfg.Output.ExportStart
		}
		if _, err := model.ParseDate(start, time.UTC); err != nil {
			return err
		}
		dir := exportDir
		if dir == "" {
			dir = a.cfg.Output.ExportDir
		}

		csvPath := filepath.Join(dir, "fear_greed_index.csv")
		n, err := export.ExportCSV(ctx, a.store, csvPath, start)
		if err != nil {
			return err
		}
		fmt.Printf("exported %d rows to %s\n", n, csvPath)

		pqPath := filepath.Join(dir, "fear_greed_index.parquet")
		n, err = export.ExportParquet(ctx, a.store, pqPath, start)
		if err != nil {
			return err
		}
		fmt.Printf("exported %d rows to %s\n", n, pqPath)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a CSV or Parquet history file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		path := args[0]
		var res export.ImportResult
		if strings.EqualFold(filepath.Ext(path), ".parquet") {
			res, err = export.ImportParquet(cmd.Context(), a.store, path)
		} else {
			res, err = export.ImportCSV(cmd.Context(), a.store, path)
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d rows, %d valid, %d skipped, %d changed\n", path, res.Rows, res.Valid, res.Skipped, res.Affected)
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncMode, "mode", "incremental", "Sync mode: incremental, full, backfill")
	syncCmd.Flags().StringVar(&syncStart, "start", "", "Start date for full mode (default sync.full_start)")
	fillGapsCmd.Flags().IntVar(&gapDays, "days", 0, "Trailing window in days (default sync.gap_days)")
	exportCmd.Flags().StringVar(&exportStart, "start", "", "First exported date (default output.export_start)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of runs to list")
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "Output directory (default output.export_dir)")
}
