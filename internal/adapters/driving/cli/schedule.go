package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the media filter on a schedule",
	Long: `Runs the media filter periodically in the foreground. The interval is set
by [scheduler.media_filter] interval in the config file (default 1h).
Each run is recorded with its item and bitstream counts.`,
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run scheduled tasks until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runScheduleRun,
}

var scheduleStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show scheduled tasks and recent runs",
	Args:  cobra.NoArgs,
	RunE:  runScheduleStatus,
}

func init() {
	scheduleCmd.AddCommand(scheduleRunCmd)
	scheduleCmd.AddCommand(scheduleStatusCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func runScheduleRun(cmd *cobra.Command, _ []string) error {
	if scheduler == nil {
		return errors.New("scheduler not configured")
	}
	if settingsService != nil && !settingsService.Scheduler().Enabled {
		return errors.New("scheduler is disabled in the config file")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Println("Scheduler running (Ctrl+C to stop)")
	if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("scheduler: %w", err)
	}
	if err := scheduler.Stop(); err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}
	cmd.Println("Scheduler stopped.")
	return nil
}

func runScheduleStatus(cmd *cobra.Command, _ []string) error {
	if scheduler == nil {
		return errors.New("scheduler not configured")
	}

	tasks, err := scheduler.Tasks(cmd.Context())
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	if len(tasks) == 0 {
		cmd.Println("No scheduled tasks. Start the scheduler with 'mediafilter schedule run'.")
		return nil
	}

	for _, ts := range tasks {
		t := ts.Task
		cmd.Printf("%s (%s)\n", titleStyle.Render(t.Name), onOff(t.Enabled))
		cmd.Printf("  %s every %s\n", labelStyle.Render("Interval:"), t.Interval)
		if !t.LastRun.IsZero() {
			cmd.Printf("  %s %s\n", labelStyle.Render("Last run:"), t.LastRun.Format("2006-01-02 15:04:05"))
		}
		if !t.NextRun.IsZero() {
			cmd.Printf("  %s %s\n", labelStyle.Render("Next run:"), t.NextRun.Format("2006-01-02 15:04:05"))
		}
		if t.LastError != "" {
			cmd.Printf("  %s %s\n", labelStyle.Render("Error:   "), errorStyle.Render(t.LastError))
		}
		for _, r := range ts.History {
			started := r.StartedAt.Format("2006-01-02 15:04:05")
			if !r.Success {
				cmd.Printf("    %s  %s  %s\n", started, errorStyle.Render("failed"), r.Error)
				continue
			}
			c := r.Counts
			cmd.Printf("    %s  %s  %d items, %d derived, %d skipped, %d failed in %s\n",
				started, successStyle.Render("ok"), c.Items, c.Derived, c.Skipped, c.Failed,
				r.Duration().Round(time.Second))
		}
	}
	return nil
}
