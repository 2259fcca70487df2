package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mediafilter/internal/adapters/driving/inbox"
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Import files dropped into a directory",
}

var inboxWatchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Watch a directory and import new files",
	Long: `Watches a directory for new files. Each file is imported as a new item
once it has stopped changing, moved to the .imported subdirectory and
filtered straight away.

Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runInboxWatch,
}

func init() {
	inboxWatchCmd.Flags().Duration("settle", inbox.DefaultSettle, "time a file must stay unchanged before import")
	inboxWatchCmd.Flags().Bool("existing", false, "import files already in the directory first")
	inboxWatchCmd.Flags().Bool("no-filter", false, "import without running the media filter")
	inboxCmd.AddCommand(inboxWatchCmd)
	rootCmd.AddCommand(inboxCmd)
}

func runInboxWatch(cmd *cobra.Command, args []string) error {
	if itemService == nil {
		return errors.New("item service not configured")
	}

	settle, _ := cmd.Flags().GetDuration("settle")
	existing, _ := cmd.Flags().GetBool("existing")
	noFilter, _ := cmd.Flags().GetBool("no-filter")

	opts, err := runOptions(cmd)
	if err != nil {
		return err
	}

	filter := mediaFilterService
	if noFilter {
		filter = nil
	}

	dir := args[0]
	watcher := inbox.NewWatcher(dir)
	defer watcher.Close()

	proc := inbox.NewProcessor(itemService, filter, dir, opts, settle)
	report := func(o inbox.Outcome) {
		printOutcome(cmd, o)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	arrivals, err := watcher.Watch(ctx)
	if err != nil {
		return err
	}

	if existing {
		files, err := watcher.Existing()
		if err != nil {
			return err
		}
		for _, a := range files {
			report(proc.Process(ctx, a))
		}
	}

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", dir)
	if err := proc.Run(ctx, arrivals, report); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	cmd.Println("Stopped.")
	return nil
}

func printOutcome(cmd *cobra.Command, o inbox.Outcome) {
	stamp := time.Now().Format("15:04:05")
	if o.Err != nil {
		cmd.Printf("%s %s %s: %v\n", stamp, errorStyle.Render("failed"), o.Arrival.Name, o.Err)
		return
	}

	line := fmt.Sprintf("%s %s %s -> %s", stamp, successStyle.Render("imported"), o.Arrival.Name, o.Item.Handle)
	if o.Report != nil {
		c := o.Report.Counts()
		line += fmt.Sprintf(" (%d derived, %d skipped, %d failed)", c.Derived, c.Skipped, c.Failed)
	}
	cmd.Println(line)
}
