package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show application settings",
	Long: `Shows the media filter and scheduler settings read from the config file.

Edit config.toml in the data directory to change them, or use the filter
subcommands to switch filters on and off.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.MediaFilter()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println(titleStyle.Render("Current Settings"))
	cmd.Println()

	cmd.Println("[Media filter]")
	cmd.Printf("  Actor: %s\n", settings.Actor)
	cmd.Printf("  Workers: %d\n", settings.Workers)
	if settings.ItemsPerSecond > 0 {
		cmd.Printf("  Items per second: %g\n", settings.ItemsPerSecond)
	} else {
		cmd.Println("  Items per second: unlimited")
	}
	cmd.Printf("  Force: %t\n", settings.Force)
	if settings.MaxItems > 0 {
		cmd.Printf("  Max items: %d\n", settings.MaxItems)
	}
	if len(settings.Plugins) > 0 {
		cmd.Printf("  Plugins: %s\n", strings.Join(settings.Plugins, ", "))
	}
	if len(settings.SkipHandles) > 0 {
		cmd.Printf("  Skip: %s\n", strings.Join(settings.SkipHandles, ", "))
	}
	cmd.Println()

	names := make([]string, 0, len(settings.Filters))
	for name := range settings.Filters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fs := settings.Filters[name]
		cmd.Printf("[Filter %s]\n", name)
		cmd.Printf("  Status: %s\n", onOff(fs.Enabled))
		if len(fs.InputFormats) > 0 {
			cmd.Printf("  Input formats: %s\n", strings.Join(fs.InputFormats, ", "))
		}
		if fs.When != "" {
			cmd.Printf("  When: %s\n", fs.When)
		}
		keys := make([]string, 0, len(fs.Options))
		for k := range fs.Options {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			cmd.Printf("  %s: %v\n", k, fs.Options[k])
		}
		cmd.Println()
	}

	sched := settingsService.Scheduler()
	cmd.Println("[Scheduler]")
	cmd.Printf("  Status: %s\n", onOff(sched.Enabled))
	tc := sched.MediaFilter
	cmd.Printf("  %s: every %s (%s)\n", domain.TaskIDMediaFilter, tc.Interval, onOff(tc.Enabled))
	return nil
}
