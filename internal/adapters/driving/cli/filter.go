package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Manage format filters",
	Long: `List the registered format filters and switch them on or off.

Changes are saved to the config file and apply to the next run.`,
	RunE: runFilterList,
}

var filterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered filters",
	Args:  cobra.NoArgs,
	RunE:  runFilterList,
}

var filterEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a filter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setFilterEnabled(cmd, args[0], true)
	},
}

var filterDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a filter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setFilterEnabled(cmd, args[0], false)
	},
}

var filterWhenCmd = &cobra.Command{
	Use:   "when <name> [expression]",
	Short: "Set the condition a source must meet",
	Long: `Sets a boolean expression evaluated for every candidate source bitstream.
The filter only runs when the expression is true. Omit the expression to
clear the condition.

Available variables:
  name      bitstream name
  size      bitstream size in bytes
  format    format short description
  mime      format MIME type
  bundle    bundle name
  meta      bitstream metadata map
  item      item handle, name and metadata (item.handle, item.name, item.metadata)

Examples:
  mediafilter filter when pdf 'size < 50 * 1024 * 1024'
  mediafilter filter when thumbnail 'mime != "image/gif"'
  mediafilter filter when pdf`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runFilterWhen,
}

func init() {
	filterCmd.AddCommand(filterListCmd)
	filterCmd.AddCommand(filterEnableCmd)
	filterCmd.AddCommand(filterDisableCmd)
	filterCmd.AddCommand(filterWhenCmd)
	rootCmd.AddCommand(filterCmd)
}

func runFilterList(cmd *cobra.Command, _ []string) error {
	if mediaFilterService == nil {
		return errors.New("media filter service not configured")
	}

	filters, err := mediaFilterService.Filters(cmd.Context())
	if err != nil {
		return fmt.Errorf("list filters: %w", err)
	}

	if len(filters) == 0 {
		cmd.Println("No filters registered.")
		return nil
	}

	cmd.Println(titleStyle.Render("Format filters"))
	cmd.Println()
	for _, f := range filters {
		cmd.Printf("  %-10s %s\n", f.Name, onOff(f.Enabled))
		cmd.Printf("    %s %s\n", labelStyle.Render("Input: "), strings.Join(f.InputFormats, ", "))
		cmd.Printf("    %s %s / %s\n", labelStyle.Render("Output:"), f.BundleName, f.FormatString)
	}
	return nil
}

func setFilterEnabled(cmd *cobra.Command, name string, enabled bool) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	if err := checkFilterName(cmd, name); err != nil {
		return err
	}

	if err := settingsService.SetFilterEnabled(name, enabled); err != nil {
		return fmt.Errorf("update filter: %w", err)
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	cmd.Printf("Filter %s %s.\n", name, state)
	return nil
}

func runFilterWhen(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	name := args[0]
	if err := checkFilterName(cmd, name); err != nil {
		return err
	}

	when := ""
	if len(args) == 2 {
		when = strings.TrimSpace(args[1])
	}

	if err := settingsService.SetFilterCondition(name, when); err != nil {
		return fmt.Errorf("update filter: %w", err)
	}

	if when == "" {
		cmd.Printf("Condition of filter %s cleared.\n", name)
	} else {
		cmd.Printf("Filter %s runs when: %s\n", name, when)
	}
	return nil
}

// checkFilterName rejects names the registry does not know. Without a media
// filter service every name is accepted.
func checkFilterName(cmd *cobra.Command, name string) error {
	if mediaFilterService == nil {
		return nil
	}
	filters, err := mediaFilterService.Filters(cmd.Context())
	if err != nil {
		return fmt.Errorf("list filters: %w", err)
	}
	for _, f := range filters {
		if f.Name == name {
			return nil
		}
	}
	return fmt.Errorf("unknown filter %q", name)
}
