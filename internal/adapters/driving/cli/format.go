package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Inspect the bitstream format registry",
}

var formatListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered bitstream formats",
	Args:  cobra.NoArgs,
	RunE:  runFormatList,
}

func init() {
	formatCmd.AddCommand(formatListCmd)
	rootCmd.AddCommand(formatCmd)
}

func runFormatList(cmd *cobra.Command, _ []string) error {
	if itemService == nil {
		return errors.New("item service not configured")
	}

	formats, err := itemService.Formats(cmd.Context())
	if err != nil {
		return fmt.Errorf("list formats: %w", err)
	}

	for _, f := range formats {
		exts := strings.Join(f.Extensions, ", ")
		if f.Internal {
			exts = labelStyle.Render("internal")
		}
		cmd.Printf("%-22s %-32s %s\n", f.ShortDescription, f.MIMEType, exts)
	}
	return nil
}
