package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var bitstreamCmd = &cobra.Command{
	Use:   "bitstream",
	Short: "Read stored bitstreams",
}

var bitstreamCatCmd = &cobra.Command{
	Use:   "cat <id>",
	Short: "Write the content of a bitstream to stdout",
	Args:  cobra.ExactArgs(1),
	RunE:  runBitstreamCat,
}

func init() {
	bitstreamCmd.AddCommand(bitstreamCatCmd)
	rootCmd.AddCommand(bitstreamCmd)
}

func runBitstreamCat(cmd *cobra.Command, args []string) error {
	if itemService == nil {
		return errors.New("item service not configured")
	}

	rc, err := itemService.Content(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("open bitstream: %w", err)
	}
	defer rc.Close()

	if _, err := io.Copy(cmd.OutOrStdout(), rc); err != nil {
		return fmt.Errorf("read bitstream: %w", err)
	}
	return nil
}
