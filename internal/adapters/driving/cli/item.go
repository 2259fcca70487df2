package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driving"
)

var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Manage stored items",
	Long:  `Import files as items and inspect their bundles and bitstreams.`,
}

var itemImportCmd = &cobra.Command{
	Use:   "import <path>...",
	Short: "Import files into an item",
	Long: `Stores the given files in the ORIGINAL bundle of an item. A new item is
created unless --handle names an existing one. The bitstream format is
guessed from the file extension, then from the content.

Examples:
  mediafilter item import report.pdf figure.png --name "Annual report"
  mediafilter item import appendix.docx --handle local/1a2b3c4d --filter`,
	Args: cobra.MinimumNArgs(1),
	RunE: runItemImport,
}

var itemListCmd = &cobra.Command{
	Use:   "list",
	Short: "List items",
	Args:  cobra.NoArgs,
	RunE:  runItemList,
}

var itemShowCmd = &cobra.Command{
	Use:   "show <handle>",
	Short: "Show an item with its bitstreams",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemShow,
}

func init() {
	itemImportCmd.Flags().String("handle", "", "add the files to this existing item")
	itemImportCmd.Flags().String("name", "", "name of the new item (default first file name)")
	itemImportCmd.Flags().Bool("filter", false, "run the media filter over the item after import")
	itemCmd.AddCommand(itemImportCmd)
	itemCmd.AddCommand(itemListCmd)
	itemCmd.AddCommand(itemShowCmd)
	rootCmd.AddCommand(itemCmd)
}

func runItemImport(cmd *cobra.Command, args []string) error {
	if itemService == nil {
		return errors.New("item service not configured")
	}

	handle, _ := cmd.Flags().GetString("handle")
	name, _ := cmd.Flags().GetString("name")
	filter, _ := cmd.Flags().GetBool("filter")

	if filter && mediaFilterService == nil {
		return errors.New("media filter service not configured")
	}

	files := make([]driving.ImportFile, 0, len(args))
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("%s is not a regular file: %w", path, domain.ErrInvalidInput)
		}
		files = append(files, driving.ImportFile{Name: filepath.Base(path), Content: f})
	}

	if name == "" && handle == "" {
		name = files[0].Name
	}

	item, err := itemService.Import(cmd.Context(), driving.ImportRequest{
		Handle: handle,
		Name:   name,
		Files:  files,
	})
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	cmd.Printf("Imported %d file(s) into %s (%s)\n", len(files), item.Handle, item.Name)

	if !filter {
		return nil
	}

	opts, err := runOptions(cmd)
	if err != nil {
		return err
	}
	report, err := mediaFilterService.ApplyItem(cmd.Context(), item.Handle, opts)
	if err != nil {
		return fmt.Errorf("filter %s: %w", item.Handle, err)
	}
	printRunSummary(cmd, report)
	return nil
}

func runItemList(cmd *cobra.Command, _ []string) error {
	if itemService == nil {
		return errors.New("item service not configured")
	}

	items, err := itemService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}

	if len(items) == 0 {
		cmd.Println("No items stored.")
		return nil
	}

	for _, item := range items {
		cmd.Printf("%-18s %s\n", item.Handle, item.Name)
	}
	return nil
}

func runItemShow(cmd *cobra.Command, args []string) error {
	if itemService == nil {
		return errors.New("item service not configured")
	}

	details, err := itemService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get item: %w", err)
	}

	item := details.Item
	cmd.Println(titleStyle.Render(item.Name))
	cmd.Printf("  %s %s\n", labelStyle.Render("Handle: "), item.Handle)
	cmd.Printf("  %s %s\n", labelStyle.Render("ID:     "), item.ID)
	if !item.CreatedAt.IsZero() {
		cmd.Printf("  %s %s\n", labelStyle.Render("Created:"), item.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	for _, b := range details.Bundles {
		cmd.Println()
		cmd.Printf("[%s]\n", b.Bundle.Name)
		if len(b.Bitstreams) == 0 {
			cmd.Println("  (empty)")
			continue
		}
		for _, bs := range b.Bitstreams {
			cmd.Printf("  %s  %s  %s  %s\n",
				bs.Bitstream.ID, bs.Bitstream.Name, bs.Format, formatSize(bs.Bitstream.Size))
			if src := bs.Bitstream.DerivedFrom(); src != "" {
				cmd.Printf("    %s %s (%s)\n", labelStyle.Render("from"), src, bs.Bitstream.Metadata[domain.MetaGeneratedBy])
			}
		}
	}
	return nil
}

// formatSize renders a byte count for display.
func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
