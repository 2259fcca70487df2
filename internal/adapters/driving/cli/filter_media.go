package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
)

var filterMediaCmd = &cobra.Command{
	Use:   "filter-media",
	Short: "Run the format filters over stored items",
	Long: `Runs every enabled format filter over the stored items and stores the
derived bitstreams. Sources whose derived bitstream is up to date are skipped
unless --force is given.

Flags override the [mediafilter] settings of the config file for this run.

Examples:
  mediafilter filter-media
  mediafilter filter-media -i local/1a2b3c4d -f
  mediafilter filter-media -p pdf,html -m 100 --report run.yaml`,
	Args: cobra.NoArgs,
	RunE: runFilterMedia,
}

func init() {
	f := filterMediaCmd.Flags()
	f.BoolP("force", "f", false, "re-create derived bitstreams that already exist")
	f.StringP("identifier", "i", "", "only filter the item with this handle")
	f.IntP("maximum", "m", 0, "stop after this many items (0 = no limit)")
	f.StringSliceP("plugins", "p", nil, "only run these filters (comma separated)")
	f.StringP("skip", "s", "", "file listing item handles to skip, one per line")
	f.IntP("workers", "w", 0, "items filtered in parallel (0 = configured)")
	f.String("report", "", "write the run report as YAML to this file")
	rootCmd.AddCommand(filterMediaCmd)
}

func runFilterMedia(cmd *cobra.Command, _ []string) error {
	if mediaFilterService == nil {
		return errors.New("media filter service not configured")
	}

	opts, err := runOptions(cmd)
	if err != nil {
		return err
	}
	handle, _ := cmd.Flags().GetString("identifier")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if handle != "" {
		cmd.Printf("Filtering item %s...\n", handle)
	} else {
		cmd.Println("Filtering all items...")
	}

	report, err := filterWithProgress(ctx, cmd, handle, opts)
	if err != nil {
		return fmt.Errorf("filter media: %w", err)
	}

	if report == nil {
		report = &domain.RunReport{}
	}
	printRunSummary(cmd, report)

	if path, _ := cmd.Flags().GetString("report"); path != "" {
		if err := writeRunReport(path, report); err != nil {
			return err
		}
		cmd.Printf("Report written to %s\n", path)
	}

	if failed := report.Counts().Failed; failed > 0 {
		return fmt.Errorf("%d bitstream(s) failed", failed)
	}
	return nil
}

// runOptions merges the configured defaults with the flags that were set.
func runOptions(cmd *cobra.Command) (domain.RunOptions, error) {
	settings := domain.DefaultMediaFilterSettings()
	if settingsService != nil {
		s, err := settingsService.MediaFilter()
		if err != nil {
			return domain.RunOptions{}, err
		}
		settings = s
	}
	opts := settings.RunOptions()
	opts.Verbose = flagVerbose

	flags := cmd.Flags()
	if flags.Changed("force") {
		opts.Force, _ = flags.GetBool("force")
	}
	if flags.Changed("maximum") {
		opts.MaxItems, _ = flags.GetInt("maximum")
		if opts.MaxItems < 0 {
			return domain.RunOptions{}, fmt.Errorf("--maximum must not be negative: %w", domain.ErrInvalidInput)
		}
	}
	if flags.Changed("plugins") {
		opts.Plugins, _ = flags.GetStringSlice("plugins")
		if err := checkPlugins(cmd.Context(), opts.Plugins); err != nil {
			return domain.RunOptions{}, err
		}
	}
	if flags.Changed("workers") {
		opts.Workers, _ = flags.GetInt("workers")
		if opts.Workers < 0 {
			return domain.RunOptions{}, fmt.Errorf("--workers must not be negative: %w", domain.ErrInvalidInput)
		}
	}
	if path, _ := flags.GetString("skip"); path != "" {
		handles, err := readSkipFile(path)
		if err != nil {
			return domain.RunOptions{}, err
		}
		opts.SkipHandles = append(append([]string(nil), opts.SkipHandles...), handles...)
	}
	return opts, nil
}

// checkPlugins rejects filter names that are not registered, so a typo does
// not turn into a run that derives nothing.
func checkPlugins(ctx context.Context, names []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	registered, err := mediaFilterService.Filters(ctx)
	if err != nil {
		return fmt.Errorf("list filters: %w", err)
	}
	known := make(map[string]bool, len(registered))
	for _, f := range registered {
		known[f.Name] = true
	}

	var unknown []string
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown filter %s (see 'mediafilter filter list'): %w",
			strings.Join(unknown, ", "), domain.ErrInvalidInput)
	}
	return nil
}

// readSkipFile reads item handles, one per line. Blank lines and lines
// starting with # are ignored.
func readSkipFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open skip file: %w", err)
	}
	defer f.Close()

	var handles []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		handles = append(handles, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read skip file: %w", err)
	}
	return handles, nil
}

// filterWithProgress runs the media filter while displaying progress updates
// when the output is a terminal.
func filterWithProgress(ctx context.Context, cmd *cobra.Command, handle string, opts domain.RunOptions) (*domain.RunReport, error) {
	type result struct {
		report *domain.RunReport
		err    error
	}

	resCh := make(chan result, 1)
	go func() {
		var r result
		if handle != "" {
			r.report, r.err = mediaFilterService.ApplyItem(ctx, handle, opts)
		} else {
			r.report, r.err = mediaFilterService.ApplyAll(ctx, opts)
		}
		resCh <- r
	}()

	if !isTerminal(cmd.OutOrStdout()) {
		r := <-resCh
		return r.report, r.err
	}

	// Poll status every 500ms
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastCount := -1
	for {
		select {
		case r := <-resCh:
			if lastCount >= 0 {
				cmd.Print("\r\033[K")
			}
			return r.report, r.err
		case <-ticker.C:
			// Best effort; status errors are ignored
			status, err := mediaFilterService.Status(ctx)
			if err != nil || status == nil || !status.Running {
				continue
			}
			if status.ItemsProcessed != lastCount {
				cmd.Printf("\rProcessing... %d items, %d derived, %d failed",
					status.ItemsProcessed, status.Derived, status.Failed)
				lastCount = status.ItemsProcessed
			}
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printRunSummary(cmd *cobra.Command, report *domain.RunReport) {
	c := report.Counts()

	cmd.Println()
	cmd.Println(titleStyle.Render("Media filter run"))
	cmd.Printf("  %s %d\n", labelStyle.Render("Items:   "), c.Items)
	cmd.Printf("  %s %s\n", labelStyle.Render("Derived: "), successStyle.Render(fmt.Sprint(c.Derived)))
	cmd.Printf("  %s %d\n", labelStyle.Render("Skipped: "), c.Skipped)

	failed := fmt.Sprint(c.Failed)
	if c.Failed > 0 {
		failed = errorStyle.Render(failed)
	}
	cmd.Printf("  %s %s\n", labelStyle.Render("Failed:  "), failed)
	if c.Finalize > 0 {
		cmd.Printf("  %s %s\n", labelStyle.Render("Finalize:"), warningStyle.Render(fmt.Sprint(c.Finalize)))
	}
	if !report.EndedAt.IsZero() {
		cmd.Printf("  %s %s\n", labelStyle.Render("Duration:"), report.EndedAt.Sub(report.StartedAt).Round(time.Millisecond))
	}

	failures := report.Failures()
	if len(failures) == 0 {
		return
	}
	cmd.Println()
	cmd.Println(errorStyle.Render("Failures"))
	for _, f := range failures {
		cmd.Printf("  %s %s [%s]: %v\n", f.ItemHandle, f.BitstreamName, f.Filter, f.Err)
	}
}

// runReportFile is the YAML layout of an exported run report.
type runReportFile struct {
	StartedAt time.Time          `yaml:"started_at"`
	EndedAt   time.Time          `yaml:"ended_at"`
	Counts    runCountsFile      `yaml:"counts"`
	Results   []resultReportFile `yaml:"results"`
}

type runCountsFile struct {
	Items    int `yaml:"items"`
	Derived  int `yaml:"derived"`
	Skipped  int `yaml:"skipped"`
	Failed   int `yaml:"failed"`
	Finalize int `yaml:"finalize_failed,omitempty"`
}

type resultReportFile struct {
	Item       string `yaml:"item"`
	Bitstream  string `yaml:"bitstream"`
	Filter     string `yaml:"filter"`
	State      string `yaml:"state"`
	Derived    string `yaml:"derived,omitempty"`
	SkipReason string `yaml:"skip_reason,omitempty"`
	Error      string `yaml:"error,omitempty"`
}

func newRunReportFile(report *domain.RunReport) runReportFile {
	c := report.Counts()
	out := runReportFile{
		StartedAt: report.StartedAt,
		EndedAt:   report.EndedAt,
		Counts: runCountsFile{
			Items:    c.Items,
			Derived:  c.Derived,
			Skipped:  c.Skipped,
			Failed:   c.Failed,
			Finalize: c.Finalize,
		},
		Results: make([]resultReportFile, len(report.Results)),
	}
	for i, r := range report.Results {
		rf := resultReportFile{
			Item:       r.ItemHandle,
			Bitstream:  r.BitstreamName,
			Filter:     r.Filter,
			State:      r.State.String(),
			Derived:    r.DerivedID,
			SkipReason: r.SkipReason,
		}
		if r.Err != nil {
			rf.Error = r.Err.Error()
		}
		out.Results[i] = rf
	}
	return out
}

func writeRunReport(path string, report *domain.RunReport) error {
	data, err := yaml.Marshal(newRunReportFile(report))
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
