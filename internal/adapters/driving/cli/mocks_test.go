package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driving"
)

// mockMediaFilterService implements driving.MediaFilterService for testing.
type mockMediaFilterService struct {
	report  *domain.RunReport
	filters []driving.FilterInfo
	err     error

	calledAll bool
	handle    string
	opts      domain.RunOptions
}

func (m *mockMediaFilterService) ApplyAll(_ context.Context, opts domain.RunOptions) (*domain.RunReport, error) {
	m.calledAll = true
	m.opts = opts
	return m.reportOrEmpty(), m.err
}

func (m *mockMediaFilterService) ApplyItem(_ context.Context, handle string, opts domain.RunOptions) (*domain.RunReport, error) {
	m.handle = handle
	m.opts = opts
	return m.reportOrEmpty(), m.err
}

func (m *mockMediaFilterService) reportOrEmpty() *domain.RunReport {
	if m.err != nil {
		return nil
	}
	if m.report == nil {
		return &domain.RunReport{}
	}
	return m.report
}

func (m *mockMediaFilterService) Status(_ context.Context) (*domain.RunStatus, error) {
	return &domain.RunStatus{}, nil
}

func (m *mockMediaFilterService) Filters(_ context.Context) ([]driving.FilterInfo, error) {
	return m.filters, nil
}

// mockItemService implements driving.ItemService for testing.
type mockItemService struct {
	items   []domain.Item
	details *driving.ItemDetails
	formats []domain.BitstreamFormat
	content string
	err     error

	imported driving.ImportRequest
	files    map[string]string
}

func (m *mockItemService) Import(_ context.Context, req driving.ImportRequest) (*domain.Item, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.imported = req
	m.files = map[string]string{}
	for _, f := range req.Files {
		data, err := io.ReadAll(f.Content)
		if err != nil {
			return nil, err
		}
		m.files[f.Name] = string(data)
	}
	handle := req.Handle
	if handle == "" {
		handle = "local/new"
	}
	return &domain.Item{ID: "item-1", Handle: handle, Name: req.Name}, nil
}

func (m *mockItemService) List(_ context.Context) ([]domain.Item, error) {
	return m.items, m.err
}

func (m *mockItemService) Get(_ context.Context, _ string) (*driving.ItemDetails, error) {
	return m.details, m.err
}

func (m *mockItemService) Bitstream(_ context.Context, _ string) (*domain.Bitstream, error) {
	return nil, m.err
}

func (m *mockItemService) Content(_ context.Context, _ string) (io.ReadCloser, error) {
	if m.err != nil {
		return nil, m.err
	}
	return io.NopCloser(strings.NewReader(m.content)), nil
}

func (m *mockItemService) Formats(_ context.Context) ([]domain.BitstreamFormat, error) {
	return m.formats, m.err
}

// mockSettingsService implements driving.SettingsService for testing.
type mockSettingsService struct {
	settings  domain.MediaFilterSettings
	scheduler domain.SchedulerConfig
	err       error

	enabled map[string]bool
	when    map[string]string
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{
		settings:  domain.DefaultMediaFilterSettings(),
		scheduler: domain.DefaultSchedulerConfig(),
		enabled:   map[string]bool{},
		when:      map[string]string{},
	}
}

func (m *mockSettingsService) MediaFilter() (domain.MediaFilterSettings, error) {
	return m.settings, m.err
}

func (m *mockSettingsService) SetFilterEnabled(name string, enabled bool) error {
	if m.err != nil {
		return m.err
	}
	m.enabled[name] = enabled
	return nil
}

func (m *mockSettingsService) SetFilterCondition(name, when string) error {
	if m.err != nil {
		return m.err
	}
	m.when[name] = when
	return nil
}

func (m *mockSettingsService) Scheduler() domain.SchedulerConfig {
	return m.scheduler
}

// mockScheduler implements driving.Scheduler for testing.
type mockScheduler struct {
	tasks []driving.TaskStatus
	err   error
}

func (m *mockScheduler) Start(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockScheduler) Stop() error {
	return nil
}

func (m *mockScheduler) Tasks(_ context.Context) ([]driving.TaskStatus, error) {
	return m.tasks, m.err
}

// setupServices swaps the service globals and returns a cleanup func.
func setupServices(mf driving.MediaFilterService, items driving.ItemService, settings driving.SettingsService, sched driving.Scheduler) func() {
	oldMF, oldItems, oldSettings, oldSched := mediaFilterService, itemService, settingsService, scheduler
	mediaFilterService, itemService, settingsService, scheduler = mf, items, settings, sched
	return func() {
		mediaFilterService, itemService, settingsService, scheduler = oldMF, oldItems, oldSettings, oldSched
	}
}

// executeCommand runs the root command with args and returns its output.
// Flag values are reset first because cobra keeps them between executions.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
