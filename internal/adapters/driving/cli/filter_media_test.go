package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
)

func sampleRunReport() *domain.RunReport {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &domain.RunReport{
		StartedAt:      start,
		EndedAt:        start.Add(1500 * time.Millisecond),
		ItemsProcessed: 2,
		Results: []domain.BitstreamResult{
			{ItemHandle: "local/1", BitstreamName: "a.pdf", Filter: "pdf", State: domain.StatePostProcessed, DerivedID: "d1"},
			{ItemHandle: "local/1", BitstreamName: "b.txt", Filter: "plaintext", State: domain.StateSkipped, SkipReason: "up to date"},
		},
	}
}

func TestFilterMediaCmd_Use(t *testing.T) {
	assert.Equal(t, "filter-media", filterMediaCmd.Use)
	assert.Equal(t, "Run the format filters over stored items", filterMediaCmd.Short)
	assert.Contains(t, filterMediaCmd.Long, "--force")
}

func TestFilterMediaCmd_Flags(t *testing.T) {
	for flag, short := range map[string]string{
		"force": "f", "identifier": "i", "maximum": "m", "plugins": "p", "skip": "s", "workers": "w",
	} {
		f := filterMediaCmd.Flags().Lookup(flag)
		require.NotNil(t, f, flag)
		assert.Equal(t, short, f.Shorthand, flag)
	}
	assert.NotNil(t, filterMediaCmd.Flags().Lookup("report"))
}

func TestFilterMediaCmd_AllItems(t *testing.T) {
	mf := &mockMediaFilterService{report: sampleRunReport()}
	cleanup := setupServices(mf, nil, nil, nil)
	defer cleanup()

	out, err := executeCommand(t, "filter-media")
	require.NoError(t, err)

	assert.True(t, mf.calledAll)
	assert.Contains(t, out, "Filtering all items...")
	assert.Contains(t, out, "Media filter run")
	assert.Contains(t, out, "Items:")
	assert.Contains(t, out, "Derived:")
	assert.Contains(t, out, "1.5s")
	assert.NotContains(t, out, "Failures")
}

func TestFilterMediaCmd_SingleItemWithFlags(t *testing.T) {
	mf := &mockMediaFilterService{filters: testFilters()}
	cleanup := setupServices(mf, nil, nil, nil)
	defer cleanup()

	out, err := executeCommand(t, "filter-media", "-i", "local/7", "-f", "-m", "5", "-p", "pdf,thumbnail", "-w", "2")
	require.NoError(t, err)

	assert.False(t, mf.calledAll)
	assert.Equal(t, "local/7", mf.handle)
	assert.True(t, mf.opts.Force)
	assert.Equal(t, 5, mf.opts.MaxItems)
	assert.Equal(t, []string{"pdf", "thumbnail"}, mf.opts.Plugins)
	assert.Equal(t, 2, mf.opts.Workers)
	assert.Contains(t, out, "Filtering item local/7...")
}

func TestFilterMediaCmd_SettingsDefaults(t *testing.T) {
	settings := newMockSettingsService()
	settings.settings.Force = true
	settings.settings.MaxItems = 10
	settings.settings.Plugins = []string{"thumbnail"}
	settings.settings.SkipHandles = []string{"local/skip"}

	mf := &mockMediaFilterService{}
	cleanup := setupServices(mf, nil, settings, nil)
	defer cleanup()

	_, err := executeCommand(t, "filter-media", "-m", "3")
	require.NoError(t, err)

	assert.True(t, mf.opts.Force, "configured force kept")
	assert.Equal(t, 3, mf.opts.MaxItems, "flag overrides configured value")
	assert.Equal(t, []string{"thumbnail"}, mf.opts.Plugins)
	assert.Equal(t, []string{"local/skip"}, mf.opts.SkipHandles)
	assert.Zero(t, mf.opts.Workers)
}

func TestFilterMediaCmd_SkipFile(t *testing.T) {
	skip := filepath.Join(t.TempDir(), "skip.txt")
	require.NoError(t, os.WriteFile(skip, []byte("# broken items\nlocal/1\n\n  local/2  \n"), 0o644))

	settings := newMockSettingsService()
	settings.settings.SkipHandles = []string{"local/0"}
	mf := &mockMediaFilterService{}
	cleanup := setupServices(mf, nil, settings, nil)
	defer cleanup()

	_, err := executeCommand(t, "filter-media", "-s", skip)
	require.NoError(t, err)
	assert.Equal(t, []string{"local/0", "local/1", "local/2"}, mf.opts.SkipHandles)
	assert.Equal(t, []string{"local/0"}, settings.settings.SkipHandles, "settings are not modified")
}

func TestFilterMediaCmd_SkipFileMissing(t *testing.T) {
	cleanup := setupServices(&mockMediaFilterService{}, nil, nil, nil)
	defer cleanup()

	_, err := executeCommand(t, "filter-media", "-s", "/nonexistent/skip.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open skip file")
}

func TestFilterMediaCmd_UnknownPlugin(t *testing.T) {
	mf := &mockMediaFilterService{filters: testFilters()}
	cleanup := setupServices(mf, nil, nil, nil)
	defer cleanup()

	_, err := executeCommand(t, "filter-media", "-p", "pdf,pdff,ocr")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.ErrorContains(t, err, "pdff, ocr")
	assert.False(t, mf.calledAll, "nothing runs")
}

func TestFilterMediaCmd_NegativeWorkers(t *testing.T) {
	cleanup := setupServices(&mockMediaFilterService{}, nil, nil, nil)
	defer cleanup()

	_, err := executeCommand(t, "filter-media", "-w", "-1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFilterMediaCmd_Failures(t *testing.T) {
	report := sampleRunReport()
	report.Results = append(report.Results, domain.BitstreamResult{
		ItemHandle:    "local/2",
		BitstreamName: "broken.docx",
		Filter:        "docx",
		State:         domain.StateFailed,
		Err:           &domain.FilterError{Kind: domain.KindTransformFailed, Filter: "docx", BitstreamID: "b9", Err: domain.ErrInvalidInput},
	})
	cleanup := setupServices(&mockMediaFilterService{report: report}, nil, nil, nil)
	defer cleanup()

	out, err := executeCommand(t, "filter-media")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 bitstream(s) failed")
	assert.Contains(t, out, "Failures")
	assert.Contains(t, out, "local/2 broken.docx [docx]: transform failed")
}

func TestFilterMediaCmd_RunInProgress(t *testing.T) {
	cleanup := setupServices(&mockMediaFilterService{err: domain.ErrRunInProgress}, nil, nil, nil)
	defer cleanup()

	_, err := executeCommand(t, "filter-media")
	assert.ErrorIs(t, err, domain.ErrRunInProgress)
}

func TestFilterMediaCmd_SettingsError(t *testing.T) {
	settings := newMockSettingsService()
	settings.err = errors.New("bad config")
	cleanup := setupServices(&mockMediaFilterService{}, nil, settings, nil)
	defer cleanup()

	_, err := executeCommand(t, "filter-media")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad config")
}

func TestFilterMediaCmd_ServiceNotConfigured(t *testing.T) {
	cleanup := setupServices(nil, nil, nil, nil)
	defer cleanup()

	_, err := executeCommand(t, "filter-media")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "media filter service not configured")
}

func TestFilterMediaCmd_Report(t *testing.T) {
	cleanup := setupServices(&mockMediaFilterService{report: sampleRunReport()}, nil, nil, nil)
	defer cleanup()

	path := filepath.Join(t.TempDir(), "run.yaml")
	out, err := executeCommand(t, "filter-media", "--report", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Report written to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got runReportFile
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, 2, got.Counts.Items)
	assert.Equal(t, 1, got.Counts.Derived)
	assert.Equal(t, 1, got.Counts.Skipped)
	require.Len(t, got.Results, 2)
	assert.Equal(t, "done", got.Results[0].State)
	assert.Equal(t, "d1", got.Results[0].Derived)
	assert.Equal(t, "up to date", got.Results[1].SkipReason)
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, isTerminal(new(bytes.Buffer)))

	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, isTerminal(f), "regular files are not terminals")
}

func TestReadSkipFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skip")
	require.NoError(t, os.WriteFile(path, []byte("local/a\r\n#comment\nlocal/b"), 0o644))

	handles, err := readSkipFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"local/a", "local/b"}, handles)
}
