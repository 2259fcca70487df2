package mcp

import (
	"context"
	"io"
	"strings"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driving"
)

// mockMediaFilterService is a mock implementation of driving.MediaFilterService.
type mockMediaFilterService struct {
	report  *domain.RunReport
	filters []driving.FilterInfo
	err     error

	handle string
	opts   domain.RunOptions
}

func (m *mockMediaFilterService) ApplyAll(_ context.Context, opts domain.RunOptions) (*domain.RunReport, error) {
	m.opts = opts
	return m.report, m.err
}

func (m *mockMediaFilterService) ApplyItem(_ context.Context, handle string, opts domain.RunOptions) (*domain.RunReport, error) {
	m.handle = handle
	m.opts = opts
	return m.report, m.err
}

func (m *mockMediaFilterService) Status(_ context.Context) (*domain.RunStatus, error) {
	return &domain.RunStatus{}, m.err
}

func (m *mockMediaFilterService) Filters(_ context.Context) ([]driving.FilterInfo, error) {
	return m.filters, m.err
}

// mockItemService is a mock implementation of driving.ItemService.
type mockItemService struct {
	items   []domain.Item
	details *driving.ItemDetails
	formats []domain.BitstreamFormat
	content string
	err     error
}

func (m *mockItemService) Import(_ context.Context, _ driving.ImportRequest) (*domain.Item, error) {
	return nil, m.err
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

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	settings domain.MediaFilterSettings
	err      error
}

func (m *mockSettingsService) MediaFilter() (domain.MediaFilterSettings, error) {
	return m.settings, m.err
}

func (m *mockSettingsService) SetFilterEnabled(_ string, _ bool) error { return m.err }

func (m *mockSettingsService) SetFilterCondition(_, _ string) error { return m.err }

func (m *mockSettingsService) Scheduler() domain.SchedulerConfig {
	return domain.DefaultSchedulerConfig()
}
