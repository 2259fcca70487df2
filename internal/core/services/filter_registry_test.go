package services

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driven"
)

// --- Mock filter shared by service tests ---

// mockFilter implements driven.FormatFilter with overridable hooks.
type mockFilter struct {
	bundle string
	format string
	desc   string
	suffix string

	preProcess  func(sess driven.FilterSession, source *domain.Bitstream) (bool, error)
	transform   func(source io.Reader) (io.ReadCloser, error)
	postProcess func(sess driven.FilterSession, generated *domain.Bitstream) error

	mu          sync.Mutex
	preCalls    int
	transCalls  int
	postCalls   int
	lastVerbose bool
	actors      []string
}

var _ driven.FormatFilter = (*mockFilter)(nil)

func newMockFilter() *mockFilter {
	return &mockFilter{
		bundle: domain.BundleText,
		format: "Text",
		desc:   "Extracted text",
		suffix: ".txt",
	}
}

func (m *mockFilter) FilteredName(sourceName string) string { return sourceName + m.suffix }
func (m *mockFilter) BundleName() string                    { return m.bundle }
func (m *mockFilter) FormatString() string                  { return m.format }
func (m *mockFilter) Description() string                   { return m.desc }

func (m *mockFilter) PreProcess(_ context.Context, sess driven.FilterSession, _ *domain.Item, source *domain.Bitstream, verbose bool) (bool, error) {
	m.mu.Lock()
	m.preCalls++
	m.lastVerbose = verbose
	m.actors = append(m.actors, sess.Actor())
	m.mu.Unlock()
	if m.preProcess != nil {
		return m.preProcess(sess, source)
	}
	return true, nil
}

func (m *mockFilter) Transform(_ context.Context, _ *domain.Item, source io.Reader, _ bool) (io.ReadCloser, error) {
	m.mu.Lock()
	m.transCalls++
	m.mu.Unlock()
	if m.transform != nil {
		return m.transform(source)
	}
	data, err := io.ReadAll(source)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(bytes.ToUpper(data))), nil
}

func (m *mockFilter) PostProcess(_ context.Context, sess driven.FilterSession, _ *domain.Item, generated *domain.Bitstream) error {
	m.mu.Lock()
	m.postCalls++
	m.mu.Unlock()
	if m.postProcess != nil {
		return m.postProcess(sess, generated)
	}
	return nil
}

func (m *mockFilter) calls() (pre, trans, post int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.preCalls, m.transCalls, m.postCalls
}

// --- Helpers ---

func selectInput(name, format string, size int64) driven.SelectInput {
	return driven.SelectInput{
		Item:   &domain.Item{ID: "item-1", Handle: "local/1", Name: "Report"},
		Bundle: domain.BundleOriginal,
		Source: &domain.Bitstream{ID: "bs-1", Name: name, Size: size},
		Format: &domain.BitstreamFormat{ShortDescription: format, MIMEType: "application/" + strings.ToLower(format)},
	}
}

func names(filters []driven.RegisteredFilter) []string {
	out := make([]string, 0, len(filters))
	for _, f := range filters {
		out = append(out, f.Name)
	}
	return out
}

// --- Tests ---

func TestFilterRegistry_Register(t *testing.T) {
	reg := NewFilterRegistry()

	require.NoError(t, reg.Register("pdf", newMockFilter(), "Adobe PDF"))
	require.NoError(t, reg.Register("html", newMockFilter(), "HTML"))

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "pdf", list[0].Name)
	assert.Equal(t, []string{"Adobe PDF"}, list[0].InputFormats)
	assert.Equal(t, "html", list[1].Name)

	got, ok := reg.Get("html")
	require.True(t, ok)
	assert.Equal(t, domain.FilterDescriptor{
		Name: "html", BundleName: "TEXT", FormatString: "Text", Description: "Extracted text",
	}, got.Descriptor())

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestFilterRegistry_Register_ReplacesSameName(t *testing.T) {
	reg := NewFilterRegistry()
	first := newMockFilter()
	second := newMockFilter()

	require.NoError(t, reg.Register("pdf", first, "Adobe PDF"))
	require.NoError(t, reg.Register("html", newMockFilter(), "HTML"))
	require.NoError(t, reg.Register("pdf", second, "Adobe PDF", "Text"))

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "pdf", list[0].Name, "replacement keeps the original position")
	assert.Same(t, second, list[0].Filter)
	assert.Equal(t, []string{"Adobe PDF", "Text"}, list[0].InputFormats)
}

func TestFilterRegistry_Register_Invalid(t *testing.T) {
	reg := NewFilterRegistry()

	assert.ErrorIs(t, reg.Register("pdf", nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, reg.Register("", newMockFilter()), domain.ErrInvalidInput)
	assert.ErrorIs(t, reg.Register("a.b", newMockFilter()), domain.ErrInvalidInput)

	lower := newMockFilter()
	lower.bundle = "text"
	assert.ErrorIs(t, reg.Register("lower", lower), domain.ErrInvalidInput)

	noFormat := newMockFilter()
	noFormat.format = ""
	assert.ErrorIs(t, reg.Register("noformat", noFormat), domain.ErrInvalidInput)

	assert.Empty(t, reg.List())
}

func TestFilterRegistry_Select_ByFormatInRegistrationOrder(t *testing.T) {
	reg := NewFilterRegistry()
	require.NoError(t, reg.Register("thumbnail", newMockFilter(), "JPEG", "PNG"))
	require.NoError(t, reg.Register("ocr", newMockFilter(), "JPEG"))
	require.NoError(t, reg.Register("pdf", newMockFilter(), "Adobe PDF"))

	selected, err := reg.Select(selectInput("photo.jpg", "JPEG", 10), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"thumbnail", "ocr"}, names(selected))

	selected, err = reg.Select(selectInput("photo.gif", "GIF", 10), nil)
	require.NoError(t, err)
	assert.Empty(t, selected)
}

func TestFilterRegistry_Select_RestrictedByPlugins(t *testing.T) {
	reg := NewFilterRegistry()
	require.NoError(t, reg.Register("thumbnail", newMockFilter(), "JPEG"))
	require.NoError(t, reg.Register("ocr", newMockFilter(), "JPEG"))

	selected, err := reg.Select(selectInput("photo.jpg", "JPEG", 10), []string{"ocr"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ocr"}, names(selected))
}

func TestFilterRegistry_Select_InvalidInput(t *testing.T) {
	reg := NewFilterRegistry()
	_, err := reg.Select(driven.SelectInput{}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFilterRegistry_Configure_DisableAndOverrideFormats(t *testing.T) {
	reg := NewFilterRegistry()
	require.NoError(t, reg.Register("pdf", newMockFilter(), "Adobe PDF"))
	require.NoError(t, reg.Register("plaintext", newMockFilter(), "Text"))

	settings := domain.DefaultMediaFilterSettings()
	settings.Filters["pdf"] = domain.FilterSettings{Enabled: false}
	settings.Filters["plaintext"] = domain.FilterSettings{Enabled: true, InputFormats: []string{"Text", "CSV"}}
	require.NoError(t, reg.Configure(settings))

	assert.False(t, reg.Enabled("pdf"))
	assert.True(t, reg.Enabled("plaintext"))
	assert.False(t, reg.Enabled("missing"))

	selected, err := reg.Select(selectInput("doc.pdf", "Adobe PDF", 10), nil)
	require.NoError(t, err)
	assert.Empty(t, selected)

	selected, err = reg.Select(selectInput("data.csv", "CSV", 10), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"plaintext"}, names(selected))

	// Reconfiguring with defaults restores the registered formats
	require.NoError(t, reg.Configure(domain.DefaultMediaFilterSettings()))
	selected, err = reg.Select(selectInput("data.csv", "CSV", 10), nil)
	require.NoError(t, err)
	assert.Empty(t, selected)
	assert.True(t, reg.Enabled("pdf"))
}

func TestFilterRegistry_Configure_WhenCondition(t *testing.T) {
	reg := NewFilterRegistry()
	require.NoError(t, reg.Register("thumbnail", newMockFilter(), "JPEG"))

	settings := domain.DefaultMediaFilterSettings()
	settings.Filters["thumbnail"] = domain.FilterSettings{
		Enabled: true,
		When:    `size < 1000 && !(name endsWith ".raw.jpg") && item.handle startsWith "local/"`,
	}
	require.NoError(t, reg.Configure(settings))

	tests := []struct {
		name     string
		file     string
		size     int64
		expected int
	}{
		{"small file selected", "photo.jpg", 10, 1},
		{"large file skipped", "photo.jpg", 5000, 0},
		{"raw suffix skipped", "photo.raw.jpg", 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			selected, err := reg.Select(selectInput(tt.file, "JPEG", tt.size), nil)
			require.NoError(t, err)
			assert.Len(t, selected, tt.expected)
		})
	}
}

func TestFilterRegistry_Configure_InvalidConditionLeavesRegistryUntouched(t *testing.T) {
	reg := NewFilterRegistry()
	require.NoError(t, reg.Register("pdf", newMockFilter(), "Adobe PDF"))

	settings := domain.DefaultMediaFilterSettings()
	settings.Filters["pdf"] = domain.FilterSettings{Enabled: false, When: "size >"}
	err := reg.Configure(settings)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.True(t, reg.Enabled("pdf"))
}

func TestFilterRegistry_Select_NonBoolCondition(t *testing.T) {
	reg := NewFilterRegistry()
	require.NoError(t, reg.Register("pdf", newMockFilter(), "Adobe PDF"))

	settings := domain.DefaultMediaFilterSettings()
	settings.Filters["pdf"] = domain.FilterSettings{Enabled: true, When: "size + 1"}
	require.NoError(t, reg.Configure(settings))

	_, err := reg.Select(selectInput("doc.pdf", "Adobe PDF", 1), nil)
	assert.Error(t, err)
}

func TestFilterRegistry_Configure_IgnoresUnknownFilters(t *testing.T) {
	reg := NewFilterRegistry()
	require.NoError(t, reg.Register("pdf", newMockFilter(), "Adobe PDF"))

	settings := domain.DefaultMediaFilterSettings()
	settings.Filters["ocr"] = domain.FilterSettings{Enabled: false}
	assert.NoError(t, reg.Configure(settings))
	assert.Len(t, reg.List(), 1)
}

func TestValidateDescriptor(t *testing.T) {
	valid := domain.FilterDescriptor{Name: "pdf", BundleName: "TEXT", FormatString: "Text", Description: "Extracted text"}
	assert.NoError(t, ValidateDescriptor(valid))

	tests := []struct {
		name   string
		mutate func(d *domain.FilterDescriptor)
	}{
		{"missing bundle", func(d *domain.FilterDescriptor) { d.BundleName = "" }},
		{"lower case bundle", func(d *domain.FilterDescriptor) { d.BundleName = "Text" }},
		{"missing format", func(d *domain.FilterDescriptor) { d.FormatString = "" }},
		{"missing description", func(d *domain.FilterDescriptor) { d.Description = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			tt.mutate(&d)
			assert.ErrorIs(t, ValidateDescriptor(d), domain.ErrInvalidInput)
		})
	}
}
