package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
)

// FilterItemInput is the input schema for the filter_item tool.
type FilterItemInput struct {
	Handle  string   `json:"handle" jsonschema:"handle of the item to filter, e.g. local/1a2b3c4d"`
	Force   bool     `json:"force,omitempty" jsonschema:"re-create derived bitstreams that already exist"`
	Plugins []string `json:"plugins,omitempty" jsonschema:"restrict the run to these filter names"`
}

// FilterAllInput is the input schema for the filter_all tool.
type FilterAllInput struct {
	Force    bool     `json:"force,omitempty" jsonschema:"re-create derived bitstreams that already exist"`
	Plugins  []string `json:"plugins,omitempty" jsonschema:"restrict the run to these filter names"`
	MaxItems int      `json:"max_items,omitempty" jsonschema:"stop after this many items (0 = all)"`
}

// RunOutput summarises a media filter run.
type RunOutput struct {
	Items    int             `json:"items"`
	Derived  int             `json:"derived"`
	Skipped  int             `json:"skipped"`
	Failed   int             `json:"failed"`
	Failures []FailureOutput `json:"failures,omitempty"`
}

// FailureOutput describes one failed bitstream.
type FailureOutput struct {
	Item      string `json:"item"`
	Bitstream string `json:"bitstream"`
	Filter    string `json:"filter"`
	Error     string `json:"error"`
}

// ListItemsInput is the input schema for the list_items tool.
type ListItemsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of items to return (default 50)"`
}

// ListItemsOutput is the output schema for the list_items tool.
type ListItemsOutput struct {
	Items []ItemOutput `json:"items"`
	Count int          `json:"count"`
}

// ItemOutput is a stored item.
type ItemOutput struct {
	Handle string `json:"handle"`
	Name   string `json:"name"`
	URI    string `json:"uri"`
}

// ListFiltersInput is the input schema for the list_filters tool.
type ListFiltersInput struct{}

// ListFiltersOutput is the output schema for the list_filters tool.
type ListFiltersOutput struct {
	Filters []FilterOutput `json:"filters"`
}

// FilterOutput describes a registered filter.
type FilterOutput struct {
	Name         string   `json:"name"`
	Bundle       string   `json:"bundle"`
	Format       string   `json:"format"`
	InputFormats []string `json:"input_formats"`
	Enabled      bool     `json:"enabled"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "filter_item",
		Description: "Run the media filters over one item and report derived bitstreams",
	}, s.handleFilterItem)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "filter_all",
		Description: "Run the media filters over every stored item",
	}, s.handleFilterAll)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_items",
		Description: "List stored items",
	}, s.handleListItems)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_filters",
		Description: "List the registered format filters",
	}, s.handleListFilters)
}

func (s *Server) handleFilterItem(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input FilterItemInput,
) (*mcp.CallToolResult, RunOutput, error) {
	if input.Handle == "" {
		return nil, RunOutput{}, fmt.Errorf("handle is required: %w", domain.ErrInvalidInput)
	}

	opts, err := s.runOptions(input.Force, input.Plugins, 0)
	if err != nil {
		return nil, RunOutput{}, err
	}
	report, err := s.ports.MediaFilter.ApplyItem(ctx, input.Handle, opts)
	if err != nil {
		return nil, RunOutput{}, err
	}
	return nil, runOutput(report), nil
}

func (s *Server) handleFilterAll(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input FilterAllInput,
) (*mcp.CallToolResult, RunOutput, error) {
	if input.MaxItems < 0 {
		return nil, RunOutput{}, fmt.Errorf("max_items must not be negative: %w", domain.ErrInvalidInput)
	}
	opts, err := s.runOptions(input.Force, input.Plugins, input.MaxItems)
	if err != nil {
		return nil, RunOutput{}, err
	}
	report, err := s.ports.MediaFilter.ApplyAll(ctx, opts)
	if err != nil {
		return nil, RunOutput{}, err
	}
	return nil, runOutput(report), nil
}

// runOptions starts from the configured run options and overlays the
// tool inputs. Inputs can only tighten or force; a configured skip list
// always applies.
func (s *Server) runOptions(force bool, plugins []string, maxItems int) (domain.RunOptions, error) {
	var opts domain.RunOptions
	if s.ports.Settings != nil {
		settings, err := s.ports.Settings.MediaFilter()
		if err != nil {
			return domain.RunOptions{}, fmt.Errorf("load settings: %w", err)
		}
		opts = settings.RunOptions()
	}
	if force {
		opts.Force = true
	}
	if len(plugins) > 0 {
		opts.Plugins = plugins
	}
	if maxItems > 0 {
		opts.MaxItems = maxItems
	}
	return opts, nil
}

func runOutput(report *domain.RunReport) RunOutput {
	if report == nil {
		return RunOutput{}
	}
	c := report.Counts()
	out := RunOutput{
		Items:   c.Items,
		Derived: c.Derived,
		Skipped: c.Skipped,
		Failed:  c.Failed,
	}
	for _, f := range report.Failures() {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		out.Failures = append(out.Failures, FailureOutput{
			Item:      f.ItemHandle,
			Bitstream: f.BitstreamName,
			Filter:    f.Filter,
			Error:     msg,
		})
	}
	return out
}

func (s *Server) handleListItems(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListItemsInput,
) (*mcp.CallToolResult, ListItemsOutput, error) {
	if s.ports.Items == nil {
		return nil, ListItemsOutput{Items: []ItemOutput{}}, nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}

	items, err := s.ports.Items.List(ctx)
	if err != nil {
		return nil, ListItemsOutput{}, err
	}
	if len(items) > limit {
		items = items[:limit]
	}

	output := ListItemsOutput{
		Items: make([]ItemOutput, len(items)),
		Count: len(items),
	}
	for i := range items {
		output.Items[i] = ItemOutput{
			Handle: items[i].Handle,
			Name:   items[i].Name,
			URI:    itemURI(items[i].Handle),
		}
	}
	return nil, output, nil
}

func (s *Server) handleListFilters(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListFiltersInput,
) (*mcp.CallToolResult, ListFiltersOutput, error) {
	filters, err := s.ports.MediaFilter.Filters(ctx)
	if err != nil {
		return nil, ListFiltersOutput{}, err
	}

	output := ListFiltersOutput{Filters: make([]FilterOutput, len(filters))}
	for i, f := range filters {
		output.Filters[i] = FilterOutput{
			Name:         f.Name,
			Bundle:       f.BundleName,
			Format:       f.FormatString,
			InputFormats: f.InputFormats,
			Enabled:      f.Enabled,
		}
	}
	return nil, output, nil
}
