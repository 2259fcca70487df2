package services

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driven"
)

// Ensure FilterRegistry implements the interface.
var _ driven.FilterRegistry = (*FilterRegistry)(nil)

// registryEntry is a registered filter with its effective configuration.
type registryEntry struct {
	name         string
	filter       driven.FormatFilter
	defaults     []string
	inputFormats []string
	enabled      bool
	when         *vm.Program
}

// FilterRegistry maps source formats to the filters that accept them.
// Entries keep their registration order; Configure may be called again at
// any time to apply new settings.
type FilterRegistry struct {
	mu      sync.RWMutex
	entries []*registryEntry
}

// NewFilterRegistry creates an empty filter registry.
func NewFilterRegistry() *FilterRegistry {
	return &FilterRegistry{}
}

// Register adds a filter under name with its default input formats.
func (r *FilterRegistry) Register(name string, filter driven.FormatFilter, inputFormats ...string) error {
	if filter == nil {
		return fmt.Errorf("%w: filter %q is nil", domain.ErrInvalidInput, name)
	}
	if err := validateFilterName(name); err != nil {
		return err
	}
	if err := ValidateDescriptor(domain.FilterDescriptor{
		Name:         name,
		BundleName:   filter.BundleName(),
		FormatString: filter.FormatString(),
		Description:  filter.Description(),
	}); err != nil {
		return err
	}

	entry := &registryEntry{
		name:         name,
		filter:       filter,
		defaults:     append([]string(nil), inputFormats...),
		inputFormats: append([]string(nil), inputFormats...),
		enabled:      true,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.name == name {
			r.entries[i] = entry
			return nil
		}
	}
	r.entries = append(r.entries, entry)
	return nil
}

// Configure applies per-filter settings. Settings for names that are not
// registered are ignored so a config file can mention optional filters.
func (r *FilterRegistry) Configure(settings domain.MediaFilterSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Compile everything first so a bad expression leaves the registry untouched.
	programs := make(map[string]*vm.Program, len(r.entries))
	for _, e := range r.entries {
		program, err := compileCondition(settings.Filter(e.name).When)
		if err != nil {
			return fmt.Errorf("filter %s: %w", e.name, err)
		}
		programs[e.name] = program
	}

	for _, e := range r.entries {
		fs := settings.Filter(e.name)
		e.enabled = fs.Enabled
		e.when = programs[e.name]
		if len(fs.InputFormats) > 0 {
			e.inputFormats = append([]string(nil), fs.InputFormats...)
		} else {
			e.inputFormats = append([]string(nil), e.defaults...)
		}
	}
	return nil
}

// Select returns the enabled filters applicable to a source bitstream.
func (r *FilterRegistry) Select(in driven.SelectInput, plugins []string) ([]driven.RegisteredFilter, error) {
	if in.Source == nil || in.Format == nil {
		return nil, domain.ErrInvalidInput
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var env map[string]any
	var selected []driven.RegisteredFilter
	for _, e := range r.entries {
		if !e.enabled || !containsString(e.inputFormats, in.Format.ShortDescription) {
			continue
		}
		if len(plugins) > 0 && !containsString(plugins, e.name) {
			continue
		}
		if e.when != nil {
			if env == nil {
				env = conditionEnv(in)
			}
			ok, err := evalCondition(e.when, env)
			if err != nil {
				return nil, fmt.Errorf("filter %s condition: %w", e.name, err)
			}
			if !ok {
				continue
			}
		}
		selected = append(selected, e.registered())
	}
	return selected, nil
}

// Get returns a registered filter by name.
func (r *FilterRegistry) Get(name string) (driven.RegisteredFilter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.name == name {
			return e.registered(), true
		}
	}
	return driven.RegisteredFilter{}, false
}

// List returns all registered filters in registration order.
func (r *FilterRegistry) List() []driven.RegisteredFilter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]driven.RegisteredFilter, 0, len(r.entries))
	for _, e := range r.entries {
		result = append(result, e.registered())
	}
	return result
}

// Enabled reports whether the named filter takes part in runs.
func (r *FilterRegistry) Enabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.name == name {
			return e.enabled
		}
	}
	return false
}

func (e *registryEntry) registered() driven.RegisteredFilter {
	return driven.RegisteredFilter{
		Name:         e.name,
		Filter:       e.filter,
		InputFormats: append([]string(nil), e.inputFormats...),
	}
}

// ValidateDescriptor checks the tuple a filter uses to classify its output.
func ValidateDescriptor(d domain.FilterDescriptor) error {
	err := validation.ValidateStruct(&d,
		validation.Field(&d.Name, validation.Required),
		validation.Field(&d.BundleName,
			validation.Required,
			validation.By(func(value any) error {
				if s, _ := value.(string); s != strings.ToUpper(s) {
					return validation.NewError("validation_bundle_case", "must be upper case")
				}
				return nil
			}),
		),
		validation.Field(&d.FormatString, validation.Required),
		validation.Field(&d.Description, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("%w: filter %s: %w", domain.ErrInvalidInput, d.Name, err)
	}
	return nil
}

// compileCondition compiles a selection expression. An empty expression
// compiles to nil, which always selects.
func compileCondition(when string) (*vm.Program, error) {
	if strings.TrimSpace(when) == "" {
		return nil, nil
	}
	program, err := expr.Compile(when, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("%w: invalid condition %q: %w", domain.ErrInvalidInput, when, err)
	}
	return program, nil
}

// conditionEnv exposes the source bitstream to selection expressions.
func conditionEnv(in driven.SelectInput) map[string]any {
	env := map[string]any{
		"name":   in.Source.Name,
		"size":   in.Source.Size,
		"format": in.Format.ShortDescription,
		"mime":   in.Format.MIMEType,
		"bundle": in.Bundle,
		"meta":   in.Source.Metadata,
	}
	if in.Item != nil {
		env["item"] = map[string]any{
			"handle":   in.Item.Handle,
			"name":     in.Item.Name,
			"metadata": in.Item.Metadata,
		}
	}
	return env
}

func evalCondition(program *vm.Program, env map[string]any) (bool, error) {
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, fmt.Errorf("condition returned %T, want bool", out)
	}
	return ok, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
