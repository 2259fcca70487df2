package domain

import (
	"fmt"
	"time"
)

// FilterDescriptor is the tuple a filter contributes to classify its output.
type FilterDescriptor struct {
	// Name is the registry name of the filter (e.g. "pdf").
	Name string

	// BundleName is where generated bitstreams are stored.
	BundleName string

	// FormatString must resolve against the format registry.
	FormatString string

	// Description labels generated bitstreams.
	Description string
}

// ProcessState is the position of one source bitstream in the filter pipeline.
type ProcessState int

const (
	// StateDiscovered means the bitstream was selected for a filter.
	StateDiscovered ProcessState = iota

	// StatePreProcessed means the filter agreed to process the bitstream.
	StatePreProcessed

	// StateTransformed means the derived stream was produced.
	StateTransformed

	// StatePersisted means the derived bitstream was stored.
	StatePersisted

	// StatePostProcessed means finalisation completed; the bitstream is done.
	StatePostProcessed

	// StateSkipped means processing stopped without a failure.
	StateSkipped

	// StateFailed means a phase returned an error.
	StateFailed
)

// String returns the state name.
func (s ProcessState) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StatePreProcessed:
		return "pre-processed"
	case StateTransformed:
		return "transformed"
	case StatePersisted:
		return "persisted"
	case StatePostProcessed:
		return "done"
	case StateSkipped:
		return "skipped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrorKind identifies the pipeline phase that failed.
type ErrorKind int

const (
	// KindPreProcessFailed is a failure inside PreProcess.
	KindPreProcessFailed ErrorKind = iota + 1

	// KindTransformFailed is a failure producing the derived stream.
	KindTransformFailed

	// KindPersistFailed is a failure storing the derived bitstream.
	KindPersistFailed

	// KindFinalizeFailed is a failure in PostProcess after persistence.
	KindFinalizeFailed
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindPreProcessFailed:
		return "pre-process failed"
	case KindTransformFailed:
		return "transform failed"
	case KindPersistFailed:
		return "persist failed"
	case KindFinalizeFailed:
		return "finalize failed"
	default:
		return "unknown failure"
	}
}

// FilterError reports a phase failure for one bitstream and filter.
type FilterError struct {
	Kind        ErrorKind
	Filter      string
	BitstreamID string
	Err         error
}

// Error implements the error interface.
func (e *FilterError) Error() string {
	return fmt.Sprintf("%s: filter %s on bitstream %s: %v", e.Kind, e.Filter, e.BitstreamID, e.Err)
}

// Unwrap returns the underlying error for errors.Is and errors.As.
func (e *FilterError) Unwrap() error {
	return e.Err
}

// BitstreamResult is the outcome of one filter applied to one source bitstream.
type BitstreamResult struct {
	ItemID        string
	ItemHandle    string
	BitstreamID   string
	BitstreamName string
	Filter        string

	// State is the final state reached.
	State ProcessState

	// DerivedID is the generated bitstream, set once persisted.
	DerivedID string

	// SkipReason explains a StateSkipped result.
	SkipReason string

	// Err is set when State is StateFailed, or when finalisation failed.
	Err error
}

// RunCounts summarises a RunReport.
type RunCounts struct {
	Items    int
	Derived  int
	Skipped  int
	Failed   int
	Finalize int
}

// RunReport is the outcome of a media filter run.
type RunReport struct {
	StartedAt      time.Time
	EndedAt        time.Time
	ItemsProcessed int
	Results        []BitstreamResult
}

// Counts tallies results by outcome.
// Finalize counts derived bitstreams whose PostProcess failed; they are also
// counted as Derived because the bitstream stays persisted.
func (r *RunReport) Counts() RunCounts {
	c := RunCounts{Items: r.ItemsProcessed}
	for i := range r.Results {
		res := &r.Results[i]
		switch res.State {
		case StatePostProcessed:
			c.Derived++
		case StateSkipped:
			c.Skipped++
		case StateFailed:
			c.Failed++
			if res.DerivedID != "" {
				c.Derived++
				c.Finalize++
			}
		}
	}
	return c
}

// Failures returns the failed results.
func (r *RunReport) Failures() []BitstreamResult {
	var out []BitstreamResult
	for i := range r.Results {
		if r.Results[i].State == StateFailed {
			out = append(out, r.Results[i])
		}
	}
	return out
}

// RunOptions controls a media filter run.
type RunOptions struct {
	// Force re-creates derived bitstreams that already exist.
	Force bool

	// MaxItems stops the run after this many items (0 = no limit).
	MaxItems int

	// Plugins restricts the run to the named filters (empty = all enabled).
	Plugins []string

	// SkipHandles lists item handles to leave untouched.
	SkipHandles []string

	// Workers overrides the configured worker count (0 = configured).
	Workers int

	// Verbose is passed through to the filters.
	Verbose bool
}

// RunStatus is a snapshot of the active run.
type RunStatus struct {
	Running        bool
	ItemsProcessed int
	Derived        int
	Skipped        int
	Failed         int
}
