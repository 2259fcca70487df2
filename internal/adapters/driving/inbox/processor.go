package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driving"
	"github.com/custodia-labs/mediafilter/internal/logger"
)

const (
	// DoneDir is the inbox subdirectory imported files are moved to.
	DoneDir = ".imported"

	// DefaultSettle is how long a file must stay unchanged before import.
	DefaultSettle = 2 * time.Second
)

// Outcome is the result of importing one inbox file.
type Outcome struct {
	Arrival Arrival
	Item    *domain.Item
	Report  *domain.RunReport
	Err     error
}

// Processor imports inbox files as new items and filters them.
type Processor struct {
	items  driving.ItemService
	filter driving.MediaFilterService
	dir    string
	opts   domain.RunOptions
	settle time.Duration
}

// NewProcessor creates a processor for the inbox at dir. A nil filter
// service imports without filtering.
func NewProcessor(items driving.ItemService, filter driving.MediaFilterService, dir string, opts domain.RunOptions, settle time.Duration) *Processor {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Processor{
		items:  items,
		filter: filter,
		dir:    dir,
		opts:   opts,
		settle: settle,
	}
}

// Process imports one file into a new item, moves it to DoneDir and runs
// the media filter over the item. A busy media filter is not an error; the
// item is filtered by the next run.
func (p *Processor) Process(ctx context.Context, a Arrival) Outcome {
	out := Outcome{Arrival: a}

	f, err := os.Open(a.Path)
	if err != nil {
		out.Err = fmt.Errorf("open %s: %w", a.Name, err)
		return out
	}

	item, err := p.items.Import(ctx, driving.ImportRequest{
		Name:  a.Name,
		Files: []driving.ImportFile{{Name: a.Name, Content: f}},
	})
	f.Close()
	if err != nil {
		out.Err = fmt.Errorf("import %s: %w", a.Name, err)
		return out
	}
	out.Item = item

	if err := p.markDone(a); err != nil {
		logger.Warn("inbox: %v", err)
	}

	if p.filter == nil {
		return out
	}

	report, err := p.filter.ApplyItem(ctx, item.Handle, p.opts)
	if errors.Is(err, domain.ErrRunInProgress) {
		logger.Info("inbox: media filter busy, %s is filtered by the next run", item.Handle)
		return out
	}
	out.Report = report
	if err != nil {
		out.Err = fmt.Errorf("filter %s: %w", item.Handle, err)
	}
	return out
}

// markDone moves an imported file out of the inbox.
func (p *Processor) markDone(a Arrival) error {
	done := filepath.Join(p.dir, DoneDir)
	if err := os.MkdirAll(done, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", DoneDir, err)
	}

	target := filepath.Join(done, a.Name)
	if _, err := os.Stat(target); err == nil {
		target = filepath.Join(done, strconv.FormatInt(time.Now().UnixNano(), 10)+"-"+a.Name)
	}
	if err := os.Rename(a.Path, target); err != nil {
		return fmt.Errorf("move %s: %w", a.Name, err)
	}
	return nil
}

// Run processes arrivals until ctx is cancelled or the channel closes.
// A file is processed once no event for it was seen for the settle time.
// Each outcome is passed to report.
func (p *Processor) Run(ctx context.Context, arrivals <-chan Arrival, report func(Outcome)) error {
	pending := make(map[string]pendingFile)

	ticker := time.NewTicker(p.settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a, ok := <-arrivals:
			if !ok {
				return nil
			}
			pending[a.Path] = pendingFile{arrival: a, seen: time.Now()}
		case now := <-ticker.C:
			for path, pf := range pending {
				if now.Sub(pf.seen) < p.settle {
					continue
				}
				delete(pending, path)
				if _, err := os.Stat(path); err != nil {
					// Removed or already moved
					continue
				}
				outcome := p.Process(ctx, pf.arrival)
				if report != nil {
					report(outcome)
				}
			}
		}
	}
}

type pendingFile struct {
	arrival Arrival
	seen    time.Time
}
