package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/mediafilter/internal/core/domain"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driven"
	"github.com/custodia-labs/mediafilter/internal/core/ports/driving"
	"github.com/custodia-labs/mediafilter/internal/logger"
)

// Ensure MediaFilterManager implements the interface.
var _ driving.MediaFilterService = (*MediaFilterManager)(nil)

// Skip reasons reported on skipped results.
const (
	reasonAlreadyFiltered = "already filtered"
	reasonDeclined        = "pre-process declined"
)

// MediaFilterManager runs the registered format filters over stored items.
// For every source bitstream in an item's ORIGINAL bundle it drives each
// applicable filter through pre-process, transform, persist and post-process.
// A failure is contained to the bitstream and filter it happened in.
type MediaFilterManager struct {
	itemStore      driven.ItemStore
	bitstreamStore driven.BitstreamStore
	formats        driven.FormatRegistry
	assets         driven.AssetStore
	registry       driven.FilterRegistry
	settings       domain.MediaFilterSettings

	// runMu guards running; only one run may be active at a time.
	runMu   sync.Mutex
	running bool

	// mu guards status and the report of the active run.
	mu     sync.Mutex
	status domain.RunStatus
}

// NewMediaFilterManager creates a media filter manager.
// Workers and ItemsPerSecond are taken from settings.
func NewMediaFilterManager(
	itemStore driven.ItemStore,
	bitstreamStore driven.BitstreamStore,
	formats driven.FormatRegistry,
	assets driven.AssetStore,
	registry driven.FilterRegistry,
	settings domain.MediaFilterSettings,
) *MediaFilterManager {
	if settings.Workers < 1 {
		settings.Workers = 1
	}
	if settings.Actor == "" {
		settings.Actor = domain.DefaultActor
	}
	return &MediaFilterManager{
		itemStore:      itemStore,
		bitstreamStore: bitstreamStore,
		formats:        formats,
		assets:         assets,
		registry:       registry,
		settings:       settings,
	}
}

// ApplyAll runs the applicable filters over every item, ordered by handle.
func (m *MediaFilterManager) ApplyAll(ctx context.Context, opts domain.RunOptions) (*domain.RunReport, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	items, err := m.itemStore.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	skip := make(map[string]bool, len(opts.SkipHandles))
	for _, h := range opts.SkipHandles {
		skip[h] = true
	}

	queue := make([]domain.Item, 0, len(items))
	for i := range items {
		if skip[items[i].Handle] {
			logger.Debug("skipping item %s", items[i].Handle)
			continue
		}
		if opts.MaxItems > 0 && len(queue) >= opts.MaxItems {
			break
		}
		queue = append(queue, items[i])
	}

	logger.Info("media filter: %d of %d items queued", len(queue), len(items))
	return m.run(ctx, queue, opts)
}

// ApplyItem runs the applicable filters over a single item.
func (m *MediaFilterManager) ApplyItem(ctx context.Context, handle string, opts domain.RunOptions) (*domain.RunReport, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	item, err := m.itemStore.GetItemByHandle(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", handle, err)
	}

	var queue []domain.Item
	if !containsString(opts.SkipHandles, handle) {
		queue = append(queue, *item)
	}
	return m.run(ctx, queue, opts)
}

// Status returns a snapshot of the active run. When no run is active the
// counters describe the last completed run.
func (m *MediaFilterManager) Status(_ context.Context) (*domain.RunStatus, error) {
	m.runMu.Lock()
	running := m.running
	m.runMu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	status := m.status
	status.Running = running
	return &status, nil
}

// Filters describes the registered filters.
func (m *MediaFilterManager) Filters(_ context.Context) ([]driving.FilterInfo, error) {
	registered := m.registry.List()
	infos := make([]driving.FilterInfo, 0, len(registered))
	for _, rf := range registered {
		infos = append(infos, driving.FilterInfo{
			FilterDescriptor: rf.Descriptor(),
			InputFormats:     rf.InputFormats,
			Enabled:          m.registry.Enabled(rf.Name),
		})
	}
	return infos, nil
}

func (m *MediaFilterManager) begin() error {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.running {
		return domain.ErrRunInProgress
	}
	m.running = true

	m.mu.Lock()
	m.status = domain.RunStatus{}
	m.mu.Unlock()
	return nil
}

func (m *MediaFilterManager) end() {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	m.running = false
}

// run processes the queued items on a bounded pool of workers.
func (m *MediaFilterManager) run(ctx context.Context, queue []domain.Item, opts domain.RunOptions) (*domain.RunReport, error) {
	report := &domain.RunReport{StartedAt: time.Now()}

	var limiter *rate.Limiter
	if m.settings.ItemsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(m.settings.ItemsPerSecond), 1)
	}

	workers := m.settings.Workers
	if opts.Workers > 0 {
		workers = opts.Workers
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	// waitErr is set when the limiter refuses a slot, e.g. because the next
	// slot lies past the context deadline.
	var waitErr error
	for i := range queue {
		if gctx.Err() != nil {
			break
		}
		if limiter != nil {
			if waitErr = limiter.Wait(gctx); waitErr != nil {
				break
			}
		}

		item := &queue[i]
		g.Go(func() error {
			results, err := m.filterItem(gctx, item, opts)
			m.record(report, results, err == nil)
			return err
		})
	}

	err := g.Wait()
	report.EndedAt = time.Now()

	// Results of one item stay together in bitstream then filter order
	sort.SliceStable(report.Results, func(i, j int) bool {
		return report.Results[i].ItemHandle < report.Results[j].ItemHandle
	})

	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		err = waitErr
	}
	if err != nil {
		return report, fmt.Errorf("media filter run: %w", err)
	}

	c := report.Counts()
	logger.Info("media filter: %d items, %d derived, %d skipped, %d failed",
		c.Items, c.Derived, c.Skipped, c.Failed)
	return report, nil
}

// record appends an item's results to the report and updates status.
func (m *MediaFilterManager) record(report *domain.RunReport, results []domain.BitstreamResult, completed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	report.Results = append(report.Results, results...)
	if completed {
		report.ItemsProcessed++
		m.status.ItemsProcessed++
	}
	for i := range results {
		switch results[i].State {
		case domain.StatePostProcessed:
			m.status.Derived++
		case domain.StateSkipped:
			m.status.Skipped++
		case domain.StateFailed:
			m.status.Failed++
			if results[i].DerivedID != "" {
				m.status.Derived++
			}
		}
	}
}

// filterItem applies the selected filters to every source bitstream of an
// item. Only context errors are returned; everything else becomes a result.
func (m *MediaFilterManager) filterItem(ctx context.Context, item *domain.Item, opts domain.RunOptions) ([]domain.BitstreamResult, error) {
	logger.Debug("filtering item %s", item.Handle)

	bundle, err := m.itemStore.GetBundle(ctx, item.ID, domain.BundleOriginal)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return m.itemFailure(ctx, item, fmt.Errorf("get original bundle: %w", err))
	}

	sources, err := m.bitstreamStore.ListBitstreams(ctx, bundle.ID)
	if err != nil {
		return m.itemFailure(ctx, item, fmt.Errorf("list bitstreams: %w", err))
	}

	var results []domain.BitstreamResult
	for i := range sources {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		src := &sources[i]

		format := m.sourceFormat(ctx, src)
		selected, err := m.registry.Select(driven.SelectInput{
			Item:   item,
			Bundle: domain.BundleOriginal,
			Source: src,
			Format: format,
		}, opts.Plugins)
		if err != nil {
			logger.Error("item %s: select filters for %s: %v", item.Handle, src.Name, err)
			res := newResult(item, src, "")
			res.State = domain.StateFailed
			res.Err = fmt.Errorf("select filters: %w", err)
			results = append(results, res)
			continue
		}

		for _, rf := range selected {
			res := m.applyFilter(ctx, item, src, rf, opts)
			if res.State == domain.StateFailed && ctx.Err() != nil {
				return results, ctx.Err()
			}
			results = append(results, res)
		}
	}
	return results, nil
}

func (m *MediaFilterManager) itemFailure(ctx context.Context, item *domain.Item, err error) ([]domain.BitstreamResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	logger.Error("item %s: %v", item.Handle, err)
	return []domain.BitstreamResult{{
		ItemID:     item.ID,
		ItemHandle: item.Handle,
		State:      domain.StateFailed,
		Err:        err,
	}}, nil
}

// sourceFormat resolves the registry entry of a source, falling back to the
// unknown format.
func (m *MediaFilterManager) sourceFormat(ctx context.Context, src *domain.Bitstream) *domain.BitstreamFormat {
	if src.FormatID != "" {
		if format, err := m.formats.GetFormat(ctx, src.FormatID); err == nil {
			return format
		}
	}
	return &domain.BitstreamFormat{ShortDescription: domain.FormatUnknown}
}

// applyFilter drives one filter over one source bitstream.
//
//nolint:gocyclo // Sequential state machine; each phase has its own exit
func (m *MediaFilterManager) applyFilter(
	ctx context.Context,
	item *domain.Item,
	src *domain.Bitstream,
	rf driven.RegisteredFilter,
	opts domain.RunOptions,
) domain.BitstreamResult {
	f := rf.Filter
	res := newResult(item, src, rf.Name)
	targetName := f.FilteredName(src.Name)

	fail := func(kind domain.ErrorKind, err error) domain.BitstreamResult {
		res.State = domain.StateFailed
		res.Err = &domain.FilterError{Kind: kind, Filter: rf.Name, BitstreamID: src.ID, Err: err}
		logger.Error("item %s: %v", item.Handle, res.Err)
		return res
	}
	skip := func(reason string) domain.BitstreamResult {
		res.State = domain.StateSkipped
		res.SkipReason = reason
		logger.Debug("item %s: %s skipped by %s: %s", item.Handle, src.Name, rf.Name, reason)
		return res
	}

	// Discovered
	existing, err := m.findDerived(ctx, item.ID, f.BundleName(), targetName)
	if err != nil {
		return fail(domain.KindPreProcessFailed, fmt.Errorf("look up %s: %w", targetName, err))
	}
	if !opts.Force && upToDate(existing, src) {
		return skip(reasonAlreadyFiltered)
	}

	sess := &filterSession{
		actor:          m.settings.Actor,
		assets:         m.assets,
		bitstreamStore: m.bitstreamStore,
	}

	proceed, err := f.PreProcess(ctx, sess, item, src, opts.Verbose)
	if errors.Is(err, domain.ErrSkipRequested) {
		return skip(err.Error())
	}
	if err != nil {
		return fail(domain.KindPreProcessFailed, err)
	}
	if !proceed {
		return skip(reasonDeclined)
	}
	res.State = domain.StatePreProcessed

	// The output format must resolve before any work is done
	format, err := m.formats.FindByShortDescription(ctx, f.FormatString())
	if errors.Is(err, domain.ErrNotFound) {
		return fail(domain.KindPersistFailed, fmt.Errorf("%w: %q", domain.ErrUnknownFormat, f.FormatString()))
	}
	if err != nil {
		return fail(domain.KindPersistFailed, fmt.Errorf("resolve format %q: %w", f.FormatString(), err))
	}

	in, err := m.assets.Open(ctx, src.StoreKey)
	if err != nil {
		return fail(domain.KindTransformFailed, fmt.Errorf("open source: %w", err))
	}
	defer in.Close()

	out, err := f.Transform(ctx, item, in, opts.Verbose)
	if errors.Is(err, domain.ErrSkipRequested) {
		return skip(err.Error())
	}
	if err != nil {
		return fail(domain.KindTransformFailed, err)
	}
	if out == nil {
		return fail(domain.KindTransformFailed, errors.New("transform returned no content"))
	}
	defer out.Close()
	res.State = domain.StateTransformed

	derived, err := m.persist(ctx, item, src, f, rf.Name, format, targetName, out)
	if err != nil {
		return fail(domain.KindPersistFailed, err)
	}
	res.State = domain.StatePersisted
	res.DerivedID = derived.ID
	m.removeStale(ctx, item, existing)

	if err := f.PostProcess(ctx, sess, item, derived); err != nil {
		return fail(domain.KindFinalizeFailed, err)
	}

	res.State = domain.StatePostProcessed
	logger.Info("item %s: %s -> %s/%s", item.Handle, src.Name, f.BundleName(), targetName)
	return res
}

// findDerived returns the bitstreams named name in the item's bundle.
func (m *MediaFilterManager) findDerived(ctx context.Context, itemID, bundleName, name string) ([]domain.Bitstream, error) {
	bundle, err := m.itemStore.GetBundle(ctx, itemID, bundleName)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.bitstreamStore.FindByName(ctx, bundle.ID, name)
}

// upToDate reports whether the newest existing derived bitstream was
// produced from the current content of src.
func upToDate(existing []domain.Bitstream, src *domain.Bitstream) bool {
	if len(existing) == 0 {
		return false
	}
	latest := existing[len(existing)-1]
	return latest.Metadata[domain.MetaSourceChecksum] == src.Checksum
}

// persist stores derived content and its bitstream record. On failure any
// content already written is removed.
func (m *MediaFilterManager) persist(
	ctx context.Context,
	item *domain.Item,
	src *domain.Bitstream,
	f driven.FormatFilter,
	filterName string,
	format *domain.BitstreamFormat,
	name string,
	content io.Reader,
) (*domain.Bitstream, error) {
	asset, err := m.assets.Put(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("store content: %w", err)
	}

	cleanup := func() {
		if err := m.assets.Delete(context.WithoutCancel(ctx), asset.Key); err != nil {
			logger.Warn("remove orphaned asset %s: %v", asset.Key, err)
		}
	}

	bundle, err := m.itemStore.EnsureBundle(ctx, item.ID, f.BundleName())
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("ensure bundle %s: %w", f.BundleName(), err)
	}

	derived := &domain.Bitstream{
		ID:          uuid.New().String(),
		ItemID:      item.ID,
		BundleID:    bundle.ID,
		Name:        name,
		Description: f.Description(),
		FormatID:    format.ID,
		Size:        asset.Size,
		Checksum:    asset.Checksum,
		StoreKey:    asset.Key,
		Metadata: map[string]string{
			domain.MetaSourceID:       src.ID,
			domain.MetaSourceChecksum: src.Checksum,
		},
		CreatedAt: time.Now(),
	}
	if err := m.bitstreamStore.SaveBitstream(ctx, derived); err != nil {
		cleanup()
		return nil, fmt.Errorf("save bitstream: %w", err)
	}

	logger.Debug("stored %s (%d bytes) for filter %s", derived.ID, derived.Size, filterName)
	return derived, nil
}

// removeStale deletes derived bitstreams replaced by a newer one.
func (m *MediaFilterManager) removeStale(ctx context.Context, item *domain.Item, stale []domain.Bitstream) {
	ctx = context.WithoutCancel(ctx)
	for i := range stale {
		bs := &stale[i]
		if err := m.bitstreamStore.DeleteBitstream(ctx, bs.ID); err != nil {
			logger.Warn("item %s: remove replaced bitstream %s: %v", item.Handle, bs.ID, err)
			continue
		}
		if err := m.assets.Delete(ctx, bs.StoreKey); err != nil {
			logger.Warn("item %s: remove replaced content %s: %v", item.Handle, bs.StoreKey, err)
		}
	}
}

func newResult(item *domain.Item, src *domain.Bitstream, filter string) domain.BitstreamResult {
	return domain.BitstreamResult{
		ItemID:        item.ID,
		ItemHandle:    item.Handle,
		BitstreamID:   src.ID,
		BitstreamName: src.Name,
		Filter:        filter,
		State:         domain.StateDiscovered,
	}
}

// Ensure filterSession implements the interface.
var _ driven.FilterSession = (*filterSession)(nil)

// filterSession is the scope handed to filter hooks during a run.
type filterSession struct {
	actor          string
	assets         driven.AssetStore
	bitstreamStore driven.BitstreamStore
}

func (s *filterSession) Actor() string {
	return s.actor
}

func (s *filterSession) Open(ctx context.Context, bs *domain.Bitstream) (io.ReadCloser, error) {
	if bs == nil || bs.StoreKey == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.assets.Open(ctx, bs.StoreKey)
}

// UpdateBitstream saves the name, description and metadata of bs. Content
// fields always keep their stored values.
func (s *filterSession) UpdateBitstream(ctx context.Context, bs *domain.Bitstream) error {
	if bs == nil {
		return domain.ErrInvalidInput
	}
	stored, err := s.bitstreamStore.GetBitstream(ctx, bs.ID)
	if err != nil {
		return fmt.Errorf("get bitstream: %w", err)
	}
	stored.Name = bs.Name
	stored.Description = bs.Description
	stored.Metadata = bs.Metadata
	if err := s.bitstreamStore.SaveBitstream(ctx, stored); err != nil {
		return fmt.Errorf("update bitstream: %w", err)
	}
	return nil
}
