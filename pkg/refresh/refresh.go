package refresh

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	apperrors "github.com/Rohianon/folio/pkg/errors"
	"github.com/Rohianon/folio/pkg/logger"
	"github.com/Rohianon/folio/pkg/metrics"
	"github.com/Rohianon/folio/pkg/portfolio"
	"github.com/Rohianon/folio/pkg/state"
	"github.com/Rohianon/folio/pkg/telemetry"
)

type Trigger string

const (
	TriggerInitial Trigger = "initial"
	TriggerTick    Trigger = "tick"
	TriggerManual  Trigger = "manual"
)

type Phase int

const (
	Idle Phase = iota
	Fetching
	Rendering
)

func (p Phase) String() string {
	switch p {
	case Fetching:
		return "fetching"
	case Rendering:
		return "rendering"
	default:
		return "idle"
	}
}

var (
	ErrNoHolder  = apperrors.New("NO_HOLDER", "No holder selected", 0)
	ErrInFlight  = apperrors.New("IN_FLIGHT", "A refresh is already running", 0)
	ErrThrottled = apperrors.New("THROTTLED", "Refresh requested too quickly", 0)
	ErrStale     = apperrors.New("STALE", "Refresh result superseded", 0)
)

// AllCollections is fetched when Options.Collections is empty.
var AllCollections = []state.Collection{
	state.Holders,
	state.Holdings,
	state.Stocks,
	state.Analytics,
	state.Recommendations,
	state.HeatMap,
	state.Diversification,
	state.Movers,
	state.Sectors,
	state.Insights,
}

type Options struct {
	// Collections limits what a cycle fetches. Holder-scoped collections
	// are skipped while no holder is selected.
	Collections []state.Collection

	// Manual refreshes are allowed once per ManualEvery, with ManualBurst
	// headroom. Zero ManualEvery disables throttling.
	ManualEvery time.Duration
	ManualBurst int

	// MaxConcurrent bounds parallel fetches within a cycle; 0 means no limit.
	MaxConcurrent int

	OnRender func(state.Snapshot, portfolio.Summary)
	OnError  func(error)

	Now func() time.Time
}

// Result describes an applied cycle.
type Result struct {
	Trigger    Trigger
	Generation uint64
	Sequence   uint64
	Snapshot   state.Snapshot
	Summary    portfolio.Summary
	Duration   time.Duration

	// Err joins the per-collection failures of this cycle. Whatever did
	// succeed was still applied.
	Err error
}

// Controller drives fetch → store → derive → render cycles. It is the only
// writer of its store.
type Controller struct {
	source  Source
	store   *state.Store
	opts    Options
	limiter *rate.Limiter

	mu          sync.Mutex
	phase       Phase
	generation  uint64
	issued      uint64
	applied     uint64
	inFlight    bool
	inFlightGen uint64
	cancel      context.CancelFunc
}

func New(source Source, store *state.Store, opts Options) *Controller {
	if len(opts.Collections) == 0 {
		opts.Collections = AllCollections
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.ManualEvery > 0 {
		burst := max(opts.ManualBurst, 1)
		limiter = rate.NewLimiter(rate.Every(opts.ManualEvery), burst)
	}

	return &Controller{
		source:  source,
		store:   store,
		opts:    opts,
		limiter: limiter,
	}
}

func (c *Controller) Store() *state.Store {
	return c.store
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Generation changes every time the selected holder changes.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// SelectHolder switches the selection. Any cycle still running for the
// previous selection is cancelled and its result will be discarded.
func (c *Controller) SelectHolder(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.inFlight = false
	c.phase = Idle
	c.store.ResetForHolder(id)

	logger.Info().
		Int64("holder_id", id).
		Uint64("generation", c.generation).
		Msg("Holder selected")
}

// Refresh runs one cycle. The returned error is non-nil only when nothing
// was applied: ErrNoHolder, ErrInFlight, ErrThrottled or ErrStale.
// Collection failures are reported through Result.Err and OnError.
func (c *Controller) Refresh(ctx context.Context, trigger Trigger) (Result, error) {
	start := c.opts.Now()

	gen, seq, holderID, cycleCtx, err := c.begin(ctx, trigger)
	if err != nil {
		metrics.RecordRefresh(string(trigger), outcomeFor(err), 0)
		logger.Debug().Str("trigger", string(trigger)).Err(err).Msg("Refresh skipped")
		return Result{}, err
	}

	cycleCtx, span := telemetry.StartSpan(cycleCtx, "refresh")
	span.SetAttributes(
		attribute.String("trigger", string(trigger)),
		attribute.Int64("holder.id", holderID),
		attribute.Int64("generation", int64(gen)),
	)
	defer span.End()

	partial := c.fetch(cycleCtx, holderID)
	partial.At = c.opts.Now()

	result, err := c.apply(trigger, gen, seq, holderID, partial)
	result.Duration = c.opts.Now().Sub(start)

	if err != nil {
		metrics.RecordStaleDiscard()
		metrics.RecordRefresh(string(trigger), outcomeFor(err), result.Duration)
		logger.Debug().
			Str("trigger", string(trigger)).
			Uint64("generation", gen).
			Uint64("sequence", seq).
			Msg("Discarded stale refresh result")
		return Result{}, err
	}

	outcome := "ok"
	if result.Err != nil {
		outcome = "partial"
		if partial.Empty() {
			outcome = "failed"
		}
		telemetry.RecordError(cycleCtx, result.Err)
	}
	metrics.RecordRefresh(string(trigger), outcome, result.Duration)

	if result.Err != nil && c.opts.OnError != nil {
		c.opts.OnError(result.Err)
	}

	c.render(gen, seq, result)

	logger.Debug().
		Str("trigger", string(trigger)).
		Int64("holder_id", holderID).
		Str("outcome", outcome).
		Dur("duration", result.Duration).
		Msg("Refresh applied")

	return result, nil
}

func (c *Controller) begin(ctx context.Context, trigger Trigger) (uint64, uint64, int64, context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	holderID := c.store.SelectedHolder()
	if trigger == TriggerTick && holderID == 0 {
		return 0, 0, 0, nil, ErrNoHolder
	}
	if c.inFlight && c.inFlightGen == c.generation {
		return 0, 0, 0, nil, ErrInFlight
	}
	if trigger == TriggerManual && !c.limiter.Allow() {
		return 0, 0, 0, nil, ErrThrottled
	}

	c.issued++
	c.inFlight = true
	c.inFlightGen = c.generation
	c.phase = Fetching

	cycleCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	return c.generation, c.issued, holderID, cycleCtx, nil
}

// apply writes the cycle into the store if it is still current.
func (c *Controller) apply(trigger Trigger, gen, seq uint64, holderID int64, p state.Partial) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := gen == c.generation
	if current && c.inFlightGen == gen {
		c.inFlight = false
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
	}

	if !current || seq <= c.applied {
		if current {
			c.phase = Idle
		}
		return Result{}, ErrStale
	}
	c.applied = seq

	c.store.Update(p)

	snap := c.store.Snapshot()
	summary := portfolio.Aggregate(snap.Holdings, snap.StockMap())

	if holderID != 0 && snap.Holdings != nil && (p.Holdings != nil || p.Stocks != nil) {
		c.store.AppendHistory(portfolio.HistoryPoint(summary, p.At))
		snap = c.store.Snapshot()
	}

	c.phase = Rendering

	return Result{
		Trigger:    trigger,
		Generation: gen,
		Sequence:   seq,
		Snapshot:   snap,
		Summary:    summary,
		Err:        joinErrors(p.Errors),
	}, nil
}

func (c *Controller) render(gen, seq uint64, result Result) {
	if c.opts.OnRender != nil {
		c.opts.OnRender(result.Snapshot, result.Summary)
	}

	c.mu.Lock()
	if c.generation == gen && c.applied == seq {
		c.phase = Idle
	}
	c.mu.Unlock()
}

// fetch loads every configured collection concurrently. A failing
// collection records its error and never cancels the others.
func (c *Controller) fetch(ctx context.Context, holderID int64) state.Partial {
	var (
		mu sync.Mutex
		p  = state.Partial{Errors: map[state.Collection]error{}}
		g  errgroup.Group
	)
	if c.opts.MaxConcurrent > 0 {
		g.SetLimit(c.opts.MaxConcurrent)
	}

	record := func(coll state.Collection, err error, set func()) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			p.Errors[coll] = err
			logger.Warn().Err(err).Str("collection", string(coll)).Msg("Refresh collection failed")
			return
		}
		set()
	}

	for _, coll := range c.opts.Collections {
		if holderID == 0 && (coll == state.Holdings || coll == state.Analytics) {
			continue
		}

		g.Go(func() error {
			switch coll {
			case state.Holders:
				v, err := c.source.Holders(ctx)
				record(coll, err, func() { p.Holders = nonNil(v) })
			case state.Holdings:
				v, err := c.source.Holdings(ctx, holderID)
				record(coll, err, func() { p.Holdings = nonNil(v) })
			case state.Stocks:
				v, err := c.source.Stocks(ctx)
				record(coll, err, func() { p.Stocks = nonNil(v) })
			case state.Analytics:
				v, err := c.source.Analytics(ctx, holderID)
				record(coll, err, func() { p.Analytics = v })
			case state.Recommendations:
				v, err := c.source.Recommendations(ctx)
				record(coll, err, func() { p.Recommendations = nonNil(v) })
			case state.HeatMap:
				v, err := c.source.HeatMap(ctx)
				record(coll, err, func() { p.HeatMap = nonNil(v) })
			case state.Diversification:
				v, err := c.source.Diversification(ctx)
				record(coll, err, func() { p.Diversification = v })
			case state.Movers:
				v, err := c.source.Movers(ctx)
				record(coll, err, func() { p.Movers = v })
			case state.Sectors:
				v, err := c.source.Sectors(ctx)
				record(coll, err, func() { p.Sectors = v })
			case state.Insights:
				v, err := c.source.Insights(ctx)
				record(coll, err, func() { p.Insights = v })
			}
			return nil
		})
	}
	_ = g.Wait()

	return p
}

func nonNil[T any](v []T) *[]T {
	if v == nil {
		v = []T{}
	}
	return &v
}

// joinErrors orders failures by collection name so the message is stable.
func joinErrors(errs map[state.Collection]error) error {
	if len(errs) == 0 {
		return nil
	}
	colls := make([]state.Collection, 0, len(errs))
	for coll := range errs {
		colls = append(colls, coll)
	}
	slices.Sort(colls)

	wrapped := make([]error, 0, len(colls))
	for _, coll := range colls {
		wrapped = append(wrapped, fmt.Errorf("%s: %w", coll, errs[coll]))
	}
	return errors.Join(wrapped...)
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrNoHolder):
		return "no_holder"
	case errors.Is(err, ErrInFlight):
		return "in_flight"
	case errors.Is(err, ErrThrottled):
		return "throttled"
	case errors.Is(err, ErrStale):
		return "stale"
	default:
		return "error"
	}
}
