package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/Rohianon/folio/pkg/errors"
	"github.com/Rohianon/folio/pkg/models"
	"github.com/Rohianon/folio/pkg/portfolio"
	"github.com/Rohianon/folio/pkg/state"
)

type fakeSource struct {
	mu       sync.Mutex
	holdings map[int64][]models.Holding
	stocks   []models.Stock
	failures map[state.Collection]error

	// holdingsHook, when set, replaces the holdings lookup.
	holdingsHook func(ctx context.Context, holderID int64) ([]models.Holding, error)

	holdingsCalls atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		holdings: map[int64][]models.Holding{
			1: {
				{ID: 1, HolderID: 1, StockSymbol: "AAPL", Quantity: 10, AvgPrice: 100},
				{ID: 2, HolderID: 1, StockSymbol: "MSFT", Quantity: 5, AvgPrice: 200},
			},
			2: {
				{ID: 3, HolderID: 2, StockSymbol: "TCS", Quantity: 2, AvgPrice: 3000},
			},
		},
		stocks: []models.Stock{
			{Symbol: "AAPL", Sector: "Technology", CurrentPrice: 120, Volatility: 0.2, ConfidenceScore: 85},
			{Symbol: "MSFT", Sector: "Software", CurrentPrice: 190, Volatility: 0.35, ConfidenceScore: 65},
			{Symbol: "TCS", Sector: "IT", CurrentPrice: 3500, Volatility: 0.25, ConfidenceScore: 70},
		},
		failures: map[state.Collection]error{},
	}
}

func (f *fakeSource) fail(c state.Collection, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[c] = err
}

func (f *fakeSource) failure(c state.Collection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures[c]
}

func (f *fakeSource) Holders(ctx context.Context) ([]models.Holder, error) {
	if err := f.failure(state.Holders); err != nil {
		return nil, err
	}
	return []models.Holder{{ID: 1, Name: "Asha"}, {ID: 2, Name: "Ravi"}}, nil
}

func (f *fakeSource) Holdings(ctx context.Context, holderID int64) ([]models.Holding, error) {
	f.holdingsCalls.Add(1)
	if f.holdingsHook != nil {
		return f.holdingsHook(ctx, holderID)
	}
	if err := f.failure(state.Holdings); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.holdings[holderID], nil
}

func (f *fakeSource) Stocks(ctx context.Context) ([]models.Stock, error) {
	if err := f.failure(state.Stocks); err != nil {
		return nil, err
	}
	return f.stocks, nil
}

func (f *fakeSource) Analytics(ctx context.Context, holderID int64) (*models.Analytics, error) {
	if err := f.failure(state.Analytics); err != nil {
		return nil, err
	}
	return &models.Analytics{RiskScore: 27}, nil
}

func (f *fakeSource) Recommendations(ctx context.Context) ([]models.Recommendation, error) {
	if err := f.failure(state.Recommendations); err != nil {
		return nil, err
	}
	return []models.Recommendation{{Symbol: "AAPL", Action: models.ActionBuy, Score: 85}}, nil
}

func (f *fakeSource) HeatMap(ctx context.Context) ([]models.HeatEntry, error) {
	return []models.HeatEntry{{Symbol: "AAPL", HeatScore: 80}}, f.failure(state.HeatMap)
}

func (f *fakeSource) Diversification(ctx context.Context) (*models.Diversification, error) {
	return &models.Diversification{DiversificationScore: 40}, nil
}

func (f *fakeSource) Movers(ctx context.Context) (*models.MarketMovers, error) {
	return &models.MarketMovers{}, nil
}

func (f *fakeSource) Sectors(ctx context.Context) (*models.SectorPerformance, error) {
	return &models.SectorPerformance{}, nil
}

func (f *fakeSource) Insights(ctx context.Context) (*models.AIInsights, error) {
	return &models.AIInsights{Title: "Markets steady"}, nil
}

func TestRefresh_InitialAppliesAndRenders(t *testing.T) {
	src := newFakeSource()
	store := state.New(5)

	var renders []portfolio.Summary
	c := New(src, store, Options{
		OnRender: func(_ state.Snapshot, s portfolio.Summary) { renders = append(renders, s) },
		OnError:  func(err error) { t.Errorf("unexpected OnError(%v)", err) },
	})
	c.SelectHolder(1)

	res, err := c.Refresh(context.Background(), TriggerInitial)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if res.Err != nil {
		t.Errorf("Result.Err = %v, want nil", res.Err)
	}

	if len(renders) != 1 {
		t.Fatalf("OnRender called %d times, want 1", len(renders))
	}
	s := renders[0]
	if s.TotalInvested != 2000 || s.CurrentValue != 2150 || s.ProfitLoss != 150 || s.ProfitLossPercent != 7.5 {
		t.Errorf("Summary = invested %v current %v pl %v pct %v", s.TotalInvested, s.CurrentValue, s.ProfitLoss, s.ProfitLossPercent)
	}

	if len(res.Snapshot.History) != 1 || res.Snapshot.History[0].Value != 2150 {
		t.Errorf("History = %+v, want one point at 2150", res.Snapshot.History)
	}
	if len(res.Snapshot.Recommendations) != 1 || res.Snapshot.Insights == nil {
		t.Error("market-wide collections should be applied")
	}
	if c.Phase() != Idle {
		t.Errorf("Phase() = %v, want idle", c.Phase())
	}
}

func TestRefresh_TickWithoutHolderIsSkipped(t *testing.T) {
	src := newFakeSource()
	c := New(src, state.New(5), Options{})

	_, err := c.Refresh(context.Background(), TriggerTick)
	if !errors.Is(err, ErrNoHolder) {
		t.Fatalf("Refresh() error = %v, want ErrNoHolder", err)
	}
	if src.holdingsCalls.Load() != 0 {
		t.Error("a skipped tick must not fetch")
	}
}

func TestRefresh_InitialWithoutHolderSkipsHolderScoped(t *testing.T) {
	src := newFakeSource()
	c := New(src, state.New(5), Options{})

	res, err := c.Refresh(context.Background(), TriggerInitial)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if src.holdingsCalls.Load() != 0 {
		t.Error("holdings should not be fetched without a holder")
	}
	if len(res.Snapshot.Holders) != 2 {
		t.Errorf("Holders = %d, want 2", len(res.Snapshot.Holders))
	}
	if len(res.Snapshot.History) != 0 {
		t.Error("no history point without a holder")
	}
}

func TestRefresh_HTTPFailureKeepsPriorState(t *testing.T) {
	src := newFakeSource()
	store := state.New(5)

	var notifications []error
	var rendered []state.Snapshot
	c := New(src, store, Options{
		OnRender: func(snap state.Snapshot, _ portfolio.Summary) { rendered = append(rendered, snap) },
		OnError:  func(err error) { notifications = append(notifications, err) },
	})
	c.SelectHolder(1)

	if _, err := c.Refresh(context.Background(), TriggerInitial); err != nil {
		t.Fatalf("initial Refresh() error = %v", err)
	}
	before := store.Snapshot()

	serverErr := apperrors.ErrUpstream.WithMessage("status 500")
	src.fail(state.Holdings, serverErr)
	src.fail(state.Stocks, serverErr)
	src.fail(state.Recommendations, serverErr)

	res, err := c.Refresh(context.Background(), TriggerManual)
	if err != nil {
		t.Fatalf("Refresh() error = %v, want nil (partial failures are not fatal)", err)
	}

	if len(notifications) != 1 {
		t.Fatalf("OnError called %d times, want exactly 1", len(notifications))
	}
	if !errors.Is(notifications[0], apperrors.ErrUpstream) {
		t.Errorf("notification = %v, want it to wrap the upstream error", notifications[0])
	}
	if !errors.Is(res.Err, apperrors.ErrUpstream) {
		t.Errorf("Result.Err = %v", res.Err)
	}

	after := store.Snapshot()
	if len(after.Holdings) != len(before.Holdings) || after.Holdings[0].StockSymbol != before.Holdings[0].StockSymbol {
		t.Error("holdings changed after a failed fetch")
	}
	if len(after.Stocks) != len(before.Stocks) || len(after.Recommendations) != len(before.Recommendations) {
		t.Error("stocks or recommendations changed after a failed fetch")
	}
	if len(after.History) != 1 {
		t.Errorf("History = %d points, a failed holdings fetch must not add one", len(after.History))
	}
	if res.Summary.CurrentValue != 2150 {
		t.Errorf("Summary.CurrentValue = %v, want prior 2150", res.Summary.CurrentValue)
	}
	if len(after.Errors) != 3 {
		t.Errorf("Errors = %v, want 3 collections", after.Errors)
	}
	if len(rendered) != 2 {
		t.Errorf("rendered %d frames, want 2", len(rendered))
	}
}

func TestRefresh_HolderSwitchDiscardsStaleResult(t *testing.T) {
	src := newFakeSource()
	store := state.New(5)

	started := make(chan struct{})
	release := make(chan struct{})
	src.holdingsHook = func(ctx context.Context, holderID int64) ([]models.Holding, error) {
		if holderID == 1 {
			close(started)
			select {
			case <-release:
			case <-ctx.Done():
			}
			// Deliver holder 1's data regardless; it must not be applied.
			return src.holdings[1], nil
		}
		return src.holdings[holderID], nil
	}

	var renderedHolders []int64
	var mu sync.Mutex
	c := New(src, store, Options{
		OnRender: func(snap state.Snapshot, _ portfolio.Summary) {
			mu.Lock()
			renderedHolders = append(renderedHolders, snap.SelectedHolder)
			mu.Unlock()
		},
	})
	c.SelectHolder(1)

	staleErr := make(chan error, 1)
	go func() {
		_, err := c.Refresh(context.Background(), TriggerInitial)
		staleErr <- err
	}()

	<-started
	c.SelectHolder(2)

	res, err := c.Refresh(context.Background(), TriggerInitial)
	if err != nil {
		t.Fatalf("Refresh() for new holder error = %v", err)
	}

	close(release)
	if err := <-staleErr; !errors.Is(err, ErrStale) {
		t.Fatalf("stale Refresh() error = %v, want ErrStale", err)
	}

	final := store.Snapshot()
	if final.SelectedHolder != 2 {
		t.Errorf("SelectedHolder = %d, want 2", final.SelectedHolder)
	}
	for _, h := range final.Holdings {
		if h.HolderID != 2 {
			t.Errorf("holding %d belongs to holder %d, want only holder 2", h.ID, h.HolderID)
		}
	}
	if res.Summary.CurrentValue != 7000 {
		t.Errorf("Summary.CurrentValue = %v, want 7000", res.Summary.CurrentValue)
	}
	if len(final.History) != 1 || final.History[0].Value != 7000 {
		t.Errorf("History = %+v, want only holder 2's point", final.History)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(renderedHolders) != 1 || renderedHolders[0] != 2 {
		t.Errorf("rendered holders = %v, want [2]", renderedHolders)
	}
}

func TestRefresh_InFlightGuard(t *testing.T) {
	src := newFakeSource()
	started := make(chan struct{})
	release := make(chan struct{})
	src.holdingsHook = func(ctx context.Context, holderID int64) ([]models.Holding, error) {
		close(started)
		<-release
		return src.holdings[holderID], nil
	}

	c := New(src, state.New(5), Options{})
	c.SelectHolder(1)

	done := make(chan error, 1)
	go func() {
		_, err := c.Refresh(context.Background(), TriggerInitial)
		done <- err
	}()
	<-started

	if c.Phase() != Fetching {
		t.Errorf("Phase() = %v, want fetching", c.Phase())
	}
	if _, err := c.Refresh(context.Background(), TriggerTick); !errors.Is(err, ErrInFlight) {
		t.Errorf("tick during fetch: error = %v, want ErrInFlight", err)
	}
	if _, err := c.Refresh(context.Background(), TriggerManual); !errors.Is(err, ErrInFlight) {
		t.Errorf("manual during fetch: error = %v, want ErrInFlight", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Refresh() error = %v", err)
	}
	if src.holdingsCalls.Load() != 1 {
		t.Errorf("holdings fetched %d times, want 1", src.holdingsCalls.Load())
	}
}

func TestRefresh_ManualThrottle(t *testing.T) {
	c := New(newFakeSource(), state.New(5), Options{ManualEvery: time.Hour, ManualBurst: 1})
	c.SelectHolder(1)

	if _, err := c.Refresh(context.Background(), TriggerManual); err != nil {
		t.Fatalf("first manual Refresh() error = %v", err)
	}
	if _, err := c.Refresh(context.Background(), TriggerManual); !errors.Is(err, ErrThrottled) {
		t.Errorf("second manual Refresh() error = %v, want ErrThrottled", err)
	}
	if _, err := c.Refresh(context.Background(), TriggerTick); err != nil {
		t.Errorf("ticks are not throttled: error = %v", err)
	}
}

func TestRefresh_PhaseDuringRender(t *testing.T) {
	var c *Controller
	var phase Phase
	c = New(newFakeSource(), state.New(5), Options{
		OnRender: func(state.Snapshot, portfolio.Summary) { phase = c.Phase() },
	})
	c.SelectHolder(1)

	if _, err := c.Refresh(context.Background(), TriggerInitial); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if phase != Rendering {
		t.Errorf("Phase() inside OnRender = %v, want rendering", phase)
	}
	if c.Phase() != Idle {
		t.Errorf("Phase() after render = %v, want idle", c.Phase())
	}
}

func TestRefresh_CollectionsOption(t *testing.T) {
	src := newFakeSource()
	c := New(src, state.New(5), Options{Collections: []state.Collection{state.Holders}})
	c.SelectHolder(1)

	res, err := c.Refresh(context.Background(), TriggerInitial)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if src.holdingsCalls.Load() != 0 {
		t.Error("holdings were fetched though not configured")
	}
	if res.Snapshot.Insights != nil {
		t.Error("insights were fetched though not configured")
	}
}

func TestJoinErrors_StableOrder(t *testing.T) {
	err := joinErrors(map[state.Collection]error{
		state.Stocks:   errors.New("b"),
		state.HeatMap:  errors.New("a"),
		state.Holdings: errors.New("c"),
	})
	want := "heatMap: a\nholdings: c\nstocks: b"
	if err.Error() != want {
		t.Errorf("joinErrors() = %q, want %q", err.Error(), want)
	}
	if joinErrors(nil) != nil {
		t.Error("joinErrors(nil) should be nil")
	}
}

func TestRun_InvalidSchedule(t *testing.T) {
	c := New(newFakeSource(), state.New(5), Options{})
	err := c.Run(context.Background(), "every now and then")
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("Run() error = %v, want validation error", err)
	}
}

func TestRun_TicksUntilCancelled(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a real cron tick")
	}

	var renders atomic.Int32
	c := New(newFakeSource(), state.New(5), Options{
		OnRender: func(state.Snapshot, portfolio.Summary) { renders.Add(1) },
	})
	c.SelectHolder(1)

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	if err := c.Run(ctx, "@every 1s"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if renders.Load() < 1 {
		t.Errorf("renders = %d, want at least one scheduled refresh", renders.Load())
	}
}

func TestPhase_String(t *testing.T) {
	for phase, want := range map[Phase]string{Idle: "idle", Fetching: "fetching", Rendering: "rendering"} {
		if phase.String() != want {
			t.Errorf("Phase(%d).String() = %v, want %v", phase, phase.String(), want)
		}
	}
}
