package swapengine

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/swap-router/internal/auth"
	"github.com/aman-zulfiqar/swap-router/internal/constants"
	"github.com/aman-zulfiqar/swap-router/internal/flags"
	"github.com/aman-zulfiqar/swap-router/internal/ledger"
	"github.com/aman-zulfiqar/swap-router/internal/metrics"
	"github.com/aman-zulfiqar/swap-router/internal/mev"
	"github.com/aman-zulfiqar/swap-router/internal/models"
	"github.com/aman-zulfiqar/swap-router/internal/quote"
	"github.com/aman-zulfiqar/swap-router/internal/router"
	"github.com/aman-zulfiqar/swap-router/internal/storage"
	"github.com/aman-zulfiqar/swap-router/internal/venue"
)

// Engine is the main orchestrator: it quotes, plans and executes swaps and owns the
// admin-mutable configuration.
type Engine struct {
	ledger     ledger.Ledger
	registry   *venue.Registry
	quoter     *quote.Engine
	planner    *router.Planner
	executor   *Executor
	throttle   *mev.Throttle
	pause      flags.PauseSwitch
	authorizer auth.Authorizer
	cache      storage.TradeCache
	logger     *logrus.Logger
	metrics    *metrics.Metrics

	mu  sync.RWMutex
	cfg router.Config

	catalogMu sync.RWMutex
	catalog   map[string]venue.Adapter

	closers []func() error
}

// Deps are the collaborators of an Engine. Nil optional fields get in-process defaults.
type Deps struct {
	Ledger       ledger.Ledger
	Registry     *venue.Registry
	Custody      solana.PublicKey
	FeeCollector solana.PublicKey
	Config       router.Config

	// Catalog holds adapters an admin may register by venue id. Venues already in Registry
	// are added automatically.
	Catalog []venue.Venue

	Throttle   *mev.Throttle
	Pause      flags.PauseSwitch
	Clock      Clock
	Authorizer auth.Authorizer
	Cache      storage.TradeCache
	Store      storage.TradeStore
	Logger     *logrus.Logger
}

// New wires an Engine from already constructed collaborators.
func New(d Deps) (*Engine, error) {
	if d.Ledger == nil {
		return nil, fmt.Errorf("ledger is nil")
	}
	if d.Custody.IsZero() || d.FeeCollector.IsZero() {
		return nil, fmt.Errorf("custody and fee collector accounts are required")
	}
	if d.Custody.Equals(d.FeeCollector) {
		return nil, fmt.Errorf("custody and fee collector must differ")
	}
	if err := d.Config.Validate(); err != nil {
		return nil, fmt.Errorf("router config: %w", err)
	}
	if d.Logger == nil {
		d.Logger = logrus.New()
	}
	if d.Registry == nil {
		d.Registry = venue.NewRegistry()
	}
	if d.Throttle == nil {
		t, err := mev.NewThrottle(mev.NewMemoryStore(), mev.DefaultParams())
		if err != nil {
			return nil, err
		}
		d.Throttle = t
	}
	if d.Pause == nil {
		d.Pause = &flags.MemorySwitch{}
	}
	if d.Clock == nil {
		d.Clock = NewSlotClock(time.Now(), constants.DefaultSlotDuration)
	}
	if d.Authorizer == nil {
		d.Authorizer = &auth.KeySet{}
	}

	m := metrics.Get()
	q := quote.NewEngine(d.Registry, d.Logger)
	e := &Engine{
		ledger:     d.Ledger,
		registry:   d.Registry,
		quoter:     q,
		planner:    router.NewPlanner(q, d.Logger),
		throttle:   d.Throttle,
		pause:      d.Pause,
		authorizer: d.Authorizer,
		cache:      d.Cache,
		logger:     d.Logger,
		metrics:    m,
		cfg:        d.Config.Clone(),
		catalog:    make(map[string]venue.Adapter),
	}
	e.executor = &Executor{
		ledger:       d.Ledger,
		registry:     d.Registry,
		throttle:     d.Throttle,
		pause:        d.Pause,
		clock:        d.Clock,
		custody:      d.Custody,
		feeCollector: d.FeeCollector,
		settings:     e.Config,
		events:       &events{cache: d.Cache, store: d.Store, logger: d.Logger, metrics: m},
		logger:       d.Logger,
		metrics:      m,
	}

	for _, v := range append(d.Registry.List(), d.Catalog...) {
		e.catalog[v.ID] = v.Adapter
	}
	return e, nil
}

// Config returns a copy of the current router configuration.
func (e *Engine) Config() router.Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg.Clone()
}

func (e *Engine) updateConfig(fn func(*router.Config)) (router.Config, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.cfg.Clone()
	fn(&next)
	if err := next.Validate(); err != nil {
		return router.Config{}, err
	}
	e.cfg = next
	return next.Clone(), nil
}

// Quote returns the best direct quote across active venues and tiers.
func (e *Engine) Quote(ctx context.Context, tokenIn, tokenOut solana.PublicKey, amountIn *big.Int) quote.Best {
	return e.quoter.QuoteDirect(ctx, tokenIn, tokenOut, amountIn)
}

// Quotes returns every (venue, tier) outcome, failures included.
func (e *Engine) Quotes(ctx context.Context, tokenIn, tokenOut solana.PublicKey, amountIn *big.Int) []quote.Outcome {
	return e.quoter.QuoteAll(ctx, tokenIn, tokenOut, amountIn)
}

// QuoteExactOutput returns the cheapest input producing amountOut.
func (e *Engine) QuoteExactOutput(ctx context.Context, tokenIn, tokenOut solana.PublicKey, amountOut *big.Int) quote.Best {
	return e.quoter.QuoteExactOutput(ctx, tokenIn, tokenOut, amountOut)
}

// Route plans amountIn as given, without deducting the protocol fee.
func (e *Engine) Route(ctx context.Context, tokenIn, tokenOut solana.PublicKey, amountIn *big.Int) (*router.Route, error) {
	return e.planner.Plan(ctx, tokenIn, tokenOut, amountIn, e.Config())
}

func (e *Engine) Venues() []venue.Venue { return e.registry.List() }

func (e *Engine) MEVParams() mev.Params { return e.throttle.Params() }

func (e *Engine) Paused(ctx context.Context) (bool, error) { return e.pause.Paused(ctx) }

// PauseState returns the switch position with the principal that last moved it.
func (e *Engine) PauseState(ctx context.Context) (flags.State, error) { return e.pause.State(ctx) }

func (e *Engine) PauseHistory(ctx context.Context, limit int64) ([]flags.State, error) {
	return e.pause.History(ctx, limit)
}

// RecentTrades reads the trade cache. It returns nothing when no cache is configured.
func (e *Engine) RecentTrades(ctx context.Context, limit int64) ([]*models.TradeEvent, error) {
	if e.cache == nil {
		return nil, nil
	}
	return e.cache.GetRecentTrades(ctx, limit)
}

// Balance reads a committed ledger balance.
func (e *Engine) Balance(ctx context.Context, asset, owner solana.PublicKey) (*big.Int, error) {
	return e.ledger.Balance(ctx, asset, owner)
}

// Execute settles an explicit route.
func (e *Engine) Execute(ctx context.Context, req SwapRequest, route *router.Route) (*ExecutionResult, error) {
	return e.executor.Execute(ctx, req, route)
}

// Swap plans the fee-adjusted amount and executes the best route. When req.MinAmountOut is nil
// it is derived from the planned output and req.SlippageBps.
func (e *Engine) Swap(ctx context.Context, req SwapRequest) (*ExecutionResult, error) {
	if executing(ctx) {
		return nil, fmt.Errorf("%w: nested call from a venue", ErrReentrant)
	}
	if paused, err := e.pause.Paused(ctx); err != nil {
		return nil, fmt.Errorf("read pause state: %w", err)
	} else if paused {
		return nil, ErrPaused
	}
	if err := checkNativeLegs(req); err != nil {
		return nil, err
	}
	cfg := e.Config()
	if req.SlippageBps > cfg.MaxSlippageBps {
		return nil, router.Invalid("slippage_bps", fmt.Sprintf("%d exceeds max %d", req.SlippageBps, cfg.MaxSlippageBps), nil)
	}
	if req.AmountIn == nil || req.AmountIn.Sign() <= 0 {
		return nil, router.Invalid("amount_in", "must be > 0", nil)
	}
	if req.AmountIn.Cmp(cfg.MinTradeSize) < 0 {
		return nil, router.Invalid("amount_in", fmt.Sprintf("%s is below min trade size %s", req.AmountIn, cfg.MinTradeSize), nil)
	}

	_, swapAmount := SplitFee(req.AmountIn, cfg.FeeBps)
	// The trade-size floor applies to the gross amount checked above.
	plan := cfg
	plan.MinTradeSize = nil
	route, err := e.planner.Plan(ctx, req.TokenIn, req.TokenOut, swapAmount, plan)
	if err != nil {
		return nil, err
	}
	if req.MinAmountOut == nil {
		req.MinAmountOut = router.ApplySlippage(route.ExpectedOutput, req.SlippageBps)
	}
	return e.executor.Execute(ctx, req, route)
}

// SwapNativeIn pays with the native asset. TokenIn is forced to the wrapped mint.
func (e *Engine) SwapNativeIn(ctx context.Context, req SwapRequest) (*ExecutionResult, error) {
	req.TokenIn = ledger.Wrapped
	req.NativeIn = true
	return e.Swap(ctx, req)
}

// SwapNativeOut delivers the native asset. TokenOut is forced to the wrapped mint.
func (e *Engine) SwapNativeOut(ctx context.Context, req SwapRequest) (*ExecutionResult, error) {
	req.TokenOut = ledger.Wrapped
	req.NativeOut = true
	return e.Swap(ctx, req)
}

func (e *Engine) adapterFor(id string) (venue.Adapter, bool) {
	e.catalogMu.RLock()
	defer e.catalogMu.RUnlock()
	a, ok := e.catalog[id]
	return a, ok
}

func (e *Engine) remember(v venue.Venue) {
	e.catalogMu.Lock()
	e.catalog[v.ID] = v.Adapter
	e.catalogMu.Unlock()
}

// OnClose registers cleanup run by Close in reverse order.
func (e *Engine) OnClose(fn func() error) {
	e.closers = append(e.closers, fn)
}

// Close runs the registered cleanup. Collaborators passed through Deps stay owned by the caller.
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
