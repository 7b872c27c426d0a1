package swapengine

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/swap-router/internal/flags"
	"github.com/aman-zulfiqar/swap-router/internal/ledger"
	"github.com/aman-zulfiqar/swap-router/internal/metrics"
	"github.com/aman-zulfiqar/swap-router/internal/mev"
	"github.com/aman-zulfiqar/swap-router/internal/models"
	"github.com/aman-zulfiqar/swap-router/internal/router"
	"github.com/aman-zulfiqar/swap-router/internal/venue"
)

// Executor settles a planned route against the ledger in a single transaction.
type Executor struct {
	ledger       ledger.Ledger
	registry     *venue.Registry
	throttle     *mev.Throttle
	pause        flags.PauseSwitch
	clock        Clock
	custody      solana.PublicKey
	feeCollector solana.PublicKey
	settings     func() router.Config

	lock    execLock
	events  *events
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

// Execute runs route for req. Either every transfer commits or none do.
func (x *Executor) Execute(ctx context.Context, req SwapRequest, route *router.Route) (*ExecutionResult, error) {
	if executing(ctx) {
		return nil, fmt.Errorf("%w: nested call from a venue", ErrReentrant)
	}
	release, ok := x.lock.acquire()
	if !ok {
		return nil, fmt.Errorf("%w: another execution holds the lock", ErrReentrant)
	}
	defer release()

	start := time.Now()
	res, err := x.execute(markExecuting(ctx, req.Origin), req, route)
	x.metrics.SwapLatency.Observe(time.Since(start).Seconds())
	x.metrics.SwapsTotal.WithLabelValues(status(err)).Inc()
	if err != nil {
		x.logger.WithError(err).WithFields(logrus.Fields{
			"origin":    req.Origin.String(),
			"token_in":  req.TokenIn.String(),
			"token_out": req.TokenOut.String(),
			"amount_in": bigString(req.AmountIn),
		}).Info("execution rejected")
		return nil, err
	}
	res.Duration = time.Since(start)
	return res, nil
}

func (x *Executor) execute(ctx context.Context, req SwapRequest, route *router.Route) (*ExecutionResult, error) {
	paused, err := x.pause.Paused(ctx)
	if err != nil {
		return nil, fmt.Errorf("read pause state: %w", err)
	}
	if paused {
		return nil, ErrPaused
	}

	cfg := x.settings()
	now := x.clock.Now()
	block := x.clock.Block(now)

	if err := checkRequest(req, cfg, now); err != nil {
		return nil, err
	}
	venues, err := checkRoute(route, req, cfg, x.registry)
	if err != nil {
		return nil, err
	}
	if err := x.throttle.Check(ctx, req.Origin, block); err != nil {
		if errors.Is(err, mev.ErrThrottled) {
			x.metrics.MEVRejections.Inc()
		}
		return nil, err
	}

	// Past the deadline check the execution finishes or rolls back on its own terms.
	ctx = context.WithoutCancel(ctx)

	fee, swapAmount := SplitFee(req.AmountIn, cfg.FeeBps)
	hopOutputs, err := x.settle(ctx, req, route, venues, fee, swapAmount)
	if err != nil {
		return nil, err
	}
	out := hopOutputs[len(hopOutputs)-1]

	res := &ExecutionResult{
		ExecutionID:  newExecutionID(),
		Block:        block,
		AmountIn:     new(big.Int).Set(req.AmountIn),
		Fee:          fee,
		SwapAmount:   swapAmount,
		MinAmountOut: new(big.Int).Set(req.MinAmountOut),
		AmountOut:    new(big.Int).Set(out),
		HopOutputs:   hopOutputs,
		Route:        route,
		Recipient:    req.recipient().String(),
		ExecutedAt:   now,
	}
	x.afterCommit(ctx, req, res)
	return res, nil
}

// settle moves funds origin -> custody -> venues -> recipient inside one ledger transaction.
func (x *Executor) settle(ctx context.Context, req SwapRequest, route *router.Route, venues []venue.Venue, fee, swapAmount *big.Int) ([]*big.Int, error) {
	tx, err := x.ledger.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// 1. Pull input into custody. Both legs spend an allowance the origin granted custody.
	if req.NativeIn {
		if err := tx.TransferFrom(ctx, ledger.Native, x.custody, req.Origin, x.custody, req.AmountIn); err != nil {
			return nil, fmt.Errorf("pull native input: %w", err)
		}
		if err := tx.Wrap(ctx, x.custody, req.AmountIn); err != nil {
			return nil, fmt.Errorf("wrap native input: %w", err)
		}
	} else if err := tx.TransferFrom(ctx, req.TokenIn, x.custody, req.Origin, x.custody, req.AmountIn); err != nil {
		return nil, fmt.Errorf("pull input: %w", err)
	}

	// 2. Protocol fee
	if fee.Sign() > 0 {
		if err := tx.Transfer(ctx, req.TokenIn, x.custody, x.feeCollector, fee); err != nil {
			return nil, fmt.Errorf("collect fee: %w", err)
		}
	}

	// 3. Hops
	outputs := make([]*big.Int, 0, len(route.Hops))
	amount := swapAmount
	last := len(route.Hops) - 1
	for i, hop := range route.Hops {
		floor := new(big.Int)
		if i == last {
			floor = req.MinAmountOut
		}
		received, err := x.swapHop(ctx, tx, i, hop, venues[i], amount, floor)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, received)
		amount = received
	}

	// 4. Deliver
	recipient := req.recipient()
	if req.NativeOut {
		if err := tx.Unwrap(ctx, x.custody, amount); err != nil {
			return nil, fmt.Errorf("unwrap output: %w", err)
		}
		if err := tx.Transfer(ctx, ledger.Native, x.custody, recipient, amount); err != nil {
			return nil, fmt.Errorf("deliver native output: %w", err)
		}
	} else if err := tx.Transfer(ctx, req.TokenOut, x.custody, recipient, amount); err != nil {
		return nil, fmt.Errorf("deliver output: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit ledger tx: %w", err)
	}
	return outputs, nil
}

// swapHop approves the venue for exactly amount, calls it and measures what custody received.
func (x *Executor) swapHop(ctx context.Context, tx ledger.Tx, i int, hop router.Hop, v venue.Venue, amount, floor *big.Int) (*big.Int, error) {
	inBefore, err := tx.Balance(ctx, hop.TokenIn, x.custody)
	if err != nil {
		return nil, fmt.Errorf("hop %d: read balance: %w", i, err)
	}
	outBefore, err := tx.Balance(ctx, hop.TokenOut, x.custody)
	if err != nil {
		return nil, fmt.Errorf("hop %d: read balance: %w", i, err)
	}

	if err := ledger.SafeApprove(ctx, tx, hop.TokenIn, x.custody, v.Address, amount); err != nil {
		return nil, fmt.Errorf("hop %d: approve %s: %w", i, v.ID, err)
	}

	_, err = v.Adapter.Swap(ctx, tx, venue.SwapCall{
		TokenIn:      hop.TokenIn,
		TokenOut:     hop.TokenOut,
		AmountIn:     amount,
		MinAmountOut: floor,
		FeeTier:      hop.FeeTier,
		Payer:        x.custody,
		Recipient:    x.custody,
	})
	if err != nil {
		return nil, &VenueCallError{VenueID: v.ID, Hop: i, Err: err}
	}

	inAfter, err := tx.Balance(ctx, hop.TokenIn, x.custody)
	if err != nil {
		return nil, fmt.Errorf("hop %d: read balance: %w", i, err)
	}
	if spent := new(big.Int).Sub(inBefore, inAfter); spent.Cmp(amount) != 0 {
		return nil, &VenueCallError{VenueID: v.ID, Hop: i, Err: fmt.Errorf("consumed %s of %s", spent, amount)}
	}
	// Leftover allowance must not survive the hop.
	if err := ledger.SafeApprove(ctx, tx, hop.TokenIn, x.custody, v.Address, new(big.Int)); err != nil {
		return nil, fmt.Errorf("hop %d: revoke %s: %w", i, v.ID, err)
	}

	outAfter, err := tx.Balance(ctx, hop.TokenOut, x.custody)
	if err != nil {
		return nil, fmt.Errorf("hop %d: read balance: %w", i, err)
	}
	received := new(big.Int).Sub(outAfter, outBefore)
	if received.Cmp(floor) < 0 || received.Sign() <= 0 {
		return nil, &SlippageError{Hop: i, Min: new(big.Int).Set(floor), Actual: received}
	}
	return received, nil
}

func (x *Executor) afterCommit(ctx context.Context, req SwapRequest, res *ExecutionResult) {
	route := res.Route
	hopInput := res.SwapAmount
	for i, hop := range route.Hops {
		if err := x.registry.RecordTrade(hop.VenueID, hopInput); err != nil {
			// The venue was removed while the trade settled.
			x.logger.WithError(err).WithField("venue", hop.VenueID).Warn("venue stats not updated")
		}
		metrics.AddBig(x.metrics.VenueVolume.WithLabelValues(hop.VenueID), hopInput)
		hopInput = res.HopOutputs[i]
	}
	if err := x.throttle.Commit(ctx, req.Origin, res.Block); err != nil {
		x.logger.WithError(err).WithField("origin", req.Origin.String()).Warn("mev throttle not recorded")
	}
	metrics.AddBig(x.metrics.FeesCollected.WithLabelValues(req.TokenIn.String()), res.Fee)

	ev := &models.TradeEvent{
		ExecutionID: res.ExecutionID,
		Timestamp:   res.ExecutedAt.UTC(),
		Block:       res.Block,
		Origin:      req.Origin.String(),
		Recipient:   res.Recipient,
		Pair:        pairLabel(req.TokenIn, req.TokenOut),
		TokenIn:     req.TokenIn.String(),
		TokenOut:    req.TokenOut.String(),
		AmountIn:    res.AmountIn.String(),
		Fee:         res.Fee.String(),
		AmountOut:   res.AmountOut.String(),
		Venues:      route.VenueIDs(),
		Hops:        len(route.Hops),
		NativeIn:    req.NativeIn,
		NativeOut:   req.NativeOut,
	}
	x.events.publish(ev)

	x.logger.WithFields(logrus.Fields{
		"execution_id": res.ExecutionID,
		"origin":       ev.Origin,
		"pair":         ev.Pair,
		"amount_in":    ev.AmountIn,
		"fee":          ev.Fee,
		"amount_out":   ev.AmountOut,
		"venues":       ev.Venues,
		"block":        res.Block,
	}).Info("swap executed")
}

func status(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrReentrant):
		return "reentrant"
	case errors.Is(err, ErrPaused):
		return "paused"
	case errors.Is(err, mev.ErrThrottled):
		return "throttled"
	case errors.Is(err, router.ErrValidation):
		return "invalid"
	case errors.Is(err, ErrSlippageExceeded):
		return "slippage"
	case errors.Is(err, ErrVenueCall):
		return "venue_error"
	default:
		return "error"
	}
}

func newExecutionID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return base58.Encode(b[:])
}

func bigString(v *big.Int) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}
