// Package quote asks every active venue, and every fee tier of tiered venues, for a price and
// folds the answers into a single best result. Individual venue failures never abort the search.
package quote

import (
	"context"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/swap-router/internal/metrics"
	"github.com/aman-zulfiqar/swap-router/internal/venue"
)

// Source supplies the venues to poll.
type Source interface {
	Active() []venue.Venue
}

// Outcome is the result of one venue×tier quote call. Failures are carried in Err.
type Outcome struct {
	VenueID string   `json:"venue_id"`
	FeeTier uint32   `json:"fee_tier"`
	Amount  *big.Int `json:"amount,omitempty"`
	Err     error    `json:"-"`
}

// OK reports whether the outcome is a usable positive quote.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Amount != nil && o.Amount.Sign() > 0
}

// Best is the winning venue and tier for a quote request.
type Best struct {
	VenueID string   `json:"venue_id"`
	FeeTier uint32   `json:"fee_tier"`
	Amount  *big.Int `json:"amount"`
}

// Found is false when no venue produced a positive quote.
func (b Best) Found() bool {
	return b.Amount != nil && b.Amount.Sign() > 0
}

type Engine struct {
	source  Source
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

func NewEngine(source Source, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{source: source, logger: logger, metrics: metrics.Get()}
}

type callFunc func(ctx context.Context, a venue.Adapter, call venue.QuoteCall) (*big.Int, error)

func quoteIn(ctx context.Context, a venue.Adapter, call venue.QuoteCall) (*big.Int, error) {
	return a.Quote(ctx, call)
}

func quoteOut(ctx context.Context, a venue.Adapter, call venue.QuoteCall) (*big.Int, error) {
	return a.QuoteExactOutput(ctx, call)
}

func (e *Engine) poll(ctx context.Context, tokenIn, tokenOut solana.PublicKey, amount *big.Int, fn callFunc) []Outcome {
	venues := e.source.Active()
	outcomes := make([]Outcome, 0, len(venues))
	for _, v := range venues {
		for _, tier := range v.Tiers() {
			o := Outcome{VenueID: v.ID, FeeTier: tier}
			if err := ctx.Err(); err != nil {
				o.Err = err
			} else {
				o.Amount, o.Err = fn(ctx, v.Adapter, venue.QuoteCall{
					TokenIn:  tokenIn,
					TokenOut: tokenOut,
					Amount:   amount,
					FeeTier:  tier,
				})
			}
			e.observe(o)
			outcomes = append(outcomes, o)
		}
	}
	return outcomes
}

func (e *Engine) observe(o Outcome) {
	result := "ok"
	switch {
	case o.Err != nil:
		result = "error"
		e.logger.WithFields(logrus.Fields{
			"venue":    o.VenueID,
			"fee_tier": o.FeeTier,
		}).WithError(o.Err).Debug("quote unavailable")
	case !o.OK():
		result = "empty"
	}
	e.metrics.QuoteCalls.WithLabelValues(o.VenueID, result).Inc()
}

// QuoteAll returns every venue×tier outcome for an exact-input request, in registry order.
func (e *Engine) QuoteAll(ctx context.Context, tokenIn, tokenOut solana.PublicKey, amountIn *big.Int) []Outcome {
	return e.poll(ctx, tokenIn, tokenOut, amountIn, quoteIn)
}

// QuoteDirect returns the maximum output across all active venues and tiers.
func (e *Engine) QuoteDirect(ctx context.Context, tokenIn, tokenOut solana.PublicKey, amountIn *big.Int) Best {
	if amountIn == nil || amountIn.Sign() <= 0 || tokenIn.Equals(tokenOut) {
		return Best{}
	}
	return MaxOutput(e.QuoteAll(ctx, tokenIn, tokenOut, amountIn))
}

// QuoteExactOutput returns the smallest input any venue needs to deliver amountOut.
func (e *Engine) QuoteExactOutput(ctx context.Context, tokenIn, tokenOut solana.PublicKey, amountOut *big.Int) Best {
	if amountOut == nil || amountOut.Sign() <= 0 || tokenIn.Equals(tokenOut) {
		return Best{}
	}
	return MinInput(e.poll(ctx, tokenIn, tokenOut, amountOut, quoteOut))
}

// MaxOutput folds outcomes keeping the strictly greatest amount; the first seen wins ties.
func MaxOutput(outcomes []Outcome) Best {
	var best Best
	for _, o := range outcomes {
		if !o.OK() {
			continue
		}
		if best.Amount == nil || o.Amount.Cmp(best.Amount) > 0 {
			best = Best{VenueID: o.VenueID, FeeTier: o.FeeTier, Amount: o.Amount}
		}
	}
	return best
}

// MinInput folds outcomes keeping the strictly smallest positive amount; the first seen wins ties.
func MinInput(outcomes []Outcome) Best {
	var best Best
	for _, o := range outcomes {
		if !o.OK() {
			continue
		}
		if best.Amount == nil || o.Amount.Cmp(best.Amount) < 0 {
			best = Best{VenueID: o.VenueID, FeeTier: o.FeeTier, Amount: o.Amount}
		}
	}
	return best
}
