// Package router builds direct and multi-hop candidate routes from venue quotes and picks the
// one with the best gas-adjusted output.
package router

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/swap-router/internal/metrics"
	"github.com/aman-zulfiqar/swap-router/internal/quote"
)

// Quoter is the part of the quote engine the planner needs.
type Quoter interface {
	QuoteDirect(ctx context.Context, tokenIn, tokenOut solana.PublicKey, amountIn *big.Int) quote.Best
}

// Hop is one swap leg bound to a venue and tier.
type Hop struct {
	VenueID     string           `json:"venue_id"`
	TokenIn     solana.PublicKey `json:"token_in"`
	TokenOut    solana.PublicKey `json:"token_out"`
	FeeTier     uint32           `json:"fee_tier"`
	ExpectedOut *big.Int         `json:"expected_out"`
}

// Route is an ordered hop sequence. len(Tokens) == len(Hops)+1.
type Route struct {
	Hops           []Hop              `json:"hops"`
	Tokens         []solana.PublicKey `json:"tokens"`
	AmountIn       *big.Int           `json:"amount_in"`
	ExpectedOutput *big.Int           `json:"expected_output"`
	GasEstimate    uint64             `json:"gas_estimate"`
	GasCost        *big.Int           `json:"gas_cost"`
	Score          *big.Int           `json:"score"`
}

// Direct reports whether the route is a single hop.
func (r *Route) Direct() bool { return len(r.Hops) == 1 }

// VenueIDs lists the venue of each hop in order.
func (r *Route) VenueIDs() []string {
	ids := make([]string, len(r.Hops))
	for i, h := range r.Hops {
		ids[i] = h.VenueID
	}
	return ids
}

type Planner struct {
	quoter  Quoter
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

func NewPlanner(q Quoter, logger *logrus.Logger) *Planner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Planner{quoter: q, logger: logger, metrics: metrics.Get()}
}

// Plan returns the best route for amountIn under cfg, or ErrRouteNotFound.
//
// Candidates are generated in ascending hop order (direct, then every intermediate, then every
// ordered intermediate pair) until cfg.MaxRoutes have been evaluated. A candidate replaces the
// current best only on a strictly greater score, so ties go to the shorter route.
func (p *Planner) Plan(ctx context.Context, tokenIn, tokenOut solana.PublicKey, amountIn *big.Int, cfg Config) (*Route, error) {
	if err := checkRequest(tokenIn, tokenOut, amountIn, cfg); err != nil {
		return nil, err
	}

	s := &search{
		ctx:      ctx,
		quoter:   p.quoter,
		cfg:      cfg,
		tokenIn:  tokenIn,
		tokenOut: tokenOut,
		amountIn: amountIn,
		firstLeg: make(map[solana.PublicKey]quote.Best),
	}
	s.run()

	if s.best == nil {
		p.metrics.RoutesNotFound.Inc()
		return nil, fmt.Errorf("%w: %s -> %s for %s after %d candidates", ErrRouteNotFound, tokenIn, tokenOut, amountIn, s.evaluated)
	}

	p.metrics.RoutesPlanned.WithLabelValues(strconv.Itoa(len(s.best.Hops))).Inc()
	p.logger.WithFields(logrus.Fields{
		"token_in":   tokenIn.String(),
		"token_out":  tokenOut.String(),
		"amount_in":  amountIn.String(),
		"hops":       len(s.best.Hops),
		"venues":     s.best.VenueIDs(),
		"expected":   s.best.ExpectedOutput.String(),
		"score":      s.best.Score.String(),
		"candidates": s.evaluated,
	}).Debug("route planned")
	return s.best, nil
}

func checkRequest(tokenIn, tokenOut solana.PublicKey, amountIn *big.Int, cfg Config) error {
	switch {
	case amountIn == nil || amountIn.Sign() <= 0:
		return invalid("amount_in", "must be > 0")
	case cfg.MinTradeSize != nil && amountIn.Cmp(cfg.MinTradeSize) < 0:
		return invalid("amount_in", fmt.Sprintf("%s is below min trade size %s", amountIn, cfg.MinTradeSize))
	case tokenIn.IsZero() || tokenOut.IsZero():
		return invalid("token", "zero address")
	case tokenIn.Equals(tokenOut):
		return invalid("token_out", "must differ from token_in")
	}
	return nil
}

type search struct {
	ctx      context.Context
	quoter   Quoter
	cfg      Config
	tokenIn  solana.PublicKey
	tokenOut solana.PublicKey
	amountIn *big.Int

	firstLeg  map[solana.PublicKey]quote.Best
	evaluated int
	best      *Route
}

func (s *search) budget() bool {
	return s.evaluated < s.cfg.MaxRoutes && s.ctx.Err() == nil
}

func (s *search) run() {
	s.evaluated++
	s.consider([]solana.PublicKey{s.tokenIn, s.tokenOut})

	if s.cfg.MaxHops < 2 {
		return
	}
	mids := s.intermediates()
	for _, x := range mids {
		if !s.budget() {
			return
		}
		s.evaluated++
		s.consider([]solana.PublicKey{s.tokenIn, x, s.tokenOut})
	}

	if s.cfg.MaxHops < 3 {
		return
	}
	for _, x := range mids {
		for _, y := range mids {
			if x.Equals(y) {
				continue
			}
			if !s.budget() {
				return
			}
			s.evaluated++
			s.consider([]solana.PublicKey{s.tokenIn, x, y, s.tokenOut})
		}
	}
}

// intermediates drops endpoints and duplicates, keeping configured order.
func (s *search) intermediates() []solana.PublicKey {
	seen := make(map[solana.PublicKey]bool, len(s.cfg.Intermediates))
	out := make([]solana.PublicKey, 0, len(s.cfg.Intermediates))
	for _, x := range s.cfg.Intermediates {
		if x.Equals(s.tokenIn) || x.Equals(s.tokenOut) || seen[x] {
			continue
		}
		seen[x] = true
		out = append(out, x)
	}
	return out
}

// leg quotes one hop. First legs are cached since every path through x starts with the same quote.
func (s *search) leg(in, out solana.PublicKey, amount *big.Int, first bool) quote.Best {
	if first {
		if b, ok := s.firstLeg[out]; ok {
			return b
		}
	}
	b := s.quoter.QuoteDirect(s.ctx, in, out, amount)
	if first {
		s.firstLeg[out] = b
	}
	return b
}

func (s *search) consider(tokens []solana.PublicKey) {
	hops := make([]Hop, 0, len(tokens)-1)
	amount := s.amountIn
	for i := 0; i+1 < len(tokens); i++ {
		b := s.leg(tokens[i], tokens[i+1], amount, i == 0)
		if !b.Found() {
			return
		}
		hops = append(hops, Hop{
			VenueID:     b.VenueID,
			TokenIn:     tokens[i],
			TokenOut:    tokens[i+1],
			FeeTier:     b.FeeTier,
			ExpectedOut: b.Amount,
		})
		amount = b.Amount
	}

	gas := s.cfg.GasEstimate(len(hops))
	gasCost := s.cfg.GasCost(gas, s.tokenOut)
	score := new(big.Int).Set(amount)
	if s.cfg.GasOptimization {
		score.Sub(score, gasCost)
		if score.Sign() < 0 {
			score.SetInt64(0)
		}
	}

	if s.best != nil && score.Cmp(s.best.Score) <= 0 {
		return
	}
	s.best = &Route{
		Hops:           hops,
		Tokens:         tokens,
		AmountIn:       new(big.Int).Set(s.amountIn),
		ExpectedOutput: amount,
		GasEstimate:    gas,
		GasCost:        gasCost,
		Score:          score,
	}
}
