package server

import (
	"math/big"
	"time"

	"github.com/aman-zulfiqar/swap-router/internal/flags"
	"github.com/aman-zulfiqar/swap-router/internal/mev"
	"github.com/aman-zulfiqar/swap-router/internal/quote"
	"github.com/aman-zulfiqar/swap-router/internal/router"
	"github.com/aman-zulfiqar/swap-router/internal/swapengine"
	"github.com/aman-zulfiqar/swap-router/internal/venue"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK     bool `json:"ok"`
	Paused bool `json:"paused"`
}

// Amounts are base-unit decimal strings throughout so clients never lose precision.

type OutcomeView struct {
	VenueID string `json:"venue_id"`
	FeeTier uint32 `json:"fee_tier"`
	Amount  string `json:"amount,omitempty"`
	Error   string `json:"error,omitempty"`
}

type QuoteResponse struct {
	TokenIn  string        `json:"token_in"`
	TokenOut string        `json:"token_out"`
	Mode     string        `json:"mode"` // exact_in or exact_out
	Amount   string        `json:"amount"`
	Best     *OutcomeView  `json:"best"`
	Outcomes []OutcomeView `json:"outcomes,omitempty"`
}

type HopView struct {
	VenueID     string `json:"venue_id"`
	TokenIn     string `json:"token_in"`
	TokenOut    string `json:"token_out"`
	FeeTier     uint32 `json:"fee_tier"`
	ExpectedOut string `json:"expected_out"`
}

type RouteView struct {
	Hops           []HopView `json:"hops"`
	Tokens         []string  `json:"tokens"`
	AmountIn       string    `json:"amount_in"`
	ExpectedOutput string    `json:"expected_output"`
	GasEstimate    uint64    `json:"gas_estimate"`
	GasCost        string    `json:"gas_cost"`
	Score          string    `json:"score"`
}

type VenueView struct {
	ID           string   `json:"id"`
	Address      string   `json:"address"`
	Kind         string   `json:"kind"`
	Active       bool     `json:"active"`
	FeeTiers     []uint32 `json:"fee_tiers,omitempty"`
	SuccessCount uint64   `json:"success_count"`
	Volume       string   `json:"volume"`
}

type ConfigResponse struct {
	MaxHops         int               `json:"max_hops"`
	MaxRoutes       int               `json:"max_routes"`
	MinTradeSize    string            `json:"min_trade_size"`
	MaxSlippageBps  uint32            `json:"max_slippage_bps"`
	FeeBps          uint32            `json:"fee_bps"`
	GasPerHop       map[int]uint64    `json:"gas_per_hop"`
	GasPrice        string            `json:"gas_price"`
	GasPrices       map[string]string `json:"gas_prices,omitempty"`
	GasOptimization bool              `json:"gas_optimization"`
	Intermediates   []string          `json:"intermediates"`
	MEV             mev.Params        `json:"mev"`
	Paused          bool              `json:"paused"`
}

// SwapRequest is the body of POST /v1/swap. Assets accept a ticker or a base58 mint.
type SwapRequest struct {
	Origin       string    `json:"origin"`
	TokenIn      string    `json:"token_in"`
	TokenOut     string    `json:"token_out"`
	AmountIn     string    `json:"amount_in"`
	MinAmountOut string    `json:"min_amount_out,omitempty"`
	SlippageBps  uint32    `json:"slippage_bps"`
	Recipient    string    `json:"recipient,omitempty"`
	Deadline     time.Time `json:"deadline,omitempty"`
	NativeIn     bool      `json:"native_in,omitempty"`
	NativeOut    bool      `json:"native_out,omitempty"`
}

type SwapResponse struct {
	ExecutionID  string    `json:"execution_id"`
	Block        uint64    `json:"block"`
	AmountIn     string    `json:"amount_in"`
	Fee          string    `json:"fee"`
	SwapAmount   string    `json:"swap_amount"`
	MinAmountOut string    `json:"min_amount_out"`
	AmountOut    string    `json:"amount_out"`
	HopOutputs   []string  `json:"hop_outputs"`
	Route        RouteView `json:"route"`
	Recipient    string    `json:"recipient"`
	ExecutedAt   time.Time `json:"executed_at"`
	TookMs       int64     `json:"took_ms"`
}

type BalanceResponse struct {
	Owner   string `json:"owner"`
	Asset   string `json:"asset"`
	Balance string `json:"balance"`
}

// Admin request bodies

type AddVenueRequest struct {
	ID       string   `json:"id"`
	Address  string   `json:"address"`
	Kind     string   `json:"kind"`
	FeeTiers []uint32 `json:"fee_tiers,omitempty"`
	Active   *bool    `json:"active,omitempty"`
}

type SetActiveRequest struct {
	Active bool `json:"active"`
}

type SetFeeRequest struct {
	FeeBps uint32 `json:"fee_bps"`
}

type SetLimitsRequest struct {
	MaxHops        int    `json:"max_hops"`
	MaxRoutes      int    `json:"max_routes"`
	MinTradeSize   string `json:"min_trade_size"`
	MaxSlippageBps uint32 `json:"max_slippage_bps"`
}

type SetIntermediatesRequest struct {
	Assets []string `json:"assets"`
}

type SetGasRequest struct {
	Enabled  bool   `json:"enabled"`
	GasPrice string `json:"gas_price,omitempty"`
}

// PauseResponse is the circuit breaker position and its recent changes, newest first.
type PauseResponse struct {
	flags.State
	History []flags.State `json:"history"`
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func outcomeView(o quote.Outcome) OutcomeView {
	v := OutcomeView{VenueID: o.VenueID, FeeTier: o.FeeTier}
	if o.Err != nil {
		v.Error = o.Err.Error()
	} else {
		v.Amount = amountString(o.Amount)
	}
	return v
}

func routeView(r *router.Route) RouteView {
	out := RouteView{
		Hops:           make([]HopView, len(r.Hops)),
		Tokens:         make([]string, len(r.Tokens)),
		AmountIn:       amountString(r.AmountIn),
		ExpectedOutput: amountString(r.ExpectedOutput),
		GasEstimate:    r.GasEstimate,
		GasCost:        amountString(r.GasCost),
		Score:          amountString(r.Score),
	}
	for i, h := range r.Hops {
		out.Hops[i] = HopView{
			VenueID:     h.VenueID,
			TokenIn:     h.TokenIn.String(),
			TokenOut:    h.TokenOut.String(),
			FeeTier:     h.FeeTier,
			ExpectedOut: amountString(h.ExpectedOut),
		}
	}
	for i, t := range r.Tokens {
		out.Tokens[i] = t.String()
	}
	return out
}

func venueView(v venue.Venue) VenueView {
	return VenueView{
		ID:           v.ID,
		Address:      v.Address.String(),
		Kind:         string(v.Kind),
		Active:       v.Active,
		FeeTiers:     v.FeeTiers,
		SuccessCount: v.Stats.SuccessCount,
		Volume:       amountString(v.Stats.Volume),
	}
}

func configResponse(c router.Config, p mev.Params, paused bool) ConfigResponse {
	out := ConfigResponse{
		MaxHops:         c.MaxHops,
		MaxRoutes:       c.MaxRoutes,
		MinTradeSize:    amountString(c.MinTradeSize),
		MaxSlippageBps:  c.MaxSlippageBps,
		FeeBps:          c.FeeBps,
		GasPerHop:       c.GasPerHop,
		GasPrice:        c.GasPrice.String(),
		GasOptimization: c.GasOptimization,
		Intermediates:   make([]string, len(c.Intermediates)),
		MEV:             p,
		Paused:          paused,
	}
	if len(c.GasPrices) > 0 {
		out.GasPrices = make(map[string]string, len(c.GasPrices))
		for k, v := range c.GasPrices {
			out.GasPrices[k] = v.String()
		}
	}
	for i, x := range c.Intermediates {
		out.Intermediates[i] = x.String()
	}
	return out
}

func swapResponse(r *swapengine.ExecutionResult) SwapResponse {
	hops := make([]string, len(r.HopOutputs))
	for i, h := range r.HopOutputs {
		hops[i] = h.String()
	}
	return SwapResponse{
		ExecutionID:  r.ExecutionID,
		Block:        r.Block,
		AmountIn:     r.AmountIn.String(),
		Fee:          r.Fee.String(),
		SwapAmount:   r.SwapAmount.String(),
		MinAmountOut: r.MinAmountOut.String(),
		AmountOut:    r.AmountOut.String(),
		HopOutputs:   hops,
		Route:        routeView(r.Route),
		Recipient:    r.Recipient,
		ExecutedAt:   r.ExecutedAt,
		TookMs:       r.Duration.Milliseconds(),
	}
}
