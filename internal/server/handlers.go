package server

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/swap-router/internal/auth"
	"github.com/aman-zulfiqar/swap-router/internal/config"
	"github.com/aman-zulfiqar/swap-router/internal/mev"
	"github.com/aman-zulfiqar/swap-router/internal/router"
	"github.com/aman-zulfiqar/swap-router/internal/swapengine"
	"github.com/aman-zulfiqar/swap-router/internal/venue"
)

// DefaultDeadline applies to swap requests that carry no deadline.
const DefaultDeadline = time.Minute

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Engine  *swapengine.Engine
	Keys    *auth.KeySet   // API keys mapped to principals
	DevMode bool           // Enable detailed error responses in development
	Logger  *logrus.Logger // Structured logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// fail maps an engine error onto its status. Client errors carry the error text, server errors
// are logged and reported generically.
func (h *Handlers) fail(c echo.Context, op string, err error) error {
	code := statusFor(err)
	if code >= http.StatusInternalServerError && code != http.StatusBadGateway {
		h.Logger.WithError(err).WithField("op", op).Error("request failed")
		return h.err(c, code, op+" failed", map[string]any{"err": err.Error()})
	}
	resp := ErrorResponse{Error: err.Error(), Code: code, Details: errorDetails(err)}
	return c.JSON(code, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

func (h *Handlers) Health(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	paused, err := h.Engine.Paused(ctx)
	if err != nil {
		return h.err(c, http.StatusServiceUnavailable, "pause state unavailable", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, HealthResponse{OK: true, Paused: paused})
}

// Quote returns the best single-hop venue for a pair.
// Query: token_in, token_out, amount, mode (exact_in default, or exact_out).
func (h *Handlers) Quote(c echo.Context) error {
	in, out, amount, err := h.pairParams(c)
	if err != nil {
		return h.fail(c, "quote", err)
	}

	mode := strings.ToLower(strings.TrimSpace(c.QueryParam("mode")))
	if mode == "" {
		mode = "exact_in"
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	resp := QuoteResponse{TokenIn: in.String(), TokenOut: out.String(), Mode: mode, Amount: amount.String()}
	switch mode {
	case "exact_in":
		for _, o := range h.Engine.Quotes(ctx, in, out, amount) {
			resp.Outcomes = append(resp.Outcomes, outcomeView(o))
		}
		best := h.Engine.Quote(ctx, in, out, amount)
		if !best.Found() {
			return h.fail(c, "quote", router.ErrRouteNotFound)
		}
		resp.Best = &OutcomeView{VenueID: best.VenueID, FeeTier: best.FeeTier, Amount: best.Amount.String()}
	case "exact_out":
		best := h.Engine.QuoteExactOutput(ctx, in, out, amount)
		if !best.Found() {
			return h.fail(c, "quote", router.ErrRouteNotFound)
		}
		resp.Best = &OutcomeView{VenueID: best.VenueID, FeeTier: best.FeeTier, Amount: best.Amount.String()}
	default:
		return h.fail(c, "quote", router.Invalid("mode", "must be exact_in or exact_out", nil))
	}
	return c.JSON(http.StatusOK, resp)
}

// Route plans the best route for the raw amount, without the protocol fee.
func (h *Handlers) Route(c echo.Context) error {
	in, out, amount, err := h.pairParams(c)
	if err != nil {
		return h.fail(c, "route", err)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	route, err := h.Engine.Route(ctx, in, out, amount)
	if err != nil {
		return h.fail(c, "route", err)
	}
	return c.JSON(http.StatusOK, routeView(route))
}

func (h *Handlers) Venues(c echo.Context) error {
	vs := h.Engine.Venues()
	items := make([]VenueView, len(vs))
	for i, v := range vs {
		items[i] = venueView(v)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *Handlers) Config(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	paused, err := h.Engine.Paused(ctx)
	if err != nil {
		return h.fail(c, "config", err)
	}
	return c.JSON(http.StatusOK, configResponse(h.Engine.Config(), h.Engine.MEVParams(), paused))
}

// RecentTrades returns the most recent executions with optional limit parameter
// Accepts limit query parameter (default: 100, range: 1-200)
func (h *Handlers) RecentTrades(c echo.Context) error {
	limitStr := c.QueryParam("limit")
	limit := 100
	if limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > 200 {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 200"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Engine.RecentTrades(ctx, int64(limit))
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get trades", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *Handlers) Balance(c echo.Context) error {
	owner, err := solana.PublicKeyFromBase58(c.Param("owner"))
	if err != nil {
		return h.fail(c, "balance", router.Invalid("owner", "invalid account", nil))
	}
	asset, err := parseAsset("asset", c.QueryParam("asset"))
	if err != nil {
		return h.fail(c, "balance", err)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	bal, err := h.Engine.Balance(ctx, asset, owner)
	if err != nil {
		return h.fail(c, "balance", err)
	}
	return c.JSON(http.StatusOK, BalanceResponse{Owner: owner.String(), Asset: asset.String(), Balance: bal.String()})
}

// Swap plans and executes in one call for the account bound to the caller's API key. The
// account must have approved the custody account for the input asset.
func (h *Handlers) Swap(c echo.Context) error {
	var body SwapRequest
	if err := c.Bind(&body); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	req, err := body.toEngine(time.Now())
	if err != nil {
		return h.fail(c, "swap", err)
	}
	account, err := h.trader(c)
	if err != nil {
		return h.fail(c, "swap", err)
	}
	if body.Origin != "" && !req.Origin.Equals(account) {
		return h.fail(c, "swap", fmt.Errorf("%w: key for %s cannot trade for %s", auth.ErrUnauthorized, account, req.Origin))
	}
	req.Origin = account

	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	var res *swapengine.ExecutionResult
	switch {
	case body.NativeIn:
		res, err = h.Engine.SwapNativeIn(ctx, req)
	case body.NativeOut:
		res, err = h.Engine.SwapNativeOut(ctx, req)
	default:
		res, err = h.Engine.Swap(ctx, req)
	}
	if err != nil {
		return h.fail(c, "swap", err)
	}
	return c.JSON(http.StatusOK, swapResponse(res))
}

// trader resolves the account a trade key acts for. Its principal id is the account address.
func (h *Handlers) trader(c echo.Context) (solana.PublicKey, error) {
	p, ok := c.Get(principalKey).(auth.Principal)
	if !ok || h.Keys == nil {
		return solana.PublicKey{}, auth.ErrUnauthorized
	}
	if err := h.Keys.Authorize(c.Request().Context(), p, auth.CapTrade); err != nil {
		return solana.PublicKey{}, err
	}
	account, err := solana.PublicKeyFromBase58(p.ID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: principal %q is not an account", auth.ErrUnauthorized, p.ID)
	}
	return account, nil
}

func (b SwapRequest) toEngine(now time.Time) (swapengine.SwapRequest, error) {
	var (
		req swapengine.SwapRequest
		err error
	)
	if b.NativeIn && b.NativeOut {
		return req, router.Invalid("native_out", "cannot be combined with native_in", nil)
	}
	if b.Origin != "" {
		if req.Origin, err = parseAccount("origin", b.Origin); err != nil {
			return req, err
		}
	}
	// native legs may omit the wrapped mint
	if !b.NativeIn || b.TokenIn != "" {
		if req.TokenIn, err = parseAsset("token_in", b.TokenIn); err != nil {
			return req, err
		}
	}
	if !b.NativeOut || b.TokenOut != "" {
		if req.TokenOut, err = parseAsset("token_out", b.TokenOut); err != nil {
			return req, err
		}
	}
	if req.AmountIn, err = parseAmount("amount_in", b.AmountIn); err != nil {
		return req, err
	}
	if b.MinAmountOut != "" {
		floor, ok := new(big.Int).SetString(b.MinAmountOut, 10)
		if !ok || floor.Sign() < 0 {
			return req, router.Invalid("min_amount_out", "must be a non-negative integer", nil)
		}
		req.MinAmountOut = floor
	}
	if b.Recipient != "" {
		if req.Recipient, err = parseAccount("recipient", b.Recipient); err != nil {
			return req, err
		}
	}
	req.SlippageBps = b.SlippageBps
	req.NativeIn = b.NativeIn
	req.NativeOut = b.NativeOut
	req.Deadline = b.Deadline
	if req.Deadline.IsZero() {
		req.Deadline = now.Add(DefaultDeadline)
	}
	return req, nil
}

// Admin endpoints

func (h *Handlers) admin(c echo.Context) (*swapengine.Admin, error) {
	p, ok := c.Get(principalKey).(auth.Principal)
	if !ok {
		return nil, auth.ErrUnauthorized
	}
	return h.Engine.Admin(c.Request().Context(), p)
}

func (h *Handlers) WhoAmI(c echo.Context) error {
	a, err := h.admin(c)
	if err != nil {
		return h.fail(c, "whoami", err)
	}
	return c.JSON(http.StatusOK, a.Principal())
}

func (h *Handlers) AddVenue(c echo.Context) error {
	var req AddVenueRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	a, err := h.admin(c)
	if err != nil {
		return h.fail(c, "add venue", err)
	}
	kind, err := venue.ParseKind(req.Kind)
	if err != nil {
		return h.fail(c, "add venue", err)
	}
	addr, err := parseAccount("address", req.Address)
	if err != nil {
		return h.fail(c, "add venue", err)
	}
	v := venue.Venue{ID: req.ID, Address: addr, Kind: kind, FeeTiers: req.FeeTiers, Active: true}
	if req.Active != nil {
		v.Active = *req.Active
	}
	if err := a.AddVenue(v); err != nil {
		return h.fail(c, "add venue", err)
	}
	return c.JSON(http.StatusCreated, venueView(v))
}

func (h *Handlers) RemoveVenue(c echo.Context) error {
	a, err := h.admin(c)
	if err != nil {
		return h.fail(c, "remove venue", err)
	}
	if err := a.RemoveVenue(c.Param("id")); err != nil {
		return h.fail(c, "remove venue", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handlers) SetVenueActive(c echo.Context) error {
	var req SetActiveRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	a, err := h.admin(c)
	if err != nil {
		return h.fail(c, "set venue active", err)
	}
	if err := a.SetVenueActive(c.Param("id"), req.Active); err != nil {
		return h.fail(c, "set venue active", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handlers) SetFee(c echo.Context) error {
	var req SetFeeRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	a, err := h.admin(c)
	if err != nil {
		return h.fail(c, "set fee", err)
	}
	if err := a.SetFeeBps(req.FeeBps); err != nil {
		return h.fail(c, "set fee", err)
	}
	return h.Config(c)
}

func (h *Handlers) SetLimits(c echo.Context) error {
	var req SetLimitsRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	a, err := h.admin(c)
	if err != nil {
		return h.fail(c, "set limits", err)
	}
	minTrade, err := parseAmount("min_trade_size", req.MinTradeSize)
	if err != nil {
		return h.fail(c, "set limits", err)
	}
	l := swapengine.Limits{
		MaxHops:        req.MaxHops,
		MaxRoutes:      req.MaxRoutes,
		MinTradeSize:   minTrade,
		MaxSlippageBps: req.MaxSlippageBps,
	}
	if err := a.SetLimits(l); err != nil {
		return h.fail(c, "set limits", err)
	}
	return h.Config(c)
}

func (h *Handlers) SetIntermediates(c echo.Context) error {
	var req SetIntermediatesRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	a, err := h.admin(c)
	if err != nil {
		return h.fail(c, "set intermediates", err)
	}
	assets := make([]solana.PublicKey, 0, len(req.Assets))
	for i, s := range req.Assets {
		pk, err := parseAsset(fmt.Sprintf("assets[%d]", i), s)
		if err != nil {
			return h.fail(c, "set intermediates", err)
		}
		assets = append(assets, pk)
	}
	if err := a.SetIntermediates(assets); err != nil {
		return h.fail(c, "set intermediates", err)
	}
	return h.Config(c)
}

func (h *Handlers) SetGas(c echo.Context) error {
	var req SetGasRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	a, err := h.admin(c)
	if err != nil {
		return h.fail(c, "set gas", err)
	}
	var price *decimal.Decimal
	if req.GasPrice != "" {
		p, err := decimal.NewFromString(req.GasPrice)
		if err != nil {
			return h.fail(c, "set gas", router.Invalid("gas_price", "must be a decimal", nil))
		}
		price = &p
	}
	if err := a.SetGasOptimization(req.Enabled, price); err != nil {
		return h.fail(c, "set gas", err)
	}
	return h.Config(c)
}

func (h *Handlers) SetMEV(c echo.Context) error {
	var req mev.Params
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	a, err := h.admin(c)
	if err != nil {
		return h.fail(c, "set mev", err)
	}
	if err := a.SetMEVParams(req); err != nil {
		return h.fail(c, "set mev", err)
	}
	return h.Config(c)
}

func (h *Handlers) Pause(c echo.Context) error {
	return h.setPaused(c, true)
}

func (h *Handlers) Unpause(c echo.Context) error {
	return h.setPaused(c, false)
}

func (h *Handlers) setPaused(c echo.Context, paused bool) error {
	a, err := h.admin(c)
	if err != nil {
		return h.fail(c, "pause", err)
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if paused {
		err = a.Pause(ctx)
	} else {
		err = a.Unpause(ctx)
	}
	if err != nil {
		return h.fail(c, "pause", err)
	}
	return c.JSON(http.StatusOK, HealthResponse{OK: true, Paused: paused})
}

// PauseStatus reports who last paused or resumed execution.
func (h *Handlers) PauseStatus(c echo.Context) error {
	if _, err := h.admin(c); err != nil {
		return h.fail(c, "pause status", err)
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	st, err := h.Engine.PauseState(ctx)
	if err != nil {
		return h.fail(c, "pause status", err)
	}
	hist, err := h.Engine.PauseHistory(ctx, 20)
	if err != nil {
		return h.fail(c, "pause status", err)
	}
	return c.JSON(http.StatusOK, PauseResponse{State: st, History: hist})
}

// pairParams reads token_in, token_out and amount from the query string.
func (h *Handlers) pairParams(c echo.Context) (in, out solana.PublicKey, amount *big.Int, err error) {
	if in, err = parseAsset("token_in", c.QueryParam("token_in")); err != nil {
		return
	}
	if out, err = parseAsset("token_out", c.QueryParam("token_out")); err != nil {
		return
	}
	amount, err = parseAmount("amount", c.QueryParam("amount"))
	return
}

func parseAsset(field, s string) (solana.PublicKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return solana.PublicKey{}, router.Invalid(field, "required", nil)
	}
	pk, err := config.ParseAsset(s)
	if err != nil {
		return solana.PublicKey{}, router.Invalid(field, "unknown symbol or invalid mint", nil)
	}
	return pk, nil
}

func parseAccount(field, s string) (solana.PublicKey, error) {
	pk, err := config.ParseAccount(strings.TrimSpace(s))
	if err != nil {
		return solana.PublicKey{}, router.Invalid(field, err.Error(), nil)
	}
	return pk, nil
}

func parseAmount(field, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || v.Sign() <= 0 {
		return nil, router.Invalid(field, "must be a positive integer", nil)
	}
	return v, nil
}
