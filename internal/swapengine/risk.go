package swapengine

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/swap-router/internal/constants"
	"github.com/aman-zulfiqar/swap-router/internal/ledger"
	"github.com/aman-zulfiqar/swap-router/internal/router"
	"github.com/aman-zulfiqar/swap-router/internal/venue"
)

// checkRequest validates req at block time now. Checks run in order; the first failure wins.
func checkRequest(req SwapRequest, cfg router.Config, now time.Time) error {
	// 1. Deadline
	if req.Deadline.IsZero() {
		return router.Invalid("deadline", "required", nil)
	}
	if now.After(req.Deadline) {
		return router.Invalid("deadline",
			fmt.Sprintf("block time %s is past %s", now.UTC().Format(time.RFC3339), req.Deadline.UTC().Format(time.RFC3339)),
			ErrDeadlineExceeded)
	}

	// 2. Parties
	if err := checkNativeLegs(req); err != nil {
		return err
	}
	if req.Origin.IsZero() {
		return router.Invalid("origin", "zero address", nil)
	}
	if req.TokenIn.IsZero() || req.TokenOut.IsZero() {
		return router.Invalid("token", "zero address", nil)
	}
	if req.TokenIn.Equals(req.TokenOut) {
		return router.Invalid("token_out", "must differ from token_in", nil)
	}
	if req.NativeIn && !req.TokenIn.Equals(ledger.Wrapped) {
		return router.Invalid("token_in", fmt.Sprintf("native input requires %s", ledger.Wrapped), nil)
	}
	if req.NativeOut && !req.TokenOut.Equals(ledger.Wrapped) {
		return router.Invalid("token_out", fmt.Sprintf("native output requires %s", ledger.Wrapped), nil)
	}

	// 3. Amounts
	if req.AmountIn == nil || req.AmountIn.Sign() <= 0 {
		return router.Invalid("amount_in", "must be > 0", nil)
	}
	if cfg.MinTradeSize != nil && req.AmountIn.Cmp(cfg.MinTradeSize) < 0 {
		return router.Invalid("amount_in", fmt.Sprintf("%s is below min trade size %s", req.AmountIn, cfg.MinTradeSize), nil)
	}
	if req.MinAmountOut == nil || req.MinAmountOut.Sign() < 0 {
		return router.Invalid("min_amount_out", "must be >= 0", nil)
	}
	return nil
}

func checkNativeLegs(req SwapRequest) error {
	if req.NativeIn && req.NativeOut {
		return router.Invalid("native_out", "cannot be combined with native_in", nil)
	}
	return nil
}

// checkRoute verifies route connects req's assets through present, active venues within cfg.
// The returned venues are aligned with route.Hops.
func checkRoute(route *router.Route, req SwapRequest, cfg router.Config, reg *venue.Registry) ([]venue.Venue, error) {
	if route == nil || len(route.Hops) == 0 {
		return nil, router.Invalid("route", "empty", nil)
	}
	if len(route.Hops) > cfg.MaxHops {
		return nil, router.Invalid("route", fmt.Sprintf("%d hops exceeds max %d", len(route.Hops), cfg.MaxHops), nil)
	}
	if len(route.Tokens) != len(route.Hops)+1 {
		return nil, router.Invalid("route", fmt.Sprintf("%d tokens for %d hops", len(route.Tokens), len(route.Hops)), nil)
	}
	if !route.Tokens[0].Equals(req.TokenIn) || !route.Tokens[len(route.Tokens)-1].Equals(req.TokenOut) {
		return nil, router.Invalid("route", "endpoints do not match token_in/token_out", nil)
	}

	venues := make([]venue.Venue, len(route.Hops))
	for i, hop := range route.Hops {
		if !hop.TokenIn.Equals(route.Tokens[i]) || !hop.TokenOut.Equals(route.Tokens[i+1]) {
			return nil, router.Invalid("route", fmt.Sprintf("hop %d breaks continuity", i), nil)
		}
		if hop.TokenIn.Equals(hop.TokenOut) {
			return nil, router.Invalid("route", fmt.Sprintf("hop %d swaps %s into itself", i, hop.TokenIn), nil)
		}
		v, err := reg.Get(hop.VenueID)
		if err != nil {
			return nil, router.Invalid("route", fmt.Sprintf("hop %d: venue %q", i, hop.VenueID), err)
		}
		if !v.Active {
			return nil, router.Invalid("route", fmt.Sprintf("hop %d: venue %q is inactive", i, hop.VenueID), nil)
		}
		if !hasTier(v, hop.FeeTier) {
			return nil, router.Invalid("route", fmt.Sprintf("hop %d: venue %q has no fee tier %d", i, hop.VenueID, hop.FeeTier), nil)
		}
		venues[i] = v
	}
	return venues, nil
}

func hasTier(v venue.Venue, tier uint32) bool {
	for _, t := range v.Tiers() {
		if t == tier {
			return true
		}
	}
	return false
}

func pairLabel(in, out solana.PublicKey) string {
	return constants.Symbol(in.String()) + "/" + constants.Symbol(out.String())
}
