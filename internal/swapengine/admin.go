package swapengine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/swap-router/internal/auth"
	"github.com/aman-zulfiqar/swap-router/internal/mev"
	"github.com/aman-zulfiqar/swap-router/internal/router"
	"github.com/aman-zulfiqar/swap-router/internal/venue"
)

// Admin is an authorized handle on the engine's mutable state. Obtaining one is the only
// authorization check; principals holding just CapPause may only pause and unpause.
type Admin struct {
	engine    *Engine
	principal auth.Principal
	full      bool
}

// Admin authorizes principal once and returns a handle for its operations.
func (e *Engine) Admin(ctx context.Context, p auth.Principal) (*Admin, error) {
	if err := e.authorizer.Authorize(ctx, p, auth.CapAdmin); err == nil {
		return &Admin{engine: e, principal: p, full: true}, nil
	}
	if err := e.authorizer.Authorize(ctx, p, auth.CapPause); err != nil {
		return nil, err
	}
	return &Admin{engine: e, principal: p}, nil
}

func (a *Admin) Principal() auth.Principal { return a.principal }

func (a *Admin) requireFull(op string) error {
	if !a.full {
		return fmt.Errorf("%w: %s requires %s", auth.ErrUnauthorized, op, auth.CapAdmin)
	}
	return nil
}

func (a *Admin) log(op string) *logrus.Entry {
	return a.engine.logger.WithFields(logrus.Fields{
		"principal": a.principal.ID,
		"op":        op,
	})
}

// AddVenue registers v. A nil Adapter is resolved from the engine's catalog by v.ID.
func (a *Admin) AddVenue(v venue.Venue) error {
	if err := a.requireFull("add venue"); err != nil {
		return err
	}
	if v.Adapter == nil {
		adapter, ok := a.engine.adapterFor(v.ID)
		if !ok {
			return fmt.Errorf("%w: no adapter known for %q", venue.ErrInvalidVenue, v.ID)
		}
		v.Adapter = adapter
	}
	if err := a.engine.registry.Add(v); err != nil {
		return err
	}
	a.engine.remember(v)
	a.log("add_venue").WithFields(logrus.Fields{
		"venue":  v.ID,
		"kind":   v.Kind,
		"active": v.Active,
	}).Info("venue added")
	return nil
}

func (a *Admin) RemoveVenue(id string) error {
	if err := a.requireFull("remove venue"); err != nil {
		return err
	}
	if err := a.engine.registry.Remove(id); err != nil {
		return err
	}
	a.log("remove_venue").WithField("venue", id).Info("venue removed")
	return nil
}

func (a *Admin) SetVenueActive(id string, active bool) error {
	if err := a.requireFull("set venue active"); err != nil {
		return err
	}
	if err := a.engine.registry.SetActive(id, active); err != nil {
		return err
	}
	a.log("set_venue_active").WithFields(logrus.Fields{"venue": id, "active": active}).Info("venue updated")
	return nil
}

func (a *Admin) SetFeeBps(bps uint32) error {
	if err := a.requireFull("set fee"); err != nil {
		return err
	}
	if _, err := a.engine.updateConfig(func(c *router.Config) { c.FeeBps = bps }); err != nil {
		return err
	}
	a.log("set_fee_bps").WithField("fee_bps", bps).Info("fee updated")
	return nil
}

func (a *Admin) SetLimits(l Limits) error {
	if err := a.requireFull("set limits"); err != nil {
		return err
	}
	_, err := a.engine.updateConfig(func(c *router.Config) {
		c.MaxHops = l.MaxHops
		c.MaxRoutes = l.MaxRoutes
		c.MaxSlippageBps = l.MaxSlippageBps
		if l.MinTradeSize != nil {
			c.MinTradeSize = new(big.Int).Set(l.MinTradeSize)
		} else {
			c.MinTradeSize = nil
		}
	})
	if err != nil {
		return err
	}
	a.log("set_limits").WithFields(logrus.Fields{
		"max_hops":         l.MaxHops,
		"max_routes":       l.MaxRoutes,
		"min_trade_size":   bigString(l.MinTradeSize),
		"max_slippage_bps": l.MaxSlippageBps,
	}).Info("limits updated")
	return nil
}

func (a *Admin) SetIntermediates(assets []solana.PublicKey) error {
	if err := a.requireFull("set intermediates"); err != nil {
		return err
	}
	_, err := a.engine.updateConfig(func(c *router.Config) {
		c.Intermediates = append([]solana.PublicKey(nil), assets...)
	})
	if err != nil {
		return err
	}
	a.log("set_intermediates").WithField("count", len(assets)).Info("intermediates updated")
	return nil
}

// SetGasOptimization toggles gas-adjusted scoring. A non-nil price replaces the default gas price.
func (a *Admin) SetGasOptimization(enabled bool, price *decimal.Decimal) error {
	if err := a.requireFull("set gas optimization"); err != nil {
		return err
	}
	_, err := a.engine.updateConfig(func(c *router.Config) {
		c.GasOptimization = enabled
		if price != nil {
			c.GasPrice = *price
		}
	})
	if err != nil {
		return err
	}
	a.log("set_gas_optimization").WithField("enabled", enabled).Info("gas optimization updated")
	return nil
}

func (a *Admin) SetMEVParams(p mev.Params) error {
	if err := a.requireFull("set mev params"); err != nil {
		return err
	}
	if err := a.engine.throttle.SetParams(p); err != nil {
		return router.Invalid("mev", err.Error(), nil)
	}
	a.log("set_mev_params").WithFields(logrus.Fields{
		"enabled":      p.Enabled,
		"min_unit_gap": p.MinUnitGap,
	}).Info("mev params updated")
	return nil
}

func (a *Admin) Pause(ctx context.Context) error {
	return a.setPaused(ctx, true)
}

func (a *Admin) Unpause(ctx context.Context) error {
	return a.setPaused(ctx, false)
}

func (a *Admin) setPaused(ctx context.Context, paused bool) error {
	if err := a.engine.pause.SetPaused(ctx, paused, a.principal.ID); err != nil {
		return fmt.Errorf("set paused: %w", err)
	}
	if paused {
		a.engine.metrics.Paused.Set(1)
	} else {
		a.engine.metrics.Paused.Set(0)
	}
	a.log("set_paused").WithField("paused", paused).Warn("execution pause toggled")
	return nil
}
