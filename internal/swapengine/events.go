package swapengine

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/swap-router/internal/constants"
	"github.com/aman-zulfiqar/swap-router/internal/metrics"
	"github.com/aman-zulfiqar/swap-router/internal/models"
	"github.com/aman-zulfiqar/swap-router/internal/storage"
)

// events delivers committed trades to the optional sinks. Delivery is best-effort: a sink
// failure is logged and counted but never affects the already committed execution.
type events struct {
	cache   storage.TradeCache
	store   storage.TradeStore
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

func (e *events) enabled() bool {
	return e != nil && (e.cache != nil || e.store != nil)
}

func (e *events) publish(ev *models.TradeEvent) {
	if !e.enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), constants.EventPublishTimeout)
	defer cancel()

	if e.cache != nil {
		if err := e.cache.AddRecentTrade(ctx, ev); err != nil {
			e.fail("redis_recent", ev, err)
		}
		if err := e.cache.PublishTrade(ctx, ev); err != nil {
			e.fail("redis_pubsub", ev, err)
		}
	}
	if e.store != nil {
		if err := e.store.InsertTrade(ctx, ev); err != nil {
			e.fail("clickhouse", ev, err)
		}
	}
}

func (e *events) fail(sink string, ev *models.TradeEvent, err error) {
	e.metrics.EventPublishFailures.WithLabelValues(sink).Inc()
	e.logger.WithError(err).WithFields(logrus.Fields{
		"sink":         sink,
		"execution_id": ev.ExecutionID,
	}).Warn("trade event not delivered")
}
