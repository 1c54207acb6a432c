package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"crowdsale/core/events"
	"crowdsale/core/types"
	"crowdsale/native/sale"
)

type SaleMetrics struct {
	purchasesTotal  prometheus.Counter
	rejectionsTotal *prometheus.CounterVec
	claimsTotal     *prometheus.CounterVec
	tokensSold      prometheus.Counter
	fundsRaised     prometheus.Counter
	refundsTotal    prometheus.Counter
	currentTier     prometheus.Gauge
}

var (
	saleOnce     sync.Once
	saleRegistry *SaleMetrics
)

func Sale() *SaleMetrics {
	saleOnce.Do(func() {
		saleRegistry = &SaleMetrics{
			purchasesTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "sale_purchases_total",
				Help: "Count of committed token purchases.",
			}),
			rejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "sale_purchase_rejections_total",
				Help: "Count of rejected purchase attempts by reason.",
			}, []string{"reason"}),
			claimsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "sale_claims_total",
				Help: "Count of participant claim operations by kind.",
			}, []string{"kind"}),
			tokensSold: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "sale_tokens_sold_wei_total",
				Help: "Cumulative token units granted across all purchases.",
			}),
			fundsRaised: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "sale_funds_raised_wei_total",
				Help: "Cumulative payment collected across all purchases.",
			}),
			refundsTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "sale_refunds_total",
				Help: "Count of soft-cap refunds paid out.",
			}),
			currentTier: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "sale_current_tier",
				Help: "Index of the currently active tier.",
			}),
		}
		prometheus.MustRegister(
			saleRegistry.purchasesTotal,
			saleRegistry.rejectionsTotal,
			saleRegistry.claimsTotal,
			saleRegistry.tokensSold,
			saleRegistry.fundsRaised,
			saleRegistry.refundsTotal,
			saleRegistry.currentTier,
		)
	})
	return saleRegistry
}

func (m *SaleMetrics) ObservePurchase(amount, tokens *big.Int) {
	if m == nil {
		return
	}
	m.purchasesTotal.Inc()
	if amount != nil {
		m.fundsRaised.Add(bigFloat(amount))
	}
	if tokens != nil {
		m.tokensSold.Add(bigFloat(tokens))
	}
}

func (m *SaleMetrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.rejectionsTotal.WithLabelValues(reason).Inc()
}

func (m *SaleMetrics) ObserveClaim(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.claimsTotal.WithLabelValues(kind).Inc()
}

func (m *SaleMetrics) ObserveRefund() {
	if m == nil {
		return
	}
	m.refundsTotal.Inc()
}

func (m *SaleMetrics) SetCurrentTier(index uint32) {
	if m == nil {
		return
	}
	m.currentTier.Set(float64(index))
}

func bigFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

// Observer adapts the metrics registry to the engine's event emitter so that
// the gauges and counters track state changes without the engine knowing about
// prometheus.
type Observer struct {
	metrics *SaleMetrics
}

// NewObserver returns an emitter that feeds the shared sale metrics.
func NewObserver() *Observer {
	return &Observer{metrics: Sale()}
}

// Emit implements the events.Emitter interface.
func (o *Observer) Emit(evt events.Event) {
	if o == nil || o.metrics == nil || evt == nil {
		return
	}
	payload := eventPayload(evt)
	switch evt.EventType() {
	case sale.EventTypeTokensPurchased:
		o.metrics.ObservePurchase(attrAmount(payload, "amount"), attrAmount(payload, "tokens"))
	case sale.EventTypeTokensUnlocked:
		o.metrics.ObserveClaim("unlock")
	case sale.EventTypeTokensReleased:
		o.metrics.ObserveClaim("vesting")
	case sale.EventTypeDistributionClaimed:
		o.metrics.ObserveClaim("distribution")
	case sale.EventTypeReferralBonusClaimed:
		o.metrics.ObserveClaim("referral")
	case sale.EventTypeRefundClaimed:
		o.metrics.ObserveRefund()
	case sale.EventTypeTierAdvanced:
		if idx, ok := new(big.Int).SetString(attrString(payload, "index"), 10); ok {
			o.metrics.SetCurrentTier(uint32(idx.Uint64()))
		}
	}
}

func eventPayload(evt events.Event) *types.Event {
	carrier, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return nil
	}
	return carrier.Event()
}

func attrString(evt *types.Event, key string) string {
	if evt == nil {
		return ""
	}
	return evt.Attributes[key]
}

func attrAmount(evt *types.Event, key string) *big.Int {
	amount, ok := new(big.Int).SetString(attrString(evt, key), 10)
	if !ok {
		return nil
	}
	return amount
}
