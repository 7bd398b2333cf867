package pool

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"cpamm/internal/ammerr"
)

// Metrics holds the Prometheus collectors of the pool engine. A nil *Metrics
// records nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	volume     *prometheus.CounterVec
	fees       *prometheus.CounterVec
	lpSupply   *prometheus.GaugeVec
}

// NewMetrics creates the engine collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amm",
			Subsystem: "pool",
			Name:      "operations_total",
			Help:      "Pool operations by kind and outcome.",
		}, []string{"operation", "status"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amm",
			Subsystem: "pool",
			Name:      "volume_total",
			Help:      "Token base units moved through pool vaults.",
		}, []string{"seed", "side", "flow"}),
		fees: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amm",
			Subsystem: "pool",
			Name:      "fees_total",
			Help:      "Swap fees retained by pools, in input token base units.",
		}, []string{"seed", "side"}),
		lpSupply: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "amm",
			Subsystem: "pool",
			Name:      "lp_supply",
			Help:      "Outstanding liquidity shares after the last committed operation.",
		}, []string{"seed"}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.volume, m.fees, m.lpSupply)
	}
	return m
}

func (m *Metrics) observeOperation(op string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, ammerr.Label(err)).Inc()
}

func (m *Metrics) observeFlow(seed uint64, side, flow string, amount uint64) {
	if m == nil || amount == 0 {
		return
	}
	m.volume.WithLabelValues(strconv.FormatUint(seed, 10), side, flow).Add(float64(amount))
}

func (m *Metrics) observeFee(seed uint64, side string, amount uint64) {
	if m == nil || amount == 0 {
		return
	}
	m.fees.WithLabelValues(strconv.FormatUint(seed, 10), side).Add(float64(amount))
}

func (m *Metrics) setLPSupply(seed uint64, supply uint64) {
	if m == nil {
		return
	}
	m.lpSupply.WithLabelValues(strconv.FormatUint(seed, 10)).Set(float64(supply))
}
