package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/permit-simulator/core"
)

// SimCollector bundles Prometheus metrics for a simulation run and provides
// an HTTP handler to expose them. It implements core.MetricsRecorder so it
// can be handed to the engine as an option.
type SimCollector struct {
	gatherer prometheus.Gatherer

	ComplianceRate prometheus.Gauge
	ClearingPrice  prometheus.Gauge
	TotalWealth    prometheus.Gauge
	CurrentRound   prometheus.Gauge

	Penalties   prometheus.Counter
	Audits      prometheus.Counter
	Catches     prometheus.Counter
	FalseAlarms prometheus.Counter

	RoundDuration prometheus.Histogram
}

// NewSimCollector registers simulation Prometheus metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	compliance, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_compliance_rate",
		Help: "Fraction of agents that complied in the most recent round.",
	}), "sim_compliance_rate")
	if err != nil {
		return nil, err
	}
	price, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_clearing_price",
		Help: "Permit clearing price of the most recent round.",
	}), "sim_clearing_price")
	if err != nil {
		return nil, err
	}
	wealth, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_total_wealth",
		Help: "Aggregate agent wealth after the most recent round.",
	}), "sim_total_wealth")
	if err != nil {
		return nil, err
	}
	round, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_round",
		Help: "Number of the most recently completed round.",
	}), "sim_round")
	if err != nil {
		return nil, err
	}

	penalties, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_penalties_total",
		Help: "Cumulative monetary penalties collected across the run.",
	}), "sim_penalties_total")
	if err != nil {
		return nil, err
	}
	audits, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_audits_total",
		Help: "Cumulative number of audits performed across the run.",
	}), "sim_audits_total")
	if err != nil {
		return nil, err
	}
	catches, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_catches_total",
		Help: "Cumulative number of violators caught across the run.",
	}), "sim_catches_total")
	if err != nil {
		return nil, err
	}
	falseAlarms, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sim_false_alarms_total",
		Help: "Cumulative number of compliant agents flagged in error.",
	}), "sim_false_alarms_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_round_duration_seconds",
		Help:    "Wall-clock time spent computing one round.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}), "sim_round_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:       gatherer,
		ComplianceRate: compliance,
		ClearingPrice:  price,
		TotalWealth:    wealth,
		CurrentRound:   round,
		Penalties:      penalties,
		Audits:         audits,
		Catches:        catches,
		FalseAlarms:    falseAlarms,
		RoundDuration:  duration,
	}, nil
}

// RecordRound updates gauges and counters from a completed round snapshot.
// Implements core.MetricsRecorder.
func (c *SimCollector) RecordRound(snap core.RoundSnapshot) {
	if c == nil {
		return
	}
	c.ComplianceRate.Set(snap.ComplianceRate())
	c.ClearingPrice.Set(snap.ClearingPrice)
	c.TotalWealth.Set(snap.TotalWealth)
	c.CurrentRound.Set(float64(snap.Round))

	c.Penalties.Add(snap.TotalPenalties)
	c.Audits.Add(float64(snap.AuditedCount))
	c.Catches.Add(float64(snap.CaughtCount))
	c.FalseAlarms.Add(float64(snap.FalseAlarmCount))
}

// ObserveRoundDuration records how long one round took to compute.
func (c *SimCollector) ObserveRoundDuration(d time.Duration) {
	if c == nil {
		return
	}
	c.RoundDuration.Observe(d.Seconds())
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
