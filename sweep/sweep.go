// Package sweep runs one scenario across a range of values for a single
// policy parameter, one fresh engine per value. Runs get distinct seeds so
// points are independent, and results carry run-level aggregates suitable
// for plotting deterrence curves.
package sweep

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/permit-simulator/core"
	"github.com/signalsfoundry/permit-simulator/model"
)

const tracerName = "github.com/signalsfoundry/permit-simulator/sweep"

// Spec names the swept parameter by its dotted config key, e.g.
// "audit.penalty_amount" or "market.fixed_price".
type Spec struct {
	Parameter string    `json:"parameter" yaml:"parameter"`
	Values    []float64 `json:"values" yaml:"values"`

	// Rounds overrides the scenario's round count when positive.
	Rounds int `json:"rounds,omitempty" yaml:"rounds,omitempty"`
}

// Point is the outcome of one run at one parameter value.
type Point struct {
	Value           float64 `json:"value"`
	Seed            int64   `json:"seed"`
	MeanCompliance  float64 `json:"mean_compliance"`
	FinalCompliance float64 `json:"final_compliance"`
	MeanPrice       float64 `json:"mean_price"`
	TotalPenalties  float64 `json:"total_penalties"`
	TotalAudits     int     `json:"total_audits"`
	TotalCaught     int     `json:"total_caught"`
	FinalWealth     float64 `json:"final_wealth"`
}

// Result is a completed sweep.
type Result struct {
	Parameter string  `json:"parameter"`
	Points    []Point `json:"points"`
}

// Run executes the sweep against the base scenario. Each point runs on a
// copy of the scenario with the parameter applied and the seed offset by the
// point's index, so no two points share a random stream.
func Run(ctx context.Context, base model.ScenarioConfig, spec Spec) (Result, error) {
	if spec.Parameter == "" {
		return Result{}, fmt.Errorf("%w: sweep parameter is empty", model.ErrInvalidConfig)
	}
	if len(spec.Values) == 0 {
		return Result{}, fmt.Errorf("%w: sweep has no values", model.ErrInvalidConfig)
	}

	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "sweep", trace.WithAttributes(
		attribute.String("parameter", spec.Parameter),
		attribute.Int("points", len(spec.Values)),
	))
	defer span.End()

	res := Result{Parameter: spec.Parameter, Points: make([]Point, 0, len(spec.Values))}
	for i, v := range spec.Values {
		cfg := base
		cfg.Seed = base.Seed + int64(i)
		if spec.Rounds > 0 {
			cfg.Rounds = spec.Rounds
		}
		if err := apply(&cfg, spec.Parameter, v); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return Result{}, err
		}

		point, err := runPoint(ctx, tracer, cfg, v)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return Result{}, fmt.Errorf("sweep %s=%v: %w", spec.Parameter, v, err)
		}
		res.Points = append(res.Points, point)
	}
	return res, nil
}

func runPoint(ctx context.Context, tracer trace.Tracer, cfg model.ScenarioConfig, value float64) (Point, error) {
	ctx, span := tracer.Start(ctx, "point", trace.WithAttributes(
		attribute.Float64("value", value),
		attribute.Int64("seed", cfg.Seed),
	))
	defer span.End()

	eng, err := core.New(cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Point{}, err
	}
	snaps, err := eng.Run(ctx, cfg.Rounds)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Point{}, err
	}
	return reduce(value, cfg.Seed, snaps), nil
}

func reduce(value float64, seed int64, snaps []core.RoundSnapshot) Point {
	p := Point{Value: value, Seed: seed}
	if len(snaps) == 0 {
		return p
	}
	for _, snap := range snaps {
		p.MeanCompliance += snap.ComplianceRate()
		p.MeanPrice += snap.ClearingPrice
		p.TotalPenalties += snap.TotalPenalties
		p.TotalAudits += snap.AuditedCount
		p.TotalCaught += snap.CaughtCount
	}
	n := float64(len(snaps))
	p.MeanCompliance /= n
	p.MeanPrice /= n
	last := snaps[len(snaps)-1]
	p.FinalCompliance = last.ComplianceRate()
	p.FinalWealth = last.TotalWealth
	return p
}

// apply sets one dotted parameter on the scenario. Integer parameters are
// rejected unless the value is integral.
func apply(cfg *model.ScenarioConfig, key string, v float64) error {
	switch key {
	case "flop_threshold":
		cfg.FLOPThreshold = v
	case "collateral_amount":
		cfg.CollateralAmount = v

	case "audit.base_prob":
		cfg.Audit.BaseProb = v
	case "audit.signal_exponent":
		cfg.Audit.SignalExponent = v
	case "audit.false_positive_rate":
		cfg.Audit.FalsePositiveRate = v
	case "audit.false_negative_rate":
		cfg.Audit.FalseNegativeRate = v
	case "audit.backcheck_prob":
		cfg.Audit.BackcheckProb = v
	case "audit.whistleblower_prob":
		cfg.Audit.WhistleblowerProb = v
	case "audit.monitoring_prob":
		cfg.Audit.MonitoringProb = v
	case "audit.penalty_amount":
		cfg.Audit.PenaltyAmount = v
	case "audit.penalty_fixed":
		cfg.Audit.PenaltyFixed = v
	case "audit.penalty_percentage":
		cfg.Audit.PenaltyPercentage = v
	case "audit.penalty_ceiling":
		cfg.Audit.PenaltyCeiling = v
	case "audit.audit_escalation":
		cfg.Audit.AuditEscalation = v
	case "audit.audit_decay_rate":
		cfg.Audit.AuditDecayRate = v
	case "audit.max_audits_per_round":
		n, err := asInt(key, v)
		if err != nil {
			return err
		}
		cfg.Audit.MaxAuditsPerRound = n

	case "market.fixed_price":
		cfg.Market.FixedPrice = v
	case "market.permit_cap":
		n, err := asInt(key, v)
		if err != nil {
			return err
		}
		cfg.Market.PermitCap = n

	case "lab.racing_factor":
		cfg.Lab.RacingFactor = v
	case "lab.capability_value":
		cfg.Lab.CapabilityValue = v
	case "lab.reputation_sensitivity":
		cfg.Lab.ReputationSensitivity = v
	case "lab.audit_coefficient":
		cfg.Lab.AuditCoefficient = v
	case "lab.reputation_escalation_factor":
		cfg.Lab.ReputationEscalationFactor = v
	case "lab.racing_gap_sensitivity":
		cfg.Lab.RacingGapSensitivity = v

	default:
		return fmt.Errorf("%w: unknown sweep parameter %q", model.ErrInvalidConfig, key)
	}
	return nil
}

func asInt(key string, v float64) (int, error) {
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("%w: %s = %v, want an integer", model.ErrInvalidConfig, key, v)
	}
	return int(v), nil
}
