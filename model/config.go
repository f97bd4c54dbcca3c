// Package model defines the immutable configuration value types consumed by
// the deterrence engine. Configuration is validated once, at load or engine
// construction; the engine never mutates it.
package model

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig wraps every configuration validation failure so callers
// can distinguish bad input from engine bugs.
var ErrInvalidConfig = errors.New("invalid scenario config")

// MarketMode selects how permits are priced and allocated.
type MarketMode string

const (
	// MarketAuction clears a fixed supply at the Q-th highest bid.
	MarketAuction MarketMode = "auction"
	// MarketFixedPrice posts a constant price with unlimited supply.
	MarketFixedPrice MarketMode = "fixed"
)

// AuditConfig carries the detection-policy and penalty constants for the
// auditor. All probabilities are in [0, 1].
type AuditConfig struct {
	// BaseProb is the floor audit probability applied to every firm,
	// regardless of signal.
	BaseProb float64 `json:"base_prob" yaml:"base_prob"`

	// SignalDependent switches between signal-driven audit targeting and
	// pure random auditing at BaseProb.
	SignalDependent bool `json:"signal_dependent" yaml:"signal_dependent"`

	// SignalExponent shapes how excess compute maps to suspicion:
	// signal = min(1, (excess/threshold)^exponent). Lower exponents make
	// small violations visible; higher exponents hide all but flagrant ones.
	SignalExponent float64 `json:"signal_exponent" yaml:"signal_exponent"`

	// FalsePositiveRate is P(false alarm | compliant firm audited). It
	// affects reported suspicion only, never penalties.
	FalsePositiveRate float64 `json:"false_positive_rate" yaml:"false_positive_rate"`

	// FalseNegativeRate is P(direct audit pass misses | real violation).
	FalseNegativeRate float64 `json:"false_negative_rate" yaml:"false_negative_rate"`

	// BackcheckProb is the chance a secondary records review catches a
	// violation the direct pass missed.
	BackcheckProb float64 `json:"backcheck_prob" yaml:"backcheck_prob"`

	// WhistleblowerProb and MonitoringProb are further independent catch
	// channels nested within the audit event.
	WhistleblowerProb float64 `json:"whistleblower_prob" yaml:"whistleblower_prob"`
	MonitoringProb    float64 `json:"monitoring_prob" yaml:"monitoring_prob"`

	// PenaltyAmount is the flat fallback fine (M$), used when neither
	// PenaltyFixed nor PenaltyPercentage is configured.
	PenaltyAmount float64 `json:"penalty_amount" yaml:"penalty_amount"`

	// PenaltyFixed is a fixed fine floor (M$), PenaltyPercentage a share of
	// firm revenue; the levied fine is the larger of the two, capped at
	// PenaltyCeiling when that is positive.
	PenaltyFixed      float64 `json:"penalty_fixed" yaml:"penalty_fixed"`
	PenaltyPercentage float64 `json:"penalty_percentage" yaml:"penalty_percentage"`
	PenaltyCeiling    float64 `json:"penalty_ceiling" yaml:"penalty_ceiling"`

	// MaxAuditsPerRound caps how many flagged firms are actually audited in
	// one round. Zero disables the cap.
	MaxAuditsPerRound int `json:"max_audits_per_round" yaml:"max_audits_per_round"`

	// AuditEscalation is added to a firm's audit coefficient on each catch.
	AuditEscalation float64 `json:"audit_escalation" yaml:"audit_escalation"`

	// AuditDecayRate is the fraction of the escalated excess removed each
	// round, relaxing the coefficient back toward its base.
	AuditDecayRate float64 `json:"audit_decay_rate" yaml:"audit_decay_rate"`
}

// Validate checks all audit policy constants.
func (c AuditConfig) Validate() error {
	probs := []struct {
		name string
		v    float64
	}{
		{"audit.base_prob", c.BaseProb},
		{"audit.false_positive_rate", c.FalsePositiveRate},
		{"audit.false_negative_rate", c.FalseNegativeRate},
		{"audit.backcheck_prob", c.BackcheckProb},
		{"audit.whistleblower_prob", c.WhistleblowerProb},
		{"audit.monitoring_prob", c.MonitoringProb},
		{"audit.penalty_percentage", c.PenaltyPercentage},
		{"audit.audit_decay_rate", c.AuditDecayRate},
	}
	for _, p := range probs {
		if p.v < 0 || p.v > 1 {
			return fmt.Errorf("%w: %s = %v, want [0, 1]", ErrInvalidConfig, p.name, p.v)
		}
	}
	if c.SignalExponent <= 0 {
		return fmt.Errorf("%w: audit.signal_exponent = %v, want > 0", ErrInvalidConfig, c.SignalExponent)
	}
	for _, m := range []struct {
		name string
		v    float64
	}{
		{"audit.penalty_amount", c.PenaltyAmount},
		{"audit.penalty_fixed", c.PenaltyFixed},
		{"audit.audit_escalation", c.AuditEscalation},
	} {
		if m.v < 0 {
			return fmt.Errorf("%w: %s = %v, want >= 0", ErrInvalidConfig, m.name, m.v)
		}
	}
	if c.MaxAuditsPerRound < 0 {
		return fmt.Errorf("%w: audit.max_audits_per_round = %d, want >= 0", ErrInvalidConfig, c.MaxAuditsPerRound)
	}
	return nil
}

// MarketConfig fixes the permit market mechanism for a run.
type MarketConfig struct {
	Mode MarketMode `json:"mode" yaml:"mode"`

	// PermitCap is the permit supply Q in auction mode.
	PermitCap int `json:"permit_cap" yaml:"permit_cap"`

	// FixedPrice is the posted price in fixed-price mode.
	FixedPrice float64 `json:"fixed_price" yaml:"fixed_price"`
}

// Validate rejects contradictory or out-of-range market settings.
func (c MarketConfig) Validate() error {
	switch c.Mode {
	case MarketAuction:
		if c.PermitCap < 1 {
			return fmt.Errorf("%w: market.permit_cap = %d, want >= 1 in auction mode", ErrInvalidConfig, c.PermitCap)
		}
		if c.FixedPrice != 0 {
			return fmt.Errorf("%w: market.fixed_price set in auction mode", ErrInvalidConfig)
		}
	case MarketFixedPrice:
		if c.FixedPrice < 0 {
			return fmt.Errorf("%w: market.fixed_price = %v, want >= 0", ErrInvalidConfig, c.FixedPrice)
		}
		if c.PermitCap != 0 {
			return fmt.Errorf("%w: market.permit_cap set in fixed-price mode (supply is unlimited)", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: market.mode = %q, want %q or %q", ErrInvalidConfig, c.Mode, MarketAuction, MarketFixedPrice)
	}
	return nil
}

// LabConfig bounds the generation of heterogeneous lab agents. Min/max pairs
// are sampled uniformly per agent at engine construction; scalar fields are
// shared starting values.
type LabConfig struct {
	GrossValueMin float64 `json:"gross_value_min" yaml:"gross_value_min"`
	GrossValueMax float64 `json:"gross_value_max" yaml:"gross_value_max"`

	RiskProfileMin float64 `json:"risk_profile_min" yaml:"risk_profile_min"`
	RiskProfileMax float64 `json:"risk_profile_max" yaml:"risk_profile_max"`

	// PlannedCompute is the size of the training run each lab intends (FLOP).
	PlannedComputeMin float64 `json:"planned_compute_min" yaml:"planned_compute_min"`
	PlannedComputeMax float64 `json:"planned_compute_max" yaml:"planned_compute_max"`

	// FirmRevenue feeds percentage-of-turnover penalties (M$).
	FirmRevenueMin float64 `json:"firm_revenue_min" yaml:"firm_revenue_min"`
	FirmRevenueMax float64 `json:"firm_revenue_max" yaml:"firm_revenue_max"`

	// CapabilityValue is the strategic (non-financial) value of a completed
	// run; RacingFactor multiplies it in the cheating gain.
	CapabilityValue float64 `json:"capability_value" yaml:"capability_value"`
	RacingFactor    float64 `json:"racing_factor" yaml:"racing_factor"`

	// ReputationSensitivity is the perceived brand cost of being caught.
	ReputationSensitivity float64 `json:"reputation_sensitivity" yaml:"reputation_sensitivity"`

	// AuditCoefficient scales a firm's visibility to the auditor.
	AuditCoefficient float64 `json:"audit_coefficient" yaml:"audit_coefficient"`

	// ReputationEscalationFactor compounds reputation sensitivity per failed
	// audit: rep = base * (1+factor)^failures. Zero keeps it static.
	ReputationEscalationFactor float64 `json:"reputation_escalation_factor" yaml:"reputation_escalation_factor"`

	// RacingGapSensitivity and CapabilityScale drive racing-factor drift
	// relative to the population mean capability.
	RacingGapSensitivity float64 `json:"racing_gap_sensitivity" yaml:"racing_gap_sensitivity"`
	CapabilityScale      float64 `json:"capability_scale" yaml:"capability_scale"`
}

// Validate checks agent generation bounds.
func (c LabConfig) Validate() error {
	ranges := []struct {
		name     string
		min, max float64
	}{
		{"lab.gross_value", c.GrossValueMin, c.GrossValueMax},
		{"lab.risk_profile", c.RiskProfileMin, c.RiskProfileMax},
		{"lab.planned_compute", c.PlannedComputeMin, c.PlannedComputeMax},
		{"lab.firm_revenue", c.FirmRevenueMin, c.FirmRevenueMax},
	}
	for _, r := range ranges {
		if r.min < 0 {
			return fmt.Errorf("%w: %s_min = %v, want >= 0", ErrInvalidConfig, r.name, r.min)
		}
		if r.max < r.min {
			return fmt.Errorf("%w: %s_max = %v < %s_min = %v", ErrInvalidConfig, r.name, r.max, r.name, r.min)
		}
	}
	for _, s := range []struct {
		name string
		v    float64
	}{
		{"lab.capability_value", c.CapabilityValue},
		{"lab.racing_factor", c.RacingFactor},
		{"lab.reputation_sensitivity", c.ReputationSensitivity},
		{"lab.audit_coefficient", c.AuditCoefficient},
		{"lab.reputation_escalation_factor", c.ReputationEscalationFactor},
		{"lab.racing_gap_sensitivity", c.RacingGapSensitivity},
	} {
		if s.v < 0 {
			return fmt.Errorf("%w: %s = %v, want >= 0", ErrInvalidConfig, s.name, s.v)
		}
	}
	if c.CapabilityScale <= 0 {
		return fmt.Errorf("%w: lab.capability_scale = %v, want > 0", ErrInvalidConfig, c.CapabilityScale)
	}
	return nil
}

// ScenarioConfig is the root configuration for one simulation run.
type ScenarioConfig struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	NumAgents int `json:"num_agents" yaml:"num_agents"`

	// Rounds is the default run length used by the CLI and controller; the
	// engine itself steps on demand.
	Rounds int `json:"rounds" yaml:"rounds"`

	// FLOPThreshold is the regulatory threshold above which a training run
	// requires a permit; the suspicion signal scales with excess above it.
	FLOPThreshold float64 `json:"flop_threshold" yaml:"flop_threshold"`

	// CollateralAmount is the refundable deposit (M$) each lab posts per
	// round. Zero disables collateral.
	CollateralAmount float64 `json:"collateral_amount" yaml:"collateral_amount"`

	// RealizeWhenCaught lets a lab that fails an audit still realize its
	// gross value that round. The default (false) forfeits it.
	RealizeWhenCaught bool `json:"realize_when_caught" yaml:"realize_when_caught"`

	// RecordAgents includes per-agent records in every round snapshot.
	RecordAgents bool `json:"record_agents" yaml:"record_agents"`

	// Seed fixes the engine's random stream; identical config and seed give
	// bit-identical snapshot sequences.
	Seed int64 `json:"seed" yaml:"seed"`

	Audit  AuditConfig  `json:"audit" yaml:"audit"`
	Market MarketConfig `json:"market" yaml:"market"`
	Lab    LabConfig    `json:"lab" yaml:"lab"`
}

// Validate checks the whole scenario, sub-configs included.
func (c ScenarioConfig) Validate() error {
	if c.NumAgents < 1 {
		return fmt.Errorf("%w: num_agents = %d, want >= 1", ErrInvalidConfig, c.NumAgents)
	}
	if c.Rounds < 1 {
		return fmt.Errorf("%w: rounds = %d, want >= 1", ErrInvalidConfig, c.Rounds)
	}
	if c.FLOPThreshold <= 0 {
		return fmt.Errorf("%w: flop_threshold = %v, want > 0", ErrInvalidConfig, c.FLOPThreshold)
	}
	if c.CollateralAmount < 0 {
		return fmt.Errorf("%w: collateral_amount = %v, want >= 0", ErrInvalidConfig, c.CollateralAmount)
	}
	if err := c.Audit.Validate(); err != nil {
		return err
	}
	if err := c.Market.Validate(); err != nil {
		return err
	}
	return c.Lab.Validate()
}

// DefaultScenario returns the near-future frontier regime the simulator ships
// with: ten heterogeneous labs, a scarce 5-permit auction, random auditing at
// a 5% floor with a 40% miss rate, and a flat 200 M$ fine.
func DefaultScenario() ScenarioConfig {
	return ScenarioConfig{
		Name:          "baseline",
		NumAgents:     10,
		Rounds:        10,
		FLOPThreshold: 1e25,
		RecordAgents:  true,
		Audit: AuditConfig{
			BaseProb:          0.05,
			SignalDependent:   false,
			SignalExponent:    1.0,
			FalseNegativeRate: 0.40,
			PenaltyAmount:     200,
			AuditDecayRate:    0.2,
		},
		Market: MarketConfig{
			Mode:      MarketAuction,
			PermitCap: 5,
		},
		Lab: LabConfig{
			GrossValueMin:     50,
			GrossValueMax:     200,
			RiskProfileMin:    1.0,
			RiskProfileMax:    1.0,
			PlannedComputeMin: 1e24,
			PlannedComputeMax: 1e26,
			FirmRevenueMin:    1000,
			FirmRevenueMax:    10000,
			RacingFactor:      1.0,
			AuditCoefficient:  0.8,
			CapabilityScale:   100,
		},
	}
}
