package core

import (
	"math"
	"math/rand"

	"github.com/signalsfoundry/permit-simulator/model"
)

// Auditor models the two-stage detection process: whether a firm is audited
// at all (signal-driven occurrence), and whether an audit finds the
// violation (multi-channel catch). All of its randomness comes from the
// engine-owned generator passed at construction.
type Auditor struct {
	cfg model.AuditConfig
	rng *rand.Rand
}

// NewAuditor wraps validated audit policy around the engine's generator.
func NewAuditor(cfg model.AuditConfig, rng *rand.Rand) *Auditor {
	return &Auditor{cfg: cfg, rng: rng}
}

// AuditOutcome reports how one audit resolved.
type AuditOutcome struct {
	Caught       bool
	ViaBackcheck bool
	FalseAlarm   bool
}

// Signal maps unpermitted excess compute to suspicion strength in [0, 1]:
// min(1, (excess/threshold)^exponent). Zero excess yields zero signal.
func (a *Auditor) Signal(excessCompute, flopThreshold float64) float64 {
	if excessCompute <= 0 {
		return 0
	}
	ratio := excessCompute / flopThreshold
	return math.Min(1, math.Pow(ratio, a.cfg.SignalExponent))
}

// AuditProbability is the stage-1 chance a firm is audited this round. With
// signal-dependent targeting the base rate is a floor for everyone and the
// firm's coefficient scales only the signal component; otherwise every firm
// faces the flat base rate.
func (a *Auditor) AuditProbability(signal, auditCoefficient float64) float64 {
	if !a.cfg.SignalDependent {
		return a.cfg.BaseProb
	}
	return math.Min(1, a.cfg.BaseProb+auditCoefficient*signal*(1-a.cfg.BaseProb))
}

// CatchProbability is the stage-2 chance an audit finds a real violation.
// The direct pass, backcheck, whistleblower, and monitoring channels are
// nested within the audit event, so the miss probability is the product of
// the independent miss terms.
func (a *Auditor) CatchProbability() float64 {
	miss := a.cfg.FalseNegativeRate *
		(1 - a.cfg.BackcheckProb) *
		(1 - a.cfg.WhistleblowerProb) *
		(1 - a.cfg.MonitoringProb)
	return 1 - miss
}

// DetectionProbability combines both stages into the effective detection
// probability a firm weighs when deciding whether to comply.
func (a *Auditor) DetectionProbability(excessCompute, flopThreshold, auditCoefficient float64) float64 {
	signal := a.Signal(excessCompute, flopThreshold)
	return a.AuditProbability(signal, auditCoefficient) * a.CatchProbability()
}

// Draw performs one Bernoulli trial at probability p.
func (a *Auditor) Draw(p float64) bool {
	return a.rng.Float64() < p
}

// ResolveAudit runs the stage-2 channels for one audited firm. A compliant
// firm can only trigger a false alarm, which is logged and never penalized.
// For a violator the channels fire in sequence, each conditional on every
// prior channel missing, preserving the aggregate from CatchProbability.
func (a *Auditor) ResolveAudit(compliant bool) AuditOutcome {
	if compliant {
		return AuditOutcome{FalseAlarm: a.rng.Float64() < a.cfg.FalsePositiveRate}
	}

	if a.rng.Float64() < 1-a.cfg.FalseNegativeRate {
		return AuditOutcome{Caught: true}
	}
	if a.rng.Float64() < a.cfg.BackcheckProb {
		return AuditOutcome{Caught: true, ViaBackcheck: true}
	}
	if a.rng.Float64() < a.cfg.WhistleblowerProb {
		return AuditOutcome{Caught: true}
	}
	if a.rng.Float64() < a.cfg.MonitoringProb {
		return AuditOutcome{Caught: true}
	}
	return AuditOutcome{}
}

// Penalty computes the fine for a caught firm: the larger of the fixed floor
// and the revenue percentage, falling back to the flat amount when neither
// is configured, capped at the ceiling when one is set.
func (a *Auditor) Penalty(firmRevenue float64) float64 {
	penalty := math.Max(a.cfg.PenaltyFixed, a.cfg.PenaltyPercentage*firmRevenue)
	if a.cfg.PenaltyFixed == 0 && a.cfg.PenaltyPercentage == 0 {
		penalty = a.cfg.PenaltyAmount
	}
	if a.cfg.PenaltyCeiling > 0 {
		penalty = math.Min(penalty, a.cfg.PenaltyCeiling)
	}
	return penalty
}
