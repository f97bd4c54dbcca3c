package core

import (
	"math"

	"github.com/signalsfoundry/permit-simulator/model"
)

// Lab is one self-interested actor. Its economic attributes are sampled once
// at engine construction; wealth and the dynamic visibility factors mutate
// over rounds.
type Lab struct {
	ID             int
	GrossValue     float64
	RiskProfile    float64
	PlannedCompute float64
	FirmRevenue    float64

	Wealth           float64
	HasPermit        bool
	PermitsHeld      int
	CollateralPosted float64

	CapabilityValue       float64
	RacingFactor          float64
	ReputationSensitivity float64
	AuditCoefficient      float64

	FailedAuditCount     int
	CumulativeCapability float64

	// IsCompliant is the outcome of the current round's compliance decision.
	// It is recomputed every round before the auditor phase reads it.
	IsCompliant bool

	baseRacingFactor     float64
	baseReputation       float64
	baseAuditCoefficient float64

	reputationEscalationFactor float64
	racingGapSensitivity       float64
	capabilityScale            float64
}

// NewLab builds a lab from its sampled attributes plus the shared behavioral
// constants in cfg.
func NewLab(id int, grossValue, riskProfile, plannedCompute, firmRevenue float64, cfg model.LabConfig) *Lab {
	return &Lab{
		ID:             id,
		GrossValue:     grossValue,
		RiskProfile:    riskProfile,
		PlannedCompute: plannedCompute,
		FirmRevenue:    firmRevenue,

		CapabilityValue:       cfg.CapabilityValue,
		RacingFactor:          cfg.RacingFactor,
		ReputationSensitivity: cfg.ReputationSensitivity,
		AuditCoefficient:      cfg.AuditCoefficient,

		IsCompliant: true,

		baseRacingFactor:     cfg.RacingFactor,
		baseReputation:       cfg.ReputationSensitivity,
		baseAuditCoefficient: cfg.AuditCoefficient,

		reputationEscalationFactor: cfg.ReputationEscalationFactor,
		racingGapSensitivity:       cfg.RacingGapSensitivity,
		capabilityScale:            cfg.CapabilityScale,
	}
}

// Bid returns the lab's willingness to pay for a permit: gross value net of
// operating cost, floored at zero. No side effects.
func (l *Lab) Bid(cost float64) float64 {
	return math.Max(0, l.GrossValue-cost)
}

// DecideCompliance applies the deterrence condition and stores the result on
// the lab. A lab cheats iff the gain from running unpermitted exceeds the
// expected punishment; ties resolve to compliance. pEff must already include
// the lab's audit coefficient. Permitted labs are compliant unconditionally.
func (l *Lab) DecideCompliance(price, penalty, pEff float64) bool {
	if l.HasPermit {
		l.IsCompliant = true
		return true
	}

	// Savings from skipping the permit are capped at what the run is worth:
	// a lab priced out of the market gains the run itself, not the price.
	savings := math.Min(price, l.GrossValue)
	gain := savings + l.RacingFactor*l.CapabilityValue

	if gain <= 0 || l.GrossValue <= 0 {
		l.IsCompliant = true
		return true
	}

	bTotal := (penalty + l.CollateralPosted + l.ReputationSensitivity) * l.RiskProfile

	l.IsCompliant = gain <= pEff*bTotal
	return l.IsCompliant
}

// PostCollateral deducts a refundable deposit for this round.
func (l *Lab) PostCollateral(amount float64) {
	l.Wealth -= amount
	l.CollateralPosted = amount
}

// RefundCollateral returns any posted collateral that was not seized.
func (l *Lab) RefundCollateral() {
	l.Wealth += l.CollateralPosted
	l.CollateralPosted = 0
}

// ApplyOutcome settles a detected violation: the penalty is deducted and any
// posted collateral is forfeited. The seized amount is returned. Wealth is
// deliberately not clamped; a negative balance is a valid degenerate outcome.
func (l *Lab) ApplyOutcome(penalty float64) (seized float64) {
	l.Wealth -= penalty
	seized = l.CollateralPosted
	l.CollateralPosted = 0
	return seized
}

// EscalateOnCatch updates the dynamic visibility factors after a failed
// audit. Reputation compounds per failure; the audit coefficient climbs by a
// fixed step. Both feed the NEXT round's decision and detection math.
func (l *Lab) EscalateOnCatch(auditEscalation float64) {
	l.FailedAuditCount++
	if l.reputationEscalationFactor > 0 {
		l.ReputationSensitivity = l.baseReputation *
			math.Pow(1+l.reputationEscalationFactor, float64(l.FailedAuditCount))
	}
	l.AuditCoefficient += auditEscalation
}

// RealizeValue credits the gross value of a completed run and accrues the
// lab's capability position.
func (l *Lab) RealizeValue() {
	l.Wealth += l.GrossValue
	l.CumulativeCapability += l.CapabilityValue
}

// DecayDynamicFactors relaxes the audit coefficient toward its base by
// decayRate of the current excess, and re-derives the racing factor from the
// lab's capability gap against the population mean.
func (l *Lab) DecayDynamicFactors(decayRate, meanCapability float64) {
	if l.AuditCoefficient > l.baseAuditCoefficient {
		excess := l.AuditCoefficient - l.baseAuditCoefficient
		l.AuditCoefficient -= decayRate * excess
	}
	if l.racingGapSensitivity > 0 {
		gap := l.CumulativeCapability - meanCapability
		multiplier := 1 + l.racingGapSensitivity*gap/l.capabilityScale
		l.RacingFactor = math.Max(0, l.baseRacingFactor*multiplier)
	}
}

// Record captures the lab's current state as a read-only view. Per-round
// audit fields are filled in by the engine.
func (l *Lab) Record() AgentRecord {
	return AgentRecord{
		ID:                    l.ID,
		Wealth:                l.Wealth,
		HasPermit:             l.HasPermit,
		PermitsHeld:           l.PermitsHeld,
		IsCompliant:           l.IsCompliant,
		AuditCoefficient:      l.AuditCoefficient,
		ReputationSensitivity: l.ReputationSensitivity,
		RacingFactor:          l.RacingFactor,
		FailedAuditCount:      l.FailedAuditCount,
	}
}
