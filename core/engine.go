// Package core implements the deterrence engine: lab agents deciding between
// permits and illegal compute use, a permit market, a two-stage auditor, and
// the round orchestration that composes them.
package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/signalsfoundry/permit-simulator/internal/logging"
	"github.com/signalsfoundry/permit-simulator/model"
)

// ErrInvariant marks a violated engine invariant. Seeing it means an engine
// bug, not bad input; it is never produced by configuration mistakes.
var ErrInvariant = errors.New("engine invariant violation")

// MetricsRecorder receives every emitted round snapshot. Implementations
// must not retain references into the snapshot's slices.
type MetricsRecorder interface {
	RecordRound(snap RoundSnapshot)
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithLogger attaches a structured logger; the default is a noop.
func WithLogger(log logging.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetricsRecorder attaches an optional metrics sink for round snapshots.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine owns the agent population, the market, the auditor, and the single
// seedable random generator behind every stochastic channel. One engine
// instance belongs to exactly one logical run; concurrent sweeps need
// distinct engines.
type Engine struct {
	cfg     model.ScenarioConfig
	labs    []*Lab
	byID    map[int]*Lab
	market  *Market
	auditor *Auditor
	rng     *rand.Rand
	round   int

	log     logging.Logger
	metrics MetricsRecorder
}

// New validates cfg, samples the agent population from the configured
// ranges, and wires the market and auditor. Construction is the only place
// configuration errors surface; a constructed engine never re-validates.
func New(cfg model.ScenarioConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))

	e := &Engine{
		cfg:     cfg,
		byID:    make(map[int]*Lab, cfg.NumAgents),
		market:  NewMarket(cfg.Market),
		auditor: NewAuditor(cfg.Audit, rng),
		rng:     rng,
		log:     logging.Noop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	uniform := func(min, max float64) float64 {
		if max <= min {
			return min
		}
		return min + rng.Float64()*(max-min)
	}

	for i := 0; i < cfg.NumAgents; i++ {
		lab := NewLab(i,
			uniform(cfg.Lab.GrossValueMin, cfg.Lab.GrossValueMax),
			uniform(cfg.Lab.RiskProfileMin, cfg.Lab.RiskProfileMax),
			uniform(cfg.Lab.PlannedComputeMin, cfg.Lab.PlannedComputeMax),
			uniform(cfg.Lab.FirmRevenueMin, cfg.Lab.FirmRevenueMax),
			cfg.Lab,
		)
		e.labs = append(e.labs, lab)
		e.byID[lab.ID] = lab
	}

	return e, nil
}

// Config returns the scenario the engine was constructed with.
func (e *Engine) Config() model.ScenarioConfig { return e.cfg }

// Round returns the number of completed rounds.
func (e *Engine) Round() int { return e.round }

// AgentState returns a read-only view of one lab, or false if the id is
// unknown.
func (e *Engine) AgentState(id int) (AgentRecord, bool) {
	lab, ok := e.byID[id]
	if !ok {
		return AgentRecord{}, false
	}
	return lab.Record(), true
}

// Step advances the simulation one round through the fixed phase order:
// collateral posting, market clearing, compliance decisions, audits and
// settlement, value realization, dynamic-factor decay, snapshot emission.
// Each call is a new round; a round is never replayed.
func (e *Engine) Step() (RoundSnapshot, error) {
	e.round++
	ctx := context.Background()

	// Phase 0: collateral posting.
	if e.cfg.CollateralAmount > 0 {
		for _, lab := range e.labs {
			lab.PostCollateral(e.cfg.CollateralAmount)
		}
	}

	// Phase 1: bidding and market clearing. Bids are submitted in insertion
	// order, which also fixes auction tie-breaking.
	bids := make([]Bid, 0, len(e.labs))
	for _, lab := range e.labs {
		bids = append(bids, Bid{AgentID: lab.ID, Amount: lab.Bid(0)})
	}
	price, winners := e.market.Allocate(bids)

	if e.cfg.Market.Mode == model.MarketAuction && len(winners) > e.cfg.Market.PermitCap {
		return RoundSnapshot{}, fmt.Errorf("%w: round %d allocated %d permits over cap %d",
			ErrInvariant, e.round, len(winners), e.cfg.Market.PermitCap)
	}

	winSet := make(map[int]bool, len(winners))
	for _, id := range winners {
		winSet[id] = true
	}
	for _, lab := range e.labs {
		if winSet[lab.ID] {
			lab.HasPermit = true
			lab.PermitsHeld = 1
			lab.Wealth -= price
		} else {
			lab.HasPermit = false
			lab.PermitsHeld = 0
		}
	}

	// Phase 2: compliance decisions against the expected detection risk of
	// running the planned compute unpermitted.
	for _, lab := range e.labs {
		excess := excessCompute(lab.PlannedCompute, e.cfg.FLOPThreshold)
		pEff := e.auditor.DetectionProbability(excess, e.cfg.FLOPThreshold, lab.AuditCoefficient)
		exposure := e.auditor.Penalty(lab.FirmRevenue)
		lab.DecideCompliance(price, exposure, pEff)
	}

	// Phase 3: actual signal, audit occurrence, detection, settlement.
	outcomes := make(map[int]*AgentRecord, len(e.labs))
	for _, lab := range e.labs {
		rec := lab.Record()
		outcomes[lab.ID] = &rec
	}

	var flagged []int
	for _, lab := range e.labs {
		ran := lab.HasPermit || !lab.IsCompliant
		var excess float64
		if ran && !lab.HasPermit {
			excess = excessCompute(lab.PlannedCompute, e.cfg.FLOPThreshold)
		}
		signal := e.auditor.Signal(excess, e.cfg.FLOPThreshold)
		if e.auditor.Draw(e.auditor.AuditProbability(signal, lab.AuditCoefficient)) {
			flagged = append(flagged, lab.ID)
		}
	}

	audited := flagged
	if max := e.cfg.Audit.MaxAuditsPerRound; max > 0 && len(flagged) > max {
		audited = e.sampleIDs(flagged, max)
	}

	snap := RoundSnapshot{
		Round:         e.round,
		ClearingPrice: price,
		WinnerIDs:     append([]int(nil), winners...),
	}

	settled := make(map[int]bool, len(audited))
	for _, id := range audited {
		lab := e.byID[id]
		rec := outcomes[id]
		rec.Audited = true
		snap.AuditedCount++

		out := e.auditor.ResolveAudit(lab.IsCompliant || lab.HasPermit)
		if out.FalseAlarm {
			rec.FalseAlarm = true
			snap.FalseAlarmCount++
		}
		if !out.Caught {
			continue
		}

		if settled[id] {
			return RoundSnapshot{}, fmt.Errorf("%w: round %d settled agent %d twice",
				ErrInvariant, e.round, id)
		}
		settled[id] = true

		penalty := e.auditor.Penalty(lab.FirmRevenue)
		seized := lab.ApplyOutcome(penalty)
		lab.EscalateOnCatch(e.cfg.Audit.AuditEscalation)

		rec.Caught = true
		rec.Penalty = penalty
		rec.CollateralSeized = seized
		snap.CaughtCount++
		snap.TotalPenalties += penalty
		snap.CollateralSeized += seized
	}

	// Collateral not seized this round is refunded.
	for _, lab := range e.labs {
		if lab.CollateralPosted > 0 {
			lab.RefundCollateral()
		}
	}

	// Phase 4: value realization. A caught lab forfeits its run unless the
	// scenario says otherwise.
	for _, lab := range e.labs {
		ran := lab.HasPermit || !lab.IsCompliant
		if !ran {
			continue
		}
		if outcomes[lab.ID].Caught && !e.cfg.RealizeWhenCaught {
			continue
		}
		lab.RealizeValue()
		outcomes[lab.ID].RealizedValue = lab.GrossValue
	}

	// Phase 5: dynamic-factor decay and racing drift.
	var meanCapability float64
	for _, lab := range e.labs {
		meanCapability += lab.CumulativeCapability
	}
	meanCapability /= float64(len(e.labs))
	for _, lab := range e.labs {
		lab.DecayDynamicFactors(e.cfg.Audit.AuditDecayRate, meanCapability)
	}

	// Phase 6: snapshot emission.
	for _, lab := range e.labs {
		if lab.IsCompliant {
			snap.CompliantCount++
		} else {
			snap.NonCompliantCount++
		}
		snap.TotalWealth += lab.Wealth

		rec := outcomes[lab.ID]
		rec.Wealth = lab.Wealth
		rec.IsCompliant = lab.IsCompliant
		rec.AuditCoefficient = lab.AuditCoefficient
		rec.ReputationSensitivity = lab.ReputationSensitivity
		rec.RacingFactor = lab.RacingFactor
		rec.FailedAuditCount = lab.FailedAuditCount
	}
	if e.cfg.RecordAgents {
		snap.Agents = make([]AgentRecord, 0, len(e.labs))
		for _, lab := range e.labs {
			snap.Agents = append(snap.Agents, *outcomes[lab.ID])
		}
	}

	e.log.Debug(ctx, "round complete",
		logging.Int("round", snap.Round),
		logging.Float64("price", snap.ClearingPrice),
		logging.Float64("compliance", snap.ComplianceRate()),
		logging.Int("audited", snap.AuditedCount),
		logging.Int("caught", snap.CaughtCount),
	)

	if e.metrics != nil {
		e.metrics.RecordRound(snap.Clone())
	}
	return snap, nil
}

// Run executes n rounds and returns their snapshots. The context is only
// checked between rounds: a round is the atomic unit of progress.
func (e *Engine) Run(ctx context.Context, n int) ([]RoundSnapshot, error) {
	snaps := make([]RoundSnapshot, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return snaps, err
		}
		snap, err := e.Step()
		if err != nil {
			return snaps, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// sampleIDs picks a uniform random subset of size n, preserving the original
// relative order so audit processing stays deterministic.
func (e *Engine) sampleIDs(ids []int, n int) []int {
	perm := e.rng.Perm(len(ids))
	picked := perm[:n]
	sort.Ints(picked)
	out := make([]int, 0, n)
	for _, idx := range picked {
		out = append(out, ids[idx])
	}
	return out
}

// excessCompute is the unpermitted usage above the regulatory threshold.
func excessCompute(used, threshold float64) float64 {
	if used <= threshold {
		return 0
	}
	return used - threshold
}
