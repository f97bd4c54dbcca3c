package core

// AgentRecord is a read-only view of one lab's state at the end of a round.
type AgentRecord struct {
	ID                    int     `json:"id"`
	Wealth                float64 `json:"wealth"`
	HasPermit             bool    `json:"has_permit"`
	PermitsHeld           int     `json:"permits_held"`
	IsCompliant           bool    `json:"is_compliant"`
	Audited               bool    `json:"audited"`
	Caught                bool    `json:"caught"`
	FalseAlarm            bool    `json:"false_alarm"`
	Penalty               float64 `json:"penalty"`
	CollateralSeized      float64 `json:"collateral_seized"`
	RealizedValue         float64 `json:"realized_value"`
	AuditCoefficient      float64 `json:"audit_coefficient"`
	ReputationSensitivity float64 `json:"reputation_sensitivity"`
	RacingFactor          float64 `json:"racing_factor"`
	FailedAuditCount      int     `json:"failed_audit_count"`
}

// RoundSnapshot is the immutable per-round output of the engine. Collectors
// must treat it as read-only; the engine never reads it back.
type RoundSnapshot struct {
	Round             int     `json:"round"`
	ClearingPrice     float64 `json:"clearing_price"`
	WinnerIDs         []int   `json:"winner_ids"`
	CompliantCount    int     `json:"compliant_count"`
	NonCompliantCount int     `json:"non_compliant_count"`
	AuditedCount      int     `json:"audited_count"`
	CaughtCount       int     `json:"caught_count"`
	FalseAlarmCount   int     `json:"false_alarm_count"`
	TotalPenalties    float64 `json:"total_penalties"`
	CollateralSeized  float64 `json:"collateral_seized"`
	TotalWealth       float64 `json:"total_wealth"`

	// Agents is populated when the scenario enables per-agent records.
	Agents []AgentRecord `json:"agents,omitempty"`
}

// ComplianceRate returns the compliant share of the population, zero for an
// empty snapshot.
func (s RoundSnapshot) ComplianceRate() float64 {
	total := s.CompliantCount + s.NonCompliantCount
	if total == 0 {
		return 0
	}
	return float64(s.CompliantCount) / float64(total)
}

// Clone returns a deep copy, so stores can hand out snapshots without
// sharing slices with the caller.
func (s RoundSnapshot) Clone() RoundSnapshot {
	out := s
	if s.WinnerIDs != nil {
		out.WinnerIDs = append([]int(nil), s.WinnerIDs...)
	}
	if s.Agents != nil {
		out.Agents = append([]AgentRecord(nil), s.Agents...)
	}
	return out
}
