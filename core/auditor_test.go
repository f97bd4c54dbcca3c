package core

import (
	"math"
	"math/rand"
	"testing"

	"github.com/signalsfoundry/permit-simulator/model"
)

func newTestAuditor(cfg model.AuditConfig) *Auditor {
	return NewAuditor(cfg, rand.New(rand.NewSource(1)))
}

func TestSignalShape(t *testing.T) {
	a := newTestAuditor(model.AuditConfig{SignalExponent: 0.5})

	if got := a.Signal(0, 1e25); got != 0 {
		t.Fatalf("Signal(0) = %v, want 0", got)
	}
	if got := a.Signal(-5, 1e25); got != 0 {
		t.Fatalf("Signal(negative) = %v, want 0", got)
	}
	if got := a.Signal(1e25, 1e25); got != 1 {
		t.Fatalf("Signal(threshold) = %v, want 1", got)
	}
	if got := a.Signal(1e27, 1e25); got != 1 {
		t.Fatalf("Signal far past threshold = %v, want saturated 1", got)
	}

	// Sub-root exponents make small violations loud: sqrt(0.25) = 0.5.
	if got := a.Signal(0.25e25, 1e25); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("Signal(quarter threshold) = %v, want 0.5", got)
	}

	small := a.Signal(0.1e25, 1e25)
	large := a.Signal(0.9e25, 1e25)
	if small >= large {
		t.Fatalf("signal not monotone: %v >= %v", small, large)
	}
}

func TestAuditProbability(t *testing.T) {
	t.Run("flat when signal independence is on", func(t *testing.T) {
		a := newTestAuditor(model.AuditConfig{BaseProb: 0.05, SignalExponent: 1})
		if got := a.AuditProbability(1.0, 3.0); got != 0.05 {
			t.Fatalf("AuditProbability = %v, want flat 0.05", got)
		}
	})

	t.Run("base rate floors zero signal", func(t *testing.T) {
		a := newTestAuditor(model.AuditConfig{BaseProb: 0.05, SignalDependent: true, SignalExponent: 1})
		if got := a.AuditProbability(0, 1.0); got != 0.05 {
			t.Fatalf("AuditProbability(0 signal) = %v, want 0.05", got)
		}
	})

	t.Run("coefficient scales the signal component", func(t *testing.T) {
		a := newTestAuditor(model.AuditConfig{BaseProb: 0.05, SignalDependent: true, SignalExponent: 1})
		want := 0.05 + 0.8*0.5*0.95
		if got := a.AuditProbability(0.5, 0.8); math.Abs(got-want) > 1e-12 {
			t.Fatalf("AuditProbability = %v, want %v", got, want)
		}
	})

	t.Run("capped at one", func(t *testing.T) {
		a := newTestAuditor(model.AuditConfig{BaseProb: 0.5, SignalDependent: true, SignalExponent: 1})
		if got := a.AuditProbability(1.0, 10.0); got != 1 {
			t.Fatalf("AuditProbability = %v, want cap 1", got)
		}
	})
}

func TestCatchProbabilityStacksChannels(t *testing.T) {
	// miss = 0.4 * (1-0.5) = 0.2, so catch = 0.8.
	a := newTestAuditor(model.AuditConfig{
		SignalExponent:    1,
		FalseNegativeRate: 0.4,
		BackcheckProb:     0.5,
	})
	if got := a.CatchProbability(); math.Abs(got-0.8) > 1e-12 {
		t.Fatalf("CatchProbability = %v, want 0.8", got)
	}

	// Each extra channel shrinks the miss product.
	weaker := newTestAuditor(model.AuditConfig{
		SignalExponent:    1,
		FalseNegativeRate: 0.4,
	})
	if weaker.CatchProbability() >= a.CatchProbability() {
		t.Fatal("backcheck did not raise the catch probability")
	}

	perfect := newTestAuditor(model.AuditConfig{SignalExponent: 1, FalseNegativeRate: 0})
	if got := perfect.CatchProbability(); got != 1 {
		t.Fatalf("CatchProbability with zero miss rate = %v, want 1", got)
	}
}

func TestDetectionProbabilityCombinesStages(t *testing.T) {
	a := newTestAuditor(model.AuditConfig{
		BaseProb:          0.1,
		SignalDependent:   true,
		SignalExponent:    1,
		FalseNegativeRate: 0.5,
	})

	// Saturated signal, coefficient 1: p_audit = 0.1 + 0.9 = 1; catch = 0.5.
	if got := a.DetectionProbability(1e25, 1e25, 1.0); math.Abs(got-0.5) > 1e-12 {
		t.Fatalf("DetectionProbability = %v, want 0.5", got)
	}

	low := a.DetectionProbability(0.1e25, 1e25, 1.0)
	high := a.DetectionProbability(0.9e25, 1e25, 1.0)
	if low >= high {
		t.Fatalf("detection not monotone in excess: %v >= %v", low, high)
	}
}

func TestDetectionMonotoneInEveryChannel(t *testing.T) {
	base := model.AuditConfig{
		BaseProb:          0.1,
		SignalDependent:   true,
		SignalExponent:    1,
		FalseNegativeRate: 0.8,
	}
	pEff := func(cfg model.AuditConfig, coeff float64) float64 {
		return newTestAuditor(cfg).DetectionProbability(0.5e25, 1e25, coeff)
	}

	ref := pEff(base, 0.5)
	for _, tc := range []struct {
		name string
		cfg  model.AuditConfig
	}{
		{"backcheck", func() model.AuditConfig { c := base; c.BackcheckProb = 0.3; return c }()},
		{"whistleblower", func() model.AuditConfig { c := base; c.WhistleblowerProb = 0.3; return c }()},
		{"monitoring", func() model.AuditConfig { c := base; c.MonitoringProb = 0.3; return c }()},
	} {
		if got := pEff(tc.cfg, 0.5); got < ref {
			t.Errorf("%s channel lowered detection: %v < %v", tc.name, got, ref)
		}
	}
	if pEff(base, 0.9) < ref {
		t.Error("higher audit coefficient lowered detection")
	}
}

func TestResolveAuditChannels(t *testing.T) {
	t.Run("perfect direct pass always catches", func(t *testing.T) {
		a := newTestAuditor(model.AuditConfig{SignalExponent: 1, FalseNegativeRate: 0})
		for i := 0; i < 100; i++ {
			out := a.ResolveAudit(false)
			if !out.Caught || out.ViaBackcheck {
				t.Fatalf("ResolveAudit = %+v, want direct catch", out)
			}
		}
	})

	t.Run("backcheck rescues a blind direct pass", func(t *testing.T) {
		a := newTestAuditor(model.AuditConfig{
			SignalExponent:    1,
			FalseNegativeRate: 1,
			BackcheckProb:     1,
		})
		out := a.ResolveAudit(false)
		if !out.Caught || !out.ViaBackcheck {
			t.Fatalf("ResolveAudit = %+v, want catch via backcheck", out)
		}
	})

	t.Run("all channels blind never catches", func(t *testing.T) {
		a := newTestAuditor(model.AuditConfig{SignalExponent: 1, FalseNegativeRate: 1})
		for i := 0; i < 100; i++ {
			if out := a.ResolveAudit(false); out.Caught {
				t.Fatalf("ResolveAudit caught with zero catch probability: %+v", out)
			}
		}
	})

	t.Run("compliant firm only risks a false alarm", func(t *testing.T) {
		a := newTestAuditor(model.AuditConfig{
			SignalExponent:    1,
			FalsePositiveRate: 1,
			FalseNegativeRate: 0,
		})
		out := a.ResolveAudit(true)
		if out.Caught {
			t.Fatalf("compliant firm caught: %+v", out)
		}
		if !out.FalseAlarm {
			t.Fatalf("expected certain false alarm, got %+v", out)
		}
	})
}

func TestPenaltySchedule(t *testing.T) {
	cases := []struct {
		name    string
		cfg     model.AuditConfig
		revenue float64
		want    float64
	}{
		{"flat fallback", model.AuditConfig{PenaltyAmount: 200}, 5000, 200},
		{"fixed floor dominates", model.AuditConfig{PenaltyFixed: 300, PenaltyPercentage: 0.02}, 5000, 300},
		{"revenue share dominates", model.AuditConfig{PenaltyFixed: 50, PenaltyPercentage: 0.1}, 5000, 500},
		{"ceiling clamps", model.AuditConfig{PenaltyPercentage: 0.1, PenaltyCeiling: 250}, 5000, 250},
		{"zero ceiling means uncapped", model.AuditConfig{PenaltyPercentage: 0.1}, 5000, 500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.SignalExponent = 1
			a := newTestAuditor(tc.cfg)
			if got := a.Penalty(tc.revenue); got != tc.want {
				t.Fatalf("Penalty(%v) = %v, want %v", tc.revenue, got, tc.want)
			}
		})
	}
}
