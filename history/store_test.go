package history

import (
	"testing"

	"github.com/signalsfoundry/permit-simulator/core"
)

func TestStoreAppendAndLookup(t *testing.T) {
	s := NewStore("baseline", 42)

	if s.RunID() == "" {
		t.Fatal("empty run id")
	}
	if _, ok := s.Latest(); ok {
		t.Fatal("Latest on empty store reported a snapshot")
	}

	s.Append(core.RoundSnapshot{Round: 1, ClearingPrice: 10})
	s.Append(core.RoundSnapshot{Round: 2, ClearingPrice: 20})

	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}

	snap, ok := s.Round(1)
	if !ok || snap.ClearingPrice != 10 {
		t.Fatalf("Round(1) = %+v, %v", snap, ok)
	}
	if _, ok := s.Round(3); ok {
		t.Fatal("Round(3) found on 2-round store")
	}
	if _, ok := s.Round(0); ok {
		t.Fatal("Round(0) accepted; rounds are 1-based")
	}

	latest, ok := s.Latest()
	if !ok || latest.Round != 2 {
		t.Fatalf("Latest = %+v, %v", latest, ok)
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	s := NewStore("baseline", 1)
	s.Append(core.RoundSnapshot{Round: 1, WinnerIDs: []int{4}})

	snap, _ := s.Round(1)
	snap.WinnerIDs[0] = 99

	again, _ := s.Round(1)
	if again.WinnerIDs[0] != 4 {
		t.Fatalf("store state mutated through returned snapshot: %v", again.WinnerIDs)
	}
}

func TestSubscribeSeesAppends(t *testing.T) {
	s := NewStore("baseline", 1)

	var rounds []int
	s.Subscribe(func(snap core.RoundSnapshot) { rounds = append(rounds, snap.Round) })

	s.Append(core.RoundSnapshot{Round: 1})
	s.Append(core.RoundSnapshot{Round: 2})

	if len(rounds) != 2 || rounds[0] != 1 || rounds[1] != 2 {
		t.Fatalf("subscriber saw %v, want [1 2]", rounds)
	}
}

func TestSummarize(t *testing.T) {
	s := NewStore("baseline", 7)
	s.Append(core.RoundSnapshot{
		Round:             1,
		ClearingPrice:     10,
		CompliantCount:    1,
		NonCompliantCount: 1,
		AuditedCount:      2,
		CaughtCount:       1,
		TotalPenalties:    200,
	})
	s.Append(core.RoundSnapshot{
		Round:          2,
		ClearingPrice:  30,
		CompliantCount: 2,
		AuditedCount:   1,
		TotalPenalties: 50,
	})

	sum := s.Summarize()
	if sum.Rounds != 2 || sum.Seed != 7 || sum.Scenario != "baseline" {
		t.Fatalf("summary header wrong: %+v", sum)
	}
	if sum.MeanCompliance != 0.75 {
		t.Fatalf("MeanCompliance = %v, want 0.75", sum.MeanCompliance)
	}
	if sum.FinalCompliance != 1 {
		t.Fatalf("FinalCompliance = %v, want 1", sum.FinalCompliance)
	}
	if sum.MeanPrice != 20 {
		t.Fatalf("MeanPrice = %v, want 20", sum.MeanPrice)
	}
	if sum.TotalPenalties != 250 || sum.TotalAudits != 3 || sum.TotalCaught != 1 {
		t.Fatalf("totals wrong: %+v", sum)
	}
}

func TestEmptySummarize(t *testing.T) {
	sum := NewStore("empty", 0).Summarize()
	if sum.Rounds != 0 || sum.MeanCompliance != 0 {
		t.Fatalf("empty summary = %+v", sum)
	}
}
