package runctrl

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/signalsfoundry/permit-simulator/core"
)

type fakeEngine struct {
	round int
	fail  int // round number that returns an error, 0 for never
}

func (f *fakeEngine) Step() (core.RoundSnapshot, error) {
	f.round++
	if f.fail != 0 && f.round == f.fail {
		return core.RoundSnapshot{}, errors.New("boom")
	}
	return core.RoundSnapshot{Round: f.round}, nil
}

func (f *fakeEngine) Round() int { return f.round }

func TestAcceleratedRunCompletes(t *testing.T) {
	eng := &fakeEngine{}
	ctrl := NewController(eng, Accelerated, 0)

	var seen []int
	ctrl.AddListener(func(snap core.RoundSnapshot) { seen = append(seen, snap.Round) })

	if err := <-ctrl.Start(context.Background(), 4); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if len(seen) != 4 || seen[3] != 4 {
		t.Fatalf("listener saw %v, want rounds 1..4", seen)
	}
	if ctrl.LastRound() != 4 {
		t.Fatalf("LastRound = %d, want 4", ctrl.LastRound())
	}
	if ctrl.Running() {
		t.Fatal("controller still running after completion")
	}
}

func TestEngineErrorStopsRun(t *testing.T) {
	eng := &fakeEngine{fail: 2}
	ctrl := NewController(eng, Accelerated, 0)

	err := <-ctrl.Start(context.Background(), 5)
	if err == nil {
		t.Fatal("expected engine error to surface")
	}
	if ctrl.LastRound() != 1 {
		t.Fatalf("LastRound = %d, want 1 before the failure", ctrl.LastRound())
	}
}

func TestCancellationStopsBetweenRounds(t *testing.T) {
	eng := &fakeEngine{}
	ctrl := NewController(eng, Paced, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := <-ctrl.Start(ctx, 100)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Start error = %v, want context.Canceled", err)
	}
	if eng.Round() != 0 {
		t.Fatalf("engine stepped %d rounds after pre-cancelled context", eng.Round())
	}
}

func TestRoundTimerObservesEveryRound(t *testing.T) {
	eng := &fakeEngine{}
	ctrl := NewController(eng, Accelerated, 0)

	var durations []time.Duration
	ctrl.AddRoundTimer(func(d time.Duration) { durations = append(durations, d) })

	if err := <-ctrl.Start(context.Background(), 3); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(durations) != 3 {
		t.Fatalf("timer fired %d times, want 3", len(durations))
	}
	for i, d := range durations {
		if d < 0 {
			t.Fatalf("round %d duration = %v, want >= 0", i+1, d)
		}
	}
}

func TestStartEmitsRunAndRoundSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctrl := NewController(&fakeEngine{}, Accelerated, 0)
	if err := <-ctrl.Start(context.Background(), 3); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var runs, rounds int
	for _, span := range recorder.Ended() {
		switch span.Name() {
		case "run":
			runs++
		case "round":
			rounds++
		}
	}
	if runs != 1 {
		t.Fatalf("run spans = %d, want 1", runs)
	}
	if rounds != 3 {
		t.Fatalf("round spans = %d, want 3", rounds)
	}
}

func TestPacedRunAdvancesOnTicks(t *testing.T) {
	eng := &fakeEngine{}
	ctrl := NewController(eng, Paced, time.Millisecond)

	if err := <-ctrl.Start(context.Background(), 3); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if eng.Round() != 3 {
		t.Fatalf("engine completed %d rounds, want 3", eng.Round())
	}
}
