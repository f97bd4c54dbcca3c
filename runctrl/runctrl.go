// Package runctrl drives an engine through its rounds. It decouples the pace
// of a run from the simulation itself so servers can replay rounds on a wall
// clock while batch runs go flat out.
package runctrl

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/permit-simulator/core"
)

const tracerName = "github.com/signalsfoundry/permit-simulator/runctrl"

// Stepper is the engine surface the controller needs.
type Stepper interface {
	Step() (core.RoundSnapshot, error)
	Round() int
}

// Mode describes how the Controller paces rounds.
type Mode int

const (
	// Accelerated runs rounds as fast as the loop can go.
	Accelerated Mode = iota
	// Paced advances one round per Interval of wall-clock time.
	Paced
)

// Controller steps an engine and fans snapshots out to listeners.
type Controller struct {
	mu sync.RWMutex

	engine   Stepper
	mode     Mode
	interval time.Duration

	lastRound int
	running   bool

	listeners []func(core.RoundSnapshot)
	timers    []func(time.Duration)
}

// NewController constructs a controller. Interval is only consulted in Paced
// mode and defaults to one second when zero.
func NewController(engine Stepper, mode Mode, interval time.Duration) *Controller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Controller{
		engine:   engine,
		mode:     mode,
		interval: interval,
	}
}

// AddListener registers a callback invoked after every completed round.
// Listeners must be registered before Start.
func (c *Controller) AddListener(fn func(core.RoundSnapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// AddRoundTimer registers a callback receiving each round's wall-clock
// compute time, excluding pacing waits. Timers must be registered before
// Start.
func (c *Controller) AddRoundTimer(fn func(time.Duration)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timers = append(c.timers, fn)
}

// Running reports whether a Start loop is currently active.
func (c *Controller) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// LastRound returns the number of the last completed round.
func (c *Controller) LastRound() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRound
}

// Start runs the engine for rounds rounds in a separate goroutine and returns
// a channel carrying the terminal error (nil on completion). The loop stops
// early when the context is cancelled or the engine returns an error;
// cancellation is only observed between rounds. The whole run is traced as
// one span with a child span per round.
func (c *Controller) Start(ctx context.Context, rounds int) <-chan error {
	done := make(chan error, 1)

	c.mu.Lock()
	c.running = true
	listeners := append(([]func(core.RoundSnapshot))(nil), c.listeners...)
	timers := append(([]func(time.Duration))(nil), c.timers...)
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			c.running = false
			c.mu.Unlock()
		}()

		tracer := otel.Tracer(tracerName)
		ctx, runSpan := tracer.Start(ctx, "run",
			trace.WithAttributes(attribute.Int("rounds", rounds)))
		defer runSpan.End()

		var ticker *time.Ticker
		if c.mode == Paced {
			ticker = time.NewTicker(c.interval)
			defer ticker.Stop()
		}

		for i := 0; i < rounds; i++ {
			if err := ctx.Err(); err != nil {
				runSpan.SetStatus(codes.Error, err.Error())
				done <- err
				return
			}
			if ticker != nil {
				select {
				case <-ticker.C:
				case <-ctx.Done():
					runSpan.SetStatus(codes.Error, ctx.Err().Error())
					done <- ctx.Err()
					return
				}
			}

			_, roundSpan := tracer.Start(ctx, "round")
			start := time.Now()
			snap, err := c.engine.Step()
			elapsed := time.Since(start)
			if err != nil {
				roundSpan.RecordError(err)
				roundSpan.SetStatus(codes.Error, err.Error())
				roundSpan.End()
				runSpan.SetStatus(codes.Error, err.Error())
				done <- err
				return
			}
			roundSpan.SetAttributes(
				attribute.Int("round", snap.Round),
				attribute.Float64("clearing_price", snap.ClearingPrice),
				attribute.Int("audited", snap.AuditedCount),
				attribute.Int("caught", snap.CaughtCount),
			)
			roundSpan.End()

			c.mu.Lock()
			c.lastRound = snap.Round
			c.mu.Unlock()

			for _, fn := range timers {
				fn(elapsed)
			}
			for _, fn := range listeners {
				fn(snap.Clone())
			}
		}
		done <- nil
	}()
	return done
}
