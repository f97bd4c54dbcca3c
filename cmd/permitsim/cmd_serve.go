package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/permit-simulator/core"
	"github.com/signalsfoundry/permit-simulator/history"
	"github.com/signalsfoundry/permit-simulator/internal/api"
	"github.com/signalsfoundry/permit-simulator/internal/logging"
	"github.com/signalsfoundry/permit-simulator/internal/observability"
	"github.com/signalsfoundry/permit-simulator/runctrl"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a scenario on a wall clock and serve it over HTTP",
		Long: `Run a scenario one round per interval and serve the recorded history,
scenario, and Prometheus metrics over HTTP.

Endpoints:
  GET /api/v1/status        run id, progress
  GET /api/v1/scenario      effective scenario config
  GET /api/v1/summary       run-level aggregates so far
  GET /api/v1/rounds        every recorded round
  GET /api/v1/rounds/{n}    one round (or "latest")
  GET /api/v1/agents        per-agent state from the latest round
  GET /metrics              Prometheus metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			interval, _ := cmd.Flags().GetDuration("interval")
			rounds, _ := cmd.Flags().GetInt("rounds")

			cfg, err := loadScenario(cmd)
			if err != nil {
				return err
			}
			if rounds > 0 {
				cfg.Rounds = rounds
			}

			log := logging.NewFromEnv()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
			if err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

			collector, err := observability.NewSimCollector(nil)
			if err != nil {
				return fmt.Errorf("init metrics: %w", err)
			}

			eng, err := core.New(cfg,
				core.WithLogger(log),
				core.WithMetricsRecorder(collector),
			)
			if err != nil {
				return err
			}

			store := history.NewStore(cfg.Name, cfg.Seed)
			ctrl := runctrl.NewController(eng, runctrl.Paced, interval)
			ctrl.AddListener(store.Append)
			ctrl.AddRoundTimer(collector.ObserveRoundDuration)

			srv := &http.Server{
				Addr: addr,
				Handler: (&api.Server{
					Store:    store,
					Ctrl:     ctrl,
					Scenario: cfg,
					Metrics:  collector.Handler(),
					Log:      log,
				}).Handler(),
			}
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error(context.Background(), "http server exited", logging.Err(err))
				}
			}()

			log.Info(ctx, "serving simulation",
				logging.String("addr", addr),
				logging.String("run_id", store.RunID()),
				logging.String("scenario", cfg.Name),
				logging.Int("rounds", cfg.Rounds),
			)

			done := ctrl.Start(ctx, cfg.Rounds)

			select {
			case err = <-done:
				if err != nil && ctx.Err() == nil {
					log.Error(ctx, "run failed", logging.Err(err))
				} else {
					log.Info(context.Background(), "run complete; still serving history (interrupt to exit)")
					<-ctx.Done()
					err = nil
				}
			case <-ctx.Done():
				<-done
				err = nil
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			return err
		},
	}

	cmd.Flags().String("addr", ":8080", "HTTP listen address")
	cmd.Flags().Duration("interval", time.Second, "Wall-clock time per round")
	cmd.Flags().Int("rounds", 0, "Override the scenario's round count")
	return cmd
}
