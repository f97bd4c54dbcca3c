package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/permit-simulator/core"
	"github.com/signalsfoundry/permit-simulator/history"
	"github.com/signalsfoundry/permit-simulator/internal/logging"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario to completion and print the results",
		Long: `Run a scenario to completion and print the results.

Examples:
  permitsim run                                  # built-in baseline
  permitsim run --scenario configs/lawless.yaml  # scenario file
  permitsim run --rounds 50 --seed 7             # override length and seed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			rounds, _ := cmd.Flags().GetInt("rounds")
			seed, _ := cmd.Flags().GetInt64("seed")

			cfg, err := loadScenario(cmd)
			if err != nil {
				return err
			}
			if rounds > 0 {
				cfg.Rounds = rounds
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed = seed
			}

			log := logging.NewFromEnv()
			eng, err := core.New(cfg, core.WithLogger(log))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			store := history.NewStore(cfg.Name, cfg.Seed)
			snaps, err := eng.Run(ctx, cfg.Rounds)
			for _, snap := range snaps {
				store.Append(snap)
			}
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(struct {
					Summary history.Summary      `json:"summary"`
					Rounds  []core.RoundSnapshot `json:"rounds"`
				}{store.Summarize(), store.All()})
			}

			for _, snap := range snaps {
				fmt.Printf("round %3d  price %8.2f  compliance %5.1f%%  audited %2d  caught %2d  penalties %8.2f\n",
					snap.Round, snap.ClearingPrice, 100*snap.ComplianceRate(),
					snap.AuditedCount, snap.CaughtCount, snap.TotalPenalties)
			}
			sum := store.Summarize()
			fmt.Printf("\nrun %s (%s, seed %d)\n", sum.RunID, sum.Scenario, sum.Seed)
			fmt.Printf("mean compliance %5.1f%%  final %5.1f%%  mean price %.2f\n",
				100*sum.MeanCompliance, 100*sum.FinalCompliance, sum.MeanPrice)
			fmt.Printf("audits %d  caught %d  penalties %.2f\n",
				sum.TotalAudits, sum.TotalCaught, sum.TotalPenalties)
			return nil
		},
	}

	cmd.Flags().Int("rounds", 0, "Override the scenario's round count")
	cmd.Flags().Int64("seed", 0, "Override the scenario's random seed")
	return cmd
}
