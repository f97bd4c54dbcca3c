package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/permit-simulator/sweep"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a scenario across a range of one policy parameter",
		Long: `Run a scenario across a range of one policy parameter, one
independently seeded run per value.

Examples:
  permitsim sweep --param audit.penalty_amount --values 0,100,200,500,1000
  permitsim sweep --param audit.base_prob --values 0.01,0.05,0.1,0.2 --rounds 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			param, _ := cmd.Flags().GetString("param")
			rawValues, _ := cmd.Flags().GetString("values")
			rounds, _ := cmd.Flags().GetInt("rounds")

			values, err := parseValues(rawValues)
			if err != nil {
				return err
			}

			cfg, err := loadScenario(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			res, err := sweep.Run(ctx, cfg, sweep.Spec{
				Parameter: param,
				Values:    values,
				Rounds:    rounds,
			})
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(res)
			}

			perPoint := cfg.Rounds
			if rounds > 0 {
				perPoint = rounds
			}
			fmt.Printf("sweep %s over %s (%d rounds each)\n\n", res.Parameter, cfg.Name, perPoint)
			fmt.Printf("%12s  %10s  %10s  %10s  %10s\n", "value", "mean compl", "final compl", "penalties", "caught")
			for _, p := range res.Points {
				fmt.Printf("%12g  %9.1f%%  %9.1f%%  %10.2f  %10d\n",
					p.Value, 100*p.MeanCompliance, 100*p.FinalCompliance, p.TotalPenalties, p.TotalCaught)
			}
			return nil
		},
	}

	cmd.Flags().String("param", "", "Dotted config key to sweep, e.g. audit.penalty_amount")
	cmd.Flags().String("values", "", "Comma-separated values for the swept parameter")
	cmd.Flags().Int("rounds", 0, "Override the scenario's round count per point")
	cmd.MarkFlagRequired("param")
	cmd.MarkFlagRequired("values")
	return cmd
}

func parseValues(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	values := make([]float64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("bad sweep value %q: %w", part, err)
		}
		values = append(values, v)
	}
	return values, nil
}
