package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a scenario file",
		Long: `Validate a scenario file and print the effective configuration after
defaults are applied.

Examples:
  permitsim validate --scenario configs/baseline.json
  permitsim validate --scenario configs/lawless.yaml --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadScenario(cmd)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(cfg)
			}

			fmt.Printf("scenario %q is valid\n", cfg.Name)
			fmt.Printf("  agents          %d\n", cfg.NumAgents)
			fmt.Printf("  rounds          %d\n", cfg.Rounds)
			fmt.Printf("  market          %s", cfg.Market.Mode)
			switch {
			case cfg.Market.PermitCap > 0:
				fmt.Printf(" (cap %d)\n", cfg.Market.PermitCap)
			default:
				fmt.Printf(" (price %.2f)\n", cfg.Market.FixedPrice)
			}
			fmt.Printf("  flop threshold  %g\n", cfg.FLOPThreshold)
			fmt.Printf("  base audit rate %.2f\n", cfg.Audit.BaseProb)
			fmt.Printf("  seed            %d\n", cfg.Seed)
			return nil
		},
	}
}
