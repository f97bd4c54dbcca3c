package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/permit-simulator/model"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "permitsim",
		Short: "Deterrence simulator for a regulated compute-permit market",
		Long: `permitsim simulates frontier AI labs deciding between buying training
permits and running unpermitted compute under a two-stage audit regime.

Scenarios are JSON or YAML files layered over the built-in baseline; see the
configs/ directory for examples.`,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("scenario", "", "Scenario file (.json, .yaml); empty uses the built-in baseline")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newSweepCmd(),
		newServeCmd(),
		newValidateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]string{"version": version})
			} else {
				fmt.Printf("permitsim version %s\n", version)
			}
		},
	}
}

// loadScenario resolves the --scenario flag, falling back to the baseline.
func loadScenario(cmd *cobra.Command) (model.ScenarioConfig, error) {
	path, _ := cmd.Flags().GetString("scenario")
	if path == "" {
		return model.DefaultScenario(), nil
	}
	return model.LoadScenarioFile(path)
}
