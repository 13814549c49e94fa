package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	simulateCurrency string
	simulateRate     float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Sweep alerts against a synthetic rate and deliver any triggers",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateRate <= 0 {
			return errors.New("--rate must be greater than 0")
		}
		return getApp().SimulateAlert(cmd.Context(), simulateCurrency, simulateRate)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateCurrency, "currency", "USD", "Currency to simulate")
	simulateCmd.Flags().Float64Var(&simulateRate, "rate", 0, "Synthetic rate in JPY")
}
