package cli

import (
	"github.com/spf13/cobra"

	"worldclock-fx/internal/app"
)

var runOpts app.RunOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the world clock board, rate refresh and alert sweeps",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context(), runOpts)
	},
}

func init() {
	runCmd.Flags().StringVar(&runOpts.City, "city", "", "City to select at startup")
	runCmd.Flags().StringVar(&runOpts.Alarm, "alarm", "", "Daily alarm HH:MM in the selected city's zone")
	runCmd.Flags().Float64Var(&runOpts.Timer, "timer", 0, "Countdown timer in seconds")
}
