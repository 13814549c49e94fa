package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"worldclock-fx/internal/app"
)

var showOpts app.ShowOptions

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent rate samples",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showOpts.Limit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		return getApp().Show(cmd.Context(), showOpts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showOpts.Currency, "currency", "", "Only show this currency")
	showCmd.Flags().IntVar(&showOpts.Limit, "limit", 20, "Number of samples to display")
}
