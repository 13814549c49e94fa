package cli

import (
	"github.com/spf13/cobra"
)

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Fetch rates once, sweep alerts and print the rate lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Rates(cmd.Context())
	},
}

var offsetsCmd = &cobra.Command{
	Use:   "offsets",
	Short: "Print the world clock board once",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Offsets(cmd.Context())
	},
}
