package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"worldclock-fx/internal/app"
)

var (
	alertAddOpts    app.AlertAddOptions
	alertListFormat string
)

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Manage FX rate alerts",
}

var alertAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an alert for a city's currency",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().AddAlert(cmd.Context(), alertAddOpts)
	},
}

var alertListCmd = &cobra.Command{
	Use:   "list",
	Short: "List alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ListAlerts(cmd.Context(), alertListFormat)
	},
}

var alertCancelCmd = &cobra.Command{
	Use:   "cancel ID",
	Short: "Cancel an active alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		return getApp().CancelAlert(cmd.Context(), ids[0])
	},
}

var alertDeleteCmd = &cobra.Command{
	Use:   "delete ID [ID...]",
	Short: "Delete alerts in any state",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		return getApp().DeleteAlerts(cmd.Context(), ids)
	},
}

var alertSelectCmd = &cobra.Command{
	Use:   "select NAME",
	Short: "Select the default city for new alerts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SelectCity(cmd.Context(), args[0])
	},
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid alert id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func init() {
	alertAddCmd.Flags().StringVar(&alertAddOpts.City, "city", "", "City name (defaults to the selected alert city)")
	alertAddCmd.Flags().StringVar(&alertAddOpts.Direction, "direction", "gte", "Condition: gte or lte")
	alertAddCmd.Flags().Float64Var(&alertAddOpts.Rate, "rate", 0, "Target rate in JPY")
	_ = alertAddCmd.MarkFlagRequired("rate")

	alertListCmd.Flags().StringVarP(&alertListFormat, "output", "o", app.FormatTable, "Output format: table, json or yaml")

	alertCmd.AddCommand(alertAddCmd, alertListCmd, alertCancelCmd, alertDeleteCmd, alertSelectCmd)
}
