package cmd

import (
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Verify the configured token against the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		who, correlation, err := cli.GetWhoAmI(cmd.Context())
		if err != nil {
			log.Error().Msgf("%s token rejected (correlation ID: %s)", redCross, correlation)
			return err
		}

		admin := "no"
		if who.IsSuperAdmin {
			admin = greenCheck + " yes"
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendRow(table.Row{"Customer", color.New(color.Bold).Sprint(who.CustomerID)})
		t.AppendRow(table.Row{"Subject", who.Subject})
		t.AppendRow(table.Row{"Issuer", who.Issuer})
		t.AppendRow(table.Row{"Super Admin", admin})
		t.AppendRow(table.Row{"Scope", who.Scope})
		t.AppendRow(table.Row{"Expires", who.ExpiresAt})
		applyTableFormat(t)
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
