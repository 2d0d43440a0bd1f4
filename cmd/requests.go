package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/verita-sec/verita/internal/core"
)

var requestsCmd = &cobra.Command{
	Use:     "requests",
	Aliases: []string{"req"},
	Short:   "Manage sharing requests",
}

var requestsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List sharing requests you participate in",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		log.Debug().Msg("Retrieving sharing requests...")
		list, _, err := cli.ListRequests(cmd.Context())
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Owner", "Requester", "Status", "Created", "Decided"})

		for _, req := range list {
			status := string(req.Status)
			switch req.Status {
			case core.StatusApproved:
				status = greenCheck + " " + color.GreenString(status)
			case core.StatusRejected:
				status = redCross + " " + color.RedString(status)
			}

			decided := "n/a"
			if req.DecidedAt != nil {
				decided = time.Since(*req.DecidedAt).Round(time.Second).String() + " ago"
			}

			t.AppendRow(table.Row{
				color.New(color.Bold).Sprint(req.RequestID),
				truncate(req.OwnerID, 24),
				truncate(req.RequesterID, 24),
				status,
				time.Since(req.CreatedAt).Round(time.Second).String() + " ago",
				decided,
			})
		}

		applyTableFormat(t)
		t.Render()
		return nil
	},
}

var requestsCreateCmd = &cobra.Command{
	Use:   "create <owner-id>",
	Short: "Ask a data owner for access to their private fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		req, correlation, err := cli.CreateRequest(cmd.Context(), args[0])
		if err != nil {
			log.Error().Msgf("%s failed to create request (correlation ID: %s)", redCross, correlation)
			return err
		}

		log.Info().Msgf("%s request %s created, waiting for the owner's decision",
			greenCheck, color.New(color.Bold).Sprint(req.RequestID))
		return nil
	},
}

var requestsApproveCmd = &cobra.Command{
	Use:   "approve <request-id>",
	Short: "Approve a pending sharing request (owner only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		req, correlation, err := cli.ApproveRequest(cmd.Context(), args[0])
		if err != nil {
			log.Error().Msgf("%s failed to approve request (correlation ID: %s)", redCross, correlation)
			return err
		}

		log.Info().Msgf("%s request %s is now %s", greenCheck, req.RequestID, req.Status)
		return nil
	},
}

var requestsRejectCmd = &cobra.Command{
	Use:   "reject <request-id>",
	Short: "Reject a pending sharing request (owner only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		req, correlation, err := cli.RejectRequest(cmd.Context(), args[0])
		if err != nil {
			log.Error().Msgf("%s failed to reject request (correlation ID: %s)", redCross, correlation)
			return err
		}

		log.Info().Msgf("%s request %s is now %s", greenCheck, req.RequestID, req.Status)
		return nil
	},
}

var requestsKeyCmd = &cobra.Command{
	Use:   "key <request-id>",
	Short: "Fetch the request key of an approved request (requester only)",
	Long: `Fetch the request key of an approved request.

	The key opens the outer stage of fields the owner sealed for this
	request. The inner stage still needs the owner's secret, which you
	must obtain from them directly.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := getClient()
		if err != nil {
			return err
		}

		key, correlation, err := cli.ResolveKey(cmd.Context(), args[0])
		if err != nil {
			log.Error().Msgf("%s failed to resolve request key (correlation ID: %s)", redCross, correlation)
			return err
		}

		fmt.Println(key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(requestsCmd)
	requestsCmd.AddCommand(requestsListCmd)
	requestsCmd.AddCommand(requestsCreateCmd)
	requestsCmd.AddCommand(requestsApproveCmd)
	requestsCmd.AddCommand(requestsRejectCmd)
	requestsCmd.AddCommand(requestsKeyCmd)
}
