package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"agency-site/internal/apiclient"
	"agency-site/internal/domain"
)

func (a *app) requestsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "requests",
		Aliases: []string{"request"},
		Short:   "Your project requests",
	}
	cmd.AddCommand(a.requestsListCommand(), a.requestsSubmitCommand())
	return cmd
}

func (a *app) requestsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your project requests, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd); err != nil {
				return err
			}
			if _, err := a.requireSession(); err != nil {
				return err
			}
			printProjectRequests(cmd, a.sync.Snapshot().ProjectRequests)
			return nil
		},
	}
}

func (a *app) requestsSubmitCommand() *cobra.Command {
	var (
		in     apiclient.ProjectRequestInput
		budget float64
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Ask the agency to build something",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("budget") {
				in.Budget = &budget
			}
			if err := a.open(cmd); err != nil {
				return err
			}

			req, err := a.sync.SubmitProjectRequest(cmd.Context(), in)
			if err != nil {
				return reported(err)
			}
			printField(cmd.OutOrStdout(), "Request ID", req.ID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.Title, "title", "", "project title")
	f.StringVar(&in.Description, "description", "", "what you want built")
	f.Float64Var(&budget, "budget", 0, "budget in USD")
	f.StringVar(&in.Name, "name", "", "contact name (defaults to your profile)")
	f.StringVar(&in.Email, "email", "", "contact email (defaults to your account)")
	return cmd
}

func printProjectRequests(cmd *cobra.Command, requests []domain.ProjectRequest) {
	rows := make([][]string, 0, len(requests))
	for _, r := range requests {
		rows = append(rows, []string{
			r.ID,
			truncate(r.Title, 32),
			string(r.Status),
			formatBudget(r.Budget),
			formatTime(r.CreatedAt),
		})
	}
	renderTable(cmd.OutOrStdout(), []string{"ID", "TITLE", "STATUS", "BUDGET", "CREATED"}, rows)
}

func printProjectStats(cmd *cobra.Command, stats domain.ProjectRequestStats) {
	fmt.Fprintf(cmd.OutOrStdout(), "pending %d · active %d · rejected %d\n", stats.Pending, stats.Active, stats.Rejected)
}
