package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"agency-site/internal/domain"
)

func (a *app) adminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Back-office tools for administrators",
	}

	messages := &cobra.Command{
		Use:   "messages",
		Short: "Contact form inbox",
	}
	messages.AddCommand(a.adminMessagesListCommand(), a.adminMessagesReadCommand(), a.adminMessagesStatsCommand())

	requests := &cobra.Command{
		Use:   "requests",
		Short: "Project requests from every user",
	}
	requests.AddCommand(a.adminRequestsListCommand(), a.adminRequestsStatusCommand())

	cmd.AddCommand(messages, requests, a.adminUsersCommand())
	return cmd
}

// adminRun wraps fn with the open and admin checks every admin command needs.
func (a *app) adminRun(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := a.open(cmd); err != nil {
			return err
		}
		if err := a.requireAdmin(); err != nil {
			return err
		}
		return fn(cmd, args)
	}
}

func (a *app) adminMessagesListCommand() *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List contact messages, newest first",
		RunE: a.adminRun(func(cmd *cobra.Command, args []string) error {
			messages, stats, err := a.client.ListContactMessages(cmd.Context(), query)
			if err != nil {
				a.toast.Error(messageOr(err, "Failed to load messages"))
				return reported(err)
			}

			rows := make([][]string, 0, len(messages))
			for _, m := range messages {
				read := "new"
				if m.IsRead {
					read = "read"
				}
				rows = append(rows, []string{
					m.ID,
					m.Name,
					m.Email,
					read,
					formatTime(m.CreatedAt),
					truncate(m.Message, 40),
				})
			}
			renderTable(cmd.OutOrStdout(), []string{"ID", "NAME", "EMAIL", "STATUS", "RECEIVED", "MESSAGE"}, rows)
			printContactStats(cmd, stats)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&query, "search", "s", "", "only messages whose name, email or text contains this")
	return cmd
}

func (a *app) adminMessagesReadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "read <message-id>",
		Short: "Mark a contact message as read",
		Args:  cobra.ExactArgs(1),
		RunE: a.adminRun(func(cmd *cobra.Command, args []string) error {
			if err := a.client.MarkContactMessageRead(cmd.Context(), args[0]); err != nil {
				a.toast.Error("Failed to update message status")
				return reported(err)
			}
			a.toast.Success("Message marked as read")
			return nil
		}),
	}
}

func (a *app) adminMessagesStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count read and unread messages",
		RunE: a.adminRun(func(cmd *cobra.Command, args []string) error {
			_, stats, err := a.client.ListContactMessages(cmd.Context(), "")
			if err != nil {
				a.toast.Error(messageOr(err, "Failed to load messages"))
				return reported(err)
			}
			printContactStats(cmd, stats)
			return nil
		}),
	}
}

func printContactStats(cmd *cobra.Command, stats domain.ContactStats) {
	fmt.Fprintf(cmd.OutOrStdout(), "total %d · unread %d · read %d\n", stats.Total, stats.Unread, stats.Read)
}

func (a *app) adminRequestsListCommand() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List project requests from every user",
		RunE: a.adminRun(func(cmd *cobra.Command, args []string) error {
			requests, stats, err := a.client.ListAllProjectRequests(cmd.Context(), status)
			if err != nil {
				a.toast.Error(messageOr(err, "Failed to load project requests"))
				return reported(err)
			}
			printProjectRequests(cmd, requests)
			printProjectStats(cmd, stats)
			return nil
		}),
	}
	cmd.Flags().StringVar(&status, "status", "", "only requests with this status")
	return cmd
}

func (a *app) adminRequestsStatusCommand() *cobra.Command {
	statuses := make([]string, len(domain.ProjectStatuses))
	for i, s := range domain.ProjectStatuses {
		statuses[i] = string(s)
	}
	return &cobra.Command{
		Use:       "status <request-id> <status>",
		Short:     "Move a project request to another status",
		Long:      "Move a project request to another status: " + strings.Join(statuses, ", ") + ".",
		Args:      cobra.ExactArgs(2),
		ValidArgs: statuses,
		RunE: a.adminRun(func(cmd *cobra.Command, args []string) error {
			status := domain.ProjectStatus(strings.ToLower(args[1]))
			req, err := a.client.UpdateProjectRequestStatus(cmd.Context(), args[0], status)
			if err != nil {
				a.toast.Error(messageOr(err, "Failed to update project status"))
				return reported(err)
			}
			a.toast.Success(fmt.Sprintf("Project status updated to %s", req.Status))
			return nil
		}),
	}
}

func (a *app) adminUsersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List registered accounts",
		RunE: a.adminRun(func(cmd *cobra.Command, args []string) error {
			users, err := a.client.ListUsers(cmd.Context())
			if err != nil {
				a.toast.Error(messageOr(err, "Failed to load users"))
				return reported(err)
			}

			rows := make([][]string, 0, len(users))
			for _, u := range users {
				name, admin := "", "false"
				if u.Profile != nil {
					name = u.Profile.FullName()
					admin = fmt.Sprint(u.Profile.IsAdmin())
				}
				rows = append(rows, []string{u.User.Email, name, admin, formatTime(u.User.CreatedAt)})
			}
			renderTable(cmd.OutOrStdout(), []string{"EMAIL", "NAME", "ADMIN", "JOINED"}, rows)
			return nil
		}),
	}
}
