package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"agency-site/internal/apiclient"
)

func (a *app) contactCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contact",
		Short: "Get in touch with the agency",
	}
	cmd.AddCommand(a.contactSendCommand())
	return cmd
}

func (a *app) contactSendCommand() *cobra.Command {
	var in apiclient.ContactMessageInput
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message through the contact form",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd); err != nil {
				return err
			}
			if _, err := a.client.SubmitContactMessage(cmd.Context(), in); err != nil {
				a.logger.WithError(err).Warn("send contact message")
				a.toast.Error(messageOr(err, "Failed to send message. Please try again."))
				return reported(err)
			}
			a.toast.Success("Message sent successfully! We'll get back to you soon.")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.Name, "name", "", "your name")
	f.StringVar(&in.Email, "email", "", "your email")
	f.StringVar(&in.Message, "message", "", "the message")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func messageOr(err error, fallback string) string {
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
