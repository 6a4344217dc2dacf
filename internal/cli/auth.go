package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"agency-site/internal/session"
)

func (a *app) signUpCommand() *cobra.Command {
	var in session.SignUpInput
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd); err != nil {
				return err
			}
			if in.Password == "" {
				p, err := a.prompt(cmd, "Password: ")
				if err != nil {
					return err
				}
				in.Password = p
			}
			return reported(a.sync.SignUp(cmd.Context(), in))
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.Email, "email", "", "account email")
	f.StringVar(&in.Password, "password", "", "account password (prompted when empty)")
	f.StringVar(&in.FirstName, "first-name", "", "first name (required)")
	f.StringVar(&in.LastName, "last-name", "", "last name (required)")
	f.StringVar(&in.PhoneNumber, "phone", "", "phone number")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) verifyCommand() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Confirm your email address with the token from the confirmation email",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd); err != nil {
				return err
			}
			return reported(a.sync.VerifyEmail(cmd.Context(), token))
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "confirmation token")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func (a *app) signInCommand() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in and keep the session for later commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd); err != nil {
				return err
			}
			if password == "" {
				p, err := a.prompt(cmd, "Password: ")
				if err != nil {
					return err
				}
				password = p
			}
			if err := a.sync.SignIn(cmd.Context(), email, password); err != nil {
				return reported(err)
			}

			snap := a.sync.Snapshot()
			if snap.Profile.IsAdmin() {
				fmt.Fprintln(cmd.OutOrStdout(), hintStyle.Render("admin tools: agencyctl admin --help"))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&email, "email", "", "account email")
	f.StringVar(&password, "password", "", "account password (prompted when empty)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) signOutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd); err != nil {
				return err
			}
			if a.sync.Snapshot().Session == nil {
				fmt.Fprintln(cmd.OutOrStdout(), hintStyle.Render("not signed in"))
				return nil
			}
			return reported(a.sync.SignOut(cmd.Context()))
		},
	}
}

func (a *app) refreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Renew the stored session now",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd); err != nil {
				return err
			}
			if _, err := a.requireSession(); err != nil {
				return err
			}
			next, err := a.client.RefreshSession(cmd.Context())
			if err != nil {
				a.toast.Error(messageOr(err, "Failed to refresh session"))
				return reported(err)
			}
			a.toast.Success("Session refreshed")
			printField(cmd.OutOrStdout(), "Expires", formatTime(next.Expiry()))
			return nil
		},
	}
}

func (a *app) whoAmICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			snap := a.sync.Snapshot()
			if snap.User == nil {
				fmt.Fprintln(w, hintStyle.Render("not signed in"))
				return nil
			}

			printField(w, "Email", snap.User.Email)
			printField(w, "User ID", snap.User.ID)
			printField(w, "State", snap.State.String())
			if snap.Profile != nil {
				printField(w, "Name", snap.Profile.FullName())
				printField(w, "Admin", fmt.Sprint(snap.Profile.IsAdmin()))
			}
			if snap.Session != nil {
				printField(w, "Expires", formatTime(snap.Session.Expiry()))
			}
			return nil
		},
	}
}
