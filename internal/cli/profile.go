package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"agency-site/internal/apiclient"
)

func (a *app) profileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show and edit your profile",
	}
	cmd.AddCommand(a.profileShowCommand(), a.profileUpdateCommand(), a.profileAvatarCommand())
	return cmd
}

func (a *app) profileShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print your profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd); err != nil {
				return err
			}
			snap, err := a.requireSession()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if snap.Profile == nil {
				fmt.Fprintln(w, hintStyle.Render("profile unavailable right now"))
				return nil
			}

			p := snap.Profile
			printField(w, "Email", snap.User.Email)
			printField(w, "First name", p.FirstName)
			printField(w, "Last name", p.LastName)
			printField(w, "Phone", p.PhoneNumber)
			printField(w, "Avatar", p.AvatarURL)
			printField(w, "Admin", p.Admin.String())
			printField(w, "Updated", formatTime(p.UpdatedAt))
			return nil
		},
	}
}

func (a *app) profileUpdateCommand() *cobra.Command {
	var first, last, phone string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change your name or phone number",
		RunE: func(cmd *cobra.Command, args []string) error {
			var u apiclient.ProfileUpdate
			f := cmd.Flags()
			if f.Changed("first-name") {
				u.FirstName = &first
			}
			if f.Changed("last-name") {
				u.LastName = &last
			}
			if f.Changed("phone") {
				u.PhoneNumber = &phone
			}
			if u.FirstName == nil && u.LastName == nil && u.PhoneNumber == nil {
				return errors.New("nothing to update: set --first-name, --last-name or --phone")
			}

			if err := a.open(cmd); err != nil {
				return err
			}
			return reported(a.sync.UpdateProfile(cmd.Context(), u))
		},
	}

	f := cmd.Flags()
	f.StringVar(&first, "first-name", "", "first name")
	f.StringVar(&last, "last-name", "", "last name")
	f.StringVar(&phone, "phone", "", "phone number, digits only")
	return cmd
}

func (a *app) profileAvatarCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "avatar <image>",
		Short: "Upload a new avatar image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd); err != nil {
				return err
			}
			if _, err := a.requireSession(); err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open avatar: %w", err)
			}
			defer f.Close()

			return reported(a.sync.UploadAvatar(cmd.Context(), filepath.Base(args[0]), f))
		},
	}
}
