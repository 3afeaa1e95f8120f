package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/uparkt/parkadmin/internal/auth"
	"github.com/uparkt/parkadmin/internal/cache"
)

const profilePath = "/profile"

func newMeCmd() *cobra.Command {
	meCmd := &cobra.Command{
		Use:   "me",
		Short: "Show the profile of the logged in staff member",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			q := rt.Queries.MeDetail()
			if rt, err = enter(cmd, profilePath, &q); err != nil {
				return err
			}
			me, err := cache.Get(ctxOf(cmd), rt.Cache, q)
			if err != nil {
				return userFacing(err)
			}
			if jsonOutput {
				return printValue(cmd.OutOrStdout(), me)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (#%d)\n", me.FullName(), me.ID)
			if me.Email != "" {
				fmt.Fprintf(out, "Email: %s\n", me.Email)
			}
			if me.Phone != "" {
				fmt.Fprintf(out, "Phone: %s\n", me.Phone)
			}
			fmt.Fprintf(out, "Roles: %v\n", me.Role)
			return nil
		},
	}

	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Change profile fields",
		Long: `Change the given profile fields. Fields without a flag keep their value.

Example:
  parkadmin me update --name Anna --phone +79990000001`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var u auth.ProfileUpdate
			for flag, dst := range map[string]**string{
				"name":    &u.Name,
				"surname": &u.Surname,
				"email":   &u.Email,
				"phone":   &u.Phone,
			} {
				if cmd.Flags().Changed(flag) {
					v, _ := cmd.Flags().GetString(flag)
					*dst = &v
				}
			}
			if u == (auth.ProfileUpdate{}) {
				return fmt.Errorf("nothing to update")
			}
			rt, err := protected(cmd, profilePath)
			if err != nil {
				return err
			}
			if err := rt.UpdateMe(ctxOf(cmd), u); err != nil {
				return userFacing(err)
			}
			printDone(cmd.OutOrStdout(), "Profile updated")
			return nil
		},
	}
	updateCmd.Flags().String("name", "", "First name")
	updateCmd.Flags().String("surname", "", "Surname")
	updateCmd.Flags().String("email", "", "Email address")
	updateCmd.Flags().String("phone", "", "Phone number")

	var current, next string
	passwordCmd := &cobra.Command{
		Use:   "password",
		Short: "Change the password",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := protected(cmd, profilePath)
			if err != nil {
				return err
			}
			if err := rt.ChangePassword(ctxOf(cmd), current, next); err != nil {
				return userFacing(err)
			}
			printDone(cmd.OutOrStdout(), "Password changed")
			return nil
		},
	}
	passwordCmd.Flags().StringVar(&current, "current", "", "Current password")
	passwordCmd.Flags().StringVar(&next, "new", "", "New password")
	passwordCmd.MarkFlagRequired("current")
	passwordCmd.MarkFlagRequired("new")

	meCmd.AddCommand(updateCmd, passwordCmd)
	return meCmd
}
