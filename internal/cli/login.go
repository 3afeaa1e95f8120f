package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/uparkt/parkadmin/internal/auth"
	"github.com/uparkt/parkadmin/internal/session"
)

// EnvPassword supplies the login password when --passwd is not given.
const EnvPassword = "PARKADMIN_PASSWORD"

// newLoginCmd creates and returns a new login command
func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with the uParkt server",
		Long: `Login to the uParkt server to obtain an access token.
The token is stored in the session file and refreshed while a long running
command such as "chats watch" is active.

Only staff members holding the administrator role can log in.

Example:
  parkadmin login --login admin --passwd=mypassword
  PARKADMIN_PASSWORD=mypassword parkadmin login --login admin`,
		RunE: runLogin,
	}

	cmd.Flags().String("login", "", "Login of the staff member")
	cmd.Flags().String("passwd", "", "Password for authentication")
	cmd.Flags().String("fbid", "", "Push notification id of this device")
	cmd.MarkFlagRequired("login")
	return cmd
}

// runLogin handles the login command execution
func runLogin(cmd *cobra.Command, args []string) error {
	login, _ := cmd.Flags().GetString("login")
	passwd, _ := cmd.Flags().GetString("passwd")
	fbid, _ := cmd.Flags().GetString("fbid")
	if passwd == "" {
		passwd = os.Getenv(EnvPassword)
		if passwd == "" {
			return fmt.Errorf("no password provided. Use --passwd flag or set %s", EnvPassword)
		}
	}

	rt, err := runtimeFor(cmd)
	if err != nil {
		return err
	}
	me, err := rt.Login(ctxOf(cmd), auth.Credentials{Login: login, Password: passwd, FBID: fbid})
	if err != nil {
		return userFacing(err)
	}

	expiry, hasExpiry := auth.TokenExpiry(session.Token(ctxOf(cmd), rt.Store))
	out := cmd.OutOrStdout()
	if jsonOutput {
		kv := map[string]any{
			"status":  "success",
			"message": "Login successful",
			"user":    me.FullName(),
		}
		if hasExpiry {
			kv["expires_at"] = expiry.Format(time.RFC3339)
		}
		return printJSON(out, kv)
	}
	okLabel.Fprintln(out, "✓ Login successful")
	fmt.Fprintf(out, "Logged in as %s\n", me.FullName())
	if hasExpiry {
		fmt.Fprintf(out, "Token expires at: %s\n", expiry.Format(time.RFC3339))
	}
	return nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Long: `End the session on the server and forget the stored token.
The local session is cleared even when the server cannot be reached.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			if err := rt.Logout(ctxOf(cmd)); err != nil {
				return userFacing(err)
			}
			printDone(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}
