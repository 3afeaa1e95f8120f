package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/uparkt/parkadmin/internal/auth"
	"github.com/uparkt/parkadmin/internal/session"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the connection and session status",
		Long: `Show the configured server and whether the stored session is still accepted.
The check never redirects to the login and never changes the stored session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			ctx := ctxOf(cmd)
			path, _ := configPath()
			token := session.Token(ctx, rt.Store)
			expiry, hasExpiry := auth.TokenExpiry(token)
			authenticated := rt.Auth.IsAuthenticated(ctx)

			out := cmd.OutOrStdout()
			if jsonOutput {
				kv := map[string]any{
					"version":       getCLIVersion(),
					"config_file":   path,
					"server":        rt.Config.Server.URL,
					"session":       token != "",
					"authenticated": authenticated,
				}
				if hasExpiry {
					kv["token_expiry"] = expiry.Format(time.RFC3339)
				}
				return printJSON(out, map[string]any{"result": 1, "value": kv})
			}

			fmt.Fprintf(out, "Config file: %s\n", path)
			fmt.Fprintf(out, "Server: %s%s\n", rt.Config.Server.URL, rt.Config.APIPrefix())
			switch {
			case token == "":
				fmt.Fprintln(out, "Session: none")
			case authenticated:
				okLabel.Fprintln(out, "Session: active")
			default:
				errorLabel.Fprintln(out, "Session: rejected by server")
			}
			if hasExpiry {
				fmt.Fprintf(out, "Token expires at: %s\n", expiry.Format(time.RFC3339))
			}
			return nil
		},
	}
}
