package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/uparkt/parkadmin/internal/cache"
)

func userPath(id int64) string {
	return "/users/" + itoa(id)
}

func newUsersCmd() *cobra.Command {
	usersCmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "Browse and moderate user accounts",
	}

	var pf pageFlags
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Long: `List one page of users, optionally filtered by name.

Example:
  parkadmin users list --search ivan --page 2 --per-page 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, path, err := pf.filters("/users")
			if err != nil {
				return err
			}
			rt, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			q := rt.Queries.UserList(f)
			if rt, err = enter(cmd, path, &q); err != nil {
				return err
			}
			page, err := cache.Get(ctxOf(cmd), rt.Cache, q)
			if err != nil {
				return userFacing(err)
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printValue(out, page)
			}
			printHeading(out, "users", f, page.Total, page.Count)
			for _, u := range page.Items {
				fmt.Fprintf(out, "- #%d %s", u.ID, u.FullName())
				if u.Phone != "" {
					fmt.Fprintf(out, " %s", u.Phone)
				}
				if u.Status != "" && u.Status != "active" {
					fmt.Fprintf(out, " [%s]", u.Status)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	pf.register(listCmd, true)

	showCmd := &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show a user with their balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			rt, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			q := rt.Queries.User(id)
			if rt, err = enter(cmd, userPath(id), &q); err != nil {
				return err
			}
			ctx := ctxOf(cmd)
			user, err := cache.Get(ctx, rt.Cache, q)
			if err != nil {
				return userFacing(err)
			}
			money, err := cache.Get(ctx, rt.Cache, rt.Queries.UserMoney(id))
			if err != nil {
				return userFacing(err)
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printValue(out, map[string]any{"user": user, "money": money})
			}
			fmt.Fprintf(out, "%s (#%d)\n", user.FullName(), user.ID)
			fmt.Fprintf(out, "Status: %s\n", user.Status)
			if user.Phone != "" {
				fmt.Fprintf(out, "Phone: %s\n", user.Phone)
			}
			if user.Email != "" {
				fmt.Fprintf(out, "Email: %s\n", user.Email)
			}
			if len(user.Role) > 0 {
				fmt.Fprintf(out, "Roles: %s\n", strings.Join(user.Role, ", "))
			}
			if !user.Created.IsZero() {
				fmt.Fprintf(out, "Registered: %s\n", user.Created)
			}
			fmt.Fprintf(out, "Balance: %s\n", formatAmount(money.Balance))
			for _, tx := range money.History {
				fmt.Fprintf(out, "- %s %s", tx.Title, amountPrinter.Sprintf("%+.2f", tx.Amount))
				if tx.Description != "" {
					fmt.Fprintf(out, " (%s)", tx.Description)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	moneyCmd := &cobra.Command{
		Use:   "money <user-id>",
		Short: "Show the balance history of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			rt, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			q := rt.Queries.UserMoney(id)
			if rt, err = enter(cmd, userPath(id)+"/money", &q); err != nil {
				return err
			}
			money, err := cache.Get(ctxOf(cmd), rt.Cache, q)
			if err != nil {
				return userFacing(err)
			}
			return printValue(cmd.OutOrStdout(), money)
		},
	}

	banCmd := &cobra.Command{
		Use:   "ban <user-id>",
		Short: "Ban a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			rt, err := protected(cmd, userPath(id))
			if err != nil {
				return err
			}
			if err := rt.BanUser(ctxOf(cmd), id); err != nil {
				return userFacing(err)
			}
			printDone(cmd.OutOrStdout(), fmt.Sprintf("User %d banned", id))
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			rt, err := protected(cmd, userPath(id))
			if err != nil {
				return err
			}
			if err := rt.DeleteUser(ctxOf(cmd), id); err != nil {
				return userFacing(err)
			}
			printDone(cmd.OutOrStdout(), fmt.Sprintf("User %d deleted", id))
			return nil
		},
	}

	usersCmd.AddCommand(listCmd, showCmd, moneyCmd, banCmd, deleteCmd)
	return usersCmd
}
