package cli

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/uparkt/parkadmin/internal/cache"
	"github.com/uparkt/parkadmin/internal/chat"
	"github.com/uparkt/parkadmin/internal/query"
)

func chatPath(id int64) string {
	return "/chats/" + itoa(id)
}

func newChatsCmd() *cobra.Command {
	chatsCmd := &cobra.Command{
		Use:     "chats",
		Aliases: []string{"chat"},
		Short:   "Read and answer the support chat",
	}

	var listFlags pageFlags
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List support chats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, path, err := listFlags.filters("/chats")
			if err != nil {
				return err
			}
			rt, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			q := rt.Queries.ChatList(f)
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
			printHeading(out, "chats", f, page.Total, page.Count)
			for _, c := range page.Items {
				fmt.Fprintf(out, "- #%d %s", c.ID, c.Username)
				if c.Message != nil {
					fmt.Fprintf(out, ": %s", firstLine(c.Message.Msg))
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	listFlags.register(listCmd, true)

	showCmd := &cobra.Command{
		Use:   "show <chat-id>",
		Short: "Show a chat with its latest messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "chat")
			if err != nil {
				return err
			}
			rt, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			q := rt.Queries.Chat(id)
			if rt, err = enter(cmd, chatPath(id), &q); err != nil {
				return err
			}
			c, err := cache.Get(ctxOf(cmd), rt.Cache, q)
			if err != nil {
				return userFacing(err)
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printValue(out, c)
			}
			chatLabel.Fprintf(out, "Chat %d\n", c.ID)
			if !c.RegDate.IsZero() {
				fmt.Fprintf(out, "Opened: %s\n", c.RegDate.Format("02.01.2006 15:04"))
			}
			newChatPrinter(out, 0).PrintHistory(c.ID, c.LastMessages)
			return nil
		},
	}

	var msgFlags pageFlags
	messagesCmd := &cobra.Command{
		Use:   "messages <chat-id>",
		Short: "Page through the history of a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "chat")
			if err != nil {
				return err
			}
			f, path, err := msgFlags.filters(chatPath(id) + "/messages")
			if err != nil {
				return err
			}
			rt, err := runtimeFor(cmd)
			if err != nil {
				return err
			}
			q := rt.Queries.ChatMessages(id, f)
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
			printHeading(out, "messages", f, page.Total, page.Count)
			newChatPrinter(out, 0).PrintHistory(id, page.Items)
			return nil
		},
	}
	msgFlags.register(messagesCmd, false)

	sendCmd := &cobra.Command{
		Use:   "send <chat-id> <text>...",
		Short: "Send a message to a chat",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "chat")
			if err != nil {
				return err
			}
			rt, err := protected(cmd, chatPath(id))
			if err != nil {
				return err
			}
			ctx := ctxOf(cmd)
			conn, err := rt.OpenChat(ctx)
			if err != nil {
				return userFacing(err)
			}
			defer conn.Close()
			if err := conn.Send(ctx, chat.Message{ChatID: id, Msg: strings.Join(args[1:], " ")}); err != nil {
				return userFacing(err)
			}
			rt.Cache.Invalidate(query.ChatKey(id))
			printDone(cmd.OutOrStdout(), fmt.Sprintf("Message sent to chat %d", id))
			return nil
		},
	}

	var only int64
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow incoming chat messages",
		Long: `Follow incoming support chat messages until interrupted.
The session token is refreshed in the background while watching.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := protected(cmd, "/chats")
			if err != nil {
				return err
			}
			ctx := ctxOf(cmd)
			if err := rt.Boot(ctx); err != nil {
				return userFacing(err)
			}
			me, err := rt.Me(ctx)
			if err != nil {
				return userFacing(err)
			}
			conn, err := rt.OpenChat(ctx)
			if err != nil {
				return userFacing(err)
			}
			defer conn.Close()

			out := cmd.OutOrStdout()
			printer := newChatPrinter(out, me.ID)
			if !jsonOutput {
				hintLabel.Fprintln(cmd.ErrOrStderr(), "Watching chats, press Ctrl+C to stop")
			}
			for {
				select {
				case <-ctx.Done():
					return nil
				case m, ok := <-conn.Messages():
					if !ok {
						log.Debug().Msg("chat connection ended")
						return chat.ErrClosed
					}
					if only != 0 && m.ChatID != only {
						continue
					}
					rt.Cache.Invalidate(query.ChatKey(m.ChatID))
					if jsonOutput {
						printJSON(out, m)
						continue
					}
					printer.Print(m)
				}
			}
		},
	}
	watchCmd.Flags().Int64Var(&only, "chat", 0, "Only show messages of this chat")

	chatsCmd.AddCommand(listCmd, showCmd, messagesCmd, sendCmd, watchCmd)
	return chatsCmd
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + "…"
	}
	return s
}
