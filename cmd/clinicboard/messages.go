package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/clinicboard/clinicboard/internal/domain/messaging"
)

func messagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Contacts and message threads",
	}

	contacts := &cobra.Command{
		Use:   "contacts",
		Short: "List contacts with their latest message",
		Args:  cobra.NoArgs,
		RunE: clientRun(func(ctx context.Context, env *clientEnv, cmd *cobra.Command, _ []string) error {
			search, _ := cmd.Flags().GetString("search")
			var out []messaging.Contact
			if err := env.api.Do(ctx, http.MethodGet, "contacts?"+url.Values{"search": {search}}.Encode(), nil, &out); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(env.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tLAST MESSAGE\tAT")
			for _, c := range out {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.Name, c.LastMessage, c.LastMessageAt.Local().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		}),
	}
	contacts.Flags().StringP("search", "s", "", "Case-insensitive name filter")
	cmd.AddCommand(contacts)

	cmd.AddCommand(&cobra.Command{
		Use:   "thread CONTACT_ID",
		Short: "Show the conversation with a contact",
		Args:  cobra.ExactArgs(1),
		RunE: clientRun(func(ctx context.Context, env *clientEnv, _ *cobra.Command, args []string) error {
			var msgs []messaging.Message
			if err := env.api.Do(ctx, http.MethodGet, threadPath(args[0]), nil, &msgs); err != nil {
				return err
			}
			for _, m := range msgs {
				fmt.Fprintf(env.out, "%s  %s: %s\n", m.SentAt.Local().Format("15:04"), m.Sender, m.Text)
			}
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "send CONTACT_ID TEXT...",
		Short: "Send a message",
		Args:  cobra.MinimumNArgs(2),
		RunE: clientRun(func(ctx context.Context, env *clientEnv, _ *cobra.Command, args []string) error {
			body := map[string]string{"text": strings.Join(args[1:], " ")}
			var m messaging.Message
			if err := env.api.Do(ctx, http.MethodPost, threadPath(args[0]), body, &m); err != nil {
				return err
			}
			fmt.Fprintf(env.out, "Sent at %s\n", m.SentAt.Local().Format("15:04"))
			return nil
		}),
	})

	return cmd
}

func threadPath(contactID string) string {
	return "contacts/" + url.PathEscape(contactID) + "/messages"
}
