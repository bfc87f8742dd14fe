package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Ask the assistant about projects and tasks",
		Long: `With a message argument, asks one question and prints the reply. Without one,
reads a conversation from stdin: each line is a user turn and the history is kept
until EOF.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := apiClient(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) > 0 {
				msg := strings.TrimSpace(strings.Join(args, " "))
				if msg == "" {
					return errors.New("message is empty")
				}
				reply, err := c.Chat(cmd.Context(), []models.ChatMessage{{Role: "user", Content: msg}})
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(out, reply)
				return nil
			}

			var history []models.ChatMessage
			sc := bufio.NewScanner(cmd.InOrStdin())
			for sc.Scan() {
				line := strings.TrimSpace(sc.Text())
				if line == "" {
					continue
				}
				history = append(history, models.ChatMessage{Role: "user", Content: line})
				reply, err := c.Chat(cmd.Context(), history)
				if err != nil {
					return err
				}
				history = append(history, models.ChatMessage{Role: "assistant", Content: reply})
				_, _ = fmt.Fprintf(out, "%s %s\n", titleStyle.Render("assistant:"), reply)
			}
			return sc.Err()
		},
	}
	return cmd
}
