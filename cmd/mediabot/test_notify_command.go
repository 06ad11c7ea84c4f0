package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mediabot/internal/ipc"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if line := notifyResultLine(resp); line != "" {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				return err
			})
		},
	}
}

// notifyResultLine picks the message to show for a notification attempt. The
// daemon's own message wins; otherwise report whether the push went out.
func notifyResultLine(resp *ipc.TestNotificationResponse) string {
	switch {
	case resp == nil:
		return ""
	case resp.Message != "":
		return resp.Message
	case resp.Sent:
		return "Test notification sent"
	default:
		return "Notification not sent"
	}
}
