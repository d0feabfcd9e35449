package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/whoisscan/internal/config"
	"github.com/user/whoisscan/internal/session"
)

func init() {
	rootCmd.AddCommand(membersCmd)
}

var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "List the participants of the configured chat",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if err := cfg.Validate(config.ModeSession); err != nil {
			return err
		}
		logger, closeLog, err := setupLogging(cfg)
		if err != nil {
			return err
		}
		defer closeLog()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client, err := newTelegramClient(cfg, logger)
		if err != nil {
			return err
		}
		mgr := session.NewManager(client, newTerminalPrompter(os.Stdin, cmd.OutOrStdout()), cfg.Telegram.PhoneNumber, logger)
		defer mgr.Close()

		if err := mgr.Authorize(ctx); err != nil {
			return err
		}

		members, err := client.Participants(ctx, cfg.Telegram.ChatID)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tUSERNAME\tBOT")
		for _, m := range members {
			username := "-"
			if m.Username != "" {
				username = "@" + m.Username
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%t\n", m.ID, m.DisplayName(), username, m.Bot)
		}
		return tw.Flush()
	},
}
