package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/whoisscan/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or edit the config file",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every setting, secrets masked",
	Long:  "Lists the effective settings, including environment overrides.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := config.ListValues(loadConfig(), true)
		if err != nil {
			return fmt.Errorf("list config: %w", err)
		}
		out := cmd.OutOrStdout()
		for _, e := range entries {
			fmt.Fprintf(out, "%s = %v\n", e.Key, e.Value)
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the value stored in the config file for key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := config.GetValue(cfgPath, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:     "set <key> <value>",
	Short:   "Store a value in the config file",
	Example: "  whoisscan config set telegram.chat_id -1001702074444\n  whoisscan config set classifier.on_error abort",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetValue(cfgPath, key, value); err != nil {
			return err
		}
		if config.IsSecretKey(key) {
			value = "***"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, value)
		return nil
	},
}
