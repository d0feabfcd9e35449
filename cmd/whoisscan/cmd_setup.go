package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/whoisscan/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("whoisscan setup")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		cfg.LLM.Provider = prompt(scanner, "Classifier provider (openai, anthropic, gemini)", cfg.LLM.Provider)
		cfg.LLM.APIKey = prompt(scanner, "Classifier API key", cfg.LLM.APIKey)
		cfg.LLM.Model = prompt(scanner, "Classifier model", cfg.LLM.Model)
		cfg.Language = prompt(scanner, "Language of the chat", cfg.Language)
		cfg.OutputPath = prompt(scanner, "Report file", cfg.OutputPath)

		fmt.Println()
		fmt.Println("Live scans need API credentials from https://my.telegram.org (optional).")
		cfg.Telegram.APIID = promptInt(scanner, "Telegram api_id", cfg.Telegram.APIID)
		cfg.Telegram.APIHash = prompt(scanner, "Telegram api_hash", cfg.Telegram.APIHash)
		cfg.Telegram.PhoneNumber = prompt(scanner, "Phone number", cfg.Telegram.PhoneNumber)
		cfg.Telegram.ChatID = int64(promptInt(scanner, "Chat ID to scan", int(cfg.Telegram.ChatID)))

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}

func promptInt(scanner *bufio.Scanner, label string, defaultVal int) int {
	def := ""
	if defaultVal != 0 {
		def = strconv.Itoa(defaultVal)
	}
	n, err := strconv.Atoi(prompt(scanner, label, def))
	if err != nil {
		return defaultVal
	}
	return n
}
