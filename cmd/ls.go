package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list", "accounts"},
	Short:   "List all known accounts",
	Run: func(cmd *cobra.Command, args []string) {
		accounts, err := accountManager.Accounts()
		if err != nil {
			logger.Fail(err.Error())
		}
		if len(accounts) == 0 {
			logger.Info("No accounts yet. Try \"craftauth login\"")
			return
		}

		logger.Headline("Accounts")
		for _, account := range accounts {
			token := "no session token – will refresh on use"
			if account.AccessToken != "" {
				token = "session token valid, expires " + humanize.Time(account.TokenExpiry)
			}
			if account.Provider == "offline" {
				token = "local account, no token needed"
			}
			fmt.Printf("  %-36s %s\n", account.DisplayNameWithSuffix(), token)
		}
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
}
