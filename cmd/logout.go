package cmd

import (
	"context"

	"github.com/craftauth/craftauth/internals/auth"
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:     "logout <username> <provider>",
	Aliases: []string{"signout"},
	Short:   "Log out an account and forget its credentials",
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		provider, ok := auth.ParseProviderID(args[1])
		if !ok {
			logger.Fail("unknown provider: " + args[1])
		}
		// accept names copied from "craftauth ls", suffix and all
		username := auth.StripNameSuffix(args[0], provider)

		if err := accountManager.Logout(context.Background(), username, provider); err != nil {
			logger.Fail(err.Error())
		}
		logger.Info("Logged out " + username)
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
