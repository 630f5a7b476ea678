package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/craftauth/craftauth/internals/auth"
	"github.com/spf13/cobra"
)

// tokenCmd resolves a usable session for an account – the same call the
// game launcher makes right before starting the game
var tokenCmd = &cobra.Command{
	Use:   "token <username> <provider>",
	Short: "Print a valid session (uuid, name, access token) for an account",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		provider, ok := auth.ParseProviderID(args[1])
		if !ok {
			logger.Fail("unknown provider: " + args[1])
		}
		// accept names copied from "craftauth ls", suffix and all
		username := auth.StripNameSuffix(args[0], provider)

		account, err := accountManager.EnsureValidToken(context.Background(), auth.Account{
			Username: username,
			Provider: provider,
		})
		if err != nil {
			if errors.Is(err, auth.ErrReauthRequired) {
				logger.Fail("The stored credential is no longer valid – run \"craftauth login\" again")
			}
			logger.Fail(err.Error())
		}

		fmt.Println("uuid:        " + account.GetUUID())
		fmt.Println("player name: " + account.GetPlayerName())
		fmt.Println("user type:   " + account.GetUserType())
		if account.AccessToken != "" {
			fmt.Println("token:       " + account.AccessToken)
		}
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}
