package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/craftauth/craftauth/internals/auth"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:     "login",
	Aliases: []string{"signin"},
	Short:   "Log in to a Minecraft account",
	Run: func(cmd *cobra.Command, args []string) {
		providerFlag, _ := cmd.Flags().GetString("provider")
		usernameFlag, _ := cmd.Flags().GetString("username")
		login(providerFlag, usernameFlag)
	},
}

func init() {
	loginCmd.Flags().StringP("provider", "p", "", "account provider (microsoft, elyby, littleskin, offline)")
	loginCmd.Flags().StringP("username", "u", "", "username (or email) to log in with")
	rootCmd.AddCommand(loginCmd)
}

func login(providerFlag string, usernameFlag string) {
	ctx := context.Background()

	provider := pickProvider(providerFlag)
	caps, err := accountManager.ProviderCapabilities(provider)
	if err != nil {
		logger.Fail(err.Error())
	}

	var result *auth.Result
	switch {
	case caps.UsernameOnly:
		result = offlineLogin(usernameFlag)
	case caps.OAuth && (!caps.Credentials || pickMethod(provider) == "browser (oauth)"):
		result = oauthLogin(ctx, provider)
	default:
		result = credentialsLogin(ctx, provider, usernameFlag)
	}

	switch result.Status {
	case auth.StatusSuccess:
		logger.Info("Logged in as " + result.Account.DisplayNameWithSuffix())
		if sessionOnly {
			logger.Warn("Credentials are not persisted – this login lasts for the current session only")
		}
	case auth.StatusFailed:
		logger.Fail(result.Message)
	}
}

func pickProvider(flag string) auth.ProviderID {
	if flag != "" {
		provider, ok := auth.ParseProviderID(flag)
		if !ok {
			logger.Fail("unknown provider: " + flag)
		}
		return provider
	}
	prompt := promptui.Select{
		Label: "Account type",
		Items: []string{"microsoft", "elyby", "littleskin", "offline"},
	}
	_, choice, err := prompt.Run()
	if err != nil {
		logger.Fail("Aborting")
	}
	provider, _ := auth.ParseProviderID(choice)
	return provider
}

// pickMethod asks for the login mechanism when a provider supports more
// than one (littleskin does passwords and oauth)
func pickMethod(provider auth.ProviderID) string {
	prompt := promptui.Select{
		Label: fmt.Sprintf("How do you want to log in to %s", provider),
		Items: []string{"browser (oauth)", "username & password"},
	}
	_, choice, err := prompt.Run()
	if err != nil {
		logger.Fail("Aborting")
	}
	return choice
}

func offlineLogin(usernameFlag string) *auth.Result {
	username := usernameFlag
	if username == "" {
		prompt := promptui.Prompt{
			Label:    "Player name",
			Validate: basicValidation,
		}
		var err error
		username, err = prompt.Run()
		if err != nil {
			logger.Fail("Aborting")
		}
	}

	result, err := accountManager.QuickOfflineLogin(username)
	if err != nil {
		logger.Fail(err.Error())
	}
	return result
}

func credentialsLogin(ctx context.Context, provider auth.ProviderID, usernameFlag string) *auth.Result {
	fmt.Printf("Please sign in with your %s credentials\n", provider)
	fmt.Println("Your password is sent encrypted to the auth server directly and NOT saved anywhere.")

	username := usernameFlag
	if username == "" {
		uPrompt := promptui.Prompt{
			Label:    "Username (email)",
			Validate: basicValidation,
		}
		var err error
		username, err = uPrompt.Run()
		if err != nil {
			logger.Fail("Aborting")
		}
	}

	pPrompt := promptui.Prompt{
		Label:    "Password",
		Validate: basicValidation,
		Mask:     '■',
	}
	password, err := pPrompt.Run()
	if err != nil {
		logger.Fail("Aborting")
	}

	result, err := runQuickLogin(ctx, provider, username, password)
	if err != nil {
		logger.Fail(err.Error())
	}

	if result.Status == auth.StatusRequiresTwoFactor {
		// ely.by convention: resubmit with "password:otp"
		otpPrompt := promptui.Prompt{
			Label:    "Two factor code",
			Validate: basicValidation,
		}
		otp, err := otpPrompt.Run()
		if err != nil {
			logger.Fail("Aborting")
		}
		result, err = runQuickLogin(ctx, provider, username, password+":"+otp)
		if err != nil {
			logger.Fail(err.Error())
		}
	}
	return result
}

// runQuickLogin handles the keyring degradation case: the login counts,
// the user just gets told that nothing was persisted
func runQuickLogin(ctx context.Context, provider auth.ProviderID, username string, password string) (*auth.Result, error) {
	result, err := accountManager.QuickLogin(ctx, provider, username, password)
	if err != nil && errors.Is(err, auth.ErrKeyring) && result != nil {
		logger.Warn("Could not persist credentials: " + err.Error())
		sessionOnly = true
		return result, nil
	}
	return result, err
}

func oauthLogin(ctx context.Context, provider auth.ProviderID) *auth.Result {
	flow, err := accountManager.StartOAuthLogin(ctx, provider)
	if err != nil {
		logger.Fail(err.Error())
	}

	logger.Headline("Action required")
	fmt.Printf("Open %s and enter the code: %s\n", flow.VerificationURI, flow.UserCode)
	if flow.VerificationURIComplete != "" {
		fmt.Printf("(or open %s directly)\n", flow.VerificationURIComplete)
	}

	wait := spinner.New(spinner.CharSets[9], 300*time.Millisecond)
	wait.Suffix = " Waiting for you to finish in the browser …"
	wait.Start()
	result, err := accountManager.CompleteOAuthLogin(ctx, provider, flow.DeviceCode)
	wait.Stop()

	if err != nil {
		if errors.Is(err, auth.ErrKeyring) && result != nil {
			logger.Warn("Could not persist credentials: " + err.Error())
			sessionOnly = true
			return result
		}
		logger.Fail(err.Error())
	}
	return result
}

func basicValidation(input string) error {
	if len(input) == 0 {
		return errors.New("you have to enter something …")
	}
	return nil
}
