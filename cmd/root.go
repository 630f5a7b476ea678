package cmd

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/craftauth/craftauth/internals/auth"
	"github.com/craftauth/craftauth/internals/auth/elyby"
	"github.com/craftauth/craftauth/internals/auth/littleskin"
	"github.com/craftauth/craftauth/internals/auth/microsoft"
	"github.com/craftauth/craftauth/internals/auth/offline"
	"github.com/craftauth/craftauth/internals/cmdlog"
	"github.com/craftauth/craftauth/internals/credentials"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/oauth2"
)

// Version gets set by goreleaser
var Version = "dev"

var logger *cmdlog.Logger = cmdlog.New()

var (
	globalDir      string
	accountManager *auth.Manager
	sessionOnly    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "craftauth",
	Short: "Minecraft account management at your service.",
	Long:  "Log in, refresh and manage Minecraft accounts (Microsoft, ely.by, LittleSkin, offline)",

	Example: `
  craftauth login
  craftauth login --provider offline --username Notch
  craftauth ls
  craftauth token Notch offline`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	globalDir = filepath.Join(home, ".craftauth")

	cobra.OnInitialize(initConfig, initManager)

	rootCmd.PersistentFlags().Bool("session-only", false, "do not persist credentials (in-memory store)")
	viper.BindPFlag("sessionOnly", rootCmd.PersistentFlags().Lookup("session-only"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.AddConfigPath(globalDir)
	viper.SetConfigName("config")
	viper.SetEnvPrefix("craftauth")
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		logger.Log("Using config file: " + viper.ConfigFileUsed())
	}
}

// initManager wires the provider registry and the credential store.
// When the OS keyring is unavailable we degrade to a session-only
// in-memory store – logins still work, nothing is persisted.
func initManager() {
	var store credentials.Store
	if viper.GetBool("sessionOnly") {
		store = credentials.NewMemory()
		sessionOnly = true
	} else {
		keyringStore, err := credentials.NewKeyring(globalDir)
		if err != nil {
			logger.Warn("Secure storage is unavailable – continuing without persistence")
			logger.Log("  " + err.Error())
			store = credentials.NewMemory()
			sessionOnly = true
		} else {
			store = keyringStore
		}
	}

	msConfig := &oauth2.Config{ClientID: viper.GetString("microsoft.clientId")}
	accountManager = auth.NewManager(
		store,
		microsoft.New(http.DefaultClient, msConfig),
		elyby.New(http.DefaultClient),
		littleskin.New(http.DefaultClient),
		offline.New(),
	)
}
