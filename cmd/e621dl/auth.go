package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"e621dl/pkg/auth"
	"e621dl/pkg/config"
	"e621dl/pkg/e621"
	errs "e621dl/pkg/errors"
	"e621dl/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	loginUsername string
	loginAPIKey   string
	loginVerify   bool
	logoutAll     bool
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage e621 accounts",
	Long: `Manage stored e621 accounts.

Accounts are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (E621DL_USERNAME and E621DL_API_KEY, read only)

Never share your API key or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store an account and API key",
	Long: `Store an account name and API key in the system keychain or encrypted file.

Generate a key under "Manage API Access" in your account settings. Run
'e621dl auth status' for step by step instructions.`,
	Example: `  # Store an account
  e621dl auth login --username myname --api-key 1a2b3c4d5e6f

  # Store it and check it against the site first
  e621dl auth login --username myname --api-key 1a2b3c4d5e6f --verify`,
	Args: cobra.NoArgs,
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [username]",
	Short: "Remove stored accounts",
	Long: `Remove a stored account. Without a username the only stored account is
removed; with --all every stored account is removed.`,
	Example: `  # Remove one account
  e621dl auth logout myname

  # Remove everything
  e621dl auth logout --all`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored accounts with their API keys masked.`,
	Args:  cobra.NoArgs,
	Run:   runList,
}

// statusCmd represents the auth status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which account a grab would use",
	Args:  cobra.NoArgs,
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(statusCmd)

	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "account name")
	loginCmd.Flags().StringVarP(&loginAPIKey, "api-key", "k", "", "API key")
	loginCmd.Flags().BoolVar(&loginVerify, "verify", false, "check the key against the site before storing it")
	_ = loginCmd.MarkFlagRequired("username")
	_ = loginCmd.MarkFlagRequired("api-key")

	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove every stored account")
}

func newCredentialManager() *auth.Manager {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err)
		os.Exit(1)
	}
	return manager
}

func runLogin(cmd *cobra.Command, args []string) {
	manager := newCredentialManager()

	account := &auth.Account{Username: loginUsername, APIKey: loginAPIKey}
	if err := account.Validate(); err != nil {
		ui.PrintError("Invalid account", err)
		os.Exit(1)
	}

	if loginVerify {
		if err := verifyAccount(cmd.Context(), account); err != nil {
			ui.PrintError("Verification failed", err)
			os.Exit(1)
		}
		ui.PrintSuccess("API key accepted by the site")
	}

	if existing, _ := manager.Retrieve(account.Username); existing != nil {
		ui.PrintWarning("Replacing stored key for " + account.Username)
	}

	if err := manager.Store(account); err != nil {
		ui.PrintError("Failed to store credentials", err)
		os.Exit(1)
	}
	ui.PrintSuccess(fmt.Sprintf("Account saved: %s", account.Username))

	fmt.Fprintln(ui.Out, "\nThe most recently stored account is used by default. To pick one:")
	fmt.Fprintf(ui.Out, "  e621dl grab --account %s\n", account.Username)
}

// verifyAccount fetches the account record with the key attached. A rejected
// key comes back as an AuthError.
func verifyAccount(ctx context.Context, account *auth.Account) error {
	baseURL := e621.BaseURL
	userAgent := ""
	if cfg, err := config.Load(configFile, globalFlags()); err == nil {
		baseURL = cfg.EffectiveBaseURL()
		userAgent = cfg.E621.UserAgent
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := e621.NewClient(e621.Options{
		BaseURL:   baseURL,
		UserAgent: userAgent,
		Session:   account.Session(),
	})
	_, err := client.GetUser(ctx, account.Username)
	var authErr *errs.AuthError
	if errors.As(err, &authErr) {
		return fmt.Errorf("the site rejected the API key for %s", account.Username)
	}
	return err
}

func runLogout(cmd *cobra.Command, args []string) {
	manager := newCredentialManager()

	if logoutAll {
		if err := manager.DeleteAll(); err != nil {
			ui.PrintError("Failed to remove all accounts", err)
			os.Exit(1)
		}
		ui.PrintSuccess("All accounts removed")
		return
	}

	var name string
	if len(args) > 0 {
		name = args[0]
	} else {
		accounts, err := manager.List()
		if err != nil || len(accounts) == 0 {
			ui.PrintError("No stored accounts found")
			os.Exit(1)
		}
		if len(accounts) > 1 {
			ui.PrintError("Several accounts are stored; name one or pass --all")
			for _, a := range accounts {
				fmt.Fprintf(ui.Out, "  - %s\n", a.Username)
			}
			os.Exit(1)
		}
		name = accounts[0].Username
	}

	if err := manager.Delete(name); err != nil {
		ui.PrintError("Failed to remove account", err)
		os.Exit(1)
	}
	ui.PrintSuccess("Account removed: " + name)
}

func runList(cmd *cobra.Command, args []string) {
	manager := newCredentialManager()

	accounts, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list accounts", err)
		os.Exit(1)
	}

	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'e621dl auth login' to add an account")
		return
	}

	fmt.Fprintln(ui.Out, ui.Bold("Stored Accounts"))
	fmt.Fprintln(ui.Out)
	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Fprintf(ui.Out, "%d. Username: %s\n", i+1, sanitized.Username)
		fmt.Fprintf(ui.Out, "   API Key: %s\n", sanitized.APIKey)
		if !sanitized.LastModified.IsZero() {
			fmt.Fprintf(ui.Out, "   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintln(ui.Out)
	}
}

func runStatus(cmd *cobra.Command, args []string) {
	baseURL := e621.BaseURL
	cfg, err := config.Load(configFile, globalFlags())
	if err == nil {
		baseURL = cfg.EffectiveBaseURL()
		if cfg.E621.Username != "" && cfg.E621.APIKey != "" {
			ui.PrintInfo("Account", cfg.E621.Username+" (from configuration)")
			return
		}
	}

	account, err := newCredentialManager().RetrieveDefault()
	switch {
	case err == nil:
		ui.PrintInfo("Account", account.Username)
		ui.PrintInfo("API Key", auth.SanitizeAccount(account).APIKey)
	case errors.Is(err, auth.ErrCredentialsNotFound):
		ui.PrintWarning("No account configured, grabs run anonymously")
		fmt.Fprintln(ui.Out)
		auth.WriteAPIKeyGuide(ui.Out, baseURL)
	default:
		ui.PrintError("Failed to read stored credentials", err)
		os.Exit(1)
	}
}
