package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"followwatch/pkg/credentials"
	"followwatch/pkg/models"
	"followwatch/pkg/monitor"
	"followwatch/pkg/session"
	"followwatch/pkg/store"
	"followwatch/pkg/ui"
)

var accountProxy string

// accountsCmd groups scraper account management
var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage scraper accounts",
	Long: `Manage the logged-in accounts used to fetch profiles.

The secret is either the value of the platform's session cookie or a full
cookie header copied from a logged-in browser:

  1. Log into the platform in your browser
  2. Open Developer Tools (F12)
  3. Go to Application/Storage > Cookies
  4. Copy the sessionid cookie, or the whole Cookie request header

Secrets are stored in the system keychain, never in the database.`,
}

var accountsAddCmd = &cobra.Command{
	Use:   "add <platform> <username>",
	Short: "Register a scraper account",
	Example: `  # Prompt for the session cookie
  followwatch accounts add instagram scraper_one

  # Route the account through a proxy
  followwatch accounts add tiktok scraper_two --proxy http://10.0.0.5:3128`,
	Args: cobra.ExactArgs(2),
	RunE: runAccountsAdd,
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scraper accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		secrets := credentials.NewDefaultChain()
		return withStore(func(ctx context.Context, st store.Store) error {
			accounts, err := st.ListAllAccounts(ctx)
			if err != nil {
				return err
			}
			if len(accounts) == 0 {
				ui.PrintWarning("No scraper accounts")
				return nil
			}
			rows := make([][]string, 0, len(accounts))
			for _, a := range accounts {
				secret := "missing"
				if s, err := secrets.Get(a.Platform.String(), a.Username); err == nil {
					secret = credentials.Mask(s)
				}
				rows = append(rows, []string{
					strconv.FormatInt(a.ID, 10),
					a.Platform.Title(),
					a.Username,
					activeLabel(a.Active),
					secret,
					a.Proxy,
					monitor.FormatTime(a.LastUsedAt),
				})
			}
			ui.PrintTable([]string{"ID", "PLATFORM", "USERNAME", "STATE", "SECRET", "PROXY", "LAST USED"}, rows)
			return nil
		})
	},
}

var accountsEnableCmd = &cobra.Command{
	Use:   "enable <account-id>",
	Short: "Allow an account to be used again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAccountActive(args[0], true)
	},
}

var accountsDisableCmd = &cobra.Command{
	Use:   "disable <account-id>",
	Short: "Take an account out of rotation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAccountActive(args[0], false)
	},
}

var accountsRemoveCmd = &cobra.Command{
	Use:   "remove <account-id>",
	Short: "Delete an account with its secret and saved session",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsRemove,
}

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsAddCmd, accountsListCmd, accountsEnableCmd, accountsDisableCmd, accountsRemoveCmd)

	accountsAddCmd.Flags().StringVar(&accountProxy, "proxy", "", "HTTP proxy URL for this account")
}

func runAccountsAdd(cmd *cobra.Command, args []string) error {
	platform, err := models.ParsePlatform(args[0])
	if err != nil {
		return err
	}
	username := strings.TrimPrefix(strings.TrimSpace(args[1]), "@")
	if username == "" {
		return errors.New("username is required")
	}

	fmt.Printf("Session cookie for %s on %s (input is hidden): ", username, platform.Title())
	secret, err := readSecret()
	if err != nil {
		return fmt.Errorf("failed to read secret: %w", err)
	}
	if secret == "" {
		return errors.New("secret is required")
	}

	secrets := credentials.NewDefaultChain()
	if err := secrets.Put(platform.String(), username, secret); err != nil {
		if errors.Is(err, credentials.ErrReadOnly) {
			ui.PrintWarning("No keychain available; export " + credentials.EnvVar(platform.String(), username) + " instead")
		} else {
			return fmt.Errorf("failed to store secret: %w", err)
		}
	}

	return withStore(func(ctx context.Context, st store.Store) error {
		a, err := st.AddAccount(ctx, models.ScraperAccount{
			Platform: platform,
			Username: username,
			Proxy:    accountProxy,
			Active:   true,
		})
		if err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				ui.PrintSuccess("Secret updated for existing account " + username)
				return nil
			}
			return fmt.Errorf("failed to add account: %w", err)
		}
		ui.PrintSuccess(fmt.Sprintf("Added %s account %s (id %d)", platform.Title(), a.Username, a.ID))
		return nil
	})
}

func runAccountsRemove(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return withStore(func(ctx context.Context, st store.Store) error {
		accounts, err := st.ListAllAccounts(ctx)
		if err != nil {
			return err
		}
		var account *models.ScraperAccount
		for i := range accounts {
			if accounts[i].ID == id {
				account = &accounts[i]
				break
			}
		}
		if account == nil {
			return fmt.Errorf("account %d: %w", id, store.ErrNotFound)
		}

		if err := st.DeleteAccount(ctx, id); err != nil {
			return err
		}
		if err := credentials.NewDefaultChain().Delete(account.Platform.String(), account.Username); err != nil &&
			!errors.Is(err, credentials.ErrNotFound) {
			ui.PrintWarning("Could not delete stored secret", err)
		}
		if sessions, err := session.NewManager(cfg.Scraper.CookiesDir); err == nil {
			handle := account.SessionHandle
			if handle == "" {
				handle = session.HandleFor(account.Platform.String(), account.Username)
			}
			_ = sessions.Remove(handle)
		}
		ui.PrintSuccess(fmt.Sprintf("Removed account %s", account.Username))
		return nil
	})
}

func setAccountActive(arg string, active bool) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}
	return withStore(func(ctx context.Context, st store.Store) error {
		if err := st.SetAccountActive(ctx, id, active); err != nil {
			return err
		}
		state := "disabled"
		if active {
			state = "enabled"
		}
		ui.PrintSuccess(fmt.Sprintf("Account %d %s", id, state))
		return nil
	})
}

// readSecret reads a secret from stdin without echoing
func readSecret() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	// piped input
	input, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
