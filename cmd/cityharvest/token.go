package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"cityharvest/pkg/auth"
	"cityharvest/pkg/ui"
)

var tokenAppID string

// tokenCmd represents the token command
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage Graph API access tokens",
	Long: `Manage stored Graph API access tokens.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - CITYHARVEST_ACCESS_TOKEN environment variable (read only)

Select a stored token with the global --profile flag.`,
}

// tokenSetCmd represents the token set command
var tokenSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store an access token securely",
	Example: `  # Store the default token
  cityharvest token set

  # Store a token for a second app
  cityharvest token set --profile staging --app-id 123456`,
	Args: cobra.NoArgs,
	RunE: runTokenSet,
}

// tokenShowCmd represents the token show command
var tokenShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List stored tokens with masked values",
	Args:  cobra.NoArgs,
	RunE:  runTokenShow,
}

// tokenDeleteCmd represents the token delete command
var tokenDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove a stored token",
	Args:  cobra.NoArgs,
	RunE:  runTokenDelete,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenSetCmd, tokenShowCmd, tokenDeleteCmd)

	tokenSetCmd.Flags().StringVar(&tokenAppID, "app-id", "", "Graph app the token belongs to")
}

func profileName() string {
	if profile == "" {
		return auth.DefaultProfile
	}
	return profile
}

func runTokenSet(cmd *cobra.Command, _ []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize token store: %w", err)
	}

	auth.ShowTokenGuide(cmd.OutOrStdout())
	fmt.Fprint(cmd.OutOrStdout(), "Access token (hidden): ")
	accessToken, err := readPassword()
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	if accessToken == "" {
		return errors.New("access token is required")
	}

	token := &auth.Token{
		Profile:      profileName(),
		AccessToken:  accessToken,
		AppID:        tokenAppID,
		LastModified: time.Now(),
	}
	if err := manager.Store(token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	ui.PrintSuccess(fmt.Sprintf("Token saved for profile %q", token.Profile))
	return nil
}

func runTokenShow(cmd *cobra.Command, _ []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize token store: %w", err)
	}

	tokens, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list tokens: %w", err)
	}
	if len(tokens) == 0 {
		ui.PrintWarning("No tokens stored", "run 'cityharvest token set'")
		return nil
	}

	out := cmd.OutOrStdout()
	for _, t := range tokens {
		s := auth.SanitizeToken(t)
		fmt.Fprintf(out, "%-12s %s", s.Profile, s.AccessToken)
		if s.AppID != "" {
			fmt.Fprintf(out, "  app %s", s.AppID)
		}
		if !s.LastModified.IsZero() {
			fmt.Fprintf(out, "  updated %s", s.LastModified.Format(time.RFC3339))
		}
		fmt.Fprintln(out)
	}
	return nil
}

func runTokenDelete(_ *cobra.Command, _ []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize token store: %w", err)
	}

	name := profileName()
	if err := manager.Delete(name); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	ui.PrintSuccess(fmt.Sprintf("Token removed for profile %q", name))
	return nil
}

// readPassword reads a secret from stdin without echoing
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
