package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tessro/tandem/internal/auth"
	"github.com/tessro/tandem/internal/wizard"
)

var loginUsername string

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage your account session",
	Long:  `Commands for signing in to and out of the hosted account service.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in",
	Long: `Sign in with your username and password. When stdin is not a terminal,
the username and password are read from its first two lines.`,
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and remove stored credentials",
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	RunE:  runAuthStatus,
}

func init() {
	authLoginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "username")
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func cognito() *auth.Cognito {
	return auth.NewCognito(cfg.Backend.AuthURL, cfg.Backend.UserPoolClientID)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	if cfg.Backend.AuthURL == "" || cfg.Backend.UserPoolClientID == "" {
		return fmt.Errorf("backend.auth_url and backend.user_pool_client_id must be set")
	}

	var (
		creds wizard.Credentials
		err   error
	)
	if wizard.IsTerminal() {
		creds, err = wizard.PromptCredentials(loginUsername)
	} else {
		creds, err = wizard.ReadCredentials(os.Stdin, loginUsername)
	}
	if errors.Is(err, wizard.ErrCancelled) {
		return nil
	}
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Sync.RequestTimeout.Duration)
	defer cancel()

	token, err := cognito().SignIn(ctx, creds.Username, creds.Password)
	if err != nil {
		var cerr *auth.CognitoError
		if errors.As(err, &cerr) && cerr.IsNotAuthorized() {
			return fmt.Errorf("sign-in failed: incorrect username or password")
		}
		return fmt.Errorf("sign-in failed: %w", err)
	}

	_, storage, err := newTokenSource()
	if err != nil {
		return err
	}
	if err := storage.Save(token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	if jsonOut {
		return printJSON(os.Stdout, map[string]interface{}{
			"status":   "authenticated",
			"username": token.Username,
			"subject":  token.Subject(),
		})
	}
	fmt.Printf("Signed in as %s\n", token.Username)
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	storage, err := auth.NewTokenStorage("")
	if err != nil {
		return fmt.Errorf("failed to initialize token storage: %w", err)
	}

	token, err := storage.Load()
	if err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}
	if token == nil {
		if jsonOut {
			return printJSON(os.Stdout, map[string]string{"status": "not_authenticated"})
		}
		fmt.Println("Not signed in.")
		return nil
	}

	if !token.IsExpired() && cfg.Backend.AuthURL != "" {
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Sync.RequestTimeout.Duration)
		if err := cognito().SignOut(ctx, token.AccessToken); err != nil {
			logger.Warn().Err(err).Msg("failed to revoke session")
		}
		cancel()
	}

	if err := storage.Delete(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}

	if jsonOut {
		return printJSON(os.Stdout, map[string]string{"status": "logged_out"})
	}
	fmt.Println("Signed out.")
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	storage, err := auth.NewTokenStorage("")
	if err != nil {
		return fmt.Errorf("failed to initialize token storage: %w", err)
	}

	token, err := storage.Load()
	if err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}

	if token == nil {
		if jsonOut {
			return printJSON(os.Stdout, map[string]interface{}{"authenticated": false})
		}
		fmt.Println("Not signed in.")
		fmt.Println("Run 'tandem auth login' to sign in.")
		return nil
	}

	if jsonOut {
		return printJSON(os.Stdout, map[string]interface{}{
			"authenticated": true,
			"username":      token.Username,
			"subject":       token.Subject(),
			"expired":       token.IsExpired(),
			"expires_at":    token.ExpiresAt,
		})
	}

	fmt.Printf("Signed in as: %s\n", token.Username)
	if sub := token.Subject(); sub != "" {
		fmt.Printf("User id: %s\n", sub)
	}
	if token.IsExpired() {
		fmt.Printf("Session token expired %s; it refreshes on next use.\n", humanize.Time(token.ExpiresAt))
	} else {
		fmt.Printf("Session token expires: %s (%s)\n", token.ExpiresAt.Local().Format(time.RFC3339), humanize.Time(token.ExpiresAt))
	}
	fmt.Printf("Stored at: %s\n", storage.Path())
	return nil
}
