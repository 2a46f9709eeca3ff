package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tweetsched/internal/api"
	"tweetsched/internal/app"
	"tweetsched/internal/router"
)

var (
	authEmail    string
	authPassword string
	authName     string
	oauthReturn  string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with email and password",
	RunE: withApp("login", "", func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		if signedIn(cmd, a) {
			return nil
		}
		sess, err := a.Login(ctx, api.LoginRequest{Email: authEmail, Password: authPassword})
		if err != nil {
			return err
		}
		p := palette(a)
		fmt.Fprintln(cmd.OutOrStdout(), "Signed in as", p.Accent.Render(sess.User.DisplayName()))
		return nil
	}),
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	RunE: withApp("register", "", func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		if d, _ := a.Guard(router.Register, ""); d.Redirect {
			fmt.Fprintln(cmd.OutOrStdout(), "Already signed in; run `tweetsched logout` to create another account")
			return nil
		}
		sess, err := a.Register(ctx, api.RegisterRequest{Email: authEmail, Password: authPassword, Name: authName})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Welcome,", palette(a).Accent.Render(sess.User.DisplayName()))
		return nil
	}),
}

var loginURLCmd = &cobra.Command{
	Use:   "login-url",
	Short: "Print the Google sign-in URL",
	Long: `Print the URL that starts Google sign-in in a browser.

The backend redirects to --redirect with the session in the URL fragment.
Paste that final URL into "tweetsched oauth-callback" to finish.`,
	RunE: withApp("login_url", "", func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		u, err := a.API.GoogleAuthURL(oauthReturn)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), u)
		return nil
	}),
}

var oauthCallbackCmd = &cobra.Command{
	Use:   "oauth-callback <redirect-url>",
	Short: "Finish Google sign-in from the redirect URL",
	Args:  cobra.ExactArgs(1),
	RunE: withApp("oauth_callback", router.Callback, func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		sess, err := a.CompleteOAuth(ctx, args[0])
		if err != nil {
			return fmt.Errorf("sign-in failed, run `tweetsched login`: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed in as", palette(a).Accent.Render(sess.User.DisplayName()))
		return nil
	}),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE: withApp("logout", "", func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		if err := a.Auth.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
		return nil
	}),
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed in user",
	RunE: withApp("whoami", router.Dashboard, func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error {
		sess, _ := a.Auth.Session()
		p := palette(a)
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, p.Accent.Render(sess.User.DisplayName()), p.Muted.Render("<"+sess.User.Email+">"))
		fmt.Fprintln(w, p.Muted.Render("id:"), sess.User.ID)
		if sess.User.TimeZone != "" {
			fmt.Fprintln(w, p.Muted.Render("time zone:"), sess.User.TimeZone)
		}
		return nil
	}),
}

// signedIn reports an existing session the way the login view redirects.
func signedIn(cmd *cobra.Command, a *app.App) bool {
	d, err := a.Guard(router.Login, "")
	if err != nil || !d.Redirect {
		return false
	}
	sess, _ := a.Auth.Session()
	fmt.Fprintln(cmd.OutOrStdout(), "Already signed in as", sess.User.DisplayName())
	return true
}

func registerAuthCommands() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVar(&authEmail, "email", "", "Account email (required)")
		c.Flags().StringVar(&authPassword, "password", "", "Account password (required)")
		c.MarkFlagRequired("email")
		c.MarkFlagRequired("password")
	}
	registerCmd.Flags().StringVar(&authName, "name", "", "Display name (required)")
	registerCmd.MarkFlagRequired("name")
	loginURLCmd.Flags().StringVar(&oauthReturn, "redirect", "http://localhost:5173/oauth/callback", "Where the backend sends the browser afterwards")

	rootCmd.AddCommand(loginCmd, registerCmd, loginURLCmd, oauthCallbackCmd, logoutCmd, whoamiCmd)
}
