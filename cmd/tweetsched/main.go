package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"tweetsched/internal/api"
	"tweetsched/internal/app"
	"tweetsched/internal/cmdlog"
	"tweetsched/internal/config"
	"tweetsched/internal/logging"
	"tweetsched/internal/metrics"
	"tweetsched/internal/router"
	"tweetsched/internal/theme"
)

var (
	cfgPath string
	timeout time.Duration
	verbose bool

	cfg        config.Config
	metricsSrv *http.Server
)

var errNotSignedIn = errors.New("not signed in: run `tweetsched login` first")

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "tweetsched",
	Short: "Schedule, watch and tune tweets against a tweetsched backend",
	Long: `tweetsched is the terminal client for the tweet scheduler backend.

It keeps a signed in session in local storage, creates and reschedules
tweets, follows live changes over the realtime channel and renders the
analytics dashboard.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
		if metricsSrv != nil {
			_ = metricsSrv.Close()
			metricsSrv = nil
		}
	},
}

func setup(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotenv(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	c, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	cfg = c
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	if err := logging.Init(level, cfg.Logging.Development); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	metricsSrv = metrics.StartServer(cfg.Metrics.Addr)
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./tweetsched.yaml", "Config file path")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Timeout for one-shot commands")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(initCmd)
	registerAuthCommands()
	registerTweetCommands()
	registerInsightCommands()
	registerMockCommand()
}

var initPath string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdlog.Run("init", func() error {
			if err := config.Save(initPath, config.Default()); err != nil {
				return err
			}
			abs, _ := filepath.Abs(initPath)
			fmt.Fprint(cmd.OutOrStdout(), theme.Banner(theme.Default))
			fmt.Fprintln(cmd.OutOrStdout(), "Config written to:", abs)
			return nil
		})
	},
}

func init() {
	initCmd.Flags().StringVar(&initPath, "path", "./tweetsched.yaml", "Path to write config")
}

// appRun is the body of a command that needs a client instance.
type appRun func(ctx context.Context, cmd *cobra.Command, args []string, a *app.App) error

// withApp builds the client, applies the route guard and runs fn under a
// timeout. An empty route skips the guard.
func withApp(name, route string, fn appRun) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		return runApp(ctx, name, route, cmd, args, fn)
	}
}

// withAppLong is withApp without the timeout, for commands that run until
// interrupted.
func withAppLong(name, route string, fn appRun) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return runApp(cmd.Context(), name, route, cmd, args, fn)
	}
}

func runApp(ctx context.Context, name, route string, cmd *cobra.Command, args []string, fn appRun) error {
	return cmdlog.Run(name, func() error {
		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		if route != "" {
			d, err := a.Guard(route, "")
			if err != nil {
				return err
			}
			if d.Redirect && d.Path == router.Login {
				return errNotSignedIn
			}
		}
		return fn(ctx, cmd, args, a)
	})
}

func palette(a *app.App) theme.Palette { return theme.For(a.UI.Mode()) }

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", api.Message(err, err.Error()))
		os.Exit(1)
	}
}
