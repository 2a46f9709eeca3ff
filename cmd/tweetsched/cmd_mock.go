package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tweetsched/internal/cmdlog"
	"tweetsched/internal/logging"
	"tweetsched/internal/mockbackend"
)

var (
	mockAddr    string
	mockSecret  string
	mockOrigins []string
)

var mockBackendCmd = &cobra.Command{
	Use:   "mock-backend",
	Short: "Run an in-memory backend for local development",
	Long: `Run an in-memory implementation of the scheduler backend.

Accounts and tweets live in memory and are lost on exit. The realtime
channel is served at /ws on the same address.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdlog.Run("mock_backend", func() error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var opts []mockbackend.Option
			if len(mockOrigins) > 0 {
				opts = append(opts, mockbackend.WithAllowedOrigins(mockOrigins...))
			}
			backend := mockbackend.New(mockSecret, opts...)
			srv := &http.Server{Addr: mockAddr, Handler: backend.Handler(), ReadHeaderTimeout: 5 * time.Second}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			logging.Info("mock_backend_listening", map[string]any{"addr": mockAddr})
			fmt.Fprintln(cmd.OutOrStdout(), "mock backend listening on", mockAddr)

			select {
			case err := <-errCh:
				backend.Close()
				return err
			case <-ctx.Done():
			}
			backend.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	},
}

func registerMockCommand() {
	mockBackendCmd.Flags().StringVar(&mockAddr, "addr", ":5000", "Listen address")
	mockBackendCmd.Flags().StringVar(&mockSecret, "secret", "dev-secret", "Token signing secret")
	mockBackendCmd.Flags().StringSliceVar(&mockOrigins, "allow-origin", nil, "Browser origins allowed by CORS")
	rootCmd.AddCommand(mockBackendCmd)
}
