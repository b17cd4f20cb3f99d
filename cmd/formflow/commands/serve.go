package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handler "formflow-backend/api"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

// NewServeCommand starts the HTTP API and, when configured, the invite sweeper
func NewServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Args:  cobra.NoArgs,
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			if addr == "" {
				addr = ":" + rt.cfg.Port
			}
			srv := &http.Server{
				Addr:              addr,
				Handler:           handler.NewRouter(rt.cfg, rt.db, rt.log),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			if rt.cfg.InviteSweepInterval > 0 {
				ledger := handler.NewLedger(rt.cfg, rt.db, rt.log)
				go ledger.RunSweeper(ctx, rt.cfg.InviteSweepInterval)
				rt.log.WithField("interval", rt.cfg.InviteSweepInterval.String()).Info("invite sweeper started")
			}

			errCh := make(chan error, 1)
			go func() {
				rt.log.WithFields(logrus.Fields{
					"addr":        addr,
					"environment": rt.cfg.Environment,
					"store":       rt.cfg.StoreBackend,
				}).Info("server listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			rt.log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to :$PORT)")
	return cmd
}
