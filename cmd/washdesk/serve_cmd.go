package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"washdesk/internal/handler"
	"washdesk/internal/service"
	"washdesk/internal/worker"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		listen    string
		screenTTL time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve [--listen <addr>] [--screen-ttl <duration>]",
		Short: "Serve the order screens over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("listen") {
				a.cfg.Listen = listen
			}
			if cmd.Flags().Changed("screen-ttl") {
				a.cfg.ScreenTTL = screenTTL
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			sessions := a.sessions()
			client := a.client()
			screens := service.NewScreens(client)
			defer screens.CloseAll()

			srv := &http.Server{
				Addr:         a.cfg.Listen,
				Handler:      handler.NewRouter(sessions, screens, client),
				ReadTimeout:  10 * time.Second,
				WriteTimeout: a.cfg.RequestTimeout + 10*time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sweeper := worker.NewScreenSweeper(screens, a.cfg.ScreenTTL)
			go sweeper.Start(ctx)

			errCh := make(chan error, 1)
			go func() {
				slog.Info("starting server", "addr", a.cfg.Listen, "backend", a.cfg.APIURL)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
			case <-ctx.Done():
			}
			slog.Info("shutting down...")

			ctxShut, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelShut()
			if err := srv.Shutdown(ctxShut); err != nil {
				slog.Error("server shutdown failed", "error", err)
			}

			slog.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "address to serve on (WASHDESK_LISTEN)")
	cmd.Flags().DurationVar(&screenTTL, "screen-ttl", 0, "close order screens idle this long (WASHDESK_SCREEN_TTL)")
	return cmd
}
