package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"washdesk/internal/config"
	"washdesk/internal/service"
	"washdesk/internal/storage"
)

// app carries what every command needs once the configuration is loaded.
type app struct {
	cfg *config.Config
	kv  storage.KV
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var (
		envFile string
		flags   config.Config
	)

	cmd := &cobra.Command{
		Use:           "washdesk",
		Short:         "Assign car-wash services to employees on open orders",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(envFile, ".env.local")
			if err != nil {
				return err
			}
			fs := cmd.Flags()
			if fs.Changed("api-url") {
				cfg.APIURL = flags.APIURL
			}
			if fs.Changed("store") {
				cfg.Store = flags.Store
			}
			if fs.Changed("timeout") {
				cfg.RequestTimeout = flags.RequestTimeout
			}
			if fs.Changed("log-level") {
				cfg.LogLevel = flags.LogLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			level, _ := cfg.Level()
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

			kv, err := storage.Open(cmd.Context(), cfg.Store)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			a.cfg, a.kv = cfg, kv
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.kv == nil {
				return nil
			}
			return a.kv.Close()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file read before the environment")
	pf.StringVar(&flags.APIURL, "api-url", "", "backend base URL (WASHDESK_API_URL)")
	pf.StringVar(&flags.Store, "store", "", "session store: memory, sqlite://, postgres://, redis:// (WASHDESK_STORE)")
	pf.DurationVar(&flags.RequestTimeout, "timeout", 0, "backend request timeout (WASHDESK_REQUEST_TIMEOUT)")
	pf.StringVar(&flags.LogLevel, "log-level", "", "debug, info, warn or error (WASHDESK_LOG_LEVEL)")

	cmd.AddCommand(newLoginCmd(a))
	cmd.AddCommand(newLogoutCmd(a))
	cmd.AddCommand(newServicesCmd(a))
	cmd.AddCommand(newUsersCmd(a))
	cmd.AddCommand(newAssignmentsCmd(a))
	cmd.AddCommand(newAssignCmd(a))
	cmd.AddCommand(newUnassignCmd(a))
	cmd.AddCommand(newDetailCmd(a))
	cmd.AddCommand(newServeCmd(a))
	return cmd
}

func (a *app) sessions() *service.SessionService {
	return service.NewSessionService(a.kv)
}

func (a *app) client() *service.BackendClient {
	return service.NewBackendClient(a.cfg.APIURL, a.cfg.RequestTimeout, a.sessions())
}

// screen opens a one-shot reconciler for orderID.
func (a *app) screen(ctx context.Context, orderID int64) (*service.Reconciler, error) {
	rec := service.NewReconciler(a.client(), orderID)
	if err := rec.Load(ctx); err != nil {
		rec.Close()
		return nil, err
	}
	return rec, nil
}

func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		report(os.Stderr, err)
		os.Exit(1)
	}
}

// report prints the notification for operation errors and the raw error for
// everything else.
func report(w io.Writer, err error) {
	var se *service.StatusError
	for _, known := range []error{
		service.ErrNotFound, service.ErrUnauthorized, service.ErrUnavailable, service.ErrBadPayload,
		service.ErrNoToken, service.ErrTokenExpired, service.ErrInvalidRate, service.ErrInvalidPrice,
		service.ErrUnknownService, service.ErrUnknownUser, service.ErrSubmissionInFlight,
	} {
		if errors.Is(err, known) {
			fmt.Fprintln(w, service.UserMessage(err))
			slog.Debug("command failed", "error", err)
			return
		}
	}
	if errors.As(err, &se) {
		fmt.Fprintln(w, service.UserMessage(err))
	}
	fmt.Fprintln(w, "Error:", err)
}
