package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tistis/secure-booking/internal/app"
	"github.com/tistis/secure-booking/internal/auth"
	"github.com/tistis/secure-booking/internal/config"
	"github.com/tistis/secure-booking/internal/db"
	"github.com/tistis/secure-booking/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "secure-booking: %v\n", err)
		os.Exit(1)
	}
}

// cliState is populated by the root command before any subcommand runs.
type cliState struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCommand() *cobra.Command {
	rt := &cliState{}
	cmd := &cobra.Command{
		Use:           "secure-booking",
		Short:         "Holds, confirmations and no-show protection for bookings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger, err := newLogger(cfg.IsProduction)
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}
			rt.cfg = cfg
			rt.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt.logger != nil {
				_ = rt.logger.Sync()
			}
		},
	}
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newServeCommand(rt),
		newSweepCommand(rt),
		newMigrateCommand(rt),
		newTokenCommand(rt),
	)
	return cmd
}

func newLogger(isProduction bool) (*zap.Logger, error) {
	if isProduction {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func connect(ctx context.Context, rt *cliState) (*pgxpool.Pool, error) {
	if err := rt.cfg.Validate(); err != nil {
		return nil, err
	}
	pool, err := db.NewPool(ctx, rt.cfg.DBDSN, rt.cfg.DBMaxConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	return pool, nil
}

func newContainer(rt *cliState, pool *pgxpool.Pool) (*app.Container, error) {
	return app.NewContainer(app.Config{
		IsProduction:    rt.cfg.IsProduction,
		ProdOrigins:     rt.cfg.ProdOrigins,
		DBPool:          pool,
		JWTSecret:       rt.cfg.JWTSecret,
		JWTTTL:          rt.cfg.JWTAccessTokenTTL,
		FingerprintKey:  rt.cfg.FingerprintKey,
		HoldLockTimeout: rt.cfg.HoldLockTimeout,
		SweepInterval:   rt.cfg.SweepInterval,
		SweepBatchSize:  rt.cfg.SweepBatchSize,
		ScoreDecayAge:   rt.cfg.ScoreDecayAge,
		Logger:          rt.logger,
	})
}

func newServeCommand(rt *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the in-process sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()
			return serve(ctx, rt)
		},
	}
}

func serve(ctx context.Context, rt *cliState) error {
	logger := rt.logger

	pool, err := connect(ctx, rt)
	if err != nil {
		return err
	}
	defer pool.Close()

	container, err := newContainer(rt, pool)
	if err != nil {
		return err
	}

	// Use http.Server for graceful shutdown
	server := &http.Server{
		Addr:              rt.cfg.HTTPAddr,
		Handler:           container.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	var wg sync.WaitGroup
	if rt.cfg.SweepInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			container.Sweeper.Run(sweepCtx)
		}()
	} else {
		logger.Info("in-process sweeper disabled")
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server running", zap.String("addr", rt.cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			cancelSweep()
			wg.Wait()
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}
	cancelSweep()
	wg.Wait()

	logger.Info("server exited gracefully")
	return nil
}

func newSweepCommand(rt *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one expiry and decay pass, for cron",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			pool, err := connect(ctx, rt)
			if err != nil {
				return err
			}
			defer pool.Close()

			container, err := newContainer(rt, pool)
			if err != nil {
				return err
			}
			res, err := container.Sweeper.RunOnce(ctx)
			rt.logger.Info("sweep finished",
				zap.Int("confirmations_expired", res.ConfirmationsExpired),
				zap.Int("holds_expired", res.HoldsExpired),
				zap.Int("scores_decayed", res.ScoresDecayed),
			)
			return err
		},
	}
}

func newMigrateCommand(rt *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			if rt.cfg.DBDSN == "" {
				return errors.New("DB_DSN is required")
			}
			pool, err := db.NewPool(ctx, rt.cfg.DBDSN, 2)
			if err != nil {
				return fmt.Errorf("failed to connect to db: %w", err)
			}
			defer pool.Close()

			applied, err := migrations.Apply(ctx, pool)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				rt.logger.Info("database is up to date")
			}
			for _, name := range applied {
				rt.logger.Info("migration applied", zap.String("name", name))
			}
			return nil
		},
	}
}

// newTokenCommand mints a token for local testing; production tokens come from the identity provider.
func newTokenCommand(rt *cliState) *cobra.Command {
	var userID, tenantID, role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is required")
			}
			if tenantID == "" {
				return errors.New("--tenant is required")
			}
			m := auth.NewJWTManager(rt.cfg.JWTSecret, rt.cfg.JWTAccessTokenTTL)
			token, err := m.GenerateAccessToken(userID, tenantID, auth.Role(role))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "dev", "subject claim")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id claim")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleStaff), "staff, admin or system")
	return cmd
}
