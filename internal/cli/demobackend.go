package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xela07ax/riskwatch/internal/audit"
	"github.com/xela07ax/riskwatch/internal/demobackend"
	"github.com/xela07ax/riskwatch/internal/infra"
	"github.com/xela07ax/riskwatch/internal/infra/auth"
	"github.com/xela07ax/riskwatch/internal/repository/postgres"
)

// NewDemoBackendRoot собирает команду cmd/demobackend, эталонный бэкенд для демо и e2e.
func NewDemoBackendRoot() *cobra.Command {
	a := &app{v: viper.New()}

	cmd := &cobra.Command{
		Use:           "demobackend",
		Short:         "Run the in-memory reference risk backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			return a.serverLogger(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return a.serveDemo(ctx)
		},
	}

	f := cmd.Flags()
	f.StringVar(&a.cfgPath, "config", "", "path to config file")
	f.Int("port", 0, "listen port")
	f.String("database-url", "", "Postgres URL for the durable audit trail")
	f.String("redis", "", "Redis address for refresh signals")
	f.String("log-level", "", "debug, info, warn or error")
	f.String("log-file", "", "log output: stdout, stderr or a file path")
	return cmd
}

// serverLogger: сервер пишет в stderr, если вывод лога не задан явно
// (файл по умолчанию нужен консоли, экран которой занят TUI).
func (a *app) serverLogger(cmd *cobra.Command) error {
	if cmd.Flags().Changed("log-file") || a.v.InConfig("logger.output") ||
		os.Getenv(infra.EnvPrefix+"_LOGGER_OUTPUT") != "" {
		return nil
	}
	lc := a.cfg.Logger
	lc.Output = "stderr"
	logger, err := infra.NewLogger(lc)
	if err != nil {
		return err
	}
	a.cfg.Logger, a.logger = lc, logger
	return nil
}

func (a *app) serveDemo(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger.Named("demobackend")

	// 1. Ключ подписи токенов
	key, generated, err := auth.LoadOrGenerate(cfg.Demo.PrivateKey)
	if err != nil {
		return fmt.Errorf("signing key: %w", err)
	}
	if generated {
		logger.Warn("no signing key configured, generated an ephemeral RSA key; tokens die with the process")
	}

	// 2. Демо-данные
	store := demobackend.NewStore(nil)
	if err := store.Seed(demobackend.SeedOptions{
		AdminPassword: cfg.Demo.AdminPassword,
		BcryptCost:    cfg.Demo.BcryptCost,
	}); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	// 3. Журнал аудита: Postgres, если задан, иначе лог
	var sink audit.Sink = audit.LogSink{Logger: logger}
	if cfg.Database.URL != "" {
		repo, err := postgres.NewAuditRepo(cfg.Database.URL)
		if err != nil {
			return err
		}
		defer repo.Close()
		initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = repo.Init(initCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("database unreachable: %w", err)
		}
		sink = repo
	}
	trail := audit.NewTrail(sink, audit.Options{}, logger)
	trail.Start()
	defer trail.Stop()

	// 4. Сигналы обновления консолям
	var pub demobackend.Publisher
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		pub = demobackend.NewRedisPublisher(rdb, cfg.Redis.Namespace, logger)
	}

	svc := demobackend.NewService(demobackend.Deps{
		Store:      store,
		Signer:     auth.NewSigner(key, cfg.Demo.TokenTTL),
		Audit:      trail,
		Publisher:  pub,
		Logger:     logger,
		BcryptCost: cfg.Demo.BcryptCost,
	})

	// 5. HTTP и Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      demobackend.NewServer(svc, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("demo backend started", zap.String("addr", srv.Addr), zap.Bool("postgres_audit", cfg.Database.URL != ""))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down demo backend")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
