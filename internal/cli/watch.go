package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xela07ax/riskwatch/internal/console/client"
	"github.com/xela07ax/riskwatch/internal/console/session"
	"github.com/xela07ax/riskwatch/internal/console/tui"
	"github.com/xela07ax/riskwatch/internal/engine"
	"github.com/xela07ax/riskwatch/internal/infra"
)

func newWatchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Open the live risk dashboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return a.watch(ctx, cmd)
		},
	}
}

func (a *app) watch(ctx context.Context, cmd *cobra.Command) error {
	cfg, logger := a.cfg, a.logger

	// 1. Метрики
	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)
	if cfg.Metrics.Addr != "" {
		go serveMetrics(ctx, cfg.Metrics.Addr, reg, logger)
	}

	// 2. Сессия и клиент
	sess := session.NewStore(logger)
	opts := client.OptionsFromConfig(cfg)
	opts.OnBreaker = metrics.BreakerObserver()
	c := client.New(opts, sess, logger)

	if _, err := signIn(ctx, cfg.Auth, c, sess, logger); err != nil {
		return err
	}

	// 3. Движок
	eng := engine.New(engine.ConfigFrom(cfg.Polling), c, sess, logger, metrics)
	defer eng.Close()

	// 4. Сигналы обновления (опционально)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		go engine.ListenRefreshSignals(ctx, rdb, logger, infra.RefreshChannel(cfg.Redis.Namespace), eng.RefreshSignal)
	}

	// 5. Экран оператора
	redirect, err := tui.Run(ctx, eng, sess.Redirects(), logger)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("tui: %w", err)
	}
	if redirect != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Signed out (%s). Sign in again to continue.\n", redirect.Reason)
	}
	return nil
}

// serveMetrics отдает /metrics до отмены ctx.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint started", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics endpoint failed", zap.Error(err))
	}
}
