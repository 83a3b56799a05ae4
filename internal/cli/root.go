package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xela07ax/riskwatch/internal/infra"
)

const version = "0.3.0"

// app: конфиг и логгер, общие для всех подкоманд. Заполняется в PersistentPreRunE.
type app struct {
	v       *viper.Viper
	cfgPath string
	cfg     *infra.Config
	logger  *zap.Logger
}

// flagBindings: флаги CLI, перекрывающие ключи конфига.
var flagBindings = map[string]string{
	"api-url":   "api.base_url",
	"token":     "auth.token",
	"email":     "auth.email",
	"password":  "auth.password",
	"otp":       "auth.otp",
	"redis":     "redis.addr",
	"metrics":   "metrics.addr",
	"log-level": "logger.level",
	"log-file":  "logger.output",

	// только demobackend
	"port":         "server.port",
	"database-url": "database.url",
}

func NewRoot() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "riskwatch",
		Short:         "Riskwatch is a live security-operations console for the risk backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "path to config file (default: ./config.yaml or ./configs/config.yaml)")
	pf.String("api-url", "", "risk backend base URL")
	pf.String("token", "", "bearer token; skips sign-in")
	pf.String("email", "", "operator email")
	pf.String("password", "", "operator password")
	pf.String("otp", "", "MFA verification code")
	pf.String("redis", "", "Redis address for refresh signals")
	pf.String("metrics", "", "address for the Prometheus /metrics endpoint")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.String("log-file", "", "log output: stdout, stderr or a file path")

	root.AddCommand(newWatchCommand(a))
	root.AddCommand(newLoginCommand(a))
	root.AddCommand(newActionCommand(a))
	root.AddCommand(newSimulateCommand(a))
	root.AddCommand(newVersionCommand())

	return root
}

// load привязывает флаги к viper и читает конфиг: флаг > ENV > файл > дефолт.
func (a *app) load(cmd *cobra.Command) error {
	for flag, key := range flagBindings {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := a.v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind flag %s: %w", flag, err)
			}
		}
	}

	cfg, err := infra.LoadConfigFrom(a.v, a.cfgPath)
	if err != nil {
		return err
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

// Execute: точка входа cmd/riskwatch.
func Execute(ctx context.Context) error {
	return NewRoot().ExecuteContext(ctx)
}
