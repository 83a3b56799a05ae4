package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix: префикс переменных окружения, RISKWATCH_API_BASE_URL перекроет api.base_url.
const EnvPrefix = "RISKWATCH"

// Config: корневая структура конфигурации консоли и демо-бэкенда.
type Config struct {
	API         APIConfig         `mapstructure:"api"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Polling     PollingConfig     `mapstructure:"polling"`
	Reliability ReliabilityConfig `mapstructure:"reliability"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logger      LoggerConfig      `mapstructure:"logger"`

	// Секции ниже читает только демо-бэкенд (cmd/demobackend)
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Demo     DemoConfig     `mapstructure:"demo"`
}

// APIConfig описывает подключение к бэкенду оценки рисков.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AuthConfig: учетные данные оператора. Token имеет приоритет над email/password.
type AuthConfig struct {
	Token    string `mapstructure:"token"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
	OTP      string `mapstructure:"otp"`
}

// PollingConfig задает темп опроса источников.
type PollingConfig struct {
	MetricsInterval time.Duration `mapstructure:"metrics_interval"`
	DetailInterval  time.Duration `mapstructure:"detail_interval"`
	ClockInterval   time.Duration `mapstructure:"clock_interval"`
}

// ReliabilityConfig: ретраи, Circuit Breaker и лимитер исходящих запросов.
type ReliabilityConfig struct {
	RetryAttempts uint          `mapstructure:"retry_attempts"`
	RateLimit     float64       `mapstructure:"rate_limit"`
	RateBurst     int           `mapstructure:"rate_burst"`
	CBMaxRequests uint32        `mapstructure:"cb_max_requests"`
	CBInterval    time.Duration `mapstructure:"cb_interval"`
	CBTimeout     time.Duration `mapstructure:"cb_timeout"`
	CBFailures    uint32        `mapstructure:"cb_failures"`
}

// RedisConfig описывает подключение к Redis (Pub/Sub сигналов обновления).
// Пустой Addr отключает подписку.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	Namespace string `mapstructure:"namespace"`
}

// MetricsConfig: адрес эндпоинта /metrics. Пустой адрес отключает экспорт.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr или путь к файлу
}

// ServerConfig описывает настройки HTTP-сервера демо-бэкенда.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig: опциональный Postgres для журнала аудита демо-бэкенда.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// DemoConfig: ключи подписи токенов и параметры демо-данных.
type DemoConfig struct {
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	BcryptCost     int           `mapstructure:"bcrypt_cost"`
	AdminPassword  string        `mapstructure:"admin_password"`
	PrivateKey     []byte
}

// Addr собирает адрес для net.Listen.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
// Пустой path включает поиск config.yaml в "." и "./configs".
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	return LoadConfigFrom(v, path)
}

// LoadConfigFrom читает конфиг через переданный viper (к нему уже могут быть привязаны флаги CLI).
func LoadConfigFrom(v *viper.Viper, path string) (*Config, error) {
	// 1. Настройка поиска файла
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	// 2. Переменные окружения
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 3. Дефолты
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) && !(path == "" && os.IsNotExist(err)) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет: работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	cfg.Demo.PrivateKey = loadKeyResource(cfg.Demo.PrivateKeyPath, EnvPrefix+"_DEMO_PRIVATE_KEY_DATA")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate отсекает значения, с которыми движок опроса не сможет работать.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("config: api.base_url is required")
	}
	if c.Polling.MetricsInterval <= 0 || c.Polling.DetailInterval <= 0 || c.Polling.ClockInterval <= 0 {
		return errors.New("config: polling intervals must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8080")
	v.SetDefault("api.timeout", 10*time.Second)

	v.SetDefault("polling.metrics_interval", 5*time.Second)
	v.SetDefault("polling.detail_interval", 3*time.Second)
	v.SetDefault("polling.clock_interval", 1*time.Second)

	v.SetDefault("reliability.retry_attempts", 2)
	v.SetDefault("reliability.rate_limit", 20.0)
	v.SetDefault("reliability.rate_burst", 10)
	v.SetDefault("reliability.cb_max_requests", 3)
	v.SetDefault("reliability.cb_interval", 10*time.Second)
	v.SetDefault("reliability.cb_timeout", 15*time.Second)
	v.SetDefault("reliability.cb_failures", 5)

	v.SetDefault("redis.namespace", RedisNamespace)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "riskwatch.log")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("demo.token_ttl", 24*time.Hour)
	v.SetDefault("demo.bcrypt_cost", 10)
	v.SetDefault("demo.admin_password", "admin123")
}

// loadKeyResource: PEM из ENV (Docker/K8s) или из файла по пути из конфига
func loadKeyResource(path string, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
