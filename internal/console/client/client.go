package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/riskwatch/internal/infra"
)

// TraceHeader: заголовок, по которому запрос консоли находится в логах бэкенда.
const TraceHeader = "X-Trace-ID"

// Credentials отдает текущий bearer-токен. Пустая строка: оператор не вошел.
type Credentials interface {
	Token() string
}

// StaticToken: Credentials для одноразовых команд и тестов.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

type Options struct {
	BaseURL     string
	Timeout     time.Duration
	Reliability infra.ReliabilityConfig

	// HTTPClient переопределяет транспорт (тесты, прокси)
	HTTPClient *http.Client
	OnBreaker  BreakerObserver
}

// OptionsFromConfig собирает Options из секций api и reliability.
func OptionsFromConfig(cfg *infra.Config) Options {
	return Options{
		BaseURL:     cfg.API.BaseURL,
		Timeout:     cfg.API.Timeout,
		Reliability: cfg.Reliability,
	}
}

// Client: типизированные запросы к бэкенду оценки рисков.
// Каждый метод делает один аутентифицированный запрос и возвращает данные
// или классифицированную ошибку; состояния между вызовами не хранит.
type Client struct {
	baseURL string
	http    *http.Client
	creds   Credentials
	rel     *reliability
	logger  *zap.Logger
}

func New(opts Options, creds Credentials, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if creds == nil {
		creds = StaticToken("")
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    httpClient,
		creds:   creds,
		rel:     newReliability("riskwatch-api", opts.Reliability, opts.Timeout, opts.OnBreaker),
		logger:  logger.Named("api_client"),
	}
}

type requestSpec struct {
	method string
	path   string
	body   any
	out    any

	// public: запрос без токена (вход, MFA, регистрация)
	public bool
	// fallback: текст ошибки, если бэкенд не прислал detail
	fallback string
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, requestSpec{method: http.MethodGet, path: path, out: out})
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, requestSpec{method: http.MethodPost, path: path, body: body, out: out})
}

func (c *Client) do(ctx context.Context, rs requestSpec) error {
	token := c.creds.Token()
	if !rs.public && token == "" {
		return ErrNotAuthenticated
	}

	var payload []byte
	if rs.body != nil {
		var err error
		payload, err = json.Marshal(rs.body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	traceID := uuid.NewString()
	start := time.Now()
	err := c.rel.execute(ctx, rs.method == http.MethodGet, func(ctx context.Context) error {
		return c.roundTrip(ctx, rs, token, traceID, payload)
	})

	fields := []zap.Field{
		zap.String("method", rs.method),
		zap.String("path", rs.path),
		zap.String("trace_id", traceID),
		zap.Duration("took", time.Since(start)),
	}
	if err != nil {
		c.logger.Debug("request failed", append(fields, zap.Error(err))...)
		return err
	}
	c.logger.Debug("request done", fields...)
	return nil
}

func (c *Client) roundTrip(ctx context.Context, rs requestSpec, token, traceID string, payload []byte) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, rs.method, c.baseURL+rs.path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(TraceHeader, traceID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !rs.public {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		// Отмена: решение вызывающего, ее не повторяем. Таймаут попытки повторяем.
		if errors.Is(err, context.Canceled) {
			return err
		}
		return &TransientError{Cause: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return decodeAPIError(res, rs.public, rs.fallback)
	}
	if rs.out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(rs.out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
