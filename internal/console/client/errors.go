package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultErrorMessage: текст для оператора, когда бэкенд не прислал detail.
const DefaultErrorMessage = "API request failed"

var (
	// ErrSessionExpired: бэкенд ответил 401. Сессию нужно сбросить и вернуть оператора на вход.
	ErrSessionExpired = errors.New("session expired")
	// ErrNotAuthenticated: токена нет, запрос даже не отправлялся.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// APIError: любой не-2xx ответ бэкенда.
type APIError struct {
	Status  int
	Message string

	// 401 на входе по паролю: это неверные учетные данные, а не истекшая сессия
	public bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Unwrap позволяет errors.Is(err, ErrSessionExpired) для 401.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized && !e.public {
		return ErrSessionExpired
	}
	return nil
}

// TransientError: сбой, который имеет смысл повторить (сеть, 429, 5xx).
// RetryAfter заполняется из заголовка Retry-After, если бэкенд его прислал.
type TransientError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *TransientError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("transient: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
	}
	return fmt.Sprintf("transient: %v", e.Cause)
}

func (e *TransientError) Unwrap() error { return e.Cause }

// IsSessionExpired сообщает, требует ли ошибка повторной аутентификации.
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}

// IsTransient: ошибка транспорта или временная ошибка сервера.
func IsTransient(err error) bool {
	var tErr *TransientError
	return errors.As(err, &tErr)
}

// Message возвращает человекочитаемый текст ошибки для уведомления.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if IsSessionExpired(err) {
		return "Session expired. Please sign in again."
	}
	if errors.Is(err, ErrNotAuthenticated) {
		return "Not authenticated"
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return DefaultErrorMessage
}

// decodeAPIError строит ошибку из тела ответа. Бэкенд кладет текст в "detail",
// но встречаются и "error"/"message"; detail-массив (ошибки валидации) не читаем.
func decodeAPIError(res *http.Response, public bool, fallback string) error {
	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Error   string          `json:"error"`
		Message string          `json:"message"`
	}
	_ = json.NewDecoder(res.Body).Decode(&body)

	msg := ""
	var detail string
	if len(body.Detail) > 0 && json.Unmarshal(body.Detail, &detail) == nil {
		msg = detail
	}
	if strings.TrimSpace(msg) == "" {
		msg = body.Error
	}
	if strings.TrimSpace(msg) == "" {
		msg = body.Message
	}
	if strings.TrimSpace(msg) == "" {
		msg = fallback
	}
	if strings.TrimSpace(msg) == "" {
		msg = DefaultErrorMessage
	}

	apiErr := &APIError{Status: res.StatusCode, Message: msg, public: public}
	if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError {
		return &TransientError{RetryAfter: parseRetryAfter(res.Header.Get("Retry-After")), Cause: apiErr}
	}
	return apiErr
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
