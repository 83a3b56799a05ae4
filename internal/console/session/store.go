package session

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/xela07ax/riskwatch/internal/domain"
)

// SignIn: экран, на который отправляется оператор после сброса сессии.
const SignIn = "sign-in"

// RedirectIntent: намерение увести оператора на другой экран.
type RedirectIntent struct {
	To     string
	Reason string
}

// Store: учетные данные оператора на время жизни процесса.
// Init вызывается после входа, Clear при выходе или 401.
// Проекция данных к Store не обращается: токен попадает в клиент явно.
type Store struct {
	mu    sync.RWMutex
	token string
	role  string

	redirects chan RedirectIntent
	logger    *zap.Logger
}

func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		redirects: make(chan RedirectIntent, 1),
		logger:    logger.Named("session"),
	}
}

func (s *Store) Init(token, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.role = role
	s.logger.Info("session initialized", zap.String("role", role))
}

// Token реализует client.Credentials.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Store) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

func (s *Store) IsAdmin() bool {
	return s.Role() == domain.RoleAdmin
}

// Clear забывает токен и публикует RedirectIntent на вход.
// Повторный Clear без нового Init ничего не публикует.
func (s *Store) Clear(reason string) {
	s.mu.Lock()
	had := s.token != ""
	s.token = ""
	s.role = ""
	s.mu.Unlock()

	if !had {
		return
	}
	s.logger.Warn("session cleared", zap.String("reason", reason))

	select {
	case s.redirects <- RedirectIntent{To: SignIn, Reason: reason}:
	default:
		// Предыдущий редирект еще не прочитан, второй не нужен
	}
}

// Redirects: канал намерений перейти на другой экран.
func (s *Store) Redirects() <-chan RedirectIntent {
	return s.redirects
}

// Valid проверяет только срок действия токена, без подписи.
// Подпись проверяет бэкенд; клиенту нужно лишь не слать заведомо просроченный токен.
func (s *Store) Valid(now time.Time) bool {
	return TokenValid(s.Token(), now)
}

// TokenValid разбирает JWT без проверки подписи и сравнивает exp с now.
// Токен без exp считается невалидным.
func TokenValid(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	claims := &domain.CustomClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.After(now)
}
