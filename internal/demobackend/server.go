package demobackend

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xela07ax/riskwatch/internal/domain"
	"github.com/xela07ax/riskwatch/internal/infra/auth"
)

// Server: HTTP API демо-бэкенда в форме, которую ожидает консоль.
type Server struct {
	router *chi.Mux
	logger *zap.Logger
	svc    *Service

	// Проверка RS256 подписи; в демо ее выполняет тот же Signer, что выпускает токены
	validator auth.TokenValidator
}

func NewServer(svc *Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.Named("demo-api"),
		svc:       svc,
		validator: svc.signer,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	// --- 1. Глобальные Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(tracing)
	r.Use(accessLog(s.logger))
	r.Use(middleware.Recoverer)

	// --- 2. Публичные роуты ---
	r.Group(func(r chi.Router) {
		r.Post("/api/auth/login", s.login)
		r.Post("/api/auth/register", s.register)
		r.Post("/api/auth/mfa/verify", s.verifyMFA)

		r.Get("/health", s.health)
		r.Get("/api/health", s.health)
	})

	// --- 3. Защищенный периметр: RS256 токен живой сессии ---
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.validator, s.svc, s.logger))

		r.Get("/api/user/profile", s.profile)

		// Только администраторы
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(domain.RoleAdmin))

			r.Route("/api/admin", func(r chi.Router) {
				r.Get("/dashboard", s.dashboard)
				r.Get("/users", s.users)
				r.Get("/incidents", s.incidents)
				r.Get("/alerts", s.alerts)
				r.Get("/active-sessions", s.activeSessions)
				r.Get("/audit-trail", s.auditTrail)

				r.Route("/user/{id}", func(r chi.Router) {
					r.Get("/risk-history", s.riskHistory)
					r.Get("/sessions", s.userSessions)
					r.Get("/activity-analytics", s.activityAnalytics)
					r.Post("/action", s.action)
				})

				r.Get("/apps", s.apps)
				r.Post("/apps", s.createApp)
				r.Get("/app/{id}/users", s.appUsers)
				r.Post("/app/{id}/user", s.createAppCredential)

				r.Get("/login-windows", s.loginWindows)
				r.Post("/login-windows", s.createLoginWindow)
			})

			r.Post("/api/demo/simulate-attack", s.simulateAttack)
		})
	})
}

// ServeHTTP позволяет использовать Server как стандартный http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
