package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/xela07ax/riskwatch/internal/domain"
)

// Login: POST /api/auth/login. Токен не нужен; 401 здесь означает неверный пароль.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.TokenResponse, error) {
	var res domain.TokenResponse
	err := c.do(ctx, requestSpec{
		method:   http.MethodPost,
		path:     "/api/auth/login",
		body:     domain.LoginRequest{Email: email, Password: password},
		out:      &res,
		public:   true,
		fallback: "Login failed",
	})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &res, nil
}

// VerifyMFA: POST /api/auth/mfa/verify.
func (c *Client) VerifyMFA(ctx context.Context, sessionID, otp string) error {
	err := c.do(ctx, requestSpec{
		method:   http.MethodPost,
		path:     "/api/auth/mfa/verify",
		body:     domain.MFAVerifyRequest{SessionID: sessionID, OTP: otp},
		public:   true,
		fallback: "MFA verification failed",
	})
	if err != nil {
		return fmt.Errorf("verify mfa: %w", err)
	}
	return nil
}

// Register: POST /api/auth/register.
func (c *Client) Register(ctx context.Context, req domain.RegisterRequest) (*domain.TokenResponse, error) {
	if req.Role == "" {
		req.Role = domain.RoleUser
	}
	var res domain.TokenResponse
	err := c.do(ctx, requestSpec{
		method:   http.MethodPost,
		path:     "/api/auth/register",
		body:     req,
		out:      &res,
		public:   true,
		fallback: "Registration failed",
	})
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &res, nil
}

// Profile: GET /api/user/profile; консоль проверяет по нему роль.
func (c *Client) Profile(ctx context.Context) (*domain.UserProfile, error) {
	var p domain.UserProfile
	if err := c.get(ctx, "/api/user/profile", &p); err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	return &p, nil
}

func (c *Client) Users(ctx context.Context) ([]domain.UserRecord, error) {
	var out []domain.UserRecord
	if err := c.get(ctx, "/api/admin/users", &out); err != nil {
		return nil, fmt.Errorf("fetch users: %w", err)
	}
	return out, nil
}

func (c *Client) Incidents(ctx context.Context) ([]domain.Incident, error) {
	var out []domain.Incident
	if err := c.get(ctx, "/api/admin/incidents", &out); err != nil {
		return nil, fmt.Errorf("fetch incidents: %w", err)
	}
	return out, nil
}

func (c *Client) Alerts(ctx context.Context) ([]domain.Alert, error) {
	var out []domain.Alert
	if err := c.get(ctx, "/api/admin/alerts", &out); err != nil {
		return nil, fmt.Errorf("fetch alerts: %w", err)
	}
	return out, nil
}

func (c *Client) ActiveSessions(ctx context.Context) ([]domain.ActiveSession, error) {
	var out []domain.ActiveSession
	if err := c.get(ctx, "/api/admin/active-sessions", &out); err != nil {
		return nil, fmt.Errorf("fetch active sessions: %w", err)
	}
	return out, nil
}

func (c *Client) AuditTrail(ctx context.Context) ([]domain.AuditRecord, error) {
	var out []domain.AuditRecord
	if err := c.get(ctx, "/api/admin/audit-trail", &out); err != nil {
		return nil, fmt.Errorf("fetch audit trail: %w", err)
	}
	return out, nil
}

func (c *Client) Apps(ctx context.Context) ([]domain.App, error) {
	var out []domain.App
	if err := c.get(ctx, "/api/admin/apps", &out); err != nil {
		return nil, fmt.Errorf("fetch apps: %w", err)
	}
	return out, nil
}

func (c *Client) CreateApp(ctx context.Context, req domain.AppCreateRequest) (*domain.CreatedAck, error) {
	var ack domain.CreatedAck
	if err := c.post(ctx, "/api/admin/apps", req, &ack); err != nil {
		return nil, fmt.Errorf("create app: %w", err)
	}
	return &ack, nil
}

// AppUsers: учетные записи пользователей в приложении.
func (c *Client) AppUsers(ctx context.Context, appID string) ([]domain.AppCredential, error) {
	var out []domain.AppCredential
	if err := c.get(ctx, "/api/admin/app/"+url.PathEscape(appID)+"/users", &out); err != nil {
		return nil, fmt.Errorf("fetch app users: %w", err)
	}
	return out, nil
}

func (c *Client) CreateAppCredential(ctx context.Context, appID string, req domain.CredentialCreateRequest) (*domain.CreatedAck, error) {
	var ack domain.CreatedAck
	if err := c.post(ctx, "/api/admin/app/"+url.PathEscape(appID)+"/user", req, &ack); err != nil {
		return nil, fmt.Errorf("create app credential: %w", err)
	}
	return &ack, nil
}

func (c *Client) LoginWindows(ctx context.Context) ([]domain.LoginWindow, error) {
	var out []domain.LoginWindow
	if err := c.get(ctx, "/api/admin/login-windows", &out); err != nil {
		return nil, fmt.Errorf("fetch login windows: %w", err)
	}
	return out, nil
}

func (c *Client) CreateLoginWindow(ctx context.Context, req domain.LoginWindow) (*domain.CreatedAck, error) {
	var ack domain.CreatedAck
	if err := c.post(ctx, "/api/admin/login-windows", req, &ack); err != nil {
		return nil, fmt.Errorf("create login window: %w", err)
	}
	return &ack, nil
}
