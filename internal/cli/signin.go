package cli

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xela07ax/riskwatch/internal/console/client"
	"github.com/xela07ax/riskwatch/internal/console/session"
	"github.com/xela07ax/riskwatch/internal/domain"
	"github.com/xela07ax/riskwatch/internal/infra"
)

var errNoCredentials = errors.New("no credentials: set auth.token or auth.email/auth.password")

// signIn инициализирует сессию оператора. Готовый токен имеет приоритет:
// роль берется из профиля. Иначе вход по паролю и, если нужно, подтверждение MFA.
func signIn(ctx context.Context, auth infra.AuthConfig, c *client.Client, sess *session.Store, logger *zap.Logger) (*domain.TokenResponse, error) {
	if auth.Token != "" {
		sess.Init(auth.Token, "")
		profile, err := c.Profile(ctx)
		if err != nil {
			sess.Clear("profile check failed")
			return nil, fmt.Errorf("check token: %s", client.Message(err))
		}
		sess.Init(auth.Token, profile.Role)
		return &domain.TokenResponse{AccessToken: auth.Token, TokenType: "bearer", Role: profile.Role}, nil
	}

	if auth.Email == "" || auth.Password == "" {
		return nil, errNoCredentials
	}
	tok, err := c.Login(ctx, auth.Email, auth.Password)
	if err != nil {
		return nil, fmt.Errorf("sign in: %s", client.Message(err))
	}
	if tok.MFARequired {
		if auth.OTP == "" {
			return nil, errors.New("sign in: MFA code required (--otp)")
		}
		if err := c.VerifyMFA(ctx, tok.SessionID, auth.OTP); err != nil {
			return nil, fmt.Errorf("verify MFA: %s", client.Message(err))
		}
	}
	sess.Init(tok.AccessToken, tok.Role)
	logger.Info("operator signed in", zap.String("role", tok.Role), zap.String("session_id", tok.SessionID))
	return tok, nil
}

// connect: клиент с сессией оператора для одноразовых команд.
func (a *app) connect(ctx context.Context) (*client.Client, *session.Store, error) {
	sess := session.NewStore(a.logger)
	c := client.New(client.OptionsFromConfig(a.cfg), sess, a.logger)
	if _, err := signIn(ctx, a.cfg.Auth, c, sess, a.logger); err != nil {
		return nil, nil, err
	}
	return c, sess, nil
}
