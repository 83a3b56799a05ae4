package demobackend_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xela07ax/riskwatch/internal/console/client"
	"github.com/xela07ax/riskwatch/internal/console/session"
	"github.com/xela07ax/riskwatch/internal/demobackend"
	"github.com/xela07ax/riskwatch/internal/domain"
	"github.com/xela07ax/riskwatch/internal/engine"
	"github.com/xela07ax/riskwatch/internal/infra/auth"
)

func startBackend(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	store := demobackend.NewStore(nil)
	require.NoError(t, store.Seed(demobackend.SeedOptions{BcryptCost: bcrypt.MinCost}))
	svc := demobackend.NewService(demobackend.Deps{
		Store:      store,
		Signer:     auth.NewSigner(key, time.Hour),
		BcryptCost: bcrypt.MinCost,
	})
	srv := httptest.NewServer(demobackend.NewServer(svc, zap.NewNop()))
	t.Cleanup(srv.Close)
	return srv.URL
}

func waitFor(t *testing.T, e *engine.Engine, what string, cond func(engine.ReadModel) bool) engine.ReadModel {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if m := e.Snapshot(); cond(m) {
			return m
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
	return engine.ReadModel{}
}

func TestClientLoginErrors(t *testing.T) {
	c := client.New(client.Options{BaseURL: startBackend(t), Timeout: time.Second}, nil, nil)

	_, err := c.Login(context.Background(), "admin@zerotrust.io", "nope")
	require.Error(t, err)
	assert.False(t, client.IsSessionExpired(err), "wrong password is not an expired session")
	assert.Equal(t, "Invalid credentials", client.Message(err))

	_, err = c.Dashboard(context.Background())
	assert.ErrorIs(t, err, client.ErrNotAuthenticated)
}

func TestConsoleAgainstDemoBackend(t *testing.T) {
	baseURL := startBackend(t)
	ctx := context.Background()

	sess := session.NewStore(nil)
	c := client.New(client.Options{BaseURL: baseURL, Timeout: 2 * time.Second}, sess, nil)

	tok, err := c.Login(ctx, "admin@zerotrust.io", "admin123")
	require.NoError(t, err)
	require.NoError(t, c.VerifyMFA(ctx, tok.SessionID, demobackend.DefaultOTP))
	sess.Init(tok.AccessToken, tok.Role)

	e := engine.New(engine.Config{
		MetricsInterval: 50 * time.Millisecond,
		DetailInterval:  30 * time.Millisecond,
		ClockInterval:   20 * time.Millisecond,
	}, c, sess, nil, nil)
	t.Cleanup(e.Close)

	e.OpenDashboard()
	m := waitFor(t, e, "dashboard", func(m engine.ReadModel) bool { return m.Metrics != nil })
	require.True(t, m.Authorized)
	assert.Equal(t, "user_carol", m.Metrics.TopRisks[0].UserID)

	// расследование Дейва: три набора деталей от бэкенда
	dave, ok := m.Metrics.FindRisk("user_dave")
	require.True(t, ok)
	e.Select(dave)
	m = waitFor(t, e, "details", func(m engine.ReadModel) bool {
		return m.Detail.UserID == "user_dave" && m.Detail.Activity != nil && len(m.Detail.RiskHistory) > 0
	})
	assert.NotEmpty(t, m.Detail.Sessions)

	// блокировка подтверждается следующим снимком метрик
	e.Dispatch("user_dave", domain.ActionLockAccount, "e2e")
	m = waitFor(t, e, "lock confirmed", func(m engine.ReadModel) bool {
		return m.Selection != nil && m.Selection.Provenance == engine.Confirmed &&
			m.Selection.Entry.AccessLevel == domain.AccessBlocked
	})
	assert.Equal(t, "user_dave", m.Selection.Entry.UserID)

	e.Simulate()
	m = waitFor(t, e, "simulation", func(m engine.ReadModel) bool { return m.Simulation != nil && !m.Simulating })
	assert.Equal(t, "attack_simulated", m.Simulation.Status)
	waitFor(t, e, "attack counted", func(m engine.ReadModel) bool { return m.Metrics.AttackAttempts == 1 })

	// оператор выбивает сам себя: следующий запрос получает 401
	e.Dispatch("user_admin", domain.ActionForceLogout, "e2e")
	m = waitFor(t, e, "signed out", func(m engine.ReadModel) bool { return m.SignedOut })
	assert.Nil(t, m.Selection)

	select {
	case <-sess.Redirects():
	case <-time.After(time.Second):
		t.Fatal("no sign-in redirect")
	}
	assert.Empty(t, sess.Token())

	_, err = client.New(client.Options{BaseURL: baseURL}, client.StaticToken(tok.AccessToken), nil).Dashboard(ctx)
	assert.True(t, client.IsSessionExpired(err))
}

func TestClientAdminCatalog(t *testing.T) {
	baseURL := startBackend(t)
	ctx := context.Background()

	sess := session.NewStore(nil)
	c := client.New(client.Options{BaseURL: baseURL, Timeout: 2 * time.Second}, sess, nil)
	tok, err := c.Login(ctx, "admin@zerotrust.io", "admin123")
	require.NoError(t, err)
	sess.Init(tok.AccessToken, tok.Role)

	users, err := c.Users(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 5)

	alerts, err := c.Alerts(ctx)
	require.NoError(t, err)
	assert.Len(t, alerts, 2)

	incidents, err := c.Incidents(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, incidents)

	active, err := c.ActiveSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Admin User", active[0].UserName)

	// каталог приложений: создание, учетка, окно входа
	url := "https://crm.local"
	created, err := c.CreateApp(ctx, domain.AppCreateRequest{Name: "CRM", URL: &url})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	apps, err := c.Apps(ctx)
	require.NoError(t, err)
	assert.Equal(t, "CRM", apps[len(apps)-1].Name)

	_, err = c.CreateAppCredential(ctx, created.ID, domain.CredentialCreateRequest{UserID: "user_bob", Username: "bob", Password: "pw"})
	require.NoError(t, err)
	creds, err := c.AppUsers(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "bob", creds[0].Username)

	before, err := c.LoginWindows(ctx)
	require.NoError(t, err)
	_, err = c.CreateLoginWindow(ctx, domain.LoginWindow{UserID: "user_bob", AppID: created.ID, AllowedStart: "08:00", AllowedEnd: "18:00"})
	require.NoError(t, err)
	after, err := c.LoginWindows(ctx)
	require.NoError(t, err)
	assert.Len(t, after, len(before)+1)

	// действие попадает в журнал аудита, новые записи первыми
	_, err = c.Action(ctx, "user_bob", domain.ActionInvestigate, "catalog test")
	require.NoError(t, err)
	trail, err := c.AuditTrail(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, trail)
	assert.Equal(t, "user_bob", trail[0].TargetUserID)

	// регистрация публична и выдает роль user
	reg, err := c.Register(ctx, domain.RegisterRequest{Email: "eve@zerotrust.io", Password: "pw", Name: "Eve"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, reg.Role)
}
