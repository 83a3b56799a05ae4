package demobackend

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xela07ax/riskwatch/internal/audit"
	"github.com/xela07ax/riskwatch/internal/domain"
	"github.com/xela07ax/riskwatch/internal/infra"
	"github.com/xela07ax/riskwatch/internal/infra/auth"
)

type recordedAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordedAudit) Record(e audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

type backend struct {
	srv   *httptest.Server
	svc   *Service
	audit *recordedAudit
}

func newBackend(t *testing.T, pub Publisher) *backend {
	t.Helper()
	key, err := rsa.GenerateKey(crand.Reader, 2048)
	require.NoError(t, err)

	store := NewStore(nil)
	require.NoError(t, store.Seed(SeedOptions{BcryptCost: bcrypt.MinCost, Rand: rand.New(rand.NewPCG(1, 2))}))

	rec := &recordedAudit{}
	svc := NewService(Deps{
		Store:      store,
		Signer:     auth.NewSigner(key, time.Hour),
		Audit:      rec,
		Publisher:  pub,
		Logger:     zap.NewNop(),
		BcryptCost: bcrypt.MinCost,
		Rand:       rand.New(rand.NewPCG(3, 4)),
	})
	srv := httptest.NewServer(NewServer(svc, zap.NewNop()))
	t.Cleanup(srv.Close)
	return &backend{srv: srv, svc: svc, audit: rec}
}

func (b *backend) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, b.srv.URL+path, r)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, data
}

func (b *backend) login(t *testing.T, email, password string) domain.TokenResponse {
	t.Helper()
	status, body := b.do(t, http.MethodPost, "/api/auth/login", "", domain.LoginRequest{Email: email, Password: password})
	require.Equal(t, http.StatusOK, status, string(body))
	var tok domain.TokenResponse
	require.NoError(t, json.Unmarshal(body, &tok))
	return tok
}

func decodeInto[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	b := newBackend(t, nil)

	status, body := b.do(t, http.MethodPost, "/api/auth/login", "", domain.LoginRequest{Email: "admin@zerotrust.io", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.JSONEq(t, `{"detail":"Invalid credentials"}`, string(body))

	tok := b.login(t, "admin@zerotrust.io", "admin123")
	assert.Equal(t, domain.RoleAdmin, tok.Role)
	assert.Equal(t, "bearer", tok.TokenType)

	claims, err := b.svc.signer.VerifyToken(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user_admin", claims.UserID)
	assert.Equal(t, tok.SessionID, claims.SessionID)

	// неудачная попытка засчитана в новую сессию
	status, body = b.do(t, http.MethodGet, "/api/admin/user/user_admin/sessions", tok.AccessToken, nil)
	require.Equal(t, http.StatusOK, status)
	sessions := decodeInto[[]domain.UserSession](t, body)
	require.NotEmpty(t, sessions)
	assert.Equal(t, tok.SessionID, sessions[0].SessionID)
	assert.Equal(t, 2, sessions[0].LoginAttemptCount)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	b := newBackend(t, nil)
	alice := b.login(t, "alice@zerotrust.io", "user123")

	status, body := b.do(t, http.MethodGet, "/api/admin/dashboard", alice.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.JSONEq(t, `{"detail":"Admin access required"}`, string(body))

	status, body = b.do(t, http.MethodGet, "/api/user/profile", alice.AccessToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, domain.RoleUser, decodeInto[domain.UserProfile](t, body).Role)

	status, _ = b.do(t, http.MethodGet, "/api/admin/dashboard", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestDashboardAggregatesSeed(t *testing.T) {
	b := newBackend(t, nil)
	admin := b.login(t, "admin@zerotrust.io", "admin123")

	status, body := b.do(t, http.MethodGet, "/api/admin/dashboard", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, status)
	snap := decodeInto[domain.MetricsSnapshot](t, body)

	assert.Equal(t, 5, snap.TotalUsers)
	assert.Equal(t, 1, snap.CriticalRisks)
	assert.Equal(t, 1, snap.BlockedAccounts)
	assert.Equal(t, 2, snap.RecentAlerts)
	assert.Equal(t, 2, snap.SuspiciousSessions)
	assert.GreaterOrEqual(t, snap.ActiveUsers, 5)
	assert.InDelta(t, 0.264, snap.AvgRiskScore, 1e-9)

	require.Len(t, snap.TopRisks, 5)
	assert.Equal(t, "user_carol", snap.TopRisks[0].UserID)
	assert.Equal(t, "high", snap.TopRisks[0].RiskLevel)
	assert.Equal(t, domain.AccessBlocked, snap.TopRisks[0].AccessLevel)
	assert.Equal(t, "user_bob", snap.TopRisks[1].UserID)
}

func TestUserDetailEndpoints(t *testing.T) {
	b := newBackend(t, nil)
	admin := b.login(t, "admin@zerotrust.io", "admin123").AccessToken

	_, body := b.do(t, http.MethodGet, "/api/admin/user/user_alice/risk-history", admin, nil)
	history := decodeInto[[]domain.RiskHistoryEntry](t, body)
	require.Len(t, history, 7)
	assert.True(t, history[0].Timestamp.After(history[6].Timestamp.Time), "newest first")

	_, body = b.do(t, http.MethodGet, "/api/admin/user/user_alice/activity-analytics", admin, nil)
	analytics := decodeInto[domain.ActivityAnalytics](t, body)
	require.NotNil(t, analytics.MostUsedModule)
	assert.Equal(t, "app_finance", *analytics.MostUsedModule)
	assert.InDelta(t, 1200, analytics.ModuleDurations["app_hr"], 1e-9)
	require.NotEmpty(t, analytics.RecentLogs)
	assert.Equal(t, "Simulated Export", analytics.RecentLogs[0].Action)

	_, body = b.do(t, http.MethodGet, "/api/admin/user/user_carol/sessions", admin, nil)
	sessions := decodeInto[[]domain.UserSession](t, body)
	require.Len(t, sessions, 8)
	assert.False(t, sessions[0].Revoked, "live session has the freshest activity")
	assert.Equal(t, 4, sessions[0].LoginAttemptCount)

	// неизвестный пользователь: пустые списки, как у бэкенда на запросах к коллекциям
	_, body = b.do(t, http.MethodGet, "/api/admin/user/ghost/risk-history", admin, nil)
	assert.JSONEq(t, `[]`, string(body))
}

func TestActionsChangeStateAndAreAudited(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	sub := rdb.Subscribe(context.Background(), infra.RefreshChannel(""))
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	b := newBackend(t, NewRedisPublisher(rdb, "", zap.NewNop()))
	admin := b.login(t, "admin@zerotrust.io", "admin123").AccessToken
	alice := b.login(t, "alice@zerotrust.io", "user123").AccessToken

	status, body := b.do(t, http.MethodPost, "/api/admin/user/user_alice/action", admin,
		domain.ActionRequest{Action: domain.ActionLockAccount, Reason: "test"})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.JSONEq(t, `{"status":"success","action":"lock_account"}`, string(body))

	// сессии Алисы отозваны
	status, body = b.do(t, http.MethodGet, "/api/user/profile", alice, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.JSONEq(t, `{"detail":"Session revoked or invalid"}`, string(body))

	_, body = b.do(t, http.MethodGet, "/api/admin/users", admin, nil)
	for _, u := range decodeInto[[]domain.UserRecord](t, body) {
		if u.ID == "user_alice" {
			assert.Equal(t, domain.AccessBlocked, u.AccessLevel)
			assert.False(t, u.IsActive)
		}
	}

	status, _ = b.do(t, http.MethodPost, "/api/admin/user/user_alice/action", admin,
		domain.ActionRequest{Action: domain.ActionUnblock})
	require.Equal(t, http.StatusOK, status)

	_, body = b.do(t, http.MethodGet, "/api/admin/audit-trail", admin, nil)
	trail := decodeInto[[]domain.AuditRecord](t, body)
	require.Len(t, trail, 2)
	assert.Equal(t, "unblock", trail[0].Action)
	assert.Equal(t, "user_admin", trail[1].AdminID)

	_, body = b.do(t, http.MethodGet, "/api/admin/dashboard", admin, nil)
	assert.Equal(t, 1, decodeInto[domain.MetricsSnapshot](t, body).ResolvedByAdmin)

	b.audit.mu.Lock()
	require.Len(t, b.audit.entries, 2)
	lock := b.audit.entries[0]
	b.audit.mu.Unlock()
	assert.Equal(t, domain.AccessFull, lock.Before["access_level"])
	assert.Equal(t, domain.AccessBlocked, lock.After["access_level"])
	assert.NotEmpty(t, lock.TraceID)

	var payloads []string
	ch := sub.Channel()
	timeout := time.After(2 * time.Second)
	for len(payloads) < 4 {
		select {
		case msg := <-ch:
			payloads = append(payloads, msg.Payload)
		case <-timeout:
			t.Fatalf("signals received: %v", payloads)
		}
	}
	assert.Equal(t, []string{
		"user_admin:login",
		"user_alice:login",
		"user_alice:action:lock_account",
		"user_alice:action:unblock",
	}, payloads)
}

func TestActionErrors(t *testing.T) {
	b := newBackend(t, nil)
	admin := b.login(t, "admin@zerotrust.io", "admin123").AccessToken

	status, body := b.do(t, http.MethodPost, "/api/admin/user/ghost/action", admin, domain.ActionRequest{Action: domain.ActionInvestigate})
	assert.Equal(t, http.StatusNotFound, status)
	assert.JSONEq(t, `{"detail":"User not found"}`, string(body))

	status, _ = b.do(t, http.MethodPost, "/api/admin/user/user_bob/action", admin, domain.ActionRequest{Action: "drop_tables"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = b.do(t, http.MethodPost, "/api/admin/user/user_bob/action", admin, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestResolveIncidentClosesAlerts(t *testing.T) {
	b := newBackend(t, nil)
	admin := b.login(t, "admin@zerotrust.io", "admin123").AccessToken

	status, _ := b.do(t, http.MethodPost, "/api/admin/user/user_carol/action", admin, domain.ActionRequest{Action: domain.ActionResolveIncident})
	require.Equal(t, http.StatusOK, status)

	_, body := b.do(t, http.MethodGet, "/api/admin/incidents", admin, nil)
	for _, inc := range decodeInto[[]domain.Incident](t, body) {
		assert.True(t, inc.Resolved)
	}
	_, body = b.do(t, http.MethodGet, "/api/admin/alerts", admin, nil)
	for _, a := range decodeInto[[]domain.Alert](t, body) {
		if a.UserID == "user_carol" {
			assert.Equal(t, "resolved", a.Status)
			assert.Equal(t, "Carol White", a.UserName)
		}
	}
	_, body = b.do(t, http.MethodGet, "/api/admin/dashboard", admin, nil)
	snap := decodeInto[domain.MetricsSnapshot](t, body)
	assert.Zero(t, snap.CriticalRisks)
}

func TestSimulateAttack(t *testing.T) {
	b := newBackend(t, nil)
	admin := b.login(t, "admin@zerotrust.io", "admin123").AccessToken

	status, body := b.do(t, http.MethodPost, "/api/demo/simulate-attack", admin, map[string]string{"target_user_id": "user_dave"})
	require.Equal(t, http.StatusOK, status, string(body))
	res := decodeInto[domain.SimulationResult](t, body)

	assert.Equal(t, "attack_simulated", res.Status)
	require.NotNil(t, res.TargetUser)
	assert.Equal(t, "Dave Martinez", res.TargetUser.Name)
	require.NotNil(t, res.RiskResult)
	assert.GreaterOrEqual(t, res.RiskResult.Score, 70.0)
	assert.LessOrEqual(t, res.RiskResult.Score, 100.0)
	assert.Len(t, res.RiskResult.Breakdown, len(riskComponents))
	assert.Equal(t, "Session blocked + Alert generated", res.ActionTaken)

	_, body = b.do(t, http.MethodGet, "/api/admin/user/user_dave/risk-history", admin, nil)
	history := decodeInto[[]domain.RiskHistoryEntry](t, body)
	assert.Equal(t, "simulated_attack", history[0].TriggeredBy)
	assert.InDelta(t, res.RiskResult.Score/100, history[0].NewScore, 1e-4)

	_, body = b.do(t, http.MethodGet, "/api/admin/dashboard", admin, nil)
	snap := decodeInto[domain.MetricsSnapshot](t, body)
	assert.Equal(t, 1, snap.AttackAttempts)
	assert.Equal(t, "user_dave", snap.TopRisks[0].UserID)

	// пустое тело: случайная цель
	status, body = b.do(t, http.MethodPost, "/api/demo/simulate-attack", admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, domain.RoleUser, roleOf(t, b, admin, decodeInto[domain.SimulationResult](t, body).TargetUser.ID))

	status, body = b.do(t, http.MethodPost, "/api/demo/simulate-attack", admin, map[string]string{"target_user_id": "ghost"})
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"error":"User not found"}`, string(body))
}

func roleOf(t *testing.T, b *backend, token, userID string) string {
	_, body := b.do(t, http.MethodGet, "/api/admin/users", token, nil)
	for _, u := range decodeInto[[]domain.UserRecord](t, body) {
		if u.ID == userID {
			return u.Role
		}
	}
	return ""
}

func TestRegisterAndMFA(t *testing.T) {
	b := newBackend(t, nil)

	status, body := b.do(t, http.MethodPost, "/api/auth/register", "", domain.RegisterRequest{Email: "eve@zerotrust.io", Password: "pw", Name: "Eve"})
	require.Equal(t, http.StatusOK, status, string(body))
	tok := decodeInto[domain.TokenResponse](t, body)
	assert.Equal(t, domain.RoleUser, tok.Role)

	status, _ = b.do(t, http.MethodPost, "/api/auth/register", "", domain.RegisterRequest{Email: "EVE@zerotrust.io", Password: "pw"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = b.do(t, http.MethodPost, "/api/auth/mfa/verify", "", domain.MFAVerifyRequest{SessionID: tok.SessionID, OTP: "000000"})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = b.do(t, http.MethodPost, "/api/auth/mfa/verify", "", domain.MFAVerifyRequest{SessionID: tok.SessionID, OTP: DefaultOTP})
	assert.Equal(t, http.StatusOK, status)
}

func TestCatalogEndpoints(t *testing.T) {
	b := newBackend(t, nil)
	admin := b.login(t, "admin@zerotrust.io", "admin123").AccessToken

	_, body := b.do(t, http.MethodGet, "/api/admin/apps", admin, nil)
	assert.Len(t, decodeInto[[]domain.App](t, body), len(seedApps))

	status, body := b.do(t, http.MethodPost, "/api/admin/app/app_hr/user", admin,
		domain.CredentialCreateRequest{UserID: "user_alice", Username: "alice", Password: "pw"})
	require.Equal(t, http.StatusOK, status, string(body))

	_, body = b.do(t, http.MethodGet, "/api/admin/app/app_hr/users", admin, nil)
	creds := decodeInto[[]domain.AppCredential](t, body)
	assert.Len(t, creds, 2) // Боб из сида и новая Алиса

	status, _ = b.do(t, http.MethodPost, "/api/admin/app/nope/user", admin,
		domain.CredentialCreateRequest{UserID: "user_alice", Username: "alice", Password: "pw"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = b.do(t, http.MethodPost, "/api/admin/login-windows", admin,
		domain.LoginWindow{UserID: "user_bob", AppID: "app_hr", AllowedStart: "09:00", AllowedEnd: "17:00"})
	require.Equal(t, http.StatusOK, status)
	_, body = b.do(t, http.MethodGet, "/api/admin/login-windows", admin, nil)
	assert.Len(t, decodeInto[[]domain.LoginWindow](t, body), 5)

	_, body = b.do(t, http.MethodGet, "/api/admin/active-sessions", admin, nil)
	active := decodeInto[[]domain.ActiveSession](t, body)
	assert.Len(t, active, 5)
	assert.Equal(t, "Admin User", active[0].UserName)
}

func TestHealthAndTraceHeader(t *testing.T) {
	b := newBackend(t, nil)
	req, err := http.NewRequest(http.MethodGet, b.srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(TraceHeader, "trace-1")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "trace-1", res.Header.Get(TraceHeader))
}
