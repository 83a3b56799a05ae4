package cli

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xela07ax/riskwatch/internal/demobackend"
	"github.com/xela07ax/riskwatch/internal/infra/auth"
)

func startDemo(t *testing.T) string {
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

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-file", "stderr", "--log-level", "error"))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoginPrintsToken(t *testing.T) {
	url := startDemo(t)

	out, err := run(t, "login", "--api-url", url, "--email", "admin@zerotrust.io", "--password", "admin123")
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "admin", got["role"])
	assert.NotEmpty(t, got["access_token"])

	// токен из login принимается остальными командами
	out, err = run(t, "action", "user_bob", "investigate", "--api-url", url, "--token", got["access_token"])
	require.NoError(t, err)
	assert.Equal(t, "success: investigate on user_bob\n", out)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	url := startDemo(t)
	_, err := run(t, "login", "--api-url", url, "--email", "admin@zerotrust.io", "--password", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid credentials")

	_, err = run(t, "login", "--api-url", url)
	assert.ErrorIs(t, err, errNoCredentials)
}

func TestActionCommand(t *testing.T) {
	url := startDemo(t)
	creds := []string{"--api-url", url, "--email", "admin@zerotrust.io", "--password", "admin123"}

	out, err := run(t, append([]string{"action", "user_alice", "lock_account", "--reason", "cli test"}, creds...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "lock_account on user_alice")

	_, err = run(t, append([]string{"action", "user_alice", "drop_tables"}, creds...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action")

	_, err = run(t, append([]string{"action", "ghost", "investigate"}, creds...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "User not found")

	_, err = run(t, append([]string{"action", "user_alice"}, creds...)...)
	assert.Error(t, err)
}

func TestNonAdminTokenRejected(t *testing.T) {
	url := startDemo(t)
	_, err := run(t, "action", "user_bob", "unblock", "--api-url", url, "--email", "alice@zerotrust.io", "--password", "user123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Admin access required")
}

func TestSimulateCommand(t *testing.T) {
	url := startDemo(t)
	creds := []string{"--api-url", url, "--email", "admin@zerotrust.io", "--password", "admin123"}

	out, err := run(t, append([]string{"simulate", "--target", "user_carol"}, creds...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Target:  Carol White <carol@zerotrust.io> (user_carol)")
	assert.Contains(t, out, "device_mismatch")
	assert.Contains(t, out, "Result:  Session blocked + Alert generated")

	_, err = run(t, append([]string{"simulate", "--target", "ghost"}, creds...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "User not found")
}

func TestVersionSkipsConfig(t *testing.T) {
	out, err := run(t, "version", "--api-url", "")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}
