package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/riskwatch/internal/domain"
)

func signed(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestTokenValidChecksExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	fresh := signed(t, domain.CustomClaims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	expired := signed(t, domain.CustomClaims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
		},
	})
	noExp := signed(t, domain.CustomClaims{UserID: "u1"})

	assert.True(t, TokenValid(fresh, now))
	assert.False(t, TokenValid(expired, now))
	assert.False(t, TokenValid(noExp, now))
	assert.False(t, TokenValid("not-a-jwt", now))
	assert.False(t, TokenValid("", now))
}

func TestClearEmitsSingleRedirect(t *testing.T) {
	s := NewStore(nil)
	s.Init("tok", domain.RoleAdmin)
	require.Equal(t, "tok", s.Token())
	require.True(t, s.IsAdmin())

	s.Clear("401 from dashboard")
	s.Clear("401 from sessions")

	assert.Empty(t, s.Token())
	assert.Empty(t, s.Role())

	select {
	case intent := <-s.Redirects():
		assert.Equal(t, SignIn, intent.To)
		assert.Equal(t, "401 from dashboard", intent.Reason)
	default:
		t.Fatal("expected redirect intent")
	}

	select {
	case intent := <-s.Redirects():
		t.Fatalf("unexpected second redirect: %+v", intent)
	default:
	}
}

func TestClearWithoutSessionIsNoop(t *testing.T) {
	s := NewStore(nil)
	s.Clear("nothing to clear")

	select {
	case intent := <-s.Redirects():
		t.Fatalf("unexpected redirect: %+v", intent)
	default:
	}
}
