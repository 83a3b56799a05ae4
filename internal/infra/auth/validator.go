package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/xela07ax/riskwatch/internal/domain"
)

// Issuer: имя, которое демо-бэкенд пишет в iss
const Issuer = "riskwatch-demo"

// Validator проверяет токены, подписанные асимметричным ключом RS256.
type Validator struct {
	publicKey *rsa.PublicKey
}

func NewValidator(pubKey *rsa.PublicKey) *Validator {
	return &Validator{publicKey: pubKey}
}

// VerifyToken реализует TokenValidator. Префикс "Bearer " допускается.
func (v *Validator) VerifyToken(tokenStr string) (*domain.CustomClaims, error) {
	tokenStr = strings.TrimSpace(strings.TrimPrefix(tokenStr, "Bearer "))
	if tokenStr == "" {
		return nil, errors.New("empty token")
	}

	token, err := jwt.ParseWithClaims(tokenStr, &domain.CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.publicKey, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*domain.CustomClaims)
	if !ok || claims.UserID == "" || claims.SessionID == "" {
		return nil, errors.New("invalid token payload")
	}
	return claims, nil
}

// Signer выпускает токены закрытым ключом. Проверяет их встроенный Validator.
type Signer struct {
	*Validator
	privateKey *rsa.PrivateKey
	ttl        time.Duration
}

func NewSigner(privateKey *rsa.PrivateKey, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Signer{
		Validator:  NewValidator(&privateKey.PublicKey),
		privateKey: privateKey,
		ttl:        ttl,
	}
}

// TTL: срок жизни выпускаемых токенов.
func (s *Signer) TTL() time.Duration { return s.ttl }

// Sign подписывает claims, проставляя iss, sub, iat и exp.
func (s *Signer) Sign(claims domain.CustomClaims, now time.Time) (string, error) {
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   claims.UserID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, &claims)
	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseRSAPublicKey превращает []byte в объект для проверки подписи
func ParseRSAPublicKey(data []byte) (*rsa.PublicKey, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("public key data is empty")
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return key, nil
}

// ParseRSAPrivateKey превращает []byte в объект для подписи
func ParseRSAPrivateKey(data []byte) (*rsa.PrivateKey, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("private key data is empty")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return key, nil
}

// LoadOrGenerate читает PEM, а если его нет, создает эфемерный ключ.
// Токены с эфемерным ключом не переживают перезапуск бэкенда.
func LoadOrGenerate(pem []byte) (key *rsa.PrivateKey, generated bool, err error) {
	if len(pem) > 0 {
		key, err = ParseRSAPrivateKey(pem)
		return key, false, err
	}
	key, err = rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, false, fmt.Errorf("generate rsa key: %w", err)
	}
	return key, true, nil
}
