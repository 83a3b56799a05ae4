package demobackend

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xela07ax/riskwatch/internal/audit"
	"github.com/xela07ax/riskwatch/internal/domain"
	"github.com/xela07ax/riskwatch/internal/infra/auth"
)

var ErrInvalidOTP = errors.New("Invalid verification code")

// DefaultOTP: код подтверждения MFA демо-бэкенда.
const DefaultOTP = "123456"

// RequestMeta: откуда пришла команда (для журнала аудита).
type RequestMeta struct {
	IPAddress string
	UserAgent string
	TraceID   string
}

type Deps struct {
	Store      *Store
	Signer     *auth.Signer
	Audit      audit.Recorder
	Publisher  Publisher
	Logger     *zap.Logger
	BcryptCost int
	OTP        string
	Rand       *rand.Rand
}

type discardAudit struct{}

func (discardAudit) Record(audit.Entry) {}

// Service: сценарии демо-бэкенда поверх Store (вход, команды, симуляция).
type Service struct {
	store      *Store
	signer     *auth.Signer
	audit      audit.Recorder
	pub        Publisher
	logger     *zap.Logger
	bcryptCost int
	otp        string

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Publisher == nil {
		d.Publisher = nopPublisher{}
	}
	if d.Audit == nil {
		d.Audit = discardAudit{}
	}
	if d.BcryptCost == 0 {
		d.BcryptCost = bcrypt.DefaultCost
	}
	if d.OTP == "" {
		d.OTP = DefaultOTP
	}
	if d.Rand == nil {
		seed := uint64(time.Now().UnixNano())
		d.Rand = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &Service{
		store:      d.Store,
		signer:     d.Signer,
		audit:      d.Audit,
		pub:        d.Publisher,
		logger:     d.Logger.Named("demo-service"),
		bcryptCost: d.BcryptCost,
		otp:        d.OTP,
		rng:        d.Rand,
	}
}

// Login проверяет пароль и открывает новую сессию.
// Неверный email и неверный пароль неразличимы для вызывающего.
func (s *Service) Login(ctx context.Context, req domain.LoginRequest, meta RequestMeta) (*domain.TokenResponse, error) {
	u, ok := s.store.userByEmail(req.Email)
	if !ok {
		return nil, ErrInvalidCreds
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(req.Password)); err != nil {
		s.store.failedLogin(u.ID)
		s.logger.Info("login rejected", zap.String("user_id", u.ID), zap.String("ip", meta.IPAddress))
		return nil, ErrInvalidCreds
	}

	resp, err := s.issue(u, meta)
	if err != nil {
		return nil, err
	}
	s.pub.Publish(ctx, u.ID, "login")
	return resp, nil
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest, meta RequestMeta) (*domain.TokenResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", errBadRequest)
	}
	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	u, err := s.store.createUser(req, hash)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", zap.String("user_id", u.ID), zap.String("role", u.Role))

	resp, err := s.issue(u, meta)
	if err != nil {
		return nil, err
	}
	s.pub.Publish(ctx, u.ID, "registered")
	return resp, nil
}

func (s *Service) hashPassword(password string) ([]byte, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", errBadRequest)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func (s *Service) issue(u userRec, meta RequestMeta) (*domain.TokenResponse, error) {
	sess := s.store.openSession(u.ID, meta.IPAddress, meta.UserAgent, s.signer.TTL(), true)
	token, err := s.signer.Sign(domain.CustomClaims{
		UserID:    u.ID,
		Email:     u.Email,
		SessionID: sess.SessionID,
		Role:      u.Role,
	}, time.Now())
	if err != nil {
		return nil, err
	}
	return &domain.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.signer.TTL().Seconds()),
		Role:        u.Role,
		SessionID:   sess.SessionID,
	}, nil
}

func (s *Service) VerifyMFA(_ context.Context, req domain.MFAVerifyRequest) error {
	if req.OTP != s.otp {
		return ErrInvalidOTP
	}
	return s.store.verifyMFA(req.SessionID)
}

// CheckSession реализует auth.SessionChecker.
func (s *Service) CheckSession(_ context.Context, c *domain.CustomClaims) error {
	return s.store.checkSession(c.UserID, c.SessionID)
}

func (s *Service) Profile(_ context.Context, userID string) (domain.UserProfile, error) {
	return s.store.profile(userID)
}

// Action выполняет команду, пишет аудит и рассылает сигнал обновления.
func (s *Service) Action(ctx context.Context, adminID, targetID string, req domain.ActionRequest, meta RequestMeta) (*domain.ActionAck, error) {
	before, after, err := s.store.applyAction(targetID, req.Action)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	id := newID()
	s.store.appendAudit(domain.AuditRecord{
		ID: id, AdminID: adminID, TargetUserID: targetID,
		Action: string(req.Action), Reason: req.Reason,
		Timestamp: domain.At(now), IPAddress: meta.IPAddress,
	})
	s.audit.Record(audit.Entry{
		ID: id, TraceID: meta.TraceID, AdminID: adminID, TargetUserID: targetID,
		Action: string(req.Action), Reason: req.Reason,
		Before: before.asMap(), After: after.asMap(),
		IPAddress: meta.IPAddress, Timestamp: now,
	})

	s.logger.Info("admin action applied",
		zap.String("admin_id", adminID),
		zap.String("target_user_id", targetID),
		zap.String("action", string(req.Action)),
		zap.String("access_before", before.AccessLevel),
		zap.String("access_after", after.AccessLevel),
		zap.String("trace_id", meta.TraceID))

	s.pub.Publish(ctx, targetID, "action:"+string(req.Action))
	return &domain.ActionAck{Status: "success", Action: req.Action}, nil
}

// Simulate разыгрывает атаку. Пустой targetID: цель выбирается случайно.
func (s *Service) Simulate(ctx context.Context, targetID string) (domain.SimulationResult, error) {
	s.rngMu.Lock()
	res, err := s.store.simulate(targetID, s.rng)
	s.rngMu.Unlock()
	if err != nil {
		return domain.SimulationResult{}, err
	}

	s.logger.Info("attack simulated",
		zap.String("target_user_id", res.TargetUser.ID),
		zap.Float64("score", res.RiskResult.Score))
	s.pub.Publish(ctx, res.TargetUser.ID, "simulation")
	return res, nil
}
