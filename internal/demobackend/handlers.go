package demobackend

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xela07ax/riskwatch/internal/domain"
	"github.com/xela07ax/riskwatch/internal/infra/auth"
)

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError отдает {"detail": ...}: консоль читает текст ошибки оттуда.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	detail := "Internal server error"

	switch {
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrNotFound):
		status, detail = http.StatusNotFound, err.Error()
	case errors.Is(err, ErrInvalidCreds):
		status, detail = http.StatusUnauthorized, err.Error()
	case errors.Is(err, ErrSessionRevoked), errors.Is(err, ErrSessionExpired):
		status, detail = http.StatusUnauthorized, err.Error()
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrUnknownAction), errors.Is(err, ErrInvalidOTP):
		status, detail = http.StatusBadRequest, err.Error()
	case errors.Is(err, errBadRequest):
		status, detail = http.StatusUnprocessableEntity, err.Error()
	default:
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("trace_id", traceIDFrom(r.Context())),
			zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"detail": detail})
}

// decode читает JSON тело. Пустое тело допустимо, если allowEmpty.
func decode(r *http.Request, v any, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	if err != nil {
		return errBadRequest
	}
	return nil
}

func requestMeta(r *http.Request) RequestMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return RequestMeta{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
		TraceID:   traceIDFrom(r.Context()),
	}
}

// --- Публичные ---

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "timestamp": domain.At(time.Now())})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.svc.Login(r.Context(), req, requestMeta(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.svc.Register(r.Context(), req, requestMeta(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) verifyMFA(w http.ResponseWriter, r *http.Request) {
	var req domain.MFAVerifyRequest
	if err := decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.VerifyMFA(r.Context(), req); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

// --- Пользователь ---

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	p, err := s.svc.Profile(r.Context(), claims.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// --- Админка ---

func (s *Server) dashboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.store.dashboard())
}

func (s *Server) users(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.store.userRecords())
}

func (s *Server) incidents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.store.incidentList())
}

func (s *Server) alerts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.store.alertList())
}

func (s *Server) activeSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.store.activeSessions())
}

func (s *Server) auditTrail(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.store.auditTrail())
}

func (s *Server) riskHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.store.riskHistory(chi.URLParam(r, "id")))
}

func (s *Server) userSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.store.userSessions(chi.URLParam(r, "id")))
}

func (s *Server) activityAnalytics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.store.activityAnalytics(chi.URLParam(r, "id")))
}

func (s *Server) action(w http.ResponseWriter, r *http.Request) {
	var req domain.ActionRequest
	if err := decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	claims, _ := auth.ClaimsFrom(r.Context())
	ack, err := s.svc.Action(r.Context(), claims.UserID, chi.URLParam(r, "id"), req, requestMeta(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

// simulateAttack: "некого атаковать" и "нет такого пользователя" приходят
// как 200 с полем error, так их понимает консоль.
func (s *Server) simulateAttack(w http.ResponseWriter, r *http.Request) {
	var req domain.SimulateRequest
	if err := decode(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	target := ""
	if req.TargetUserID != nil {
		target = *req.TargetUserID
	}
	res, err := s.svc.Simulate(r.Context(), target)
	switch {
	case errors.Is(err, ErrNoSimulationUsers), errors.Is(err, ErrUserNotFound):
		writeJSON(w, http.StatusOK, domain.SimulationResult{Error: err.Error()})
	case err != nil:
		s.writeError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) apps(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.store.appList())
}

func (s *Server) createApp(w http.ResponseWriter, r *http.Request) {
	var req domain.AppCreateRequest
	if err := decode(r, &req, false); err != nil || req.Name == "" {
		s.writeError(w, r, errBadRequest)
		return
	}
	id := s.svc.store.createApp(req)
	writeJSON(w, http.StatusOK, domain.CreatedAck{ID: id, Status: "created"})
}

func (s *Server) appUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.store.appUsers(chi.URLParam(r, "id")))
}

func (s *Server) createAppCredential(w http.ResponseWriter, r *http.Request) {
	var req domain.CredentialCreateRequest
	if err := decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	hash, err := s.svc.hashPassword(req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.svc.store.createCredential(chi.URLParam(r, "id"), req, hash)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.CreatedAck{ID: id, Status: "created"})
}

func (s *Server) loginWindows(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.store.loginWindows())
}

func (s *Server) createLoginWindow(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginWindow
	if err := decode(r, &req, false); err != nil || req.UserID == "" || req.AppID == "" {
		s.writeError(w, r, errBadRequest)
		return
	}
	id := s.svc.store.createLoginWindow(req)
	writeJSON(w, http.StatusOK, domain.CreatedAck{ID: id, Status: "created"})
}
