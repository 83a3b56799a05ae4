package demobackend

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xela07ax/riskwatch/internal/domain"
)

var (
	ErrUserNotFound      = errors.New("User not found")
	ErrEmailTaken        = errors.New("Email already registered")
	ErrInvalidCreds      = errors.New("Invalid credentials")
	ErrSessionRevoked    = errors.New("Session revoked or invalid")
	ErrSessionExpired    = errors.New("Session expired")
	ErrNotFound          = errors.New("User or Application not found")
	ErrUnknownAction     = errors.New("Unknown action")
	ErrNoSimulationUsers = errors.New("No users for simulation")
)

const (
	recentLimit   = 50
	listLimit     = 100
	auditLimit    = 200
	topRisksLimit = 5
	activeWindow  = 30 * time.Minute
)

type userRec struct {
	ID                 string
	Email              string
	Name               string
	Role               string
	PasswordHash       []byte
	RiskScore          float64
	AccessLevel        string
	IsActive           bool
	UnderInvestigation bool
	CreatedAt          time.Time
	FailedLogins       int
}

type sessionRec struct {
	domain.UserSession
	UserID        string
	Device        string
	Location      string
	ActionCount   int
	DownloadCount int
}

type credRec struct {
	domain.AppCredential
	AppID        string
	PasswordHash []byte
}

// Store: in-memory состояние демо-бэкенда. Все методы потокобезопасны и
// отдают копии, наружу указатели на внутренние записи не уходят.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	users     map[string]*userRec
	order     []string
	sessions  []*sessionRec
	history   map[string][]domain.RiskHistoryEntry // старые первыми
	activity  map[string][]domain.LogEntry         // старые первыми
	dwell     map[string]map[string]float64
	incidents []domain.Incident
	alerts    []domain.Alert
	apps      []domain.App
	creds     []credRec
	windows   []domain.LoginWindow
	audit     []domain.AuditRecord
}

func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Store{
		now:      now,
		users:    make(map[string]*userRec),
		history:  make(map[string][]domain.RiskHistoryEntry),
		activity: make(map[string][]domain.LogEntry),
		dwell:    make(map[string]map[string]float64),
	}
}

func newID() string { return uuid.NewString() }

func (s *Store) addUserLocked(u *userRec) {
	s.users[u.ID] = u
	s.order = append(s.order, u.ID)
}

// --- Вход и сессии ---

// userByEmail возвращает копию записи пользователя.
func (s *Store) userByEmail(email string) (userRec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if u := s.users[id]; strings.EqualFold(u.Email, email) {
			return *u, true
		}
	}
	return userRec{}, false
}

func (s *Store) createUser(req domain.RegisterRequest, hash []byte) (userRec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, req.Email) {
			return userRec{}, ErrEmailTaken
		}
	}
	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}
	u := &userRec{
		ID: newID(), Email: req.Email, Name: req.Name, Role: role,
		PasswordHash: hash, AccessLevel: domain.AccessFull, IsActive: true,
		CreatedAt: s.now(),
	}
	s.addUserLocked(u)
	return *u, nil
}

func (s *Store) failedLogin(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.FailedLogins++
	}
}

// openSession заводит сессию входа. attempts: номер попытки с учетом неудачных.
func (s *Store) openSession(userID, ip, userAgent string, ttl time.Duration, mfaVerified bool) domain.UserSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	attempts := 1
	risk := 0.0
	if u, ok := s.users[userID]; ok {
		attempts = u.FailedLogins + 1
		u.FailedLogins = 0
		risk = u.RiskScore
	}
	if len(userAgent) > 60 {
		userAgent = userAgent[:60]
	}
	expires := domain.At(now.Add(ttl))
	last := domain.At(now)
	rec := &sessionRec{
		UserSession: domain.UserSession{
			SessionID:         newID(),
			IPAddress:         ip,
			UserAgent:         userAgent,
			StartTime:         domain.At(now),
			LastActivity:      &last,
			ExpiresAt:         &expires,
			LoginAttemptCount: attempts,
			MFAVerified:       mfaVerified,
			RiskAtLogin:       risk,
		},
		UserID:   userID,
		Device:   userAgent,
		Location: "Detected",
	}
	s.sessions = append(s.sessions, rec)
	return rec.UserSession
}

func (s *Store) sessionLocked(sessionID string) *sessionRec {
	for _, rec := range s.sessions {
		if rec.SessionID == sessionID {
			return rec
		}
	}
	return nil
}

// checkSession подтверждает, что сессия токена жива, и продлевает last_activity.
func (s *Store) checkSession(userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.sessionLocked(sessionID)
	if rec == nil || rec.UserID != userID || rec.Revoked {
		return ErrSessionRevoked
	}
	now := s.now()
	if rec.ExpiresAt != nil && rec.ExpiresAt.Before(now) {
		return ErrSessionExpired
	}
	if _, ok := s.users[userID]; !ok {
		return ErrUserNotFound
	}
	last := domain.At(now)
	rec.LastActivity = &last
	return nil
}

func (s *Store) verifyMFA(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.sessionLocked(sessionID)
	if rec == nil || rec.Revoked {
		return ErrSessionRevoked
	}
	rec.MFAVerified = true
	return nil
}

func (s *Store) profile(userID string) (domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.UserProfile{}, ErrUserNotFound
	}
	return domain.UserProfile{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, Access: u.AccessLevel}, nil
}

// --- Чтение для админки ---

// dashboard: агрегаты системы, как их считает риск-движок.
func (s *Store) dashboard() domain.MetricsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var snap domain.MetricsSnapshot
	snap.TotalUsers = len(s.users)

	var sum float64
	for _, u := range s.users {
		sum += u.RiskScore
		if u.RiskScore > 0.6 {
			snap.CriticalRisks++
		}
		if u.AccessLevel == domain.AccessBlocked || !u.IsActive {
			snap.BlockedAccounts++
		}
	}
	if len(s.users) > 0 {
		snap.AvgRiskScore = roundTo(sum/float64(len(s.users)), 4)
	}

	for _, rec := range s.sessions {
		if rec.Revoked {
			continue
		}
		if rec.LastActivity != nil && !rec.LastActivity.Before(now.Add(-activeWindow)) {
			snap.ActiveUsers++
		}
		if rec.RiskAtLogin >= 0.3 {
			snap.SuspiciousSessions++
		}
	}

	dayAgo := now.Add(-24 * time.Hour)
	for _, a := range s.alerts {
		if !a.Timestamp.Before(dayAgo) {
			snap.RecentAlerts++
		}
	}
	for _, inc := range s.incidents {
		if !inc.Timestamp.Before(dayAgo) {
			snap.Incidents24h++
		}
		if inc.IncidentType == "simulated_attack" || inc.IncidentType == "high_risk_session" {
			snap.AttackAttempts++
		}
	}
	for _, a := range s.audit {
		switch a.Action {
		case string(domain.ActionMarkSafe), string(domain.ActionUnblock), "dismiss_alert", string(domain.ActionResolveIncident):
			snap.ResolvedByAdmin++
		}
	}

	ranked := make([]*userRec, 0, len(s.order))
	for _, id := range s.order {
		ranked = append(ranked, s.users[id])
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].RiskScore > ranked[j].RiskScore })
	if len(ranked) > topRisksLimit {
		ranked = ranked[:topRisksLimit]
	}
	snap.TopRisks = make([]domain.RiskEntry, 0, len(ranked))
	for _, u := range ranked {
		snap.TopRisks = append(snap.TopRisks, domain.RiskEntry{
			UserID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role,
			RiskScore:   u.RiskScore,
			RiskLevel:   riskLevel(u.RiskScore * 100),
			AccessLevel: u.AccessLevel,
		})
	}
	return snap
}

func (s *Store) userRecords() []domain.UserRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserRecord, 0, len(s.order))
	for _, id := range s.order {
		u := s.users[id]
		created := domain.At(u.CreatedAt)
		out = append(out, domain.UserRecord{
			ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, CreatedAt: &created,
			RiskScore: u.RiskScore, AccessLevel: u.AccessLevel,
			IsUnderInvestigation: u.UnderInvestigation, IsActive: u.IsActive,
		})
	}
	return out
}

func (s *Store) incidentList() []domain.Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]domain.Incident(nil), s.incidents...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp.Time) })
	return limit(out, listLimit)
}

func (s *Store) alertList() []domain.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		a.UserName = "Unknown"
		if u, ok := s.users[a.UserID]; ok {
			a.UserName = u.Name
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp.Time) })
	return limit(out, listLimit)
}

func (s *Store) activeSessions() []domain.ActiveSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ActiveSession, 0)
	for _, rec := range s.sessions {
		if rec.Revoked {
			continue
		}
		row := domain.ActiveSession{
			SessionID: rec.SessionID, UserID: rec.UserID,
			UserName: "Unknown", UserEmail: "Unknown",
			IPAddress: rec.IPAddress, Device: rec.Device,
			StartTime: rec.StartTime, LastActivity: rec.LastActivity, ExpiresAt: rec.ExpiresAt,
			LoginAttemptCount: rec.LoginAttemptCount, RiskAtLogin: rec.RiskAtLogin,
			Location: rec.Location, ActionCount: rec.ActionCount, DownloadCount: rec.DownloadCount,
		}
		if u, ok := s.users[rec.UserID]; ok {
			row.UserName, row.UserEmail, row.RiskScore = u.Name, u.Email, u.RiskScore
		}
		out = append(out, row)
	}
	sortByLastActivity(out, func(a domain.ActiveSession) *domain.Timestamp { return a.LastActivity })
	return out
}

func (s *Store) auditTrail() []domain.AuditRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditRecord, 0, len(s.audit))
	for i := len(s.audit) - 1; i >= 0; i-- {
		out = append(out, s.audit[i])
	}
	return limit(out, auditLimit)
}

func (s *Store) appendAudit(rec domain.AuditRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, rec)
}

// --- Детали пользователя ---

func (s *Store) riskHistory(userID string) []domain.RiskHistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := s.history[userID]
	out := make([]domain.RiskHistoryEntry, 0, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		out = append(out, h[i])
	}
	return limit(out, recentLimit)
}

func (s *Store) userSessions(userID string) []domain.UserSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserSession, 0)
	for _, rec := range s.sessions {
		if rec.UserID == userID {
			out = append(out, rec.UserSession)
		}
	}
	sortByLastActivity(out, func(u domain.UserSession) *domain.Timestamp { return u.LastActivity })
	return out
}

func (s *Store) activityAnalytics(userID string) domain.ActivityAnalytics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := s.activity[userID]
	res := domain.ActivityAnalytics{
		RecentLogs:      make([]domain.LogEntry, 0, len(logs)),
		ModuleDurations: make(map[string]float64),
	}
	for i := len(logs) - 1; i >= 0; i-- {
		res.RecentLogs = append(res.RecentLogs, logs[i])
	}
	res.RecentLogs = limit(res.RecentLogs, recentLimit)

	enters := make(map[string]int)
	for _, l := range logs {
		if l.Action == domain.ActionEnterModule {
			enters[l.AppID]++
		}
	}
	best, bestN := "", 0
	for app, n := range enters {
		if n > bestN || (n == bestN && app < best) {
			best, bestN = app, n
		}
	}
	if best != "" {
		res.MostUsedModule = &best
	}
	for app, d := range s.dwell[userID] {
		res.ModuleDurations[app] = d
	}
	return res
}

// --- Справочники ---

func (s *Store) appList() []domain.App {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.App(nil), s.apps...)
}

func (s *Store) createApp(req domain.AppCreateRequest) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := newID()
	s.apps = append(s.apps, domain.App{ID: id, Name: req.Name, Description: req.Description, URL: req.URL})
	return id
}

func (s *Store) appUsers(appID string) []domain.AppCredential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AppCredential, 0)
	for _, c := range s.creds {
		if c.AppID == appID {
			out = append(out, c.AppCredential)
		}
	}
	return out
}

func (s *Store) createCredential(appID string, req domain.CredentialCreateRequest, hash []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[req.UserID]; !ok || !s.hasAppLocked(appID) {
		return "", ErrNotFound
	}
	id := newID()
	s.creds = append(s.creds, credRec{
		AppCredential: domain.AppCredential{ID: id, UserID: req.UserID, Username: req.Username},
		AppID:         appID,
		PasswordHash:  hash,
	})
	return id, nil
}

func (s *Store) hasAppLocked(appID string) bool {
	for _, a := range s.apps {
		if a.ID == appID {
			return true
		}
	}
	return false
}

func (s *Store) loginWindows() []domain.LoginWindow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.LoginWindow(nil), s.windows...)
}

func (s *Store) createLoginWindow(w domain.LoginWindow) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.ID = newID()
	s.windows = append(s.windows, w)
	return w.ID
}

// --- Хелперы ---

// riskLevel: уровень по шкале 0..100.
func riskLevel(score float64) string {
	switch {
	case score <= 30:
		return "low"
	case score <= 60:
		return "medium"
	case score <= 80:
		return "high"
	default:
		return "critical"
	}
}

func limit[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// sortByLastActivity: свежие первыми, сессии без активности в конце.
func sortByLastActivity[T any](items []T, last func(T) *domain.Timestamp) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := last(items[i]), last(items[j])
		if a == nil || b == nil {
			return a != nil
		}
		return a.After(b.Time)
	})
}
