package demobackend

import (
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/xela07ax/riskwatch/internal/domain"
)

const (
	normalIPPrefix = "192.168.1."
	normalDevice   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0"
)

// SeedOptions: параметры демо-данных.
type SeedOptions struct {
	AdminPassword string
	UserPassword  string
	BcryptCost    int
	// Rand делает данные воспроизводимыми; nil: фиксированное зерно
	Rand *rand.Rand
}

func (o SeedOptions) withDefaults() SeedOptions {
	if o.AdminPassword == "" {
		o.AdminPassword = "admin123"
	}
	if o.UserPassword == "" {
		o.UserPassword = "user123"
	}
	if o.BcryptCost == 0 {
		o.BcryptCost = bcrypt.DefaultCost
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(42, 7))
	}
	return o
}

type seedUser struct {
	id, email, name, role, access string
	risk                          float64
	investigation                 bool
	ageDays                       int
	apps                          []string
}

var seedUsers = []seedUser{
	{"user_admin", "admin@zerotrust.io", "Admin User", domain.RoleAdmin, domain.AccessFull, 0.05, false, 30, nil},
	{"user_alice", "alice@zerotrust.io", "Alice Johnson", domain.RoleUser, domain.AccessFull, 0.12, false, 25, []string{"app_crm", "app_email", "app_files"}},
	{"user_bob", "bob@zerotrust.io", "Bob Smith", domain.RoleUser, domain.AccessRestricted, 0.35, false, 20, []string{"app_crm", "app_hr", "app_email"}},
	{"user_carol", "carol@zerotrust.io", "Carol White", domain.RoleUser, domain.AccessBlocked, 0.72, true, 15, []string{"app_crm", "app_email"}},
	{"user_dave", "dave@zerotrust.io", "Dave Martinez", domain.RoleUser, domain.AccessFull, 0.08, false, 10, []string{"app_crm", "app_email", "app_files", "app_analytics"}},
}

var seedApps = []struct{ id, name, desc, url string }{
	{"app_crm", "CRM Portal", "Customer relationship management", "https://crm.internal"},
	{"app_hr", "HR System", "Human resources", "https://hr.internal"},
	{"app_finance", "Finance Dashboard", "Financial reporting", "https://finance.internal"},
	{"app_email", "Email Server", "Corporate email", "https://mail.internal"},
	{"app_files", "File Storage", "Document management", "https://files.internal"},
	{"app_admin", "Admin Console", "System administration (restricted)", "https://admin.internal"},
	{"app_analytics", "Analytics Platform", "Business intelligence", "https://analytics.internal"},
}

// Seed наполняет пустой Store демо-данными: пользователи, приложения,
// неделя истории, инциденты Кэрол и живые сессии для экрана расследования.
func (s *Store) Seed(opts SeedOptions) error {
	opts = opts.withDefaults()
	rng := opts.Rand

	adminHash, err := bcrypt.GenerateFromPassword([]byte(opts.AdminPassword), opts.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	userHash, err := bcrypt.GenerateFromPassword([]byte(opts.UserPassword), opts.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash user password: %w", err)
	}
	credHash, err := bcrypt.GenerateFromPassword([]byte("cred123"), opts.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash credential password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.users) > 0 {
		return nil
	}
	now := s.now()

	for _, a := range seedApps {
		desc, url := a.desc, a.url
		s.apps = append(s.apps, domain.App{ID: a.id, Name: a.name, Description: &desc, URL: &url})
	}

	for i, su := range seedUsers {
		hash := userHash
		if su.role == domain.RoleAdmin {
			hash = adminHash
		}
		s.addUserLocked(&userRec{
			ID: su.id, Email: su.email, Name: su.name, Role: su.role,
			PasswordHash: hash, RiskScore: su.risk, AccessLevel: su.access,
			IsActive: true, UnderInvestigation: su.investigation,
			CreatedAt: now.AddDate(0, 0, -su.ageDays),
		})
		if su.role == domain.RoleAdmin {
			s.seedActivityLocked(su.id, now)
			continue
		}

		for _, app := range su.apps {
			s.creds = append(s.creds, credRec{
				AppCredential: domain.AppCredential{ID: newID(), UserID: su.id, Username: su.id[len("user_"):]},
				AppID:         app,
				PasswordHash:  credHash,
			})
		}
		s.windows = append(s.windows, domain.LoginWindow{
			ID: newID(), UserID: su.id, AppID: "app_crm", AllowedStart: "08:00", AllowedEnd: "20:00",
		})

		ip := fmt.Sprintf("%s%d", normalIPPrefix, 100+i-1)
		s.seedHistoryLocked(su.id, ip, now, rng)
		s.seedActivityLocked(su.id, now)
		s.seedLiveSessionLocked(su, ip, now, rng)
	}

	s.seedIncidentsLocked(now, rng)
	return nil
}

// seedHistoryLocked: семь завершенных сессий и соответствующие точки истории риска.
func (s *Store) seedHistoryLocked(userID, ip string, now time.Time, rng *rand.Rand) {
	for day := 7; day >= 1; day-- {
		hour := 8 + rng.IntN(11)
		start := now.Add(-time.Duration(day)*24*time.Hour - time.Duration(24-hour)*time.Hour)
		dur := time.Duration(15+rng.IntN(106)) * time.Minute
		last := domain.At(start.Add(dur))
		expires := domain.At(start.Add(24 * time.Hour))

		s.sessions = append(s.sessions, &sessionRec{
			UserSession: domain.UserSession{
				SessionID:         fmt.Sprintf("hist_%s_%d", userID, day),
				IPAddress:         ip,
				UserAgent:         normalDevice,
				StartTime:         domain.At(start),
				LastActivity:      &last,
				ExpiresAt:         &expires,
				LoginAttemptCount: 1,
				RiskAtLogin:       roundTo(0.02+rng.Float64()*0.13, 4),
				Revoked:           true,
			},
			UserID:        userID,
			Device:        normalDevice,
			Location:      "Office - New York",
			ActionCount:   5 + rng.IntN(26),
			DownloadCount: rng.IntN(9),
		})

		score := roundTo(0.02+rng.Float64()*0.16, 4)
		s.history[userID] = append(s.history[userID], domain.RiskHistoryEntry{
			OldScore:    roundTo(max(0, score-0.03), 4),
			NewScore:    score,
			Delta:       0.03,
			Factors:     []domain.RiskFactor{{Factor: "time_deviation", Weight: roundTo(rng.Float64()*2, 2)}},
			Timestamp:   domain.At(start),
			TriggeredBy: "session_evaluation",
		})
	}
}

// seedActivityLocked: закрытый визит в HR и открытый в Finance.
func (s *Store) seedActivityLocked(userID string, now time.Time) {
	hrEnter := now.Add(-2*time.Hour - 30*time.Minute)
	hrExit := now.Add(-2*time.Hour - 10*time.Minute)
	hrDwell := hrExit.Sub(hrEnter).Seconds()
	finEnter := now.Add(-45 * time.Minute)

	s.activity[userID] = append(s.activity[userID],
		logEntry("app_hr", domain.ActionEnterModule, "Module Entry", hrEnter),
		logEntry("app_hr", "View Dashboard", "Viewing Employee Directory", hrEnter.Add(5*time.Minute)),
		logEntry("app_hr", "Download HR File", "FILE: payroll_q1_fixed.pdf", hrEnter.Add(12*time.Minute)),
		logEntry("app_hr", domain.ActionExitModule, "Module Exit", hrExit),
		dwellEntry("app_hr", hrDwell, hrExit),
		logEntry("app_finance", domain.ActionEnterModule, "Module Entry", finEnter),
		logEntry("app_finance", "View Ledger", "Checking Q4 Projections", finEnter.Add(15*time.Minute)),
		logEntry("app_finance", "Simulated Export", "FILE: tax_returns_2025.xlsx", finEnter.Add(30*time.Minute)),
	)
	s.addDwellLocked(userID, "app_hr", hrDwell)
}

// seedLiveSessionLocked: текущая сессия, чтобы расследование показывало живые таймеры.
func (s *Store) seedLiveSessionLocked(su seedUser, ip string, now time.Time, rng *rand.Rand) {
	start := now.Add(-time.Duration(30+rng.IntN(150)) * time.Minute)
	last := domain.At(now.Add(-time.Duration(rng.IntN(10)) * time.Minute))
	expires := domain.At(start.Add(24 * time.Hour))
	attempts := 1
	if su.investigation {
		attempts = 4
	}
	s.sessions = append(s.sessions, &sessionRec{
		UserSession: domain.UserSession{
			SessionID:         newID(),
			IPAddress:         ip,
			UserAgent:         normalDevice,
			StartTime:         domain.At(start),
			LastActivity:      &last,
			ExpiresAt:         &expires,
			LoginAttemptCount: attempts,
			MFAVerified:       true,
			RiskAtLogin:       su.risk,
		},
		UserID:   su.id,
		Device:   normalDevice,
		Location: "Office - New York",
	})
}

func (s *Store) seedIncidentsLocked(now time.Time, rng *rand.Rand) {
	levels := []string{"high", "critical"}
	types := []string{"behavioral_anomaly", "geographic_anomaly", "download_spike"}
	descriptions := []string{
		"Unusual login pattern from unknown location",
		"Bulk data download exceeding limits",
		"Access from unregistered device",
	}
	for i := 0; i < 3; i++ {
		s.incidents = append(s.incidents, domain.Incident{
			ID:            newID(),
			UserID:        "user_carol",
			RiskLevel:     levels[rng.IntN(len(levels))],
			IncidentType:  types[rng.IntN(len(types))],
			Description:   descriptions[rng.IntN(len(descriptions))],
			AIExplanation: "Behavioral deviation from baseline detected. Multiple risk factors contributed.",
			Timestamp:     domain.At(now.AddDate(0, 0, -(1 + rng.IntN(5)))),
			ActionTaken:   "flagged",
		})
	}
	s.alerts = append(s.alerts,
		domain.Alert{
			ID: newID(), UserID: "user_carol", Severity: "critical", Status: "open",
			Description: "Multiple high-risk sessions in 24 hours",
			Timestamp:   domain.At(now.Add(-6 * time.Hour)),
		},
		domain.Alert{
			ID: newID(), UserID: "user_bob", Severity: "high", Status: "open",
			Description: "Login from new IP address detected",
			Timestamp:   domain.At(now.Add(-12 * time.Hour)),
		},
	)
}

func (s *Store) addDwellLocked(userID, app string, secs float64) {
	if s.dwell[userID] == nil {
		s.dwell[userID] = make(map[string]float64)
	}
	s.dwell[userID][app] += secs
}

func logEntry(app, action, details string, at time.Time) domain.LogEntry {
	return domain.LogEntry{
		ID:        newID(),
		AppID:     app,
		Action:    action,
		Details:   &details,
		Metadata:  map[string]any{},
		Timestamp: domain.At(at),
	}
}

func dwellEntry(app string, secs float64, at time.Time) domain.LogEntry {
	return domain.LogEntry{
		ID:        newID(),
		AppID:     app,
		Action:    "module_dwell",
		Duration:  &secs,
		Metadata:  map[string]any{},
		Timestamp: domain.At(at),
	}
}
