package demobackend

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/xela07ax/riskwatch/internal/domain"
)

var (
	attackIPs     = []string{"185.220.101.42", "91.219.236.136", "103.47.132.10", "198.51.100.77"}
	attackDevices = []string{
		"curl/7.68.0 automated-script",
		"Python-urllib/3.8 data-scraper",
		"Mozilla/5.0 Kali-Linux-Bot",
	}
	attackHours     = []int{0, 1, 2, 3, 23}
	attackLocations = []string{"Tor Network", "Moscow, Russia", "Beijing, China"}
)

// riskComponent: фактор композитного риска. Веса в сумме дают 1.
type riskComponent struct {
	factor string
	weight float64
}

var riskComponents = []riskComponent{
	{"time_deviation", 0.15},
	{"device_mismatch", 0.15},
	{"ip_location", 0.15},
	{"behavioral_anomaly", 0.20},
	{"download_spike", 0.15},
	{"unauthorized_service", 0.15},
	{"login_attempts", 0.05},
}

type attack struct {
	ip        string
	device    string
	hour      int
	downloads int
	actions   int
	location  string
}

func randomAttack(rng *rand.Rand) attack {
	return attack{
		ip:        attackIPs[rng.IntN(len(attackIPs))],
		device:    attackDevices[rng.IntN(len(attackDevices))],
		hour:      attackHours[rng.IntN(len(attackHours))],
		downloads: 50 + rng.IntN(151),
		actions:   150 + rng.IntN(151),
		location:  attackLocations[rng.IntN(len(attackLocations))],
	}
}

// score: эвристика, а не риск-движок. Неизвестные устройство и IP дают максимум,
// ночной вход почти максимум, объемы масштабируются линейно.
func (a attack) score() domain.RiskResult {
	raw := map[string]float64{
		"time_deviation":       90,
		"device_mismatch":      100,
		"ip_location":          100,
		"behavioral_anomaly":   math.Min(100, float64(a.actions)/3),
		"download_spike":       math.Min(100, float64(a.downloads)/2),
		"unauthorized_service": 100,
		"login_attempts":       10,
	}

	res := domain.RiskResult{Breakdown: make([]domain.RiskBreakdown, 0, len(riskComponents))}
	var total float64
	for _, c := range riskComponents {
		r := roundTo(raw[c.factor], 1)
		total += r * c.weight
		res.Breakdown = append(res.Breakdown, domain.RiskBreakdown{Factor: c.factor, RawRisk: r, Status: breakdownStatus(r)})
	}
	res.Score = roundTo(total, 1)
	res.Level = riskLevel(res.Score)
	return res
}

func breakdownStatus(raw float64) string {
	switch {
	case raw >= 70:
		return "critical"
	case raw >= 40:
		return "warning"
	default:
		return "ok"
	}
}

// simulate разыгрывает атаку на пользователя: подозрительная сессия, всплеск
// активности, инцидент и алерт, блокировка учетной записи.
// Пустой targetID: случайный пользователь с ролью user.
func (s *Store) simulate(targetID string, rng *rand.Rand) (domain.SimulationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if targetID == "" {
		candidates := make([]string, 0, len(s.order))
		for _, id := range s.order {
			if s.users[id].Role == domain.RoleUser {
				candidates = append(candidates, id)
			}
		}
		if len(candidates) == 0 {
			return domain.SimulationResult{}, ErrNoSimulationUsers
		}
		targetID = candidates[rng.IntN(len(candidates))]
	}
	target, ok := s.users[targetID]
	if !ok {
		return domain.SimulationResult{}, ErrUserNotFound
	}

	now := s.now()
	a := randomAttack(rng)
	login := time.Date(now.Year(), now.Month(), now.Day(), a.hour, rng.IntN(60), 0, 0, time.UTC)
	risk := a.score()

	last := domain.At(now)
	expires := domain.At(now.Add(24 * time.Hour))
	sessionID := newID()
	s.sessions = append(s.sessions, &sessionRec{
		UserSession: domain.UserSession{
			SessionID:         sessionID,
			IPAddress:         a.ip,
			UserAgent:         a.device,
			StartTime:         domain.At(login),
			LastActivity:      &last,
			ExpiresAt:         &expires,
			LoginAttemptCount: 1 + rng.IntN(15),
			RiskAtLogin:       roundTo(risk.Score/100, 4),
		},
		UserID:        targetID,
		Device:        a.device,
		Location:      a.location,
		ActionCount:   a.actions,
		DownloadCount: a.downloads,
	})

	enter := now.Add(-10 * time.Minute)
	s.activity[targetID] = append(s.activity[targetID],
		logEntry("app_admin", domain.ActionEnterModule, "Module Entry", enter),
		logEntry("app_admin", "Simulated Export", "FILE: database_backup.sql", enter.Add(4*time.Minute)),
		logEntry("app_finance", domain.ActionEnterModule, "Module Entry", enter.Add(6*time.Minute)),
		logEntry("app_finance", "Simulated Export", "FILE: company_financials.csv", enter.Add(8*time.Minute)),
	)

	factors := make([]domain.RiskFactor, 0, len(risk.Breakdown))
	for i, b := range risk.Breakdown {
		factors = append(factors, domain.RiskFactor{Factor: b.Factor, Weight: roundTo(b.RawRisk*riskComponents[i].weight, 2)})
	}
	newScore := roundTo(risk.Score/100, 4)
	s.history[targetID] = append(s.history[targetID], domain.RiskHistoryEntry{
		OldScore:    target.RiskScore,
		NewScore:    newScore,
		Delta:       roundTo(newScore-target.RiskScore, 4),
		Factors:     factors,
		Timestamp:   domain.At(now),
		TriggeredBy: "simulated_attack",
	})
	target.RiskScore = newScore
	target.AccessLevel = domain.AccessBlocked
	target.UnderInvestigation = true

	incidentID := newID()
	s.incidents = append(s.incidents, domain.Incident{
		ID:           incidentID,
		UserID:       targetID,
		RiskLevel:    "critical",
		IncidentType: "simulated_attack",
		Description: fmt.Sprintf("SIMULATED ATTACK: Session from %s at %d:00. %d downloads, unauthorized service access.",
			a.ip, a.hour, a.downloads),
		AIExplanation: "Composite risk exceeded the blocking threshold.",
		Timestamp:     domain.At(now),
		ActionTaken:   "blocked",
	})
	s.alerts = append(s.alerts, domain.Alert{
		ID:          newID(),
		UserID:      targetID,
		Severity:    "critical",
		Status:      "open",
		Description: fmt.Sprintf("ATTACK SIM: %s blocked. Risk %g/100", target.Name, risk.Score),
		Timestamp:   domain.At(now),
	})

	return domain.SimulationResult{
		Status:     "attack_simulated",
		TargetUser: &domain.TargetUser{ID: targetID, Name: target.Name, Email: target.Email},
		AttackDetails: &domain.AttackDetails{
			IPAddress:            a.ip,
			Device:               a.device,
			LoginHour:            fmt.Sprintf("%d:00", a.hour),
			Downloads:            a.downloads,
			Actions:              a.actions,
			UnauthorizedServices: []string{"Admin Console", "Finance Dashboard"},
		},
		RiskResult:  &risk,
		SessionID:   sessionID,
		IncidentID:  incidentID,
		ActionTaken: "Session blocked + Alert generated",
	}, nil
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
