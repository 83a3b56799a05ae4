package view

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xela07ax/riskwatch/internal/domain"
	"github.com/xela07ax/riskwatch/internal/engine"
)

// Input: все, от чего зависит экран. Проекция только читает его.
type Input struct {
	Metrics    *domain.MetricsSnapshot
	Selection  *engine.SelectedUser
	History    []domain.RiskHistoryEntry
	Sessions   []domain.UserSession
	Activity   *domain.ActivityAnalytics
	Simulation *domain.SimulationResult
	Loading    bool
	Query      string
}

// FromReadModel собирает Input из снимка движка.
func FromReadModel(m engine.ReadModel, query string) Input {
	return Input{
		Metrics:    m.Metrics,
		Selection:  m.Selection,
		History:    m.Detail.RiskHistory,
		Sessions:   m.Detail.Sessions,
		Activity:   m.Detail.Activity,
		Simulation: m.Simulation,
		Loading:    m.Detail.Loading,
		Query:      query,
	}
}

type Card struct {
	Label string
	Value string
}

type RiskRow struct {
	UserID   string
	Name     string
	Email    string
	Role     string
	Percent  int
	Tier     Tier
	Color    string
	Selected bool
}

type TrendPoint struct {
	At      time.Time
	Percent int
}

type FactorBar struct {
	Label  string
	Weight float64
	Width  int
}

type SessionRow struct {
	SessionID  string
	IPAddress  string
	Device     string
	MFA        bool
	Revoked    bool
	Start      time.Time
	ExpiresAt  *domain.Timestamp
	Attempts   string
	BruteForce bool
	Status     Status

	// Заполняются по часам, см. Clock
	Duration  string
	Remaining string
}

type DwellRow struct {
	Module   string
	Duration string
}

type ActivityRow struct {
	ID      string
	Label   string
	Module  string
	Marker  string
	At      time.Time
	Details string
	Dwell   string
}

// Маркеры строки активности
const (
	MarkerEnter = "enter"
	MarkerExit  = "exit"
	MarkerFile  = "file"
	MarkerOther = "other"
)

type Investigation struct {
	UserID      string
	Name        string
	Email       string
	Role        string
	Percent     int
	Tier        Tier
	AccessLevel string
	// Optimistic: уровень доступа спрогнозирован и еще не подтвержден бэкендом
	Optimistic bool
	Origin     domain.AdminAction
	// LockAction: какую команду предлагает кнопка блокировки
	LockAction domain.AdminAction
	Loading    bool

	Trend          []TrendPoint
	Factors        []FactorBar
	Sessions       []SessionRow
	MostUsedModule string
	Dwell          []DwellRow
	Activity       []ActivityRow
}

type BreakdownRow struct {
	Label   string
	RawRisk float64
	Width   int
	Status  Status
}

type SimulationView struct {
	Target      string
	Score       string
	Tier        Tier
	IPAddress   string
	Downloads   int
	LoginHour   string
	Breakdown   []BreakdownRow
	ActionTaken string
}

// Dashboard: готовые к отрисовке поля экрана.
type Dashboard struct {
	Cards         []Card
	TopRisks      []RiskRow
	Investigation *Investigation
	Simulation    *SimulationView
}

// Project: чистая функция от входа и текущего времени.
func Project(in Input, now time.Time) Dashboard {
	return Clock(Static(in), now)
}

// Static: часть проекции, не зависящая от времени. Пересчитывается только
// при изменении данных.
func Static(in Input) Dashboard {
	var d Dashboard
	if in.Metrics != nil {
		d.Cards = cards(in.Metrics)
		d.TopRisks = riskRows(in.Metrics.TopRisks, in.Selection, in.Query)
	}
	if in.Selection != nil {
		d.Investigation = investigation(in)
	}
	if in.Simulation != nil {
		d.Simulation = simulation(in.Simulation)
	}
	return d
}

// Clock дописывает длительности сессий на момент now. Исходная проекция не меняется.
func Clock(d Dashboard, now time.Time) Dashboard {
	if d.Investigation == nil || len(d.Investigation.Sessions) == 0 {
		return d
	}
	inv := *d.Investigation
	rows := make([]SessionRow, len(inv.Sessions))
	for i, r := range inv.Sessions {
		r.Duration = Elapsed(r.Start, now)
		r.Remaining = Remaining(r.ExpiresAt, now)
		rows[i] = r
	}
	inv.Sessions = rows
	d.Investigation = &inv
	return d
}

func cards(m *domain.MetricsSnapshot) []Card {
	itoa := strconv.Itoa
	return []Card{
		{"Total Users", itoa(m.TotalUsers)},
		{"Active Users", itoa(m.ActiveUsers)},
		{"Critical Risks", itoa(m.CriticalRisks)},
		{"Suspicious Sessions", itoa(m.SuspiciousSessions)},
		{"Blocked Accounts", itoa(m.BlockedAccounts)},
		{"Recent Alerts", itoa(m.RecentAlerts)},
		{"Incidents (24h)", itoa(m.Incidents24h)},
		{"Avg Risk Score", fmt.Sprintf("%d%%", Percent(m.AvgRiskScore))},
		{"Attack Attempts", itoa(m.AttackAttempts)},
		{"Resolved by Admin", itoa(m.ResolvedByAdmin)},
	}
}

func riskRows(entries []domain.RiskEntry, sel *engine.SelectedUser, query string) []RiskRow {
	filtered := SearchRisks(entries, query)
	rows := make([]RiskRow, 0, len(filtered))
	for _, e := range filtered {
		tier := TierOf(e.RiskLevel)
		rows = append(rows, RiskRow{
			UserID:   e.UserID,
			Name:     e.Name,
			Email:    e.Email,
			Role:     e.Role,
			Percent:  Percent(e.RiskScore),
			Tier:     tier,
			Color:    tier.Color(),
			Selected: sel != nil && sel.Entry.UserID == e.UserID,
		})
	}
	return rows
}

func investigation(in Input) *Investigation {
	e := in.Selection.Entry
	inv := &Investigation{
		UserID:      e.UserID,
		Name:        e.Name,
		Email:       e.Email,
		Role:        e.Role,
		Percent:     Percent(e.RiskScore),
		Tier:        TierOf(e.RiskLevel),
		AccessLevel: e.AccessLevel,
		Optimistic:  in.Selection.Provenance == engine.Optimistic,
		Origin:      in.Selection.Origin,
		LockAction:  domain.ActionLockAccount,
		Loading:     in.Loading,
	}
	if e.AccessLevel == domain.AccessBlocked {
		inv.LockAction = domain.ActionUnblock
	}

	history := chronological(in.History)
	inv.Trend = make([]TrendPoint, len(history))
	for i, h := range history {
		inv.Trend[i] = TrendPoint{At: h.Timestamp.Time, Percent: Percent(h.NewScore)}
	}
	if n := len(history); n > 0 {
		inv.Factors = factorBars(history[n-1].Factors)
	}

	inv.Sessions = sessionRows(in.Sessions)
	inv.MostUsedModule, inv.Dwell, inv.Activity = activity(in.Activity)
	return inv
}

// chronological возвращает копию истории по возрастанию времени.
// Порядок ответа бэкенда не важен.
func chronological(h []domain.RiskHistoryEntry) []domain.RiskHistoryEntry {
	out := append([]domain.RiskHistoryEntry(nil), h...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp.Time)
	})
	return out
}

func factorBars(factors []domain.RiskFactor) []FactorBar {
	bars := make([]FactorBar, len(factors))
	for i, f := range factors {
		bars[i] = FactorBar{Label: humanize(f.Factor), Weight: f.Weight, Width: BarWidth(f.Weight)}
	}
	return bars
}

func sessionRows(sessions []domain.UserSession) []SessionRow {
	rows := make([]SessionRow, len(sessions))
	for i, s := range sessions {
		device := s.UserAgent
		if device == "" {
			device = "Unknown Device"
		}
		label := "(First try)"
		if s.LoginAttemptCount > 1 {
			label = "(Brute-force Risk)"
		}
		rows[i] = SessionRow{
			SessionID:  s.SessionID,
			IPAddress:  s.IPAddress,
			Device:     device,
			MFA:        s.MFAVerified,
			Revoked:    s.Revoked,
			Start:      s.StartTime.Time,
			ExpiresAt:  s.ExpiresAt,
			Attempts:   fmt.Sprintf("%d %s", s.LoginAttemptCount, label),
			BruteForce: s.LoginAttemptCount > 1,
			Status:     SessionStatus(s.RiskAtLogin),
		}
	}
	return rows
}

func activity(a *domain.ActivityAnalytics) (string, []DwellRow, []ActivityRow) {
	if a == nil {
		return "PENDING", nil, nil
	}
	most := "PENDING"
	if a.MostUsedModule != nil && *a.MostUsedModule != "" {
		most = moduleLabel(*a.MostUsedModule)
	}

	modules := make([]string, 0, len(a.ModuleDurations))
	for m := range a.ModuleDurations {
		modules = append(modules, m)
	}
	sort.Strings(modules)
	dwell := make([]DwellRow, len(modules))
	for i, m := range modules {
		secs := a.ModuleDurations[m]
		dwell[i] = DwellRow{Module: moduleLabel(m), Duration: FormatDuration(time.Duration(secs * float64(time.Second)))}
	}

	rows := make([]ActivityRow, len(a.RecentLogs))
	for i, l := range a.RecentLogs {
		details := "-"
		if l.Details != nil && *l.Details != "" {
			details = *l.Details
		}
		row := ActivityRow{
			ID:      l.ID,
			Label:   humanize(l.Action),
			Module:  moduleLabel(l.AppID),
			Marker:  marker(l),
			At:      l.Timestamp.Time,
			Details: details,
		}
		if l.Duration != nil && *l.Duration > 0 {
			row.Dwell = fmt.Sprintf("[%ds dwell]", int64(*l.Duration+0.5))
		}
		rows[i] = row
	}
	return most, dwell, rows
}

func marker(l domain.LogEntry) string {
	switch {
	case l.Action == domain.ActionEnterModule:
		return MarkerEnter
	case l.Action == domain.ActionExitModule:
		return MarkerExit
	case strings.Contains(l.Action, "Download"), l.Details != nil && strings.Contains(*l.Details, "FILE:"):
		return MarkerFile
	default:
		return MarkerOther
	}
}

func simulation(s *domain.SimulationResult) *SimulationView {
	v := &SimulationView{Target: "unknown", Score: "?", Tier: TierUnknown, ActionTaken: s.ActionTaken}
	if s.TargetUser != nil && s.TargetUser.Name != "" {
		v.Target = s.TargetUser.Name
	}
	if s.AttackDetails != nil {
		v.IPAddress = s.AttackDetails.IPAddress
		v.Downloads = s.AttackDetails.Downloads
		v.LoginHour = s.AttackDetails.LoginHour
	}
	if r := s.RiskResult; r != nil {
		v.Score = strconv.FormatFloat(r.Score, 'f', -1, 64) + "/100"
		v.Tier = LevelFromPercent(r.Score)
		for _, b := range r.Breakdown {
			w := int(b.RawRisk + 0.5)
			if w > 100 {
				w = 100
			}
			if w < 0 {
				w = 0
			}
			v.Breakdown = append(v.Breakdown, BreakdownRow{
				Label:   humanize(b.Factor),
				RawRisk: b.RawRisk,
				Width:   w,
				Status:  StatusOf(b.Status),
			})
		}
	}
	return v
}

func humanize(s string) string { return strings.ReplaceAll(s, "_", " ") }

// moduleLabel: "app_finance" -> "FINANCE".
func moduleLabel(id string) string {
	return strings.ToUpper(strings.Replace(id, "app_", "", 1))
}
