package demobackend

import (
	"github.com/xela07ax/riskwatch/internal/domain"
)

// accountState: снимок полей, которые журнал аудита пишет до и после команды.
type accountState struct {
	IsActive           bool   `json:"is_active"`
	AccessLevel        string `json:"access_level"`
	UnderInvestigation bool   `json:"is_under_investigation"`
}

func (a accountState) asMap() map[string]any {
	return map[string]any{
		"is_active":              a.IsActive,
		"access_level":           a.AccessLevel,
		"is_under_investigation": a.UnderInvestigation,
	}
}

func stateOf(u *userRec) accountState {
	return accountState{IsActive: u.IsActive, AccessLevel: u.AccessLevel, UnderInvestigation: u.UnderInvestigation}
}

// applyAction выполняет административную команду над пользователем.
// lock_account и force_logout отзывают все его сессии: следующий запрос с
// его токеном получит 401.
func (s *Store) applyAction(userID string, action domain.AdminAction) (before, after accountState, err error) {
	if !action.Known() {
		return before, after, ErrUnknownAction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return before, after, ErrUserNotFound
	}
	before = stateOf(u)

	switch action {
	case domain.ActionLockAccount:
		u.IsActive = false
		u.AccessLevel = domain.AccessBlocked
		s.revokeSessionsLocked(userID)
	case domain.ActionForceLogout:
		s.revokeSessionsLocked(userID)
	case domain.ActionInvestigate:
		u.UnderInvestigation = true
	case domain.ActionMarkSafe:
		u.UnderInvestigation = false
		u.RiskScore = 0
		u.AccessLevel = domain.AccessFull
		u.IsActive = true
	case domain.ActionUnblock:
		u.AccessLevel = domain.AccessFull
		u.IsActive = true
	case domain.ActionResolveIncident:
		u.RiskScore = 0
		u.UnderInvestigation = false
		for i := range s.incidents {
			if s.incidents[i].UserID == userID {
				s.incidents[i].Resolved = true
			}
		}
		for i := range s.alerts {
			if s.alerts[i].UserID == userID {
				s.alerts[i].Status = "resolved"
				s.alerts[i].Acknowledged = true
			}
		}
	}
	return before, stateOf(u), nil
}

func (s *Store) revokeSessionsLocked(userID string) {
	for _, rec := range s.sessions {
		if rec.UserID == userID {
			rec.Revoked = true
		}
	}
}
