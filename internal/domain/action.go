package domain

import "fmt"

// AdminAction: административная команда над пользователем.
type AdminAction string

const (
	ActionLockAccount     AdminAction = "lock_account"
	ActionUnblock         AdminAction = "unblock"
	ActionForceLogout     AdminAction = "force_logout"
	ActionInvestigate     AdminAction = "investigate"
	ActionMarkSafe        AdminAction = "mark_safe"
	ActionResolveIncident AdminAction = "resolve_incident"
)

// AllActions: команды в порядке показа оператору.
var AllActions = []AdminAction{
	ActionLockAccount, ActionUnblock, ActionForceLogout,
	ActionInvestigate, ActionMarkSafe, ActionResolveIncident,
}

// Known сообщает, знает ли бэкенд такую команду.
func (a AdminAction) Known() bool {
	switch a {
	case ActionLockAccount, ActionUnblock, ActionForceLogout,
		ActionInvestigate, ActionMarkSafe, ActionResolveIncident:
		return true
	}
	return false
}

// ProjectAccessLevel: локальный прогноз последствия команды для уровня доступа.
// Известны только lock и unblock, для остальных уровень не меняется.
func (a AdminAction) ProjectAccessLevel(current string) string {
	switch a {
	case ActionLockAccount:
		return AccessBlocked
	case ActionUnblock:
		return AccessFull
	default:
		return current
	}
}

// DefaultReason: причина, с которой консоль отправляет ручную команду.
func (a AdminAction) DefaultReason() string {
	return fmt.Sprintf("Admin manual action: %s", a)
}

type ActionRequest struct {
	Action AdminAction `json:"action"`
	Reason string      `json:"reason"`
}

// ActionAck: подтверждение бэкенда.
type ActionAck struct {
	Status string      `json:"status"`
	Action AdminAction `json:"action"`
}
