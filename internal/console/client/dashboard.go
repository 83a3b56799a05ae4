package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/xela07ax/riskwatch/internal/domain"
)

func userPath(userID, suffix string) string {
	return "/api/admin/user/" + url.PathEscape(userID) + suffix
}

// Dashboard: GET /api/admin/dashboard.
func (c *Client) Dashboard(ctx context.Context) (*domain.MetricsSnapshot, error) {
	var snap domain.MetricsSnapshot
	if err := c.get(ctx, "/api/admin/dashboard", &snap); err != nil {
		return nil, fmt.Errorf("fetch dashboard: %w", err)
	}
	return &snap, nil
}

// RiskHistory: GET /api/admin/user/{id}/risk-history в порядке бэкенда.
func (c *Client) RiskHistory(ctx context.Context, userID string) ([]domain.RiskHistoryEntry, error) {
	var history []domain.RiskHistoryEntry
	if err := c.get(ctx, userPath(userID, "/risk-history"), &history); err != nil {
		return nil, fmt.Errorf("fetch risk history: %w", err)
	}
	return history, nil
}

// Sessions: GET /api/admin/user/{id}/sessions.
func (c *Client) Sessions(ctx context.Context, userID string) ([]domain.UserSession, error) {
	var sessions []domain.UserSession
	if err := c.get(ctx, userPath(userID, "/sessions"), &sessions); err != nil {
		return nil, fmt.Errorf("fetch sessions: %w", err)
	}
	return sessions, nil
}

// ActivityAnalytics: GET /api/admin/user/{id}/activity-analytics.
func (c *Client) ActivityAnalytics(ctx context.Context, userID string) (*domain.ActivityAnalytics, error) {
	var analytics domain.ActivityAnalytics
	if err := c.get(ctx, userPath(userID, "/activity-analytics"), &analytics); err != nil {
		return nil, fmt.Errorf("fetch activity analytics: %w", err)
	}
	return &analytics, nil
}

// Action отправляет административную команду. Не ретраится: повтор делает оператор.
func (c *Client) Action(ctx context.Context, userID string, action domain.AdminAction, reason string) (*domain.ActionAck, error) {
	if reason == "" {
		reason = action.DefaultReason()
	}
	var ack domain.ActionAck
	req := domain.ActionRequest{Action: action, Reason: reason}
	if err := c.post(ctx, userPath(userID, "/action"), req, &ack); err != nil {
		return nil, fmt.Errorf("action %s: %w", action, err)
	}
	return &ack, nil
}

// SimulateAttack: POST /api/demo/simulate-attack. При пустом targetUserID цель выбирает бэкенд.
func (c *Client) SimulateAttack(ctx context.Context, targetUserID string) (*domain.SimulationResult, error) {
	var req domain.SimulateRequest
	if targetUserID != "" {
		req.TargetUserID = &targetUserID
	}
	var res domain.SimulationResult
	if err := c.post(ctx, "/api/demo/simulate-attack", req, &res); err != nil {
		return nil, fmt.Errorf("simulate attack: %w", err)
	}
	if res.Error != "" {
		return nil, fmt.Errorf("simulate attack: %w", &APIError{Status: 200, Message: res.Error})
	}
	return &res, nil
}
