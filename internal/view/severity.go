package view

import "strings"

// Tier: уровень серьезности для подсветки.
type Tier string

const (
	TierLow      Tier = "low"
	TierMedium   Tier = "medium"
	TierHigh     Tier = "high"
	TierCritical Tier = "critical"
	TierUnknown  Tier = "unknown"
)

var tierColors = map[Tier]string{
	TierLow:      "#00ff00",
	TierMedium:   "#ffa500",
	TierHigh:     "#ff1493",
	TierCritical: "#ff4444",
	TierUnknown:  "#808080",
}

// TierOf разбирает risk_level бэкенда. Незнакомое значение дает нейтральный TierUnknown.
func TierOf(level string) Tier {
	t := Tier(strings.ToLower(strings.TrimSpace(level)))
	if _, ok := tierColors[t]; ok {
		return t
	}
	return TierUnknown
}

func (t Tier) Color() string {
	if c, ok := tierColors[t]; ok {
		return c
	}
	return tierColors[TierUnknown]
}

// Label: подпись бейджа.
func (t Tier) Label() string {
	return strings.ToUpper(string(t))
}

// Status: трехцветная отметка (сессии, разбор симуляции).
type Status string

const (
	StatusOK       Status = "ok"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// SessionStatus: отметка по риску сессии в долях (0..1).
func SessionStatus(score float64) Status {
	switch {
	case score > 0.6:
		return StatusCritical
	case score > 0.3:
		return StatusWarning
	default:
		return StatusOK
	}
}

// StatusOf разбирает статус фактора из ответа симуляции. Все, кроме critical и warning, считается ok.
func StatusOf(s string) Status {
	switch Status(strings.ToLower(s)) {
	case StatusCritical:
		return StatusCritical
	case StatusWarning:
		return StatusWarning
	default:
		return StatusOK
	}
}
