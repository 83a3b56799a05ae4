package domain

import "time"

// TriggeredBaseline помечает синтетическую точку, которую клиент подставляет
// вместо пустой истории. Это не факт бэкенда.
const TriggeredBaseline = "system_baseline"

type RiskFactor struct {
	Factor string  `json:"factor"`
	Weight float64 `json:"weight"`
}

// RiskHistoryEntry: одно изменение риск-скора пользователя.
// Скоры приходят либо в шкале 0..1, либо уже в процентах (0..100).
type RiskHistoryEntry struct {
	OldScore    float64      `json:"old_score"`
	NewScore    float64      `json:"new_score"`
	Delta       float64      `json:"delta"`
	Factors     []RiskFactor `json:"factors"`
	Timestamp   Timestamp    `json:"timestamp"`
	TriggeredBy string       `json:"triggered_by"`
}

// BaselineHistory возвращает единственную нулевую точку для графика.
func BaselineHistory(now time.Time) []RiskHistoryEntry {
	return []RiskHistoryEntry{{
		Factors:     []RiskFactor{},
		Timestamp:   At(now),
		TriggeredBy: TriggeredBaseline,
	}}
}
