package view

import "math"

// Percent переводит скор в проценты. Бэкенд отдает скоры то в долях (0..1),
// то уже в процентах (0..100): значение больше 1 считается процентом.
// Для обоих представлений результат одинаков: 0.73 и 73 дают 73.
func Percent(score float64) int {
	if math.IsNaN(score) || score <= 0 {
		return 0
	}
	if score > 1 {
		return int(math.Round(score))
	}
	return int(math.Round(score * 100))
}

// LevelFromPercent: уровень риска по скору в шкале 0..100.
func LevelFromPercent(p float64) Tier {
	switch {
	case p <= 30:
		return TierLow
	case p <= 60:
		return TierMedium
	case p <= 80:
		return TierHigh
	default:
		return TierCritical
	}
}

// BarWidth: ширина полосы фактора риска в процентах. Вес удваивается, максимум 100.
func BarWidth(weight float64) int {
	w := math.Round(weight * 2)
	switch {
	case w < 0:
		return 0
	case w > 100:
		return 100
	}
	return int(w)
}
