package view

import (
	"fmt"
	"time"

	"github.com/xela07ax/riskwatch/internal/domain"
)

const (
	NotAvailable = "N/A"
	Expired      = "expired"
)

// FormatDuration печатает длительность как "{h}h {m}m {s}s".
// Нулевые часы опускаются, нулевые минуты: только вместе с часами.
// Доли секунды отбрасываются, отрицательное значение считается нулем.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// Elapsed: сколько прошло от start до now.
func Elapsed(start, now time.Time) string {
	return FormatDuration(now.Sub(start))
}

// Remaining: сколько осталось до плановой отметки. Без отметки "N/A",
// после нее "expired".
func Remaining(deadline *domain.Timestamp, now time.Time) string {
	if deadline == nil || deadline.IsZero() {
		return NotAvailable
	}
	left := deadline.Sub(now)
	if left <= 0 {
		return Expired
	}
	return FormatDuration(left)
}
