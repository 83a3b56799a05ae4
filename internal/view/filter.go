package view

import (
	"strings"

	"github.com/xela07ax/riskwatch/internal/domain"
)

// Search оставляет элементы, у которых имя или email содержат query без учета регистра.
// Пустой запрос возвращает копию всего списка. Входной срез не меняется.
func Search[T any](items []T, query string, fields func(T) (name, email string)) []T {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]T, 0, len(items))
	for _, it := range items {
		if q == "" {
			out = append(out, it)
			continue
		}
		name, email := fields(it)
		if strings.Contains(strings.ToLower(name), q) || strings.Contains(strings.ToLower(email), q) {
			out = append(out, it)
		}
	}
	return out
}

func SearchUsers(users []domain.UserRecord, query string) []domain.UserRecord {
	return Search(users, query, func(u domain.UserRecord) (string, string) { return u.Name, u.Email })
}

func SearchRisks(risks []domain.RiskEntry, query string) []domain.RiskEntry {
	return Search(risks, query, func(r domain.RiskEntry) (string, string) { return r.Name, r.Email })
}
