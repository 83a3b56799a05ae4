package infra

import (
	"fmt"
	"strings"
)

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "riskwatch"

	// GlobalSignalTarget: адресат сигнала "для всех", а не для конкретного пользователя
	GlobalSignalTarget = "*"
)

// RefreshChannel: канал, в который бэкенд пишет "user_id:reason" после изменения состояния.
func RefreshChannel(namespace string) string {
	if namespace == "" {
		namespace = RedisNamespace
	}
	return namespace + ":console:refresh"
}

// FormatRefreshSignal собирает payload сигнала.
func FormatRefreshSignal(userID, reason string) string {
	if userID == "" {
		userID = GlobalSignalTarget
	}
	return fmt.Sprintf("%s:%s", userID, reason)
}

// ParseRefreshSignal разбирает "user_id:reason". Причина может содержать двоеточия.
func ParseRefreshSignal(payload string) (userID, reason string, err error) {
	parts := strings.SplitN(payload, ":", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", "", fmt.Errorf("invalid refresh signal %q", payload)
	}
	return parts[0], parts[1], nil
}
