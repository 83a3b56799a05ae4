package engine

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/riskwatch/internal/infra"
)

var (
	resubscribeDelay = 5 * time.Second
	reconnectDelay   = 1 * time.Second
)

// RefreshSignal: внеочередной тихий перезапрос по сигналу бэкенда.
// Метрики перезапрашиваются всегда, детали: если сигнал про выбранного пользователя
// или глобальный ("*").
func (e *Engine) RefreshSignal(userID, reason string) {
	e.post(e.ctx, func() {
		if e.state.SignedOut || e.dashboard == nil || !e.state.Authorized {
			return
		}
		e.logger.Debug("refresh signal", zap.String("user_id", userID), zap.String("reason", reason))
		e.fetchMetrics(false)

		id, ok := e.state.Investigating()
		if ok && e.selection != nil && (userID == infra.GlobalSignalTarget || userID == id) {
			e.runDetailCycle(false)
		}
	})
}

// ListenRefreshSignals: "живучая" подписка на канал сигналов обновления.
// Переподключается после обрыва; после каждой успешной подписки вызывает onSignal
// с глобальной целью, чтобы догнать пропущенное за время разрыва.
func ListenRefreshSignals(
	ctx context.Context,
	rdb *redis.Client,
	logger *zap.Logger,
	channel string,
	onSignal func(userID, reason string),
) {
	for {
		pubsub := rdb.Subscribe(ctx, channel)

		// Проверка успешности подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to subscribe", zap.String("chan", channel), zap.Error(err))
			if !sleepCtx(ctx, resubscribeDelay) {
				return
			}
			continue
		}

		// Синхронизация при каждом успешном коннекте
		onSignal(infra.GlobalSignalTarget, "resubscribed")

		ch := pubsub.Channel()

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // Канал закрыт, идем на переподключение
				}

				userID, reason, err := infra.ParseRefreshSignal(msg.Payload)
				if err != nil {
					logger.Error("invalid signal format", zap.String("payload", msg.Payload))
					continue
				}
				onSignal(userID, reason)
			}
		}

		pubsub.Close()
		if !sleepCtx(ctx, reconnectDelay) {
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
