package demobackend

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/riskwatch/internal/infra"
)

// Publisher сообщает консолям, что состояние пользователя изменилось.
type Publisher interface {
	Publish(ctx context.Context, userID, reason string)
}

// RedisPublisher пишет "user_id:reason" в канал обновлений консоли.
// Ошибка доставки не отменяет команду: консоль догонит состояние обычным опросом.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	logger  *zap.Logger
}

func NewRedisPublisher(rdb *redis.Client, namespace string, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{
		rdb:     rdb,
		channel: infra.RefreshChannel(namespace),
		logger:  logger.Named("signals"),
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, userID, reason string) {
	payload := infra.FormatRefreshSignal(userID, reason)
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.Warn("refresh signal delivery failed",
			zap.String("channel", p.channel),
			zap.String("payload", payload),
			zap.Error(err))
		return
	}
	p.logger.Debug("refresh signal published", zap.String("payload", payload))
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, string) {}
