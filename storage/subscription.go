package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"kanban-api/domain"
)

const resubscribeDelay = time.Second

// SubscribeTaskEvents forwards task events published on channel to handle
// until ctx is done, resubscribing when the connection drops.
func SubscribeTaskEvents(ctx context.Context, logger *log.Logger, rc *redis.Client, channel string, handle func(domain.TaskEvent)) {
	for {
		sub := rc.Subscribe(ctx, channel)
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var ev domain.TaskEvent
				if err := sonic.UnmarshalString(msg.Payload, &ev); err != nil {
					logger.WithError(err).Warn("unable to parse task event")
					continue
				}
				handle(ev)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Error("task events subscription closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(resubscribeDelay):
		}
	}
}
