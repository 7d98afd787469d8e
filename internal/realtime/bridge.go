// README: Redis pub/sub bridge so events published on one instance reach sessions on all instances.
package realtime

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"leafline/internal/logger"
)

const channelPrefix = "realtime:"

type envelope struct {
	Instance string `json:"instance"`
	Topic    string `json:"topic"`
	Event    Event  `json:"event"`
}

// Broadcaster publishes events to local sessions and mirrors them over
// redis so peer instances can reach their own sessions. A nil redis
// client degrades to local-only delivery.
type Broadcaster struct {
	registry *Registry
	rdb      *redis.Client
	instance string
}

func NewBroadcaster(registry *Registry, rdb *redis.Client) *Broadcaster {
	return &Broadcaster{registry: registry, rdb: rdb, instance: uuid.NewString()}
}

func (b *Broadcaster) Publish(ctx context.Context, topic string, ev Event) {
	b.registry.Publish(topic, ev)

	if b.rdb == nil {
		return
	}
	payload, err := json.Marshal(envelope{Instance: b.instance, Topic: topic, Event: ev})
	if err != nil {
		logger.Log.Error("realtime: marshal envelope", zap.Error(err))
		return
	}
	if err := b.rdb.Publish(ctx, channelPrefix+topic, payload).Err(); err != nil {
		logger.Log.Warn("realtime: redis publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

// Run consumes mirrored events from peer instances until the context is
// cancelled. Events bearing this instance's ID were already delivered
// locally and are skipped.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.rdb == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	sub := b.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logger.Log.Warn("realtime: bad envelope", zap.Error(err))
				continue
			}
			if env.Instance == b.instance {
				continue
			}
			topic := env.Topic
			if topic == "" {
				topic = strings.TrimPrefix(msg.Channel, channelPrefix)
			}
			b.registry.Publish(topic, env.Event)
		}
	}
}
