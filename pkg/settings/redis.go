package settings

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisSettings configures the Redis backend.
type RedisSettings struct {
	Addr    string
	Key     string
	Channel string
}

// RedisWatcher stores the setting under a Redis key and uses a pub/sub channel
// as the cross-process change notification. Writers must publish after
// setting the key; Write does both.
type RedisWatcher struct {
	client  *redis.Client
	key     string
	channel string
	subs    subscribers
}

var _ Watcher = &RedisWatcher{}
var _ Writer = &RedisWatcher{}

func NewRedisWatcher(s RedisSettings) *RedisWatcher {
	key := s.Key
	if key == "" {
		key = Key
	}
	channel := s.Channel
	if channel == "" {
		channel = key + ":changed"
	}
	return &RedisWatcher{
		client:  redis.NewClient(&redis.Options{Addr: s.Addr}),
		key:     key,
		channel: channel,
	}
}

func (w *RedisWatcher) Read(ctx context.Context) (AppSetting, bool, error) {
	v, err := w.client.Get(ctx, w.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return AppSetting{}, false, nil
		}
		return AppSetting{}, false, errors.Wrapf(err, "redis get %q", w.key)
	}
	s, err := Parse([]byte(v))
	if err != nil {
		return AppSetting{}, false, err
	}
	return s, true, nil
}

func (w *RedisWatcher) Subscribe(fn func(AppSetting)) func() {
	return w.subs.add(fn)
}

func (w *RedisWatcher) Write(ctx context.Context, s AppSetting) error {
	b, err := Encode(s)
	if err != nil {
		return err
	}
	if err := w.client.Set(ctx, w.key, b, 0).Err(); err != nil {
		return errors.Wrapf(err, "redis set %q", w.key)
	}
	if err := w.client.Publish(ctx, w.channel, b).Err(); err != nil {
		return errors.Wrapf(err, "redis publish %q", w.channel)
	}
	return nil
}

func (w *RedisWatcher) Run(ctx context.Context) error {
	ps := w.client.Subscribe(ctx, w.channel)
	defer func() {
		_ = ps.Close()
	}()
	if _, err := ps.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return errors.Wrapf(err, "redis subscribe %q", w.channel)
	}
	log.Debug().Str("component", "settings").Str("channel", w.channel).Msg("subscribed to settings changes")

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			s, err := Parse([]byte(m.Payload))
			if err != nil {
				// A bare notification without payload: re-read the key.
				var found bool
				s, found, err = w.Read(ctx)
				if err != nil || !found {
					log.Warn().Err(err).Str("component", "settings").Msg("could not load changed setting")
					continue
				}
			}
			w.subs.notify(s)
		}
	}
}

func (w *RedisWatcher) Close() error {
	return w.client.Close()
}
