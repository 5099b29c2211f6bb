package config

import (
	"os"

	"github.com/go-go-golems/chatwidget/pkg/conversation"
	"github.com/go-go-golems/chatwidget/pkg/settings"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// OpenSettings builds the settings watcher of the configured backend. The
// returned close function releases backend connections.
func OpenSettings(c SettingsConfig) (settings.Watcher, func() error, error) {
	noop := func() error { return nil }
	switch c.Backend {
	case BackendFile, "":
		w, err := settings.NewFileWatcher(c.File)
		if err != nil {
			return nil, nil, err
		}
		return w, noop, nil
	case BackendRedis:
		w := settings.NewRedisWatcher(settings.RedisSettings{
			Addr:    c.RedisAddr,
			Key:     c.RedisKey,
			Channel: c.RedisChannel,
		})
		return w, w.Close, nil
	case BackendSQLite:
		w, err := settings.NewSQLiteWatcher(c.SQLitePath, c.PollInterval)
		if err != nil {
			return nil, nil, err
		}
		return w, w.Close, nil
	case BackendStatic:
		if c.URL == "" {
			return settings.NewStaticWatcher(), noop, nil
		}
		return settings.NewStaticWatcherWith(settings.AppSetting{URL: c.URL}), noop, nil
	default:
		return nil, nil, errors.Errorf("unknown settings backend %q", c.Backend)
	}
}

// LoadInitialMessages reads a YAML list of messages. Messages without an id
// get a fresh one; bot messages are the default type.
func LoadInitialMessages(path string) ([]conversation.Message, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read initial messages %q", path)
	}
	var msgs []conversation.Message
	if err := yaml.Unmarshal(b, &msgs); err != nil {
		return nil, errors.Wrapf(err, "parse initial messages %q", path)
	}
	for i := range msgs {
		if msgs[i].ID == "" {
			msgs[i].ID = uuid.NewString()
		}
		if msgs[i].Type == "" {
			msgs[i].Type = conversation.TypeBot
		}
	}
	return msgs, nil
}
