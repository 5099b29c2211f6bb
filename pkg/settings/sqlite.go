package settings

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultPollInterval = time.Second

// SQLiteWatcher keeps the setting in a key-value table of a SQLite database
// that several processes may share. Changes are detected by polling.
type SQLiteWatcher struct {
	db       *sql.DB
	interval time.Duration
	subs     subscribers

	// last is the raw value seen at construction or at the previous poll.
	last string
}

var _ Watcher = &SQLiteWatcher{}
var _ Writer = &SQLiteWatcher{}

func NewSQLiteWatcher(path string, interval time.Duration) (*SQLiteWatcher, error) {
	if path == "" {
		return nil, errors.New("sqlite settings path is empty")
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite settings %q", path)
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}
	w := &SQLiteWatcher{db: db, interval: interval}
	if err := w.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	last, _, err := w.readRaw(context.Background())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	w.last = last
	return w, nil
}

func (w *SQLiteWatcher) migrate(ctx context.Context) error {
	_, err := w.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`)
	return errors.Wrap(err, "create settings table")
}

func (w *SQLiteWatcher) readRaw(ctx context.Context) (string, bool, error) {
	var v string
	err := w.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, Key).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, errors.Wrap(err, "query setting")
	}
	return v, true, nil
}

func (w *SQLiteWatcher) Read(ctx context.Context) (AppSetting, bool, error) {
	v, found, err := w.readRaw(ctx)
	if err != nil || !found {
		return AppSetting{}, false, err
	}
	s, err := Parse([]byte(v))
	if err != nil {
		return AppSetting{}, false, err
	}
	return s, true, nil
}

func (w *SQLiteWatcher) Subscribe(fn func(AppSetting)) func() {
	return w.subs.add(fn)
}

func (w *SQLiteWatcher) Write(ctx context.Context, s AppSetting) error {
	b, err := Encode(s)
	if err != nil {
		return err
	}
	_, err = w.db.ExecContext(ctx, `
INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		Key, string(b), time.Now().UnixMilli())
	return errors.Wrap(err, "upsert setting")
}

func (w *SQLiteWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			v, found, err := w.readRaw(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Warn().Err(err).Str("component", "settings").Msg("sqlite settings poll failed")
				continue
			}
			if !found || v == w.last {
				continue
			}
			w.last = v
			s, err := Parse([]byte(v))
			if err != nil {
				log.Warn().Err(err).Str("component", "settings").Msg("ignoring invalid stored setting")
				continue
			}
			w.subs.notify(s)
		}
	}
}

func (w *SQLiteWatcher) Close() error {
	return w.db.Close()
}
