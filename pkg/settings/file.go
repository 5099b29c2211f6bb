package settings

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// FileWatcher persists the setting in a YAML (or JSON) file and watches the
// file's directory, so editors that replace the file are picked up too.
type FileWatcher struct {
	path string
	subs subscribers

	mu   sync.Mutex
	last []byte
}

var _ Watcher = &FileWatcher{}
var _ Writer = &FileWatcher{}

func NewFileWatcher(path string) (*FileWatcher, error) {
	if path == "" {
		return nil, errors.New("settings file path is empty")
	}
	abs, err := filepath.Abs(os.ExpandEnv(path))
	if err != nil {
		return nil, errors.Wrapf(err, "resolve settings path %q", path)
	}
	return &FileWatcher{path: abs}, nil
}

func (w *FileWatcher) Path() string {
	return w.path
}

func (w *FileWatcher) Read(ctx context.Context) (AppSetting, bool, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return AppSetting{}, false, nil
		}
		return AppSetting{}, false, errors.Wrapf(err, "read settings file %q", w.path)
	}
	s, err := Parse(data)
	if err != nil {
		return AppSetting{}, false, err
	}
	return s, true, nil
}

func (w *FileWatcher) Subscribe(fn func(AppSetting)) func() {
	return w.subs.add(fn)
}

func (w *FileWatcher) Write(ctx context.Context, s AppSetting) error {
	b, err := Encode(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return errors.Wrap(err, "create settings directory")
	}
	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return errors.Wrapf(err, "write settings file %q", tmp)
	}
	return errors.Wrap(os.Rename(tmp, w.path), "replace settings file")
}

func (w *FileWatcher) Run(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create settings directory")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create file watcher")
	}
	defer func() {
		_ = fw.Close()
	}()
	if err := fw.Add(dir); err != nil {
		return errors.Wrapf(err, "watch %q", dir)
	}
	log.Debug().Str("component", "settings").Str("path", w.path).Msg("watching settings file")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.reload()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("component", "settings").Msg("settings file watcher error")
		}
	}
}

// reload notifies subscribers when the file content actually changed.
func (w *FileWatcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("component", "settings").Str("path", w.path).Msg("could not read settings file")
		}
		return
	}
	w.mu.Lock()
	if string(data) == string(w.last) {
		w.mu.Unlock()
		return
	}
	w.last = data
	w.mu.Unlock()

	s, err := Parse(data)
	if err != nil {
		log.Warn().Err(err).Str("component", "settings").Str("path", w.path).Msg("ignoring invalid settings file")
		return
	}
	w.subs.notify(s)
}
