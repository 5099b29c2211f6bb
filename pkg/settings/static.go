package settings

import (
	"context"
	"sync"
)

// StaticWatcher keeps the setting in memory. Writes notify subscribers, which
// makes it the backend of choice for tests and single-process runs.
type StaticWatcher struct {
	mu      sync.Mutex
	setting AppSetting
	found   bool
	subs    subscribers
}

var _ Watcher = &StaticWatcher{}
var _ Writer = &StaticWatcher{}

func NewStaticWatcher() *StaticWatcher {
	return &StaticWatcher{}
}

func NewStaticWatcherWith(s AppSetting) *StaticWatcher {
	return &StaticWatcher{setting: s, found: true}
}

func (w *StaticWatcher) Read(ctx context.Context) (AppSetting, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.setting, w.found, nil
}

func (w *StaticWatcher) Subscribe(fn func(AppSetting)) func() {
	return w.subs.add(fn)
}

func (w *StaticWatcher) Write(ctx context.Context, s AppSetting) error {
	w.mu.Lock()
	w.setting = s
	w.found = true
	w.mu.Unlock()
	w.subs.notify(s)
	return nil
}

func (w *StaticWatcher) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}
