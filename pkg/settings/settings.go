package settings

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Key is the name under which the app setting is persisted in every backend.
const Key = "app-setting"

// VisionEndpoint is the legacy sentinel: selecting this backend URL turns on
// image input when ImageInput is not set explicitly.
const VisionEndpoint = "http://localhost:8092/v1/gpt/ask/vision"

// AppSetting is the persisted widget setting.
type AppSetting struct {
	URL        string `json:"url,omitempty" yaml:"url,omitempty"`
	ImageInput *bool  `json:"image_input,omitempty" yaml:"image_input,omitempty"`
}

// ImageModeEnabled reports whether the composer should offer image input
// instead of audio input.
func (s AppSetting) ImageModeEnabled() bool {
	if s.ImageInput != nil {
		return *s.ImageInput
	}
	return strings.TrimSpace(s.URL) == VisionEndpoint
}

// Parse decodes a stored setting. JSON documents parse as YAML, so both the
// browser-style JSON value and a hand-written YAML file are accepted.
func Parse(data []byte) (AppSetting, error) {
	var s AppSetting
	if len(strings.TrimSpace(string(data))) == 0 {
		return s, errors.New("empty app setting")
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return AppSetting{}, errors.Wrap(err, "parse app setting")
	}
	return s, nil
}

// Encode serializes a setting in the JSON form used by the key-value backends.
func Encode(s AppSetting) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "encode app setting")
	}
	return b, nil
}

// Watcher exposes the persisted setting and notifies on changes made by this
// or any other process.
type Watcher interface {
	// Read returns the current setting. found is false when nothing is stored.
	Read(ctx context.Context) (s AppSetting, found bool, err error)
	// Subscribe registers fn for change notifications.
	Subscribe(fn func(AppSetting)) (unsubscribe func())
	// Run drives change notifications until ctx is done.
	Run(ctx context.Context) error
}

// Writer is implemented by backends that can persist a new setting.
type Writer interface {
	Write(ctx context.Context, s AppSetting) error
}

type subscribers struct {
	mu     sync.RWMutex
	nextID int
	fns    map[int]func(AppSetting)
}

func (s *subscribers) add(fn func(AppSetting)) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	if s.fns == nil {
		s.fns = map[int]func(AppSetting){}
	}
	id := s.nextID
	s.nextID++
	s.fns[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

func (s *subscribers) notify(setting AppSetting) {
	s.mu.RLock()
	fns := make([]func(AppSetting), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(setting)
	}
}
