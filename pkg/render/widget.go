package render

import (
	"strings"
	"sync"

	"github.com/go-go-golems/chatwidget/pkg/conversation"
)

type WidgetKind string

const (
	WidgetText     WidgetKind = "text"
	WidgetMarkdown WidgetKind = "markdown"
	WidgetOptions  WidgetKind = "options"
)

// Widget is the resolved descriptor of a registered widget. The renderer only
// knows how to draw these kinds.
type Widget struct {
	Name    string
	Kind    WidgetKind
	Title   string
	Body    string
	Options []string
}

// WidgetContext is passed to widget factories at render time.
type WidgetContext struct {
	State   conversation.State
	Scroll  func()
	Payload any
	Actions map[string]any
}

// WidgetResolver looks up a widget by name. An empty name resolves to nil.
// Implementations must not mutate the conversation while resolving.
type WidgetResolver interface {
	GetWidget(name string, ctx WidgetContext) *Widget
}

type WidgetFunc func(ctx WidgetContext) *Widget

// WidgetRegistry is the default WidgetResolver.
type WidgetRegistry struct {
	mu      sync.RWMutex
	widgets map[string]WidgetFunc
}

var _ WidgetResolver = &WidgetRegistry{}

func NewWidgetRegistry() *WidgetRegistry {
	return &WidgetRegistry{widgets: map[string]WidgetFunc{}}
}

// Register adds or replaces the widget factory for name.
func (r *WidgetRegistry) Register(name string, fn WidgetFunc) {
	name = strings.TrimSpace(name)
	if name == "" || fn == nil {
		return
	}
	r.mu.Lock()
	r.widgets[name] = fn
	r.mu.Unlock()
}

func (r *WidgetRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]string, 0, len(r.widgets))
	for k := range r.widgets {
		ret = append(ret, k)
	}
	return ret
}

func (r *WidgetRegistry) GetWidget(name string, ctx WidgetContext) *Widget {
	if r == nil || name == "" {
		return nil
	}
	r.mu.RLock()
	fn, ok := r.widgets[name]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	w := fn(ctx)
	if w != nil && w.Name == "" {
		w.Name = name
	}
	return w
}
