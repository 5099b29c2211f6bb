package render

import (
	"sync"

	"github.com/go-go-golems/chatwidget/pkg/conversation"
	"github.com/go-go-golems/chatwidget/pkg/metrics"
	"github.com/rs/zerolog/log"
)

// CustomProps is the scoped bundle handed to custom message renderers.
type CustomProps struct {
	Mutate         func(conversation.Updater) error
	Read           func() conversation.State
	Scroll         func()
	ActionProvider any
	Payload        any
	Actions        map[string]any
}

// CustomMessageFunc renders a custom message to terminal text.
type CustomMessageFunc func(props CustomProps) string

// CustomMessages maps a message type to its renderer.
type CustomMessages map[string]CustomMessageFunc

// Node is the body of a rendered fragment: BotBubble, UserBubble or CustomView.
type Node interface {
	node()
}

type BotBubble struct {
	Text       string
	Loading    bool
	WithAvatar bool
}

type UserBubble struct {
	Text      string
	Image     *conversation.Attachment
	AudioFile *conversation.Attachment
}

type CustomView struct {
	Type    string
	Content string
}

func (BotBubble) node()  {}
func (UserBubble) node() {}
func (CustomView) node() {}

// Fragment is everything rendered for one message: its body followed by an
// optional widget.
type Fragment struct {
	MessageID string
	Variant   Variant
	Body      Node
	Widget    *Widget
}

type Renderer struct {
	widgets        WidgetResolver
	custom         CustomMessages
	mutator        conversation.Mutator
	scroll         func()
	actionProvider any
	actions        map[string]any
	metrics        *metrics.Metrics
	components     Components

	// message ids already logged and counted
	mu   sync.Mutex
	seen map[string]struct{}
}

type RendererOption func(*Renderer)

func WithWidgets(w WidgetResolver) RendererOption {
	return func(r *Renderer) {
		r.widgets = w
	}
}

func WithCustomMessages(c CustomMessages) RendererOption {
	return func(r *Renderer) {
		r.custom = c
	}
}

func WithScroll(fn func()) RendererOption {
	return func(r *Renderer) {
		r.scroll = fn
	}
}

func WithActionProvider(p any) RendererOption {
	return func(r *Renderer) {
		r.actionProvider = p
	}
}

func WithActions(actions map[string]any) RendererOption {
	return func(r *Renderer) {
		r.actions = actions
	}
}

func WithMetrics(m *metrics.Metrics) RendererOption {
	return func(r *Renderer) {
		r.metrics = m
	}
}

// NewRenderer builds a renderer. mutator is passed on to custom messages so
// they can change the conversation.
func NewRenderer(mutator conversation.Mutator, opts ...RendererOption) *Renderer {
	r := &Renderer{
		mutator: mutator,
		custom:  CustomMessages{},
		scroll:  func() {},
		seen:    map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CustomTypes returns the registered custom message map used for classification.
func (r *Renderer) CustomTypes() CustomMessages {
	return r.custom
}

// RenderAll renders the conversation in order, one fragment per classified
// message. Each message id is logged and counted on its first pass only,
// later passes over the same conversation are redraws.
func (r *Renderer) RenderAll(state conversation.State) []Fragment {
	ret := make([]Fragment, 0, len(state.Messages))
	for i, m := range state.Messages {
		v := Classify(m, r.custom)
		var f Fragment
		switch v := v.(type) {
		case Bot:
			f = r.renderBot(state, i)
		case User:
			f = r.renderUser(state, m)
		case Custom:
			f = r.renderCustom(state, m, v)
		case Unclassified:
			if r.firstSeen(m.ID) {
				log.Warn().
					Str("component", "render").
					Str("message_id", m.ID).
					Str("type", v.Type).
					Msg("message type matches no renderer, omitting")
				r.metrics.MessageUnclassified(v.Type)
			}
			continue
		}
		f.MessageID = m.ID
		f.Variant = v
		if r.firstSeen(m.ID) {
			r.metrics.MessageRendered(v.String())
		}
		ret = append(ret, f)
	}
	return ret
}

func (r *Renderer) firstSeen(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[id]; ok {
		return false
	}
	r.seen[id] = struct{}{}
	return true
}

// ShowAvatar is the grouping policy: the first message always shows an
// avatar, later ones hide it when they directly follow a bot message without
// a widget.
func ShowAvatar(messages []conversation.Message, index int) bool {
	if index <= 0 || index > len(messages) {
		return true
	}
	prev := messages[index-1]
	if isBot(prev) && prev.Widget == "" {
		return false
	}
	return true
}

// AvatarFor applies the message's WithAvatar override on top of ShowAvatar.
func AvatarFor(messages []conversation.Message, index int) bool {
	if index >= 0 && index < len(messages) && messages[index].WithAvatar != nil {
		return *messages[index].WithAvatar
	}
	return ShowAvatar(messages, index)
}

func (r *Renderer) widgetContext(state conversation.State, m conversation.Message) WidgetContext {
	return WidgetContext{
		State:   state,
		Scroll:  r.scroll,
		Payload: m.Payload,
		Actions: r.actions,
	}
}

func (r *Renderer) resolveWidget(state conversation.State, m conversation.Message) *Widget {
	if r.widgets == nil || m.Widget == "" {
		return nil
	}
	return r.widgets.GetWidget(m.Widget, r.widgetContext(state, m))
}

func (r *Renderer) renderBot(state conversation.State, index int) Fragment {
	m := state.Messages[index]
	f := Fragment{
		Body: BotBubble{
			Text:       m.Message,
			Loading:    m.Loading,
			WithAvatar: AvatarFor(state.Messages, index),
		},
	}
	if m.Widget != "" && !m.Loading {
		f.Widget = r.resolveWidget(state, m)
	}
	return f
}

func (r *Renderer) renderUser(state conversation.State, m conversation.Message) Fragment {
	return Fragment{
		Body: UserBubble{
			Text:      m.Message,
			Image:     m.Image,
			AudioFile: m.AudioFile,
		},
		Widget: r.resolveWidget(state, m),
	}
}

func (r *Renderer) renderCustom(state conversation.State, m conversation.Message, v Custom) Fragment {
	fn := r.custom[v.Type]
	props := CustomProps{
		Scroll:         r.scroll,
		ActionProvider: r.actionProvider,
		Payload:        m.Payload,
		Actions:        r.actions,
	}
	if r.mutator != nil {
		props.Mutate = r.mutator.Mutate
		props.Read = r.mutator.Read
	}
	content := ""
	if fn != nil {
		content = fn(props)
	}
	return Fragment{
		Body:   CustomView{Type: v.Type, Content: content},
		Widget: r.resolveWidget(state, m),
	}
}
