package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-go-golems/chatwidget/pkg/bus"
	"github.com/go-go-golems/chatwidget/pkg/conversation"
	"github.com/go-go-golems/chatwidget/pkg/render"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// OptionsWidget is the name of the widget attached to help replies.
const OptionsWidget = "options"

const DefaultDelay = 600 * time.Millisecond

// EchoProvider is a reference action provider. It answers every submission
// with a loading bot message that resolves to an echo of the input.
type EchoProvider struct {
	store   conversation.Mutator
	delay   time.Duration
	options []string
}

type Option func(*EchoProvider)

func WithDelay(d time.Duration) Option {
	return func(p *EchoProvider) {
		if d >= 0 {
			p.delay = d
		}
	}
}

// WithOptions sets the choices offered by the options widget.
func WithOptions(options ...string) Option {
	return func(p *EchoProvider) {
		p.options = options
	}
}

func NewEchoProvider(store conversation.Mutator, opts ...Option) *EchoProvider {
	p := &EchoProvider{
		store:   store,
		delay:   DefaultDelay,
		options: []string{"Describe an image", "Transcribe audio", "Just chat"},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle is a bus.Handler.
func (p *EchoProvider) Handle(ctx context.Context, s bus.Submission) error {
	loading := conversation.NewBotMessage("", conversation.WithLoading())
	if err := p.store.Mutate(conversation.Append(loading)); err != nil {
		return errors.Wrap(err, "append loading reply")
	}

	select {
	case <-ctx.Done():
		return p.store.Mutate(conversation.ResolveLoading(loading.ID, "(cancelled)"))
	case <-time.After(p.delay):
	}

	reply := Reply(s)
	if !IsHelpRequest(s.Text) {
		return p.store.Mutate(conversation.ResolveLoading(loading.ID, reply))
	}
	log.Debug().Str("component", "actions").Str("submission", s.ID).Msg("answering help request")
	return p.store.Mutate(conversation.UpdateMessage(loading.ID, func(m *conversation.Message) {
		m.Loading = false
		m.Message = "Here is what I can do:"
		m.Widget = OptionsWidget
	}))
}

// Greet appends a bot greeting.
func (p *EchoProvider) Greet(name string) error {
	text := "Hello!"
	if name != "" {
		text = fmt.Sprintf("Hello %s!", name)
	}
	return p.store.Mutate(conversation.Append(conversation.NewBotMessage(text)))
}

// Actions exposes the provider to widgets and custom messages.
func (p *EchoProvider) Actions() map[string]any {
	return map[string]any{
		"greet": func(name string) error { return p.Greet(name) },
		"help": func() error {
			return p.store.Mutate(conversation.Append(
				conversation.NewBotMessage("Here is what I can do:", conversation.WithWidget(OptionsWidget)),
			))
		},
	}
}

// RegisterWidgets installs the options widget.
func (p *EchoProvider) RegisterWidgets(reg *render.WidgetRegistry) {
	reg.Register(OptionsWidget, func(render.WidgetContext) *render.Widget {
		return &render.Widget{
			Kind:    render.WidgetOptions,
			Title:   "Options",
			Options: append([]string(nil), p.options...),
		}
	})
}

func IsHelpRequest(text string) bool {
	return strings.Contains(strings.ToLower(text), "help")
}

// Reply is the echo answer for a submission.
func Reply(s bus.Submission) string {
	var parts []string
	if s.Text != "" {
		parts = append(parts, fmt.Sprintf("You said: %s", s.Text))
	}
	if s.Image != nil {
		parts = append(parts, fmt.Sprintf("Received image %s (%s)", s.Image.Name, humanize.Bytes(uint64(s.Image.Size))))
	}
	if s.AudioFile != nil {
		parts = append(parts, fmt.Sprintf("Received audio %s (%s)", s.AudioFile.Name, humanize.Bytes(uint64(s.AudioFile.Size))))
	}
	if len(parts) == 0 {
		return "I did not get that."
	}
	return strings.Join(parts, "\n")
}
