package composer

import (
	"context"

	"github.com/go-go-golems/chatwidget/pkg/conversation"
	"github.com/go-go-golems/chatwidget/pkg/metrics"
	"github.com/go-go-golems/chatwidget/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoParser          = errors.New("composer needs a parse function or a message parser")
	ErrImageModeDisabled = errors.New("image input is not available with the selected backend")
	ErrAudioModeDisabled = errors.New("audio input is not available while image input is selected")
)

// Validator decides whether the composed text may be submitted.
type Validator func(text string) bool

// ParseFunc receives a submitted message. It replaces the message parser when set.
type ParseFunc func(text string, image, audio *conversation.Attachment)

// MessageParser is the default submission sink.
type MessageParser interface {
	Parse(text string, image, audio *conversation.Attachment)
}

// Scroller is told to scroll the message container after a submission.
type Scroller interface {
	ScrollToBottom()
}

// Capturer is the speech capture the composer delegates dictation to.
type Capturer interface {
	Capture(ctx context.Context) error
	Capturing() bool
}

// State is a snapshot of the composer.
type State struct {
	Text             string
	Image            *conversation.Attachment
	AudioFile        *conversation.Attachment
	ImageModeEnabled bool
	Capturing        bool
}

// Composer is the input state machine. It is not safe for concurrent use; the
// UI loop owns it and routes asynchronous updates (speech results, setting
// changes) through its own message queue.
type Composer struct {
	store     conversation.Mutator
	validator Validator
	parse     ParseFunc
	parser    MessageParser
	scroller  Scroller
	capturer  Capturer
	metrics   *metrics.Metrics

	text      string
	image     *conversation.Attachment
	audio     *conversation.Attachment
	imageMode bool
}

type Option func(*Composer) error

func WithValidator(v Validator) Option {
	return func(c *Composer) error {
		c.validator = v
		return nil
	}
}

func WithParseFunc(fn ParseFunc) Option {
	return func(c *Composer) error {
		c.parse = fn
		return nil
	}
}

func WithMessageParser(p MessageParser) Option {
	return func(c *Composer) error {
		c.parser = p
		return nil
	}
}

func WithScroller(s Scroller) Option {
	return func(c *Composer) error {
		c.scroller = s
		return nil
	}
}

func WithCapturer(cap_ Capturer) Option {
	return func(c *Composer) error {
		c.capturer = cap_
		return nil
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Composer) error {
		c.metrics = m
		return nil
	}
}

func WithImageMode(enabled bool) Option {
	return func(c *Composer) error {
		c.imageMode = enabled
		return nil
	}
}

func New(store conversation.Mutator, opts ...Option) (*Composer, error) {
	if store == nil {
		return nil, errors.New("composer needs a conversation store")
	}
	c := &Composer{store: store}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.parse == nil && c.parser == nil {
		return nil, ErrNoParser
	}
	return c, nil
}

func (c *Composer) State() State {
	s := State{
		Text:             c.text,
		AudioFile:        c.audio,
		ImageModeEnabled: c.imageMode,
	}
	// A queued image is hidden while image mode is off.
	if c.imageMode {
		s.Image = c.image
	}
	if c.capturer != nil {
		s.Capturing = c.capturer.Capturing()
	}
	return s
}

func (c *Composer) Text() string {
	return c.text
}

func (c *Composer) SetText(text string) {
	c.text = text
}

func (c *Composer) ImageModeEnabled() bool {
	return c.imageMode
}

// SetImageMode switches the attachment path. Turning image mode on drops a
// queued audio file; turning it off keeps a queued image, hidden and unused
// until the mode comes back.
func (c *Composer) SetImageMode(enabled bool) {
	if enabled == c.imageMode {
		return
	}
	c.imageMode = enabled
	if enabled && c.audio != nil {
		log.Debug().Str("component", "composer").Str("audio", c.audio.Name).Msg("image mode enabled, dropping queued audio")
		c.audio = nil
	}
}

// ApplySetting updates the mode from a persisted app setting.
func (c *Composer) ApplySetting(s settings.AppSetting) {
	c.SetImageMode(s.ImageModeEnabled())
}

func (c *Composer) AttachImage(path string) error {
	if !c.imageMode {
		return ErrImageModeDisabled
	}
	a, err := NewImageAttachment(path)
	if err != nil {
		return err
	}
	c.image = a
	return nil
}

func (c *Composer) AttachAudio(path string) error {
	if c.imageMode {
		return ErrAudioModeDisabled
	}
	a, err := NewAudioAttachment(path)
	if err != nil {
		return err
	}
	c.audio = a
	return nil
}

func (c *Composer) ClearAttachments() {
	c.image = nil
	c.audio = nil
}

// CanSubmit is the submission gate: image mode needs text and an image, the
// default mode needs text only.
func (c *Composer) CanSubmit() bool {
	if c.text == "" {
		return false
	}
	if c.imageMode {
		return c.image != nil
	}
	return true
}

// Submit appends the composed message to the conversation, scrolls, resets
// the composer and hands the message to exactly one sink. It returns false
// without touching any state when the gate or the validator rejects the text.
// Only the attachment of the current mode is sent: an image still queued
// while image mode is off is discarded by the reset, as is a queued audio
// file in image mode.
func (c *Composer) Submit() (bool, error) {
	if !c.CanSubmit() {
		c.metrics.Submission("gated")
		return false, nil
	}
	if c.validator != nil && !c.validator(c.text) {
		c.metrics.Submission("rejected")
		log.Debug().Str("component", "composer").Msg("validator rejected input")
		return false, nil
	}

	text := c.text
	var image, audio *conversation.Attachment
	if c.imageMode {
		image = c.image
	} else {
		audio = c.audio
	}

	if err := c.store.Mutate(conversation.Append(conversation.NewUserMessage(text, image, audio))); err != nil {
		return false, errors.Wrap(err, "append user message")
	}
	if c.scroller != nil {
		c.scroller.ScrollToBottom()
	}
	c.text = ""
	c.image = nil
	c.audio = nil
	c.metrics.Submission("accepted")

	if c.parse != nil {
		c.parse(text, image, audio)
	} else {
		c.parser.Parse(text, image, audio)
	}
	return true, nil
}

// Capture starts dictation into the composer text. Without a capturer it does nothing.
func (c *Composer) Capture(ctx context.Context) error {
	if c.capturer == nil {
		return nil
	}
	return c.capturer.Capture(ctx)
}

// ApplyTranscript replaces the composer text with a recognized transcript.
func (c *Composer) ApplyTranscript(transcript string) {
	c.text = transcript
}
