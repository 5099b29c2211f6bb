package conversation

import (
	"github.com/google/uuid"
)

const (
	TypeBot  = "bot"
	TypeUser = "user"
)

// Attachment references binary content attached to a user message.
type Attachment struct {
	Name     string `json:"name" yaml:"name"`
	Path     string `json:"path" yaml:"path"`
	MIMEType string `json:"mime_type,omitempty" yaml:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty" yaml:"size,omitempty"`
}

// Message is a single conversation entry.
//
// Type is either TypeBot, TypeUser or the key of a registered custom message.
// WithAvatar is nil when the message does not override the avatar policy.
type Message struct {
	ID         string      `json:"id" yaml:"id"`
	Type       string      `json:"type" yaml:"type"`
	Message    string      `json:"message,omitempty" yaml:"message,omitempty"`
	Payload    any         `json:"payload,omitempty" yaml:"payload,omitempty"`
	Widget     string      `json:"widget,omitempty" yaml:"widget,omitempty"`
	WithAvatar *bool       `json:"withAvatar,omitempty" yaml:"withAvatar,omitempty"`
	Loading    bool        `json:"loading,omitempty" yaml:"loading,omitempty"`
	Image      *Attachment `json:"image,omitempty" yaml:"image,omitempty"`
	AudioFile  *Attachment `json:"audioFile,omitempty" yaml:"audioFile,omitempty"`
}

// NewUserMessage creates the message appended by a successful composer submission.
func NewUserMessage(text string, image, audio *Attachment) Message {
	return Message{
		ID:        uuid.NewString(),
		Type:      TypeUser,
		Message:   text,
		Image:     image,
		AudioFile: audio,
	}
}

type MessageOption func(*Message)

func WithWidget(widget string) MessageOption {
	return func(m *Message) {
		m.Widget = widget
	}
}

func WithLoading() MessageOption {
	return func(m *Message) {
		m.Loading = true
	}
}

func WithPayload(payload any) MessageOption {
	return func(m *Message) {
		m.Payload = payload
	}
}

func WithAvatar(show bool) MessageOption {
	return func(m *Message) {
		m.WithAvatar = &show
	}
}

func WithID(id string) MessageOption {
	return func(m *Message) {
		m.ID = id
	}
}

// NewBotMessage creates a bot message. Action providers use it together with
// Store.Mutate and Append.
func NewBotMessage(text string, opts ...MessageOption) Message {
	m := Message{
		ID:      uuid.NewString(),
		Type:    TypeBot,
		Message: text,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// NewCustomMessage creates a message rendered by the custom renderer registered for type_.
func NewCustomMessage(type_ string, opts ...MessageOption) Message {
	m := Message{
		ID:   uuid.NewString(),
		Type: type_,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}
