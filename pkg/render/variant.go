package render

import (
	"github.com/go-go-golems/chatwidget/pkg/conversation"
)

// Variant is the rendering classification of a message. The set is closed:
// Bot, User, Custom and Unclassified are the only implementations.
type Variant interface {
	variant()
	String() string
}

type Bot struct{}

type User struct{}

// Custom is a message whose type is a registered custom message key.
type Custom struct {
	Type string
}

// Unclassified is a message that matches no renderer. It produces no output.
type Unclassified struct {
	Type string
}

func (Bot) variant()          {}
func (User) variant()         {}
func (Custom) variant()       {}
func (Unclassified) variant() {}

func (Bot) String() string          { return "bot" }
func (User) String() string         { return "user" }
func (Custom) String() string       { return "custom" }
func (Unclassified) String() string { return "unclassified" }

// Classify maps a message to its variant. Bot and user tags win over custom
// registrations with the same key.
func Classify(m conversation.Message, custom CustomMessages) Variant {
	switch m.Type {
	case conversation.TypeBot:
		return Bot{}
	case conversation.TypeUser:
		return User{}
	}
	if _, ok := custom[m.Type]; ok {
		return Custom{Type: m.Type}
	}
	return Unclassified{Type: m.Type}
}

func isBot(m conversation.Message) bool {
	_, ok := Classify(m, nil).(Bot)
	return ok
}
