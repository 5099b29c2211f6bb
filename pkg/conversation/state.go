package conversation

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrDuplicateMessageID = errors.New("duplicate message id")
	ErrEmptyMessageID     = errors.New("message id is empty")
)

// State is the ordered conversation plus an extension bag owned by the caller.
// Extra is carried through every mutation untouched.
type State struct {
	Messages []Message     `json:"messages" yaml:"messages"`
	Extra    map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Updater computes the next state from the previous one.
type Updater func(State) State

// Clone copies the message slice and the extension bag so that an updater
// cannot reach the store's copy.
func (s State) Clone() State {
	ret := State{}
	if s.Messages != nil {
		ret.Messages = make([]Message, len(s.Messages))
		copy(ret.Messages, s.Messages)
	}
	if s.Extra != nil {
		ret.Extra = make(map[string]any, len(s.Extra))
		for k, v := range s.Extra {
			ret.Extra[k] = v
		}
	}
	return ret
}

// Find returns the index of the message with the given id, or -1.
func (s State) Find(id string) int {
	for i := range s.Messages {
		if s.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (s State) validate() error {
	seen := make(map[string]struct{}, len(s.Messages))
	for _, m := range s.Messages {
		if strings.TrimSpace(m.ID) == "" {
			return ErrEmptyMessageID
		}
		if _, ok := seen[m.ID]; ok {
			return errors.Wrapf(ErrDuplicateMessageID, "id %q", m.ID)
		}
		seen[m.ID] = struct{}{}
	}
	return nil
}

// Append adds messages at the end of the conversation.
func Append(msgs ...Message) Updater {
	return func(s State) State {
		s.Messages = append(s.Messages, msgs...)
		return s
	}
}

// UpdateMessage applies fn to the message with the given id. Unknown ids leave
// the state unchanged.
func UpdateMessage(id string, fn func(*Message)) Updater {
	return func(s State) State {
		idx := s.Find(id)
		if idx < 0 || fn == nil {
			return s
		}
		fn(&s.Messages[idx])
		return s
	}
}

// ResolveLoading replaces the pending content of a loading message.
func ResolveLoading(id string, text string) Updater {
	return UpdateMessage(id, func(m *Message) {
		m.Message = text
		m.Loading = false
	})
}

// SetExtra stores an auxiliary value in the extension bag.
func SetExtra(key string, value any) Updater {
	return func(s State) State {
		if s.Extra == nil {
			s.Extra = map[string]any{}
		}
		s.Extra[key] = value
		return s
	}
}
