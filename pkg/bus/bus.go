package bus

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-go-golems/chatwidget/pkg/composer"
	"github.com/go-go-golems/chatwidget/pkg/conversation"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Topic carries composer submissions to the action provider.
const Topic = "chat.submissions"

// Submission is the payload published for every accepted composer submit.
type Submission struct {
	ID          string                   `json:"id"`
	Text        string                   `json:"text"`
	Image       *conversation.Attachment `json:"image,omitempty"`
	AudioFile   *conversation.Attachment `json:"audioFile,omitempty"`
	SubmittedAt time.Time                `json:"submitted_at"`
}

// Handler processes one submission. Returned errors are logged; the message
// is acknowledged either way.
type Handler func(ctx context.Context, s Submission) error

// Bus decouples the composer from the action provider through an in-process
// watermill pub/sub.
type Bus struct {
	pubsub   *gochannel.GoChannel
	messages <-chan *message.Message
	cancel   context.CancelFunc

	closeOnce sync.Once
}

// New subscribes to Topic right away so submissions published before Run
// starts are not lost.
func New() (*Bus, error) {
	logger := NewZerologAdapter(log.Logger.With().Str("component", "bus").Logger())
	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	messages, err := pubsub.Subscribe(ctx, Topic)
	if err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, errors.Wrapf(err, "subscribe %s", Topic)
	}
	return &Bus{pubsub: pubsub, messages: messages, cancel: cancel}, nil
}

func (b *Bus) Publish(s Submission) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.SubmittedAt.IsZero() {
		s.SubmittedAt = time.Now()
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "marshal submission")
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(Topic, msg); err != nil {
		return errors.Wrapf(err, "publish %s", Topic)
	}
	return nil
}

// Parser returns the composer message parser that publishes on the bus.
func (b *Bus) Parser() composer.MessageParser {
	return parser{bus: b}
}

type parser struct {
	bus *Bus
}

func (p parser) Parse(text string, image, audio *conversation.Attachment) {
	if err := p.bus.Publish(Submission{Text: text, Image: image, AudioFile: audio}); err != nil {
		log.Error().Err(err).Str("component", "bus").Msg("could not publish submission")
	}
}

// Run hands every submission to h until ctx is done or the bus is closed.
func (b *Bus) Run(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-b.messages:
			if !ok {
				return nil
			}
			b.handle(ctx, msg, h)
		}
	}
}

func (b *Bus) handle(ctx context.Context, msg *message.Message, h Handler) {
	defer msg.Ack()

	var s Submission
	if err := json.Unmarshal(msg.Payload, &s); err != nil {
		log.Warn().Err(err).Str("component", "bus").Str("message_uuid", msg.UUID).Msg("dropping malformed submission")
		return
	}
	if err := h(ctx, s); err != nil {
		log.Error().Err(err).Str("component", "bus").Str("submission", s.ID).Msg("submission handler failed")
	}
}

func (b *Bus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.cancel()
		err = b.pubsub.Close()
	})
	return err
}
