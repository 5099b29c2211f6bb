package composer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-go-golems/chatwidget/pkg/conversation"
	"github.com/go-go-golems/chatwidget/pkg/metrics"
	"github.com/go-go-golems/chatwidget/pkg/settings"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type parseCall struct {
	text  string
	image *conversation.Attachment
	audio *conversation.Attachment
}

type recordingParser struct {
	calls []parseCall
}

func (p *recordingParser) Parse(text string, image, audio *conversation.Attachment) {
	p.calls = append(p.calls, parseCall{text: text, image: image, audio: audio})
}

type countingScroller struct {
	n int
}

func (s *countingScroller) ScrollToBottom() { s.n++ }

type fakeCapturer struct {
	capturing bool
	calls     int
}

func (f *fakeCapturer) Capture(context.Context) error {
	f.calls++
	f.capturing = true
	return nil
}

func (f *fakeCapturer) Capturing() bool { return f.capturing }

func newStore(t *testing.T) *conversation.Store {
	t.Helper()
	s, err := conversation.NewStore(conversation.State{})
	require.NoError(t, err)
	return s
}

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, content, 0o644))
	return p
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestNew_RequiresASink(t *testing.T) {
	_, err := New(newStore(t))
	require.ErrorIs(t, err, ErrNoParser)

	_, err = New(nil, WithMessageParser(&recordingParser{}))
	require.Error(t, err)
}

func TestSubmit_DefaultModeScenario(t *testing.T) {
	store := newStore(t)
	parser := &recordingParser{}
	scroller := &countingScroller{}
	c, err := New(store, WithMessageParser(parser), WithScroller(scroller))
	require.NoError(t, err)

	c.SetText("hello")
	ok, err := c.Submit()
	require.NoError(t, err)
	require.True(t, ok)

	msgs := store.Read().Messages
	require.Len(t, msgs, 1)
	require.Equal(t, conversation.TypeUser, msgs[0].Type)
	require.Equal(t, "hello", msgs[0].Message)
	require.Nil(t, msgs[0].Image)
	require.Nil(t, msgs[0].AudioFile)

	require.Equal(t, []parseCall{{text: "hello"}}, parser.calls)
	require.Equal(t, 1, scroller.n)
	require.Equal(t, State{}, c.State())
}

func TestSubmit_EmptyTextNeverAppends(t *testing.T) {
	for _, imageMode := range []bool{false, true} {
		store := newStore(t)
		parser := &recordingParser{}
		c, err := New(store, WithMessageParser(parser), WithImageMode(imageMode))
		require.NoError(t, err)

		if imageMode {
			require.NoError(t, c.AttachImage(writeFile(t, "pic.png", pngHeader)))
		}
		ok, err := c.Submit()
		require.NoError(t, err)
		require.False(t, ok)
		require.Empty(t, store.Read().Messages)
		require.Empty(t, parser.calls)
	}
}

func TestSubmit_ImageModeWithoutImageIsGated(t *testing.T) {
	store := newStore(t)
	parser := &recordingParser{}
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	c, err := New(store, WithMessageParser(parser), WithImageMode(true), WithMetrics(m))
	require.NoError(t, err)

	c.SetText("describe this")
	before := c.State()
	ok, err := c.Submit()
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, store.Read().Messages)
	require.Empty(t, parser.calls)
	require.Equal(t, before, c.State())
	require.Equal(t, 1.0, testutil.ToFloat64(m.Submissions().WithLabelValues("gated")))
}

func TestSubmit_ImageMode(t *testing.T) {
	store := newStore(t)
	parser := &recordingParser{}
	c, err := New(store, WithMessageParser(parser), WithImageMode(true))
	require.NoError(t, err)

	require.NoError(t, c.AttachImage(writeFile(t, "pic.png", pngHeader)))
	c.SetText("what is this")
	ok, err := c.Submit()
	require.NoError(t, err)
	require.True(t, ok)

	msgs := store.Read().Messages
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].Image)
	require.Equal(t, "pic.png", msgs[0].Image.Name)
	require.Equal(t, "image/png", msgs[0].Image.MIMEType)
	require.Len(t, parser.calls, 1)
	require.NotNil(t, parser.calls[0].image)
	require.Nil(t, c.State().Image)
}

func TestSubmit_ValidatorRejectsSilently(t *testing.T) {
	store := newStore(t)
	parser := &recordingParser{}
	c, err := New(store,
		WithMessageParser(parser),
		WithValidator(func(text string) bool { return !strings.Contains(text, "forbidden") }),
	)
	require.NoError(t, err)

	c.SetText("forbidden words")
	ok, err := c.Submit()
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, store.Read().Messages)
	require.Empty(t, parser.calls)
	require.Equal(t, "forbidden words", c.Text())
}

func TestSubmit_ExactlyOneSink(t *testing.T) {
	store := newStore(t)
	parser := &recordingParser{}
	var parsed []string
	c, err := New(store,
		WithMessageParser(parser),
		WithParseFunc(func(text string, _, _ *conversation.Attachment) { parsed = append(parsed, text) }),
	)
	require.NoError(t, err)

	for _, text := range []string{"one", "two"} {
		c.SetText(text)
		ok, err := c.Submit()
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Equal(t, []string{"one", "two"}, parsed)
	require.Empty(t, parser.calls)
}

func TestSubmit_AudioAttachment(t *testing.T) {
	store := newStore(t)
	parser := &recordingParser{}
	c, err := New(store, WithMessageParser(parser))
	require.NoError(t, err)

	require.NoError(t, c.AttachAudio(writeFile(t, "note.WAV", []byte("RIFF"))))
	c.SetText("transcribe")
	ok, err := c.Submit()
	require.NoError(t, err)
	require.True(t, ok)

	require.Len(t, parser.calls, 1)
	require.NotNil(t, parser.calls[0].audio)
	require.Equal(t, "note.WAV", parser.calls[0].audio.Name)
	require.Nil(t, c.State().AudioFile)
}

func TestAttach_RespectsMode(t *testing.T) {
	c, err := New(newStore(t), WithMessageParser(&recordingParser{}))
	require.NoError(t, err)

	require.ErrorIs(t, c.AttachImage(writeFile(t, "pic.png", pngHeader)), ErrImageModeDisabled)
	require.ErrorIs(t, c.AttachAudio(writeFile(t, "notes.txt", []byte("x"))), ErrUnsupportedAudio)

	c.SetImageMode(true)
	require.ErrorIs(t, c.AttachAudio(writeFile(t, "a.mp3", []byte("x"))), ErrAudioModeDisabled)
	require.ErrorIs(t, c.AttachImage(writeFile(t, "doc.txt", []byte("plain text"))), ErrUnsupportedImage)
}

func TestAttachImage_SniffsUnknownExtension(t *testing.T) {
	c, err := New(newStore(t), WithMessageParser(&recordingParser{}), WithImageMode(true))
	require.NoError(t, err)

	require.NoError(t, c.AttachImage(writeFile(t, "capture", pngHeader)))
	require.Equal(t, "image/png", c.State().Image.MIMEType)
}

func TestSetImageMode_Asymmetry(t *testing.T) {
	c, err := New(newStore(t), WithMessageParser(&recordingParser{}))
	require.NoError(t, err)

	require.NoError(t, c.AttachAudio(writeFile(t, "a.m4a", []byte("x"))))
	c.SetImageMode(true)
	require.Nil(t, c.State().AudioFile)

	require.NoError(t, c.AttachImage(writeFile(t, "pic.png", pngHeader)))
	c.SetImageMode(false)
	require.Nil(t, c.State().Image)

	c.SetText("hi")
	parser := &recordingParser{}
	c.parser = parser
	ok, err := c.Submit()
	require.NoError(t, err)
	require.True(t, ok)
	require.Nil(t, parser.calls[0].image)

	// The image queued before the mode switch was cleared by the submit.
	c.SetImageMode(true)
	require.Nil(t, c.State().Image)
}

func TestSetImageMode_HiddenImageReturns(t *testing.T) {
	c, err := New(newStore(t), WithMessageParser(&recordingParser{}), WithImageMode(true))
	require.NoError(t, err)

	require.NoError(t, c.AttachImage(writeFile(t, "pic.png", pngHeader)))
	c.SetImageMode(false)
	require.Nil(t, c.State().Image)
	c.SetImageMode(true)
	require.NotNil(t, c.State().Image)
}

func TestApplySetting(t *testing.T) {
	c, err := New(newStore(t), WithMessageParser(&recordingParser{}))
	require.NoError(t, err)

	c.ApplySetting(settings.AppSetting{URL: settings.VisionEndpoint})
	require.True(t, c.ImageModeEnabled())
	c.ApplySetting(settings.AppSetting{URL: "http://localhost:8092/v1/gpt/ask"})
	require.False(t, c.ImageModeEnabled())
}

func TestCapture_Delegates(t *testing.T) {
	c, err := New(newStore(t), WithMessageParser(&recordingParser{}))
	require.NoError(t, err)
	require.NoError(t, c.Capture(context.Background()))
	require.False(t, c.State().Capturing)

	fc := &fakeCapturer{}
	c, err = New(newStore(t), WithMessageParser(&recordingParser{}), WithCapturer(fc))
	require.NoError(t, err)
	require.NoError(t, c.Capture(context.Background()))
	require.Equal(t, 1, fc.calls)
	require.True(t, c.State().Capturing)

	c.ApplyTranscript("dictated")
	require.Equal(t, "dictated", c.Text())
}

func TestIsAudioFile(t *testing.T) {
	for _, name := range []string{"a.mp3", "b.MP4", "c.mpeg", "d.mpga", "e.m4a", "f.wav", "g.webm", "h.x-m4a"} {
		require.True(t, IsAudioFile(name), name)
	}
	for _, name := range []string{"a.ogg", "b.flac", "mp3", "c.txt"} {
		require.False(t, IsAudioFile(name), name)
	}
}
