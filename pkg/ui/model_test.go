package ui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/chatwidget/pkg/composer"
	"github.com/go-go-golems/chatwidget/pkg/conversation"
	"github.com/go-go-golems/chatwidget/pkg/render"
	"github.com/go-go-golems/chatwidget/pkg/settings"
	"github.com/stretchr/testify/require"
)

type recordingParser struct {
	texts []string
}

func (p *recordingParser) Parse(text string, _, _ *conversation.Attachment) {
	p.texts = append(p.texts, text)
}

type countingScroller struct {
	n int
}

func (s *countingScroller) ScrollToBottom() { s.n++ }

type fixedIndicator string

func (f fixedIndicator) Indicator() string { return string(f) }

type fixture struct {
	model    *Model
	store    *conversation.Store
	composer *composer.Composer
	parser   *recordingParser
	scroller *countingScroller
}

func newFixture(t *testing.T, initial ...conversation.Message) fixture {
	t.Helper()
	store, err := conversation.NewStore(conversation.State{Messages: initial})
	require.NoError(t, err)
	parser := &recordingParser{}
	c, err := composer.New(store, composer.WithMessageParser(parser))
	require.NoError(t, err)

	reg := render.NewWidgetRegistry()
	reg.Register("options", func(render.WidgetContext) *render.Widget {
		return &render.Widget{Kind: render.WidgetOptions, Title: "Choose", Options: []string{"alpha", "beta"}}
	})
	scroller := &countingScroller{}
	m := NewModel(context.Background(), Options{
		Header:        "Conversation with Ada",
		Placeholder:   "Write your message here",
		Preamble:      "Earlier today",
		BotName:       "Ada",
		MarkdownStyle: "notty",
		Store:         store,
		Renderer:      render.NewRenderer(store, render.WithWidgets(reg)),
		Composer:      c,
		Scroll:        scroller,
	})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return fixture{model: m, store: store, composer: c, parser: parser, scroller: scroller}
}

func typeText(m *Model, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func TestModel_ViewShowsHeaderPreambleAndMessages(t *testing.T) {
	f := newFixture(t,
		conversation.NewBotMessage("Hi"),
		conversation.NewBotMessage("Pick one", conversation.WithWidget("options")),
	)
	view := f.model.View()
	require.Contains(t, view, "Conversation with Ada")
	require.Contains(t, view, "Earlier today")
	require.Contains(t, view, "Hi")
	require.Contains(t, view, "Pick one")
	require.Contains(t, view, "[1] alpha")
	require.Contains(t, view, "Attach Audio")
}

func TestModel_EnterSubmits(t *testing.T) {
	f := newFixture(t)
	typeText(f.model, "hello")
	require.Equal(t, "hello", f.composer.Text())

	f.model.Update(tea.KeyMsg{Type: tea.KeyEnter})

	msgs := f.store.Read().Messages
	require.Len(t, msgs, 1)
	require.Equal(t, conversation.TypeUser, msgs[0].Type)
	require.Equal(t, []string{"hello"}, f.parser.texts)
	require.Equal(t, 1, f.scroller.n)
	require.Empty(t, f.model.input.Value())

	f.model.Update(StateChangedMsg{})
	require.Contains(t, f.model.View(), "hello")
}

func TestModel_EnterWithEmptyInputDoesNothing(t *testing.T) {
	f := newFixture(t)
	f.model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Empty(t, f.store.Read().Messages)
	require.Empty(t, f.parser.texts)
	require.Equal(t, 0, f.scroller.n)
}

func TestModel_SettingChangeSwitchesAttachmentButton(t *testing.T) {
	f := newFixture(t)
	require.Contains(t, f.model.View(), "Attach Audio")

	f.model.Update(SettingChangedMsg{Setting: settings.AppSetting{URL: settings.VisionEndpoint}})
	require.True(t, f.composer.ImageModeEnabled())
	require.Contains(t, f.model.View(), "Select Image")

	typeText(f.model, "what is this")
	f.model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.Empty(t, f.store.Read().Messages)
}

func TestModel_AttachShowsFileName(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "memo.m4a")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	f.model.attach(path)
	require.Contains(t, f.model.View(), "memo.m4a")

	f.model.attach(filepath.Join(t.TempDir(), "notes.txt"))
	require.Contains(t, f.model.View(), "unsupported audio file")
}

func TestModel_DispatchSyncsTranscript(t *testing.T) {
	f := newFixture(t)
	f.model.Update(DispatchMsg{Fn: func() { f.composer.ApplyTranscript("dictated text") }})
	require.Equal(t, "dictated text", f.model.input.Value())
}

func TestModel_NoticeAndIndicator(t *testing.T) {
	f := newFixture(t)
	f.model.opts.Indicator = fixedIndicator("● listening")
	f.model.Update(NoticeMsg{Text: "Speech recognition is not supported in this environment."})

	view := f.model.View()
	require.Contains(t, view, "not supported")
	require.Contains(t, view, "● listening")

	f.model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotContains(t, f.model.View(), "not supported")
}

func TestModel_LoadingBotShowsNoWidget(t *testing.T) {
	f := newFixture(t, conversation.NewBotMessage("", conversation.WithLoading(), conversation.WithWidget("options")))
	require.NotContains(t, f.model.View(), "alpha")

	id := f.store.Read().Messages[0].ID
	require.NoError(t, f.store.Mutate(conversation.UpdateMessage(id, func(m *conversation.Message) {
		m.Loading = false
		m.Message = "Resolved"
	})))
	f.model.Update(StateChangedMsg{})
	view := f.model.View()
	require.Contains(t, view, "Resolved")
	require.Contains(t, view, "alpha")
}

func TestModel_CtrlCQuits(t *testing.T) {
	f := newFixture(t)
	_, cmd := f.model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
	require.True(t, strings.TrimSpace(f.model.View()) == "")
}

func TestModel_ComponentsReplaceHeaderAndAvatars(t *testing.T) {
	store, err := conversation.NewStore(conversation.State{Messages: []conversation.Message{
		conversation.NewBotMessage("Hi"),
		conversation.NewUserMessage("Hello", nil, nil),
	}})
	require.NoError(t, err)
	c, err := composer.New(store)
	require.NoError(t, err)

	r := render.NewRenderer(store,
		render.WithActionProvider("echo"),
		render.WithComponents(render.Components{
			Header:     func(p any) string { return "Support desk via " + p.(string) },
			BotAvatar:  func() string { return "Σ" },
			UserAvatar: func() string { return "Ω" },
		}),
	)
	m := NewModel(context.Background(), Options{
		Header:        "Conversation with Ada",
		BotName:       "Ada",
		MarkdownStyle: "notty",
		Store:         store,
		Renderer:      r,
		Composer:      c,
	})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	view := m.View()
	require.Contains(t, view, "Support desk via echo")
	require.NotContains(t, view, "Conversation with Ada")
	require.Contains(t, view, "Σ")
	require.Contains(t, view, "Ω")
}
