package ui

import (
	"context"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/chatwidget/pkg/composer"
	"github.com/go-go-golems/chatwidget/pkg/conversation"
	"github.com/go-go-golems/chatwidget/pkg/render"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// Indicator reports the listening indicator of a running speech capture.
type Indicator interface {
	Indicator() string
}

type Options struct {
	Header      string
	Placeholder string
	// Preamble is markdown shown above the messages.
	Preamble string
	BotName  string
	// MarkdownStyle is a glamour standard style name.
	MarkdownStyle string

	Store     *conversation.Store
	Renderer  *render.Renderer
	Composer  *composer.Composer
	Indicator Indicator
	// Scroll is notified after a submission. The store subscription covers
	// other appends.
	Scroll composer.Scroller
}

// Model is the widget. It is used through a pointer so that callbacks
// dispatched onto the UI loop can change it.
type Model struct {
	opts Options
	ctx  context.Context

	width  int
	height int

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	picker   filepicker.Model
	picking  bool
	markdown *glamour.TermRenderer
	mdWidth  int

	notice   string
	quitting bool
}

var _ tea.Model = &Model{}

func NewModel(ctx context.Context, opts Options) *Model {
	if opts.MarkdownStyle == "" {
		opts.MarkdownStyle = "dark"
	}
	if opts.BotName == "" {
		opts.BotName = "Bot"
	}

	in := textinput.New()
	in.Placeholder = opts.Placeholder
	in.Prompt = "> "
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))

	w, h := InitialSize()
	m := &Model{
		opts:     opts,
		ctx:      ctx,
		input:    in,
		spinner:  sp,
		picker:   filepicker.New(),
		viewport: viewport.New(w, h),
	}
	m.resize(w, h)
	m.refresh()
	return m
}

// InitialSize is the terminal size before the first WindowSizeMsg.
func InitialSize() (int, int) {
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 || h <= 0 {
		return 80, 24
	}
	return w, h
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Notify shows an advisory notice. Call it only from the UI loop.
func (m *Model) Notify(text string) {
	m.notice = text
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refresh()
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd

	case StateChangedMsg:
		m.refresh()
		return m, nil

	case ScrollMsg:
		m.viewport.GotoBottom()
		return m, nil

	case SettingChangedMsg:
		before := m.opts.Composer.ImageModeEnabled()
		m.opts.Composer.ApplySetting(msg.Setting)
		if before != m.opts.Composer.ImageModeEnabled() {
			log.Info().Str("component", "ui").Bool("image_mode", m.opts.Composer.ImageModeEnabled()).Msg("input mode changed")
			m.picking = false
		}
		return m, nil

	case DispatchMsg:
		if msg.Fn != nil {
			msg.Fn()
		}
		m.syncInput()
		return m, nil

	case NoticeMsg:
		m.notice = msg.Text
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.hasLoading() {
			m.refresh()
		}
		return m, cmd

	case tea.KeyMsg:
		if m.picking {
			return m, m.updatePicker(msg)
		}
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			m.submit()
			return m, nil
		case "ctrl+r":
			m.notice = ""
			if err := m.opts.Composer.Capture(m.ctx); err != nil {
				m.notice = err.Error()
			}
			return m, nil
		case "ctrl+o":
			return m, m.openPicker()
		case "ctrl+x":
			m.opts.Composer.ClearAttachments()
			return m, nil
		case "esc":
			m.notice = ""
			return m, nil
		case "pgup", "pgdown", "ctrl+up", "ctrl+down":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	if m.picking {
		cmds = append(cmds, m.updatePicker(msg))
		return m, tea.Batch(cmds...)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.opts.Composer.SetText(m.input.Value())

	return m, tea.Batch(cmds...)
}

func (m *Model) submit() {
	m.opts.Composer.SetText(m.input.Value())
	ok, err := m.opts.Composer.Submit()
	if err != nil {
		log.Error().Err(err).Str("component", "ui").Msg("submit failed")
		m.notice = err.Error()
		return
	}
	if !ok {
		return
	}
	m.notice = ""
	m.input.SetValue("")
	if m.opts.Scroll != nil {
		m.opts.Scroll.ScrollToBottom()
	}
}

func (m *Model) openPicker() tea.Cmd {
	m.picker = filepicker.New()
	if wd, err := os.Getwd(); err == nil {
		m.picker.CurrentDirectory = wd
	}
	if !m.opts.Composer.ImageModeEnabled() {
		m.picker.AllowedTypes = composer.AudioExtensions
	}
	m.picking = true
	return tea.Batch(m.picker.Init(), func() tea.Msg {
		return tea.WindowSizeMsg{Width: m.width, Height: m.height}
	})
}

func (m *Model) updatePicker(msg tea.Msg) tea.Cmd {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "esc", "ctrl+o":
			m.picking = false
			return nil
		case "ctrl+c":
			m.quitting = true
			return tea.Quit
		}
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	if ok, path := m.picker.DidSelectFile(msg); ok {
		m.picking = false
		m.attach(path)
	} else if ok, path := m.picker.DidSelectDisabledFile(msg); ok {
		m.notice = "Unsupported file: " + path
	}
	return cmd
}

func (m *Model) attach(path string) {
	var err error
	if m.opts.Composer.ImageModeEnabled() {
		err = m.opts.Composer.AttachImage(path)
	} else {
		err = m.opts.Composer.AttachAudio(path)
	}
	if err != nil {
		m.notice = err.Error()
		return
	}
	m.notice = ""
}

// syncInput copies composer text changed outside the input, a transcript
// for example, into the text input.
func (m *Model) syncInput() {
	if text := m.opts.Composer.Text(); text != m.input.Value() {
		m.input.SetValue(text)
		m.input.CursorEnd()
	}
}

func (m *Model) hasLoading() bool {
	for _, msg := range m.opts.Store.Read().Messages {
		if msg.Loading {
			return true
		}
	}
	return false
}

func (m *Model) chromeHeight() int {
	// header, notice, attachment row, bordered input, help
	return 1 + 1 + 1 + 3 + 1
}

func (m *Model) resize(w, h int) {
	m.width, m.height = w, h
	vh := h - m.chromeHeight()
	if vh < 3 {
		vh = 3
	}
	m.viewport.Width = w
	m.viewport.Height = vh
	m.input.Width = w - 6
	if m.mdWidth != w || m.markdown == nil {
		m.mdWidth = w
		m.markdown = newMarkdownRenderer(m.opts.MarkdownStyle, w-10)
	}
}

// refresh re-renders the conversation into the viewport.
func (m *Model) refresh() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.conversationView())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) painter() fragmentPainter {
	return fragmentPainter{
		width:       m.width,
		avatar:      m.opts.Renderer.BotAvatar(strings.ToUpper(string([]rune(m.opts.BotName)[:1]))),
		userAvatar:  m.opts.Renderer.UserAvatar(),
		spinnerView: m.spinner.View(),
		markdown:    m.markdown,
	}
}

func (m *Model) conversationView() string {
	p := m.painter()
	var blocks []string
	if m.opts.Preamble != "" {
		blocks = append(blocks, p.markdownText(m.opts.Preamble))
	}
	for _, f := range m.opts.Renderer.RenderAll(m.opts.Store.Read()) {
		blocks = append(blocks, p.paint(f))
	}
	return strings.Join(blocks, "\n")
}

// attachmentButton is the label of the attachment affordance for the current mode.
func (m *Model) attachmentButton() string {
	st := m.opts.Composer.State()
	if st.ImageModeEnabled {
		if st.Image != nil {
			return st.Image.Name
		}
		return "Select Image"
	}
	if st.AudioFile != nil {
		return st.AudioFile.Name
	}
	return "Attach Audio"
}

func (m *Model) listening() string {
	if m.opts.Indicator == nil {
		return ""
	}
	return m.opts.Indicator.Indicator()
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.picking {
		return lipgloss.JoinVertical(lipgloss.Left,
			headerStyle.Width(m.width).Render(m.opts.Renderer.Header(m.opts.Header)),
			m.picker.View(),
			helpStyle.Render("enter: select  esc: cancel"),
		)
	}

	row := buttonStyle.Render("ctrl+o " + m.attachmentButton())
	if l := m.listening(); l != "" {
		row = lipgloss.JoinHorizontal(lipgloss.Top, row, " ", listeningStyle.Render(l))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Width(m.width).Render(m.opts.Renderer.Header(m.opts.Header)),
		m.viewport.View(),
		noticeStyle.Render(m.notice),
		row,
		inputStyle.Width(m.width-2).Render(m.input.View()),
		helpStyle.Render("enter: send  ctrl+r: dictate  ctrl+o: attach  ctrl+x: clear attachment  ctrl+c: quit"),
	)
}
