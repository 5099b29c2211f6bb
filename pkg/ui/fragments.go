package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/go-go-golems/chatwidget/pkg/conversation"
	"github.com/go-go-golems/chatwidget/pkg/render"
	"github.com/rs/zerolog/log"
)

// fragmentPainter turns rendered fragments into terminal text.
type fragmentPainter struct {
	width       int
	avatar      string
	userAvatar  string
	spinnerView string
	markdown    *glamour.TermRenderer
}

func newMarkdownRenderer(style string, width int) *glamour.TermRenderer {
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		log.Warn().Err(err).Str("component", "ui").Str("style", style).Msg("could not create markdown renderer")
		return nil
	}
	return r
}

func (p fragmentPainter) markdownText(text string) string {
	if p.markdown == nil || text == "" {
		return text
	}
	out, err := p.markdown.Render(text)
	if err != nil {
		log.Debug().Err(err).Str("component", "ui").Msg("markdown render failed, using plain text")
		return text
	}
	return strings.Trim(out, "\n")
}

func (p fragmentPainter) paint(f render.Fragment) string {
	var body string
	switch n := f.Body.(type) {
	case render.BotBubble:
		body = p.bot(n)
	case render.UserBubble:
		body = p.user(n)
	case render.CustomView:
		body = n.Content
	}
	if f.Widget != nil {
		body = lipgloss.JoinVertical(lipgloss.Left, body, p.widget(*f.Widget))
	}
	return body
}

func (p fragmentPainter) bubbleWidth() int {
	w := p.width - lipgloss.Width(p.avatar) - 6
	if w < 10 {
		w = 10
	}
	return w
}

func (p fragmentPainter) bot(b render.BotBubble) string {
	var text string
	if b.Loading {
		text = p.spinnerView
	} else {
		text = p.markdownText(b.Text)
	}
	bubble := botStyle.MaxWidth(p.bubbleWidth() + 4).Render(text)

	prefix := avatarStyle.Render(p.avatar)
	if !b.WithAvatar {
		prefix = strings.Repeat(" ", lipgloss.Width(prefix))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, prefix, " ", bubble)
}

func (p fragmentPainter) user(u render.UserBubble) string {
	lines := []string{u.Text}
	if u.Image != nil {
		lines = append(lines, attachmentStyle.Render("image: "+attachmentLabel(u.Image)))
	}
	if u.AudioFile != nil {
		lines = append(lines, attachmentStyle.Render("audio: "+attachmentLabel(u.AudioFile)))
	}
	bubble := userStyle.MaxWidth(p.bubbleWidth() + 4).Render(strings.Join(lines, "\n"))
	if p.userAvatar != "" {
		bubble = lipgloss.JoinHorizontal(lipgloss.Top, bubble, " ", avatarStyle.Render(p.userAvatar))
	}
	return lipgloss.PlaceHorizontal(p.width, lipgloss.Right, bubble)
}

func (p fragmentPainter) widget(w render.Widget) string {
	var parts []string
	if w.Title != "" {
		parts = append(parts, widgetTitleStyle.Render(w.Title))
	}
	switch w.Kind {
	case render.WidgetMarkdown:
		parts = append(parts, p.markdownText(w.Body))
	case render.WidgetOptions:
		if w.Body != "" {
			parts = append(parts, w.Body)
		}
		for i, o := range w.Options {
			parts = append(parts, optionStyle.Render(fmt.Sprintf("[%d] %s", i+1, o)))
		}
	default:
		if w.Body != "" {
			parts = append(parts, w.Body)
		}
	}
	return lipgloss.NewStyle().PaddingLeft(lipgloss.Width(p.avatar) + 3).Render(strings.Join(parts, "\n"))
}

func attachmentLabel(a *conversation.Attachment) string {
	if a.Size > 0 {
		return fmt.Sprintf("%s (%s)", a.Name, humanize.Bytes(uint64(a.Size)))
	}
	return a.Name
}
