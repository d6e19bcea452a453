package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"absensi-ai/internal/adapter/tui/theme"
)

type role int

const (
	roleUser role = iota
	roleAssistant
	roleSystem
	roleError
)

// toolSummary is one operation call made while answering.
type toolSummary struct {
	name     string
	duration time.Duration
	failed   bool
}

type entry struct {
	role     role
	content  string
	rendered string // cached glamour output, empty until rendered
	at       time.Time
	tools    []toolSummary
}

// transcript is the scrollable conversation. It follows new output while
// the user is at the bottom and stays put once they scroll up.
type transcript struct {
	entries  []entry
	max      int
	trimmed  int
	width    int
	md       *glamour.TermRenderer
	vp       viewport.Model
	ready    bool
	atBottom bool
}

func newTranscript(limit int) transcript {
	return transcript{max: limit, atBottom: true}
}

func (t *transcript) setSize(w, h int) {
	if w != t.width {
		t.width = w
		t.md = nil
		for i := range t.entries {
			t.entries[i].rendered = ""
		}
	}
	if !t.ready {
		t.vp = viewport.New(w, h)
		t.vp.MouseWheelEnabled = true
		t.vp.MouseWheelDelta = 3
		t.ready = true
	} else {
		t.vp.Width = w
		t.vp.Height = h
	}
	t.refresh()
}

func (t *transcript) add(e entry) {
	if e.at.IsZero() {
		e.at = time.Now()
	}
	t.entries = append(t.entries, e)
	if t.max > 0 && len(t.entries) > t.max {
		excess := len(t.entries) - t.max
		t.entries = t.entries[excess:]
		t.trimmed += excess
	}
	t.refresh()
}

// updateLast replaces the content of the newest entry while an answer
// streams in.
func (t *transcript) updateLast(content string) {
	if len(t.entries) == 0 {
		return
	}
	last := &t.entries[len(t.entries)-1]
	last.content = content
	last.rendered = ""
	t.refresh()
}

func (t *transcript) clear() {
	t.entries = nil
	t.trimmed = 0
	t.atBottom = true
	t.refresh()
	t.vp.GotoTop()
}

func (t transcript) update(msg tea.Msg) (transcript, tea.Cmd) {
	if !t.ready {
		return t, nil
	}
	var cmd tea.Cmd
	t.vp, cmd = t.vp.Update(msg)
	t.atBottom = t.vp.AtBottom()
	return t, cmd
}

func (t transcript) view() string {
	if !t.ready {
		return "  Memuat..."
	}
	return t.vp.View()
}

func (t *transcript) refresh() {
	if !t.ready {
		return
	}
	t.vp.SetContent(t.render())
	if t.atBottom {
		t.vp.GotoBottom()
	}
}

func (t *transcript) render() string {
	if len(t.entries) == 0 {
		return theme.TextMuted.Render("  Belum ada percakapan.")
	}
	width := theme.Clamp(t.width-4, 40, theme.MaxContentWidth)

	var sb strings.Builder
	if t.trimmed > 0 {
		sb.WriteString(theme.TextMuted.Render(fmt.Sprintf("  (%d pesan lama disembunyikan)", t.trimmed)) + "\n\n")
	}
	for i := range t.entries {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(t.renderEntry(&t.entries[i], width))
	}
	return sb.String()
}

func (t *transcript) renderEntry(e *entry, width int) string {
	header := label(e.role) + " " + theme.Timestamp.Render(e.at.Format("15:04"))
	tools := renderTools(e.tools)

	var body string
	switch e.role {
	case roleAssistant:
		if e.rendered == "" {
			e.rendered = t.markdown(e.content, width)
		}
		body = strings.TrimRight(e.rendered, "\n")
	case roleError:
		body = "  " + theme.TextError.Render(wrapText(e.content, width-2))
	default:
		body = "  " + wrapText(e.content, width-2)
	}
	if strings.TrimSpace(body) == "" {
		return header + "\n" + tools
	}
	return header + "\n" + tools + body
}

func (t *transcript) markdown(content string, width int) string {
	if t.md == nil {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return "  " + wrapText(content, width-2)
		}
		t.md = r
	}
	out, err := t.md.Render(content)
	if err != nil {
		return "  " + wrapText(content, width-2)
	}
	return out
}

func label(r role) string {
	switch r {
	case roleUser:
		return theme.UserLabel.Render(theme.SymbolUser)
	case roleAssistant:
		return theme.BotLabel.Render(theme.SymbolBot)
	case roleError:
		return theme.ErrorLabel.Render(theme.SymbolError + " Error")
	default:
		return theme.SystemLabel.Render("Sistem")
	}
}

// renderTools lists the operations called before an answer.
func renderTools(tools []toolSummary) string {
	var sb strings.Builder
	for _, tc := range tools {
		icon := theme.TextSuccess.Render(theme.SymbolSuccess)
		if tc.failed {
			icon = theme.TextError.Render(theme.SymbolError)
		}
		line := "  " + icon + " " + theme.Dim.Render(tc.name)
		if tc.duration > 0 {
			line += " " + theme.TextMuted.Render(tc.duration.Round(time.Millisecond).String())
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

// wrapText wraps s at spaces to width runes, indenting continuation lines
// by two spaces. Existing line breaks are kept.
func wrapText(s string, width int) string {
	if width <= 0 {
		return s
	}
	var out []string
	for _, para := range strings.Split(s, "\n") {
		runes := []rune(para)
		for len(runes) > width {
			cut := width
			for i := width; i > 0; i-- {
				if runes[i] == ' ' {
					cut = i
					break
				}
			}
			out = append(out, string(runes[:cut]))
			runes = []rune(strings.TrimLeft(string(runes[cut:]), " "))
		}
		out = append(out, string(runes))
	}
	return strings.Join(out, "\n  ")
}

// statusLine renders key hints for the bottom bar.
func statusLine(width int, model string, hints [][2]string) string {
	parts := make([]string, 0, len(hints)+1)
	if model != "" {
		parts = append(parts, theme.TextInfo.Render(model))
	}
	for _, h := range hints {
		parts = append(parts, theme.StatusKey.Render(h[0])+" "+h[1])
	}
	line := strings.Join(parts, "  ")
	return theme.StatusBar.Width(max(width, lipgloss.Width(line))).Render(line)
}
