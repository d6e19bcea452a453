// Package chat is the terminal chat for the attendance assistant, built on
// Bubble Tea.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"absensi-ai/internal/adapter/tui/theme"
	"absensi-ai/internal/domain"
	"absensi-ai/internal/usecase"
)

// Agent answers one question given the prior transcript.
type Agent interface {
	Run(ctx context.Context, userMessage string, history []domain.Message, opts ...usecase.RunOption) string
}

// DefaultExamples are listed at start and can be asked by typing their number.
var DefaultExamples = []string{
	"Siapa saja yang tidak hadir hari ini?",
	"Tampilkan rekap absensi siswa ID 5 bulan Februari 2026",
	"Berapa persentase kehadiran kelas ID 3?",
	"Siapa saja yang alfa hari ini?",
	"Tampilkan absensi siswa ID 10 dari tanggal 2026-02-01 sampai 2026-02-09",
	"Analisis metode absen kelas 10A bulan ini",
	"Siapa top 5 siswa paling rajin absen di kelas 11B?",
	"Cek anomali absensi di kelas 12C",
}

var quitWords = []string{"quit", "exit", "q", "keluar"}

const (
	// historyLimit bounds the transcript sent back to the agent.
	historyLimit = 40
	// maxEntries bounds what the transcript view keeps.
	maxEntries = 500
)

// ModelDeps are the dependencies of the chat model.
type ModelDeps struct {
	Agent    Agent
	Model    string   // model name, shown in the status bar
	Examples []string // nil uses DefaultExamples
	Logger   *slog.Logger
	Send     func(tea.Msg) // delivers tool events to the running program
}

// Model is the root Bubble Tea model of the chat.
type Model struct {
	deps       ModelDeps
	transcript transcript
	input      textarea.Model
	spinner    spinner.Model
	stream     StreamConfig
	model      string

	waiting   bool
	streaming bool
	streamBuf []rune
	streamPos int
	width     int
	height    int
	quitting  bool
	activity  string

	// gen increases with every question; replies tagged with an older gen
	// belong to a cancelled question.
	gen     uint64
	cancel  context.CancelFunc
	history []domain.Message
	pending []toolSummary
}

// NewModel creates the chat model with the welcome text in place.
func NewModel(deps ModelDeps) Model {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Examples == nil {
		deps.Examples = DefaultExamples
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorInfo)

	ta := textarea.New()
	ta.Placeholder = "Ketik pertanyaan, atau nomor contoh..."
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter")
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Prompt = theme.InputPrompt
	ta.FocusedStyle.Placeholder = theme.InputPlaceholder
	ta.Focus()

	m := Model{
		deps:       deps,
		transcript: newTranscript(maxEntries),
		input:      ta,
		spinner:    s,
		stream:     StreamConfigForSpeed(StreamNormal),
		model:      deps.Model,
	}
	m.transcript.add(entry{role: roleSystem, content: m.welcome()})
	return m
}

func (m Model) welcome() string {
	var sb strings.Builder
	sb.WriteString("Ketik pertanyaan tentang absensi, atau 'quit' untuk keluar.\n\n")
	sb.WriteString("📋 Contoh pertanyaan yang bisa ditanyakan:")
	for i, q := range m.deps.Examples {
		fmt.Fprintf(&sb, "\n   %d. %s", i+1, q)
	}
	return sb.String()
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case AnswerMsg:
		if msg.Gen != m.gen {
			return m, nil
		}
		return m.handleAnswer(msg)

	case ToolEventMsg:
		if msg.Gen != m.gen || !m.waiting {
			return m, nil
		}
		m.handleToolEvent(msg.Event)
		return m, nil

	case StreamTickMsg:
		return m.handleStreamTick()

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	if _, isMouse := msg.(tea.MouseMsg); !isMouse && !m.waiting {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	var cmd tea.Cmd
	m.transcript, cmd = m.transcript.update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.waiting {
			m.cancelRequest("Permintaan dibatalkan.")
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit

	case tea.KeyCtrlD:
		m.quitting = true
		return m, tea.Quit

	case tea.KeyCtrlL:
		return m.handleCommand("/clear", nil)

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.update(msg)
		return m, cmd

	case tea.KeyEnter:
		if msg.Alt {
			break
		}
		if m.waiting {
			return m, nil
		}
		value := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		return m.submit(value)
	}

	if m.waiting {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit handles one line of input: a quit word, a slash command, the
// number of an example, or a question.
func (m Model) submit(value string) (tea.Model, tea.Cmd) {
	if value == "" {
		return m, nil
	}
	if slices.Contains(quitWords, strings.ToLower(value)) {
		m.quitting = true
		return m, tea.Quit
	}
	if cmd, args, ok := parseCommand(value); ok {
		return m.handleCommand(cmd, args)
	}
	if n, err := strconv.Atoi(value); err == nil && n >= 1 && n <= len(m.deps.Examples) {
		value = m.deps.Examples[n-1]
		m.transcript.add(entry{role: roleSystem, content: theme.SymbolArrowR + " " + value})
	}
	return m.ask(value)
}

func (m Model) ask(question string) (tea.Model, tea.Cmd) {
	if m.cancel != nil {
		m.cancel()
	}
	m.transcript.add(entry{role: roleUser, content: question})
	m.pending = nil

	m.gen++
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.waiting = true
	m.streaming = false
	m.input.Blur()
	m.activity = "Berpikir..."

	history := slices.Clone(m.history)
	return m, askCmd(ctx, m.deps.Agent, question, history, m.model, m.deps.Send, m.gen)
}

func (m *Model) handleToolEvent(ev usecase.ToolEvent) {
	switch ev.Kind {
	case usecase.ToolEventCall:
		m.activity = "Memanggil " + ev.Call.Name + "..."
	case usecase.ToolEventResult:
		m.pending = append(m.pending, toolSummary{
			name:     ev.Call.Name,
			duration: ev.Duration,
			failed:   ev.Failed,
		})
		m.activity = "Menyusun jawaban..."
	}
}

func (m Model) handleAnswer(msg AnswerMsg) (tea.Model, tea.Cmd) {
	m.cancel = nil
	m.deps.Logger.Debug("question answered",
		"elapsed", msg.Elapsed,
		"tools", len(m.pending),
	)

	m.history = append(m.history,
		domain.Message{Role: domain.RoleUser, Content: msg.Question},
		domain.Message{Role: domain.RoleAssistant, Content: msg.Answer},
	)
	if n := len(m.history); n > historyLimit {
		m.history = slices.Clone(m.history[n-historyLimit:])
	}

	r := roleAssistant
	if strings.HasPrefix(msg.Answer, "❌") {
		r = roleError
	}
	m.transcript.add(entry{role: r, tools: m.pending})
	m.pending = nil

	if m.stream.Speed == StreamInstant || r == roleError {
		m.transcript.updateLast(msg.Answer)
		m.finish()
		return m, nil
	}
	m.streamBuf = []rune(msg.Answer)
	m.streamPos = 0
	m.streaming = true
	return m, streamTickCmd(m.stream.TickRate)
}

func (m Model) handleStreamTick() (tea.Model, tea.Cmd) {
	if !m.streaming {
		return m, nil
	}
	m.streamPos = min(m.streamPos+m.stream.ChunkSize, len(m.streamBuf))
	m.transcript.updateLast(string(m.streamBuf[:m.streamPos]))
	if m.streamPos >= len(m.streamBuf) {
		m.finish()
		return m, nil
	}
	return m, streamTickCmd(m.stream.TickRate)
}

// finish returns the UI to accepting input.
func (m *Model) finish() {
	m.streaming = false
	m.waiting = false
	m.activity = ""
	m.streamBuf = nil
	m.input.Focus()
}

func (m *Model) cancelRequest(reason string) {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.gen++
	m.pending = nil
	m.finish()
	m.transcript.add(entry{role: roleSystem, content: reason})
}

func parseCommand(input string) (cmd string, args []string, ok bool) {
	if !strings.HasPrefix(input, "/") {
		return "", nil, false
	}
	parts := strings.Fields(input)
	return strings.ToLower(parts[0]), parts[1:], true
}

const helpText = `Perintah:
  /help, /bantuan   Tampilkan bantuan ini
  /contoh           Tampilkan contoh pertanyaan
  /clear            Bersihkan percakapan
  /cancel           Batalkan pertanyaan yang sedang diproses
  /speed            Ganti kecepatan tampilan jawaban
  /model <nama>     Ganti model
  /quit             Keluar (juga: quit, exit, q, keluar)

Tombol:
  Enter        Kirim
  Alt+Enter    Baris baru
  PgUp/PgDn    Gulir percakapan
  Ctrl+L       Bersihkan percakapan
  Ctrl+C       Batalkan atau keluar`

func (m Model) handleCommand(cmd string, args []string) (tea.Model, tea.Cmd) {
	switch cmd {
	case "/help", "/bantuan":
		m.transcript.add(entry{role: roleSystem, content: helpText})

	case "/contoh":
		m.transcript.add(entry{role: roleSystem, content: m.welcome()})

	case "/clear", "/bersihkan":
		if m.waiting {
			m.cancelRequest("Permintaan dibatalkan.")
		}
		m.transcript.clear()
		m.history = nil
		m.transcript.add(entry{role: roleSystem, content: theme.SymbolSuccess + " Percakapan dibersihkan."})

	case "/cancel", "/batal":
		if m.waiting {
			m.cancelRequest("Permintaan dibatalkan.")
		} else {
			m.transcript.add(entry{role: roleSystem, content: "Tidak ada pertanyaan yang sedang diproses."})
		}

	case "/speed":
		m.stream = StreamConfigForSpeed(NextStreamSpeed(m.stream.Speed))
		m.transcript.add(entry{role: roleSystem, content: "Kecepatan tampilan: " + m.stream.Speed.String()})

	case "/model":
		if len(args) == 0 {
			m.transcript.add(entry{role: roleSystem, content: "Model aktif: " + m.model})
			break
		}
		m.model = args[0]
		m.transcript.add(entry{role: roleSystem, content: "Model diganti ke " + m.model})

	case "/quit", "/exit", "/keluar":
		m.quitting = true
		return m, tea.Quit

	default:
		m.transcript.add(entry{role: roleSystem, content: fmt.Sprintf("Perintah %s tidak dikenal. Ketik /help.", cmd)})
	}
	return m, nil
}

// View renders the whole chat.
func (m Model) View() string {
	if m.quitting {
		return "👋 Terima kasih! Sampai jumpa.\n"
	}
	if m.width == 0 {
		return "  Memuat..."
	}

	header := theme.Header.Render(strings.TrimSpace(theme.SymbolSchool + " SISTEM ABSENSI SEKOLAH - AI AGENT"))

	inputView := m.input.View()
	if m.waiting {
		inputView = theme.Dim.Render("> menunggu jawaban...") + "\n" + m.spinner.View() + " " + m.activity
	}

	hints := [][2]string{{"Enter", "Kirim"}, {"/help", "Bantuan"}, {"Ctrl+C", "Keluar"}}
	if m.waiting {
		hints = [][2]string{{"Ctrl+C", "Batal"}, {"PgUp/PgDn", "Gulir"}}
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.transcript.view(),
		theme.Divider(m.width),
		inputView,
		statusLine(m.width, m.model, hints),
	)
}

func (m *Model) layout() {
	const headerH, dividerH, inputH, statusH = 1, 1, 3, 1
	contentH := max(m.height-headerH-dividerH-inputH-statusH, 5)
	m.transcript.setSize(m.width, contentH)
	m.input.SetWidth(max(m.width-2, 10))
}
