package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"supportrag/internal/completion"
	"supportrag/internal/domain"
	"supportrag/internal/service"
)

// Asker is the console-facing subset of the chat service.
type Asker interface {
	Complete(ctx context.Context, req service.ChatRequest) ([]byte, *service.Retrieval, error)
}

type answerMsg struct {
	query     string
	answer    string
	retrieval *service.Retrieval
	err       error
}

// Model is the Bubble Tea model for the ask console. Page 0 shows the answer,
// the following pages show each context match that grounded it.
type Model struct {
	ctx       context.Context
	asker     Asker
	input     textinput.Model
	viewport  viewport.Model
	history   []domain.ChatMessage
	answer    string
	matches   []domain.RetrievalMatch
	header    string
	status    string
	page      int
	busy      bool
	ready     bool
	lastQuery string
}

// New creates a new console model. header is shown under the title.
func New(ctx context.Context, asker Asker, header string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{ctx: ctx, asker: asker, input: ti, viewport: vp, header: header, status: "Ready. Up/Down switch between answer and sources."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // title+header, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderPage())
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.history = m.history[:len(m.history)-1]
		} else {
			m.answer = msg.answer
			m.matches = msg.retrieval.Matches
			m.page = 0
			m.lastQuery = msg.query
			m.history = append(m.history, domain.NewChatMessage("assistant", msg.answer))
			m.status = fmt.Sprintf("Answered %q using %d source(s)", msg.query, len(m.matches))
		}
		m.viewport.SetContent(m.renderPage())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.input.SetValue("")
			m.status = "Thinking..."
			m.history = append(m.history, domain.NewChatMessage("user", q))
			return m, m.ask(q, append([]domain.ChatMessage(nil), m.history...))
		case "down":
			if pages := m.pages(); pages > 1 {
				m.page = (m.page + 1) % pages
				m.viewport.SetContent(m.renderPage())
				return m, nil
			}
		case "up":
			if pages := m.pages(); pages > 1 {
				m.page = (m.page - 1 + pages) % pages
				m.viewport.SetContent(m.renderPage())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(query string, messages []domain.ChatMessage) tea.Cmd {
	return func() tea.Msg {
		body, retrieval, err := m.asker.Complete(m.ctx, service.ChatRequest{Messages: messages})
		if err != nil {
			return answerMsg{query: query, err: err}
		}
		if retrieval == nil {
			retrieval = &service.Retrieval{}
		}
		return answerMsg{query: query, answer: completion.ContentOf(body), retrieval: retrieval}
	}
}

// View renders the console layout and the current page.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	title := lipgloss.NewStyle().Bold(true).Render("Support Assistant")
	header := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.header)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return title + "\n" + header + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) pages() int {
	if m.answer == "" && len(m.matches) == 0 {
		return 0
	}
	return 1 + len(m.matches)
}

func (m Model) renderPage() string {
	if m.pages() == 0 {
		return "No answer yet."
	}
	if m.page == 0 {
		return fmt.Sprintf("Answer  (1/%d)\n\n%s", m.pages(), m.answer)
	}
	match := m.matches[m.page-1]
	score := "n/a"
	if match.Score != nil {
		score = fmt.Sprintf("%.3f", *match.Score)
	}
	title := fmt.Sprintf("Source %d/%d  score=%s  id=%s", m.page, len(m.matches), score, match.ID)
	return title + "\n\n" + highlightBestSentence(match.Text(), m.lastQuery)
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// highlightBestSentence emphasises the sentence sharing the most words with query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx, bestScore := 0, -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := make(map[string]struct{})
	for _, t := range unicodeWordRe.FindAllString(strings.ToLower(sentence), -1) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
