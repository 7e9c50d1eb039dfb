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

	"casebot/internal/domain"
)

// RAGPort is the TUI-facing subset of the RAG service.
type RAGPort interface {
	Ask(ctx context.Context, question string, topK int) (domain.Answer, error)
	Size() int
}

// answerMsg carries the result of an asynchronous Ask.
type answerMsg struct {
	question string
	answer   domain.Answer
	err      error
}

// Model is the Bubble Tea model for the chat client.
type Model struct {
	ctx       context.Context
	service   RAGPort
	topK      int
	source    string
	input     textinput.Model
	viewport  viewport.Model
	answer    domain.Answer
	status    string
	cursor    int
	ready     bool
	busy      bool
	lastQuery string
}

// New creates a new chat model. source names where the facts come from.
func New(ctx context.Context, service RAGPort, topK int, source string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	if topK <= 0 {
		topK = 6
	}
	return Model{
		ctx:      ctx,
		service:  service,
		topK:     topK,
		source:   source,
		input:    ti,
		viewport: vp,
		status:   fmt.Sprintf("%d facts loaded. Type a question.", service.Size()),
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around answer and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + source
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.answer = domain.Answer{}
		} else {
			m.status = fmt.Sprintf("%d facts retrieved for %q", msg.answer.Count, msg.question)
			m.answer = msg.answer
			m.lastQuery = msg.question
		}
		m.cursor = 0
		m.viewport.SetContent(m.renderAnswer())
		m.viewport.GotoTop()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.busy {
				m.busy = true
				m.status = "Searching..."
				m.input.SetValue("")
				return m, m.ask(q)
			}
		case "down":
			if n := len(m.answer.Hits); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		case "up":
			if n := len(m.answer.Hits); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(question string) tea.Cmd {
	svc, ctx, k := m.service, m.ctx, m.topK
	return func() tea.Msg {
		ans, err := svc.Ask(ctx, question, k)
		return answerMsg{question: question, answer: ans, err: err}
	}
}

// View renders the layout and the current answer.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("casebot")
	source := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.source)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + source + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderAnswer() string {
	if m.answer.Text == "" {
		return "No answer yet."
	}
	var b strings.Builder
	b.WriteString(answerStyle.Render(m.answer.Text))
	if len(m.answer.Hits) == 0 {
		return b.String()
	}
	h := m.answer.Hits[m.cursor]
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Fact %d/%d  score=%.3f  row=%d  %s", m.cursor+1, len(m.answer.Hits), h.Score, h.Row, h.Fact.Status)))
	b.WriteString("\n")
	b.WriteString(highlightBestSentence(h.Fact.Text, m.lastQuery))
	if len(h.Fact.Sources) > 0 {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(strings.Join(h.Fact.Sources, "; ")))
	}
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	answerStyle    = lipgloss.NewStyle()
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
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
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
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
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
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
