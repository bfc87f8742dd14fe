package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nuno-ui/abeto-task-manager-sub000/internal/review"
	"github.com/nuno-ui/abeto-task-manager-sub000/pkg/models"
)

// reviewStyles contains the visual styling for the review screen.
type reviewStyles struct {
	Header   lipgloss.Style
	Title    lipgloss.Style
	Subtle   lipgloss.Style
	Selected lipgloss.Style
	Error    lipgloss.Style
	Success  lipgloss.Style
}

func defaultReviewStyles() reviewStyles {
	return reviewStyles{
		Header:   lipgloss.NewStyle().Bold(true),
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		Subtle:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Selected: lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Bold(true),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Success:  lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
	}
}

type reviewMode int

const (
	modeBrowse reviewMode = iota
	modeAnswerText
	modeComment
)

// reviewModel is the interactive review screen: one pending project at a time with the
// questions of the reviewer's area. All changes go through the walker.
type reviewModel struct {
	ctx  context.Context
	w    *review.Walker
	save func(review.Preferences) error

	question int // selected question
	option   int // highlighted option of the selected question
	mode     reviewMode
	input    textinput.Model

	status    string
	statusErr bool
	styles    reviewStyles
}

func newReviewModel(ctx context.Context, w *review.Walker, save func(review.Preferences) error) *reviewModel {
	ti := textinput.New()
	ti.Width = 60
	m := &reviewModel{ctx: ctx, w: w, save: save, input: ti, styles: defaultReviewStyles()}
	m.syncOption()
	return m
}

// runReviewTUI runs the review screen until the reviewer quits, then saves preferences.
func runReviewTUI(ctx context.Context, w *review.Walker, in io.Reader, out io.Writer, save func(review.Preferences) error) error {
	m := newReviewModel(ctx, w, save)
	_, err := tea.NewProgram(m, tea.WithContext(ctx), tea.WithInput(in), tea.WithOutput(out)).Run()
	m.persist()
	if err != nil {
		return fmt.Errorf("review: %w", err)
	}
	printReviewSummary(out, w)
	return nil
}

func (m *reviewModel) persist() {
	if err := m.save(m.w.Preferences()); err != nil {
		slog.Warn("save reviewer preferences failed", "err", err)
	}
}

func (m *reviewModel) setStatus(s string, err error) {
	if err != nil {
		m.status, m.statusErr = err.Error(), true
		return
	}
	m.status, m.statusErr = s, false
}

// options returns the choices for q; free-text questions have none.
func options(q review.Question) []string {
	switch q.Type {
	case review.AnswerBoolean:
		return []string{"true", "false"}
	case review.AnswerSelect:
		return q.Options
	}
	return nil
}

func (m *reviewModel) selected() (review.Question, bool) {
	qs := m.w.Questions()
	if m.question < 0 || m.question >= len(qs) {
		return review.Question{}, false
	}
	return qs[m.question], true
}

// syncOption puts the option cursor on the stored answer of the selected question.
func (m *reviewModel) syncOption() {
	m.option = 0
	q, ok := m.selected()
	if !ok {
		return
	}
	if i := slices.Index(options(q), m.w.Answers()[q.ID]); i >= 0 {
		m.option = i
	}
}

// moved resets per-project state after the walker changed project or area.
func (m *reviewModel) moved() {
	m.question = 0
	m.syncOption()
}

func (m *reviewModel) Init() tea.Cmd { return nil }

func (m *reviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		if m.mode != modeBrowse {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		return m, nil
	}
	if key.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.mode != modeBrowse {
		return m.updateInput(key)
	}

	switch key.String() {
	case "q", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.question > 0 {
			m.question--
			m.syncOption()
		}
	case "down", "j":
		if m.question < len(m.w.Questions())-1 {
			m.question++
			m.syncOption()
		}
	case "left", "h":
		if m.option > 0 {
			m.option--
		}
	case "right", "l":
		if q, ok := m.selected(); ok && m.option < len(options(q))-1 {
			m.option++
		}
	case "enter", " ":
		return m.answer()
	case "c":
		if _, ok := m.w.Current(); !ok {
			m.setStatus("", review.ErrNoProject)
			break
		}
		m.mode = modeComment
		m.input.Placeholder = "#12 to comment on task 12, or plain text"
		m.input.SetValue("")
		return m, m.input.Focus()
	case "n":
		m.w.Next()
		m.moved()
		m.status = ""
	case "s":
		m.w.Skip()
		m.moved()
		m.setStatus("skipped", nil)
	case "p":
		m.w.Previous()
		m.moved()
		m.status = ""
	case "d":
		p, _ := m.w.Current()
		if _, err := m.w.Complete(m.ctx); err != nil {
			m.setStatus("", err)
			break
		}
		m.persist()
		m.moved()
		m.setStatus(fmt.Sprintf("✓ reviewed %s (streak %d)", p.Title, m.w.Preferences().Streak), nil)
	case "a":
		next := nextArea(m.w.Area())
		if err := m.w.SwitchArea(m.ctx, next); err != nil {
			m.setStatus("", err)
			break
		}
		m.persist()
		m.moved()
		m.setStatus("area "+string(next), nil)
	}
	return m, nil
}

// answer stores the highlighted option, or opens the text box for free-text questions.
func (m *reviewModel) answer() (tea.Model, tea.Cmd) {
	q, ok := m.selected()
	if !ok {
		return m, nil
	}
	opts := options(q)
	if len(opts) == 0 {
		if _, ok := m.w.Current(); !ok {
			m.setStatus("", review.ErrNoProject)
			return m, nil
		}
		m.mode = modeAnswerText
		m.input.Placeholder = q.Prompt
		m.input.SetValue(m.w.Answers()[q.ID])
		return m, m.input.Focus()
	}
	value := opts[m.option]
	if err := m.w.Answer(m.ctx, q.ID, value); err != nil {
		m.setStatus("", err)
		return m, nil
	}
	m.setStatus(fmt.Sprintf("✓ %s = %s", q.ID, value), nil)
	return m, nil
}

func (m *reviewModel) updateInput(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "esc":
		m.mode = modeBrowse
		m.input.Blur()
		return m, nil
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		var err error
		var done string
		if m.mode == modeComment {
			var taskID *int64
			taskID, text, err = parseComment(text)
			if err == nil {
				err = m.w.Comment(m.ctx, taskID, text)
			}
			done = "✓ comment saved"
		} else if q, ok := m.selected(); ok {
			err = m.w.Answer(m.ctx, q.ID, text)
			done = "✓ " + q.ID + " saved"
		}
		if err != nil {
			m.setStatus("", err)
			return m, nil
		}
		m.setStatus(done, nil)
		m.mode = modeBrowse
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(key)
	return m, cmd
}

func nextArea(cur models.ReviewerArea) models.ReviewerArea {
	i := slices.Index(models.AllAreas, cur)
	return models.AllAreas[(i+1)%len(models.AllAreas)]
}

func (m *reviewModel) View() string {
	var b strings.Builder
	prefs := m.w.Preferences()
	st := m.w.Stats()
	b.WriteString(m.styles.Header.Render(fmt.Sprintf("Review as %s · %s", prefs.ReviewerID, m.w.Area())))
	b.WriteString(m.styles.Subtle.Render(fmt.Sprintf("  %d pending of %d · streak %d", st.Pending, st.Total, prefs.CurrentStreak(time.Now()))))
	b.WriteString("\n\n")

	p, ok := m.w.Current()
	if !ok {
		b.WriteString(m.styles.Success.Render("Nothing left to review.") + "\n\n")
		b.WriteString(m.statusLine())
		b.WriteString(m.styles.Subtle.Render("p: back • a: switch area • q: quit"))
		return b.String()
	}

	b.WriteString(m.styles.Subtle.Render(fmt.Sprintf("Project %d of %d · %d%% answered", m.w.Cursor()+1, m.w.Len(), int(m.w.Progress()*100))) + "\n\n")
	b.WriteString(m.styles.Title.Render(p.Title) + " " + m.styles.Subtle.Render("("+p.Slug+")") + "\n")
	if p.Description != "" {
		b.WriteString(p.Description + "\n")
	}
	b.WriteString(m.styles.Subtle.Render(fmt.Sprintf("%s · priority %s · difficulty %s · %d%% done", p.Status, p.Priority, p.Difficulty, p.ProgressPercentage)) + "\n\n")

	answers := m.w.Answers()
	for i, q := range m.w.Questions() {
		cursor := "  "
		line := q.Prompt
		if a := answers[q.ID]; a != "" {
			line += " " + m.styles.Success.Render("["+a+"]")
		}
		if i == m.question {
			cursor = "> "
			line = m.styles.Selected.Render(q.Prompt) + strings.TrimPrefix(line, q.Prompt)
		}
		b.WriteString(cursor + line + "\n")
		if i == m.question && m.mode == modeBrowse {
			if opts := options(q); len(opts) > 0 {
				b.WriteString("    " + m.optionRow(opts) + "\n")
			}
		}
	}
	if comments := m.w.Comments(); len(comments) > 0 {
		b.WriteString(m.styles.Subtle.Render(fmt.Sprintf("\n%d comment(s) on this project", len(comments))) + "\n")
	}
	b.WriteString("\n")

	switch m.mode {
	case modeComment, modeAnswerText:
		b.WriteString(m.input.View() + "\n\n")
		b.WriteString(m.statusLine())
		b.WriteString(m.styles.Subtle.Render("enter: save • esc: cancel"))
	default:
		b.WriteString(m.statusLine())
		b.WriteString(m.styles.Subtle.Render("↑/↓: question • ←/→: option • enter: answer • c: comment • n/p/s: next/prev/skip • d: done • a: area • q: quit"))
	}
	return b.String()
}

func (m *reviewModel) optionRow(opts []string) string {
	parts := make([]string, len(opts))
	for i, o := range opts {
		if i == m.option {
			parts[i] = m.styles.Selected.Render("[" + o + "]")
		} else {
			parts[i] = m.styles.Subtle.Render(" " + o + " ")
		}
	}
	return strings.Join(parts, " ")
}

func (m *reviewModel) statusLine() string {
	if m.status == "" {
		return ""
	}
	if m.statusErr {
		return m.styles.Error.Render("Error: "+m.status) + "\n"
	}
	return m.styles.Success.Render(m.status) + "\n"
}
