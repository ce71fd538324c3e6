package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/agentgate/internal/orchestrator"
	"github.com/ShayCichocki/agentgate/pkg/models"
)

// TaskLine is one task as shown in the progress view.
type TaskLine struct {
	ID     int
	Tool   string
	Action string
	State  models.TaskState
	Detail string
}

// RunState tracks the progress of one gateway run.
type RunState struct {
	RunID         string
	Input         string
	Iteration     int
	MaxIterations int
	Phase         string
	Tasks         map[int]*TaskLine
	Replans       []string
}

// Counts returns how many tasks are terminal and how many are known.
func (s RunState) Counts() (done, total int) {
	for _, t := range s.Tasks {
		total++
		if t.State.IsTerminal() {
			done++
		}
	}
	return done, total
}

// Apply folds an orchestrator event into the state.
func (s *RunState) Apply(e orchestrator.OrchestratorEvent) {
	if s.Tasks == nil {
		s.Tasks = make(map[int]*TaskLine)
	}
	if e.RunID != "" {
		s.RunID = e.RunID
	}

	switch e.Type {
	case orchestrator.EventIterationStarted:
		s.Iteration = e.Iteration
		s.Phase = "plan"
		s.Tasks = make(map[int]*TaskLine)
	case orchestrator.EventPlanReady:
		s.Phase = "execute"
	case orchestrator.EventFuseStarted:
		s.Phase = "fuse"
	case orchestrator.EventReplan:
		s.Replans = append(s.Replans, e.Message)
	case orchestrator.EventSessionDone:
		s.Phase = "done"
	case orchestrator.EventTaskQueued, orchestrator.EventTaskStarted,
		orchestrator.EventTaskCompleted, orchestrator.EventTaskFailed, orchestrator.EventTaskSkipped:
		s.applyTask(e)
	}
}

func (s *RunState) applyTask(e orchestrator.OrchestratorEvent) {
	if s.Phase == "plan" {
		// Streaming plans run tasks before the plan is complete.
		s.Phase = "execute"
	}
	line, ok := s.Tasks[e.TaskID]
	if !ok {
		line = &TaskLine{ID: e.TaskID, Tool: e.Tool}
		s.Tasks[e.TaskID] = line
	}
	switch e.Type {
	case orchestrator.EventTaskQueued:
		line.State = models.TaskStateReady
	case orchestrator.EventTaskStarted:
		line.State = models.TaskStateRunning
		line.Action = e.Message
	case orchestrator.EventTaskCompleted:
		line.State = models.TaskStateCompleted
	case orchestrator.EventTaskFailed:
		line.State = models.TaskStateFailed
		if e.Error != nil {
			line.Detail = e.Error.Error()
		}
	case orchestrator.EventTaskSkipped:
		line.State = models.TaskStateSkipped
		line.Detail = e.Message
	}
}

// ProgressView renders a RunState.
type ProgressView struct {
	state  RunState
	width  int
	height int

	headerStyle   lipgloss.Style
	labelStyle    lipgloss.Style
	valueStyle    lipgloss.Style
	progressFull  lipgloss.Style
	progressEmpty lipgloss.Style
	phaseStyle    lipgloss.Style
	pendingStyle  lipgloss.Style
	runningStyle  lipgloss.Style
	doneStyle     lipgloss.Style
	failedStyle   lipgloss.Style
	skippedStyle  lipgloss.Style
}

// NewProgressView creates a new ProgressView instance.
func NewProgressView() *ProgressView {
	return &ProgressView{
		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")).
			MarginBottom(1),

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(12),

		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true),

		progressFull:  lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		progressEmpty: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),

		phaseStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true),

		pendingStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		runningStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		doneStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("28")),
		failedStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		skippedStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
}

// Update handles input messages.
func (v *ProgressView) Update(msg tea.Msg) (*ProgressView, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetSize(msg.Width, msg.Height)
	case EventMsg:
		v.state.Apply(msg.Event)
	}
	return v, nil
}

// View renders the run progress.
func (v *ProgressView) View() string {
	var b strings.Builder

	b.WriteString(v.headerStyle.Render("Run " + v.state.RunID))
	b.WriteString("\n")

	if v.state.Input != "" {
		b.WriteString(v.labelStyle.Render("Question:"))
		b.WriteString(v.valueStyle.Render(truncate(v.state.Input, 60)))
		b.WriteString("\n")
	}

	iter := fmt.Sprintf("%d", v.state.Iteration+1)
	if v.state.MaxIterations > 0 {
		iter = fmt.Sprintf("%d/%d", v.state.Iteration+1, v.state.MaxIterations)
	}
	b.WriteString(v.labelStyle.Render("Iteration:"))
	b.WriteString(v.valueStyle.Render(iter))
	b.WriteString("  ")
	b.WriteString(v.labelStyle.Render("Phase:"))
	phase := v.state.Phase
	if phase == "" {
		phase = "starting"
	}
	b.WriteString(v.phaseStyle.Render(phase))
	b.WriteString("\n")

	done, total := v.state.Counts()
	pct := float64(0)
	if total > 0 {
		pct = float64(done) / float64(total) * 100
	}
	b.WriteString(v.labelStyle.Render("Tasks:"))
	b.WriteString(v.valueStyle.Render(fmt.Sprintf("%d/%d settled", done, total)))
	b.WriteString("\n")
	b.WriteString(v.renderProgressBar(pct, 30))
	b.WriteString("\n\n")

	for _, line := range v.sortedTasks() {
		b.WriteString(v.renderTask(line))
		b.WriteString("\n")
	}

	if n := len(v.state.Replans); n > 0 {
		b.WriteString("\n")
		b.WriteString(v.labelStyle.Render("Replanned:"))
		b.WriteString(v.skippedStyle.Render(truncate(v.state.Replans[n-1], 60)))
		b.WriteString("\n")
	}
	return b.String()
}

func (v *ProgressView) sortedTasks() []*TaskLine {
	out := make([]*TaskLine, 0, len(v.state.Tasks))
	for _, t := range v.state.Tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v *ProgressView) renderTask(t *TaskLine) string {
	icon, style := "○", v.pendingStyle
	switch t.State {
	case models.TaskStateRunning:
		icon, style = "●", v.runningStyle
	case models.TaskStateCompleted:
		icon, style = "✓", v.doneStyle
	case models.TaskStateFailed:
		icon, style = "✗", v.failedStyle
	case models.TaskStateSkipped:
		icon, style = "⊘", v.skippedStyle
	}
	text := t.Action
	if text == "" {
		text = t.Tool
	}
	line := fmt.Sprintf("  %s %d. %s", style.Render(icon), t.ID, truncate(text, 50))
	if t.Detail != "" {
		line += "  " + style.Render(truncate(t.Detail, 40))
	}
	return line
}

// renderProgressBar renders a progress bar.
func (v *ProgressView) renderProgressBar(pct float64, width int) string {
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}

	filled := int(pct / 100 * float64(width))
	empty := width - filled

	bar := v.progressFull.Render(strings.Repeat("█", filled)) +
		v.progressEmpty.Render(strings.Repeat("░", empty))

	return fmt.Sprintf("  %s %.0f%%", bar, pct)
}

// SetState replaces the run state.
func (v *ProgressView) SetState(state RunState) {
	v.state = state
}

// SetSize sets the view dimensions.
func (v *ProgressView) SetSize(width, height int) {
	v.width = width
	v.height = height
}

// State returns the current run state.
func (v *ProgressView) State() RunState {
	return v.state
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// LogEntry is one line of the activity log.
type LogEntry struct {
	Timestamp time.Time
	Phase     string
	Message   string
}

// EventMsg carries an orchestrator event into the program.
type EventMsg struct {
	Event orchestrator.OrchestratorEvent
}

// DoneMsg is sent when the run finishes.
type DoneMsg struct {
	Answer models.Answer
	Err    error
}

// ProgressApp is the bubbletea model for `agentgate run --tui`.
type ProgressApp struct {
	view     *ProgressView
	spinner  spinner.Model
	logs     []LogEntry
	width    int
	height   int
	quitting bool
	done     bool
	answer   models.Answer
	err      error

	logStyle     lipgloss.Style
	logTimeStyle lipgloss.Style
	errorStyle   lipgloss.Style
	doneStyle    lipgloss.Style
	answerStyle  lipgloss.Style
}

// NewProgressApp creates a ProgressApp for one question.
func NewProgressApp(input string, maxIterations int) *ProgressApp {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	view := NewProgressView()
	view.SetState(RunState{Input: input, MaxIterations: maxIterations, Tasks: make(map[int]*TaskLine)})

	return &ProgressApp{
		view:    view,
		spinner: sp,

		logStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		logTimeStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")).
			Bold(true),
		answerStyle: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("34")).
			Padding(0, 1),
	}
}

// Init implements tea.Model.
func (a *ProgressApp) Init() tea.Cmd {
	return a.spinner.Tick
}

// Update implements tea.Model.
func (a *ProgressApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			a.quitting = !a.done
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.view.SetSize(msg.Width, msg.Height)

	case spinner.TickMsg:
		if a.done {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case EventMsg:
		a.view.Update(msg)
		if entry, ok := logEntryFor(msg.Event); ok {
			a.logs = append(a.logs, entry)
		}

	case DoneMsg:
		a.done = true
		a.answer = msg.Answer
		a.err = msg.Err
	}

	return a, nil
}

// logEntryFor picks the events worth a line in the activity log.
func logEntryFor(e orchestrator.OrchestratorEvent) (LogEntry, bool) {
	entry := LogEntry{Timestamp: e.Timestamp, Phase: string(e.Type)}
	switch e.Type {
	case orchestrator.EventIterationStarted:
		entry.Message = fmt.Sprintf("iteration %d", e.Iteration+1)
	case orchestrator.EventPlanReady:
		entry.Message = "plan: " + e.Message
	case orchestrator.EventTaskFailed:
		entry.Message = fmt.Sprintf("task %d (%s): %v", e.TaskID, e.Tool, e.Error)
	case orchestrator.EventReplan:
		entry.Message = e.Message
	case orchestrator.EventFuseStarted:
		entry.Message = "fusing observations"
	default:
		return LogEntry{}, false
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	return entry, true
}

// View implements tea.Model.
func (a *ProgressApp) View() string {
	if a.quitting {
		return "Run cancelled.\n"
	}

	var b strings.Builder

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		Render("=== agentgate ===")
	b.WriteString(header)
	b.WriteString("\n\n")

	b.WriteString(a.view.View())
	b.WriteString("\n")
	b.WriteString(a.renderLogs())
	b.WriteString("\n")

	switch {
	case a.done && a.err != nil:
		b.WriteString(a.errorStyle.Render(fmt.Sprintf("Error: %v", a.err)))
		b.WriteString("\n")
	case a.done:
		b.WriteString(a.answerStyle.Render(a.answer.Output))
		b.WriteString("\n")
		b.WriteString(a.doneStyle.Render("Done. Press q to exit."))
		b.WriteString("\n")
	default:
		b.WriteString(a.spinner.View())
		b.WriteString(lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Render(" working... press q to cancel"))
		b.WriteString("\n")
	}

	return b.String()
}

// renderLogs renders the recent log entries.
func (a *ProgressApp) renderLogs() string {
	if len(a.logs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("252")).
		Render("Activity Log"))
	b.WriteString("\n")

	start := 0
	if len(a.logs) > 8 {
		start = len(a.logs) - 8
	}

	for _, entry := range a.logs[start:] {
		ts := a.logTimeStyle.Render(entry.Timestamp.Format("15:04:05"))
		phase := lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Width(16).
			Render(entry.Phase)
		msg := a.logStyle.Render(truncate(entry.Message, 80))
		fmt.Fprintf(&b, "  %s %s %s\n", ts, phase, msg)
	}

	return b.String()
}

// Cancelled reports whether the user quit before the run finished.
func (a *ProgressApp) Cancelled() bool {
	return a.quitting
}

// NewProgressProgram creates a Bubbletea program for the progress view.
func NewProgressProgram(input string, maxIterations int) (*tea.Program, *ProgressApp) {
	app := NewProgressApp(input, maxIterations)
	p := tea.NewProgram(app, tea.WithAltScreen())
	return p, app
}

// Forward sends every event from events to the program until the channel
// closes.
func Forward(p *tea.Program, events <-chan orchestrator.OrchestratorEvent) {
	for e := range events {
		p.Send(EventMsg{Event: e})
	}
}
