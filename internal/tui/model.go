// Package tui 终端版推荐表单
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"stock-advisor-backend/internal/client"
	"stock-advisor-backend/internal/config"
	"stock-advisor-backend/internal/model"
	"stock-advisor-backend/internal/render"
	"stock-advisor-backend/internal/widget"
)

const sliderWidth = 20

type focus int

const (
	focusBudget focus = iota
	focusRisk
)

// resultMsg 一次请求的结果
type resultMsg struct {
	list model.RecommendationList
	err  error
}

// Styles 界面样式
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Focused lipgloss.Style
	Help    lipgloss.Style
	Status  lipgloss.Style
	Results render.Styles
}

// DefaultStyles 默认样式
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).MarginBottom(1),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Focused: lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
		Help:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Status:  lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		Results: render.DefaultStyles(),
	}
}

// PlainStyles 无颜色
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Title:   plain,
		Label:   plain,
		Focused: plain,
		Help:    plain,
		Status:  plain,
		Results: render.PlainStyles(),
	}
}

// Model bubbletea 模型，包装一个 widget.Widget
type Model struct {
	ctx     context.Context
	widget  *widget.Widget
	fetcher client.Fetcher
	styles  Styles

	budget  textinput.Model
	spinner spinner.Model
	focus   focus
	status  string
}

// New 创建终端表单
func New(ctx context.Context, cfg config.WidgetConfig, fetcher client.Fetcher, styles Styles) Model {
	ti := textinput.New()
	ti.Placeholder = "Enter your budget"
	ti.CharLimit = 16
	ti.Prompt = "$ "
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:     ctx,
		widget:  widget.New(cfg, fetcher),
		fetcher: fetcher,
		styles:  styles,
		budget:  ti,
		spinner: sp,
	}
}

// State 当前组件状态
func (m Model) State() model.WidgetState {
	return m.widget.State()
}

// Init 实现 tea.Model
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update 实现 tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyTab, tea.KeyShiftTab:
			m.toggleFocus()
			return m, nil
		case tea.KeyEnter:
			return m.submit()
		}
		if m.focus == focusRisk {
			m.adjustRisk(msg)
			return m, nil
		}

	case resultMsg:
		st := m.widget.Complete(msg.list, msg.err)
		if msg.err != nil {
			m.status = "Request failed (" + st.LastError + ")"
		} else {
			m.status = ""
		}
		return m, nil

	case spinner.TickMsg:
		if !m.widget.State().Loading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.focus != focusBudget {
		return m, nil
	}
	var cmd tea.Cmd
	m.budget, cmd = m.budget.Update(msg)
	return m, cmd
}

func (m *Model) toggleFocus() {
	if m.focus == focusBudget {
		m.focus = focusRisk
		m.budget.Blur()
		return
	}
	m.focus = focusBudget
	m.budget.Focus()
}

func (m *Model) adjustRisk(msg tea.KeyMsg) {
	risk := float64(m.widget.State().Risk)
	switch msg.Type {
	case tea.KeyLeft:
		risk--
	case tea.KeyRight:
		risk++
	case tea.KeyPgDown:
		risk -= 10
	case tea.KeyPgUp:
		risk += 10
	case tea.KeyHome:
		risk = model.MinRisk
	case tea.KeyEnd:
		risk = model.MaxRisk
	default:
		return
	}
	m.widget.SetRisk(risk)
}

// submit 加载中直接忽略；否则校验预算并发起请求
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.widget.State().Loading() {
		return m, nil
	}
	if err := m.widget.SetBudgetText(m.budget.Value()); err != nil {
		m.status = "Budget must be a non-negative number"
		return m, nil
	}
	req, err := m.widget.Begin()
	if err != nil {
		if errors.Is(err, widget.ErrBudgetRequired) {
			m.status = "Please enter your budget"
		}
		return m, nil
	}
	m.status = ""
	return m, tea.Batch(m.spinner.Tick, fetch(m.ctx, m.fetcher, req))
}

func fetch(ctx context.Context, f client.Fetcher, req model.AdvisorRequest) tea.Cmd {
	return func() tea.Msg {
		if f == nil {
			return resultMsg{err: &client.FetchError{Kind: client.KindNetwork, Err: errors.New("no fetcher configured")}}
		}
		list, err := f.Fetch(ctx, req)
		return resultMsg{list: list, err: err}
	}
}

// View 实现 tea.Model
func (m Model) View() string {
	cfg := m.widget.Config()
	st := m.widget.State()
	s := m.styles

	var b strings.Builder
	b.WriteString(s.Title.Render(cfg.Title))
	b.WriteString("\n")
	if cfg.Description != "" {
		b.WriteString(s.Label.Render(cfg.Description))
		b.WriteString("\n\n")
	}

	b.WriteString(m.label("Budget", focusBudget))
	b.WriteString("\n")
	b.WriteString(m.budget.View())
	b.WriteString("\n\n")

	b.WriteString(m.label(fmt.Sprintf("Risk Factor: %d", st.Risk), focusRisk))
	b.WriteString("\n")
	b.WriteString(Slider(st.Risk, sliderWidth))
	b.WriteString("\n")
	if cfg.LowLabel != "" || cfg.HighLabel != "" {
		b.WriteString(s.Label.Render(cfg.LowLabel + "  ...  " + cfg.HighLabel))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if st.Loading() {
		b.WriteString(m.spinner.View() + " " + loadingLabel(cfg))
	} else {
		b.WriteString(s.Help.Render("enter: " + submitLabel(cfg) + " · tab: switch field · ←/→: risk · esc: quit"))
	}
	b.WriteString("\n")

	if m.status != "" {
		b.WriteString(s.Status.Render(m.status))
		b.WriteString("\n")
	}
	if panel := render.Terminal(st.Results, s.Results); panel != "" {
		b.WriteString("\n")
		b.WriteString(panel)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) label(text string, f focus) string {
	if m.focus == f {
		return m.styles.Focused.Render("> " + text)
	}
	return m.styles.Label.Render("  " + text)
}

// Slider 风险值的文本滑块
func Slider(risk, width int) string {
	risk = widget.ClampRisk(float64(risk))
	filled := risk * width / model.MaxRisk
	return "[" + strings.Repeat("=", filled) + strings.Repeat("-", width-filled) + "]"
}

func submitLabel(cfg config.WidgetConfig) string {
	if cfg.SubmitLabel == "" {
		return "Get Recommendations"
	}
	return cfg.SubmitLabel
}

func loadingLabel(cfg config.WidgetConfig) string {
	if cfg.LoadingLabel == "" {
		return "Loading..."
	}
	return cfg.LoadingLabel
}
