package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"stock-advisor-backend/internal/model"
)

// Styles 终端渲染样式
type Styles struct {
	Title    lipgloss.Style
	Name     lipgloss.Style
	Sector   lipgloss.Style
	Quantity lipgloss.Style
	Divider  lipgloss.Style
}

// DefaultStyles 默认样式
func DefaultStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Name:     lipgloss.NewStyle().Bold(true),
		Sector:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Quantity: lipgloss.NewStyle().Bold(true),
		Divider:  lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
	}
}

// PlainStyles 无样式，用于管道输出和测试
func PlainStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle(),
		Name:     lipgloss.NewStyle(),
		Sector:   lipgloss.NewStyle(),
		Quantity: lipgloss.NewStyle(),
		Divider:  lipgloss.NewStyle(),
	}
}

// Terminal 渲染推荐面板，空列表返回空字符串
func Terminal(list model.RecommendationList, st Styles) string {
	rows := Rows(list)
	if rows == nil {
		return ""
	}

	nameWidth, detailWidth := 0, 0
	for _, r := range rows {
		nameWidth = max(nameWidth, lipgloss.Width(r.Name))
		detailWidth = max(detailWidth, lipgloss.Width(detail(r)))
	}

	var sb strings.Builder
	sb.WriteString(st.Title.Render("Recommended Stocks"))
	sb.WriteString("\n")
	for _, r := range rows {
		line := st.Name.Render(pad(r.Name, nameWidth))
		if detailWidth > 0 {
			line += "  " + st.Sector.Render(pad(detail(r), detailWidth))
		}
		line += "  " + st.Quantity.Render(r.Quantity)
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString(st.Divider.Render(strings.Repeat("─", nameWidth+detailWidth+14)))
	return sb.String()
}

func detail(r Row) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.Sector, r.Category, r.Price} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " · ")
}

func pad(s string, width int) string {
	if gap := width - lipgloss.Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}
