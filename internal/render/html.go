package render

import (
	"embed"
	"html/template"
	"strconv"

	"stock-advisor-backend/internal/config"
	"stock-advisor-backend/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Page 组件页面数据
type Page struct {
	Widget config.WidgetConfig
	State  model.WidgetState
	Rows   []Row
	Notice string
}

// NewPage 组装页面数据
func NewPage(w config.WidgetConfig, st model.WidgetState, notice string) Page {
	return Page{Widget: w, State: st, Rows: Rows(st.Results), Notice: notice}
}

// BudgetValue 输入框取值，未填写时为空
func (p Page) BudgetValue() string {
	if !p.State.BudgetSet {
		return ""
	}
	return strconv.FormatFloat(p.State.Budget, 'f', -1, 64)
}

// SubmitLabel 按钮文案，加载中显示 loading 文案
func (p Page) SubmitLabel() string {
	if p.State.Loading() {
		return p.Widget.LoadingLabel
	}
	return p.Widget.SubmitLabel
}

// Templates 解析内置页面模板，交给 gin 的 SetHTMLTemplate
func Templates() (*template.Template, error) {
	return template.New("").ParseFS(templateFS, "templates/*.tmpl")
}
