package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"stock-advisor-backend/internal/normalize"
)

// WidgetConfig 推荐组件配置，一份配置对应一个表单实例类型
type WidgetConfig struct {
	Name        string `yaml:"name" json:"name"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`

	// 外部推荐服务契约
	Endpoint    string                 `yaml:"endpoint" json:"-"`
	BudgetField string                 `yaml:"budget_field" json:"-"`
	RiskField   string                 `yaml:"risk_field" json:"-"`
	RiskAsArray bool                   `yaml:"risk_as_array" json:"-"` // 旧契约 {"sliderValue": [n]}
	Mapping     string                 `yaml:"mapping" json:"-"`       // flat / renamed / auto
	Fields      normalize.FieldMapping `yaml:"fields" json:"-"`

	StartScreen  bool   `yaml:"start_screen" json:"start_screen"`
	LowLabel     string `yaml:"low_label" json:"low_label"`
	HighLabel    string `yaml:"high_label" json:"high_label"`
	SubmitLabel  string `yaml:"submit_label" json:"submit_label"`
	LoadingLabel string `yaml:"loading_label" json:"loading_label"`
}

// FieldMapping 预置映射与自定义键合并后的结果
func (w WidgetConfig) FieldMapping() (normalize.FieldMapping, error) {
	base, err := normalize.Preset(w.Mapping)
	if err != nil {
		return normalize.FieldMapping{}, fmt.Errorf("widget %s: %w", w.Name, err)
	}
	return base.Merge(w.Fields), nil
}

type widgetsFile struct {
	Widgets []WidgetConfig `yaml:"widgets"`
}

var widgetNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// DefaultWidgets 内置的两个组件
func DefaultWidgets() []WidgetConfig {
	return []WidgetConfig{
		{
			Name:         "advisor",
			Title:        "Investment Advisor",
			Description:  "Enter your budget and risk tolerance to get stock recommendations",
			Endpoint:     "http://localhost:5000/getStocks",
			Mapping:      normalize.PresetAuto,
			LowLabel:     "Very Safe / Low Reward",
			HighLabel:    "Very Risky / High Reward",
			LoadingLabel: "Loading...",
		},
		{
			Name:         "optistock",
			Title:        "OptiStock",
			Description:  "Enter your budget and risk tolerance to get started.",
			Endpoint:     "http://127.0.0.1:5000/allocate",
			Mapping:      normalize.PresetRenamed,
			StartScreen:  true,
			LowLabel:     "Very Safe",
			HighLabel:    "Very Risky",
			LoadingLabel: "Processing...",
		},
	}
}

// LoadWidgets 读取组件配置
// path 为空时使用内置组件；ADVISOR_ENDPOINT / OPTISTOCK_ENDPOINT 覆盖内置组件的地址，
// <NAME>_ENDPOINT 覆盖任意组件的地址。
func LoadWidgets(path string) ([]WidgetConfig, error) {
	var widgets []WidgetConfig
	if strings.TrimSpace(path) == "" {
		widgets = DefaultWidgets()
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取组件配置失败: %w", err)
		}
		var file widgetsFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("解析组件配置失败: %w", err)
		}
		if len(file.Widgets) == 0 {
			return nil, fmt.Errorf("组件配置 %s 中没有 widgets", path)
		}
		widgets = file.Widgets
	}

	seen := make(map[string]bool, len(widgets))
	for i := range widgets {
		w := &widgets[i]
		w.Name = strings.ToLower(strings.TrimSpace(w.Name))
		w.Endpoint = getEnvString(envKey(w.Name), w.Endpoint)
		applyWidgetDefaults(w)

		if err := validateWidget(*w); err != nil {
			return nil, err
		}
		if seen[w.Name] {
			return nil, fmt.Errorf("组件名称重复: %s", w.Name)
		}
		seen[w.Name] = true
	}
	return widgets, nil
}

func envKey(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_ENDPOINT"
}

func applyWidgetDefaults(w *WidgetConfig) {
	if w.Title == "" {
		w.Title = w.Name
	}
	if w.BudgetField == "" {
		w.BudgetField = "budget"
	}
	if w.RiskField == "" {
		w.RiskField = "risk"
	}
	if w.Mapping == "" {
		w.Mapping = normalize.PresetAuto
	}
	if w.SubmitLabel == "" {
		w.SubmitLabel = "Get Recommendations"
	}
	if w.LoadingLabel == "" {
		w.LoadingLabel = "Loading..."
	}
}

func validateWidget(w WidgetConfig) error {
	if !widgetNamePattern.MatchString(w.Name) {
		return fmt.Errorf("组件名称无效: %q", w.Name)
	}
	u, err := url.Parse(w.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("组件 %s 的 endpoint 无效: %q", w.Name, w.Endpoint)
	}
	if w.BudgetField == w.RiskField {
		return fmt.Errorf("组件 %s 的 budget_field 与 risk_field 相同", w.Name)
	}
	if _, err := w.FieldMapping(); err != nil {
		return err
	}
	return nil
}
