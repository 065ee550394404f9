package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"stock-advisor-backend/internal/model"
)

// ErrShape 响应结构不符合推荐列表
var ErrShape = errors.New("unexpected response shape")

// ServiceError 推荐服务以 {"error": "..."} 形式返回的失败
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string {
	return "advisor service error: " + e.Message
}

// FieldMapping 目标字段到候选源字段的映射，按顺序取第一个存在的键
type FieldMapping struct {
	Name     []string `json:"name" yaml:"name"`
	Sector   []string `json:"sector" yaml:"sector"`
	Quantity []string `json:"quantity" yaml:"quantity"`
	Price    []string `json:"price" yaml:"price"`
	Category []string `json:"category" yaml:"category"`
}

// 预置映射
const (
	PresetFlat    = "flat"
	PresetRenamed = "renamed"
	PresetAuto    = "auto"
)

var presets = map[string]FieldMapping{
	PresetFlat: {
		Name:     []string{"name"},
		Sector:   []string{"sector"},
		Quantity: []string{"quantity"},
		Price:    []string{"price"},
		Category: []string{"category"},
	},
	PresetRenamed: {
		Name:     []string{"Symbol"},
		Sector:   []string{"Sector"},
		Quantity: []string{"Quantity"},
		Price:    []string{"Price"},
		Category: []string{"Category"},
	},
	PresetAuto: {
		Name:     []string{"name", "Symbol", "symbol", "ticker", "Ticker"},
		Sector:   []string{"sector", "Sector"},
		Quantity: []string{"quantity", "Quantity", "shares", "Shares"},
		Price:    []string{"price", "Price"},
		Category: []string{"category", "Category"},
	},
}

// Preset 按名称获取预置映射，空名称视为 auto
func Preset(name string) (FieldMapping, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = PresetAuto
	}
	m, ok := presets[name]
	if !ok {
		return FieldMapping{}, fmt.Errorf("unknown field mapping preset %q", name)
	}
	return m.clone(), nil
}

// Merge 用 override 中非空的键列表覆盖 m
func (m FieldMapping) Merge(override FieldMapping) FieldMapping {
	out := m.clone()
	if len(override.Name) > 0 {
		out.Name = append([]string(nil), override.Name...)
	}
	if len(override.Sector) > 0 {
		out.Sector = append([]string(nil), override.Sector...)
	}
	if len(override.Quantity) > 0 {
		out.Quantity = append([]string(nil), override.Quantity...)
	}
	if len(override.Price) > 0 {
		out.Price = append([]string(nil), override.Price...)
	}
	if len(override.Category) > 0 {
		out.Category = append([]string(nil), override.Category...)
	}
	return out
}

func (m FieldMapping) clone() FieldMapping {
	return FieldMapping{
		Name:     append([]string(nil), m.Name...),
		Sector:   append([]string(nil), m.Sector...),
		Quantity: append([]string(nil), m.Quantity...),
		Price:    append([]string(nil), m.Price...),
		Category: append([]string(nil), m.Category...),
	}
}

var textPolicy = bluemonday.StrictPolicy()

// Decode 将外部服务的响应体解析为推荐列表
//
// 支持顶层数组，以及 {"data": [...]} / {"results": [...]} 包装。
// 顶层对象带 error 字段时返回 *ServiceError。
func Decode(body []byte, m FieldMapping) (model.RecommendationList, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrShape)
	}

	var items []map[string]json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode array: %w", err)
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, fmt.Errorf("decode object: %w", err)
		}
		if raw, ok := obj["error"]; ok {
			return nil, &ServiceError{Message: rawText(raw)}
		}
		raw, ok := obj["data"]
		if !ok {
			raw, ok = obj["results"]
		}
		if !ok {
			return nil, fmt.Errorf("%w: object without data/results", ErrShape)
		}
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode envelope: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: not a JSON array or object", ErrShape)
	}

	list := make(model.RecommendationList, 0, len(items))
	for i, item := range items {
		rec, err := decodeItem(item, m)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		list = append(list, rec)
	}
	return list, nil
}

func decodeItem(item map[string]json.RawMessage, m FieldMapping) (model.StockRecommendation, error) {
	var rec model.StockRecommendation
	if item == nil {
		return rec, fmt.Errorf("%w: null item", ErrShape)
	}

	raw, key, ok := lookup(item, m.Name)
	if !ok {
		return rec, fmt.Errorf("%w: missing name (tried %s)", ErrShape, strings.Join(m.Name, ", "))
	}
	rec.Name = sanitize(rawText(raw))
	if rec.Name == "" {
		return rec, fmt.Errorf("%w: empty %s", ErrShape, key)
	}

	raw, key, ok = lookup(item, m.Quantity)
	if !ok {
		return rec, fmt.Errorf("%w: missing quantity (tried %s)", ErrShape, strings.Join(m.Quantity, ", "))
	}
	q, err := quantity(raw)
	if err != nil {
		return rec, fmt.Errorf("%s: %w", key, err)
	}
	rec.Quantity = q

	if raw, _, ok := lookup(item, m.Sector); ok {
		rec.Sector = sanitize(rawText(raw))
	}
	if raw, _, ok := lookup(item, m.Category); ok {
		rec.Category = sanitize(rawText(raw))
	}
	if raw, key, ok := lookup(item, m.Price); ok {
		p, err := number(raw)
		if err != nil {
			return rec, fmt.Errorf("%s: %w", key, err)
		}
		rec.Price = p
	}
	return rec, nil
}

// lookup 返回第一个存在且非 null 的候选键
func lookup(item map[string]json.RawMessage, keys []string) (json.RawMessage, string, bool) {
	for _, k := range keys {
		raw, ok := item[k]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		return raw, k, true
	}
	return nil, "", false
}

func quantity(raw json.RawMessage) (int, error) {
	f, err := number(raw)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, fmt.Errorf("%w: quantity %v is not a non-negative integer", ErrShape, f)
	}
	return int(f), nil
}

// number 接受 JSON 数字或数字字符串
func number(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("%w: %s is not a number", ErrShape, string(raw))
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q is not a number", ErrShape, s)
	}
	return f, nil
}

func rawText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

// sanitize 去掉服务返回文本中的标记，实体还原交给模板重新转义
func sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}
