package model

import "time"

// 风险偏好取值范围及默认值
const (
	MinRisk     = 0
	MaxRisk     = 100
	DefaultRisk = 50
)

// AdvisorRequest 推荐请求（发往外部推荐服务的快照）
type AdvisorRequest struct {
	Budget float64 `json:"budget"`
	Risk   int     `json:"risk"`
}

// StockRecommendation 单只推荐股票
type StockRecommendation struct {
	Name     string  `json:"name"`
	Sector   string  `json:"sector,omitempty"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price,omitempty"`    // 参考价，部分服务返回
	Category string  `json:"category,omitempty"` // Mid Cap / S&P 500
}

// RecommendationList 推荐列表，每次成功请求后整体替换
type RecommendationList []StockRecommendation

// Phase 组件状态
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseResults Phase = "results" // 空闲，展示最新结果
	PhaseError   Phase = "error"   // 空闲，最近一次请求失败
)

// WidgetState 组件状态快照
type WidgetState struct {
	Widget    string             `json:"widget"`
	Budget    float64            `json:"budget"`
	BudgetSet bool               `json:"budget_set"`
	Risk      int                `json:"risk"`
	Phase     Phase              `json:"phase"`
	Results   RecommendationList `json:"results"`
	LastError string             `json:"last_error,omitempty"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Loading 是否有请求在途
func (s WidgetState) Loading() bool {
	return s.Phase == PhaseLoading
}

// NewWidgetState 初始状态：空闲、无结果、风险默认50
func NewWidgetState(widget string) WidgetState {
	return WidgetState{
		Widget:  widget,
		Risk:    DefaultRisk,
		Phase:   PhaseIdle,
		Results: RecommendationList{},
	}
}
