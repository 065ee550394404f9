// Package widget 实现推荐表单的状态机：
// 预算与风险偏好输入、单次在途提交、结果整体替换。
package widget

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"stock-advisor-backend/internal/client"
	"stock-advisor-backend/internal/config"
	"stock-advisor-backend/internal/logger"
	"stock-advisor-backend/internal/model"
)

var (
	ErrBudgetRequired = errors.New("budget is required")
	ErrInvalidBudget  = errors.New("budget must be a non-negative number")
	ErrSubmitInFlight = errors.New("a submission is already in flight")
)

// Widget 单个表单实例，状态只属于该实例
type Widget struct {
	cfg     config.WidgetConfig
	fetcher client.Fetcher
	log     *zap.Logger
	now     func() time.Time

	mu    sync.Mutex
	state model.WidgetState
}

// Option 可选配置
type Option func(*Widget)

// WithLogger 指定日志
func WithLogger(l *zap.Logger) Option {
	return func(w *Widget) {
		if l != nil {
			w.log = l
		}
	}
}

// WithClock 测试用时钟
func WithClock(now func() time.Time) Option {
	return func(w *Widget) {
		if now != nil {
			w.now = now
		}
	}
}

// New 创建初始状态的组件
func New(cfg config.WidgetConfig, fetcher client.Fetcher, opts ...Option) *Widget {
	return Restore(cfg, fetcher, model.NewWidgetState(cfg.Name), opts...)
}

// Restore 从快照恢复组件；快照中的在途状态不会被继承
func Restore(cfg config.WidgetConfig, fetcher client.Fetcher, st model.WidgetState, opts ...Option) *Widget {
	w := &Widget{
		cfg:     cfg,
		fetcher: fetcher,
		log:     logger.Named("widget"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}

	st.Widget = cfg.Name
	st.Risk = ClampRisk(float64(st.Risk))
	if st.Results == nil {
		st.Results = model.RecommendationList{}
	}
	if st.Phase == "" || st.Phase == model.PhaseLoading {
		st.Phase = model.PhaseIdle
	}
	w.state = st
	return w
}

// Config 组件配置
func (w *Widget) Config() config.WidgetConfig {
	return w.cfg
}

// State 当前状态快照
func (w *Widget) State() model.WidgetState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return snapshot(w.state)
}

func snapshot(st model.WidgetState) model.WidgetState {
	st.Results = append(model.RecommendationList{}, st.Results...)
	return st
}

// ClampRisk 将风险值限制在 [0,100] 并按步长1取整
func ClampRisk(v float64) int {
	if math.IsNaN(v) {
		return model.DefaultRisk
	}
	v = math.Round(v)
	if v < model.MinRisk {
		return model.MinRisk
	}
	if v > model.MaxRisk {
		return model.MaxRisk
	}
	return int(v)
}

// SetRisk 设置风险偏好，返回限制后的值
func (w *Widget) SetRisk(v float64) int {
	r := ClampRisk(v)
	w.mu.Lock()
	w.state.Risk = r
	w.mu.Unlock()
	return r
}

// SetBudget 设置预算
func (w *Widget) SetBudget(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return ErrInvalidBudget
	}
	w.mu.Lock()
	w.state.Budget = v
	w.state.BudgetSet = true
	w.mu.Unlock()
	return nil
}

// SetBudgetText 按输入框文本设置预算，空文本表示未填写
func (w *Widget) SetBudgetText(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		w.ClearBudget()
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidBudget, s)
	}
	return w.SetBudget(v)
}

// ClearBudget 清空预算，恢复默认值0
func (w *Widget) ClearBudget() {
	w.mu.Lock()
	w.state.Budget = 0
	w.state.BudgetSet = false
	w.mu.Unlock()
}

// CanSubmit 预算已填写且没有在途请求
func (w *Widget) CanSubmit() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.BudgetSet && w.state.Phase != model.PhaseLoading
}

// Begin 进入加载状态并返回本次提交的输入快照
func (w *Widget) Begin() (model.AdvisorRequest, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state.Phase == model.PhaseLoading {
		return model.AdvisorRequest{}, ErrSubmitInFlight
	}
	if !w.state.BudgetSet {
		return model.AdvisorRequest{}, ErrBudgetRequired
	}
	w.state.Phase = model.PhaseLoading
	w.state.UpdatedAt = w.now()
	return model.AdvisorRequest{Budget: w.state.Budget, Risk: w.state.Risk}, nil
}

// Complete 结束本次提交：成功时整体替换结果，失败时保留原结果
// 无论成败都会清除加载状态。
func (w *Widget) Complete(list model.RecommendationList, err error) model.WidgetState {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.state.UpdatedAt = w.now()
	if err != nil {
		w.state.Phase = model.PhaseError
		w.state.LastError = client.KindOf(err).String()
		w.log.Warn("获取推荐失败",
			zap.String("widget", w.cfg.Name),
			zap.String("kind", client.KindOf(err).String()),
			zap.Int("status", statusOf(err)),
			zap.Error(err))
		return snapshot(w.state)
	}

	if list == nil {
		list = model.RecommendationList{}
	}
	w.state.Results = append(model.RecommendationList{}, list...)
	w.state.Phase = model.PhaseResults
	w.state.LastError = ""
	w.log.Debug("获取推荐成功", zap.String("widget", w.cfg.Name), zap.Int("count", len(list)))
	return snapshot(w.state)
}

// Submit 完整的一次提交
func (w *Widget) Submit(ctx context.Context) (model.WidgetState, error) {
	req, err := w.Begin()
	if err != nil {
		return w.State(), err
	}

	var list model.RecommendationList
	if w.fetcher == nil {
		err = &client.FetchError{Kind: client.KindNetwork, Err: errors.New("no fetcher configured")}
	} else {
		list, err = w.fetcher.Fetch(ctx, req)
	}
	return w.Complete(list, err), err
}

func statusOf(err error) int {
	var fe *client.FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}
