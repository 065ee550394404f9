package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stock-advisor-backend/internal/client"
	"stock-advisor-backend/internal/config"
	"stock-advisor-backend/internal/model"
	"stock-advisor-backend/internal/render"
	"stock-advisor-backend/internal/session"
	"stock-advisor-backend/internal/widget"
)

// SessionCookie 会话 cookie 名称
const SessionCookie = "advisor_session"

// FetchLogReader 诊断日志查询
type FetchLogReader interface {
	Recent(ctx context.Context, widget string, limit int) ([]model.FetchRecord, error)
}

type widgetEntry struct {
	cfg     config.WidgetConfig
	fetcher client.Fetcher
}

// Handler 组件相关的 HTTP 处理
type Handler struct {
	widgets    map[string]*widgetEntry
	order      []config.WidgetConfig
	sessions   *session.Store
	fetchLog   FetchLogReader
	log        *zap.Logger
	sessionTTL time.Duration

	cookieSecure bool
}

// Options Handler 依赖
type Options struct {
	Widgets    []config.WidgetConfig
	Fetchers   map[string]client.Fetcher
	Sessions   *session.Store
	FetchLog   FetchLogReader // 可为空
	Logger     *zap.Logger
	SessionTTL time.Duration
	// CookieSecure 总是设置 Secure，用于 TLS 在上游终止的部署
	CookieSecure bool
}

// New 创建 Handler，每个组件必须有对应的 Fetcher
func New(opts Options) (*Handler, error) {
	if opts.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if len(opts.Widgets) == 0 {
		return nil, errors.New("at least one widget is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	h := &Handler{
		widgets:    make(map[string]*widgetEntry, len(opts.Widgets)),
		sessions:   opts.Sessions,
		fetchLog:   opts.FetchLog,
		log:        log,
		sessionTTL: opts.SessionTTL,

		cookieSecure: opts.CookieSecure,
	}
	for _, w := range opts.Widgets {
		f, ok := opts.Fetchers[w.Name]
		if !ok || f == nil {
			return nil, fmt.Errorf("组件 %s 没有配置 fetcher", w.Name)
		}
		if _, dup := h.widgets[w.Name]; dup {
			return nil, fmt.Errorf("组件名称重复: %s", w.Name)
		}
		h.widgets[w.Name] = &widgetEntry{cfg: w, fetcher: f}
		h.order = append(h.order, w)
	}
	return h, nil
}

// Register 注册模板与路由
func (h *Handler) Register(r *gin.Engine) error {
	tmpl, err := render.Templates()
	if err != nil {
		return fmt.Errorf("解析页面模板失败: %w", err)
	}
	r.SetHTMLTemplate(tmpl)

	r.GET("/healthz", h.Health)
	r.GET("/", h.Index)

	pages := r.Group("/w")
	{
		pages.GET("/:widget", h.ShowWidget)
		pages.POST("/:widget", h.SubmitForm)
	}

	api := r.Group("/api")
	{
		api.GET("/widgets", h.ListWidgets)
		api.GET("/widgets/:widget/state", h.GetState)
		api.POST("/widgets/:widget/recommendations", h.Recommend)
		api.GET("/fetch-log", h.FetchLog)
	}
	return nil
}

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) lookup(c *gin.Context) (*widgetEntry, bool) {
	e, ok := h.widgets[c.Param("widget")]
	return e, ok
}

// sessionID 读取会话 cookie，不存在或无效时签发新的
// secureCookie TLS 连接、代理声明 https 或配置强制时设置 Secure
func (h *Handler) secureCookie(c *gin.Context) bool {
	return h.cookieSecure || c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https"
}

func (h *Handler) sessionID(c *gin.Context) string {
	if sid, err := c.Cookie(SessionCookie); err == nil && session.ValidID(sid) {
		return sid
	}
	sid := session.NewID()
	maxAge := int(h.sessionTTL / time.Second)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, sid, maxAge, "/", "", h.secureCookie(c), true)
	return sid
}

// loadState 读取会话状态；存储中的 loading 若已无在途锁，视为空闲
func (h *Handler) loadState(ctx context.Context, sid string, e *widgetEntry) (model.WidgetState, bool) {
	st, found, err := h.sessions.Load(ctx, sid, e.cfg.Name)
	if err != nil {
		h.log.Warn("读取会话状态失败", zap.String("widget", e.cfg.Name), zap.Error(err))
	}
	if st.Loading() && !h.sessions.InFlight(ctx, sid, e.cfg.Name) {
		st = widget.Restore(e.cfg, e.fetcher, st).State()
	}
	return st, found
}

// submitInput 一次提交的输入，nil 表示沿用会话中的值
type submitInput struct {
	budgetText *string
	budget     *float64
	risk       *float64
}

// submit 在会话在途锁保护下完成一次提交
func (h *Handler) submit(c *gin.Context, sid string, e *widgetEntry, in submitInput) (model.WidgetState, error) {
	ctx := c.Request.Context()
	persist := context.WithoutCancel(ctx)

	release, err := h.sessions.Acquire(ctx, sid, e.cfg.Name)
	if err != nil {
		st, _ := h.loadState(ctx, sid, e)
		return st, err
	}
	defer release()

	st, _, err := h.sessions.Load(ctx, sid, e.cfg.Name)
	if err != nil {
		h.log.Warn("读取会话状态失败", zap.String("widget", e.cfg.Name), zap.Error(err))
	}
	w := widget.Restore(e.cfg, e.fetcher, st, widget.WithLogger(h.log.Named("widget")))

	if in.risk != nil {
		w.SetRisk(*in.risk)
	}
	switch {
	case in.budget != nil:
		err = w.SetBudget(*in.budget)
	case in.budgetText != nil:
		err = w.SetBudgetText(*in.budgetText)
	}
	if err != nil {
		return w.State(), err
	}

	req, err := w.Begin()
	if err != nil {
		h.save(persist, sid, w.State())
		return w.State(), err
	}
	h.save(persist, sid, w.State())

	list, fetchErr := e.fetcher.Fetch(ctx, req)
	final := w.Complete(list, fetchErr)
	h.save(persist, sid, final)
	return final, fetchErr
}

func (h *Handler) save(ctx context.Context, sid string, st model.WidgetState) {
	if err := h.sessions.Save(ctx, sid, st); err != nil {
		h.log.Warn("保存会话状态失败", zap.String("widget", st.Widget), zap.Error(err))
	}
}
