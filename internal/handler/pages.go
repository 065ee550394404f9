package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"stock-advisor-backend/internal/render"
	"stock-advisor-backend/internal/session"
	"stock-advisor-backend/internal/widget"
)

// 页面提示文案
const (
	noticeInFlight       = "A request is already being processed."
	noticeBudgetRequired = "Please enter your budget."
	noticeInvalidBudget  = "Budget must be a non-negative number."
)

type submitForm struct {
	Budget string `form:"budget"`
	Risk   string `form:"risk"`
}

// Index 组件列表页
func (h *Handler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.tmpl", h.order)
}

// ShowWidget 组件页面
func (h *Handler) ShowWidget(c *gin.Context) {
	e, ok := h.lookup(c)
	if !ok {
		c.String(http.StatusNotFound, "widget not found")
		return
	}
	sid := h.sessionID(c)
	st, found := h.loadState(c.Request.Context(), sid, e)

	if e.cfg.StartScreen && !found && c.Query("start") != "1" {
		c.HTML(http.StatusOK, "start.tmpl", render.NewPage(e.cfg, st, ""))
		return
	}
	c.HTML(http.StatusOK, "widget.tmpl", render.NewPage(e.cfg, st, ""))
}

// SubmitForm 表单提交
// 外部服务失败不提示错误，页面只是没有新的推荐结果。
func (h *Handler) SubmitForm(c *gin.Context) {
	e, ok := h.lookup(c)
	if !ok {
		c.String(http.StatusNotFound, "widget not found")
		return
	}
	sid := h.sessionID(c)

	var form submitForm
	if err := c.ShouldBind(&form); err != nil {
		st, _ := h.loadState(c.Request.Context(), sid, e)
		c.HTML(http.StatusBadRequest, "widget.tmpl", render.NewPage(e.cfg, st, noticeInvalidBudget))
		return
	}

	in := submitInput{budgetText: &form.Budget}
	if r := strings.TrimSpace(form.Risk); r != "" {
		if v, err := strconv.ParseFloat(r, 64); err == nil {
			in.risk = &v
		}
	}

	st, err := h.submit(c, sid, e, in)
	switch {
	case errors.Is(err, session.ErrInFlight), errors.Is(err, widget.ErrSubmitInFlight):
		c.HTML(http.StatusConflict, "widget.tmpl", render.NewPage(e.cfg, st, noticeInFlight))
	case errors.Is(err, widget.ErrBudgetRequired):
		c.HTML(http.StatusBadRequest, "widget.tmpl", render.NewPage(e.cfg, st, noticeBudgetRequired))
	case errors.Is(err, widget.ErrInvalidBudget):
		c.HTML(http.StatusBadRequest, "widget.tmpl", render.NewPage(e.cfg, st, noticeInvalidBudget))
	default:
		c.HTML(http.StatusOK, "widget.tmpl", render.NewPage(e.cfg, st, ""))
	}
}
