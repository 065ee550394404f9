package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"stock-advisor-backend/internal/client"
	"stock-advisor-backend/internal/model"
	"stock-advisor-backend/internal/session"
	"stock-advisor-backend/internal/store"
	"stock-advisor-backend/internal/widget"
)

// RecommendRequest 推荐请求
type RecommendRequest struct {
	Budget *float64 `json:"budget" binding:"required,gte=0"`
	Risk   *float64 `json:"risk"`
}

// RecommendResponse 推荐响应
type RecommendResponse struct {
	State model.WidgetState `json:"state"`
	Error string            `json:"error,omitempty"`
}

// ListWidgets 组件列表
func (h *Handler) ListWidgets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.order})
}

// GetState 当前会话的组件状态
func (h *Handler) GetState(c *gin.Context) {
	e, ok := h.lookup(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "组件不存在"})
		return
	}
	st, _ := h.loadState(c.Request.Context(), h.sessionID(c), e)
	c.JSON(http.StatusOK, RecommendResponse{State: st})
}

// Recommend 提交预算与风险偏好并获取推荐
func (h *Handler) Recommend(c *gin.Context) {
	e, ok := h.lookup(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "组件不存在"})
		return
	}

	var req RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "请求参数错误: " + err.Error(),
		})
		return
	}

	sid := h.sessionID(c)
	st, err := h.submit(c, sid, e, submitInput{budget: req.Budget, risk: req.Risk})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, RecommendResponse{State: st})
	case errors.Is(err, session.ErrInFlight), errors.Is(err, widget.ErrSubmitInFlight):
		c.JSON(http.StatusConflict, RecommendResponse{State: st, Error: "已有请求处理中"})
	case errors.Is(err, widget.ErrInvalidBudget), errors.Is(err, widget.ErrBudgetRequired):
		c.JSON(http.StatusBadRequest, RecommendResponse{State: st, Error: err.Error()})
	case errors.Is(err, client.ErrNetworkFailure), errors.Is(err, client.ErrResponseParse):
		c.JSON(http.StatusBadGateway, RecommendResponse{State: st, Error: client.KindOf(err).String()})
	default:
		c.JSON(http.StatusInternalServerError, RecommendResponse{State: st, Error: err.Error()})
	}
}

// FetchLog 最近的推荐请求诊断记录
func (h *Handler) FetchLog(c *gin.Context) {
	if h.fetchLog == nil {
		c.JSON(http.StatusOK, gin.H{"data": []model.FetchRecord{}, "enabled": false})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(store.DefaultRecentLimit)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit 参数错误"})
		return
	}

	records, err := h.fetchLog.Recent(c.Request.Context(), c.Query("widget"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records, "enabled": true})
}
