package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"stock-advisor-backend/internal/config"
	"stock-advisor-backend/internal/logger"
	"stock-advisor-backend/internal/model"
	"stock-advisor-backend/internal/normalize"
)

// maxBodySize 响应体读取上限
const maxBodySize = 4 << 20

// Fetcher 推荐获取接口
type Fetcher interface {
	Fetch(ctx context.Context, req model.AdvisorRequest) (model.RecommendationList, error)
}

// Recorder 接收每次请求的诊断记录
type Recorder interface {
	Record(ctx context.Context, rec model.FetchRecord) error
}

// HTTPFetcher 通过 HTTP 调用外部推荐服务，每次提交只发一次请求，不重试
type HTTPFetcher struct {
	Widget      string
	Endpoint    string
	BudgetField string
	RiskField   string
	RiskAsArray bool
	Mapping     normalize.FieldMapping

	HTTPClient *http.Client
	Recorder   Recorder
	Log        *zap.Logger
}

// NewHTTPFetcher 按组件配置创建
func NewHTTPFetcher(w config.WidgetConfig, httpClient *http.Client, recorder Recorder) (*HTTPFetcher, error) {
	mapping, err := w.FieldMapping()
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = HTTPClient
	}
	return &HTTPFetcher{
		Widget:      w.Name,
		Endpoint:    w.Endpoint,
		BudgetField: w.BudgetField,
		RiskField:   w.RiskField,
		RiskAsArray: w.RiskAsArray,
		Mapping:     mapping,
		HTTPClient:  httpClient,
		Recorder:    recorder,
		Log:         logger.Named("client"),
	}, nil
}

// HTTPClient 默认客户端，不设超时，由调用方的 context 决定生命周期
var HTTPClient = &http.Client{}

// Body 按契约构造请求体
func (f *HTTPFetcher) Body(req model.AdvisorRequest) map[string]any {
	budgetField, riskField := f.BudgetField, f.RiskField
	if budgetField == "" {
		budgetField = "budget"
	}
	if riskField == "" {
		riskField = "risk"
	}
	var risk any = req.Risk
	if f.RiskAsArray {
		risk = []int{req.Risk}
	}
	return map[string]any{
		budgetField: req.Budget,
		riskField:   risk,
	}
}

// Fetch 发送一次推荐请求并规范化响应
func (f *HTTPFetcher) Fetch(ctx context.Context, req model.AdvisorRequest) (model.RecommendationList, error) {
	start := time.Now()
	list, status, err := f.do(ctx, req)

	if f.Recorder != nil {
		rec := model.FetchRecord{
			Widget:     f.Widget,
			Endpoint:   f.Endpoint,
			Budget:     req.Budget,
			Risk:       req.Risk,
			Outcome:    model.OutcomeOK,
			StatusCode: status,
			Count:      len(list),
			DurationMs: time.Since(start).Milliseconds(),
			CreatedAt:  start,
		}
		if err != nil {
			rec.Outcome = KindOf(err).Outcome()
			rec.Error = err.Error()
		}
		// 诊断记录不能影响请求结果，写入时不继承已取消的 context
		if recErr := f.Recorder.Record(context.WithoutCancel(ctx), rec); recErr != nil {
			f.log().Warn("写入诊断日志失败",
				zap.String("widget", f.Widget),
				zap.String("outcome", string(rec.Outcome)),
				zap.Error(recErr))
		}
	}
	return list, err
}

func (f *HTTPFetcher) log() *zap.Logger {
	if f.Log != nil {
		return f.Log
	}
	return logger.Named("client")
}

func (f *HTTPFetcher) do(ctx context.Context, req model.AdvisorRequest) (model.RecommendationList, int, error) {
	payload, err := json.Marshal(f.Body(req))
	if err != nil {
		return nil, 0, &FetchError{Kind: KindNetwork, Err: fmt.Errorf("编码请求失败: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, &FetchError{Kind: KindNetwork, Err: fmt.Errorf("创建请求失败: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	httpClient := f.HTTPClient
	if httpClient == nil {
		httpClient = HTTPClient
	}
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, &FetchError{Kind: KindNetwork, Err: fmt.Errorf("请求推荐服务失败: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, resp.StatusCode, &FetchError{Kind: KindNetwork, StatusCode: resp.StatusCode, Err: fmt.Errorf("读取响应失败: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, &FetchError{
			Kind:       KindNetwork,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("推荐服务返回 %s", statusText(resp, body)),
		}
	}

	list, err := normalize.Decode(body, f.Mapping)
	if err != nil {
		return nil, resp.StatusCode, &FetchError{Kind: KindResponseParse, Err: fmt.Errorf("解析响应失败: %w", err)}
	}
	return list, resp.StatusCode, nil
}

func statusText(resp *http.Response, body []byte) string {
	if msg := errorMessage(body); msg != "" {
		return fmt.Sprintf("%s: %s", resp.Status, msg)
	}
	return resp.Status
}

// errorMessage 提取 {"error": "..."} 中的信息
func errorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Error
}

// NewFetchers 为每个组件创建 Fetcher
func NewFetchers(widgets []config.WidgetConfig, httpClient *http.Client, recorder Recorder) (map[string]Fetcher, error) {
	fetchers := make(map[string]Fetcher, len(widgets))
	for _, w := range widgets {
		f, err := NewHTTPFetcher(w, httpClient, recorder)
		if err != nil {
			return nil, err
		}
		fetchers[w.Name] = f
	}
	return fetchers, nil
}
