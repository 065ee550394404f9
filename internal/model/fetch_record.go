package model

import "time"

// FetchOutcome 请求结果分类
type FetchOutcome string

const (
	OutcomeOK            FetchOutcome = "ok"
	OutcomeNetwork       FetchOutcome = "network_failure"
	OutcomeResponseParse FetchOutcome = "response_parse_failure"
)

// FetchRecord 一次外部推荐请求的诊断记录
type FetchRecord struct {
	ID         int64        `json:"id"`
	Widget     string       `json:"widget"`
	Endpoint   string       `json:"endpoint"`
	Budget     float64      `json:"budget"`
	Risk       int          `json:"risk"`
	Outcome    FetchOutcome `json:"outcome"`
	StatusCode int          `json:"status_code,omitempty"`
	Count      int          `json:"count"`
	DurationMs int64        `json:"duration_ms"`
	Error      string       `json:"error,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}
