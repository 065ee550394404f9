package client

import (
	"errors"
	"fmt"

	"stock-advisor-backend/internal/model"
)

// 失败分类，配合 errors.Is 使用
var (
	ErrNetworkFailure = errors.New("network failure")
	ErrResponseParse  = errors.New("response parse failure")
)

// Kind 失败类型
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindResponseParse
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindResponseParse:
		return "response_parse"
	default:
		return "unknown"
	}
}

// Outcome 转换为诊断记录中的结果分类
func (k Kind) Outcome() model.FetchOutcome {
	if k == KindResponseParse {
		return model.OutcomeResponseParse
	}
	return model.OutcomeNetwork
}

// FetchError 推荐请求失败
type FetchError struct {
	Kind       Kind
	StatusCode int // 非2xx时的状态码
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is 让 errors.Is(err, ErrNetworkFailure) 按类型匹配
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrNetworkFailure:
		return e.Kind == KindNetwork
	case ErrResponseParse:
		return e.Kind == KindResponseParse
	}
	return false
}

// KindOf 返回错误的失败类型，非 FetchError 时按网络失败处理
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindNetwork
}
