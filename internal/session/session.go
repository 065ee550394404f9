package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"stock-advisor-backend/internal/cache"
	"stock-advisor-backend/internal/model"
)

// ErrInFlight 同一会话同一组件已有请求在途
var ErrInFlight = errors.New("submission already in flight")

const keyPrefix = "advisor"

// Store 会话级组件状态存储，状态随 TTL 过期，不做持久化
type Store struct {
	cache       cache.Provider
	ttl         time.Duration
	inflightTTL time.Duration
}

// NewStore ttl 为状态保留时间，inflightTTL 为在途锁兜底过期时间
func NewStore(p cache.Provider, ttl, inflightTTL time.Duration) *Store {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if inflightTTL <= 0 {
		inflightTTL = 2 * time.Minute
	}
	return &Store{cache: p, ttl: ttl, inflightTTL: inflightTTL}
}

// NewID 生成会话ID
func NewID() string {
	return uuid.NewString()
}

// ValidID 校验客户端传来的会话ID
func ValidID(id string) bool {
	u, err := uuid.Parse(id)
	return err == nil && u.Version() == 4
}

func stateKey(sid, widget string) string {
	return fmt.Sprintf("%s:state:%s:%s", keyPrefix, sid, widget)
}

func lockKey(sid, widget string) string {
	return fmt.Sprintf("%s:inflight:%s:%s", keyPrefix, sid, widget)
}

// Load 读取状态，不存在时返回初始状态与 false
func (s *Store) Load(ctx context.Context, sid, widget string) (model.WidgetState, bool, error) {
	var st model.WidgetState
	err := s.cache.Get(ctx, stateKey(sid, widget), &st)
	if errors.Is(err, cache.ErrMiss) {
		return model.NewWidgetState(widget), false, nil
	}
	if err != nil {
		return model.NewWidgetState(widget), false, fmt.Errorf("读取会话状态失败: %w", err)
	}
	if st.Results == nil {
		st.Results = model.RecommendationList{}
	}
	st.Widget = widget
	return st, true, nil
}

// Save 写入状态并刷新 TTL
func (s *Store) Save(ctx context.Context, sid string, st model.WidgetState) error {
	if err := s.cache.Set(ctx, stateKey(sid, st.Widget), st, s.ttl); err != nil {
		return fmt.Errorf("保存会话状态失败: %w", err)
	}
	return nil
}

// Acquire 获取在途锁，返回的 release 释放锁
// 锁值为本次获取的 token，持有期间每 inflightTTL/3 续期一次；
// TTL 只用于回收崩溃的持有者，release 只删除自己持有的锁。
func (s *Store) Acquire(ctx context.Context, sid, widget string) (func(), error) {
	key := lockKey(sid, widget)
	token := uuid.NewString()
	ok, err := s.cache.SetNX(ctx, key, token, s.inflightTTL)
	if err != nil {
		return nil, fmt.Errorf("获取在途锁失败: %w", err)
	}
	if !ok {
		return nil, ErrInFlight
	}

	// 请求可能已被取消，续期与释放都不依赖原 context
	bg := context.WithoutCancel(ctx)
	stop := make(chan struct{})
	done := make(chan struct{})
	go s.heartbeat(bg, key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			_, _ = s.cache.CompareAndDelete(bg, key, token)
		})
	}, nil
}

// heartbeat 持有期间续期在途锁，锁已不属于自己时退出
func (s *Store) heartbeat(ctx context.Context, key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(max(s.inflightTTL/3, time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			held, err := s.cache.CompareAndExpire(ctx, key, token, s.inflightTTL)
			if err == nil && !held {
				return
			}
		}
	}
}

// InFlight 是否有请求持有在途锁
func (s *Store) InFlight(ctx context.Context, sid, widget string) bool {
	var token string
	return s.cache.Get(ctx, lockKey(sid, widget), &token) == nil
}
