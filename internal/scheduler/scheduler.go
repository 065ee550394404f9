package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Pruner 清理早于指定时间的记录
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// PruneOptions 诊断日志清理任务配置
type PruneOptions struct {
	Retention     time.Duration // 保留时长，<=0 不启动任务
	At            string        // 每日执行时间 HH:MM，默认 04:00
	RetryCount    int
	RetryInterval time.Duration
}

// ParseClock 解析 HH:MM，无效时返回 04:00
func ParseClock(s string) (hour, minute int) {
	hour, minute = 4, 0
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return
	}
	return h, m
}

// NextRun 计算下一个执行时间
func NextRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// StartFetchLogPruneScheduler 启动诊断日志清理定时任务，ctx 取消后退出
// 返回的 channel 在任务退出后关闭。
func StartFetchLogPruneScheduler(ctx context.Context, p Pruner, opts PruneOptions, log *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if p == nil || opts.Retention <= 0 {
		log.Info("诊断日志清理任务未启用")
		close(done)
		return done
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 10 * time.Minute
	}
	hour, minute := ParseClock(opts.At)

	log.Info("诊断日志清理任务已启动",
		zap.String("at", fmt.Sprintf("%02d:%02d", hour, minute)),
		zap.Duration("retention", opts.Retention),
		zap.Int("retry", opts.RetryCount))

	go func() {
		defer close(done)
		for {
			now := time.Now()
			next := NextRun(now, hour, minute)
			log.Debug("下次清理诊断日志", zap.Time("next", next), zap.Duration("in", next.Sub(now).Round(time.Minute)))

			if !sleep(ctx, next.Sub(now)) {
				return
			}
			pruneWithRetry(ctx, p, opts, log)
		}
	}()
	return done
}

// pruneWithRetry 带重试的清理
func pruneWithRetry(ctx context.Context, p Pruner, opts PruneOptions, log *zap.Logger) error {
	var err error
	for i := 0; i <= opts.RetryCount; i++ {
		if i > 0 {
			log.Info("重试清理诊断日志", zap.Int("attempt", i))
		}

		var n int64
		n, err = p.Prune(ctx, time.Now().Add(-opts.Retention))
		if err == nil {
			log.Info("诊断日志清理完成", zap.Int64("deleted", n))
			return nil
		}
		log.Warn("清理诊断日志失败", zap.Error(err))
		if i < opts.RetryCount && !sleep(ctx, opts.RetryInterval) {
			return ctx.Err()
		}
	}
	log.Error("诊断日志清理失败", zap.Int("retried", opts.RetryCount), zap.Error(err))
	return err
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
