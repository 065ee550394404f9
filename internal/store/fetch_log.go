package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stock-advisor-backend/internal/model"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS fetch_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	widget      TEXT    NOT NULL,
	endpoint    TEXT    NOT NULL,
	budget      REAL    NOT NULL,
	risk        INTEGER NOT NULL,
	outcome     TEXT    NOT NULL,
	status_code INTEGER NOT NULL DEFAULT 0,
	count       INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	error       TEXT    NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fetch_log_created ON fetch_log(created_at);
`

// DefaultRecentLimit 默认返回条数
const DefaultRecentLimit = 50

// MaxRecentLimit 单次最多返回条数
const MaxRecentLimit = 1000

// FetchLog 推荐请求诊断日志（SQLite）
type FetchLog struct {
	db *sql.DB
}

// OpenFetchLog 打开或创建诊断日志库
func OpenFetchLog(path string) (*FetchLog, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("创建诊断日志目录失败: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s", filepath.ToSlash(path)))
	if err != nil {
		return nil, fmt.Errorf("打开诊断日志失败: %w", err)
	}
	// 单连接，避免 :memory: 每个连接各自一份库
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("设置 journal_mode 失败: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("设置 busy_timeout 失败: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("初始化诊断日志表失败: %w", err)
	}
	return &FetchLog{db: db}, nil
}

// Record 写入一条记录，实现 client.Recorder
func (l *FetchLog) Record(ctx context.Context, rec model.FetchRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO fetch_log (widget, endpoint, budget, risk, outcome, status_code, count, duration_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Widget, rec.Endpoint, rec.Budget, rec.Risk, string(rec.Outcome),
		rec.StatusCode, rec.Count, rec.DurationMs, rec.Error, rec.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("写入诊断日志失败: %w", err)
	}
	return nil
}

// Recent 按时间倒序返回最近的记录，widget 为空时不过滤
func (l *FetchLog) Recent(ctx context.Context, widget string, limit int) ([]model.FetchRecord, error) {
	switch {
	case limit <= 0:
		limit = DefaultRecentLimit
	case limit > MaxRecentLimit:
		limit = MaxRecentLimit
	}

	query := `SELECT id, widget, endpoint, budget, risk, outcome, status_code, count, duration_ms, error, created_at
		FROM fetch_log`
	args := []any{}
	if widget != "" {
		query += ` WHERE widget = ?`
		args = append(args, widget)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询诊断日志失败: %w", err)
	}
	defer rows.Close()

	out := make([]model.FetchRecord, 0, limit)
	for rows.Next() {
		var (
			rec     model.FetchRecord
			outcome string
			created int64
		)
		if err := rows.Scan(&rec.ID, &rec.Widget, &rec.Endpoint, &rec.Budget, &rec.Risk, &outcome,
			&rec.StatusCode, &rec.Count, &rec.DurationMs, &rec.Error, &created); err != nil {
			return nil, fmt.Errorf("读取诊断日志失败: %w", err)
		}
		rec.Outcome = model.FetchOutcome(outcome)
		rec.CreatedAt = time.UnixMilli(created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prune 删除早于 before 的记录
func (l *FetchLog) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM fetch_log WHERE created_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("清理诊断日志失败: %w", err)
	}
	return res.RowsAffected()
}

// Close 关闭数据库
func (l *FetchLog) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}
