package config

import "time"

// AppConfig 服务配置
type AppConfig struct {
	Port        string
	GinMode     string
	LogLevel    string
	LogDev      bool
	CORSOrigins []string

	CookieSecure bool // 会话 cookie 总是带 Secure

	// Redis 为空时使用进程内缓存
	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	SessionTTL  time.Duration // 会话状态保留时间
	InflightTTL time.Duration // 在途锁兜底过期时间

	FetchLogDB        string        // 诊断日志 SQLite 路径，为空则不记录
	FetchLogRetention time.Duration // 诊断日志保留时长，0 表示不清理
	FetchLogPruneAt   string        // 每日清理时间 HH:MM

	WidgetsFile string
}

// GetAppConfig 从环境变量读取服务配置
func GetAppConfig() *AppConfig {
	cfg := &AppConfig{}

	cfg.Port = getEnvString("PORT", "8080")
	cfg.GinMode = getEnvString("GIN_MODE", "")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.LogDev = getEnvBool("LOG_DEV", false)
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", false)
	cfg.CORSOrigins = getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"})

	cfg.Redis.Addr = getEnvString("REDIS_ADDR", "")
	cfg.Redis.Password = getEnvString("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.SessionTTL = getEnvDuration("SESSION_TTL", 30*time.Minute)
	cfg.InflightTTL = getEnvDuration("INFLIGHT_TTL", 2*time.Minute)

	cfg.FetchLogDB = getEnvString("FETCH_LOG_DB", "")
	cfg.FetchLogRetention = getEnvDuration("FETCH_LOG_RETENTION", 7*24*time.Hour)
	cfg.FetchLogPruneAt = getEnvString("FETCH_LOG_PRUNE_TIME", "04:00")
	cfg.WidgetsFile = getEnvString("WIDGETS_FILE", "")

	return cfg
}
