// 包 utils：Redis 连接工具，统一环境变量读取与可选 DB 选择
package utils

import (
	"dumpwatch/internal/logger"
	"os"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// OpenRedisFromEnv：从 REDIS_HOST/REDIS_PORT/REDIS_PASS/REDIS_DB 打开客户端
// 约束：未配置 REDIS_HOST 时返回 nil，调用方视为禁用共享缓存；REDIS_DB 解析失败回退到 0
func OpenRedisFromEnv() *redis.Client {
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		return nil
	}
	port := envOr("REDIS_PORT", "6379")
	addr := host + ":" + port
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, _ := strconv.Atoi(v); n >= 0 {
			db = n
		}
	}
	logger.L().Debug("redis_env", "addr", addr, "db", db)
	return redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASS"), DB: db})
}
