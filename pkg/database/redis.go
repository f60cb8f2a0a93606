package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"hospital-console-go/internal/config"
	"hospital-console-go/pkg/log"
)

var RDB *redis.Client

// InitRedis 初始化 Redis 客户端连接。Redis 只用于转录归档，连接失败时返回错误由调用方决定是否降级。
func InitRedis(cfg config.RedisConfig) error {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to connect to redis %s: %w", cfg.Addr, err)
	}

	RDB = client
	log.Info("Redis client connected successfully")
	return nil
}
