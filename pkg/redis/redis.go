package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"crewtrack/backend/config"
)

// Client Redis 客户端封装
// 当前用于最近在场事件缓存（观察者重连回放）与 Token 黑名单校验
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── 最近在场事件缓存 ──

const recentEventsKey = "presence:events:recent"

// PushRecentEvent 将序列化后的在场事件写入最近事件列表，并裁剪到 maxLen 条
// 回放缓存只服务于观察者重连，不是事件的持久存储
func (c *Client) PushRecentEvent(ctx context.Context, payload []byte, maxLen int) error {
	if maxLen <= 0 {
		return nil
	}
	pipe := c.rdb.TxPipeline()
	pipe.LPush(ctx, recentEventsKey, payload)
	pipe.LTrim(ctx, recentEventsKey, 0, int64(maxLen-1))
	_, err := pipe.Exec(ctx)
	return err
}

// RecentEvents 返回最近缓存的在场事件（新→旧）
func (c *Client) RecentEvents(ctx context.Context) ([]string, error) {
	return c.rdb.LRange(ctx, recentEventsKey, 0, -1).Result()
}

// ── 速率限制 ──

// CheckRateLimit 固定窗口计数器限流
// 窗口首个请求设置过期时间，计数超过 limit 即拒绝
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := c.rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return n <= int64(limit), nil
}

// ── Token 黑名单 ──
// 黑名单键由统一身份服务在注销/吊销时写入，本服务只读

const blacklistPrefix = "token:blacklist:"

// IsBlacklisted 检查 JWT ID 是否在黑名单中
func (c *Client) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := c.rdb.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
