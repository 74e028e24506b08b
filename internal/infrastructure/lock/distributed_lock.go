package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis 分布式锁
//
// 加锁：SET key value NX EX timeout，value 为持有者标识
// 释放：Lua 脚本先验 value 再 DEL，避免误删他人持有的锁

var (
	ErrLockFailed = errors.New("获取分布式锁失败")
)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string        // 持有者标识，释放时验证
	expiration time.Duration // 过期时间，防止持有者崩溃导致死锁
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁，Lua 脚本保证“检查+删除”原子执行
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// NewOrderLock 创建下单锁（按账户维度）
// 同一账户的下单串行化，不同账户互不影响；value 用订单请求标识便于追踪
func NewOrderLock(client *redis.Client, accountID int64, holder string) *DistributedLock {
	key := fmt.Sprintf("order:lock:account:%d", accountID)
	return NewDistributedLock(client, key, holder, 30*time.Second)
}
