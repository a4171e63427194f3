package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rushteam/recommendable/pkg/keys"
)

// DefaultQueueName 是刷新任务队列的默认名称。
const DefaultQueueName = "refresh"

// RedisQueue 用 Redis list 实现的 Queue，多个 worker 进程可共享。
//
//	LPUSH ns:jobs:{name}            投递
//	BRPOP ns:jobs:{name}            取出
//	SADD/SREM ns:jobs:{name}:pending 去重
type RedisQueue struct {
	client     *redis.Client
	listKey    string
	pendingKey string

	// pollTimeout 是单次 BRPOP 的阻塞时长，超时后重新检查 ctx
	pollTimeout time.Duration
}

func NewRedisQueue(client *redis.Client, namespace, name string) *RedisQueue {
	if name == "" {
		name = DefaultQueueName
	}
	m := keys.New(namespace)
	return &RedisQueue{
		client:      client,
		listKey:     m.Queue(name),
		pendingKey:  m.QueuePending(name),
		pollTimeout: time.Second,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, userID string) error {
	added, err := q.client.SAdd(ctx, q.pendingKey, userID).Result()
	if err != nil {
		return fmt.Errorf("redis queue enqueue: %w", err)
	}
	if added == 0 {
		return nil
	}
	if err := q.client.LPush(ctx, q.listKey, userID).Err(); err != nil {
		// 回滚去重标记，避免该用户之后无法再投递
		_ = q.client.SRem(ctx, q.pendingKey, userID).Err()
		return fmt.Errorf("redis queue enqueue: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		res, err := q.client.BRPop(ctx, q.pollTimeout, q.listKey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", fmt.Errorf("redis queue dequeue: %w", err)
		}
		// BRPOP 返回 [key, value]
		userID := res[1]
		if err := q.client.SRem(ctx, q.pendingKey, userID).Err(); err != nil {
			return "", fmt.Errorf("redis queue dequeue: %w", err)
		}
		return userID, nil
	}
}

// Len 返回队列长度。
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.listKey).Result()
}

var _ Queue = (*RedisQueue)(nil)
