package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rushteam/recommendable/core"
)

// RedisStore 是 Redis 实现的 SetStore，生产环境使用，支持持久化、哨兵等。
// Update 使用 WATCH + MULTI/EXEC：watch 的 key 在提交前被修改时返回 core.ErrTxConflict。
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore 连接 Redis 并 Ping 校验。
func NewRedisStore(ctx context.Context, opts *redis.Options) (*RedisStore, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient 使用已有的 *redis.Client（高级用法）。
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// GetClient 返回底层客户端，供队列等组件复用连接池。
func (r *RedisStore) GetClient() *redis.Client { return r.client }

func (r *RedisStore) Name() string { return "redis" }

func (r *RedisStore) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return r.client.SIsMember(ctx, key, member).Result()
}

func (r *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	return r.client.SMembers(ctx, key).Result()
}

func (r *RedisStore) SCard(ctx context.Context, key string) (int64, error) {
	return r.client.SCard(ctx, key).Result()
}

func (r *RedisStore) SInter(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	return r.client.SInter(ctx, keys...).Result()
}

func (r *RedisStore) SUnion(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	return r.client.SUnion(ctx, keys...).Result()
}

func (r *RedisStore) SDiff(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	return r.client.SDiff(ctx, keys...).Result()
}

func (r *RedisStore) ZScore(ctx context.Context, key, member string) (float64, error) {
	score, err := r.client.ZScore(ctx, key, member).Result()
	if errors.Is(err, redis.Nil) {
		return 0, core.ErrStoreNotFound
	}
	return score, err
}

func (r *RedisStore) ZCard(ctx context.Context, key string) (int64, error) {
	return r.client.ZCard(ctx, key).Result()
}

func (r *RedisStore) ZRange(ctx context.Context, key string, start, stop int64) ([]core.ScoredMember, error) {
	zs, err := r.client.ZRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	return toScored(zs), nil
}

func (r *RedisStore) ZRevRange(ctx context.Context, key string, start, stop int64) ([]core.ScoredMember, error) {
	zs, err := r.client.ZRevRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	return toScored(zs), nil
}

func (r *RedisStore) Update(ctx context.Context, fn func(tx core.Tx) error, watch ...string) error {
	err := r.client.Watch(ctx, func(rtx *redis.Tx) error {
		tx := &redisTx{rtx: rtx}
		if err := fn(tx); err != nil {
			return err
		}
		if len(tx.ops) == 0 {
			return nil
		}
		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, op := range tx.ops {
				op(ctx, pipe)
			}
			return nil
		})
		return err
	}, watch...)
	if errors.Is(err, redis.TxFailedErr) {
		return core.WrapDomainError(core.ErrTxConflict, err)
	}
	return err
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func toScored(zs []redis.Z) []core.ScoredMember {
	out := make([]core.ScoredMember, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			member = fmt.Sprint(z.Member)
		}
		out = append(out, core.ScoredMember{Member: member, Score: z.Score})
	}
	return out
}

// redisTx 读操作走 WATCH 所在的连接，写操作在 MULTI/EXEC 中一次提交。
type redisTx struct {
	rtx *redis.Tx
	ops []func(ctx context.Context, pipe redis.Pipeliner)
}

var _ core.Tx = (*redisTx)(nil)

func (t *redisTx) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return t.rtx.SIsMember(ctx, key, member).Result()
}

func (t *redisTx) SMembers(ctx context.Context, key string) ([]string, error) {
	return t.rtx.SMembers(ctx, key).Result()
}

func (t *redisTx) SCard(ctx context.Context, key string) (int64, error) {
	return t.rtx.SCard(ctx, key).Result()
}

func (t *redisTx) ZRange(ctx context.Context, key string, start, stop int64) ([]core.ScoredMember, error) {
	zs, err := t.rtx.ZRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	return toScored(zs), nil
}

func (t *redisTx) SAdd(key string, members ...string) {
	if len(members) == 0 {
		return
	}
	args := toAny(members)
	t.ops = append(t.ops, func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.SAdd(ctx, key, args...)
	})
}

func (t *redisTx) SRem(key string, members ...string) {
	if len(members) == 0 {
		return
	}
	args := toAny(members)
	t.ops = append(t.ops, func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.SRem(ctx, key, args...)
	})
}

func (t *redisTx) ZAdd(key string, members ...core.ScoredMember) {
	if len(members) == 0 {
		return
	}
	zs := make([]redis.Z, 0, len(members))
	for _, sm := range members {
		zs = append(zs, redis.Z{Score: sm.Score, Member: sm.Member})
	}
	t.ops = append(t.ops, func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.ZAdd(ctx, key, zs...)
	})
}

func (t *redisTx) ZRem(key string, members ...string) {
	if len(members) == 0 {
		return
	}
	args := toAny(members)
	t.ops = append(t.ops, func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.ZRem(ctx, key, args...)
	})
}

func (t *redisTx) ZRemRangeByRank(key string, start, stop int64) {
	t.ops = append(t.ops, func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.ZRemRangeByRank(ctx, key, start, stop)
	})
}

func (t *redisTx) Del(keys ...string) {
	if len(keys) == 0 {
		return
	}
	keys = append([]string(nil), keys...)
	t.ops = append(t.ops, func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.Del(ctx, keys...)
	})
}

func toAny(members []string) []interface{} {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return args
}

// 确保 RedisStore 实现了 core.SetStore 接口
var _ core.SetStore = (*RedisStore)(nil)
