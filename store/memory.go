package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rushteam/recommendable/core"
)

// MemoryStore 是内存实现的 SetStore，用于测试/开发/原型。
// Update 在整个回调期间持有写锁，因此天然满足原子性与隔离性，watch 参数被忽略。
// 进程重启后数据丢失。
type MemoryStore struct {
	mu    sync.RWMutex
	sets  map[string]map[string]struct{} // set key -> members
	zsets map[string]map[string]float64  // zset key -> member -> score
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sets:  make(map[string]map[string]struct{}),
		zsets: make(map[string]map[string]float64),
	}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) SIsMember(_ context.Context, key, member string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sismember(key, member), nil
}

func (m *MemoryStore) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.smembers(key), nil
}

func (m *MemoryStore) SCard(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.sets[key])), nil
}

func (m *MemoryStore) SInter(_ context.Context, keys ...string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(keys) == 0 {
		return nil, nil
	}
	out := make([]string, 0)
	for member := range m.sets[keys[0]] {
		inAll := true
		for _, k := range keys[1:] {
			if _, ok := m.sets[k][member]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			out = append(out, member)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) SUnion(_ context.Context, keys ...string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, k := range keys {
		for member := range m.sets[k] {
			seen[member] = struct{}{}
		}
	}
	return sortedKeys(seen), nil
}

func (m *MemoryStore) SDiff(_ context.Context, keys ...string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(keys) == 0 {
		return nil, nil
	}
	out := make([]string, 0)
	for member := range m.sets[keys[0]] {
		excluded := false
		for _, k := range keys[1:] {
			if _, ok := m.sets[k][member]; ok {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, member)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) ZScore(_ context.Context, key, member string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	score, ok := m.zsets[key][member]
	if !ok {
		return 0, core.ErrStoreNotFound
	}
	return score, nil
}

func (m *MemoryStore) ZCard(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.zsets[key])), nil
}

func (m *MemoryStore) ZRange(_ context.Context, key string, start, stop int64) ([]core.ScoredMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.zrange(key, start, stop, false), nil
}

func (m *MemoryStore) ZRevRange(_ context.Context, key string, start, stop int64) ([]core.ScoredMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.zrange(key, start, stop, true), nil
}

// Update 持有写锁执行 fn，fn 成功后一次性应用所有排队的写操作。
func (m *MemoryStore) Update(ctx context.Context, fn func(tx core.Tx) error, _ ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{store: m}
	if err := fn(tx); err != nil {
		return err
	}
	for _, op := range tx.ops {
		op()
	}
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// 以下 helper 要求调用方已持有锁

func (m *MemoryStore) sismember(key, member string) bool {
	_, ok := m.sets[key][member]
	return ok
}

func (m *MemoryStore) smembers(key string) []string {
	return sortedKeys(m.sets[key])
}

func (m *MemoryStore) zrange(key string, start, stop int64, rev bool) []core.ScoredMember {
	zset := m.zsets[key]
	if len(zset) == 0 {
		return nil
	}

	// 按 (score, member) 升序，与 Redis 的有序集合排列一致
	pairs := make([]core.ScoredMember, 0, len(zset))
	for member, score := range zset {
		pairs = append(pairs, core.ScoredMember{Member: member, Score: score})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Score != pairs[j].Score {
			return pairs[i].Score < pairs[j].Score
		}
		return pairs[i].Member < pairs[j].Member
	})
	if rev {
		for i, j := 0, len(pairs)-1; i < j; i, j = i+1, j-1 {
			pairs[i], pairs[j] = pairs[j], pairs[i]
		}
	}

	lo, hi, ok := normalizeRange(start, stop, int64(len(pairs)))
	if !ok {
		return nil
	}
	out := make([]core.ScoredMember, hi-lo+1)
	copy(out, pairs[lo:hi+1])
	return out
}

// normalizeRange 按 Redis 的规则处理负数下标和越界。
func normalizeRange(start, stop, length int64) (int64, int64, bool) {
	if start < 0 {
		start = length + start
	}
	if stop < 0 {
		stop = length + stop
	}
	if start < 0 {
		start = 0
	}
	if start > stop || start >= length {
		return 0, 0, false
	}
	if stop >= length {
		stop = length - 1
	}
	return start, stop, true
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// memoryTx 是 MemoryStore 的事务视图，写操作以闭包形式排队。
type memoryTx struct {
	store *MemoryStore
	ops   []func()
}

var _ core.Tx = (*memoryTx)(nil)

func (t *memoryTx) SIsMember(_ context.Context, key, member string) (bool, error) {
	return t.store.sismember(key, member), nil
}

func (t *memoryTx) SMembers(_ context.Context, key string) ([]string, error) {
	return t.store.smembers(key), nil
}

func (t *memoryTx) SCard(_ context.Context, key string) (int64, error) {
	return int64(len(t.store.sets[key])), nil
}

func (t *memoryTx) ZRange(_ context.Context, key string, start, stop int64) ([]core.ScoredMember, error) {
	return t.store.zrange(key, start, stop, false), nil
}

func (t *memoryTx) SAdd(key string, members ...string) {
	if len(members) == 0 {
		return
	}
	members = append([]string(nil), members...)
	t.ops = append(t.ops, func() {
		set := t.store.sets[key]
		if set == nil {
			set = make(map[string]struct{}, len(members))
			t.store.sets[key] = set
		}
		for _, member := range members {
			set[member] = struct{}{}
		}
	})
}

func (t *memoryTx) SRem(key string, members ...string) {
	members = append([]string(nil), members...)
	t.ops = append(t.ops, func() {
		set := t.store.sets[key]
		for _, member := range members {
			delete(set, member)
		}
		if len(set) == 0 {
			delete(t.store.sets, key)
		}
	})
}

func (t *memoryTx) ZAdd(key string, members ...core.ScoredMember) {
	if len(members) == 0 {
		return
	}
	members = append([]core.ScoredMember(nil), members...)
	t.ops = append(t.ops, func() {
		zset := t.store.zsets[key]
		if zset == nil {
			zset = make(map[string]float64, len(members))
			t.store.zsets[key] = zset
		}
		for _, sm := range members {
			zset[sm.Member] = sm.Score
		}
	})
}

func (t *memoryTx) ZRem(key string, members ...string) {
	members = append([]string(nil), members...)
	t.ops = append(t.ops, func() {
		zset := t.store.zsets[key]
		for _, member := range members {
			delete(zset, member)
		}
		if len(zset) == 0 {
			delete(t.store.zsets, key)
		}
	})
}

func (t *memoryTx) ZRemRangeByRank(key string, start, stop int64) {
	t.ops = append(t.ops, func() {
		for _, sm := range t.store.zrange(key, start, stop, false) {
			delete(t.store.zsets[key], sm.Member)
		}
		if len(t.store.zsets[key]) == 0 {
			delete(t.store.zsets, key)
		}
	})
}

func (t *memoryTx) Del(keys ...string) {
	keys = append([]string(nil), keys...)
	t.ops = append(t.ops, func() {
		for _, k := range keys {
			delete(t.store.sets, k)
			delete(t.store.zsets, k)
		}
	})
}

var _ core.SetStore = (*MemoryStore)(nil)
