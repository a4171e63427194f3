package core

import "context"

// ScoredMember 是有序集合中的一个成员及其分数。
type ScoredMember struct {
	Member string
	Score  float64
}

// SetStore 是推荐引擎唯一的持久化领域接口：集合 + 有序集合 + 原子批量执行。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（store）实现
//   - 所有读操作直接返回；所有写操作只能通过 Update 在一个原子批次中提交
//   - 有序集合按 (score, member) 升序排列，分数相同时按 member 字典序
//
// 实现：
//   - store.MemoryStore：测试/开发
//   - store.RedisStore：生产（WATCH + MULTI/EXEC）
//   - store.BreakerStore：在任意实现外包一层熔断
type SetStore interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	SIsMember(ctx context.Context, key, member string) (bool, error)
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)

	// SInter / SUnion / SDiff 是集合运算，不落地临时 key
	SInter(ctx context.Context, keys ...string) ([]string, error)
	SUnion(ctx context.Context, keys ...string) ([]string, error)
	SDiff(ctx context.Context, keys ...string) ([]string, error)

	// ZScore 获取成员分数，成员不存在时返回 ErrStoreNotFound
	ZScore(ctx context.Context, key, member string) (float64, error)
	ZCard(ctx context.Context, key string) (int64, error)

	// ZRange 按排名升序返回 [start, stop]，支持负数下标（-1 表示最后一个）
	ZRange(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)

	// ZRevRange 按排名降序返回 [start, stop]
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)

	// Update 在一个原子批次内执行 fn。
	//
	// fn 内通过 Tx 读取的数据在提交前若被并发修改（watch 中列出的 key），
	// 整个批次不会生效并返回 ErrTxConflict，调用方可整体重试。
	// fn 返回错误时不提交任何写入。
	Update(ctx context.Context, fn func(tx Tx) error, watch ...string) error

	// Close 关闭连接/释放资源
	Close() error
}

// Tx 是 Update 内的事务视图：读操作立即执行，写操作排队到提交时原子执行。
// 读操作看不到同一个 Tx 中尚未提交的写入。
type Tx interface {
	SIsMember(ctx context.Context, key, member string) (bool, error)
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
	ZRange(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)

	SAdd(key string, members ...string)
	SRem(key string, members ...string)
	ZAdd(key string, members ...ScoredMember)
	ZRem(key string, members ...string)
	ZRemRangeByRank(key string, start, stop int64)
	Del(keys ...string)
}

// Store 错误定义（使用统一的 DomainError）
var (
	// ErrStoreNotFound 表示 key 或成员不存在
	ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")

	// ErrStoreNotSupported 表示操作不支持
	ErrStoreNotSupported = NewDomainError(ModuleStore, ErrorCodeNotSupported, "store: operation not supported")

	// ErrStoreUnavailable 表示存储不可用（例如熔断打开）
	ErrStoreUnavailable = NewDomainError(ModuleStore, ErrorCodeUnavailable, "store: unavailable")

	// ErrTxConflict 表示被 watch 的 key 在事务提交前被修改
	ErrTxConflict = NewDomainError(ModuleStore, "CONFLICT", "store: transaction conflict")
)

// DefaultMaxRetries 是 Update 遇到事务冲突时的默认最大尝试次数。
const DefaultMaxRetries = 5

// IsStoreNotFound 检查错误是否为 key 不存在
func IsStoreNotFound(err error) bool {
	domainErr := GetDomainError(err)
	return domainErr != nil && domainErr.Module == ModuleStore && domainErr.Code == ErrorCodeNotFound
}

// IsTxConflict 检查错误是否为事务冲突
func IsTxConflict(err error) bool {
	domainErr := GetDomainError(err)
	return domainErr != nil && domainErr.Module == ModuleStore && domainErr.Code == "CONFLICT"
}
