package core

import "context"

// Action 是一次交互动作的名称。
type Action string

const (
	ActionLike       Action = "like"
	ActionUnlike     Action = "unlike"
	ActionDislike    Action = "dislike"
	ActionUndislike  Action = "undislike"
	ActionHide       Action = "hide"
	ActionUnhide     Action = "unhide"
	ActionBookmark   Action = "bookmark"
	ActionUnbookmark Action = "unbookmark"
)

// Event 描述一次交互，传给 Hooks。
type Event struct {
	Action   Action
	UserID   string
	Category string
	ItemID   string
}

// Hooks 是宿主持久层注册的交互观察者。
//
// Before 在写入前调用，返回非 nil 错误时动作被中止（不写入任何数据，错误原样返回给调用方）。
// After 在提交后调用，错误只记录日志，不回滚。
type Hooks interface {
	Before(ctx context.Context, ev Event) error
	After(ctx context.Context, ev Event) error
}

// HookFuncs 用函数实现 Hooks，未设置的函数视为空操作。
type HookFuncs struct {
	BeforeFunc func(ctx context.Context, ev Event) error
	AfterFunc  func(ctx context.Context, ev Event) error
}

func (h HookFuncs) Before(ctx context.Context, ev Event) error {
	if h.BeforeFunc == nil {
		return nil
	}
	return h.BeforeFunc(ctx, ev)
}

func (h HookFuncs) After(ctx context.Context, ev Event) error {
	if h.AfterFunc == nil {
		return nil
	}
	return h.AfterFunc(ctx, ev)
}

// Enqueuer 投递某个用户的相似度/推荐批处理任务（异步执行）。
type Enqueuer interface {
	Enqueue(ctx context.Context, userID string) error
}

// PopularityUpdater 同步重算物品的热度分。
type PopularityUpdater interface {
	UpdatePopularity(ctx context.Context, category, itemID string) (float64, error)
}
