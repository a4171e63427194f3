package filter

import (
	"context"

	"github.com/rushteam/recommendable/core"
)

// BlacklistFilter 过滤黑名单中的物品。
// 黑名单来自内存中的 ItemIDs，或存储中的一个 set（Store + Key）。
type BlacklistFilter struct {
	ItemIDs []string
	Store   core.SetStore
	Key     string

	ids map[string]struct{}
}

func NewBlacklistFilter(itemIDs []string, store core.SetStore, key string) *BlacklistFilter {
	ids := make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		ids[id] = struct{}{}
	}
	return &BlacklistFilter{ItemIDs: itemIDs, Store: store, Key: key, ids: ids}
}

func (f *BlacklistFilter) Name() string { return "filter.blacklist" }

func (f *BlacklistFilter) ShouldFilter(ctx context.Context, _ *core.RecommendContext, item *core.Item) (bool, error) {
	if item == nil {
		return true, nil
	}
	if _, ok := f.ids[item.ID]; ok {
		return true, nil
	}
	if f.Store == nil || f.Key == "" {
		return false, nil
	}
	return f.Store.SIsMember(ctx, f.Key, item.ID)
}
