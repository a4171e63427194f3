package rater

import (
	"context"
	"fmt"

	"github.com/rushteam/recommendable/core"
	"github.com/rushteam/recommendable/pkg/keys"
)

// mutation 描述一个交互动作对存储的影响。
type mutation struct {
	action core.Action
	rel    keys.Relation
	add    bool

	// exclusive 是 add 时需要同时移除的互斥关系
	exclusive []keys.Relation

	// rescore 表示影响热度分与相似度，提交后需要重算热度并投递批处理
	rescore bool

	// unrecommend 表示提交时从该用户的推荐结果中移除物品
	unrecommend bool
}

var (
	likeMutation = mutation{
		action: core.ActionLike, rel: keys.Liked, add: true,
		exclusive: []keys.Relation{keys.Disliked, keys.Hidden},
		rescore:   true, unrecommend: true,
	}
	unlikeMutation = mutation{action: core.ActionUnlike, rel: keys.Liked, rescore: true}

	dislikeMutation = mutation{
		action: core.ActionDislike, rel: keys.Disliked, add: true,
		exclusive: []keys.Relation{keys.Liked, keys.Hidden},
		rescore:   true, unrecommend: true,
	}
	undislikeMutation = mutation{action: core.ActionUndislike, rel: keys.Disliked, rescore: true}

	hideMutation   = mutation{action: core.ActionHide, rel: keys.Hidden, add: true, unrecommend: true}
	unhideMutation = mutation{action: core.ActionUnhide, rel: keys.Hidden}

	bookmarkMutation   = mutation{action: core.ActionBookmark, rel: keys.Bookmarked, add: true, unrecommend: true}
	unbookmarkMutation = mutation{action: core.ActionUnbookmark, rel: keys.Bookmarked}
)

// Like 记录 user 喜欢 item，同时移除 dislike 与 hide。已经喜欢时返回 false。
func (r *Rater) Like(ctx context.Context, userID, category, itemID string) (bool, error) {
	return r.apply(ctx, likeMutation, userID, category, itemID)
}

// Unlike 取消喜欢，未喜欢时返回 false。
func (r *Rater) Unlike(ctx context.Context, userID, category, itemID string) (bool, error) {
	return r.apply(ctx, unlikeMutation, userID, category, itemID)
}

// Dislike 记录 user 不喜欢 item，同时移除 like 与 hide。已经不喜欢时返回 false。
func (r *Rater) Dislike(ctx context.Context, userID, category, itemID string) (bool, error) {
	return r.apply(ctx, dislikeMutation, userID, category, itemID)
}

func (r *Rater) Undislike(ctx context.Context, userID, category, itemID string) (bool, error) {
	return r.apply(ctx, undislikeMutation, userID, category, itemID)
}

// Hide 隐藏物品，使其不再出现在推荐候选中。与 like/dislike 独立。
func (r *Rater) Hide(ctx context.Context, userID, category, itemID string) (bool, error) {
	return r.apply(ctx, hideMutation, userID, category, itemID)
}

func (r *Rater) Unhide(ctx context.Context, userID, category, itemID string) (bool, error) {
	return r.apply(ctx, unhideMutation, userID, category, itemID)
}

// Bookmark 收藏物品，与其他关系都不互斥。
func (r *Rater) Bookmark(ctx context.Context, userID, category, itemID string) (bool, error) {
	return r.apply(ctx, bookmarkMutation, userID, category, itemID)
}

func (r *Rater) Unbookmark(ctx context.Context, userID, category, itemID string) (bool, error) {
	return r.apply(ctx, unbookmarkMutation, userID, category, itemID)
}

// Unrate 清除 user 对 item 的 like / dislike / hide（至多一个会生效），再取消收藏。
// 任一关系被移除时返回 true。
func (r *Rater) Unrate(ctx context.Context, userID, category, itemID string) (bool, error) {
	var changed bool
	for _, m := range []mutation{unlikeMutation, undislikeMutation, unhideMutation} {
		ok, err := r.apply(ctx, m, userID, category, itemID)
		if err != nil {
			return changed, err
		}
		if ok {
			changed = true
			break
		}
	}
	ok, err := r.apply(ctx, unbookmarkMutation, userID, category, itemID)
	return changed || ok, err
}

func (r *Rater) apply(ctx context.Context, m mutation, userID, category, itemID string) (bool, error) {
	if err := r.checkCategory(category); err != nil {
		r.metrics.RecordInteraction(string(m.action), "error")
		return false, err
	}

	userKey := r.keys.UserSet(m.rel, category, userID)
	member, err := r.store.SIsMember(ctx, userKey, itemID)
	if err != nil {
		r.metrics.RecordInteraction(string(m.action), "error")
		return false, err
	}
	if member == m.add {
		r.metrics.RecordInteraction(string(m.action), "noop")
		return false, nil
	}

	ev := core.Event{Action: m.action, UserID: userID, Category: category, ItemID: itemID}
	if err := r.hooks.Before(ctx, ev); err != nil {
		r.metrics.RecordInteraction(string(m.action), "aborted")
		return false, fmt.Errorf("before %s hook: %w", m.action, err)
	}

	var applied bool
	err = r.update(ctx, func(tx core.Tx) error {
		// watch 之后再确认一次，期间可能有并发请求完成了同一动作
		member, err := tx.SIsMember(ctx, userKey, itemID)
		if err != nil {
			return err
		}
		applied = member != m.add
		if !applied {
			return nil
		}
		r.stage(tx, m, userID, category, itemID)
		return nil
	}, userKey)
	if err != nil {
		r.metrics.RecordInteraction(string(m.action), "error")
		return false, fmt.Errorf("%s %s/%s for %s: %w", m.action, category, itemID, userID, err)
	}
	if !applied {
		r.metrics.RecordInteraction(string(m.action), "noop")
		return false, nil
	}
	r.metrics.RecordInteraction(string(m.action), "applied")

	if err := r.hooks.After(ctx, ev); err != nil {
		r.log.Warn("after hook failed", "action", m.action, "user_id", userID,
			"category", category, "item_id", itemID, "error", err)
	}

	if !m.rescore {
		return true, nil
	}
	r.enqueue(ctx, userID)
	if r.scorer != nil {
		if _, err := r.scorer.UpdatePopularity(ctx, category, itemID); err != nil {
			return true, fmt.Errorf("update popularity %s/%s: %w", category, itemID, err)
		}
	}
	return true, nil
}

// stage 把一个动作的全部写入排入事务。
func (r *Rater) stage(tx core.Tx, m mutation, userID, category, itemID string) {
	if !m.add {
		tx.SRem(r.keys.UserSet(m.rel, category, userID), itemID)
		tx.SRem(r.keys.ItemSet(m.rel, category, itemID), userID)
		return
	}

	for _, rel := range m.exclusive {
		tx.SRem(r.keys.UserSet(rel, category, userID), itemID)
		tx.SRem(r.keys.ItemSet(rel, category, itemID), userID)
	}
	tx.SAdd(r.keys.UserSet(m.rel, category, userID), itemID)
	tx.SAdd(r.keys.ItemSet(m.rel, category, itemID), userID)
	tx.SAdd(r.keys.Users(), userID)

	if m.unrecommend {
		tx.ZRem(r.keys.Recommended(category, userID), itemID)
		tx.SRem(r.keys.RecommendedTo(category, itemID), userID)
	}
}

// enqueue 投递批处理任务，失败只记录日志，下一次定时全量刷新会补上。
func (r *Rater) enqueue(ctx context.Context, userID string) {
	if !r.cfg.AutoEnqueue || r.enqueuer == nil {
		return
	}
	if err := r.enqueuer.Enqueue(ctx, userID); err != nil {
		r.log.Warn("enqueue refresh failed", "user_id", userID, "error", err)
		return
	}
	r.metrics.RecordEnqueued()
}
