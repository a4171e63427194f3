package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rushteam/recommendable/core"
)

// RecomputeRecommendations 全量重算 user 在某类别下的推荐结果，返回写入的条数。
//
// 流程：
//  1. 取相似度最高的 N 个用户和最低的 N 个用户（N = NearestNeighbors，未配置时为用户总数）
//  2. 候选 = 前者的 liked ∪ 后者的 disliked，减去 user 自己 liked/disliked/hidden/bookmarked 的物品
//  3. 候选为空时不做任何修改
//  4. 逐个 Predict 打分，整体替换推荐集合，配置了 RecommendationsToStore 时只保留分数最高的部分
func (e *Engine) RecomputeRecommendations(ctx context.Context, userID, category string) (int, error) {
	if err := e.checkCategory(category); err != nil {
		return 0, err
	}

	candidates, err := e.recommendationCandidates(ctx, userID, category)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	scores := make([]core.ScoredMember, 0, len(candidates))
	for _, itemID := range candidates {
		p, err := e.Predict(ctx, userID, category, itemID)
		if err != nil {
			return 0, fmt.Errorf("predict %s/%s for %s: %w", category, itemID, userID, err)
		}
		scores = append(scores, core.ScoredMember{Member: itemID, Score: p})
	}

	sortScored(scores)

	recKey := e.keys.Recommended(category, userID)
	watch := []string{recKey}
	watch = append(watch, e.ratingKeys(userID)...)
	watch = append(watch, e.keys.Hidden(category, userID), e.keys.Bookmarked(category, userID))
	for _, sm := range scores {
		watch = append(watch, e.keys.LikedBy(category, sm.Member), e.keys.DislikedBy(category, sm.Member))
	}

	var stored []core.ScoredMember
	err = e.update(ctx, func(tx core.Tx) error {
		// 计算期间被清除的物品、被 user 评过的物品不再写回
		live, err := e.liveRecommendations(ctx, tx, userID, category, scores)
		if err != nil {
			return err
		}
		if limit := e.cfg.RecommendationsToStore; limit > 0 && len(live) > limit {
			live = live[len(live)-limit:]
		}
		stored = live

		prev, err := tx.ZRange(ctx, recKey, 0, -1)
		if err != nil {
			return err
		}
		keep := make(map[string]struct{}, len(live))
		for _, sm := range live {
			keep[sm.Member] = struct{}{}
		}
		for _, sm := range prev {
			if _, ok := keep[sm.Member]; !ok {
				tx.SRem(e.keys.RecommendedTo(category, sm.Member), userID)
			}
		}

		tx.Del(recKey)
		tx.ZAdd(recKey, live...)
		for _, sm := range live {
			tx.SAdd(e.keys.RecommendedTo(category, sm.Member), userID)
		}
		return nil
	}, watch...)
	if err != nil {
		return 0, fmt.Errorf("write recommendations for %s/%s: %w", userID, category, err)
	}

	e.log.Debug("recommendations recomputed",
		"user_id", userID, "category", category, "candidates", len(candidates), "stored", len(stored))
	return len(stored), nil
}

// liveRecommendations 在事务内过滤推荐：物品必须仍有 liked_by/disliked_by，且 user 尚未交互；
// user 已没有任何评分时返回空。
func (e *Engine) liveRecommendations(
	ctx context.Context,
	tx core.Tx,
	userID, category string,
	scores []core.ScoredMember,
) ([]core.ScoredMember, error) {
	ok, err := e.hasRatings(ctx, tx, userID)
	if err != nil || !ok {
		return nil, err
	}
	own := []string{
		e.keys.Liked(category, userID),
		e.keys.Disliked(category, userID),
		e.keys.Hidden(category, userID),
		e.keys.Bookmarked(category, userID),
	}

	out := make([]core.ScoredMember, 0, len(scores))
next:
	for _, sm := range scores {
		for _, key := range own {
			rated, err := tx.SIsMember(ctx, key, sm.Member)
			if err != nil {
				return nil, err
			}
			if rated {
				continue next
			}
		}
		likes, err := tx.SCard(ctx, e.keys.LikedBy(category, sm.Member))
		if err != nil {
			return nil, err
		}
		dislikes, err := tx.SCard(ctx, e.keys.DislikedBy(category, sm.Member))
		if err != nil {
			return nil, err
		}
		if likes+dislikes > 0 {
			out = append(out, sm)
		}
	}
	return out, nil
}

func (e *Engine) recommendationCandidates(ctx context.Context, userID, category string) ([]string, error) {
	stop, err := e.neighborWindow(ctx)
	if err != nil {
		return nil, err
	}
	if stop < 0 {
		return nil, nil
	}

	simKey := e.keys.Similarities(userID)
	nearest, err := e.store.ZRevRange(ctx, simKey, 0, stop)
	if err != nil {
		return nil, err
	}
	furthest, err := e.store.ZRange(ctx, simKey, 0, stop)
	if err != nil {
		return nil, err
	}

	sets := make([]string, 0, len(nearest)+len(furthest))
	for _, sm := range nearest {
		sets = append(sets, e.keys.Liked(category, sm.Member))
	}
	for _, sm := range furthest {
		sets = append(sets, e.keys.Disliked(category, sm.Member))
	}
	if len(sets) == 0 {
		return nil, nil
	}

	pool, err := e.store.SUnion(ctx, sets...)
	if err != nil {
		return nil, err
	}
	rated, err := e.store.SUnion(ctx,
		e.keys.Liked(category, userID),
		e.keys.Disliked(category, userID),
		e.keys.Hidden(category, userID),
		e.keys.Bookmarked(category, userID),
	)
	if err != nil {
		return nil, err
	}

	exclude := make(map[string]struct{}, len(rated))
	for _, id := range rated {
		exclude[id] = struct{}{}
	}
	out := make([]string, 0, len(pool))
	for _, id := range pool {
		if _, ok := exclude[id]; !ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// neighborWindow 返回取邻居时的结束下标；-1 表示没有任何用户。
func (e *Engine) neighborWindow(ctx context.Context) (int64, error) {
	if k := e.cfg.NearestNeighbors; k > 0 {
		return int64(k) - 1, nil
	}
	population, err := e.store.SCard(ctx, e.keys.Users())
	if err != nil {
		return 0, err
	}
	return population - 1, nil
}

// RecomputeAllRecommendations 对所有已注册类别执行 RecomputeRecommendations。
// 某个类别失败不会中断其他类别，所有错误合并返回。
func (e *Engine) RecomputeAllRecommendations(ctx context.Context, userID string) (int, error) {
	var (
		total int
		errs  []error
	)
	for _, cat := range e.cfg.Categories {
		n, err := e.RecomputeRecommendations(ctx, userID, cat)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		total += n
	}
	return total, errors.Join(errs...)
}

// Refresh 是单个用户的完整批处理任务：先重算邻居，再重算所有类别的推荐。
func (e *Engine) Refresh(ctx context.Context, userID string) error {
	neighbors, err := e.RecomputeNeighbors(ctx, userID)
	if err != nil {
		return err
	}
	recs, err := e.RecomputeAllRecommendations(ctx, userID)
	if err != nil {
		return err
	}
	e.log.Info("user refreshed", "user_id", userID, "neighbors", neighbors, "recommendations", recs)
	return nil
}

// Recommended 读取已物化的推荐结果，分数从高到低；limit <= 0 表示全部。
func (e *Engine) Recommended(ctx context.Context, userID, category string, limit int) ([]core.ScoredMember, error) {
	if err := e.checkCategory(category); err != nil {
		return nil, err
	}
	return e.store.ZRevRange(ctx, e.keys.Recommended(category, userID), 0, stopFor(limit))
}

// stopFor 把数量上限换算成闭区间的结束下标，limit <= 0 时取到末尾。
func stopFor(limit int) int64 {
	if limit <= 0 {
		return -1
	}
	return int64(limit) - 1
}
