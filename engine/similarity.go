package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/rushteam/recommendable/core"
)

// Similarity 计算 user 对 other 的相似度，取值 [-1.0, 1.0]。
//
// 对每个已注册类别：
//
//	agreements    = |liked_a ∩ liked_b| + |disliked_a ∩ disliked_b|
//	disagreements = |liked_a ∩ disliked_b| + |disliked_a ∩ liked_b|
//
// 结果 = Σ(agreements - disagreements) / Σ(|liked_a| + |disliked_a|)。
// 分母只取 user 一侧，因此相似度是非对称的。user 没有任何评分时返回 core.ErrUndefinedSimilarity，
// 调用方必须跳过这一对，不得写入。
func (e *Engine) Similarity(ctx context.Context, userID, otherID string) (float64, error) {
	var numerator, denominator int64

	for _, cat := range e.cfg.Categories {
		liked := e.keys.Liked(cat, userID)
		disliked := e.keys.Disliked(cat, userID)
		otherLiked := e.keys.Liked(cat, otherID)
		otherDisliked := e.keys.Disliked(cat, otherID)

		agree, err := e.interCard(ctx, liked, otherLiked)
		if err != nil {
			return 0, err
		}
		numerator += agree
		if agree, err = e.interCard(ctx, disliked, otherDisliked); err != nil {
			return 0, err
		}
		numerator += agree

		disagree, err := e.interCard(ctx, liked, otherDisliked)
		if err != nil {
			return 0, err
		}
		numerator -= disagree
		if disagree, err = e.interCard(ctx, disliked, otherLiked); err != nil {
			return 0, err
		}
		numerator -= disagree

		likedCount, err := e.store.SCard(ctx, liked)
		if err != nil {
			return 0, err
		}
		dislikedCount, err := e.store.SCard(ctx, disliked)
		if err != nil {
			return 0, err
		}
		denominator += likedCount + dislikedCount
	}

	if denominator == 0 {
		return 0, core.WrapDomainError(core.ErrUndefinedSimilarity, fmt.Errorf("user %q has no ratings", userID))
	}
	return float64(numerator) / float64(denominator), nil
}

func (e *Engine) interCard(ctx context.Context, a, b string) (int64, error) {
	members, err := e.store.SInter(ctx, a, b)
	if err != nil {
		return 0, err
	}
	return int64(len(members)), nil
}

// RecomputeNeighbors 全量重算 user 的相似用户集合，返回写入的邻居数。
//
// 候选用户仅限与 user 至少评过一个相同物品的用户（通过物品的 liked_by/disliked_by 反向集合得到），
// 不含 user 自己。写入采用先清空再写入的全量覆盖，配置了 K/F 时只保留相似度最高的 K 个
// 和最低的 F 个，丢弃中间部分。同时维护被写入用户的 neighbor_of 反向索引，供 PurgeUser 使用。
func (e *Engine) RecomputeNeighbors(ctx context.Context, userID string) (int, error) {
	candidates, err := e.neighborCandidates(ctx, userID)
	if err != nil {
		return 0, err
	}

	scores := make([]core.ScoredMember, 0, len(candidates))
	for _, otherID := range candidates {
		sim, err := e.Similarity(ctx, userID, otherID)
		if core.IsUndefined(err) {
			e.log.Debug("skip undefined similarity", "user_id", userID, "other_id", otherID)
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("similarity %s -> %s: %w", userID, otherID, err)
		}
		scores = append(scores, core.ScoredMember{Member: otherID, Score: sim})
	}

	sortScored(scores)

	simKey := e.keys.Similarities(userID)
	watch := append([]string{simKey}, e.ratingKeys(userID)...)
	for _, sm := range scores {
		watch = append(watch, e.ratingKeys(sm.Member)...)
	}

	var kept []core.ScoredMember
	err = e.update(ctx, func(tx core.Tx) error {
		// 计算期间被清除的用户（包括 user 自己）不再写回
		live, err := e.liveNeighbors(ctx, tx, userID, scores)
		if err != nil {
			return err
		}
		kept = trimNeighbors(live, e.cfg.NearestNeighbors, e.cfg.FurthestNeighbors)

		prev, err := tx.ZRange(ctx, simKey, 0, -1)
		if err != nil {
			return err
		}
		keep := make(map[string]struct{}, len(kept))
		for _, sm := range kept {
			keep[sm.Member] = struct{}{}
		}
		for _, sm := range prev {
			if _, ok := keep[sm.Member]; !ok {
				tx.SRem(e.keys.NeighborOf(sm.Member), userID)
			}
		}

		tx.Del(simKey)
		tx.ZAdd(simKey, kept...)
		for _, sm := range kept {
			tx.SAdd(e.keys.NeighborOf(sm.Member), userID)
		}
		return nil
	}, watch...)
	if err != nil {
		return 0, fmt.Errorf("write similarities for %s: %w", userID, err)
	}

	e.log.Debug("neighbors recomputed", "user_id", userID, "candidates", len(candidates), "stored", len(kept))
	return len(kept), nil
}

// ratingKeys 返回用户在所有类别下的 liked/disliked 集合。
func (e *Engine) ratingKeys(userID string) []string {
	out := make([]string, 0, 2*len(e.cfg.Categories))
	for _, cat := range e.cfg.Categories {
		out = append(out, e.keys.Liked(cat, userID), e.keys.Disliked(cat, userID))
	}
	return out
}

// hasRatings 在事务内判断用户是否仍有任何 like/dislike。
func (e *Engine) hasRatings(ctx context.Context, tx core.Tx, userID string) (bool, error) {
	for _, key := range e.ratingKeys(userID) {
		n, err := tx.SCard(ctx, key)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

// liveNeighbors 过滤掉已没有任何评分的邻居；user 自己没有评分时返回空。
func (e *Engine) liveNeighbors(ctx context.Context, tx core.Tx, userID string, scores []core.ScoredMember) ([]core.ScoredMember, error) {
	ok, err := e.hasRatings(ctx, tx, userID)
	if err != nil || !ok {
		return nil, err
	}
	out := make([]core.ScoredMember, 0, len(scores))
	for _, sm := range scores {
		ok, err := e.hasRatings(ctx, tx, sm.Member)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, sm)
		}
	}
	return out, nil
}

// neighborCandidates 返回与 user 至少有一个共同评分物品的其他用户（有序）。
func (e *Engine) neighborCandidates(ctx context.Context, userID string) ([]string, error) {
	relevant := make(map[string]struct{})

	for _, cat := range e.cfg.Categories {
		itemIDs, err := e.store.SUnion(ctx, e.keys.Liked(cat, userID), e.keys.Disliked(cat, userID))
		if err != nil {
			return nil, err
		}
		if len(itemIDs) == 0 {
			continue
		}

		sets := make([]string, 0, 2*len(itemIDs))
		for _, itemID := range itemIDs {
			sets = append(sets, e.keys.LikedBy(cat, itemID), e.keys.DislikedBy(cat, itemID))
		}
		userIDs, err := e.store.SUnion(ctx, sets...)
		if err != nil {
			return nil, err
		}
		for _, id := range userIDs {
			relevant[id] = struct{}{}
		}
	}
	delete(relevant, userID)

	out := make([]string, 0, len(relevant))
	for id := range relevant {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// sortScored 按 (score, member) 升序排列，与有序集合的原生顺序一致。
func sortScored(scores []core.ScoredMember) {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score < scores[j].Score
		}
		return scores[i].Member < scores[j].Member
	})
}

// trimNeighbors 在升序结果上保留最低的 furthest 个和最高的 nearest 个。
// nearest <= 0 表示不限，全部保留。
func trimNeighbors(sorted []core.ScoredMember, nearest, furthest int) []core.ScoredMember {
	n := len(sorted)
	if nearest <= 0 || nearest+furthest >= n {
		return sorted
	}
	out := make([]core.ScoredMember, 0, nearest+furthest)
	out = append(out, sorted[:furthest]...)
	out = append(out, sorted[n-nearest:]...)
	return out
}
