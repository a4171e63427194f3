package engine

import (
	"context"
	"math"

	"github.com/rushteam/recommendable/core"
)

// wilsonZ 对应 95% 置信度。
const wilsonZ = 1.96

// WilsonLowerBound 计算 like 比例的 Wilson 置信区间下界。
// 没有任何评分时返回 0；根号下为负（浮点误差）时返回 0；结果截断到 [0, 1]。
func WilsonLowerBound(likes, dislikes int64) float64 {
	n := float64(likes + dislikes)
	if n <= 0 {
		return 0
	}
	phat := float64(likes) / n
	z2 := wilsonZ * wilsonZ

	radicand := (phat*(1-phat) + z2/(4*n)) / n
	if radicand < 0 {
		return 0
	}
	score := (phat + z2/(2*n) - wilsonZ*math.Sqrt(radicand)) / (1 + z2/n)
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 {
		return 0
	}
	return math.Min(score, 1)
}

// UpdatePopularity 根据物品当前的 liked_by/disliked_by 人数重算热度分并写入类别排行。
// 没有任何评分时从排行中移除该物品并返回 0。
//
// 计数在事务内读取并 watch 两个反向集合，并发的交互提交后会整体重试，
// 最后写入的分数总是对应最新的计数。
func (e *Engine) UpdatePopularity(ctx context.Context, category, itemID string) (float64, error) {
	if err := e.checkCategory(category); err != nil {
		return 0, err
	}

	likedBy := e.keys.LikedBy(category, itemID)
	dislikedBy := e.keys.DislikedBy(category, itemID)
	scoreKey := e.keys.Scores(category)

	var score float64
	err := e.update(ctx, func(tx core.Tx) error {
		score = 0
		likes, err := tx.SCard(ctx, likedBy)
		if err != nil {
			return err
		}
		dislikes, err := tx.SCard(ctx, dislikedBy)
		if err != nil {
			return err
		}
		if likes+dislikes == 0 {
			tx.ZRem(scoreKey, itemID)
			return nil
		}
		score = WilsonLowerBound(likes, dislikes)
		tx.ZAdd(scoreKey, core.ScoredMember{Member: itemID, Score: score})
		return nil
	}, likedBy, dislikedBy)
	if err != nil {
		return 0, err
	}
	return score, nil
}

// Top 返回类别内热度最高的 count 个物品（全局排行，非个性化）；count <= 0 表示全部。
func (e *Engine) Top(ctx context.Context, category string, count int) ([]core.ScoredMember, error) {
	if err := e.checkCategory(category); err != nil {
		return nil, err
	}
	return e.store.ZRevRange(ctx, e.keys.Scores(category), 0, stopFor(count))
}
