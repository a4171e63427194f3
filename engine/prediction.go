package engine

import (
	"context"
	"math"

	"github.com/rushteam/recommendable/core"
)

// Predict 预测 user 对物品的偏好，0.0 表示中性，正数倾向喜欢，负数倾向不喜欢，幅度不设上限。
//
//	(Σ sim(user, liked_by) - Σ sim(user, disliked_by)) / (|liked_by| + |disliked_by|)
//
// 相似度读取已物化的 similarities，未存储的用户贡献 0。
// 分母为 0 或结果非有限值时返回 0.0。
func (e *Engine) Predict(ctx context.Context, userID, category, itemID string) (float64, error) {
	if err := e.checkCategory(category); err != nil {
		return 0, err
	}

	simKey := e.keys.Similarities(userID)

	likedBy, err := e.store.SMembers(ctx, e.keys.LikedBy(category, itemID))
	if err != nil {
		return 0, err
	}
	dislikedBy, err := e.store.SMembers(ctx, e.keys.DislikedBy(category, itemID))
	if err != nil {
		return 0, err
	}

	var sum float64
	for _, id := range likedBy {
		sim, err := e.storedSimilarity(ctx, simKey, id)
		if err != nil {
			return 0, err
		}
		sum += sim
	}
	for _, id := range dislikedBy {
		sim, err := e.storedSimilarity(ctx, simKey, id)
		if err != nil {
			return 0, err
		}
		sum -= sim
	}

	count := len(likedBy) + len(dislikedBy)
	if count == 0 {
		return 0, nil
	}
	prediction := sum / float64(count)
	if math.IsNaN(prediction) || math.IsInf(prediction, 0) {
		return 0, nil
	}
	return prediction, nil
}

func (e *Engine) storedSimilarity(ctx context.Context, simKey, otherID string) (float64, error) {
	sim, err := e.store.ZScore(ctx, simKey, otherID)
	if core.IsStoreNotFound(err) {
		return 0, nil
	}
	return sim, err
}
