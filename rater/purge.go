package rater

import (
	"context"
	"errors"
	"fmt"

	"github.com/rushteam/recommendable/core"
	"github.com/rushteam/recommendable/pkg/keys"
)

// PurgeItem 在物品被删除时调用，原子地移除所有引用该物品的数据：
// 所有用户的 liked/disliked/hidden/bookmarked 集合、推荐结果、物品侧反向集合以及热度排行。
//
// 通过物品侧反向集合定位引用方，不做 key 扫描。读取期间反向集合被并发修改时整体重试。
func (r *Rater) PurgeItem(ctx context.Context, category, itemID string) error {
	if err := r.checkCategory(category); err != nil {
		return err
	}

	watch := make([]string, 0, len(keys.Relations)+1)
	for _, rel := range keys.Relations {
		watch = append(watch, r.keys.ItemSet(rel, category, itemID))
	}
	recTo := r.keys.RecommendedTo(category, itemID)
	watch = append(watch, recTo)

	err := r.update(ctx, func(tx core.Tx) error {
		for _, rel := range keys.Relations {
			itemKey := r.keys.ItemSet(rel, category, itemID)
			userIDs, err := tx.SMembers(ctx, itemKey)
			if err != nil {
				return err
			}
			for _, userID := range userIDs {
				tx.SRem(r.keys.UserSet(rel, category, userID), itemID)
			}
			tx.Del(itemKey)
		}

		userIDs, err := tx.SMembers(ctx, recTo)
		if err != nil {
			return err
		}
		for _, userID := range userIDs {
			tx.ZRem(r.keys.Recommended(category, userID), itemID)
		}
		tx.Del(recTo)
		tx.ZRem(r.keys.Scores(category), itemID)
		return nil
	}, watch...)
	if err != nil {
		return fmt.Errorf("purge item %s/%s: %w", category, itemID, err)
	}

	r.log.Info("item purged", "category", category, "item_id", itemID)
	return nil
}

type ratedItem struct {
	category string
	itemID   string
}

// PurgeUser 在用户被删除时调用，原子地移除该用户的全部交互集合、推荐结果、相似度，
// 以及其他用户相似度和物品反向集合中对该用户的引用。
//
// 提交后重算受影响物品的热度分。
func (r *Rater) PurgeUser(ctx context.Context, userID string) error {
	var watch []string
	for _, cat := range r.cfg.Categories {
		for _, rel := range keys.Relations {
			watch = append(watch, r.keys.UserSet(rel, cat, userID))
		}
		watch = append(watch, r.keys.Recommended(cat, userID))
	}
	simKey := r.keys.Similarities(userID)
	neighborKey := r.keys.NeighborOf(userID)
	watch = append(watch, simKey, neighborKey)

	var affected []ratedItem
	err := r.update(ctx, func(tx core.Tx) error {
		affected = affected[:0]

		for _, cat := range r.cfg.Categories {
			for _, rel := range keys.Relations {
				userKey := r.keys.UserSet(rel, cat, userID)
				itemIDs, err := tx.SMembers(ctx, userKey)
				if err != nil {
					return err
				}
				for _, itemID := range itemIDs {
					tx.SRem(r.keys.ItemSet(rel, cat, itemID), userID)
					if rel == keys.Liked || rel == keys.Disliked {
						affected = append(affected, ratedItem{category: cat, itemID: itemID})
					}
				}
				tx.Del(userKey)
			}

			recKey := r.keys.Recommended(cat, userID)
			recs, err := tx.ZRange(ctx, recKey, 0, -1)
			if err != nil {
				return err
			}
			for _, sm := range recs {
				tx.SRem(r.keys.RecommendedTo(cat, sm.Member), userID)
			}
			tx.Del(recKey)
		}

		neighbors, err := tx.ZRange(ctx, simKey, 0, -1)
		if err != nil {
			return err
		}
		for _, sm := range neighbors {
			tx.SRem(r.keys.NeighborOf(sm.Member), userID)
		}

		referrers, err := tx.SMembers(ctx, neighborKey)
		if err != nil {
			return err
		}
		for _, otherID := range referrers {
			tx.ZRem(r.keys.Similarities(otherID), userID)
		}

		tx.Del(simKey, neighborKey)
		tx.SRem(r.keys.Users(), userID)
		return nil
	}, watch...)
	if err != nil {
		return fmt.Errorf("purge user %s: %w", userID, err)
	}

	r.log.Info("user purged", "user_id", userID, "rated_items", len(affected))
	if r.scorer == nil {
		return nil
	}
	var errs []error
	for _, it := range affected {
		if _, err := r.scorer.UpdatePopularity(ctx, it.category, it.itemID); err != nil {
			errs = append(errs, fmt.Errorf("update popularity %s/%s: %w", it.category, it.itemID, err))
		}
	}
	return errors.Join(errs...)
}
