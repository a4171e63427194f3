package rater

import (
	"context"

	"github.com/rushteam/recommendable/pkg/keys"
)

// 以下查询均为只读，类别通过参数显式传入。

func (r *Rater) Likes(ctx context.Context, userID, category, itemID string) (bool, error) {
	return r.isMember(ctx, keys.Liked, userID, category, itemID)
}

func (r *Rater) Dislikes(ctx context.Context, userID, category, itemID string) (bool, error) {
	return r.isMember(ctx, keys.Disliked, userID, category, itemID)
}

func (r *Rater) Hides(ctx context.Context, userID, category, itemID string) (bool, error) {
	return r.isMember(ctx, keys.Hidden, userID, category, itemID)
}

func (r *Rater) Bookmarks(ctx context.Context, userID, category, itemID string) (bool, error) {
	return r.isMember(ctx, keys.Bookmarked, userID, category, itemID)
}

// Rated 判断 user 是否 like 或 dislike 过 item。
func (r *Rater) Rated(ctx context.Context, userID, category, itemID string) (bool, error) {
	liked, err := r.Likes(ctx, userID, category, itemID)
	if err != nil || liked {
		return liked, err
	}
	return r.Dislikes(ctx, userID, category, itemID)
}

// RatedAnything 判断 user 在任一类别下是否有 like 或 dislike。
func (r *Rater) RatedAnything(ctx context.Context, userID string) (bool, error) {
	for _, cat := range r.cfg.Categories {
		for _, rel := range []keys.Relation{keys.Liked, keys.Disliked} {
			n, err := r.store.SCard(ctx, r.keys.UserSet(rel, cat, userID))
			if err != nil {
				return false, err
			}
			if n > 0 {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *Rater) Liked(ctx context.Context, userID, category string) ([]string, error) {
	return r.members(ctx, keys.Liked, userID, category)
}

func (r *Rater) Disliked(ctx context.Context, userID, category string) ([]string, error) {
	return r.members(ctx, keys.Disliked, userID, category)
}

func (r *Rater) Hidden(ctx context.Context, userID, category string) ([]string, error) {
	return r.members(ctx, keys.Hidden, userID, category)
}

func (r *Rater) Bookmarked(ctx context.Context, userID, category string) ([]string, error) {
	return r.members(ctx, keys.Bookmarked, userID, category)
}

func (r *Rater) LikedCount(ctx context.Context, userID, category string) (int64, error) {
	return r.count(ctx, keys.Liked, userID, category)
}

func (r *Rater) DislikedCount(ctx context.Context, userID, category string) (int64, error) {
	return r.count(ctx, keys.Disliked, userID, category)
}

func (r *Rater) HiddenCount(ctx context.Context, userID, category string) (int64, error) {
	return r.count(ctx, keys.Hidden, userID, category)
}

func (r *Rater) BookmarkedCount(ctx context.Context, userID, category string) (int64, error) {
	return r.count(ctx, keys.Bookmarked, userID, category)
}

// LikedInCommonWith 返回 user 与 other 都喜欢的物品。
func (r *Rater) LikedInCommonWith(ctx context.Context, userID, otherID, category string) ([]string, error) {
	return r.inCommon(ctx, keys.Liked, userID, otherID, category)
}

func (r *Rater) DislikedInCommonWith(ctx context.Context, userID, otherID, category string) ([]string, error) {
	return r.inCommon(ctx, keys.Disliked, userID, otherID, category)
}

func (r *Rater) HiddenInCommonWith(ctx context.Context, userID, otherID, category string) ([]string, error) {
	return r.inCommon(ctx, keys.Hidden, userID, otherID, category)
}

func (r *Rater) BookmarkedInCommonWith(ctx context.Context, userID, otherID, category string) ([]string, error) {
	return r.inCommon(ctx, keys.Bookmarked, userID, otherID, category)
}

// LikedBy 返回喜欢 item 的用户。
func (r *Rater) LikedBy(ctx context.Context, category, itemID string) ([]string, error) {
	if err := r.checkCategory(category); err != nil {
		return nil, err
	}
	return r.store.SMembers(ctx, r.keys.LikedBy(category, itemID))
}

func (r *Rater) DislikedBy(ctx context.Context, category, itemID string) ([]string, error) {
	if err := r.checkCategory(category); err != nil {
		return nil, err
	}
	return r.store.SMembers(ctx, r.keys.DislikedBy(category, itemID))
}

func (r *Rater) LikedByCount(ctx context.Context, category, itemID string) (int64, error) {
	if err := r.checkCategory(category); err != nil {
		return 0, err
	}
	return r.store.SCard(ctx, r.keys.LikedBy(category, itemID))
}

func (r *Rater) DislikedByCount(ctx context.Context, category, itemID string) (int64, error) {
	if err := r.checkCategory(category); err != nil {
		return 0, err
	}
	return r.store.SCard(ctx, r.keys.DislikedBy(category, itemID))
}

// ItemRated 判断 item 是否被任何人 like 或 dislike 过。
func (r *Rater) ItemRated(ctx context.Context, category, itemID string) (bool, error) {
	likes, err := r.LikedByCount(ctx, category, itemID)
	if err != nil || likes > 0 {
		return likes > 0, err
	}
	dislikes, err := r.DislikedByCount(ctx, category, itemID)
	return dislikes > 0, err
}

func (r *Rater) isMember(ctx context.Context, rel keys.Relation, userID, category, itemID string) (bool, error) {
	if err := r.checkCategory(category); err != nil {
		return false, err
	}
	return r.store.SIsMember(ctx, r.keys.UserSet(rel, category, userID), itemID)
}

func (r *Rater) members(ctx context.Context, rel keys.Relation, userID, category string) ([]string, error) {
	if err := r.checkCategory(category); err != nil {
		return nil, err
	}
	return r.store.SMembers(ctx, r.keys.UserSet(rel, category, userID))
}

func (r *Rater) count(ctx context.Context, rel keys.Relation, userID, category string) (int64, error) {
	if err := r.checkCategory(category); err != nil {
		return 0, err
	}
	return r.store.SCard(ctx, r.keys.UserSet(rel, category, userID))
}

func (r *Rater) inCommon(ctx context.Context, rel keys.Relation, userID, otherID, category string) ([]string, error) {
	if err := r.checkCategory(category); err != nil {
		return nil, err
	}
	return r.store.SInter(ctx,
		r.keys.UserSet(rel, category, userID),
		r.keys.UserSet(rel, category, otherID),
	)
}
