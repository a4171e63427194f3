// Package keys 是存储 key 命名规则的唯一出处，其他组件只能通过 Mapper 获取 key。
//
// 布局（ns 为命名空间，为空时省略）：
//
//	ns:users                               所有评过分的用户
//	ns:users:{user}:liked_{category}       用户喜欢的物品（set）
//	ns:users:{user}:disliked_{category}    用户不喜欢的物品（set）
//	ns:users:{user}:hidden_{category}      用户隐藏的物品（set）
//	ns:users:{user}:bookmarked_{category}  用户收藏的物品（set）
//	ns:users:{user}:recommended_{category} 推荐结果（zset）
//	ns:users:{user}:similarities           相似用户（zset）
//	ns:users:{user}:neighbor_of            反向索引：相似度集合里包含该用户的用户（set）
//	ns:{category}:{item}:liked_by          喜欢该物品的用户（set）
//	ns:{category}:{item}:disliked_by       不喜欢该物品的用户（set）
//	ns:{category}:{item}:hidden_by         隐藏该物品的用户（set）
//	ns:{category}:{item}:bookmarked_by     收藏该物品的用户（set）
//	ns:{category}:{item}:recommended_to    推荐结果里包含该物品的用户（set）
//	ns:{category}:scores                   物品热度（zset）
//	ns:jobs:{queue}                        批处理任务队列（list）
//	ns:jobs:{queue}:pending                队列中尚未取出的用户，用于去重（set）
//
// 每一段都会转义 '%' 和 ':'，因此 ID 中出现分隔符也不会与其他 key 冲突。
package keys

import "strings"

// Relation 是用户对物品的一种交互关系。
type Relation string

const (
	Liked       Relation = "liked"
	Disliked    Relation = "disliked"
	Hidden      Relation = "hidden"
	Bookmarked  Relation = "bookmarked"
	Recommended Relation = "recommended"
)

// Relations 是所有可被 purge 的交互集合关系（不含 Recommended）。
var Relations = []Relation{Liked, Disliked, Hidden, Bookmarked}

// reverse 是 Relation 对应的物品侧反向集合后缀。
var reverse = map[Relation]string{
	Liked:       "liked_by",
	Disliked:    "disliked_by",
	Hidden:      "hidden_by",
	Bookmarked:  "bookmarked_by",
	Recommended: "recommended_to",
}

const (
	userScope = "users"
	jobScope  = "jobs"
)

var escaper = strings.NewReplacer("%", "%25", ":", "%3A")

// Mapper 根据命名空间派生 key，纯函数、无状态。
type Mapper struct {
	namespace string
}

func New(namespace string) Mapper {
	return Mapper{namespace: namespace}
}

func (m Mapper) join(parts ...string) string {
	out := make([]string, 0, len(parts)+1)
	if m.namespace != "" {
		out = append(out, escaper.Replace(m.namespace))
	}
	for _, p := range parts {
		out = append(out, escaper.Replace(p))
	}
	return strings.Join(out, ":")
}

// Users 是所有评过分的用户集合。
func (m Mapper) Users() string {
	return m.join(userScope)
}

// UserSet 返回用户在某类别下某种关系的集合 key。
func (m Mapper) UserSet(rel Relation, category, userID string) string {
	return m.join(userScope, userID, string(rel)+"_"+category)
}

func (m Mapper) Liked(category, userID string) string {
	return m.UserSet(Liked, category, userID)
}

func (m Mapper) Disliked(category, userID string) string {
	return m.UserSet(Disliked, category, userID)
}

func (m Mapper) Hidden(category, userID string) string {
	return m.UserSet(Hidden, category, userID)
}

func (m Mapper) Bookmarked(category, userID string) string {
	return m.UserSet(Bookmarked, category, userID)
}

func (m Mapper) Recommended(category, userID string) string {
	return m.UserSet(Recommended, category, userID)
}

func (m Mapper) Similarities(userID string) string {
	return m.join(userScope, userID, "similarities")
}

func (m Mapper) NeighborOf(userID string) string {
	return m.join(userScope, userID, "neighbor_of")
}

// ItemSet 返回物品侧与 rel 对应的反向集合 key。
func (m Mapper) ItemSet(rel Relation, category, itemID string) string {
	return m.join(category, itemID, reverse[rel])
}

func (m Mapper) LikedBy(category, itemID string) string {
	return m.ItemSet(Liked, category, itemID)
}

func (m Mapper) DislikedBy(category, itemID string) string {
	return m.ItemSet(Disliked, category, itemID)
}

func (m Mapper) HiddenBy(category, itemID string) string {
	return m.ItemSet(Hidden, category, itemID)
}

func (m Mapper) BookmarkedBy(category, itemID string) string {
	return m.ItemSet(Bookmarked, category, itemID)
}

func (m Mapper) RecommendedTo(category, itemID string) string {
	return m.ItemSet(Recommended, category, itemID)
}

func (m Mapper) Scores(category string) string {
	return m.join(category, "scores")
}

// Queue 是批处理任务队列的 list key。
func (m Mapper) Queue(name string) string {
	return m.join(jobScope, name)
}

// QueuePending 是队列去重集合的 key。
func (m Mapper) QueuePending(name string) string {
	return m.join(jobScope, name, "pending")
}
