package engine

import (
	"cmp"
	"slices"

	"chatsync/internal/models"
)

func byTimestamp(a, b models.Message) int {
	return cmp.Compare(a.Timestamp, b.Timestamp)
}

// Merge 把 incoming 并入已按时间升序排列的 existing，返回新列表和实际追加的条数。
//
// incoming 先按时间稳定排序再整体接到尾部；id 已出现过的消息被跳过。若追加的第一条
// 比原尾部更早（例如历史分页），结果会整体重新稳定排序，保证升序不被破坏。
// 两个入参都不会被修改。
func Merge(existing, incoming []models.Message) ([]models.Message, int) {
	if len(incoming) == 0 {
		return existing, 0
	}

	sorted := slices.Clone(incoming)
	slices.SortStableFunc(sorted, byTimestamp)

	seen := make(map[models.ID]struct{}, len(existing)+len(sorted))
	for _, m := range existing {
		seen[m.ID] = struct{}{}
	}

	out := make([]models.Message, len(existing), len(existing)+len(sorted))
	copy(out, existing)
	for _, m := range sorted {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}

	added := len(out) - len(existing)
	if added == 0 {
		return existing, 0
	}
	if n := len(existing); n > 0 && out[n].Timestamp < out[n-1].Timestamp {
		slices.SortStableFunc(out, byTimestamp)
	}
	return out, added
}
