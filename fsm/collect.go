package fsm

import (
	"roundbft/types"
	"sort"
)

// CollectSameUntilThreshold 返回内容相同且数量达到threshold的payload
// 输入顺序不影响结果：票数最多的内容胜出，票数相同时取hash较小的，返回该内容下sender最小的payload
func CollectSameUntilThreshold(payloads []types.Payload, threshold int) (types.Payload, bool) {
	if threshold < 1 || len(payloads) < threshold {
		return nil, false
	}

	counts := make(map[string]int)
	first := make(map[string]types.Payload)
	for _, p := range payloads {
		h, err := types.ContentHash(p)
		if err != nil {
			continue
		}
		counts[h]++
		if cur, ok := first[h]; !ok || p.Sender().String() < cur.Sender().String() {
			first[h] = p
		}
	}

	hashes := make([]string, 0, len(counts))
	for h := range counts {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool {
		if counts[hashes[i]] != counts[hashes[j]] {
			return counts[hashes[i]] > counts[hashes[j]]
		}
		return hashes[i] < hashes[j]
	})

	if len(hashes) == 0 || counts[hashes[0]] < threshold {
		return nil, false
	}
	return first[hashes[0]], true
}
