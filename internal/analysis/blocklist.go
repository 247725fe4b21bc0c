package analysis

import "sort"

// BlockList is an interned, sorted, deduplicated set of blocks — the late
// schedule's "set of blocks a node is used from" representation, per
// spec.md §4.8. Equality is by identity of the interned pointer, so two
// schedules that compute the same set of use blocks for two different
// nodes share one BlockList.
type BlockList struct {
	blocks []*Block
}

// Blocks returns the sorted, deduplicated member blocks. Callers must not
// mutate the returned slice.
func (bl *BlockList) Blocks() []*Block { return bl.blocks }

func (bl *BlockList) Len() int { return len(bl.blocks) }

// BlockListPool interns BlockLists for the lifetime of one schedule
// computation, keyed by (length, block identities) so structurally equal
// sets collapse to one allocation.
type BlockListPool struct {
	byLen map[int][]*BlockList
}

// NewBlockListPool returns an empty pool, to be owned by one schedule run.
func NewBlockListPool() *BlockListPool {
	return &BlockListPool{byLen: make(map[int][]*BlockList)}
}

// Intern returns the canonical BlockList for the given (possibly unsorted,
// possibly duplicated) set of blocks.
func (p *BlockListPool) Intern(blocks []*Block) *BlockList {
	sorted := dedupSortByIdx(blocks)
	for _, cand := range p.byLen[len(sorted)] {
		if blockListEqual(cand.blocks, sorted) {
			return cand
		}
	}
	bl := &BlockList{blocks: sorted}
	p.byLen[len(sorted)] = append(p.byLen[len(sorted)], bl)
	return bl
}

// Union returns the canonical BlockList for the union of a and b's members.
func (p *BlockListPool) Union(a, b *BlockList) *BlockList {
	merged := make([]*Block, 0, len(a.blocks)+len(b.blocks))
	merged = append(merged, a.blocks...)
	merged = append(merged, b.blocks...)
	return p.Intern(merged)
}

func dedupSortByIdx(blocks []*Block) []*Block {
	seen := make(map[*Block]bool, len(blocks))
	out := make([]*Block, 0, len(blocks))
	for _, b := range blocks {
		if b == nil || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].dfsPreIdx < out[j].dfsPreIdx })
	return out
}

func blockListEqual(a, b []*Block) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
