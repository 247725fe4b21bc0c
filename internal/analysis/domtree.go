package analysis

// DomNode is one dominator (or post-dominator) tree vertex: an immediate
// dominator pointer and a tree depth, per spec.md §4.4.
type DomNode struct {
	block   *Block
	idom    *DomNode
	idomBlk *Block
	depth   int
}

// DomTree is a dominator or post-dominator tree over a CFG's blocks.
type DomTree struct {
	nodes map[*Block]*DomNode
	root  *Block
}

const noIdom = -1

// BuildDomTree computes the dominator tree of cfg using forward edges
// rooted at the source, via Cooper–Harvey–Kennedy iterative idominator
// computation over the forward reverse-post-order (spec.md §4.4).
func BuildDomTree(cfg *CFG) *DomTree {
	order := reversed(cfg.FwdPostOrder)
	t := buildDomTreeGeneric(order, cfg.Source,
		func(b *Block) []*Block { return b.Preds },
		func(b *Block) int { return b.fwdPostIdx },
	)
	for b, n := range t.nodes {
		b.idom = n
	}
	return t
}

// BuildPostDomTree computes the post-dominator tree of cfg using reversed
// edges rooted at the sink, over the backward reverse-post-order.
func BuildPostDomTree(cfg *CFG) *DomTree {
	order := reversed(cfg.BwdPostOrder)
	t := buildDomTreeGeneric(order, cfg.Sink,
		func(b *Block) []*Block { return b.Succs },
		func(b *Block) int { return b.bwdPostIdx },
	)
	for b, n := range t.nodes {
		b.postIdom = n
	}
	return t
}

func reversed(bs []*Block) []*Block {
	out := make([]*Block, len(bs))
	for i, b := range bs {
		out[len(bs)-1-i] = b
	}
	return out
}

// buildDomTreeGeneric is the Cooper-Harvey-Kennedy fixed-point iteration:
// process vertices in reverse post-order, taking the meet (nearest common
// ancestor in the partially-built tree) of already-processed predecessors,
// until no idom changes across a full pass.
func buildDomTreeGeneric(rpo []*Block, root *Block, preds func(*Block) []*Block, postIdx func(*Block) int) *DomTree {
	idomIdx := make(map[*Block]int, len(rpo))
	indexOf := make(map[*Block]int, len(rpo))
	for i, b := range rpo {
		indexOf[b] = i
		idomIdx[b] = noIdom
	}
	idomIdx[root] = indexOf[root]

	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == root {
				continue
			}
			newIdom := noIdom
			for _, p := range preds(b) {
				pi, ok := indexOf[p]
				if !ok || idomIdx[p] == noIdom {
					continue
				}
				if newIdom == noIdom {
					newIdom = pi
					continue
				}
				newIdom = intersect(rpo, idomIdx, indexOf, newIdom, pi)
			}
			if newIdom != idomIdx[b] {
				idomIdx[b] = newIdom
				changed = true
			}
		}
	}

	t := &DomTree{nodes: make(map[*Block]*DomNode, len(rpo)), root: root}
	for _, b := range rpo {
		t.nodes[b] = &DomNode{block: b}
	}
	rootNode := t.nodes[root]
	rootNode.idom = rootNode
	rootNode.idomBlk = root
	rootNode.depth = 0
	// Depths must be assigned in increasing reverse-post-order distance
	// from the root, so process in rpo order (a vertex's idom always has a
	// smaller rpo index).
	for _, b := range rpo {
		if b == root {
			continue
		}
		idx := idomIdx[b]
		if idx == noIdom {
			continue // unreachable in this direction
		}
		idomBlock := rpo[idx]
		n := t.nodes[b]
		n.idomBlk = idomBlock
		n.idom = t.nodes[idomBlock]
	}
	for _, b := range rpo {
		if b == root {
			continue
		}
		t.nodes[b].depth = depthOf(t, b)
	}
	return t
}

func depthOf(t *DomTree, b *Block) int {
	n := t.nodes[b]
	if n.idomBlk == nil || n.idomBlk == b {
		return 0
	}
	if n.idom.depth != 0 || n.idomBlk == t.root {
		return n.idom.depth + 1
	}
	return depthOf(t, n.idomBlk) + 1
}

// intersect finds the nearest common ancestor of two already-processed rpo
// indices by walking up whichever chain has the larger index.
func intersect(rpo []*Block, idomIdx, indexOf map[*Block]int, a, b int) int {
	for a != b {
		for a > b {
			a = idomIdx[rpo[a]]
		}
		for b > a {
			b = idomIdx[rpo[b]]
		}
	}
	return a
}

// Idom returns b's immediate dominator block, or nil for the root.
func (t *DomTree) Idom(b *Block) *Block {
	n, ok := t.nodes[b]
	if !ok || n.idomBlk == b {
		return nil
	}
	return n.idomBlk
}

// Depth returns b's depth in the tree (root is 0).
func (t *DomTree) Depth(b *Block) int {
	if n, ok := t.nodes[b]; ok {
		return n.depth
	}
	return 0
}

// Dominates reports whether a dominates b: walking b's idom chain reaches a.
func (t *DomTree) Dominates(a, b *Block) bool {
	for cur := b; cur != nil; {
		if cur == a {
			return true
		}
		n, ok := t.nodes[cur]
		if !ok || n.idomBlk == cur {
			return cur == a
		}
		cur = n.idomBlk
	}
	return false
}

// Deepest returns whichever of a, b has greater tree depth — the "deepest
// dom block" query the scheduler uses to combine two operand blocks
// (spec.md §4.4).
func (t *DomTree) Deepest(a, b *Block) *Block {
	if t.Depth(a) >= t.Depth(b) {
		return a
	}
	return b
}
