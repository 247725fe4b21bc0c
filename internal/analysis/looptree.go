package analysis

// LoopKind classifies a vertex's role in the loop-nesting forest Havlak's
// algorithm builds, per spec.md §4.5.
type LoopKind int

const (
	NonHeader LoopKind = iota
	Reducible
	SelfLoop
	Irreducible
)

// LoopNode is one vertex's entry in the loop-nesting forest: its header (the
// header of the innermost loop whose body contains it, or itself if no loop
// body contains it — a loop header's own entry names its enclosing loop's
// header), parent header, and nesting depth.
type LoopNode struct {
	block        *Block
	kind         LoopKind
	header       *Block
	parentHeader *Block
	depth        int
}

// LoopForest is the Havlak loop-nesting classification of a CFG.
type LoopForest struct {
	nodes map[*Block]*LoopNode
}

// Kind returns b's loop-nesting classification.
func (f *LoopForest) Kind(b *Block) LoopKind { return f.nodes[b].kind }

// Header returns the header of the innermost loop whose body contains b, or
// b itself if no loop body contains it. A loop header is not part of its own
// body, so an outermost header returns itself and a nested header returns
// its enclosing loop's header.
func (f *LoopForest) Header(b *Block) *Block { return f.nodes[b].header }

// Depth returns b's loop nesting depth (0 outside any loop).
func (f *LoopForest) Depth(b *Block) int { return f.nodes[b].depth }

// unionFind is the path-compressing union-find over DFS pre-order indices
// Havlak's algorithm uses to track which vertices have already been folded
// into an enclosing loop body.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(x, y int) {
	uf.parent[uf.find(x)] = uf.find(y)
}

// BuildLoopForest runs Havlak's algorithm over cfg's DFS pre-order spanning
// tree: it classifies each back-edge-reachable header as reducible,
// self-loop, or irreducible, and nests loop bodies via union-find, per
// spec.md §4.5.
func BuildLoopForest(cfg *CFG) *LoopForest {
	n := len(cfg.DFSPreOrder)
	indexOf := make(map[*Block]int, n)
	for i, b := range cfg.DFSPreOrder {
		indexOf[b] = i
	}

	// isAncestor[i] is the set of vertex i's descendants in the DFS tree
	// (i included) — used to tell a back edge (its target is a DFS ancestor
	// of its source) from a cross/forward edge. In a depth-first pre-order,
	// v is a descendant of u iff v is reachable from u through vertices whose
	// pre-order index is above u's, so markDescendants walks successors but
	// never steps onto a vertex numbered at or below the root.
	isAncestor := make([]map[int]bool, n)
	for i := range isAncestor {
		isAncestor[i] = map[int]bool{i: true}
	}
	var markDescendants func(root *Block, rootIdx int, visited map[*Block]bool)
	markDescendants = func(root *Block, rootIdx int, visited map[*Block]bool) {
		for _, s := range root.Succs {
			if s == nil || visited[s] {
				continue
			}
			si, ok := indexOf[s]
			if !ok || si <= rootIdx {
				continue
			}
			visited[s] = true
			isAncestor[rootIdx][si] = true
			markDescendants(s, rootIdx, visited)
		}
	}
	for i, b := range cfg.DFSPreOrder {
		markDescendants(b, i, map[*Block]bool{b: true})
	}

	// backPreds[w] holds w's back-edge predecessors (edges where w is a DFS
	// ancestor of the source) and non_back_preds[w] holds the rest, per
	// Havlak's edge classification. non_back_preds grows during the main
	// loop below: an unresolved irreducible-region predecessor is re-added
	// to the CURRENT header's own non_back_preds entry so that an enclosing
	// header processed later in this same descending pass can still absorb
	// it, mirroring loop_tree.c's non_back_preds[i] vectors.
	backPreds := make([][]int, n)
	nonBackPreds := make([][]int, n)
	for wIdx, w := range cfg.DFSPreOrder {
		for _, p := range w.Preds {
			pIdx, ok := indexOf[p]
			if !ok {
				continue
			}
			if isAncestor[wIdx][pIdx] {
				backPreds[wIdx] = append(backPreds[wIdx], pIdx)
			} else {
				nonBackPreds[wIdx] = append(nonBackPreds[wIdx], pIdx)
			}
		}
	}

	uf := newUnionFind(n)
	header := make([]int, n)
	kind := make([]LoopKind, n)
	for i := range header {
		header[i] = i
		kind[i] = NonHeader
	}
	loopBody := make([]map[int]bool, n)

	// Process headers from deepest (highest pre-order index, i.e. latest
	// discovered) to shallowest, matching Havlak's reverse-DFS-order pass.
	for wIdx := n - 1; wIdx >= 0; wIdx-- {
		nodePool := map[int]bool{}
		selfLoop := false
		for _, pIdx := range backPreds[wIdx] {
			if pIdx == wIdx {
				selfLoop = true
				continue
			}
			nodePool[uf.find(pIdx)] = true
		}
		if len(nodePool) == 0 && !selfLoop {
			continue
		}
		if selfLoop && len(nodePool) == 0 {
			kind[wIdx] = SelfLoop
			header[wIdx] = wIdx
			continue
		}

		kind[wIdx] = Reducible
		body := map[int]bool{wIdx: true}
		worklist := make([]int, 0, len(nodePool))
		for x := range nodePool {
			if x != wIdx {
				worklist = append(worklist, x)
			}
		}
		seen := map[int]bool{wIdx: true}
		for x := range nodePool {
			seen[x] = true
		}
		for len(worklist) > 0 {
			m := worklist[len(worklist)-1]
			worklist = worklist[:len(worklist)-1]
			body[m] = true
			for _, pIdx := range nonBackPreds[m] {
				root := uf.find(pIdx)
				if !isAncestor[wIdx][root] {
					kind[wIdx] = Irreducible
					nonBackPreds[wIdx] = append(nonBackPreds[wIdx], root)
					continue
				}
				if !seen[root] {
					seen[root] = true
					worklist = append(worklist, root)
				}
			}
		}
		loopBody[wIdx] = body
		for m := range body {
			if m != wIdx {
				header[m] = wIdx
				uf.union(m, wIdx)
			}
		}
	}

	forest := &LoopForest{nodes: make(map[*Block]*LoopNode, n)}
	var depthOf func(i int) int
	depthCache := make(map[int]int)
	depthOf = func(i int) int {
		if d, ok := depthCache[i]; ok {
			return d
		}
		if header[i] == i {
			depthCache[i] = 0
			return 0
		}
		d := depthOf(header[i]) + 1
		depthCache[i] = d
		return d
	}
	for i, b := range cfg.DFSPreOrder {
		hdrBlock := cfg.DFSPreOrder[header[i]]
		var parentHdr *Block
		if header[i] != i {
			parentHdr = hdrBlock
		}
		n := &LoopNode{
			block:        b,
			kind:         kind[i],
			header:       hdrBlock,
			parentHeader: parentHdr,
			depth:        depthOf(i),
		}
		forest.nodes[b] = n
		b.loop = n
	}
	return forest
}
