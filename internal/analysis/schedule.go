package analysis

import "github.com/madmann91/fir/internal/ir"

// Schedule assigns every non-invariant, non-type, non-nominal node in a
// function's scope to a non-empty SET of CFG blocks, per spec.md §4.7 — the
// design heart of the analysis package. It runs Click's two-phase global
// code motion: early(n) finds the shallowest block dominating every
// operand's definition; late(n) starts from the blocks of every use (plus,
// for loads, every aliasing store), prunes that set with a live-range
// analysis so no placement is ever partially dead, and hoists speculatable
// nodes out of loops they don't need to run inside.
type Schedule struct {
	cfg  *CFG
	dom  *DomTree
	loop *LoopForest
	pool *BlockListPool

	bodyBlock   map[*ir.Node]*Block     // control node -> block it terminates
	storesByMem map[*ir.Node][]*ir.Node // mem token -> stores consuming it
	loadsByMem  map[*ir.Node][]*ir.Node // mem token -> loads consuming it
	early       map[*ir.Node]*Block
	final       map[*ir.Node]*BlockList

	visiting map[*ir.Node]bool // cycle guard while computing late()
}

// BuildSchedule computes the global code schedule for cfg's function.
func BuildSchedule(cfg *CFG, dom *DomTree, loop *LoopForest) *Schedule {
	s := &Schedule{
		cfg:         cfg,
		dom:         dom,
		loop:        loop,
		pool:        NewBlockListPool(),
		bodyBlock:   make(map[*ir.Node]*Block),
		storesByMem: make(map[*ir.Node][]*ir.Node),
		loadsByMem:  make(map[*ir.Node][]*ir.Node),
		early:       make(map[*ir.Node]*Block),
		final:       make(map[*ir.Node]*BlockList),
		visiting:    make(map[*ir.Node]bool),
	}

	for _, b := range cfg.Blocks {
		if b.Fn != nil && b.Fn.Body() != nil {
			s.bodyBlock[b.Fn.Body()] = b
		}
	}

	// Walk every reachable node once to index memory aliasing and to seed
	// the early-schedule computation for the whole scope, not merely the
	// nodes a control node happens to reach directly.
	visited := make(map[*ir.Node]bool)
	var index func(n *ir.Node)
	index = func(n *ir.Node) {
		if n == nil || visited[n] {
			return
		}
		visited[n] = true
		switch n.Tag() {
		case ir.TagStore:
			mem := n.Operand(0)
			s.storesByMem[mem] = append(s.storesByMem[mem], n)
		case ir.TagLoad:
			mem := n.Operand(0)
			s.loadsByMem[mem] = append(s.loadsByMem[mem], n)
		}
		for _, op := range n.Operands() {
			index(op)
		}
	}
	var scheduled []*ir.Node
	for _, b := range cfg.Blocks {
		if b.Fn == nil || b.Fn.Body() == nil {
			continue
		}
		index(b.Fn.Body())
	}
	for n := range visited {
		if n.InSchedule() {
			scheduled = append(scheduled, n)
		}
	}

	for _, n := range scheduled {
		s.earlyOf(n)
	}
	for _, n := range scheduled {
		s.lateOf(n)
	}
	return s
}

// Blocks returns the set of blocks n was finally scheduled into. Returns
// nil if n is not a scheduled node (invariant, a type, or a nominal).
func (s *Schedule) Blocks(n *ir.Node) []*Block {
	if bl := s.final[n]; bl != nil {
		return bl.Blocks()
	}
	return nil
}

// BlockOf returns a single representative placement for n — the first block
// of its final placement set, or its early-schedule block when it has no
// final set — for callers that only need one location (e.g. a quick
// diagnostic dump). Prefer Blocks for anything that cares about every
// placement a node may have.
func (s *Schedule) BlockOf(n *ir.Node) *Block {
	if bl := s.final[n]; bl != nil && len(bl.blocks) > 0 {
		return bl.blocks[0]
	}
	return s.early[n]
}

// earlyOf computes n's early schedule bottom-up: the deepest block (by
// dominator-tree depth) among its operands' early blocks, defaulting to the
// CFG source. param(F) is pinned to F's own block; stores are additionally
// sunk no earlier than the deepest early block of any load sibling reading
// the same memory token, per spec.md §4.7.
func (s *Schedule) earlyOf(n *ir.Node) *Block {
	if b, ok := s.early[n]; ok {
		return b
	}
	if !n.InSchedule() {
		return s.cfg.Source
	}
	if b, ok := s.bodyBlock[n]; ok {
		s.early[n] = b
		return b
	}
	// Provisional pin breaks any accidental revisit; the IR's data edges
	// form a DAG once control nodes are pinned above, so this never
	// actually participates in the final answer.
	s.early[n] = s.cfg.Source

	best := s.cfg.Source
	for _, op := range n.Operands() {
		if op == nil {
			continue
		}
		best = s.dom.Deepest(best, s.earlyOf(op))
	}
	if n.Tag() == ir.TagParam {
		fn := n.Operand(0)
		if blk, ok := s.bodyBlock[fn.Body()]; ok {
			best = blk
		} else if blk, ok := s.byFnBlock(fn); ok {
			best = blk
		}
	}
	if n.Tag() == ir.TagStore {
		mem := n.Operand(0)
		for _, ld := range s.loadsByMem[mem] {
			if ld == n {
				continue
			}
			best = s.dom.Deepest(best, s.earlyOf(ld))
		}
	}
	s.early[n] = best
	return best
}

func (s *Schedule) byFnBlock(fn *ir.Node) (*Block, bool) {
	b := s.cfg.BlockOf(fn)
	return b, b != nil
}

// lateOf computes n's late schedule set, memoized. Control-flow nodes
// (type noret) are pinned to the single block they terminate and are never
// duplicated or moved.
func (s *Schedule) lateOf(n *ir.Node) *BlockList {
	if bl, ok := s.final[n]; ok {
		return bl
	}
	if b, ok := s.bodyBlock[n]; ok {
		bl := s.pool.Intern([]*Block{b})
		s.final[n] = bl
		return bl
	}
	if s.visiting[n] {
		// Defensive only: the data-flow graph is acyclic once control
		// nodes are pinned, so this should be unreachable.
		return s.pool.Intern([]*Block{s.earlyOf(n)})
	}
	s.visiting[n] = true
	defer delete(s.visiting, n)

	var useBlocks []*Block
	for u := n.Uses(); u != nil; u = u.Next {
		user := u.User
		if user.IsNominal() {
			continue
		}
		if !user.InSchedule() {
			continue
		}
		useBlocks = append(useBlocks, s.lateOf(user).Blocks()...)
	}
	if n.Tag() == ir.TagLoad {
		mem := n.Operand(0)
		for _, st := range s.storesByMem[mem] {
			useBlocks = append(useBlocks, s.lateOf(st).Blocks()...)
		}
	}

	earlyBlock := s.earlyOf(n)
	set := s.pool.Intern(useBlocks)
	if set.Len() == 0 {
		set = s.pool.Intern([]*Block{earlyBlock})
	}

	pruned := s.pruneByLiveness(earlyBlock, set.Blocks())
	if n.IsSpeculatable() {
		pruned = s.hoistOutOfLoops(pruned, earlyBlock)
	}
	pruned = s.removeDominated(pruned)

	bl := s.pool.Intern(pruned)
	s.final[n] = bl
	return bl
}

// pruneByLiveness groups use blocks under a common fully-live dominator:
// run liveness from def to every use block, then replace any two-or-more
// uses dominated by the same fully-live block with that block itself,
// avoiding ever placing n somewhere it would be only partially live.
func (s *Schedule) pruneByLiveness(def *Block, uses []*Block) []*Block {
	if len(uses) < 2 {
		return uses
	}
	lv := NewLiveness(s.dom)
	for _, u := range uses {
		lv.MarkBlocks(def, u)
	}
	lv.Finalize()

	var fullyLive []*Block
	for b := range lv.fullyLive {
		fullyLive = append(fullyLive, b)
	}
	// Process shallower (closer to def) candidates first so grouping
	// nests outward consistently.
	sortByDepth(fullyLive, s.dom)

	cur := append([]*Block(nil), uses...)
	for _, L := range fullyLive {
		var dominated []*Block
		var rest []*Block
		for _, b := range cur {
			if s.dom.Dominates(L, b) {
				dominated = append(dominated, b)
			} else {
				rest = append(rest, b)
			}
		}
		if len(dominated) >= 2 {
			cur = append(rest, L)
		}
	}
	return cur
}

func sortByDepth(bs []*Block, dom *DomTree) {
	for i := 1; i < len(bs); i++ {
		for j := i; j > 0 && dom.Depth(bs[j-1]) > dom.Depth(bs[j]); j-- {
			bs[j-1], bs[j] = bs[j], bs[j-1]
		}
	}
}

// hoistOutOfLoops walks each placement up the dominator chain towards def,
// preferring the shallowest ancestor whose loop depth is no greater than
// the current block's, so a speculatable node never stays pinned inside a
// loop it could legally run outside of.
func (s *Schedule) hoistOutOfLoops(blocks []*Block, def *Block) []*Block {
	out := make([]*Block, len(blocks))
	for i, b := range blocks {
		cur := b
		for cur != def {
			parent := s.dom.Idom(cur)
			if parent == nil || !s.dom.Dominates(def, parent) {
				break
			}
			if s.loop.Depth(parent) > s.loop.Depth(cur) {
				break
			}
			cur = parent
		}
		out[i] = cur
	}
	return out
}

// removeDominated drops any block in the set that is strictly dominated by
// another member, since that placement is redundant once the dominating
// one is already in the set.
func (s *Schedule) removeDominated(blocks []*Block) []*Block {
	var out []*Block
	for i, b := range blocks {
		redundant := false
		for j, other := range blocks {
			if i == j || other == b {
				continue
			}
			if s.dom.Dominates(other, b) {
				redundant = true
				break
			}
		}
		if !redundant {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return blocks
	}
	return out
}

// BlockContents returns, for block b, every node scheduled into b (i.e.
// b is a member of the node's late-schedule set), ordered so each node's
// operands precede it (producer before consumer) within the block.
func (s *Schedule) BlockContents(b *Block) []*ir.Node {
	var members []*ir.Node
	memberSet := make(map[*ir.Node]bool)
	for n, bl := range s.final {
		for _, blk := range bl.Blocks() {
			if blk == b {
				members = append(members, n)
				memberSet[n] = true
				break
			}
		}
	}
	visited := make(map[*ir.Node]bool)
	var out []*ir.Node
	var visit func(n *ir.Node)
	visit = func(n *ir.Node) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, op := range n.Operands() {
			if op != nil && memberSet[op] {
				visit(op)
			}
		}
		out = append(out, n)
	}
	for _, n := range members {
		visit(n)
	}
	return out
}
