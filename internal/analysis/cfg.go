package analysis

import "github.com/madmann91/fir/internal/ir"

// Block is one CFG vertex: either a real continuation-typed function node
// with a body, the synthetic source (the function's own entry), or the
// synthetic sink (every block's unresolved jump target collapses here, per
// spec.md's "the function's return continuation"). Each carries the
// fixed-size side table spec.md §4.3 asks for, filled in by the later
// dominator/loop-tree passes.
type Block struct {
	Fn       *ir.Node // nil for the sink
	IsSource bool
	IsSink   bool

	Succs []*Block
	Preds []*Block

	fwdPostIdx int
	bwdPostIdx int
	dfsPreIdx  int

	idom     *DomNode
	postIdom *DomNode
	loop     *LoopNode
}

// CFG is a function's control-flow graph plus its derived orderings.
type CFG struct {
	Fn     *ir.Node
	Scope  *Scope
	Blocks []*Block
	Source *Block
	Sink   *Block

	byFn map[*ir.Node]*Block

	FwdPostOrder []*Block // DFS finish (post-)order from Source; BuildDomTree reverses it
	BwdPostOrder []*Block // same over the reversed edge set, from Sink
	DFSPreOrder  []*Block // forward DFS discovery order from Source, for Havlak
}

// BuildCFG constructs the CFG of the function scope belongs to, per
// spec.md §4.3: a vertex per in-scope continuation-typed func with a body,
// edges along the jump targets of each block's body, plus the synthetic
// source and sink.
func BuildCFG(scope *Scope) *CFG {
	fn := scope.Func()
	cfg := &CFG{Fn: fn, Scope: scope, byFn: make(map[*ir.Node]*Block)}

	cfg.Source = &Block{Fn: fn, IsSource: true}
	cfg.Sink = &Block{IsSink: true}
	cfg.byFn[fn] = cfg.Source
	cfg.Blocks = append(cfg.Blocks, cfg.Source)

	// Discover every other in-scope block lazily, following edges from the
	// source so unreachable continuations never appear as vertices.
	var discover func(*ir.Node) *Block
	discover = func(target *ir.Node) *Block {
		if target == nil {
			return cfg.Sink
		}
		if b, ok := cfg.byFn[target]; ok {
			return b
		}
		if target.Tag() != ir.TagFunc || !target.Type().IsContinuationType() ||
			target.Body() == nil || !scope.Contains(target) {
			return cfg.Sink
		}
		b := &Block{Fn: target}
		cfg.byFn[target] = b
		cfg.Blocks = append(cfg.Blocks, b)
		return b
	}

	var link func(*Block)
	visited := make(map[*Block]bool)
	link = func(b *Block) {
		if b == nil || b == cfg.Sink || visited[b] {
			return
		}
		visited[b] = true
		for _, target := range jumpTargets(b.Fn.Body()) {
			succ := discover(target)
			b.Succs = append(b.Succs, succ)
			succ.Preds = append(succ.Preds, b)
			link(succ)
		}
	}
	link(cfg.Source)
	// The sink is always a vertex, even with no predecessors yet, so
	// post-dominator construction has a single well-defined root.
	cfg.Blocks = append(cfg.Blocks, cfg.Sink)

	cfg.computeOrders()
	return cfg
}

// jumpTargets returns the func nominals that body's control op may
// transfer to. An unrecognized shape (neither call nor if) is treated as
// an edge off the scope, to the sink.
func jumpTargets(body *ir.Node) []*ir.Node {
	if body == nil {
		return nil
	}
	switch body.Tag() {
	case ir.TagCall:
		return []*ir.Node{calleeFunc(body.Operand(0))}
	case ir.TagIf:
		return []*ir.Node{calleeFunc(body.Operand(1)), calleeFunc(body.Operand(2))}
	default:
		return []*ir.Node{nil}
	}
}

func calleeFunc(n *ir.Node) *ir.Node {
	if n.Tag() == ir.TagFunc {
		return n
	}
	return nil
}

func (cfg *CFG) computeOrders() {
	cfg.FwdPostOrder = postOrder(cfg.Source, func(b *Block) []*Block { return b.Succs })
	for i, b := range cfg.FwdPostOrder {
		b.fwdPostIdx = i
	}
	cfg.BwdPostOrder = postOrder(cfg.Sink, func(b *Block) []*Block { return b.Preds })
	for i, b := range cfg.BwdPostOrder {
		b.bwdPostIdx = i
	}
	cfg.DFSPreOrder = preOrder(cfg.Source, func(b *Block) []*Block { return b.Succs })
	for i, b := range cfg.DFSPreOrder {
		b.dfsPreIdx = i
	}
}

func postOrder(root *Block, adj func(*Block) []*Block) []*Block {
	var order []*Block
	visited := make(map[*Block]bool)
	type frame struct {
		b   *Block
		idx int
	}
	stack := []frame{{b: root}}
	visited[root] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		succs := adj(top.b)
		if top.idx < len(succs) {
			next := succs[top.idx]
			top.idx++
			if next != nil && !visited[next] {
				visited[next] = true
				stack = append(stack, frame{b: next})
			}
			continue
		}
		order = append(order, top.b)
		stack = stack[:len(stack)-1]
	}
	return order
}

func preOrder(root *Block, adj func(*Block) []*Block) []*Block {
	var order []*Block
	visited := make(map[*Block]bool)
	var stack []*Block
	stack = append(stack, root)
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[b] {
			continue
		}
		visited[b] = true
		order = append(order, b)
		succs := adj(b)
		for i := len(succs) - 1; i >= 0; i-- {
			s := succs[i]
			if s != nil && !visited[s] {
				stack = append(stack, s)
			}
		}
	}
	return order
}

// BlockOf returns the CFG vertex for a scope's func node, or nil if it is
// not part of this CFG (unreachable from the source).
func (cfg *CFG) BlockOf(fn *ir.Node) *Block { return cfg.byFn[fn] }
