package ir

// arena is the module's node allocator. It owns every Node it ever hands
// out: nothing is freed individually, and the whole arena is released at
// once by Module.Destroy. A *Node is itself the stable handle a caller
// holds onto; the arena's log of every allocated pointer exists so Destroy
// and diagnostics can walk the full set without depending on the intern
// table or the funcs/globals lists still referencing it.
type arena struct {
	nodes []*Node
}

func (a *arena) alloc(n *Node) *Node {
	a.nodes = append(a.nodes, n)
	return n
}

func (a *arena) len() int { return len(a.nodes) }

func (a *arena) destroy() {
	a.nodes = nil
}
