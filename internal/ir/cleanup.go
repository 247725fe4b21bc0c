package ir

// This file implements component 4.1's module-level dead-code cleanup: a
// mark-and-sweep pass rooted at every exported nominal (and, conservatively,
// every nominal still reachable from one) that discards everything else and
// returns their Use records to the freelist. Cleanup never touches a live
// node's identity: a node that survives two consecutive cleanups without any
// intervening mutation is the same pointer both times.

// Cleanup discards every nominal not reachable from an exported nominal, and
// every structural node (including types) not reachable from a surviving
// nominal, except the unit and bool types and the cached integer and float
// types, which are always kept. It is idempotent: calling it twice in a row
// with no intervening builder calls leaves the module unchanged.
func (m *Module) Cleanup() {
	liveNominals := m.markLiveNominals()
	m.sweepNominals(liveNominals)

	liveStructural := make(map[*Node]bool)
	// Singleton types outlive any particular user: the module keeps a
	// direct pointer to each one (m.boolTy, m.unitTy, ...) regardless of
	// whether any live nominal currently references it, so a later lookup
	// through IntType/FloatType/TupleType keeps returning the same node.
	m.markStructural(m.unitTy, liveStructural)
	m.markStructural(m.boolTy, liveStructural)
	for _, t := range m.intTys {
		m.markStructural(t, liveStructural)
	}
	for _, t := range m.floatTys {
		m.markStructural(t, liveStructural)
	}
	for _, fn := range m.funcs {
		m.markStructural(fn, liveStructural)
	}
	for _, g := range m.globals {
		m.markStructural(g, liveStructural)
	}
	m.sweepStructural(liveStructural)
}

func (m *Module) markLiveNominals() map[*Node]bool {
	live := make(map[*Node]bool)
	var stack []*Node
	for _, fn := range m.funcs {
		if fn.data.Linkage == LinkageExported {
			live[fn] = true
			stack = append(stack, fn)
		}
	}
	for _, g := range m.globals {
		if g.data.Linkage == LinkageExported {
			live[g] = true
			stack = append(stack, g)
		}
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, nominal := range reachableNominals(n) {
			if !live[nominal] {
				live[nominal] = true
				stack = append(stack, nominal)
			}
		}
	}
	return live
}

// reachableNominals walks a nominal's operand graph and collects every
// nominal referenced by it (a called function, an addressed global).
func reachableNominals(n *Node) []*Node {
	var found []*Node
	seen := make(map[*Node]bool)
	var walk func(*Node)
	walk = func(cur *Node) {
		if cur == nil || seen[cur] {
			return
		}
		seen[cur] = true
		if cur.tag.IsNominal() && cur != n {
			found = append(found, cur)
			return // a referenced nominal's own body is rooted separately
		}
		for _, op := range cur.operands {
			walk(op)
		}
	}
	for _, op := range n.operands {
		walk(op)
	}
	return found
}

func (m *Module) sweepNominals(live map[*Node]bool) {
	m.funcs = sweepNominalSlice(m, m.funcs, live)
	m.globals = sweepNominalSlice(m, m.globals, live)
}

func sweepNominalSlice(m *Module, nominals []*Node, live map[*Node]bool) []*Node {
	kept := nominals[:0]
	for _, n := range nominals {
		if live[n] {
			kept = append(kept, n)
			continue
		}
		for i, op := range n.operands {
			if op != nil {
				m.removeUse(op, n, i)
			}
		}
	}
	return kept
}

func (m *Module) markStructural(n *Node, live map[*Node]bool) {
	if n == nil || live[n] {
		return
	}
	live[n] = true
	if n.typ != nil {
		m.markStructural(n.typ, live)
	}
	for _, op := range n.operands {
		m.markStructural(op, live)
	}
}

// sweepStructural removes every interned node not reached by the mark pass.
// Interned nodes form a DAG (hash-consing forbids cycles), so it is always
// safe to retract a dead node's outgoing use edges without first checking
// whether its operands are themselves about to be removed.
func (m *Module) sweepStructural(live map[*Node]bool) {
	for key, n := range m.intern {
		if live[n] {
			continue
		}
		delete(m.intern, key)
		for i, op := range n.operands {
			m.removeUse(op, n, i)
		}
	}
}
