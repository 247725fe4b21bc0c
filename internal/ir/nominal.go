package ir

// This file implements the nominal half of component B: functions and
// globals. Unlike structural nodes, nominals are never hash-consed: two
// functions with identical bodies remain distinct because they have
// separate identity and can be referenced before their body exists
// (spec.md §3 "two-pass" construction, §4.1 "Nominal nodes").

// NewFunc creates a function nominal of the given function type (a
// continuation type or any other func_ty) and linkage, with no body yet.
// The body is attached later with SetOperand so that recursive and
// forward-referencing calls can take the function's address before it is
// fully built.
func (m *Module) NewFunc(typ *Node, linkage Linkage) *Node {
	m.checkType(typ)
	if typ.tag != TagFuncTy {
		panic(preconditionf("NewFunc: type must be a function type"))
	}
	n := m.arena.alloc(&Node{
		id:       m.allocID(),
		tag:      TagFunc,
		data:     Data{Linkage: linkage},
		typ:      typ,
		operands: make([]*Node, 1),
		mod:      m,
	})
	m.funcs = append(m.funcs, n)
	return n
}

// NewGlobal creates a global nominal holding a pointer to a value of type
// pointeeTy, with no initializer yet. operands[0] is the pointee type
// (fixed at creation), operands[1] is the initializer (set later via
// SetOperand).
func (m *Module) NewGlobal(pointeeTy *Node, linkage Linkage) *Node {
	m.checkType(pointeeTy)
	n := m.arena.alloc(&Node{
		id:       m.allocID(),
		tag:      TagGlobal,
		data:     Data{Linkage: linkage},
		typ:      m.ptrTy,
		operands: make([]*Node, 2),
		mod:      m,
	})
	n.operands[0] = pointeeTy
	m.addUse(pointeeTy, n, 0)
	m.globals = append(m.globals, n)
	return n
}

// Body returns a function's body operand (any node, e.g. a call or an if),
// or nil if unset.
func (n *Node) Body() *Node {
	if n.tag != TagFunc {
		panic(preconditionf("Body: node %d is not a function nominal", n.id))
	}
	return n.operands[0]
}

// PointeeType returns a global's pointee type.
func (n *Node) PointeeType() *Node {
	if n.tag != TagGlobal {
		panic(preconditionf("PointeeType: node %d is not a global nominal", n.id))
	}
	return n.operands[0]
}

// Init returns a global's initializer operand, or nil if unset.
func (n *Node) Init() *Node {
	if n.tag != TagGlobal {
		panic(preconditionf("Init: node %d is not a global nominal", n.id))
	}
	return n.operands[1]
}

// Linkage returns the nominal's linkage.
func (n *Node) Linkage() Linkage { return n.data.Linkage }

// SetOperand mutates nominal n's operand at idx to val, retracting the old
// use edge (if any) and recording the new one. It is a precondition
// violation to call SetOperand on a structural node.
func (m *Module) SetOperand(n *Node, idx int, val *Node) {
	if !n.tag.IsNominal() {
		panic(preconditionf("SetOperand: node %d is not a nominal", n.id))
	}
	m.checkSameModule(val)
	if old := n.operands[idx]; old != nil {
		m.removeUse(old, n, idx)
	}
	n.operands[idx] = val
	m.addUse(val, n, idx)
}

// Rebuild re-interns a structural node's operand list in place-equivalent
// fashion: it returns the canonical node for n's tag/type/data over a new
// operand list, applying no further simplification. Callers that already
// know a structural rewrite is sound (e.g. the scheduler re-threading a
// memory chain) use this instead of the full builder API.
func (m *Module) Rebuild(n *Node, operands []*Node) *Node {
	if n.tag.IsNominal() {
		panic(preconditionf("Rebuild: node %d is a nominal, use SetOperand", n.id))
	}
	return m.rebuildStructural(n, n.typ, operands)
}

// Clone creates a new function nominal with the same type and linkage as fn
// but no body, ready to receive a freshly rebuilt body via SetOperand.
func (m *Module) Clone(fn *Node) *Node {
	if fn.tag != TagFunc {
		panic(preconditionf("Clone: node %d is not a function nominal", fn.id))
	}
	return m.NewFunc(fn.typ, fn.data.Linkage)
}
