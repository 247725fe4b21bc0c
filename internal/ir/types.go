package ir

// MemType returns the module's singleton memory-token type.
func (m *Module) MemType() *Node { return m.memTy }

// NoRetType returns the module's singleton "no return" type, used as the
// return type of continuations.
func (m *Module) NoRetType() *Node { return m.noRetTy }

// ErrType returns the module's singleton error-token type, threaded
// alongside memory by trapping integer division/remainder (spec.md §9 open
// question, resolved in SPEC_FULL §3).
func (m *Module) ErrType() *Node { return m.errTy }

// PtrType returns the module's singleton opaque pointer type.
func (m *Module) PtrType() *Node { return m.ptrTy }

// UnitType returns the module's singleton zero-element tuple type.
func (m *Module) UnitType() *Node { return m.unitTy }

// BoolType returns the module's singleton 1-bit integer type.
func (m *Module) BoolType() *Node { return m.boolTy }

// IntType returns the (interned, cached) integer type of the given width.
func (m *Module) IntType(width uint32) *Node {
	if t, ok := m.intTys[width]; ok {
		return t
	}
	t := m.internStructural(TagIntTy, nil, Data{Width: width}, nil)
	m.intTys[width] = t
	return t
}

// FloatType returns the (interned, cached) float type of the given width.
// Width must be one of 16, 32, or 64.
func (m *Module) FloatType(width uint32) *Node {
	if width != 16 && width != 32 && width != 64 {
		panic(preconditionf("FloatType: invalid width %d", width))
	}
	if t, ok := m.floatTys[width]; ok {
		return t
	}
	t := m.internStructural(TagFloatTy, nil, Data{Width: width}, nil)
	m.floatTys[width] = t
	return t
}

// TupleType returns the interned tuple type over elems (possibly empty).
func (m *Module) TupleType(elems []*Node) *Node {
	for _, e := range elems {
		m.checkType(e)
	}
	return m.internStructural(TagTupTy, nil, Data{}, elems)
}

// ArrayType returns the interned fixed-size array type of dim elements of
// type elem.
func (m *Module) ArrayType(dim uint64, elem *Node) *Node {
	m.checkType(elem)
	return m.internStructural(TagArrayTy, nil, Data{Dim: dim}, []*Node{elem})
}

// DynArrayType returns the interned dynamically-sized array type of elem.
func (m *Module) DynArrayType(elem *Node) *Node {
	m.checkType(elem)
	return m.internStructural(TagDynArrayTy, nil, Data{}, []*Node{elem})
}

// FuncType returns the interned function type param -> ret. A continuation
// type is any FuncType whose return type is NoRetType.
func (m *Module) FuncType(param, ret *Node) *Node {
	m.checkType(param)
	m.checkType(ret)
	return m.internStructural(TagFuncTy, nil, Data{}, []*Node{param, ret})
}

// IsContinuationType reports whether t is a function type returning noret.
func (t *Node) IsContinuationType() bool {
	return t.tag == TagFuncTy && t.operands[1].tag == TagNoRetTy
}

func (m *Module) checkType(n *Node) {
	if n == nil || !n.tag.IsType() {
		panic(preconditionf("expected a type node, got %v", n))
	}
	if n.mod != m {
		panic(preconditionf("type node %d does not belong to this module", n.id))
	}
}

func (m *Module) checkSameModule(n *Node) {
	if n == nil {
		panic(preconditionf("operand must not be nil"))
	}
	if n.mod != m {
		panic(preconditionf("node %d does not belong to this module", n.id))
	}
}

// Top returns the interned "top" (unreachable/unknown) value of type t.
func (m *Module) Top(t *Node) *Node {
	m.checkType(t)
	return m.internStructural(TagTop, t, Data{}, nil)
}

// Bot returns the interned "bottom" (overdefined) value of type t.
func (m *Module) Bot(t *Node) *Node {
	m.checkType(t)
	return m.internStructural(TagBot, t, Data{}, nil)
}

// IntConst returns the interned integer constant of value val (masked to
// t's width) and type t.
func (m *Module) IntConst(t *Node, val uint64) *Node {
	m.checkType(t)
	if t.tag != TagIntTy {
		panic(preconditionf("IntConst: type %v is not an integer type", t.tag))
	}
	val = maskToWidth(val, t.data.Width)
	return m.internStructural(TagConst, t, Data{Int: val}, nil)
}

// FloatConst returns the interned float constant with the given raw bit
// pattern and type t. Bit-exact identity means +0.0 and -0.0, or NaNs with
// different payloads, are distinct constants (spec.md §3, §9).
func (m *Module) FloatConst(t *Node, bits uint64) *Node {
	m.checkType(t)
	if t.tag != TagFloatTy {
		panic(preconditionf("FloatConst: type %v is not a float type", t.tag))
	}
	return m.internStructural(TagConst, t, Data{Float: bits}, nil)
}

func maskToWidth(val uint64, width uint32) uint64 {
	if width >= 64 {
		return val
	}
	return val & ((uint64(1) << width) - 1)
}
