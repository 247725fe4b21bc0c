package ir

import "math"

// This file implements component B: the public structural builders. Every
// builder validates its operands, applies the matching peephole rule from
// peephole.go, and falls back to internStructural when no rule fires. A
// builder never returns a half-built node: either an existing interned node,
// or one with every use edge already recorded.

func (m *Module) checkOperandType(n, want *Node) {
	m.checkSameModule(n)
	if n.typ != want {
		panic(preconditionf("operand %d has type %v, expected %v", n.id, n.typ.tag, want.tag))
	}
}

func (m *Module) checkIntOperands(a, b *Node) *Node {
	m.checkSameModule(a)
	m.checkSameModule(b)
	if a.typ.tag != TagIntTy || a.typ != b.typ {
		panic(preconditionf("integer arithmetic requires matching integer operand types"))
	}
	return a.typ
}

func (m *Module) checkFloatOperands(a, b *Node) *Node {
	m.checkSameModule(a)
	m.checkSameModule(b)
	if a.typ.tag != TagFloatTy || a.typ != b.typ {
		panic(preconditionf("float arithmetic requires matching float operand types"))
	}
	return a.typ
}

func (m *Module) buildIArith(tag Tag, a, b *Node) *Node {
	typ := m.checkIntOperands(a, b)
	if isCommutative(tag) {
		a, b = canonicalizeCommutative(a, b)
	}
	if n, ok := m.simplifyIArith(tag, typ, a, b); ok {
		return n
	}
	return m.internStructural(tag, typ, Data{}, []*Node{a, b})
}

// IAdd builds an integer addition.
func (m *Module) IAdd(a, b *Node) *Node { return m.buildIArith(TagIAdd, a, b) }

// ISub builds an integer subtraction.
func (m *Module) ISub(a, b *Node) *Node { return m.buildIArith(TagISub, a, b) }

// IMul builds an integer multiplication.
func (m *Module) IMul(a, b *Node) *Node { return m.buildIArith(TagIMul, a, b) }

// buildIDiv builds an integer division or remainder, threading mem in and
// yielding (mem, err, result): err is ErrType()'s Bot on a clean divide and
// its Top on a zero divisor, per SPEC_FULL §3's resolution of the error-token
// Open Question. Threading mem (rather than inventing a separate per-function
// error-start token) is what pins the op to a block and orders it against
// other effects; nothing about the division itself touches memory.
func (m *Module) buildIDiv(tag Tag, mem, a, b *Node) *Node {
	m.checkOperandType(mem, m.memTy)
	typ := m.checkIntOperands(a, b)
	resTy := m.TupleType([]*Node{m.memTy, m.errTy, typ})
	if n, ok := m.simplifyIDiv(tag, typ, mem, a, b); ok {
		return n
	}
	return m.internStructural(tag, resTy, Data{}, []*Node{mem, a, b})
}

// SDiv builds a signed integer division.
func (m *Module) SDiv(mem, a, b *Node) *Node { return m.buildIDiv(TagSDiv, mem, a, b) }

// UDiv builds an unsigned integer division.
func (m *Module) UDiv(mem, a, b *Node) *Node { return m.buildIDiv(TagUDiv, mem, a, b) }

// SRem builds a signed integer remainder.
func (m *Module) SRem(mem, a, b *Node) *Node { return m.buildIDiv(TagSRem, mem, a, b) }

// URem builds an unsigned integer remainder.
func (m *Module) URem(mem, a, b *Node) *Node { return m.buildIDiv(TagURem, mem, a, b) }

func (m *Module) buildFArith(tag Tag, a, b *Node, flags FPFlags) *Node {
	typ := m.checkFloatOperands(a, b)
	if isCommutative(tag) {
		a, b = canonicalizeCommutative(a, b)
	}
	if n, ok := m.simplifyFArith(tag, typ, a, b, flags); ok {
		return n
	}
	return m.internStructural(tag, typ, Data{FPFlags: flags}, []*Node{a, b})
}

// FAdd builds a float addition under the given flags.
func (m *Module) FAdd(a, b *Node, flags FPFlags) *Node { return m.buildFArith(TagFAdd, a, b, flags) }

// FSub builds a float subtraction under the given flags.
func (m *Module) FSub(a, b *Node, flags FPFlags) *Node { return m.buildFArith(TagFSub, a, b, flags) }

// FMul builds a float multiplication under the given flags.
func (m *Module) FMul(a, b *Node, flags FPFlags) *Node { return m.buildFArith(TagFMul, a, b, flags) }

// FDiv builds a float division under the given flags.
func (m *Module) FDiv(a, b *Node, flags FPFlags) *Node { return m.buildFArith(TagFDiv, a, b, flags) }

// FRem builds a float remainder under the given flags.
func (m *Module) FRem(a, b *Node, flags FPFlags) *Node { return m.buildFArith(TagFRem, a, b, flags) }

func (m *Module) buildBitwise(tag Tag, a, b *Node) *Node {
	typ := m.checkIntOperands(a, b)
	if isCommutative(tag) {
		a, b = canonicalizeCommutative(a, b)
	}
	if n, ok := m.simplifyBitwise(tag, typ, a, b); ok {
		return n
	}
	return m.internStructural(tag, typ, Data{}, []*Node{a, b})
}

// And builds a bitwise AND.
func (m *Module) And(a, b *Node) *Node { return m.buildBitwise(TagAnd, a, b) }

// Or builds a bitwise OR.
func (m *Module) Or(a, b *Node) *Node { return m.buildBitwise(TagOr, a, b) }

// Xor builds a bitwise XOR.
func (m *Module) Xor(a, b *Node) *Node { return m.buildBitwise(TagXor, a, b) }

func (m *Module) buildShift(tag Tag, a, b *Node) *Node {
	typ := m.checkIntOperands(a, b)
	if n, ok := m.simplifyShift(tag, typ, a, b); ok {
		return n
	}
	return m.internStructural(tag, typ, Data{}, []*Node{a, b})
}

// Shl builds a left shift.
func (m *Module) Shl(a, b *Node) *Node { return m.buildShift(TagShl, a, b) }

// LShr builds a logical right shift.
func (m *Module) LShr(a, b *Node) *Node { return m.buildShift(TagLShr, a, b) }

// AShr builds an arithmetic right shift.
func (m *Module) AShr(a, b *Node) *Node { return m.buildShift(TagAShr, a, b) }

func (m *Module) buildICmp(tag Tag, a, b *Node) *Node {
	m.checkSameModule(a)
	m.checkSameModule(b)
	if a.typ != b.typ || a.typ.tag != TagIntTy {
		panic(preconditionf("integer comparison requires matching integer operand types"))
	}
	if isCommutative(tag) {
		a, b = canonicalizeCommutative(a, b)
	}
	boolTy := m.boolTy
	if av, aok := isIntConst(a); aok {
		if bv, bok := isIntConst(b); bok {
			return m.IntConst(boolTy, boolBit(foldICmp(tag, av, bv, a.typ.data.Width)))
		}
	}
	if a == b {
		switch tag {
		case TagICmpEq, TagICmpSle, TagICmpSge, TagICmpUle, TagICmpUge:
			return m.IntConst(boolTy, 1)
		case TagICmpNe, TagICmpSlt, TagICmpSgt, TagICmpUlt, TagICmpUgt:
			return m.IntConst(boolTy, 0)
		}
	}
	return m.internStructural(tag, boolTy, Data{}, []*Node{a, b})
}

func boolBit(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

func foldICmp(tag Tag, a, b uint64, width uint32) bool {
	switch tag {
	case TagICmpEq:
		return a == b
	case TagICmpNe:
		return a != b
	case TagICmpUlt:
		return a < b
	case TagICmpUle:
		return a <= b
	case TagICmpUgt:
		return a > b
	case TagICmpUge:
		return a >= b
	case TagICmpSlt:
		return signExtend(a, width) < signExtend(b, width)
	case TagICmpSle:
		return signExtend(a, width) <= signExtend(b, width)
	case TagICmpSgt:
		return signExtend(a, width) > signExtend(b, width)
	case TagICmpSge:
		return signExtend(a, width) >= signExtend(b, width)
	}
	return false
}

// ICmpEq builds an integer equality comparison.
func (m *Module) ICmpEq(a, b *Node) *Node { return m.buildICmp(TagICmpEq, a, b) }

// ICmpNe builds an integer inequality comparison.
func (m *Module) ICmpNe(a, b *Node) *Node { return m.buildICmp(TagICmpNe, a, b) }

// ICmpSlt builds a signed less-than comparison.
func (m *Module) ICmpSlt(a, b *Node) *Node { return m.buildICmp(TagICmpSlt, a, b) }

// ICmpSle builds a signed less-or-equal comparison.
func (m *Module) ICmpSle(a, b *Node) *Node { return m.buildICmp(TagICmpSle, a, b) }

// ICmpSgt builds a signed greater-than comparison.
func (m *Module) ICmpSgt(a, b *Node) *Node { return m.buildICmp(TagICmpSgt, a, b) }

// ICmpSge builds a signed greater-or-equal comparison.
func (m *Module) ICmpSge(a, b *Node) *Node { return m.buildICmp(TagICmpSge, a, b) }

// ICmpUlt builds an unsigned less-than comparison.
func (m *Module) ICmpUlt(a, b *Node) *Node { return m.buildICmp(TagICmpUlt, a, b) }

// ICmpUle builds an unsigned less-or-equal comparison.
func (m *Module) ICmpUle(a, b *Node) *Node { return m.buildICmp(TagICmpUle, a, b) }

// ICmpUgt builds an unsigned greater-than comparison.
func (m *Module) ICmpUgt(a, b *Node) *Node { return m.buildICmp(TagICmpUgt, a, b) }

// ICmpUge builds an unsigned greater-or-equal comparison.
func (m *Module) ICmpUge(a, b *Node) *Node { return m.buildICmp(TagICmpUge, a, b) }

func (m *Module) buildFCmp(tag Tag, a, b *Node) *Node {
	m.checkSameModule(a)
	m.checkSameModule(b)
	if a.typ != b.typ || a.typ.tag != TagFloatTy {
		panic(preconditionf("float comparison requires matching float operand types"))
	}
	if isCommutative(tag) {
		a, b = canonicalizeCommutative(a, b)
	}
	boolTy := m.boolTy
	if av, aok := isFloatConst(a); aok {
		if bv, bok := isFloatConst(b); bok {
			return m.IntConst(boolTy, boolBit(foldFCmp(tag, av, bv, a.typ.data.Width)))
		}
	}
	return m.internStructural(tag, boolTy, Data{}, []*Node{a, b})
}

func foldFCmp(tag Tag, a, b uint64, width uint32) bool {
	var fa, fb float64
	if width == 64 {
		fa, fb = math.Float64frombits(a), math.Float64frombits(b)
	} else {
		fa, fb = float64(math.Float32frombits(uint32(a))), float64(math.Float32frombits(uint32(b)))
	}
	nan := math.IsNaN(fa) || math.IsNaN(fb)
	switch tag {
	case TagFCmpOEq:
		return !nan && fa == fb
	case TagFCmpONe:
		return !nan && fa != fb
	case TagFCmpOLt:
		return !nan && fa < fb
	case TagFCmpOLe:
		return !nan && fa <= fb
	case TagFCmpOGt:
		return !nan && fa > fb
	case TagFCmpOGe:
		return !nan && fa >= fb
	case TagFCmpUEq:
		return nan || fa == fb
	case TagFCmpUNe:
		return nan || fa != fb
	case TagFCmpULt:
		return nan || fa < fb
	case TagFCmpULe:
		return nan || fa <= fb
	case TagFCmpUGt:
		return nan || fa > fb
	case TagFCmpUGe:
		return nan || fa >= fb
	}
	return false
}

// FCmpOEq builds an ordered float equality comparison.
func (m *Module) FCmpOEq(a, b *Node) *Node { return m.buildFCmp(TagFCmpOEq, a, b) }

// FCmpONe builds an ordered float inequality comparison.
func (m *Module) FCmpONe(a, b *Node) *Node { return m.buildFCmp(TagFCmpONe, a, b) }

// FCmpOLt builds an ordered float less-than comparison.
func (m *Module) FCmpOLt(a, b *Node) *Node { return m.buildFCmp(TagFCmpOLt, a, b) }

// FCmpOLe builds an ordered float less-or-equal comparison.
func (m *Module) FCmpOLe(a, b *Node) *Node { return m.buildFCmp(TagFCmpOLe, a, b) }

// FCmpOGt builds an ordered float greater-than comparison.
func (m *Module) FCmpOGt(a, b *Node) *Node { return m.buildFCmp(TagFCmpOGt, a, b) }

// FCmpOGe builds an ordered float greater-or-equal comparison.
func (m *Module) FCmpOGe(a, b *Node) *Node { return m.buildFCmp(TagFCmpOGe, a, b) }

// FCmpUEq builds an unordered float equality comparison.
func (m *Module) FCmpUEq(a, b *Node) *Node { return m.buildFCmp(TagFCmpUEq, a, b) }

// FCmpUNe builds an unordered float inequality comparison.
func (m *Module) FCmpUNe(a, b *Node) *Node { return m.buildFCmp(TagFCmpUNe, a, b) }

// FCmpULt builds an unordered float less-than comparison.
func (m *Module) FCmpULt(a, b *Node) *Node { return m.buildFCmp(TagFCmpULt, a, b) }

// FCmpULe builds an unordered float less-or-equal comparison.
func (m *Module) FCmpULe(a, b *Node) *Node { return m.buildFCmp(TagFCmpULe, a, b) }

// FCmpUGt builds an unordered float greater-than comparison.
func (m *Module) FCmpUGt(a, b *Node) *Node { return m.buildFCmp(TagFCmpUGt, a, b) }

// FCmpUGe builds an unordered float greater-or-equal comparison.
func (m *Module) FCmpUGe(a, b *Node) *Node { return m.buildFCmp(TagFCmpUGe, a, b) }

func (m *Module) buildCast(tag Tag, typ, arg *Node) *Node {
	m.checkType(typ)
	m.checkSameModule(arg)
	if n, ok := m.simplifyCast(tag, typ, arg); ok {
		return n
	}
	return m.internStructural(tag, typ, Data{}, []*Node{arg})
}

// ITrunc builds an integer truncation to a narrower width.
func (m *Module) ITrunc(typ, arg *Node) *Node { return m.buildCast(TagITrunc, typ, arg) }

// ZExt builds a zero-extension to a wider integer width.
func (m *Module) ZExt(typ, arg *Node) *Node { return m.buildCast(TagZExt, typ, arg) }

// SExt builds a sign-extension to a wider integer width.
func (m *Module) SExt(typ, arg *Node) *Node { return m.buildCast(TagSExt, typ, arg) }

// FTrunc builds a float narrowing conversion.
func (m *Module) FTrunc(typ, arg *Node) *Node { return m.buildCast(TagFTrunc, typ, arg) }

// FExt builds a float widening conversion.
func (m *Module) FExt(typ, arg *Node) *Node { return m.buildCast(TagFExt, typ, arg) }

// UToF builds an unsigned-integer-to-float conversion.
func (m *Module) UToF(typ, arg *Node) *Node { return m.buildCast(TagUToF, typ, arg) }

// SToF builds a signed-integer-to-float conversion.
func (m *Module) SToF(typ, arg *Node) *Node { return m.buildCast(TagSToF, typ, arg) }

// FToU builds a float-to-unsigned-integer conversion.
func (m *Module) FToU(typ, arg *Node) *Node { return m.buildCast(TagFToU, typ, arg) }

// FToS builds a float-to-signed-integer conversion.
func (m *Module) FToS(typ, arg *Node) *Node { return m.buildCast(TagFToS, typ, arg) }

// Bitcast builds a same-width reinterpretation between an integer and a
// float type.
func (m *Module) Bitcast(typ, arg *Node) *Node { return m.buildCast(TagBitcast, typ, arg) }

// Tup builds a tuple value from its element values.
func (m *Module) Tup(elems []*Node) *Node {
	types := make([]*Node, len(elems))
	for i, e := range elems {
		m.checkSameModule(e)
		types[i] = e.typ
	}
	typ := m.TupleType(types)
	return m.internStructural(TagTup, typ, Data{}, elems)
}

// Array builds a fixed-size array value from its element values, which must
// all share the same type.
func (m *Module) Array(elems []*Node) *Node {
	if len(elems) == 0 {
		panic(preconditionf("Array: at least one element is required"))
	}
	elemTy := elems[0].typ
	for _, e := range elems {
		m.checkOperandType(e, elemTy)
	}
	typ := m.ArrayType(uint64(len(elems)), elemTy)
	return m.internStructural(TagArray, typ, Data{}, elems)
}

// Ins builds an aggregate update: agg with index idx replaced by val.
func (m *Module) Ins(agg *Node, idx uint64, val *Node) *Node {
	m.checkSameModule(agg)
	m.checkSameModule(val)
	elemTy, ok := aggregateElemType(agg.typ, idx)
	if !ok {
		panic(preconditionf("Ins: index %d out of range for %v", idx, agg.typ.tag))
	}
	if val.typ != elemTy {
		panic(preconditionf("Ins: value type does not match element type at index %d", idx))
	}
	if agg.tag == TagIns && agg.data.Dim == idx {
		// ins(ins(a, i, _), i, v) == ins(a, i, v): the outer insert
		// shadows the inner one at the same index.
		return m.internStructural(TagIns, agg.typ, Data{Dim: idx}, []*Node{agg.operands[0], val})
	}
	return m.internStructural(TagIns, agg.typ, Data{Dim: idx}, []*Node{agg, val})
}

// Ext builds an aggregate projection: the value at index idx of agg.
func (m *Module) Ext(agg *Node, idx uint64) *Node {
	m.checkSameModule(agg)
	elemTy, ok := aggregateElemType(agg.typ, idx)
	if !ok {
		panic(preconditionf("Ext: index %d out of range for %v", idx, agg.typ.tag))
	}
	switch agg.tag {
	case TagTup, TagArray:
		return agg.operands[idx]
	case TagIns:
		if agg.data.Dim == idx {
			return agg.operands[1]
		}
		return m.Ext(agg.operands[0], idx)
	}
	return m.internStructural(TagExt, elemTy, Data{Dim: idx}, []*Node{agg})
}

func aggregateElemType(typ *Node, idx uint64) (*Node, bool) {
	switch typ.tag {
	case TagTupTy:
		if idx >= uint64(len(typ.operands)) {
			return nil, false
		}
		return typ.operands[idx], true
	case TagArrayTy:
		if idx >= typ.data.Dim {
			return nil, false
		}
		return typ.operands[0], true
	}
	return nil, false
}

// AddrOf builds the address of the idx'th field of an aggregate pointed to
// by ptr, whose pointee type is aggTy.
func (m *Module) AddrOf(ptr, aggTy *Node, idx uint64) *Node {
	m.checkOperandType(ptr, m.ptrTy)
	if _, ok := aggregateElemType(aggTy, idx); !ok {
		panic(preconditionf("AddrOf: index %d out of range for %v", idx, aggTy.tag))
	}
	return m.internStructural(TagAddrOf, m.ptrTy, Data{Dim: idx}, []*Node{ptr})
}

// Alloc builds a stack allocation of a value of type allocTy, threading the
// incoming memory token and yielding (mem, ptr).
func (m *Module) Alloc(mem, allocTy *Node) *Node {
	m.checkOperandType(mem, m.memTy)
	m.checkType(allocTy)
	resTy := m.TupleType([]*Node{m.memTy, m.ptrTy})
	return m.internStructural(TagAlloc, resTy, Data{}, []*Node{mem, allocTy})
}

// Load builds a memory load of type valTy through ptr, reading at the
// incoming memory token and yielding the loaded value (of type valTy).
func (m *Module) Load(mem, ptr, valTy *Node) *Node {
	m.checkOperandType(mem, m.memTy)
	m.checkOperandType(ptr, m.ptrTy)
	m.checkType(valTy)
	if mem.tag == TagStore {
		storedPtr, storedVal := mem.operands[1], mem.operands[2]
		if storedPtr == ptr && storedVal.typ == valTy {
			// load-after-store forwarding: the loaded value is exactly
			// what the immediately preceding store wrote to the same
			// address.
			return storedVal
		}
	}
	return m.internStructural(TagLoad, valTy, Data{}, []*Node{mem, ptr})
}

// Store builds a memory store of val through ptr, threading the incoming
// memory token and yielding the updated memory token.
func (m *Module) Store(mem, ptr, val *Node) *Node {
	m.checkOperandType(mem, m.memTy)
	m.checkOperandType(ptr, m.ptrTy)
	m.checkSameModule(val)
	if mem.tag == TagStore && mem.operands[1] == ptr {
		// store-after-store to the same address: the earlier store is
		// dead, so this store folds to one chained off the token the
		// earlier store itself consumed.
		return m.internStructural(TagStore, m.memTy, Data{}, []*Node{mem.operands[0], ptr, val})
	}
	return m.internStructural(TagStore, m.memTy, Data{}, []*Node{mem, ptr, val})
}

// Param builds the idx'th parameter projection of a function body, typed
// according to the function's parameter type.
func (m *Module) Param(fn *Node, idx uint64) *Node {
	m.checkSameModule(fn)
	if fn.tag != TagFunc {
		panic(preconditionf("Param: operand is not a function nominal"))
	}
	paramTy := fn.typ.operands[0]
	elemTy, ok := aggregateElemType(paramTy, idx)
	if !ok {
		if idx != 0 {
			panic(preconditionf("Param: index %d out of range", idx))
		}
		elemTy = paramTy
	}
	return m.internStructural(TagParam, elemTy, Data{Dim: idx}, []*Node{fn})
}

// Start builds the entry memory token of a function body.
func (m *Module) Start(fn *Node) *Node {
	m.checkSameModule(fn)
	if fn.tag != TagFunc {
		panic(preconditionf("Start: operand is not a function nominal"))
	}
	return m.internStructural(TagStart, m.memTy, Data{}, []*Node{fn})
}

// Call builds a call to callee, a continuation-typed value, with the given
// argument. Calls never return a value directly: control transfers to
// callee, which is itself a continuation.
func (m *Module) Call(callee, arg *Node) *Node {
	m.checkSameModule(callee)
	m.checkSameModule(arg)
	if !callee.typ.IsContinuationType() {
		panic(preconditionf("Call: callee is not continuation-typed"))
	}
	if arg.typ != callee.typ.operands[0] {
		panic(preconditionf("Call: argument type does not match callee parameter type"))
	}
	return m.internStructural(TagCall, m.noRetTy, Data{}, []*Node{callee, arg})
}

// Loop builds a loop header continuation: a merge point with two
// predecessors, an initial value and a per-iteration value, producing the
// value visible inside the loop body.
func (m *Module) Loop(init, next *Node) *Node {
	m.checkSameModule(init)
	m.checkSameModule(next)
	if init.typ != next.typ {
		panic(preconditionf("Loop: init and next must share a type"))
	}
	return m.internStructural(TagLoop, init.typ, Data{}, []*Node{init, next})
}

// If builds a two-way branch on cond, a boolean value, to thenCont and
// elseCont, both continuation-typed.
func (m *Module) If(cond, thenCont, elseCont *Node) *Node {
	m.checkOperandType(cond, m.boolTy)
	m.checkSameModule(thenCont)
	m.checkSameModule(elseCont)
	if !thenCont.typ.IsContinuationType() || !elseCont.typ.IsContinuationType() {
		panic(preconditionf("If: branch targets must be continuation-typed"))
	}
	if cv, ok := isIntConst(cond); ok {
		// A constant condition resolves the branch at construction time;
		// the scheduler never sees the dead arm.
		if cv != 0 {
			return thenCont
		}
		return elseCont
	}
	return m.internStructural(TagIf, m.noRetTy, Data{}, []*Node{cond, thenCont, elseCont})
}
