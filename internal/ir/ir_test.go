package ir

import "testing"

func TestStructuralUniqueness(t *testing.T) {
	m := NewModule("t")
	i32 := m.IntType(32)
	a := m.IntConst(i32, 5)
	b := m.IntConst(i32, 5)
	if a != b {
		t.Fatalf("two identically-built constants must intern to the same node")
	}
	if m.IAdd(a, b) != m.IAdd(b, a) {
		t.Fatalf("commutative arithmetic must canonicalize to one interned node")
	}
}

func TestBidirectionalUses(t *testing.T) {
	m := NewModule("t")
	i32 := m.IntType(32)
	fn := m.NewFunc(m.FuncType(i32, m.NoRetType()), LinkageExported)
	a := m.IntConst(i32, 1)
	b := m.Param(fn, 0) // not a constant, so the sum is not folded away
	sum := m.IAdd(a, b)

	var found int
	for u := a.Uses(); u != nil; u = u.Next {
		if u.User == sum {
			found++
		}
	}
	if found != 1 {
		t.Fatalf("expected exactly one use record linking %%%d to its sum, got %d", a.ID(), found)
	}
}

func TestIntConstCanonicality(t *testing.T) {
	m := NewModule("t")
	i8 := m.IntType(8)
	v := m.IntConst(i8, 300) // 300 mod 256 == 44
	if v.Data().Int != 44 {
		t.Fatalf("expected const masked to width 8, got %d", v.Data().Int)
	}
}

func TestTypeAssignment(t *testing.T) {
	m := NewModule("t")
	i32 := m.IntType(32)
	a := m.IntConst(i32, 7)
	sum := m.IAdd(a, a)
	for _, n := range []*Node{i32, a, sum} {
		if !n.IsType() && n.Type() == nil {
			t.Fatalf("non-type node %%%d has no type", n.ID())
		}
		if n.Type() != nil {
			if !n.Type().IsType() {
				t.Fatalf("node %%%d's type field is not itself a type node", n.ID())
			}
			if n.Type().Module() != n.Module() {
				t.Fatalf("node %%%d's type belongs to a different module", n.ID())
			}
		}
	}
}

func TestRebuildIdempotent(t *testing.T) {
	m := NewModule("t")
	i32 := m.IntType(32)
	a := m.IntConst(i32, 1)
	b := m.IntConst(i32, 2)
	sum := m.IAdd(a, b)
	if m.Rebuild(sum, sum.Operands()) != sum {
		t.Fatalf("rebuilding a structural node with its existing operands must return the same pointer")
	}
}

func TestCleanupReclaimsOrphans(t *testing.T) {
	m := NewModule("t")
	i32 := m.IntType(32)
	orphan := m.IntConst(i32, 777)
	m.Cleanup()
	rebuilt := m.IntConst(i32, 777)
	if rebuilt == orphan {
		t.Fatalf("an unreferenced constant should not survive cleanup")
	}
}

func TestCleanupIsIdempotent(t *testing.T) {
	m := NewModule("t")
	i32 := m.IntType(32)
	fnTy := m.FuncType(i32, m.NoRetType())
	fn := m.NewFunc(fnTy, LinkageExported)
	p := m.Param(fn, 0)
	retFn := m.NewFunc(m.FuncType(i32, m.NoRetType()), LinkageImported)
	body := m.Call(retFn, p)
	m.SetOperand(fn, 0, body)

	m.Cleanup()
	bodyAfterFirst := fn.Body()
	m.Cleanup()
	if fn.Body() != bodyAfterFirst {
		t.Fatalf("a second cleanup with no intervening mutation must not change a live node's identity")
	}
	if len(m.Funcs()) != 2 {
		t.Fatalf("exported fn and the function it calls must both survive cleanup, got %d funcs", len(m.Funcs()))
	}
}

// TestBooleanWidth exercises the width-1 boundary behavior: integer width 1
// behaves as boolean, and iadd[1](1,1) == 0.
func TestBooleanWidth(t *testing.T) {
	m := NewModule("t")
	one := m.BoolType()
	a := m.IntConst(one, 1)
	sum := m.IAdd(a, a)
	if sum.Data().Int != 0 {
		t.Fatalf("iadd[1](1,1) must wrap to 0, got %d", sum.Data().Int)
	}
}

// TestFloatZeroIdentity exercises +0 vs -0: distinct constants, but equal
// under fcmpoeq.
func TestFloatZeroIdentity(t *testing.T) {
	m := NewModule("t")
	f64 := m.FloatType(64)
	posZero := m.FloatConst(f64, 0)
	negZero := m.FloatConst(f64, 1<<63)
	if posZero == negZero {
		t.Fatalf("+0 and -0 must be distinct constants")
	}
	cmp := m.FCmpOEq(posZero, negZero)
	if v, ok := isIntConst(cmp); !ok || v == 0 {
		t.Fatalf("fcmpoeq(+0, -0) must fold to true")
	}
}

// TestExtOfUniformArray exercises ext(array(x, x, ..., x), y) == x for any
// index y.
func TestExtOfUniformArray(t *testing.T) {
	m := NewModule("t")
	i32 := m.IntType(32)
	x := m.IntConst(i32, 42)
	arr := m.Array([]*Node{x, x, x})
	idxTy := m.IntType(32)
	for _, idx := range []uint64{0, 1, 2} {
		y := m.IntConst(idxTy, idx)
		if got := m.Ext(arr, y.Data().Int); got != x {
			t.Fatalf("ext(array(x,x,x), %d) must fold to x", idx)
		}
	}
}

// TestLoadForwardsStoredValue exercises the load/store forwarding end-to-end
// scenario: store(m, p, v); load(mem_after_store, p) returns v.
func TestLoadForwardsStoredValue(t *testing.T) {
	m := NewModule("t")
	i32 := m.IntType(32)
	fnTy := m.FuncType(i32, m.NoRetType())
	fn := m.NewFunc(fnTy, LinkageExported)
	start := m.Start(fn)
	v := m.IntConst(i32, 9)
	alloc := m.Alloc(start, i32)
	ptr := m.Ext(alloc, 1)
	afterStore := m.Store(m.Ext(alloc, 0), ptr, v)
	loaded := m.Load(afterStore, ptr, i32)
	if loaded != v {
		t.Fatalf("load immediately after a matching store must forward the stored value")
	}
}

// TestSDivZeroDivisorThreadsErrToken exercises the §9 error-token Open
// Question resolution: dividing by a constant zero must not silently fold
// to the zero constant. It must fold to a (mem, err, result) tuple whose
// mem component passes the incoming token through unchanged and whose err
// component is Top(ErrType()).
func TestSDivZeroDivisorThreadsErrToken(t *testing.T) {
	m := NewModule("t")
	i32 := m.IntType(32)
	fnTy := m.FuncType(i32, m.NoRetType())
	fn := m.NewFunc(fnTy, LinkageExported)
	mem := m.Start(fn)
	ten := m.IntConst(i32, 10)
	zero := m.IntConst(i32, 0)

	div := m.SDiv(mem, ten, zero)
	if got := m.Ext(div, 0); got != mem {
		t.Fatalf("sdiv by zero must still thread the incoming mem token through unchanged")
	}
	if got := m.Ext(div, 1); got != m.Top(m.ErrType()) {
		t.Fatalf("sdiv by zero must produce Top(ErrType()) as its error component")
	}
}

// TestUDivCleanThreadsBotErr exercises the non-trapping half of the same
// resolution: a clean division threads Bot(ErrType()) (no error) alongside
// the computed result.
func TestUDivCleanThreadsBotErr(t *testing.T) {
	m := NewModule("t")
	i32 := m.IntType(32)
	fnTy := m.FuncType(i32, m.NoRetType())
	fn := m.NewFunc(fnTy, LinkageExported)
	mem := m.Start(fn)
	ten := m.IntConst(i32, 10)
	three := m.IntConst(i32, 3)

	div := m.UDiv(mem, ten, three)
	if got := m.Ext(div, 1); got != m.Bot(m.ErrType()) {
		t.Fatalf("a clean udiv must produce Bot(ErrType()) as its error component")
	}
	if got := m.Ext(div, 2); got != m.IntConst(i32, 3) {
		t.Fatalf("udiv(10, 3) must fold its result component to 3, got %v", got)
	}
}

// TestIdentityFolding exercises end-to-end scenario 1: iadd(const[0], x)
// must fold to x itself.
func TestIdentityFolding(t *testing.T) {
	m := NewModule("t")
	i32 := m.IntType(32)
	fnTy := m.FuncType(i32, i32)
	fn := m.NewFunc(fnTy, LinkageExported)
	x := m.Param(fn, 0)
	zero := m.IntConst(i32, 0)
	if got := m.IAdd(zero, x); got != x {
		t.Fatalf("iadd(0, x) must fold to x")
	}
}

// TestParseScenarioSix reproduces spec.md §8's parse/round-trip scenario
// verbatim and checks that the parsed "two" binding is structurally
// identical to what the builder API would produce for the same module.
func TestParseScenarioSix(t *testing.T) {
	src := `int_ty[32] zero = const[0]
int_ty[32] one  = const[1]
int_ty[32] two  = iadd(one, one)
tup_ty(int_ty[32], int_ty[32]) pair = tup(one, two)
func_ty(int_ty[32], tup_ty(int_ty[32], int_ty[32])) f = func(pair)
`
	mod, bag := Parse("scenario6", "scenario6", src, 16)
	if !bag.Empty() {
		t.Fatalf("unexpected parse diagnostics: %s", bag.Render(false))
	}
	if len(mod.Funcs()) != 1 {
		t.Fatalf("expected exactly one function, got %d", len(mod.Funcs()))
	}
	fn := mod.Funcs()[0]
	body := fn.Body()
	if body == nil || body.Tag() != TagTup || body.NumOperands() != 2 {
		t.Fatalf("expected f's body to be a 2-tuple, got %v", body)
	}
	i32 := mod.IntType(32)
	one := mod.IntConst(i32, 1)
	if body.Operand(0) != one {
		t.Fatalf("parsed pair's first element must be the same interned constant as a fresh IntConst(1)")
	}
	freshTwo := mod.IAdd(one, one)
	if body.Operand(1) != freshTwo {
		t.Fatalf("parsed \"two\" must be structurally identical to a freshly built iadd(one, one)")
	}
}
