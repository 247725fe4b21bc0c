package ir

import (
	"fmt"

	"github.com/google/uuid"
)

// internKey is the hash-consing key for a structural node: spec.md §4.1
// defines it as (tag, type, tag-specific data slice, operand ids). Operand
// identity is folded into a single string so the whole key stays
// comparable and can be a plain Go map key.
type internKey struct {
	tag  Tag
	typ  uint64
	data Data
	ops  string
}

func operandsKey(operands []*Node) string {
	if len(operands) == 0 {
		return ""
	}
	buf := make([]byte, len(operands)*8)
	for i, op := range operands {
		id := op.id
		for b := 0; b < 8; b++ {
			buf[i*8+b] = byte(id)
			id >>= 8
		}
	}
	return string(buf)
}

func dataSlice(tag Tag, data Data) Data {
	// The intern key only looks at the field(s) that are meaningful for
	// tag; zeroing the rest keeps two structurally-equal nodes built with
	// different "garbage" in the unused fields from hashing differently.
	switch {
	case tag.IsNominal():
		return Data{Linkage: data.Linkage}
	case tag.IsFArithOp():
		return Data{FPFlags: data.FPFlags}
	case tag == TagConst:
		return data // caller already sets only the relevant member
	case tag == TagArrayTy:
		return Data{Dim: data.Dim}
	case tag == TagIntTy, tag == TagFloatTy:
		return Data{Width: data.Width}
	case tag == TagIns, tag == TagExt, tag == TagAddrOf, tag == TagParam:
		return Data{Dim: data.Dim}
	default:
		return Data{}
	}
}

// Module owns every node it allocates: the monotone id counter, the
// structural interning table, the nominal (function/global) lists, the
// use-record freelist, and a handful of cached singleton types and
// constants (spec.md §3 "Module").
type Module struct {
	name    string
	buildID uuid.UUID

	nextID uint64
	arena  arena
	intern map[internKey]*Node

	funcs   []*Node
	globals []*Node

	useFreelist *Use

	// Singletons.
	memTy    *Node
	noRetTy  *Node
	errTy    *Node
	ptrTy    *Node
	unitTy   *Node
	boolTy   *Node
	intTys   map[uint32]*Node
	floatTys map[uint32]*Node
}

// NewModule creates an empty module with its singleton types pre-seeded.
func NewModule(name string) *Module {
	m := &Module{
		name:     name,
		buildID:  uuid.New(),
		intern:   make(map[internKey]*Node),
		intTys:   make(map[uint32]*Node),
		floatTys: make(map[uint32]*Node),
	}
	m.memTy = m.newTypeSingleton(TagMemTy, Data{})
	m.noRetTy = m.newTypeSingleton(TagNoRetTy, Data{})
	m.errTy = m.newTypeSingleton(TagErrTy, Data{})
	m.ptrTy = m.newTypeSingleton(TagPtrTy, Data{})
	m.unitTy = m.TupleType(nil)
	m.boolTy = m.IntType(1)
	return m
}

// Name returns the module's name.
func (m *Module) Name() string { return m.name }

// BuildID returns the module's build identifier, minted once at creation
// and used to key debug-info records and signed artifacts (SPEC_FULL
// §4.12, §4.14).
func (m *Module) BuildID() uuid.UUID { return m.buildID }

// Destroy releases every node the module owns. After Destroy the module
// must not be used.
func (m *Module) Destroy() {
	m.arena.destroy()
	m.intern = nil
	m.funcs = nil
	m.globals = nil
	m.useFreelist = nil
}

// Funcs returns the module's function nominals in creation order.
func (m *Module) Funcs() []*Node { return m.funcs }

// Globals returns the module's global nominals in creation order.
func (m *Module) Globals() []*Node { return m.globals }

func (m *Module) allocID() uint64 {
	m.nextID++
	return m.nextID
}

func (m *Module) allocUse() *Use {
	if u := m.useFreelist; u != nil {
		m.useFreelist = u.Next
		*u = Use{}
		return u
	}
	return &Use{}
}

func (m *Module) freeUse(u *Use) {
	u.User = nil
	u.Next = m.useFreelist
	m.useFreelist = u
}

func (m *Module) newTypeSingleton(tag Tag, data Data) *Node {
	return m.arena.alloc(&Node{id: m.allocID(), tag: tag, data: data, mod: m})
}

// internStructural looks up or inserts a structural node. It never
// observes a half-constructed node: the node returned is either an
// existing interned one, or freshly built with every use edge already
// recorded (spec.md §4.1 "Failure model").
func (m *Module) internStructural(tag Tag, typ *Node, data Data, operands []*Node) *Node {
	var typID uint64
	if typ != nil {
		typID = typ.id
	}
	key := internKey{tag: tag, typ: typID, data: dataSlice(tag, data), ops: operandsKey(operands)}
	if existing, ok := m.intern[key]; ok {
		return existing
	}
	n := m.arena.alloc(&Node{
		id:       m.allocID(),
		tag:      tag,
		data:     data,
		typ:      typ,
		operands: append([]*Node(nil), operands...),
		mod:      m,
	})
	for i, op := range n.operands {
		m.addUse(op, n, i)
	}
	m.intern[key] = n
	return n
}

// rebuildStructural returns the interned node for tag/typ/data/operands, identical to
// internStructural but named to match the "Rebuild" public entry point
// passes use when they already have a tag in hand (spec.md §4.1).
func (m *Module) rebuildStructural(orig *Node, typ *Node, operands []*Node) *Node {
	return m.internStructural(orig.tag, typ, orig.data, operands)
}

func preconditionf(format string, args ...any) error {
	return &preconditionError{msg: fmt.Sprintf(format, args...)}
}

type preconditionError struct{ msg string }

func (e *preconditionError) Error() string { return e.msg }
