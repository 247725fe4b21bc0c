package ir

// Data is the tag-specific scalar payload of a node. Exactly one field is
// meaningful for any given tag; which one is determined by the tag alone
// (spec.md §3). Keeping every field live with a closed discriminant (Tag)
// rather than an interface{} lets equality and hashing stay trivial and
// branch-free.
type Data struct {
	Linkage Linkage // nominal nodes
	FPFlags FPFlags // float arithmetic
	Int     uint64  // const of integer type: the value, masked to the width
	Float   uint64  // const of float type: raw IEEE-754 bit pattern
	Width   uint32  // int_ty / float_ty: bitwidth
	Dim     uint64  // array_ty: fixed dimension; ins/ext/addrof/param: index
}

// Use is one edge from a user node's operand slot into the node it uses.
// Uses form an intrusive, singly linked LIFO list rooted at the used node;
// the module that owns the used node exclusively mutates this list and
// recycles Use records through a freelist (spec.md §3, §9).
type Use struct {
	User  *Node
	Index int
	Next  *Use
}

// Node is the universal IR entity: types, constants, nominals, and every
// operator are all represented by this one struct, discriminated by Tag.
// Structural nodes (Tag.IsNominal() == false) are immutable and hash-consed
// once inserted; nominal nodes have their operands slice mutated in place
// by Module.SetOperand.
type Node struct {
	id       uint64
	tag      Tag
	data     Data
	typ      *Node   // nil only for Node itself being a type
	operands []*Node
	uses     *Use
	mod      *Module
	debugID  uint64 // opaque debug-info reference; 0 means none
}

// ID returns the node's creation-order identifier, unique within its module.
func (n *Node) ID() uint64 { return n.id }

// Tag returns the node's discriminant.
func (n *Node) Tag() Tag { return n.tag }

// Data returns the node's scalar payload.
func (n *Node) Data() Data { return n.data }

// Type returns the node's type node, or nil if n is itself a type.
func (n *Node) Type() *Node { return n.typ }

// Operands returns the node's operand list. Callers must not mutate the
// returned slice.
func (n *Node) Operands() []*Node { return n.operands }

// Operand returns the i'th operand.
func (n *Node) Operand(i int) *Node { return n.operands[i] }

// NumOperands returns the number of operands.
func (n *Node) NumOperands() int { return len(n.operands) }

// Module returns the module that owns n.
func (n *Node) Module() *Module { return n.mod }

// DebugID returns the opaque debug-info reference attached to n, or 0.
func (n *Node) DebugID() uint64 { return n.debugID }

// SetDebugID attaches an opaque debug-info reference to n. The core never
// interprets this value; it only threads it between the parser and an
// external debug-info pool (SPEC_FULL §4.12).
func (n *Node) SetDebugID(id uint64) { n.debugID = id }

// IsType reports whether n is a type node.
func (n *Node) IsType() bool { return n.tag.IsType() }

// IsNominal reports whether n is a function or global.
func (n *Node) IsNominal() bool { return n.tag.IsNominal() }

// Uses returns the head of n's use list. The list is LIFO (most recent use
// first); clients must not depend on the order (spec.md §5).
func (n *Node) Uses() *Use { return n.uses }

// NumUses counts n's current uses in O(uses).
func (n *Node) NumUses() int {
	count := 0
	for u := n.uses; u != nil; u = u.Next {
		count++
	}
	return count
}

// IsInvariant reports whether n's value never depends on control flow: all
// types, top/bot, constants, and arithmetic over only invariant operands.
func (n *Node) IsInvariant() bool {
	switch {
	case n.tag.IsType(), n.tag == TagTop, n.tag == TagBot, n.tag == TagConst:
		return true
	case n.tag.IsNominal(), n.tag.IsControlOp():
		return false
	}
	for _, op := range n.operands {
		if !op.IsInvariant() {
			return false
		}
	}
	return true
}

// IsSpeculatable reports whether evaluating n has no observable side effect
// and it may therefore be hoisted out of loops by the scheduler. Memory
// operations, calls, the control tags, and integer division/remainder (which
// carry a mem operand and can trap on a zero divisor) are never
// speculatable; pure value-producing operators are.
func (n *Node) IsSpeculatable() bool {
	switch {
	case n.tag.IsType(), n.tag == TagTop, n.tag == TagBot, n.tag == TagConst:
		return true
	case n.tag.IsIDivOp():
		return false
	case n.tag.IsIArithOp(), n.tag.IsFArithOp(), n.tag.IsBitwiseOp(),
		n.tag.IsICmpOp(), n.tag.IsFCmpOp(), n.tag.IsCastOp(),
		n.tag.IsAggregateOp():
		return true
	default:
		return false
	}
}

// InSchedule reports whether n must be assigned to a block by the
// scheduler: not invariant, not a type, and not a nominal (spec.md §4.7).
func (n *Node) InSchedule() bool {
	return !n.IsInvariant() && !n.tag.IsType() && !n.tag.IsNominal()
}

// addUse records that user references n at operand index idx.
func (m *Module) addUse(n, user *Node, idx int) {
	u := m.allocUse()
	u.User = user
	u.Index = idx
	u.Next = n.uses
	n.uses = u
}

// removeUse retracts the use of n by user at operand index idx. It is a
// precondition violation for the edge not to exist.
func (m *Module) removeUse(n, user *Node, idx int) {
	var prev *Use
	for u := n.uses; u != nil; u = u.Next {
		if u.User == user && u.Index == idx {
			if prev == nil {
				n.uses = u.Next
			} else {
				prev.Next = u.Next
			}
			m.freeUse(u)
			return
		}
		prev = u
	}
	panic(preconditionf("removeUse: no use of node %d by node %d at index %d", n.id, user.id, idx))
}
