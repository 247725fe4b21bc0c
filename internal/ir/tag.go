// Package ir implements the node universe, module/interner, and peephole
// simplification of the sea-of-nodes intermediate representation.
package ir

// Tag identifies the kind of a node. The set is closed: every node in a
// module carries exactly one Tag, and behavior that varies per node kind is
// dispatched by switching on it rather than through an interface hierarchy.
type Tag uint8

const (
	TagInvalid Tag = iota

	// Types.
	TagMemTy
	TagNoRetTy
	TagErrTy
	TagPtrTy
	TagIntTy
	TagFloatTy
	TagTupTy
	TagArrayTy
	TagDynArrayTy
	TagFuncTy

	// Constants.
	TagTop
	TagBot
	TagConst

	// Nominals.
	TagFunc
	TagGlobal

	// Integer arithmetic.
	TagIAdd
	TagISub
	TagIMul
	TagSDiv
	TagUDiv
	TagSRem
	TagURem

	// Float arithmetic.
	TagFAdd
	TagFSub
	TagFMul
	TagFDiv
	TagFRem

	// Bitwise.
	TagAnd
	TagOr
	TagXor
	TagShl
	TagLShr
	TagAShr

	// Integer comparisons.
	TagICmpEq
	TagICmpNe
	TagICmpSlt
	TagICmpSle
	TagICmpSgt
	TagICmpSge
	TagICmpUlt
	TagICmpUle
	TagICmpUgt
	TagICmpUge

	// Float comparisons (ordered and unordered).
	TagFCmpOEq
	TagFCmpONe
	TagFCmpOLt
	TagFCmpOLe
	TagFCmpOGt
	TagFCmpOGe
	TagFCmpUEq
	TagFCmpUNe
	TagFCmpULt
	TagFCmpULe
	TagFCmpUGt
	TagFCmpUGe

	// Casts.
	TagITrunc
	TagZExt
	TagSExt
	TagFTrunc
	TagFExt
	TagUToF
	TagSToF
	TagFToU
	TagFToS
	TagBitcast

	// Aggregates.
	TagTup
	TagArray
	TagIns
	TagExt
	TagAddrOf

	// Memory.
	TagAlloc
	TagLoad
	TagStore

	// Control.
	TagParam
	TagStart
	TagCall
	TagLoop
	TagIf

	tagCount
)

var tagNames = [tagCount]string{
	TagInvalid:    "invalid",
	TagMemTy:      "mem_ty",
	TagNoRetTy:    "noret_ty",
	TagErrTy:      "err_ty",
	TagPtrTy:      "ptr_ty",
	TagIntTy:      "int_ty",
	TagFloatTy:    "float_ty",
	TagTupTy:      "tup_ty",
	TagArrayTy:    "array_ty",
	TagDynArrayTy: "dynarray_ty",
	TagFuncTy:     "func_ty",
	TagTop:        "top",
	TagBot:        "bot",
	TagConst:      "const",
	TagFunc:       "func",
	TagGlobal:     "global",
	TagIAdd:       "iadd",
	TagISub:       "isub",
	TagIMul:       "imul",
	TagSDiv:       "sdiv",
	TagUDiv:       "udiv",
	TagSRem:       "srem",
	TagURem:       "urem",
	TagFAdd:       "fadd",
	TagFSub:       "fsub",
	TagFMul:       "fmul",
	TagFDiv:       "fdiv",
	TagFRem:       "frem",
	TagAnd:        "and",
	TagOr:         "or",
	TagXor:        "xor",
	TagShl:        "shl",
	TagLShr:       "lshr",
	TagAShr:       "ashr",
	TagICmpEq:     "icmpeq",
	TagICmpNe:     "icmpne",
	TagICmpSlt:    "icmpslt",
	TagICmpSle:    "icmpsle",
	TagICmpSgt:    "icmpsgt",
	TagICmpSge:    "icmpsge",
	TagICmpUlt:    "icmpult",
	TagICmpUle:    "icmpule",
	TagICmpUgt:    "icmpugt",
	TagICmpUge:    "icmpuge",
	TagFCmpOEq:    "fcmpoeq",
	TagFCmpONe:    "fcmpone",
	TagFCmpOLt:    "fcmpolt",
	TagFCmpOLe:    "fcmpole",
	TagFCmpOGt:    "fcmpogt",
	TagFCmpOGe:    "fcmpoge",
	TagFCmpUEq:    "fcmpueq",
	TagFCmpUNe:    "fcmpune",
	TagFCmpULt:    "fcmpult",
	TagFCmpULe:    "fcmpule",
	TagFCmpUGt:    "fcmpugt",
	TagFCmpUGe:    "fcmpuge",
	TagITrunc:     "itrunc",
	TagZExt:       "zext",
	TagSExt:       "sext",
	TagFTrunc:     "ftrunc",
	TagFExt:       "fext",
	TagUToF:       "utof",
	TagSToF:       "stof",
	TagFToU:       "ftou",
	TagFToS:       "ftos",
	TagBitcast:    "bitcast",
	TagTup:        "tup",
	TagArray:      "array",
	TagIns:        "ins",
	TagExt:        "ext",
	TagAddrOf:     "addrof",
	TagAlloc:      "alloc",
	TagLoad:       "load",
	TagStore:      "store",
	TagParam:      "param",
	TagStart:      "start",
	TagCall:       "call",
	TagLoop:       "loop",
	TagIf:         "if",
}

func (t Tag) String() string {
	if t >= tagCount {
		return "unknown"
	}
	return tagNames[t]
}

// IsType reports whether t identifies a type node.
func (t Tag) IsType() bool {
	switch t {
	case TagMemTy, TagNoRetTy, TagErrTy, TagPtrTy, TagIntTy, TagFloatTy,
		TagTupTy, TagArrayTy, TagDynArrayTy, TagFuncTy:
		return true
	}
	return false
}

// IsNominal reports whether t identifies a node with identity independent
// of its fields, whose operands are mutated after construction.
func (t Tag) IsNominal() bool {
	return t == TagFunc || t == TagGlobal
}

// IsIArithOp reports whether t is an integer arithmetic operator. The
// division/remainder tags are deliberately excluded: they thread a mem
// operand and can trap on a zero divisor, so they are neither invariant
// nor speculatable the way add/sub/mul are.
func (t Tag) IsIArithOp() bool {
	switch t {
	case TagIAdd, TagISub, TagIMul:
		return true
	}
	return false
}

// IsIDivOp reports whether t is an integer division or remainder operator.
func (t Tag) IsIDivOp() bool {
	switch t {
	case TagSDiv, TagUDiv, TagSRem, TagURem:
		return true
	}
	return false
}

// IsFArithOp reports whether t is a float arithmetic operator.
func (t Tag) IsFArithOp() bool {
	switch t {
	case TagFAdd, TagFSub, TagFMul, TagFDiv, TagFRem:
		return true
	}
	return false
}

// IsBitwiseOp reports whether t is a bitwise or shift operator.
func (t Tag) IsBitwiseOp() bool {
	switch t {
	case TagAnd, TagOr, TagXor, TagShl, TagLShr, TagAShr:
		return true
	}
	return false
}

// IsShiftOp reports whether t is a shift operator.
func (t Tag) IsShiftOp() bool {
	switch t {
	case TagShl, TagLShr, TagAShr:
		return true
	}
	return false
}

// IsICmpOp reports whether t is an integer comparison.
func (t Tag) IsICmpOp() bool {
	switch t {
	case TagICmpEq, TagICmpNe, TagICmpSlt, TagICmpSle, TagICmpSgt, TagICmpSge,
		TagICmpUlt, TagICmpUle, TagICmpUgt, TagICmpUge:
		return true
	}
	return false
}

// IsFCmpOp reports whether t is a float comparison.
func (t Tag) IsFCmpOp() bool {
	switch t {
	case TagFCmpOEq, TagFCmpONe, TagFCmpOLt, TagFCmpOLe, TagFCmpOGt, TagFCmpOGe,
		TagFCmpUEq, TagFCmpUNe, TagFCmpULt, TagFCmpULe, TagFCmpUGt, TagFCmpUGe:
		return true
	}
	return false
}

// IsCastOp reports whether t is a cast operator.
func (t Tag) IsCastOp() bool {
	switch t {
	case TagITrunc, TagZExt, TagSExt, TagFTrunc, TagFExt, TagUToF, TagSToF,
		TagFToU, TagFToS, TagBitcast:
		return true
	}
	return false
}

// IsAggregateOp reports whether t builds or projects an aggregate value.
func (t Tag) IsAggregateOp() bool {
	switch t {
	case TagTup, TagArray, TagIns, TagExt, TagAddrOf:
		return true
	}
	return false
}

// IsMemOp reports whether t reads or writes memory.
func (t Tag) IsMemOp() bool {
	switch t {
	case TagAlloc, TagLoad, TagStore:
		return true
	}
	return false
}

// IsControlOp reports whether t participates in control flow.
func (t Tag) IsControlOp() bool {
	switch t {
	case TagParam, TagStart, TagCall, TagLoop, TagIf:
		return true
	}
	return false
}

// Linkage is the data payload of a nominal node.
type Linkage uint8

const (
	LinkageInternal Linkage = iota
	LinkageExported
	LinkageImported
)

func (l Linkage) String() string {
	switch l {
	case LinkageInternal:
		return "internal"
	case LinkageExported:
		return "exported"
	case LinkageImported:
		return "imported"
	default:
		return "internal"
	}
}

// FPFlags controls which float-arithmetic identities are legal to apply.
// Only FiniteOnly is modeled: it licenses the identities that assume
// non-NaN, non-infinite operands (spec.md §4.1).
type FPFlags uint8

const (
	FPFlagFiniteOnly FPFlags = 1 << iota
)

func (f FPFlags) FiniteOnly() bool { return f&FPFlagFiniteOnly != 0 }
