package analysis

// Liveness tracks, for one value across a schedule, which blocks it is
// live through versus live only at its use points — the distinction the
// scheduler needs to avoid hoisting a definition into a block where it
// would be live on only part of the block's execution paths (spec.md §4.7).
//
// partiallyLive holds blocks reached while walking up from a use toward the
// def; fullyLive holds blocks where every exit edge reaches a live use. Each
// use block seeds its own entry in fullyLive as a base case, and Finalize's
// fixed point then propagates it outward to preds whose every successor is
// fully live.
type Liveness struct {
	dom           *DomTree
	partiallyLive map[*Block]bool
	fullyLive     map[*Block]bool
}

// NewLiveness returns a liveness tracker scoped to one dominator tree. Reset
// and reuse it across scheduling queries for different values.
func NewLiveness(dom *DomTree) *Liveness {
	return &Liveness{
		dom:           dom,
		partiallyLive: make(map[*Block]bool),
		fullyLive:     make(map[*Block]bool),
	}
}

// Reset clears all marks so the tracker can be reused for another value.
func (lv *Liveness) Reset() {
	for k := range lv.partiallyLive {
		delete(lv.partiallyLive, k)
	}
	for k := range lv.fullyLive {
		delete(lv.fullyLive, k)
	}
}

// MarkBlocks records that the value is used in use and defined in def,
// walking predecessors from use back toward (but not through) def and
// marking every block on the way partially live.
func (lv *Liveness) MarkBlocks(def, use *Block) {
	lv.fullyLive[use] = true
	if use == def {
		return
	}
	var stack []*Block
	stack = append(stack, use)
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if b == def || lv.partiallyLive[b] {
			continue
		}
		lv.partiallyLive[b] = true
		for _, p := range b.Preds {
			if p != def {
				stack = append(stack, p)
			}
		}
	}
}

// Finalize runs the fixed-point pass classifying each partially-live block
// as fully live when every one of its successors is already fully live, per
// spec.md §4.7. A block with a successor that is merely partially live is
// not fully live: some path out of that successor may still miss the use.
func (lv *Liveness) Finalize() {
	changed := true
	for changed {
		changed = false
		for b := range lv.partiallyLive {
			if lv.fullyLive[b] {
				continue
			}
			allLive := len(b.Succs) > 0
			for _, s := range b.Succs {
				if !lv.fullyLive[s] {
					allLive = false
					break
				}
			}
			if allLive {
				lv.fullyLive[b] = true
				changed = true
			}
		}
	}
}

// IsPartiallyLive reports whether the value is live somewhere within b.
func (lv *Liveness) IsPartiallyLive(b *Block) bool { return lv.partiallyLive[b] }

// IsFullyLive reports whether the value is live on every path through b.
func (lv *Liveness) IsFullyLive(b *Block) bool { return lv.fullyLive[b] }
