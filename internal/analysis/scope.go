// Package analysis implements the per-function analyses built on top of
// *ir.Module: scope delimitation, control-flow graph construction,
// dominator/post-dominator trees, Havlak loop nesting, live-range
// liveness, and the global code scheduler with its block-list pool.
package analysis

import "github.com/madmann91/fir/internal/ir"

// Scope is the set of nodes reachable from a function's parameters through
// the uses relation, stopping at the function itself (spec.md §4.2). It
// delimits which nodes a per-function analysis may reference.
type Scope struct {
	fn      *ir.Node
	members map[*ir.Node]bool
}

// BuildScope computes the set of nodes transitively reachable via uses from
// every param(F) and start(F) node built so far, stopping at F itself
// (spec.md §4.2). start(F) seeds the walk alongside param(F) because it is
// F's other entry value — the initial memory token every side-effecting
// block threads forward — and a block that only consumes memory, never the
// parameter, must still be in scope.
func BuildScope(fn *ir.Node) *Scope {
	s := &Scope{fn: fn, members: make(map[*ir.Node]bool)}
	var stack []*ir.Node
	for u := fn.Uses(); u != nil; u = u.Next {
		if u.User.Tag() == ir.TagParam || u.User.Tag() == ir.TagStart {
			s.members[u.User] = true
			stack = append(stack, u.User)
		}
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for u := n.Uses(); u != nil; u = u.Next {
			if u.User == fn || s.members[u.User] {
				continue
			}
			s.members[u.User] = true
			stack = append(stack, u.User)
		}
	}
	return s
}

// Contains reports whether n is a member of the scope, in O(1).
func (s *Scope) Contains(n *ir.Node) bool { return s.members[n] }

// Func returns the function the scope was built for.
func (s *Scope) Func() *ir.Node { return s.fn }
