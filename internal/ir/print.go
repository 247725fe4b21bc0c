package ir

import (
	"fmt"
	"io"
	"math"
	"strings"
)

// This file implements component J: the textual printer. It walks a
// module's nominals and, for every node reachable from them, emits one
// `<binding>` line in the grammar of SPEC_FULL §4.9, producers before
// consumers — the same ordering discipline the scheduler's post-order
// driver uses (spec.md §4.7).

// Print writes every reachable binding of m to w in the textual grammar.
func (m *Module) Print(w io.Writer) error {
	p := &printer{mod: m, names: make(map[*Node]string), visited: make(map[*Node]bool)}
	for _, fn := range m.funcs {
		p.order(fn)
	}
	for _, g := range m.globals {
		p.order(g)
	}
	for _, n := range p.lines {
		if _, err := fmt.Fprintln(w, n); err != nil {
			return err
		}
	}
	return nil
}

type printer struct {
	mod     *Module
	names   map[*Node]string
	visited map[*Node]bool
	lines   []string
}

func (p *printer) nameOf(n *Node) string {
	if name, ok := p.names[n]; ok {
		return name
	}
	name := fmt.Sprintf("%%%d", n.id)
	p.names[n] = name
	return name
}

// order performs a post-order (producers-before-consumers) walk, emitting
// one binding line per structural or nominal node the first time it's
// visited.
func (p *printer) order(n *Node) {
	if n == nil || p.visited[n] {
		return
	}
	p.visited[n] = true
	if n.typ != nil {
		p.order(n.typ)
	}
	for _, op := range n.operands {
		p.order(op)
	}
	p.lines = append(p.lines, p.formatBinding(n))
}

func (p *printer) formatBinding(n *Node) string {
	return fmt.Sprintf("%s %s = %s", p.formatType(n.typ), p.nameOf(n), p.formatExpr(n))
}

func (p *printer) formatType(t *Node) string {
	if t == nil {
		return "type"
	}
	return p.nameOf(t)
}

func (p *printer) formatExpr(n *Node) string {
	var b strings.Builder
	b.WriteString(n.tag.String())
	if data := p.formatData(n); data != "" {
		b.WriteByte('[')
		b.WriteString(data)
		b.WriteByte(']')
	}
	if len(n.operands) > 0 || n.tag.IsAggregateOp() || n.tag == TagTup || n.tag == TagArray {
		b.WriteByte('(')
		for i, op := range n.operands {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.nameOf(op))
		}
		b.WriteByte(')')
	}
	return b.String()
}

func (p *printer) formatData(n *Node) string {
	switch {
	case n.tag == TagIntTy, n.tag == TagFloatTy:
		return fmt.Sprintf("%d", n.data.Width)
	case n.tag == TagArrayTy:
		return fmt.Sprintf("%d", n.data.Dim)
	case n.tag == TagConst && n.typ.tag == TagIntTy:
		return fmt.Sprintf("%d", n.data.Int)
	case n.tag == TagConst && n.typ.tag == TagFloatTy:
		return formatFloatBits(n.data.Float, n.typ.data.Width)
	case n.tag.IsNominal():
		return n.data.Linkage.String()
	case n.tag.IsFArithOp() && n.data.FPFlags.FiniteOnly():
		return "finite"
	case n.tag == TagIns, n.tag == TagExt, n.tag == TagAddrOf, n.tag == TagParam:
		return fmt.Sprintf("%d", n.data.Dim)
	default:
		return ""
	}
}

func formatFloatBits(bits uint64, width uint32) string {
	if width == 64 {
		return formatHexFloat(math.Float64frombits(bits))
	}
	return formatHexFloat(float64(math.Float32frombits(uint32(bits))))
}

func formatHexFloat(f float64) string {
	return fmt.Sprintf("%x", f)
}
