package ir

import (
	"math"
	"strconv"
	"strings"

	"github.com/madmann91/fir/internal/diag"
)

// This file implements the parser half of component I. Parsing happens in
// four stages: parseModule turns the token stream into a pure syntax
// tree with no Module interaction; pass one of Parse walks that tree and
// pre-creates every func/global nominal (so a recursive call or a mutually
// referencing global resolves); pass two evaluates every other binding's
// right-hand side against the builder API in source order; pass three
// attaches nominal bodies/initializers, which may therefore name bindings
// defined later in the file.

var typeKeywords = map[string]bool{
	"mem_ty": true, "noret_ty": true, "err_ty": true, "ptr_ty": true,
	"int_ty": true, "float_ty": true, "tup_ty": true, "array_ty": true,
	"dynarray_ty": true, "func_ty": true,
}

type typeAST struct {
	tag      string // type keyword, or "" if identRef is set
	identRef string
	data     *token
	elems    []*typeAST
	line     int
	col      int
}

type operandAST struct {
	typ   *typeAST // non-nil if this operand is an inline type
	ident string   // non-empty if this operand is an identifier reference
}

type exprAST struct {
	tag      string
	data     *token
	operands []operandAST
	line     int
	col      int
}

type bindingAST struct {
	isTypeBinding bool
	declType      *typeAST
	ident         string
	expr          exprAST
	line, col     int
}

type parser struct {
	file  string
	toks  []token
	pos   int
	bag   *diag.Bag
	fatal bool
}

func newParser(file string, toks []token, bag *diag.Bag) *parser {
	return &parser{file: file, toks: toks, bag: bag}
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) {
	d := diag.Atf(diag.Parse, p.file, t.line, t.col, format, args...)
	if full := p.bag.Add(d); full {
		p.fatal = true
	}
}

// syncToNextBinding skips tokens until it finds a plausible binding start,
// after a parse error, so the bag can accumulate further diagnostics
// instead of stopping at the first one (spec.md §7).
func (p *parser) syncToNextBinding() {
	for p.cur().kind != tokEOF {
		if p.cur().kind == tokEquals {
			p.advance()
			return
		}
		p.advance()
	}
}

func (p *parser) parseModule() []bindingAST {
	var bindings []bindingAST
	for p.cur().kind != tokEOF && !p.fatal {
		b, ok := p.parseBinding()
		if ok {
			bindings = append(bindings, b)
		}
	}
	return bindings
}

func (p *parser) parseBinding() (bindingAST, bool) {
	startTok := p.cur()
	if startTok.kind != tokIdent {
		p.errorf(startTok, "expected a type or 'type' keyword, got %q", startTok.text)
		p.syncToNextBinding()
		return bindingAST{}, false
	}
	b := bindingAST{line: startTok.line, col: startTok.col}
	if startTok.text == "type" {
		p.advance()
		b.isTypeBinding = true
	} else {
		t, ok := p.parseType()
		if !ok {
			p.syncToNextBinding()
			return bindingAST{}, false
		}
		b.declType = t
	}
	identTok := p.advance()
	if identTok.kind != tokIdent {
		p.errorf(identTok, "expected an identifier")
		p.syncToNextBinding()
		return bindingAST{}, false
	}
	b.ident = identTok.text
	eq := p.advance()
	if eq.kind != tokEquals {
		p.errorf(eq, "expected '='")
		p.syncToNextBinding()
		return bindingAST{}, false
	}
	expr, ok := p.parseExpr()
	if !ok {
		return bindingAST{}, false
	}
	b.expr = expr
	return b, true
}

func (p *parser) parseType() (*typeAST, bool) {
	tok := p.cur()
	if tok.kind != tokIdent {
		p.errorf(tok, "expected a type")
		return nil, false
	}
	if !typeKeywords[tok.text] {
		p.advance()
		return &typeAST{identRef: tok.text, line: tok.line, col: tok.col}, true
	}
	p.advance()
	ast := &typeAST{tag: tok.text, line: tok.line, col: tok.col}
	switch tok.text {
	case "mem_ty", "noret_ty", "err_ty", "ptr_ty":
		// no payload
	case "int_ty", "float_ty":
		if !p.expect(tokLBracket) {
			return nil, false
		}
		d := p.advance()
		ast.data = &d
		if !p.expect(tokRBracket) {
			return nil, false
		}
	case "tup_ty":
		if !p.expect(tokLParen) {
			return nil, false
		}
		for p.cur().kind != tokRParen {
			elem, ok := p.parseType()
			if !ok {
				return nil, false
			}
			ast.elems = append(ast.elems, elem)
			if p.cur().kind == tokComma {
				p.advance()
			}
		}
		p.advance()
	case "array_ty":
		if !p.expect(tokLBracket) {
			return nil, false
		}
		d := p.advance()
		ast.data = &d
		if !p.expect(tokRBracket) || !p.expect(tokLParen) {
			return nil, false
		}
		elem, ok := p.parseType()
		if !ok {
			return nil, false
		}
		ast.elems = append(ast.elems, elem)
		if !p.expect(tokRParen) {
			return nil, false
		}
	case "dynarray_ty":
		if !p.expect(tokLParen) {
			return nil, false
		}
		elem, ok := p.parseType()
		if !ok {
			return nil, false
		}
		ast.elems = append(ast.elems, elem)
		if !p.expect(tokRParen) {
			return nil, false
		}
	case "func_ty":
		if !p.expect(tokLParen) {
			return nil, false
		}
		param, ok := p.parseType()
		if !ok {
			return nil, false
		}
		if !p.expect(tokComma) {
			return nil, false
		}
		ret, ok := p.parseType()
		if !ok {
			return nil, false
		}
		ast.elems = []*typeAST{param, ret}
		if !p.expect(tokRParen) {
			return nil, false
		}
	}
	return ast, true
}

func (p *parser) expect(kind tokenKind) bool {
	if p.cur().kind != kind {
		p.errorf(p.cur(), "unexpected token %q", p.cur().text)
		return false
	}
	p.advance()
	return true
}

func (p *parser) parseExpr() (exprAST, bool) {
	tagTok := p.advance()
	if tagTok.kind != tokIdent {
		p.errorf(tagTok, "expected an operator name")
		p.syncToNextBinding()
		return exprAST{}, false
	}
	e := exprAST{tag: tagTok.text, line: tagTok.line, col: tagTok.col}
	if p.cur().kind == tokLBracket {
		p.advance()
		d := p.advance()
		e.data = &d
		if !p.expect(tokRBracket) {
			return exprAST{}, false
		}
	}
	if p.cur().kind == tokLParen {
		p.advance()
		for p.cur().kind != tokRParen {
			op, ok := p.parseOperand()
			if !ok {
				return exprAST{}, false
			}
			e.operands = append(e.operands, op)
			if p.cur().kind == tokComma {
				p.advance()
			}
		}
		p.advance()
	}
	return e, true
}

func (p *parser) parseOperand() (operandAST, bool) {
	tok := p.cur()
	if tok.kind == tokIdent && typeKeywords[tok.text] {
		t, ok := p.parseType()
		if !ok {
			return operandAST{}, false
		}
		return operandAST{typ: t}, true
	}
	if tok.kind != tokIdent {
		p.errorf(tok, "expected an operand")
		return operandAST{}, false
	}
	p.advance()
	return operandAST{ident: tok.text}, true
}

// env is the semantic resolution environment threaded through both passes.
type env struct {
	mod   *Module
	nodes map[string]*Node
}

// Parse parses a textual module source into a fresh *Module, accumulating
// parse errors in the returned bag (capped at maxDiagnostics). Callers
// check bag.Empty() for success; the module is left valid but possibly
// partial when the bag is non-empty, per spec.md §7.
func Parse(name, file, src string, maxDiagnostics int) (*Module, *diag.Bag) {
	bag := diag.NewBag(maxDiagnostics)
	toks := tokenize(file, src)
	p := newParser(file, toks, bag)
	bindings := p.parseModule()

	m := NewModule(name)
	e := &env{mod: m, nodes: make(map[string]*Node)}

	// Pass one: pre-create nominals so forward references inside their own
	// bodies resolve.
	for i := range bindings {
		b := &bindings[i]
		if b.isTypeBinding {
			continue
		}
		if b.expr.tag != "func" && b.expr.tag != "global" {
			continue
		}
		declType, ok := e.resolveType(b.declType, p, b.line, b.col)
		if !ok {
			continue
		}
		linkage := parseLinkage(b.expr.data)
		var n *Node
		if b.expr.tag == "func" {
			n = m.NewFunc(declType, linkage)
		} else {
			// A global's declared type is ptr_ty; its pointee type is the
			// operand recorded textually as the first operand of "global".
			pointeeTy := m.UnitType()
			if len(b.expr.operands) > 0 && b.expr.operands[0].typ != nil {
				if t, ok := e.resolveType(b.expr.operands[0].typ, p, b.line, b.col); ok {
					pointeeTy = t
				}
			}
			n = m.NewGlobal(pointeeTy, linkage)
		}
		e.nodes[b.ident] = n
	}

	// Pass two: evaluate every other binding's right-hand side in source
	// order.
	for i := range bindings {
		b := &bindings[i]
		if !b.isTypeBinding && (b.expr.tag == "func" || b.expr.tag == "global") {
			continue
		}
		node, ok := e.evalBinding(b, p)
		if !ok {
			continue
		}
		if node != nil {
			e.nodes[b.ident] = node
		}
	}

	// Pass three: attach nominal bodies/initializers once every binding in
	// the file is bound, so they may name bindings that appear later.
	for i := range bindings {
		b := &bindings[i]
		if !b.isTypeBinding && (b.expr.tag == "func" || b.expr.tag == "global") {
			e.evalBinding(b, p)
		}
	}
	return m, bag
}

func parseLinkage(tok *token) Linkage {
	if tok == nil {
		return LinkageInternal
	}
	switch tok.text {
	case "exported":
		return LinkageExported
	case "imported":
		return LinkageImported
	default:
		return LinkageInternal
	}
}

func (e *env) resolveType(ast *typeAST, p *parser, line, col int) (*Node, bool) {
	if ast == nil {
		return e.mod.UnitType(), true
	}
	if ast.tag == "" {
		n, ok := e.nodes[ast.identRef]
		if !ok || !n.IsType() {
			p.errorf(token{line: ast.line, col: ast.col, text: ast.identRef}, "undefined type %q", ast.identRef)
			return nil, false
		}
		return n, true
	}
	m := e.mod
	switch ast.tag {
	case "mem_ty":
		return m.MemType(), true
	case "noret_ty":
		return m.NoRetType(), true
	case "err_ty":
		return m.ErrType(), true
	case "ptr_ty":
		return m.PtrType(), true
	case "int_ty":
		w, ok := parseUintToken(ast.data, p)
		if !ok {
			return nil, false
		}
		return m.IntType(uint32(w)), true
	case "float_ty":
		w, ok := parseUintToken(ast.data, p)
		if !ok {
			return nil, false
		}
		return m.FloatType(uint32(w)), true
	case "tup_ty":
		elems := make([]*Node, len(ast.elems))
		for i, el := range ast.elems {
			t, ok := e.resolveType(el, p, line, col)
			if !ok {
				return nil, false
			}
			elems[i] = t
		}
		return m.TupleType(elems), true
	case "array_ty":
		dim, ok := parseUintToken(ast.data, p)
		if !ok {
			return nil, false
		}
		elem, ok := e.resolveType(ast.elems[0], p, line, col)
		if !ok {
			return nil, false
		}
		return m.ArrayType(dim, elem), true
	case "dynarray_ty":
		elem, ok := e.resolveType(ast.elems[0], p, line, col)
		if !ok {
			return nil, false
		}
		return m.DynArrayType(elem), true
	case "func_ty":
		param, ok := e.resolveType(ast.elems[0], p, line, col)
		if !ok {
			return nil, false
		}
		ret, ok := e.resolveType(ast.elems[1], p, line, col)
		if !ok {
			return nil, false
		}
		return m.FuncType(param, ret), true
	}
	return nil, false
}

func parseUintToken(tok *token, p *parser) (uint64, bool) {
	if tok == nil {
		p.errorf(token{}, "expected an integer")
		return 0, false
	}
	v, err := parseIntLiteral(tok.raw)
	if err != nil {
		p.errorf(*tok, "invalid integer literal %q", tok.raw)
		return 0, false
	}
	return v, true
}

func parseIntLiteral(raw string) (uint64, error) {
	neg := strings.HasPrefix(raw, "-")
	if neg {
		raw = raw[1:]
	}
	base := 10
	switch {
	case strings.HasPrefix(raw, "0x"), strings.HasPrefix(raw, "0X"):
		base = 16
		raw = raw[2:]
	case strings.HasPrefix(raw, "0b"), strings.HasPrefix(raw, "0B"):
		base = 2
		raw = raw[2:]
	}
	v, err := strconv.ParseUint(raw, base, 64)
	if err != nil {
		return 0, err
	}
	if neg {
		return uint64(-int64(v)), nil
	}
	return v, nil
}

func parseFloatLiteral(raw string, negate bool) (float64, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if negate {
		f = -f
	}
	return f, nil
}

func (e *env) resolveOperand(op operandAST, p *parser, line, col int) (*Node, bool) {
	if op.typ != nil {
		return e.resolveType(op.typ, p, line, col)
	}
	n, ok := e.nodes[op.ident]
	if !ok {
		p.errorf(token{line: line, col: col, text: op.ident}, "undefined identifier %q", op.ident)
		return nil, false
	}
	return n, true
}

func (e *env) resolveOperands(ops []operandAST, p *parser, line, col int) ([]*Node, bool) {
	nodes := make([]*Node, len(ops))
	for i, op := range ops {
		n, ok := e.resolveOperand(op, p, line, col)
		if !ok {
			return nil, false
		}
		nodes[i] = n
	}
	return nodes, true
}

// evalBinding evaluates one binding's right-hand side. It returns the node
// the identifier should be bound to, or (nil, false) if evaluation failed
// (a diagnostic has already been recorded).
func (e *env) evalBinding(b *bindingAST, p *parser) (result *Node, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if d, isDiag := r.(*diag.Diagnostic); isDiag {
				p.errorf(token{line: b.line, col: b.col}, "%s", d.Message)
			} else if err, isErr := r.(error); isErr {
				p.errorf(token{line: b.line, col: b.col}, "%s", err.Error())
			} else {
				p.errorf(token{line: b.line, col: b.col}, "internal error building %q", b.ident)
			}
			result, ok = nil, false
		}
	}()

	m := e.mod
	ex := b.expr
	line, col := ex.line, ex.col

	if b.isTypeBinding {
		// A type binding's RHS is itself a type expression; re-run it
		// through resolveType by reconstructing the equivalent typeAST.
		ast := &typeAST{tag: ex.tag, data: ex.data}
		for _, op := range ex.operands {
			if op.typ != nil {
				ast.elems = append(ast.elems, op.typ)
			} else {
				ast.elems = append(ast.elems, &typeAST{identRef: op.ident})
			}
		}
		return e.resolveType(ast, p, line, col)
	}

	switch ex.tag {
	case "func":
		fn := e.nodes[b.ident]
		if len(ex.operands) > 0 {
			body, ok := e.resolveOperand(ex.operands[0], p, line, col)
			if !ok {
				return nil, false
			}
			m.SetOperand(fn, 0, body)
		}
		return nil, true // already bound in pass one
	case "global":
		g := e.nodes[b.ident]
		if len(ex.operands) > 1 {
			init, ok := e.resolveOperand(ex.operands[1], p, line, col)
			if !ok {
				return nil, false
			}
			m.SetOperand(g, 1, init)
		}
		return nil, true
	}

	declType, ok := e.resolveType(b.declType, p, line, col)
	if !ok {
		return nil, false
	}
	ops, ok := e.resolveOperands(ex.operands, p, line, col)
	if !ok {
		return nil, false
	}

	switch ex.tag {
	case "top":
		return m.Top(declType), true
	case "bot":
		return m.Bot(declType), true
	case "const":
		if declType.tag == TagFloatTy {
			f, err := parseFloatLiteral(ex.data.raw, ex.data.negate)
			if err != nil {
				p.errorf(*ex.data, "invalid float literal %q", ex.data.raw)
				return nil, false
			}
			var bits uint64
			if declType.data.Width == 64 {
				bits = math.Float64bits(f)
			} else {
				bits = uint64(math.Float32bits(float32(f)))
			}
			return m.FloatConst(declType, bits), true
		}
		v, err := parseIntLiteral(signedRaw(ex.data))
		if err != nil {
			p.errorf(*ex.data, "invalid integer literal %q", ex.data.raw)
			return nil, false
		}
		return m.IntConst(declType, v), true

	case "iadd":
		return m.IAdd(ops[0], ops[1]), true
	case "isub":
		return m.ISub(ops[0], ops[1]), true
	case "imul":
		return m.IMul(ops[0], ops[1]), true
	case "sdiv":
		return m.SDiv(ops[0], ops[1], ops[2]), true
	case "udiv":
		return m.UDiv(ops[0], ops[1], ops[2]), true
	case "srem":
		return m.SRem(ops[0], ops[1], ops[2]), true
	case "urem":
		return m.URem(ops[0], ops[1], ops[2]), true

	case "fadd":
		return m.FAdd(ops[0], ops[1], parseFPFlags(ex.data)), true
	case "fsub":
		return m.FSub(ops[0], ops[1], parseFPFlags(ex.data)), true
	case "fmul":
		return m.FMul(ops[0], ops[1], parseFPFlags(ex.data)), true
	case "fdiv":
		return m.FDiv(ops[0], ops[1], parseFPFlags(ex.data)), true
	case "frem":
		return m.FRem(ops[0], ops[1], parseFPFlags(ex.data)), true

	case "and":
		return m.And(ops[0], ops[1]), true
	case "or":
		return m.Or(ops[0], ops[1]), true
	case "xor":
		return m.Xor(ops[0], ops[1]), true
	case "shl":
		return m.Shl(ops[0], ops[1]), true
	case "lshr":
		return m.LShr(ops[0], ops[1]), true
	case "ashr":
		return m.AShr(ops[0], ops[1]), true

	case "icmpeq":
		return m.ICmpEq(ops[0], ops[1]), true
	case "icmpne":
		return m.ICmpNe(ops[0], ops[1]), true
	case "icmpslt":
		return m.ICmpSlt(ops[0], ops[1]), true
	case "icmpsle":
		return m.ICmpSle(ops[0], ops[1]), true
	case "icmpsgt":
		return m.ICmpSgt(ops[0], ops[1]), true
	case "icmpsge":
		return m.ICmpSge(ops[0], ops[1]), true
	case "icmpult":
		return m.ICmpUlt(ops[0], ops[1]), true
	case "icmpule":
		return m.ICmpUle(ops[0], ops[1]), true
	case "icmpugt":
		return m.ICmpUgt(ops[0], ops[1]), true
	case "icmpuge":
		return m.ICmpUge(ops[0], ops[1]), true

	case "fcmpoeq":
		return m.FCmpOEq(ops[0], ops[1]), true
	case "fcmpone":
		return m.FCmpONe(ops[0], ops[1]), true
	case "fcmpolt":
		return m.FCmpOLt(ops[0], ops[1]), true
	case "fcmpole":
		return m.FCmpOLe(ops[0], ops[1]), true
	case "fcmpogt":
		return m.FCmpOGt(ops[0], ops[1]), true
	case "fcmpoge":
		return m.FCmpOGe(ops[0], ops[1]), true
	case "fcmpueq":
		return m.FCmpUEq(ops[0], ops[1]), true
	case "fcmpune":
		return m.FCmpUNe(ops[0], ops[1]), true
	case "fcmpult":
		return m.FCmpULt(ops[0], ops[1]), true
	case "fcmpule":
		return m.FCmpULe(ops[0], ops[1]), true
	case "fcmpugt":
		return m.FCmpUGt(ops[0], ops[1]), true
	case "fcmpuge":
		return m.FCmpUGe(ops[0], ops[1]), true

	case "itrunc":
		return m.ITrunc(declType, ops[0]), true
	case "zext":
		return m.ZExt(declType, ops[0]), true
	case "sext":
		return m.SExt(declType, ops[0]), true
	case "ftrunc":
		return m.FTrunc(declType, ops[0]), true
	case "fext":
		return m.FExt(declType, ops[0]), true
	case "utof":
		return m.UToF(declType, ops[0]), true
	case "stof":
		return m.SToF(declType, ops[0]), true
	case "ftou":
		return m.FToU(declType, ops[0]), true
	case "ftos":
		return m.FToS(declType, ops[0]), true
	case "bitcast":
		return m.Bitcast(declType, ops[0]), true

	case "tup":
		return m.Tup(ops), true
	case "array":
		return m.Array(ops), true
	case "ins":
		idx, ok := parseUintToken(ex.data, p)
		if !ok {
			return nil, false
		}
		return m.Ins(ops[0], idx, ops[1]), true
	case "ext":
		idx, ok := parseUintToken(ex.data, p)
		if !ok {
			return nil, false
		}
		return m.Ext(ops[0], idx), true
	case "addrof":
		idx, ok := parseUintToken(ex.data, p)
		if !ok {
			return nil, false
		}
		return m.AddrOf(ops[0], ops[1], idx), true

	case "alloc":
		return m.Alloc(ops[0], ops[1]), true
	case "load":
		return m.Load(ops[0], ops[1], ops[2]), true
	case "store":
		return m.Store(ops[0], ops[1], ops[2]), true

	case "param":
		idx, ok := parseUintToken(ex.data, p)
		if !ok {
			return nil, false
		}
		return m.Param(ops[0], idx), true
	case "start":
		return m.Start(ops[0]), true
	case "call":
		return m.Call(ops[0], ops[1]), true
	case "loop":
		return m.Loop(ops[0], ops[1]), true
	case "if":
		return m.If(ops[0], ops[1], ops[2]), true
	}

	p.errorf(token{line: line, col: col, text: ex.tag}, "unknown operator %q", ex.tag)
	return nil, false
}

func parseFPFlags(tok *token) FPFlags {
	if tok != nil && tok.text == "finite" {
		return FPFlagFiniteOnly
	}
	return 0
}

func signedRaw(tok *token) string {
	if tok.negate {
		return "-" + tok.raw
	}
	return tok.raw
}
