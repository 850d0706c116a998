// Package parse implements the recursive-descent parser described in
// spec.md §4.2. It distinguishes a part from a wire with a two-token
// lookahead window and reassembles the two-character "->" and ".."
// sequences from the tokenizer's single-character symbol tokens.
package parse

import (
	"fmt"

	"grci/internal/ast"
	"grci/internal/token"
)

// Parser consumes a token stream and builds an ast.File.
type Parser struct {
	lx   *token.Lexer
	buf  []token.Token // lookahead buffer, at most 2 tokens
	file string
}

// New creates a parser over src. file is used only in diagnostics.
func New(src []byte, file string) *Parser {
	return &Parser{lx: token.NewLexer(src), file: file}
}

func (p *Parser) fill(n int) error {
	for len(p.buf) < n {
		tok, err := p.lx.Next()
		if err != nil {
			return p.wrapLexErr(err)
		}
		p.buf = append(p.buf, tok)
	}
	return nil
}

func (p *Parser) wrapLexErr(err error) error {
	return fmt.Errorf("%s: %w", p.file, err)
}

func (p *Parser) peek() (token.Token, error) {
	if err := p.fill(1); err != nil {
		return token.Token{}, err
	}
	return p.buf[0], nil
}

func (p *Parser) peek2() (token.Token, error) {
	if err := p.fill(2); err != nil {
		return token.Token{}, err
	}
	return p.buf[1], nil
}

func (p *Parser) next() (token.Token, error) {
	if err := p.fill(1); err != nil {
		return token.Token{}, err
	}
	tok := p.buf[0]
	p.buf = p.buf[1:]
	return tok, nil
}

func (p *Parser) errf(line int, format string, args ...interface{}) error {
	return fmt.Errorf("%s:%d: "+format, append([]interface{}{p.file, line}, args...)...)
}

func (p *Parser) expectSymbol(sym string) (token.Token, error) {
	tok, err := p.next()
	if err != nil {
		return tok, err
	}
	if tok.Kind != token.Symbol || tok.Lexeme != sym {
		return tok, p.errf(tok.Line, "expected %q, got %s", sym, tok)
	}
	return tok, nil
}

func (p *Parser) expectKeyword(kw string) (token.Token, error) {
	tok, err := p.next()
	if err != nil {
		return tok, err
	}
	if tok.Kind != token.Keyword || tok.Lexeme != kw {
		return tok, p.errf(tok.Line, "expected keyword %q, got %s", kw, tok)
	}
	return tok, nil
}

func (p *Parser) expectIdent() (token.Token, error) {
	tok, err := p.next()
	if err != nil {
		return tok, err
	}
	if tok.Kind != token.Identifier {
		return tok, p.errf(tok.Line, "expected identifier, got %s", tok)
	}
	return tok, nil
}

// expectArrow consumes the two-token "->" sequence.
func (p *Parser) expectArrow() error {
	if _, err := p.expectSymbol("-"); err != nil {
		return err
	}
	_, err := p.expectSymbol(">")
	return err
}

// isSymbol reports whether tok is the single-character symbol sym.
func isSymbol(tok token.Token, sym string) bool {
	return tok.Kind == token.Symbol && tok.Lexeme == sym
}

// Parse parses an entire source file into zero or more module
// declarations.
func (p *Parser) Parse() (*ast.File, error) {
	file := &ast.File{}
	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == token.EOF {
			return file, nil
		}
		mod, err := p.parseModule()
		if err != nil {
			return nil, err
		}
		file.Modules = append(file.Modules, mod)
	}
}

func (p *Parser) parseModule() (*ast.Module, error) {
	kw, err := p.expectKeyword("module")
	if err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	inputs, err := p.parseParamListUntil(")")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	if err := p.expectArrow(); err != nil {
		return nil, err
	}
	outputs, err := p.parseOutputList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectSymbol("{"); err != nil {
		return nil, err
	}

	mod := &ast.Module{Name: name.Lexeme, Inputs: inputs, Outputs: outputs, Line: kw.Line}

	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if isSymbol(tok, "}") {
			p.next()
			break
		}
		if tok.Kind == token.EOF {
			return nil, p.errf(tok.Line, "unexpected end of input in module %q", name.Lexeme)
		}
		isPart, err := p.statementIsPart()
		if err != nil {
			return nil, err
		}
		if isPart {
			part, err := p.parsePart()
			if err != nil {
				return nil, err
			}
			mod.Parts = append(mod.Parts, part)
		} else {
			wire, err := p.parseWire()
			if err != nil {
				return nil, err
			}
			mod.Wires = append(mod.Wires, wire)
		}
	}

	if len(mod.Parts) == 0 && len(mod.Wires) == 0 {
		return nil, p.errf(mod.Line, "module %q has an empty body", mod.Name)
	}
	return mod, nil
}

// statementIsPart implements the two-token disambiguation rule:
// "ident (" or "ident :" begins a part, anything else is a wire.
func (p *Parser) statementIsPart() (bool, error) {
	first, err := p.peek()
	if err != nil {
		return false, err
	}
	if first.Kind != token.Identifier {
		return false, nil
	}
	second, err := p.peek2()
	if err != nil {
		return false, err
	}
	return isSymbol(second, "(") || isSymbol(second, ":"), nil
}

func (p *Parser) parseParamListUntil(closer string) ([]ast.Param, error) {
	var params []ast.Param
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if isSymbol(tok, closer) {
		return params, nil
	}
	for {
		param, err := p.parseParam()
		if err != nil {
			return nil, err
		}
		params = append(params, param)
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if isSymbol(tok, ",") {
			p.next()
			continue
		}
		break
	}
	return params, nil
}

func (p *Parser) parseOutputList() ([]ast.Param, error) {
	var outputs []ast.Param
	for {
		out, err := p.parseParam()
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, out)
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if isSymbol(tok, ",") {
			p.next()
			continue
		}
		break
	}
	return outputs, nil
}

func (p *Parser) parseParam() (ast.Param, error) {
	name, err := p.expectIdent()
	if err != nil {
		return ast.Param{}, err
	}
	param := ast.Param{Name: name.Lexeme, Width: 1, Line: name.Line}
	tok, err := p.peek()
	if err != nil {
		return ast.Param{}, err
	}
	if isSymbol(tok, "[") {
		p.next()
		n, err := p.expectInt()
		if err != nil {
			return ast.Param{}, err
		}
		if n <= 0 {
			return ast.Param{}, p.errf(tok.Line, "bus width must be positive, got %d", n)
		}
		param.Width = n
		if _, err := p.expectSymbol("]"); err != nil {
			return ast.Param{}, err
		}
	}
	return param, nil
}

func (p *Parser) expectInt() (int, error) {
	tok, err := p.next()
	if err != nil {
		return 0, err
	}
	if tok.Kind != token.IntLiteral {
		return 0, p.errf(tok.Line, "expected integer, got %s", tok)
	}
	return parseDecimal(tok.Lexeme), nil
}

func parseDecimal(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}

func (p *Parser) parsePart() (*ast.Part, error) {
	first, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	part := &ast.Part{Line: first.Line}

	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if isSymbol(tok, ":") {
		p.next()
		modName, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		part.Label = first.Lexeme
		part.ModuleName = modName.Lexeme
	} else {
		part.ModuleName = first.Lexeme
	}

	if _, err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	args, err := p.parseExprListUntil(")")
	if err != nil {
		return nil, err
	}
	part.Args = args
	if _, err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	if err := p.expectArrow(); err != nil {
		return nil, err
	}
	results, err := p.parseExprListUntil("")
	if err != nil {
		return nil, err
	}
	part.Results = results
	return part, nil
}

func (p *Parser) parseWire() (*ast.Wire, error) {
	input, err := p.parseExprOrBrace()
	if err != nil {
		return nil, err
	}
	line := input.Line
	if err := p.expectArrow(); err != nil {
		return nil, err
	}
	output, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if output.Kind != ast.Ident {
		return nil, p.errf(output.Line, "wire output must be an identifier")
	}
	return &ast.Wire{Input: input, Output: output, Line: line}, nil
}

// parseExprListUntil parses a comma-separated expr_or_brace list. If
// closer is non-empty, the list stops before that symbol (used for
// part argument lists); otherwise it stops at the first token that
// cannot start an expression (used for result lists, which run up to
// the next part/wire or the closing brace of the module body).
func (p *Parser) parseExprListUntil(closer string) ([]*ast.Expr, error) {
	var exprs []*ast.Expr
	if closer != "" {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if isSymbol(tok, closer) {
			return exprs, nil
		}
	}
	for {
		e, err := p.parseExprOrBrace()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if isSymbol(tok, ",") {
			p.next()
			continue
		}
		break
	}
	return exprs, nil
}

func (p *Parser) parseExprOrBrace() (*ast.Expr, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if isSymbol(tok, "{") {
		p.next()
		parts, err := p.parseExprListUntil("}")
		if err != nil {
			return nil, err
		}
		if _, err := p.expectSymbol("}"); err != nil {
			return nil, err
		}
		if len(parts) < 2 {
			return nil, p.errf(tok.Line, "concatenation {...} needs at least two elements")
		}
		return &ast.Expr{Kind: ast.Concat, Parts: parts, Line: tok.Line}, nil
	}
	return p.parseExpr()
}

func (p *Parser) parseExpr() (*ast.Expr, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}

	var e *ast.Expr
	switch tok.Kind {
	case token.Identifier:
		e = &ast.Expr{Kind: ast.Ident, Name: tok.Lexeme, Line: tok.Line}
	case token.IntLiteral:
		v := parseDecimal(tok.Lexeme)
		if v != 0 && v != 1 {
			return nil, p.errf(tok.Line, "literal must be 0 or 1, got %d", v)
		}
		e = &ast.Expr{Kind: ast.IntLit, IntVal: v, Line: tok.Line}
		return e, nil
	default:
		return nil, p.errf(tok.Line, "expected identifier or literal, got %s", tok)
	}

	next, err := p.peek()
	if err != nil {
		return nil, err
	}
	if !isSymbol(next, "[") {
		return e, nil
	}
	p.next()
	lo, err := p.expectInt()
	if err != nil {
		return nil, err
	}
	hi := lo
	dotTok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if isSymbol(dotTok, ".") {
		p.next()
		if _, err := p.expectSymbol("."); err != nil {
			return nil, err
		}
		hi, err = p.expectInt()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expectSymbol("]"); err != nil {
		return nil, err
	}
	if hi < lo {
		return nil, p.errf(tok.Line, "invalid slice %s[%d..%d]: end before start", e.Name, lo, hi)
	}
	e.Sliced = true
	e.Lo, e.Hi = lo, hi
	return e, nil
}
