// Package parser turns a ToyC token stream into an ast.Node tree via
// recursive descent with precedence climbing for binary expressions.
package parser

import (
	"strconv"

	"github.com/toyc-lang/toycc/pkg/ast"
	"github.com/toyc-lang/toycc/pkg/lexer"
	"github.com/toyc-lang/toycc/pkg/token"
	"github.com/toyc-lang/toycc/pkg/util"
)

// Parser walks a fully-scanned token slice. Scanning ahead of time (rather
// than pulling from the Lexer one token at a time) gives the recursive
// descent unlimited lookahead — needed to tell `name = expr;` apart from a
// general expression-statement without backtracking a live lexer.
type Parser struct {
	tokens   []token.Token
	pos      int
	current  token.Token
	previous token.Token
}

// New scans lex to completion and returns a Parser over the resulting
// tokens.
func New(lex *lexer.Lexer) *Parser {
	var tokens []token.Token
	for {
		tok := lex.Next()
		tokens = append(tokens, tok)
		if tok.Type == token.EOF {
			break
		}
	}
	p := &Parser{tokens: tokens, current: tokens[0]}
	return p
}

func (p *Parser) advance() {
	p.previous = p.current
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	p.current = p.tokens[p.pos]
}

// peek returns the token after p.current without consuming anything.
func (p *Parser) peek() token.Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) check(typ token.Type) bool { return p.current.Type == typ }

func (p *Parser) match(typ token.Type) bool {
	if !p.check(typ) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expect(typ token.Type, context string) token.Token {
	if !p.check(typ) {
		util.Error(p.current, "expected %s %s, found %s", typ, context, p.current.Type)
	}
	tok := p.current
	p.advance()
	return tok
}

// Parse consumes the entire token stream and returns the root Program node.
// Exactly one function must be named "main"; that is a semantic-analysis
// concern (pkg/sema), not a parse error.
func (p *Parser) Parse() *ast.Node {
	tok := p.current
	var funcs []*ast.Node
	for !p.check(token.EOF) {
		funcs = append(funcs, p.parseFuncDecl())
	}
	return ast.NewProgram(tok, funcs)
}

func (p *Parser) parseType() ast.Type {
	switch {
	case p.match(token.Int):
		return ast.TypeInt
	case p.match(token.Void):
		return ast.TypeVoid
	default:
		util.Error(p.current, "expected a type, found %s", p.current.Type)
		return ast.TypeInt
	}
}

func (p *Parser) parseFuncDecl() *ast.Node {
	tok := p.current
	returnType := p.parseType()
	name := p.expect(token.Ident, "as a function name").Value
	p.expect(token.LParen, "to start a parameter list")

	var params []*ast.Param
	if !p.check(token.RParen) {
		for {
			pt := p.parseType()
			pname := p.expect(token.Ident, "as a parameter name").Value
			params = append(params, &ast.Param{Type: pt, Name: pname})
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.expect(token.RParen, "to close a parameter list")
	body := p.parseBlockStmt()
	return ast.NewFuncDecl(tok, returnType, name, params, body)
}

func (p *Parser) parseBlockStmt() *ast.Node {
	tok := p.expect(token.LBrace, "to start a block")
	var stmts []*ast.Node
	for !p.check(token.RBrace) && !p.check(token.EOF) {
		stmts = append(stmts, p.parseStmt())
	}
	p.expect(token.RBrace, "to close a block")
	return ast.NewBlock(tok, stmts)
}

func (p *Parser) parseStmt() *ast.Node {
	tok := p.current
	switch {
	case p.check(token.LBrace):
		return p.parseBlockStmt()

	case p.match(token.Semi):
		return ast.NewEmptyStmt(tok)

	case p.check(token.Int) || p.check(token.Void):
		return p.parseVarDecl()

	case p.match(token.If):
		p.expect(token.LParen, "after 'if'")
		cond := p.parseExpr()
		p.expect(token.RParen, "after if condition")
		then := p.parseStmt()
		var els *ast.Node
		if p.match(token.Else) {
			els = p.parseStmt()
		}
		return ast.NewIf(tok, cond, then, els)

	case p.match(token.While):
		p.expect(token.LParen, "after 'while'")
		cond := p.parseExpr()
		p.expect(token.RParen, "after while condition")
		body := p.parseStmt()
		return ast.NewWhile(tok, cond, body)

	case p.match(token.Break):
		p.expect(token.Semi, "after 'break'")
		return ast.NewBreak(tok)

	case p.match(token.Continue):
		p.expect(token.Semi, "after 'continue'")
		return ast.NewContinue(tok)

	case p.match(token.Return):
		var expr *ast.Node
		if !p.check(token.Semi) {
			expr = p.parseExpr()
		}
		p.expect(token.Semi, "after return statement")
		return ast.NewReturn(tok, expr)

	default:
		return p.parseExprOrAssignStmt()
	}
}

func (p *Parser) parseVarDecl() *ast.Node {
	tok := p.current
	typ := p.parseType()
	name := p.expect(token.Ident, "as a variable name").Value
	var init *ast.Node
	if p.match(token.Eq) {
		init = p.parseExpr()
	}
	p.expect(token.Semi, "after variable declaration")
	return ast.NewVarDecl(tok, typ, name, init)
}

// parseExprOrAssignStmt disambiguates `name = expr;` from a general
// expression-statement by looking one token ahead of a leading identifier.
// `=` cannot start any other production here, so a single token of
// lookahead resolves it without backtracking.
func (p *Parser) parseExprOrAssignStmt() *ast.Node {
	if p.check(token.Ident) && p.peek().Type == token.Eq {
		nameTok := p.current
		p.advance() // identifier
		p.advance() // '='
		rhs := p.parseExpr()
		p.expect(token.Semi, "after assignment")
		return ast.NewAssign(nameTok, nameTok.Value, rhs)
	}
	tok := p.current
	expr := p.parseExpr()
	p.expect(token.Semi, "after expression statement")
	return ast.NewExprStmt(tok, expr)
}

// --- Expressions ---

func (p *Parser) parseExpr() *ast.Node { return p.parseBinaryExpr(0) }

// precedence returns the binding power of a binary operator, low to high:
// || , && , ==/!= , relational , +/- , */%. Higher binds tighter.
func precedence(op token.Type) int {
	switch op {
	case token.OrOr:
		return 1
	case token.AndAnd:
		return 2
	case token.EqEq, token.Neq:
		return 3
	case token.Lt, token.Lte, token.Gt, token.Gte:
		return 4
	case token.Plus, token.Minus:
		return 5
	case token.Star, token.Slash, token.Rem:
		return 6
	default:
		return -1
	}
}

func (p *Parser) parseBinaryExpr(minPrec int) *ast.Node {
	left := p.parseUnaryExpr()
	for {
		prec := precedence(p.current.Type)
		if prec < minPrec {
			return left
		}
		opTok := p.current
		p.advance()
		// left-associative: the recursive call demands strictly higher
		// precedence than the operator just consumed.
		right := p.parseBinaryExpr(prec + 1)
		left = ast.NewBinaryOp(opTok, opTok.Type, left, right)
	}
}

func (p *Parser) parseUnaryExpr() *ast.Node {
	tok := p.current
	if p.match(token.Not) || p.match(token.Minus) || p.match(token.Plus) {
		op := p.previous.Type
		operand := p.parseUnaryExpr()
		return ast.NewUnaryOp(tok, op, operand)
	}
	return p.parsePrimaryExpr()
}

func (p *Parser) parsePrimaryExpr() *ast.Node {
	tok := p.current
	switch {
	case p.match(token.Number):
		val, err := strconv.ParseInt(p.previous.Value, 10, 32)
		if err != nil {
			util.Error(p.previous, "integer literal %q out of 32-bit range", p.previous.Value)
		}
		return ast.NewIntLit(tok, int32(val))

	case p.match(token.Ident):
		name := p.previous.Value
		if p.match(token.LParen) {
			var args []*ast.Node
			if !p.check(token.RParen) {
				for {
					args = append(args, p.parseExpr())
					if !p.match(token.Comma) {
						break
					}
				}
			}
			p.expect(token.RParen, "after call arguments")
			return ast.NewCall(tok, name, args)
		}
		return ast.NewVar(tok, name)

	case p.match(token.LParen):
		expr := p.parseExpr()
		p.expect(token.RParen, "to close parenthesized expression")
		return expr

	default:
		util.Error(tok, "expected an expression, found %s", tok.Type)
		return nil
	}
}
