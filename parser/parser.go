package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"sheets/ast"
	"sheets/lexer"
	"sheets/token"
)

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

type Parser struct {
	l *lexer.Lexer

	curToken  token.Token
	peekToken token.Token

	errors []ParseError

	prefixParseFns map[token.TokenType]prefixParseFn
	infixParseFns  map[token.TokenType]infixParseFn
}

const (
	_ int = iota
	LOWEST
	COMPARE
	CONCAT
	SUM
	PRODUCT
	PREFIX
)

var precedences = map[token.TokenType]int{
	token.EQ:        COMPARE,
	token.EQEQ:      COMPARE,
	token.NE:        COMPARE,
	token.NOT_EQ:    COMPARE,
	token.LT:        COMPARE,
	token.LE:        COMPARE,
	token.GT:        COMPARE,
	token.GE:        COMPARE,
	token.AMPERSAND: CONCAT,
	token.PLUS:      SUM,
	token.MINUS:     SUM,
	token.ASTERISK:  PRODUCT,
	token.SLASH:     PRODUCT,
}

var (
	addressRegexp   = regexp.MustCompile(`^\$?[A-Za-z]+\$?[0-9]+$`)
	bareSheetRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// ErrNotFormula is returned for contents that do not start with '='.
var ErrNotFormula = errors.New("formula must start with '='")

// Parse parses complete formula text, leading '=' included.
func Parse(formula string) (ast.Expression, error) {
	if !strings.HasPrefix(formula, "=") {
		return nil, ErrNotFormula
	}
	p := New(lexer.New(formula[1:]))
	expr := p.ParseFormula()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, errors.New(strings.Join(errs, "; "))
	}
	return expr, nil
}

func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l, errors: []ParseError{}}

	p.prefixParseFns = make(map[token.TokenType]prefixParseFn)
	p.registerPrefix(token.NUMBER, p.parseNumberLiteral)
	p.registerPrefix(token.STRING, p.parseStringLiteral)
	p.registerPrefix(token.TRUE, p.parseBoolean)
	p.registerPrefix(token.FALSE, p.parseBoolean)
	p.registerPrefix(token.ERROR_LIT, p.parseErrorLiteral)
	p.registerPrefix(token.IDENT, p.parseWord)
	p.registerPrefix(token.SHEET, p.parseQuotedSheetRef)
	p.registerPrefix(token.PLUS, p.parsePrefixExpression)
	p.registerPrefix(token.MINUS, p.parsePrefixExpression)
	p.registerPrefix(token.LPAREN, p.parseGroupedExpression)

	p.infixParseFns = make(map[token.TokenType]infixParseFn)
	for tt := range precedences {
		p.registerInfix(tt, p.parseInfixExpression)
	}

	p.nextToken()
	p.nextToken()

	return p
}

func (p *Parser) Errors() []string {
	if len(p.errors) == 0 {
		return nil
	}
	out := make([]string, len(p.errors))
	for i, err := range p.errors {
		out[i] = err.Message
	}
	return out
}

func (p *Parser) addError(tok token.Token, msg string) {
	p.errors = append(p.errors, ParseError{Message: msg, Token: tok})
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// ParseFormula parses the expression after the leading '=' and requires the
// input to be fully consumed.
func (p *Parser) ParseFormula() ast.Expression {
	expr := p.parseExpression(LOWEST)
	if expr == nil {
		return nil
	}
	if !p.peekTokenIs(token.EOF) {
		p.addError(p.peekToken, fmt.Sprintf("unexpected token %q after expression", p.peekToken.Literal))
		return nil
	}
	return expr
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.addError(p.curToken, fmt.Sprintf("unexpected token %q", p.curToken.Literal))
		return nil
	}
	leftExp := prefix()

	for leftExp != nil && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}
		p.nextToken()
		leftExp = infix(leftExp)
	}

	return leftExp
}

func (p *Parser) parseNumberLiteral() ast.Expression {
	return &ast.NumberLiteral{Token: p.curToken, Literal: p.curToken.Literal}
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseBoolean() ast.Expression {
	return &ast.BooleanLiteral{
		Token:   p.curToken,
		Literal: p.curToken.Literal,
		Value:   p.curToken.Type == token.TRUE,
	}
}

func (p *Parser) parseErrorLiteral() ast.Expression {
	return &ast.ErrorLiteral{Token: p.curToken, Literal: p.curToken.Literal}
}

// parseWord classifies a bare word: a function call when followed by '(',
// a sheet qualifier when followed by '!', otherwise a cell address.
func (p *Parser) parseWord() ast.Expression {
	switch {
	case p.peekTokenIs(token.LPAREN):
		return p.parseCallExpression()
	case p.peekTokenIs(token.BANG):
		tok := p.curToken
		sheet := p.curToken.Literal
		if !bareSheetRegexp.MatchString(sheet) {
			p.addError(tok, fmt.Sprintf("invalid sheet name %q", sheet))
			return nil
		}
		p.nextToken()
		return p.parseSheetQualifiedRef(tok, sheet, false)
	case addressRegexp.MatchString(p.curToken.Literal):
		return &ast.CellRef{Token: p.curToken, Location: p.curToken.Literal}
	default:
		p.addError(p.curToken, fmt.Sprintf("unexpected identifier %q", p.curToken.Literal))
		return nil
	}
}

func (p *Parser) parseQuotedSheetRef() ast.Expression {
	tok := p.curToken
	sheet := p.curToken.Literal
	if !p.expectPeek(token.BANG) {
		return nil
	}
	return p.parseSheetQualifiedRef(tok, sheet, true)
}

// parseSheetQualifiedRef finishes a cell reference after its '!'; the
// current token is the '!'.
func (p *Parser) parseSheetQualifiedRef(tok token.Token, sheet string, quoted bool) ast.Expression {
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	if !addressRegexp.MatchString(p.curToken.Literal) {
		p.addError(p.curToken, fmt.Sprintf("invalid cell address %q", p.curToken.Literal))
		return nil
	}
	return &ast.CellRef{
		Token:    tok,
		HasSheet: true,
		Sheet:    sheet,
		Quoted:   quoted,
		Location: p.curToken.Literal,
	}
}

func (p *Parser) parseCallExpression() ast.Expression {
	call := &ast.CallExpression{Token: p.curToken, Name: p.curToken.Literal}
	p.nextToken() // onto '('
	call.Arguments = p.parseExpressionList(token.RPAREN)
	if call.Arguments == nil && len(p.errors) > 0 {
		return nil
	}
	return call
}

func (p *Parser) parseExpressionList(end token.TokenType) []ast.Expression {
	list := []ast.Expression{}

	if p.peekTokenIs(end) {
		p.nextToken()
		return list
	}

	p.nextToken()
	first := p.parseExpression(LOWEST)
	if first == nil {
		return nil
	}
	list = append(list, first)

	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		next := p.parseExpression(LOWEST)
		if next == nil {
			return nil
		}
		list = append(list, next)
	}

	if !p.expectPeek(end) {
		return nil
	}

	return list
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	expr := &ast.PrefixExpression{Token: p.curToken, Operator: p.curToken.Literal}
	p.nextToken()
	expr.Right = p.parseExpression(PREFIX)
	if expr.Right == nil {
		return nil
	}
	return expr
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expr := &ast.InfixExpression{
		Token:    p.curToken,
		Left:     left,
		Operator: p.curToken.Literal,
	}
	precedence := p.curPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(precedence)
	if expr.Right == nil {
		return nil
	}
	return expr
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	tok := p.curToken
	p.nextToken()
	inner := p.parseExpression(LOWEST)
	if inner == nil {
		return nil
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return &ast.ParenExpression{Token: tok, Inner: inner}
}

func (p *Parser) expectPeek(t token.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.addError(p.peekToken, fmt.Sprintf("expected %s, got %q", t, p.peekToken.Literal))
	return false
}

func (p *Parser) peekTokenIs(t token.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) registerPrefix(tokenType token.TokenType, fn prefixParseFn) {
	p.prefixParseFns[tokenType] = fn
}

func (p *Parser) registerInfix(tokenType token.TokenType, fn infixParseFn) {
	p.infixParseFns[tokenType] = fn
}
