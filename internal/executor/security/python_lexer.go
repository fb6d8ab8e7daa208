package security

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokName tokenKind = iota
	tokNumber
	tokString
	tokOp
	tokNewline
	tokIndent
	tokDedent
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	line int
	// fields holds the replacement-field expressions of an f-string.
	fields []fieldExpr
}

// fieldExpr is the expression part of one f-string replacement field,
// without its conversion, format spec or trailing "=".
type fieldExpr struct {
	text string
	line int
}

// SyntaxError reports source that does not tokenize or parse.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("Syntax error at line %d: %s", e.Line, e.Msg)
}

var pythonOperators = []string{
	"**=", "//=", ">>=", "<<=", "...",
	"->", ":=", "**", "//", "<<", ">>", "<=", ">=", "==", "!=",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "@=",
	"+", "-", "*", "/", "%", "@", "&", "|", "^", "~", "<", ">", "=", ".", ",", ":", ";",
}

var closingBracket = map[rune]rune{')': '(', ']': '[', '}': '{'}

type lexer struct {
	src         []rune
	pos         int
	line        int
	atLineStart bool
	brackets    []rune
	bracketLine []int
	indents     []int
	tokens      []token
}

// tokenize splits Python source into tokens with INDENT, DEDENT and NEWLINE
// markers for logical lines.
func tokenize(source string) ([]token, error) {
	lx := &lexer{
		src:         []rune(strings.ReplaceAll(source, "\r\n", "\n")),
		line:        1,
		atLineStart: true,
		indents:     []int{0},
	}
	if err := lx.run(); err != nil {
		return nil, err
	}
	return lx.tokens, nil
}

func (lx *lexer) fail(line int, format string, args ...interface{}) error {
	return &SyntaxError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

func (lx *lexer) emit(kind tokenKind, text string, line int) {
	lx.tokens = append(lx.tokens, token{kind: kind, text: text, line: line})
}

func (lx *lexer) peek(offset int) rune {
	if lx.pos+offset >= len(lx.src) {
		return 0
	}
	return lx.src[lx.pos+offset]
}

func (lx *lexer) run() error {
	for lx.pos < len(lx.src) {
		if lx.atLineStart && len(lx.brackets) == 0 {
			blank, err := lx.indentation()
			if err != nil {
				return err
			}
			if blank {
				continue
			}
		}
		if lx.pos >= len(lx.src) {
			break
		}
		if err := lx.next(); err != nil {
			return err
		}
	}
	return lx.finish()
}

// indentation measures the leading whitespace of a physical line and emits
// INDENT/DEDENT. It reports blank and comment-only lines, which carry no tokens.
func (lx *lexer) indentation() (bool, error) {
	col := 0
scan:
	for lx.pos < len(lx.src) {
		switch lx.src[lx.pos] {
		case ' ':
			col++
		case '\t':
			col = (col/8 + 1) * 8
		case '\f':
			col = 0
		default:
			break scan
		}
		lx.pos++
	}
	if lx.pos >= len(lx.src) {
		return true, nil
	}
	switch lx.src[lx.pos] {
	case '#':
		lx.skipComment()
		return true, nil
	case '\n':
		lx.pos++
		lx.line++
		return true, nil
	}

	lx.atLineStart = false
	top := lx.indents[len(lx.indents)-1]
	switch {
	case col > top:
		lx.indents = append(lx.indents, col)
		lx.emit(tokIndent, "", lx.line)
	case col < top:
		for col < lx.indents[len(lx.indents)-1] {
			lx.indents = lx.indents[:len(lx.indents)-1]
			lx.emit(tokDedent, "", lx.line)
		}
		if col != lx.indents[len(lx.indents)-1] {
			return false, lx.fail(lx.line, "unindent does not match any outer indentation level")
		}
	}
	return false, nil
}

func (lx *lexer) next() error {
	c := lx.src[lx.pos]
	switch {
	case c == '\n':
		if len(lx.brackets) == 0 {
			lx.newline()
			lx.atLineStart = true
		}
		lx.pos++
		lx.line++
	case c == ' ' || c == '\t' || c == '\f' || c == '\r':
		lx.pos++
	case c == '#':
		lx.skipComment()
	case c == '\\':
		if lx.peek(1) != '\n' {
			return lx.fail(lx.line, "unexpected character after line continuation character")
		}
		lx.pos += 2
		lx.line++
	case c == '\'' || c == '"':
		return lx.scanString("")
	case isIdentStart(c):
		return lx.scanName()
	case unicode.IsDigit(c) || (c == '.' && unicode.IsDigit(lx.peek(1))):
		lx.scanNumber()
	case c == '(' || c == '[' || c == '{':
		lx.brackets = append(lx.brackets, c)
		lx.bracketLine = append(lx.bracketLine, lx.line)
		lx.emit(tokOp, string(c), lx.line)
		lx.pos++
	case c == ')' || c == ']' || c == '}':
		if len(lx.brackets) == 0 {
			return lx.fail(lx.line, "unmatched '%c'", c)
		}
		open := lx.brackets[len(lx.brackets)-1]
		if open != closingBracket[c] {
			return lx.fail(lx.line, "closing parenthesis '%c' does not match opening parenthesis '%c'", c, open)
		}
		lx.brackets = lx.brackets[:len(lx.brackets)-1]
		lx.bracketLine = lx.bracketLine[:len(lx.bracketLine)-1]
		lx.emit(tokOp, string(c), lx.line)
		lx.pos++
	default:
		for _, op := range pythonOperators {
			if lx.hasPrefix(op) {
				lx.emit(tokOp, op, lx.line)
				lx.pos += len(op)
				return nil
			}
		}
		return lx.fail(lx.line, "invalid character '%c' (U+%04X)", c, c)
	}
	return nil
}

func (lx *lexer) finish() error {
	if n := len(lx.brackets); n > 0 {
		return lx.fail(lx.bracketLine[n-1], "'%c' was never closed", lx.brackets[n-1])
	}
	lx.newline()
	for len(lx.indents) > 1 {
		lx.indents = lx.indents[:len(lx.indents)-1]
		lx.emit(tokDedent, "", lx.line)
	}
	lx.emit(tokEOF, "", lx.line)
	return nil
}

// newline ends a logical line unless it is empty.
func (lx *lexer) newline() {
	if n := len(lx.tokens); n == 0 || lx.tokens[n-1].kind == tokNewline ||
		lx.tokens[n-1].kind == tokIndent || lx.tokens[n-1].kind == tokDedent {
		return
	}
	lx.emit(tokNewline, "", lx.line)
}

func (lx *lexer) hasPrefix(op string) bool {
	for i, r := range op {
		if lx.peek(i) != r {
			return false
		}
	}
	return true
}

func (lx *lexer) skipComment() {
	for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
		lx.pos++
	}
}

func (lx *lexer) scanName() error {
	start := lx.pos
	for lx.pos < len(lx.src) && isIdentChar(lx.src[lx.pos]) {
		lx.pos++
	}
	name := string(lx.src[start:lx.pos])
	if isStringPrefix(name) && (lx.peek(0) == '\'' || lx.peek(0) == '"') {
		return lx.scanString(name)
	}
	lx.emit(tokName, name, lx.line)
	return nil
}

func (lx *lexer) scanNumber() {
	start := lx.pos
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		if isIdentChar(c) || c == '.' {
			lx.pos++
			continue
		}
		if (c == '+' || c == '-') && lx.pos > start {
			prev := unicode.ToLower(lx.src[lx.pos-1])
			if prev == 'e' && !strings.HasPrefix(strings.ToLower(string(lx.src[start:lx.pos])), "0x") {
				lx.pos++
				continue
			}
		}
		break
	}
	lx.emit(tokNumber, string(lx.src[start:lx.pos]), lx.line)
}

func (lx *lexer) scanString(prefix string) error {
	line := lx.line
	fields, err := lx.readString(prefix)
	if err != nil {
		return err
	}
	lx.tokens = append(lx.tokens, token{kind: tokString, line: line, fields: fields})
	return nil
}

// readString consumes a string literal starting at its opening quote. For
// f-strings it returns the replacement fields, nested format-spec fields
// included.
func (lx *lexer) readString(prefix string) ([]fieldExpr, error) {
	startLine := lx.line
	fstring := strings.ContainsRune(strings.ToLower(prefix), 'f')
	quote := lx.src[lx.pos]
	triple := lx.peek(1) == quote && lx.peek(2) == quote
	if triple {
		lx.pos += 3
	} else {
		lx.pos++
	}
	var fields []fieldExpr
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == '\\':
			next := lx.peek(1)
			if fstring && (next == '{' || next == '}') {
				lx.pos++
				continue
			}
			if next == '\n' {
				lx.line++
			}
			lx.pos += 2
			continue
		case c == '\n':
			if !triple {
				return nil, lx.fail(startLine, "unterminated string literal (detected at line %d)", startLine)
			}
			lx.line++
		case fstring && c == '{':
			if lx.peek(1) == '{' {
				lx.pos += 2
				continue
			}
			fs, err := lx.readField(quote)
			if err != nil {
				return nil, err
			}
			fields = append(fields, fs...)
			continue
		case fstring && c == '}':
			if lx.peek(1) != '}' {
				return nil, lx.fail(lx.line, "f-string: single '}' is not allowed")
			}
			lx.pos += 2
			continue
		case c == quote:
			if !triple {
				lx.pos++
				return fields, nil
			}
			if lx.peek(1) == quote && lx.peek(2) == quote {
				lx.pos += 3
				return fields, nil
			}
		}
		lx.pos++
	}
	if triple {
		return nil, lx.fail(startLine, "unterminated triple-quoted string literal (detected at line %d)", lx.line)
	}
	return nil, lx.fail(startLine, "unterminated string literal (detected at line %d)", startLine)
}

// readField consumes one replacement field starting at '{'. Strings inside
// the expression may use any quote; the enclosing quote inside the format
// spec ends the f-string early and is reported.
func (lx *lexer) readField(quote rune) ([]fieldExpr, error) {
	line := lx.line
	lx.pos++
	start := lx.pos
	exprEnd := -1
	depth := 0
	var nested []fieldExpr
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		inExpr := exprEnd < 0
		switch {
		case c == '\n':
			lx.line++
		case inExpr && c == '\\':
			return nil, lx.fail(lx.line, "f-string expression part cannot include a backslash")
		case inExpr && (c == '\'' || c == '"'):
			if _, err := lx.readString(lx.prefixBefore()); err != nil {
				return nil, err
			}
			continue
		case !inExpr && c == quote:
			return nil, lx.fail(line, "f-string: expecting '}'")
		case !inExpr && c == '{':
			fs, err := lx.readField(quote)
			if err != nil {
				return nil, err
			}
			nested = append(nested, fs...)
			continue
		case inExpr && (c == '(' || c == '[' || c == '{'):
			depth++
		case inExpr && (c == ')' || c == ']'):
			depth--
		case c == '}':
			if inExpr && depth > 0 {
				depth--
				break
			}
			if inExpr {
				exprEnd = lx.pos
			}
			expr := trimSelfDocumenting(string(lx.src[start:exprEnd]))
			lx.pos++
			if strings.TrimSpace(expr) == "" {
				return nil, lx.fail(line, "f-string: valid expression required before '}'")
			}
			return append([]fieldExpr{{text: expr, line: line}}, nested...), nil
		case inExpr && depth == 0 && c == '!' && lx.peek(1) != '=':
			exprEnd = lx.pos
		case inExpr && depth == 0 && c == ':':
			exprEnd = lx.pos
		}
		lx.pos++
	}
	return nil, lx.fail(line, "f-string: expecting '}'")
}

// prefixBefore returns the string prefix written just before the quote at pos.
func (lx *lexer) prefixBefore() string {
	i := lx.pos
	for i > 0 && isIdentChar(lx.src[i-1]) {
		i--
	}
	prefix := string(lx.src[i:lx.pos])
	if !isStringPrefix(prefix) {
		return ""
	}
	return prefix
}

// trimSelfDocumenting drops the trailing "=" of a {expr=} field.
func trimSelfDocumenting(expr string) string {
	t := strings.TrimRight(expr, " \t\n")
	if !strings.HasSuffix(t, "=") {
		return expr
	}
	for _, op := range []string{"==", "!=", "<=", ">="} {
		if strings.HasSuffix(t, op) {
			return expr
		}
	}
	return strings.TrimSuffix(t, "=")
}

func isIdentStart(c rune) bool {
	return c == '_' || unicode.IsLetter(c)
}

func isIdentChar(c rune) bool {
	return c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c)
}

func isStringPrefix(name string) bool {
	switch strings.ToLower(name) {
	case "r", "u", "b", "f", "br", "rb", "fr", "rf":
		return true
	}
	return false
}
