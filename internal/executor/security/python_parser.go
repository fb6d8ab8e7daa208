package security

import (
	"errors"
	"strings"
)

// Alias is one imported name with an optional "as" binding.
type Alias struct {
	Name   string
	AsName string
}

// ImportStmt is "import a.b [as c], ...".
type ImportStmt struct {
	Names []Alias
	Line  int
}

// ImportFromStmt is "from [.]module import names". Level counts leading dots.
type ImportFromStmt struct {
	Module string
	Level  int
	Names  []Alias
	Line   int
}

// CallExpr is a call whose callee is a bare name, like eval(...).
type CallExpr struct {
	Func string
	Line int
}

// Module is the subset of a Python syntax tree the validator inspects.
type Module struct {
	Imports     []ImportStmt
	FromImports []ImportFromStmt
	Calls       []CallExpr
}

var compoundKeywords = map[string]bool{
	"if": true, "elif": true, "else": true, "while": true, "for": true,
	"try": true, "except": true, "finally": true, "with": true,
	"def": true, "class": true, "async": true, "match": true, "case": true,
}

// ParsePython tokenizes source and extracts import statements and bare-name calls.
func ParsePython(source string) (*Module, error) {
	tokens, err := tokenize(source)
	if err != nil {
		return nil, err
	}
	if err := checkBlocks(tokens); err != nil {
		return nil, err
	}
	mod := &Module{}
	for _, line := range logicalLines(tokens) {
		if err := mod.parseLine(line); err != nil {
			return nil, err
		}
	}
	return mod, nil
}

// checkBlocks verifies that a line ending in ':' opens an indented block and
// that no block is opened without one.
func checkBlocks(tokens []token) error {
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok.kind {
		case tokNewline:
			if i == 0 || tokens[i-1].kind != tokOp || tokens[i-1].text != ":" {
				continue
			}
			if i+1 >= len(tokens) || tokens[i+1].kind != tokIndent {
				return &SyntaxError{Line: tok.line, Msg: "expected an indented block"}
			}
		case tokIndent:
			if i == 0 || tokens[i-1].kind != tokNewline || i < 2 || tokens[i-2].text != ":" || tokens[i-2].kind != tokOp {
				return &SyntaxError{Line: tok.line, Msg: "unexpected indent"}
			}
		}
	}
	return nil
}

// logicalLines splits the token stream on NEWLINE, dropping layout tokens.
func logicalLines(tokens []token) [][]token {
	var lines [][]token
	var cur []token
	for _, tok := range tokens {
		switch tok.kind {
		case tokIndent, tokDedent, tokEOF:
			continue
		case tokNewline:
			if len(cur) > 0 {
				lines = append(lines, cur)
			}
			cur = nil
		default:
			cur = append(cur, tok)
		}
	}
	if len(cur) > 0 {
		lines = append(lines, cur)
	}
	return lines
}

func (m *Module) parseLine(line []token) error {
	compound := line[0].kind == tokName && compoundKeywords[line[0].text]
	depth := 0
	stmtStart := true
	rest := make([]token, 0, len(line))
	for i := 0; i < len(line); i++ {
		tok := line[i]
		if stmtStart && tok.kind == tokName {
			switch tok.text {
			case "import":
				stmt, next, err := parseImport(line, i)
				if err != nil {
					return err
				}
				m.Imports = append(m.Imports, stmt)
				i = next - 1
				stmtStart = false
				continue
			case "from":
				stmt, next, err := parseFromImport(line, i)
				if err != nil {
					return err
				}
				m.FromImports = append(m.FromImports, stmt)
				i = next - 1
				stmtStart = false
				continue
			}
		}
		stmtStart = false
		rest = append(rest, tok)

		switch {
		case tok.kind == tokOp && (tok.text == "(" || tok.text == "[" || tok.text == "{"):
			depth++
		case tok.kind == tokOp && (tok.text == ")" || tok.text == "]" || tok.text == "}"):
			depth--
		case tok.kind == tokOp && tok.text == ";" && depth == 0:
			stmtStart = true
		case tok.kind == tokOp && tok.text == ":" && depth == 0 && compound:
			stmtStart = true
		}

		if tok.kind == tokName && isCallee(line, i) {
			m.Calls = append(m.Calls, CallExpr{Func: tok.text, Line: tok.line})
		}
		if tok.kind == tokString && len(tok.fields) > 0 {
			if err := m.parseFields(tok.fields); err != nil {
				return err
			}
		}
	}
	return checkExpression(rest)
}

// parseFields parses each f-string replacement field as a parenthesized
// expression, so calls hidden inside f-strings are collected too.
func (m *Module) parseFields(fields []fieldExpr) error {
	for _, f := range fields {
		tokens, err := tokenize("(" + f.text + ")")
		if err != nil {
			var syn *SyntaxError
			if errors.As(err, &syn) {
				return &SyntaxError{Line: f.line + syn.Line - 1, Msg: "f-string: " + syn.Msg}
			}
			return err
		}
		for _, line := range logicalLines(tokens) {
			for i := range line {
				line[i].line += f.line - 1
			}
			if err := m.parseLine(line); err != nil {
				return err
			}
		}
	}
	return nil
}

// isCallee reports whether line[i] is a bare name being called, directly as
// in eval(...) or through grouping parentheses as in (eval)(...).
func isCallee(line []token, i int) bool {
	lo, hi := i, i
	for lo > 0 && hi+1 < len(line) && isOp(line[lo-1], "(") && isOp(line[hi+1], ")") && isGroupingParen(line, lo-1) {
		lo--
		hi++
	}
	if hi+1 >= len(line) || !isOp(line[hi+1], "(") {
		return false
	}
	if lo == 0 {
		return true
	}
	prev := line[lo-1]
	if isOp(prev, ".") {
		return false
	}
	if prev.kind == tokName && (prev.text == "def" || prev.text == "class") {
		return false
	}
	return true
}

// isGroupingParen reports whether the '(' at line[j] groups an expression
// rather than opening a call argument list.
func isGroupingParen(line []token, j int) bool {
	if j == 0 {
		return true
	}
	prev := line[j-1]
	switch prev.kind {
	case tokName:
		return pythonKeywords[prev.text] && !softKeywords[prev.text]
	case tokNumber, tokString:
		return false
	case tokOp:
		return !isCloser(prev)
	}
	return true
}

func isOp(tok token, text string) bool {
	return tok.kind == tokOp && tok.text == text
}

func parseImport(line []token, i int) (ImportStmt, int, error) {
	stmt := ImportStmt{Line: line[i].line}
	i++
	for {
		alias, next, err := parseAlias(line, i, true)
		if err != nil {
			return ImportStmt{}, 0, err
		}
		stmt.Names = append(stmt.Names, alias)
		i = next
		if i < len(line) && line[i].kind == tokOp && line[i].text == "," {
			i++
			continue
		}
		break
	}
	if err := expectStatementEnd(line, i); err != nil {
		return ImportStmt{}, 0, err
	}
	return stmt, i, nil
}

func parseFromImport(line []token, i int) (ImportFromStmt, int, error) {
	stmt := ImportFromStmt{Line: line[i].line}
	i++
	for i < len(line) && line[i].kind == tokOp && (line[i].text == "." || line[i].text == "...") {
		stmt.Level += len(line[i].text)
		i++
	}
	if i < len(line) && !(line[i].kind == tokName && line[i].text == "import") {
		name, next, err := parseDotted(line, i)
		if err != nil {
			return ImportFromStmt{}, 0, err
		}
		stmt.Module = name
		i = next
	}
	if stmt.Module == "" && stmt.Level == 0 {
		return ImportFromStmt{}, 0, invalidSyntax(line, i)
	}
	if i >= len(line) || line[i].kind != tokName || line[i].text != "import" {
		return ImportFromStmt{}, 0, invalidSyntax(line, i)
	}
	i++

	if i < len(line) && line[i].kind == tokOp && line[i].text == "*" {
		stmt.Names = append(stmt.Names, Alias{Name: "*"})
		i++
	} else {
		parens := i < len(line) && line[i].kind == tokOp && line[i].text == "("
		if parens {
			i++
		}
		for {
			alias, next, err := parseAlias(line, i, false)
			if err != nil {
				return ImportFromStmt{}, 0, err
			}
			stmt.Names = append(stmt.Names, alias)
			i = next
			if i < len(line) && line[i].kind == tokOp && line[i].text == "," {
				i++
				if parens && i < len(line) && line[i].kind == tokOp && line[i].text == ")" {
					break
				}
				continue
			}
			break
		}
		if parens {
			if i >= len(line) || line[i].kind != tokOp || line[i].text != ")" {
				return ImportFromStmt{}, 0, invalidSyntax(line, i)
			}
			i++
		}
	}
	if err := expectStatementEnd(line, i); err != nil {
		return ImportFromStmt{}, 0, err
	}
	return stmt, i, nil
}

func parseAlias(line []token, i int, dotted bool) (Alias, int, error) {
	var alias Alias
	if dotted {
		name, next, err := parseDotted(line, i)
		if err != nil {
			return Alias{}, 0, err
		}
		alias.Name, i = name, next
	} else {
		if i >= len(line) || line[i].kind != tokName {
			return Alias{}, 0, invalidSyntax(line, i)
		}
		alias.Name = line[i].text
		i++
	}
	if i < len(line) && line[i].kind == tokName && line[i].text == "as" {
		i++
		if i >= len(line) || line[i].kind != tokName {
			return Alias{}, 0, invalidSyntax(line, i)
		}
		alias.AsName = line[i].text
		i++
	}
	return alias, i, nil
}

func parseDotted(line []token, i int) (string, int, error) {
	if i >= len(line) || line[i].kind != tokName {
		return "", 0, invalidSyntax(line, i)
	}
	parts := []string{line[i].text}
	i++
	for i+1 < len(line) && line[i].kind == tokOp && line[i].text == "." && line[i+1].kind == tokName {
		parts = append(parts, line[i+1].text)
		i += 2
	}
	return strings.Join(parts, "."), i, nil
}

func expectStatementEnd(line []token, i int) error {
	if i >= len(line) || (line[i].kind == tokOp && line[i].text == ";") {
		return nil
	}
	return invalidSyntax(line, i)
}

func invalidSyntax(line []token, i int) error {
	ln := line[len(line)-1].line
	if i < len(line) {
		ln = line[i].line
	}
	return &SyntaxError{Line: ln, Msg: "invalid syntax"}
}
