package security

var pythonKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
	"match": true, "case": true, "type": true,
}

// softKeywords are also valid identifiers, as in type(x).
var softKeywords = map[string]bool{"match": true, "case": true, "type": true}

// binaryOnly operators need an operand on both sides.
var binaryOnly = map[string]bool{
	"/": true, "//": true, "%": true, "@": true, "<<": true, ">>": true,
	"&": true, "|": true, "^": true, "<": true, ">": true, "<=": true,
	">=": true, "==": true, "!=": true, "=": true, ":=": true,
	"+=": true, "-=": true, "*=": true, "/=": true, "//=": true, "%=": true,
	"**=": true, ">>=": true, "<<=": true, "&=": true, "|=": true, "^=": true,
	"@=": true,
}

// prefixCapable operators may also start an operand (sign, invert, unpack).
var prefixCapable = map[string]bool{
	"+": true, "-": true, "~": true, "*": true, "**": true,
}

// checkExpression rejects token sequences no Python expression or simple
// statement can produce: an operator missing its right operand, two
// operators in a row, two operands in a row, and empty list elements.
// Import statements are parsed separately and must not be passed in.
func checkExpression(line []token) error {
	for i, tok := range line {
		var next *token
		if i+1 < len(line) {
			next = &line[i+1]
		}
		if err := checkPair(line, i, tok, next); err != nil {
			return err
		}
	}
	return nil
}

func checkPair(line []token, i int, tok token, next *token) error {
	fail := func() error {
		return &SyntaxError{Line: tok.line, Msg: "invalid syntax"}
	}
	if isOperator(tok) {
		if next == nil || isCloser(*next) || isOp(*next, ",") || isOp(*next, ";") || isOp(*next, ":") {
			// def f(a, /, b, *, c) and lambda a, /: a
			if (tok.text == "*" || tok.text == "/") && next != nil && (isOp(*next, ",") || isOp(*next, ")")) {
				return nil
			}
			if tok.text == "/" && next != nil && isOp(*next, ":") {
				return nil
			}
			return fail()
		}
		if next.kind == tokOp && binaryOnly[next.text] {
			return fail()
		}
	}
	if tok.kind == tokOp && binaryOnly[tok.text] && startsOperand(line, i) {
		switch {
		case tok.text == "@" && (i == 0 || isOp(line[i-1], ";")):
		case tok.text == "/" && i > 0 && isOp(line[i-1], ","):
		default:
			return fail()
		}
	}
	if next == nil {
		return nil
	}
	if endsOperand(tok) && beginsOperand(*next) && !(tok.kind == tokString && next.kind == tokString) {
		return &SyntaxError{Line: next.line, Msg: "invalid syntax"}
	}
	if isOp(*next, ",") && (isOp(tok, ",") || isOpener(tok)) {
		return &SyntaxError{Line: next.line, Msg: "invalid syntax"}
	}
	if isOp(tok, "[") && isOp(*next, "]") && i > 0 && endsOperand(line[i-1]) {
		return &SyntaxError{Line: tok.line, Msg: "invalid syntax"}
	}
	return nil
}

func isOperator(tok token) bool {
	return tok.kind == tokOp && (binaryOnly[tok.text] || prefixCapable[tok.text])
}

// startsOperand reports whether line[i] is where an operand is expected.
func startsOperand(line []token, i int) bool {
	if i == 0 {
		return true
	}
	prev := line[i-1]
	return isOpener(prev) || isOp(prev, ",") || isOp(prev, ";")
}

func endsOperand(tok token) bool {
	switch tok.kind {
	case tokName:
		return !pythonKeywords[tok.text]
	case tokNumber, tokString:
		return true
	}
	return isCloser(tok)
}

func beginsOperand(tok token) bool {
	switch tok.kind {
	case tokName:
		return !pythonKeywords[tok.text]
	case tokNumber, tokString:
		return true
	}
	return false
}

func isOpener(tok token) bool {
	return tok.kind == tokOp && (tok.text == "(" || tok.text == "[" || tok.text == "{")
}

func isCloser(tok token) bool {
	return tok.kind == tokOp && (tok.text == ")" || tok.text == "]" || tok.text == "}")
}
