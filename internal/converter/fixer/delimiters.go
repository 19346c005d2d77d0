package fixer

import (
	"strings"
)

// Delimiters repairs comma artifacts left by argument removal and closes
// parentheses left open at the end of a statement.
type Delimiters struct{}

func (Delimiters) Name() string { return "delimiters" }

func (Delimiters) Apply(text string) (string, error) {
	lines := splitLines(text)
	phys, _ := scanLines(lines)
	for i, l := range phys {
		if l.blank || l.comment || l.inString {
			continue
		}
		lead := l.raw[:len(l.raw)-len(l.body)]
		lines[i] = lead + repairCommas(l.body, l.code)
	}

	// each round closes one statement; the rescan picks up the new state
	for round := 0; round <= len(lines); round++ {
		phys, _ = scanLines(lines)
		i := unclosedAt(phys)
		if i < 0 {
			break
		}
		lines[i] = closeParens(phys[i])
	}
	return joinLines(lines), nil
}

var notCallee = map[string]bool{
	"in": true, "is": true, "not": true, "and": true, "or": true, "if": true, "elif": true,
	"else": true, "while": true, "for": true, "return": true, "yield": true, "lambda": true,
	"assert": true, "del": true, "await": true, "import": true, "from": true, "with": true, "as": true,
}

func isIdent(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// opensCall reports whether the parenthesis at code[i] starts an argument list.
func opensCall(code string, i int) bool {
	j := i - 1
	for j >= 0 && code[j] == ' ' {
		j--
	}
	if j < 0 {
		return false
	}
	if code[j] == ')' || code[j] == ']' {
		return true
	}
	if !isIdent(code[j]) {
		return false
	}
	k := j
	for k >= 0 && isIdent(code[k]) {
		k--
	}
	return !notCallee[code[k+1:j+1]]
}

func skipSpaces(code string, i int) int {
	for i < len(code) && (code[i] == ' ' || code[i] == '\t') {
		i++
	}
	return i
}

// repairCommas drops `(,` and `, ,` artifacts and trailing commas in argument
// lists. Tuple trailing commas are kept. code masks strings and comments.
func repairCommas(body, code string) string {
	drop := make([]bool, len(body))
	mark := func(from, to int) {
		for k := from; k < to; k++ {
			drop[k] = true
		}
	}
	type paren struct{ call bool }
	var stack []paren

	for i := 0; i < len(code); i++ {
		if drop[i] {
			continue
		}
		switch c := code[i]; c {
		case '(', '[', '{':
			stack = append(stack, paren{call: c == '(' && opensCall(code, i)})
			if c != '(' {
				continue
			}
			if k := skipSpaces(code, i+1); k < len(code) && code[k] == ',' {
				mark(i+1, skipSpaces(code, k+1))
			}
		case ')', ']', '}':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case ',':
			k := skipSpaces(code, i+1)
			for k < len(code) && code[k] == ',' {
				mark(i+1, k+1)
				k = skipSpaces(code, k+1)
			}
			if k < len(code) && code[k] == ')' && len(stack) > 0 && stack[len(stack)-1].call {
				mark(i, k)
			}
		}
	}

	var b strings.Builder
	for i := 0; i < len(body); i++ {
		if !drop[i] {
			b.WriteByte(body[i])
		}
	}
	return b.String()
}

// continuesStatement reports whether a line's code ends in a way that makes
// the next line part of the same statement.
func continuesStatement(code string) bool {
	code = strings.TrimRight(code, " \t")
	if code == "" {
		return true
	}
	if strings.ContainsRune(",([{\\+-*/%&|^=<>.~@:", rune(code[len(code)-1])) {
		return true
	}
	fields := strings.Fields(code)
	last := fields[len(fields)-1]
	return notCallee[last]
}

// startsContinuation reports whether a line's code can only continue an
// earlier line.
func startsContinuation(body string) bool {
	if body == "" {
		return false
	}
	if strings.ContainsRune(")]},.+-*/%&|^=<>@", rune(body[0])) {
		return true
	}
	word := body
	if k := strings.IndexFunc(body, func(r rune) bool { return !isIdent(byte(r)) || r > 127 }); k >= 0 {
		word = body[:k]
	}
	switch word {
	case "and", "or", "not", "in", "is", "if", "else", "for":
		return true
	}
	return false
}

func onlyParens(open []byte) bool {
	for _, c := range open {
		if c != '(' {
			return false
		}
	}
	return len(open) > 0
}

// unclosedAt returns the index of a line ending a statement with parentheses
// still open, or -1.
func unclosedAt(phys []physLine) int {
	start := -1
	prev := -1
	for j := range phys {
		l := phys[j]
		if l.blank {
			continue
		}
		if !l.cont {
			start = j
			prev = j
			continue
		}
		if start >= 0 && prev >= 0 && !l.inString && !strings.HasPrefix(l.body, "#") &&
			l.indent <= phys[start].indent && candidate(phys[prev]) && !startsContinuation(l.body) {
			return prev
		}
		prev = j
	}
	if prev >= 0 && candidate(phys[prev]) {
		return prev
	}
	return -1
}

func candidate(l physLine) bool {
	return !l.comment && onlyParens(l.open) && !continuesStatement(l.code)
}

// closeParens appends the missing parentheses before any trailing comment.
func closeParens(l physLine) string {
	lead := l.raw[:len(l.raw)-len(l.body)]
	k := len(l.trimmedCode())
	return lead + l.body[:k] + strings.Repeat(")", len(l.open)) + l.body[k:]
}
