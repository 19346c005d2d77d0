package fixer

import (
	"strings"
)

// physLine is one physical line with the lexical state the passes need.
type physLine struct {
	raw    string
	indent int    // visual width of the leading whitespace
	body   string // raw without the leading whitespace
	// code is body up to any comment, with string literal characters replaced
	// by NUL so patterns never match inside strings. It is index-aligned with body.
	code    string
	blank   bool
	comment bool // comment-only line
	// cont marks a line that starts inside brackets, a triple-quoted string
	// or after a backslash continuation.
	cont     bool
	inString bool // starts inside a triple-quoted string
	// open holds the brackets still open at the end of the line.
	open []byte
}

func (l *physLine) isCode() bool { return !l.blank && !l.comment && !l.cont }

// trimmedCode returns the code part of the line without trailing spaces.
func (l *physLine) trimmedCode() string {
	return strings.TrimRight(l.code, " \t")
}

func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func indentWidth(s string) (int, int) {
	w := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ':
			w++
		case '\t':
			w = (w/8 + 1) * 8
		default:
			return w, i
		}
	}
	return w, len(s)
}

type scanner struct {
	stack     []byte
	triple    string
	backslash bool
}

// done reports whether the scan ended outside any string or bracket.
func (s *scanner) done() bool {
	return len(s.stack) == 0 && s.triple == "" && !s.backslash
}

func scanLines(lines []string) ([]physLine, *scanner) {
	sc := &scanner{}
	out := make([]physLine, len(lines))
	for i, raw := range lines {
		out[i] = sc.line(raw)
	}
	return out, sc
}

func scanText(text string) ([]physLine, *scanner) {
	return scanLines(splitLines(text))
}

func (s *scanner) line(raw string) physLine {
	l := physLine{raw: raw}
	l.cont = len(s.stack) > 0 || s.triple != "" || s.backslash
	l.inString = s.triple != ""
	s.backslash = false

	var start int
	l.indent, start = indentWidth(raw)
	l.body = raw[start:]
	l.blank = strings.TrimSpace(raw) == ""

	body := l.body
	code := []byte(body)
	codeEnd := len(body)
	mask := func(from, to int) {
		for k := from; k < to && k < len(code); k++ {
			code[k] = 0
		}
	}

	i := 0
	for i < len(body) {
		if s.triple != "" {
			j := closeTriple(body, i, s.triple)
			if j < 0 {
				mask(i, len(body))
				i = len(body)
				break
			}
			mask(i, j+3)
			i = j + 3
			s.triple = ""
			continue
		}
		c := body[i]
		switch {
		case c == '#':
			codeEnd = i
			i = len(body)
		case c == '\'' || c == '"':
			if strings.HasPrefix(body[i:], strings.Repeat(string(c), 3)) {
				s.triple = strings.Repeat(string(c), 3)
				mask(i, i+3)
				i += 3
				continue
			}
			j := i + 1
			for j < len(body) && body[j] != c {
				if body[j] == '\\' {
					j++
				}
				j++
			}
			mask(i, j+1)
			i = j + 1
		case c == '(' || c == '[' || c == '{':
			s.stack = append(s.stack, c)
			i++
		case c == ')' || c == ']' || c == '}':
			if len(s.stack) > 0 {
				s.stack = s.stack[:len(s.stack)-1]
			}
			i++
		case c == '\\' && i == len(body)-1:
			s.backslash = true
			i++
		default:
			i++
		}
	}

	l.code = string(code[:codeEnd])
	l.comment = !l.cont && strings.HasPrefix(body, "#")
	l.open = append([]byte(nil), s.stack...)
	return l
}

// closeTriple finds the closing delimiter at or after i, skipping escapes.
func closeTriple(body string, i int, delim string) int {
	for i < len(body) {
		if body[i] == '\\' {
			i += 2
			continue
		}
		if strings.HasPrefix(body[i:], delim) {
			return i
		}
		i++
	}
	return -1
}

// statementEnd returns the index of the last physical line of the logical
// line starting at i.
func statementEnd(lines []physLine, i int) int {
	j := i
	for j+1 < len(lines) && lines[j+1].cont {
		j++
	}
	return j
}
