package plan

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ParseLiteral parses a restricted literal expression: integers, floats,
// quoted strings (single, double or triple quoted), True, False, None,
// lists, tuples and dicts of the same. A top-level comma-separated
// sequence is a tuple. Lists and tuples both become []any.
func ParseLiteral(src string) (any, error) {
	p := &literalParser{src: []rune(src)}
	p.skipSpace()
	v, err := p.parseSequence(0)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected %q", string(p.peek()))
	}
	return v, nil
}

type literalParser struct {
	src []rune
	pos int
}

func (p *literalParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: literal at offset %d: %s", ErrParse, p.pos, fmt.Sprintf(format, args...))
}

func (p *literalParser) eof() bool { return p.pos >= len(p.src) }

func (p *literalParser) peek() rune {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *literalParser) skipSpace() {
	for !p.eof() && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

// parseSequence parses `value (, value)* ,?` up to the closer. A bare value
// with no comma is returned as is; otherwise the result is a tuple.
// closer is 0 at top level.
func (p *literalParser) parseSequence(closer rune) (any, error) {
	var items []any
	sawComma := false
	for {
		p.skipSpace()
		if p.eof() || p.peek() == closer {
			break
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		p.skipSpace()
		if p.peek() != ',' {
			break
		}
		p.pos++
		sawComma = true
	}
	if len(items) == 1 && !sawComma {
		return items[0], nil
	}
	if len(items) == 0 && closer == 0 {
		return nil, p.errorf("empty expression")
	}
	if items == nil {
		items = []any{}
	}
	return items, nil
}

func (p *literalParser) parseValue() (any, error) {
	p.skipSpace()
	switch r := p.peek(); {
	case r == '[':
		return p.parseList()
	case r == '(':
		return p.parseTuple()
	case r == '{':
		return p.parseDict()
	case r == '"' || r == '\'':
		return p.parseStrings()
	case r == '-' || r == '+' || r == '.' || unicode.IsDigit(r):
		return p.parseNumber()
	case unicode.IsLetter(r):
		return p.parseKeyword()
	case r == 0:
		return nil, p.errorf("unexpected end of input")
	default:
		return nil, p.errorf("unexpected %q", string(r))
	}
}

func (p *literalParser) expect(r rune) error {
	p.skipSpace()
	if p.peek() != r {
		return p.errorf("expected %q", string(r))
	}
	p.pos++
	return nil
}

func (p *literalParser) parseList() (any, error) {
	p.pos++ // [
	var items []any
	for {
		p.skipSpace()
		if p.peek() == ']' {
			break
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		p.skipSpace()
		if p.peek() != ',' {
			break
		}
		p.pos++
	}
	if err := p.expect(']'); err != nil {
		return nil, err
	}
	if items == nil {
		items = []any{}
	}
	return items, nil
}

// parseTuple handles `()`, `(x)` which is just x, and `(x,)`.
func (p *literalParser) parseTuple() (any, error) {
	p.pos++ // (
	v, err := p.parseSequence(')')
	if err != nil {
		return nil, err
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return v, nil
}

func (p *literalParser) parseDict() (any, error) {
	p.pos++ // {
	out := make(map[string]any)
	for {
		p.skipSpace()
		if p.peek() == '}' {
			break
		}
		k, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if err := p.expect(':'); err != nil {
			return nil, err
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		out[fmt.Sprint(k)] = v
		p.skipSpace()
		if p.peek() != ',' {
			break
		}
		p.pos++
	}
	if err := p.expect('}'); err != nil {
		return nil, err
	}
	return out, nil
}

// parseStrings reads one or more adjacent string literals and concatenates them.
func (p *literalParser) parseStrings() (any, error) {
	var b strings.Builder
	for {
		s, err := p.parseString()
		if err != nil {
			return nil, err
		}
		b.WriteString(s)
		save := p.pos
		p.skipSpace()
		if r := p.peek(); r != '"' && r != '\'' {
			p.pos = save
			return b.String(), nil
		}
	}
}

func (p *literalParser) parseString() (string, error) {
	quote := p.peek()
	triple := p.pos+2 < len(p.src) && p.src[p.pos+1] == quote && p.src[p.pos+2] == quote
	if triple {
		p.pos += 3
	} else {
		p.pos++
	}

	var b strings.Builder
	for {
		if p.eof() {
			return "", p.errorf("unterminated string")
		}
		r := p.src[p.pos]
		switch {
		case r == '\\':
			if p.pos+1 >= len(p.src) {
				return "", p.errorf("dangling escape")
			}
			b.WriteString(unescape(p.src[p.pos+1]))
			p.pos += 2
		case triple && r == quote && p.pos+2 < len(p.src) && p.src[p.pos+1] == quote && p.src[p.pos+2] == quote:
			p.pos += 3
			return b.String(), nil
		case !triple && r == quote:
			p.pos++
			return b.String(), nil
		case !triple && r == '\n':
			return "", p.errorf("newline in string")
		default:
			b.WriteRune(r)
			p.pos++
		}
	}
}

func unescape(r rune) string {
	switch r {
	case 'n':
		return "\n"
	case 't':
		return "\t"
	case 'r':
		return "\r"
	case '\\', '\'', '"':
		return string(r)
	case '\n':
		return ""
	default:
		return "\\" + string(r)
	}
}

func (p *literalParser) parseNumber() (any, error) {
	start := p.pos
	if r := p.peek(); r == '-' || r == '+' {
		p.pos++
	}
	isFloat := false
scan:
	for !p.eof() {
		r := p.peek()
		switch {
		case unicode.IsDigit(r) || r == '_':
		case r == '.' || r == 'e' || r == 'E':
			isFloat = true
		case (r == '-' || r == '+') && (p.src[p.pos-1] == 'e' || p.src[p.pos-1] == 'E'):
		default:
			break scan
		}
		p.pos++
	}
	text := strings.ReplaceAll(string(p.src[start:p.pos]), "_", "")
	if !isFloat {
		if n, err := strconv.Atoi(text); err == nil {
			return n, nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, p.errorf("invalid number %q", text)
	}
	return f, nil
}

func (p *literalParser) parseKeyword() (any, error) {
	start := p.pos
	for !p.eof() && (unicode.IsLetter(p.peek()) || unicode.IsDigit(p.peek()) || p.peek() == '_') {
		p.pos++
	}
	switch word := string(p.src[start:p.pos]); word {
	case "True":
		return true, nil
	case "False":
		return false, nil
	case "None":
		return nil, nil
	default:
		p.pos = start
		return nil, p.errorf("name %q is not a literal", word)
	}
}

// ParseArgs turns the raw text between an action's parentheses into an
// argument list. One layer of quotes wrapping a single string literal is
// removed first, and multi-line text is parsed as one triple-quoted string.
// Text that is not a literal becomes a single string argument with one layer
// of matching outer quotes removed, so 'What's new' yields What's new.
func ParseArgs(raw string) []any {
	args := strings.TrimSpace(raw)
	unquoted := trimOuterQuotes(args)
	args = stripQuotes(args)

	if args == "" {
		return []any{}
	}

	src := args
	if strings.Contains(args, "\n") {
		src = `"""` + args + `"""`
	}

	v, err := ParseLiteral(src)
	if err != nil {
		return []any{unquoted}
	}
	if list, ok := v.([]any); ok {
		return list
	}
	return []any{v}
}

// stripQuotes removes one pair of matching quotes when they enclose the whole
// text as a single string, so `"a", "b"` keeps its quotes.
func stripQuotes(s string) string {
	if len(s) < 2 {
		return s
	}
	q := s[0]
	if (q != '"' && q != '\'') || s[len(s)-1] != q {
		return s
	}
	inner := s[1 : len(s)-1]
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '\\':
			i++
		case q:
			return s
		}
	}
	return inner
}

// trimOuterQuotes removes one pair of matching outer quotes regardless of
// what they enclose.
func trimOuterQuotes(s string) string {
	if len(s) < 2 {
		return s
	}
	if q := s[0]; (q == '"' || q == '\'') && s[len(s)-1] == q {
		return s[1 : len(s)-1]
	}
	return s
}
