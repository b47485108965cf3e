package oscserver

import (
	"fmt"
	"regexp"
	"strings"
)

const patternChars = "*?[]{}"

// isPattern reports whether addr uses OSC wildcard syntax.
func isPattern(addr string) bool {
	return strings.ContainsAny(addr, patternChars)
}

// compilePattern translates an OSC 1.0 address pattern into an anchored
// regexp. Wildcards never match across '/'.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteByte('^')
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '*':
			sb.WriteString(`[^/]*`)
		case '?':
			sb.WriteString(`[^/]`)
		case '[':
			end := strings.IndexByte(pattern[i+1:], ']')
			if end < 0 {
				return nil, fmt.Errorf("pattern %q: unclosed '['", pattern)
			}
			class, err := charClass(pattern[i+1 : i+1+end])
			if err != nil {
				return nil, fmt.Errorf("pattern %q: %w", pattern, err)
			}
			sb.WriteString(class)
			i += end + 1
		case '{':
			end := strings.IndexByte(pattern[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("pattern %q: unclosed '{'", pattern)
			}
			body := pattern[i+1 : i+1+end]
			if strings.ContainsAny(body, "{/") {
				return nil, fmt.Errorf("pattern %q: bad alternation %q", pattern, body)
			}
			alts := strings.Split(body, ",")
			for j, a := range alts {
				alts[j] = regexp.QuoteMeta(a)
			}
			sb.WriteString("(?:" + strings.Join(alts, "|") + ")")
			i += end + 1
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	sb.WriteByte('$')
	return regexp.Compile(sb.String())
}

// charClass converts the body of an OSC [...] group. A leading '!' negates
// it; '-' between two characters is a range.
func charClass(body string) (string, error) {
	negate := strings.HasPrefix(body, "!")
	if negate {
		body = body[1:]
	}
	if body == "" {
		return "", fmt.Errorf("empty character class")
	}
	var sb strings.Builder
	sb.WriteByte('[')
	if negate {
		sb.WriteByte('^')
	}
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '/':
			return "", fmt.Errorf("'/' inside character class")
		case c == '-' && i > 0 && i < len(body)-1:
			if body[i-1] > body[i+1] {
				return "", fmt.Errorf("bad range %c-%c", body[i-1], body[i+1])
			}
			sb.WriteByte('-')
		case c == '\\' || c == '[' || c == ']' || c == '^' || c == '-':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
	}
	if negate {
		sb.WriteByte('/')
	}
	sb.WriteByte(']')
	return sb.String(), nil
}
