// Package aistream reconstructs answer text from a streamed, chunked JSON
// document whose objects carry a "text" field, and supervises the
// lifecycle of those streams.
package aistream

import (
	"regexp"
	"strings"
)

var textField = regexp.MustCompile(`"text":\s*"((?:[^"\\]|\\.)*)"`)

// Parser extracts text fields from a byte stream delivered in arbitrary
// chunks. Consumed input is discarded; an unmatched tail is kept until more
// bytes arrive, so no fragment is emitted twice or lost at a chunk border.
// A Parser is not safe for concurrent use.
type Parser struct {
	buf []byte
}

// Feed appends chunk and returns the fragments completed by it, unescaped,
// in stream order.
func (p *Parser) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	p.buf = append(p.buf, chunk...)

	locs := textField.FindAllSubmatchIndex(p.buf, -1)
	if len(locs) == 0 {
		return nil
	}
	out := make([]string, 0, len(locs))
	for _, loc := range locs {
		out = append(out, Unescape(string(p.buf[loc[2]:loc[3]])))
	}

	consumed := locs[len(locs)-1][1]
	n := copy(p.buf, p.buf[consumed:])
	p.buf = p.buf[:n]
	return out
}

// Pending returns the number of buffered bytes not yet matched.
func (p *Parser) Pending() int { return len(p.buf) }

// Reset drops any buffered input.
func (p *Parser) Reset() { p.buf = p.buf[:0] }

// Unescape decodes \n and \" and drops \r. Any other escape sequence is
// passed through unchanged, backslash included.
func Unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case '"':
			b.WriteByte('"')
		case 'r':
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
