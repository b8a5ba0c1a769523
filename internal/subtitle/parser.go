package subtitle

import (
	"fmt"
	"strconv"
	"strings"
)

// Grammar, one or more entries until the input is exhausted:
//
//	entry     = ws* index ws* timestamp " --> " timestamp ws* text
//	timestamp = uint ( (":" | ",") uint ){3}
//	text      = bytes up to the first blank line (or end of input)
//
// A text block containing " --> " rejects the entry: it means the blank line
// in front of the next header is missing and the text swallowed it.

// Parse parses preprocessed SRT text (see Decode) into a stream.
// The whole input must match the grammar; there is no partial result.
func Parse(input string) (*Stream, error) {
	p := &parser{src: input}

	var captions []Caption
	for {
		p.skipSpace()
		if p.eof() {
			break
		}
		c, err := p.caption()
		if err != nil {
			return nil, err
		}
		captions = append(captions, c)
	}

	if len(captions) == 0 {
		return nil, &ParseError{Line: 1, Msg: "no captions found"}
	}
	return &Stream{captions: captions}, nil
}

// ParseCaption parses a single entry from the start of input and returns the
// unconsumed remainder, which begins right after the entry's text block.
// On failure rest is the untouched input.
func ParseCaption(input string) (c Caption, rest string, err error) {
	p := &parser{src: input}
	c, err = p.caption()
	if err != nil {
		return Caption{}, input, err
	}
	return c, input[p.pos:], nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) errorf(at int, format string, args ...any) *ParseError {
	return &ParseError{
		Line:   1 + strings.Count(p.src[:at], "\n"),
		Offset: at,
		Msg:    fmt.Sprintf(format, args...),
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func (p *parser) skipSpace() {
	for !p.eof() && isSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *parser) uint(bitSize int) (uint64, error) {
	start := p.pos
	for !p.eof() && isDigit(p.src[p.pos]) {
		p.pos++
	}
	if start == p.pos {
		return 0, p.errorf(start, "expected a number, found %s", p.peek())
	}
	v, err := strconv.ParseUint(p.src[start:p.pos], 10, bitSize)
	if err != nil {
		return 0, p.errorf(start, "number %s does not fit in %d bits", p.src[start:p.pos], bitSize)
	}
	return v, nil
}

func (p *parser) peek() string {
	if p.eof() {
		return "end of input"
	}
	end := min(p.pos+12, len(p.src))
	return strconv.Quote(p.src[p.pos:end])
}

func (p *parser) timestamp() (Timestamp, error) {
	start := p.pos

	first, err := p.uint(16)
	if err != nil {
		return Timestamp{}, err
	}
	fields := []uint64{first}
	// a separator only counts when a number follows it
	for p.pos+1 < len(p.src) && (p.src[p.pos] == ':' || p.src[p.pos] == ',') && isDigit(p.src[p.pos+1]) {
		p.pos++
		v, err := p.uint(16)
		if err != nil {
			return Timestamp{}, err
		}
		fields = append(fields, v)
	}

	if len(fields) != 4 {
		return Timestamp{}, p.errorf(start, "timestamp needs 4 fields, got %d", len(fields))
	}
	for i, v := range fields[:3] {
		if v > 0xff {
			return Timestamp{}, p.errorf(start, "timestamp field %d value %d does not fit in 8 bits", i+1, v)
		}
	}

	return Timestamp{
		Hours:        uint8(fields[0]),
		Minutes:      uint8(fields[1]),
		Seconds:      uint8(fields[2]),
		Milliseconds: uint16(fields[3]),
	}, nil
}

func (p *parser) caption() (Caption, error) {
	p.skipSpace()
	index, err := p.uint(32)
	if err != nil {
		return Caption{}, err
	}

	p.skipSpace()
	start, err := p.timestamp()
	if err != nil {
		return Caption{}, err
	}
	if !strings.HasPrefix(p.src[p.pos:], Arrow) {
		return Caption{}, p.errorf(p.pos, "expected %q, found %s", Arrow, p.peek())
	}
	p.pos += len(Arrow)
	end, err := p.timestamp()
	if err != nil {
		return Caption{}, err
	}

	p.skipSpace()
	textStart := p.pos
	if p.eof() {
		return Caption{}, p.errorf(textStart, "caption %d has no text", index)
	}
	textEnd := len(p.src)
	if n := strings.Index(p.src[textStart:], "\n\n"); n >= 0 {
		textEnd = textStart + n
	}
	raw := p.src[textStart:textEnd]
	if n := strings.Index(raw, Arrow); n >= 0 {
		return Caption{}, p.errorf(textStart+n,
			"text of caption %d contains %q; the blank line before the next caption is probably missing", index, Arrow)
	}
	p.pos = textEnd

	return Caption{
		Index: int(index),
		Start: start,
		End:   end,
		Text:  strings.TrimSpace(raw),
	}, nil
}
