package subtitle

import (
	"fmt"
	"iter"
	"strings"
)

// Arrow separates the start and end timestamps of a caption header.
const Arrow = " --> "

// Caption is a single SRT entry.
type Caption struct {
	Index int       // caption index as written in the file
	Start Timestamp // start time
	End   Timestamp // end time
	Text  string    // trimmed text body, possibly multi-line
}

// String renders the caption without the trailing block separator.
func (c Caption) String() string {
	return fmt.Sprintf("%d\n%s%s%s\n%s", c.Index, c.Start, Arrow, c.End, c.Text)
}

// Stream is an ordered sequence of captions in file order.
// Captions can be read and their text replaced, but the sequence itself
// is fixed once parsed.
type Stream struct {
	captions []Caption
}

// NewStream builds a stream from already validated captions.
func NewStream(captions ...Caption) *Stream {
	return &Stream{captions: append([]Caption(nil), captions...)}
}

func (s *Stream) Len() int {
	return len(s.captions)
}

// At returns the caption at stream position pos.
func (s *Stream) At(pos int) Caption {
	return s.captions[pos]
}

// All iterates over stream positions and captions in file order.
func (s *Stream) All() iter.Seq2[int, Caption] {
	return func(yield func(int, Caption) bool) {
		for i, c := range s.captions {
			if !yield(i, c) {
				return
			}
		}
	}
}

// Lookup finds the first caption carrying the given index.
func (s *Stream) Lookup(index int) (Caption, bool) {
	for _, c := range s.captions {
		if c.Index == index {
			return c, true
		}
	}
	return Caption{}, false
}

// SetText replaces the text of the caption at stream position pos.
func (s *Stream) SetText(pos int, text string) error {
	if pos < 0 || pos >= len(s.captions) {
		return fmt.Errorf("caption position %d out of range [0,%d)", pos, len(s.captions))
	}
	s.captions[pos].Text = text
	return nil
}

// Render serializes the stream back to SRT text.
func (s *Stream) Render() string {
	var sb strings.Builder
	for _, c := range s.captions {
		sb.WriteString(c.String())
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func (s *Stream) String() string {
	return s.Render()
}

// ParseError reports input that does not follow the caption grammar.
type ParseError struct {
	Line   int // 1-based line where the failing entry or token starts
	Offset int // byte offset into the preprocessed input
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("subtitle parse error at line %d: %s", e.Line, e.Msg)
}

// DecodeError reports raw bytes that are not valid UTF-8.
type DecodeError struct {
	Offset int // offset of the first invalid byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("subtitle is not valid UTF-8: invalid byte at offset %d", e.Offset)
}
