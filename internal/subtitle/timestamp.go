package subtitle

import (
	"fmt"
	"time"
)

// Timestamp is a caption time point. Hours, minutes and seconds are stored
// in a byte each, milliseconds in 16 bits.
type Timestamp struct {
	Hours        uint8
	Minutes      uint8
	Seconds      uint8
	Milliseconds uint16
}

// ParseTimestamp parses a complete timestamp such as "00:01:02,345".
func ParseTimestamp(s string) (Timestamp, error) {
	p := &parser{src: s}
	ts, err := p.timestamp()
	if err != nil {
		return Timestamp{}, err
	}
	if !p.eof() {
		return Timestamp{}, p.errorf(p.pos, "unexpected %q after timestamp", s[p.pos:])
	}
	return ts, nil
}

func (t Timestamp) String() string {
	return fmt.Sprintf("%02d:%02d:%02d,%03d", t.Hours, t.Minutes, t.Seconds, t.Milliseconds)
}

// Duration converts the timestamp to an offset from the start of the media.
func (t Timestamp) Duration() time.Duration {
	return time.Duration(t.Hours)*time.Hour +
		time.Duration(t.Minutes)*time.Minute +
		time.Duration(t.Seconds)*time.Second +
		time.Duration(t.Milliseconds)*time.Millisecond
}
