package subtitle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    Timestamp
		wantErr bool
	}{
		{in: "00:00:01,140", want: Timestamp{Seconds: 1, Milliseconds: 140}},
		{in: "1:2:3,4", want: Timestamp{Hours: 1, Minutes: 2, Seconds: 3, Milliseconds: 4}},
		{in: "99:59:59,999", want: Timestamp{Hours: 99, Minutes: 59, Seconds: 59, Milliseconds: 999}},
		// either separator is accepted between any two fields
		{in: "01,02:03:04", want: Timestamp{Hours: 1, Minutes: 2, Seconds: 3, Milliseconds: 4}},
		{in: "00:00:01", wantErr: true},
		{in: "00:00:01,140,1", wantErr: true},
		{in: "00:00:01,140 ", wantErr: true},
		{in: "00:00:256,000", wantErr: true},
		{in: "00:00:01,70000", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			if tt.wantErr {
				var perr *ParseError
				assert.ErrorAs(t, err, &perr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimestamp_String(t *testing.T) {
	assert.Equal(t, "00:00:01,140", Timestamp{Seconds: 1, Milliseconds: 140}.String())
	assert.Equal(t, "01:02:03,004", Timestamp{Hours: 1, Minutes: 2, Seconds: 3, Milliseconds: 4}.String())
}

func TestTimestamp_Duration(t *testing.T) {
	ts := Timestamp{Hours: 1, Minutes: 2, Seconds: 3, Milliseconds: 4}
	assert.Equal(t, time.Hour+2*time.Minute+3*time.Second+4*time.Millisecond, ts.Duration())
}
