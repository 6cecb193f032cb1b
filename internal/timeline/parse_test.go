package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSegments(t *testing.T) {
	got, err := ParseSegments(" 0:30, 40:50:2 ")
	require.NoError(t, err)
	assert.Equal(t, []Segment{
		{Start: 0, End: 30, Timescale: 1},
		{Start: 40, End: 50, Timescale: 2},
	}, got)

	got, err = ParseSegments("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseSegments_Invalid(t *testing.T) {
	for _, input := range []string{"10", "0:1:2:3", "a:b", "5:1", "0:10:0", "0:10,"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseSegments(input)
			assert.ErrorIs(t, err, ErrInvalidSegmentList)
		})
	}
}
