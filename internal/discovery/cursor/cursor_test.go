package cursor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	for _, offset := range []int{0, 1, 20, 40, 999, 100000} {
		assert.Equal(t, offset, Decode(Encode(offset)))
	}
}

func TestEncode_ClampsNegative(t *testing.T) {
	assert.Equal(t, "0", Encode(-5))
}

func TestDecode_InvalidFallsBackToZero(t *testing.T) {
	cases := []string{
		"",
		"abc",
		"12.5",
		"-40",
		"40x",
		" 40",
		strings.Repeat("9", 101),
	}
	for _, c := range cases {
		assert.Equal(t, 0, Decode(c), "cursor %q", c)
	}
}

func TestDecode_MaxLengthBoundary(t *testing.T) {
	// 100 digits is still accepted by length, but overflows int parsing
	// and therefore decodes to 0.
	assert.Equal(t, 0, Decode(strings.Repeat("9", 100)))
}
