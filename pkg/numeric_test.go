package ddrescue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumberPlain(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"1234", 1234},
		{"0x1000", 0x1000},
		{"010", 8}, // octal
	}
	for _, c := range cases {
		got, err := ParseNumber(c.in, 512)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestParseNumberSuffixes(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"1k", 1000},
		{"1Ki", 1024},
		{"2M", 2_000_000},
		{"1Mi", 1 << 20},
		{"1G", 1_000_000_000},
		{"1Gi", 1 << 30},
	}
	for _, c := range cases {
		got, err := ParseNumber(c.in, 512)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestParseNumberSectorSuffix(t *testing.T) {
	got, err := ParseNumber("4s", 512)
	require.NoError(t, err)
	assert.Equal(t, int64(2048), got)

	_, err = ParseNumber("4s", 0)
	assert.Error(t, err, "sector suffix requires a positive sector size")
}

func TestParseNumberInvalid(t *testing.T) {
	_, err := ParseNumber("", 512)
	assert.Error(t, err)
	_, err = ParseNumber("1Q", 512)
	assert.Error(t, err)
}
