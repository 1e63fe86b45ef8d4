package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		input Hash
		want  bool
	}{
		{
			name:  "Valid Hash (64 chars)",
			input: Hash(strings.Repeat("a", 64)),
			want:  true,
		},
		{
			name:  "Too Short",
			input: Hash("abc"),
			want:  false,
		},
		{
			name:  "Empty",
			input: Hash(""),
			want:  false,
		},
		{
			name:  "Too Long",
			input: Hash(strings.Repeat("a", 65)),
			want:  false,
		},
		{
			name:  "Upper case is not canonical",
			input: Hash(strings.Repeat("A", 64)),
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.input.IsValid())
		})
	}
}

func TestHash_String(t *testing.T) {
	s := "aabbccddeeff0011"
	h := Hash(s)
	assert.Equal(t, s, h.String())
	assert.Equal(t, "aabbccddeeff", h.Short())
	assert.Equal(t, "abc", Hash("abc").Short())
	assert.False(t, h.IsZero())

	var zero Hash
	assert.True(t, zero.IsZero())
	assert.Equal(t, "", zero.Short())
}

func TestParseHash(t *testing.T) {
	good := strings.Repeat("0f", 32)
	h, err := ParseHash(good)
	require.NoError(t, err)
	assert.Equal(t, Hash(good), h)

	_, err = ParseHash("xyz")
	assert.Error(t, err)

	_, err = ParseHash("abcd")
	assert.Error(t, err)
}
