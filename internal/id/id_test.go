package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	const count = 1000

	for range count {
		v, err := Generate(PrefixEntity)
		require.NoError(t, err)
		assert.False(t, seen[v], "ID should be unique: %s", v)
		seen[v] = true
	}

	assert.Len(t, seen, count)
}

func TestGenerate_Format(t *testing.T) {
	for _, prefix := range []string{PrefixEntity, PrefixInteraction, PrefixSharePack, PrefixBit} {
		t.Run(prefix, func(t *testing.T) {
			v, err := Generate(prefix)
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(v, prefix+"-"))
			// NanoID default length is 21.
			assert.Len(t, v, len(prefix)+1+21)
		})
	}
}

func TestMustGenerate(t *testing.T) {
	assert.NotPanics(t, func() {
		v := MustGenerate(PrefixBit)
		assert.True(t, strings.HasPrefix(v, "bit-"))
	})
}
