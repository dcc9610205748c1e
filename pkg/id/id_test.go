package id

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsUniqueAndSorted(t *testing.T) {
	const n = 100
	ids := make([]string, n)
	seen := make(map[string]bool, n)

	for i := 0; i < n; i++ {
		ids[i] = New()
		require.Len(t, ids[i], 26)
		require.False(t, seen[ids[i]], "duplicate id %s", ids[i])
		seen[ids[i]] = true
	}

	assert.True(t, sort.StringsAreSorted(ids), "ids generated in order must sort in order")
}
