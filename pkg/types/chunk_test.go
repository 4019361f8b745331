package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeChunkID_Deterministic(t *testing.T) {
	a := ComputeChunkID("src/main.py", 1, 10)
	b := ComputeChunkID("src/main.py", 1, 10)
	c := ComputeChunkID("src/main.py", 1, 11)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64) // hex sha256
	assert.Equal(t, strings.ToLower(a), a)
}

func TestSplitPartID_RoundTrip(t *testing.T) {
	parent := ComputeChunkID("a.go", 5, 400)
	part := SplitPartID(parent, 3)

	got, ok := ParentChunkID(part)
	require.True(t, ok)
	assert.Equal(t, parent, got)
}

func TestParentChunkID_NotAPart(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{"plain hash", ComputeChunkID("a.go", 1, 2)},
		{"empty suffix", "abc_part_"},
		{"non-numeric suffix", "abc_part_x"},
		{"bare prefix", "_part_1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ParentChunkID(tt.id)
			assert.False(t, ok)
		})
	}
}

func TestChunkValidate(t *testing.T) {
	valid := Chunk{
		ID:        ComputeChunkID("a.py", 1, 2),
		FilePath:  "a.py",
		Language:  "python",
		StartLine: 1,
		EndLine:   2,
		Content:   "def f():\n    return 1",
		Type:      ChunkFunction,
		Parser:    "python_parser",
	}
	require.NoError(t, valid.Validate())

	oversized := valid
	oversized.Content = strings.Repeat("x", MaxChunkBytes+1)
	assert.Error(t, oversized.Validate())

	inverted := valid
	inverted.StartLine, inverted.EndLine = 5, 2
	assert.Error(t, inverted.Validate())

	zeroLine := valid
	zeroLine.StartLine = 0
	assert.Error(t, zeroLine.Validate())
}

func TestHashBytes(t *testing.T) {
	// sha256("") is a well-known constant.
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		HashBytes(nil))
	assert.Equal(t, HashBytes([]byte("abc")), HashBytes([]byte("abc")))
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
}
