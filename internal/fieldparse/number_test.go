package fieldparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumber(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *float64
	}{
		{"plain", "42", floatPtr(42)},
		{"decimal", "3.75", floatPtr(3.75)},
		{"thousands", "1,250", floatPtr(1250)},
		{"currency", "$40,000", floatPtr(40000)},
		{"padded", "  7 ", floatPtr(7)},
		{"na", "N/A", nil},
		{"x", "X", nil},
		{"empty", "", nil},
		{"residue", "12abc", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Number(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestParseGPA_Tagged(t *testing.T) {
	g := ParseGPA("3.95 UW / 4.3 W")
	require.NotNil(t, g.Unweighted)
	require.NotNil(t, g.Weighted)
	assert.InDelta(t, 3.95, *g.Unweighted, 1e-9)
	assert.InDelta(t, 4.3, *g.Weighted, 1e-9)
}

func TestParseGPA_TaggedLabelFirst(t *testing.T) {
	g := ParseGPA("UW: 3.82, W: 4.41")
	require.NotNil(t, g.Unweighted)
	require.NotNil(t, g.Weighted)
	assert.InDelta(t, 3.82, *g.Unweighted, 1e-9)
	assert.InDelta(t, 4.41, *g.Weighted, 1e-9)
}

func TestParseGPA_TaggedWords(t *testing.T) {
	g := ParseGPA("4.6 weighted, 3.9 unweighted")
	require.NotNil(t, g.Unweighted)
	require.NotNil(t, g.Weighted)
	assert.InDelta(t, 3.9, *g.Unweighted, 1e-9)
	assert.InDelta(t, 4.6, *g.Weighted, 1e-9)
}

func TestParseGPA_TagAssignment(t *testing.T) {
	tests := []struct {
		in    string
		uw, w *float64
	}{
		{"UW 3.9 W 4.4", floatPtr(3.9), floatPtr(4.4)},
		{"Unweighted 3.85 / weighted 4.52", floatPtr(3.85), floatPtr(4.52)},
		{"3.95 UW 4.3 W", floatPtr(3.95), floatPtr(4.3)},
		{"3.9(UW), 4.6(W)", floatPtr(3.9), floatPtr(4.6)},
		{"UW 3.9, 4.4 W", floatPtr(3.9), floatPtr(4.4)},
		{"GPA (UW/W): 3.95 UW / 4.3 W", floatPtr(3.95), floatPtr(4.3)},
		{"93 UW", nil, nil},
		{"97 UW, 102 W", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			g := ParseGPA(tt.in)
			if tt.uw == nil {
				assert.Nil(t, g.Unweighted)
			} else {
				require.NotNil(t, g.Unweighted)
				assert.InDelta(t, *tt.uw, *g.Unweighted, 1e-9)
			}
			if tt.w == nil {
				assert.Nil(t, g.Weighted)
			} else {
				require.NotNil(t, g.Weighted)
				assert.InDelta(t, *tt.w, *g.Weighted, 1e-9)
			}
		})
	}
}

func TestParseGPA_PairEitherOrder(t *testing.T) {
	for _, in := range []string{"3.91/4.52", "4.52/3.91", "4.52 / 3.91", "3.91, 4.52"} {
		t.Run(in, func(t *testing.T) {
			g := ParseGPA(in)
			require.NotNil(t, g.Unweighted)
			require.NotNil(t, g.Weighted)
			assert.InDelta(t, 3.91, *g.Unweighted, 1e-9)
			assert.InDelta(t, 4.52, *g.Weighted, 1e-9)
		})
	}
}

func TestParseGPA_Single(t *testing.T) {
	g := ParseGPA("3.7")
	require.NotNil(t, g.Unweighted)
	assert.InDelta(t, 3.7, *g.Unweighted, 1e-9)
	assert.Nil(t, g.Weighted)

	g = ParseGPA("4.8")
	assert.Nil(t, g.Unweighted)
	require.NotNil(t, g.Weighted)
	assert.InDelta(t, 4.8, *g.Weighted, 1e-9)
}

func TestParseGPA_OutOfBoundsDiscarded(t *testing.T) {
	g := ParseGPA("97")
	assert.Nil(t, g.Unweighted)
	assert.Nil(t, g.Weighted)

	g = ParseGPA("4.9 UW")
	assert.Nil(t, g.Unweighted)
}

func TestParseGPA_NoNumbers(t *testing.T) {
	g := ParseGPA("school doesn't rank or report")
	assert.Nil(t, g.Unweighted)
	assert.Nil(t, g.Weighted)
}
