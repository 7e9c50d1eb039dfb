package memory

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casebot/internal/vectorstore"
)

func unit(v ...float64) []float64 {
	n := 0.0
	for _, x := range v {
		n += x * x
	}
	n = math.Sqrt(n)
	out := make([]float64, len(v))
	for i := range v {
		out[i] = v[i] / n
	}
	return out
}

func TestBuild_EmptyIndexKeepsDimension(t *testing.T) {
	idx, err := Build(384, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
	assert.Equal(t, 384, idx.Dimension())
	assert.Empty(t, idx.Search(make([]float64, 384), 5))
}

func TestBuild_RejectsBadRows(t *testing.T) {
	_, err := Build(3, [][]float64{{1, 0, 0}, {1, 0}})
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)

	_, err = Build(0, nil)
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)
}

func TestBuild_CopiesInput(t *testing.T) {
	rows := [][]float64{{1, 0}}
	idx, err := Build(2, rows)
	require.NoError(t, err)
	rows[0][0] = -1

	got := idx.Search([]float64{1, 0}, 1)
	require.Len(t, got, 1)
	assert.InDelta(t, 1.0, got[0].Score, 1e-12)
}

func TestSearch_OrdersByScoreThenRow(t *testing.T) {
	idx, err := Build(2, [][]float64{
		unit(0, 1),
		unit(1, 0),
		unit(1, 1),
		unit(1, 0),
		unit(-1, 0),
	})
	require.NoError(t, err)

	got := idx.Search([]float64{1, 0}, 10)
	require.Len(t, got, 5)
	rows := make([]int, len(got))
	for i, m := range got {
		rows[i] = m.Row
	}
	assert.Equal(t, []int{1, 3, 2, 0, 4}, rows)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
		if got[i-1].Score == got[i].Score {
			assert.Less(t, got[i-1].Row, got[i].Row)
		}
	}
	assert.InDelta(t, -1.0, got[4].Score, 1e-12)
}

func TestSearch_LimitsToK(t *testing.T) {
	idx, err := Build(2, [][]float64{unit(1, 0), unit(0, 1), unit(1, 1)})
	require.NoError(t, err)

	assert.Len(t, idx.Search([]float64{1, 0}, 2), 2)
	assert.Len(t, idx.Search([]float64{1, 0}, 3), 3)
	assert.Len(t, idx.Search([]float64{1, 0}, 100), 3)
}

func TestSearch_NonPositiveKIsEmpty(t *testing.T) {
	idx, err := Build(2, [][]float64{unit(1, 0)})
	require.NoError(t, err)

	assert.Empty(t, idx.Search([]float64{1, 0}, 0))
	assert.Empty(t, idx.Search([]float64{1, 0}, -3))
}

func TestSearch_WrongDimensionPanics(t *testing.T) {
	idx, err := Build(2, [][]float64{unit(1, 0)})
	require.NoError(t, err)

	assert.Panics(t, func() { idx.Search([]float64{1, 0, 0}, 1) })
}

func TestSearch_Deterministic(t *testing.T) {
	idx, err := Build(3, [][]float64{unit(1, 1, 0), unit(1, 1, 0), unit(0, 1, 1), unit(1, 0, 1)})
	require.NoError(t, err)

	q := unit(1, 1, 1)
	first := idx.Search(q, 4)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, idx.Search(q, 4))
	}
}
