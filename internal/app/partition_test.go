package app

import (
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jpeg-image-loader/internal/domain"
)

func paths(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("/img/%03d.jpg", i)
	}
	return out
}

func TestPartitionProperties(t *testing.T) {
	for n := 0; n <= 40; n++ {
		for w := 1; w <= n+5; w++ {
			in := paths(n)
			chunks, err := Partition(in, w)
			require.NoError(t, err)

			assert.LessOrEqual(t, len(chunks), min(w, n), "n=%d w=%d", n, w)
			if n == 0 {
				assert.Empty(t, chunks, "w=%d", w)
				continue
			}
			assert.Equal(t, in, slices.Concat(chunks...), "n=%d w=%d", n, w)
			for i, c := range chunks {
				assert.NotEmpty(t, c, "n=%d w=%d chunk=%d", n, w, i)
			}
		}
	}
}

func TestPartitionTenFilesFourWorkers(t *testing.T) {
	chunks, err := Partition(paths(10), 4)
	require.NoError(t, err)

	sizes := make([]int, len(chunks))
	for i, c := range chunks {
		sizes[i] = len(c)
	}
	assert.Equal(t, []int{3, 3, 3, 1}, sizes)
}

func TestPartitionMoreWorkersThanFiles(t *testing.T) {
	chunks, err := Partition(paths(3), 10)
	require.NoError(t, err)
	assert.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.Len(t, c, 1)
	}
}

func TestPartitionIsDeterministicAndDisjoint(t *testing.T) {
	in := paths(17)
	a, err := Partition(in, 5)
	require.NoError(t, err)
	b, err := Partition(in, 5)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// chunks own their backing arrays
	a[0][0] = "changed"
	assert.Equal(t, "/img/000.jpg", in[0])
	assert.Equal(t, "/img/001.jpg", a[0][1])
}

func TestPartitionRejectsNonPositiveWorkers(t *testing.T) {
	for _, w := range []int{0, -3} {
		_, err := Partition(paths(4), w)
		assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	}
}

func TestPartitionEmpty(t *testing.T) {
	chunks, err := Partition(nil, 4)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
