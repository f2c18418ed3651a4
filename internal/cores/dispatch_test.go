package cores

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coverage(t *testing.T, d Dispatcher, hint Hint, n int) []int {
	t.Helper()
	hits := make([]int, n)
	var mu sync.Mutex
	d.For(hint, n, func(lo, hi int) {
		mu.Lock()
		defer mu.Unlock()
		for i := lo; i < hi; i++ {
			hits[i]++
		}
	})
	return hits
}

func TestDispatchersCoverEveryIndexOnce(t *testing.T) {
	t.Parallel()

	dispatchers := map[string]Dispatcher{
		"serial":      Serial{},
		"split":       Split{MinChunk: 4},
		"split-pin":   Split{MinChunk: 4, Pin: true},
		"split-deflt": Split{},
	}
	for name, d := range dispatchers {
		for _, n := range []int{0, 1, 7, 64, 5000} {
			hits := coverage(t, d, Hint{0, 1}, n)
			for i, h := range hits {
				if h != 1 {
					t.Fatalf("%s n=%d: index %d covered %d times", name, n, i, h)
				}
			}
		}
	}
}

func TestSplitUsesOneWorkerPerCore(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var ranges [][2]int
	Split{MinChunk: 1}.For(Hint{0, 1}, 10, func(lo, hi int) {
		mu.Lock()
		ranges = append(ranges, [2]int{lo, hi})
		mu.Unlock()
	})
	assert.ElementsMatch(t, [][2]int{{0, 5}, {5, 10}}, ranges)
}

func TestSplitSmallRangeRunsInline(t *testing.T) {
	t.Parallel()

	calls := 0
	Split{MinChunk: 100}.For(Hint{0, 1}, 50, func(lo, hi int) {
		calls++
		assert.Equal(t, 0, lo)
		assert.Equal(t, 50, hi)
	})
	assert.Equal(t, 1, calls)
}

func TestCurrentDispatcher(t *testing.T) {
	prev := Current()
	t.Cleanup(func() { SetDispatcher(prev) })

	SetDispatcher(Split{})
	assert.IsType(t, Split{}, Current())
	SetDispatcher(nil)
	assert.IsType(t, Serial{}, Current())
}

func TestNamed(t *testing.T) {
	t.Parallel()

	d, err := Named("split", true)
	require.NoError(t, err)
	assert.Equal(t, Split{Pin: true}, d)
	d, err = Named("", false)
	require.NoError(t, err)
	assert.Equal(t, Serial{}, d)
	_, err = Named("roundrobin", false)
	assert.Error(t, err)
}
