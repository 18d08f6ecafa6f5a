package market

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreMergeCreatesWithDefaults(t *testing.T) {
	store := NewStore()

	got := store.Merge("GHI", Patch{Price: Float(5)})
	assert.Equal(t, "GHI", got.Symbol)
	assert.Equal(t, 5.0, got.Price)
	assert.Equal(t, 0.0, got.PrevClose)
	assert.Equal(t, 0.0, got.Volume)
	assert.Equal(t, DefaultAvgVolume, got.AvgVolume)
	assert.Equal(t, 0.0, got.FloatShares)
	assert.False(t, got.HasNews)
	assert.False(t, got.IsRunner)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestStoreMergePartialKeepsPreviousFields(t *testing.T) {
	store := NewStore()
	store.Merge("GHI", Patch{Price: Float(5)})
	store.Merge("GHI", Patch{Volume: Float(200000)})

	got, ok := store.Get("GHI")
	require.True(t, ok)
	assert.Equal(t, 5.0, got.Price)
	assert.Equal(t, 200000.0, got.Volume)
	assert.Equal(t, DefaultAvgVolume, got.AvgVolume)
	assert.False(t, got.HasNews)
}

func TestStoreMergeLastWriteWinsPerField(t *testing.T) {
	store := NewStore()
	store.Merge("ABC", Patch{Price: Float(1), Volume: Float(10), HasNews: Bool(true)})
	store.Merge("ABC", Patch{Price: Float(2)})
	store.Merge("ABC", Patch{Volume: Float(30), HasNews: Bool(false)})
	store.Merge("ABC", Patch{Price: Float(4), IsRunner: Bool(true)})

	got, ok := store.Get("ABC")
	require.True(t, ok)
	assert.Equal(t, 4.0, got.Price)
	assert.Equal(t, 30.0, got.Volume)
	assert.False(t, got.HasNews)
	assert.True(t, got.IsRunner)
}

func TestStoreSnapshotIsSortedCopy(t *testing.T) {
	store := NewStore()
	store.Merge("ZZZ", Patch{Price: Float(3)})
	store.Merge("AAA", Patch{Price: Float(1)})
	store.Merge("MMM", Patch{Price: Float(2)})

	snap := store.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []string{"AAA", "MMM", "ZZZ"}, []string{snap[0].Symbol, snap[1].Symbol, snap[2].Symbol})

	snap[0].Price = 999
	got, _ := store.Get("AAA")
	assert.Equal(t, 1.0, got.Price)
	assert.Equal(t, 3, store.Len())
}

func TestStoreSnapshotNeverTorn(t *testing.T) {
	store := NewStore()
	const (
		symbols = 8
		rounds  = 2000
		readers = 4
	)

	var wg sync.WaitGroup
	done := make(chan struct{})

	torn := make(chan SymbolState, 1)
	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				for _, s := range store.Snapshot() {
					v := s.Price
					if s.PrevClose != v || s.Volume != v || s.AvgVolume != v || s.FloatShares != v {
						select {
						case torn <- s:
						default:
						}
						return
					}
				}
			}
		}()
	}

	for i := 1; i <= rounds; i++ {
		v := float64(i)
		store.Merge("S"+strconv.Itoa(i%symbols), Patch{
			Price:       Float(v),
			PrevClose:   Float(v),
			Volume:      Float(v),
			AvgVolume:   Float(v),
			FloatShares: Float(v),
		})
	}
	close(done)
	wg.Wait()

	select {
	case s := <-torn:
		t.Fatalf("torn entry observed: %+v", s)
	default:
	}
}
