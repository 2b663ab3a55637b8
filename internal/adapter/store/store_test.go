package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/berfenger/solisflux/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStores(t *testing.T) {

	bolt, err := OpenBoltStore(filepath.Join(t.TempDir(), "solisflux.db"), zap.Must(zap.NewDevelopment()))
	require.NoError(t, err)
	defer bolt.Close()

	for name, s := range map[string]port.SeriesStore{
		"memory": NewMemoryStore(),
		"bolt":   bolt,
	} {
		t.Run(name, func(t *testing.T) {
			testSeriesStore(t, s)
		})
	}
}

func testSeriesStore(t *testing.T, s port.SeriesStore) {

	require := require.New(t)
	ctx := context.Background()

	v, err := s.GetSeries(ctx, "morning_forecasts")
	require.NoError(err)
	require.Empty(v)

	require.NoError(s.PutSeries(ctx, "morning_forecasts", []float64{2.0, 3.5, 4.1}))
	v, err = s.GetSeries(ctx, "morning_forecasts")
	require.NoError(err)
	require.Equal([]float64{2.0, 3.5, 4.1}, v)

	v, err = s.AppendSeries(ctx, "morning_forecasts", 5.2, 3)
	require.NoError(err)
	require.Equal([]float64{3.5, 4.1, 5.2}, v)

	v, _ = s.GetSeries(ctx, "morning_forecasts")
	require.Equal([]float64{3.5, 4.1, 5.2}, v)

	// concurrent appends must not lose values
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AppendSeries(ctx, "energy_use", 1, 100)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	v, _ = s.GetSeries(ctx, "energy_use")
	require.Len(v, 20)
}

func TestSeriesEncoding(t *testing.T) {

	assert := assert.New(t)

	assert.Equal("2,3.5,0.9", string(encodeSeries([]float64{2, 3.5, 0.9})))

	v, err := decodeSeries([]byte("1.0, 2.5,3"))
	assert.NoError(err)
	assert.Equal([]float64{1, 2.5, 3}, v)

	_, err = decodeSeries([]byte("1.0,unknown"))
	assert.Error(err)
}
