package service

import (
	"context"
	"sync"

	"github.com/berfenger/solisflux/internal/core/domain"
)

type mapSensors map[string]float64

func (m mapSensors) SensorValue(entity string) (float64, bool) {
	v, ok := m[entity]
	return v, ok
}

type memSeries struct {
	mu   sync.Mutex
	data map[string][]float64
}

func newMemSeries() *memSeries {
	return &memSeries{data: map[string][]float64{}}
}

func (s *memSeries) GetSeries(_ context.Context, key string) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.data[key]...), nil
}

func (s *memSeries) PutSeries(_ context.Context, key string, values []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]float64(nil), values...)
	return nil
}

func (s *memSeries) AppendSeries(_ context.Context, key string, value float64, maxLen int) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := append(s.data[key], value)
	if len(v) > maxLen {
		v = v[len(v)-maxLen:]
	}
	s.data[key] = v
	return append([]float64(nil), v...), nil
}

func (s *memSeries) Close() error {
	return nil
}

// fixedRand always picks the same offset, capped to the allowed range, and
// records the last bound it was asked for.
type fixedRand struct {
	offset int
	lastN  int
	calls  int
}

func (r *fixedRand) IntN(n int) int {
	r.calls++
	r.lastN = n
	if r.offset >= n {
		return n - 1
	}
	return r.offset
}

func period(name string, direction domain.Direction, start, end string, amps int, sync domain.SyncPolicy) domain.Period {
	return domain.Period{
		Name:            name,
		Direction:       direction,
		Start:           domain.MustParseHHMM(start),
		End:             domain.MustParseHHMM(end),
		CurrentAmps:     amps,
		Sync:            sync,
		MinReserveRatio: DefaultMinReserveRatio,
		UseForecast:     true,
	}
}
