package store

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/solisflux/internal/core/port"
	"github.com/boltdb/bolt"
	"go.uber.org/zap"
)

var seriesBucket = []byte("series")

// BoltStore keeps series in a single bucket of a bolt file.
type BoltStore struct {
	db     *bolt.DB
	logger *zap.Logger
}

func OpenBoltStore(path string, logger *zap.Logger) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(seriesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}
	logger.Info("store: opened", zap.String("path", path))
	return &BoltStore{db: db, logger: logger}, nil
}

func (s *BoltStore) GetSeries(ctx context.Context, key string) ([]float64, error) {
	var values []float64
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		values, err = decodeSeries(tx.Bucket(seriesBucket).Get([]byte(key)))
		return err
	})
	return values, err
}

func (s *BoltStore) PutSeries(ctx context.Context, key string, values []float64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(seriesBucket).Put([]byte(key), encodeSeries(values))
	})
}

// AppendSeries reads, truncates and writes back inside one write
// transaction. Bolt serializes writers, so concurrent appends to the same
// key never lose values.
func (s *BoltStore) AppendSeries(ctx context.Context, key string, value float64, maxLen int) ([]float64, error) {
	var values []float64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(seriesBucket)
		current, err := decodeSeries(b.Get([]byte(key)))
		if err != nil {
			return err
		}
		values = appendBounded(current, value, maxLen)
		return b.Put([]byte(key), encodeSeries(values))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("store: series appended", zap.String("key", key), zap.Float64s("values", values))
	return values, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

var _ port.SeriesStore = (*BoltStore)(nil)
