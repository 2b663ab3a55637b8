package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Series are stored as comma separated decimal text, oldest first.

func encodeSeries(values []float64) []byte {
	return []byte(strings.Join(lo.Map(values, func(v float64, _ int) string {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}), ","))
}

func decodeSeries(raw []byte) ([]float64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	values := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid series value %q: %w", p, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func appendBounded(values []float64, value float64, maxLen int) []float64 {
	values = append(values, value)
	if maxLen > 0 && len(values) > maxLen {
		values = values[len(values)-maxLen:]
	}
	return values
}
