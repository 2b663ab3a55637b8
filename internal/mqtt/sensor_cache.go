package mqtt

import (
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/berfenger/solisflux/internal/core/domain"
)

// SensorCache keeps the last numeric state of every entity received from
// the statestream. It is written by the MQTT actor and read by planners.
type SensorCache struct {
	mu     sync.RWMutex
	values map[string]float64
}

func NewSensorCache() *SensorCache {
	return &SensorCache{values: map[string]float64{}}
}

// Update stores a raw state. Non numeric states such as "unavailable" or
// "unknown" clear the entity.
func (c *SensorCache) Update(entity, state string) {
	entity = normalizeEntity(entity)
	state = strings.Trim(strings.TrimSpace(state), `"`)
	c.mu.Lock()
	defer c.mu.Unlock()
	v, err := strconv.ParseFloat(state, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		delete(c.values, entity)
		return
	}
	c.values[entity] = v
}

func (c *SensorCache) SensorValue(entity string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[normalizeEntity(entity)]
	return v, ok
}

func normalizeEntity(entity string) string {
	entity = strings.ToLower(strings.TrimSpace(entity))
	if !strings.Contains(entity, ".") {
		return "sensor." + entity
	}
	return entity
}

var _ domain.SensorSource = (*SensorCache)(nil)
