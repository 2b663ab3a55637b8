package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type mapSource map[string]float64

func (m mapSource) SensorValue(entity string) (float64, bool) {
	v, ok := m[entity]
	return v, ok
}

func TestValueRef(t *testing.T) {

	assert := assert.New(t)

	src := mapSource{"sensor.morning_need": 6.5}

	lit := ParseValueRef(" 4.2 ")
	assert.True(lit.IsLiteral())
	v, ok := lit.Resolve(nil)
	assert.True(ok)
	assert.Equal(4.2, v)

	ent := ParseValueRef("sensor.morning_need")
	assert.False(ent.IsLiteral())
	v, ok = ent.Resolve(src)
	assert.True(ok)
	assert.Equal(6.5, v)

	_, ok = EntityRef("sensor.missing").Resolve(src)
	assert.False(ok)

	assert.False(ParseValueRef("").IsSet())
}

func TestResultDisplay(t *testing.T) {

	assert := assert.New(t)

	assert.True(Ok().IsOk())
	assert.Equal("OK", Ok().String())

	r := Err(ErrorKindCurrentLimit, "Charge current 60.0A > battery max 50.0A")
	assert.False(r.IsOk())
	assert.Equal(ErrorKindCurrentLimit, r.Kind())
	assert.Equal("Charge current 60.0A > battery max 50.0A", r.String())
}
