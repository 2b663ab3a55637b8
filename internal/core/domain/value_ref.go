package domain

import (
	"strconv"
	"strings"
)

// SensorSource provides the latest numeric state of a named entity. The
// second return value is false when the entity is unknown or unavailable.
type SensorSource interface {
	SensorValue(entity string) (float64, bool)
}

// ValueRef is either a literal number or a reference to a live entity.
type ValueRef struct {
	literal *float64
	entity  string
}

func LiteralRef(v float64) ValueRef {
	return ValueRef{literal: &v}
}

func EntityRef(entity string) ValueRef {
	return ValueRef{entity: entity}
}

// ParseValueRef reads a configuration value. Numbers become literals,
// anything else names an entity, and an empty string is unset.
func ParseValueRef(s string) ValueRef {
	s = strings.TrimSpace(s)
	if s == "" {
		return ValueRef{}
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return LiteralRef(v)
	}
	return EntityRef(s)
}

func (r ValueRef) IsSet() bool {
	return r.literal != nil || r.entity != ""
}

func (r ValueRef) IsLiteral() bool {
	return r.literal != nil
}

func (r ValueRef) Entity() string {
	return r.entity
}

func (r ValueRef) Resolve(src SensorSource) (float64, bool) {
	if r.literal != nil {
		return *r.literal, true
	}
	if r.entity == "" || src == nil {
		return 0, false
	}
	return src.SensorValue(r.entity)
}

func (r ValueRef) String() string {
	switch {
	case r.literal != nil:
		return strconv.FormatFloat(*r.literal, 'f', -1, 64)
	case r.entity != "":
		return r.entity
	}
	return ""
}
