package exchange

import (
	"fmt"

	"nexus/pkg/exception"

	"github.com/yanun0323/errors"
)

// EnumMap is a fixed two way mapping between native exchange values and canonical enums.
// It is built once at package init and read only afterwards.
type EnumMap[N comparable, C comparable] struct {
	name     string
	toCanon  map[N]C
	toNative map[C]N
}

// NewEnumMap builds the mapping from native to canonical values.
// For aliases (two native values with the same canonical value) the first one in prefer wins the reverse direction.
func NewEnumMap[N comparable, C comparable](name string, m map[N]C, prefer ...N) EnumMap[N, C] {
	e := EnumMap[N, C]{
		name:     name,
		toCanon:  make(map[N]C, len(m)),
		toNative: make(map[C]N, len(m)),
	}
	for n, c := range m {
		e.toCanon[n] = c
	}
	for _, n := range prefer {
		if c, ok := m[n]; ok {
			e.toNative[c] = n
		}
	}
	for n, c := range m {
		if _, ok := e.toNative[c]; !ok {
			e.toNative[c] = n
		}
	}
	return e
}

// Parse converts a native value to its canonical value.
func (e EnumMap[N, C]) Parse(n N) (C, error) {
	c, ok := e.toCanon[n]
	if !ok {
		return c, errors.Wrap(exception.ErrUnsupportedMapping, fmt.Sprintf("parse %s: %v", e.name, n))
	}
	return c, nil
}

// To converts a canonical value to its native value.
func (e EnumMap[N, C]) To(c C) (N, error) {
	n, ok := e.toNative[c]
	if !ok {
		return n, errors.Wrap(exception.ErrUnsupportedMapping, fmt.Sprintf("to %s: %v", e.name, c))
	}
	return n, nil
}

// Canonicals lists every canonical value reachable from a native value.
func (e EnumMap[N, C]) Canonicals() []C {
	out := make([]C, 0, len(e.toNative))
	for c := range e.toNative {
		out = append(out, c)
	}
	return out
}
