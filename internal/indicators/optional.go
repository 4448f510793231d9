package indicators

import (
	"bytes"
	"encoding/json"
)

// Optional holds an indicator value that may be unavailable because of insufficient history.
// Consumers must call Get and handle the unavailable case.
type Optional[T any] struct {
	value T
	ok    bool
}

// Value wraps an available value
func Value[T any](v T) Optional[T] {
	return Optional[T]{value: v, ok: true}
}

// Unavailable returns the empty variant
func Unavailable[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is available
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

// Available reports whether a value is present
func (o Optional[T]) Available() bool {
	return o.ok
}

// OrElse returns the value or def when unavailable
func (o Optional[T]) OrElse(def T) T {
	if !o.ok {
		return def
	}
	return o.value
}

// MarshalJSON renders an unavailable value as null
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.ok {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON treats null as unavailable
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Optional[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Value(v)
	return nil
}
