package confloader

import (
	"errors"
	"strings"
)

// ErrReadBytesNotSupported is returned when ReadBytes is called on a map provider.
var ErrReadBytesNotSupported = errors.New("confloader: map provider has no byte form")

// mapProvider is a koanf provider over a map. Dotted keys are expanded
// into nested maps so "backend.base_url" and {"backend": {...}} merge.
type mapProvider map[string]any

// ReadBytes returns an error as map provider doesn't support byte serialization.
func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, ErrReadBytesNotSupported
}

// Read returns the configuration map.
func (m mapProvider) Read() (map[string]any, error) {
	out := make(map[string]any, len(m))
	for key, value := range m {
		parts := strings.Split(key, ".")
		node := out
		for _, p := range parts[:len(parts)-1] {
			child, ok := node[p].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[p] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = value
	}
	return out, nil
}
