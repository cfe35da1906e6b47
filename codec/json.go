package codec

import "encoding/json"

// JSONCodec serializes values with encoding/json. The zero value is ready to
// use. Handy during development since blobs stay human-readable on disk.
type JSONCodec[V any] struct{}

func (JSONCodec[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSONCodec[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
