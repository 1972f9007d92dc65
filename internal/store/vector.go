package store

import (
	"encoding/binary"
	"fmt"
	"math"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// Pack encodes v as little-endian float32, the layout sqlite-vec reads.
func Pack(v []float32) ([]byte, error) {
	return sqlite_vec.SerializeFloat32(v)
}

// Unpack decodes a blob written by Pack.
func Unpack(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}
