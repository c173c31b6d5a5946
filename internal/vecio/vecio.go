// Package vecio reads and writes the flat vector file format consumed
// by cmd/vamanactl: a big-endian header (uint32 count, uint32
// dimension) followed by count*dimension big-endian float32 values,
// row-major. This mirrors the header shape vamana.WriteGraph uses for
// the on-disk graph, so the CLI and the library agree on endianness.
package vecio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// ReadFile loads every vector from path. Returns an error if the file
// is shorter than its declared header promises.
func ReadFile(path string) ([][]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("vecio: opening %q: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, 0, fmt.Errorf("vecio: reading header of %q: %w", path, err)
	}
	count := int(binary.BigEndian.Uint32(header[0:4]))
	dim := int(binary.BigEndian.Uint32(header[4:8]))

	vectors := make([][]float32, count)
	buf := make([]byte, dim*4)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, 0, fmt.Errorf("vecio: reading vector %d of %q: %w", i, path, err)
		}
		v := make([]float32, dim)
		for d := 0; d < dim; d++ {
			bits := binary.BigEndian.Uint32(buf[d*4 : d*4+4])
			v[d] = math.Float32frombits(bits)
		}
		vectors[i] = v
	}
	return vectors, dim, nil
}

// WriteFile serializes vectors to path in the format ReadFile expects.
// All vectors must share the same dimension.
func WriteFile(path string, vectors [][]float32) error {
	if len(vectors) == 0 {
		return fmt.Errorf("vecio: cannot write an empty vector set")
	}
	dim := len(vectors[0])

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("vecio: creating %q: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	var header [8]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(len(vectors)))
	binary.BigEndian.PutUint32(header[4:8], uint32(dim))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("vecio: writing header to %q: %w", path, err)
	}

	buf := make([]byte, dim*4)
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vecio: vector %d has dimension %d, expected %d", i, len(v), dim)
		}
		for d, x := range v {
			binary.BigEndian.PutUint32(buf[d*4:d*4+4], math.Float32bits(x))
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("vecio: writing vector %d to %q: %w", i, path, err)
		}
	}
	return w.Flush()
}
