package flat

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// File layout: magic "VECF", format version, dimension and count as
// little-endian uint32, followed by count*dimension IEEE 754 float32
// values, also little-endian.
const (
	fileMagic   = "VECF"
	fileVersion = 1
)

// Save serialises the index to the given file path.
func (idx *Index) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("flat: creating %s: %w", path, err)
	}
	w := bufio.NewWriter(f)

	header := make([]byte, 0, 16)
	header = append(header, fileMagic...)
	header = binary.LittleEndian.AppendUint32(header, fileVersion)
	header = binary.LittleEndian.AppendUint32(header, uint32(idx.dim))
	header = binary.LittleEndian.AppendUint32(header, uint32(len(idx.vecs)))
	if _, err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("flat: writing header: %w", err)
	}

	buf := make([]byte, 4)
	for _, vec := range idx.vecs {
		for _, v := range vec {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			if _, err := w.Write(buf); err != nil {
				f.Close()
				return fmt.Errorf("flat: writing vectors: %w", err)
			}
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flat: flushing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("flat: closing %s: %w", path, err)
	}
	return nil
}

// Load replaces the index contents from the given file path.
func (idx *Index) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("flat: opening %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	header := make([]byte, 16)
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("flat: reading header: %w", err)
	}
	if string(header[:4]) != fileMagic {
		return fmt.Errorf("flat: %s is not a vector index file", path)
	}
	if v := binary.LittleEndian.Uint32(header[4:8]); v != fileVersion {
		return fmt.Errorf("flat: unsupported format version %d", v)
	}
	dim := int(binary.LittleEndian.Uint32(header[8:12]))
	count := int(binary.LittleEndian.Uint32(header[12:16]))
	if dim < 0 || count < 0 {
		return fmt.Errorf("flat: corrupt header in %s", path)
	}

	vecs := make([][]float32, count)
	buf := make([]byte, dim*4)
	for i := range vecs {
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("flat: reading vector %d: %w", i, err)
		}
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
		}
		vecs[i] = vec
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.dim = dim
	idx.vecs = vecs
	return nil
}
