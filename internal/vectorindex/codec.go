package vectorindex

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/xxxsen/mrag/internal/model"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
)

// Snapshot layout, little endian:
//
//	magic "MRAG" | version u16 | reserved u16
//	model (u32 len + bytes) | dim u32 | generation u64 | count u32
//	count * { id, source, text as (u32 len + bytes) | position u32 | dim * f32 }
//	crc32 (IEEE) of everything above, u32
const (
	snapshotMagic   = "MRAG"
	snapshotVersion = 1
	headerSize      = 8
	trailerSize     = 4
)

type encoder struct {
	buf bytes.Buffer
	tmp [8]byte
}

func (e *encoder) u16(v uint16) {
	binary.LittleEndian.PutUint16(e.tmp[:2], v)
	e.buf.Write(e.tmp[:2])
}

func (e *encoder) u32(v uint32) {
	binary.LittleEndian.PutUint32(e.tmp[:4], v)
	e.buf.Write(e.tmp[:4])
}

func (e *encoder) u64(v uint64) {
	binary.LittleEndian.PutUint64(e.tmp[:8], v)
	e.buf.Write(e.tmp[:8])
}

func (e *encoder) str(s string) {
	e.u32(uint32(len(s)))
	e.buf.WriteString(s)
}

func encodeState(s *state) ([]byte, error) {
	e := &encoder{}
	size := headerSize + trailerSize + 24 + len(s.model)
	for _, r := range s.records {
		size += 16 + len(r.ChunkID) + len(r.Source) + len(r.Text) + 4*s.dim
	}
	e.buf.Grow(size)
	e.buf.WriteString(snapshotMagic)
	e.u16(snapshotVersion)
	e.u16(0)
	e.str(s.model)
	e.u32(uint32(s.dim))
	e.u64(s.generation)
	e.u32(uint32(len(s.records)))
	for _, r := range s.records {
		if len(r.Vector) != s.dim {
			return nil, fmt.Errorf("record %s has dimension %d, want %d", r.ChunkID, len(r.Vector), s.dim)
		}
		e.str(r.ChunkID)
		e.str(r.Source)
		e.str(r.Text)
		e.u32(uint32(r.Position))
		for _, v := range r.Vector {
			e.u32(math.Float32bits(v))
		}
	}
	e.u32(crc32.ChecksumIEEE(e.buf.Bytes()))
	return e.buf.Bytes(), nil
}

type decoder struct {
	data []byte
	off  int
	err  error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.off+n > len(d.data) {
		d.err = fmt.Errorf("truncated at offset %d", d.off)
		return nil
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) u16() uint16 {
	if b := d.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (d *decoder) u32() uint32 {
	if b := d.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (d *decoder) u64() uint64 {
	if b := d.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (d *decoder) str() string {
	n := d.u32()
	return string(d.take(int(n)))
}

func corrupt(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), appErr.ErrCorruptSnapshot)
}

func decodeState(data []byte) (*state, error) {
	if len(data) < headerSize+trailerSize {
		return nil, corrupt("snapshot too short: %d bytes", len(data))
	}
	body := data[:len(data)-trailerSize]
	want := binary.LittleEndian.Uint32(data[len(data)-trailerSize:])
	if got := crc32.ChecksumIEEE(body); got != want {
		return nil, corrupt("checksum mismatch: got %08x want %08x", got, want)
	}
	d := &decoder{data: body}
	if string(d.take(4)) != snapshotMagic {
		return nil, corrupt("bad magic")
	}
	if v := d.u16(); v != snapshotVersion {
		return nil, corrupt("unsupported snapshot version %d", v)
	}
	d.u16()
	s := &state{}
	s.model = d.str()
	s.dim = int(d.u32())
	s.generation = d.u64()
	count := int(d.u32())
	if d.err != nil {
		return nil, corrupt("header: %v", d.err)
	}
	if count > 0 && s.dim == 0 {
		return nil, corrupt("records without dimension")
	}
	// every record needs at least its fixed fields, bound count before allocating
	if minSize := count * (16 + 4*s.dim); count < 0 || minSize > len(body)-d.off {
		return nil, corrupt("record count %d exceeds snapshot size", count)
	}
	s.records = make([]model.VectorRecord, count)
	s.mags = make([]float64, count)
	for i := 0; i < count; i++ {
		r := &s.records[i]
		r.ChunkID = d.str()
		r.Source = d.str()
		r.Text = d.str()
		r.Position = int(d.u32())
		raw := d.take(4 * s.dim)
		if d.err != nil {
			return nil, corrupt("record %d: %v", i, d.err)
		}
		r.Vector = make([]float32, s.dim)
		for j := range r.Vector {
			r.Vector[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*j:]))
		}
		s.mags[i] = magnitude(r.Vector)
	}
	if d.off != len(body) {
		return nil, corrupt("%d trailing bytes", len(body)-d.off)
	}
	return s, nil
}
