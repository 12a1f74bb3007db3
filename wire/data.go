package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// DataWriter appends big-endian primitives to a buffer.
// Writes to the underlying bytes.Buffer cannot fail.
type DataWriter struct {
	buf *bytes.Buffer
}

func NewDataWriter(buf *bytes.Buffer) *DataWriter {
	return &DataWriter{buf: buf}
}

func (w *DataWriter) Len() int { return w.buf.Len() }

func (w *DataWriter) WriteByte(b byte) error {
	return w.buf.WriteByte(b)
}

func (w *DataWriter) WriteBool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

func (w *DataWriter) WriteInt16(v int16) {
	w.WriteUint16(uint16(v))
}

func (w *DataWriter) WriteUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *DataWriter) WriteInt32(v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	w.buf.Write(b[:])
}

func (w *DataWriter) WriteInt64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.buf.Write(b[:])
}

func (w *DataWriter) WriteFloat32(v float32) {
	w.WriteInt32(int32(math.Float32bits(v)))
}

func (w *DataWriter) WriteFloat64(v float64) {
	w.WriteInt64(int64(math.Float64bits(v)))
}

func (w *DataWriter) Write(p []byte) {
	w.buf.Write(p)
}

// WriteUTF writes a uint16 length followed by the modified UTF-8 bytes of s.
func (w *DataWriter) WriteUTF(s string) error {
	n := mutf8Len(s)
	if n > math.MaxUint16 {
		return fmt.Errorf("wire: encoded string of %d bytes exceeds %d", n, math.MaxUint16)
	}
	w.WriteUint16(uint16(n))
	w.buf.Write(appendMUTF8(make([]byte, 0, n), s))
	return nil
}

// DataReader reads big-endian primitives. The first failure is sticky: later
// reads return zero values and Err reports the original cause.
type DataReader struct {
	r       io.Reader
	err     error
	max     int
	read    int
	scratch [8]byte
}

// NewDataReader reads from r. Variable-length reads larger than max bytes are
// rejected as malformed; max <= 0 disables the check.
func NewDataReader(r io.Reader, max int) *DataReader {
	return &DataReader{r: r, max: max}
}

func (r *DataReader) Err() error { return r.err }

// Count returns the number of bytes consumed so far.
func (r *DataReader) Count() int { return r.read }

func (r *DataReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *DataReader) fill(p []byte) bool {
	if r.err != nil {
		return false
	}
	n, err := io.ReadFull(r.r, p)
	r.read += n
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = &TruncatedFrameError{Err: io.ErrUnexpectedEOF}
		}
		r.fail(err)
		return false
	}
	return true
}

func (r *DataReader) ReadUint8() byte {
	if !r.fill(r.scratch[:1]) {
		return 0
	}
	return r.scratch[0]
}

func (r *DataReader) ReadBool() bool {
	return r.ReadUint8() != 0
}

func (r *DataReader) ReadInt16() int16 {
	return int16(r.ReadUint16())
}

func (r *DataReader) ReadUint16() uint16 {
	if !r.fill(r.scratch[:2]) {
		return 0
	}
	return binary.BigEndian.Uint16(r.scratch[:2])
}

func (r *DataReader) ReadInt32() int32 {
	if !r.fill(r.scratch[:4]) {
		return 0
	}
	return int32(binary.BigEndian.Uint32(r.scratch[:4]))
}

func (r *DataReader) ReadInt64() int64 {
	if !r.fill(r.scratch[:8]) {
		return 0
	}
	return int64(binary.BigEndian.Uint64(r.scratch[:8]))
}

func (r *DataReader) ReadFloat32() float32 {
	return math.Float32frombits(uint32(r.ReadInt32()))
}

func (r *DataReader) ReadFloat64() float64 {
	return math.Float64frombits(uint64(r.ReadInt64()))
}

// ReadBytes reads exactly n bytes.
func (r *DataReader) ReadBytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || (r.max > 0 && n > r.max) {
		r.fail(malformed("length %d out of range", n))
		return nil
	}
	p := make([]byte, n)
	if !r.fill(p) {
		return nil
	}
	return p
}

// ReadUTF reads a uint16 length followed by modified UTF-8 bytes.
func (r *DataReader) ReadUTF() string {
	n := r.ReadUint16()
	b := r.ReadBytes(int(n))
	if r.err != nil {
		return ""
	}
	s, err := decodeMUTF8(b)
	if err != nil {
		r.fail(malformed("%v", err))
		return ""
	}
	return s
}

// ReadASCII reads n bytes that must all be in 0x01..0x7F.
func (r *DataReader) ReadASCII(n int) string {
	b := r.ReadBytes(n)
	if r.err != nil {
		return ""
	}
	s := string(b)
	if !isASCII(s) {
		r.fail(malformed("string flagged ASCII holds non-ASCII bytes"))
		return ""
	}
	return s
}
