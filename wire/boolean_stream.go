package wire

import "math"

// BooleanStream packs the flag bits of a tight-encoded frame, lowest bit
// first. Writing appends bits; Marshal emits them and rewinds the read
// cursor so the same stream can be replayed during the emit pass.
type BooleanStream struct {
	data  []byte
	limit int // packed bytes in use
	wbit  uint8
	pos   int // read cursor
	rbit  uint8
	err   error
}

func NewBooleanStream() *BooleanStream {
	return &BooleanStream{}
}

// Err returns the first error hit while reading or writing.
func (bs *BooleanStream) Err() error { return bs.err }

func (bs *BooleanStream) fail(err error) {
	if bs.err == nil {
		bs.err = err
	}
}

// Len returns the number of packed bytes.
func (bs *BooleanStream) Len() int { return bs.limit }

func (bs *BooleanStream) WriteBool(v bool) {
	if bs.wbit == 0 {
		if bs.limit == math.MaxUint16 {
			bs.fail(violation("boolean stream exceeds %d bytes", math.MaxUint16))
			return
		}
		bs.limit++
		if bs.limit > len(bs.data) {
			bs.data = append(bs.data, 0)
		} else {
			bs.data[bs.limit-1] = 0
		}
	}
	if v {
		bs.data[bs.limit-1] |= 1 << bs.wbit
	}
	bs.wbit = (bs.wbit + 1) % 8
}

func (bs *BooleanStream) ReadBool() bool {
	if bs.err != nil {
		return false
	}
	if bs.pos >= bs.limit {
		bs.fail(violation("read past end of boolean stream"))
		return false
	}
	v := bs.data[bs.pos]&(1<<bs.rbit) != 0
	bs.rbit++
	if bs.rbit == 8 {
		bs.rbit = 0
		bs.pos++
	}
	return v
}

// MarshalledSize returns the size of the header plus the packed bytes.
func (bs *BooleanStream) MarshalledSize() int {
	switch {
	case bs.limit < 64:
		return 1 + bs.limit
	case bs.limit < 256:
		return 2 + bs.limit
	default:
		return 3 + bs.limit
	}
}

// Marshal writes the size header and the packed bytes.
func (bs *BooleanStream) Marshal(w *DataWriter) {
	switch {
	case bs.limit < 64:
		w.WriteByte(byte(bs.limit))
	case bs.limit < 256:
		w.WriteByte(0xC0)
		w.WriteByte(byte(bs.limit))
	default:
		w.WriteByte(0x80)
		w.WriteUint16(uint16(bs.limit))
	}
	w.Write(bs.data[:bs.limit])
	bs.rewind()
}

// Unmarshal replaces the stream content with one read from r.
func (bs *BooleanStream) Unmarshal(r *DataReader) {
	h := r.ReadUint8()
	n := int(h)
	switch {
	case h == 0xC0:
		n = int(r.ReadUint8())
	case h == 0x80:
		n = int(r.ReadUint16())
	case h >= 64:
		r.fail(malformed("flag stream header 0x%02x", h))
		n = 0
	}
	bs.data = r.ReadBytes(n)
	bs.limit = len(bs.data)
	bs.wbit = 0
	bs.rewind()
}

func (bs *BooleanStream) rewind() {
	bs.pos = 0
	bs.rbit = 0
}

// CheckConsumed reports a violation when written bits were left unread.
func (bs *BooleanStream) CheckConsumed() error {
	if bs.err != nil {
		return bs.err
	}
	consumed := bs.pos
	if bs.rbit > 0 {
		consumed++
	}
	if consumed != bs.limit {
		return violation("%d of %d flag bytes consumed", consumed, bs.limit)
	}
	return nil
}
