package wire

import (
	"bytes"
	"fmt"
	"maps"
	"math"
	"slices"
)

// Primitive value tags used inside marshalled property maps.
const (
	tagNull      byte = 0
	tagBool      byte = 1
	tagByte      byte = 2
	tagShort     byte = 4
	tagInt       byte = 5
	tagLong      byte = 6
	tagDouble    byte = 7
	tagFloat     byte = 8
	tagString    byte = 9
	tagByteArray byte = 10
	tagBigString byte = 13
)

// MarshalPrimitiveMap encodes m as an int32 entry count followed by
// key/value pairs in sorted key order. A nil map encodes as nil.
//
// Supported values are nil, bool, int8, int16, int32, int64, float32,
// float64, string and []byte.
func MarshalPrimitiveMap(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	w := NewDataWriter(&buf)
	w.WriteInt32(int32(len(m)))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if err := w.WriteUTF(k); err != nil {
			return nil, err
		}
		if err := writePrimitive(w, m[k]); err != nil {
			return nil, fmt.Errorf("wire: property %q: %w", k, err)
		}
	}
	return buf.Bytes(), nil
}

func writePrimitive(w *DataWriter, v any) error {
	switch x := v.(type) {
	case nil:
		w.WriteByte(tagNull)
	case bool:
		w.WriteByte(tagBool)
		w.WriteBool(x)
	case int8:
		w.WriteByte(tagByte)
		w.WriteByte(byte(x))
	case int16:
		w.WriteByte(tagShort)
		w.WriteInt16(x)
	case int32:
		w.WriteByte(tagInt)
		w.WriteInt32(x)
	case int64:
		w.WriteByte(tagLong)
		w.WriteInt64(x)
	case float64:
		w.WriteByte(tagDouble)
		w.WriteFloat64(x)
	case float32:
		w.WriteByte(tagFloat)
		w.WriteFloat32(x)
	case string:
		if mutf8Len(x) <= math.MaxUint16 {
			w.WriteByte(tagString)
			return w.WriteUTF(x)
		}
		w.WriteByte(tagBigString)
		b := appendMUTF8(nil, x)
		w.WriteInt32(int32(len(b)))
		w.Write(b)
	case []byte:
		w.WriteByte(tagByteArray)
		w.WriteInt32(int32(len(x)))
		w.Write(x)
	default:
		return fmt.Errorf("unsupported property type %T", v)
	}
	return nil
}

// UnmarshalPrimitiveMap decodes a map produced by MarshalPrimitiveMap.
func UnmarshalPrimitiveMap(b []byte) (map[string]any, error) {
	if b == nil {
		return nil, nil
	}
	r := NewDataReader(bytes.NewReader(b), len(b))
	n := r.ReadInt32()
	if n < 0 {
		return nil, r.Err()
	}
	if int(n) > len(b) {
		return nil, malformed("property count %d exceeds payload", n)
	}
	m := make(map[string]any, n)
	for i := int32(0); i < n && r.Err() == nil; i++ {
		k := r.ReadUTF()
		m[k] = readPrimitive(r)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if r.Count() != len(b) {
		return nil, malformed("%d trailing bytes after properties", len(b)-r.Count())
	}
	return m, nil
}

func readPrimitive(r *DataReader) any {
	switch tag := r.ReadUint8(); tag {
	case tagNull:
		return nil
	case tagBool:
		return r.ReadBool()
	case tagByte:
		return int8(r.ReadUint8())
	case tagShort:
		return r.ReadInt16()
	case tagInt:
		return r.ReadInt32()
	case tagLong:
		return r.ReadInt64()
	case tagDouble:
		return r.ReadFloat64()
	case tagFloat:
		return r.ReadFloat32()
	case tagString:
		return r.ReadUTF()
	case tagBigString:
		b := r.ReadBytes(int(r.ReadInt32()))
		if r.Err() != nil {
			return nil
		}
		s, err := decodeMUTF8(b)
		if err != nil {
			r.fail(malformed("%v", err))
		}
		return s
	case tagByteArray:
		return r.ReadBytes(int(r.ReadInt32()))
	default:
		if r.Err() == nil {
			r.fail(malformed("unknown property tag %d", tag))
		}
		return nil
	}
}
