package wire

import (
	"fmt"

	"github.com/pior/openwire/commands"
)

// Marshaller encodes and decodes one data structure type for one protocol
// version.
//
// Tight encoding runs in two passes: TightMarshal1 records flag bits and
// returns the payload size, TightMarshal2 replays the flags and writes the
// payload. Loose encoding is a single pass with one byte per boolean.
type Marshaller interface {
	TypeID() byte

	// CreateInstance returns a zero value of the type. Shared layers such as
	// Message return an error.
	CreateInstance() (commands.DataStructure, error)

	TightMarshal1(s *Scope, ds commands.DataStructure, bs *BooleanStream) (int, error)
	TightMarshal2(s *Scope, ds commands.DataStructure, out *DataWriter, bs *BooleanStream) error
	TightUnmarshal(s *Scope, ds commands.DataStructure, in *DataReader, bs *BooleanStream) error
	LooseMarshal(s *Scope, ds commands.DataStructure, out *DataWriter) error
	LooseUnmarshal(s *Scope, ds commands.DataStructure, in *DataReader) error
}

// fieldFunc visits the fields of ds in wire order. The same function drives
// all five passes; version gates optional fields.
type fieldFunc func(f fieldCodec, version int32, ds commands.DataStructure)

// typeMarshaller is the Marshaller of one (version, type) pair.
type typeMarshaller struct {
	id      byte
	name    string
	version int32
	create  func() commands.DataStructure
	fields  fieldFunc
}

func (m *typeMarshaller) TypeID() byte { return m.id }

func (m *typeMarshaller) String() string {
	return fmt.Sprintf("%s/v%d", m.name, m.version)
}

func (m *typeMarshaller) CreateInstance() (commands.DataStructure, error) {
	if m.create == nil {
		return nil, fmt.Errorf("wire: %s cannot be instantiated", m.name)
	}
	return m.create(), nil
}

func (m *typeMarshaller) TightMarshal1(s *Scope, ds commands.DataStructure, bs *BooleanStream) (int, error) {
	c := &tightSizer{s: s, bs: bs}
	m.fields(c, m.version, ds)
	return c.size, c.result()
}

func (m *typeMarshaller) TightMarshal2(s *Scope, ds commands.DataStructure, out *DataWriter, bs *BooleanStream) error {
	c := &tightEmitter{s: s, bs: bs, out: out}
	m.fields(c, m.version, ds)
	return c.result()
}

func (m *typeMarshaller) TightUnmarshal(s *Scope, ds commands.DataStructure, in *DataReader, bs *BooleanStream) error {
	c := &tightDecoder{s: s, bs: bs, in: in}
	m.fields(c, m.version, ds)
	return c.result()
}

func (m *typeMarshaller) LooseMarshal(s *Scope, ds commands.DataStructure, out *DataWriter) error {
	c := &looseEncoder{s: s, out: out}
	m.fields(c, m.version, ds)
	return c.result()
}

func (m *typeMarshaller) LooseUnmarshal(s *Scope, ds commands.DataStructure, in *DataReader) error {
	c := &looseDecoder{s: s, in: in}
	m.fields(c, m.version, ds)
	return c.result()
}

// as asserts that ds exposes the layer T, failing the codec otherwise.
func as[T any](f fieldCodec, ds commands.DataStructure) (T, bool) {
	v, ok := ds.(T)
	if !ok {
		f.fail(fmt.Errorf("wire: unexpected %T", ds))
	}
	return v, ok
}

// convert narrows a decoded object to the field type T.
func convert[T commands.DataStructure](f fieldCodec, ds commands.DataStructure) (T, bool) {
	var zero T
	if ds == nil {
		return zero, true
	}
	v, ok := ds.(T)
	if !ok {
		f.fail(malformed("unexpected %T in object field", ds))
		return zero, false
	}
	return v, true
}

func object[T commands.DataStructure](f fieldCodec, p *T, visit func(*commands.DataStructure)) {
	var ds commands.DataStructure
	if !commands.IsNil(*p) {
		ds = *p
	}
	visit(&ds)
	if f.decoding() {
		if v, ok := convert[T](f, ds); ok {
			*p = v
		}
	}
}

// nested visits an object field that is always sent in full.
func nested[T commands.DataStructure](f fieldCodec, p *T) {
	object(f, p, f.Nested)
}

// cached visits an object field eligible for back-references.
func cached[T commands.DataStructure](f fieldCodec, p *T) {
	object(f, p, f.Cached)
}

// array visits a nullable array of objects.
func array[T commands.DataStructure](f fieldCodec, p *[]T) {
	var arr []commands.DataStructure
	if *p != nil {
		arr = make([]commands.DataStructure, len(*p))
		for i, v := range *p {
			if !commands.IsNil(v) {
				arr[i] = v
			}
		}
	}
	f.Array(&arr)
	if !f.decoding() {
		return
	}
	if arr == nil {
		*p = nil
		return
	}
	out := make([]T, len(arr))
	for i, ds := range arr {
		v, ok := convert[T](f, ds)
		if !ok {
			return
		}
		out[i] = v
	}
	*p = out
}
