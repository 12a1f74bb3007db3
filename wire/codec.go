package wire

import (
	"fmt"
	"math"

	"github.com/pior/openwire/commands"
)

// fieldCodec is one pass over the fields of a data structure. Encoding
// passes read through the pointers, decoding passes write through them.
type fieldCodec interface {
	decoding() bool
	fail(err error)

	Bool(p *bool)
	Byte(p *byte)
	Int(p *int32)
	Long(p *int64)
	String(p *string)
	Bytes(p *[]byte)
	ConstBytes(p *[]byte, n int)
	Nested(p *commands.DataStructure)
	Cached(p *commands.DataStructure)
	Array(p *[]commands.DataStructure)
	Throwable(p **commands.BrokerError)
}

type codecErr struct{ err error }

func (c *codecErr) fail(err error) {
	if c.err == nil && err != nil {
		c.err = err
	}
}

func (c *codecErr) failed() bool { return c.err != nil }

func stringSize(s string) (int, error) {
	n := mutf8Len(s)
	if n > math.MaxUint16 {
		return 0, fmt.Errorf("wire: encoded string of %d bytes exceeds %d", n, math.MaxUint16)
	}
	return n, nil
}

// tightSizer is pass one of tight encoding: it records flag bits and sums
// the payload size.
type tightSizer struct {
	codecErr
	s    *Scope
	bs   *BooleanStream
	size int
}

func (c *tightSizer) decoding() bool { return false }

func (c *tightSizer) result() error {
	c.fail(c.bs.Err())
	return c.err
}

func (c *tightSizer) Bool(p *bool) { c.bs.WriteBool(*p) }
func (c *tightSizer) Byte(_ *byte) { c.size++ }
func (c *tightSizer) Int(_ *int32) { c.size += 4 }

func (c *tightSizer) Long(p *int64) {
	v := uint64(*p)
	switch {
	case v == 0:
		c.bs.WriteBool(false)
		c.bs.WriteBool(false)
	case v&0xFFFFFFFFFFFF0000 == 0:
		c.bs.WriteBool(false)
		c.bs.WriteBool(true)
		c.size += 2
	case v&0xFFFFFFFF00000000 == 0:
		c.bs.WriteBool(true)
		c.bs.WriteBool(false)
		c.size += 4
	default:
		c.bs.WriteBool(true)
		c.bs.WriteBool(true)
		c.size += 8
	}
}

func (c *tightSizer) String(p *string) {
	c.bs.WriteBool(*p != "")
	if *p == "" {
		return
	}
	n, err := stringSize(*p)
	if err != nil {
		c.fail(err)
		return
	}
	c.bs.WriteBool(isASCII(*p))
	c.size += 2 + n
}

func (c *tightSizer) Bytes(p *[]byte) {
	c.bs.WriteBool(*p != nil)
	if *p != nil {
		c.size += 4 + len(*p)
	}
}

func (c *tightSizer) ConstBytes(p *[]byte, n int) {
	if len(*p) != n {
		c.fail(fmt.Errorf("wire: constant field needs %d bytes, got %d", n, len(*p)))
		return
	}
	c.size += n
}

func (c *tightSizer) Nested(p *commands.DataStructure) {
	ds := *p
	present := !commands.IsNil(ds)
	c.bs.WriteBool(present)
	if !present || c.failed() {
		return
	}
	m, err := c.s.marshallerFor(ds)
	if err != nil {
		c.fail(err)
		return
	}
	if err := c.s.enter(); err != nil {
		c.fail(err)
		return
	}
	defer c.s.leave()
	n, err := m.TightMarshal1(c.s, ds, c.bs)
	c.fail(err)
	c.size += 1 + n
}

func (c *tightSizer) Cached(p *commands.DataStructure) {
	if !c.s.cacheOn() {
		c.Nested(p)
		return
	}
	c.size += 2
	if _, ok := c.s.cacheIndex(*p); ok {
		c.bs.WriteBool(false)
		return
	}
	c.bs.WriteBool(true)
	c.Nested(p)
	if !commands.IsNil(*p) {
		c.s.remember(*p)
	}
}

func (c *tightSizer) Array(p *[]commands.DataStructure) {
	c.bs.WriteBool(*p != nil)
	if *p == nil {
		return
	}
	if len(*p) > math.MaxInt16 {
		c.fail(fmt.Errorf("wire: array of %d elements exceeds %d", len(*p), math.MaxInt16))
		return
	}
	c.size += 2
	for i := range *p {
		c.Nested(&(*p)[i])
	}
}

func (c *tightSizer) Throwable(p **commands.BrokerError) {
	e := *p
	c.bs.WriteBool(e != nil)
	if e == nil || c.failed() {
		return
	}
	if err := c.s.enter(); err != nil {
		c.fail(err)
		return
	}
	defer c.s.leave()
	c.String(&e.ExceptionClass)
	c.String(&e.Message)
	if !c.s.opts.StackTrace {
		return
	}
	if len(e.StackTrace) > math.MaxInt16 {
		c.fail(fmt.Errorf("wire: stack trace of %d frames exceeds %d", len(e.StackTrace), math.MaxInt16))
		return
	}
	c.size += 2
	for i := range e.StackTrace {
		el := &e.StackTrace[i]
		c.String(&el.ClassName)
		c.String(&el.MethodName)
		c.String(&el.FileName)
		c.size += 4
	}
	c.Throwable(&e.Cause)
}

// tightEmitter is pass two of tight encoding: it replays the flag bits
// recorded by tightSizer and writes the payload.
type tightEmitter struct {
	codecErr
	s   *Scope
	bs  *BooleanStream
	out *DataWriter
}

func (c *tightEmitter) decoding() bool { return false }

func (c *tightEmitter) result() error {
	c.fail(c.bs.Err())
	return c.err
}

func (c *tightEmitter) Bool(_ *bool) { c.bs.ReadBool() }
func (c *tightEmitter) Byte(p *byte) { c.out.WriteByte(*p) }
func (c *tightEmitter) Int(p *int32) { c.out.WriteInt32(*p) }

func (c *tightEmitter) Long(p *int64) {
	if c.bs.ReadBool() {
		if c.bs.ReadBool() {
			c.out.WriteInt64(*p)
		} else {
			c.out.WriteInt32(int32(*p))
		}
	} else if c.bs.ReadBool() {
		c.out.WriteInt16(int16(*p))
	}
}

func (c *tightEmitter) String(p *string) {
	if !c.bs.ReadBool() {
		return
	}
	if c.bs.ReadBool() {
		c.out.WriteUint16(uint16(len(*p)))
		c.out.Write([]byte(*p))
		return
	}
	c.fail(c.out.WriteUTF(*p))
}

func (c *tightEmitter) Bytes(p *[]byte) {
	if c.bs.ReadBool() {
		c.out.WriteInt32(int32(len(*p)))
		c.out.Write(*p)
	}
}

func (c *tightEmitter) ConstBytes(p *[]byte, _ int) {
	c.out.Write(*p)
}

func (c *tightEmitter) Nested(p *commands.DataStructure) {
	if !c.bs.ReadBool() || c.failed() {
		return
	}
	ds := *p
	m, err := c.s.marshallerFor(ds)
	if err != nil {
		c.fail(err)
		return
	}
	c.out.WriteByte(ds.DataStructureType())
	c.fail(m.TightMarshal2(c.s, ds, c.out, c.bs))
}

func (c *tightEmitter) Cached(p *commands.DataStructure) {
	if !c.s.cacheOn() {
		c.Nested(p)
		return
	}
	isNew := c.bs.ReadBool()
	idx, _ := c.s.cacheIndex(*p)
	c.out.WriteInt16(idx)
	if isNew {
		c.Nested(p)
	}
}

func (c *tightEmitter) Array(p *[]commands.DataStructure) {
	if !c.bs.ReadBool() {
		return
	}
	c.out.WriteInt16(int16(len(*p)))
	for i := range *p {
		c.Nested(&(*p)[i])
	}
}

func (c *tightEmitter) Throwable(p **commands.BrokerError) {
	if !c.bs.ReadBool() || c.failed() {
		return
	}
	e := *p
	c.String(&e.ExceptionClass)
	c.String(&e.Message)
	if !c.s.opts.StackTrace {
		return
	}
	c.out.WriteInt16(int16(len(e.StackTrace)))
	for i := range e.StackTrace {
		el := &e.StackTrace[i]
		c.String(&el.ClassName)
		c.String(&el.MethodName)
		c.String(&el.FileName)
		c.out.WriteInt32(el.LineNumber)
	}
	c.Throwable(&e.Cause)
}

// tightDecoder reads a tight-encoded payload.
type tightDecoder struct {
	codecErr
	s  *Scope
	bs *BooleanStream
	in *DataReader
}

func (c *tightDecoder) decoding() bool { return true }

func (c *tightDecoder) fail(err error) {
	c.codecErr.fail(err)
	if err != nil {
		c.in.fail(err)
	}
}

func (c *tightDecoder) result() error {
	c.codecErr.fail(c.in.Err())
	c.codecErr.fail(c.bs.Err())
	return c.err
}

func (c *tightDecoder) Bool(p *bool) { *p = c.bs.ReadBool() }
func (c *tightDecoder) Byte(p *byte) { *p = c.in.ReadUint8() }
func (c *tightDecoder) Int(p *int32) { *p = c.in.ReadInt32() }

func (c *tightDecoder) Long(p *int64) {
	switch {
	case c.bs.ReadBool():
		if c.bs.ReadBool() {
			*p = c.in.ReadInt64()
		} else {
			*p = int64(uint32(c.in.ReadInt32()))
		}
	case c.bs.ReadBool():
		*p = int64(c.in.ReadUint16())
	default:
		*p = 0
	}
}

func (c *tightDecoder) String(p *string) {
	if !c.bs.ReadBool() {
		*p = ""
		return
	}
	if c.bs.ReadBool() {
		*p = c.in.ReadASCII(int(c.in.ReadUint16()))
		return
	}
	*p = c.in.ReadUTF()
}

func (c *tightDecoder) Bytes(p *[]byte) {
	if !c.bs.ReadBool() {
		*p = nil
		return
	}
	*p = c.in.ReadBytes(int(c.in.ReadInt32()))
}

func (c *tightDecoder) ConstBytes(p *[]byte, n int) {
	*p = c.in.ReadBytes(n)
}

func (c *tightDecoder) Nested(p *commands.DataStructure) {
	*p = nil
	if !c.bs.ReadBool() || c.failed() || c.in.Err() != nil {
		return
	}
	m, ds, err := c.s.instance(c.in.ReadUint8())
	if c.in.Err() != nil {
		return
	}
	if err != nil {
		c.fail(err)
		return
	}
	if err := c.s.enter(); err != nil {
		c.fail(err)
		return
	}
	defer c.s.leave()
	if err := m.TightUnmarshal(c.s, ds, c.in, c.bs); err != nil {
		c.fail(err)
		return
	}
	*p = ds
}

func (c *tightDecoder) Cached(p *commands.DataStructure) {
	if !c.s.cacheOn() {
		c.Nested(p)
		return
	}
	isNew := c.bs.ReadBool()
	idx := c.in.ReadInt16()
	if c.in.Err() != nil {
		return
	}
	if isNew {
		c.Nested(p)
		c.fail(c.s.store(idx, *p))
		return
	}
	ds, err := c.s.lookup(idx)
	if err != nil {
		c.fail(err)
		return
	}
	*p = ds
}

func (c *tightDecoder) Array(p *[]commands.DataStructure) {
	*p = nil
	if !c.bs.ReadBool() {
		return
	}
	n := c.in.ReadInt16()
	if n < 0 {
		c.fail(malformed("negative array length %d", n))
		return
	}
	arr := make([]commands.DataStructure, 0, min(int(n), 64))
	for i := 0; i < int(n) && c.in.Err() == nil; i++ {
		var ds commands.DataStructure
		c.Nested(&ds)
		arr = append(arr, ds)
	}
	*p = arr
}

func (c *tightDecoder) Throwable(p **commands.BrokerError) {
	*p = nil
	if !c.bs.ReadBool() || c.in.Err() != nil {
		return
	}
	if err := c.s.enter(); err != nil {
		c.fail(err)
		return
	}
	defer c.s.leave()
	e := &commands.BrokerError{}
	c.String(&e.ExceptionClass)
	c.String(&e.Message)
	if c.s.opts.StackTrace {
		n := c.in.ReadInt16()
		if n < 0 {
			c.fail(malformed("negative stack trace length %d", n))
			return
		}
		e.StackTrace = make([]commands.StackTraceElement, 0, min(int(n), 64))
		for i := 0; i < int(n) && c.in.Err() == nil; i++ {
			var el commands.StackTraceElement
			c.String(&el.ClassName)
			c.String(&el.MethodName)
			c.String(&el.FileName)
			el.LineNumber = c.in.ReadInt32()
			e.StackTrace = append(e.StackTrace, el)
		}
		c.Throwable(&e.Cause)
	}
	*p = e
}

// looseEncoder writes the loose encoding: one byte per boolean, full-width
// integers and no back-references.
type looseEncoder struct {
	codecErr
	s   *Scope
	out *DataWriter
}

func (c *looseEncoder) decoding() bool { return false }
func (c *looseEncoder) result() error  { return c.err }

func (c *looseEncoder) Bool(p *bool)  { c.out.WriteBool(*p) }
func (c *looseEncoder) Byte(p *byte)  { c.out.WriteByte(*p) }
func (c *looseEncoder) Int(p *int32)  { c.out.WriteInt32(*p) }
func (c *looseEncoder) Long(p *int64) { c.out.WriteInt64(*p) }

func (c *looseEncoder) String(p *string) {
	c.out.WriteBool(*p != "")
	if *p != "" {
		c.fail(c.out.WriteUTF(*p))
	}
}

func (c *looseEncoder) Bytes(p *[]byte) {
	c.out.WriteBool(*p != nil)
	if *p != nil {
		c.out.WriteInt32(int32(len(*p)))
		c.out.Write(*p)
	}
}

func (c *looseEncoder) ConstBytes(p *[]byte, n int) {
	if len(*p) != n {
		c.fail(fmt.Errorf("wire: constant field needs %d bytes, got %d", n, len(*p)))
		return
	}
	c.out.Write(*p)
}

func (c *looseEncoder) Nested(p *commands.DataStructure) {
	ds := *p
	present := !commands.IsNil(ds)
	c.out.WriteBool(present)
	if !present || c.failed() {
		return
	}
	m, err := c.s.marshallerFor(ds)
	if err != nil {
		c.fail(err)
		return
	}
	if err := c.s.enter(); err != nil {
		c.fail(err)
		return
	}
	defer c.s.leave()
	c.out.WriteByte(ds.DataStructureType())
	c.fail(m.LooseMarshal(c.s, ds, c.out))
}

func (c *looseEncoder) Cached(p *commands.DataStructure) { c.Nested(p) }

func (c *looseEncoder) Array(p *[]commands.DataStructure) {
	c.out.WriteBool(*p != nil)
	if *p == nil {
		return
	}
	if len(*p) > math.MaxInt16 {
		c.fail(fmt.Errorf("wire: array of %d elements exceeds %d", len(*p), math.MaxInt16))
		return
	}
	c.out.WriteInt16(int16(len(*p)))
	for i := range *p {
		c.Nested(&(*p)[i])
	}
}

func (c *looseEncoder) Throwable(p **commands.BrokerError) {
	e := *p
	c.out.WriteBool(e != nil)
	if e == nil || c.failed() {
		return
	}
	if err := c.s.enter(); err != nil {
		c.fail(err)
		return
	}
	defer c.s.leave()
	c.String(&e.ExceptionClass)
	c.String(&e.Message)
	if !c.s.opts.StackTrace {
		return
	}
	if len(e.StackTrace) > math.MaxInt16 {
		c.fail(fmt.Errorf("wire: stack trace of %d frames exceeds %d", len(e.StackTrace), math.MaxInt16))
		return
	}
	c.out.WriteInt16(int16(len(e.StackTrace)))
	for i := range e.StackTrace {
		el := &e.StackTrace[i]
		c.String(&el.ClassName)
		c.String(&el.MethodName)
		c.String(&el.FileName)
		c.out.WriteInt32(el.LineNumber)
	}
	c.Throwable(&e.Cause)
}

// looseDecoder reads the loose encoding.
type looseDecoder struct {
	codecErr
	s  *Scope
	in *DataReader
}

func (c *looseDecoder) decoding() bool { return true }

func (c *looseDecoder) fail(err error) {
	c.codecErr.fail(err)
	if err != nil {
		c.in.fail(err)
	}
}

func (c *looseDecoder) result() error {
	c.codecErr.fail(c.in.Err())
	return c.err
}

func (c *looseDecoder) Bool(p *bool)  { *p = c.in.ReadBool() }
func (c *looseDecoder) Byte(p *byte)  { *p = c.in.ReadUint8() }
func (c *looseDecoder) Int(p *int32)  { *p = c.in.ReadInt32() }
func (c *looseDecoder) Long(p *int64) { *p = c.in.ReadInt64() }

func (c *looseDecoder) String(p *string) {
	*p = ""
	if c.in.ReadBool() {
		*p = c.in.ReadUTF()
	}
}

func (c *looseDecoder) Bytes(p *[]byte) {
	*p = nil
	if c.in.ReadBool() {
		*p = c.in.ReadBytes(int(c.in.ReadInt32()))
	}
}

func (c *looseDecoder) ConstBytes(p *[]byte, n int) {
	*p = c.in.ReadBytes(n)
}

func (c *looseDecoder) Nested(p *commands.DataStructure) {
	*p = nil
	if !c.in.ReadBool() || c.failed() {
		return
	}
	m, ds, err := c.s.instance(c.in.ReadUint8())
	if c.in.Err() != nil {
		return
	}
	if err != nil {
		c.fail(err)
		return
	}
	if err := c.s.enter(); err != nil {
		c.fail(err)
		return
	}
	defer c.s.leave()
	if err := m.LooseUnmarshal(c.s, ds, c.in); err != nil {
		c.fail(err)
		return
	}
	*p = ds
}

func (c *looseDecoder) Cached(p *commands.DataStructure) { c.Nested(p) }

func (c *looseDecoder) Array(p *[]commands.DataStructure) {
	*p = nil
	if !c.in.ReadBool() {
		return
	}
	n := c.in.ReadInt16()
	if n < 0 {
		c.fail(malformed("negative array length %d", n))
		return
	}
	arr := make([]commands.DataStructure, 0, min(int(n), 64))
	for i := 0; i < int(n) && c.in.Err() == nil; i++ {
		var ds commands.DataStructure
		c.Nested(&ds)
		arr = append(arr, ds)
	}
	*p = arr
}

func (c *looseDecoder) Throwable(p **commands.BrokerError) {
	*p = nil
	if !c.in.ReadBool() {
		return
	}
	if err := c.s.enter(); err != nil {
		c.fail(err)
		return
	}
	defer c.s.leave()
	e := &commands.BrokerError{}
	c.String(&e.ExceptionClass)
	c.String(&e.Message)
	if c.s.opts.StackTrace {
		n := c.in.ReadInt16()
		if n < 0 {
			c.fail(malformed("negative stack trace length %d", n))
			return
		}
		e.StackTrace = make([]commands.StackTraceElement, 0, min(int(n), 64))
		for i := 0; i < int(n) && c.in.Err() == nil; i++ {
			var el commands.StackTraceElement
			c.String(&el.ClassName)
			c.String(&el.MethodName)
			c.String(&el.FileName)
			el.LineNumber = c.in.ReadInt32()
			e.StackTrace = append(e.StackTrace, el)
		}
		c.Throwable(&e.Cause)
	}
	*p = e
}
