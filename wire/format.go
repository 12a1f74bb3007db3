package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/pior/openwire/commands"
	"github.com/pior/openwire/internal/bufferpool"
)

var (
	ErrFrameTooLarge = errors.New("wire: frame too large")
	ErrNilCommand    = errors.New("wire: nil data structure")
)

// Format turns data structures into frames and back:
//
//	[size int32, if SizePrefix][type byte][flags, if TightEncoding][payload]
//
// A Format is safe for concurrent use. Every call works on a private Scope,
// so back-reference caches never leak between frames, and Renegotiate
// replaces the options atomically for subsequent calls.
type Format struct {
	registry *Registry
	opts     atomic.Pointer[Options]
	buffers  *bufferpool.Pool
}

// NewFormat returns a Format over the default registry.
func NewFormat(opts Options) (*Format, error) {
	return NewFormatWithRegistry(DefaultRegistry(), opts)
}

func NewFormatWithRegistry(r *Registry, opts Options) (*Format, error) {
	f := &Format{registry: r, buffers: bufferpool.New(512)}
	if err := f.Renegotiate(opts); err != nil {
		return nil, err
	}
	return f, nil
}

// Options returns the current settings.
func (f *Format) Options() Options {
	return *f.opts.Load()
}

// Renegotiate switches to new settings. Calls already in progress keep the
// settings they started with.
func (f *Format) Renegotiate(opts Options) error {
	if err := opts.validate(); err != nil {
		return err
	}
	if _, err := f.registry.table(opts.Version); err != nil {
		return err
	}
	f.opts.Store(&opts)
	return nil
}

func (f *Format) newScope() *Scope {
	opts := f.Options()
	t, _ := f.registry.table(opts.Version)
	return newScope(opts, t)
}

// Plan is a data structure measured for emission. In tight mode it holds
// the recorded flag bits; in loose mode the encoded payload.
type Plan struct {
	scope *Scope
	ds    commands.DataStructure
	m     Marshaller
	bs    *BooleanStream
	body  *bytes.Buffer
	size  int
}

// Size returns the frame size, not counting the size prefix.
func (p *Plan) Size() int { return p.size }

// Plan runs the sizing pass. The data structure must not change until the
// plan has been emitted.
func (f *Format) Plan(ds commands.DataStructure) (*Plan, error) {
	if commands.IsNil(ds) {
		return nil, ErrNilCommand
	}
	s := f.newScope()
	m, err := s.marshallerFor(ds)
	if err != nil {
		return nil, err
	}
	p := &Plan{scope: s, ds: ds, m: m}
	if s.opts.TightEncoding {
		p.bs = NewBooleanStream()
		n, err := m.TightMarshal1(s, ds, p.bs)
		if err != nil {
			return nil, err
		}
		p.size = 1 + p.bs.MarshalledSize() + n
	} else {
		p.body = new(bytes.Buffer)
		if err := m.LooseMarshal(s, ds, NewDataWriter(p.body)); err != nil {
			return nil, err
		}
		p.size = 1 + p.body.Len()
	}
	if limit := s.opts.maxFrameSize(); p.size > limit {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFrameTooLarge, p.size, limit)
	}
	return p, nil
}

// Emit writes a planned frame to w with a single Write call.
func (f *Format) Emit(p *Plan, w io.Writer) error {
	buf := f.buffers.Get()
	defer f.buffers.Put(buf)

	out := NewDataWriter(buf)
	want := p.size
	if p.scope.opts.SizePrefix {
		out.WriteInt32(int32(p.size))
		want += 4
	}
	out.WriteByte(p.ds.DataStructureType())
	if p.bs != nil {
		p.bs.Marshal(out)
		if err := p.m.TightMarshal2(p.scope, p.ds, out, p.bs); err != nil {
			return err
		}
		if err := p.bs.CheckConsumed(); err != nil {
			return err
		}
	} else {
		out.Write(p.body.Bytes())
	}
	if buf.Len() != want {
		return fmt.Errorf("wire: planned %d bytes but emitted %d, was the command modified?", want, buf.Len())
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Marshal plans and emits ds.
func (f *Format) Marshal(ds commands.DataStructure, w io.Writer) error {
	p, err := f.Plan(ds)
	if err != nil {
		return err
	}
	return f.Emit(p, w)
}

// MarshalBytes returns the frame of ds.
func (f *Format) MarshalBytes(ds commands.DataStructure) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Marshal(ds, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal reads one frame. It returns io.EOF when r ends cleanly before
// the first byte of a frame.
func (f *Format) Unmarshal(r io.Reader) (commands.DataStructure, error) {
	s := f.newScope()
	if s.opts.SizePrefix {
		return f.unmarshalSized(s, r)
	}

	var first [1]byte
	if _, err := io.ReadFull(r, first[:]); err != nil {
		return nil, err
	}
	limit := s.opts.maxFrameSize()
	in := NewDataReader(r, limit)
	ds, err := decode(s, in, first[0])
	if err != nil {
		return nil, err
	}
	if in.Count()+1 > limit {
		return nil, malformed("frame of %d bytes exceeds %d", in.Count()+1, limit)
	}
	return ds, nil
}

func (f *Format) unmarshalSized(s *Scope, r io.Reader) (commands.DataStructure, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &TruncatedFrameError{Err: err}
		}
		return nil, err
	}
	size := int(int32(binary.BigEndian.Uint32(hdr[:])))
	if limit := s.opts.maxFrameSize(); size <= 0 || size > limit {
		return nil, malformed("frame size %d out of range (limit %d)", size, limit)
	}

	buf := f.buffers.Get()
	defer f.buffers.Put(buf)
	buf.Grow(size)
	if _, err := io.CopyN(buf, r, int64(size)); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, &TruncatedFrameError{Err: err}
	}

	body := buf.Bytes()
	in := NewDataReader(bytes.NewReader(body[1:]), size)
	ds, err := decode(s, in, body[0])
	if err != nil {
		// The frame was read in full, so the stream is still aligned.
		var te *TruncatedFrameError
		if errors.As(err, &te) {
			return nil, &MalformedFrameError{Reason: "content overruns frame", Recoverable: true}
		}
		var me *MalformedFrameError
		if errors.As(err, &me) {
			return nil, &MalformedFrameError{Reason: me.Reason, Recoverable: true}
		}
		return nil, err
	}
	if rest := size - 1 - in.Count(); rest != 0 {
		return nil, &MalformedFrameError{Reason: fmt.Sprintf("%d trailing bytes", rest), Recoverable: true}
	}
	return ds, nil
}

func decode(s *Scope, in *DataReader, typeID byte) (commands.DataStructure, error) {
	m, ds, err := s.instance(typeID)
	if err != nil {
		return nil, err
	}
	if s.opts.TightEncoding {
		bs := NewBooleanStream()
		bs.Unmarshal(in)
		if err := in.Err(); err != nil {
			return nil, err
		}
		if err := m.TightUnmarshal(s, ds, in, bs); err != nil {
			return nil, err
		}
		if err := bs.CheckConsumed(); err != nil {
			return nil, err
		}
		return ds, nil
	}
	if err := m.LooseUnmarshal(s, ds, in); err != nil {
		return nil, err
	}
	return ds, nil
}

// ReadCommand reads one frame that must hold a command.
func (f *Format) ReadCommand(r io.Reader) (commands.Command, error) {
	ds, err := f.Unmarshal(r)
	if err != nil {
		return nil, err
	}
	cmd, ok := ds.(commands.Command)
	if !ok {
		return nil, &MalformedFrameError{
			Reason:      fmt.Sprintf("%T is not a command", ds),
			Recoverable: f.Options().SizePrefix,
		}
	}
	return cmd, nil
}
