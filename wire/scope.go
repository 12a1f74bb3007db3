package wire

import (
	"fmt"

	"github.com/pior/openwire/commands"
)

// maxDepth bounds nesting of objects and exception causes within one frame.
const maxDepth = 64

// Scope is the state of one top-level marshal or unmarshal call: a snapshot
// of the format options, the marshallers of the negotiated version and the
// identity caches. A Scope is never shared between calls.
type Scope struct {
	opts  Options
	table *versionTable
	depth int

	slots    int
	outCache map[commands.DataStructure]int16
	inCache  map[int16]commands.DataStructure
}

func newScope(opts Options, table *versionTable) *Scope {
	return &Scope{opts: opts, table: table, slots: opts.cacheSlots()}
}

// Options returns the settings the scope was created with.
func (s *Scope) Options() Options { return s.opts }

// Version returns the protocol version in use.
func (s *Scope) Version() int32 { return s.opts.Version }

func (s *Scope) cacheOn() bool { return s.slots > 0 }

func (s *Scope) marshallerFor(ds commands.DataStructure) (Marshaller, error) {
	m := s.table.byType[ds.DataStructureType()]
	if m == nil {
		return nil, fmt.Errorf("%w %d (%T)", ErrUnknownType, ds.DataStructureType(), ds)
	}
	return m, nil
}

func (s *Scope) instance(typeID byte) (Marshaller, commands.DataStructure, error) {
	m := s.table.byType[typeID]
	if m == nil {
		return nil, nil, malformed("unknown data structure type %d", typeID)
	}
	ds, err := m.CreateInstance()
	if err != nil {
		return nil, nil, &MalformedFrameError{Reason: err.Error()}
	}
	return m, ds, nil
}

func (s *Scope) enter() error {
	if s.depth >= maxDepth {
		return malformed("nesting deeper than %d", maxDepth)
	}
	s.depth++
	return nil
}

func (s *Scope) leave() { s.depth-- }

// cacheIndex returns the index assigned to ds during this call, or -1.
func (s *Scope) cacheIndex(ds commands.DataStructure) (int16, bool) {
	if ds == nil {
		return -1, false
	}
	idx, ok := s.outCache[ds]
	if !ok {
		return -1, false
	}
	return idx, true
}

// remember assigns the next free index to ds. When all slots are taken ds is
// not cached and later occurrences are sent in full.
func (s *Scope) remember(ds commands.DataStructure) {
	if ds == nil || len(s.outCache) >= s.slots {
		return
	}
	if s.outCache == nil {
		s.outCache = make(map[commands.DataStructure]int16)
	}
	s.outCache[ds] = int16(len(s.outCache))
}

func (s *Scope) store(idx int16, ds commands.DataStructure) error {
	if idx > maxCacheIndex {
		return malformed("cache index %d out of range", idx)
	}
	if idx < 0 || ds == nil {
		return nil
	}
	if s.inCache == nil {
		s.inCache = make(map[int16]commands.DataStructure)
	}
	s.inCache[idx] = ds
	return nil
}

func (s *Scope) lookup(idx int16) (commands.DataStructure, error) {
	ds, ok := s.inCache[idx]
	if !ok {
		return nil, malformed("invalid cache reference %d", idx)
	}
	return ds.Clone(), nil
}
