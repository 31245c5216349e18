// Package graph implements the object-graph serializer and repacker that
// backend table dispatchers use to emit OpenType tables: a scope-lexical
// push/pop builder that defers offset writes as links, dedupes identical
// packed subtrees, and reorders the graph breadth-first if a 16-bit link
// would otherwise overflow.
package graph

import (
	"encoding/binary"

	"github.com/npillmayer/schuko/gtrace"
	"github.com/npillmayer/schuko/tracing"
)

func trace() tracing.Trace {
	return gtrace.CoreTracer
}

// Width is the byte width of a deferred offset link.
type Width int

const (
	Width16 Width = 2
	Width32 Width = 4
)

// link is a deferred offset write: at resolve time position `pos` inside
// the owning object receives (target.start - owning.start) - bias.
type link struct {
	pos    int
	width  Width
	signed bool
	bias   int
	target int // index into Serializer.packed; 0 is the nil object
}

// object is one node of the graph: a run of emitted bytes plus the links
// originating from it. An object is "packed" once its subtree is closed
// by PopPack/PopDiscard.
type object struct {
	bytes []byte
	links []link
}

func (o *object) key() string {
	// Dedupe key: raw bytes followed by each link's (position, width,
	// signedness, bias, target) tuple. Two objects with this key equal
	// are structurally identical regardless of creation order.
	buf := make([]byte, 0, len(o.bytes)+len(o.links)*12)
	buf = append(buf, o.bytes...)
	for _, l := range o.links {
		var tmp [12]byte
		binary.BigEndian.PutUint32(tmp[0:], uint32(l.pos))
		binary.BigEndian.PutUint32(tmp[4:], uint32(l.bias))
		binary.BigEndian.PutUint32(tmp[8:], uint32(l.target))
		buf = append(buf, tmp[:]...)
		buf = append(buf, byte(l.width))
		if l.signed {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}
	return string(buf)
}

// Snapshot captures the serializer's scope depth at a point in time, for
// use with Revert to roll back a speculative emission.
type Snapshot struct {
	stackDepth int
}

// Serializer builds a DAG of byte objects connected by deferred offset
// links, then resolves all links in one pass. Not safe for concurrent use;
// one Serializer corresponds to one subset/table-build operation.
type Serializer struct {
	packed  []*object      // index 0 is the reserved nil object
	dedupe  map[string]int // object key -> index into packed
	stack   []*object      // open (unpacked) scopes; top is the current object
	failed  bool
	ranOutOfRoom bool
	maxObjectBytes int // 0 means unbounded

	// populated by EndSerialize, consumed by CopyBytes
	finalOrder   []int
	finalOffsets map[int]int
}

// New returns a Serializer ready for StartSerialize. maxObjectBytes bounds
// a single object's emitted size (0 = unbounded); AllocateSize beyond this
// bound fails the serializer, mirroring the "out of room" error kind.
func New(maxObjectBytes int) *Serializer {
	s := &Serializer{
		packed:         []*object{nil}, // slot 0: the nil object
		dedupe:         make(map[string]int),
		maxObjectBytes: maxObjectBytes,
	}
	return s
}

// Failed reports whether any operation since construction has failed the
// serializer.
func (s *Serializer) Failed() bool {
	return s.failed
}

// StartSerialize opens the root scope. Must be called before any other
// operation and exactly once per Serializer.
func (s *Serializer) StartSerialize() {
	s.Push()
}

// Push opens a new child scope; subsequent Embed/AllocateSize/AddLink
// calls apply to this object until it is closed by PopPack or PopDiscard.
func (s *Serializer) Push() {
	s.stack = append(s.stack, &object{})
}

// current returns the object at the top of the scope stack, or nil if the
// serializer has failed or has no open scope.
func (s *Serializer) current() *object {
	if s.failed || len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

// Embed appends fixed-size bytes to the current object.
func (s *Serializer) Embed(value []byte) {
	obj := s.current()
	if obj == nil {
		return
	}
	if s.maxObjectBytes > 0 && len(obj.bytes)+len(value) > s.maxObjectBytes {
		s.ranOutOfRoom = true
		s.failed = true
		return
	}
	obj.bytes = append(obj.bytes, value...)
}

// AllocateSize reserves n zero-initialised bytes in the current object and
// returns them for the caller to fill in place (e.g. before AddLink
// records an offset at a known position within the reservation).
func (s *Serializer) AllocateSize(n int) []byte {
	obj := s.current()
	if obj == nil {
		return nil
	}
	if s.maxObjectBytes > 0 && len(obj.bytes)+n > s.maxObjectBytes {
		s.ranOutOfRoom = true
		s.failed = true
		return nil
	}
	start := len(obj.bytes)
	obj.bytes = append(obj.bytes, make([]byte, n)...)
	return obj.bytes[start : start+n]
}

// Position returns the number of bytes emitted so far into the current
// object, for callers that need to record a link's position immediately
// before embedding the placeholder bytes it will overwrite.
func (s *Serializer) Position() int {
	obj := s.current()
	if obj == nil {
		return 0
	}
	return len(obj.bytes)
}

// AddLink records a deferred offset from byte position `pos` inside the
// current object to the packed object `target` (as returned by a prior
// PopPack). `width` is the link's byte width, `signed` controls whether
// the resolved distance is written as a signed or unsigned value, and
// `bias` is subtracted from the resolved distance (allowing offsets
// relative to an inner anchor rather than the owning object's start).
// A target of 0 (the nil object) resolves to zero and need not be added.
func (s *Serializer) AddLink(pos int, width Width, signed bool, bias, target int) {
	if target == 0 {
		return
	}
	obj := s.current()
	if obj == nil {
		return
	}
	obj.links = append(obj.links, link{pos: pos, width: width, signed: signed, bias: bias, target: target})
}

// PopPack closes the current object. If dedupe is true and an identical
// (bytes, links) object already exists, its index is reused; otherwise a
// new packed slot is assigned. Returns the packed index (0 if the object
// was empty and link-free, matching the nil-object convention).
func (s *Serializer) PopPack(dedupe bool) int {
	if len(s.stack) == 0 {
		return 0
	}
	obj := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]

	if len(obj.bytes) == 0 && len(obj.links) == 0 {
		return 0
	}

	if dedupe {
		if idx, ok := s.dedupe[obj.key()]; ok {
			return idx
		}
	}

	s.packed = append(s.packed, obj)
	idx := len(s.packed) - 1
	if dedupe {
		s.dedupe[obj.key()] = idx
	}
	return idx
}

// PopDiscard closes the current object and throws its bytes away without
// packing it.
func (s *Serializer) PopDiscard() {
	if len(s.stack) == 0 {
		return
	}
	s.stack = s.stack[:len(s.stack)-1]
}

// SnapshotState captures the current scope depth so a speculative emission can
// be rolled back with Revert if it turns out not to be needed.
func (s *Serializer) SnapshotState() Snapshot {
	return Snapshot{stackDepth: len(s.stack)}
}

// Revert discards any scopes opened since snap was captured.
func (s *Serializer) Revert(snap Snapshot) {
	if snap.stackDepth < len(s.stack) {
		s.stack = s.stack[:snap.stackDepth]
	}
}

// resolvedLayout is the outcome of assigning a byte offset to every
// packed object in a chosen order.
type resolvedLayout struct {
	order   []int // packed index in emission order
	offsets map[int]int
	total   int
}

func layout(packed []*object, order []int) resolvedLayout {
	offsets := make(map[int]int, len(order))
	pos := 0
	for _, idx := range order {
		offsets[idx] = pos
		pos += len(packed[idx].bytes)
	}
	return resolvedLayout{order: order, offsets: offsets, total: pos}
}

// overflows reports whether any link in the given layout cannot be
// represented in its declared width.
func overflows(packed []*object, rl resolvedLayout) bool {
	for _, idx := range rl.order {
		obj := packed[idx]
		for _, l := range obj.links {
			distance := (rl.offsets[l.target] - rl.offsets[idx]) - l.bias
			if !fits(l.width, l.signed, distance) {
				return true
			}
		}
	}
	return false
}

func fits(w Width, signed bool, distance int) bool {
	switch w {
	case Width16:
		if signed {
			return distance >= -32768 && distance <= 32767
		}
		return distance >= 0 && distance <= 65535
	case Width32:
		if signed {
			return distance >= -(1<<31) && distance <= (1<<31)-1
		}
		return distance >= 0 && distance <= (1<<32)-1
	}
	return false
}

// bfsOrder produces a breadth-first topological order over the packed
// objects starting from root, visiting each object's links in the order
// they were added. This places every object as close as possible to its parents,
// which in practice minimizes 16-bit offset spans.
func bfsOrder(packed []*object, root int) []int {
	visited := make(map[int]bool)
	var order []int
	queue := []int{root}
	visited[root] = true
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		order = append(order, next)
		for _, l := range packed[next].links {
			if !visited[l.target] {
				visited[l.target] = true
				queue = append(queue, l.target)
			}
		}
	}
	return order
}

// EndSerialize closes the root scope (if still open), resolves every
// link, and — if any 16-bit link overflows — reorders the packed objects
// via BFS and retries once. Returns false if the serializer had already
// failed, if overflow persists after the one reorder attempt, or if, on
// that reorder path, the BFS from the root does not reach every packed
// object (a programmer error per the object graph's acyclic-forward-offset
// contract). Connectivity is not checked when the naive layout fits.
func (s *Serializer) EndSerialize() bool {
	if s.failed {
		return false
	}
	for len(s.stack) > 0 {
		s.PopPack(false)
	}
	if len(s.packed) <= 1 {
		return true
	}

	root := len(s.packed) - 1
	order := make([]int, 0, len(s.packed)-1)
	for i := len(s.packed) - 1; i >= 1; i-- {
		order = append(order, i)
	}
	rl := layout(s.packed, order)

	if overflows(s.packed, rl) {
		trace().Infof("link overflow detected, repacking via BFS")
		bfs := bfsOrder(s.packed, root)
		if len(bfs) != len(s.packed)-1 {
			trace().Errorf("object graph not fully connected: visited %d of %d objects", len(bfs), len(s.packed)-1)
			s.failed = true
			return false
		}
		rl = layout(s.packed, bfs)
		if overflows(s.packed, rl) {
			trace().Errorf("offset overflow persists after BFS repack")
			s.failed = true
			return false
		}
	}

	s.finalOrder = rl.order
	s.finalOffsets = rl.offsets
	return true
}

// CopyBytes assembles and returns the final byte buffer in the order
// EndSerialize settled on, with every link's offset resolved in place.
// Returns nil if EndSerialize has not been called or failed.
func (s *Serializer) CopyBytes() []byte {
	if s.failed || s.finalOrder == nil {
		return nil
	}

	out := make([]byte, 0, s.totalSize())
	for _, idx := range s.finalOrder {
		out = append(out, s.packed[idx].bytes...)
	}

	for _, idx := range s.finalOrder {
		obj := s.packed[idx]
		base := s.finalOffsets[idx]
		for _, l := range obj.links {
			distance := (s.finalOffsets[l.target] - base) - l.bias
			pos := base + l.pos
			switch l.width {
			case Width16:
				if l.signed {
					binary.BigEndian.PutUint16(out[pos:], uint16(int16(distance)))
				} else {
					binary.BigEndian.PutUint16(out[pos:], uint16(distance))
				}
			case Width32:
				if l.signed {
					binary.BigEndian.PutUint32(out[pos:], uint32(int32(distance)))
				} else {
					binary.BigEndian.PutUint32(out[pos:], uint32(distance))
				}
			}
		}
	}

	return out
}

func (s *Serializer) totalSize() int {
	total := 0
	for _, idx := range s.finalOrder {
		total += len(s.packed[idx].bytes)
	}
	return total
}
