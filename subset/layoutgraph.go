package subset

import (
	"encoding/binary"

	"github.com/textmetal/otsubset/graph"
)

// layoutLookup is a GSUB/GPOS lookup ready to be packed into the graph
// serializer: a lookup type/flag pair and its already-subsetted subtables.
type layoutLookup struct {
	lookupType uint16
	flag       uint16
	subtables  [][]byte
}

// packBytes embeds a self-contained byte blob as its own graph object,
// deduped against identical blobs already packed. Returns 0 (the nil
// object) for an empty blob, so the caller's AddLink resolves to a null
// offset rather than needing a separate empty check.
func packBytes(s *graph.Serializer, data []byte) int {
	if len(data) == 0 {
		return 0
	}
	s.Push()
	s.Embed(data)
	return s.PopPack(true)
}

// serializeLookupList packs a GSUB/GPOS LookupList through the graph
// serializer: each subtable is its own packed object, each lookup's
// subtable-offset array links to them, and the returned object is the
// LookupList itself, linking to every packed lookup in order.
func serializeLookupList(s *graph.Serializer, lookups []layoutLookup) int {
	lookupObjs := make([]int, len(lookups))
	for i, lk := range lookups {
		subtableObjs := make([]int, len(lk.subtables))
		for j, st := range lk.subtables {
			subtableObjs[j] = packBytes(s, st)
		}

		s.Push()
		header := s.AllocateSize(6 + len(lk.subtables)*2)
		binary.BigEndian.PutUint16(header[0:], lk.lookupType)
		binary.BigEndian.PutUint16(header[2:], lk.flag)
		binary.BigEndian.PutUint16(header[4:], uint16(len(lk.subtables)))
		for j, obj := range subtableObjs {
			s.AddLink(6+j*2, graph.Width16, false, 0, obj)
		}
		lookupObjs[i] = s.PopPack(false)
	}

	s.Push()
	header := s.AllocateSize(2 + len(lookups)*2)
	binary.BigEndian.PutUint16(header[0:], uint16(len(lookups)))
	for i, obj := range lookupObjs {
		s.AddLink(2+i*2, graph.Width16, false, 0, obj)
	}
	return s.PopPack(false)
}
