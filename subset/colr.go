package subset

import (
	"encoding/binary"

	"github.com/textmetal/otsubset/graph"
	"github.com/textmetal/otsubset/ot"
)

// subsetCOLR rebuilds the COLR table, remapping base glyph and layer glyph
// ids to the output glyph id space and dropping base glyphs that weren't
// retained (their layers already were, or weren't, added to the closure in
// computeColrClosure).
func (p *Plan) subsetCOLR() ([]byte, error) {
	if p.colr == nil {
		return nil, nil
	}

	type outLayer struct {
		glyphID      ot.GlyphID
		paletteIndex uint16
	}
	type outBase struct {
		glyphID   ot.GlyphID
		numLayers uint16
	}

	var bases []outBase
	var layers []outLayer
	for _, oldBaseGID := range p.colr.BaseGlyphs() {
		newBaseGID, ok := p.glyphMap[oldBaseGID]
		if !ok {
			continue
		}
		oldLayers := p.colr.Layers(oldBaseGID)
		first := len(layers)
		for _, l := range oldLayers {
			newGID, ok := p.glyphMap[l.GlyphID]
			if !ok {
				continue
			}
			layers = append(layers, outLayer{glyphID: newGID, paletteIndex: l.PaletteIndex})
		}
		if len(layers) == first {
			continue // every layer glyph was dropped; base glyph has nothing left to paint
		}
		bases = append(bases, outBase{glyphID: newBaseGID, numLayers: uint16(len(layers) - first)})
	}
	if len(bases) == 0 {
		return nil, nil
	}

	// firstLayerIndex per base, now that the final layer slice is known
	firstLayerIndex := make([]uint16, len(bases))
	idx := 0
	for i, b := range bases {
		firstLayerIndex[i] = uint16(idx)
		idx += int(b.numLayers)
	}

	s := graph.New(0)
	s.StartSerialize()

	s.Push()
	baseBytes := s.AllocateSize(len(bases) * 6)
	for i, b := range bases {
		rec := baseBytes[i*6:]
		binary.BigEndian.PutUint16(rec[0:], uint16(b.glyphID))
		binary.BigEndian.PutUint16(rec[2:], firstLayerIndex[i])
		binary.BigEndian.PutUint16(rec[4:], b.numLayers)
	}
	baseObj := s.PopPack(false)

	s.Push()
	layerBytes := s.AllocateSize(len(layers) * 4)
	for i, l := range layers {
		rec := layerBytes[i*4:]
		binary.BigEndian.PutUint16(rec[0:], uint16(l.glyphID))
		binary.BigEndian.PutUint16(rec[2:], l.paletteIndex)
	}
	layerObj := s.PopPack(false)

	header := s.AllocateSize(14)
	binary.BigEndian.PutUint16(header[0:], 0) // version 0
	binary.BigEndian.PutUint16(header[2:], uint16(len(bases)))
	binary.BigEndian.PutUint16(header[12:], uint16(len(layers)))
	s.AddLink(4, graph.Width32, false, 0, baseObj)
	s.AddLink(8, graph.Width32, false, 0, layerObj)

	if !s.EndSerialize() {
		return nil, ErrOffsetOverflow
	}
	return s.CopyBytes(), nil
}
