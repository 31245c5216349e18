package ot

import "encoding/binary"

// TagCOLR is the table tag for the color table (COLRv0 layer lists).
var TagCOLR = MakeTag('C', 'O', 'L', 'R')

// ColrLayer is one entry of a base glyph's layer list: a glyph id to draw
// and the CPAL palette entry to paint it with.
type ColrLayer struct {
	GlyphID      GlyphID
	PaletteIndex uint16
}

// colrBaseGlyph records where one base glyph's layers start in the shared
// layer record array.
type colrBaseGlyph struct {
	glyphID         GlyphID
	firstLayerIndex uint16
	numLayers       uint16
}

// COLR represents a parsed COLRv0 color table: a mapping from colored base
// glyphs to an ordered list of (glyph, palette index) layers painted
// back-to-front. Later COLR versions (layer graphs, gradients, variable
// paint) are not parsed; this module only needs the v0 layer-list shape
// that glyph closure and glyph id remapping depend on.
type COLR struct {
	baseGlyphs []colrBaseGlyph
	layers     []ColrLayer
}

// ParseCOLR parses a COLR table's version-0 header.
func ParseCOLR(data []byte) (*COLR, error) {
	if len(data) < 14 {
		return nil, ErrInvalidTable
	}
	version := binary.BigEndian.Uint16(data[0:])
	if version != 0 {
		return nil, ErrInvalidFormat
	}

	numBaseGlyphRecords := int(binary.BigEndian.Uint16(data[2:]))
	baseGlyphRecordsOffset := int(binary.BigEndian.Uint32(data[4:]))
	layerRecordsOffset := int(binary.BigEndian.Uint32(data[8:]))
	numLayerRecords := int(binary.BigEndian.Uint16(data[12:]))

	const baseGlyphRecordSize = 6
	const layerRecordSize = 4

	baseEnd := baseGlyphRecordsOffset + numBaseGlyphRecords*baseGlyphRecordSize
	if baseGlyphRecordsOffset < 0 || baseEnd > len(data) {
		return nil, ErrInvalidOffset
	}
	layerEnd := layerRecordsOffset + numLayerRecords*layerRecordSize
	if layerRecordsOffset < 0 || layerEnd > len(data) {
		return nil, ErrInvalidOffset
	}

	c := &COLR{
		baseGlyphs: make([]colrBaseGlyph, numBaseGlyphRecords),
		layers:     make([]ColrLayer, numLayerRecords),
	}
	for i := 0; i < numBaseGlyphRecords; i++ {
		rec := data[baseGlyphRecordsOffset+i*baseGlyphRecordSize:]
		c.baseGlyphs[i] = colrBaseGlyph{
			glyphID:         GlyphID(binary.BigEndian.Uint16(rec[0:])),
			firstLayerIndex: binary.BigEndian.Uint16(rec[2:]),
			numLayers:       binary.BigEndian.Uint16(rec[4:]),
		}
	}
	for i := 0; i < numLayerRecords; i++ {
		rec := data[layerRecordsOffset+i*layerRecordSize:]
		c.layers[i] = ColrLayer{
			GlyphID:      GlyphID(binary.BigEndian.Uint16(rec[0:])),
			PaletteIndex: binary.BigEndian.Uint16(rec[2:]),
		}
	}
	return c, nil
}

// HasData returns true if the table has at least one base glyph.
func (c *COLR) HasData() bool {
	return c != nil && len(c.baseGlyphs) > 0
}

// Layers returns the layer list for a base glyph, or nil if the glyph has
// no color definition.
func (c *COLR) Layers(baseGID GlyphID) []ColrLayer {
	for _, b := range c.baseGlyphs {
		if b.glyphID == baseGID {
			return c.layers[b.firstLayerIndex : b.firstLayerIndex+b.numLayers]
		}
	}
	return nil
}

// BaseGlyphs returns the glyph ids that have a color definition.
func (c *COLR) BaseGlyphs() []GlyphID {
	out := make([]GlyphID, len(c.baseGlyphs))
	for i, b := range c.baseGlyphs {
		out[i] = b.glyphID
	}
	return out
}
