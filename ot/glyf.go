package ot

import (
	"encoding/binary"
)

// Glyf represents the parsed glyf table (glyph data).
type Glyf struct {
	data []byte
	loca *Loca
}

// Loca represents the parsed loca table (index to location).
type Loca struct {
	offsets   []uint32 // Glyph offsets into glyf table
	numGlyphs int
	isShort   bool // true for short format (16-bit offsets)
}

// GlyphData represents the raw data for a single glyph.
type GlyphData struct {
	Data             []byte
	NumberOfContours int16 // -1 for composite, >= 0 for simple
}

// ParseLoca parses the loca table.
// indexToLocFormat: 0 = short (16-bit), 1 = long (32-bit)
func ParseLoca(data []byte, numGlyphs int, indexToLocFormat int16) (*Loca, error) {
	l := &Loca{
		numGlyphs: numGlyphs,
		isShort:   indexToLocFormat == 0,
	}

	// loca has numGlyphs+1 entries
	numEntries := numGlyphs + 1

	if l.isShort {
		// Short format: 16-bit offsets (actual offset = value * 2)
		if len(data) < numEntries*2 {
			return nil, ErrInvalidOffset
		}
		l.offsets = make([]uint32, numEntries)
		for i := 0; i < numEntries; i++ {
			l.offsets[i] = uint32(binary.BigEndian.Uint16(data[i*2:])) * 2
		}
	} else {
		// Long format: 32-bit offsets
		if len(data) < numEntries*4 {
			return nil, ErrInvalidOffset
		}
		l.offsets = make([]uint32, numEntries)
		for i := 0; i < numEntries; i++ {
			l.offsets[i] = binary.BigEndian.Uint32(data[i*4:])
		}
	}

	return l, nil
}

// GetOffset returns the offset and length for a glyph.
// Returns (offset, length, ok)
func (l *Loca) GetOffset(gid GlyphID) (uint32, uint32, bool) {
	idx := int(gid)
	if idx < 0 || idx >= l.numGlyphs {
		return 0, 0, false
	}
	start := l.offsets[idx]
	end := l.offsets[idx+1]
	return start, end - start, true
}

// NumGlyphs returns the number of glyphs.
func (l *Loca) NumGlyphs() int {
	return l.numGlyphs
}

// IsShort returns true if using short (16-bit) format.
func (l *Loca) IsShort() bool {
	return l.isShort
}

// ParseGlyf parses the glyf table using a loca table.
func ParseGlyf(data []byte, loca *Loca) (*Glyf, error) {
	return &Glyf{
		data: data,
		loca: loca,
	}, nil
}

// GetGlyph returns the glyph data for a glyph ID.
func (g *Glyf) GetGlyph(gid GlyphID) *GlyphData {
	offset, length, ok := g.loca.GetOffset(gid)
	if !ok {
		return nil
	}

	// Empty glyph (like space)
	if length == 0 {
		return &GlyphData{
			Data:             nil,
			NumberOfContours: 0,
		}
	}

	if int(offset)+int(length) > len(g.data) {
		return nil
	}

	data := g.data[offset : offset+length]
	if len(data) < 2 {
		return nil
	}

	numberOfContours := int16(binary.BigEndian.Uint16(data))

	return &GlyphData{
		Data:             data,
		NumberOfContours: numberOfContours,
	}
}

// GetGlyphBytes returns the raw bytes for a glyph.
func (g *Glyf) GetGlyphBytes(gid GlyphID) []byte {
	offset, length, ok := g.loca.GetOffset(gid)
	if !ok || length == 0 {
		return nil
	}
	if int(offset)+int(length) > len(g.data) {
		return nil
	}
	return g.data[offset : offset+length]
}

// IsComposite returns true if the glyph is a composite glyph.
func (gd *GlyphData) IsComposite() bool {
	return gd.NumberOfContours < 0
}

// Composite glyph flags
const (
	argAreWords     uint16 = 0x0001 // Args are words (otherwise bytes)
	argsAreXYValues uint16 = 0x0002 // Args are xy values (otherwise points)
	roundXYToGrid   uint16 = 0x0004
	weHaveAScale    uint16 = 0x0008 // Scale value present
	moreComponents  uint16 = 0x0020 // More components follow
	weHaveXYScale   uint16 = 0x0040 // Separate X and Y scale
	weHave2x2       uint16 = 0x0080 // 2x2 transform matrix
	weHaveInstr     uint16 = 0x0100 // Instructions follow
	useMyMetrics    uint16 = 0x0200
	overlapCompound uint16 = 0x0400
)

// CompositeComponent represents a component in a composite glyph.
type CompositeComponent struct {
	GlyphID GlyphID
	Flags   uint16
	Arg1    int16
	Arg2    int16
	// Transform matrix components (optional)
	Scale   float32
	ScaleX  float32
	ScaleY  float32
	Scale01 float32
	Scale10 float32
}

// GetComponents returns the component glyph IDs for a composite glyph.
// For simple glyphs, returns nil.
func (g *Glyf) GetComponents(gid GlyphID) []GlyphID {
	glyph := g.GetGlyph(gid)
	if glyph == nil || !glyph.IsComposite() {
		return nil
	}

	components := g.parseComposite(glyph.Data)
	result := make([]GlyphID, len(components))
	for i, comp := range components {
		result[i] = comp.GlyphID
	}
	return result
}

// parseComposite parses composite glyph components.
func (g *Glyf) parseComposite(data []byte) []CompositeComponent {
	if len(data) < 10 {
		return nil
	}

	// Skip glyph header (10 bytes: numberOfContours, xMin, yMin, xMax, yMax)
	offset := 10
	var components []CompositeComponent

	for {
		if offset+4 > len(data) {
			break
		}

		flags := binary.BigEndian.Uint16(data[offset:])
		glyphIndex := GlyphID(binary.BigEndian.Uint16(data[offset+2:]))
		offset += 4

		comp := CompositeComponent{
			GlyphID: glyphIndex,
			Flags:   flags,
		}

		// Parse arguments
		if flags&argAreWords != 0 {
			if offset+4 > len(data) {
				break
			}
			comp.Arg1 = int16(binary.BigEndian.Uint16(data[offset:]))
			comp.Arg2 = int16(binary.BigEndian.Uint16(data[offset+2:]))
			offset += 4
		} else {
			if offset+2 > len(data) {
				break
			}
			comp.Arg1 = int16(int8(data[offset]))
			comp.Arg2 = int16(int8(data[offset+1]))
			offset += 2
		}

		// Skip transform components (we just need glyph IDs for closure)
		if flags&weHaveAScale != 0 {
			offset += 2 // F2Dot14
		} else if flags&weHaveXYScale != 0 {
			offset += 4 // 2 x F2Dot14
		} else if flags&weHave2x2 != 0 {
			offset += 8 // 4 x F2Dot14
		}

		components = append(components, comp)

		if flags&moreComponents == 0 {
			break
		}
	}

	return components
}

// RemapComposite creates a new composite glyph with remapped component IDs.
func RemapComposite(data []byte, glyphMap map[GlyphID]GlyphID) []byte {
	if len(data) < 10 {
		return data
	}

	// Check if this is a composite
	numberOfContours := int16(binary.BigEndian.Uint16(data))
	if numberOfContours >= 0 {
		// Simple glyph, no remapping needed
		return data
	}

	// Make a copy to modify
	result := make([]byte, len(data))
	copy(result, data)

	// Parse and remap component glyph IDs
	offset := 10
	for {
		if offset+4 > len(result) {
			break
		}

		flags := binary.BigEndian.Uint16(result[offset:])
		oldGID := GlyphID(binary.BigEndian.Uint16(result[offset+2:]))

		// Remap the glyph ID
		if newGID, ok := glyphMap[oldGID]; ok {
			binary.BigEndian.PutUint16(result[offset+2:], uint16(newGID))
		}

		offset += 4

		// Skip arguments
		if flags&argAreWords != 0 {
			offset += 4
		} else {
			offset += 2
		}

		// Skip transform components
		if flags&weHaveAScale != 0 {
			offset += 2
		} else if flags&weHaveXYScale != 0 {
			offset += 4
		} else if flags&weHave2x2 != 0 {
			offset += 8
		}

		if flags&moreComponents == 0 {
			break
		}
	}

	return result
}

// InstanceCompositeGlyph applies gvar's per-component translation deltas to
// a composite glyph, one (dx, dy) pair per component in component order.
// Deltas only apply to components whose arguments are xy offsets
// (ARGS_ARE_XY_VALUES); a component anchored by matching point indices is
// left untouched, since resolving a point-matched anchor after the outline
// itself has moved needs the rest of the composite's geometry, not just a
// delta pair. Argument width (byte vs word) is preserved: a delta that
// would overflow the component's existing int8 argument range is clamped
// rather than widening the encoding.
func InstanceCompositeGlyph(data []byte, xDeltas, yDeltas []int16) []byte {
	if len(data) < 10 {
		return data
	}
	numberOfContours := int16(binary.BigEndian.Uint16(data))
	if numberOfContours >= 0 {
		return data
	}

	result := make([]byte, len(data))
	copy(result, data)

	offset := 10
	compIndex := 0
	for {
		if offset+4 > len(result) {
			break
		}
		flags := binary.BigEndian.Uint16(result[offset:])
		offset += 4

		var dx, dy int16
		if compIndex < len(xDeltas) {
			dx = xDeltas[compIndex]
		}
		if compIndex < len(yDeltas) {
			dy = yDeltas[compIndex]
		}

		if flags&argsAreXYValues != 0 {
			if flags&argAreWords != 0 {
				if offset+4 > len(result) {
					break
				}
				arg1 := int16(binary.BigEndian.Uint16(result[offset:]))
				arg2 := int16(binary.BigEndian.Uint16(result[offset+2:]))
				binary.BigEndian.PutUint16(result[offset:], uint16(arg1+dx))
				binary.BigEndian.PutUint16(result[offset+2:], uint16(arg2+dy))
				offset += 4
			} else {
				if offset+2 > len(result) {
					break
				}
				arg1 := clampInt8Delta(int16(int8(result[offset])) + dx)
				arg2 := clampInt8Delta(int16(int8(result[offset+1])) + dy)
				result[offset] = byte(int8(arg1))
				result[offset+1] = byte(int8(arg2))
				offset += 2
			}
		} else if flags&argAreWords != 0 {
			offset += 4
		} else {
			offset += 2
		}

		if flags&weHaveAScale != 0 {
			offset += 2
		} else if flags&weHaveXYScale != 0 {
			offset += 4
		} else if flags&weHave2x2 != 0 {
			offset += 8
		}

		compIndex++
		if flags&moreComponents == 0 {
			break
		}
	}

	return result
}

func clampInt8Delta(v int16) int16 {
	if v > 127 {
		return 127
	}
	if v < -128 {
		return -128
	}
	return v
}

// BuildLoca builds a loca table from glyph offsets.
// If useShort is true, uses 16-bit format (offsets must be even and < 131072).
func BuildLoca(offsets []uint32, useShort bool) []byte {
	if useShort {
		data := make([]byte, len(offsets)*2)
		for i, off := range offsets {
			binary.BigEndian.PutUint16(data[i*2:], uint16(off/2))
		}
		return data
	}

	data := make([]byte, len(offsets)*4)
	for i, off := range offsets {
		binary.BigEndian.PutUint32(data[i*4:], off)
	}
	return data
}

// Simple glyph point flags (TrueType glyf outline encoding).
const (
	flagOnCurve      uint8 = 0x01
	flagXShort       uint8 = 0x02
	flagYShort       uint8 = 0x04
	flagRepeat       uint8 = 0x08
	flagXSame        uint8 = 0x10 // when !flagXShort: x unchanged; when flagXShort: sign bit (positive)
	flagYSame        uint8 = 0x20
	flagOverlapSimple uint8 = 0x40
)

// SimpleGlyphPoint is one decoded outline point of a simple glyph,
// in font design units relative to the glyph origin.
type SimpleGlyphPoint struct {
	X, Y    int16
	OnCurve bool
}

// ParseSimpleGlyph decodes a simple glyph's contour points from its raw
// glyf bytes (header through the end of the coordinate arrays). It
// returns the flattened point list plus, per contour, the index of its
// last point (endPtsOfContours). Phantom points are not included; callers
// append those separately since their count and initial values depend on
// metrics, not on the outline itself.
func ParseSimpleGlyph(data []byte) ([]SimpleGlyphPoint, []uint16, error) {
	if len(data) < 10 {
		trace().Debugf("glyf: simple glyph header truncated, %d bytes", len(data))
		return nil, nil, ErrInvalidTable
	}
	numberOfContours := int16(binary.BigEndian.Uint16(data))
	if numberOfContours < 0 {
		return nil, nil, ErrInvalidFormat
	}
	if numberOfContours == 0 {
		return nil, nil, nil
	}

	offset := 10
	endPts := make([]uint16, numberOfContours)
	for i := range endPts {
		if offset+2 > len(data) {
			return nil, nil, ErrInvalidOffset
		}
		endPts[i] = binary.BigEndian.Uint16(data[offset:])
		offset += 2
	}
	numPoints := int(endPts[len(endPts)-1]) + 1

	if offset+2 > len(data) {
		return nil, nil, ErrInvalidOffset
	}
	instrLen := int(binary.BigEndian.Uint16(data[offset:]))
	offset += 2 + instrLen
	if offset > len(data) {
		return nil, nil, ErrInvalidOffset
	}

	flags := make([]uint8, numPoints)
	for i := 0; i < numPoints; {
		if offset >= len(data) {
			return nil, nil, ErrInvalidOffset
		}
		f := data[offset]
		offset++
		flags[i] = f
		i++
		if f&flagRepeat != 0 {
			if offset >= len(data) {
				return nil, nil, ErrInvalidOffset
			}
			count := int(data[offset])
			offset++
			for ; count > 0 && i < numPoints; count-- {
				flags[i] = f
				i++
			}
		}
	}

	points := make([]SimpleGlyphPoint, numPoints)
	var x int16
	for i := 0; i < numPoints; i++ {
		f := flags[i]
		switch {
		case f&flagXShort != 0:
			if offset >= len(data) {
				return nil, nil, ErrInvalidOffset
			}
			d := int16(data[offset])
			offset++
			if f&flagXSame == 0 {
				x -= d
			} else {
				x += d
			}
		case f&flagXSame == 0:
			if offset+2 > len(data) {
				return nil, nil, ErrInvalidOffset
			}
			x += int16(binary.BigEndian.Uint16(data[offset:]))
			offset += 2
		}
		points[i].X = x
		points[i].OnCurve = f&flagOnCurve != 0
	}

	var y int16
	for i := 0; i < numPoints; i++ {
		f := flags[i]
		switch {
		case f&flagYShort != 0:
			if offset >= len(data) {
				return nil, nil, ErrInvalidOffset
			}
			d := int16(data[offset])
			offset++
			if f&flagYSame == 0 {
				y -= d
			} else {
				y += d
			}
		case f&flagYSame == 0:
			if offset+2 > len(data) {
				return nil, nil, ErrInvalidOffset
			}
			y += int16(binary.BigEndian.Uint16(data[offset:]))
			offset += 2
		}
		points[i].Y = y
	}

	return points, endPts, nil
}

// simpleGlyphHeaderLen returns the byte offset of the first flag byte,
// i.e. the length of endPtsOfContours plus the instruction stream.
func simpleGlyphHeaderLen(data []byte) (int, bool) {
	if len(data) < 10 {
		return 0, false
	}
	numberOfContours := int16(binary.BigEndian.Uint16(data))
	if numberOfContours <= 0 {
		return 0, false
	}
	offset := 10 + int(numberOfContours)*2
	if offset+2 > len(data) {
		return 0, false
	}
	instrLen := int(binary.BigEndian.Uint16(data[offset:]))
	offset += 2 + instrLen
	if offset > len(data) {
		return 0, false
	}
	return offset, true
}

// InstanceSimpleGlyph applies per-point variation deltas to a simple
// glyph's outline and re-encodes it with a freshly computed bounding box.
// xDeltas and yDeltas must have one entry per outline point (phantom
// points excluded); contour structure, hinting bytecode and instruction
// length are carried over unchanged.
func InstanceSimpleGlyph(data []byte, xDeltas, yDeltas []int16) []byte {
	points, endPts, err := ParseSimpleGlyph(data)
	if err != nil || points == nil {
		return data
	}
	if len(xDeltas) != len(points) || len(yDeltas) != len(points) {
		return data
	}

	for i := range points {
		points[i].X += xDeltas[i]
		points[i].Y += yDeltas[i]
	}

	hdrLen, ok := simpleGlyphHeaderLen(data)
	if !ok {
		return data
	}
	instructions := data[10+len(endPts)*2+2 : hdrLen]

	return encodeSimpleGlyph(points, endPts, instructions)
}

// StripSimpleGlyphHints removes a simple glyph's hinting bytecode,
// zeroing the instruction-length field, as required by no_hinting.
func StripSimpleGlyphHints(data []byte) []byte {
	points, endPts, err := ParseSimpleGlyph(data)
	if err != nil || points == nil {
		return data
	}
	return encodeSimpleGlyph(points, endPts, nil)
}

// encodeSimpleGlyph re-emits a simple glyph from its decoded point list,
// recomputing the bounding box and picking the most compact per-point
// flag/coordinate encoding (short vs. long, same-as-previous).
func encodeSimpleGlyph(points []SimpleGlyphPoint, endPts []uint16, instructions []byte) []byte {
	xMin, yMin, xMax, yMax := int16(0), int16(0), int16(0), int16(0)
	for i, p := range points {
		if i == 0 || p.X < xMin {
			xMin = p.X
		}
		if i == 0 || p.X > xMax {
			xMax = p.X
		}
		if i == 0 || p.Y < yMin {
			yMin = p.Y
		}
		if i == 0 || p.Y > yMax {
			yMax = p.Y
		}
	}

	flags := make([]uint8, len(points))
	var xBytes, yBytes []byte
	var prevX, prevY int16
	for i, p := range points {
		var f uint8
		if p.OnCurve {
			f |= flagOnCurve
		}

		dx := p.X - prevX
		switch {
		case dx == 0:
			f |= flagXSame
		case dx > -256 && dx < 256:
			f |= flagXShort
			if dx > 0 {
				f |= flagXSame
				xBytes = append(xBytes, uint8(dx))
			} else {
				xBytes = append(xBytes, uint8(-dx))
			}
		default:
			xBytes = append(xBytes, byte(dx>>8), byte(dx))
		}
		prevX = p.X

		dy := p.Y - prevY
		switch {
		case dy == 0:
			f |= flagYSame
		case dy > -256 && dy < 256:
			f |= flagYShort
			if dy > 0 {
				f |= flagYSame
				yBytes = append(yBytes, uint8(dy))
			} else {
				yBytes = append(yBytes, uint8(-dy))
			}
		default:
			yBytes = append(yBytes, byte(dy>>8), byte(dy))
		}
		prevY = p.Y

		flags[i] = f
	}

	// Run-length encode the flag stream (flagRepeat).
	var flagBytes []byte
	for i := 0; i < len(flags); {
		f := flags[i]
		run := 1
		for i+run < len(flags) && flags[i+run] == f {
			run++
		}
		if run > 1 {
			count := run
			if count > 256 {
				count = 256
			}
			flagBytes = append(flagBytes, f|flagRepeat, uint8(count-1))
			i += count
		} else {
			flagBytes = append(flagBytes, f)
			i++
		}
	}

	numberOfContours := len(endPts)
	instrLen := len(instructions)
	size := 10 + numberOfContours*2 + 2 + instrLen + len(flagBytes) + len(xBytes) + len(yBytes)
	out := make([]byte, size)

	binary.BigEndian.PutUint16(out[0:], uint16(numberOfContours))
	binary.BigEndian.PutUint16(out[2:], uint16(xMin))
	binary.BigEndian.PutUint16(out[4:], uint16(yMin))
	binary.BigEndian.PutUint16(out[6:], uint16(xMax))
	binary.BigEndian.PutUint16(out[8:], uint16(yMax))

	off := 10
	for _, e := range endPts {
		binary.BigEndian.PutUint16(out[off:], e)
		off += 2
	}

	binary.BigEndian.PutUint16(out[off:], uint16(instrLen))
	off += 2
	off += copy(out[off:], instructions)
	off += copy(out[off:], flagBytes)
	off += copy(out[off:], xBytes)
	off += copy(out[off:], yBytes)

	return out[:off]
}

// ParseGlyfFromFont parses both glyf and loca tables from a font.
func ParseGlyfFromFont(font *Font) (*Glyf, error) {
	// Get numGlyphs from maxp
	maxpData, err := font.TableData(TagMaxp)
	if err != nil {
		return nil, err
	}
	if len(maxpData) < 6 {
		return nil, ErrInvalidTable
	}
	numGlyphs := int(binary.BigEndian.Uint16(maxpData[4:]))

	// Get indexToLocFormat from head
	headData, err := font.TableData(TagHead)
	if err != nil {
		return nil, err
	}
	if len(headData) < 54 {
		return nil, ErrInvalidTable
	}
	indexToLocFormat := int16(binary.BigEndian.Uint16(headData[50:]))

	// Parse loca
	locaData, err := font.TableData(TagLoca)
	if err != nil {
		return nil, err
	}
	loca, err := ParseLoca(locaData, numGlyphs, indexToLocFormat)
	if err != nil {
		return nil, err
	}

	// Parse glyf
	glyfData, err := font.TableData(TagGlyf)
	if err != nil {
		return nil, err
	}

	return ParseGlyf(glyfData, loca)
}
