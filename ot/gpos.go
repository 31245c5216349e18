package ot

import (
	"encoding/binary"
	"sort"
)

// GPOS lookup types
const (
	GPOSTypeSingle       = 1
	GPOSTypePair         = 2
	GPOSTypeCursive      = 3
	GPOSTypeMarkBase     = 4
	GPOSTypeMarkLig      = 5
	GPOSTypeMarkMark     = 6
	GPOSTypeContext      = 7
	GPOSTypeChainContext = 8
	GPOSTypeExtension    = 9
)

// ValueFormat flags - determine which values are present in a ValueRecord
const (
	ValueFormatXPlacement = 0x0001 // Horizontal adjustment for placement
	ValueFormatYPlacement = 0x0002 // Vertical adjustment for placement
	ValueFormatXAdvance   = 0x0004 // Horizontal adjustment for advance
	ValueFormatYAdvance   = 0x0008 // Vertical adjustment for advance
	ValueFormatXPlaDevice = 0x0010 // Device table for horizontal placement
	ValueFormatYPlaDevice = 0x0020 // Device table for vertical placement
	ValueFormatXAdvDevice = 0x0040 // Device table for horizontal advance
	ValueFormatYAdvDevice = 0x0080 // Device table for vertical advance
)

// ValueRecord holds positioning values.
type ValueRecord struct {
	XPlacement int16 // Horizontal adjustment for placement
	YPlacement int16 // Vertical adjustment for placement
	XAdvance   int16 // Horizontal adjustment for advance
	YAdvance   int16 // Vertical adjustment for advance
}

// valueFormatLen returns the number of int16 values in a ValueRecord with the given format.
func valueFormatLen(format uint16) int {
	count := 0
	for f := format & 0xFF; f != 0; f >>= 1 {
		if f&1 != 0 {
			count++
		}
	}
	return count
}

// valueFormatSize returns the byte size of a ValueRecord with the given format.
func valueFormatSize(format uint16) int {
	return valueFormatLen(format) * 2
}

// parseValueRecord parses a ValueRecord from data.
func parseValueRecord(data []byte, offset int, format uint16) (ValueRecord, int) {
	var vr ValueRecord
	off := offset

	if format&ValueFormatXPlacement != 0 {
		vr.XPlacement = int16(binary.BigEndian.Uint16(data[off:]))
		off += 2
	}
	if format&ValueFormatYPlacement != 0 {
		vr.YPlacement = int16(binary.BigEndian.Uint16(data[off:]))
		off += 2
	}
	if format&ValueFormatXAdvance != 0 {
		vr.XAdvance = int16(binary.BigEndian.Uint16(data[off:]))
		off += 2
	}
	if format&ValueFormatYAdvance != 0 {
		vr.YAdvance = int16(binary.BigEndian.Uint16(data[off:]))
		off += 2
	}
	// Skip device tables (we don't support variable fonts yet)
	if format&ValueFormatXPlaDevice != 0 {
		off += 2
	}
	if format&ValueFormatYPlaDevice != 0 {
		off += 2
	}
	if format&ValueFormatXAdvDevice != 0 {
		off += 2
	}
	if format&ValueFormatYAdvDevice != 0 {
		off += 2
	}

	return vr, off - offset
}

// IsZero returns true if all values are zero.
func (vr *ValueRecord) IsZero() bool {
	return vr.XPlacement == 0 && vr.YPlacement == 0 &&
		vr.XAdvance == 0 && vr.YAdvance == 0
}

// GPOS represents the Glyph Positioning table.
type GPOS struct {
	data        []byte
	version     uint32
	scriptList  uint16
	featureList uint16
	lookupList  uint16

	lookups []*GPOSLookup
}

// ParseGPOS parses a GPOS table from data.
func ParseGPOS(data []byte) (*GPOS, error) {
	if len(data) < 10 {
		return nil, ErrInvalidTable
	}

	p := NewParser(data)

	major, _ := p.U16()
	minor, _ := p.U16()
	version := uint32(major)<<16 | uint32(minor)

	if major != 1 || (minor != 0 && minor != 1) {
		return nil, ErrInvalidFormat
	}

	scriptList, _ := p.U16()
	featureList, _ := p.U16()
	lookupList, _ := p.U16()

	gpos := &GPOS{
		data:        data,
		version:     version,
		scriptList:  scriptList,
		featureList: featureList,
		lookupList:  lookupList,
	}

	if err := gpos.parseLookupList(); err != nil {
		return nil, err
	}

	return gpos, nil
}

func (g *GPOS) parseLookupList() error {
	off := int(g.lookupList)
	if off+2 > len(g.data) {
		return ErrInvalidOffset
	}

	lookupCount := int(binary.BigEndian.Uint16(g.data[off:]))
	if off+2+lookupCount*2 > len(g.data) {
		return ErrInvalidOffset
	}

	g.lookups = make([]*GPOSLookup, lookupCount)

	for i := 0; i < lookupCount; i++ {
		lookupOff := int(binary.BigEndian.Uint16(g.data[off+2+i*2:]))
		lookup, err := parseGPOSLookup(g.data, off+lookupOff, g)
		if err != nil {
			continue
		}
		g.lookups[i] = lookup
	}

	return nil
}

// NumLookups returns the number of lookups.
func (g *GPOS) NumLookups() int {
	return len(g.lookups)
}

// GetLookup returns the lookup at the given index.
func (g *GPOS) GetLookup(index int) *GPOSLookup {
	if index < 0 || index >= len(g.lookups) {
		return nil
	}
	return g.lookups[index]
}

// GPOSLookup represents a GPOS lookup table.
type GPOSLookup struct {
	Type       uint16
	Flag       uint16
	subtables  []GPOSSubtable
	MarkFilter uint16
}

// GPOSSubtable is the interface for GPOS lookup subtables.
// It carries no shaping behavior; concrete types are distinguished by
// the subset dispatcher via a type switch.
type GPOSSubtable interface {
	gposSubtable()
}

// Subtables returns the subtables for this lookup.
func (l *GPOSLookup) Subtables() []GPOSSubtable {
	return l.subtables
}

func parseGPOSLookup(data []byte, offset int, gpos *GPOS) (*GPOSLookup, error) {
	if offset+6 > len(data) {
		return nil, ErrInvalidOffset
	}

	lookupType := binary.BigEndian.Uint16(data[offset:])
	lookupFlag := binary.BigEndian.Uint16(data[offset+2:])
	subtableCount := int(binary.BigEndian.Uint16(data[offset+4:]))

	if offset+6+subtableCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	lookup := &GPOSLookup{
		Type:      lookupType,
		Flag:      lookupFlag,
		subtables: make([]GPOSSubtable, 0, subtableCount),
	}

	// Check for MarkFilteringSet
	markFilterOff := 6 + subtableCount*2
	if lookupFlag&0x0010 != 0 {
		if offset+markFilterOff+2 > len(data) {
			return nil, ErrInvalidOffset
		}
		lookup.MarkFilter = binary.BigEndian.Uint16(data[offset+markFilterOff:])
	}

	for i := 0; i < subtableCount; i++ {
		subtableOff := int(binary.BigEndian.Uint16(data[offset+6+i*2:]))
		actualType := lookupType

		// Handle extension lookups
		if lookupType == GPOSTypeExtension {
			extOff := offset + subtableOff
			if extOff+8 > len(data) {
				continue
			}
			extFormat := binary.BigEndian.Uint16(data[extOff:])
			if extFormat != 1 {
				continue
			}
			actualType = binary.BigEndian.Uint16(data[extOff+2:])
			extOffset := binary.BigEndian.Uint32(data[extOff+4:])
			subtableOff += int(extOffset)
		}

		subtable, err := parseGPOSSubtableWithGPOS(data, offset+subtableOff, actualType, gpos)
		if err != nil {
			continue
		}
		if subtable != nil {
			lookup.subtables = append(lookup.subtables, subtable)
		}
	}

	return lookup, nil
}

func parseGPOSSubtable(data []byte, offset int, lookupType uint16) (GPOSSubtable, error) {
	return parseGPOSSubtableWithGPOS(data, offset, lookupType, nil)
}

func parseGPOSSubtableWithGPOS(data []byte, offset int, lookupType uint16, gpos *GPOS) (GPOSSubtable, error) {
	if offset+2 > len(data) {
		return nil, ErrInvalidOffset
	}

	switch lookupType {
	case GPOSTypeSingle:
		return parseSinglePos(data, offset)
	case GPOSTypePair:
		return parsePairPos(data, offset)
	case GPOSTypeCursive:
		return parseCursivePos(data, offset)
	case GPOSTypeMarkBase:
		return parseMarkBasePos(data, offset)
	case GPOSTypeMarkLig:
		return parseMarkLigPos(data, offset)
	case GPOSTypeMarkMark:
		return parseMarkMarkPos(data, offset)
	case GPOSTypeContext:
		return parseContextPos(data, offset, gpos)
	case GPOSTypeChainContext:
		return parseChainContextPos(data, offset, gpos)
	default:
		return nil, nil
	}
}

// --- Single Positioning ---

// SinglePos represents a Single Positioning subtable.
type SinglePos struct {
	format       uint16
	coverage     *Coverage
	valueFormat  uint16
	valueRecord  ValueRecord   // Format 1: single value for all
	valueRecords []ValueRecord // Format 2: per-glyph values
}

func (sp *SinglePos) gposSubtable() {}

func parseSinglePos(data []byte, offset int) (*SinglePos, error) {
	if offset+6 > len(data) {
		return nil, ErrInvalidOffset
	}

	format := binary.BigEndian.Uint16(data[offset:])
	coverageOff := int(binary.BigEndian.Uint16(data[offset+2:]))
	valueFormat := binary.BigEndian.Uint16(data[offset+4:])

	coverage, err := ParseCoverage(data, offset+coverageOff)
	if err != nil {
		return nil, err
	}

	sp := &SinglePos{
		format:      format,
		coverage:    coverage,
		valueFormat: valueFormat,
	}

	switch format {
	case 1:
		// Single ValueRecord for all glyphs
		vr, _ := parseValueRecord(data, offset+6, valueFormat)
		sp.valueRecord = vr
		return sp, nil

	case 2:
		// Per-glyph ValueRecords
		valueCount := int(binary.BigEndian.Uint16(data[offset+6:]))
		vrSize := valueFormatSize(valueFormat)
		if offset+8+valueCount*vrSize > len(data) {
			return nil, ErrInvalidOffset
		}

		sp.valueRecords = make([]ValueRecord, valueCount)
		off := offset + 8
		for i := 0; i < valueCount; i++ {
			vr, size := parseValueRecord(data, off, valueFormat)
			sp.valueRecords[i] = vr
			off += size
		}
		return sp, nil

	default:
		return nil, ErrInvalidFormat
	}
}

// Coverage returns the coverage table for this subtable.
func (sp *SinglePos) Coverage() *Coverage {
	return sp.coverage
}

// Format returns the subtable format (1 or 2).
func (sp *SinglePos) Format() uint16 {
	return sp.format
}

// ValueFormat returns the value format flags.
func (sp *SinglePos) ValueFormat() uint16 {
	return sp.valueFormat
}

// ValueRecord returns the value record (format 1 only).
func (sp *SinglePos) ValueRecord() ValueRecord {
	return sp.valueRecord
}

// ValueRecords returns the per-glyph value records (format 2 only).
func (sp *SinglePos) ValueRecords() []ValueRecord {
	return sp.valueRecords
}

// --- Pair Positioning (Kerning) ---

// PairPos represents a Pair Positioning subtable.
type PairPos struct {
	format       uint16
	coverage     *Coverage
	valueFormat1 uint16
	valueFormat2 uint16

	// Format 1: per-glyph pair sets
	pairSets [][]PairValueRecord

	// Format 2: class-based
	classDef1   *ClassDef
	classDef2   *ClassDef
	class1Count uint16
	class2Count uint16
	classMatrix [][]PairClassRecord // [class1][class2]
}

func (pp *PairPos) gposSubtable() {}

// PairValueRecord holds a pair of glyphs and their positioning values.
type PairValueRecord struct {
	SecondGlyph GlyphID
	Value1      ValueRecord
	Value2      ValueRecord
}

// PairClassRecord holds positioning values for a class pair.
type PairClassRecord struct {
	Value1 ValueRecord
	Value2 ValueRecord
}

func parsePairPos(data []byte, offset int) (*PairPos, error) {
	if offset+8 > len(data) {
		return nil, ErrInvalidOffset
	}

	format := binary.BigEndian.Uint16(data[offset:])
	coverageOff := int(binary.BigEndian.Uint16(data[offset+2:]))
	valueFormat1 := binary.BigEndian.Uint16(data[offset+4:])
	valueFormat2 := binary.BigEndian.Uint16(data[offset+6:])

	coverage, err := ParseCoverage(data, offset+coverageOff)
	if err != nil {
		return nil, err
	}

	pp := &PairPos{
		format:       format,
		coverage:     coverage,
		valueFormat1: valueFormat1,
		valueFormat2: valueFormat2,
	}

	switch format {
	case 1:
		return parsePairPosFormat1(data, offset, pp)
	case 2:
		return parsePairPosFormat2(data, offset, pp)
	default:
		return nil, ErrInvalidFormat
	}
}

func parsePairPosFormat1(data []byte, offset int, pp *PairPos) (*PairPos, error) {
	if offset+10 > len(data) {
		return nil, ErrInvalidOffset
	}

	pairSetCount := int(binary.BigEndian.Uint16(data[offset+8:]))
	if offset+10+pairSetCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	pp.pairSets = make([][]PairValueRecord, pairSetCount)
	recordSize := 2 + valueFormatSize(pp.valueFormat1) + valueFormatSize(pp.valueFormat2)

	for i := 0; i < pairSetCount; i++ {
		pairSetOff := int(binary.BigEndian.Uint16(data[offset+10+i*2:]))
		absOff := offset + pairSetOff

		if absOff+2 > len(data) {
			continue
		}
		pairCount := int(binary.BigEndian.Uint16(data[absOff:]))
		if absOff+2+pairCount*recordSize > len(data) {
			continue
		}

		records := make([]PairValueRecord, pairCount)
		off := absOff + 2
		for j := 0; j < pairCount; j++ {
			records[j].SecondGlyph = GlyphID(binary.BigEndian.Uint16(data[off:]))
			off += 2
			records[j].Value1, _ = parseValueRecord(data, off, pp.valueFormat1)
			off += valueFormatSize(pp.valueFormat1)
			records[j].Value2, _ = parseValueRecord(data, off, pp.valueFormat2)
			off += valueFormatSize(pp.valueFormat2)
		}
		pp.pairSets[i] = records
	}

	return pp, nil
}

func parsePairPosFormat2(data []byte, offset int, pp *PairPos) (*PairPos, error) {
	if offset+16 > len(data) {
		return nil, ErrInvalidOffset
	}

	classDef1Off := int(binary.BigEndian.Uint16(data[offset+8:]))
	classDef2Off := int(binary.BigEndian.Uint16(data[offset+10:]))
	class1Count := binary.BigEndian.Uint16(data[offset+12:])
	class2Count := binary.BigEndian.Uint16(data[offset+14:])

	classDef1, err := ParseClassDef(data, offset+classDef1Off)
	if err != nil {
		return nil, err
	}

	classDef2, err := ParseClassDef(data, offset+classDef2Off)
	if err != nil {
		return nil, err
	}

	pp.classDef1 = classDef1
	pp.classDef2 = classDef2
	pp.class1Count = class1Count
	pp.class2Count = class2Count

	// Parse class matrix
	recordSize := valueFormatSize(pp.valueFormat1) + valueFormatSize(pp.valueFormat2)
	matrixSize := int(class1Count) * int(class2Count) * recordSize
	if offset+16+matrixSize > len(data) {
		return nil, ErrInvalidOffset
	}

	pp.classMatrix = make([][]PairClassRecord, class1Count)
	off := offset + 16
	for c1 := 0; c1 < int(class1Count); c1++ {
		pp.classMatrix[c1] = make([]PairClassRecord, class2Count)
		for c2 := 0; c2 < int(class2Count); c2++ {
			pp.classMatrix[c1][c2].Value1, _ = parseValueRecord(data, off, pp.valueFormat1)
			off += valueFormatSize(pp.valueFormat1)
			pp.classMatrix[c1][c2].Value2, _ = parseValueRecord(data, off, pp.valueFormat2)
			off += valueFormatSize(pp.valueFormat2)
		}
	}

	return pp, nil
}

// Coverage returns the coverage table for this subtable.
func (pp *PairPos) Coverage() *Coverage {
	return pp.coverage
}

// Format returns the subtable format (1 or 2).
func (pp *PairPos) Format() uint16 {
	return pp.format
}

// ValueFormat1 returns the value format for the first glyph.
func (pp *PairPos) ValueFormat1() uint16 {
	return pp.valueFormat1
}

// ValueFormat2 returns the value format for the second glyph.
func (pp *PairPos) ValueFormat2() uint16 {
	return pp.valueFormat2
}

// PairSets returns the pair sets (format 1 only).
func (pp *PairPos) PairSets() [][]PairValueRecord {
	return pp.pairSets
}

// ClassDef1 returns the class definition for first glyphs (format 2 only).
func (pp *PairPos) ClassDef1() *ClassDef {
	return pp.classDef1
}

// ClassDef2 returns the class definition for second glyphs (format 2 only).
func (pp *PairPos) ClassDef2() *ClassDef {
	return pp.classDef2
}

// Class1Count returns the number of classes for first glyphs (format 2 only).
func (pp *PairPos) Class1Count() uint16 {
	return pp.class1Count
}

// Class2Count returns the number of classes for second glyphs (format 2 only).
func (pp *PairPos) Class2Count() uint16 {
	return pp.class2Count
}

// ClassMatrix returns the class matrix (format 2 only).
func (pp *PairPos) ClassMatrix() [][]PairClassRecord {
	return pp.classMatrix
}

// --- Cursive Attachment (Type 3) ---

// LookupFlag bit constants for GSUB/GPOS lookups.
const (
	// LookupFlagRightToLeft indicates right-to-left cursive attachment.
	LookupFlagRightToLeft = 0x0001
	// LookupFlagIgnoreBaseGlyphs causes base glyphs to be skipped.
	LookupFlagIgnoreBaseGlyphs = 0x0002
	// LookupFlagIgnoreLigatures causes ligature glyphs to be skipped.
	LookupFlagIgnoreLigatures = 0x0004
	// LookupFlagIgnoreMarks causes mark glyphs to be skipped.
	LookupFlagIgnoreMarks = 0x0008
	// LookupFlagUseMarkFilteringSet indicates that MarkFilteringSet is used.
	LookupFlagUseMarkFilteringSet = 0x0010
	// LookupFlagMarkAttachTypeMask is the mask for mark attachment type filtering.
	LookupFlagMarkAttachTypeMask = 0xFF00
)

// EntryExitRecord holds entry and exit anchors for cursive attachment.
type EntryExitRecord struct {
	EntryAnchor *Anchor // May be nil
	ExitAnchor  *Anchor // May be nil
}

// CursivePos represents a Cursive Attachment subtable (GPOS Type 3).
// It connects glyphs in cursive scripts (like Arabic) by aligning
// exit anchors with entry anchors of adjacent glyphs.
type CursivePos struct {
	format           uint16
	coverage         *Coverage
	entryExitRecords []EntryExitRecord
}

func (cp *CursivePos) gposSubtable() {}

func parseCursivePos(data []byte, offset int) (*CursivePos, error) {
	if offset+6 > len(data) {
		return nil, ErrInvalidOffset
	}

	format := binary.BigEndian.Uint16(data[offset:])
	if format != 1 {
		return nil, ErrInvalidFormat
	}

	coverageOff := int(binary.BigEndian.Uint16(data[offset+2:]))
	entryExitCount := int(binary.BigEndian.Uint16(data[offset+4:]))

	if offset+6+entryExitCount*4 > len(data) {
		return nil, ErrInvalidOffset
	}

	coverage, err := ParseCoverage(data, offset+coverageOff)
	if err != nil {
		return nil, err
	}

	cp := &CursivePos{
		format:           format,
		coverage:         coverage,
		entryExitRecords: make([]EntryExitRecord, entryExitCount),
	}

	for i := 0; i < entryExitCount; i++ {
		recOff := offset + 6 + i*4
		entryOff := int(binary.BigEndian.Uint16(data[recOff:]))
		exitOff := int(binary.BigEndian.Uint16(data[recOff+2:]))

		var entryAnchor, exitAnchor *Anchor
		if entryOff != 0 {
			entryAnchor, _ = parseAnchor(data, offset+entryOff)
		}
		if exitOff != 0 {
			exitAnchor, _ = parseAnchor(data, offset+exitOff)
		}

		cp.entryExitRecords[i] = EntryExitRecord{
			EntryAnchor: entryAnchor,
			ExitAnchor:  exitAnchor,
		}
	}

	return cp, nil
}

// Coverage returns the coverage table for this subtable.
func (cp *CursivePos) Coverage() *Coverage {
	return cp.coverage
}

// EntryExitRecords returns the entry/exit anchor records.
func (cp *CursivePos) EntryExitRecords() []EntryExitRecord {
	return cp.entryExitRecords
}

// --- ClassDef ---

// ClassDef maps glyph IDs to class values.
type ClassDef struct {
	format uint16
	data   []byte
	offset int

	// Format 1: range starting at startGlyph
	startGlyph  GlyphID
	classValues []uint16

	// Format 2: class ranges
	classRanges []classRange
}

type classRange struct {
	startGlyph GlyphID
	endGlyph   GlyphID
	class      uint16
}

// ParseClassDef parses a ClassDef table.
func ParseClassDef(data []byte, offset int) (*ClassDef, error) {
	if offset+4 > len(data) {
		return nil, ErrInvalidOffset
	}

	format := binary.BigEndian.Uint16(data[offset:])

	cd := &ClassDef{
		format: format,
		data:   data,
		offset: offset,
	}

	switch format {
	case 1:
		startGlyph := binary.BigEndian.Uint16(data[offset+2:])
		glyphCount := int(binary.BigEndian.Uint16(data[offset+4:]))
		if offset+6+glyphCount*2 > len(data) {
			return nil, ErrInvalidOffset
		}

		cd.startGlyph = GlyphID(startGlyph)
		cd.classValues = make([]uint16, glyphCount)
		for i := 0; i < glyphCount; i++ {
			cd.classValues[i] = binary.BigEndian.Uint16(data[offset+6+i*2:])
		}
		return cd, nil

	case 2:
		rangeCount := int(binary.BigEndian.Uint16(data[offset+2:]))
		if offset+4+rangeCount*6 > len(data) {
			return nil, ErrInvalidOffset
		}

		cd.classRanges = make([]classRange, rangeCount)
		for i := 0; i < rangeCount; i++ {
			off := offset + 4 + i*6
			cd.classRanges[i] = classRange{
				startGlyph: GlyphID(binary.BigEndian.Uint16(data[off:])),
				endGlyph:   GlyphID(binary.BigEndian.Uint16(data[off+2:])),
				class:      binary.BigEndian.Uint16(data[off+4:]),
			}
		}
		return cd, nil

	default:
		return nil, ErrInvalidFormat
	}
}

// GetClass returns the class for a glyph ID.
// Returns 0 (default class) if glyph not found.
func (cd *ClassDef) GetClass(glyph GlyphID) int {
	switch cd.format {
	case 1:
		idx := int(glyph) - int(cd.startGlyph)
		if idx >= 0 && idx < len(cd.classValues) {
			return int(cd.classValues[idx])
		}
		return 0

	case 2:
		// Binary search
		idx := sort.Search(len(cd.classRanges), func(i int) bool {
			return cd.classRanges[i].endGlyph >= glyph
		})
		if idx < len(cd.classRanges) {
			r := &cd.classRanges[idx]
			if glyph >= r.startGlyph && glyph <= r.endGlyph {
				return int(r.class)
			}
		}
		return 0

	default:
		return 0
	}
}

// Mapping returns a map from glyph ID to class for all glyphs in this ClassDef.
func (cd *ClassDef) Mapping() map[GlyphID]uint16 {
	result := make(map[GlyphID]uint16)

	switch cd.format {
	case 1:
		for i, class := range cd.classValues {
			if class != 0 { // Skip class 0 (default)
				glyph := GlyphID(int(cd.startGlyph) + i)
				result[glyph] = class
			}
		}
	case 2:
		for _, r := range cd.classRanges {
			for g := r.startGlyph; g <= r.endGlyph; g++ {
				if r.class != 0 { // Skip class 0 (default)
					result[g] = r.class
				}
			}
		}
	}

	return result
}

// ParseFeatureList parses a FeatureList from a GPOS table.
func (g *GPOS) ParseFeatureList() (*FeatureList, error) {
	off := int(g.featureList)
	if off+2 > len(g.data) {
		return nil, ErrInvalidOffset
	}

	count := int(binary.BigEndian.Uint16(g.data[off:]))
	if off+2+count*6 > len(g.data) {
		return nil, ErrInvalidOffset
	}

	return &FeatureList{
		data:   g.data,
		offset: off,
		count:  count,
	}, nil
}

// Common GPOS feature tags
var (
	TagKern = MakeTag('k', 'e', 'r', 'n') // Kerning
	TagMark = MakeTag('m', 'a', 'r', 'k') // Mark Positioning
	TagMkmk = MakeTag('m', 'k', 'm', 'k') // Mark-to-Mark Positioning
)

// --- Anchor ---

// Anchor represents an anchor point for mark positioning.
// It stores x,y coordinates in design units.
type Anchor struct {
	Format uint16
	X      int16 // X coordinate in design units
	Y      int16 // Y coordinate in design units
	// Format 2 adds: anchorPoint (contour point index)
	AnchorPoint uint16
	// Format 3 adds: device table offsets (not yet implemented)
}

// parseAnchor parses an Anchor table from data at the given offset.
func parseAnchor(data []byte, offset int) (*Anchor, error) {
	if offset+6 > len(data) {
		return nil, ErrInvalidOffset
	}

	format := binary.BigEndian.Uint16(data[offset:])
	x := int16(binary.BigEndian.Uint16(data[offset+2:]))
	y := int16(binary.BigEndian.Uint16(data[offset+4:]))

	anchor := &Anchor{
		Format: format,
		X:      x,
		Y:      y,
	}

	if format == 2 {
		if offset+8 > len(data) {
			return nil, ErrInvalidOffset
		}
		anchor.AnchorPoint = binary.BigEndian.Uint16(data[offset+6:])
	}
	// Format 3 with device tables could be added here

	return anchor, nil
}

// --- MarkRecord ---

// MarkRecord associates a mark glyph with a class and anchor.
type MarkRecord struct {
	Class  uint16  // Mark class
	Anchor *Anchor // Anchor for this mark
}

// --- MarkArray ---

// MarkArray contains an array of MarkRecords.
type MarkArray struct {
	Records []MarkRecord
}

// parseMarkArray parses a MarkArray table from data at the given offset.
func parseMarkArray(data []byte, offset int) (*MarkArray, error) {
	if offset+2 > len(data) {
		return nil, ErrInvalidOffset
	}

	count := int(binary.BigEndian.Uint16(data[offset:]))
	if offset+2+count*4 > len(data) {
		return nil, ErrInvalidOffset
	}

	ma := &MarkArray{
		Records: make([]MarkRecord, count),
	}

	for i := 0; i < count; i++ {
		recOff := offset + 2 + i*4
		class := binary.BigEndian.Uint16(data[recOff:])
		anchorOff := int(binary.BigEndian.Uint16(data[recOff+2:]))

		anchor, err := parseAnchor(data, offset+anchorOff)
		if err != nil {
			return nil, err
		}

		ma.Records[i] = MarkRecord{
			Class:  class,
			Anchor: anchor,
		}
	}

	return ma, nil
}

// --- BaseArray (AnchorMatrix) ---

// BaseArray contains anchors for base glyphs, organized as a matrix.
// Rows correspond to base glyphs (in BaseCoverage order).
// Columns correspond to mark classes (0 to classCount-1).
type BaseArray struct {
	Rows       int
	ClassCount int
	Anchors    [][]*Anchor // [row][class] -> Anchor (may be nil)
}

// parseBaseArray parses a BaseArray (AnchorMatrix) from data.
func parseBaseArray(data []byte, offset int, classCount int) (*BaseArray, error) {
	if offset+2 > len(data) {
		return nil, ErrInvalidOffset
	}

	rows := int(binary.BigEndian.Uint16(data[offset:]))
	totalAnchors := rows * classCount

	if offset+2+totalAnchors*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	ba := &BaseArray{
		Rows:       rows,
		ClassCount: classCount,
		Anchors:    make([][]*Anchor, rows),
	}

	for row := 0; row < rows; row++ {
		ba.Anchors[row] = make([]*Anchor, classCount)
		for col := 0; col < classCount; col++ {
			idx := row*classCount + col
			anchorOff := int(binary.BigEndian.Uint16(data[offset+2+idx*2:]))

			if anchorOff == 0 {
				// NULL offset - no anchor for this combination
				continue
			}

			anchor, err := parseAnchor(data, offset+anchorOff)
			if err != nil {
				// Skip invalid anchors
				continue
			}
			ba.Anchors[row][col] = anchor
		}
	}

	return ba, nil
}

// GetAnchor returns the anchor for a given base glyph index and mark class.
func (ba *BaseArray) GetAnchor(baseIndex, markClass int) *Anchor {
	if baseIndex < 0 || baseIndex >= ba.Rows {
		return nil
	}
	if markClass < 0 || markClass >= ba.ClassCount {
		return nil
	}
	return ba.Anchors[baseIndex][markClass]
}

// --- MarkBasePos ---

// MarkBasePos represents a Mark-to-Base Attachment subtable (GPOS Type 4).
// It positions mark glyphs relative to base glyphs using anchor points.
type MarkBasePos struct {
	format       uint16
	markCoverage *Coverage
	baseCoverage *Coverage
	classCount   uint16
	markArray    *MarkArray
	baseArray    *BaseArray
}

func (m *MarkBasePos) gposSubtable() {}

func parseMarkBasePos(data []byte, offset int) (*MarkBasePos, error) {
	if offset+12 > len(data) {
		return nil, ErrInvalidOffset
	}

	format := binary.BigEndian.Uint16(data[offset:])
	if format != 1 {
		return nil, ErrInvalidFormat
	}

	markCoverageOff := int(binary.BigEndian.Uint16(data[offset+2:]))
	baseCoverageOff := int(binary.BigEndian.Uint16(data[offset+4:]))
	classCount := binary.BigEndian.Uint16(data[offset+6:])
	markArrayOff := int(binary.BigEndian.Uint16(data[offset+8:]))
	baseArrayOff := int(binary.BigEndian.Uint16(data[offset+10:]))

	markCoverage, err := ParseCoverage(data, offset+markCoverageOff)
	if err != nil {
		return nil, err
	}

	baseCoverage, err := ParseCoverage(data, offset+baseCoverageOff)
	if err != nil {
		return nil, err
	}

	markArray, err := parseMarkArray(data, offset+markArrayOff)
	if err != nil {
		return nil, err
	}

	baseArray, err := parseBaseArray(data, offset+baseArrayOff, int(classCount))
	if err != nil {
		return nil, err
	}

	return &MarkBasePos{
		format:       format,
		markCoverage: markCoverage,
		baseCoverage: baseCoverage,
		classCount:   classCount,
		markArray:    markArray,
		baseArray:    baseArray,
	}, nil
}

// MarkCoverage returns the mark coverage table.
func (m *MarkBasePos) MarkCoverage() *Coverage {
	return m.markCoverage
}

// BaseCoverage returns the base coverage table.
func (m *MarkBasePos) BaseCoverage() *Coverage {
	return m.baseCoverage
}

// ClassCount returns the number of mark classes.
func (m *MarkBasePos) ClassCount() uint16 {
	return m.classCount
}

// MarkArray returns the mark array.
func (m *MarkBasePos) MarkArray() *MarkArray {
	return m.markArray
}

// BaseArray returns the base array.
func (m *MarkBasePos) BaseArray() *BaseArray {
	return m.baseArray
}

// --- MarkLigPos ---

// LigatureAttach contains anchors for one ligature glyph.
// It's organized as a matrix where:
// - Rows correspond to ligature components (in writing order)
// - Columns correspond to mark classes
type LigatureAttach struct {
	ComponentCount int         // Number of ligature components
	ClassCount     int         // Number of mark classes
	Anchors        [][]*Anchor // [component][class] -> Anchor (may be nil)
}

// parseLigatureAttach parses a LigatureAttach table (same structure as AnchorMatrix).
func parseLigatureAttach(data []byte, offset int, classCount int) (*LigatureAttach, error) {
	if offset+2 > len(data) {
		return nil, ErrInvalidOffset
	}

	componentCount := int(binary.BigEndian.Uint16(data[offset:]))
	totalAnchors := componentCount * classCount

	if offset+2+totalAnchors*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	la := &LigatureAttach{
		ComponentCount: componentCount,
		ClassCount:     classCount,
		Anchors:        make([][]*Anchor, componentCount),
	}

	for comp := 0; comp < componentCount; comp++ {
		la.Anchors[comp] = make([]*Anchor, classCount)
		for class := 0; class < classCount; class++ {
			idx := comp*classCount + class
			anchorOff := int(binary.BigEndian.Uint16(data[offset+2+idx*2:]))

			if anchorOff == 0 {
				continue
			}

			anchor, err := parseAnchor(data, offset+anchorOff)
			if err != nil {
				continue
			}
			la.Anchors[comp][class] = anchor
		}
	}

	return la, nil
}

// GetAnchor returns the anchor for a given component index and mark class.
func (la *LigatureAttach) GetAnchor(componentIndex, markClass int) *Anchor {
	if componentIndex < 0 || componentIndex >= la.ComponentCount {
		return nil
	}
	if markClass < 0 || markClass >= la.ClassCount {
		return nil
	}
	return la.Anchors[componentIndex][markClass]
}

// LigatureArray contains LigatureAttach tables for multiple ligatures.
type LigatureArray struct {
	Attachments []*LigatureAttach
}

// parseLigatureArray parses a LigatureArray table.
func parseLigatureArray(data []byte, offset int, classCount int) (*LigatureArray, error) {
	if offset+2 > len(data) {
		return nil, ErrInvalidOffset
	}

	ligCount := int(binary.BigEndian.Uint16(data[offset:]))
	if offset+2+ligCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	la := &LigatureArray{
		Attachments: make([]*LigatureAttach, ligCount),
	}

	for i := 0; i < ligCount; i++ {
		attachOff := int(binary.BigEndian.Uint16(data[offset+2+i*2:]))
		if attachOff == 0 {
			continue
		}

		attach, err := parseLigatureAttach(data, offset+attachOff, classCount)
		if err != nil {
			continue
		}
		la.Attachments[i] = attach
	}

	return la, nil
}

// MarkLigPos represents a Mark-to-Ligature Attachment subtable (GPOS Type 5).
// It positions mark glyphs relative to ligature glyphs.
// Each ligature can have multiple components, and each component has its own anchor points.
type MarkLigPos struct {
	format           uint16
	markCoverage     *Coverage
	ligatureCoverage *Coverage
	classCount       uint16
	markArray        *MarkArray
	ligatureArray    *LigatureArray
}

func (m *MarkLigPos) gposSubtable() {}

func parseMarkLigPos(data []byte, offset int) (*MarkLigPos, error) {
	if offset+12 > len(data) {
		return nil, ErrInvalidOffset
	}

	format := binary.BigEndian.Uint16(data[offset:])
	if format != 1 {
		return nil, ErrInvalidFormat
	}

	markCoverageOff := int(binary.BigEndian.Uint16(data[offset+2:]))
	ligatureCoverageOff := int(binary.BigEndian.Uint16(data[offset+4:]))
	classCount := binary.BigEndian.Uint16(data[offset+6:])
	markArrayOff := int(binary.BigEndian.Uint16(data[offset+8:]))
	ligatureArrayOff := int(binary.BigEndian.Uint16(data[offset+10:]))

	markCoverage, err := ParseCoverage(data, offset+markCoverageOff)
	if err != nil {
		return nil, err
	}

	ligatureCoverage, err := ParseCoverage(data, offset+ligatureCoverageOff)
	if err != nil {
		return nil, err
	}

	markArray, err := parseMarkArray(data, offset+markArrayOff)
	if err != nil {
		return nil, err
	}

	ligatureArray, err := parseLigatureArray(data, offset+ligatureArrayOff, int(classCount))
	if err != nil {
		return nil, err
	}

	return &MarkLigPos{
		format:           format,
		markCoverage:     markCoverage,
		ligatureCoverage: ligatureCoverage,
		classCount:       classCount,
		markArray:        markArray,
		ligatureArray:    ligatureArray,
	}, nil
}

// MarkCoverage returns the mark coverage table.
func (m *MarkLigPos) MarkCoverage() *Coverage {
	return m.markCoverage
}

// LigatureCoverage returns the ligature coverage table.
func (m *MarkLigPos) LigatureCoverage() *Coverage {
	return m.ligatureCoverage
}

// ClassCount returns the number of mark classes.
func (m *MarkLigPos) ClassCount() uint16 {
	return m.classCount
}

// MarkArray returns the mark array.
func (m *MarkLigPos) MarkArray() *MarkArray {
	return m.markArray
}

// LigatureArray returns the ligature array.
func (m *MarkLigPos) LigatureArray() *LigatureArray {
	return m.ligatureArray
}

// --- MarkMarkPos ---

// MarkMarkPos represents a Mark-to-Mark Attachment subtable (GPOS Type 6).
// It positions mark glyphs (mark1) relative to preceding mark glyphs (mark2).
// This is used for stacking diacritics, e.g., placing an accent on top of another accent.
type MarkMarkPos struct {
	format        uint16
	mark1Coverage *Coverage // Coverage for the attaching mark (mark1)
	mark2Coverage *Coverage // Coverage for the base mark (mark2)
	classCount    uint16
	mark1Array    *MarkArray // Anchor information for mark1 glyphs
	mark2Array    *BaseArray // Anchor matrix for mark2 glyphs (same structure as BaseArray)
}

func (m *MarkMarkPos) gposSubtable() {}

func parseMarkMarkPos(data []byte, offset int) (*MarkMarkPos, error) {
	if offset+12 > len(data) {
		return nil, ErrInvalidOffset
	}

	format := binary.BigEndian.Uint16(data[offset:])
	if format != 1 {
		return nil, ErrInvalidFormat
	}

	mark1CoverageOff := int(binary.BigEndian.Uint16(data[offset+2:]))
	mark2CoverageOff := int(binary.BigEndian.Uint16(data[offset+4:]))
	classCount := binary.BigEndian.Uint16(data[offset+6:])
	mark1ArrayOff := int(binary.BigEndian.Uint16(data[offset+8:]))
	mark2ArrayOff := int(binary.BigEndian.Uint16(data[offset+10:]))

	mark1Coverage, err := ParseCoverage(data, offset+mark1CoverageOff)
	if err != nil {
		return nil, err
	}

	mark2Coverage, err := ParseCoverage(data, offset+mark2CoverageOff)
	if err != nil {
		return nil, err
	}

	mark1Array, err := parseMarkArray(data, offset+mark1ArrayOff)
	if err != nil {
		return nil, err
	}

	mark2Array, err := parseBaseArray(data, offset+mark2ArrayOff, int(classCount))
	if err != nil {
		return nil, err
	}

	return &MarkMarkPos{
		format:        format,
		mark1Coverage: mark1Coverage,
		mark2Coverage: mark2Coverage,
		classCount:    classCount,
		mark1Array:    mark1Array,
		mark2Array:    mark2Array,
	}, nil
}

// Mark1Coverage returns the coverage table for the attaching mark (mark1).
func (m *MarkMarkPos) Mark1Coverage() *Coverage {
	return m.mark1Coverage
}

// Mark2Coverage returns the coverage table for the base mark (mark2).
func (m *MarkMarkPos) Mark2Coverage() *Coverage {
	return m.mark2Coverage
}

// ClassCount returns the number of mark classes.
func (m *MarkMarkPos) ClassCount() uint16 {
	return m.classCount
}

// Mark1Array returns the mark array for mark1 glyphs.
func (m *MarkMarkPos) Mark1Array() *MarkArray {
	return m.mark1Array
}

// Mark2Array returns the anchor array for mark2 glyphs.
func (m *MarkMarkPos) Mark2Array() *BaseArray {
	return m.mark2Array
}

// --- Context Positioning (Type 7) ---

// GPOSLookupRecord represents a lookup to apply at a specific position in a context.
type GPOSLookupRecord struct {
	SequenceIndex uint16 // Index into current glyph sequence (0-based)
	LookupIndex   uint16 // Lookup to apply
}

// GPOSContextRule represents a single rule in a context positioning rule set.
type GPOSContextRule struct {
	Input         []GlyphID          // Input sequence (starting from second glyph)
	LookupRecords []GPOSLookupRecord // Lookups to apply
}

// ContextPos represents a Context Positioning subtable (GPOS Type 7).
// It matches input sequences and references nested positioning lookups;
// closure over those lookups is resolved via ReferencedLookups/GPOS.
type ContextPos struct {
	format uint16
	gpos   *GPOS

	// Format 1: Simple glyph contexts
	coverage *Coverage
	ruleSets [][]GPOSContextRule

	// Format 2: Class-based contexts
	classDef *ClassDef

	// Format 3: Coverage-based contexts
	inputCoverages []*Coverage
	lookupRecords  []GPOSLookupRecord
}

func (cp *ContextPos) gposSubtable() {}

func parseContextPos(data []byte, offset int, gpos *GPOS) (*ContextPos, error) {
	if offset+2 > len(data) {
		return nil, ErrInvalidOffset
	}

	format := binary.BigEndian.Uint16(data[offset:])

	switch format {
	case 1:
		return parseContextPosFormat1(data, offset, gpos)
	case 2:
		return parseContextPosFormat2(data, offset, gpos)
	case 3:
		return parseContextPosFormat3(data, offset, gpos)
	default:
		return nil, ErrInvalidFormat
	}
}

// parseContextPosFormat1 parses ContextPosFormat1 (simple glyph context).
func parseContextPosFormat1(data []byte, offset int, gpos *GPOS) (*ContextPos, error) {
	if offset+6 > len(data) {
		return nil, ErrInvalidOffset
	}

	coverageOff := int(binary.BigEndian.Uint16(data[offset+2:]))
	ruleSetCount := int(binary.BigEndian.Uint16(data[offset+4:]))

	if offset+6+ruleSetCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	coverage, err := ParseCoverage(data, offset+coverageOff)
	if err != nil {
		return nil, err
	}

	cp := &ContextPos{
		format:   1,
		gpos:     gpos,
		coverage: coverage,
		ruleSets: make([][]GPOSContextRule, ruleSetCount),
	}

	for i := 0; i < ruleSetCount; i++ {
		ruleSetOff := int(binary.BigEndian.Uint16(data[offset+6+i*2:]))
		if ruleSetOff == 0 {
			continue
		}

		absOff := offset + ruleSetOff
		if absOff+2 > len(data) {
			continue
		}

		ruleCount := int(binary.BigEndian.Uint16(data[absOff:]))
		if absOff+2+ruleCount*2 > len(data) {
			continue
		}

		rules := make([]GPOSContextRule, 0, ruleCount)
		for j := 0; j < ruleCount; j++ {
			ruleOff := int(binary.BigEndian.Uint16(data[absOff+2+j*2:]))
			if ruleOff == 0 {
				continue
			}

			ruleAbsOff := absOff + ruleOff
			if ruleAbsOff+4 > len(data) {
				continue
			}

			glyphCount := int(binary.BigEndian.Uint16(data[ruleAbsOff:]))
			lookupCount := int(binary.BigEndian.Uint16(data[ruleAbsOff+2:]))

			inputCount := glyphCount - 1
			if ruleAbsOff+4+inputCount*2+lookupCount*4 > len(data) {
				continue
			}

			rule := GPOSContextRule{
				Input:         make([]GlyphID, inputCount),
				LookupRecords: make([]GPOSLookupRecord, lookupCount),
			}

			for k := 0; k < inputCount; k++ {
				rule.Input[k] = GlyphID(binary.BigEndian.Uint16(data[ruleAbsOff+4+k*2:]))
			}

			lookupOff := ruleAbsOff + 4 + inputCount*2
			for k := 0; k < lookupCount; k++ {
				rule.LookupRecords[k] = GPOSLookupRecord{
					SequenceIndex: binary.BigEndian.Uint16(data[lookupOff+k*4:]),
					LookupIndex:   binary.BigEndian.Uint16(data[lookupOff+k*4+2:]),
				}
			}

			rules = append(rules, rule)
		}
		cp.ruleSets[i] = rules
	}

	return cp, nil
}

// parseContextPosFormat2 parses ContextPosFormat2 (class-based context).
func parseContextPosFormat2(data []byte, offset int, gpos *GPOS) (*ContextPos, error) {
	if offset+8 > len(data) {
		return nil, ErrInvalidOffset
	}

	coverageOff := int(binary.BigEndian.Uint16(data[offset+2:]))
	classDefOff := int(binary.BigEndian.Uint16(data[offset+4:]))
	ruleSetCount := int(binary.BigEndian.Uint16(data[offset+6:]))

	if offset+8+ruleSetCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	coverage, err := ParseCoverage(data, offset+coverageOff)
	if err != nil {
		return nil, err
	}

	classDef, err := ParseClassDef(data, offset+classDefOff)
	if err != nil {
		return nil, err
	}

	cp := &ContextPos{
		format:   2,
		gpos:     gpos,
		coverage: coverage,
		classDef: classDef,
		ruleSets: make([][]GPOSContextRule, ruleSetCount),
	}

	for i := 0; i < ruleSetCount; i++ {
		ruleSetOff := int(binary.BigEndian.Uint16(data[offset+8+i*2:]))
		if ruleSetOff == 0 {
			continue
		}

		absOff := offset + ruleSetOff
		if absOff+2 > len(data) {
			continue
		}

		ruleCount := int(binary.BigEndian.Uint16(data[absOff:]))
		if absOff+2+ruleCount*2 > len(data) {
			continue
		}

		rules := make([]GPOSContextRule, 0, ruleCount)
		for j := 0; j < ruleCount; j++ {
			ruleOff := int(binary.BigEndian.Uint16(data[absOff+2+j*2:]))
			if ruleOff == 0 {
				continue
			}

			ruleAbsOff := absOff + ruleOff
			if ruleAbsOff+4 > len(data) {
				continue
			}

			glyphCount := int(binary.BigEndian.Uint16(data[ruleAbsOff:]))
			lookupCount := int(binary.BigEndian.Uint16(data[ruleAbsOff+2:]))

			inputCount := glyphCount - 1
			if ruleAbsOff+4+inputCount*2+lookupCount*4 > len(data) {
				continue
			}

			rule := GPOSContextRule{
				Input:         make([]GlyphID, inputCount),
				LookupRecords: make([]GPOSLookupRecord, lookupCount),
			}

			// For Format 2, Input contains class values, not glyph IDs
			for k := 0; k < inputCount; k++ {
				rule.Input[k] = GlyphID(binary.BigEndian.Uint16(data[ruleAbsOff+4+k*2:]))
			}

			lookupOff := ruleAbsOff + 4 + inputCount*2
			for k := 0; k < lookupCount; k++ {
				rule.LookupRecords[k] = GPOSLookupRecord{
					SequenceIndex: binary.BigEndian.Uint16(data[lookupOff+k*4:]),
					LookupIndex:   binary.BigEndian.Uint16(data[lookupOff+k*4+2:]),
				}
			}

			rules = append(rules, rule)
		}
		cp.ruleSets[i] = rules
	}

	return cp, nil
}

// parseContextPosFormat3 parses ContextPosFormat3 (coverage-based context).
func parseContextPosFormat3(data []byte, offset int, gpos *GPOS) (*ContextPos, error) {
	if offset+6 > len(data) {
		return nil, ErrInvalidOffset
	}

	glyphCount := int(binary.BigEndian.Uint16(data[offset+2:]))
	lookupCount := int(binary.BigEndian.Uint16(data[offset+4:]))

	if glyphCount == 0 {
		return nil, ErrInvalidFormat
	}

	if offset+6+glyphCount*2+lookupCount*4 > len(data) {
		return nil, ErrInvalidOffset
	}

	inputCoverages := make([]*Coverage, glyphCount)
	for i := 0; i < glyphCount; i++ {
		covOff := int(binary.BigEndian.Uint16(data[offset+6+i*2:]))
		cov, err := ParseCoverage(data, offset+covOff)
		if err != nil {
			return nil, err
		}
		inputCoverages[i] = cov
	}

	lookupRecords := make([]GPOSLookupRecord, lookupCount)
	lookupOff := offset + 6 + glyphCount*2
	for i := 0; i < lookupCount; i++ {
		lookupRecords[i] = GPOSLookupRecord{
			SequenceIndex: binary.BigEndian.Uint16(data[lookupOff+i*4:]),
			LookupIndex:   binary.BigEndian.Uint16(data[lookupOff+i*4+2:]),
		}
	}

	return &ContextPos{
		format:         3,
		gpos:           gpos,
		inputCoverages: inputCoverages,
		lookupRecords:  lookupRecords,
	}, nil
}

// ReachableInputGlyphs returns every glyph that can appear as the leading
// glyph of a matched input sequence, across all formats.
func (cp *ContextPos) ReachableInputGlyphs() []GlyphID {
	switch cp.format {
	case 1, 2:
		if cp.coverage == nil {
			return nil
		}
		return cp.coverage.Glyphs()
	case 3:
		if len(cp.inputCoverages) == 0 {
			return nil
		}
		return cp.inputCoverages[0].Glyphs()
	default:
		return nil
	}
}

// ReferencedLookups returns the set of lookup indices this subtable may
// invoke, across all of its rule sets.
func (cp *ContextPos) ReferencedLookups() []uint16 {
	seen := make(map[uint16]bool)
	var out []uint16
	add := func(idx uint16) {
		if !seen[idx] {
			seen[idx] = true
			out = append(out, idx)
		}
	}

	switch cp.format {
	case 1, 2:
		for _, rules := range cp.ruleSets {
			for _, rule := range rules {
				for _, lr := range rule.LookupRecords {
					add(lr.LookupIndex)
				}
			}
		}
	case 3:
		for _, lr := range cp.lookupRecords {
			add(lr.LookupIndex)
		}
	}

	return out
}

// GPOS returns the GPOS table this subtable was parsed from, so referenced
// lookup indices can be resolved back to lookup objects.
func (cp *ContextPos) GPOS() *GPOS {
	return cp.gpos
}

// --- Chaining Context Positioning (Type 8) ---

// GPOSChainRule represents a single chaining context positioning rule.
type GPOSChainRule struct {
	Backtrack     []GlyphID          // Backtrack sequence (in reverse order)
	Input         []GlyphID          // Input sequence (starting from second glyph)
	Lookahead     []GlyphID          // Lookahead sequence
	LookupRecords []GPOSLookupRecord // Lookups to apply
}

// ChainContextPos represents a Chaining Context Positioning subtable (GPOS Type 8).
// It matches backtrack, input, and lookahead sequences and references nested
// positioning lookups; closure over those lookups is resolved via
// ReferencedLookups/GPOS.
type ChainContextPos struct {
	format uint16
	gpos   *GPOS

	// Format 1: Simple glyph contexts
	coverage      *Coverage
	chainRuleSets [][]GPOSChainRule // Indexed by coverage index

	// Format 2: Class-based contexts
	backtrackClassDef *ClassDef
	inputClassDef     *ClassDef
	lookaheadClassDef *ClassDef
	// chainRuleSets also used for format 2 (indexed by input class)

	// Format 3: Coverage-based contexts
	backtrackCoverages []*Coverage
	inputCoverages     []*Coverage
	lookaheadCoverages []*Coverage
	lookupRecords      []GPOSLookupRecord
}

func (ccp *ChainContextPos) gposSubtable() {}

func parseChainContextPos(data []byte, offset int, gpos *GPOS) (*ChainContextPos, error) {
	if offset+2 > len(data) {
		return nil, ErrInvalidOffset
	}

	format := binary.BigEndian.Uint16(data[offset:])

	switch format {
	case 1:
		return parseChainContextPosFormat1(data, offset, gpos)
	case 2:
		return parseChainContextPosFormat2(data, offset, gpos)
	case 3:
		return parseChainContextPosFormat3(data, offset, gpos)
	default:
		return nil, ErrInvalidFormat
	}
}

// parseChainContextPosFormat1 parses ChainContextPosFormat1 (simple glyph context).
func parseChainContextPosFormat1(data []byte, offset int, gpos *GPOS) (*ChainContextPos, error) {
	if offset+6 > len(data) {
		return nil, ErrInvalidOffset
	}

	coverageOff := int(binary.BigEndian.Uint16(data[offset+2:]))
	chainRuleSetCount := int(binary.BigEndian.Uint16(data[offset+4:]))

	if offset+6+chainRuleSetCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	coverage, err := ParseCoverage(data, offset+coverageOff)
	if err != nil {
		return nil, err
	}

	ccp := &ChainContextPos{
		format:        1,
		gpos:          gpos,
		coverage:      coverage,
		chainRuleSets: make([][]GPOSChainRule, chainRuleSetCount),
	}

	for i := 0; i < chainRuleSetCount; i++ {
		chainRuleSetOff := int(binary.BigEndian.Uint16(data[offset+6+i*2:]))
		if chainRuleSetOff == 0 {
			continue
		}

		absOff := offset + chainRuleSetOff
		if absOff+2 > len(data) {
			continue
		}

		chainRuleCount := int(binary.BigEndian.Uint16(data[absOff:]))
		if absOff+2+chainRuleCount*2 > len(data) {
			continue
		}

		rules := make([]GPOSChainRule, 0, chainRuleCount)
		for j := 0; j < chainRuleCount; j++ {
			chainRuleOff := int(binary.BigEndian.Uint16(data[absOff+2+j*2:]))
			if chainRuleOff == 0 {
				continue
			}

			rule, err := parseGPOSChainRule(data, absOff+chainRuleOff)
			if err != nil {
				continue
			}
			rules = append(rules, *rule)
		}
		ccp.chainRuleSets[i] = rules
	}

	return ccp, nil
}

func parseGPOSChainRule(data []byte, offset int) (*GPOSChainRule, error) {
	if offset+2 > len(data) {
		return nil, ErrInvalidOffset
	}

	off := offset

	// Backtrack count and glyphs
	backtrackCount := int(binary.BigEndian.Uint16(data[off:]))
	off += 2
	if off+backtrackCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	backtrack := make([]GlyphID, backtrackCount)
	for i := 0; i < backtrackCount; i++ {
		backtrack[i] = GlyphID(binary.BigEndian.Uint16(data[off+i*2:]))
	}
	off += backtrackCount * 2

	// Input count and glyphs
	if off+2 > len(data) {
		return nil, ErrInvalidOffset
	}
	inputCount := int(binary.BigEndian.Uint16(data[off:]))
	off += 2

	inputGlyphCount := inputCount - 1 // First glyph is matched by coverage
	if off+inputGlyphCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	input := make([]GlyphID, inputGlyphCount)
	for i := 0; i < inputGlyphCount; i++ {
		input[i] = GlyphID(binary.BigEndian.Uint16(data[off+i*2:]))
	}
	off += inputGlyphCount * 2

	// Lookahead count and glyphs
	if off+2 > len(data) {
		return nil, ErrInvalidOffset
	}
	lookaheadCount := int(binary.BigEndian.Uint16(data[off:]))
	off += 2
	if off+lookaheadCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	lookahead := make([]GlyphID, lookaheadCount)
	for i := 0; i < lookaheadCount; i++ {
		lookahead[i] = GlyphID(binary.BigEndian.Uint16(data[off+i*2:]))
	}
	off += lookaheadCount * 2

	// Lookup records
	if off+2 > len(data) {
		return nil, ErrInvalidOffset
	}
	lookupCount := int(binary.BigEndian.Uint16(data[off:]))
	off += 2
	if off+lookupCount*4 > len(data) {
		return nil, ErrInvalidOffset
	}

	lookupRecords := make([]GPOSLookupRecord, lookupCount)
	for i := 0; i < lookupCount; i++ {
		lookupRecords[i] = GPOSLookupRecord{
			SequenceIndex: binary.BigEndian.Uint16(data[off+i*4:]),
			LookupIndex:   binary.BigEndian.Uint16(data[off+i*4+2:]),
		}
	}

	return &GPOSChainRule{
		Backtrack:     backtrack,
		Input:         input,
		Lookahead:     lookahead,
		LookupRecords: lookupRecords,
	}, nil
}

// parseChainContextPosFormat2 parses ChainContextPosFormat2 (class-based context).
func parseChainContextPosFormat2(data []byte, offset int, gpos *GPOS) (*ChainContextPos, error) {
	if offset+12 > len(data) {
		return nil, ErrInvalidOffset
	}

	coverageOff := int(binary.BigEndian.Uint16(data[offset+2:]))
	backtrackClassDefOff := int(binary.BigEndian.Uint16(data[offset+4:]))
	inputClassDefOff := int(binary.BigEndian.Uint16(data[offset+6:]))
	lookaheadClassDefOff := int(binary.BigEndian.Uint16(data[offset+8:]))
	chainRuleSetCount := int(binary.BigEndian.Uint16(data[offset+10:]))

	if offset+12+chainRuleSetCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	coverage, err := ParseCoverage(data, offset+coverageOff)
	if err != nil {
		return nil, err
	}

	backtrackClassDef, err := ParseClassDef(data, offset+backtrackClassDefOff)
	if err != nil {
		return nil, err
	}

	inputClassDef, err := ParseClassDef(data, offset+inputClassDefOff)
	if err != nil {
		return nil, err
	}

	lookaheadClassDef, err := ParseClassDef(data, offset+lookaheadClassDefOff)
	if err != nil {
		return nil, err
	}

	ccp := &ChainContextPos{
		format:            2,
		gpos:              gpos,
		coverage:          coverage,
		backtrackClassDef: backtrackClassDef,
		inputClassDef:     inputClassDef,
		lookaheadClassDef: lookaheadClassDef,
		chainRuleSets:     make([][]GPOSChainRule, chainRuleSetCount),
	}

	for i := 0; i < chainRuleSetCount; i++ {
		chainRuleSetOff := int(binary.BigEndian.Uint16(data[offset+12+i*2:]))
		if chainRuleSetOff == 0 {
			continue
		}

		absOff := offset + chainRuleSetOff
		if absOff+2 > len(data) {
			continue
		}

		chainRuleCount := int(binary.BigEndian.Uint16(data[absOff:]))
		if absOff+2+chainRuleCount*2 > len(data) {
			continue
		}

		rules := make([]GPOSChainRule, 0, chainRuleCount)
		for j := 0; j < chainRuleCount; j++ {
			chainRuleOff := int(binary.BigEndian.Uint16(data[absOff+2+j*2:]))
			if chainRuleOff == 0 {
				continue
			}

			rule, err := parseGPOSChainRule(data, absOff+chainRuleOff)
			if err != nil {
				continue
			}
			rules = append(rules, *rule)
		}
		ccp.chainRuleSets[i] = rules
	}

	return ccp, nil
}

// parseChainContextPosFormat3 parses ChainContextPosFormat3 (coverage-based context).
func parseChainContextPosFormat3(data []byte, offset int, gpos *GPOS) (*ChainContextPos, error) {
	off := offset + 2 // Skip format

	if off+2 > len(data) {
		return nil, ErrInvalidOffset
	}

	// Backtrack coverages
	backtrackCount := int(binary.BigEndian.Uint16(data[off:]))
	off += 2
	if off+backtrackCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	backtrackCoverages := make([]*Coverage, backtrackCount)
	for i := 0; i < backtrackCount; i++ {
		covOff := int(binary.BigEndian.Uint16(data[off+i*2:]))
		cov, err := ParseCoverage(data, offset+covOff)
		if err != nil {
			return nil, err
		}
		backtrackCoverages[i] = cov
	}
	off += backtrackCount * 2

	// Input coverages
	if off+2 > len(data) {
		return nil, ErrInvalidOffset
	}
	inputCount := int(binary.BigEndian.Uint16(data[off:]))
	off += 2
	if inputCount == 0 {
		return nil, ErrInvalidFormat
	}
	if off+inputCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	inputCoverages := make([]*Coverage, inputCount)
	for i := 0; i < inputCount; i++ {
		covOff := int(binary.BigEndian.Uint16(data[off+i*2:]))
		cov, err := ParseCoverage(data, offset+covOff)
		if err != nil {
			return nil, err
		}
		inputCoverages[i] = cov
	}
	off += inputCount * 2

	// Lookahead coverages
	if off+2 > len(data) {
		return nil, ErrInvalidOffset
	}
	lookaheadCount := int(binary.BigEndian.Uint16(data[off:]))
	off += 2
	if off+lookaheadCount*2 > len(data) {
		return nil, ErrInvalidOffset
	}

	lookaheadCoverages := make([]*Coverage, lookaheadCount)
	for i := 0; i < lookaheadCount; i++ {
		covOff := int(binary.BigEndian.Uint16(data[off+i*2:]))
		cov, err := ParseCoverage(data, offset+covOff)
		if err != nil {
			return nil, err
		}
		lookaheadCoverages[i] = cov
	}
	off += lookaheadCount * 2

	// Lookup records
	if off+2 > len(data) {
		return nil, ErrInvalidOffset
	}
	lookupCount := int(binary.BigEndian.Uint16(data[off:]))
	off += 2
	if off+lookupCount*4 > len(data) {
		return nil, ErrInvalidOffset
	}

	lookupRecords := make([]GPOSLookupRecord, lookupCount)
	for i := 0; i < lookupCount; i++ {
		lookupRecords[i] = GPOSLookupRecord{
			SequenceIndex: binary.BigEndian.Uint16(data[off+i*4:]),
			LookupIndex:   binary.BigEndian.Uint16(data[off+i*4+2:]),
		}
	}

	return &ChainContextPos{
		format:             3,
		gpos:               gpos,
		backtrackCoverages: backtrackCoverages,
		inputCoverages:     inputCoverages,
		lookaheadCoverages: lookaheadCoverages,
		lookupRecords:      lookupRecords,
	}, nil
}

// ReachableInputGlyphs returns every glyph that can appear as the leading
// glyph of a matched input sequence, across all formats.
func (ccp *ChainContextPos) ReachableInputGlyphs() []GlyphID {
	switch ccp.format {
	case 1, 2:
		if ccp.coverage == nil {
			return nil
		}
		return ccp.coverage.Glyphs()
	case 3:
		if len(ccp.inputCoverages) == 0 {
			return nil
		}
		return ccp.inputCoverages[0].Glyphs()
	default:
		return nil
	}
}

// ReferencedLookups returns the set of lookup indices this subtable may
// invoke, across all of its chain rule sets.
func (ccp *ChainContextPos) ReferencedLookups() []uint16 {
	seen := make(map[uint16]bool)
	var out []uint16
	add := func(idx uint16) {
		if !seen[idx] {
			seen[idx] = true
			out = append(out, idx)
		}
	}

	switch ccp.format {
	case 1, 2:
		for _, rules := range ccp.chainRuleSets {
			for _, rule := range rules {
				for _, lr := range rule.LookupRecords {
					add(lr.LookupIndex)
				}
			}
		}
	case 3:
		for _, lr := range ccp.lookupRecords {
			add(lr.LookupIndex)
		}
	}

	return out
}

// GPOS returns the GPOS table this subtable was parsed from, so referenced
// lookup indices can be resolved back to lookup objects.
func (ccp *ChainContextPos) GPOS() *GPOS {
	return ccp.gpos
}
