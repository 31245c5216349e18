package ot

import (
	"encoding/binary"
	"testing"
)

func putInt16(b []byte, v int16) {
	binary.BigEndian.PutUint16(b, uint16(v))
}

func TestValueFormatLen(t *testing.T) {
	tests := []struct {
		format uint16
		want   int
	}{
		{0, 0},
		{ValueFormatXAdvance, 1},
		{ValueFormatXPlacement | ValueFormatYPlacement, 2},
		{ValueFormatXPlacement | ValueFormatYPlacement | ValueFormatXAdvance | ValueFormatYAdvance, 4},
		{0xFF, 8}, // All flags
	}

	for _, tt := range tests {
		got := valueFormatLen(tt.format)
		if got != tt.want {
			t.Errorf("valueFormatLen(0x%04X) = %d, want %d", tt.format, got, tt.want)
		}
	}
}

func TestParseValueRecord(t *testing.T) {
	data := make([]byte, 8)
	binary.BigEndian.PutUint16(data[0:], 10)
	binary.BigEndian.PutUint16(data[2:], 20)
	putInt16(data[4:], -30)
	binary.BigEndian.PutUint16(data[6:], 0)

	format := uint16(ValueFormatXPlacement | ValueFormatYPlacement | ValueFormatXAdvance | ValueFormatYAdvance)
	vr, size := parseValueRecord(data, 0, format)

	if size != 8 {
		t.Errorf("size = %d, want 8", size)
	}
	if vr.XPlacement != 10 {
		t.Errorf("XPlacement = %d, want 10", vr.XPlacement)
	}
	if vr.YPlacement != 20 {
		t.Errorf("YPlacement = %d, want 20", vr.YPlacement)
	}
	if vr.XAdvance != -30 {
		t.Errorf("XAdvance = %d, want -30", vr.XAdvance)
	}
	if vr.YAdvance != 0 {
		t.Errorf("YAdvance = %d, want 0", vr.YAdvance)
	}
}

func TestParseValueRecordPartial(t *testing.T) {
	data := make([]byte, 2)
	putInt16(data[0:], -50)

	format := uint16(ValueFormatXAdvance)
	vr, size := parseValueRecord(data, 0, format)

	if size != 2 {
		t.Errorf("size = %d, want 2", size)
	}
	if vr.XPlacement != 0 {
		t.Errorf("XPlacement = %d, want 0", vr.XPlacement)
	}
	if vr.XAdvance != -50 {
		t.Errorf("XAdvance = %d, want -50", vr.XAdvance)
	}
}

func TestValueRecordIsZero(t *testing.T) {
	var vr ValueRecord
	if !vr.IsZero() {
		t.Error("zero-value ValueRecord should report IsZero() == true")
	}
	vr.XAdvance = 1
	if vr.IsZero() {
		t.Error("non-zero ValueRecord should report IsZero() == false")
	}
}

// Build a SinglePos Format 1 subtable
func buildSinglePosFormat1(coverageGlyphs []GlyphID, valueFormat uint16, vr ValueRecord) []byte {
	coverage := buildCoverageFormat1(coverageGlyphs)

	vrSize := valueFormatSize(valueFormat)
	headerSize := 6 + vrSize

	data := make([]byte, headerSize+len(coverage))
	binary.BigEndian.PutUint16(data[0:], 1)
	binary.BigEndian.PutUint16(data[2:], uint16(headerSize))
	binary.BigEndian.PutUint16(data[4:], valueFormat)

	off := 6
	if valueFormat&ValueFormatXPlacement != 0 {
		binary.BigEndian.PutUint16(data[off:], uint16(vr.XPlacement))
		off += 2
	}
	if valueFormat&ValueFormatYPlacement != 0 {
		binary.BigEndian.PutUint16(data[off:], uint16(vr.YPlacement))
		off += 2
	}
	if valueFormat&ValueFormatXAdvance != 0 {
		binary.BigEndian.PutUint16(data[off:], uint16(vr.XAdvance))
		off += 2
	}
	if valueFormat&ValueFormatYAdvance != 0 {
		binary.BigEndian.PutUint16(data[off:], uint16(vr.YAdvance))
		off += 2
	}

	copy(data[headerSize:], coverage)
	return data
}

// Build a SinglePos Format 2 subtable
func buildSinglePosFormat2(coverageGlyphs []GlyphID, valueFormat uint16, vrs []ValueRecord) []byte {
	coverage := buildCoverageFormat1(coverageGlyphs)

	vrSize := valueFormatSize(valueFormat)
	headerSize := 8 + len(vrs)*vrSize

	data := make([]byte, headerSize+len(coverage))
	binary.BigEndian.PutUint16(data[0:], 2)
	binary.BigEndian.PutUint16(data[2:], uint16(headerSize))
	binary.BigEndian.PutUint16(data[4:], valueFormat)
	binary.BigEndian.PutUint16(data[6:], uint16(len(vrs)))

	off := 8
	for _, vr := range vrs {
		if valueFormat&ValueFormatXPlacement != 0 {
			binary.BigEndian.PutUint16(data[off:], uint16(vr.XPlacement))
			off += 2
		}
		if valueFormat&ValueFormatYPlacement != 0 {
			binary.BigEndian.PutUint16(data[off:], uint16(vr.YPlacement))
			off += 2
		}
		if valueFormat&ValueFormatXAdvance != 0 {
			binary.BigEndian.PutUint16(data[off:], uint16(vr.XAdvance))
			off += 2
		}
		if valueFormat&ValueFormatYAdvance != 0 {
			binary.BigEndian.PutUint16(data[off:], uint16(vr.YAdvance))
			off += 2
		}
	}

	copy(data[headerSize:], coverage)
	return data
}

func TestSinglePosFormat1(t *testing.T) {
	coverageGlyphs := []GlyphID{65, 66, 67}
	valueFormat := uint16(ValueFormatXAdvance)
	vr := ValueRecord{XAdvance: -50}

	data := buildSinglePosFormat1(coverageGlyphs, valueFormat, vr)

	sp, err := parseSinglePos(data, 0)
	if err != nil {
		t.Fatalf("parseSinglePos failed: %v", err)
	}

	if sp.Format() != 1 {
		t.Errorf("Format() = %d, want 1", sp.Format())
	}
	if sp.ValueFormat() != valueFormat {
		t.Errorf("ValueFormat() = %d, want %d", sp.ValueFormat(), valueFormat)
	}
	if sp.ValueRecord().XAdvance != -50 {
		t.Errorf("ValueRecord().XAdvance = %d, want -50", sp.ValueRecord().XAdvance)
	}
	for _, g := range coverageGlyphs {
		if sp.Coverage().GetCoverage(g) == NotCovered {
			t.Errorf("glyph %d not covered", g)
		}
	}
}

func TestSinglePosFormat2(t *testing.T) {
	coverageGlyphs := []GlyphID{65, 66, 67}
	valueFormat := uint16(ValueFormatXAdvance)
	vrs := []ValueRecord{
		{XAdvance: -10},
		{XAdvance: -20},
		{XAdvance: -30},
	}

	data := buildSinglePosFormat2(coverageGlyphs, valueFormat, vrs)

	sp, err := parseSinglePos(data, 0)
	if err != nil {
		t.Fatalf("parseSinglePos failed: %v", err)
	}

	records := sp.ValueRecords()
	if len(records) != 3 {
		t.Fatalf("ValueRecords() returned %d records, want 3", len(records))
	}
	for i, want := range []int16{-10, -20, -30} {
		if records[i].XAdvance != want {
			t.Errorf("ValueRecords()[%d].XAdvance = %d, want %d", i, records[i].XAdvance, want)
		}
	}
}

// Build a PairPos Format 1 subtable
func buildPairPosFormat1(firstGlyphs []GlyphID, pairs [][]struct {
	second GlyphID
	kern   int16
}) []byte {
	coverage := buildCoverageFormat1(firstGlyphs)

	valueFormat1 := uint16(ValueFormatXAdvance)
	valueFormat2 := uint16(0)

	pairSetCount := len(pairs)
	headerSize := 10 + pairSetCount*2

	pairSetOffsets := make([]int, pairSetCount)
	currentOff := headerSize
	for i, ps := range pairs {
		pairSetOffsets[i] = currentOff
		currentOff += 2 + len(ps)*4
	}

	totalSize := currentOff + len(coverage)
	data := make([]byte, totalSize)

	binary.BigEndian.PutUint16(data[0:], 1)
	binary.BigEndian.PutUint16(data[2:], uint16(currentOff))
	binary.BigEndian.PutUint16(data[4:], valueFormat1)
	binary.BigEndian.PutUint16(data[6:], valueFormat2)
	binary.BigEndian.PutUint16(data[8:], uint16(pairSetCount))

	for i, off := range pairSetOffsets {
		binary.BigEndian.PutUint16(data[10+i*2:], uint16(off))
	}

	for i, ps := range pairs {
		off := pairSetOffsets[i]
		binary.BigEndian.PutUint16(data[off:], uint16(len(ps)))
		off += 2
		for _, p := range ps {
			binary.BigEndian.PutUint16(data[off:], uint16(p.second))
			binary.BigEndian.PutUint16(data[off+2:], uint16(p.kern))
			off += 4
		}
	}

	copy(data[currentOff:], coverage)

	return data
}

func TestPairPosFormat1(t *testing.T) {
	firstGlyphs := []GlyphID{65, 86} // A, V
	pairs := [][]struct {
		second GlyphID
		kern   int16
	}{
		{{86, -80}, {87, -60}}, // A+V, A+W
		{{65, -70}},            // V+A
	}

	data := buildPairPosFormat1(firstGlyphs, pairs)

	pp, err := parsePairPos(data, 0)
	if err != nil {
		t.Fatalf("parsePairPos failed: %v", err)
	}

	sets := pp.PairSets()
	if len(sets) != 2 {
		t.Fatalf("PairSets() returned %d sets, want 2", len(sets))
	}
	if len(sets[0]) != 2 || sets[0][0].SecondGlyph != 86 || sets[0][0].Value1.XAdvance != -80 {
		t.Errorf("unexpected first pair set: %+v", sets[0])
	}
	if len(sets[1]) != 1 || sets[1][0].SecondGlyph != 65 || sets[1][0].Value1.XAdvance != -70 {
		t.Errorf("unexpected second pair set: %+v", sets[1])
	}
}

// Build a ClassDef Format 2 table
func buildClassDefFormat2(ranges []struct {
	start, end GlyphID
	class      uint16
}) []byte {
	data := make([]byte, 4+len(ranges)*6)
	binary.BigEndian.PutUint16(data[0:], 2)
	binary.BigEndian.PutUint16(data[2:], uint16(len(ranges)))
	for i, r := range ranges {
		off := 4 + i*6
		binary.BigEndian.PutUint16(data[off:], uint16(r.start))
		binary.BigEndian.PutUint16(data[off+2:], uint16(r.end))
		binary.BigEndian.PutUint16(data[off+4:], r.class)
	}
	return data
}

func TestClassDefFormat1(t *testing.T) {
	classes := []uint16{1, 2, 3, 2, 1}
	data := buildClassDefFormat1(65, classes)

	cd, err := ParseClassDef(data, 0)
	if err != nil {
		t.Fatalf("ParseClassDef failed: %v", err)
	}

	tests := []struct {
		glyph GlyphID
		want  int
	}{
		{65, 1}, {66, 2}, {67, 3}, {68, 2}, {69, 1},
		{64, 0}, {70, 0},
	}

	for _, tt := range tests {
		got := cd.GetClass(tt.glyph)
		if got != tt.want {
			t.Errorf("GetClass(%d) = %d, want %d", tt.glyph, got, tt.want)
		}
	}
}

func TestClassDefFormat2(t *testing.T) {
	ranges := []struct {
		start, end GlyphID
		class      uint16
	}{
		{65, 67, 1}, {68, 70, 2}, {88, 90, 3},
	}
	data := buildClassDefFormat2(ranges)

	cd, err := ParseClassDef(data, 0)
	if err != nil {
		t.Fatalf("ParseClassDef failed: %v", err)
	}

	tests := []struct {
		glyph GlyphID
		want  int
	}{
		{65, 1}, {67, 1}, {68, 2}, {70, 2}, {88, 3}, {90, 3},
		{71, 0}, {87, 0},
	}

	for _, tt := range tests {
		got := cd.GetClass(tt.glyph)
		if got != tt.want {
			t.Errorf("GetClass(%d) = %d, want %d", tt.glyph, got, tt.want)
		}
	}
}

// Build a GPOS table for testing
func buildGPOSTable(lookups [][]byte) []byte {
	headerSize := 10
	scriptListSize := 2
	featureListSize := 2

	lookupListHeaderSize := 2 + len(lookups)*2
	lookupListSize := lookupListHeaderSize
	for _, l := range lookups {
		lookupListSize += len(l)
	}

	totalSize := headerSize + scriptListSize + featureListSize + lookupListSize
	data := make([]byte, totalSize)

	binary.BigEndian.PutUint16(data[0:], 1)
	binary.BigEndian.PutUint16(data[2:], 0)
	binary.BigEndian.PutUint16(data[4:], uint16(headerSize))
	binary.BigEndian.PutUint16(data[6:], uint16(headerSize+scriptListSize))
	binary.BigEndian.PutUint16(data[8:], uint16(headerSize+scriptListSize+featureListSize))

	binary.BigEndian.PutUint16(data[headerSize:], 0)
	binary.BigEndian.PutUint16(data[headerSize+scriptListSize:], 0)

	lookupListOff := headerSize + scriptListSize + featureListSize
	binary.BigEndian.PutUint16(data[lookupListOff:], uint16(len(lookups)))

	offset := lookupListHeaderSize
	for i, l := range lookups {
		binary.BigEndian.PutUint16(data[lookupListOff+2+i*2:], uint16(offset))
		copy(data[lookupListOff+offset:], l)
		offset += len(l)
	}

	return data
}

// Build a GPOS lookup wrapper
func buildGPOSLookup(lookupType uint16, subtables [][]byte) []byte {
	headerSize := 6 + len(subtables)*2
	totalSize := headerSize
	for _, st := range subtables {
		totalSize += len(st)
	}

	data := make([]byte, totalSize)
	binary.BigEndian.PutUint16(data[0:], lookupType)
	binary.BigEndian.PutUint16(data[2:], 0)
	binary.BigEndian.PutUint16(data[4:], uint16(len(subtables)))

	offset := headerSize
	for i, st := range subtables {
		binary.BigEndian.PutUint16(data[6+i*2:], uint16(offset))
		copy(data[offset:], st)
		offset += len(st)
	}

	return data
}

func TestParseGPOS(t *testing.T) {
	subtable := buildSinglePosFormat1([]GlyphID{65, 66}, ValueFormatXAdvance, ValueRecord{XAdvance: -50})
	lookup := buildGPOSLookup(GPOSTypeSingle, [][]byte{subtable})
	gposData := buildGPOSTable([][]byte{lookup})

	gpos, err := ParseGPOS(gposData)
	if err != nil {
		t.Fatalf("ParseGPOS failed: %v", err)
	}

	if gpos.NumLookups() != 1 {
		t.Errorf("NumLookups = %d, want 1", gpos.NumLookups())
	}

	lookup0 := gpos.GetLookup(0)
	if lookup0 == nil || lookup0.Type != GPOSTypeSingle {
		t.Fatalf("GetLookup(0) = %+v, want Single lookup", lookup0)
	}

	subtables := lookup0.Subtables()
	if len(subtables) != 1 {
		t.Fatalf("expected 1 subtable, got %d", len(subtables))
	}
	sp, ok := subtables[0].(*SinglePos)
	if !ok {
		t.Fatalf("subtable type = %T, want *SinglePos", subtables[0])
	}
	if sp.ValueRecord().XAdvance != -50 {
		t.Errorf("ValueRecord().XAdvance = %d, want -50", sp.ValueRecord().XAdvance)
	}
}

// Helper to build an Anchor table (Format 1)
func buildAnchor(x, y int16) []byte {
	data := make([]byte, 6)
	binary.BigEndian.PutUint16(data[0:], 1)
	binary.BigEndian.PutUint16(data[2:], uint16(x))
	binary.BigEndian.PutUint16(data[4:], uint16(y))
	return data
}

// Helper to build a MarkArray
func buildMarkArray(records []struct {
	class  uint16
	anchor []byte
}) []byte {
	headerSize := 2 + len(records)*4
	totalSize := headerSize
	for _, r := range records {
		totalSize += len(r.anchor)
	}

	data := make([]byte, totalSize)
	binary.BigEndian.PutUint16(data[0:], uint16(len(records)))

	anchorOff := headerSize
	for i, r := range records {
		recOff := 2 + i*4
		binary.BigEndian.PutUint16(data[recOff:], r.class)
		binary.BigEndian.PutUint16(data[recOff+2:], uint16(anchorOff))
		copy(data[anchorOff:], r.anchor)
		anchorOff += len(r.anchor)
	}

	return data
}

// Helper to build a BaseArray (AnchorMatrix)
func buildBaseArray(rows int, classCount int, anchors [][]*struct{ x, y int16 }) []byte {
	totalAnchors := rows * classCount
	headerSize := 2 + totalAnchors*2

	anchorSize := 0
	for _, row := range anchors {
		for _, a := range row {
			if a != nil {
				anchorSize += 6
			}
		}
	}

	data := make([]byte, headerSize+anchorSize)
	binary.BigEndian.PutUint16(data[0:], uint16(rows))

	anchorOff := headerSize
	for row := 0; row < rows; row++ {
		for col := 0; col < classCount; col++ {
			idx := row*classCount + col
			offPos := 2 + idx*2

			if row < len(anchors) && col < len(anchors[row]) && anchors[row][col] != nil {
				binary.BigEndian.PutUint16(data[offPos:], uint16(anchorOff))
				binary.BigEndian.PutUint16(data[anchorOff:], 1)
				binary.BigEndian.PutUint16(data[anchorOff+2:], uint16(anchors[row][col].x))
				binary.BigEndian.PutUint16(data[anchorOff+4:], uint16(anchors[row][col].y))
				anchorOff += 6
			} else {
				binary.BigEndian.PutUint16(data[offPos:], 0)
			}
		}
	}

	return data
}

// Helper to build a MarkBasePos subtable
func buildMarkBasePos(
	markGlyphs []GlyphID,
	baseGlyphs []GlyphID,
	classCount int,
	markRecords []struct {
		class uint16
		x, y  int16
	},
	baseAnchors [][]*struct{ x, y int16 },
) []byte {
	markCoverage := buildCoverageFormat1(markGlyphs)
	baseCoverage := buildCoverageFormat1(baseGlyphs)

	markRecs := make([]struct {
		class  uint16
		anchor []byte
	}, len(markRecords))
	for i, r := range markRecords {
		markRecs[i] = struct {
			class  uint16
			anchor []byte
		}{class: r.class, anchor: buildAnchor(r.x, r.y)}
	}
	markArray := buildMarkArray(markRecs)

	baseArray := buildBaseArray(len(baseGlyphs), classCount, baseAnchors)

	headerSize := 12
	markCovOff := headerSize
	baseCovOff := markCovOff + len(markCoverage)
	markArrayOff := baseCovOff + len(baseCoverage)
	baseArrayOff := markArrayOff + len(markArray)

	totalSize := baseArrayOff + len(baseArray)
	data := make([]byte, totalSize)

	binary.BigEndian.PutUint16(data[0:], 1)
	binary.BigEndian.PutUint16(data[2:], uint16(markCovOff))
	binary.BigEndian.PutUint16(data[4:], uint16(baseCovOff))
	binary.BigEndian.PutUint16(data[6:], uint16(classCount))
	binary.BigEndian.PutUint16(data[8:], uint16(markArrayOff))
	binary.BigEndian.PutUint16(data[10:], uint16(baseArrayOff))

	copy(data[markCovOff:], markCoverage)
	copy(data[baseCovOff:], baseCoverage)
	copy(data[markArrayOff:], markArray)
	copy(data[baseArrayOff:], baseArray)

	return data
}

func TestMarkBasePosBasic(t *testing.T) {
	markBasePos := buildMarkBasePos(
		[]GlyphID{200},
		[]GlyphID{65},
		1,
		[]struct {
			class uint16
			x, y  int16
		}{{0, 100, 0}},
		[][]*struct{ x, y int16 }{{{300, 500}}},
	)

	subtable, err := parseMarkBasePos(markBasePos, 0)
	if err != nil {
		t.Fatalf("parseMarkBasePos failed: %v", err)
	}

	if subtable.MarkCoverage().GetCoverage(200) == NotCovered {
		t.Fatal("mark glyph 200 not covered")
	}
	if subtable.BaseCoverage().GetCoverage(65) == NotCovered {
		t.Fatal("base glyph 65 not covered")
	}
	if subtable.ClassCount() != 1 {
		t.Errorf("ClassCount() = %d, want 1", subtable.ClassCount())
	}

	markAnchor := subtable.MarkArray().Records[0].Anchor
	if markAnchor.X != 100 || markAnchor.Y != 0 {
		t.Errorf("mark anchor = (%d,%d), want (100,0)", markAnchor.X, markAnchor.Y)
	}

	baseAnchor := subtable.BaseArray().GetAnchor(0, 0)
	if baseAnchor == nil || baseAnchor.X != 300 || baseAnchor.Y != 500 {
		t.Errorf("base anchor = %+v, want (300,500)", baseAnchor)
	}
}

func TestMarkBasePosMultipleClasses(t *testing.T) {
	markBasePos := buildMarkBasePos(
		[]GlyphID{200, 201},
		[]GlyphID{65},
		2,
		[]struct {
			class uint16
			x, y  int16
		}{
			{0, 50, 0},
			{1, 50, 50},
		},
		[][]*struct{ x, y int16 }{
			{{300, 600}, {300, -100}},
		},
	)

	subtable, err := parseMarkBasePos(markBasePos, 0)
	if err != nil {
		t.Fatalf("parseMarkBasePos failed: %v", err)
	}

	above := subtable.BaseArray().GetAnchor(0, 0)
	below := subtable.BaseArray().GetAnchor(0, 1)
	if above == nil || above.X != 300 || above.Y != 600 {
		t.Errorf("above anchor = %+v, want (300,600)", above)
	}
	if below == nil || below.X != 300 || below.Y != -100 {
		t.Errorf("below anchor = %+v, want (300,-100)", below)
	}

	records := subtable.MarkArray().Records
	if records[0].Class != 0 || records[1].Class != 1 {
		t.Errorf("unexpected mark classes: %+v", records)
	}
}

// Helper to build a LigatureAttach table
func buildLigatureAttach(componentCount int, classCount int, anchors [][]*struct{ x, y int16 }) []byte {
	totalAnchors := componentCount * classCount
	headerSize := 2 + totalAnchors*2

	anchorSize := 0
	for _, comp := range anchors {
		for _, a := range comp {
			if a != nil {
				anchorSize += 6
			}
		}
	}

	data := make([]byte, headerSize+anchorSize)
	binary.BigEndian.PutUint16(data[0:], uint16(componentCount))

	anchorOff := headerSize
	for comp := 0; comp < componentCount; comp++ {
		for class := 0; class < classCount; class++ {
			idx := comp*classCount + class
			offPos := 2 + idx*2

			if comp < len(anchors) && class < len(anchors[comp]) && anchors[comp][class] != nil {
				binary.BigEndian.PutUint16(data[offPos:], uint16(anchorOff))
				binary.BigEndian.PutUint16(data[anchorOff:], 1)
				binary.BigEndian.PutUint16(data[anchorOff+2:], uint16(anchors[comp][class].x))
				binary.BigEndian.PutUint16(data[anchorOff+4:], uint16(anchors[comp][class].y))
				anchorOff += 6
			} else {
				binary.BigEndian.PutUint16(data[offPos:], 0)
			}
		}
	}

	return data
}

// Helper to build a LigatureArray
func buildLigatureArray(classCount int, ligAttachments [][][]*struct{ x, y int16 }) []byte {
	attachTables := make([][]byte, len(ligAttachments))
	for i, anchors := range ligAttachments {
		componentCount := len(anchors)
		attachTables[i] = buildLigatureAttach(componentCount, classCount, anchors)
	}

	headerSize := 2 + len(ligAttachments)*2
	totalSize := headerSize
	for _, tbl := range attachTables {
		totalSize += len(tbl)
	}

	data := make([]byte, totalSize)
	binary.BigEndian.PutUint16(data[0:], uint16(len(ligAttachments)))

	attachOff := headerSize
	for i, tbl := range attachTables {
		binary.BigEndian.PutUint16(data[2+i*2:], uint16(attachOff))
		copy(data[attachOff:], tbl)
		attachOff += len(tbl)
	}

	return data
}

// Helper to build a MarkLigPos subtable
func buildMarkLigPos(
	markGlyphs []GlyphID,
	ligGlyphs []GlyphID,
	classCount int,
	markRecords []struct {
		class uint16
		x, y  int16
	},
	ligAttachments [][][]*struct{ x, y int16 },
) []byte {
	markCoverage := buildCoverageFormat1(markGlyphs)
	ligCoverage := buildCoverageFormat1(ligGlyphs)

	markRecs := make([]struct {
		class  uint16
		anchor []byte
	}, len(markRecords))
	for i, r := range markRecords {
		markRecs[i] = struct {
			class  uint16
			anchor []byte
		}{class: r.class, anchor: buildAnchor(r.x, r.y)}
	}
	markArray := buildMarkArray(markRecs)

	ligArray := buildLigatureArray(classCount, ligAttachments)

	headerSize := 12
	markCovOff := headerSize
	ligCovOff := markCovOff + len(markCoverage)
	markArrayOff := ligCovOff + len(ligCoverage)
	ligArrayOff := markArrayOff + len(markArray)

	totalSize := ligArrayOff + len(ligArray)
	data := make([]byte, totalSize)

	binary.BigEndian.PutUint16(data[0:], 1)
	binary.BigEndian.PutUint16(data[2:], uint16(markCovOff))
	binary.BigEndian.PutUint16(data[4:], uint16(ligCovOff))
	binary.BigEndian.PutUint16(data[6:], uint16(classCount))
	binary.BigEndian.PutUint16(data[8:], uint16(markArrayOff))
	binary.BigEndian.PutUint16(data[10:], uint16(ligArrayOff))

	copy(data[markCovOff:], markCoverage)
	copy(data[ligCovOff:], ligCoverage)
	copy(data[markArrayOff:], markArray)
	copy(data[ligArrayOff:], ligArray)

	return data
}

func TestMarkLigPosBasic(t *testing.T) {
	markLigPos := buildMarkLigPos(
		[]GlyphID{200},
		[]GlyphID{500},
		1,
		[]struct {
			class uint16
			x, y  int16
		}{{0, 50, 0}},
		[][][]*struct{ x, y int16 }{
			{
				{{100, 600}},
				{{300, 600}},
			},
		},
	)

	subtable, err := parseMarkLigPos(markLigPos, 0)
	if err != nil {
		t.Fatalf("parseMarkLigPos failed: %v", err)
	}

	if subtable.MarkCoverage().GetCoverage(200) == NotCovered {
		t.Fatal("mark glyph 200 not covered")
	}
	if subtable.LigatureCoverage().GetCoverage(500) == NotCovered {
		t.Fatal("ligature glyph 500 not covered")
	}

	attach := subtable.LigatureArray().Attachments
	if len(attach) != 1 {
		t.Fatalf("expected 1 ligature attachment, got %d", len(attach))
	}
	lastComponent := attach[0].GetAnchor(1, 0)
	if lastComponent == nil || lastComponent.X != 300 || lastComponent.Y != 600 {
		t.Errorf("component 1 anchor = %+v, want (300,600)", lastComponent)
	}
}

// Helper to build a MarkMarkPos subtable
func buildMarkMarkPos(
	mark1Glyphs []GlyphID,
	mark2Glyphs []GlyphID,
	classCount int,
	mark1Records []struct {
		class uint16
		x, y  int16
	},
	mark2Anchors [][]*struct{ x, y int16 },
) []byte {
	mark1Coverage := buildCoverageFormat1(mark1Glyphs)
	mark2Coverage := buildCoverageFormat1(mark2Glyphs)

	mark1Recs := make([]struct {
		class  uint16
		anchor []byte
	}, len(mark1Records))
	for i, r := range mark1Records {
		mark1Recs[i] = struct {
			class  uint16
			anchor []byte
		}{class: r.class, anchor: buildAnchor(r.x, r.y)}
	}
	mark1Array := buildMarkArray(mark1Recs)

	mark2Array := buildBaseArray(len(mark2Glyphs), classCount, mark2Anchors)

	headerSize := 12
	mark1CovOff := headerSize
	mark2CovOff := mark1CovOff + len(mark1Coverage)
	mark1ArrayOff := mark2CovOff + len(mark2Coverage)
	mark2ArrayOff := mark1ArrayOff + len(mark1Array)

	totalSize := mark2ArrayOff + len(mark2Array)
	data := make([]byte, totalSize)

	binary.BigEndian.PutUint16(data[0:], 1)
	binary.BigEndian.PutUint16(data[2:], uint16(mark1CovOff))
	binary.BigEndian.PutUint16(data[4:], uint16(mark2CovOff))
	binary.BigEndian.PutUint16(data[6:], uint16(classCount))
	binary.BigEndian.PutUint16(data[8:], uint16(mark1ArrayOff))
	binary.BigEndian.PutUint16(data[10:], uint16(mark2ArrayOff))

	copy(data[mark1CovOff:], mark1Coverage)
	copy(data[mark2CovOff:], mark2Coverage)
	copy(data[mark1ArrayOff:], mark1Array)
	copy(data[mark2ArrayOff:], mark2Array)

	return data
}

func TestMarkMarkPosBasic(t *testing.T) {
	markMarkPos := buildMarkMarkPos(
		[]GlyphID{201},
		[]GlyphID{200},
		1,
		[]struct {
			class uint16
			x, y  int16
		}{{0, 50, 0}},
		[][]*struct{ x, y int16 }{{{50, 700}}},
	)

	subtable, err := parseMarkMarkPos(markMarkPos, 0)
	if err != nil {
		t.Fatalf("parseMarkMarkPos failed: %v", err)
	}

	if subtable.Mark1Coverage().GetCoverage(201) == NotCovered {
		t.Fatal("mark1 glyph 201 not covered")
	}
	if subtable.Mark2Coverage().GetCoverage(200) == NotCovered {
		t.Fatal("mark2 glyph 200 not covered")
	}

	anchor := subtable.Mark2Array().GetAnchor(0, 0)
	if anchor == nil || anchor.X != 50 || anchor.Y != 700 {
		t.Errorf("mark2 anchor = %+v, want (50,700)", anchor)
	}
}

// Helper to build a CursivePos subtable
func buildCursivePos(
	coverageGlyphs []GlyphID,
	entryExits []struct {
		entryX, entryY *int16
		exitX, exitY   *int16
	},
) []byte {
	coverage := buildCoverageFormat1(coverageGlyphs)

	anchorCount := 0
	for _, ee := range entryExits {
		if ee.entryX != nil {
			anchorCount++
		}
		if ee.exitX != nil {
			anchorCount++
		}
	}

	headerSize := 6 + len(entryExits)*4
	anchorSize := anchorCount * 6

	data := make([]byte, headerSize+anchorSize+len(coverage))
	binary.BigEndian.PutUint16(data[0:], 1)
	binary.BigEndian.PutUint16(data[2:], uint16(headerSize+anchorSize))
	binary.BigEndian.PutUint16(data[4:], uint16(len(entryExits)))

	anchorOff := headerSize
	for i, ee := range entryExits {
		recOff := 6 + i*4

		if ee.entryX != nil {
			binary.BigEndian.PutUint16(data[recOff:], uint16(anchorOff))
			binary.BigEndian.PutUint16(data[anchorOff:], 1)
			binary.BigEndian.PutUint16(data[anchorOff+2:], uint16(*ee.entryX))
			binary.BigEndian.PutUint16(data[anchorOff+4:], uint16(*ee.entryY))
			anchorOff += 6
		} else {
			binary.BigEndian.PutUint16(data[recOff:], 0)
		}

		if ee.exitX != nil {
			binary.BigEndian.PutUint16(data[recOff+2:], uint16(anchorOff))
			binary.BigEndian.PutUint16(data[anchorOff:], 1)
			binary.BigEndian.PutUint16(data[anchorOff+2:], uint16(*ee.exitX))
			binary.BigEndian.PutUint16(data[anchorOff+4:], uint16(*ee.exitY))
			anchorOff += 6
		} else {
			binary.BigEndian.PutUint16(data[recOff+2:], 0)
		}
	}

	copy(data[headerSize+anchorSize:], coverage)
	return data
}

func int16Ptr(v int16) *int16 {
	return &v
}

func TestCursivePosBasic(t *testing.T) {
	cursivePos := buildCursivePos(
		[]GlyphID{100, 101},
		[]struct {
			entryX, entryY *int16
			exitX, exitY   *int16
		}{
			{nil, nil, int16Ptr(0), int16Ptr(500)},
			{int16Ptr(600), int16Ptr(500), nil, nil},
		},
	)

	subtable, err := parseCursivePos(cursivePos, 0)
	if err != nil {
		t.Fatalf("parseCursivePos failed: %v", err)
	}

	if subtable.Coverage().GetCoverage(100) == NotCovered {
		t.Fatal("glyph 100 not covered")
	}

	records := subtable.EntryExitRecords()
	if len(records) != 2 {
		t.Fatalf("EntryExitRecords() returned %d records, want 2", len(records))
	}
	if records[0].EntryAnchor != nil {
		t.Error("records[0].EntryAnchor should be nil")
	}
	if records[0].ExitAnchor == nil || records[0].ExitAnchor.X != 0 || records[0].ExitAnchor.Y != 500 {
		t.Errorf("records[0].ExitAnchor = %+v, want (0,500)", records[0].ExitAnchor)
	}
	if records[1].EntryAnchor == nil || records[1].EntryAnchor.X != 600 {
		t.Errorf("records[1].EntryAnchor = %+v, want X=600", records[1].EntryAnchor)
	}
}

// contextPosRule represents a rule for building test context pos subtables
type contextPosRule struct {
	input   []GlyphID
	lookups []GPOSLookupRecord
}

func buildContextPosFormat1(
	coverageGlyphs []GlyphID,
	rules [][]contextPosRule,
) []byte {
	coverage := buildCoverageFormat1(coverageGlyphs)

	ruleSets := make([][]byte, len(rules))
	for i, ruleSet := range rules {
		if len(ruleSet) == 0 {
			ruleSets[i] = nil
			continue
		}

		ruleBytes := make([][]byte, len(ruleSet))
		for j, rule := range ruleSet {
			glyphCount := len(rule.input) + 1
			lookupCount := len(rule.lookups)
			ruleSize := 4 + len(rule.input)*2 + lookupCount*4

			ruleData := make([]byte, ruleSize)
			binary.BigEndian.PutUint16(ruleData[0:], uint16(glyphCount))
			binary.BigEndian.PutUint16(ruleData[2:], uint16(lookupCount))

			for k, g := range rule.input {
				binary.BigEndian.PutUint16(ruleData[4+k*2:], uint16(g))
			}

			lookupOff := 4 + len(rule.input)*2
			for k, lr := range rule.lookups {
				binary.BigEndian.PutUint16(ruleData[lookupOff+k*4:], lr.SequenceIndex)
				binary.BigEndian.PutUint16(ruleData[lookupOff+k*4+2:], lr.LookupIndex)
			}

			ruleBytes[j] = ruleData
		}

		ruleSetHeaderSize := 2 + len(ruleBytes)*2
		totalRuleSize := 0
		for _, rb := range ruleBytes {
			totalRuleSize += len(rb)
		}

		ruleSetData := make([]byte, ruleSetHeaderSize+totalRuleSize)
		binary.BigEndian.PutUint16(ruleSetData[0:], uint16(len(ruleBytes)))

		ruleOff := ruleSetHeaderSize
		for j, rb := range ruleBytes {
			binary.BigEndian.PutUint16(ruleSetData[2+j*2:], uint16(ruleOff))
			copy(ruleSetData[ruleOff:], rb)
			ruleOff += len(rb)
		}

		ruleSets[i] = ruleSetData
	}

	headerSize := 6 + len(ruleSets)*2
	totalRuleSetSize := 0
	for _, rs := range ruleSets {
		totalRuleSetSize += len(rs)
	}

	totalSize := headerSize + totalRuleSetSize + len(coverage)
	data := make([]byte, totalSize)

	binary.BigEndian.PutUint16(data[0:], 1)
	binary.BigEndian.PutUint16(data[2:], uint16(headerSize+totalRuleSetSize))
	binary.BigEndian.PutUint16(data[4:], uint16(len(ruleSets)))

	ruleSetOff := headerSize
	for i, rs := range ruleSets {
		if rs == nil {
			binary.BigEndian.PutUint16(data[6+i*2:], 0)
		} else {
			binary.BigEndian.PutUint16(data[6+i*2:], uint16(ruleSetOff))
			copy(data[ruleSetOff:], rs)
			ruleSetOff += len(rs)
		}
	}

	copy(data[headerSize+totalRuleSetSize:], coverage)
	return data
}

func buildContextPosFormat3(
	inputGlyphs [][]GlyphID,
	lookups []GPOSLookupRecord,
) []byte {
	coverages := make([][]byte, len(inputGlyphs))
	for i, glyphs := range inputGlyphs {
		coverages[i] = buildCoverageFormat1(glyphs)
	}

	headerSize := 6 + len(coverages)*2 + len(lookups)*4
	totalCovSize := 0
	for _, c := range coverages {
		totalCovSize += len(c)
	}

	totalSize := headerSize + totalCovSize
	data := make([]byte, totalSize)

	binary.BigEndian.PutUint16(data[0:], 3)
	binary.BigEndian.PutUint16(data[2:], uint16(len(coverages)))
	binary.BigEndian.PutUint16(data[4:], uint16(len(lookups)))

	covOff := headerSize
	for i, c := range coverages {
		binary.BigEndian.PutUint16(data[6+i*2:], uint16(covOff))
		copy(data[covOff:], c)
		covOff += len(c)
	}

	lookupOff := 6 + len(coverages)*2
	for i, lr := range lookups {
		binary.BigEndian.PutUint16(data[lookupOff+i*4:], lr.SequenceIndex)
		binary.BigEndian.PutUint16(data[lookupOff+i*4+2:], lr.LookupIndex)
	}

	return data
}

func TestContextPosFormat1ReachableGlyphs(t *testing.T) {
	contextPos := buildContextPosFormat1(
		[]GlyphID{65},
		[][]contextPosRule{
			{
				{input: []GlyphID{66}, lookups: []GPOSLookupRecord{{SequenceIndex: 0, LookupIndex: 2}}},
			},
		},
	)

	subtable, err := parseContextPos(contextPos, 0, nil)
	if err != nil {
		t.Fatalf("parseContextPos failed: %v", err)
	}

	got := subtable.ReachableInputGlyphs()
	if len(got) != 1 || got[0] != 65 {
		t.Errorf("ReachableInputGlyphs() = %v, want [65]", got)
	}

	refs := subtable.ReferencedLookups()
	if len(refs) != 1 || refs[0] != 2 {
		t.Errorf("ReferencedLookups() = %v, want [2]", refs)
	}
}

func TestContextPosFormat3ReachableGlyphs(t *testing.T) {
	contextPos := buildContextPosFormat3(
		[][]GlyphID{{65}, {66}},
		[]GPOSLookupRecord{{SequenceIndex: 0, LookupIndex: 3}},
	)

	subtable, err := parseContextPos(contextPos, 0, nil)
	if err != nil {
		t.Fatalf("parseContextPos failed: %v", err)
	}

	got := subtable.ReachableInputGlyphs()
	if len(got) != 1 || got[0] != 65 {
		t.Errorf("ReachableInputGlyphs() = %v, want [65]", got)
	}

	refs := subtable.ReferencedLookups()
	if len(refs) != 1 || refs[0] != 3 {
		t.Errorf("ReferencedLookups() = %v, want [3]", refs)
	}
}

// chainContextPosRule represents a rule for building test chain context pos subtables
type chainContextPosRule struct {
	backtrack []GlyphID
	input     []GlyphID
	lookahead []GlyphID
	lookups   []GPOSLookupRecord
}

func buildChainContextPosFormat1(
	coverageGlyphs []GlyphID,
	rules [][]chainContextPosRule,
) []byte {
	coverage := buildCoverageFormat1(coverageGlyphs)

	ruleSets := make([][]byte, len(rules))
	for i, ruleSet := range rules {
		if len(ruleSet) == 0 {
			ruleSets[i] = nil
			continue
		}

		ruleBytes := make([][]byte, len(ruleSet))
		for j, rule := range ruleSet {
			glyphCount := len(rule.input) + 1
			ruleSize := 2 + len(rule.backtrack)*2 + 2 + len(rule.input)*2 + 2 + len(rule.lookahead)*2 + 2 + len(rule.lookups)*4

			ruleData := make([]byte, ruleSize)
			off := 0

			binary.BigEndian.PutUint16(ruleData[off:], uint16(len(rule.backtrack)))
			off += 2
			for k, g := range rule.backtrack {
				binary.BigEndian.PutUint16(ruleData[off+k*2:], uint16(g))
			}
			off += len(rule.backtrack) * 2

			binary.BigEndian.PutUint16(ruleData[off:], uint16(glyphCount))
			off += 2
			for k, g := range rule.input {
				binary.BigEndian.PutUint16(ruleData[off+k*2:], uint16(g))
			}
			off += len(rule.input) * 2

			binary.BigEndian.PutUint16(ruleData[off:], uint16(len(rule.lookahead)))
			off += 2
			for k, g := range rule.lookahead {
				binary.BigEndian.PutUint16(ruleData[off+k*2:], uint16(g))
			}
			off += len(rule.lookahead) * 2

			binary.BigEndian.PutUint16(ruleData[off:], uint16(len(rule.lookups)))
			off += 2
			for k, lr := range rule.lookups {
				binary.BigEndian.PutUint16(ruleData[off+k*4:], lr.SequenceIndex)
				binary.BigEndian.PutUint16(ruleData[off+k*4+2:], lr.LookupIndex)
			}

			ruleBytes[j] = ruleData
		}

		ruleSetHeaderSize := 2 + len(ruleBytes)*2
		totalRuleSize := 0
		for _, rb := range ruleBytes {
			totalRuleSize += len(rb)
		}

		ruleSetData := make([]byte, ruleSetHeaderSize+totalRuleSize)
		binary.BigEndian.PutUint16(ruleSetData[0:], uint16(len(ruleBytes)))

		ruleOff := ruleSetHeaderSize
		for j, rb := range ruleBytes {
			binary.BigEndian.PutUint16(ruleSetData[2+j*2:], uint16(ruleOff))
			copy(ruleSetData[ruleOff:], rb)
			ruleOff += len(rb)
		}

		ruleSets[i] = ruleSetData
	}

	headerSize := 6 + len(ruleSets)*2
	totalRuleSetSize := 0
	for _, rs := range ruleSets {
		totalRuleSetSize += len(rs)
	}

	totalSize := headerSize + totalRuleSetSize + len(coverage)
	data := make([]byte, totalSize)

	binary.BigEndian.PutUint16(data[0:], 1)
	binary.BigEndian.PutUint16(data[2:], uint16(headerSize+totalRuleSetSize))
	binary.BigEndian.PutUint16(data[4:], uint16(len(ruleSets)))

	ruleSetOff := headerSize
	for i, rs := range ruleSets {
		if rs == nil {
			binary.BigEndian.PutUint16(data[6+i*2:], 0)
		} else {
			binary.BigEndian.PutUint16(data[6+i*2:], uint16(ruleSetOff))
			copy(data[ruleSetOff:], rs)
			ruleSetOff += len(rs)
		}
	}

	copy(data[headerSize+totalRuleSetSize:], coverage)
	return data
}

func buildChainContextPosFormat2(coverageGlyphs []GlyphID, backtrackClassDef, inputClassDef, lookaheadClassDef []byte, ruleSets [][]byte) []byte {
	coverage := buildCoverageFormat1(coverageGlyphs)

	headerSize := 12 + len(ruleSets)*2
	offset := headerSize

	coverageOff := offset
	offset += len(coverage)
	backtrackOff := offset
	offset += len(backtrackClassDef)
	inputOff := offset
	offset += len(inputClassDef)
	lookaheadOff := offset
	offset += len(lookaheadClassDef)

	ruleSetStart := offset
	offset = ruleSetStart
	ruleSetOffsets := make([]int, len(ruleSets))
	for i, rs := range ruleSets {
		ruleSetOffsets[i] = offset
		offset += len(rs)
	}

	data := make([]byte, offset)
	binary.BigEndian.PutUint16(data[0:], 2)
	binary.BigEndian.PutUint16(data[2:], uint16(coverageOff))
	binary.BigEndian.PutUint16(data[4:], uint16(backtrackOff))
	binary.BigEndian.PutUint16(data[6:], uint16(inputOff))
	binary.BigEndian.PutUint16(data[8:], uint16(lookaheadOff))
	binary.BigEndian.PutUint16(data[10:], uint16(len(ruleSets)))

	for i, off := range ruleSetOffsets {
		binary.BigEndian.PutUint16(data[12+i*2:], uint16(off))
	}

	copy(data[coverageOff:], coverage)
	copy(data[backtrackOff:], backtrackClassDef)
	copy(data[inputOff:], inputClassDef)
	copy(data[lookaheadOff:], lookaheadClassDef)
	for i, rs := range ruleSets {
		copy(data[ruleSetOffsets[i]:], rs)
	}

	return data
}

func buildChainContextPosFormat3(
	backtrackGlyphs [][]GlyphID,
	inputGlyphs [][]GlyphID,
	lookaheadGlyphs [][]GlyphID,
	lookups []GPOSLookupRecord,
) []byte {
	backtrackCoverages := make([][]byte, len(backtrackGlyphs))
	for i, glyphs := range backtrackGlyphs {
		backtrackCoverages[i] = buildCoverageFormat1(glyphs)
	}

	inputCoverages := make([][]byte, len(inputGlyphs))
	for i, glyphs := range inputGlyphs {
		inputCoverages[i] = buildCoverageFormat1(glyphs)
	}

	lookaheadCoverages := make([][]byte, len(lookaheadGlyphs))
	for i, glyphs := range lookaheadGlyphs {
		lookaheadCoverages[i] = buildCoverageFormat1(glyphs)
	}

	headerSize := 2 + 2 + len(backtrackCoverages)*2 + 2 + len(inputCoverages)*2 + 2 + len(lookaheadCoverages)*2 + 2 + len(lookups)*4

	totalCovSize := 0
	for _, c := range backtrackCoverages {
		totalCovSize += len(c)
	}
	for _, c := range inputCoverages {
		totalCovSize += len(c)
	}
	for _, c := range lookaheadCoverages {
		totalCovSize += len(c)
	}

	totalSize := headerSize + totalCovSize
	data := make([]byte, totalSize)

	off := 0
	binary.BigEndian.PutUint16(data[off:], 3)
	off += 2

	binary.BigEndian.PutUint16(data[off:], uint16(len(backtrackCoverages)))
	off += 2

	covOff := headerSize
	for i, c := range backtrackCoverages {
		binary.BigEndian.PutUint16(data[off+i*2:], uint16(covOff))
		copy(data[covOff:], c)
		covOff += len(c)
	}
	off += len(backtrackCoverages) * 2

	binary.BigEndian.PutUint16(data[off:], uint16(len(inputCoverages)))
	off += 2
	for i, c := range inputCoverages {
		binary.BigEndian.PutUint16(data[off+i*2:], uint16(covOff))
		copy(data[covOff:], c)
		covOff += len(c)
	}
	off += len(inputCoverages) * 2

	binary.BigEndian.PutUint16(data[off:], uint16(len(lookaheadCoverages)))
	off += 2
	for i, c := range lookaheadCoverages {
		binary.BigEndian.PutUint16(data[off+i*2:], uint16(covOff))
		copy(data[covOff:], c)
		covOff += len(c)
	}
	off += len(lookaheadCoverages) * 2

	binary.BigEndian.PutUint16(data[off:], uint16(len(lookups)))
	off += 2
	for i, lr := range lookups {
		binary.BigEndian.PutUint16(data[off+i*4:], lr.SequenceIndex)
		binary.BigEndian.PutUint16(data[off+i*4+2:], lr.LookupIndex)
	}

	return data
}

func TestChainContextPosFormat1ReachableGlyphs(t *testing.T) {
	chainContextPos := buildChainContextPosFormat1(
		[]GlyphID{65},
		[][]chainContextPosRule{
			{
				{
					backtrack: []GlyphID{64},
					input:     []GlyphID{66},
					lookahead: []GlyphID{67},
					lookups:   []GPOSLookupRecord{{SequenceIndex: 0, LookupIndex: 4}},
				},
			},
		},
	)

	subtable, err := parseChainContextPos(chainContextPos, 0, nil)
	if err != nil {
		t.Fatalf("parseChainContextPos failed: %v", err)
	}

	got := subtable.ReachableInputGlyphs()
	if len(got) != 1 || got[0] != 65 {
		t.Errorf("ReachableInputGlyphs() = %v, want [65]", got)
	}

	refs := subtable.ReferencedLookups()
	if len(refs) != 1 || refs[0] != 4 {
		t.Errorf("ReferencedLookups() = %v, want [4]", refs)
	}
}

func TestChainContextPosFormat2ReachableGlyphs(t *testing.T) {
	backtrackClassDef := buildClassDefFormat1(64, []uint16{1})
	inputClassDef := buildClassDefFormat1(65, []uint16{1})
	lookaheadClassDef := buildClassDefFormat1(67, []uint16{1})
	rule := chainContextPosRuleBytes(chainContextPosRule{input: []GlyphID{1}, lookups: []GPOSLookupRecord{{SequenceIndex: 0, LookupIndex: 5}}})
	ruleSet := wrapRuleSet(rule)
	subtableData := buildChainContextPosFormat2([]GlyphID{65}, backtrackClassDef, inputClassDef, lookaheadClassDef, [][]byte{ruleSet})

	subtable, err := parseChainContextPos(subtableData, 0, nil)
	if err != nil {
		t.Fatalf("parseChainContextPos failed: %v", err)
	}

	got := subtable.ReachableInputGlyphs()
	if len(got) != 1 || got[0] != 65 {
		t.Errorf("ReachableInputGlyphs() = %v, want [65]", got)
	}
}

// chainContextPosRuleBytes builds the raw bytes for a single ChainRule.
func chainContextPosRuleBytes(rule chainContextPosRule) []byte {
	glyphCount := len(rule.input) + 1
	ruleSize := 2 + len(rule.backtrack)*2 + 2 + len(rule.input)*2 + 2 + len(rule.lookahead)*2 + 2 + len(rule.lookups)*4

	data := make([]byte, ruleSize)
	off := 0
	binary.BigEndian.PutUint16(data[off:], uint16(len(rule.backtrack)))
	off += 2
	for k, g := range rule.backtrack {
		binary.BigEndian.PutUint16(data[off+k*2:], uint16(g))
	}
	off += len(rule.backtrack) * 2

	binary.BigEndian.PutUint16(data[off:], uint16(glyphCount))
	off += 2
	for k, g := range rule.input {
		binary.BigEndian.PutUint16(data[off+k*2:], uint16(g))
	}
	off += len(rule.input) * 2

	binary.BigEndian.PutUint16(data[off:], uint16(len(rule.lookahead)))
	off += 2
	for k, g := range rule.lookahead {
		binary.BigEndian.PutUint16(data[off+k*2:], uint16(g))
	}
	off += len(rule.lookahead) * 2

	binary.BigEndian.PutUint16(data[off:], uint16(len(rule.lookups)))
	off += 2
	for k, lr := range rule.lookups {
		binary.BigEndian.PutUint16(data[off+k*4:], lr.SequenceIndex)
		binary.BigEndian.PutUint16(data[off+k*4+2:], lr.LookupIndex)
	}

	return data
}

func wrapRuleSet(rules ...[]byte) []byte {
	headerSize := 2 + len(rules)*2
	totalSize := headerSize
	for _, r := range rules {
		totalSize += len(r)
	}

	data := make([]byte, totalSize)
	binary.BigEndian.PutUint16(data[0:], uint16(len(rules)))

	offset := headerSize
	for i, r := range rules {
		binary.BigEndian.PutUint16(data[2+i*2:], uint16(offset))
		copy(data[offset:], r)
		offset += len(r)
	}
	return data
}

func TestChainContextPosFormat3ReachableGlyphs(t *testing.T) {
	chainContextPos := buildChainContextPosFormat3(
		[][]GlyphID{{64}},
		[][]GlyphID{{65}},
		[][]GlyphID{{67}},
		[]GPOSLookupRecord{{SequenceIndex: 0, LookupIndex: 6}},
	)

	subtable, err := parseChainContextPos(chainContextPos, 0, nil)
	if err != nil {
		t.Fatalf("parseChainContextPos failed: %v", err)
	}

	got := subtable.ReachableInputGlyphs()
	if len(got) != 1 || got[0] != 65 {
		t.Errorf("ReachableInputGlyphs() = %v, want [65]", got)
	}

	refs := subtable.ReferencedLookups()
	if len(refs) != 1 || refs[0] != 6 {
		t.Errorf("ReferencedLookups() = %v, want [6]", refs)
	}
}

func buildExtensionPosSubtable(extensionLookupType uint16, subtable []byte) []byte {
	data := make([]byte, 8+len(subtable))
	binary.BigEndian.PutUint16(data[0:], 1)
	binary.BigEndian.PutUint16(data[2:], extensionLookupType)
	binary.BigEndian.PutUint32(data[4:], 8)
	copy(data[8:], subtable)
	return data
}

func TestExtensionPosResolvesToUnderlyingType(t *testing.T) {
	singlePos := buildSinglePosFormat1([]GlyphID{65, 66, 67}, ValueFormatXAdvance, ValueRecord{XAdvance: -50})
	extensionSubtable := buildExtensionPosSubtable(GPOSTypeSingle, singlePos)
	lookup := buildGPOSLookup(GPOSTypeExtension, [][]byte{extensionSubtable})
	gposData := buildGPOSTable([][]byte{lookup})

	gpos, err := ParseGPOS(gposData)
	if err != nil {
		t.Fatalf("ParseGPOS failed: %v", err)
	}

	if gpos.NumLookups() != 1 {
		t.Fatalf("NumLookups = %d, want 1", gpos.NumLookups())
	}

	subtables := gpos.GetLookup(0).Subtables()
	if len(subtables) != 1 {
		t.Fatalf("expected 1 subtable, got %d", len(subtables))
	}
	if _, ok := subtables[0].(*SinglePos); !ok {
		t.Fatalf("subtable type = %T, want *SinglePos", subtables[0])
	}
}
