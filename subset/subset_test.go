package subset

import (
	"os"
	"testing"

	"github.com/textmetal/otsubset/internal/testutil"
	"github.com/textmetal/otsubset/ot"
)

func findTestFont(name string) string {
	return testutil.FindTestFont(name)
}

func TestSubsetBasic(t *testing.T) {
	fontPath := findTestFont("Roboto-Regular.ttf")
	if fontPath == "" {
		t.Skip("Roboto-Regular.ttf not found")
	}

	data, err := os.ReadFile(fontPath)
	if err != nil {
		t.Fatalf("Failed to read font: %v", err)
	}

	font, err := ot.ParseFont(data, 0)
	if err != nil {
		t.Fatalf("Failed to parse font: %v", err)
	}

	originalSize := len(data)
	t.Logf("Original font size: %d bytes", originalSize)

	// Subset for "Hello"
	result, err := SubsetString(font, "Hello")
	if err != nil {
		t.Fatalf("Failed to subset: %v", err)
	}

	t.Logf("Subset font size: %d bytes (%.1f%% of original)",
		len(result), float64(len(result))*100/float64(originalSize))

	// Verify the subset is smaller
	if len(result) >= originalSize {
		t.Errorf("Subset font is not smaller: %d >= %d", len(result), originalSize)
	}

	// Verify the subset can be parsed
	subFont, err := ot.ParseFont(result, 0)
	if err != nil {
		t.Fatalf("Failed to parse subset font: %v", err)
	}

	// Verify numGlyphs is reduced
	t.Logf("Original numGlyphs: %d, Subset numGlyphs: %d",
		font.NumGlyphs(), subFont.NumGlyphs())

	if subFont.NumGlyphs() >= font.NumGlyphs() {
		t.Errorf("Subset should have fewer glyphs: %d >= %d",
			subFont.NumGlyphs(), font.NumGlyphs())
	}
}

func TestSubsetWithLigatures(t *testing.T) {
	fontPath := findTestFont("Roboto-Regular.ttf")
	if fontPath == "" {
		t.Skip("Roboto-Regular.ttf not found")
	}

	data, err := os.ReadFile(fontPath)
	if err != nil {
		t.Fatalf("Failed to read font: %v", err)
	}

	font, err := ot.ParseFont(data, 0)
	if err != nil {
		t.Fatalf("Failed to parse font: %v", err)
	}

	// Subset for "office" which should include the ffi ligature
	input := NewInput()
	input.AddString("office")

	plan, err := CreatePlan(font, input)
	if err != nil {
		t.Fatalf("Failed to create plan: %v", err)
	}

	// Get the glyph set to verify ligature closure
	glyphSet := plan.GlyphSet()
	t.Logf("Glyph set size: %d", len(glyphSet))

	// The word "office" has letters: o, f, f, i, c, e
	// With GSUB ligature closure, we should also get the ffi ligature glyph (446)

	// Look up the original glyphs
	cmap := plan.Cmap()
	oGlyph, _ := cmap.Lookup('o')
	fGlyph, _ := cmap.Lookup('f')
	iGlyph, _ := cmap.Lookup('i')
	cGlyph, _ := cmap.Lookup('c')
	eGlyph, _ := cmap.Lookup('e')

	t.Logf("Glyph IDs: o=%d, f=%d, i=%d, c=%d, e=%d", oGlyph, fGlyph, iGlyph, cGlyph, eGlyph)

	// Check if the ffi ligature (glyph 446 in Roboto) is included
	ffiLigature := ot.GlyphID(446)
	if glyphSet[ffiLigature] {
		t.Logf("ffi ligature (glyph %d) is included in subset", ffiLigature)
	} else {
		t.Logf("Warning: ffi ligature (glyph %d) is NOT in subset (GSUB closure may need improvement)", ffiLigature)
	}

	result, err := plan.Execute()
	if err != nil {
		t.Fatalf("Failed to execute subset: %v", err)
	}

	t.Logf("Subset size: %d bytes", len(result))

	// Verify the subset can be parsed
	subFont, err := ot.ParseFont(result, 0)
	if err != nil {
		t.Fatalf("Failed to parse subset font: %v", err)
	}

	t.Logf("Subset numGlyphs: %d", subFont.NumGlyphs())
}

func TestSubsetPlan(t *testing.T) {
	fontPath := findTestFont("Roboto-Regular.ttf")
	if fontPath == "" {
		t.Skip("Roboto-Regular.ttf not found")
	}

	data, err := os.ReadFile(fontPath)
	if err != nil {
		t.Fatalf("Failed to read font: %v", err)
	}

	font, err := ot.ParseFont(data, 0)
	if err != nil {
		t.Fatalf("Failed to parse font: %v", err)
	}

	input := NewInput()
	input.AddString("ABC")

	plan, err := CreatePlan(font, input)
	if err != nil {
		t.Fatalf("Failed to create plan: %v", err)
	}

	t.Logf("Output glyphs: %d", plan.NumOutputGlyphs())
	t.Logf("Glyph set size: %d", len(plan.GlyphSet()))

	// Verify we have at least .notdef + A, B, C
	if plan.NumOutputGlyphs() < 4 {
		t.Errorf("Expected at least 4 glyphs (.notdef + A, B, C), got %d", plan.NumOutputGlyphs())
	}

	// Verify .notdef is always included
	if !plan.GlyphSet()[0] {
		t.Error(".notdef (GID 0) should always be included")
	}

	// Test glyph mapping
	cmap := plan.Cmap()
	aGlyph, ok := cmap.Lookup('A')
	if !ok {
		t.Fatal("'A' not in cmap")
	}

	newGID, ok := plan.MapGlyph(aGlyph)
	if !ok {
		t.Errorf("'A' (GID %d) should be mapped", aGlyph)
	} else {
		t.Logf("'A' mapping: %d -> %d", aGlyph, newGID)
	}

	// Verify reverse mapping
	oldGID, ok := plan.OldGlyph(newGID)
	if !ok || oldGID != aGlyph {
		t.Errorf("Reverse mapping failed: %d -> %d (expected %d)", newGID, oldGID, aGlyph)
	}
}

func TestSubsetRetainGIDs(t *testing.T) {
	fontPath := findTestFont("Roboto-Regular.ttf")
	if fontPath == "" {
		t.Skip("Roboto-Regular.ttf not found")
	}

	data, err := os.ReadFile(fontPath)
	if err != nil {
		t.Fatalf("Failed to read font: %v", err)
	}

	font, err := ot.ParseFont(data, 0)
	if err != nil {
		t.Fatalf("Failed to parse font: %v", err)
	}

	input := NewInput()
	input.AddString("A")
	input.Flags = FlagRetainGIDs

	plan, err := CreatePlan(font, input)
	if err != nil {
		t.Fatalf("Failed to create plan: %v", err)
	}

	cmap := plan.Cmap()
	aGlyph, _ := cmap.Lookup('A')

	// With RetainGIDs, the glyph ID should be unchanged
	newGID, ok := plan.MapGlyph(aGlyph)
	if !ok {
		t.Fatalf("'A' (GID %d) should be mapped", aGlyph)
	}

	if newGID != aGlyph {
		t.Errorf("With FlagRetainGIDs, GID should be unchanged: %d != %d", newGID, aGlyph)
	}

	t.Logf("'A' mapping with RetainGIDs: %d -> %d", aGlyph, newGID)
	t.Logf("Output glyphs: %d", plan.NumOutputGlyphs())
}

// TestSubsetRetainsMetrics verifies that hmtx advances for retained glyphs
// survive subsetting unchanged (no shaping involved, just a direct
// before/after hmtx comparison through the glyph map).
func TestSubsetRetainsMetrics(t *testing.T) {
	fontPath := findTestFont("Roboto-Regular.ttf")
	if fontPath == "" {
		t.Skip("Roboto-Regular.ttf not found")
	}

	data, err := os.ReadFile(fontPath)
	if err != nil {
		t.Fatalf("Failed to read font: %v", err)
	}

	font, err := ot.ParseFont(data, 0)
	if err != nil {
		t.Fatalf("Failed to parse font: %v", err)
	}

	input := NewInput()
	input.AddString("Hello")

	plan, err := CreatePlan(font, input)
	if err != nil {
		t.Fatalf("Failed to create plan: %v", err)
	}

	result, err := plan.Execute()
	if err != nil {
		t.Fatalf("Failed to execute plan: %v", err)
	}

	subFont, err := ot.ParseFont(result, 0)
	if err != nil {
		t.Fatalf("Failed to parse subset font: %v", err)
	}
	subHmtxData, err := subFont.TableData(ot.TagHmtx)
	if err != nil {
		t.Fatalf("subset font missing hmtx: %v", err)
	}
	subHheaData, err := subFont.TableData(ot.TagHhea)
	if err != nil {
		t.Fatalf("subset font missing hhea: %v", err)
	}
	subHhea, err := ot.ParseHhea(subHheaData)
	if err != nil {
		t.Fatalf("Failed to parse subset hhea: %v", err)
	}
	subHmtx, err := ot.ParseHmtx(subHmtxData, int(subHhea.NumberOfHMetrics), subFont.NumGlyphs())
	if err != nil {
		t.Fatalf("Failed to parse subset hmtx: %v", err)
	}

	origHmtx := plan.Hmtx()
	for _, r := range "Hello" {
		oldGID, ok := plan.Cmap().Lookup(ot.Codepoint(r))
		if !ok {
			t.Fatalf("%q not in source cmap", r)
		}
		newGID, ok := plan.MapGlyph(oldGID)
		if !ok {
			t.Fatalf("%q glyph %d not retained in subset", r, oldGID)
		}
		wantAdvance := origHmtx.GetAdvanceWidth(oldGID)
		gotAdvance := subHmtx.GetAdvanceWidth(newGID)
		if gotAdvance != wantAdvance {
			t.Errorf("%q: advance width = %d, want %d", r, gotAdvance, wantAdvance)
		}
	}
}

// TestSubsetRoundtrip verifies that subset fonts can be re-parsed and all characters are present.
func TestSubsetRoundtrip(t *testing.T) {
	fontPath := findTestFont("Roboto-Regular.ttf")
	if fontPath == "" {
		t.Skip("Roboto-Regular.ttf not found")
	}

	data, err := os.ReadFile(fontPath)
	if err != nil {
		t.Fatalf("Failed to read font: %v", err)
	}

	font, err := ot.ParseFont(data, 0)
	if err != nil {
		t.Fatalf("Failed to parse font: %v", err)
	}

	text := "Hello, World! ABCDEFGabcdefg 0123456789"

	// Create subset
	result, err := SubsetString(font, text)
	if err != nil {
		t.Fatalf("Failed to subset: %v", err)
	}

	// Parse subset
	subFont, err := ot.ParseFont(result, 0)
	if err != nil {
		t.Fatalf("Failed to parse subset font: %v", err)
	}

	// Verify all characters are in the subset cmap
	cmapData, err := subFont.TableData(ot.TagCmap)
	if err != nil {
		t.Fatalf("Failed to get cmap: %v", err)
	}

	cmap, err := ot.ParseCmap(cmapData)
	if err != nil {
		t.Fatalf("Failed to parse cmap: %v", err)
	}

	missing := []rune{}
	for _, r := range text {
		if _, ok := cmap.Lookup(ot.Codepoint(r)); !ok {
			missing = append(missing, r)
		}
	}

	if len(missing) > 0 {
		t.Errorf("Missing characters in subset: %q", string(missing))
	}

	t.Logf("Roundtrip OK: %d chars, %d bytes -> %d bytes",
		len(text), len(data), len(result))
}

// TestSubsetAllLigatures verifies ligature glyph closure and table
// retention for all standard fi/fl/ffi/ffl ligatures, without shaping.
func TestSubsetAllLigatures(t *testing.T) {
	fontPath := findTestFont("Roboto-Regular.ttf")
	if fontPath == "" {
		t.Skip("Roboto-Regular.ttf not found")
	}

	data, err := os.ReadFile(fontPath)
	if err != nil {
		t.Fatalf("Failed to read font: %v", err)
	}

	font, err := ot.ParseFont(data, 0)
	if err != nil {
		t.Fatalf("Failed to parse font: %v", err)
	}

	input := NewInput()
	input.AddString("fi fl ffi ffl")

	plan, err := CreatePlan(font, input)
	if err != nil {
		t.Fatalf("Failed to create plan: %v", err)
	}

	result, err := plan.Execute()
	if err != nil {
		t.Fatalf("Failed to execute subset: %v", err)
	}

	subFont, err := ot.ParseFont(result, 0)
	if err != nil {
		t.Fatalf("Failed to parse subset font: %v", err)
	}

	if !subFont.HasTable(ot.TagGSUB) {
		t.Error("Subset should have GSUB table for ligatures")
	}

	t.Logf("ligature subset: %d glyphs retained", len(plan.GlyphSet()))
}

// TestInstancingDropsVariationTables tests that variation tables are dropped when axes are pinned.
func TestInstancingDropsVariationTables(t *testing.T) {
	fontPath := findTestFont("Roboto-Variable.ttf")
	if fontPath == "" {
		t.Skip("Roboto-Variable.ttf not found")
	}

	data, err := os.ReadFile(fontPath)
	if err != nil {
		t.Fatalf("Failed to read font: %v", err)
	}

	font, err := ot.ParseFont(data, 0)
	if err != nil {
		t.Fatalf("Failed to parse font: %v", err)
	}

	// Verify original font has variation tables
	variationTables := []ot.Tag{ot.TagFvar, ot.TagHvar}
	for _, tag := range variationTables {
		if !font.HasTable(tag) {
			t.Skipf("Font has no %v table", tag)
		}
	}

	// First subset WITHOUT pinning - should keep variation tables (with FlagPassUnrecognized)
	input1 := NewInput()
	input1.AddString("Hello")
	input1.Flags = FlagPassUnrecognized
	plan1, err := CreatePlan(font, input1)
	if err != nil {
		t.Fatalf("Failed to create plan: %v", err)
	}
	result1, err := plan1.Execute()
	if err != nil {
		t.Fatalf("Failed to execute plan: %v", err)
	}
	subFont1, _ := ot.ParseFont(result1, 0)

	// Should have fvar table (not instanced)
	if !subFont1.HasTable(ot.TagFvar) {
		t.Error("Non-instanced subset with FlagPassUnrecognized should have fvar table")
	}

	// Now subset WITH pinning all axes - should drop variation tables
	input2 := NewInput()
	input2.AddString("Hello")
	input2.Flags = FlagPassUnrecognized
	input2.PinAllAxesToDefault(font)

	plan2, err := CreatePlan(font, input2)
	if err != nil {
		t.Fatalf("Failed to create plan: %v", err)
	}
	result2, err := plan2.Execute()
	if err != nil {
		t.Fatalf("Failed to execute plan: %v", err)
	}
	subFont2, _ := ot.ParseFont(result2, 0)

	// Should NOT have variation tables
	if subFont2.HasTable(ot.TagFvar) {
		t.Error("Instanced subset should NOT have fvar table")
	}
	if subFont2.HasTable(ot.TagHvar) {
		t.Error("Instanced subset should NOT have HVAR table")
	}
	if subFont2.HasTable(ot.TagAvar) {
		t.Error("Instanced subset should NOT have avar table")
	}

	t.Logf("Non-instanced: %d bytes, Instanced: %d bytes", len(result1), len(result2))
	t.Logf("Saved: %d bytes", len(result1)-len(result2))
}

// TestInstancingAppliesHVAR tests that HVAR deltas are baked into hmtx
// advances when instancing, by comparing the plan's own instanced-advance
// computation against the hmtx table actually written into the output.
func TestInstancingAppliesHVAR(t *testing.T) {
	fontPath := findTestFont("Roboto-Variable.ttf")
	if fontPath == "" {
		t.Skip("Roboto-Variable.ttf not found")
	}

	data, err := os.ReadFile(fontPath)
	if err != nil {
		t.Fatalf("Failed to read font: %v", err)
	}

	font, err := ot.ParseFont(data, 0)
	if err != nil {
		t.Fatalf("Failed to parse font: %v", err)
	}

	weights := []float32{100, 400, 700, 900}

	for _, weight := range weights {
		t.Run(fancyWeightName(weight), func(t *testing.T) {
			input := NewInput()
			input.AddString("Hello")
			input.PinAxisLocation(ot.TagAxisWeight, weight)

			plan, err := CreatePlan(font, input)
			if err != nil {
				t.Fatalf("Failed to create plan: %v", err)
			}
			if !plan.IsInstanced() {
				t.Fatal("Plan should be marked as instanced")
			}

			result, err := plan.Execute()
			if err != nil {
				t.Fatalf("Failed to execute plan: %v", err)
			}

			subFont, err := ot.ParseFont(result, 0)
			if err != nil {
				t.Fatalf("Failed to parse subset font: %v", err)
			}
			subHmtxData, err := subFont.TableData(ot.TagHmtx)
			if err != nil {
				t.Fatalf("subset font missing hmtx: %v", err)
			}
			subHheaData, err := subFont.TableData(ot.TagHhea)
			if err != nil {
				t.Fatalf("subset font missing hhea: %v", err)
			}
			subHhea, err := ot.ParseHhea(subHheaData)
			if err != nil {
				t.Fatalf("Failed to parse subset hhea: %v", err)
			}
			subHmtx, err := ot.ParseHmtx(subHmtxData, int(subHhea.NumberOfHMetrics), subFont.NumGlyphs())
			if err != nil {
				t.Fatalf("Failed to parse subset hmtx: %v", err)
			}

			for _, r := range "Hello" {
				oldGID, ok := plan.Cmap().Lookup(ot.Codepoint(r))
				if !ok {
					t.Fatalf("%q not in cmap", r)
				}
				newGID, ok := plan.MapGlyph(oldGID)
				if !ok {
					t.Fatalf("%q glyph %d not retained", r, oldGID)
				}
				want := plan.GetInstancedAdvance(oldGID)
				got := subHmtx.GetAdvanceWidth(newGID)
				if got != want {
					t.Errorf("%q at wght=%.0f: advance = %d, want %d (plan's own instanced value)", r, weight, got, want)
				}
			}
		})
	}
}

func fancyWeightName(w float32) string {
	switch {
	case w < 200:
		return "weight100"
	case w < 500:
		return "weight400"
	case w < 800:
		return "weight700"
	default:
		return "weight900"
	}
}

// TestPinAxisMethods tests the Input pin axis methods.
func TestPinAxisMethods(t *testing.T) {
	fontPath := findTestFont("Roboto-Variable.ttf")
	if fontPath == "" {
		t.Skip("Roboto-Variable.ttf not found")
	}

	data, err := os.ReadFile(fontPath)
	if err != nil {
		t.Fatalf("Failed to read font: %v", err)
	}

	font, err := ot.ParseFont(data, 0)
	if err != nil {
		t.Fatalf("Failed to parse font: %v", err)
	}

	// Test PinAxisLocation
	t.Run("PinAxisLocation", func(t *testing.T) {
		input := NewInput()
		input.PinAxisLocation(ot.TagAxisWeight, 700)

		if !input.HasPinnedAxes() {
			t.Error("HasPinnedAxes should return true")
		}

		pinnedAxes := input.PinnedAxes()
		if pinnedAxes[ot.TagAxisWeight] != 700 {
			t.Errorf("PinnedAxes[wght] = %v, expected 700", pinnedAxes[ot.TagAxisWeight])
		}

		if input.IsFullyInstanced(font) {
			t.Error("Should not be fully instanced (only one axis pinned)")
		}
	})

	// Test PinAxisToDefault
	t.Run("PinAxisToDefault", func(t *testing.T) {
		input := NewInput()
		ok := input.PinAxisToDefault(font, ot.TagAxisWeight)
		if !ok {
			t.Fatal("PinAxisToDefault should return true")
		}

		pinnedAxes := input.PinnedAxes()
		// Roboto-Variable default weight is 400
		if pinnedAxes[ot.TagAxisWeight] != 400 {
			t.Errorf("Default weight = %v, expected 400", pinnedAxes[ot.TagAxisWeight])
		}
	})

	// Test PinAllAxesToDefault
	t.Run("PinAllAxesToDefault", func(t *testing.T) {
		input := NewInput()
		ok := input.PinAllAxesToDefault(font)
		if !ok {
			t.Fatal("PinAllAxesToDefault should return true")
		}

		if !input.HasPinnedAxes() {
			t.Error("HasPinnedAxes should return true")
		}

		if !input.IsFullyInstanced(font) {
			t.Error("Should be fully instanced (all axes pinned)")
		}
	})
}

// TestFlagDropLayoutTables tests that layout tables are excluded when flag is set.
func TestFlagDropLayoutTables(t *testing.T) {
	fontPath := findTestFont("Roboto-Regular.ttf")
	if fontPath == "" {
		t.Skip("Roboto-Regular.ttf not found")
	}

	data, err := os.ReadFile(fontPath)
	if err != nil {
		t.Fatalf("Failed to read font: %v", err)
	}

	font, err := ot.ParseFont(data, 0)
	if err != nil {
		t.Fatalf("Failed to parse font: %v", err)
	}

	// Verify original font has layout tables
	if !font.HasTable(ot.TagGSUB) {
		t.Skip("Font has no GSUB table")
	}
	if !font.HasTable(ot.TagGPOS) {
		t.Skip("Font has no GPOS table")
	}

	// First, subset WITHOUT the flag - should have GSUB/GPOS
	input1 := NewInput()
	input1.AddString("AVTofi")
	plan1, err := CreatePlan(font, input1)
	if err != nil {
		t.Fatalf("Failed to create plan: %v", err)
	}
	result1, err := plan1.Execute()
	if err != nil {
		t.Fatalf("Failed to subset: %v", err)
	}
	subFont1, _ := ot.ParseFont(result1, 0)

	// Should have layout tables
	if !subFont1.HasTable(ot.TagGSUB) && !subFont1.HasTable(ot.TagGPOS) {
		t.Log("Warning: No layout tables in first subset (may be OK if no lookups apply)")
	}

	// Now subset WITH FlagDropLayoutTables - should NOT have GSUB/GPOS/GDEF
	input2 := NewInput()
	input2.AddString("AVTofi")
	input2.Flags = FlagDropLayoutTables
	plan2, err := CreatePlan(font, input2)
	if err != nil {
		t.Fatalf("Failed to create plan: %v", err)
	}
	result2, err := plan2.Execute()
	if err != nil {
		t.Fatalf("Failed to subset: %v", err)
	}
	subFont2, _ := ot.ParseFont(result2, 0)

	// Should NOT have layout tables
	if subFont2.HasTable(ot.TagGSUB) {
		t.Error("Subset with FlagDropLayoutTables should NOT have GSUB table")
	}
	if subFont2.HasTable(ot.TagGPOS) {
		t.Error("Subset with FlagDropLayoutTables should NOT have GPOS table")
	}
	if subFont2.HasTable(ot.TagGDEF) {
		t.Error("Subset with FlagDropLayoutTables should NOT have GDEF table")
	}

	// Size comparison
	t.Logf("With layout tables: %d bytes", len(result1))
	t.Logf("Without layout tables: %d bytes", len(result2))
	t.Logf("Saved: %d bytes (%.1f%%)", len(result1)-len(result2), 100*float64(len(result1)-len(result2))/float64(len(result1)))

	// Subset without layout tables should be smaller
	if len(result2) >= len(result1) {
		t.Errorf("Subset without layout tables should be smaller: %d >= %d", len(result2), len(result1))
	}
}
