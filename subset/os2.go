package subset

import (
	"encoding/binary"

	"github.com/textmetal/otsubset/ot"
)

// unicodeRangeBlock maps a codepoint range to its OS/2 ulUnicodeRange bit,
// per the table in the OpenType OS/2 spec. This lists the common blocks a
// subsetted font is actually likely to retain; blocks outside this list are
// simply left unset, the same as hinting a font for scripts it never
// touches.
type unicodeRangeBlock struct {
	lo, hi rune
	bit    uint
}

var unicodeRangeBlocks = []unicodeRangeBlock{
	{0x0000, 0x007F, 0},   // Basic Latin
	{0x0080, 0x00FF, 1},   // Latin-1 Supplement
	{0x0100, 0x017F, 2},   // Latin Extended-A
	{0x0180, 0x024F, 3},   // Latin Extended-B
	{0x0250, 0x02AF, 4},   // IPA Extensions
	{0x02B0, 0x02FF, 5},   // Spacing Modifier Letters
	{0x0300, 0x036F, 6},   // Combining Diacritical Marks
	{0x0370, 0x03FF, 7},   // Greek and Coptic
	{0x0400, 0x04FF, 9},   // Cyrillic
	{0x0530, 0x058F, 10},  // Armenian
	{0x0590, 0x05FF, 11},  // Hebrew
	{0x0600, 0x06FF, 13},  // Arabic
	{0x0900, 0x097F, 15},  // Devanagari
	{0x0E00, 0x0E7F, 24},  // Thai
	{0x10A0, 0x10FF, 26},  // Georgian
	{0x1E00, 0x1EFF, 29},  // Latin Extended Additional
	{0x1F00, 0x1FFF, 30},  // Greek Extended
	{0x2000, 0x206F, 31},  // General Punctuation
	{0x2070, 0x209F, 32},  // Superscripts And Subscripts
	{0x20A0, 0x20CF, 33},  // Currency Symbols
	{0x2100, 0x214F, 35},  // Letterlike Symbols
	{0x2190, 0x21FF, 37},  // Arrows
	{0x2200, 0x22FF, 38},  // Mathematical Operators
	{0x2300, 0x23FF, 39},  // Miscellaneous Technical
	{0x25A0, 0x25FF, 45},  // Geometric Shapes
	{0x2600, 0x26FF, 46},  // Miscellaneous Symbols
	{0x3000, 0x303F, 48},  // CJK Symbols And Punctuation
	{0x3040, 0x309F, 49},  // Hiragana
	{0x30A0, 0x30FF, 50},  // Katakana
	{0x3130, 0x318F, 52},  // Hangul Compatibility Jamo
	{0x4E00, 0x9FFF, 59},  // CJK Unified Ideographs
	{0xAC00, 0xD7A3, 56},  // Hangul Syllables
	{0xE000, 0xF8FF, 60},  // Private Use Area
	{0xFB00, 0xFB4F, 62},   // Alphabetic Presentation Forms
	{0xFF00, 0xFFEF, 68},   // Halfwidth And Fullwidth Forms
	{0x1F300, 0x1FAFF, 57}, // Miscellaneous Symbols And Pictographs
}

// computeUnicodeRangeBits recomputes the four ulUnicodeRange fields from a
// set of retained codepoints.
func computeUnicodeRangeBits(codepoints map[rune]bool) [4]uint32 {
	var bits [4]uint32
	set := make(map[uint]bool)
	for cp := range codepoints {
		for _, blk := range unicodeRangeBlocks {
			if cp >= blk.lo && cp <= blk.hi {
				set[blk.bit] = true
			}
		}
	}
	for bit := range set {
		word := bit / 32
		if word > 3 {
			continue
		}
		bits[word] |= 1 << (bit % 32)
	}
	return bits
}

// subsetOS2 rewrites the OS/2 table's ulUnicodeRange1-4 fields to reflect
// only the codepoints retained by this plan, unless FlagNoPruneUnicodeRanges
// is set (in which case the original bitmask passes through unchanged).
func (p *Plan) subsetOS2(builder *FontBuilder) error {
	data, err := p.source.TableData(ot.TagOS2)
	if err != nil {
		return ErrMissingTable
	}
	if len(data) < 58 {
		// Pre-1.0 OS/2 tables have no ulUnicodeRange fields; copy as-is.
		builder.AddTable(ot.TagOS2, data)
		return nil
	}

	newData := make([]byte, len(data))
	copy(newData, data)

	if p.input.Flags&FlagNoPruneUnicodeRanges == 0 {
		bits := computeUnicodeRangeBits(p.input.Unicodes())
		binary.BigEndian.PutUint32(newData[42:], bits[0])
		binary.BigEndian.PutUint32(newData[46:], bits[1])
		binary.BigEndian.PutUint32(newData[50:], bits[2])
		binary.BigEndian.PutUint32(newData[54:], bits[3])
	}

	builder.AddTable(ot.TagOS2, newData)
	return nil
}
