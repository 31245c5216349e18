package ot

import (
	"encoding/binary"
	"fmt"
	"sort"

	"golang.org/x/text/encoding/unicode"
)

const (
	nameHeaderSize = 6
	nameRecordSize = 12
)

// NamePlatform identifies the platform a name record was encoded for.
type NamePlatform uint16

// Platform ids used by the name table.
const (
	NamePlatformUnicode   NamePlatform = 0
	NamePlatformMacintosh NamePlatform = 1
	NamePlatformWindows   NamePlatform = 3
)

// NameEncoding identifies the encoding of a name record's string data.
type NameEncoding uint16

// Encoding ids used by the name table. Only Unicode/BMP (platform 0) and
// Windows/BMP (platform 3) records are decoded; all others, Windows Symbol
// included, are kept as raw bytes.
const (
	NameEncodingUnicodeBMP NameEncoding = 3
	NameEncodingWindowsSym NameEncoding = 0
	NameEncodingWindowsBMP NameEncoding = 1
)

// NameRecord is one entry of the name table: a platform/encoding/language
// triple, a name id (family, style, copyright, ...), and its string value.
type NameRecord struct {
	PlatformID NamePlatform
	EncodingID NameEncoding
	LanguageID uint16
	NameID     uint16
	raw        []byte // original encoded bytes, kept for round-tripping unsupported encodings
	Value      string // decoded value; empty when the encoding wasn't recognized
}

// Name represents a parsed name table.
type Name struct {
	format  uint16
	Records []NameRecord
}

// ParseName parses a name table.
func ParseName(data []byte) (*Name, error) {
	if len(data) < nameHeaderSize {
		return nil, ErrInvalidTable
	}

	format := binary.BigEndian.Uint16(data[0:])
	count := int(binary.BigEndian.Uint16(data[2:]))
	storageOffset := int(binary.BigEndian.Uint16(data[4:]))
	if storageOffset < 0 || storageOffset > len(data) {
		return nil, ErrInvalidOffset
	}

	recordsEnd := nameHeaderSize + count*nameRecordSize
	if recordsEnd > len(data) {
		return nil, ErrInvalidOffset
	}

	n := &Name{format: format, Records: make([]NameRecord, 0, count)}
	for i := 0; i < count; i++ {
		rec := data[nameHeaderSize+i*nameRecordSize : nameHeaderSize+(i+1)*nameRecordSize]
		platform := NamePlatform(binary.BigEndian.Uint16(rec[0:]))
		encoding := NameEncoding(binary.BigEndian.Uint16(rec[2:]))
		language := binary.BigEndian.Uint16(rec[4:])
		nameID := binary.BigEndian.Uint16(rec[6:])
		strLen := int(binary.BigEndian.Uint16(rec[8:]))
		strOffset := int(binary.BigEndian.Uint16(rec[10:]))

		start := storageOffset + strOffset
		end := start + strLen
		if start < 0 || strLen < 0 || end > len(data) {
			continue // skip malformed records rather than fail the whole table
		}
		raw := data[start:end]

		entry := NameRecord{
			PlatformID: platform,
			EncodingID: encoding,
			LanguageID: language,
			NameID:     nameID,
			raw:        append([]byte(nil), raw...),
		}
		if isDecodableNameEncoding(platform, encoding) {
			if s, err := decodeNameUTF16(raw); err == nil {
				entry.Value = s
			}
		}
		n.Records = append(n.Records, entry)
	}

	return n, nil
}

// HasData returns true if the table has at least one record.
func (n *Name) HasData() bool {
	return n != nil && len(n.Records) > 0
}

// Get returns the first record for the given name id, platform, and
// encoding, decoded as a string.
func (n *Name) Get(nameID uint16, platform NamePlatform, encoding NameEncoding) (string, bool) {
	for _, r := range n.Records {
		if r.NameID == nameID && r.PlatformID == platform && r.EncodingID == encoding {
			return r.Value, true
		}
	}
	return "", false
}

func isDecodableNameEncoding(platform NamePlatform, encoding NameEncoding) bool {
	return (platform == NamePlatformUnicode && encoding == NameEncodingUnicodeBMP) ||
		(platform == NamePlatformWindows && encoding == NameEncodingWindowsBMP)
}

func decodeNameUTF16(b []byte) (string, error) {
	enc := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	decoded, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("name: decoding UTF-16 record: %w", err)
	}
	return string(decoded), nil
}

// BuildName serializes a name table retaining only the records whose
// NameID is in keepIDs (all records if keepIDs is nil). Records are
// emitted in platform/encoding/language/nameID order, and identical
// string values are deduplicated into a single storage-area entry, the
// same layout strategy the original table already uses.
func BuildName(n *Name, keepIDs map[uint16]bool) []byte {
	kept := make([]NameRecord, 0, len(n.Records))
	for _, r := range n.Records {
		if keepIDs == nil || keepIDs[r.NameID] {
			kept = append(kept, r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.PlatformID != b.PlatformID {
			return a.PlatformID < b.PlatformID
		}
		if a.EncodingID != b.EncodingID {
			return a.EncodingID < b.EncodingID
		}
		if a.LanguageID != b.LanguageID {
			return a.LanguageID < b.LanguageID
		}
		return a.NameID < b.NameID
	})

	header := make([]byte, nameHeaderSize+len(kept)*nameRecordSize)
	binary.BigEndian.PutUint16(header[0:], 0)
	binary.BigEndian.PutUint16(header[2:], uint16(len(kept)))

	var storage []byte
	seen := make(map[string]int) // raw-bytes key -> storage offset, for dedup
	for i, r := range kept {
		key := string(r.raw)
		offset, ok := seen[key]
		if !ok {
			offset = len(storage)
			storage = append(storage, r.raw...)
			seen[key] = offset
		}

		rec := header[nameHeaderSize+i*nameRecordSize:]
		binary.BigEndian.PutUint16(rec[0:], uint16(r.PlatformID))
		binary.BigEndian.PutUint16(rec[2:], uint16(r.EncodingID))
		binary.BigEndian.PutUint16(rec[4:], r.LanguageID)
		binary.BigEndian.PutUint16(rec[6:], r.NameID)
		binary.BigEndian.PutUint16(rec[8:], uint16(len(r.raw)))
		binary.BigEndian.PutUint16(rec[10:], uint16(offset))
	}

	binary.BigEndian.PutUint16(header[4:], uint16(len(header)))
	return append(header, storage...)
}
