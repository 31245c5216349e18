package subset

import (
	_ "embed"

	"github.com/BurntSushi/toml"

	"github.com/textmetal/otsubset/ot"
)

//go:embed defaults.toml
var defaultConfigTOML string

// defaultConfig is the parsed form of defaults.toml: the drop-table and
// retained-feature profile a subsetter applies unless the caller
// configures an Input explicitly.
type defaultConfig struct {
	DropTables     []string `toml:"drop_tables"`
	RetainFeatures []string `toml:"retain_features"`
	NoSubsetTables []string `toml:"no_subset_tables"`
}

var parsedDefaultConfig defaultConfig

func init() {
	if _, err := toml.Decode(defaultConfigTOML, &parsedDefaultConfig); err != nil {
		trace().Errorf("subset: failed to parse embedded default config: %v", err)
	}
}

// ApplyDefaultProfile configures drop-tables, pass-through tables, and
// retained layout features on input from the embedded default profile
// (defaults.toml), mirroring a subsetting tool's baseline behavior for
// callers that haven't configured those explicitly. It never overwrites
// settings the caller already made.
func ApplyDefaultProfile(input *Input) {
	for _, tagStr := range parsedDefaultConfig.DropTables {
		tag := tagFromString(tagStr)
		if !input.ShouldDropTable(tag) {
			input.DropTable(tag)
		}
	}
	for _, tagStr := range parsedDefaultConfig.NoSubsetTables {
		input.PassThroughTable(tagFromString(tagStr))
	}
	if !input.HasLayoutFeatures() {
		for _, tagStr := range parsedDefaultConfig.RetainFeatures {
			input.KeepFeature(tagFromString(tagStr))
		}
	}
}

// tagFromString converts a 4-character table/feature tag string (padded
// with spaces if shorter, as OpenType tags require) to an ot.Tag.
func tagFromString(s string) ot.Tag {
	var b [4]byte
	for i := range b {
		if i < len(s) {
			b[i] = s[i]
		} else {
			b[i] = ' '
		}
	}
	return ot.MakeTag(b[0], b[1], b[2], b[3])
}
