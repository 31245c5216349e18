package ot

import (
	"os"
	"testing"
)

func TestFvarParsing(t *testing.T) {
	data, err := os.ReadFile("testdata/Roboto-Variable.ttf")
	if err != nil {
		t.Skipf("Skipping test: %v", err)
	}

	font, err := ParseFont(data, 0)
	if err != nil {
		t.Fatalf("Failed to parse font: %v", err)
	}

	fvarData, err := font.TableData(TagFvar)
	if err != nil {
		t.Fatalf("Failed to get fvar table: %v", err)
	}

	fvar, err := ParseFvar(fvarData)
	if err != nil {
		t.Fatalf("Failed to parse fvar: %v", err)
	}

	// Roboto-Variable should have 2 axes: wght and wdth
	if !fvar.HasData() {
		t.Error("fvar.HasData() = false, want true")
	}

	axisCount := fvar.AxisCount()
	if axisCount != 2 {
		t.Errorf("AxisCount() = %d, want 2", axisCount)
	}

	axes := fvar.AxisInfos()
	if len(axes) != 2 {
		t.Fatalf("len(AxisInfos()) = %d, want 2", len(axes))
	}

	// Check weight axis
	wghtAxis := axes[0]
	if wghtAxis.Tag != TagAxisWeight {
		t.Errorf("axes[0].Tag = %v, want wght", wghtAxis.Tag)
	}
	if wghtAxis.MinValue != 100 {
		t.Errorf("wght.MinValue = %v, want 100", wghtAxis.MinValue)
	}
	if wghtAxis.DefaultValue != 400 {
		t.Errorf("wght.DefaultValue = %v, want 400", wghtAxis.DefaultValue)
	}
	if wghtAxis.MaxValue != 900 {
		t.Errorf("wght.MaxValue = %v, want 900", wghtAxis.MaxValue)
	}

	// Check width axis
	wdthAxis := axes[1]
	if wdthAxis.Tag != TagAxisWidth {
		t.Errorf("axes[1].Tag = %v, want wdth", wdthAxis.Tag)
	}
	if wdthAxis.MinValue != 75 {
		t.Errorf("wdth.MinValue = %v, want 75", wdthAxis.MinValue)
	}
	if wdthAxis.DefaultValue != 100 {
		t.Errorf("wdth.DefaultValue = %v, want 100", wdthAxis.DefaultValue)
	}
	if wdthAxis.MaxValue != 100 {
		t.Errorf("wdth.MaxValue = %v, want 100", wdthAxis.MaxValue)
	}

	// Test FindAxis
	if axis, found := fvar.FindAxis(TagAxisWeight); !found {
		t.Error("FindAxis(wght) returned false")
	} else if axis.Tag != TagAxisWeight {
		t.Errorf("FindAxis(wght).Tag = %v, want wght", axis.Tag)
	}

	if _, found := fvar.FindAxis(TagAxisItalic); found {
		t.Error("FindAxis(ital) should return false for Roboto-Variable")
	}
}

func TestFvarNamedInstances(t *testing.T) {
	data, err := os.ReadFile("testdata/Roboto-Variable.ttf")
	if err != nil {
		t.Skipf("Skipping test: %v", err)
	}

	font, err := ParseFont(data, 0)
	if err != nil {
		t.Fatalf("Failed to parse font: %v", err)
	}

	fvarData, err := font.TableData(TagFvar)
	if err != nil {
		t.Fatalf("Failed to get fvar table: %v", err)
	}

	fvar, err := ParseFvar(fvarData)
	if err != nil {
		t.Fatalf("Failed to parse fvar: %v", err)
	}

	instances := fvar.NamedInstances()
	if len(instances) == 0 {
		t.Skip("No named instances in font")
	}

	// Check that instances have valid data
	for i, inst := range instances {
		if inst.Index != i {
			t.Errorf("instances[%d].Index = %d, want %d", i, inst.Index, i)
		}
		if len(inst.Coords) != fvar.AxisCount() {
			t.Errorf("instances[%d].Coords has %d values, want %d",
				i, len(inst.Coords), fvar.AxisCount())
		}
	}

	t.Logf("Found %d named instances", len(instances))
}

func TestFvarNormalization(t *testing.T) {
	data, err := os.ReadFile("testdata/Roboto-Variable.ttf")
	if err != nil {
		t.Skipf("Skipping test: %v", err)
	}

	font, err := ParseFont(data, 0)
	if err != nil {
		t.Fatalf("Failed to parse font: %v", err)
	}

	fvarData, err := font.TableData(TagFvar)
	if err != nil {
		t.Fatalf("Failed to get fvar table: %v", err)
	}

	fvar, err := ParseFvar(fvarData)
	if err != nil {
		t.Fatalf("Failed to parse fvar: %v", err)
	}

	// Weight axis: min=100, default=400, max=900
	// Normalized: 100 -> -1, 400 -> 0, 900 -> 1

	tests := []struct {
		axisIdx int
		value   float32
		want    float32
	}{
		{0, 100, -1.0},  // min
		{0, 400, 0.0},   // default
		{0, 900, 1.0},   // max
		{0, 250, -0.5},  // halfway between min and default
		{0, 650, 0.5},   // halfway between default and max
		{0, 50, -1.0},   // below min, clamped
		{0, 1000, 1.0},  // above max, clamped
	}

	for _, tt := range tests {
		got := fvar.NormalizeAxisValue(tt.axisIdx, tt.value)
		if abs(got-tt.want) > 0.001 {
			t.Errorf("NormalizeAxisValue(%d, %v) = %v, want %v",
				tt.axisIdx, tt.value, got, tt.want)
		}
	}
}

func TestFvarNormalizeVariations(t *testing.T) {
	data, err := os.ReadFile("testdata/Roboto-Variable.ttf")
	if err != nil {
		t.Skipf("Skipping test: %v", err)
	}

	font, err := ParseFont(data, 0)
	if err != nil {
		t.Fatalf("Failed to parse font: %v", err)
	}

	fvarData, err := font.TableData(TagFvar)
	if err != nil {
		t.Fatalf("Failed to get fvar table: %v", err)
	}

	fvar, err := ParseFvar(fvarData)
	if err != nil {
		t.Fatalf("Failed to parse fvar: %v", err)
	}

	variations := []Variation{
		{Tag: TagAxisWeight, Value: 700}, // Bold
	}

	coords := fvar.NormalizeVariations(variations)
	if len(coords) != 2 {
		t.Fatalf("NormalizeVariations returned %d coords, want 2", len(coords))
	}

	// Weight 700 should normalize to 0.6 (700-400)/(900-400) = 300/500 = 0.6
	if abs(coords[0]-0.6) > 0.001 {
		t.Errorf("coords[0] (wght) = %v, want 0.6", coords[0])
	}

	// Width was not specified, should be 0 (default)
	if coords[1] != 0 {
		t.Errorf("coords[1] (wdth) = %v, want 0", coords[1])
	}
}

func TestFaceFvar(t *testing.T) {
	data, err := os.ReadFile("testdata/Roboto-Variable.ttf")
	if err != nil {
		t.Skipf("Skipping test: %v", err)
	}

	font, err := ParseFont(data, 0)
	if err != nil {
		t.Fatalf("Failed to parse font: %v", err)
	}

	face, err := NewFace(font)
	if err != nil {
		t.Fatalf("Failed to create face: %v", err)
	}

	if !face.HasVariations() {
		t.Error("HasVariations() = false, want true")
	}

	axes := face.VariationAxes()
	if len(axes) != 2 {
		t.Errorf("len(VariationAxes()) = %d, want 2", len(axes))
	}

	if axis, found := face.FindVariationAxis(TagAxisWeight); !found {
		t.Error("FindVariationAxis(wght) = false, want true")
	} else if axis.DefaultValue != 400 {
		t.Errorf("wght.DefaultValue = %v, want 400", axis.DefaultValue)
	}

	instances := face.NamedInstances()
	t.Logf("Face has %d named instances", len(instances))
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
