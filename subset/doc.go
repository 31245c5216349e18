// Package subset computes which glyphs, lookups, and tables survive a
// subsetting plan and rebuilds each retained table with glyph ids and
// offsets remapped to the smaller font.
package subset

import (
	"github.com/npillmayer/schuko/gtrace"
	"github.com/npillmayer/schuko/tracing"
)

// trace traces to a global core-tracer.
func trace() tracing.Trace {
	return gtrace.CoreTracer
}
