// Package ot provides sanitized, read-only parsers for the OpenType
// tables a subsetter needs to inspect: glyph outlines (glyf/loca/gvar),
// substitution and positioning lookups (GSUB/GPOS/GDEF), and the
// supporting metric and variation tables.
package ot

import (
	"github.com/npillmayer/schuko/gtrace"
	"github.com/npillmayer/schuko/tracing"
)

// trace traces to a global core-tracer.
func trace() tracing.Trace {
	return gtrace.CoreTracer
}
