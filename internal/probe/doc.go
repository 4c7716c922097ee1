// Package probe provides ffprobe-based media inspection and typed result
// structures. One JSON call (-show_format -show_streams) per request yields
// both the container duration and the stream profile used by the
// consistency check before concatenation.
//
// Results are never cached: every Duration or Profile call re-probes the
// file, and every failure is returned as an error so callers can tell it
// apart from a legitimately zero value.
package probe
