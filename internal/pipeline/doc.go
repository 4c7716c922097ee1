// Package pipeline turns user requests (CLI flags or API bodies) into merge
// jobs. It fills defaults from the config, resolves the show name (derived
// from the directory and optionally corrected by the catalog), runs the
// merge core, and records the run in the report and metrics sinks.
//
// It also backs the read-only views: file listing, output preview and
// result rows with the measured size and duration of each output.
package pipeline
