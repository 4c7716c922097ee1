package logging

// Canonical field names for structured logging.
const (
	FieldComponent = "component"
	FieldRunID     = "run_id"
	FieldRequestID = "request_id"

	FieldPath    = "path"
	FieldDir     = "dir"
	FieldOutput  = "output"
	FieldOp      = "op"
	FieldShow    = "show"
	FieldSeason  = "season"
	FieldEpisode = "episode"

	FieldFiles    = "files"
	FieldDuration = "duration_s"
	FieldSize     = "size_bytes"
	FieldElapsed  = "elapsed"
	FieldStderr   = "stderr"
)
