package merge

import "errors"

// Sentinel errors. Result.Err and Run's error wrap exactly one of these.
var (
	ErrNoFiles      = errors.New("no files to merge")
	ErrDirectory    = errors.New("directory unavailable")
	ErrInconsistent = errors.New("parameter check failed")
	ErrOutputExists = errors.New("output already exists")
	ErrTool         = errors.New("merge tool failed")
)

// Outcome labels used in metrics and reports.
const (
	OutcomeOK           = "ok"
	OutcomeNoFiles      = "no_files"
	OutcomeDirectory    = "directory"
	OutcomeInconsistent = "inconsistent"
	OutcomeExists       = "exists"
	OutcomeTool         = "tool"
	OutcomeError        = "error"
)

// Outcome classifies err into one of the Outcome labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrNoFiles):
		return OutcomeNoFiles
	case errors.Is(err, ErrDirectory):
		return OutcomeDirectory
	case errors.Is(err, ErrInconsistent):
		return OutcomeInconsistent
	case errors.Is(err, ErrOutputExists):
		return OutcomeExists
	case errors.Is(err, ErrTool):
		return OutcomeTool
	default:
		return OutcomeError
	}
}
