package ffmpeg

// RetryAction identifies which fix was applied (or none).
type RetryAction int

const (
	RetryNone   RetryAction = iota
	RetryGenPTS             // Regenerate presentation timestamps (-fflags +genpts).
)

func (a RetryAction) String() string {
	switch a {
	case RetryGenPTS:
		return "genpts"
	default:
		return "none"
	}
}

const maxAttempts = 2

// RetryState tracks which fallback fixes have been applied across ffmpeg
// attempts for a single concatenation.
type RetryState struct {
	Attempt     int
	MaxAttempts int

	// Enabled gates every fix; when false Advance always returns RetryNone.
	Enabled bool
	GenPTS  bool
}

// NewRetryState returns a fresh state. enabled mirrors the genpts_retry
// setting.
func NewRetryState(enabled bool) *RetryState {
	return &RetryState{MaxAttempts: maxAttempts, Enabled: enabled}
}

// Advance inspects stderr from a failed run, applies the first matching
// fix that has not been applied yet, and returns it. Returns RetryNone when
// nothing matches or the attempt limit is reached. One fix per attempt.
func (s *RetryState) Advance(stderr string) RetryAction {
	s.Attempt++
	if !s.Enabled || s.Attempt >= s.MaxAttempts {
		return RetryNone
	}
	if !s.GenPTS && MatchTimestampIssue(stderr) {
		s.GenPTS = true
		return RetryGenPTS
	}
	return RetryNone
}
