package pipeline

// RunStats tracks aggregate counters and byte totals across a run.
type RunStats struct {
	Jobs        int
	JobFailures int // whole-run failures (directory, nothing to merge)
	Groups      int
	Succeeded   int
	Failed      int
	InputFiles  int
	InputBytes  int64
	OutputBytes int64
}

// Add folds one job outcome into the totals.
func (s *RunStats) Add(o *JobOutcome) {
	s.Jobs++
	if o.Err != nil {
		s.JobFailures++
	}
	for _, r := range o.Rows {
		if r.Result.Err != nil && len(r.Result.Files) == 0 {
			// ErrNoFiles marker result, not a group.
			s.JobFailures++
			continue
		}
		s.Groups++
		s.InputFiles += len(r.Result.Files)
		s.InputBytes += r.InputBytes
		if r.Result.OK() {
			s.Succeeded++
			s.OutputBytes += r.Size
		} else {
			s.Failed++
		}
	}
}

// OK reports whether nothing failed.
func (s *RunStats) OK() bool {
	return s.JobFailures == 0 && s.Failed == 0
}
