package merge

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/backmassage/dramamerge/internal/logging"
	"github.com/backmassage/dramamerge/internal/probe"
)

// Mismatch is one parameter that differs from the baseline file.
type Mismatch struct {
	Field string
	Base  string
	Got   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: %s vs %s", m.Field, m.Base, m.Got)
}

// CheckResult is the outcome of a consistency check. File and Mismatches
// are set only when a specific file failed.
type CheckResult struct {
	Consistent bool
	Message    string
	File       string
	Mismatches []Mismatch
}

// Checker compares the stream profile of every file against the first.
type Checker struct {
	prober   Prober
	required []string
	log      zerolog.Logger
}

// NewChecker returns a Checker. Fields named in required that a file lacks
// are logged as warnings and never fail the check.
func NewChecker(p Prober, required []string, log zerolog.Logger) *Checker {
	return &Checker{prober: p, required: required, log: log}
}

// Check probes files in order and stops at the first one that cannot be
// read or whose present parameters differ from the baseline. A parameter
// missing on either side is not compared.
func (c *Checker) Check(ctx context.Context, files []string) CheckResult {
	if len(files) == 0 {
		return CheckResult{Consistent: true, Message: "no files to check"}
	}

	base, err := c.prober.Profile(ctx, files[0])
	if err != nil {
		c.log.Warn().Err(err).Str(logging.FieldPath, files[0]).Str(logging.FieldOp, "profile").Msg("baseline probe failed")
		return CheckResult{
			Message: "cannot read baseline metadata: " + files[0],
			File:    files[0],
		}
	}
	c.warnMissing(files[0], base)

	for _, f := range files[1:] {
		cur, err := c.prober.Profile(ctx, f)
		if err != nil {
			c.log.Warn().Err(err).Str(logging.FieldPath, f).Str(logging.FieldOp, "profile").Msg("probe failed")
			return CheckResult{Message: "cannot read metadata: " + f, File: f}
		}
		c.warnMissing(f, cur)

		if mm := Compare(base, cur); len(mm) > 0 {
			parts := make([]string, len(mm))
			for i, m := range mm {
				parts[i] = m.String()
			}
			c.log.Warn().
				Str(logging.FieldPath, f).
				Str("baseline", files[0]).
				Str("baseline_resolution", base.Resolution()).
				Str("resolution", cur.Resolution()).
				Strs("mismatched", mismatchFields(mm)).
				Msg("parameters differ from baseline")
			return CheckResult{
				Message:    fmt.Sprintf("parameters inconsistent: %s: %s", f, strings.Join(parts, ", ")),
				File:       f,
				Mismatches: mm,
			}
		}
	}
	return CheckResult{Consistent: true, Message: "all parameters consistent"}
}

func (c *Checker) warnMissing(path string, sp probe.StreamProfile) {
	if missing := sp.Missing(c.required); len(missing) > 0 {
		c.log.Warn().
			Str(logging.FieldPath, path).
			Strs("missing", missing).
			Msg("file lacks required metadata")
	}
}

func mismatchFields(mm []Mismatch) []string {
	names := make([]string, len(mm))
	for i, m := range mm {
		names[i] = m.Field
	}
	return names
}

// Compare returns the parameters present on both profiles whose values
// differ, in field order.
func Compare(base, cur probe.StreamProfile) []Mismatch {
	var mm []Mismatch
	for _, bf := range base.Fields() {
		v, ok := cur.Lookup(bf.Name)
		if ok && v != bf.Value {
			mm = append(mm, Mismatch{Field: bf.Name, Base: bf.Value, Got: v})
		}
	}
	return mm
}
