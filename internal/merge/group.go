package merge

// grouper accumulates files into the current group and seals it when the
// next file would exceed a nonzero threshold.
type grouper struct {
	maxDuration float64
	maxSize     int64
	cur         Group
}

func newGrouper(opts Options) *grouper {
	return &grouper{maxDuration: opts.MaxDuration, maxSize: opts.MaxSize}
}

// wouldExceed reports whether adding f to the current group crosses a
// threshold. Totals equal to a threshold are allowed.
func (g *grouper) wouldExceed(f MediaFile) bool {
	if g.maxDuration > 0 && g.cur.Duration+f.Duration > g.maxDuration {
		return true
	}
	if g.maxSize > 0 && g.cur.Size+f.Size > g.maxSize {
		return true
	}
	return false
}

// Add appends f. When the current group is non-empty and f would exceed a
// threshold, the current group is sealed and returned first, and f starts
// the next one.
func (g *grouper) Add(f MediaFile) (sealed Group, ok bool) {
	if len(g.cur.Files) > 0 && g.wouldExceed(f) {
		sealed, ok = g.cur, true
		g.cur = Group{}
	}
	g.cur.Files = append(g.cur.Files, f)
	g.cur.Duration += f.Duration
	g.cur.Size += f.Size
	return sealed, ok
}

// Flush seals and returns the current group if it holds any file.
func (g *grouper) Flush() (Group, bool) {
	if len(g.cur.Files) == 0 {
		return Group{}, false
	}
	sealed := g.cur
	g.cur = Group{}
	return sealed, true
}

// Partition splits files into groups exactly as Run does, without merging.
func Partition(files []MediaFile, opts Options) []Group {
	g := newGrouper(opts)
	var groups []Group
	for _, f := range files {
		if sealed, ok := g.Add(f); ok {
			groups = append(groups, sealed)
		}
	}
	if sealed, ok := g.Flush(); ok {
		groups = append(groups, sealed)
	}
	return groups
}
