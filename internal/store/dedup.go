package store

import "strings"

// Dedup remembers keys seen during one run. It is not safe for concurrent
// use; the aggregator owns it.
type Dedup struct {
	seen map[string]struct{}
}

func NewDedup() *Dedup {
	return &Dedup{seen: make(map[string]struct{})}
}

// Seen reports whether key was marked before and marks it. Keys are
// compared after trimming surrounding whitespace.
func (d *Dedup) Seen(key string) bool {
	key = strings.TrimSpace(key)
	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}
	return false
}

func (d *Dedup) Len() int { return len(d.seen) }
