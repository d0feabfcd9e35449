package pipeline

// Dedup remembers the bodies seen during one run.
type Dedup struct {
	seen map[string]struct{}
}

func NewDedup() *Dedup {
	return &Dedup{seen: make(map[string]struct{})}
}

// Seen reports whether body was already recorded, recording it if not.
func (d *Dedup) Seen(body string) bool {
	if _, ok := d.seen[body]; ok {
		return true
	}
	d.seen[body] = struct{}{}
	return false
}

func (d *Dedup) Len() int { return len(d.seen) }
