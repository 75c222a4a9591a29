package gcounter

// Counter is a replica of a grow-only counter. Seen holds the fingerprints of
// the additions already applied, so redelivered additions are not counted
// twice.
type Counter struct {
	Value uint64
	Seen  map[string]struct{}
}

// NewCounter ...
func NewCounter() Counter {
	return Counter{Seen: make(map[string]struct{})}
}

// Apply adds delta unless fingerprint was already applied. It reports whether
// the value changed.
func (c *Counter) Apply(fingerprint string, delta uint64) bool {
	if _, ok := c.Seen[fingerprint]; ok {
		return false
	}
	c.Seen[fingerprint] = struct{}{}
	c.Value += delta
	return true
}
