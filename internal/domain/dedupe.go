package domain

// Dedupe drops shops whose identity key was already seen, keeping the first
// occurrence and the input order. Shops with an empty key are never treated
// as duplicates of each other.
func Dedupe(shops []ShopRecord) []ShopRecord {
	seen := NewSeen()
	out := make([]ShopRecord, 0, len(shops))
	for i := range shops {
		if seen.AddIfNotExists(ResolveKey(shops[i])) {
			out = append(out, shops[i])
		}
	}
	return out
}

// Seen tracks identity keys across calls, for feeds that append page after
// page and must not repeat a shop.
type Seen struct {
	keys map[string]struct{}
}

// NewSeen returns an empty key set.
func NewSeen() *Seen {
	return &Seen{keys: make(map[string]struct{})}
}

// AddIfNotExists records key and reports whether it was new. Empty keys are
// always new.
func (s *Seen) AddIfNotExists(key string) bool {
	if key == "" {
		return true
	}
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

// Len returns the number of distinct keys recorded.
func (s *Seen) Len() int { return len(s.keys) }
