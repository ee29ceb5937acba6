package hoard

import "time"

// Clock abstracts time retrieval so ingestion timestamps (and the YYYY-MM
// date buckets derived from them) are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
