package domain

import "github.com/jonboulle/clockwork"

// clock is the time source behind every HealthFact.IngestedAt stamp assigned
// by [FactFromRecord]. Production code uses the real clock; tests freeze it
// via SetClock so ingest timestamps are deterministic.
var clock = clockwork.NewRealClock()

// SetClock swaps the ingest-timestamp time source. Pass nil to reset to real
// time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
