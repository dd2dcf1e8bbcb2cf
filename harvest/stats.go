package harvest

import (
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/stupid-simple/medialib/media"
)

// Stats aggregates the outcome of one indexing pass.
type Stats struct {
	Processed int
	Indexed   int
	Rejected  int
	Bytes     int64
	Outcomes  map[media.Outcome]int
}

func (s *Stats) record(o media.Outcome, size int64) {
	if s.Outcomes == nil {
		s.Outcomes = map[media.Outcome]int{}
	}
	s.Processed++
	s.Outcomes[o]++
	if o.Rejected() {
		s.Rejected++
		return
	}
	s.Indexed++
	s.Bytes += size
}

// Add merges other into s.
func (s *Stats) Add(other Stats) {
	s.Processed += other.Processed
	s.Indexed += other.Indexed
	s.Rejected += other.Rejected
	s.Bytes += other.Bytes
	for o, n := range other.Outcomes {
		if s.Outcomes == nil {
			s.Outcomes = map[media.Outcome]int{}
		}
		s.Outcomes[o] += n
	}
}

func (s Stats) MarshalZerologObject(e *zerolog.Event) {
	e.Int("processed", s.Processed)
	e.Int("indexed", s.Indexed)
	e.Int("rejected", s.Rejected)
	e.Str("total_size", humanize.Bytes(uint64(s.Bytes)))
	for o, n := range s.Outcomes {
		if o.Rejected() {
			e.Int(o.String(), n)
		}
	}
}
