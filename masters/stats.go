package masters

import (
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/stupid-simple/medialib/media"
)

type Stats struct {
	Processed int
	Published int
	Stale     int
	Errors    int
	Bytes     int64
}

func (s *Stats) record(o media.Outcome, size int64) {
	s.Processed++
	switch o {
	case media.OutcomeOK:
		s.Published++
		s.Bytes += size
	case media.OutcomeStale:
		s.Stale++
	case media.OutcomeTranscodeError:
		s.Errors++
	}
}

func (s Stats) MarshalZerologObject(e *zerolog.Event) {
	e.Int("processed", s.Processed)
	e.Int("published", s.Published)
	e.Int("stale", s.Stale)
	e.Int("errors", s.Errors)
	e.Str("total_size", humanize.Bytes(uint64(s.Bytes)))
}
