package runner

import (
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// Count is one named counter of a run, e.g. "indexed".
type Count struct {
	Name  string
	Value int
}

// Status is what a job reports back to the runner, whether it succeeded or not.
type Status struct {
	Counts []Count
	Errors int
	Bytes  int64
}

// Set adds or replaces a counter, keeping insertion order.
func (s *Status) Set(name string, value int) {
	for i := range s.Counts {
		if s.Counts[i].Name == name {
			s.Counts[i].Value = value
			return
		}
	}
	s.Counts = append(s.Counts, Count{Name: name, Value: value})
}

func (s Status) Count(name string) int {
	for _, c := range s.Counts {
		if c.Name == name {
			return c.Value
		}
	}
	return 0
}

func (s Status) MarshalZerologObject(e *zerolog.Event) {
	for _, c := range s.Counts {
		e.Int(c.Name, c.Value)
	}
	e.Int("errors", s.Errors)
	if s.Bytes > 0 {
		e.Str("size", humanize.Bytes(uint64(s.Bytes)))
	}
}

// Report is handed to the notifier once per completed run.
type Report struct {
	Kind           string
	Discriminator  string
	RunID          string
	Succeeded      bool
	Status         Status
	ElapsedSeconds float64
	Subject        string
}

func (r Report) MarshalZerologObject(e *zerolog.Event) {
	e.Str("kind", r.Kind)
	e.Str("discriminator", r.Discriminator)
	e.Str("run_id", r.RunID)
	e.Bool("succeeded", r.Succeeded)
	e.Object("status", r.Status)
	e.Float64("seconds", r.ElapsedSeconds)
}
