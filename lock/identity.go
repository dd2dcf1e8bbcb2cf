package lock

import (
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Identity is written into the marker file and names the run holding it.
type Identity struct {
	Host    string    `json:"host"`
	PID     int       `json:"pid"`
	RunID   string    `json:"run_id"`
	Started time.Time `json:"started"`
}

func NewIdentity() Identity {
	host, _ := os.Hostname()
	return Identity{
		Host:    host,
		PID:     os.Getpid(),
		RunID:   uuid.NewString(),
		Started: time.Now().UTC(),
	}
}

func (i Identity) Equal(other Identity) bool {
	return i.RunID == other.RunID && i.Host == other.Host && i.PID == other.PID
}

func (i Identity) MarshalZerologObject(e *zerolog.Event) {
	e.Str("host", i.Host)
	e.Int("pid", i.PID)
	e.Str("run_id", i.RunID)
	e.Time("started", i.Started)
}
