package media

import (
	"fmt"
	"strings"
)

// Stage is one of the three destinations a media file must reach before its
// staging copy can be reclaimed.
type Stage uint8

const (
	StageBackup Stage = 1 << iota
	StageMaster
	StageWeb
)

var allStages = []Stage{StageBackup, StageMaster, StageWeb}

// Column is the name of the completion flag column for the stage.
func (s Stage) Column() string {
	switch s {
	case StageBackup:
		return "backup_ok"
	case StageMaster:
		return "master_ok"
	case StageWeb:
		return "www_ok"
	default:
		panic(fmt.Sprintf("unknown stage %d", s))
	}
}

func (s Stage) String() string {
	switch s {
	case StageBackup:
		return "backup"
	case StageMaster:
		return "master"
	case StageWeb:
		return "www"
	default:
		return fmt.Sprintf("stage(%d)", uint8(s))
	}
}

// State is the set of stages a media record has completed.
type State uint8

// StateNone is the state of a freshly (re)indexed record.
const StateNone State = 0

// StateComplete has every stage done.
const StateComplete = State(StageBackup | StageMaster | StageWeb)

func NewState(backupOK, masterOK, wwwOK bool) State {
	var st State
	if backupOK {
		st = st.Mark(StageBackup)
	}
	if masterOK {
		st = st.Mark(StageMaster)
	}
	if wwwOK {
		st = st.Mark(StageWeb)
	}
	return st
}

// Mark returns the state with stage s completed.
func (st State) Mark(s Stage) State {
	return st | State(s)
}

// Reset returns the state of a resubmitted record.
func (st State) Reset() State {
	return StateNone
}

func (st State) Done(s Stage) bool {
	return st&State(s) != 0
}

func (st State) Complete() bool {
	return st&StateComplete == StateComplete
}

// Pending lists the stages that have not completed yet.
func (st State) Pending() []Stage {
	var out []Stage
	for _, s := range allStages {
		if !st.Done(s) {
			out = append(out, s)
		}
	}
	return out
}

func (st State) String() string {
	parts := make([]string, 0, len(allStages))
	for _, s := range allStages {
		v := 0
		if st.Done(s) {
			v = 1
		}
		parts = append(parts, fmt.Sprintf("%s=%d", s.Column(), v))
	}
	return strings.Join(parts, " ")
}
