package media

import "errors"

// Outcome classifies what happened to a single file in a batch loop.
// Per-file problems are reported as outcomes and counted; only systemic
// failures are returned as errors.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeFileNameTooLong
	OutcomeMediaNotFound
	OutcomeDuplicate
	OutcomeStale
	OutcomeTranscodeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeFileNameTooLong:
		return "file_name_too_long"
	case OutcomeMediaNotFound:
		return "media_not_found"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeStale:
		return "stale_record"
	case OutcomeTranscodeError:
		return "transcode_error"
	default:
		return "unknown"
	}
}

// Rejected reports whether the outcome counts as a rejection of the file.
func (o Outcome) Rejected() bool {
	return o != OutcomeOK
}

// ErrTooManyErrors is returned by batch loops once the configured maximum
// number of transcode errors has been reached.
var ErrTooManyErrors = errors.New("maximum number of image processing errors reached")
