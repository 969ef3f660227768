package requests

import (
	"fmt"
)

// Status is the lifecycle state of a request. The numeric values are the
// persisted representation; they carry no ordering semantics for legality.
type Status int

const (
	// StatusSubmitted only appears as the previous status of the first history entry.
	StatusSubmitted Status = iota
	StatusDesignerReview
	StatusDesignInProgress
	StatusPendingCorrection
	StatusPendingApproval
	StatusPendingRedesign
	StatusCompleted
)

var statusNames = map[Status]string{
	StatusSubmitted:         "Submitted",
	StatusDesignerReview:    "DesignerReview",
	StatusDesignInProgress:  "DesignInProgress",
	StatusPendingCorrection: "PendingCorrection",
	StatusPendingApproval:   "PendingApproval",
	StatusPendingRedesign:   "PendingRedesign",
	StatusCompleted:         "Completed",
}

// Statuses lists every status a persisted request can hold.
var Statuses = []Status{
	StatusDesignerReview,
	StatusDesignInProgress,
	StatusPendingCorrection,
	StatusPendingApproval,
	StatusPendingRedesign,
	StatusCompleted,
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Valid reports whether s is one of the seven defined states.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// ParseStatus returns the status with the given name.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
