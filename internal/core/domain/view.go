package domain

type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhaseSubmitting Phase = "SUBMITTING"
	PhaseResult     Phase = "RESULT"
	PhaseError      Phase = "ERROR"
)

// Snapshot is the observable state of a submission view.
type Snapshot struct {
	Phase    Phase  `json:"phase"`
	RecordID string `json:"record_id,omitempty"`
	Result   string `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (s Snapshot) Loading() bool {
	return s.Phase == PhaseSubmitting
}

func (s Snapshot) Settled() bool {
	return s.Phase == PhaseResult || s.Phase == PhaseError
}
